// Package review implements the spaced-repetition scheduling core: interval
// policies, the review engine state machine, and the session-scoped
// in-memory variant of the engine.
//
// A problem advances through review steps; every success reschedules it
// further out, every failure walks the current interval list forward, and a
// problem that outgrows its schedule graduates out of active rotation.
package review

import (
	"time"

	"github.com/codedrill/codedrill/store"
)

// maxStep is the rotation tier a step-indexed problem graduates from.
const maxStep = 3

// Policy maps a problem's position to concrete wait times and owns how that
// position advances. The engine's transition logic depends only on this
// contract; the step-indexed and difficulty-indexed variants plug in behind
// it.
type Policy interface {
	// Intervals returns the ordered wait sequence the problem is currently
	// walking. Step-indexed policies key on the step ordinal,
	// difficulty-indexed policies on the difficulty. An unconfigured key
	// yields an empty sequence, never an error.
	Intervals(step int, difficulty store.Difficulty) []int

	// Unit is the schedule granularity (one day).
	Unit() time.Duration

	// NextOnSolve returns the step and count after a successful review.
	// graduated=true means the schedule is exhausted and the problem
	// leaves active rotation.
	NextOnSolve(step, count int, difficulty store.Difficulty) (newStep, newCount int, graduated bool)

	// NextOnFail returns the step and count after a failed review. Failure
	// never graduates.
	NextOnFail(step, count int, difficulty store.Difficulty) (newStep, newCount int)
}

const day = 24 * time.Hour

// StepPolicy is the step-indexed policy: a configurable interval list per
// step ordinal. Success advances the step and resets the count; the count
// only moves as a failure penalty within the step.
type StepPolicy struct {
	levels map[int][]int
}

// NewStepPolicy creates a step-indexed policy from a level table.
func NewStepPolicy(levels map[int][]int) *StepPolicy {
	return &StepPolicy{levels: levels}
}

func (p *StepPolicy) Intervals(step int, _ store.Difficulty) []int {
	return p.levels[step]
}

func (p *StepPolicy) Unit() time.Duration {
	return day
}

func (p *StepPolicy) NextOnSolve(step, count int, _ store.Difficulty) (int, int, bool) {
	if step >= maxStep {
		return 0, 0, true
	}
	return step + 1, 0, false
}

func (p *StepPolicy) NextOnFail(step, count int, _ store.Difficulty) (int, int) {
	return step, count + 1
}

// DifficultyPolicy is the difficulty-indexed policy: a fixed interval table
// per difficulty. The count is the attempt index into that table; the step
// ordinal is derived from it, and the problem graduates when the table is
// exhausted.
type DifficultyPolicy struct{}

// NewDifficultyPolicy creates the fixed difficulty-indexed policy.
func NewDifficultyPolicy() *DifficultyPolicy {
	return &DifficultyPolicy{}
}

func (p *DifficultyPolicy) Intervals(_ int, difficulty store.Difficulty) []int {
	switch difficulty {
	case store.DifficultyHigh:
		return []int{1, 3, 7, 21}
	case store.DifficultyMedium:
		return []int{3, 7, 21}
	case store.DifficultyLow:
		return []int{7, 21}
	}
	return nil
}

func (p *DifficultyPolicy) Unit() time.Duration {
	return day
}

// stepFor maps an attempt index to its step ordinal. Only steps 1 and 2
// exist in this variant.
func (p *DifficultyPolicy) stepFor(difficulty store.Difficulty, index int) int {
	switch difficulty {
	case store.DifficultyHigh:
		if index <= 1 {
			return 1
		}
		return 2
	default:
		if index == 0 {
			return 1
		}
		return 2
	}
}

func (p *DifficultyPolicy) NextOnSolve(_, count int, difficulty store.Difficulty) (int, int, bool) {
	intervals := p.Intervals(0, difficulty)
	next := count + 1
	if next >= len(intervals) {
		return 0, 0, true
	}
	return p.stepFor(difficulty, next), next, false
}

func (p *DifficultyPolicy) NextOnFail(step, count int, difficulty store.Difficulty) (int, int) {
	intervals := p.Intervals(0, difficulty)
	if len(intervals) == 0 {
		return step, count + 1
	}
	// The attempt index stays within the table: a failure at the end keeps
	// rescheduling at the last interval instead of running past it.
	next := count + 1
	if next > len(intervals)-1 {
		next = len(intervals) - 1
	}
	return p.stepFor(difficulty, next), next
}
