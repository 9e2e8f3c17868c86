// Package rollover implements the nightly catch-up sweep. Problems whose
// due date slid into the past without being acted on are advanced by whole
// missed units. The sweep never touches step, count, or status and writes
// no review log: it models the passage of time, not a review action.
package rollover

import (
	"context"
	"log/slog"
	"time"

	"github.com/codedrill/codedrill/internal/clock"
	"github.com/codedrill/codedrill/store"
)

// Storage is the slice of the store the sweep depends on.
type Storage interface {
	ListProblems(ctx context.Context, find *store.FindProblem) ([]*store.Problem, error)
	UpdateProblem(ctx context.Context, update *store.UpdateProblem) (*store.Problem, error)
}

type Runner struct {
	store Storage
	clock clock.Clock
	// unit is the schedule granularity; overdue time is advanced in whole
	// units only.
	unit time.Duration
	// minute is how many minutes past midnight the daily sweep fires.
	minute int
}

// NewRunner creates a rollover runner firing daily at the given minute
// past midnight in the clock's zone.
func NewRunner(storage Storage, c clock.Clock, unit time.Duration, minute int) *Runner {
	return &Runner{store: storage, clock: c, unit: unit, minute: minute}
}

// Run starts the daily sweep loop. One sweep runs immediately to catch up
// after downtime.
func (r *Runner) Run(ctx context.Context) {
	r.sweep(ctx)

	for {
		next := nextRunAt(r.clock.Now(), r.minute)
		timer := time.NewTimer(next.Sub(r.clock.Now()))
		select {
		case <-ctx.Done():
			timer.Stop()
			slog.Info("rollover runner stopped")
			return
		case <-timer.C:
			r.sweep(ctx)
		}
	}
}

// RunOnce performs a single sweep (for tests and manual triggering).
func (r *Runner) RunOnce(ctx context.Context) {
	r.sweep(ctx)
}

func (r *Runner) sweep(ctx context.Context) {
	now := r.clock.Now()
	nowTs := now.Unix()
	active := store.Active
	overdue, err := r.store.ListProblems(ctx, &store.FindProblem{
		Status:           &active,
		NextReviewBefore: &nowTs,
	})
	if err != nil {
		slog.Error("rollover sweep failed to list problems", "error", err)
		return
	}

	advanced := 0
	for _, problem := range overdue {
		if problem.NextReviewTs == nil {
			continue
		}
		missed := (nowTs - *problem.NextReviewTs) / int64(r.unit/time.Second)
		if missed <= 0 {
			continue
		}
		newDue := *problem.NextReviewTs + missed*int64(r.unit/time.Second)
		if _, err := r.store.UpdateProblem(ctx, &store.UpdateProblem{
			ID:           problem.ID,
			Version:      problem.Version,
			NextReviewTs: &newDue,
			UpdatedTs:    &nowTs,
		}); err != nil {
			// One bad or concurrently modified row must not block the
			// rest of the sweep.
			slog.Warn("rollover skipped problem", "id", problem.ID, "error", err)
			continue
		}
		advanced++
	}

	if advanced > 0 {
		slog.Info("rollover sweep advanced overdue problems", "count", advanced, "scanned", len(overdue))
	}
}

// nextRunAt returns the next daily fire instant after now.
func nextRunAt(now time.Time, minute int) time.Time {
	year, month, day := now.Date()
	next := time.Date(year, month, day, 0, minute, 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}
