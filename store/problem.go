package store

import (
	"context"
	"time"
)

// Status is the lifecycle status of a problem.
type Status string

const (
	// Active means the problem is in rotation and has a next review date.
	Active Status = "ACTIVE"
	// Graduated means the problem left active rotation.
	Graduated Status = "GRADUATED"
)

// Difficulty classifies how hard a problem is. It drives the interval lookup
// in difficulty-indexed policies.
type Difficulty string

const (
	DifficultyHigh   Difficulty = "HIGH"
	DifficultyMedium Difficulty = "MEDIUM"
	DifficultyLow    Difficulty = "LOW"
)

// IsValid reports whether d is a known difficulty.
func (d Difficulty) IsValid() bool {
	switch d {
	case DifficultyHigh, DifficultyMedium, DifficultyLow:
		return true
	}
	return false
}

// Category is an optional problem classification.
type Category string

const (
	CategoryDP             Category = "DP"
	CategoryGreedy         Category = "GREEDY"
	CategoryGraph          Category = "GRAPH"
	CategoryString         Category = "STRING"
	CategoryBinarySearch   Category = "BINARY_SEARCH"
	CategoryDataStructure  Category = "DATA_STRUCTURE"
	CategoryImplementation Category = "IMPLEMENTATION"
	CategoryMath           Category = "MATH"
	CategoryEtc            Category = "ETC"
)

// IsValid reports whether c is a known category.
func (c Category) IsValid() bool {
	switch c {
	case CategoryDP, CategoryGreedy, CategoryGraph, CategoryString,
		CategoryBinarySearch, CategoryDataStructure, CategoryImplementation,
		CategoryMath, CategoryEtc:
		return true
	}
	return false
}

// Problem is the schedulable entity.
type Problem struct {
	ID  int32
	UID string
	// CreatorID scopes the problem to its owner. All lookups and
	// uniqueness checks are owner-scoped.
	CreatorID int32
	CreatedTs int64
	UpdatedTs int64

	Number     *int
	Name       string
	Category   *Category
	Difficulty Difficulty

	// ReviewStep is the coarse rotation tier, advanced only on success.
	ReviewStep int
	// ReviewCount indexes into the current step's interval list. It resets
	// on success and increments on failure.
	ReviewCount int
	// NextReviewTs is nil only when Status is GRADUATED.
	NextReviewTs *int64
	Status       Status

	// Version is the optimistic concurrency token. Stale writes are
	// rejected by the store.
	Version int32
}

// NextReviewTime returns the next review instant in loc, or the zero time
// when the problem is graduated.
func (p *Problem) NextReviewTime(loc *time.Location) time.Time {
	if p.NextReviewTs == nil {
		return time.Time{}
	}
	return time.Unix(*p.NextReviewTs, 0).In(loc)
}

// FindProblem is the find condition for problems.
type FindProblem struct {
	ID        *int32
	UID       *string
	CreatorID *int32
	Name      *string
	Number    *int
	Status    *Status

	// NextReviewBefore matches ACTIVE rows strictly overdue at the given
	// instant (rollover scan).
	NextReviewBefore *int64
	// NextReviewNotAfter matches rows due at or before the given instant
	// (today listing).
	NextReviewNotAfter *int64

	Limit  *int
	Offset *int
}

// UpdateProblem is the guarded update request for a problem. Version must
// match the stored row or the update fails with ErrStaleVersion.
type UpdateProblem struct {
	ID      int32
	Version int32

	Name         *string
	Number       *int
	Category     *Category
	Difficulty   *Difficulty
	ReviewStep   *int
	ReviewCount  *int
	NextReviewTs *int64
	// ClearNextReview sets next_review_ts to NULL (graduation).
	ClearNextReview bool
	Status          *Status
	UpdatedTs       *int64
}

// DeleteProblem is the delete request for a problem. Review logs cascade.
type DeleteProblem struct {
	ID int32
}

// CreateProblem creates a new problem.
func (s *Store) CreateProblem(ctx context.Context, create *Problem) (*Problem, error) {
	return s.driver.CreateProblem(ctx, create)
}

// ListProblems lists problems with filter.
func (s *Store) ListProblems(ctx context.Context, find *FindProblem) ([]*Problem, error) {
	return s.driver.ListProblems(ctx, find)
}

// GetProblem gets a single problem, or nil when nothing matches.
func (s *Store) GetProblem(ctx context.Context, find *FindProblem) (*Problem, error) {
	list, err := s.driver.ListProblems(ctx, find)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, nil
	}
	return list[0], nil
}

// UpdateProblem applies a version-guarded update and returns the updated row.
func (s *Store) UpdateProblem(ctx context.Context, update *UpdateProblem) (*Problem, error) {
	return s.driver.UpdateProblem(ctx, update)
}

// DeleteProblem deletes a problem and its review logs.
func (s *Store) DeleteProblem(ctx context.Context, delete *DeleteProblem) error {
	return s.driver.DeleteProblem(ctx, delete)
}
