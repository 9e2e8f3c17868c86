package store

import (
	"context"
)

// Action is the kind of review action recorded in a log row.
type Action string

const (
	// ActionSolve records a successful review. Graduation reuses SOLVE.
	ActionSolve Action = "SOLVE"
	// ActionFail records a failed review.
	ActionFail Action = "FAIL"
)

// IsValid reports whether a is a known action.
func (a Action) IsValid() bool {
	return a == ActionSolve || a == ActionFail
}

// ReviewLog is one append-only row of the per-day idempotency ledger. Rows
// are never updated or deleted by the engine; at most one row exists per
// (problem, action date, action), enforced by a unique index.
type ReviewLog struct {
	ID        int32
	ProblemID int32
	Action    Action
	// ActionDate is the caller's logical calendar day (YYYY-MM-DD in the
	// operating timezone), not a wall-clock instant.
	ActionDate string

	BeforeStep        int
	BeforeReviewCount int
	AfterStep         int
	AfterReviewCount  int

	CreatedTs int64
}

// FindReviewLog is the find condition for review logs.
type FindReviewLog struct {
	ID        *int32
	ProblemID *int32
	// CreatorID filters through the owning problem (dashboard queries).
	CreatorID *int32
	Action    *Action

	ActionDate *string
	// ActionDateFrom/To bound the date range inclusively.
	ActionDateFrom *string
	ActionDateTo   *string
}

// CreateReviewLog appends a log row. A duplicate (problem, date, action)
// fails with ErrUniqueViolation.
func (s *Store) CreateReviewLog(ctx context.Context, create *ReviewLog) (*ReviewLog, error) {
	return s.driver.CreateReviewLog(ctx, create)
}

// ListReviewLogs lists log rows with filter.
func (s *Store) ListReviewLogs(ctx context.Context, find *FindReviewLog) ([]*ReviewLog, error) {
	return s.driver.ListReviewLogs(ctx, find)
}

// ApplyReview updates a problem and appends its log row atomically. Either
// both writes commit or the problem is left untouched.
func (s *Store) ApplyReview(ctx context.Context, update *UpdateProblem, log *ReviewLog) (*Problem, error) {
	return s.driver.ApplyReview(ctx, update, log)
}
