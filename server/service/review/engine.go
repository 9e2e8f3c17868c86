package review

import (
	"context"

	"github.com/codedrill/codedrill/store"
)

// CreateProblemRequest is the caller input for registering a problem.
type CreateProblemRequest struct {
	Number     *int
	Name       string
	Category   *store.Category
	Difficulty store.Difficulty
}

// DeleteProblemRequest identifies a problem by name or by number. Name wins
// when both are set; a number matching more than one problem is rejected.
type DeleteProblemRequest struct {
	Name   string
	Number *int
}

// SearchProblemRequest filters the owner's problems.
type SearchProblemRequest struct {
	Name   *string
	Number *int
	Status *store.Status
}

// Engine is the review state machine. The durable Service and the in-memory
// SessionService implement the same transitions; the router picks one based
// on whether the caller is signed in.
type Engine interface {
	Create(ctx context.Context, ownerID int32, create *CreateProblemRequest) (*store.Problem, error)
	Solve(ctx context.Context, ownerID int32, name string) (*store.Problem, error)
	Fail(ctx context.Context, ownerID int32, name string) (*store.Problem, error)
	Graduate(ctx context.Context, ownerID int32, name string) (*store.Problem, error)
	Delete(ctx context.Context, ownerID int32, delete *DeleteProblemRequest) error

	// ListToday returns ACTIVE problems due today or earlier.
	ListToday(ctx context.Context, ownerID int32) ([]*store.Problem, error)
	// ListActive returns all ACTIVE problems ordered by due date.
	ListActive(ctx context.Context, ownerID int32) ([]*store.Problem, error)
	Search(ctx context.Context, ownerID int32, find *SearchProblemRequest) ([]*store.Problem, error)
}
