package store

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"
)

// Sentinel errors drivers translate backend-specific failures into.
var (
	// ErrUniqueViolation is returned when an insert hits a unique index:
	// duplicate (owner, name) on problems, duplicate (problem, date,
	// action) on review logs, duplicate email on users.
	ErrUniqueViolation = errors.New("unique constraint violation")
	// ErrStaleVersion is returned when a guarded update carries a version
	// token that no longer matches the stored row.
	ErrStaleVersion = errors.New("stale version")
	// ErrNotFound is returned when an update or delete matches no row.
	ErrNotFound = errors.New("record not found")
)

// Driver is an interface for store driver.
// It contains all methods that store database driver should implement.
type Driver interface {
	GetDB() *sql.DB
	Close() error

	IsInitialized(ctx context.Context) (bool, error)

	// Problem model related methods.
	CreateProblem(ctx context.Context, create *Problem) (*Problem, error)
	ListProblems(ctx context.Context, find *FindProblem) ([]*Problem, error)
	UpdateProblem(ctx context.Context, update *UpdateProblem) (*Problem, error)
	DeleteProblem(ctx context.Context, delete *DeleteProblem) error

	// ReviewLog model related methods.
	CreateReviewLog(ctx context.Context, create *ReviewLog) (*ReviewLog, error)
	ListReviewLogs(ctx context.Context, find *FindReviewLog) ([]*ReviewLog, error)

	// ApplyReview runs a guarded problem update and a review log insert in
	// one transaction.
	ApplyReview(ctx context.Context, update *UpdateProblem, log *ReviewLog) (*Problem, error)

	// User model related methods.
	CreateUser(ctx context.Context, create *User) (*User, error)
	ListUsers(ctx context.Context, find *FindUser) ([]*User, error)
}
