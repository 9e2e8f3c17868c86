package postgres

import (
	"context"

	"github.com/pkg/errors"

	"github.com/codedrill/codedrill/store"
)

// ApplyReview persists a problem state transition together with its review
// log entry in a single transaction. The update carries the version guard,
// so a concurrent transition rolls back both writes.
func (d *DB) ApplyReview(ctx context.Context, update *store.UpdateProblem, create *store.ReviewLog) (*store.Problem, error) {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	problem, err := updateProblem(ctx, tx, update)
	if err != nil {
		return nil, err
	}
	if _, err := createReviewLog(ctx, tx, create); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, errors.Wrap(err, "failed to commit transaction")
	}
	return problem, nil
}
