package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/codedrill/codedrill/store"
)

func (d *DB) CreateReviewLog(ctx context.Context, create *store.ReviewLog) (*store.ReviewLog, error) {
	return createReviewLog(ctx, d.db, create)
}

func createReviewLog(ctx context.Context, q queryer, create *store.ReviewLog) (*store.ReviewLog, error) {
	fields := []string{
		"problem_id", "action", "action_date",
		"before_step", "before_review_count", "after_step", "after_review_count",
	}
	placeholderValues := []any{
		create.ProblemID, create.Action, create.ActionDate,
		create.BeforeStep, create.BeforeReviewCount, create.AfterStep, create.AfterReviewCount,
	}

	if create.CreatedTs != 0 {
		fields = append(fields, "created_ts")
		placeholderValues = append(placeholderValues, create.CreatedTs)
	}

	stmt := `INSERT INTO review_log (` + strings.Join(fields, ", ") + `)
		VALUES (` + placeholders(len(placeholderValues)) + `)
		RETURNING id, created_ts`

	if err := q.QueryRowContext(ctx, stmt, placeholderValues...).Scan(
		&create.ID,
		&create.CreatedTs,
	); err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrUniqueViolation
		}
		return nil, fmt.Errorf("failed to create review log: %w", err)
	}

	return create, nil
}

func (d *DB) ListReviewLogs(ctx context.Context, find *store.FindReviewLog) ([]*store.ReviewLog, error) {
	where, args := []string{"1 = 1"}, []any{}

	if v := find.ID; v != nil {
		where, args = append(where, "review_log.id = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := find.ProblemID; v != nil {
		where, args = append(where, "review_log.problem_id = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := find.CreatorID; v != nil {
		where, args = append(where, "problem.creator_id = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := find.Action; v != nil {
		where, args = append(where, "review_log.action = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := find.ActionDate; v != nil {
		where, args = append(where, "review_log.action_date = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := find.ActionDateFrom; v != nil {
		where, args = append(where, "review_log.action_date >= "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := find.ActionDateTo; v != nil {
		where, args = append(where, "review_log.action_date <= "+placeholder(len(args)+1)), append(args, *v)
	}

	query := `
		SELECT
			review_log.id, review_log.problem_id, review_log.action, review_log.action_date,
			review_log.before_step, review_log.before_review_count,
			review_log.after_step, review_log.after_review_count,
			review_log.created_ts
		FROM review_log
		JOIN problem ON problem.id = review_log.problem_id
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY review_log.action_date ASC, review_log.id ASC`

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query review logs: %w", err)
	}
	defer rows.Close()

	list := make([]*store.ReviewLog, 0)
	for rows.Next() {
		var log store.ReviewLog
		if err := rows.Scan(
			&log.ID,
			&log.ProblemID,
			&log.Action,
			&log.ActionDate,
			&log.BeforeStep,
			&log.BeforeReviewCount,
			&log.AfterStep,
			&log.AfterReviewCount,
			&log.CreatedTs,
		); err != nil {
			return nil, fmt.Errorf("failed to scan review log: %w", err)
		}
		list = append(list, &log)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate review logs: %w", err)
	}

	return list, nil
}
