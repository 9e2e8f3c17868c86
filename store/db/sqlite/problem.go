package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/codedrill/codedrill/store"
)

func (d *DB) CreateProblem(ctx context.Context, create *store.Problem) (*store.Problem, error) {
	fields := []string{
		"uid", "creator_id", "number", "name", "category", "difficulty",
		"review_step", "review_count", "next_review_ts", "status",
	}
	var category *string
	if create.Category != nil {
		v := string(*create.Category)
		category = &v
	}
	placeholderValues := []any{
		create.UID, create.CreatorID, create.Number, create.Name, category,
		create.Difficulty, create.ReviewStep, create.ReviewCount,
		create.NextReviewTs, create.Status,
	}

	if create.CreatedTs != 0 {
		fields = append(fields, "created_ts")
		placeholderValues = append(placeholderValues, create.CreatedTs)
	}
	if create.UpdatedTs != 0 {
		fields = append(fields, "updated_ts")
		placeholderValues = append(placeholderValues, create.UpdatedTs)
	}

	stmt := `INSERT INTO problem (` + strings.Join(fields, ", ") + `)
		VALUES (` + placeholders(len(placeholderValues)) + `)
		RETURNING id, created_ts, updated_ts, version`

	if err := d.db.QueryRowContext(ctx, stmt, placeholderValues...).Scan(
		&create.ID,
		&create.CreatedTs,
		&create.UpdatedTs,
		&create.Version,
	); err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrUniqueViolation
		}
		return nil, fmt.Errorf("failed to create problem: %w", err)
	}

	return create, nil
}

func (d *DB) ListProblems(ctx context.Context, find *store.FindProblem) ([]*store.Problem, error) {
	where, args := []string{"1 = 1"}, []any{}

	if v := find.ID; v != nil {
		where, args = append(where, "problem.id = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := find.UID; v != nil {
		where, args = append(where, "problem.uid = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := find.CreatorID; v != nil {
		where, args = append(where, "problem.creator_id = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := find.Name; v != nil {
		where, args = append(where, "problem.name = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := find.Number; v != nil {
		where, args = append(where, "problem.number = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := find.Status; v != nil {
		where, args = append(where, "problem.status = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := find.NextReviewBefore; v != nil {
		where, args = append(where, "problem.next_review_ts < "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := find.NextReviewNotAfter; v != nil {
		where, args = append(where, "problem.next_review_ts <= "+placeholder(len(args)+1)), append(args, *v)
	}

	query := `
		SELECT
			id, uid, creator_id, created_ts, updated_ts,
			number, name, category, difficulty,
			review_step, review_count, next_review_ts, status, version
		FROM problem
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY problem.next_review_ts IS NULL, problem.next_review_ts ASC, problem.id ASC`

	if find.Limit != nil {
		query = fmt.Sprintf("%s LIMIT %d", query, *find.Limit)
		if find.Offset != nil {
			query = fmt.Sprintf("%s OFFSET %d", query, *find.Offset)
		}
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query problems: %w", err)
	}
	defer rows.Close()

	list := make([]*store.Problem, 0)
	for rows.Next() {
		problem, err := scanProblem(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, problem)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate problems: %w", err)
	}

	return list, nil
}

func scanProblem(rows *sql.Rows) (*store.Problem, error) {
	var problem store.Problem
	var number, nextReviewTs sql.NullInt64
	var category sql.NullString

	if err := rows.Scan(
		&problem.ID,
		&problem.UID,
		&problem.CreatorID,
		&problem.CreatedTs,
		&problem.UpdatedTs,
		&number,
		&problem.Name,
		&category,
		&problem.Difficulty,
		&problem.ReviewStep,
		&problem.ReviewCount,
		&nextReviewTs,
		&problem.Status,
		&problem.Version,
	); err != nil {
		return nil, fmt.Errorf("failed to scan problem: %w", err)
	}

	if number.Valid {
		n := int(number.Int64)
		problem.Number = &n
	}
	if category.Valid {
		c := store.Category(category.String)
		problem.Category = &c
	}
	if nextReviewTs.Valid {
		problem.NextReviewTs = &nextReviewTs.Int64
	}
	return &problem, nil
}

func (d *DB) UpdateProblem(ctx context.Context, update *store.UpdateProblem) (*store.Problem, error) {
	return updateProblem(ctx, d.db, update)
}

func updateProblem(ctx context.Context, q queryer, update *store.UpdateProblem) (*store.Problem, error) {
	set, args := []string{"version = version + 1"}, []any{}

	if v := update.Name; v != nil {
		set, args = append(set, "name = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := update.Number; v != nil {
		set, args = append(set, "number = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := update.Category; v != nil {
		set, args = append(set, "category = "+placeholder(len(args)+1)), append(args, string(*v))
	}
	if v := update.Difficulty; v != nil {
		set, args = append(set, "difficulty = "+placeholder(len(args)+1)), append(args, string(*v))
	}
	if v := update.ReviewStep; v != nil {
		set, args = append(set, "review_step = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := update.ReviewCount; v != nil {
		set, args = append(set, "review_count = "+placeholder(len(args)+1)), append(args, *v)
	}
	if update.ClearNextReview {
		set = append(set, "next_review_ts = NULL")
	} else if v := update.NextReviewTs; v != nil {
		set, args = append(set, "next_review_ts = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := update.Status; v != nil {
		set, args = append(set, "status = "+placeholder(len(args)+1)), append(args, string(*v))
	}
	if v := update.UpdatedTs; v != nil {
		set, args = append(set, "updated_ts = "+placeholder(len(args)+1)), append(args, *v)
	}

	args = append(args, update.ID, update.Version)

	stmt := `UPDATE problem SET ` + strings.Join(set, ", ") + `
		WHERE id = ` + placeholder(len(args)-1) + ` AND version = ` + placeholder(len(args)) + `
		RETURNING
			id, uid, creator_id, created_ts, updated_ts,
			number, name, category, difficulty,
			review_step, review_count, next_review_ts, status, version`

	rows, err := q.QueryContext(ctx, stmt, args...)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrUniqueViolation
		}
		return nil, fmt.Errorf("failed to update problem: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("failed to update problem: %w", err)
		}
		return nil, staleOrMissing(ctx, q, update.ID)
	}
	problem, err := scanProblem(rows)
	if err != nil {
		return nil, err
	}
	return problem, nil
}

// staleOrMissing distinguishes a version conflict from a deleted row.
func staleOrMissing(ctx context.Context, q queryer, id int32) error {
	var count int
	if err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM problem WHERE id = ?`, id).Scan(&count); err != nil {
		return fmt.Errorf("failed to check problem existence: %w", err)
	}
	if count > 0 {
		return store.ErrStaleVersion
	}
	return store.ErrNotFound
}

func (d *DB) DeleteProblem(ctx context.Context, delete *store.DeleteProblem) error {
	stmt := `DELETE FROM problem WHERE id = ` + placeholder(1)
	result, err := d.db.ExecContext(ctx, stmt, delete.ID)
	if err != nil {
		return fmt.Errorf("failed to delete problem: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return store.ErrNotFound
	}

	return nil
}
