package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/codedrill/codedrill/store"
)

func (d *DB) CreateUser(ctx context.Context, create *store.User) (*store.User, error) {
	stmt := `INSERT INTO "user" (email, password_hash)
		VALUES (` + placeholders(2) + `)
		RETURNING id, created_ts`

	if err := d.db.QueryRowContext(ctx, stmt, create.Email, create.PasswordHash).Scan(
		&create.ID,
		&create.CreatedTs,
	); err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrUniqueViolation
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return create, nil
}

func (d *DB) ListUsers(ctx context.Context, find *store.FindUser) ([]*store.User, error) {
	where, args := []string{"1 = 1"}, []any{}

	if v := find.ID; v != nil {
		where, args = append(where, `"user".id = `+placeholder(len(args)+1)), append(args, *v)
	}
	if v := find.Email; v != nil {
		where, args = append(where, `"user".email = `+placeholder(len(args)+1)), append(args, *v)
	}

	query := `
		SELECT id, email, password_hash, created_ts
		FROM "user"
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY "user".id ASC`

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	list := make([]*store.User, 0)
	for rows.Next() {
		var user store.User
		if err := rows.Scan(
			&user.ID,
			&user.Email,
			&user.PasswordHash,
			&user.CreatedTs,
		); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		list = append(list, &user)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate users: %w", err)
	}

	return list, nil
}
