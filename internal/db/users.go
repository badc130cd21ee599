package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/john-revops11/keyword-gemini-insight/internal/models"
)

const upsertUserSQL = `
	INSERT INTO users (id, sub, email, name, picture, created_at, updated_at)
	VALUES (%s)
	ON CONFLICT (sub) DO UPDATE SET
		email = EXCLUDED.email,
		name = EXCLUDED.name,
		picture = EXCLUDED.picture,
		updated_at = EXCLUDED.updated_at
	RETURNING id, created_at, updated_at
`

const userBySubSQL = `
	SELECT id, sub, email, name, picture, created_at, updated_at
	FROM users WHERE sub = %s
`

// UpsertUser creates or updates a user based on their OIDC subject.
func (d *DB) UpsertUser(ctx context.Context, user *models.User) error {
	args := userArgs(user)
	return d.Pool.QueryRow(ctx, userSQL(upsertUserSQL, dialectPostgres, len(args)), args...).
		Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)
}

// GetUserBySub retrieves a user by their OIDC subject identifier.
func (d *DB) GetUserBySub(ctx context.Context, sub string) (*models.User, error) {
	var user models.User
	err := d.Pool.QueryRow(ctx, userSQL(userBySubSQL, dialectPostgres, 1), sub).Scan(
		&user.ID,
		&user.Sub,
		&user.Email,
		&user.Name,
		&user.Picture,
		&user.CreatedAt,
		&user.UpdatedAt,
	)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}

	return &user, nil
}
