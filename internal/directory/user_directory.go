package directory

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/service-request-engine/internal/domain"
)

type pgUserDirectory struct {
	pool *pgxpool.Pool
}

// NewUserDirectory returns a Postgres-backed user directory.
func NewUserDirectory(pool *pgxpool.Pool) UserDirectory {
	return &pgUserDirectory{pool: pool}
}

func (d *pgUserDirectory) Resolve(ctx context.Context, userID string) (*domain.User, error) {
	const query = `
        SELECT id, name, email, password_hash, role, status, created_at, updated_at
        FROM users WHERE id=$1`
	return d.fetchSingle(ctx, query, userID)
}

func (d *pgUserDirectory) ResolveByEmail(ctx context.Context, email string) (*domain.User, error) {
	const query = `
        SELECT id, name, email, password_hash, role, status, created_at, updated_at
        FROM users WHERE email=$1`
	return d.fetchSingle(ctx, query, email)
}

func (d *pgUserDirectory) fetchSingle(ctx context.Context, query string, arg any) (*domain.User, error) {
	var user domain.User
	err := d.pool.QueryRow(ctx, query, arg).Scan(
		&user.ID,
		&user.Name,
		&user.Email,
		&user.PasswordHash,
		&user.Role,
		&user.Status,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}
