package directory

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/service-request-engine/internal/domain"
)

type pgCompanyDirectory struct {
	pool *pgxpool.Pool
}

// NewCompanyDirectory returns a Postgres-backed company directory.
func NewCompanyDirectory(pool *pgxpool.Pool) CompanyDirectory {
	return &pgCompanyDirectory{pool: pool}
}

func (d *pgCompanyDirectory) Resolve(ctx context.Context, companyID string) (*domain.Company, error) {
	const query = `
        SELECT id, name, status, type, created_at, updated_at
        FROM companies WHERE id=$1`
	var company domain.Company
	err := d.pool.QueryRow(ctx, query, companyID).Scan(
		&company.ID,
		&company.Name,
		&company.Status,
		&company.Type,
		&company.CreatedAt,
		&company.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &company, nil
}
