package auth

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/spec-kit/service-request-engine/internal/config"
	"github.com/spec-kit/service-request-engine/internal/domain"
)

// EnsureBootstrapAdmin seeds a super-admin directory entry for local
// development when BOOTSTRAP_ADMIN_EMAIL is set. Production directories
// are managed by the external identity service.
func EnsureBootstrapAdmin(ctx context.Context, pool *pgxpool.Pool, cfg config.AuthConfig, logger *zap.Logger) error {
	if pool == nil || cfg.BootstrapAdminEmail == "" || cfg.BootstrapAdminPass == "" {
		return nil
	}

	hash, err := HashPassword(cfg.BootstrapAdminPass, cfg.BcryptCost)
	if err != nil {
		return err
	}

	const query = `
        INSERT INTO users (name, email, password_hash, role, status)
        VALUES ('Bootstrap Admin', $1, $2, $3, $4)
        ON CONFLICT (email) DO NOTHING`
	cmd, err := pool.Exec(ctx, query,
		cfg.BootstrapAdminEmail, hash, domain.RoleSuperAdmin, domain.UserStatusActive)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() > 0 {
		logger.Info("seeded bootstrap admin", zap.String("email", cfg.BootstrapAdminEmail))
	}
	return nil
}
