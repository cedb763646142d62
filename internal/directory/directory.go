package directory

import (
	"context"

	"github.com/spec-kit/service-request-engine/internal/domain"
)

// UserDirectory resolves acting principals and history actors. The engine
// consumes it read-only; a nil result with nil error means "unknown user".
type UserDirectory interface {
	Resolve(ctx context.Context, userID string) (*domain.User, error)
	ResolveByEmail(ctx context.Context, email string) (*domain.User, error)
}

// CompanyDirectory resolves tenant companies for response shaping and
// scope checks. Read-only for the engine.
type CompanyDirectory interface {
	Resolve(ctx context.Context, companyID string) (*domain.Company, error)
}
