package auth

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/service-request-engine/internal/directory"
	"github.com/spec-kit/service-request-engine/internal/domain"
	apperrors "github.com/spec-kit/service-request-engine/pkg/util/errorutil"
)

const principalKey = "auth_principal"

// CompanyContextHeader carries the company scope an admin declares to act
// in for this request.
const CompanyContextHeader = "X-Company-Context"

// AuthMiddleware validates bearer tokens and loads principals from the
// user directory.
type AuthMiddleware struct {
	tokens *TokenManager
	users  directory.UserDirectory
}

// NewAuthMiddleware constructs middleware.
func NewAuthMiddleware(tokens *TokenManager, users directory.UserDirectory) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens, users: users}
}

// Handle enforces authentication for protected routes.
func (m *AuthMiddleware) Handle(c *fiber.Ctx) error {
	authHeader := c.Get("Authorization")
	if authHeader == "" {
		return apperrors.NewUnauthorized("missing authorization header")
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return apperrors.NewUnauthorized("invalid authorization header")
	}

	claims, err := m.tokens.ParseToken(parts[1])
	if err != nil {
		return apperrors.NewUnauthorized("invalid token")
	}

	user, err := m.users.Resolve(c.Context(), claims.SubjectID)
	if err != nil {
		return apperrors.MapError(err)
	}
	if user == nil {
		return apperrors.NewUnauthorized("user not found")
	}
	if user.Status != domain.UserStatusActive {
		return apperrors.NewForbidden("user suspended")
	}

	principal := &domain.Principal{
		UserID: user.ID,
		Name:   user.Name,
		Role:   user.Role,
	}
	if contextCompany := strings.TrimSpace(c.Get(CompanyContextHeader)); contextCompany != "" {
		principal.ContextCompanyID = &contextCompany
	}

	c.Locals(principalKey, principal)
	return c.Next()
}

// PrincipalFromContext retrieves the authenticated entity.
func PrincipalFromContext(c *fiber.Ctx) (*domain.Principal, bool) {
	val := c.Locals(principalKey)
	if val == nil {
		return nil, false
	}
	principal, ok := val.(*domain.Principal)
	return principal, ok
}
