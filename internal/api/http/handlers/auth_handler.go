package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/service-request-engine/internal/api/dto"
	"github.com/spec-kit/service-request-engine/internal/auth"
	"github.com/spec-kit/service-request-engine/internal/directory"
	apperrors "github.com/spec-kit/service-request-engine/pkg/util/errorutil"
)

// AuthHandler mints development tokens. Production token issuance is the
// external identity service's job; this route is only registered in dev.
type AuthHandler struct {
	tokens *auth.TokenManager
	users  directory.UserDirectory
}

// NewAuthHandler constructs handler.
func NewAuthHandler(tokens *auth.TokenManager, users directory.UserDirectory) *AuthHandler {
	return &AuthHandler{tokens: tokens, users: users}
}

// DevToken POST /auth/dev-token.
func (h *AuthHandler) DevToken(c *fiber.Ctx) error {
	var payload dto.DevTokenRequest
	if err := c.BodyParser(&payload); err != nil {
		return apperrors.NewInvalidArgument("invalid payload", nil)
	}
	if payload.Email == "" || payload.Password == "" {
		return apperrors.NewInvalidArgument("email and password required", nil)
	}

	user, err := h.users.ResolveByEmail(c.Context(), payload.Email)
	if err != nil {
		return apperrors.MapError(err)
	}
	if user == nil || !auth.VerifyPassword(user.PasswordHash, payload.Password) {
		return apperrors.NewUnauthorized("invalid credentials")
	}

	token, expiresAt, err := h.tokens.GenerateToken(user.ID, user.Role)
	if err != nil {
		return apperrors.MapError(err)
	}
	return c.JSON(fiber.Map{"data": dto.DevTokenResponse{Token: token, ExpiresAt: expiresAt}})
}
