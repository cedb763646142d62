package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/service-request-engine/internal/domain"
)

func TestTokenRoundTrip(t *testing.T) {
	tm := NewTokenManager("test-secret", 30)

	token, expiresAt, err := tm.GenerateToken("u-1", domain.RoleAdmin)
	require.NoError(t, err)
	assert.True(t, expiresAt.After(time.Now()))

	claims, err := tm.ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, "u-1", claims.SubjectID)
	assert.Equal(t, domain.RoleAdmin, claims.Role)
}

func TestParseTokenRejectsWrongSecret(t *testing.T) {
	tm := NewTokenManager("test-secret", 30)
	other := NewTokenManager("other-secret", 30)

	token, _, err := tm.GenerateToken("u-1", domain.RoleUser)
	require.NoError(t, err)

	_, err = other.ParseToken(token)
	assert.Error(t, err)
}

func TestParseTokenRejectsGarbage(t *testing.T) {
	tm := NewTokenManager("test-secret", 30)
	_, err := tm.ParseToken("not.a.jwt")
	assert.Error(t, err)
}

func TestPasswordHashAndVerify(t *testing.T) {
	hash, err := HashPassword("hunter2-but-longer", 4)
	require.NoError(t, err)

	assert.True(t, VerifyPassword(hash, "hunter2-but-longer"))
	assert.False(t, VerifyPassword(hash, "wrong"))
}
