package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/service-request-engine/internal/domain"
	apperrors "github.com/spec-kit/service-request-engine/pkg/util/errorutil"
)

func strptr(v string) *string { return &v }

func TestEnsureScopeMatrix(t *testing.T) {
	tests := []struct {
		name     string
		role     domain.ActorRole
		context  *string
		target   *string
		wantCode string
	}{
		{"super admin without context", domain.RoleSuperAdmin, nil, strptr("c1"), ""},
		{"super admin matching context", domain.RoleSuperAdmin, strptr("c1"), strptr("c1"), ""},
		{"super admin mismatched context", domain.RoleSuperAdmin, strptr("c2"), strptr("c1"), "INVALID_ARGUMENT"},
		{"super admin on company-less record", domain.RoleSuperAdmin, strptr("c1"), nil, ""},
		{"admin without context", domain.RoleAdmin, nil, strptr("c1"), "INVALID_ARGUMENT"},
		{"admin empty context", domain.RoleAdmin, strptr(""), strptr("c1"), "INVALID_ARGUMENT"},
		{"admin matching context", domain.RoleAdmin, strptr("c1"), strptr("c1"), ""},
		{"admin mismatched context", domain.RoleAdmin, strptr("c2"), strptr("c1"), "INVALID_ARGUMENT"},
		{"admin on company-less record", domain.RoleAdmin, strptr("c1"), nil, ""},
		{"standard user", domain.RoleUser, strptr("c1"), strptr("c1"), "FORBIDDEN"},
		{"unknown role", domain.ActorRole("AUDITOR"), strptr("c1"), strptr("c1"), "FORBIDDEN"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ensureScope(tt.role, tt.context, tt.target)
			if tt.wantCode == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tt.wantCode, apperrors.CodeOf(err))
		})
	}
}

func TestFieldAllowedForRole(t *testing.T) {
	assert.True(t, fieldAllowedForRole("title", domain.RoleUser))
	assert.True(t, fieldAllowedForRole("machine_repair_details", domain.RoleUser))
	assert.False(t, fieldAllowedForRole("status", domain.RoleUser))
	assert.False(t, fieldAllowedForRole("assigned_to", domain.RoleUser))
	assert.False(t, fieldAllowedForRole("company_id", domain.RoleUser))

	assert.False(t, fieldAllowedForRole("metadata", domain.RoleUser))

	assert.True(t, fieldAllowedForRole("status", domain.RoleAdmin))
	assert.True(t, fieldAllowedForRole("metadata", domain.RoleAdmin))
	assert.True(t, fieldAllowedForRole("service_type", domain.RoleSuperAdmin))
	assert.False(t, fieldAllowedForRole("created_by", domain.RoleSuperAdmin))
}

func TestSanitizeContentUpdatesDropsUnknownKeys(t *testing.T) {
	sanitized := sanitizeContentUpdates(map[string]any{
		"title":       "Replace spindle bearing",
		"description": "Bearing is seized",
		"status":      "COMPLETED",
		"assigned_to": "u-99",
		"foo":         "bar",
		"metadata":    map[string]any{"source": "portal"},
	})

	assert.Equal(t, map[string]any{
		"title":       "Replace spindle bearing",
		"description": "Bearing is seized",
		"metadata":    map[string]any{"source": "portal"},
	}, sanitized)
}

func TestSanitizeContentUpdatesEmptyInput(t *testing.T) {
	assert.Empty(t, sanitizeContentUpdates(nil))
	assert.Empty(t, sanitizeContentUpdates(map[string]any{"foo": "bar"}))
}
