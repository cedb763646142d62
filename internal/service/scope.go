package service

import (
	"github.com/spec-kit/service-request-engine/internal/domain"
	apperrors "github.com/spec-kit/service-request-engine/pkg/util/errorutil"
)

// ensureScope gates every mutation before the concurrency guard runs, so a
// caller without access learns nothing about record state.
//
// ADMIN must declare a company context and it must match the target's
// company. SUPER_ADMIN may act globally; a supplied context still has to
// match so a stale header cannot cause a cross-tenant write.
func ensureScope(role domain.ActorRole, contextCompanyID, targetCompanyID *string) error {
	switch role {
	case domain.RoleSuperAdmin:
		if contextCompanyID != nil && targetCompanyID != nil && *contextCompanyID != *targetCompanyID {
			return apperrors.NewInvalidArgument("company context must match the target company", nil)
		}
		return nil
	case domain.RoleAdmin:
		if contextCompanyID == nil || *contextCompanyID == "" {
			return apperrors.NewInvalidArgument("company context is required for admin mutations", nil)
		}
		if targetCompanyID != nil && *contextCompanyID != *targetCompanyID {
			return apperrors.NewInvalidArgument("company context must match the target company", nil)
		}
		return nil
	default:
		return apperrors.NewForbidden("insufficient role")
	}
}

// Field allow-lists. Over-posted fields are dropped, never rejected.
// userEditableFields is what a standard caller may set at creation;
// adminOnlyFields is the extra surface for ADMIN / SUPER_ADMIN.
// contentEditableFields is the fixed set for the content-edit path.
var (
	userEditableFields = map[string]struct{}{
		"title":                  {},
		"description":            {},
		"priority":               {},
		"contact":                {},
		"location":               {},
		"schedule":               {},
		"budget":                 {},
		"machine_repair_details": {},
		"worker_details":         {},
		"transport_details":      {},
		"notes":                  {},
	}

	adminOnlyFields = map[string]struct{}{
		"service_type": {},
		"status":       {},
		"assigned_to":  {},
		"company_id":   {},
		"metadata":     {},
	}

	contentEditableFields = map[string]struct{}{
		"title":                  {},
		"description":            {},
		"contact":                {},
		"location":               {},
		"schedule":               {},
		"budget":                 {},
		"machine_repair_details": {},
		"worker_details":         {},
		"transport_details":      {},
		"metadata":               {},
	}
)

// fieldAllowedForRole is the single gate for role-dependent creation
// fields; the create path consults it before honoring any of them.
func fieldAllowedForRole(field string, role domain.ActorRole) bool {
	if _, ok := userEditableFields[field]; ok {
		return true
	}
	if role == domain.RoleAdmin || role == domain.RoleSuperAdmin {
		_, ok := adminOnlyFields[field]
		return ok
	}
	return false
}

// sanitizeContentUpdates keeps only keys from the content allow-list,
// preserving the caller's values untouched.
func sanitizeContentUpdates(updates map[string]any) map[string]any {
	sanitized := make(map[string]any, len(updates))
	for key, value := range updates {
		if _, ok := contentEditableFields[key]; ok {
			sanitized[key] = value
		}
	}
	return sanitized
}
