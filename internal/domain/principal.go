package domain

import "time"

// ActorRole enumerates the roles an acting principal can hold.
type ActorRole string

const (
	RoleUser       ActorRole = "USER"
	RoleAdmin      ActorRole = "ADMIN"
	RoleSuperAdmin ActorRole = "SUPER_ADMIN"
)

// IsValidRole reports whether the value is a known role.
func IsValidRole(r ActorRole) bool {
	switch r {
	case RoleUser, RoleAdmin, RoleSuperAdmin:
		return true
	}
	return false
}

// UserStatus represents lifecycle states for a directory user.
type UserStatus string

const (
	UserStatusActive    UserStatus = "ACTIVE"
	UserStatusSuspended UserStatus = "SUSPENDED"
)

// User is the directory record for an acting principal.
type User struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	Role         ActorRole
	Status       UserStatus
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Principal is the authenticated caller plus its declared operating context.
// ContextCompanyID comes from the X-Company-Context header and is the scope
// an admin claims to be acting for.
type Principal struct {
	UserID           string
	Name             string
	Role             ActorRole
	ContextCompanyID *string
}

// ActorSummary is the light actor shape embedded in read-side responses.
// When directory resolution is unavailable only ID is populated.
type ActorSummary struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name,omitempty"`
	Role        string `json:"role,omitempty"`
}
