package domain

import "time"

// CompanyStatus represents lifecycle states for a tenant company.
type CompanyStatus string

const (
	CompanyStatusActive    CompanyStatus = "ACTIVE"
	CompanyStatusSuspended CompanyStatus = "SUSPENDED"
)

// Company is the tenant a request can be scoped to. Read-only for the engine.
type Company struct {
	ID        string
	Name      string
	Status    CompanyStatus
	Type      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// CompanySummary is the light company shape embedded in responses.
type CompanySummary struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name,omitempty"`
	Status      string `json:"status,omitempty"`
	Type        string `json:"type,omitempty"`
}
