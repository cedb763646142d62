package dto

import (
	"time"

	"github.com/spec-kit/service-request-engine/internal/domain"
)

// CreateRequestPayload is the creation body.
type CreateRequestPayload struct {
	ServiceType          string                       `json:"service_type"`
	Title                string                       `json:"title"`
	Description          string                       `json:"description"`
	Priority             string                       `json:"priority"`
	Status               *string                      `json:"status"`
	CompanyID            *string                      `json:"company_id"`
	AssignedTo           *string                      `json:"assigned_to"`
	Contact              domain.ContactInfo           `json:"contact"`
	Location             domain.LocationInfo          `json:"location"`
	Schedule             domain.ScheduleInfo          `json:"schedule"`
	Budget               domain.BudgetInfo            `json:"budget"`
	MachineRepairDetails *domain.MachineRepairDetails `json:"machine_repair_details"`
	WorkerDetails        *domain.WorkerDetails        `json:"worker_details"`
	TransportDetails     *domain.TransportDetails     `json:"transport_details"`
	Notes                string                       `json:"notes"`
	Metadata             map[string]any               `json:"metadata"`
	SLADueAt             *string                      `json:"sla_due_at"`
}

// WorkflowMutationPayload is the workflow mutation body. assigned_to and
// sla_due_at distinguish explicit null from absent; the handler inspects
// raw key presence.
type WorkflowMutationPayload struct {
	Status            *string `json:"status"`
	Priority          *string `json:"priority"`
	AssignedTo        *string `json:"assigned_to"`
	SLADueAt          *string `json:"sla_due_at"`
	Note              string  `json:"note"`
	Reason            string  `json:"reason"`
	ExpectedUpdatedAt *string `json:"expected_updated_at"`
}

// ContentEditPayload is the content edit body.
type ContentEditPayload struct {
	Updates           map[string]any `json:"updates"`
	Reason            string         `json:"reason"`
	ExpectedUpdatedAt *string        `json:"expected_updated_at"`
}

// RequestSummary is the list item shape.
type RequestSummary struct {
	ID          string     `json:"id"`
	ServiceType string     `json:"service_type"`
	Status      string     `json:"status"`
	Priority    string     `json:"priority"`
	Title       string     `json:"title"`
	CompanyID   *string    `json:"company_id,omitempty"`
	CreatedBy   string     `json:"created_by"`
	AssignedTo  *string    `json:"assigned_to,omitempty"`
	SLADueAt    *time.Time `json:"sla_due_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// ListResponse is the paginated envelope.
type ListResponse struct {
	Items   []RequestSummary `json:"items"`
	Total   int              `json:"total"`
	Limit   int              `json:"limit"`
	Offset  int              `json:"offset"`
	HasMore bool             `json:"has_more"`
}

// StatusEventBody is the status leg of a timeline event.
type StatusEventBody struct {
	From   *string `json:"from"`
	To     string  `json:"to"`
	Reason string  `json:"reason,omitempty"`
	Note   string  `json:"note,omitempty"`
}

// AssignmentEventBody is the assignment leg of a timeline event.
type AssignmentEventBody struct {
	AssignedTo     *string `json:"assigned_to"`
	UnassignedFrom *string `json:"unassigned_from"`
	Reason         string  `json:"reason,omitempty"`
}

// NoteEventBody is the note leg of a timeline event.
type NoteEventBody struct {
	Message string `json:"message"`
	Kind    string `json:"kind"`
	Reason  string `json:"reason,omitempty"`
}

// TimelineEventResponse is one merged audit-trail entry. Exactly one of
// Status, Assignment, Note is set, matching Type.
type TimelineEventResponse struct {
	Type       string               `json:"type"`
	At         time.Time            `json:"at"`
	Actor      domain.ActorSummary  `json:"actor"`
	Status     *StatusEventBody     `json:"status,omitempty"`
	Assignment *AssignmentEventBody `json:"assignment,omitempty"`
	Note       *NoteEventBody       `json:"note,omitempty"`
}

// RequestDetailResponse provides full request info including the rebuilt
// audit timeline.
type RequestDetailResponse struct {
	ID                   string                       `json:"id"`
	ServiceType          string                       `json:"service_type"`
	Status               string                       `json:"status"`
	Priority             string                       `json:"priority"`
	Title                string                       `json:"title"`
	Description          string                       `json:"description"`
	Company              *domain.CompanySummary       `json:"company,omitempty"`
	CreatedBy            domain.ActorSummary          `json:"created_by"`
	AssignedTo           *domain.ActorSummary         `json:"assigned_to,omitempty"`
	LastUpdatedBy        domain.ActorSummary          `json:"last_updated_by"`
	Contact              domain.ContactInfo           `json:"contact"`
	Location             domain.LocationInfo          `json:"location"`
	Schedule             domain.ScheduleInfo          `json:"schedule"`
	Budget               domain.BudgetInfo            `json:"budget"`
	MachineRepairDetails *domain.MachineRepairDetails `json:"machine_repair_details,omitempty"`
	WorkerDetails        *domain.WorkerDetails        `json:"worker_details,omitempty"`
	TransportDetails     *domain.TransportDetails     `json:"transport_details,omitempty"`
	Notes                string                       `json:"notes,omitempty"`
	Metadata             map[string]any               `json:"metadata,omitempty"`
	SLADueAt             *time.Time                   `json:"sla_due_at,omitempty"`
	FirstResponseAt      *time.Time                   `json:"first_response_at,omitempty"`
	ResolvedAt           *time.Time                   `json:"resolved_at,omitempty"`
	LastActionAt         *time.Time                   `json:"last_action_at,omitempty"`
	CreatedAt            time.Time                    `json:"created_at"`
	UpdatedAt            time.Time                    `json:"updated_at"`
	Timeline             []TimelineEventResponse      `json:"timeline"`
}

// DevTokenRequest mints a local development token.
type DevTokenRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// DevTokenResponse carries the minted token.
type DevTokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}
