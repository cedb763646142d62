package events

import (
	"time"

	"github.com/spec-kit/service-request-engine/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventRequestCreated         EventType = "request_created"
	EventRequestStatusChanged   EventType = "request_status_changed"
	EventRequestPriorityChanged EventType = "request_priority_changed"
	EventRequestAssigned        EventType = "request_assigned"
	EventRequestNoteAdded       EventType = "request_note_added"
	EventRequestContentEdited   EventType = "request_content_edited"
)

// Actor encapsulates actor metadata for an event.
type Actor struct {
	UserID string           `json:"user_id"`
	Role   domain.ActorRole `json:"role"`
}

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	RequestID string      `json:"request_id"`
	Actor     Actor       `json:"actor"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// RequestCreatedPayload payload.
type RequestCreatedPayload struct {
	ServiceType domain.ServiceType     `json:"service_type"`
	Status      domain.RequestStatus   `json:"status"`
	Priority    domain.RequestPriority `json:"priority"`
	CompanyID   *string                `json:"company_id,omitempty"`
	Title       string                 `json:"title"`
}

// RequestStatusChangedPayload payload.
type RequestStatusChangedPayload struct {
	OldStatus domain.RequestStatus `json:"old_status"`
	NewStatus domain.RequestStatus `json:"new_status"`
	Reason    string               `json:"reason,omitempty"`
}

// RequestPriorityChangedPayload payload.
type RequestPriorityChangedPayload struct {
	OldPriority domain.RequestPriority `json:"old_priority"`
	NewPriority domain.RequestPriority `json:"new_priority"`
}

// RequestAssignedPayload payload.
type RequestAssignedPayload struct {
	AssignedTo     *string `json:"assigned_to,omitempty"`
	UnassignedFrom *string `json:"unassigned_from,omitempty"`
	Reason         string  `json:"reason,omitempty"`
}

// RequestNoteAddedPayload payload.
type RequestNoteAddedPayload struct {
	Kind        domain.NoteKind `json:"kind"`
	NotePreview string          `json:"note_preview"`
}

// RequestContentEditedPayload payload.
type RequestContentEditedPayload struct {
	ChangedFields []string `json:"changed_fields"`
	Reason        string   `json:"reason,omitempty"`
}
