package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/service-request-engine/internal/directory"
	"github.com/spec-kit/service-request-engine/internal/domain"
	"github.com/spec-kit/service-request-engine/internal/events"
	"github.com/spec-kit/service-request-engine/internal/repository"
	apperrors "github.com/spec-kit/service-request-engine/pkg/util/errorutil"
)

// WorkflowService owns request creation and workflow mutations: status,
// priority, assignment, SLA and workflow notes, applied atomically against
// one aggregate.
type WorkflowService struct {
	requests   repository.RequestRepository
	users      directory.UserDirectory
	companies  directory.CompanyDirectory
	dispatcher events.Dispatcher
}

// WorkflowDependencies bundles collaborators for the workflow service.
type WorkflowDependencies struct {
	RequestRepo repository.RequestRepository
	Users       directory.UserDirectory
	Companies   directory.CompanyDirectory
	Dispatcher  events.Dispatcher
}

// NewWorkflowService constructs the service.
func NewWorkflowService(deps WorkflowDependencies) *WorkflowService {
	return &WorkflowService{
		requests:   deps.RequestRepo,
		users:      deps.Users,
		companies:  deps.Companies,
		dispatcher: deps.Dispatcher,
	}
}

// CreateRequestInput describes creation payload. Status, AssignedTo,
// CompanyID and Metadata are honored only where the role allow-lists
// permit them; for other callers they are dropped silently.
type CreateRequestInput struct {
	ServiceType   domain.ServiceType
	Title         string
	Description   string
	Priority      domain.RequestPriority
	Status        *domain.RequestStatus
	CompanyID     *string
	AssignedTo    *string
	Contact       domain.ContactInfo
	Location      domain.LocationInfo
	Schedule      domain.ScheduleInfo
	Budget        domain.BudgetInfo
	MachineRepair *domain.MachineRepairDetails
	Worker        *domain.WorkerDetails
	Transport     *domain.TransportDetails
	Notes         string
	Metadata      map[string]any
	SLADueAt      *string
}

// WorkflowMutationInput describes one workflow mutation call. The Has*
// flags distinguish "absent" from "explicit null" for the nullable legs.
type WorkflowMutationInput struct {
	Status            *domain.RequestStatus
	Priority          *domain.RequestPriority
	HasAssignedTo     bool
	AssignedTo        *string
	HasSLADueAt       bool
	SLADueAt          *string
	Note              string
	Reason            string
	ExpectedUpdatedAt *string
}

// Create creates a request. The record always starts with a synthetic
// nil -> status history entry, even when an elevated caller picks a
// non-default initial status.
func (s *WorkflowService) Create(ctx context.Context, principal *domain.Principal, input CreateRequestInput) (*RequestDetail, error) {
	if !domain.IsValidServiceType(input.ServiceType) {
		return nil, apperrors.NewInvalidArgument("unknown service type", map[string]any{"service_type": input.ServiceType})
	}
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, apperrors.NewInvalidArgument("title is required", nil)
	}

	priority := input.Priority
	if priority == "" {
		priority = domain.RequestPriorityNormal
	}
	if !domain.IsValidPriority(priority) {
		return nil, apperrors.NewInvalidArgument("unknown priority", map[string]any{"priority": priority})
	}

	status := domain.RequestStatusPending
	if input.Status != nil && fieldAllowedForRole("status", principal.Role) {
		if !domain.IsValidStatus(*input.Status) {
			return nil, apperrors.NewInvalidArgument("unknown status", map[string]any{"status": *input.Status})
		}
		status = *input.Status
	}

	var slaDueAt *time.Time
	if input.SLADueAt != nil {
		parsed, err := parseTimestamp(*input.SLADueAt)
		if err != nil {
			return nil, apperrors.NewInvalidArgument("sla_due_at is not a valid timestamp", nil)
		}
		utc := parsed.UTC()
		slaDueAt = &utc
	}

	now := time.Now().UTC()
	req := &domain.ServiceRequest{
		ServiceType:   input.ServiceType,
		Status:        status,
		Priority:      priority,
		CreatedBy:     principal.UserID,
		CreatedByRole: principal.Role,
		LastUpdatedBy: principal.UserID,
		Title:         title,
		Description:   strings.TrimSpace(input.Description),
		Contact:       input.Contact,
		Location:      input.Location,
		Schedule:      input.Schedule,
		Budget:        input.Budget,
		Notes:         input.Notes,
		SLADueAt:      slaDueAt,
		LastActionAt:  &now,
	}
	applyDetailBlock(req, input.MachineRepair, input.Worker, input.Transport)

	if input.CompanyID != nil && fieldAllowedForRole("company_id", principal.Role) {
		req.CompanyID = input.CompanyID
	}
	if input.Metadata != nil && fieldAllowedForRole("metadata", principal.Role) {
		req.Metadata = input.Metadata
	}
	if input.AssignedTo != nil && fieldAllowedForRole("assigned_to", principal.Role) {
		req.AssignedTo = input.AssignedTo
	}

	// derived markers hold from the first write: a record born past PENDING
	// already had its first response, and a record born terminal is resolved
	if status != domain.RequestStatusPending {
		req.FirstResponseAt = &now
	}
	if domain.IsTerminalStatus(status) {
		req.ResolvedAt = &now
	}

	req.StatusHistory = []domain.StatusChange{{
		FromStatus: nil,
		ToStatus:   status,
		ChangedBy:  principal.UserID,
		Reason:     "created",
		Seq:        1,
		CreatedAt:  now,
	}}
	if req.AssignedTo != nil {
		req.AssignmentHistory = []domain.AssignmentChange{{
			AssignedTo: req.AssignedTo,
			ChangedBy:  principal.UserID,
			Reason:     "created",
			Seq:        1,
			CreatedAt:  now,
		}}
	}

	if err := s.requests.Create(ctx, req); err != nil {
		return nil, apperrors.MapError(err)
	}

	s.publishEvent(ctx, principal, events.Event{
		Type:      events.EventRequestCreated,
		RequestID: req.ID,
		Payload: events.RequestCreatedPayload{
			ServiceType: req.ServiceType,
			Status:      req.Status,
			Priority:    req.Priority,
			CompanyID:   req.CompanyID,
			Title:       req.Title,
		},
	})
	return shapeRequest(ctx, req, s.users, s.companies), nil
}

// ApplyWorkflow applies a bundled workflow mutation to one request. The
// call is all-or-nothing: if any leg fails validation, nothing persists.
// A call that changes nothing is a cheap no-op and does not bump
// updated_at.
func (s *WorkflowService) ApplyWorkflow(ctx context.Context, principal *domain.Principal, requestID string, input WorkflowMutationInput) (*RequestDetail, error) {
	req, err := s.requests.GetByID(ctx, requestID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("service request", map[string]any{"request_id": requestID})
		}
		return nil, apperrors.MapError(err)
	}

	// scope before the concurrency guard, so permission failures leak no
	// record state
	if err := ensureScope(principal.Role, principal.ContextCompanyID, req.CompanyID); err != nil {
		return nil, err
	}
	if err := assertNotStale(req.UpdatedAt, input.ExpectedUpdatedAt); err != nil {
		return nil, err
	}

	reason, err := validateReason(input.Reason)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	if !now.After(req.UpdatedAt) {
		now = req.UpdatedAt.Add(time.Millisecond)
	}

	var appended repository.AppendSet
	changed := false

	var oldStatus *domain.RequestStatus
	if input.Status != nil {
		next := *input.Status
		if !domain.IsValidStatus(next) {
			return nil, apperrors.NewInvalidArgument("unknown status", map[string]any{"status": next})
		}
		if next != req.Status {
			if !IsValidTransition(req.Status, next) {
				return nil, apperrors.NewInvalidTransition(string(req.Status), string(next))
			}
			from := req.Status
			oldStatus = &from
			entry := domain.StatusChange{
				FromStatus: &from,
				ToStatus:   next,
				ChangedBy:  principal.UserID,
				Reason:     reason,
				Note:       strings.TrimSpace(input.Note),
				Seq:        len(req.StatusHistory) + 1,
				CreatedAt:  now,
			}
			req.StatusHistory = append(req.StatusHistory, entry)
			appended.StatusChanges = append(appended.StatusChanges, entry)
			req.Status = next

			if from == domain.RequestStatusPending && req.FirstResponseAt == nil {
				req.FirstResponseAt = &now
			}
			if domain.IsTerminalStatus(next) {
				req.ResolvedAt = &now
			} else {
				// unreachable through the legal graph, cleared anyway
				req.ResolvedAt = nil
			}
			changed = true
		}
	}

	var oldPriority *domain.RequestPriority
	if input.Priority != nil {
		next := *input.Priority
		if !domain.IsValidPriority(next) {
			return nil, apperrors.NewInvalidArgument("unknown priority", map[string]any{"priority": next})
		}
		if next != req.Priority {
			prev := req.Priority
			oldPriority = &prev
			req.Priority = next
			changed = true
		}
	}

	if input.HasSLADueAt {
		if input.SLADueAt == nil {
			if req.SLADueAt != nil {
				req.SLADueAt = nil
				changed = true
			}
		} else {
			parsed, err := parseTimestamp(*input.SLADueAt)
			if err != nil {
				return nil, apperrors.NewInvalidArgument("sla_due_at is not a valid timestamp", nil)
			}
			utc := parsed.UTC()
			if req.SLADueAt == nil || !req.SLADueAt.Equal(utc) {
				req.SLADueAt = &utc
				changed = true
			}
		}
	}

	var assignmentChanged bool
	if input.HasAssignedTo && !sameAssignee(req.AssignedTo, input.AssignedTo) {
		entry := domain.AssignmentChange{
			AssignedTo:     input.AssignedTo,
			UnassignedFrom: req.AssignedTo,
			ChangedBy:      principal.UserID,
			Reason:         reason,
			Seq:            len(req.AssignmentHistory) + 1,
			CreatedAt:      now,
		}
		req.AssignmentHistory = append(req.AssignmentHistory, entry)
		appended.AssignmentChanges = append(appended.AssignmentChanges, entry)
		req.AssignedTo = input.AssignedTo
		assignmentChanged = true
		changed = true
	}

	note := strings.TrimSpace(input.Note)
	if note != "" {
		entry := domain.InternalNote{
			Message:   note,
			Kind:      domain.NoteKindWorkflow,
			Reason:    reason,
			CreatedBy: principal.UserID,
			Seq:       len(req.InternalNotes) + 1,
			CreatedAt: now,
		}
		req.InternalNotes = append(req.InternalNotes, entry)
		appended.Notes = append(appended.Notes, entry)
		changed = true
	}

	if !changed {
		return shapeRequest(ctx, req, s.users, s.companies), nil
	}

	readUpdatedAt := req.UpdatedAt
	req.LastUpdatedBy = principal.UserID
	req.LastActionAt = &now
	req.UpdatedAt = now

	if err := s.requests.Save(ctx, req, readUpdatedAt, appended); err != nil {
		switch {
		case errors.Is(err, repository.ErrStaleWrite):
			return nil, apperrors.NewConflict("request has changed, refresh and retry", nil)
		case errors.Is(err, pgx.ErrNoRows):
			return nil, apperrors.NewNotFound("service request", map[string]any{"request_id": requestID})
		default:
			return nil, apperrors.MapError(err)
		}
	}

	if oldStatus != nil {
		s.publishEvent(ctx, principal, events.Event{
			Type:      events.EventRequestStatusChanged,
			RequestID: req.ID,
			Payload: events.RequestStatusChangedPayload{
				OldStatus: *oldStatus,
				NewStatus: req.Status,
				Reason:    reason,
			},
		})
	}
	if oldPriority != nil {
		s.publishEvent(ctx, principal, events.Event{
			Type:      events.EventRequestPriorityChanged,
			RequestID: req.ID,
			Payload: events.RequestPriorityChangedPayload{
				OldPriority: *oldPriority,
				NewPriority: req.Priority,
			},
		})
	}
	if assignmentChanged {
		last := req.AssignmentHistory[len(req.AssignmentHistory)-1]
		s.publishEvent(ctx, principal, events.Event{
			Type:      events.EventRequestAssigned,
			RequestID: req.ID,
			Payload: events.RequestAssignedPayload{
				AssignedTo:     last.AssignedTo,
				UnassignedFrom: last.UnassignedFrom,
				Reason:         reason,
			},
		})
	}
	if note != "" {
		s.publishEvent(ctx, principal, events.Event{
			Type:      events.EventRequestNoteAdded,
			RequestID: req.ID,
			Payload: events.RequestNoteAddedPayload{
				Kind:        domain.NoteKindWorkflow,
				NotePreview: stringPreview(note, 120),
			},
		})
	}

	return shapeRequest(ctx, req, s.users, s.companies), nil
}

func applyDetailBlock(req *domain.ServiceRequest, machine *domain.MachineRepairDetails, worker *domain.WorkerDetails, transport *domain.TransportDetails) {
	// the three blocks are mutually exclusive; only the one matching the
	// request's service type survives
	switch req.ServiceType {
	case domain.ServiceTypeMachineRepair:
		req.MachineRepair = machine
	case domain.ServiceTypeWorker:
		req.Worker = worker
	case domain.ServiceTypeTransport:
		req.Transport = transport
	}
}

func sameAssignee(current, next *string) bool {
	if current == nil && next == nil {
		return true
	}
	if current == nil || next == nil {
		return false
	}
	return *current == *next
}

func validateReason(reason string) (string, error) {
	trimmed := strings.TrimSpace(reason)
	if trimmed == "" {
		return "", apperrors.NewInvalidArgument("reason is required", nil)
	}
	if len(trimmed) < 3 || len(trimmed) > 300 {
		return "", apperrors.NewInvalidArgument("reason must be between 3 and 300 characters", nil)
	}
	return trimmed, nil
}

func (s *WorkflowService) publishEvent(ctx context.Context, principal *domain.Principal, event events.Event) {
	publishEvent(ctx, s.dispatcher, principal, event)
}

func publishEvent(ctx context.Context, dispatcher events.Dispatcher, principal *domain.Principal, event events.Event) {
	if dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	event.Actor = events.Actor{UserID: principal.UserID, Role: principal.Role}
	_ = dispatcher.Publish(ctx, event)
}

func stringPreview(body string, max int) string {
	body = strings.TrimSpace(body)
	if len(body) <= max {
		return body
	}
	if max <= 3 {
		return body[:max]
	}
	return body[:max-3] + "..."
}
