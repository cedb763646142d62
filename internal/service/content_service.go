package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/service-request-engine/internal/directory"
	"github.com/spec-kit/service-request-engine/internal/domain"
	"github.com/spec-kit/service-request-engine/internal/events"
	"github.com/spec-kit/service-request-engine/internal/repository"
	apperrors "github.com/spec-kit/service-request-engine/pkg/util/errorutil"
)

const defaultContentReason = "content-correction"

// ContentService edits descriptive fields under the same scope and
// concurrency rules as the workflow path, recording the change as a
// content note instead of a status transition.
type ContentService struct {
	requests   repository.RequestRepository
	users      directory.UserDirectory
	companies  directory.CompanyDirectory
	dispatcher events.Dispatcher
}

// ContentDependencies bundles collaborators for the content service.
type ContentDependencies struct {
	RequestRepo repository.RequestRepository
	Users       directory.UserDirectory
	Companies   directory.CompanyDirectory
	Dispatcher  events.Dispatcher
}

// NewContentService constructs the service.
func NewContentService(deps ContentDependencies) *ContentService {
	return &ContentService{
		requests:   deps.RequestRepo,
		users:      deps.Users,
		companies:  deps.Companies,
		dispatcher: deps.Dispatcher,
	}
}

// ContentEditInput describes one content edit call.
type ContentEditInput struct {
	Updates           map[string]any
	Reason            string
	ExpectedUpdatedAt *string
}

// ApplyContentEdit replaces the named content fields on one request.
// Unknown keys and detail blocks not matching the record's service type
// are dropped; an edit with nothing left after sanitizing is an error,
// since unlike the workflow path there is no other effect to justify the
// call.
func (s *ContentService) ApplyContentEdit(ctx context.Context, principal *domain.Principal, requestID string, input ContentEditInput) (*RequestDetail, error) {
	req, err := s.requests.GetByID(ctx, requestID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("service request", map[string]any{"request_id": requestID})
		}
		return nil, apperrors.MapError(err)
	}

	if err := ensureScope(principal.Role, principal.ContextCompanyID, req.CompanyID); err != nil {
		return nil, err
	}
	if err := assertNotStale(req.UpdatedAt, input.ExpectedUpdatedAt); err != nil {
		return nil, err
	}

	reason := strings.TrimSpace(input.Reason)
	if reason == "" {
		reason = defaultContentReason
	} else if len(reason) < 3 || len(reason) > 300 {
		return nil, apperrors.NewInvalidArgument("reason must be between 3 and 300 characters", nil)
	}

	sanitized := sanitizeContentUpdates(input.Updates)
	dropMismatchedDetailBlocks(req.ServiceType, sanitized)
	if len(sanitized) == 0 {
		return nil, apperrors.NewInvalidArgument("no editable content fields provided", nil)
	}

	changedFields := make([]string, 0, len(sanitized))
	for field, value := range sanitized {
		if err := applyContentField(req, field, value); err != nil {
			return nil, err
		}
		changedFields = append(changedFields, field)
	}
	sort.Strings(changedFields)

	now := time.Now().UTC()
	if !now.After(req.UpdatedAt) {
		now = req.UpdatedAt.Add(time.Millisecond)
	}

	note := domain.InternalNote{
		Message:   "updated fields: " + strings.Join(changedFields, ", "),
		Kind:      domain.NoteKindContent,
		Reason:    reason,
		CreatedBy: principal.UserID,
		Seq:       len(req.InternalNotes) + 1,
		CreatedAt: now,
	}
	req.InternalNotes = append(req.InternalNotes, note)

	readUpdatedAt := req.UpdatedAt
	req.LastUpdatedBy = principal.UserID
	req.LastActionAt = &now
	req.UpdatedAt = now

	appended := repository.AppendSet{Notes: []domain.InternalNote{note}}
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

	publishEvent(ctx, s.dispatcher, principal, events.Event{
		Type:      events.EventRequestContentEdited,
		RequestID: req.ID,
		Payload: events.RequestContentEditedPayload{
			ChangedFields: changedFields,
			Reason:        reason,
		},
	})

	return shapeRequest(ctx, req, s.users, s.companies), nil
}

// dropMismatchedDetailBlocks re-derives the detail block from the record's
// service type: a content edit can never switch the block, only replace
// the matching one.
func dropMismatchedDetailBlocks(serviceType domain.ServiceType, updates map[string]any) {
	keep := map[domain.ServiceType]string{
		domain.ServiceTypeMachineRepair: "machine_repair_details",
		domain.ServiceTypeWorker:        "worker_details",
		domain.ServiceTypeTransport:     "transport_details",
	}[serviceType]

	for _, block := range []string{"machine_repair_details", "worker_details", "transport_details"} {
		if block != keep {
			delete(updates, block)
		}
	}
}

// applyContentField replaces the named field wholesale (no deep merge).
func applyContentField(req *domain.ServiceRequest, field string, value any) error {
	switch field {
	case "title":
		title, ok := value.(string)
		if !ok || strings.TrimSpace(title) == "" {
			return apperrors.NewInvalidArgument("title must be a non-empty string", nil)
		}
		req.Title = strings.TrimSpace(title)
	case "description":
		description, ok := value.(string)
		if !ok {
			return apperrors.NewInvalidArgument("description must be a string", nil)
		}
		req.Description = strings.TrimSpace(description)
	case "contact":
		return decodeInto(field, value, &req.Contact)
	case "location":
		return decodeInto(field, value, &req.Location)
	case "schedule":
		return decodeInto(field, value, &req.Schedule)
	case "budget":
		return decodeInto(field, value, &req.Budget)
	case "machine_repair_details":
		req.MachineRepair = &domain.MachineRepairDetails{}
		return decodeInto(field, value, req.MachineRepair)
	case "worker_details":
		req.Worker = &domain.WorkerDetails{}
		return decodeInto(field, value, req.Worker)
	case "transport_details":
		req.Transport = &domain.TransportDetails{}
		return decodeInto(field, value, req.Transport)
	case "metadata":
		metadata, ok := value.(map[string]any)
		if !ok {
			return apperrors.NewInvalidArgument("metadata must be an object", nil)
		}
		req.Metadata = metadata
	}
	return nil
}

func decodeInto(field string, value any, target any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return apperrors.NewInvalidArgument(fmt.Sprintf("%s has an invalid shape", field), nil)
	}
	if err := json.Unmarshal(raw, target); err != nil {
		return apperrors.NewInvalidArgument(fmt.Sprintf("%s has an invalid shape", field), nil)
	}
	return nil
}
