package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/service-request-engine/internal/api/dto"
	"github.com/spec-kit/service-request-engine/internal/auth"
	"github.com/spec-kit/service-request-engine/internal/domain"
	"github.com/spec-kit/service-request-engine/internal/repository"
	"github.com/spec-kit/service-request-engine/internal/service"
	apperrors "github.com/spec-kit/service-request-engine/pkg/util/errorutil"
)

// RequestsHandler exposes the service-request engine over HTTP.
type RequestsHandler struct {
	workflow *service.WorkflowService
	content  *service.ContentService
	query    *service.QueryService
}

// NewRequestsHandler constructs handler.
func NewRequestsHandler(workflow *service.WorkflowService, content *service.ContentService, query *service.QueryService) *RequestsHandler {
	return &RequestsHandler{workflow: workflow, content: content, query: query}
}

// Create POST /requests.
func (h *RequestsHandler) Create(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	var payload dto.CreateRequestPayload
	if err := c.BodyParser(&payload); err != nil {
		return apperrors.NewInvalidArgument("invalid payload", nil)
	}

	input := service.CreateRequestInput{
		ServiceType:   domain.ServiceType(payload.ServiceType),
		Title:         payload.Title,
		Description:   payload.Description,
		Priority:      domain.RequestPriority(payload.Priority),
		CompanyID:     payload.CompanyID,
		AssignedTo:    payload.AssignedTo,
		Contact:       payload.Contact,
		Location:      payload.Location,
		Schedule:      payload.Schedule,
		Budget:        payload.Budget,
		MachineRepair: payload.MachineRepairDetails,
		Worker:        payload.WorkerDetails,
		Transport:     payload.TransportDetails,
		Notes:         payload.Notes,
		Metadata:      payload.Metadata,
		SLADueAt:      payload.SLADueAt,
	}
	if payload.Status != nil {
		status := domain.RequestStatus(*payload.Status)
		input.Status = &status
	}

	detail, err := h.workflow.Create(c.Context(), principal, input)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": requestDetailResponse(detail)})
}

// List GET /requests.
func (h *RequestsHandler) List(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	filter := parseRequestFilter(c)
	result, err := h.query.List(c.Context(), principal, filter)
	if err != nil {
		return err
	}

	items := make([]dto.RequestSummary, 0, len(result.Items))
	for i := range result.Items {
		items = append(items, requestSummary(&result.Items[i]))
	}
	return c.JSON(fiber.Map{"data": dto.ListResponse{
		Items:   items,
		Total:   result.Total,
		Limit:   result.Limit,
		Offset:  result.Offset,
		HasMore: result.HasMore,
	}})
}

// Get GET /requests/:id.
func (h *RequestsHandler) Get(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	detail, err := h.query.Get(c.Context(), principal, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": requestDetailResponse(detail)})
}

// ApplyWorkflow POST /requests/:id/workflow.
func (h *RequestsHandler) ApplyWorkflow(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	var payload dto.WorkflowMutationPayload
	if err := c.BodyParser(&payload); err != nil {
		return apperrors.NewInvalidArgument("invalid payload", nil)
	}

	// raw key presence distinguishes "absent" from explicit null
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(c.Body(), &raw); err != nil {
		return apperrors.NewInvalidArgument("invalid payload", nil)
	}
	_, hasAssignedTo := raw["assigned_to"]
	_, hasSLADueAt := raw["sla_due_at"]

	input := service.WorkflowMutationInput{
		HasAssignedTo:     hasAssignedTo,
		AssignedTo:        payload.AssignedTo,
		HasSLADueAt:       hasSLADueAt,
		SLADueAt:          payload.SLADueAt,
		Note:              payload.Note,
		Reason:            payload.Reason,
		ExpectedUpdatedAt: payload.ExpectedUpdatedAt,
	}
	if payload.Status != nil {
		status := domain.RequestStatus(*payload.Status)
		input.Status = &status
	}
	if payload.Priority != nil {
		priority := domain.RequestPriority(*payload.Priority)
		input.Priority = &priority
	}

	detail, err := h.workflow.ApplyWorkflow(c.Context(), principal, c.Params("id"), input)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": requestDetailResponse(detail)})
}

// ApplyContentEdit PATCH /requests/:id/content.
func (h *RequestsHandler) ApplyContentEdit(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	var payload dto.ContentEditPayload
	if err := c.BodyParser(&payload); err != nil {
		return apperrors.NewInvalidArgument("invalid payload", nil)
	}

	detail, err := h.content.ApplyContentEdit(c.Context(), principal, c.Params("id"), service.ContentEditInput{
		Updates:           payload.Updates,
		Reason:            payload.Reason,
		ExpectedUpdatedAt: payload.ExpectedUpdatedAt,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": requestDetailResponse(detail)})
}

func requirePrincipal(c *fiber.Ctx) (*domain.Principal, error) {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return nil, apperrors.NewUnauthorized("authentication required")
	}
	return principal, nil
}

func parseRequestFilter(c *fiber.Ctx) repository.RequestFilter {
	filter := repository.RequestFilter{}
	if types := c.Query("service_type"); types != "" {
		for _, part := range strings.Split(types, ",") {
			filter.ServiceTypes = append(filter.ServiceTypes, domain.ServiceType(strings.TrimSpace(part)))
		}
	}
	if statuses := c.Query("status"); statuses != "" {
		for _, part := range strings.Split(statuses, ",") {
			filter.Statuses = append(filter.Statuses, domain.RequestStatus(strings.TrimSpace(part)))
		}
	}
	if priorities := c.Query("priority"); priorities != "" {
		for _, part := range strings.Split(priorities, ",") {
			filter.Priorities = append(filter.Priorities, domain.RequestPriority(strings.TrimSpace(part)))
		}
	}
	if company := c.Query("company_id"); company != "" {
		filter.CompanyID = &company
	}
	if creator := c.Query("created_by"); creator != "" {
		filter.CreatedBy = &creator
	}
	if assignee := c.Query("assigned_to"); assignee != "" {
		filter.AssignedTo = &assignee
	}
	if search := c.Query("search"); search != "" {
		filter.SearchTerm = &search
	}
	if from := parseTime(c.Query("created_from")); from != nil {
		filter.CreatedFrom = from
	}
	if to := parseTime(c.Query("created_to")); to != nil {
		filter.CreatedTo = to
	}
	if from := parseTime(c.Query("updated_from")); from != nil {
		filter.UpdatedFrom = from
	}
	if to := parseTime(c.Query("updated_to")); to != nil {
		filter.UpdatedTo = to
	}
	filter.Sort = repository.SortKey(c.Query("sort"))

	page := parseInt(c.Query("page"), 1)
	pageSize := parseInt(c.Query("page_size"), 20)
	filter.Offset = (page - 1) * pageSize
	filter.Limit = pageSize
	return filter
}

func parseTime(val string) *time.Time {
	if val == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, val)
	if err != nil {
		return nil
	}
	return &t
}

func parseInt(val string, def int) int {
	if val == "" {
		return def
	}
	parsed, err := strconv.Atoi(val)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}

func requestSummary(req *domain.ServiceRequest) dto.RequestSummary {
	return dto.RequestSummary{
		ID:          req.ID,
		ServiceType: string(req.ServiceType),
		Status:      string(req.Status),
		Priority:    string(req.Priority),
		Title:       req.Title,
		CompanyID:   req.CompanyID,
		CreatedBy:   req.CreatedBy,
		AssignedTo:  req.AssignedTo,
		SLADueAt:    req.SLADueAt,
		CreatedAt:   req.CreatedAt,
		UpdatedAt:   req.UpdatedAt,
	}
}

func requestDetailResponse(detail *service.RequestDetail) dto.RequestDetailResponse {
	req := detail.Request
	timeline := make([]dto.TimelineEventResponse, 0, len(detail.Timeline))
	for i := range detail.Timeline {
		timeline = append(timeline, timelineEventResponse(&detail.Timeline[i]))
	}
	return dto.RequestDetailResponse{
		ID:                   req.ID,
		ServiceType:          string(req.ServiceType),
		Status:               string(req.Status),
		Priority:             string(req.Priority),
		Title:                req.Title,
		Description:          req.Description,
		Company:              detail.Company,
		CreatedBy:            detail.CreatedBy,
		AssignedTo:           detail.AssignedTo,
		LastUpdatedBy:        detail.LastUpdatedBy,
		Contact:              req.Contact,
		Location:             req.Location,
		Schedule:             req.Schedule,
		Budget:               req.Budget,
		MachineRepairDetails: req.MachineRepair,
		WorkerDetails:        req.Worker,
		TransportDetails:     req.Transport,
		Notes:                req.Notes,
		Metadata:             req.Metadata,
		SLADueAt:             req.SLADueAt,
		FirstResponseAt:      req.FirstResponseAt,
		ResolvedAt:           req.ResolvedAt,
		LastActionAt:         req.LastActionAt,
		CreatedAt:            req.CreatedAt,
		UpdatedAt:            req.UpdatedAt,
		Timeline:             timeline,
	}
}

func timelineEventResponse(event *service.TimelineEvent) dto.TimelineEventResponse {
	resp := dto.TimelineEventResponse{
		Type:  string(event.Type),
		At:    event.At,
		Actor: event.Actor,
	}
	switch {
	case event.Status != nil:
		var from *string
		if event.Status.FromStatus != nil {
			value := string(*event.Status.FromStatus)
			from = &value
		}
		resp.Status = &dto.StatusEventBody{
			From:   from,
			To:     string(event.Status.ToStatus),
			Reason: event.Status.Reason,
			Note:   event.Status.Note,
		}
	case event.Assignment != nil:
		resp.Assignment = &dto.AssignmentEventBody{
			AssignedTo:     event.Assignment.AssignedTo,
			UnassignedFrom: event.Assignment.UnassignedFrom,
			Reason:         event.Assignment.Reason,
		}
	case event.Note != nil:
		resp.Note = &dto.NoteEventBody{
			Message: event.Note.Message,
			Kind:    string(event.Note.Kind),
			Reason:  event.Note.Reason,
		}
	}
	return resp
}
