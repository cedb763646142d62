package service

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/service-request-engine/internal/directory"
	"github.com/spec-kit/service-request-engine/internal/domain"
	"github.com/spec-kit/service-request-engine/internal/repository"
	apperrors "github.com/spec-kit/service-request-engine/pkg/util/errorutil"
)

// QueryService is the read path: scoped listing and single-record reads.
type QueryService struct {
	requests  repository.RequestRepository
	users     directory.UserDirectory
	companies directory.CompanyDirectory
}

// NewQueryService constructs the service.
func NewQueryService(requests repository.RequestRepository, users directory.UserDirectory, companies directory.CompanyDirectory) *QueryService {
	return &QueryService{requests: requests, users: users, companies: companies}
}

// ListResult is the paginated list envelope.
type ListResult struct {
	Items   []domain.ServiceRequest
	Total   int
	Limit   int
	Offset  int
	HasMore bool
}

// List returns requests visible to the principal. Admins are pinned to
// their declared company context; standard users see what they created.
func (s *QueryService) List(ctx context.Context, principal *domain.Principal, filter repository.RequestFilter) (*ListResult, error) {
	switch principal.Role {
	case domain.RoleSuperAdmin:
		// unrestricted; the filter stands as given
	case domain.RoleAdmin:
		if principal.ContextCompanyID == nil || *principal.ContextCompanyID == "" {
			return nil, apperrors.NewInvalidArgument("company context is required for admin listing", nil)
		}
		filter.CompanyID = principal.ContextCompanyID
	default:
		creator := principal.UserID
		filter.CreatedBy = &creator
	}

	if filter.Limit <= 0 {
		filter.Limit = 20
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	items, total, err := s.requests.ListWithFilter(ctx, filter)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return &ListResult{
		Items:   items,
		Total:   total,
		Limit:   filter.Limit,
		Offset:  filter.Offset,
		HasMore: filter.Offset+len(items) < total,
	}, nil
}

// Get loads one request with full shaping, enforcing read scope.
func (s *QueryService) Get(ctx context.Context, principal *domain.Principal, requestID string) (*RequestDetail, error) {
	req, err := s.requests.GetByID(ctx, requestID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("service request", map[string]any{"request_id": requestID})
		}
		return nil, apperrors.MapError(err)
	}

	switch principal.Role {
	case domain.RoleSuperAdmin:
	case domain.RoleAdmin:
		if err := ensureScope(principal.Role, principal.ContextCompanyID, req.CompanyID); err != nil {
			return nil, err
		}
	default:
		if req.CreatedBy != principal.UserID {
			return nil, apperrors.NewForbidden("access denied")
		}
	}

	return shapeRequest(ctx, req, s.users, s.companies), nil
}
