package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/service-request-engine/internal/domain"
	"github.com/spec-kit/service-request-engine/internal/repository"
)

// memRequestRepo mimics the Postgres repository including its CAS-on-
// updated_at write semantics, so service tests exercise the same conflict
// paths the real store produces.
type memRequestRepo struct {
	mu       sync.Mutex
	requests map[string]*domain.ServiceRequest
}

func newMemRequestRepo() *memRequestRepo {
	return &memRequestRepo{requests: make(map[string]*domain.ServiceRequest)}
}

func (m *memRequestRepo) Create(_ context.Context, req *domain.ServiceRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now().UTC()
	req.ID = uuid.NewString()
	req.CreatedAt = now
	req.UpdatedAt = now
	m.requests[req.ID] = cloneRequest(req)
	return nil
}

func (m *memRequestRepo) GetByID(_ context.Context, id string) (*domain.ServiceRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.requests[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return cloneRequest(stored), nil
}

func (m *memRequestRepo) Save(_ context.Context, req *domain.ServiceRequest, readUpdatedAt time.Time, _ repository.AppendSet) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.requests[req.ID]
	if !ok {
		return pgx.ErrNoRows
	}
	if !stored.UpdatedAt.Equal(readUpdatedAt) {
		return repository.ErrStaleWrite
	}
	m.requests[req.ID] = cloneRequest(req)
	return nil
}

func (m *memRequestRepo) ListWithFilter(_ context.Context, filter repository.RequestFilter) ([]domain.ServiceRequest, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var matched []domain.ServiceRequest
	for _, req := range m.requests {
		if filter.CreatedBy != nil && req.CreatedBy != *filter.CreatedBy {
			continue
		}
		if filter.CompanyID != nil && (req.CompanyID == nil || *req.CompanyID != *filter.CompanyID) {
			continue
		}
		if len(filter.Statuses) > 0 && !containsStatus(filter.Statuses, req.Status) {
			continue
		}
		matched = append(matched, *cloneRequest(req))
	}

	total := len(matched)
	offset := filter.Offset
	if offset > total {
		offset = total
	}
	end := offset + filter.Limit
	if filter.Limit <= 0 || end > total {
		end = total
	}
	return matched[offset:end], total, nil
}

func containsStatus(statuses []domain.RequestStatus, status domain.RequestStatus) bool {
	for _, s := range statuses {
		if s == status {
			return true
		}
	}
	return false
}

func cloneRequest(req *domain.ServiceRequest) *domain.ServiceRequest {
	out := *req
	out.CompanyID = cloneString(req.CompanyID)
	out.AssignedTo = cloneString(req.AssignedTo)
	out.SLADueAt = cloneTime(req.SLADueAt)
	out.FirstResponseAt = cloneTime(req.FirstResponseAt)
	out.ResolvedAt = cloneTime(req.ResolvedAt)
	out.LastActionAt = cloneTime(req.LastActionAt)
	if req.MachineRepair != nil {
		detail := *req.MachineRepair
		out.MachineRepair = &detail
	}
	if req.Worker != nil {
		detail := *req.Worker
		out.Worker = &detail
	}
	if req.Transport != nil {
		detail := *req.Transport
		out.Transport = &detail
	}
	if req.Metadata != nil {
		out.Metadata = make(map[string]any, len(req.Metadata))
		for k, v := range req.Metadata {
			out.Metadata[k] = v
		}
	}
	out.StatusHistory = append([]domain.StatusChange(nil), req.StatusHistory...)
	out.AssignmentHistory = append([]domain.AssignmentChange(nil), req.AssignmentHistory...)
	out.InternalNotes = append([]domain.InternalNote(nil), req.InternalNotes...)
	return &out
}

func cloneString(v *string) *string {
	if v == nil {
		return nil
	}
	out := *v
	return &out
}

func cloneTime(v *time.Time) *time.Time {
	if v == nil {
		return nil
	}
	out := *v
	return &out
}

// fakeUserDirectory serves canned users; errors or misses exercise the
// id-only fallback.
type fakeUserDirectory struct {
	users map[string]*domain.User
	err   error
}

func (f *fakeUserDirectory) Resolve(_ context.Context, userID string) (*domain.User, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.users[userID], nil
}

func (f *fakeUserDirectory) ResolveByEmail(_ context.Context, email string) (*domain.User, error) {
	if f.err != nil {
		return nil, f.err
	}
	for _, user := range f.users {
		if user.Email == email {
			return user, nil
		}
	}
	return nil, nil
}

type fakeCompanyDirectory struct {
	companies map[string]*domain.Company
}

func (f *fakeCompanyDirectory) Resolve(_ context.Context, companyID string) (*domain.Company, error) {
	return f.companies[companyID], nil
}
