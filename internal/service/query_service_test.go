package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/service-request-engine/internal/domain"
	"github.com/spec-kit/service-request-engine/internal/repository"
	apperrors "github.com/spec-kit/service-request-engine/pkg/util/errorutil"
)

func newQueryFixture() (*QueryService, *memRequestRepo) {
	repo := newMemRequestRepo()
	svc := NewQueryService(repo, nil, nil)
	return svc, repo
}

func seedOwned(t *testing.T, repo *memRequestRepo, createdBy string, companyID *string) string {
	t.Helper()
	req := &domain.ServiceRequest{
		ServiceType:   domain.ServiceTypeWorker,
		Status:        domain.RequestStatusPending,
		Priority:      domain.RequestPriorityNormal,
		CreatedBy:     createdBy,
		CreatedByRole: domain.RoleUser,
		CompanyID:     companyID,
		LastUpdatedBy: createdBy,
		Title:         "Shift cover",
	}
	require.NoError(t, repo.Create(context.Background(), req))
	return req.ID
}

func TestListStandardUserSeesOwnRequestsOnly(t *testing.T) {
	svc, repo := newQueryFixture()
	seedOwned(t, repo, "u-1", nil)
	seedOwned(t, repo, "u-1", nil)
	seedOwned(t, repo, "u-2", nil)

	result, err := svc.List(context.Background(), standardUser("u-1"), repository.RequestFilter{})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Total)
	for _, item := range result.Items {
		assert.Equal(t, "u-1", item.CreatedBy)
	}
}

func TestListAdminRequiresAndPinsCompanyContext(t *testing.T) {
	svc, repo := newQueryFixture()
	seedOwned(t, repo, "u-1", strptr("c-1"))
	seedOwned(t, repo, "u-2", strptr("c-2"))

	admin := &domain.Principal{UserID: "ad-1", Role: domain.RoleAdmin}
	_, err := svc.List(context.Background(), admin, repository.RequestFilter{})
	assert.Equal(t, "INVALID_ARGUMENT", apperrors.CodeOf(err))

	result, err := svc.List(context.Background(), adminFor("c-1"), repository.RequestFilter{
		// a caller-supplied company filter cannot widen the scope
		CompanyID: strptr("c-2"),
	})
	require.NoError(t, err)
	require.Equal(t, 1, result.Total)
	assert.Equal(t, "c-1", *result.Items[0].CompanyID)
}

func TestListSuperAdminUnrestricted(t *testing.T) {
	svc, repo := newQueryFixture()
	seedOwned(t, repo, "u-1", strptr("c-1"))
	seedOwned(t, repo, "u-2", strptr("c-2"))
	seedOwned(t, repo, "u-3", nil)

	result, err := svc.List(context.Background(), superAdmin(), repository.RequestFilter{})
	require.NoError(t, err)
	assert.Equal(t, 3, result.Total)
}

func TestListPaginationEnvelope(t *testing.T) {
	svc, repo := newQueryFixture()
	for i := 0; i < 5; i++ {
		seedOwned(t, repo, "u-1", nil)
	}

	result, err := svc.List(context.Background(), standardUser("u-1"), repository.RequestFilter{Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, 5, result.Total)
	assert.Len(t, result.Items, 2)
	assert.True(t, result.HasMore)

	result, err = svc.List(context.Background(), standardUser("u-1"), repository.RequestFilter{Limit: 2, Offset: 4})
	require.NoError(t, err)
	assert.Len(t, result.Items, 1)
	assert.False(t, result.HasMore)
}

func TestListDefaultsLimit(t *testing.T) {
	svc, repo := newQueryFixture()
	seedOwned(t, repo, "u-1", nil)

	result, err := svc.List(context.Background(), standardUser("u-1"), repository.RequestFilter{})
	require.NoError(t, err)
	assert.Equal(t, 20, result.Limit)
	assert.Equal(t, 0, result.Offset)
}

func TestGetScope(t *testing.T) {
	svc, repo := newQueryFixture()
	id := seedOwned(t, repo, "u-1", strptr("c-1"))

	detail, err := svc.Get(context.Background(), standardUser("u-1"), id)
	require.NoError(t, err)
	assert.Equal(t, id, detail.Request.ID)

	_, err = svc.Get(context.Background(), standardUser("u-2"), id)
	assert.Equal(t, "FORBIDDEN", apperrors.CodeOf(err))

	_, err = svc.Get(context.Background(), adminFor("c-2"), id)
	assert.Equal(t, "INVALID_ARGUMENT", apperrors.CodeOf(err))

	_, err = svc.Get(context.Background(), adminFor("c-1"), id)
	assert.NoError(t, err)

	_, err = svc.Get(context.Background(), superAdmin(), id)
	assert.NoError(t, err)
}

func TestGetUnknownRequest(t *testing.T) {
	svc, _ := newQueryFixture()
	_, err := svc.Get(context.Background(), superAdmin(), "missing-id")
	assert.Equal(t, "NOT_FOUND", apperrors.CodeOf(err))
}

func TestGetIncludesTimeline(t *testing.T) {
	repo := newMemRequestRepo()
	users := &fakeUserDirectory{users: map[string]*domain.User{
		"u-1": {ID: "u-1", Name: "Maija", Role: domain.RoleUser},
	}}
	companies := &fakeCompanyDirectory{companies: map[string]*domain.Company{}}
	svc := NewQueryService(repo, users, companies)

	id := seedRequest(t, repo, domain.RequestStatusPending, nil)

	detail, err := svc.Get(context.Background(), superAdmin(), id)
	require.NoError(t, err)
	require.Len(t, detail.Timeline, 1)
	assert.Equal(t, TimelineEventStatus, detail.Timeline[0].Type)
	assert.Equal(t, "Maija", detail.Timeline[0].Actor.DisplayName)
	assert.Equal(t, "Maija", detail.CreatedBy.DisplayName)
}
