package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/service-request-engine/internal/domain"
	apperrors "github.com/spec-kit/service-request-engine/pkg/util/errorutil"
)

func newWorkflowFixture() (*WorkflowService, *memRequestRepo) {
	repo := newMemRequestRepo()
	svc := NewWorkflowService(WorkflowDependencies{RequestRepo: repo})
	return svc, repo
}

func superAdmin() *domain.Principal {
	return &domain.Principal{UserID: "sa-1", Name: "Root", Role: domain.RoleSuperAdmin}
}

func adminFor(companyID string) *domain.Principal {
	return &domain.Principal{UserID: "ad-1", Name: "Ops", Role: domain.RoleAdmin, ContextCompanyID: &companyID}
}

func standardUser(id string) *domain.Principal {
	return &domain.Principal{UserID: id, Role: domain.RoleUser}
}

func seedRequest(t *testing.T, repo *memRequestRepo, status domain.RequestStatus, companyID *string) string {
	t.Helper()
	now := time.Now().UTC().Add(-time.Hour)
	req := &domain.ServiceRequest{
		ServiceType:   domain.ServiceTypeMachineRepair,
		Status:        status,
		Priority:      domain.RequestPriorityNormal,
		CreatedBy:     "u-1",
		CreatedByRole: domain.RoleUser,
		CompanyID:     companyID,
		LastUpdatedBy: "u-1",
		Title:         "CNC mill down",
		StatusHistory: []domain.StatusChange{{
			ToStatus: status, ChangedBy: "u-1", Reason: "created", Seq: 1, CreatedAt: now,
		}},
	}
	require.NoError(t, repo.Create(context.Background(), req))
	return req.ID
}

func mustGet(t *testing.T, repo *memRequestRepo, id string) *domain.ServiceRequest {
	t.Helper()
	req, err := repo.GetByID(context.Background(), id)
	require.NoError(t, err)
	return req
}

func TestCreateStandardUserDefaults(t *testing.T) {
	svc, repo := newWorkflowFixture()
	completed := domain.RequestStatusCompleted

	detail, err := svc.Create(context.Background(), standardUser("u-7"), CreateRequestInput{
		ServiceType: domain.ServiceTypeWorker,
		Title:       "  Two welders for night shift  ",
		Status:      &completed,
		AssignedTo:  strptr("u-99"),
		CompanyID:   strptr("c-arbitrary"),
		Metadata:    map[string]any{"source": "portal"},
		Worker:      &domain.WorkerDetails{Trade: "welder", HeadCount: 2},
	})
	require.NoError(t, err)

	// status, assignee, company and metadata are elevated-only; for a
	// standard caller they are dropped, not rejected
	assert.Equal(t, domain.RequestStatusPending, detail.Request.Status)
	assert.Nil(t, detail.Request.AssignedTo)
	assert.Nil(t, detail.Request.CompanyID)
	assert.Nil(t, detail.Request.Metadata)
	assert.Equal(t, domain.RequestPriorityNormal, detail.Request.Priority)
	assert.Equal(t, "Two welders for night shift", detail.Request.Title)

	stored := mustGet(t, repo, detail.Request.ID)
	assert.Nil(t, stored.CompanyID, "a standard caller cannot pin a request to a tenant")
	assert.Nil(t, stored.Metadata)
	assert.Nil(t, stored.ResolvedAt)
	assert.Nil(t, stored.FirstResponseAt)
	require.Len(t, stored.StatusHistory, 1)
	assert.Nil(t, stored.StatusHistory[0].FromStatus)
	assert.Equal(t, domain.RequestStatusPending, stored.StatusHistory[0].ToStatus)
	assert.Equal(t, "created", stored.StatusHistory[0].Reason)
	assert.Empty(t, stored.AssignmentHistory)
}

func TestCreateElevatedCallerPicksStatusAndAssignee(t *testing.T) {
	svc, repo := newWorkflowFixture()
	scheduled := domain.RequestStatusScheduled

	detail, err := svc.Create(context.Background(), superAdmin(), CreateRequestInput{
		ServiceType: domain.ServiceTypeTransport,
		Title:       "Move press brake to new hall",
		Status:      &scheduled,
		AssignedTo:  strptr("u-42"),
		CompanyID:   strptr("c-1"),
		Metadata:    map[string]any{"order_ref": "SO-1009"},
		Transport:   &domain.TransportDetails{CargoType: "press brake", WeightKg: 8200},
	})
	require.NoError(t, err)

	stored := mustGet(t, repo, detail.Request.ID)
	assert.Equal(t, domain.RequestStatusScheduled, stored.Status)
	require.NotNil(t, stored.AssignedTo)
	assert.Equal(t, "u-42", *stored.AssignedTo)
	require.NotNil(t, stored.CompanyID)
	assert.Equal(t, "c-1", *stored.CompanyID)
	assert.Equal(t, map[string]any{"order_ref": "SO-1009"}, stored.Metadata)

	// born past PENDING: the first response already happened at creation
	require.NotNil(t, stored.FirstResponseAt)
	assert.Nil(t, stored.ResolvedAt)

	// the synthetic first entry still targets the chosen initial status
	require.Len(t, stored.StatusHistory, 1)
	assert.Nil(t, stored.StatusHistory[0].FromStatus)
	assert.Equal(t, domain.RequestStatusScheduled, stored.StatusHistory[0].ToStatus)
	require.Len(t, stored.AssignmentHistory, 1)
	assert.Equal(t, "u-42", *stored.AssignmentHistory[0].AssignedTo)
}

func TestCreateTerminalStatusSetsResolvedAt(t *testing.T) {
	svc, repo := newWorkflowFixture()

	for _, terminal := range []domain.RequestStatus{domain.RequestStatusCompleted, domain.RequestStatusCancelled} {
		status := terminal
		detail, err := svc.Create(context.Background(), superAdmin(), CreateRequestInput{
			ServiceType: domain.ServiceTypeMachineRepair,
			Title:       "Backfilled repair record",
			Status:      &status,
		})
		require.NoError(t, err)

		stored := mustGet(t, repo, detail.Request.ID)
		assert.Equal(t, terminal, stored.Status)
		require.NotNilf(t, stored.ResolvedAt, "record created in %s must carry resolved_at", terminal)
		require.NotNil(t, stored.FirstResponseAt)
	}
}

func TestCreateKeepsOnlyMatchingDetailBlock(t *testing.T) {
	svc, _ := newWorkflowFixture()

	detail, err := svc.Create(context.Background(), standardUser("u-7"), CreateRequestInput{
		ServiceType:   domain.ServiceTypeMachineRepair,
		Title:         "Spindle vibration",
		MachineRepair: &domain.MachineRepairDetails{MachineType: "lathe"},
		Worker:        &domain.WorkerDetails{Trade: "welder"},
		Transport:     &domain.TransportDetails{CargoType: "scrap"},
	})
	require.NoError(t, err)

	assert.NotNil(t, detail.Request.MachineRepair)
	assert.Nil(t, detail.Request.Worker)
	assert.Nil(t, detail.Request.Transport)
}

func TestCreateValidation(t *testing.T) {
	svc, _ := newWorkflowFixture()

	_, err := svc.Create(context.Background(), standardUser("u-7"), CreateRequestInput{
		ServiceType: domain.ServiceType("GARDENING"),
		Title:       "Hedge trim",
	})
	assert.Equal(t, "INVALID_ARGUMENT", apperrors.CodeOf(err))

	_, err = svc.Create(context.Background(), standardUser("u-7"), CreateRequestInput{
		ServiceType: domain.ServiceTypeWorker,
		Title:       "   ",
	})
	assert.Equal(t, "INVALID_ARGUMENT", apperrors.CodeOf(err))

	_, err = svc.Create(context.Background(), standardUser("u-7"), CreateRequestInput{
		ServiceType: domain.ServiceTypeWorker,
		Title:       "Night shift",
		Priority:    domain.RequestPriority("SEVERE"),
	})
	assert.Equal(t, "INVALID_ARGUMENT", apperrors.CodeOf(err))
}

func TestApplyWorkflowStatusTransition(t *testing.T) {
	svc, repo := newWorkflowFixture()
	id := seedRequest(t, repo, domain.RequestStatusPending, nil)
	before := mustGet(t, repo, id)

	inReview := domain.RequestStatusInReview
	detail, err := svc.ApplyWorkflow(context.Background(), superAdmin(), id, WorkflowMutationInput{
		Status: &inReview,
		Reason: "triage complete",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.RequestStatusInReview, detail.Request.Status)

	stored := mustGet(t, repo, id)
	assert.Equal(t, domain.RequestStatusInReview, stored.Status)
	assert.True(t, stored.UpdatedAt.After(before.UpdatedAt), "updated_at must strictly advance")
	require.NotNil(t, stored.FirstResponseAt, "leaving PENDING records first response")
	assert.Nil(t, stored.ResolvedAt)

	require.Len(t, stored.StatusHistory, 2)
	last := stored.StatusHistory[1]
	require.NotNil(t, last.FromStatus)
	assert.Equal(t, domain.RequestStatusPending, *last.FromStatus)
	assert.Equal(t, domain.RequestStatusInReview, last.ToStatus)
	assert.Equal(t, "triage complete", last.Reason)
	assert.Equal(t, 2, last.Seq)
}

func TestApplyWorkflowCompletionSetsResolvedAt(t *testing.T) {
	svc, repo := newWorkflowFixture()
	id := seedRequest(t, repo, domain.RequestStatusInProgress, nil)

	completed := domain.RequestStatusCompleted
	_, err := svc.ApplyWorkflow(context.Background(), superAdmin(), id, WorkflowMutationInput{
		Status: &completed,
		Reason: "work signed off",
	})
	require.NoError(t, err)

	stored := mustGet(t, repo, id)
	assert.Equal(t, domain.RequestStatusCompleted, stored.Status)
	require.NotNil(t, stored.ResolvedAt)
	// request never sat in PENDING during this mutation, so no first response
	assert.Nil(t, stored.FirstResponseAt)
}

func TestApplyWorkflowInvalidTransitionLeavesRecordUntouched(t *testing.T) {
	svc, repo := newWorkflowFixture()
	id := seedRequest(t, repo, domain.RequestStatusCompleted, nil)
	before := mustGet(t, repo, id)

	pending := domain.RequestStatusPending
	high := domain.RequestPriorityHigh
	_, err := svc.ApplyWorkflow(context.Background(), superAdmin(), id, WorkflowMutationInput{
		Status:   &pending,
		Priority: &high,
		Note:     "trying to reopen",
		Reason:   "customer called back",
	})
	require.Error(t, err)

	domainErr := apperrors.ToDomainError(err)
	assert.Equal(t, "INVALID_TRANSITION", domainErr.Code)
	assert.Equal(t, 422, domainErr.HTTPStatus)
	assert.Equal(t, "COMPLETED", domainErr.Details["from"])
	assert.Equal(t, "PENDING", domainErr.Details["to"])

	// all-or-nothing: the valid priority and note legs must not land either
	stored := mustGet(t, repo, id)
	assert.Equal(t, before.Status, stored.Status)
	assert.Equal(t, before.Priority, stored.Priority)
	assert.True(t, stored.UpdatedAt.Equal(before.UpdatedAt))
	assert.Len(t, stored.StatusHistory, len(before.StatusHistory))
	assert.Empty(t, stored.InternalNotes)
}

func TestApplyWorkflowNoOpSkipsWrite(t *testing.T) {
	svc, repo := newWorkflowFixture()
	id := seedRequest(t, repo, domain.RequestStatusInReview, nil)
	before := mustGet(t, repo, id)

	inReview := domain.RequestStatusInReview
	normal := domain.RequestPriorityNormal
	detail, err := svc.ApplyWorkflow(context.Background(), superAdmin(), id, WorkflowMutationInput{
		Status:   &inReview,
		Priority: &normal,
		Reason:   "periodic sweep",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.RequestStatusInReview, detail.Request.Status)

	stored := mustGet(t, repo, id)
	assert.True(t, stored.UpdatedAt.Equal(before.UpdatedAt), "no-op must not bump updated_at")
	assert.Len(t, stored.StatusHistory, len(before.StatusHistory))
	assert.Empty(t, stored.InternalNotes)
}

func TestApplyWorkflowStaleTokenConflicts(t *testing.T) {
	svc, repo := newWorkflowFixture()
	id := seedRequest(t, repo, domain.RequestStatusPending, nil)

	token := mustGet(t, repo, id).UpdatedAt.Format(time.RFC3339Nano)

	inReview := domain.RequestStatusInReview
	_, err := svc.ApplyWorkflow(context.Background(), superAdmin(), id, WorkflowMutationInput{
		Status:            &inReview,
		Reason:            "first writer",
		ExpectedUpdatedAt: &token,
	})
	require.NoError(t, err)

	scheduled := domain.RequestStatusScheduled
	_, err = svc.ApplyWorkflow(context.Background(), superAdmin(), id, WorkflowMutationInput{
		Status:            &scheduled,
		Reason:            "second writer",
		ExpectedUpdatedAt: &token,
	})
	require.Error(t, err)
	assert.Equal(t, "CONFLICT", apperrors.CodeOf(err))

	stored := mustGet(t, repo, id)
	assert.Equal(t, domain.RequestStatusInReview, stored.Status, "losing writer must not land")
}

func TestApplyWorkflowScopeCheckedBeforeConcurrency(t *testing.T) {
	svc, repo := newWorkflowFixture()
	id := seedRequest(t, repo, domain.RequestStatusPending, strptr("c-1"))

	garbage := "not-a-timestamp"
	inReview := domain.RequestStatusInReview
	admin := &domain.Principal{UserID: "ad-1", Role: domain.RoleAdmin}
	_, err := svc.ApplyWorkflow(context.Background(), admin, id, WorkflowMutationInput{
		Status:            &inReview,
		Reason:            "triage",
		ExpectedUpdatedAt: &garbage,
	})
	require.Error(t, err)

	// the missing company context must surface, not the bad timestamp
	domainErr := apperrors.ToDomainError(err)
	assert.Equal(t, "INVALID_ARGUMENT", domainErr.Code)
	assert.Contains(t, domainErr.Message, "company context")
}

func TestApplyWorkflowForbiddenForStandardUser(t *testing.T) {
	svc, repo := newWorkflowFixture()
	id := seedRequest(t, repo, domain.RequestStatusPending, nil)

	inReview := domain.RequestStatusInReview
	_, err := svc.ApplyWorkflow(context.Background(), standardUser("u-1"), id, WorkflowMutationInput{
		Status: &inReview,
		Reason: "self triage",
	})
	assert.Equal(t, "FORBIDDEN", apperrors.CodeOf(err))
}

func TestApplyWorkflowAdminScopedToCompany(t *testing.T) {
	svc, repo := newWorkflowFixture()
	id := seedRequest(t, repo, domain.RequestStatusPending, strptr("c-1"))

	inReview := domain.RequestStatusInReview
	_, err := svc.ApplyWorkflow(context.Background(), adminFor("c-2"), id, WorkflowMutationInput{
		Status: &inReview,
		Reason: "triage",
	})
	assert.Equal(t, "INVALID_ARGUMENT", apperrors.CodeOf(err))

	_, err = svc.ApplyWorkflow(context.Background(), adminFor("c-1"), id, WorkflowMutationInput{
		Status: &inReview,
		Reason: "triage",
	})
	assert.NoError(t, err)
}

func TestApplyWorkflowAssignmentLifecycle(t *testing.T) {
	svc, repo := newWorkflowFixture()
	id := seedRequest(t, repo, domain.RequestStatusInReview, nil)

	_, err := svc.ApplyWorkflow(context.Background(), superAdmin(), id, WorkflowMutationInput{
		HasAssignedTo: true,
		AssignedTo:    strptr("u-9"),
		Reason:        "dispatching technician",
	})
	require.NoError(t, err)

	stored := mustGet(t, repo, id)
	require.NotNil(t, stored.AssignedTo)
	assert.Equal(t, "u-9", *stored.AssignedTo)
	require.Len(t, stored.AssignmentHistory, 1)
	assert.Equal(t, "u-9", *stored.AssignmentHistory[0].AssignedTo)
	assert.Nil(t, stored.AssignmentHistory[0].UnassignedFrom)

	// explicit null unassigns and records who was dropped
	_, err = svc.ApplyWorkflow(context.Background(), superAdmin(), id, WorkflowMutationInput{
		HasAssignedTo: true,
		AssignedTo:    nil,
		Reason:        "technician unavailable",
	})
	require.NoError(t, err)

	stored = mustGet(t, repo, id)
	assert.Nil(t, stored.AssignedTo)
	require.Len(t, stored.AssignmentHistory, 2)
	assert.Nil(t, stored.AssignmentHistory[1].AssignedTo)
	assert.Equal(t, "u-9", *stored.AssignmentHistory[1].UnassignedFrom)
}

func TestApplyWorkflowSameAssigneeIsNoOp(t *testing.T) {
	svc, repo := newWorkflowFixture()
	id := seedRequest(t, repo, domain.RequestStatusInReview, nil)

	_, err := svc.ApplyWorkflow(context.Background(), superAdmin(), id, WorkflowMutationInput{
		HasAssignedTo: true,
		AssignedTo:    nil,
		Reason:        "clearing an already empty slot",
	})
	require.NoError(t, err)

	stored := mustGet(t, repo, id)
	assert.Empty(t, stored.AssignmentHistory)
}

func TestApplyWorkflowSLALifecycle(t *testing.T) {
	svc, repo := newWorkflowFixture()
	id := seedRequest(t, repo, domain.RequestStatusInReview, nil)

	due := "2026-06-01T08:00:00Z"
	_, err := svc.ApplyWorkflow(context.Background(), superAdmin(), id, WorkflowMutationInput{
		HasSLADueAt: true,
		SLADueAt:    &due,
		Reason:      "contract SLA",
	})
	require.NoError(t, err)

	stored := mustGet(t, repo, id)
	require.NotNil(t, stored.SLADueAt)
	assert.True(t, stored.SLADueAt.Equal(time.Date(2026, 6, 1, 8, 0, 0, 0, time.UTC)))

	_, err = svc.ApplyWorkflow(context.Background(), superAdmin(), id, WorkflowMutationInput{
		HasSLADueAt: true,
		SLADueAt:    nil,
		Reason:      "contract renegotiated",
	})
	require.NoError(t, err)
	assert.Nil(t, mustGet(t, repo, id).SLADueAt)

	bad := "first of June"
	_, err = svc.ApplyWorkflow(context.Background(), superAdmin(), id, WorkflowMutationInput{
		HasSLADueAt: true,
		SLADueAt:    &bad,
		Reason:      "contract SLA",
	})
	assert.Equal(t, "INVALID_ARGUMENT", apperrors.CodeOf(err))
}

func TestApplyWorkflowNoteOnly(t *testing.T) {
	svc, repo := newWorkflowFixture()
	id := seedRequest(t, repo, domain.RequestStatusInReview, nil)
	before := mustGet(t, repo, id)

	_, err := svc.ApplyWorkflow(context.Background(), superAdmin(), id, WorkflowMutationInput{
		Note:   "customer prefers morning visits",
		Reason: "phone call",
	})
	require.NoError(t, err)

	stored := mustGet(t, repo, id)
	require.Len(t, stored.InternalNotes, 1)
	assert.Equal(t, domain.NoteKindWorkflow, stored.InternalNotes[0].Kind)
	assert.Equal(t, "customer prefers morning visits", stored.InternalNotes[0].Message)
	assert.True(t, stored.UpdatedAt.After(before.UpdatedAt))
	assert.Len(t, stored.StatusHistory, len(before.StatusHistory))
}

func TestApplyWorkflowReasonValidation(t *testing.T) {
	svc, repo := newWorkflowFixture()
	id := seedRequest(t, repo, domain.RequestStatusPending, nil)
	inReview := domain.RequestStatusInReview

	for _, reason := range []string{"", "  ", "no", strings.Repeat("x", 301)} {
		_, err := svc.ApplyWorkflow(context.Background(), superAdmin(), id, WorkflowMutationInput{
			Status: &inReview,
			Reason: reason,
		})
		assert.Equalf(t, "INVALID_ARGUMENT", apperrors.CodeOf(err), "reason=%q", reason)
	}
}

func TestApplyWorkflowUnknownRequest(t *testing.T) {
	svc, _ := newWorkflowFixture()
	inReview := domain.RequestStatusInReview
	_, err := svc.ApplyWorkflow(context.Background(), superAdmin(), "missing-id", WorkflowMutationInput{
		Status: &inReview,
		Reason: "triage",
	})
	assert.Equal(t, "NOT_FOUND", apperrors.CodeOf(err))
}

func TestApplyWorkflowUnknownEnumValues(t *testing.T) {
	svc, repo := newWorkflowFixture()
	id := seedRequest(t, repo, domain.RequestStatusPending, nil)

	bogusStatus := domain.RequestStatus("ARCHIVED")
	_, err := svc.ApplyWorkflow(context.Background(), superAdmin(), id, WorkflowMutationInput{
		Status: &bogusStatus,
		Reason: "cleanup",
	})
	assert.Equal(t, "INVALID_ARGUMENT", apperrors.CodeOf(err))

	bogusPriority := domain.RequestPriority("SEVERE")
	_, err = svc.ApplyWorkflow(context.Background(), superAdmin(), id, WorkflowMutationInput{
		Priority: &bogusPriority,
		Reason:   "cleanup",
	})
	assert.Equal(t, "INVALID_ARGUMENT", apperrors.CodeOf(err))
}
