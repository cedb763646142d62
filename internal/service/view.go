package service

import (
	"context"

	"github.com/spec-kit/service-request-engine/internal/directory"
	"github.com/spec-kit/service-request-engine/internal/domain"
)

// RequestDetail is the fully shaped read model returned by mutations and
// single-record reads: the aggregate plus resolved summaries and the
// freshly rebuilt timeline.
type RequestDetail struct {
	Request       *domain.ServiceRequest
	Company       *domain.CompanySummary
	CreatedBy     domain.ActorSummary
	AssignedTo    *domain.ActorSummary
	LastUpdatedBy domain.ActorSummary
	Timeline      []TimelineEvent
}

// shapeRequest rebuilds the timeline and resolves actor/company summaries.
// Directory failures degrade to id-only summaries; shaping never fails a
// read.
func shapeRequest(ctx context.Context, req *domain.ServiceRequest, users directory.UserDirectory, companies directory.CompanyDirectory) *RequestDetail {
	detail := &RequestDetail{
		Request:  req,
		Timeline: BuildTimeline(ctx, req, users),
	}

	resolver := newActorResolver(users)
	detail.CreatedBy = resolver.resolve(ctx, req.CreatedBy)
	detail.LastUpdatedBy = resolver.resolve(ctx, req.LastUpdatedBy)
	if req.AssignedTo != nil {
		summary := resolver.resolve(ctx, *req.AssignedTo)
		detail.AssignedTo = &summary
	}

	if req.CompanyID != nil && companies != nil {
		if company, err := companies.Resolve(ctx, *req.CompanyID); err == nil && company != nil {
			detail.Company = &domain.CompanySummary{
				ID:          company.ID,
				DisplayName: company.Name,
				Status:      string(company.Status),
				Type:        company.Type,
			}
		} else {
			detail.Company = &domain.CompanySummary{ID: *req.CompanyID}
		}
	}
	return detail
}
