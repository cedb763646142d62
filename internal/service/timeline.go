package service

import (
	"context"
	"sort"
	"time"

	"github.com/spec-kit/service-request-engine/internal/directory"
	"github.com/spec-kit/service-request-engine/internal/domain"
)

// TimelineEventType tags merged audit events.
type TimelineEventType string

const (
	TimelineEventStatus     TimelineEventType = "status"
	TimelineEventAssignment TimelineEventType = "assignment"
	TimelineEventNote       TimelineEventType = "note"
)

// TimelineEvent is one entry of the merged audit trail. Exactly one of
// Status, Assignment, Note is set, matching Type.
type TimelineEvent struct {
	Type       TimelineEventType
	At         time.Time
	Actor      domain.ActorSummary
	Status     *domain.StatusChange
	Assignment *domain.AssignmentChange
	Note       *domain.InternalNote
}

// BuildTimeline merges the three history logs into one sequence ordered
// most-recent-first. It is a pure read-side projection: the logs are never
// mutated and the result is recomputed on every call. Entries with equal
// timestamps keep their original insertion order within each log.
//
// Actors are resolved through the user directory; if resolution fails the
// event still renders with the bare id.
func BuildTimeline(ctx context.Context, req *domain.ServiceRequest, users directory.UserDirectory) []TimelineEvent {
	events := make([]TimelineEvent, 0,
		len(req.StatusHistory)+len(req.AssignmentHistory)+len(req.InternalNotes))

	for i := range req.StatusHistory {
		entry := &req.StatusHistory[i]
		events = append(events, TimelineEvent{
			Type:   TimelineEventStatus,
			At:     entry.CreatedAt,
			Status: entry,
		})
	}
	for i := range req.AssignmentHistory {
		entry := &req.AssignmentHistory[i]
		events = append(events, TimelineEvent{
			Type:       TimelineEventAssignment,
			At:         entry.CreatedAt,
			Assignment: entry,
		})
	}
	for i := range req.InternalNotes {
		entry := &req.InternalNotes[i]
		events = append(events, TimelineEvent{
			Type: TimelineEventNote,
			At:   entry.CreatedAt,
			Note: entry,
		})
	}

	// stable keeps per-log insertion order for equal timestamps
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].At.After(events[j].At)
	})

	resolver := newActorResolver(users)
	for i := range events {
		events[i].Actor = resolver.resolve(ctx, actorID(&events[i]))
	}
	return events
}

func actorID(event *TimelineEvent) string {
	switch event.Type {
	case TimelineEventStatus:
		return event.Status.ChangedBy
	case TimelineEventAssignment:
		return event.Assignment.ChangedBy
	case TimelineEventNote:
		return event.Note.CreatedBy
	}
	return ""
}

// actorResolver memoizes directory lookups for the duration of one read.
type actorResolver struct {
	users directory.UserDirectory
	seen  map[string]domain.ActorSummary
}

func newActorResolver(users directory.UserDirectory) *actorResolver {
	return &actorResolver{users: users, seen: make(map[string]domain.ActorSummary)}
}

func (r *actorResolver) resolve(ctx context.Context, userID string) domain.ActorSummary {
	if userID == "" {
		return domain.ActorSummary{}
	}
	if summary, ok := r.seen[userID]; ok {
		return summary
	}
	summary := domain.ActorSummary{ID: userID}
	if r.users != nil {
		if user, err := r.users.Resolve(ctx, userID); err == nil && user != nil {
			summary.DisplayName = user.Name
			summary.Role = string(user.Role)
		}
	}
	r.seen[userID] = summary
	return summary
}
