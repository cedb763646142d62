package domain

import "time"

// NoteKind distinguishes workflow-originated notes from content edits.
type NoteKind string

const (
	NoteKindWorkflow NoteKind = "WORKFLOW"
	NoteKindContent  NoteKind = "CONTENT"
)

// StatusChange is an immutable status-history entry. FromStatus is nil for
// the synthetic entry written at creation. Seq preserves insertion order
// within one request.
type StatusChange struct {
	ID         string
	RequestID  string
	FromStatus *RequestStatus
	ToStatus   RequestStatus
	ChangedBy  string
	Reason     string
	Note       string
	Seq        int
	CreatedAt  time.Time
}

// AssignmentChange records an assignee change. A new entry exists only when
// the assignee actually changed; AssignedTo and UnassignedFrom are nil for
// unassignment and first assignment respectively.
type AssignmentChange struct {
	ID             string
	RequestID      string
	AssignedTo     *string
	UnassignedFrom *string
	ChangedBy      string
	Reason         string
	Seq            int
	CreatedAt      time.Time
}

// InternalNote is an operator-only annotation on a request.
type InternalNote struct {
	ID        string
	RequestID string
	Message   string
	Kind      NoteKind
	Reason    string
	CreatedBy string
	Seq       int
	CreatedAt time.Time
}
