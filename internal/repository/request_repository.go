package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/service-request-engine/internal/domain"
)

// ErrStaleWrite is returned when the compare-and-swap predicate on
// updated_at matches no row: the record changed after it was read.
var ErrStaleWrite = errors.New("request has changed since it was read")

// SortKey enumerates supported list orderings.
type SortKey string

const (
	SortCreatedAtAsc  SortKey = "created_at_asc"
	SortCreatedAtDesc SortKey = "created_at_desc"
	SortUpdatedAtAsc  SortKey = "updated_at_asc"
	SortUpdatedAtDesc SortKey = "updated_at_desc"
	SortPriorityDesc  SortKey = "priority_desc"
	SortSLADueAtAsc   SortKey = "sla_due_at_asc"
)

// RequestFilter captures list/query parameters.
type RequestFilter struct {
	ServiceTypes []domain.ServiceType
	Statuses     []domain.RequestStatus
	Priorities   []domain.RequestPriority
	CompanyID    *string
	CreatedBy    *string
	AssignedTo   *string
	SearchTerm   *string
	CreatedFrom  *time.Time
	CreatedTo    *time.Time
	UpdatedFrom  *time.Time
	UpdatedTo    *time.Time
	Sort         SortKey
	Limit        int
	Offset       int
}

// AppendSet carries the history entries appended by one mutation. They are
// persisted in the same transaction as the parent row.
type AppendSet struct {
	StatusChanges     []domain.StatusChange
	AssignmentChanges []domain.AssignmentChange
	Notes             []domain.InternalNote
}

// Empty reports whether the set holds no entries.
func (a AppendSet) Empty() bool {
	return len(a.StatusChanges) == 0 && len(a.AssignmentChanges) == 0 && len(a.Notes) == 0
}

// RequestRepository encapsulates aggregate persistence. GetByID loads the
// request together with its three history logs; Save writes the parent row
// and the appended entries as one atomic unit guarded by a CAS on
// updated_at.
type RequestRepository interface {
	Create(ctx context.Context, req *domain.ServiceRequest) error
	GetByID(ctx context.Context, id string) (*domain.ServiceRequest, error)
	Save(ctx context.Context, req *domain.ServiceRequest, readUpdatedAt time.Time, appended AppendSet) error
	ListWithFilter(ctx context.Context, filter RequestFilter) ([]domain.ServiceRequest, int, error)
}

type requestRepository struct {
	pool *pgxpool.Pool
}

// NewRequestRepository instantiates repository.
func NewRequestRepository(pool *pgxpool.Pool) RequestRepository {
	return &requestRepository{pool: pool}
}

const requestColumns = `
        id, service_type, status, priority, created_by, created_by_role, company_id,
        assigned_to, last_updated_by, title, description, contact, location, schedule,
        budget, machine_repair_details, worker_details, transport_details, notes,
        metadata, sla_due_at, first_response_at, resolved_at, last_action_at,
        created_at, updated_at`

func (r *requestRepository) Create(ctx context.Context, req *domain.ServiceRequest) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	const query = `
        INSERT INTO service_requests (
            service_type, status, priority, created_by, created_by_role, company_id,
            assigned_to, last_updated_by, title, description, contact, location,
            schedule, budget, machine_repair_details, worker_details,
            transport_details, notes, metadata, sla_due_at, last_action_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21)
        RETURNING id, created_at, updated_at`

	contact, location, schedule, budget, machine, worker, transport, metadata, err := marshalPayload(req)
	if err != nil {
		return err
	}

	if err := tx.QueryRow(ctx, query,
		req.ServiceType,
		req.Status,
		req.Priority,
		req.CreatedBy,
		req.CreatedByRole,
		req.CompanyID,
		req.AssignedTo,
		req.LastUpdatedBy,
		req.Title,
		req.Description,
		contact,
		location,
		schedule,
		budget,
		machine,
		worker,
		transport,
		req.Notes,
		metadata,
		req.SLADueAt,
		req.LastActionAt,
	).Scan(&req.ID, &req.CreatedAt, &req.UpdatedAt); err != nil {
		return err
	}

	appended := AppendSet{
		StatusChanges:     req.StatusHistory,
		AssignmentChanges: req.AssignmentHistory,
		Notes:             req.InternalNotes,
	}
	if err := insertAppended(ctx, tx, req, appended); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *requestRepository) GetByID(ctx context.Context, id string) (*domain.ServiceRequest, error) {
	query := `SELECT ` + requestColumns + ` FROM service_requests WHERE id=$1`
	row := r.pool.QueryRow(ctx, query, id)
	req, err := scanRequest(row)
	if err != nil {
		return nil, err
	}
	if err := r.loadHistory(ctx, req); err != nil {
		return nil, err
	}
	return req, nil
}

func (r *requestRepository) Save(ctx context.Context, req *domain.ServiceRequest, readUpdatedAt time.Time, appended AppendSet) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	contact, location, schedule, budget, machine, worker, transport, metadata, err := marshalPayload(req)
	if err != nil {
		return err
	}

	// CAS on updated_at: the write lands only if nobody else wrote since
	// the load this mutation was computed from.
	const query = `
        UPDATE service_requests SET
            service_type=$1, status=$2, priority=$3, company_id=$4, assigned_to=$5,
            last_updated_by=$6, title=$7, description=$8, contact=$9, location=$10,
            schedule=$11, budget=$12, machine_repair_details=$13, worker_details=$14,
            transport_details=$15, notes=$16, metadata=$17, sla_due_at=$18,
            first_response_at=$19, resolved_at=$20, last_action_at=$21, updated_at=$22
        WHERE id=$23 AND updated_at=$24`

	cmd, err := tx.Exec(ctx, query,
		req.ServiceType,
		req.Status,
		req.Priority,
		req.CompanyID,
		req.AssignedTo,
		req.LastUpdatedBy,
		req.Title,
		req.Description,
		contact,
		location,
		schedule,
		budget,
		machine,
		worker,
		transport,
		req.Notes,
		metadata,
		req.SLADueAt,
		req.FirstResponseAt,
		req.ResolvedAt,
		req.LastActionAt,
		req.UpdatedAt,
		req.ID,
		readUpdatedAt,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		var exists bool
		if err := tx.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM service_requests WHERE id=$1)`, req.ID,
		).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return pgx.ErrNoRows
		}
		return ErrStaleWrite
	}

	if err := insertAppended(ctx, tx, req, appended); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *requestRepository) ListWithFilter(ctx context.Context, filter RequestFilter) ([]domain.ServiceRequest, int, error) {
	clauses := []string{"1=1"}
	args := []any{}

	appendIn := func(column string, values []string) {
		placeholders := make([]string, len(values))
		for i, v := range values {
			args = append(args, v)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("%s IN (%s)", column, strings.Join(placeholders, ",")))
	}

	if len(filter.ServiceTypes) > 0 {
		values := make([]string, len(filter.ServiceTypes))
		for i, v := range filter.ServiceTypes {
			values[i] = string(v)
		}
		appendIn("service_type", values)
	}
	if len(filter.Statuses) > 0 {
		values := make([]string, len(filter.Statuses))
		for i, v := range filter.Statuses {
			values[i] = string(v)
		}
		appendIn("status", values)
	}
	if len(filter.Priorities) > 0 {
		values := make([]string, len(filter.Priorities))
		for i, v := range filter.Priorities {
			values[i] = string(v)
		}
		appendIn("priority", values)
	}
	if filter.CompanyID != nil {
		args = append(args, *filter.CompanyID)
		clauses = append(clauses, fmt.Sprintf("company_id=$%d", len(args)))
	}
	if filter.CreatedBy != nil {
		args = append(args, *filter.CreatedBy)
		clauses = append(clauses, fmt.Sprintf("created_by=$%d", len(args)))
	}
	if filter.AssignedTo != nil {
		args = append(args, *filter.AssignedTo)
		clauses = append(clauses, fmt.Sprintf("assigned_to=$%d", len(args)))
	}
	if filter.CreatedFrom != nil {
		args = append(args, *filter.CreatedFrom)
		clauses = append(clauses, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if filter.CreatedTo != nil {
		args = append(args, *filter.CreatedTo)
		clauses = append(clauses, fmt.Sprintf("created_at <= $%d", len(args)))
	}
	if filter.UpdatedFrom != nil {
		args = append(args, *filter.UpdatedFrom)
		clauses = append(clauses, fmt.Sprintf("updated_at >= $%d", len(args)))
	}
	if filter.UpdatedTo != nil {
		args = append(args, *filter.UpdatedTo)
		clauses = append(clauses, fmt.Sprintf("updated_at <= $%d", len(args)))
	}
	if filter.SearchTerm != nil && strings.TrimSpace(*filter.SearchTerm) != "" {
		search := "%" + strings.ToLower(strings.TrimSpace(*filter.SearchTerm)) + "%"
		args = append(args, search)
		placeholder := fmt.Sprintf("$%d", len(args))
		clauses = append(clauses, fmt.Sprintf(
			"(LOWER(title) LIKE %s OR LOWER(description) LIKE %s OR LOWER(notes) LIKE %s OR LOWER(contact::text) LIKE %s)",
			placeholder, placeholder, placeholder, placeholder))
	}

	where := strings.Join(clauses, " AND ")

	var total int
	countQuery := `SELECT COUNT(*) FROM service_requests WHERE ` + where
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(`SELECT %s FROM service_requests WHERE %s ORDER BY %s LIMIT %d OFFSET %d`,
		requestColumns, where, orderBy(filter.Sort), limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var result []domain.ServiceRequest
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, 0, err
		}
		result = append(result, *req)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return result, total, nil
}

func orderBy(sort SortKey) string {
	switch sort {
	case SortCreatedAtAsc:
		return "created_at ASC"
	case SortCreatedAtDesc:
		return "created_at DESC"
	case SortUpdatedAtAsc:
		return "updated_at ASC"
	case SortPriorityDesc:
		return "CASE priority WHEN 'URGENT' THEN 0 WHEN 'HIGH' THEN 1 WHEN 'NORMAL' THEN 2 ELSE 3 END ASC, updated_at DESC"
	case SortSLADueAtAsc:
		return "sla_due_at ASC NULLS LAST"
	case SortUpdatedAtDesc:
		fallthrough
	default:
		return "updated_at DESC"
	}
}

func insertAppended(ctx context.Context, tx pgx.Tx, req *domain.ServiceRequest, appended AppendSet) error {
	for i := range appended.StatusChanges {
		entry := &appended.StatusChanges[i]
		const query = `
            INSERT INTO request_status_history (request_id, from_status, to_status, changed_by, reason, note, seq, created_at)
            VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
            RETURNING id`
		if err := tx.QueryRow(ctx, query,
			req.ID, entry.FromStatus, entry.ToStatus, entry.ChangedBy,
			entry.Reason, entry.Note, entry.Seq, entry.CreatedAt,
		).Scan(&entry.ID); err != nil {
			return err
		}
		entry.RequestID = req.ID
	}
	for i := range appended.AssignmentChanges {
		entry := &appended.AssignmentChanges[i]
		const query = `
            INSERT INTO request_assignment_history (request_id, assigned_to, unassigned_from, changed_by, reason, seq, created_at)
            VALUES ($1,$2,$3,$4,$5,$6,$7)
            RETURNING id`
		if err := tx.QueryRow(ctx, query,
			req.ID, entry.AssignedTo, entry.UnassignedFrom, entry.ChangedBy,
			entry.Reason, entry.Seq, entry.CreatedAt,
		).Scan(&entry.ID); err != nil {
			return err
		}
		entry.RequestID = req.ID
	}
	for i := range appended.Notes {
		entry := &appended.Notes[i]
		const query = `
            INSERT INTO request_internal_notes (request_id, message, kind, reason, created_by, seq, created_at)
            VALUES ($1,$2,$3,$4,$5,$6,$7)
            RETURNING id`
		if err := tx.QueryRow(ctx, query,
			req.ID, entry.Message, entry.Kind, entry.Reason,
			entry.CreatedBy, entry.Seq, entry.CreatedAt,
		).Scan(&entry.ID); err != nil {
			return err
		}
		entry.RequestID = req.ID
	}
	return nil
}

func (r *requestRepository) loadHistory(ctx context.Context, req *domain.ServiceRequest) error {
	const statusQuery = `
        SELECT id, request_id, from_status, to_status, changed_by, reason, note, seq, created_at
        FROM request_status_history WHERE request_id=$1 ORDER BY seq ASC`
	rows, err := r.pool.Query(ctx, statusQuery, req.ID)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var entry domain.StatusChange
		if err := rows.Scan(&entry.ID, &entry.RequestID, &entry.FromStatus, &entry.ToStatus,
			&entry.ChangedBy, &entry.Reason, &entry.Note, &entry.Seq, &entry.CreatedAt); err != nil {
			return err
		}
		req.StatusHistory = append(req.StatusHistory, entry)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	const assignQuery = `
        SELECT id, request_id, assigned_to, unassigned_from, changed_by, reason, seq, created_at
        FROM request_assignment_history WHERE request_id=$1 ORDER BY seq ASC`
	assignRows, err := r.pool.Query(ctx, assignQuery, req.ID)
	if err != nil {
		return err
	}
	defer assignRows.Close()
	for assignRows.Next() {
		var entry domain.AssignmentChange
		if err := assignRows.Scan(&entry.ID, &entry.RequestID, &entry.AssignedTo, &entry.UnassignedFrom,
			&entry.ChangedBy, &entry.Reason, &entry.Seq, &entry.CreatedAt); err != nil {
			return err
		}
		req.AssignmentHistory = append(req.AssignmentHistory, entry)
	}
	if err := assignRows.Err(); err != nil {
		return err
	}

	const noteQuery = `
        SELECT id, request_id, message, kind, reason, created_by, seq, created_at
        FROM request_internal_notes WHERE request_id=$1 ORDER BY seq ASC`
	noteRows, err := r.pool.Query(ctx, noteQuery, req.ID)
	if err != nil {
		return err
	}
	defer noteRows.Close()
	for noteRows.Next() {
		var entry domain.InternalNote
		if err := noteRows.Scan(&entry.ID, &entry.RequestID, &entry.Message, &entry.Kind,
			&entry.Reason, &entry.CreatedBy, &entry.Seq, &entry.CreatedAt); err != nil {
			return err
		}
		req.InternalNotes = append(req.InternalNotes, entry)
	}
	return noteRows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRequest(row rowScanner) (*domain.ServiceRequest, error) {
	var req domain.ServiceRequest
	var contact, location, schedule, budget, machine, worker, transport, metadata []byte
	if err := row.Scan(
		&req.ID,
		&req.ServiceType,
		&req.Status,
		&req.Priority,
		&req.CreatedBy,
		&req.CreatedByRole,
		&req.CompanyID,
		&req.AssignedTo,
		&req.LastUpdatedBy,
		&req.Title,
		&req.Description,
		&contact,
		&location,
		&schedule,
		&budget,
		&machine,
		&worker,
		&transport,
		&req.Notes,
		&metadata,
		&req.SLADueAt,
		&req.FirstResponseAt,
		&req.ResolvedAt,
		&req.LastActionAt,
		&req.CreatedAt,
		&req.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if err := unmarshalPayload(&req, contact, location, schedule, budget, machine, worker, transport, metadata); err != nil {
		return nil, err
	}
	return &req, nil
}

func marshalPayload(req *domain.ServiceRequest) (contact, location, schedule, budget, machine, worker, transport, metadata []byte, err error) {
	if contact, err = json.Marshal(req.Contact); err != nil {
		return
	}
	if location, err = json.Marshal(req.Location); err != nil {
		return
	}
	if schedule, err = json.Marshal(req.Schedule); err != nil {
		return
	}
	if budget, err = json.Marshal(req.Budget); err != nil {
		return
	}
	if machine, err = marshalOptional(req.MachineRepair); err != nil {
		return
	}
	if worker, err = marshalOptional(req.Worker); err != nil {
		return
	}
	if transport, err = marshalOptional(req.Transport); err != nil {
		return
	}
	if req.Metadata != nil {
		metadata, err = json.Marshal(req.Metadata)
	}
	return
}

func marshalOptional(v any) ([]byte, error) {
	switch det := v.(type) {
	case *domain.MachineRepairDetails:
		if det == nil {
			return nil, nil
		}
	case *domain.WorkerDetails:
		if det == nil {
			return nil, nil
		}
	case *domain.TransportDetails:
		if det == nil {
			return nil, nil
		}
	}
	return json.Marshal(v)
}

func unmarshalPayload(req *domain.ServiceRequest, contact, location, schedule, budget, machine, worker, transport, metadata []byte) error {
	if len(contact) > 0 {
		if err := json.Unmarshal(contact, &req.Contact); err != nil {
			return err
		}
	}
	if len(location) > 0 {
		if err := json.Unmarshal(location, &req.Location); err != nil {
			return err
		}
	}
	if len(schedule) > 0 {
		if err := json.Unmarshal(schedule, &req.Schedule); err != nil {
			return err
		}
	}
	if len(budget) > 0 {
		if err := json.Unmarshal(budget, &req.Budget); err != nil {
			return err
		}
	}
	if len(machine) > 0 {
		req.MachineRepair = &domain.MachineRepairDetails{}
		if err := json.Unmarshal(machine, req.MachineRepair); err != nil {
			return err
		}
	}
	if len(worker) > 0 {
		req.Worker = &domain.WorkerDetails{}
		if err := json.Unmarshal(worker, req.Worker); err != nil {
			return err
		}
	}
	if len(transport) > 0 {
		req.Transport = &domain.TransportDetails{}
		if err := json.Unmarshal(transport, req.Transport); err != nil {
			return err
		}
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &req.Metadata); err != nil {
			return err
		}
	}
	return nil
}
