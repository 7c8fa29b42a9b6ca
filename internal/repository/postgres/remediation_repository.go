package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/pratik-mahalle/fleetfix/internal/domain/remediation"
	"github.com/pratik-mahalle/fleetfix/internal/pkg/metrics"
)

const actionColumns = `id, host_id, action_type, parameters, status, origin_kind, origin_ref,
	notify_on_success, dedup_key, approved_by, rejection_reason, result, error, failure_kind,
	created_at, approved_at, dispatched_at, completed_at, rejected_at, updated_at`

const activeStatusList = `('PENDING', 'APPROVED', 'EXECUTING')`

// RemediationRepository implements remediation.Repository for PostgreSQL/SQLite.
// Queries use $N placeholders, which both drivers accept.
type RemediationRepository struct {
	db *sqlx.DB
}

// NewRemediationRepository creates a new remediation repository
func NewRemediationRepository(db *sqlx.DB) *RemediationRepository {
	return &RemediationRepository{db: db}
}

type actionRow struct {
	ID              string         `db:"id"`
	HostID          string         `db:"host_id"`
	ActionType      string         `db:"action_type"`
	Parameters      string         `db:"parameters"`
	Status          string         `db:"status"`
	OriginKind      sql.NullString `db:"origin_kind"`
	OriginRef       sql.NullString `db:"origin_ref"`
	NotifyOnSuccess bool           `db:"notify_on_success"`
	DedupKey        string         `db:"dedup_key"`
	ApprovedBy      sql.NullString `db:"approved_by"`
	RejectionReason sql.NullString `db:"rejection_reason"`
	Result          sql.NullString `db:"result"`
	Error           sql.NullString `db:"error"`
	FailureKind     sql.NullString `db:"failure_kind"`
	CreatedAt       time.Time      `db:"created_at"`
	ApprovedAt      sql.NullTime   `db:"approved_at"`
	DispatchedAt    sql.NullTime   `db:"dispatched_at"`
	CompletedAt     sql.NullTime   `db:"completed_at"`
	RejectedAt      sql.NullTime   `db:"rejected_at"`
	UpdatedAt       time.Time      `db:"updated_at"`
}

type auditRow struct {
	ID         string         `db:"id"`
	ActionID   string         `db:"action_id"`
	Seq        int            `db:"seq"`
	FromStatus sql.NullString `db:"from_status"`
	ToStatus   string         `db:"to_status"`
	Actor      string         `db:"actor"`
	Note       sql.NullString `db:"note"`
	RecordedAt time.Time      `db:"recorded_at"`
}

// Create persists a new action and its initial audit records in one transaction.
func (r *RemediationRepository) Create(ctx context.Context, a *remediation.Action, records []*remediation.AuditRecord) error {
	defer observe("insert", "remediation_actions", time.Now())

	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	row, err := toActionRow(a)
	if err != nil {
		return err
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var existing struct {
		ID     string `db:"id"`
		Status string `db:"status"`
	}
	err = tx.GetContext(ctx, &existing,
		`SELECT id, status FROM remediation_actions WHERE dedup_key = $1 AND status IN `+activeStatusList+` LIMIT 1`,
		a.DedupKey)
	switch {
	case err == nil:
		return &remediation.ConflictError{
			DedupKey:       a.DedupKey,
			ExistingID:     existing.ID,
			ExistingStatus: remediation.ActionStatus(existing.Status),
		}
	case !errors.Is(err, sql.ErrNoRows):
		return fmt.Errorf("failed to check dedup key: %w", err)
	}

	_, err = tx.NamedExecContext(ctx, `
		INSERT INTO remediation_actions (`+actionColumns+`)
		VALUES (:id, :host_id, :action_type, :parameters, :status, :origin_kind, :origin_ref,
			:notify_on_success, :dedup_key, :approved_by, :rejection_reason, :result, :error, :failure_kind,
			:created_at, :approved_at, :dispatched_at, :completed_at, :rejected_at, :updated_at)
	`, row)
	if err != nil {
		if isUniqueViolation(err) {
			return &remediation.ConflictError{DedupKey: a.DedupKey}
		}
		return fmt.Errorf("failed to create remediation action: %w", err)
	}

	for _, rec := range records {
		rec.ActionID = a.ID
		if err := insertAudit(ctx, tx, rec); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit remediation action: %w", err)
	}
	return nil
}

// GetByID retrieves a remediation action by ID
func (r *RemediationRepository) GetByID(ctx context.Context, id string) (*remediation.Action, error) {
	defer observe("select", "remediation_actions", time.Now())
	return getAction(ctx, r.db, id)
}

func getAction(ctx context.Context, q sqlx.QueryerContext, id string) (*remediation.Action, error) {
	var row actionRow
	err := sqlx.GetContext(ctx, q, &row, `SELECT `+actionColumns+` FROM remediation_actions WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, remediation.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get remediation action: %w", err)
	}
	return row.toDomain()
}

// List retrieves actions matching filter, newest first, with the total match count.
func (r *RemediationRepository) List(ctx context.Context, filter remediation.Filter, limit, offset int) ([]*remediation.Action, int64, error) {
	defer observe("list", "remediation_actions", time.Now())

	var (
		where []string
		args  []interface{}
	)
	add := func(clause string, arg interface{}) {
		args = append(args, arg)
		where = append(where, fmt.Sprintf(clause, len(args)))
	}
	if filter.HostID != "" {
		add("host_id = $%d", filter.HostID)
	}
	if filter.Status != "" {
		add("status = $%d", string(filter.Status))
	}
	if filter.ActionType != "" {
		add("action_type = $%d", string(filter.ActionType))
	}
	whereSQL := ""
	if len(where) > 0 {
		whereSQL = " WHERE " + strings.Join(where, " AND ")
	}

	var total int64
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM remediation_actions`+whereSQL, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to count remediation actions: %w", err)
	}

	query := fmt.Sprintf(`SELECT %s FROM remediation_actions%s ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d`,
		actionColumns, whereSQL, len(args)+1, len(args)+2)
	var rows []actionRow
	if err := r.db.SelectContext(ctx, &rows, query, append(args, limit, offset)...); err != nil {
		return nil, 0, fmt.Errorf("failed to list remediation actions: %w", err)
	}

	actions := make([]*remediation.Action, 0, len(rows))
	for i := range rows {
		a, err := rows[i].toDomain()
		if err != nil {
			return nil, 0, err
		}
		actions = append(actions, a)
	}
	return actions, total, nil
}

// refused reports a transition rejected before touching the row: ErrNotFound for an
// unknown id, otherwise the StateError carrying the row's actual status.
func (r *RemediationRepository) refused(ctx context.Context, id string, err error) error {
	var stateErr *remediation.StateError
	if !errors.As(err, &stateErr) {
		return err
	}
	var current string
	lookupErr := r.db.GetContext(ctx, &current, `SELECT status FROM remediation_actions WHERE id = $1`, id)
	if errors.Is(lookupErr, sql.ErrNoRows) {
		return remediation.ErrNotFound
	}
	if lookupErr != nil {
		return fmt.Errorf("failed to read current status: %w", lookupErr)
	}
	stateErr.Actual = remediation.ActionStatus(current)
	return stateErr
}

// Transition applies a compare-and-swap status change and its audit record atomically.
func (r *RemediationRepository) Transition(ctx context.Context, t remediation.Transition) (*remediation.Action, error) {
	defer observe("transition", "remediation_actions", time.Now())

	if err := t.Validate(); err != nil {
		return nil, r.refused(ctx, t.ActionID, err)
	}
	at := t.At.UTC()

	sets := []string{"status = $1", "updated_at = $2"}
	args := []interface{}{string(t.To), at}
	set := func(column string, value interface{}) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	switch t.To {
	case remediation.ActionStatusApproved:
		set("approved_at", at)
		set("approved_by", t.Actor)
	case remediation.ActionStatusRejected:
		set("rejected_at", at)
		set("rejection_reason", nullString(t.Note))
	case remediation.ActionStatusExecuting:
		set("dispatched_at", at)
	case remediation.ActionStatusCompleted:
		set("completed_at", at)
		set("result", rawOrDefault(t.Result))
	case remediation.ActionStatusFailed:
		kind := t.FailureKind
		if kind == "" {
			kind = remediation.FailureExecution
		}
		set("completed_at", at)
		set("error", rawOrDefault(t.Error))
		set("failure_kind", string(kind))
	}
	args = append(args, t.ActionID, string(t.From))
	query := fmt.Sprintf(`UPDATE remediation_actions SET %s WHERE id = $%d AND status = $%d`,
		strings.Join(sets, ", "), len(args)-1, len(args))

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to transition remediation action: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n == 0 {
		var current string
		err := tx.GetContext(ctx, &current, `SELECT status FROM remediation_actions WHERE id = $1`, t.ActionID)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, remediation.ErrNotFound
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read current status: %w", err)
		}
		return nil, &remediation.StateError{
			ActionID: t.ActionID,
			Expected: t.From,
			Actual:   remediation.ActionStatus(current),
			Target:   t.To,
		}
	}

	if err := insertAudit(ctx, tx, &remediation.AuditRecord{
		ActionID:   t.ActionID,
		FromStatus: t.From,
		ToStatus:   t.To,
		Actor:      t.Actor,
		Note:       t.Note,
		Timestamp:  at,
	}); err != nil {
		return nil, err
	}

	action, err := getAction(ctx, tx, t.ActionID)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transition: %w", err)
	}
	return action, nil
}

// ClaimNext moves the host's oldest APPROVED action to EXECUTING. The "nothing is
// executing for this host" check is part of the guarded UPDATE, and the partial unique
// index on executing actions rejects any claim that still slips through.
func (r *RemediationRepository) ClaimNext(ctx context.Context, hostID, actor string, at time.Time) (*remediation.Action, error) {
	defer observe("claim", "remediation_actions", time.Now())
	at = at.UTC()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var id string
	err = tx.GetContext(ctx, &id, `
		SELECT id FROM remediation_actions
		WHERE host_id = $1 AND status = 'APPROVED'
		  AND NOT EXISTS (SELECT 1 FROM remediation_actions e WHERE e.host_id = $1 AND e.status = 'EXECUTING')
		ORDER BY created_at ASC, id ASC
		LIMIT 1
	`, hostID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to select next action: %w", err)
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE remediation_actions
		SET status = 'EXECUTING', dispatched_at = $1, updated_at = $1
		WHERE id = $2 AND status = 'APPROVED'
		  AND NOT EXISTS (SELECT 1 FROM remediation_actions e WHERE e.host_id = $3 AND e.status = 'EXECUTING')
	`, at, id, hostID)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to claim action: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n == 0 {
		return nil, nil
	}

	if err := insertAudit(ctx, tx, &remediation.AuditRecord{
		ActionID:   id,
		FromStatus: remediation.ActionStatusApproved,
		ToStatus:   remediation.ActionStatusExecuting,
		Actor:      actor,
		Timestamp:  at,
	}); err != nil {
		return nil, err
	}

	action, err := getAction(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit claim: %w", err)
	}
	return action, nil
}

// CountByStatus counts actions by status, optionally for one host.
func (r *RemediationRepository) CountByStatus(ctx context.Context, hostID string) (map[remediation.ActionStatus]int64, error) {
	defer observe("count", "remediation_actions", time.Now())

	query := `SELECT status, COUNT(*) AS n FROM remediation_actions`
	var args []interface{}
	if hostID != "" {
		query += ` WHERE host_id = $1`
		args = append(args, hostID)
	}
	query += ` GROUP BY status`

	var rows []struct {
		Status string `db:"status"`
		N      int64  `db:"n"`
	}
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to count remediation actions: %w", err)
	}

	counts := make(map[remediation.ActionStatus]int64, len(remediation.AllStatuses))
	for _, s := range remediation.AllStatuses {
		counts[s] = 0
	}
	for _, row := range rows {
		counts[remediation.ActionStatus(row.Status)] = row.N
	}
	return counts, nil
}

// History returns the audit trail of one action in transition order.
func (r *RemediationRepository) History(ctx context.Context, actionID string) ([]*remediation.AuditRecord, error) {
	defer observe("select", "remediation_audit", time.Now())

	var rows []auditRow
	err := r.db.SelectContext(ctx, &rows, `
		SELECT id, action_id, seq, from_status, to_status, actor, note, recorded_at
		FROM remediation_audit WHERE action_id = $1 ORDER BY seq ASC
	`, actionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load audit history: %w", err)
	}
	return auditRecords(rows), nil
}

// AuditSince pages the global audit stream after cursor.
func (r *RemediationRepository) AuditSince(ctx context.Context, cursor remediation.AuditCursor, limit int) ([]*remediation.AuditRecord, error) {
	defer observe("select", "remediation_audit", time.Now())

	var rows []auditRow
	err := r.db.SelectContext(ctx, &rows, `
		SELECT id, action_id, seq, from_status, to_status, actor, note, recorded_at
		FROM remediation_audit
		WHERE recorded_at > $1 OR (recorded_at = $1 AND id > $2)
		ORDER BY recorded_at ASC, id ASC
		LIMIT $3
	`, cursor.Timestamp.UTC(), cursor.ID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to page audit records: %w", err)
	}
	return auditRecords(rows), nil
}

func insertAudit(ctx context.Context, tx *sqlx.Tx, rec *remediation.AuditRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	var seq int
	if err := tx.GetContext(ctx, &seq,
		`SELECT COALESCE(MAX(seq), 0) + 1 FROM remediation_audit WHERE action_id = $1`, rec.ActionID); err != nil {
		return fmt.Errorf("failed to allocate audit sequence: %w", err)
	}
	rec.Seq = seq
	rec.Timestamp = rec.Timestamp.UTC()

	_, err := tx.ExecContext(ctx, `
		INSERT INTO remediation_audit (id, action_id, seq, from_status, to_status, actor, note, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, rec.ID, rec.ActionID, rec.Seq, nullString(string(rec.FromStatus)), string(rec.ToStatus),
		rec.Actor, nullString(rec.Note), rec.Timestamp)
	if err != nil {
		return fmt.Errorf("failed to write audit record: %w", err)
	}
	return nil
}

func auditRecords(rows []auditRow) []*remediation.AuditRecord {
	out := make([]*remediation.AuditRecord, 0, len(rows))
	for _, row := range rows {
		out = append(out, &remediation.AuditRecord{
			ID:         row.ID,
			ActionID:   row.ActionID,
			Seq:        row.Seq,
			FromStatus: remediation.ActionStatus(row.FromStatus.String),
			ToStatus:   remediation.ActionStatus(row.ToStatus),
			Actor:      row.Actor,
			Note:       row.Note.String,
			Timestamp:  row.RecordedAt.UTC(),
		})
	}
	return out
}

func toActionRow(a *remediation.Action) (*actionRow, error) {
	params, err := json.Marshal(a.Parameters)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal parameters: %w", err)
	}
	if a.Parameters == nil {
		params = []byte("{}")
	}
	row := &actionRow{
		ID:              a.ID,
		HostID:          a.HostID,
		ActionType:      string(a.ActionType),
		Parameters:      string(params),
		Status:          string(a.Status),
		NotifyOnSuccess: a.NotifyOnSuccess,
		DedupKey:        a.DedupKey,
		ApprovedBy:      nullString(a.ApprovedBy),
		RejectionReason: nullString(a.RejectionReason),
		Result:          nullRaw(a.Result),
		Error:           nullRaw(a.Error),
		FailureKind:     nullString(string(a.FailureKind)),
		CreatedAt:       a.CreatedAt.UTC(),
		ApprovedAt:      nullTime(a.ApprovedAt),
		DispatchedAt:    nullTime(a.DispatchedAt),
		CompletedAt:     nullTime(a.CompletedAt),
		RejectedAt:      nullTime(a.RejectedAt),
		UpdatedAt:       a.UpdatedAt.UTC(),
	}
	if a.Origin != nil {
		row.OriginKind = nullString(string(a.Origin.Kind))
		row.OriginRef = nullString(a.Origin.Ref)
	}
	return row, nil
}

func (row *actionRow) toDomain() (*remediation.Action, error) {
	a := &remediation.Action{
		ID:              row.ID,
		HostID:          row.HostID,
		ActionType:      remediation.ActionType(row.ActionType),
		Status:          remediation.ActionStatus(row.Status),
		NotifyOnSuccess: row.NotifyOnSuccess,
		DedupKey:        row.DedupKey,
		ApprovedBy:      row.ApprovedBy.String,
		RejectionReason: row.RejectionReason.String,
		FailureKind:     remediation.FailureKind(row.FailureKind.String),
		CreatedAt:       row.CreatedAt.UTC(),
		ApprovedAt:      timePtr(row.ApprovedAt),
		DispatchedAt:    timePtr(row.DispatchedAt),
		CompletedAt:     timePtr(row.CompletedAt),
		RejectedAt:      timePtr(row.RejectedAt),
		UpdatedAt:       row.UpdatedAt.UTC(),
	}

	dec := json.NewDecoder(strings.NewReader(row.Parameters))
	dec.UseNumber()
	if err := dec.Decode(&a.Parameters); err != nil {
		return nil, fmt.Errorf("failed to unmarshal parameters of %s: %w", row.ID, err)
	}
	if row.OriginKind.Valid {
		a.Origin = &remediation.Origin{Kind: remediation.OriginKind(row.OriginKind.String), Ref: row.OriginRef.String}
	}
	if row.Result.Valid {
		a.Result = json.RawMessage(row.Result.String)
	}
	if row.Error.Valid {
		a.Error = json.RawMessage(row.Error.String)
	}
	return a, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullRaw(raw json.RawMessage) sql.NullString {
	return sql.NullString{String: string(raw), Valid: len(raw) > 0}
}

// rawOrDefault stores an empty object when a host reports no payload, so result and
// error are always set at their terminal transition.
func rawOrDefault(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return "{}"
	}
	return string(raw)
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func timePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time.UTC()
	return &t
}

func observe(operation, table string, start time.Time) {
	metrics.RecordDBQuery(operation, table, time.Since(start))
}
