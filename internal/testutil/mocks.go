package testutil

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pratik-mahalle/fleetfix/internal/domain/host"
	"github.com/pratik-mahalle/fleetfix/internal/domain/remediation"
)

// MockRemediationRepository is an in-memory remediation.Repository with the same
// compare-and-swap semantics as the SQL store.
type MockRemediationRepository struct {
	mu      sync.Mutex
	Actions map[string]*remediation.Action
	Audit   []*remediation.AuditRecord

	CreateError     error
	TransitionError error
	ClaimError      error
}

func NewMockRemediationRepository() *MockRemediationRepository {
	return &MockRemediationRepository{Actions: make(map[string]*remediation.Action)}
}

func (m *MockRemediationRepository) Create(ctx context.Context, a *remediation.Action, records []*remediation.AuditRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.CreateError != nil {
		return m.CreateError
	}
	for _, existing := range m.Actions {
		if existing.DedupKey == a.DedupKey && existing.Status.IsActive() {
			return &remediation.ConflictError{DedupKey: a.DedupKey, ExistingID: existing.ID, ExistingStatus: existing.Status}
		}
	}
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	m.Actions[a.ID] = cloneAction(a)
	for _, rec := range records {
		rec.ActionID = a.ID
		m.appendAudit(rec)
	}
	return nil
}

func (m *MockRemediationRepository) GetByID(ctx context.Context, id string) (*remediation.Action, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.Actions[id]
	if !ok {
		return nil, remediation.ErrNotFound
	}
	return cloneAction(a), nil
}

func (m *MockRemediationRepository) List(ctx context.Context, filter remediation.Filter, limit, offset int) ([]*remediation.Action, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var matched []*remediation.Action
	for _, a := range m.Actions {
		if filter.HostID != "" && a.HostID != filter.HostID {
			continue
		}
		if filter.Status != "" && a.Status != filter.Status {
			continue
		}
		if filter.ActionType != "" && a.ActionType != filter.ActionType {
			continue
		}
		matched = append(matched, cloneAction(a))
	}
	sort.Slice(matched, func(i, j int) bool {
		if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].ID > matched[j].ID
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := int64(len(matched))
	if offset >= len(matched) {
		return []*remediation.Action{}, total, nil
	}
	end := offset + limit
	if limit <= 0 || end > len(matched) {
		end = len(matched)
	}
	return matched[offset:end], total, nil
}

func (m *MockRemediationRepository) Transition(ctx context.Context, t remediation.Transition) (*remediation.Action, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.TransitionError != nil {
		return nil, m.TransitionError
	}
	a, ok := m.Actions[t.ActionID]
	if !ok {
		return nil, remediation.ErrNotFound
	}
	if err := t.Validate(); err != nil {
		var stateErr *remediation.StateError
		if errors.As(err, &stateErr) {
			stateErr.Actual = a.Status
		}
		return nil, err
	}
	if a.Status != t.From {
		return nil, &remediation.StateError{ActionID: t.ActionID, Expected: t.From, Actual: a.Status, Target: t.To}
	}

	at := t.At.UTC()
	switch t.To {
	case remediation.ActionStatusApproved:
		a.ApprovedAt, a.ApprovedBy = &at, t.Actor
	case remediation.ActionStatusRejected:
		a.RejectedAt, a.RejectionReason = &at, t.Note
	case remediation.ActionStatusExecuting:
		a.DispatchedAt = &at
	case remediation.ActionStatusCompleted:
		a.CompletedAt, a.Result = &at, payloadOrEmpty(t.Result)
	case remediation.ActionStatusFailed:
		kind := t.FailureKind
		if kind == "" {
			kind = remediation.FailureExecution
		}
		a.CompletedAt, a.Error, a.FailureKind = &at, payloadOrEmpty(t.Error), kind
	}
	a.Status, a.UpdatedAt = t.To, at
	m.appendAudit(&remediation.AuditRecord{
		ActionID: t.ActionID, FromStatus: t.From, ToStatus: t.To, Actor: t.Actor, Note: t.Note, Timestamp: at,
	})
	return cloneAction(a), nil
}

func (m *MockRemediationRepository) ClaimNext(ctx context.Context, hostID, actor string, at time.Time) (*remediation.Action, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ClaimError != nil {
		return nil, m.ClaimError
	}
	var oldest *remediation.Action
	for _, a := range m.Actions {
		if a.HostID != hostID {
			continue
		}
		if a.Status == remediation.ActionStatusExecuting {
			return nil, nil
		}
		if a.Status != remediation.ActionStatusApproved {
			continue
		}
		if oldest == nil || a.CreatedAt.Before(oldest.CreatedAt) ||
			(a.CreatedAt.Equal(oldest.CreatedAt) && a.ID < oldest.ID) {
			oldest = a
		}
	}
	if oldest == nil {
		return nil, nil
	}

	at = at.UTC()
	oldest.Status, oldest.DispatchedAt, oldest.UpdatedAt = remediation.ActionStatusExecuting, &at, at
	m.appendAudit(&remediation.AuditRecord{
		ActionID: oldest.ID, FromStatus: remediation.ActionStatusApproved, ToStatus: remediation.ActionStatusExecuting,
		Actor: actor, Timestamp: at,
	})
	return cloneAction(oldest), nil
}

func (m *MockRemediationRepository) CountByStatus(ctx context.Context, hostID string) (map[remediation.ActionStatus]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	counts := make(map[remediation.ActionStatus]int64)
	for _, s := range remediation.AllStatuses {
		counts[s] = 0
	}
	for _, a := range m.Actions {
		if hostID == "" || a.HostID == hostID {
			counts[a.Status]++
		}
	}
	return counts, nil
}

func (m *MockRemediationRepository) History(ctx context.Context, actionID string) ([]*remediation.AuditRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*remediation.AuditRecord
	for _, rec := range m.Audit {
		if rec.ActionID == actionID {
			cp := *rec
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *MockRemediationRepository) AuditSince(ctx context.Context, cursor remediation.AuditCursor, limit int) ([]*remediation.AuditRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sorted := append([]*remediation.AuditRecord(nil), m.Audit...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Timestamp.Equal(sorted[j].Timestamp) {
			return sorted[i].ID < sorted[j].ID
		}
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})

	var out []*remediation.AuditRecord
	for _, rec := range sorted {
		after := rec.Timestamp.After(cursor.Timestamp) ||
			(rec.Timestamp.Equal(cursor.Timestamp) && rec.ID > cursor.ID)
		if !after {
			continue
		}
		cp := *rec
		out = append(out, &cp)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

// AuditCount returns the number of audit records written so far.
func (m *MockRemediationRepository) AuditCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Audit)
}

func (m *MockRemediationRepository) appendAudit(rec *remediation.AuditRecord) {
	seq := 1
	for _, existing := range m.Audit {
		if existing.ActionID == rec.ActionID {
			seq++
		}
	}
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	rec.Seq = seq
	cp := *rec
	m.Audit = append(m.Audit, &cp)
}

func cloneAction(a *remediation.Action) *remediation.Action {
	cp := *a
	if a.Parameters != nil {
		cp.Parameters = make(remediation.Parameters, len(a.Parameters))
		for k, v := range a.Parameters {
			cp.Parameters[k] = v
		}
	}
	if a.Origin != nil {
		o := *a.Origin
		cp.Origin = &o
	}
	return &cp
}

func payloadOrEmpty(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 || string(raw) == "null" {
		return json.RawMessage(`{}`)
	}
	return raw
}

// MockHostRepository is an in-memory host.Repository.
type MockHostRepository struct {
	mu    sync.Mutex
	Hosts map[string]*host.Host
}

func NewMockHostRepository() *MockHostRepository {
	return &MockHostRepository{Hosts: make(map[string]*host.Host)}
}

func (m *MockHostRepository) Create(ctx context.Context, h *host.Host) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.Hosts[h.ID]; ok {
		return host.ErrAlreadyExists
	}
	now := time.Now().UTC()
	h.CreatedAt, h.UpdatedAt = now, now
	cp := *h
	m.Hosts[h.ID] = &cp
	return nil
}

func (m *MockHostRepository) GetByID(ctx context.Context, id string) (*host.Host, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	h, ok := m.Hosts[id]
	if !ok {
		return nil, host.ErrNotFound
	}
	cp := *h
	return &cp, nil
}

func (m *MockHostRepository) List(ctx context.Context, limit, offset int) ([]*host.Host, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ids := make([]string, 0, len(m.Hosts))
	for id := range m.Hosts {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var out []*host.Host
	for i, id := range ids {
		if i < offset || (limit > 0 && len(out) == limit) {
			continue
		}
		cp := *m.Hosts[id]
		out = append(out, &cp)
	}
	return out, int64(len(ids)), nil
}

func (m *MockHostRepository) SetPaused(ctx context.Context, id string, paused bool, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	h, ok := m.Hosts[id]
	if !ok {
		return host.ErrNotFound
	}
	h.IsPaused, h.UpdatedAt = paused, at
	return nil
}

func (m *MockHostRepository) TouchCheckIn(ctx context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	h, ok := m.Hosts[id]
	if !ok {
		return host.ErrNotFound
	}
	h.LastCheckInAt = &at
	return nil
}

// MockHostState answers IsHostPaused from a map. Unknown hosts return host.ErrNotFound.
type MockHostState struct {
	mu     sync.Mutex
	Paused map[string]bool
	Err    error
}

func NewMockHostState(hosts ...string) *MockHostState {
	m := &MockHostState{Paused: make(map[string]bool)}
	for _, h := range hosts {
		m.Paused[h] = false
	}
	return m
}

func (m *MockHostState) IsHostPaused(ctx context.Context, hostID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Err != nil {
		return false, m.Err
	}
	paused, ok := m.Paused[hostID]
	if !ok {
		return false, host.ErrNotFound
	}
	return paused, nil
}

// SetPaused changes the maintenance flag of a host.
func (m *MockHostState) SetPaused(hostID string, paused bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Paused[hostID] = paused
}

// Notification is one recorded Notify call.
type Notification struct {
	Action  *remediation.Action
	Outcome remediation.Outcome
}

// RecordingNotifier captures Notify calls.
type RecordingNotifier struct {
	mu    sync.Mutex
	Calls []Notification
}

func (n *RecordingNotifier) Notify(ctx context.Context, action *remediation.Action, outcome remediation.Outcome) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.Calls = append(n.Calls, Notification{Action: action, Outcome: outcome})
}

// Count returns the number of notifications received.
func (n *RecordingNotifier) Count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.Calls)
}
