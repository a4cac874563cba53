/*
Package memory provides an in-memory implementation of the engine's store
contracts, for tests and development.

Transactions are simulated with a full snapshot taken under the store
mutex: the callback's writes either all stick or are rolled back, which is
exactly the atomicity the engine contracts ask for. The same invariants
the SQLite schema enforces with partial unique indexes are checked here in
code (single running entry, single enabled setting, idempotent ledger).
*/
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/warp/timekeeping/engine"
	"github.com/warp/timekeeping/leavegrant"
	"github.com/warp/timekeeping/ledger"
	"github.com/warp/timekeeping/reconcile"
	"github.com/warp/timekeeping/timeutil"
	"github.com/warp/timekeeping/tracking"
)

// Memory holds all state; facets share it.
type Memory struct {
	mu       sync.Mutex
	entries  map[string]tracking.Entry
	leaves   map[string]reconcile.Leave
	recs     map[reconcile.Key]reconcile.MonthlyReconciliation
	settings map[string]leavegrant.Setting
	members  map[string]leavegrant.Member
	ledgerTx []ledger.Transaction
	idem     map[string]bool
}

// New creates an empty store.
func New() *Memory {
	return &Memory{
		entries:  make(map[string]tracking.Entry),
		leaves:   make(map[string]reconcile.Leave),
		recs:     make(map[reconcile.Key]reconcile.MonthlyReconciliation),
		settings: make(map[string]leavegrant.Setting),
		members:  make(map[string]leavegrant.Member),
		idem:     make(map[string]bool),
	}
}

// =============================================================================
// SNAPSHOT TRANSACTIONS
// =============================================================================

type snapshot struct {
	entries  map[string]tracking.Entry
	leaves   map[string]reconcile.Leave
	recs     map[reconcile.Key]reconcile.MonthlyReconciliation
	settings map[string]leavegrant.Setting
	members  map[string]leavegrant.Member
	ledgerTx []ledger.Transaction
	idem     map[string]bool
}

func (m *Memory) withTx(fn func() error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := m.snapshot()
	if err := fn(); err != nil {
		m.restore(snap)
		return err
	}
	return nil
}

func (m *Memory) snapshot() snapshot {
	s := snapshot{
		entries:  make(map[string]tracking.Entry, len(m.entries)),
		leaves:   make(map[string]reconcile.Leave, len(m.leaves)),
		recs:     make(map[reconcile.Key]reconcile.MonthlyReconciliation, len(m.recs)),
		settings: make(map[string]leavegrant.Setting, len(m.settings)),
		members:  make(map[string]leavegrant.Member, len(m.members)),
		ledgerTx: append([]ledger.Transaction(nil), m.ledgerTx...),
		idem:     make(map[string]bool, len(m.idem)),
	}
	for k, v := range m.entries {
		s.entries[k] = v
	}
	for k, v := range m.leaves {
		s.leaves[k] = v
	}
	for k, v := range m.recs {
		s.recs[k] = v
	}
	for k, v := range m.settings {
		s.settings[k] = v
	}
	for k, v := range m.members {
		s.members[k] = v
	}
	for k, v := range m.idem {
		s.idem[k] = v
	}
	return s
}

func (m *Memory) restore(s snapshot) {
	m.entries = s.entries
	m.leaves = s.leaves
	m.recs = s.recs
	m.settings = s.settings
	m.members = s.members
	m.ledgerTx = s.ledgerTx
	m.idem = s.idem
}

// lock acquires the store mutex unless the caller is already inside a
// transaction (which holds it for the whole callback).
func (m *Memory) lock(inTx bool) func() {
	if inTx {
		return func() {}
	}
	m.mu.Lock()
	return m.mu.Unlock
}

// =============================================================================
// LEDGER (shared by facets)
// =============================================================================

func (m *Memory) creditOvertime(userID string, amount timeutil.HMS, idemKey string) error {
	if m.idem[idemKey] {
		return nil // already applied
	}
	m.idem[idemKey] = true
	m.ledgerTx = append(m.ledgerTx, ledger.Transaction{
		ID: uuid.NewString(), UserID: userID, Kind: ledger.KindOvertimeCredit,
		AmountSeconds: amount.TotalSeconds(), AmountDays: decimal.Zero,
		IdempotencyKey: idemKey, CreatedAt: time.Now().UTC(),
	})
	return nil
}

func (m *Memory) grantLeave(userID, leaveType string, days decimal.Decimal, idemKey string) error {
	if m.idem[idemKey] {
		return nil
	}
	m.idem[idemKey] = true
	m.ledgerTx = append(m.ledgerTx, ledger.Transaction{
		ID: uuid.NewString(), UserID: userID, Kind: ledger.KindLeaveGrant,
		LeaveType: leaveType, AmountDays: days,
		IdempotencyKey: idemKey, CreatedAt: time.Now().UTC(),
	})
	return nil
}

// Transactions returns a copy of the ledger, oldest first. For tests.
func (m *Memory) Transactions() []ledger.Transaction {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]ledger.Transaction(nil), m.ledgerTx...)
}

// =============================================================================
// ENTRIES FACET - tracking.EntryStore
// =============================================================================

type Entries struct {
	m    *Memory
	inTx bool
}

func (m *Memory) Entries() *Entries { return &Entries{m: m} }

func (e *Entries) WithTx(ctx context.Context, fn func(tx tracking.EntryStore) error) error {
	return e.m.withTx(func() error {
		return fn(&Entries{m: e.m, inTx: true})
	})
}

func (e *Entries) InsertEntry(_ context.Context, entry tracking.Entry) error {
	defer e.m.lock(e.inTx)()
	if entry.IsRunning() {
		for _, other := range e.m.entries {
			if other.UserID == entry.UserID && other.IsRunning() {
				return engine.Conflictf("a timer is already running for this user")
			}
		}
	}
	e.m.entries[entry.ID] = entry
	return nil
}

func (e *Entries) UpdateEntry(_ context.Context, entry tracking.Entry) error {
	defer e.m.lock(e.inTx)()
	if _, ok := e.m.entries[entry.ID]; !ok {
		return engine.NotFound("entry", entry.ID)
	}
	e.m.entries[entry.ID] = entry
	return nil
}

func (e *Entries) DeleteEntry(_ context.Context, id string) error {
	defer e.m.lock(e.inTx)()
	if _, ok := e.m.entries[id]; !ok {
		return engine.NotFound("entry", id)
	}
	delete(e.m.entries, id)
	return nil
}

func (e *Entries) GetEntry(_ context.Context, id string) (*tracking.Entry, error) {
	defer e.m.lock(e.inTx)()
	entry, ok := e.m.entries[id]
	if !ok {
		return nil, nil
	}
	return &entry, nil
}

func (e *Entries) RunningEntry(_ context.Context, userID string) (*tracking.Entry, error) {
	defer e.m.lock(e.inTx)()
	for _, entry := range e.m.entries {
		if entry.UserID == userID && entry.IsRunning() {
			found := entry
			return &found, nil
		}
	}
	return nil, nil
}

func (e *Entries) EntriesForDay(_ context.Context, userID string, day time.Time) ([]tracking.Entry, error) {
	defer e.m.lock(e.inTx)()
	var result []tracking.Entry
	for _, entry := range e.m.entries {
		if entry.UserID == userID && !entry.IsRunning() && timeutil.SameDay(entry.StartTime, day) {
			result = append(result, entry)
		}
	}
	sortEntries(result)
	return result, nil
}

// =============================================================================
// RECONCILIATIONS FACET - reconcile.Store
// =============================================================================

type Reconciliations struct {
	m    *Memory
	inTx bool
}

func (m *Memory) Reconciliations() *Reconciliations { return &Reconciliations{m: m} }

func (r *Reconciliations) WithTx(ctx context.Context, fn func(tx reconcile.Store) error) error {
	return r.m.withTx(func() error {
		return fn(&Reconciliations{m: r.m, inTx: true})
	})
}

func (r *Reconciliations) EntriesForMonth(_ context.Context, userID string, year int, month time.Month) ([]tracking.Entry, error) {
	defer r.m.lock(r.inTx)()
	start, end := timeutil.MonthBounds(year, month)
	var result []tracking.Entry
	for _, entry := range r.m.entries {
		if entry.UserID == userID && !entry.IsRunning() &&
			!entry.StartTime.Before(start) && entry.StartTime.Before(end) {
			result = append(result, entry)
		}
	}
	sortEntries(result)
	return result, nil
}

func (r *Reconciliations) LeavesForMonth(_ context.Context, userID, workspaceID string, year int, month time.Month) ([]reconcile.Leave, error) {
	defer r.m.lock(r.inTx)()
	start, end := timeutil.MonthBounds(year, month)
	var result []reconcile.Leave
	for _, l := range r.m.leaves {
		if l.UserID == userID && l.WorkspaceID == workspaceID &&
			!l.Date.Before(start) && l.Date.Before(end) {
			result = append(result, l)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Date.Before(result[j].Date) })
	return result, nil
}

// SaveLeave ingests an approved leave day. For test fixtures.
func (r *Reconciliations) SaveLeave(_ context.Context, l reconcile.Leave) error {
	defer r.m.lock(r.inTx)()
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	l.Date = timeutil.DayOf(l.Date)
	r.m.leaves[l.ID] = l
	return nil
}

func (r *Reconciliations) GetReconciliation(_ context.Context, key reconcile.Key) (*reconcile.MonthlyReconciliation, error) {
	defer r.m.lock(r.inTx)()
	rec, ok := r.m.recs[key]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (r *Reconciliations) PutDraft(_ context.Context, rec reconcile.MonthlyReconciliation) error {
	defer r.m.lock(r.inTx)()
	if existing, ok := r.m.recs[rec.Key()]; ok && existing.Saved {
		return engine.Conflictf("reconciliation is already saved")
	}
	r.m.recs[rec.Key()] = rec
	return nil
}

func (r *Reconciliations) MarkSaved(_ context.Context, key reconcile.Key) (bool, error) {
	defer r.m.lock(r.inTx)()
	rec, ok := r.m.recs[key]
	if !ok || rec.Saved {
		return false, nil
	}
	rec.Saved = true
	r.m.recs[key] = rec
	return true, nil
}

func (r *Reconciliations) CreditOvertime(_ context.Context, userID string, amount timeutil.HMS, idemKey string) error {
	defer r.m.lock(r.inTx)()
	return r.m.creditOvertime(userID, amount, idemKey)
}

func (r *Reconciliations) GrantLeave(_ context.Context, userID, leaveType string, days decimal.Decimal, idemKey string) error {
	defer r.m.lock(r.inTx)()
	return r.m.grantLeave(userID, leaveType, days, idemKey)
}

// =============================================================================
// SETTINGS FACET - leavegrant.SettingStore
// =============================================================================

type Settings struct {
	m    *Memory
	inTx bool
}

func (m *Memory) Settings() *Settings { return &Settings{m: m} }

func (s *Settings) WithTx(ctx context.Context, fn func(tx leavegrant.SettingStore) error) error {
	return s.m.withTx(func() error {
		return fn(&Settings{m: s.m, inTx: true})
	})
}

func (s *Settings) InsertSetting(_ context.Context, setting leavegrant.Setting) error {
	defer s.m.lock(s.inTx)()
	if err := s.checkSingleEnabled(setting); err != nil {
		return err
	}
	s.m.settings[setting.ID] = setting
	return nil
}

func (s *Settings) UpdateSetting(_ context.Context, setting leavegrant.Setting) error {
	defer s.m.lock(s.inTx)()
	if _, ok := s.m.settings[setting.ID]; !ok {
		return engine.NotFound("setting", setting.ID)
	}
	if err := s.checkSingleEnabled(setting); err != nil {
		return err
	}
	s.m.settings[setting.ID] = setting
	return nil
}

func (s *Settings) checkSingleEnabled(setting leavegrant.Setting) error {
	if !setting.Enabled {
		return nil
	}
	for _, other := range s.m.settings {
		if other.ID != setting.ID && other.WorkspaceID == setting.WorkspaceID && other.Enabled {
			return engine.Conflictf("another setting is already enabled in this workspace")
		}
	}
	return nil
}

func (s *Settings) DeleteSetting(_ context.Context, id string) error {
	defer s.m.lock(s.inTx)()
	if _, ok := s.m.settings[id]; !ok {
		return engine.NotFound("setting", id)
	}
	delete(s.m.settings, id)
	return nil
}

func (s *Settings) GetSetting(_ context.Context, id string) (*leavegrant.Setting, error) {
	defer s.m.lock(s.inTx)()
	setting, ok := s.m.settings[id]
	if !ok {
		return nil, nil
	}
	return &setting, nil
}

func (s *Settings) ListSettings(_ context.Context, workspaceID string) ([]leavegrant.Setting, error) {
	defer s.m.lock(s.inTx)()
	var result []leavegrant.Setting
	for _, setting := range s.m.settings {
		if setting.WorkspaceID == workspaceID {
			result = append(result, setting)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.After(result[j].CreatedAt) })
	return result, nil
}

func (s *Settings) EnabledSetting(_ context.Context, workspaceID string) (*leavegrant.Setting, error) {
	defer s.m.lock(s.inTx)()
	for _, setting := range s.m.settings {
		if setting.WorkspaceID == workspaceID && setting.Enabled {
			found := setting
			return &found, nil
		}
	}
	return nil, nil
}

func (s *Settings) DueSettings(_ context.Context, today time.Time) ([]leavegrant.Setting, error) {
	defer s.m.lock(s.inTx)()
	today = timeutil.DayOf(today)
	var result []leavegrant.Setting
	for _, setting := range s.m.settings {
		if setting.Due(today) {
			result = append(result, setting)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].NextExecutionDate.Before(*result[j].NextExecutionDate)
	})
	return result, nil
}

func (s *Settings) CreditOvertime(_ context.Context, userID string, amount timeutil.HMS, idemKey string) error {
	defer s.m.lock(s.inTx)()
	return s.m.creditOvertime(userID, amount, idemKey)
}

func (s *Settings) GrantLeave(_ context.Context, userID, leaveType string, days decimal.Decimal, idemKey string) error {
	defer s.m.lock(s.inTx)()
	return s.m.grantLeave(userID, leaveType, days, idemKey)
}

// =============================================================================
// MEMBERS FACET - leavegrant.MemberStore
// =============================================================================

type Members struct {
	m *Memory
}

func (m *Memory) Members() *Members { return &Members{m: m} }

func (ms *Members) ActiveMembers(_ context.Context, workspaceID string) ([]leavegrant.Member, error) {
	ms.m.mu.Lock()
	defer ms.m.mu.Unlock()
	var result []leavegrant.Member
	for _, member := range ms.m.members {
		if member.WorkspaceID == workspaceID && member.Active {
			result = append(result, member)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

func (ms *Members) SaveMember(_ context.Context, member leavegrant.Member) error {
	ms.m.mu.Lock()
	defer ms.m.mu.Unlock()
	ms.m.members[member.ID] = member
	return nil
}

func sortEntries(entries []tracking.Entry) {
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].StartTime.Before(entries[j].StartTime)
	})
}
