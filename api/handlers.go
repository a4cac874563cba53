/*
handlers.go - HTTP API handlers for the time accounting engine

PURPOSE:
  Exposes the engine via REST API. Handles HTTP request/response, JSON
  serialization, and delegates to domain logic.

ENDPOINTS:
  Entries:
    POST   /api/entries/start          Start a running timer
    POST   /api/entries/stop           Stop the running timer
    POST   /api/entries/{id}/resume    Copy an old entry into a new timer
    POST   /api/entries                Add a manual (closed) entry
    PUT    /api/entries/{id}          Edit a closed entry
    DELETE /api/entries/{id}          Delete an entry
    GET    /api/entries/current        The user's running timer, if any
    GET    /api/entries/day            Closed entries for one calendar day

  Reconciliation:
    POST   /api/reconciliation/generate  Compute a month's draft
    POST   /api/reconciliation/override  Manually correct a draft
    POST   /api/reconciliation/confirm   Lock the month, credit overtime
    GET    /api/reconciliation           Fetch one user-month record

  Rules:
    GET    /api/rules                  List a workspace's rules
    POST   /api/rules                  Create/update a rule
    POST   /api/rules/{id}/activate    Make a rule the active one

  Leave settings:
    GET    /api/leave-settings         List a workspace's settings
    POST   /api/leave-settings         Create a setting (disabled)
    GET    /api/leave-settings/{id}    Fetch one setting
    PUT    /api/leave-settings/{id}    Update a setting
    DELETE /api/leave-settings/{id}    Delete a setting
    POST   /api/leave-settings/{id}/enable
    POST   /api/leave-settings/{id}/disable
    POST   /api/leave-settings/execute Run all due settings now

  Supporting data:
    GET/POST /api/members              Workspace members
    POST     /api/leaves               Ingest an approved leave day
    GET      /api/users/{id}/ledger    Balance credit history

ERROR HANDLING:
  Domain errors map to HTTP status by kind:
  - 400: validation errors (bad user input)
  - 404: not found
  - 409: conflict (already running, already saved, already enabled)
  - 500: invalid arguments (programming errors) and everything else

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/warp/timekeeping/engine"
	"github.com/warp/timekeeping/leavegrant"
	"github.com/warp/timekeeping/reconcile"
	"github.com/warp/timekeeping/store/sqlite"
	"github.com/warp/timekeeping/timeutil"
	"github.com/warp/timekeeping/tracking"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store   *sqlite.Store
	Tracker *tracking.Manager
	Calc    *reconcile.Calculator
	Grants  *leavegrant.Service
}

// NewHandler wires the engine services on top of the given store. clock
// may be nil (system clock).
func NewHandler(store *sqlite.Store, clock timeutil.Clock) *Handler {
	return &Handler{
		Store:   store,
		Tracker: tracking.NewManager(store.Entries(), clock, nil),
		Calc:    reconcile.NewCalculator(store.Reconciliations(), clock),
		Grants:  leavegrant.NewService(store.Settings(), store.Members(), clock),
	}
}

// =============================================================================
// ENTRY ENDPOINTS
// =============================================================================

// StartEntry starts a running timer for the user.
// POST /api/entries/start
func (h *Handler) StartEntry(w http.ResponseWriter, r *http.Request) {
	var req StartEntryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.UserID == "" {
		writeError(w, http.StatusBadRequest, "user_id is required", nil)
		return
	}

	entry, err := h.Tracker.Start(r.Context(), req.UserID, req.ProjectID, req.Title, req.Billable)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toEntryDTO(*entry))
}

// StopEntry stops the user's running timer.
// POST /api/entries/stop
func (h *Handler) StopEntry(w http.ResponseWriter, r *http.Request) {
	var req StopEntryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	entry, err := h.Tracker.Stop(r.Context(), req.UserID)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toEntryDTO(*entry))
}

// ResumeEntry starts a new timer copying an old entry's metadata.
// POST /api/entries/{id}/resume
func (h *Handler) ResumeEntry(w http.ResponseWriter, r *http.Request) {
	entry, err := h.Tracker.Resume(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toEntryDTO(*entry))
}

// AddManualEntry adds a closed entry with explicit bounds.
// POST /api/entries
func (h *Handler) AddManualEntry(w http.ResponseWriter, r *http.Request) {
	var req ManualEntryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	start, err := time.Parse(time.RFC3339, req.StartTime)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid start_time (use RFC 3339)", err)
		return
	}
	end, err := time.Parse(time.RFC3339, req.EndTime)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid end_time (use RFC 3339)", err)
		return
	}

	entry, err := h.Tracker.AddManual(r.Context(), tracking.ManualEntry{
		UserID:    req.UserID,
		ProjectID: req.ProjectID,
		Title:     req.Title,
		StartTime: start,
		EndTime:   end,
		Billable:  req.Billable,
	})
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toEntryDTO(*entry))
}

// EditEntry rewrites a closed entry's bounds and metadata.
// PUT /api/entries/{id}
func (h *Handler) EditEntry(w http.ResponseWriter, r *http.Request) {
	var req EditEntryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	start, err := time.Parse(time.RFC3339, req.StartTime)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid start_time (use RFC 3339)", err)
		return
	}
	end, err := time.Parse(time.RFC3339, req.EndTime)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid end_time (use RFC 3339)", err)
		return
	}

	entry, err := h.Tracker.Edit(r.Context(), chi.URLParam(r, "id"), tracking.EntryEdit{
		StartTime: start,
		EndTime:   end,
		Title:     req.Title,
		ProjectID: req.ProjectID,
	})
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toEntryDTO(*entry))
}

// DeleteEntry removes an entry.
// DELETE /api/entries/{id}
func (h *Handler) DeleteEntry(w http.ResponseWriter, r *http.Request) {
	if err := h.Tracker.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deleted": true})
}

// CurrentEntry returns the user's running timer, or 404.
// GET /api/entries/current?user_id=
func (h *Handler) CurrentEntry(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "user_id is required", nil)
		return
	}

	entry, err := h.Tracker.Running(r.Context(), userID)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	if entry == nil {
		writeError(w, http.StatusNotFound, "No running entry", nil)
		return
	}
	writeJSON(w, http.StatusOK, toEntryDTO(*entry))
}

// DayEntries returns the user's closed entries for one calendar day.
// GET /api/entries/day?user_id=&date=YYYY-MM-DD
func (h *Handler) DayEntries(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "user_id is required", nil)
		return
	}
	day, err := time.Parse(dayFormat, r.URL.Query().Get("date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date (use YYYY-MM-DD)", err)
		return
	}

	entries, err := h.Tracker.ListDay(r.Context(), userID, day)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toEntryDTOs(entries))
}

// =============================================================================
// RECONCILIATION ENDPOINTS
// =============================================================================

// GenerateReconciliation computes a month's draft under the workspace's
// active calculation rule.
// POST /api/reconciliation/generate
func (h *Handler) GenerateReconciliation(w http.ResponseWriter, r *http.Request) {
	var req ReconciliationKeyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	key, ok := h.reconciliationKey(w, req)
	if !ok {
		return
	}

	rule, err := h.Store.Rules().ActiveRule(r.Context(), req.WorkspaceID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load active rule", err)
		return
	}
	if rule == nil {
		writeError(w, http.StatusBadRequest, "No active calculation rule in this workspace", nil)
		return
	}

	rec, err := h.Calc.Generate(r.Context(), key, *rule)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toReconciliationDTO(*rec))
}

// OverrideReconciliation manually corrects a draft's overtime/undertime.
// POST /api/reconciliation/override
func (h *Handler) OverrideReconciliation(w http.ResponseWriter, r *http.Request) {
	var req OverrideRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	key, ok := h.reconciliationKey(w, req.ReconciliationKeyRequest)
	if !ok {
		return
	}

	overtime, err := timeutil.ParseHMS(req.Overtime)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid overtime (use h:mm:ss)", err)
		return
	}
	undertime, err := timeutil.ParseHMS(req.Undertime)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid undertime (use h:mm:ss)", err)
		return
	}

	rec, err := h.Calc.Override(r.Context(), key, overtime, undertime)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toReconciliationDTO(*rec))
}

// ConfirmReconciliation locks the month and credits overtime.
// POST /api/reconciliation/confirm
func (h *Handler) ConfirmReconciliation(w http.ResponseWriter, r *http.Request) {
	var req ReconciliationKeyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	key, ok := h.reconciliationKey(w, req)
	if !ok {
		return
	}

	rec, err := h.Calc.Confirm(r.Context(), key)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toReconciliationDTO(*rec))
}

// GetReconciliation fetches one user-month record.
// GET /api/reconciliation?user_id=&workspace_id=&year=&month=
func (h *Handler) GetReconciliation(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	key, ok := h.reconciliationKey(w, ReconciliationKeyRequest{
		UserID:      q.Get("user_id"),
		WorkspaceID: q.Get("workspace_id"),
		Year:        atoi(q.Get("year")),
		Month:       atoi(q.Get("month")),
	})
	if !ok {
		return
	}

	rec, err := h.Calc.Get(r.Context(), key)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toReconciliationDTO(*rec))
}

func (h *Handler) reconciliationKey(w http.ResponseWriter, req ReconciliationKeyRequest) (reconcile.Key, bool) {
	if req.UserID == "" || req.WorkspaceID == "" {
		writeError(w, http.StatusBadRequest, "user_id and workspace_id are required", nil)
		return reconcile.Key{}, false
	}
	if req.Year < 2000 || req.Year > 2200 {
		writeError(w, http.StatusBadRequest, "year is out of range", nil)
		return reconcile.Key{}, false
	}
	if req.Month < 1 || req.Month > 12 {
		writeError(w, http.StatusBadRequest, "month must be between 1 and 12", nil)
		return reconcile.Key{}, false
	}
	return reconcile.Key{
		UserID:      req.UserID,
		WorkspaceID: req.WorkspaceID,
		Year:        req.Year,
		Month:       time.Month(req.Month),
	}, true
}

// =============================================================================
// RULE ENDPOINTS
// =============================================================================

// ListRules returns a workspace's calculation rules.
// GET /api/rules?workspace_id=
func (h *Handler) ListRules(w http.ResponseWriter, r *http.Request) {
	rules, err := h.Store.Rules().ListRules(r.Context(), r.URL.Query().Get("workspace_id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list rules", err)
		return
	}
	dtos := make([]RuleDTO, 0, len(rules))
	for _, rule := range rules {
		dtos = append(dtos, toRuleDTO(rule))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// SaveRule creates or updates a calculation rule. New rules start inactive.
// POST /api/rules
func (h *Handler) SaveRule(w http.ResponseWriter, r *http.Request) {
	var req SaveRuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.WorkspaceID == "" || req.Title == "" {
		writeError(w, http.StatusBadRequest, "workspace_id and title are required", nil)
		return
	}
	hours, err := decimal.NewFromString(req.WorkingHours)
	if err != nil || !hours.IsPositive() {
		writeError(w, http.StatusBadRequest, "working_hours must be a positive decimal", err)
		return
	}
	if _, ok := timeutil.ParseWeekdays(req.WeekDays); !ok || len(req.WeekDays) == 0 {
		writeError(w, http.StatusBadRequest, "week_days must name weekdays (Monday..Sunday)", nil)
		return
	}

	rule := reconcile.CalculationRule{
		ID:           req.ID,
		WorkspaceID:  req.WorkspaceID,
		Title:        req.Title,
		WorkingDays:  req.WorkingDays,
		WorkingHours: hours,
		WeekDays:     req.WeekDays,
		IsOvertime:   req.IsOvertime,
	}
	if rule.ID == "" {
		rule.ID = uuid.NewString()
	}
	if err := h.Store.Rules().SaveRule(r.Context(), rule); err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toRuleDTO(rule))
}

// ActivateRule makes a rule the workspace's single active rule.
// POST /api/rules/{id}/activate?workspace_id=
func (h *Handler) ActivateRule(w http.ResponseWriter, r *http.Request) {
	workspaceID := r.URL.Query().Get("workspace_id")
	if workspaceID == "" {
		writeError(w, http.StatusBadRequest, "workspace_id is required", nil)
		return
	}
	if err := h.Store.Rules().SetActive(r.Context(), workspaceID, chi.URLParam(r, "id")); err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"activated": true})
}

// =============================================================================
// LEAVE SETTING ENDPOINTS
// =============================================================================

// ListSettings returns a workspace's leave settings.
// GET /api/leave-settings?workspace_id=
func (h *Handler) ListSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := h.Grants.List(r.Context(), r.URL.Query().Get("workspace_id"))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSettingDTOs(settings))
}

// CreateSetting creates a leave setting, disabled.
// POST /api/leave-settings
func (h *Handler) CreateSetting(w http.ResponseWriter, r *http.Request) {
	in, ok := h.decodeSetting(w, r)
	if !ok {
		return
	}
	setting, err := h.Grants.Create(r.Context(), in)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toSettingDTO(*setting))
}

// GetSetting fetches one setting.
// GET /api/leave-settings/{id}
func (h *Handler) GetSetting(w http.ResponseWriter, r *http.Request) {
	setting, err := h.Grants.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSettingDTO(*setting))
}

// UpdateSetting rewrites a setting.
// PUT /api/leave-settings/{id}
func (h *Handler) UpdateSetting(w http.ResponseWriter, r *http.Request) {
	in, ok := h.decodeSetting(w, r)
	if !ok {
		return
	}
	in.ID = chi.URLParam(r, "id")
	setting, err := h.Grants.Update(r.Context(), in)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSettingDTO(*setting))
}

// DeleteSetting removes a setting.
// DELETE /api/leave-settings/{id}
func (h *Handler) DeleteSetting(w http.ResponseWriter, r *http.Request) {
	if err := h.Grants.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deleted": true})
}

// EnableSetting schedules a setting for execution.
// POST /api/leave-settings/{id}/enable
func (h *Handler) EnableSetting(w http.ResponseWriter, r *http.Request) {
	setting, err := h.Grants.Enable(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSettingDTO(*setting))
}

// DisableSetting takes a setting out of the schedule.
// POST /api/leave-settings/{id}/disable
func (h *Handler) DisableSetting(w http.ResponseWriter, r *http.Request) {
	setting, err := h.Grants.Disable(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSettingDTO(*setting))
}

// ExecuteSettings runs all due settings immediately.
// POST /api/leave-settings/execute
func (h *Handler) ExecuteSettings(w http.ResponseWriter, r *http.Request) {
	executed, err := h.Grants.ExecuteDue(r.Context())
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"executed": executed})
}

func (h *Handler) decodeSetting(w http.ResponseWriter, r *http.Request) (leavegrant.Setting, bool) {
	var req SaveSettingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return leavegrant.Setting{}, false
	}

	leaves, err := decimal.NewFromString(req.Leaves)
	if err != nil {
		writeError(w, http.StatusBadRequest, "leaves must be a decimal number of days", err)
		return leavegrant.Setting{}, false
	}

	setting := leavegrant.Setting{
		WorkspaceID: req.WorkspaceID,
		LeaveType:   req.LeaveType,
		Leaves:      leaves,
		Recurrence:  leavegrant.Recurrence(req.Recurrence),
		Frequency:   leavegrant.Frequency(req.Frequency),
		AnchorDay:   req.AnchorDay,
	}
	if req.ExecutionDate != "" {
		date, err := time.Parse(dayFormat, req.ExecutionDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid execution_date (use YYYY-MM-DD)", err)
			return leavegrant.Setting{}, false
		}
		setting.NextExecutionDate = &date
	}
	if setting.WorkspaceID == "" {
		writeError(w, http.StatusBadRequest, "workspace_id is required", nil)
		return leavegrant.Setting{}, false
	}
	return setting, true
}

// =============================================================================
// MEMBERS, LEAVES, LEDGER
// =============================================================================

// ListMembers returns a workspace's active members.
// GET /api/members?workspace_id=
func (h *Handler) ListMembers(w http.ResponseWriter, r *http.Request) {
	members, err := h.Store.Members().ActiveMembers(r.Context(), r.URL.Query().Get("workspace_id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list members", err)
		return
	}
	dtos := make([]MemberDTO, 0, len(members))
	for _, m := range members {
		dtos = append(dtos, MemberDTO{ID: m.ID, WorkspaceID: m.WorkspaceID, Name: m.Name, Active: m.Active})
	}
	writeJSON(w, http.StatusOK, dtos)
}

// SaveMember creates or updates a workspace member.
// POST /api/members
func (h *Handler) SaveMember(w http.ResponseWriter, r *http.Request) {
	var req MemberDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.WorkspaceID == "" || req.Name == "" {
		writeError(w, http.StatusBadRequest, "workspace_id and name are required", nil)
		return
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	err := h.Store.Members().SaveMember(r.Context(), leavegrant.Member{
		ID: req.ID, WorkspaceID: req.WorkspaceID, Name: req.Name, Active: req.Active,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save member", err)
		return
	}
	writeJSON(w, http.StatusCreated, req)
}

// SaveLeave ingests one approved leave day.
// POST /api/leaves
func (h *Handler) SaveLeave(w http.ResponseWriter, r *http.Request) {
	var req SaveLeaveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.UserID == "" || req.WorkspaceID == "" || req.TypeKey == "" {
		writeError(w, http.StatusBadRequest, "user_id, workspace_id and type_key are required", nil)
		return
	}
	date, err := time.Parse(dayFormat, req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date (use YYYY-MM-DD)", err)
		return
	}

	leave := reconcile.Leave{
		ID:          uuid.NewString(),
		UserID:      req.UserID,
		WorkspaceID: req.WorkspaceID,
		Date:        date,
		TypeKey:     req.TypeKey,
		Paid:        req.Paid,
	}
	if err := h.Store.Reconciliations().SaveLeave(r.Context(), leave); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save leave", err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"id": leave.ID})
}

// UserLedger returns a user's balance credit history, newest first.
// GET /api/users/{id}/ledger
func (h *Handler) UserLedger(w http.ResponseWriter, r *http.Request) {
	txs, err := h.Store.Ledger().TransactionsForUser(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load ledger", err)
		return
	}
	dtos := make([]LedgerTransactionDTO, 0, len(txs))
	for _, tx := range txs {
		dtos = append(dtos, toLedgerDTO(tx))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeEngineError maps domain error kinds to HTTP status codes. Invalid
// arguments are programming errors, not user input, so they fall through
// to 500.
func writeEngineError(w http.ResponseWriter, err error) {
	switch {
	case engine.IsValidation(err):
		writeError(w, http.StatusBadRequest, err.Error(), nil)
	case engine.IsNotFound(err):
		writeError(w, http.StatusNotFound, err.Error(), nil)
	case engine.IsConflict(err):
		writeError(w, http.StatusConflict, err.Error(), nil)
	default:
		writeError(w, http.StatusInternalServerError, "Internal error", err)
	}
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
