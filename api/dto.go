/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

DATE FORMATS:
  - Instants (entry start/stop): RFC 3339, always UTC
  - Calendar days (leave dates, execution dates): YYYY-MM-DD
  - Durations: "h:mm:ss" tuples, optionally negative

VALIDATION:
  Validation is done in handlers and domain services, not in DTOs. DTOs
  are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"time"

	"github.com/warp/timekeeping/leavegrant"
	"github.com/warp/timekeeping/ledger"
	"github.com/warp/timekeeping/reconcile"
	"github.com/warp/timekeeping/timeutil"
	"github.com/warp/timekeeping/tracking"
)

const dayFormat = "2006-01-02"

// =============================================================================
// ENTRIES
// =============================================================================

// EntryDTO represents a time entry in API responses.
type EntryDTO struct {
	ID              string       `json:"id"`
	UserID          string       `json:"user_id"`
	ProjectID       string       `json:"project_id,omitempty"`
	Title           string       `json:"title"`
	StartTime       string       `json:"start_time"`
	EndTime         string       `json:"end_time,omitempty"`
	Duration        timeutil.HMS `json:"duration"`
	DurationSeconds int64        `json:"duration_seconds"`
	Billable        bool         `json:"billable"`
	Running         bool         `json:"running"`
}

func toEntryDTO(e tracking.Entry) EntryDTO {
	dto := EntryDTO{
		ID:              e.ID,
		UserID:          e.UserID,
		ProjectID:       e.ProjectID,
		Title:           e.Title,
		StartTime:       e.StartTime.UTC().Format(time.RFC3339),
		Duration:        timeutil.FromSeconds(e.DurationSeconds),
		DurationSeconds: e.DurationSeconds,
		Billable:        e.Billable,
		Running:         e.IsRunning(),
	}
	if e.EndTime != nil {
		dto.EndTime = e.EndTime.UTC().Format(time.RFC3339)
	}
	return dto
}

func toEntryDTOs(entries []tracking.Entry) []EntryDTO {
	dtos := make([]EntryDTO, 0, len(entries))
	for _, e := range entries {
		dtos = append(dtos, toEntryDTO(e))
	}
	return dtos
}

// StartEntryRequest starts a running timer.
type StartEntryRequest struct {
	UserID    string `json:"user_id"`
	ProjectID string `json:"project_id"`
	Title     string `json:"title"`
	Billable  bool   `json:"billable"`
}

// StopEntryRequest stops the user's running timer.
type StopEntryRequest struct {
	UserID string `json:"user_id"`
}

// ManualEntryRequest adds a closed entry with explicit bounds.
type ManualEntryRequest struct {
	UserID    string `json:"user_id"`
	ProjectID string `json:"project_id"`
	Title     string `json:"title"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
	Billable  bool   `json:"billable"`
}

// EditEntryRequest rewrites a closed entry's bounds and metadata.
type EditEntryRequest struct {
	ProjectID string `json:"project_id"`
	Title     string `json:"title"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

// =============================================================================
// RECONCILIATION
// =============================================================================

// ReconciliationDTO represents a monthly reconciliation in API responses.
type ReconciliationDTO struct {
	ID                string       `json:"id"`
	UserID            string       `json:"user_id"`
	WorkspaceID       string       `json:"workspace_id"`
	Year              int          `json:"year"`
	Month             int          `json:"month"`
	IdealWorkingDays  int          `json:"ideal_working_days"`
	IdealWorkingHours string       `json:"ideal_working_hours"`
	UserWorkingHours  timeutil.HMS `json:"user_working_hours"`
	UserWorkingDays   string       `json:"user_working_days"`
	TotalLeaves       int          `json:"total_leaves"`
	PaidLeaves        int          `json:"paid_leaves"`
	UnpaidLeaves      int          `json:"unpaid_leaves"`
	Overtime          timeutil.HMS `json:"overtime"`
	Undertime         timeutil.HMS `json:"undertime"`
	Overridden        bool         `json:"overridden"`
	OvertimeEnabled   bool         `json:"overtime_enabled"`
	Saved             bool         `json:"is_saved"`
	Version           int          `json:"version"`
}

func toReconciliationDTO(rec reconcile.MonthlyReconciliation) ReconciliationDTO {
	return ReconciliationDTO{
		ID:                rec.ID,
		UserID:            rec.UserID,
		WorkspaceID:       rec.WorkspaceID,
		Year:              rec.Year,
		Month:             int(rec.Month),
		IdealWorkingDays:  rec.IdealWorkingDays,
		IdealWorkingHours: rec.IdealWorkingHours.String(),
		UserWorkingHours:  rec.UserWorkingHours,
		UserWorkingDays:   rec.UserWorkingDays.String(),
		TotalLeaves:       rec.TotalLeaves,
		PaidLeaves:        rec.PaidLeaves,
		UnpaidLeaves:      rec.UnpaidLeaves,
		Overtime:          rec.Overtime,
		Undertime:         rec.Undertime,
		Overridden:        rec.Overridden,
		OvertimeEnabled:   rec.OvertimeEnabled,
		Saved:             rec.Saved,
		Version:           rec.Version,
	}
}

// ReconciliationKeyRequest identifies one user-month. Shared by the
// generate, override and confirm endpoints.
type ReconciliationKeyRequest struct {
	UserID      string `json:"user_id"`
	WorkspaceID string `json:"workspace_id"`
	Year        int    `json:"year"`
	Month       int    `json:"month"`
}

// OverrideRequest replaces the computed overtime/undertime on a draft.
type OverrideRequest struct {
	ReconciliationKeyRequest
	Overtime  string `json:"overtime"`
	Undertime string `json:"undertime"`
}

// =============================================================================
// CALCULATION RULES
// =============================================================================

// RuleDTO represents a calculation rule in API responses.
type RuleDTO struct {
	ID           string   `json:"id"`
	WorkspaceID  string   `json:"workspace_id"`
	Title        string   `json:"title"`
	WorkingDays  int      `json:"working_days"`
	WorkingHours string   `json:"working_hours"`
	WeekDays     []string `json:"week_days"`
	IsActive     bool     `json:"is_active"`
	IsOvertime   bool     `json:"is_overtime"`
}

func toRuleDTO(rule reconcile.CalculationRule) RuleDTO {
	return RuleDTO{
		ID:           rule.ID,
		WorkspaceID:  rule.WorkspaceID,
		Title:        rule.Title,
		WorkingDays:  rule.WorkingDays,
		WorkingHours: rule.WorkingHours.String(),
		WeekDays:     rule.WeekDays,
		IsActive:     rule.IsActive,
		IsOvertime:   rule.IsOvertime,
	}
}

// SaveRuleRequest creates or updates a calculation rule.
type SaveRuleRequest struct {
	ID           string   `json:"id"`
	WorkspaceID  string   `json:"workspace_id"`
	Title        string   `json:"title"`
	WorkingDays  int      `json:"working_days"`
	WorkingHours string   `json:"working_hours"`
	WeekDays     []string `json:"week_days"`
	IsOvertime   bool     `json:"is_overtime"`
}

// =============================================================================
// LEAVE SETTINGS
// =============================================================================

// SettingDTO represents an auto-add leave setting in API responses.
type SettingDTO struct {
	ID                string `json:"id"`
	WorkspaceID       string `json:"workspace_id"`
	LeaveType         string `json:"leave_type"`
	Leaves            string `json:"leaves"`
	Recurrence        string `json:"recurrence"`
	Frequency         string `json:"frequency,omitempty"`
	AnchorDay         int    `json:"day,omitempty"`
	NextExecutionDate string `json:"next_execution_date,omitempty"`
	LastExecutionDate string `json:"last_execution_date,omitempty"`
	Executed          bool   `json:"executed"`
	Enabled           bool   `json:"enabled"`
}

func toSettingDTO(s leavegrant.Setting) SettingDTO {
	dto := SettingDTO{
		ID:          s.ID,
		WorkspaceID: s.WorkspaceID,
		LeaveType:   s.LeaveType,
		Leaves:      s.Leaves.String(),
		Recurrence:  string(s.Recurrence),
		Frequency:   string(s.Frequency),
		AnchorDay:   s.AnchorDay,
		Executed:    s.Executed,
		Enabled:     s.Enabled,
	}
	if s.NextExecutionDate != nil {
		dto.NextExecutionDate = s.NextExecutionDate.Format(dayFormat)
	}
	if s.LastExecutionDate != nil {
		dto.LastExecutionDate = s.LastExecutionDate.Format(dayFormat)
	}
	return dto
}

func toSettingDTOs(settings []leavegrant.Setting) []SettingDTO {
	dtos := make([]SettingDTO, 0, len(settings))
	for _, s := range settings {
		dtos = append(dtos, toSettingDTO(s))
	}
	return dtos
}

// SaveSettingRequest creates or updates a leave setting. ExecutionDate is
// required for "once", Frequency and Day for "repeat".
type SaveSettingRequest struct {
	WorkspaceID   string `json:"workspace_id"`
	LeaveType     string `json:"leave_type"`
	Leaves        string `json:"leaves"`
	Recurrence    string `json:"recurrence"`
	Frequency     string `json:"frequency"`
	AnchorDay     int    `json:"day"`
	ExecutionDate string `json:"execution_date"`
}

// =============================================================================
// MEMBERS, LEAVES, LEDGER
// =============================================================================

// MemberDTO represents a workspace member.
type MemberDTO struct {
	ID          string `json:"id"`
	WorkspaceID string `json:"workspace_id"`
	Name        string `json:"name"`
	Active      bool   `json:"active"`
}

// SaveLeaveRequest ingests one approved leave day.
type SaveLeaveRequest struct {
	UserID      string `json:"user_id"`
	WorkspaceID string `json:"workspace_id"`
	Date        string `json:"date"`
	TypeKey     string `json:"type_key"`
	Paid        bool   `json:"paid"`
}

// LedgerTransactionDTO represents one balance credit in API responses.
type LedgerTransactionDTO struct {
	ID         string       `json:"id"`
	UserID     string       `json:"user_id"`
	Kind       string       `json:"kind"`
	LeaveType  string       `json:"leave_type,omitempty"`
	Amount     timeutil.HMS `json:"amount,omitempty"`
	AmountDays string       `json:"amount_days,omitempty"`
	CreatedAt  string       `json:"created_at"`
}

func toLedgerDTO(tx ledger.Transaction) LedgerTransactionDTO {
	return LedgerTransactionDTO{
		ID:         tx.ID,
		UserID:     tx.UserID,
		Kind:       string(tx.Kind),
		LeaveType:  tx.LeaveType,
		Amount:     timeutil.FromSeconds(tx.AmountSeconds),
		AmountDays: tx.AmountDays.String(),
		CreatedAt:  tx.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// ErrorResponse is the uniform error body.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
