/*
service.go - Setting lifecycle and execution contract

ENABLE INVARIANT:
  At most one setting per workspace is enabled. Enabling while another is
  enabled is rejected with a conflict; the engine never auto-disables the
  other setting (the caller is expected to disable it explicitly first).
  The check runs inside a store transaction and the SQLite store backs it
  with a partial unique index.

EXECUTION:
  ExecuteDue is called by an external periodic trigger (api.GrantScheduler
  here, a daily job in production). For each enabled setting whose next
  execution date is due, it grants the configured leave days to every
  active workspace member through the ledger, then advances the schedule:
  repeat settings re-anchor from the execution date, once settings mark
  themselves executed and self-disable. Each setting executes in its own
  transaction; the grants and the schedule advance commit together.
*/
package leavegrant

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/warp/timekeeping/engine"
	"github.com/warp/timekeeping/ledger"
	"github.com/warp/timekeeping/timeutil"
)

// =============================================================================
// STORE CONTRACTS
// =============================================================================

// SettingStore is the persistence collaborator for settings. It embeds the
// ledger so grants commit atomically with the schedule advance.
type SettingStore interface {
	ledger.Ledger

	WithTx(ctx context.Context, fn func(tx SettingStore) error) error

	InsertSetting(ctx context.Context, s Setting) error
	UpdateSetting(ctx context.Context, s Setting) error
	DeleteSetting(ctx context.Context, id string) error
	GetSetting(ctx context.Context, id string) (*Setting, error)
	ListSettings(ctx context.Context, workspaceID string) ([]Setting, error)

	// EnabledSetting returns the workspace's enabled setting, or nil.
	EnabledSetting(ctx context.Context, workspaceID string) (*Setting, error)

	// DueSettings returns enabled settings with NextExecutionDate <= today.
	DueSettings(ctx context.Context, today time.Time) ([]Setting, error)
}

// Member is an active workspace member receiving grants.
type Member struct {
	ID          string
	WorkspaceID string
	Name        string
	Active      bool
}

// MemberStore lists grant recipients.
type MemberStore interface {
	ActiveMembers(ctx context.Context, workspaceID string) ([]Member, error)
}

// =============================================================================
// SERVICE
// =============================================================================

// Service manages auto-add leave balance settings.
type Service struct {
	store   SettingStore
	members MemberStore
	clock   timeutil.Clock
}

// NewService creates a Service. clock may be nil (system clock).
func NewService(store SettingStore, members MemberStore, clock timeutil.Clock) *Service {
	if clock == nil {
		clock = timeutil.SystemClock{}
	}
	return &Service{store: store, members: members, clock: clock}
}

// Create validates a new setting, computes its next execution date and
// stores it disabled. For once settings the caller supplies the explicit
// execution date in NextExecutionDate; it must not be in the past.
func (s *Service) Create(ctx context.Context, in Setting) (*Setting, error) {
	if err := s.validate(in); err != nil {
		return nil, err
	}

	now := s.clock.Now().UTC()
	next, err := ComputeNextExecutionDate(now, in.Recurrence, in.Frequency, in.AnchorDay, in.NextExecutionDate)
	if err != nil {
		return nil, err
	}

	setting := in
	setting.ID = uuid.NewString()
	setting.NextExecutionDate = &next
	setting.LastExecutionDate = nil
	setting.Executed = false
	setting.Enabled = false
	setting.CreatedAt = now
	setting.UpdatedAt = now

	if err := s.store.InsertSetting(ctx, setting); err != nil {
		return nil, err
	}
	return &setting, nil
}

// Update rewrites a setting. The next execution date is recomputed when
// any of the schedule fields (recurrence, frequency, anchor day, explicit
// date) changed; otherwise it is preserved.
func (s *Service) Update(ctx context.Context, in Setting) (*Setting, error) {
	if err := s.validate(in); err != nil {
		return nil, err
	}

	var updated Setting
	err := s.store.WithTx(ctx, func(tx SettingStore) error {
		existing, err := tx.GetSetting(ctx, in.ID)
		if err != nil {
			return err
		}
		if existing == nil {
			return engine.NotFound("setting", in.ID)
		}

		now := s.clock.Now().UTC()
		updated = *existing
		updated.LeaveType = in.LeaveType
		updated.Leaves = in.Leaves
		updated.UpdatedAt = now

		if scheduleChanged(*existing, in) {
			next, err := ComputeNextExecutionDate(now, in.Recurrence, in.Frequency, in.AnchorDay, in.NextExecutionDate)
			if err != nil {
				return err
			}
			updated.Recurrence = in.Recurrence
			updated.Frequency = in.Frequency
			updated.AnchorDay = in.AnchorDay
			updated.NextExecutionDate = &next
			updated.Executed = false
		}
		return tx.UpdateSetting(ctx, updated)
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// Delete removes a setting.
func (s *Service) Delete(ctx context.Context, id string) error {
	return s.store.WithTx(ctx, func(tx SettingStore) error {
		existing, err := tx.GetSetting(ctx, id)
		if err != nil {
			return err
		}
		if existing == nil {
			return engine.NotFound("setting", id)
		}
		return tx.DeleteSetting(ctx, id)
	})
}

// Get returns a setting by id.
func (s *Service) Get(ctx context.Context, id string) (*Setting, error) {
	setting, err := s.store.GetSetting(ctx, id)
	if err != nil {
		return nil, err
	}
	if setting == nil {
		return nil, engine.NotFound("setting", id)
	}
	return setting, nil
}

// List returns all settings in a workspace.
func (s *Service) List(ctx context.Context, workspaceID string) ([]Setting, error) {
	return s.store.ListSettings(ctx, workspaceID)
}

// Enable schedules a setting for execution. Fails with a conflict when the
// setting is already enabled or when any other setting in the workspace is
// enabled; the other setting is never auto-disabled.
func (s *Service) Enable(ctx context.Context, id string) (*Setting, error) {
	var enabled Setting
	err := s.store.WithTx(ctx, func(tx SettingStore) error {
		setting, err := tx.GetSetting(ctx, id)
		if err != nil {
			return err
		}
		if setting == nil {
			return engine.NotFound("setting", id)
		}
		if setting.Enabled {
			return engine.Conflictf("setting is already enabled")
		}
		if setting.Recurrence == RecurrenceOnce && setting.Executed {
			return engine.Validationf("setting has already been executed")
		}

		other, err := tx.EnabledSetting(ctx, setting.WorkspaceID)
		if err != nil {
			return err
		}
		if other != nil {
			return engine.Conflictf("another setting is already enabled in this workspace")
		}

		setting.Enabled = true
		setting.UpdatedAt = s.clock.Now().UTC()
		enabled = *setting
		return tx.UpdateSetting(ctx, *setting)
	})
	if err != nil {
		return nil, err
	}
	return &enabled, nil
}

// Disable takes a setting out of the schedule.
func (s *Service) Disable(ctx context.Context, id string) (*Setting, error) {
	var disabled Setting
	err := s.store.WithTx(ctx, func(tx SettingStore) error {
		setting, err := tx.GetSetting(ctx, id)
		if err != nil {
			return err
		}
		if setting == nil {
			return engine.NotFound("setting", id)
		}
		if !setting.Enabled {
			return engine.Conflictf("setting is already disabled")
		}
		setting.Enabled = false
		setting.UpdatedAt = s.clock.Now().UTC()
		disabled = *setting
		return tx.UpdateSetting(ctx, *setting)
	})
	if err != nil {
		return nil, err
	}
	return &disabled, nil
}

// =============================================================================
// EXECUTION
// =============================================================================

// ExecuteDue runs every enabled setting whose next execution date is due.
// Each setting executes in its own transaction; a failing setting is
// logged and skipped, the rest still run. Returns how many executed.
func (s *Service) ExecuteDue(ctx context.Context) (int, error) {
	today := timeutil.DayOf(s.clock.Now())

	due, err := s.store.DueSettings(ctx, today)
	if err != nil {
		return 0, err
	}

	executed := 0
	for _, setting := range due {
		if err := s.executeOne(ctx, setting, today); err != nil {
			log.Printf("[LeaveGrant] Error executing setting %s: %v", setting.ID, err)
			continue
		}
		executed++
	}
	return executed, nil
}

func (s *Service) executeOne(ctx context.Context, due Setting, today time.Time) error {
	// The recipient list is read outside the transaction; only the grants
	// and the schedule advance need to commit together.
	members, err := s.members.ActiveMembers(ctx, due.WorkspaceID)
	if err != nil {
		return err
	}

	return s.store.WithTx(ctx, func(tx SettingStore) error {
		setting, err := tx.GetSetting(ctx, due.ID)
		if err != nil {
			return err
		}
		if setting == nil || !setting.Due(today) {
			// Raced with a disable or a concurrent run; nothing to do.
			return nil
		}

		runDate := today.Format("2006-01-02")
		for _, m := range members {
			idemKey := fmt.Sprintf("%s:%s:run:%s", setting.ID, m.ID, runDate)
			if err := tx.GrantLeave(ctx, m.ID, setting.LeaveType, setting.Leaves, idemKey); err != nil {
				return err
			}
		}

		setting.LastExecutionDate = &today
		setting.UpdatedAt = s.clock.Now().UTC()

		if setting.Recurrence == RecurrenceOnce {
			setting.Executed = true
			setting.Enabled = false
			setting.NextExecutionDate = nil
		} else {
			next, err := NextAfter(today, setting.Frequency, setting.AnchorDay)
			if err != nil {
				return err
			}
			setting.NextExecutionDate = &next
		}

		if err := tx.UpdateSetting(ctx, *setting); err != nil {
			return err
		}

		log.Printf("[LeaveGrant] Executed setting %s: granted %s x%s to %d members",
			setting.ID, setting.Leaves.String(), setting.LeaveType, len(members))
		return nil
	})
}

// =============================================================================
// VALIDATION
// =============================================================================

func (s *Service) validate(in Setting) error {
	if in.LeaveType == "" {
		return engine.Validationf("leave type must not be empty")
	}
	if !in.Leaves.IsPositive() {
		return engine.Validationf("number of leaves must be positive")
	}
	if !in.Recurrence.Valid() {
		return engine.Validationf("recurrence must be %q or %q", RecurrenceOnce, RecurrenceRepeat)
	}

	switch in.Recurrence {
	case RecurrenceOnce:
		if in.NextExecutionDate == nil {
			return engine.Validationf("a one-time setting requires an execution date")
		}
		if !ValidateFuture(s.clock.Now(), *in.NextExecutionDate, in.Recurrence) {
			return engine.Validationf("execution date must not be in the past")
		}
	case RecurrenceRepeat:
		if _, ok := in.Frequency.Months(); !ok {
			return engine.Validationf("frequency must be month, quarter, halfYear or year")
		}
		if in.AnchorDay < 1 || in.AnchorDay > 31 {
			return engine.Validationf("day must be between 1 and 31")
		}
	}
	return nil
}

func scheduleChanged(old, in Setting) bool {
	if old.Recurrence != in.Recurrence || old.Frequency != in.Frequency || old.AnchorDay != in.AnchorDay {
		return true
	}
	if in.Recurrence == RecurrenceOnce && in.NextExecutionDate != nil {
		return old.NextExecutionDate == nil || !old.NextExecutionDate.Equal(*in.NextExecutionDate)
	}
	return false
}
