/*
manager.go - Leave-request orchestrator

PURPOSE:
  The Manager validates submissions, resolves overlaps with existing active
  leave, and coordinates ledger debits/credits with record creation and
  deletion as one atomic unit per submission.

SUBMISSION FLOW:
  1. Validate dates and leave type (ErrInvalidRequest on failure)
  2. Query active records overlapping [start, end], excluding the record
     being replaced on modification
  3. Any non-annual overlap is an unconditional OverlapConflictError
  4. Annual overlaps require caller confirmation; declining aborts with no
     mutation and no error
  5. Confirmed overlaps take the split/replace path: credit + delete every
     overlap, debit + insert the new record, then rebuild up to two residual
     annual segments from the leftover span, each with its own recomputed
     working-day debit
  6. Otherwise the simple path: optional credit + delete of the replaced
     record, debit if the type deducts balance, insert

  Either path runs inside a single store transaction. The sick-leave
  certificate is attached after commit; a failure there is a warning, never
  a rollback of the committed record.

MODIFICATION MODEL:
  Records are never edited in place. Changing dates or type is implemented
  as delete-old + create-new, so the ledger sees a clean credit/debit pair.
*/
package leave

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/atlas-hr/leave-engine/calendar"
)

// ConfirmFunc decides whether overlapping annual leave may be replaced.
// A nil ConfirmFunc declines.
type ConfirmFunc func(overlaps []*LeaveRecord) bool

// SubmitRequest is a validated-on-entry leave submission.
type SubmitRequest struct {
	EmployeeID      string
	Type            LeaveType
	Start           time.Time
	End             time.Time
	Justification   string
	SubstituteID    string
	ReplaceLeaveID  string // set on modification: the record being replaced
	CertificatePath string
}

// SubmitResult reports what a submission did.
type SubmitResult struct {
	Record  *LeaveRecord
	Aborted bool   // caller declined to replace overlapping annual leave
	Warning string // non-fatal problems, e.g. certificate attachment failure
}

// Inconsistency pairs a leave record with the day count recomputed against
// the current holiday set.
type Inconsistency struct {
	Record         *LeaveRecord
	RecomputedDays decimal.Decimal
}

// Manager orchestrates submissions over the ledger and the store.
type Manager struct {
	store    TxStore
	ledger   *Ledger
	holidays HolidayProvider
	policies *PolicySet
	settings Settings
	log      *slog.Logger
}

// NewManager wires the orchestrator.
func NewManager(store TxStore, ledger *Ledger, holidays HolidayProvider, settings Settings, log *slog.Logger) *Manager {
	if log == nil {
		log = slog.Default()
	}
	return &Manager{
		store:    store,
		ledger:   ledger,
		holidays: holidays,
		policies: NewPolicySet(settings),
		settings: settings,
		log:      log,
	}
}

// Policies exposes the duration-policy table (used by the API layer to
// pre-fill fixed durations).
func (m *Manager) Policies() *PolicySet { return m.policies }

// =============================================================================
// SUBMISSION
// =============================================================================

// Submit validates and applies a leave submission. See the flow in the file
// comment. The record's day count is always recomputed from the leave-type
// policy, never trusted from the caller.
func (m *Manager) Submit(ctx context.Context, req SubmitRequest, confirm ConfirmFunc) (*SubmitResult, error) {
	if err := m.validate(req); err != nil {
		return nil, err
	}
	start := calendar.Normalize(req.Start)
	end := calendar.Normalize(req.End)

	nonWorking, err := m.holidays.NonWorkingDates(ctx, start.Year()-1, end.Year()+2)
	if err != nil {
		return nil, fmt.Errorf("loading holiday set: %w", err)
	}

	policy, _ := m.policies.For(req.Type)
	days := policy.Days(start, end, nonWorking)

	overlaps, err := m.store.OverlappingLeaves(ctx, req.EmployeeID, start, end, req.ReplaceLeaveID)
	if err != nil {
		return nil, fmt.Errorf("overlap query: %w", err)
	}

	if len(overlaps) > 0 {
		for _, o := range overlaps {
			if o.Type != TypeAnnual {
				return nil, &OverlapConflictError{LeaveID: o.ID, Type: o.Type}
			}
		}
		if confirm == nil || !confirm(overlaps) {
			return &SubmitResult{Aborted: true}, nil
		}
		return m.splitOrReplace(ctx, req, start, end, days, overlaps, nonWorking)
	}

	record := m.newRecord(req, start, end, days)
	err = m.store.WithTx(ctx, func(tx Store) error {
		if req.ReplaceLeaveID != "" {
			if err := m.removeWithCredit(ctx, tx, req.ReplaceLeaveID); err != nil {
				return err
			}
		}
		if m.settings.Deducts(req.Type) {
			if err := m.ledger.debit(ctx, tx, req.EmployeeID, days); err != nil {
				return err
			}
		}
		return tx.InsertLeave(ctx, record)
	})
	if err != nil {
		return nil, err
	}

	result := &SubmitResult{Record: record}
	m.attachCertificate(ctx, req, record, result)
	return result, nil
}

// splitOrReplace rebuilds the overlapping annual-leave span around the new
// record. Atomic: credits and deletes every overlap, debits and inserts the
// new record, then creates residual annual segments for the leftover working
// days before and after it.
func (m *Manager) splitOrReplace(ctx context.Context, req SubmitRequest, start, end time.Time, days decimal.Decimal, overlaps []*LeaveRecord, nonWorking calendar.DateSet) (*SubmitResult, error) {
	record := m.newRecord(req, start, end, days)

	err := m.store.WithTx(ctx, func(tx Store) error {
		minStart := overlaps[0].Start
		maxEnd := overlaps[0].End
		for _, o := range overlaps {
			if o.Start.Before(minStart) {
				minStart = o.Start
			}
			if o.End.After(maxEnd) {
				maxEnd = o.End
			}
			if err := m.ledger.credit(ctx, tx, req.EmployeeID, o.Days); err != nil {
				return err
			}
			if err := tx.DeleteLeave(ctx, o.ID); err != nil {
				return err
			}
		}

		if m.settings.Deducts(req.Type) {
			if err := m.ledger.debit(ctx, tx, req.EmployeeID, days); err != nil {
				return err
			}
		}
		if err := tx.InsertLeave(ctx, record); err != nil {
			return err
		}

		if minStart.Before(start) {
			if err := m.createSegment(ctx, tx, req.EmployeeID, minStart, start.AddDate(0, 0, -1), nonWorking); err != nil {
				return err
			}
		}
		if maxEnd.After(end) {
			if err := m.createSegment(ctx, tx, req.EmployeeID, end.AddDate(0, 0, 1), maxEnd, nonWorking); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	result := &SubmitResult{Record: record}
	m.attachCertificate(ctx, req, record, result)
	return result, nil
}

// createSegment inserts a residual annual-leave segment covering
// [start, end], debiting its own recomputed working-day count. Segments with
// zero working days are skipped.
func (m *Manager) createSegment(ctx context.Context, tx Store, employeeID string, start, end time.Time, nonWorking calendar.DateSet) error {
	if start.After(end) {
		return nil
	}
	workingDays := calendar.CountWorkingDays(start, end, nonWorking)
	if workingDays == 0 {
		return nil
	}
	days := decimal.NewFromInt(int64(workingDays))
	if err := m.ledger.debit(ctx, tx, employeeID, days); err != nil {
		return err
	}
	segment := &LeaveRecord{
		ID:         uuid.NewString(),
		EmployeeID: employeeID,
		Type:       TypeAnnual,
		Start:      start,
		End:        end,
		Days:       days,
		Status:     RecordActive,
	}
	return tx.InsertLeave(ctx, segment)
}

// removeWithCredit credits back a record's day count when its type deducts
// balance, then deletes it. Runs inside the caller's transaction.
func (m *Manager) removeWithCredit(ctx context.Context, tx Store, leaveID string) error {
	old, err := tx.GetLeave(ctx, leaveID)
	if err != nil {
		return err
	}
	if m.settings.Deducts(old.Type) {
		if err := m.ledger.credit(ctx, tx, old.EmployeeID, old.Days); err != nil {
			return err
		}
	}
	return tx.DeleteLeave(ctx, leaveID)
}

func (m *Manager) newRecord(req SubmitRequest, start, end time.Time, days decimal.Decimal) *LeaveRecord {
	return &LeaveRecord{
		ID:            uuid.NewString(),
		EmployeeID:    req.EmployeeID,
		Type:          req.Type,
		Start:         start,
		End:           end,
		Days:          days,
		Justification: req.Justification,
		SubstituteID:  req.SubstituteID,
		Status:        RecordActive,
	}
}

func (m *Manager) validate(req SubmitRequest) error {
	if req.EmployeeID == "" || req.Start.IsZero() || req.End.IsZero() {
		return ErrInvalidRequest
	}
	if !req.Type.Known() {
		return fmt.Errorf("%w: unknown leave type %q", ErrInvalidRequest, req.Type)
	}
	if calendar.Normalize(req.End).Before(calendar.Normalize(req.Start)) {
		return fmt.Errorf("%w: end date before start date", ErrInvalidRequest)
	}
	return nil
}

// attachCertificate stores the supporting-document reference for sick leave
// after the record is committed. Failure degrades to a warning: the leave
// stands, the document can be re-attached later.
func (m *Manager) attachCertificate(ctx context.Context, req SubmitRequest, record *LeaveRecord, result *SubmitResult) {
	policy, _ := m.policies.For(req.Type)
	if !policy.RequiresCertificate() || req.CertificatePath == "" {
		return
	}
	if err := m.store.AttachCertificate(ctx, record.ID, req.CertificatePath); err != nil {
		m.log.Warn("certificate attachment failed, leave record kept",
			"leave", record.ID, "error", err)
		result.Warning = "leave recorded, but the supporting document could not be attached; attach it again via modification"
	}
}

// =============================================================================
// DELETION
// =============================================================================

// Delete removes a leave record, crediting its day count back first when the
// type deducts balance. Atomic.
func (m *Manager) Delete(ctx context.Context, leaveID string) error {
	if _, err := m.store.GetLeave(ctx, leaveID); err != nil {
		return err
	}
	return m.store.WithTx(ctx, func(tx Store) error {
		return m.removeWithCredit(ctx, tx, leaveID)
	})
}

// =============================================================================
// EMPLOYEE LIFECYCLE
// =============================================================================

// RegisterEmployee creates an employee and seeds initial balance buckets.
// When no initial buckets are given, one Active bucket for the current
// exercise year is created with the default allocation (skipped when the
// default is zero). One transaction.
func (m *Manager) RegisterEmployee(ctx context.Context, emp *Employee, initial map[int]decimal.Decimal) error {
	if emp.Name == "" || emp.RefCode == "" {
		return ErrInvalidRequest
	}
	if emp.ID == "" {
		emp.ID = uuid.NewString()
	}
	return m.store.WithTx(ctx, func(tx Store) error {
		if err := tx.CreateEmployee(ctx, emp); err != nil {
			return err
		}
		seed := initial
		if len(seed) == 0 {
			if !m.settings.DefaultAllocation.IsPositive() {
				return nil
			}
			year, err := tx.ExerciseYear(ctx)
			if err != nil {
				return err
			}
			seed = map[int]decimal.Decimal{year: m.settings.DefaultAllocation}
		}
		for year, amount := range seed {
			if !amount.IsPositive() {
				continue
			}
			b := &BalanceBucket{
				ID:         uuid.NewString(),
				EmployeeID: emp.ID,
				Year:       year,
				Amount:     amount,
				Status:     BucketActive,
			}
			if err := tx.CreateBucket(ctx, b); err != nil {
				return err
			}
		}
		return nil
	})
}

// =============================================================================
// REPORTS
// =============================================================================

// ReturnToWork computes the return-to-work date for a leave record: the
// first working day strictly after its end, independent of leave type.
func (m *Manager) ReturnToWork(ctx context.Context, record *LeaveRecord) (time.Time, error) {
	nonWorking, err := m.holidays.NonWorkingDates(ctx, record.End.Year(), record.End.Year()+2)
	if err != nil {
		return time.Time{}, err
	}
	return calendar.NextWorkingDay(record.End, nonWorking), nil
}

// FindInconsistentAnnualLeaves recomputes the working-day count of every
// Active annual-leave record starting in year against the current holiday
// set and reports the records whose stored day count differs. Read-only:
// holiday data may have changed since the records were created, and fixing
// them is a human decision.
func (m *Manager) FindInconsistentAnnualLeaves(ctx context.Context, year int) ([]Inconsistency, error) {
	nonWorking, err := m.holidays.NonWorkingDates(ctx, year, year+1)
	if err != nil {
		return nil, err
	}
	records, err := m.store.ListLeaves(ctx, "")
	if err != nil {
		return nil, err
	}

	var out []Inconsistency
	for _, rec := range records {
		if rec.Type != TypeAnnual || rec.Status != RecordActive || rec.Start.Year() != year {
			continue
		}
		recomputed := decimal.NewFromInt(int64(calendar.CountWorkingDays(rec.Start, rec.End, nonWorking)))
		if !rec.Days.Equal(recomputed) {
			out = append(out, Inconsistency{Record: rec, RecomputedDays: recomputed})
		}
	}
	return out, nil
}
