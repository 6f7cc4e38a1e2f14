package leave_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atlas-hr/leave-engine/leave"
	"github.com/atlas-hr/leave-engine/store/sqlite"
)

func newTestManager(t *testing.T) (*sqlite.Store, *leave.Manager) {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	ledger := leave.NewLedger(store, leave.DefaultSettings(), nil)
	return store, leave.NewManager(store, ledger, store, leave.DefaultSettings(), nil)
}

func day(s string) time.Time {
	d, err := time.ParseInLocation("2006-01-02", s, time.UTC)
	if err != nil {
		panic(err)
	}
	return d
}

func confirmYes([]*leave.LeaveRecord) bool { return true }

// =============================================================================
// SUBMISSION - Simple path
// =============================================================================

func TestSubmitAnnualLeaveDebitsWorkingDays(t *testing.T) {
	// GIVEN 22 days of balance
	store, mgr := newTestManager(t)
	id := seedEmployee(t, store, map[int]string{2025: "22"})

	// WHEN requesting Monday through Friday
	result, err := mgr.Submit(context.Background(), leave.SubmitRequest{
		EmployeeID: id,
		Type:       leave.TypeAnnual,
		Start:      day("2025-08-04"),
		End:        day("2025-08-08"),
	}, nil)
	require.NoError(t, err)
	require.NotNil(t, result.Record)

	// THEN 5 working days are recorded and debited
	assert.True(t, result.Record.Days.Equal(decimal.NewFromInt(5)))
	assert.Equal(t, map[int]string{2025: "17"}, bucketAmounts(t, store, id))
}

func TestSubmitSpanningWeekendCountsWorkingDaysOnly(t *testing.T) {
	store, mgr := newTestManager(t)
	id := seedEmployee(t, store, map[int]string{2025: "22"})

	// Friday through Monday
	result, err := mgr.Submit(context.Background(), leave.SubmitRequest{
		EmployeeID: id,
		Type:       leave.TypeAnnual,
		Start:      day("2025-08-08"),
		End:        day("2025-08-11"),
	}, nil)
	require.NoError(t, err)

	assert.True(t, result.Record.Days.Equal(decimal.NewFromInt(2)))
}

func TestSubmitExcludesCustomHolidays(t *testing.T) {
	// GIVEN a holiday in the middle of the requested week
	store, mgr := newTestManager(t)
	ctx := context.Background()
	id := seedEmployee(t, store, map[int]string{2025: "22"})
	require.NoError(t, store.AddHoliday(ctx, day("2025-08-06"), "Founding Day"))

	// WHEN requesting that week
	result, err := mgr.Submit(ctx, leave.SubmitRequest{
		EmployeeID: id,
		Type:       leave.TypeAnnual,
		Start:      day("2025-08-04"),
		End:        day("2025-08-08"),
	}, nil)
	require.NoError(t, err)

	// THEN the holiday does not consume balance
	assert.True(t, result.Record.Days.Equal(decimal.NewFromInt(4)))
	assert.Equal(t, map[int]string{2025: "18"}, bucketAmounts(t, store, id))
}

func TestSubmitSickLeaveCountsCalendarDaysAndSkipsLedger(t *testing.T) {
	// GIVEN sick leave over a weekend
	store, mgr := newTestManager(t)
	id := seedEmployee(t, store, map[int]string{2025: "22"})

	result, err := mgr.Submit(context.Background(), leave.SubmitRequest{
		EmployeeID:      id,
		Type:            leave.TypeSick,
		Start:           day("2025-08-08"),
		End:             day("2025-08-11"),
		CertificatePath: "/docs/cert-123.pdf",
	}, nil)
	require.NoError(t, err)

	// THEN calendar days are counted and the balance is untouched
	assert.True(t, result.Record.Days.Equal(decimal.NewFromInt(4)))
	assert.Equal(t, map[int]string{2025: "22"}, bucketAmounts(t, store, id))
	assert.Empty(t, result.Warning)

	// AND the certificate reference was stored
	path, err := store.CertificatePath(context.Background(), result.Record.ID)
	require.NoError(t, err)
	assert.Equal(t, "/docs/cert-123.pdf", path)
}

func TestSubmitValidation(t *testing.T) {
	store, mgr := newTestManager(t)
	id := seedEmployee(t, store, map[int]string{2025: "22"})
	ctx := context.Background()

	// Unknown type
	_, err := mgr.Submit(ctx, leave.SubmitRequest{
		EmployeeID: id, Type: "sabbatical",
		Start: day("2025-08-04"), End: day("2025-08-08"),
	}, nil)
	assert.ErrorIs(t, err, leave.ErrInvalidRequest)

	// End before start
	_, err = mgr.Submit(ctx, leave.SubmitRequest{
		EmployeeID: id, Type: leave.TypeAnnual,
		Start: day("2025-08-08"), End: day("2025-08-04"),
	}, nil)
	assert.ErrorIs(t, err, leave.ErrInvalidRequest)

	// Missing employee id
	_, err = mgr.Submit(ctx, leave.SubmitRequest{
		Type:  leave.TypeAnnual,
		Start: day("2025-08-04"), End: day("2025-08-08"),
	}, nil)
	assert.ErrorIs(t, err, leave.ErrInvalidRequest)
}

func TestSubmitInsufficientBalanceLeavesNoRecord(t *testing.T) {
	// GIVEN 2 days of balance
	store, mgr := newTestManager(t)
	ctx := context.Background()
	id := seedEmployee(t, store, map[int]string{2025: "2"})

	// WHEN requesting a full week
	_, err := mgr.Submit(ctx, leave.SubmitRequest{
		EmployeeID: id,
		Type:       leave.TypeAnnual,
		Start:      day("2025-08-04"),
		End:        day("2025-08-08"),
	}, nil)

	// THEN the whole submission rolled back: no record, balance intact
	require.ErrorIs(t, err, leave.ErrInsufficientBalance)
	records, err := store.ListLeaves(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, records)
	assert.Equal(t, map[int]string{2025: "2"}, bucketAmounts(t, store, id))
}

// =============================================================================
// SUBMISSION - Overlaps
// =============================================================================

func TestOverlapWithSickLeaveIsHardConflict(t *testing.T) {
	// GIVEN existing sick leave
	store, mgr := newTestManager(t)
	ctx := context.Background()
	id := seedEmployee(t, store, map[int]string{2025: "22"})
	existing, err := mgr.Submit(ctx, leave.SubmitRequest{
		EmployeeID: id, Type: leave.TypeSick,
		Start: day("2025-08-06"), End: day("2025-08-07"),
	}, nil)
	require.NoError(t, err)

	// WHEN submitting annual leave over it, even with confirmation
	_, err = mgr.Submit(ctx, leave.SubmitRequest{
		EmployeeID: id, Type: leave.TypeAnnual,
		Start: day("2025-08-04"), End: day("2025-08-08"),
	}, confirmYes)

	// THEN the conflict is unconditional and names the blocking record
	require.ErrorIs(t, err, leave.ErrOverlapConflict)
	var oce *leave.OverlapConflictError
	require.ErrorAs(t, err, &oce)
	assert.Equal(t, existing.Record.ID, oce.LeaveID)
	assert.Equal(t, leave.TypeSick, oce.Type)
}

func TestOverlapDeclinedAbortsWithoutMutation(t *testing.T) {
	// GIVEN existing annual leave consuming 5 days
	store, mgr := newTestManager(t)
	ctx := context.Background()
	id := seedEmployee(t, store, map[int]string{2025: "22"})
	_, err := mgr.Submit(ctx, leave.SubmitRequest{
		EmployeeID: id, Type: leave.TypeAnnual,
		Start: day("2025-08-04"), End: day("2025-08-08"),
	}, nil)
	require.NoError(t, err)

	// WHEN submitting an overlapping request with no confirmation callback
	result, err := mgr.Submit(ctx, leave.SubmitRequest{
		EmployeeID: id, Type: leave.TypeAnnual,
		Start: day("2025-08-06"), End: day("2025-08-12"),
	}, nil)

	// THEN the submission aborts cleanly: no error, no new record, balance
	// unchanged
	require.NoError(t, err)
	assert.True(t, result.Aborted)
	records, err := store.ListLeaves(ctx, id)
	require.NoError(t, err)
	assert.Len(t, records, 1)
	assert.Equal(t, map[int]string{2025: "17"}, bucketAmounts(t, store, id))
}

func TestConfirmedOverlapSplitsSurroundingAnnualLeave(t *testing.T) {
	// GIVEN annual leave Mon Aug 4 - Fri Aug 15 (10 working days, balance 12)
	store, mgr := newTestManager(t)
	ctx := context.Background()
	id := seedEmployee(t, store, map[int]string{2025: "22"})
	original, err := mgr.Submit(ctx, leave.SubmitRequest{
		EmployeeID: id, Type: leave.TypeAnnual,
		Start: day("2025-08-04"), End: day("2025-08-15"),
	}, nil)
	require.NoError(t, err)
	require.True(t, original.Record.Days.Equal(decimal.NewFromInt(10)))

	// WHEN sick leave Wed Aug 6 - Thu Aug 7 lands in the middle, confirmed
	result, err := mgr.Submit(ctx, leave.SubmitRequest{
		EmployeeID: id, Type: leave.TypeSick,
		Start: day("2025-08-06"), End: day("2025-08-07"),
	}, confirmYes)
	require.NoError(t, err)

	// THEN the original record is gone and two residual annual segments
	// bracket the sick leave
	records, err := store.ListLeaves(ctx, id)
	require.NoError(t, err)
	require.Len(t, records, 3)

	byType := make(map[leave.LeaveType][]*leave.LeaveRecord)
	for _, r := range records {
		assert.NotEqual(t, original.Record.ID, r.ID)
		byType[r.Type] = append(byType[r.Type], r)
	}
	require.Len(t, byType[leave.TypeSick], 1)
	require.Len(t, byType[leave.TypeAnnual], 2)
	assert.Equal(t, result.Record.ID, byType[leave.TypeSick][0].ID)

	var before, after *leave.LeaveRecord
	for _, r := range byType[leave.TypeAnnual] {
		if r.Start.Before(day("2025-08-06")) {
			before = r
		} else {
			after = r
		}
	}
	require.NotNil(t, before)
	require.NotNil(t, after)

	// Aug 4-5: 2 working days
	assert.Equal(t, day("2025-08-04"), before.Start)
	assert.Equal(t, day("2025-08-05"), before.End)
	assert.True(t, before.Days.Equal(decimal.NewFromInt(2)))

	// Aug 8-15: Fri + Mon..Fri = 6 working days
	assert.Equal(t, day("2025-08-08"), after.Start)
	assert.Equal(t, day("2025-08-15"), after.End)
	assert.True(t, after.Days.Equal(decimal.NewFromInt(6)))

	// Balance: 22 - 10 (original) + 10 (credit) - 0 (sick) - 8 (segments)
	assert.Equal(t, map[int]string{2025: "14"}, bucketAmounts(t, store, id))
}

func TestConfirmedOverlapFullyCoveredLeavesNoSegments(t *testing.T) {
	// GIVEN annual leave exactly matching the new request's span
	store, mgr := newTestManager(t)
	ctx := context.Background()
	id := seedEmployee(t, store, map[int]string{2025: "22"})
	_, err := mgr.Submit(ctx, leave.SubmitRequest{
		EmployeeID: id, Type: leave.TypeAnnual,
		Start: day("2025-08-04"), End: day("2025-08-08"),
	}, nil)
	require.NoError(t, err)

	// WHEN sick leave covers the whole span, confirmed
	_, err = mgr.Submit(ctx, leave.SubmitRequest{
		EmployeeID: id, Type: leave.TypeSick,
		Start: day("2025-08-04"), End: day("2025-08-08"),
	}, confirmYes)
	require.NoError(t, err)

	// THEN only the sick record remains and the annual days came back
	records, err := store.ListLeaves(ctx, id)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, leave.TypeSick, records[0].Type)
	assert.Equal(t, map[int]string{2025: "22"}, bucketAmounts(t, store, id))
}

func TestSplitFailureRollsBackEverything(t *testing.T) {
	// GIVEN a 5-day annual leave that drained the whole balance
	store, mgr := newTestManager(t)
	ctx := context.Background()
	id := seedEmployee(t, store, map[int]string{2025: "5"})
	original, err := mgr.Submit(ctx, leave.SubmitRequest{
		EmployeeID: id, Type: leave.TypeAnnual,
		Start: day("2025-08-04"), End: day("2025-08-08"),
	}, nil)
	require.NoError(t, err)

	// WHEN a confirmed replacement needs more days than the credit frees up
	_, err = mgr.Submit(ctx, leave.SubmitRequest{
		EmployeeID: id, Type: leave.TypeAnnual,
		Start: day("2025-08-04"), End: day("2025-08-15"),
	}, confirmYes)

	// THEN the failure mid-transaction leaves the pre-submission state:
	// original record intact, balance still empty
	require.ErrorIs(t, err, leave.ErrInsufficientBalance)
	records, err := store.ListLeaves(ctx, id)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, original.Record.ID, records[0].ID)
	assert.Equal(t, map[int]string{2025: "0"}, bucketAmounts(t, store, id))
}

// =============================================================================
// MODIFICATION / DELETION
// =============================================================================

func TestModificationReplacesRecordAndRebalances(t *testing.T) {
	// GIVEN a 5-day annual leave
	store, mgr := newTestManager(t)
	ctx := context.Background()
	id := seedEmployee(t, store, map[int]string{2025: "22"})
	original, err := mgr.Submit(ctx, leave.SubmitRequest{
		EmployeeID: id, Type: leave.TypeAnnual,
		Start: day("2025-08-04"), End: day("2025-08-08"),
	}, nil)
	require.NoError(t, err)

	// WHEN shortening it to 3 days via replacement
	result, err := mgr.Submit(ctx, leave.SubmitRequest{
		EmployeeID:     id,
		Type:           leave.TypeAnnual,
		Start:          day("2025-08-04"),
		End:            day("2025-08-06"),
		ReplaceLeaveID: original.Record.ID,
	}, nil)
	require.NoError(t, err)

	// THEN the old record is gone, the new one stands, and 2 days returned
	records, err := store.ListLeaves(ctx, id)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, result.Record.ID, records[0].ID)
	assert.Equal(t, map[int]string{2025: "19"}, bucketAmounts(t, store, id))
}

func TestDeleteCreditsDaysBack(t *testing.T) {
	store, mgr := newTestManager(t)
	ctx := context.Background()
	id := seedEmployee(t, store, map[int]string{2025: "22"})
	result, err := mgr.Submit(ctx, leave.SubmitRequest{
		EmployeeID: id, Type: leave.TypeAnnual,
		Start: day("2025-08-04"), End: day("2025-08-08"),
	}, nil)
	require.NoError(t, err)
	require.Equal(t, map[int]string{2025: "17"}, bucketAmounts(t, store, id))

	require.NoError(t, mgr.Delete(ctx, result.Record.ID))

	records, err := store.ListLeaves(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, records)
	assert.Equal(t, map[int]string{2025: "22"}, bucketAmounts(t, store, id))
}

func TestDeleteUnknownLeave(t *testing.T) {
	_, mgr := newTestManager(t)
	err := mgr.Delete(context.Background(), "nope")
	assert.True(t, leave.IsNotFound(err))
}

// =============================================================================
// EMPLOYEE LIFECYCLE
// =============================================================================

func TestRegisterEmployeeSeedsDefaultBucket(t *testing.T) {
	// GIVEN exercise year 2025
	store, mgr := newTestManager(t)
	ctx := context.Background()
	require.NoError(t, store.SetExerciseYear(ctx, 2025))

	// WHEN registering with no initial buckets
	emp := &leave.Employee{RefCode: "A-100", Name: "Nadia Benali"}
	require.NoError(t, mgr.RegisterEmployee(ctx, emp, nil))

	// THEN one Active bucket for 2025 carries the default allocation
	assert.Equal(t, map[int]string{2025: "22"}, bucketAmounts(t, store, emp.ID))
}

func TestRegisterEmployeeWithExplicitBuckets(t *testing.T) {
	store, mgr := newTestManager(t)
	ctx := context.Background()

	emp := &leave.Employee{RefCode: "A-101", Name: "Karim Haddad"}
	initial := map[int]decimal.Decimal{
		2024: decimal.RequireFromString("7.5"),
		2025: decimal.NewFromInt(22),
		2023: decimal.Zero, // non-positive seeds are skipped
	}
	require.NoError(t, mgr.RegisterEmployee(ctx, emp, initial))

	assert.Equal(t, map[int]string{2024: "7.5", 2025: "22"}, bucketAmounts(t, store, emp.ID))
}

func TestRegisterEmployeeValidation(t *testing.T) {
	_, mgr := newTestManager(t)
	err := mgr.RegisterEmployee(context.Background(), &leave.Employee{Name: "No Ref"}, nil)
	assert.ErrorIs(t, err, leave.ErrInvalidRequest)
}

// =============================================================================
// REPORTS
// =============================================================================

func TestReturnToWorkSkipsWeekendAndHolidays(t *testing.T) {
	store, mgr := newTestManager(t)
	ctx := context.Background()
	// Monday Aug 11 is a holiday; leave ends Friday Aug 8
	require.NoError(t, store.AddHoliday(ctx, day("2025-08-11"), "Local Holiday"))

	rec := &leave.LeaveRecord{End: day("2025-08-08")}
	got, err := mgr.ReturnToWork(ctx, rec)
	require.NoError(t, err)
	assert.Equal(t, day("2025-08-12"), got)
}

func TestFindInconsistentAnnualLeaves(t *testing.T) {
	// GIVEN an annual leave recorded before a holiday existed in its range
	store, mgr := newTestManager(t)
	ctx := context.Background()
	id := seedEmployee(t, store, map[int]string{2025: "22"})
	result, err := mgr.Submit(ctx, leave.SubmitRequest{
		EmployeeID: id, Type: leave.TypeAnnual,
		Start: day("2025-08-04"), End: day("2025-08-08"),
	}, nil)
	require.NoError(t, err)

	require.NoError(t, store.AddHoliday(ctx, day("2025-08-06"), "New Holiday"))

	// WHEN scanning 2025
	rows, err := mgr.FindInconsistentAnnualLeaves(ctx, 2025)
	require.NoError(t, err)

	// THEN the record is flagged with the recomputed count, but not changed
	require.Len(t, rows, 1)
	assert.Equal(t, result.Record.ID, rows[0].Record.ID)
	assert.True(t, rows[0].RecomputedDays.Equal(decimal.NewFromInt(4)))

	stored, err := store.GetLeave(ctx, result.Record.ID)
	require.NoError(t, err)
	assert.True(t, stored.Days.Equal(decimal.NewFromInt(5)))
}

func TestOnLeaveReport(t *testing.T) {
	store, mgr := newTestManager(t)
	ctx := context.Background()
	id := seedEmployee(t, store, map[int]string{2025: "22"})
	_, err := mgr.Submit(ctx, leave.SubmitRequest{
		EmployeeID: id, Type: leave.TypeAnnual,
		Start: day("2025-08-04"), End: day("2025-08-08"),
	}, nil)
	require.NoError(t, err)

	within, err := store.OnLeave(ctx, day("2025-08-06"))
	require.NoError(t, err)
	assert.Len(t, within, 1)

	outside, err := store.OnLeave(ctx, day("2025-08-20"))
	require.NoError(t, err)
	assert.Empty(t, outside)
}

func TestMissingCertificateReport(t *testing.T) {
	store, mgr := newTestManager(t)
	ctx := context.Background()
	id := seedEmployee(t, store, map[int]string{2025: "22"})

	// One sick leave with a certificate, one without
	withCert, err := mgr.Submit(ctx, leave.SubmitRequest{
		EmployeeID: id, Type: leave.TypeSick,
		Start: day("2025-08-04"), End: day("2025-08-05"),
		CertificatePath: "/docs/cert.pdf",
	}, nil)
	require.NoError(t, err)
	withoutCert, err := mgr.Submit(ctx, leave.SubmitRequest{
		EmployeeID: id, Type: leave.TypeSick,
		Start: day("2025-08-20"), End: day("2025-08-21"),
	}, nil)
	require.NoError(t, err)

	rows, err := store.SickLeavesMissingCertificate(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, withoutCert.Record.ID, rows[0].ID)
	assert.NotEqual(t, withCert.Record.ID, rows[0].ID)
}
