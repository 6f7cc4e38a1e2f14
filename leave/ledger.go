/*
ledger.go - Balance bucket debit/credit engine

PURPOSE:
  The Ledger owns every mutation of balance buckets. It spreads debits and
  credits across an employee's yearly buckets under a fixed ordering policy,
  rolls the fiscal year forward, expires old buckets, and applies manual
  administrative overrides.

ORDERING INVARIANTS:
  - Debit consumes Active buckets oldest fiscal year first, so balances
    about to expire are used before fresh ones.
  - Credit refills Active buckets newest fiscal year first, up to the
    configured per-year cap; any remainder that no bucket can absorb within
    the cap lands on the most recent Active bucket regardless of the cap.
    The cap is a soft preference, not a hard limit.

CONSISTENCY:
  Debit pre-checks the total active balance before touching anything. If a
  pass still leaves a remainder above Epsilon, bucket state was changed
  outside this ledger; the operation fails with ErrLedgerCorruption and the
  enclosing transaction rolls back.

QUIRKS PRESERVED FROM THE BUSINESS RULES:
  - Crediting an employee with zero Active buckets silently drops the
    amount (logged as a warning).
  - PurgeExpiredBuckets does not re-verify that its targets are Expired;
    the read path that feeds it already filters by status.
*/
package leave

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Ledger is the sole mutation surface for balance buckets.
type Ledger struct {
	store    TxStore
	settings Settings
	log      *slog.Logger
}

// NewLedger creates a ledger over the given store.
func NewLedger(store TxStore, settings Settings, log *slog.Logger) *Ledger {
	if log == nil {
		log = slog.Default()
	}
	return &Ledger{store: store, settings: settings, log: log}
}

// =============================================================================
// DEBIT / CREDIT
// =============================================================================

// Debit consumes amount days from the employee's Active buckets, oldest
// fiscal year first, in its own transaction. Amounts <= 0 are a no-op.
func (l *Ledger) Debit(ctx context.Context, employeeID string, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return nil
	}
	return l.store.WithTx(ctx, func(tx Store) error {
		return l.debit(ctx, tx, employeeID, amount)
	})
}

// Credit returns amount days to the employee's Active buckets, newest
// fiscal year first, in its own transaction. Amounts <= 0 are a no-op.
func (l *Ledger) Credit(ctx context.Context, employeeID string, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return nil
	}
	return l.store.WithTx(ctx, func(tx Store) error {
		return l.credit(ctx, tx, employeeID, amount)
	})
}

// debit runs inside an open transaction so the orchestrator can compose it
// with record mutations atomically.
func (l *Ledger) debit(ctx context.Context, tx Store, employeeID string, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return nil
	}

	emp, err := tx.GetEmployee(ctx, employeeID)
	if err != nil {
		return err
	}

	available := emp.TotalActive()
	if available.LessThan(amount) {
		return &InsufficientBalanceError{EmployeeID: employeeID, Available: available, Requested: amount}
	}

	remaining := amount
	for _, bucket := range emp.activeBuckets(true) {
		if remaining.LessThan(Epsilon) {
			break
		}
		take := decimal.Min(bucket.Amount, remaining)
		if take.IsPositive() {
			if err := tx.UpdateBucketAmount(ctx, bucket.ID, bucket.Amount.Sub(take)); err != nil {
				return err
			}
			remaining = remaining.Sub(take)
		}
	}

	if remaining.GreaterThan(Epsilon) {
		l.log.Error("debit left a remainder despite passing the pre-check",
			"employee", employeeID, "requested", amount, "remainder", remaining)
		return ErrLedgerCorruption
	}
	return nil
}

// credit runs inside an open transaction. See the ordering invariants and
// quirks in the file comment.
func (l *Ledger) credit(ctx context.Context, tx Store, employeeID string, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return nil
	}

	emp, err := tx.GetEmployee(ctx, employeeID)
	if err != nil {
		return err
	}

	active := emp.activeBuckets(false)
	if len(active) == 0 {
		l.log.Warn("credit dropped: employee has no active buckets",
			"employee", employeeID, "amount", amount)
		return nil
	}

	yearCap := l.settings.DefaultAllocation
	remaining := amount
	// Track post-credit amounts locally; the overflow step below needs the
	// newest bucket's value after the capped pass.
	amounts := make([]decimal.Decimal, len(active))
	for i, b := range active {
		amounts[i] = b.Amount
	}

	for i := range active {
		if remaining.LessThan(Epsilon) {
			break
		}
		headroom := yearCap.Sub(amounts[i])
		add := decimal.Min(remaining, headroom)
		if add.IsPositive() {
			amounts[i] = amounts[i].Add(add)
			if err := tx.UpdateBucketAmount(ctx, active[i].ID, amounts[i]); err != nil {
				return err
			}
			remaining = remaining.Sub(add)
		}
	}

	if remaining.GreaterThan(Epsilon) {
		// Every active bucket is at cap: overflow onto the newest one.
		amounts[0] = amounts[0].Add(remaining)
		if err := tx.UpdateBucketAmount(ctx, active[0].ID, amounts[0]); err != nil {
			return err
		}
	}
	return nil
}

// DeductionBreakdown simulates a debit and returns how many days would be
// taken from each fiscal year, without mutating anything. It uses the same
// ordering as Debit so reports always match what a real debit would do.
func (l *Ledger) DeductionBreakdown(ctx context.Context, employeeID string, amount decimal.Decimal) (map[int]decimal.Decimal, error) {
	breakdown := make(map[int]decimal.Decimal)
	if !amount.IsPositive() {
		return breakdown, nil
	}

	emp, err := l.store.GetEmployee(ctx, employeeID)
	if err != nil {
		return nil, err
	}

	remaining := amount
	for _, bucket := range emp.activeBuckets(true) {
		if remaining.LessThan(Epsilon) {
			break
		}
		take := decimal.Min(bucket.Amount, remaining)
		if take.IsPositive() {
			breakdown[bucket.Year] = take
			remaining = remaining.Sub(take)
		}
	}
	return breakdown, nil
}

// =============================================================================
// FISCAL YEAR ROLLOVER
// =============================================================================

// RolloverFiscalYear advances the exercise year by one. Every employee gets
// a fresh Active bucket for the new year seeded with the default allocation,
// and the bucket for (old year - 2) is expired if present. The whole
// transition is one transaction: either every employee is processed or none.
// Returns the new exercise year.
func (l *Ledger) RolloverFiscalYear(ctx context.Context) (int, error) {
	var newYear int
	err := l.store.WithTx(ctx, func(tx Store) error {
		current, err := tx.ExerciseYear(ctx)
		if err != nil {
			return err
		}
		newYear = current + 1
		expireYear := current - 2

		employees, err := tx.ListEmployees(ctx)
		if err != nil {
			return err
		}
		for _, emp := range employees {
			b := &BalanceBucket{
				ID:         uuid.NewString(),
				EmployeeID: emp.ID,
				Year:       newYear,
				Amount:     l.settings.DefaultAllocation,
				Status:     BucketActive,
			}
			if err := tx.CreateBucket(ctx, b); err != nil {
				return err
			}
			if err := tx.SetBucketStatus(ctx, emp.ID, expireYear, BucketExpired); err != nil {
				return err
			}
		}
		return tx.SetExerciseYear(ctx, newYear)
	})
	if err != nil {
		l.log.Error("fiscal year rollover failed, rolled back", "error", err)
		return 0, err
	}
	l.log.Info("fiscal year rolled over", "year", newYear)
	return newYear, nil
}

// =============================================================================
// EXPIRED BUCKETS
// =============================================================================

// ExpiredBalances lists Expired buckets that still hold days, for the purge
// report.
func (l *Ledger) ExpiredBalances(ctx context.Context) ([]BucketSummary, error) {
	return l.store.ListBucketsByStatus(ctx, BucketExpired)
}

// PurgeExpiredBuckets zeroes the given buckets. Callers are responsible for
// passing only Expired bucket ids; the status is not re-checked here, which
// matches the read path feeding this operation.
func (l *Ledger) PurgeExpiredBuckets(ctx context.Context, bucketIDs []string) error {
	if len(bucketIDs) == 0 {
		return nil
	}
	return l.store.ZeroBuckets(ctx, bucketIDs)
}

// =============================================================================
// MANUAL OVERRIDES
// =============================================================================

// SaveManualBuckets applies administrative balance overrides in one
// transaction. updates overwrites existing buckets by id; creations adds a
// bucket for a bare year, Expired when the year is older than
// (exercise year - 2) and Active otherwise. Negative amounts are rejected;
// no other policy check applies, so an override may exceed the yearly cap.
func (l *Ledger) SaveManualBuckets(ctx context.Context, employeeID string, updates map[string]decimal.Decimal, creations map[int]decimal.Decimal) error {
	for _, v := range updates {
		if v.IsNegative() {
			return ErrInvalidRequest
		}
	}
	for _, v := range creations {
		if v.IsNegative() {
			return ErrInvalidRequest
		}
	}

	return l.store.WithTx(ctx, func(tx Store) error {
		for bucketID, amount := range updates {
			if err := tx.UpdateBucketAmount(ctx, bucketID, amount); err != nil {
				return err
			}
		}

		if len(creations) == 0 {
			return nil
		}
		exerciseYear, err := tx.ExerciseYear(ctx)
		if err != nil {
			return err
		}
		for year, amount := range creations {
			status := BucketActive
			if year < exerciseYear-2 {
				status = BucketExpired
			}
			b := &BalanceBucket{
				ID:         uuid.NewString(),
				EmployeeID: employeeID,
				Year:       year,
				Amount:     amount,
				Status:     status,
			}
			if err := tx.CreateBucket(ctx, b); err != nil {
				return err
			}
		}
		return nil
	})
}
