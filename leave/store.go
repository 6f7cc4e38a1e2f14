/*
store.go - Persistence interfaces for the leave engine

PURPOSE:
  Defines the contract between the domain logic and the database. The
  concrete implementation lives in store/sqlite; tests use the same
  implementation against an in-memory database.

TRANSACTION MODEL:
  Every multi-step mutation in the ledger and the orchestrator runs inside
  WithTx: the callback receives a Store scoped to one database transaction,
  and any error from the callback rolls the whole sequence back before it is
  propagated. There is a single writer (§ single-process model), so the
  store serializes transactions on one connection and no further locking is
  needed.
*/
package leave

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/atlas-hr/leave-engine/calendar"
)

// Store is the persistence surface the domain logic runs against. Reads
// issued through a transaction-scoped Store observe that transaction's own
// writes.
type Store interface {
	// Employees. GetEmployee loads the employee with all balance buckets.
	CreateEmployee(ctx context.Context, e *Employee) error
	UpdateEmployee(ctx context.Context, e *Employee) error
	DeleteEmployee(ctx context.Context, id string) error
	GetEmployee(ctx context.Context, id string) (*Employee, error)
	ListEmployees(ctx context.Context) ([]*Employee, error)

	// Balance buckets.
	CreateBucket(ctx context.Context, b *BalanceBucket) error
	UpdateBucketAmount(ctx context.Context, bucketID string, amount decimal.Decimal) error
	SetBucketStatus(ctx context.Context, employeeID string, year int, status BucketStatus) error
	ZeroBuckets(ctx context.Context, bucketIDs []string) error
	ListBucketsByStatus(ctx context.Context, status BucketStatus) ([]BucketSummary, error)

	// Leave records.
	InsertLeave(ctx context.Context, rec *LeaveRecord) error
	DeleteLeave(ctx context.Context, id string) error
	GetLeave(ctx context.Context, id string) (*LeaveRecord, error)
	ListLeaves(ctx context.Context, employeeID string) ([]*LeaveRecord, error)
	OverlappingLeaves(ctx context.Context, employeeID string, start, end time.Time, excludeID string) ([]*LeaveRecord, error)
	OnLeave(ctx context.Context, day time.Time) ([]*LeaveRecord, error)

	// Fiscal exercise year, a single persistent pointer.
	ExerciseYear(ctx context.Context) (int, error)
	SetExerciseYear(ctx context.Context, year int) error

	// Supporting documents.
	AttachCertificate(ctx context.Context, leaveID, path string) error
	CertificatePath(ctx context.Context, leaveID string) (string, error)
	SickLeavesMissingCertificate(ctx context.Context) ([]*LeaveRecord, error)
}

// TxStore adds the transaction boundary to Store.
type TxStore interface {
	Store

	// WithTx executes fn within one database transaction. If fn returns an
	// error the transaction is rolled back and the error returned unchanged.
	WithTx(ctx context.Context, fn func(Store) error) error
}

// HolidayProvider supplies the non-working dates for a year range. Callers
// request generous lookahead (at least two years past the relevant end) so
// calculations never truncate at a year boundary.
type HolidayProvider interface {
	NonWorkingDates(ctx context.Context, startYear, endYear int) (calendar.DateSet, error)
}
