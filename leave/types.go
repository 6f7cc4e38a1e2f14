/*
Package leave implements the leave balance ledger and the leave-request
orchestrator.

PURPOSE:
  This is the core of the engine. It owns the per-employee, per-fiscal-year
  balance buckets, the rules for spreading debits and credits across them,
  the fiscal-year rollover, and the submission workflow that keeps leave
  records and balances consistent under one transaction.

KEY CONCEPTS IN THIS FILE (types.go):
  - Employee:      an agent with an owned set of balance buckets
  - BalanceBucket: one fiscal year's allowance for one employee
  - LeaveRecord:   an immutable leave entry (replaced, never edited in place)
  - LeaveType:     closed set of leave categories
  - Settings:      the configuration the ledger and policies depend on

DESIGN PRINCIPLES:
  1. Precision: decimal.Decimal for every day amount; no float drift
  2. Closed enums: bucket and record statuses are tagged values with a
     stable string serialization, never free-form strings
  3. Single mutation surface: only the Ledger and Manager in this package
     may change buckets or leave records

SEE ALSO:
  - ledger.go:  debit/credit/rollover over buckets
  - manager.go: submission, overlap resolution, deletion
  - policy.go:  per-leave-type duration calculation
*/
package leave

import (
	"time"

	"github.com/shopspring/decimal"
)

// Epsilon is the tolerance used when deciding that a remaining amount has
// been fully consumed. Amounts smaller than this are treated as zero.
var Epsilon = decimal.NewFromFloat(0.001)

// =============================================================================
// LEAVE TYPES - Closed set of categories
// =============================================================================

type LeaveType string

const (
	TypeAnnual      LeaveType = "annual"
	TypeSick        LeaveType = "sick"
	TypeExceptional LeaveType = "exceptional"
	TypeMaternity   LeaveType = "maternity"
	TypePaternity   LeaveType = "paternity"
)

// KnownTypes lists every recognized leave type, in display order.
var KnownTypes = []LeaveType{TypeAnnual, TypeSick, TypeExceptional, TypeMaternity, TypePaternity}

// Known reports whether t is one of the recognized leave types.
func (t LeaveType) Known() bool {
	for _, k := range KnownTypes {
		if t == k {
			return true
		}
	}
	return false
}

func (t LeaveType) String() string { return string(t) }

// =============================================================================
// STATUSES - Tagged values, stable string serialization
// =============================================================================

type BucketStatus string

const (
	BucketActive  BucketStatus = "active"
	BucketExpired BucketStatus = "expired"
)

// ParseBucketStatus converts a stored string back into a BucketStatus.
func ParseBucketStatus(s string) (BucketStatus, bool) {
	switch BucketStatus(s) {
	case BucketActive, BucketExpired:
		return BucketStatus(s), true
	}
	return "", false
}

type RecordStatus string

const (
	RecordActive    RecordStatus = "active"
	RecordCancelled RecordStatus = "cancelled"
)

// ParseRecordStatus converts a stored string back into a RecordStatus.
func ParseRecordStatus(s string) (RecordStatus, bool) {
	switch RecordStatus(s) {
	case RecordActive, RecordCancelled:
		return RecordStatus(s), true
	}
	return "", false
}

// =============================================================================
// EMPLOYEE
// =============================================================================

type Employee struct {
	ID      string
	RefCode string // unique external reference (badge number)
	Name    string
	Grade   string

	// Buckets is populated by store reads that load balances.
	Buckets []BalanceBucket
}

// TotalActive sums the amounts of the employee's Active buckets.
func (e *Employee) TotalActive() decimal.Decimal {
	total := decimal.Zero
	for _, b := range e.Buckets {
		if b.Status == BucketActive {
			total = total.Add(b.Amount)
		}
	}
	return total
}

// activeBuckets returns the Active buckets sorted by fiscal year.
// oldestFirst selects the debit ordering; the inverse is the credit ordering.
func (e *Employee) activeBuckets(oldestFirst bool) []BalanceBucket {
	var out []BalanceBucket
	for _, b := range e.Buckets {
		if b.Status == BucketActive {
			out = append(out, b)
		}
	}
	for i := 1; i < len(out); i++ {
		for j := i; j > 0; j-- {
			swap := out[j].Year < out[j-1].Year
			if !oldestFirst {
				swap = out[j].Year > out[j-1].Year
			}
			if !swap {
				break
			}
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}

// =============================================================================
// BALANCE BUCKET - One fiscal year's allowance
// =============================================================================

type BalanceBucket struct {
	ID         string
	EmployeeID string
	Year       int
	Amount     decimal.Decimal // always >= 0, denominated in days
	Status     BucketStatus
}

// BucketSummary joins a bucket with its owner for reporting.
type BucketSummary struct {
	BucketID     string
	EmployeeID   string
	EmployeeName string
	Year         int
	Amount       decimal.Decimal
}

// =============================================================================
// LEAVE RECORD
// =============================================================================

type LeaveRecord struct {
	ID            string
	EmployeeID    string
	Type          LeaveType
	Start         time.Time
	End           time.Time
	Days          decimal.Decimal
	Justification string
	SubstituteID  string // optional interim employee
	Status        RecordStatus
}

// Overlaps reports whether the record's inclusive range intersects [start, end].
func (r *LeaveRecord) Overlaps(start, end time.Time) bool {
	return !r.End.Before(start) && !r.Start.After(end)
}

// =============================================================================
// SETTINGS - Configuration the ledger and policies depend on
// =============================================================================

// Settings carries the configured business values. The per-year cap used by
// credit is the default allocation: credit fills buckets back up to it, and
// only a manual override can push a bucket beyond it.
type Settings struct {
	DefaultAllocation decimal.Decimal
	DeductingTypes    map[LeaveType]bool
	MaternityDays     int
	PaternityDays     int
}

// DefaultSettings returns the standard configuration: 22 annual days, only
// annual leave deducts balance, statutory maternity/paternity durations.
func DefaultSettings() Settings {
	return Settings{
		DefaultAllocation: decimal.NewFromInt(22),
		DeductingTypes:    map[LeaveType]bool{TypeAnnual: true},
		MaternityDays:     98,
		PaternityDays:     15,
	}
}

// Deducts reports whether the leave type consumes balance from the ledger.
func (s Settings) Deducts(t LeaveType) bool { return s.DeductingTypes[t] }
