/*
policy.go - Per-leave-type duration calculation

PURPOSE:
  Each leave type measures its duration differently: annual leave counts
  working days, sick and exceptional leave count calendar days, maternity
  and paternity leave are calendar-day types with a configured fixed
  duration. This file implements that polymorphism as a small interface
  with one implementation per family, selected through a fixed lookup
  table - no subclass-per-type hierarchy.

VARIANTS:
  workingDayPolicy:  annual leave; both calculations delegate to calendar
  calendarDayPolicy: sick/exceptional/maternity/paternity; inclusive
                     calendar-day arithmetic, optional fixed duration,
                     optional certificate requirement

The certificate requirement never blocks submission; the orchestrator
attaches the document after the record is committed and degrades to a
warning on failure.
*/
package leave

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/atlas-hr/leave-engine/calendar"
)

// DurationPolicy computes day counts and end dates for one leave-type family.
type DurationPolicy interface {
	// Days returns the duration of [start, end] under this policy.
	Days(start, end time.Time, nonWorking calendar.DateSet) decimal.Decimal

	// EndDate returns the date reached by consuming days starting at start.
	EndDate(start time.Time, days int, nonWorking calendar.DateSet) time.Time

	// FixedDuration returns the imposed duration in days, if any.
	FixedDuration() (int, bool)

	// RequiresCertificate reports whether a supporting document is expected.
	RequiresCertificate() bool
}

// =============================================================================
// WORKING-DAY POLICY (annual leave)
// =============================================================================

type workingDayPolicy struct{}

func (workingDayPolicy) Days(start, end time.Time, nonWorking calendar.DateSet) decimal.Decimal {
	return decimal.NewFromInt(int64(calendar.CountWorkingDays(start, end, nonWorking)))
}

func (workingDayPolicy) EndDate(start time.Time, days int, nonWorking calendar.DateSet) time.Time {
	return calendar.AddWorkingDays(start, days, nonWorking)
}

func (workingDayPolicy) FixedDuration() (int, bool) { return 0, false }
func (workingDayPolicy) RequiresCertificate() bool  { return false }

// =============================================================================
// CALENDAR-DAY POLICY (sick, exceptional, maternity, paternity)
// =============================================================================

type calendarDayPolicy struct {
	fixedDays    int // 0 = free duration
	certRequired bool
}

func (calendarDayPolicy) Days(start, end time.Time, _ calendar.DateSet) decimal.Decimal {
	s := calendar.Normalize(start)
	e := calendar.Normalize(end)
	if e.Before(s) {
		return decimal.Zero
	}
	days := int64(e.Sub(s).Hours()/24) + 1
	return decimal.NewFromInt(days)
}

func (calendarDayPolicy) EndDate(start time.Time, days int, _ calendar.DateSet) time.Time {
	if days <= 0 {
		return calendar.Normalize(start)
	}
	return calendar.Normalize(start).AddDate(0, 0, days-1)
}

func (p calendarDayPolicy) FixedDuration() (int, bool) { return p.fixedDays, p.fixedDays > 0 }
func (p calendarDayPolicy) RequiresCertificate() bool  { return p.certRequired }

// =============================================================================
// POLICY SET - Fixed lookup table keyed by leave type
// =============================================================================

type PolicySet struct {
	byType map[LeaveType]DurationPolicy
}

// NewPolicySet builds the lookup table from the configured settings.
func NewPolicySet(settings Settings) *PolicySet {
	return &PolicySet{byType: map[LeaveType]DurationPolicy{
		TypeAnnual:      workingDayPolicy{},
		TypeSick:        calendarDayPolicy{certRequired: true},
		TypeExceptional: calendarDayPolicy{},
		TypeMaternity:   calendarDayPolicy{fixedDays: settings.MaternityDays},
		TypePaternity:   calendarDayPolicy{fixedDays: settings.PaternityDays},
	}}
}

// For returns the policy for the given leave type.
func (p *PolicySet) For(t LeaveType) (DurationPolicy, bool) {
	pol, ok := p.byType[t]
	return pol, ok
}
