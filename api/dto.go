/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract. Day amounts are
  decimal strings on the wire, dates are YYYY-MM-DD.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

VALIDATION:
  Validation is done in handlers and the domain layer, not in DTOs. DTOs
  are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"github.com/atlas-hr/leave-engine/leave"
	"github.com/atlas-hr/leave-engine/store/sqlite"
)

// =============================================================================
// EMPLOYEES
// =============================================================================

// EmployeeDTO represents an employee in API responses.
type EmployeeDTO struct {
	ID      string `json:"id"`
	RefCode string `json:"ref_code"`
	Name    string `json:"name"`
	Grade   string `json:"grade,omitempty"`
}

// RegisterEmployeeRequest creates an employee with optional initial balance
// buckets keyed by fiscal year. When empty, one bucket for the current
// exercise year is seeded with the default allocation.
type RegisterEmployeeRequest struct {
	ID             string         `json:"id,omitempty"`
	RefCode        string         `json:"ref_code"`
	Name           string         `json:"name"`
	Grade          string         `json:"grade,omitempty"`
	InitialBuckets map[int]string `json:"initial_buckets,omitempty"`
}

// UpdateEmployeeRequest renames or regrades an employee.
type UpdateEmployeeRequest struct {
	RefCode string `json:"ref_code"`
	Name    string `json:"name"`
	Grade   string `json:"grade,omitempty"`
}

// =============================================================================
// BALANCES
// =============================================================================

// BucketDTO is one fiscal-year balance bucket.
type BucketDTO struct {
	ID     string `json:"id"`
	Year   int    `json:"year"`
	Amount string `json:"amount"`
	Status string `json:"status"`
}

// BalanceDTO is the employee balance summary.
type BalanceDTO struct {
	EmployeeID  string      `json:"employee_id"`
	TotalActive string      `json:"total_active"`
	Buckets     []BucketDTO `json:"buckets"`
}

// BucketSummaryDTO is a reporting row for buckets still holding days.
type BucketSummaryDTO struct {
	BucketID     string `json:"bucket_id"`
	EmployeeID   string `json:"employee_id"`
	EmployeeName string `json:"employee_name"`
	Year         int    `json:"year"`
	Amount       string `json:"amount"`
}

// PurgeRequest names the expired buckets to zero.
type PurgeRequest struct {
	BucketIDs []string `json:"bucket_ids"`
}

// ManualBucketsRequest applies administrative balance overrides: updates by
// bucket id, creations by fiscal year. Amounts are decimal strings.
type ManualBucketsRequest struct {
	Updates   map[string]string `json:"updates,omitempty"`
	Creations map[int]string    `json:"creations,omitempty"`
}

// =============================================================================
// LEAVE RECORDS
// =============================================================================

// LeaveDTO represents a leave record in API responses.
type LeaveDTO struct {
	ID            string `json:"id"`
	EmployeeID    string `json:"employee_id"`
	Type          string `json:"type"`
	StartDate     string `json:"start_date"`
	EndDate       string `json:"end_date"`
	Days          string `json:"days"`
	Justification string `json:"justification,omitempty"`
	SubstituteID  string `json:"substitute_id,omitempty"`
	Status        string `json:"status"`
}

// SubmitLeaveRequest is a leave submission or modification. EndDate may be
// omitted for types with a fixed duration. ConfirmReplace authorizes the
// split/replace of overlapping annual leave; without it an overlapping
// submission returns the overlaps and performs no mutation.
type SubmitLeaveRequest struct {
	Type            string `json:"type"`
	StartDate       string `json:"start_date"`
	EndDate         string `json:"end_date,omitempty"`
	Justification   string `json:"justification,omitempty"`
	SubstituteID    string `json:"substitute_id,omitempty"`
	ReplaceLeaveID  string `json:"replace_leave_id,omitempty"`
	CertificatePath string `json:"certificate_path,omitempty"`
	ConfirmReplace  bool   `json:"confirm_replace,omitempty"`
}

// SubmitLeaveResponse reports the outcome of a submission.
type SubmitLeaveResponse struct {
	Leave *LeaveDTO `json:"leave,omitempty"`
	// RequiresConfirmation is set when overlapping annual leave blocked the
	// submission; resubmit with confirm_replace=true to proceed.
	RequiresConfirmation bool       `json:"requires_confirmation,omitempty"`
	Overlaps             []LeaveDTO `json:"overlaps,omitempty"`
	Warning              string     `json:"warning,omitempty"`
}

// InconsistencyDTO flags an annual-leave record whose stored day count no
// longer matches the current holiday set.
type InconsistencyDTO struct {
	Leave          LeaveDTO `json:"leave"`
	RecomputedDays string   `json:"recomputed_days"`
}

// =============================================================================
// ADMIN / MISC
// =============================================================================

// RolloverResponse reports the new exercise year.
type RolloverResponse struct {
	Year int `json:"year"`
}

// HolidayDTO is a custom non-working date.
type HolidayDTO struct {
	Date string `json:"date"`
	Name string `json:"name"`
}

// ErrorResponse is the uniform error body.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func toEmployeeDTO(e *leave.Employee) EmployeeDTO {
	return EmployeeDTO{ID: e.ID, RefCode: e.RefCode, Name: e.Name, Grade: e.Grade}
}

func toLeaveDTO(rec *leave.LeaveRecord) LeaveDTO {
	return LeaveDTO{
		ID:            rec.ID,
		EmployeeID:    rec.EmployeeID,
		Type:          string(rec.Type),
		StartDate:     rec.Start.Format("2006-01-02"),
		EndDate:       rec.End.Format("2006-01-02"),
		Days:          rec.Days.String(),
		Justification: rec.Justification,
		SubstituteID:  rec.SubstituteID,
		Status:        string(rec.Status),
	}
}

func toLeaveDTOs(recs []*leave.LeaveRecord) []LeaveDTO {
	out := make([]LeaveDTO, len(recs))
	for i, r := range recs {
		out[i] = toLeaveDTO(r)
	}
	return out
}

func toBalanceDTO(e *leave.Employee) BalanceDTO {
	dto := BalanceDTO{
		EmployeeID:  e.ID,
		TotalActive: e.TotalActive().String(),
		Buckets:     make([]BucketDTO, len(e.Buckets)),
	}
	for i, b := range e.Buckets {
		dto.Buckets[i] = BucketDTO{
			ID:     b.ID,
			Year:   b.Year,
			Amount: b.Amount.String(),
			Status: string(b.Status),
		}
	}
	return dto
}

func toBucketSummaryDTOs(rows []leave.BucketSummary) []BucketSummaryDTO {
	out := make([]BucketSummaryDTO, len(rows))
	for i, r := range rows {
		out[i] = BucketSummaryDTO{
			BucketID:     r.BucketID,
			EmployeeID:   r.EmployeeID,
			EmployeeName: r.EmployeeName,
			Year:         r.Year,
			Amount:       r.Amount.String(),
		}
	}
	return out
}

func toHolidayDTOs(rows []sqlite.Holiday) []HolidayDTO {
	out := make([]HolidayDTO, len(rows))
	for i, h := range rows {
		out[i] = HolidayDTO{Date: h.Date.Format("2006-01-02"), Name: h.Name}
	}
	return out
}
