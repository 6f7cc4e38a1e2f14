/*
handlers.go - HTTP API handlers for the leave engine

PURPOSE:
  Exposes the leave engine via REST API. Handles HTTP request/response,
  JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Employees:
    GET    /api/employees                      List all employees
    POST   /api/employees                      Register employee
    GET    /api/employees/{id}                 Get employee details
    PUT    /api/employees/{id}                 Update employee
    DELETE /api/employees/{id}                 Delete employee (cascades)
    GET    /api/employees/{id}/balance         Balance summary
    GET    /api/employees/{id}/leaves          Leave history
    POST   /api/employees/{id}/leaves          Submit leave request

  Leaves:
    GET    /api/leaves/{id}                    Get leave record
    DELETE /api/leaves/{id}                    Delete leave (credits back)
    GET    /api/leaves/{id}/approval           Approval slip as PDF

  Admin:
    POST   /api/admin/rollover                 Fiscal year rollover
    GET    /api/admin/expired-balances         Expired buckets holding days
    POST   /api/admin/purge                    Zero expired buckets
    POST   /api/admin/employees/{id}/buckets   Manual balance overrides

  Reports:
    GET    /api/reports/inconsistencies?year=  Stale annual-leave day counts
    GET    /api/reports/on-leave?date=         Who is on leave that day
    GET    /api/reports/missing-certificates   Sick leave without documents

  Holidays:
    GET    /api/holidays?year=                 Custom holidays for a year
    POST   /api/holidays                       Add custom holiday
    DELETE /api/holidays/{date}                Remove custom holiday

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 404: Resource not found
  - 409: Insufficient balance, overlap conflict
  - 500: Internal errors

SECURITY NOTE:
  No authentication middleware. The engine is designed to sit behind an
  intranet reverse proxy that handles identity.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/atlas-hr/leave-engine/calendar"
	"github.com/atlas-hr/leave-engine/docs"
	"github.com/atlas-hr/leave-engine/leave"
	"github.com/atlas-hr/leave-engine/store/sqlite"
)

const dateLayout = "2006-01-02"

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store   *sqlite.Store
	Ledger  *leave.Ledger
	Manager *leave.Manager
	Docs    *docs.Generator
}

// NewHandler creates a new handler over the wired domain services.
func NewHandler(store *sqlite.Store, ledger *leave.Ledger, manager *leave.Manager, gen *docs.Generator) *Handler {
	return &Handler{Store: store, Ledger: ledger, Manager: manager, Docs: gen}
}

// =============================================================================
// EMPLOYEE HANDLERS
// =============================================================================

// ListEmployees returns all employees.
func (h *Handler) ListEmployees(w http.ResponseWriter, r *http.Request) {
	employees, err := h.Store.ListEmployees(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list employees", err)
		return
	}
	dtos := make([]EmployeeDTO, len(employees))
	for i, e := range employees {
		dtos[i] = toEmployeeDTO(e)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// RegisterEmployee creates an employee with seeded balance buckets.
func (h *Handler) RegisterEmployee(w http.ResponseWriter, r *http.Request) {
	var req RegisterEmployeeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	initial := make(map[int]decimal.Decimal, len(req.InitialBuckets))
	for year, amount := range req.InitialBuckets {
		d, err := decimal.NewFromString(amount)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid amount for year %d", year), err)
			return
		}
		initial[year] = d
	}

	emp := &leave.Employee{ID: req.ID, RefCode: req.RefCode, Name: req.Name, Grade: req.Grade}
	if err := h.Manager.RegisterEmployee(r.Context(), emp, initial); err != nil {
		writeDomainError(w, "Failed to register employee", err)
		return
	}
	writeJSON(w, http.StatusCreated, toEmployeeDTO(emp))
}

// GetEmployee returns one employee with balance buckets.
func (h *Handler) GetEmployee(w http.ResponseWriter, r *http.Request) {
	emp, err := h.Store.GetEmployee(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, "Failed to get employee", err)
		return
	}
	writeJSON(w, http.StatusOK, toEmployeeDTO(emp))
}

// UpdateEmployee updates identity fields.
func (h *Handler) UpdateEmployee(w http.ResponseWriter, r *http.Request) {
	var req UpdateEmployeeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Name == "" || req.RefCode == "" {
		writeError(w, http.StatusBadRequest, "name and ref_code are required", nil)
		return
	}
	emp := &leave.Employee{ID: chi.URLParam(r, "id"), RefCode: req.RefCode, Name: req.Name, Grade: req.Grade}
	if err := h.Store.UpdateEmployee(r.Context(), emp); err != nil {
		writeDomainError(w, "Failed to update employee", err)
		return
	}
	writeJSON(w, http.StatusOK, toEmployeeDTO(emp))
}

// DeleteEmployee removes an employee; buckets, records and certificates
// cascade.
func (h *Handler) DeleteEmployee(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.DeleteEmployee(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeDomainError(w, "Failed to delete employee", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deleted": true})
}

// GetBalance returns the balance summary for an employee.
func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	emp, err := h.Store.GetEmployee(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, "Failed to get balance", err)
		return
	}
	writeJSON(w, http.StatusOK, toBalanceDTO(emp))
}

// =============================================================================
// LEAVE HANDLERS
// =============================================================================

// ListLeaves returns the leave history of an employee.
func (h *Handler) ListLeaves(w http.ResponseWriter, r *http.Request) {
	records, err := h.Store.ListLeaves(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list leaves", err)
		return
	}
	writeJSON(w, http.StatusOK, toLeaveDTOs(records))
}

// SubmitLeave submits or modifies a leave request for an employee.
func (h *Handler) SubmitLeave(w http.ResponseWriter, r *http.Request) {
	employeeID := chi.URLParam(r, "id")

	var req SubmitLeaveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	sub, err := h.toSubmitRequest(r, employeeID, req)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid submission", err)
		return
	}

	confirm := func([]*leave.LeaveRecord) bool { return req.ConfirmReplace }
	result, err := h.Manager.Submit(r.Context(), sub, confirm)
	if err != nil {
		submissionsTotal.WithLabelValues("rejected").Inc()
		writeDomainError(w, "Failed to submit leave", err)
		return
	}

	if result.Aborted {
		// Echo the blocking records so the client can ask the user.
		overlaps, err := h.Store.OverlappingLeaves(r.Context(), employeeID, sub.Start, sub.End, sub.ReplaceLeaveID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to load overlaps", err)
			return
		}
		submissionsTotal.WithLabelValues("needs_confirmation").Inc()
		writeJSON(w, http.StatusConflict, SubmitLeaveResponse{
			RequiresConfirmation: true,
			Overlaps:             toLeaveDTOs(overlaps),
		})
		return
	}

	submissionsTotal.WithLabelValues("accepted").Inc()
	dto := toLeaveDTO(result.Record)
	writeJSON(w, http.StatusCreated, SubmitLeaveResponse{Leave: &dto, Warning: result.Warning})
}

// toSubmitRequest parses dates and applies fixed durations for types that
// impose one.
func (h *Handler) toSubmitRequest(r *http.Request, employeeID string, req SubmitLeaveRequest) (leave.SubmitRequest, error) {
	start, err := time.ParseInLocation(dateLayout, req.StartDate, time.UTC)
	if err != nil {
		return leave.SubmitRequest{}, fmt.Errorf("invalid start_date (use YYYY-MM-DD): %w", err)
	}

	leaveType := leave.LeaveType(req.Type)
	var end time.Time
	policy, known := h.Manager.Policies().For(leaveType)
	if known {
		if fixed, ok := policy.FixedDuration(); ok {
			end = policy.EndDate(start, fixed, nil)
		}
	}
	if req.EndDate != "" {
		end, err = time.ParseInLocation(dateLayout, req.EndDate, time.UTC)
		if err != nil {
			return leave.SubmitRequest{}, fmt.Errorf("invalid end_date (use YYYY-MM-DD): %w", err)
		}
	}
	if end.IsZero() {
		return leave.SubmitRequest{}, fmt.Errorf("end_date is required for %s leave", req.Type)
	}

	return leave.SubmitRequest{
		EmployeeID:      employeeID,
		Type:            leaveType,
		Start:           start,
		End:             end,
		Justification:   req.Justification,
		SubstituteID:    req.SubstituteID,
		ReplaceLeaveID:  req.ReplaceLeaveID,
		CertificatePath: req.CertificatePath,
	}, nil
}

// GetLeave returns one leave record.
func (h *Handler) GetLeave(w http.ResponseWriter, r *http.Request) {
	rec, err := h.Store.GetLeave(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, "Failed to get leave", err)
		return
	}
	writeJSON(w, http.StatusOK, toLeaveDTO(rec))
}

// DeleteLeave removes a leave record, crediting its days back when the type
// deducts balance.
func (h *Handler) DeleteLeave(w http.ResponseWriter, r *http.Request) {
	if err := h.Manager.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeDomainError(w, "Failed to delete leave", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deleted": true})
}

// ApprovalDocument renders the approval slip PDF for a committed leave
// record and serves the file.
func (h *Handler) ApprovalDocument(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	rec, err := h.Store.GetLeave(ctx, chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, "Failed to get leave", err)
		return
	}
	emp, err := h.Store.GetEmployee(ctx, rec.EmployeeID)
	if err != nil {
		writeDomainError(w, "Failed to get employee", err)
		return
	}
	returnDate, err := h.Manager.ReturnToWork(ctx, rec)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to compute return date", err)
		return
	}
	breakdown, err := h.Ledger.DeductionBreakdown(ctx, rec.EmployeeID, rec.Days)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to compute deduction breakdown", err)
		return
	}

	path, err := h.Docs.Generate(docs.Approval{
		Employee:     emp,
		Record:       rec,
		ReturnToWork: returnDate,
		Breakdown:    breakdown,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to render approval document", err)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	http.ServeFile(w, r, path)
}

// =============================================================================
// ADMIN HANDLERS
// =============================================================================

// TriggerRollover advances the fiscal exercise year.
func (h *Handler) TriggerRollover(w http.ResponseWriter, r *http.Request) {
	year, err := h.Ledger.RolloverFiscalYear(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Rollover failed", err)
		return
	}
	rolloversTotal.Inc()
	writeJSON(w, http.StatusOK, RolloverResponse{Year: year})
}

// ExpiredBalances lists Expired buckets still holding days.
func (h *Handler) ExpiredBalances(w http.ResponseWriter, r *http.Request) {
	rows, err := h.Ledger.ExpiredBalances(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list expired balances", err)
		return
	}
	writeJSON(w, http.StatusOK, toBucketSummaryDTOs(rows))
}

// PurgeExpired zeroes the named expired buckets.
func (h *Handler) PurgeExpired(w http.ResponseWriter, r *http.Request) {
	var req PurgeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if err := h.Ledger.PurgeExpiredBuckets(r.Context(), req.BucketIDs); err != nil {
		writeError(w, http.StatusInternalServerError, "Purge failed", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"purged": len(req.BucketIDs)})
}

// SaveManualBuckets applies administrative balance overrides for one
// employee.
func (h *Handler) SaveManualBuckets(w http.ResponseWriter, r *http.Request) {
	var req ManualBucketsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	updates := make(map[string]decimal.Decimal, len(req.Updates))
	for id, amount := range req.Updates {
		d, err := decimal.NewFromString(amount)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid amount for bucket %s", id), err)
			return
		}
		updates[id] = d
	}
	creations := make(map[int]decimal.Decimal, len(req.Creations))
	for year, amount := range req.Creations {
		d, err := decimal.NewFromString(amount)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid amount for year %d", year), err)
			return
		}
		creations[year] = d
	}

	employeeID := chi.URLParam(r, "id")
	if err := h.Ledger.SaveManualBuckets(r.Context(), employeeID, updates, creations); err != nil {
		writeDomainError(w, "Failed to save buckets", err)
		return
	}

	emp, err := h.Store.GetEmployee(r.Context(), employeeID)
	if err != nil {
		writeDomainError(w, "Failed to reload employee", err)
		return
	}
	writeJSON(w, http.StatusOK, toBalanceDTO(emp))
}

// =============================================================================
// REPORT HANDLERS
// =============================================================================

// Inconsistencies reports annual-leave records whose day count no longer
// matches the current holiday set. Read-only.
func (h *Handler) Inconsistencies(w http.ResponseWriter, r *http.Request) {
	var year int
	if _, err := fmt.Sscanf(r.URL.Query().Get("year"), "%d", &year); err != nil {
		writeError(w, http.StatusBadRequest, "year query parameter is required", err)
		return
	}
	rows, err := h.Manager.FindInconsistentAnnualLeaves(r.Context(), year)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to scan leaves", err)
		return
	}
	dtos := make([]InconsistencyDTO, len(rows))
	for i, row := range rows {
		dtos[i] = InconsistencyDTO{
			Leave:          toLeaveDTO(row.Record),
			RecomputedDays: row.RecomputedDays.String(),
		}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// OnLeave lists who is on leave on a given date (default today).
func (h *Handler) OnLeave(w http.ResponseWriter, r *http.Request) {
	day := time.Now().UTC()
	if q := r.URL.Query().Get("date"); q != "" {
		var err error
		day, err = time.ParseInLocation(dateLayout, q, time.UTC)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid date (use YYYY-MM-DD)", err)
			return
		}
	}
	records, err := h.Store.OnLeave(r.Context(), calendar.Normalize(day))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list leaves", err)
		return
	}
	writeJSON(w, http.StatusOK, toLeaveDTOs(records))
}

// MissingCertificates lists active sick leave without an attached document.
func (h *Handler) MissingCertificates(w http.ResponseWriter, r *http.Request) {
	records, err := h.Store.SickLeavesMissingCertificate(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to scan certificates", err)
		return
	}
	writeJSON(w, http.StatusOK, toLeaveDTOs(records))
}

// =============================================================================
// HOLIDAY HANDLERS
// =============================================================================

// ListHolidays returns the custom holidays for a year (default: current).
func (h *Handler) ListHolidays(w http.ResponseWriter, r *http.Request) {
	year := time.Now().Year()
	if q := r.URL.Query().Get("year"); q != "" {
		if _, err := fmt.Sscanf(q, "%d", &year); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid year", err)
			return
		}
	}
	rows, err := h.Store.ListHolidays(r.Context(), year)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list holidays", err)
		return
	}
	writeJSON(w, http.StatusOK, toHolidayDTOs(rows))
}

// CreateHoliday adds a custom non-working date.
func (h *Handler) CreateHoliday(w http.ResponseWriter, r *http.Request) {
	var req HolidayDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	date, err := time.ParseInLocation(dateLayout, req.Date, time.UTC)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date (use YYYY-MM-DD)", err)
		return
	}
	if err := h.Store.AddHoliday(r.Context(), date, req.Name); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to add holiday", err)
		return
	}
	writeJSON(w, http.StatusCreated, req)
}

// DeleteHoliday removes a custom non-working date.
func (h *Handler) DeleteHoliday(w http.ResponseWriter, r *http.Request) {
	date, err := time.ParseInLocation(dateLayout, chi.URLParam(r, "date"), time.UTC)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date (use YYYY-MM-DD)", err)
		return
	}
	if err := h.Store.DeleteHoliday(r.Context(), date); err != nil {
		writeDomainError(w, "Failed to delete holiday", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deleted": true})
}

// =============================================================================
// RESPONSE HELPERS
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

// writeDomainError maps domain errors onto HTTP statuses.
func writeDomainError(w http.ResponseWriter, message string, err error) {
	switch {
	case leave.IsNotFound(err):
		writeError(w, http.StatusNotFound, message, err)
	case errors.Is(err, leave.ErrInvalidRequest):
		writeError(w, http.StatusBadRequest, message, err)
	case errors.Is(err, leave.ErrInsufficientBalance), errors.Is(err, leave.ErrOverlapConflict):
		writeError(w, http.StatusConflict, message, err)
	default:
		writeError(w, http.StatusInternalServerError, message, err)
	}
}
