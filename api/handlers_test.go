/*
handlers_test.go - End-to-end tests for the HTTP API

Each test spins up the real router over an in-memory database and drives it
through httptest, so the full stack (handlers, manager, ledger, store) is
exercised the way a client would.
*/
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atlas-hr/leave-engine/docs"
	"github.com/atlas-hr/leave-engine/leave"
	"github.com/atlas-hr/leave-engine/store/sqlite"
)

func newTestServer(t *testing.T) (*httptest.Server, *sqlite.Store) {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	settings := leave.DefaultSettings()
	ledger := leave.NewLedger(store, settings, nil)
	manager := leave.NewManager(store, ledger, store, settings, nil)
	gen, err := docs.NewGenerator(t.TempDir())
	require.NoError(t, err)

	srv := httptest.NewServer(NewRouter(NewHandler(store, ledger, manager, gen)))
	t.Cleanup(srv.Close)
	return srv, store
}

func doJSON(t *testing.T, method, url string, body any, out any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp
}

func registerEmployee(t *testing.T, srv *httptest.Server, buckets map[int]string) EmployeeDTO {
	t.Helper()
	var emp EmployeeDTO
	resp := doJSON(t, http.MethodPost, srv.URL+"/api/employees", RegisterEmployeeRequest{
		RefCode:        "A-100",
		Name:           "Nadia Benali",
		InitialBuckets: buckets,
	}, &emp)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	return emp
}

func TestRegisterAndBalance(t *testing.T) {
	srv, _ := newTestServer(t)
	emp := registerEmployee(t, srv, map[int]string{2025: "22"})

	var balance BalanceDTO
	resp := doJSON(t, http.MethodGet, srv.URL+"/api/employees/"+emp.ID+"/balance", nil, &balance)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "22", balance.TotalActive)
	require.Len(t, balance.Buckets, 1)
	assert.Equal(t, 2025, balance.Buckets[0].Year)
}

func TestSubmitLeaveOverHTTP(t *testing.T) {
	srv, _ := newTestServer(t)
	emp := registerEmployee(t, srv, map[int]string{2025: "22"})

	var out SubmitLeaveResponse
	resp := doJSON(t, http.MethodPost, srv.URL+"/api/employees/"+emp.ID+"/leaves", SubmitLeaveRequest{
		Type:      "annual",
		StartDate: "2025-08-04",
		EndDate:   "2025-08-08",
	}, &out)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	require.NotNil(t, out.Leave)
	assert.Equal(t, "5", out.Leave.Days)

	var balance BalanceDTO
	doJSON(t, http.MethodGet, srv.URL+"/api/employees/"+emp.ID+"/balance", nil, &balance)
	assert.Equal(t, "17", balance.TotalActive)
}

func TestSubmitValidationErrors(t *testing.T) {
	srv, _ := newTestServer(t)
	emp := registerEmployee(t, srv, map[int]string{2025: "22"})

	// Bad date format
	resp := doJSON(t, http.MethodPost, srv.URL+"/api/employees/"+emp.ID+"/leaves", SubmitLeaveRequest{
		Type:      "annual",
		StartDate: "04/08/2025",
		EndDate:   "2025-08-08",
	}, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// Unknown type
	resp = doJSON(t, http.MethodPost, srv.URL+"/api/employees/"+emp.ID+"/leaves", SubmitLeaveRequest{
		Type:      "sabbatical",
		StartDate: "2025-08-04",
		EndDate:   "2025-08-08",
	}, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSubmitInsufficientBalanceIsConflict(t *testing.T) {
	srv, _ := newTestServer(t)
	emp := registerEmployee(t, srv, map[int]string{2025: "2"})

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/employees/"+emp.ID+"/leaves", SubmitLeaveRequest{
		Type:      "annual",
		StartDate: "2025-08-04",
		EndDate:   "2025-08-08",
	}, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestOverlapConfirmationFlow(t *testing.T) {
	srv, _ := newTestServer(t)
	emp := registerEmployee(t, srv, map[int]string{2025: "22"})
	leavesURL := srv.URL + "/api/employees/" + emp.ID + "/leaves"

	// Existing annual leave
	resp := doJSON(t, http.MethodPost, leavesURL, SubmitLeaveRequest{
		Type: "annual", StartDate: "2025-08-04", EndDate: "2025-08-15",
	}, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	// Overlapping sick leave without confirmation: 409 plus the overlaps
	var pending SubmitLeaveResponse
	resp = doJSON(t, http.MethodPost, leavesURL, SubmitLeaveRequest{
		Type: "sick", StartDate: "2025-08-06", EndDate: "2025-08-07",
	}, &pending)
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.True(t, pending.RequiresConfirmation)
	require.Len(t, pending.Overlaps, 1)

	// Resubmit confirmed: the span is split around the sick leave
	var confirmed SubmitLeaveResponse
	resp = doJSON(t, http.MethodPost, leavesURL, SubmitLeaveRequest{
		Type: "sick", StartDate: "2025-08-06", EndDate: "2025-08-07",
		ConfirmReplace: true,
	}, &confirmed)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	require.NotNil(t, confirmed.Leave)

	var records []LeaveDTO
	doJSON(t, http.MethodGet, leavesURL, nil, &records)
	assert.Len(t, records, 3)
}

func TestFixedDurationFillsEndDate(t *testing.T) {
	srv, _ := newTestServer(t)
	emp := registerEmployee(t, srv, map[int]string{2025: "22"})

	var out SubmitLeaveResponse
	resp := doJSON(t, http.MethodPost, srv.URL+"/api/employees/"+emp.ID+"/leaves", SubmitLeaveRequest{
		Type:      "paternity",
		StartDate: "2025-08-01",
	}, &out)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	require.NotNil(t, out.Leave)
	assert.Equal(t, "2025-08-15", out.Leave.EndDate)
	assert.Equal(t, "15", out.Leave.Days)
}

func TestDeleteLeaveRestoresBalance(t *testing.T) {
	srv, _ := newTestServer(t)
	emp := registerEmployee(t, srv, map[int]string{2025: "22"})

	var out SubmitLeaveResponse
	doJSON(t, http.MethodPost, srv.URL+"/api/employees/"+emp.ID+"/leaves", SubmitLeaveRequest{
		Type: "annual", StartDate: "2025-08-04", EndDate: "2025-08-08",
	}, &out)
	require.NotNil(t, out.Leave)

	resp := doJSON(t, http.MethodDelete, srv.URL+"/api/leaves/"+out.Leave.ID, nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var balance BalanceDTO
	doJSON(t, http.MethodGet, srv.URL+"/api/employees/"+emp.ID+"/balance", nil, &balance)
	assert.Equal(t, "22", balance.TotalActive)
}

func TestHolidayEndpoints(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/holidays", HolidayDTO{
		Date: "2025-08-06", Name: "Founding Day",
	}, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var list []HolidayDTO
	resp = doJSON(t, http.MethodGet, srv.URL+"/api/holidays?year=2025", nil, &list)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, list, 1)
	assert.Equal(t, "Founding Day", list[0].Name)

	resp = doJSON(t, http.MethodDelete, srv.URL+"/api/holidays/2025-08-06", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = doJSON(t, http.MethodDelete, srv.URL+"/api/holidays/2025-08-06", nil, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRolloverEndpoint(t *testing.T) {
	srv, store := newTestServer(t)
	require.NoError(t, store.SetExerciseYear(context.Background(), 2025))
	emp := registerEmployee(t, srv, nil) // seeds the 2025 default bucket

	var out RolloverResponse
	resp := doJSON(t, http.MethodPost, srv.URL+"/api/admin/rollover", nil, &out)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 2026, out.Year)

	var balance BalanceDTO
	doJSON(t, http.MethodGet, srv.URL+"/api/employees/"+emp.ID+"/balance", nil, &balance)
	assert.Equal(t, "44", balance.TotalActive) // 2025 + fresh 2026 bucket
}

func TestUnknownEmployeeIs404(t *testing.T) {
	srv, _ := newTestServer(t)
	resp := doJSON(t, http.MethodGet, srv.URL+"/api/employees/ghost/balance", nil, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
