/*
Package sqlite provides the SQLite-backed implementation of the leave store.

PURPOSE:
  Implements leave.Store and leave.TxStore plus the holiday provider and the
  custom-holiday administration surface. The engine assumes a single writer
  owning the database file, so a mutex serializes transactions on the one
  connection and SQLite's own isolation does the rest.

KEY TABLES:
  employees:       employee identity (unique external reference code)
  balance_buckets: one row per employee per fiscal year, amount + status
  leave_records:   active/cancelled leave entries
  certificates:    supporting-document references for sick leave
  custom_holidays: administrator-entered non-working dates
  system_config:   single-row values, notably the fiscal exercise year

TRANSACTIONS:
  WithTx hands the callback a store bound to one *sql.Tx; reads inside the
  callback see the transaction's own writes, which the ledger relies on when
  a credit is followed by a debit in the same submission. On error the
  transaction is rolled back before the error is returned unchanged.

AMOUNTS AND DATES:
  Bucket amounts and day counts are stored as decimal strings, never floats.
  Dates are stored as YYYY-MM-DD.

WAL MODE:
  The database is opened with WAL and foreign keys enabled. Employee
  deletion cascades to buckets, leave records and certificates.

USAGE:
  store, err := sqlite.New("./data/leave.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/atlas-hr/leave-engine/calendar"
	"github.com/atlas-hr/leave-engine/leave"
)

const dateLayout = "2006-01-02"

// Store implements leave.TxStore over SQLite.
type Store struct {
	conn
	db *sql.DB
	mu sync.Mutex
}

// New opens (and migrates) the database at path. Use ":memory:" for tests.
func New(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &Store{conn: conn{db: db}, db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS employees (
		id TEXT PRIMARY KEY,
		ref_code TEXT UNIQUE NOT NULL,
		name TEXT NOT NULL,
		grade TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS balance_buckets (
		id TEXT PRIMARY KEY,
		employee_id TEXT NOT NULL REFERENCES employees(id) ON DELETE CASCADE,
		year INTEGER NOT NULL,
		amount TEXT NOT NULL,
		status TEXT NOT NULL,
		UNIQUE(employee_id, year)
	);

	CREATE INDEX IF NOT EXISTS idx_buckets_employee
		ON balance_buckets(employee_id, year);
	CREATE INDEX IF NOT EXISTS idx_buckets_status
		ON balance_buckets(status);

	CREATE TABLE IF NOT EXISTS leave_records (
		id TEXT PRIMARY KEY,
		employee_id TEXT NOT NULL REFERENCES employees(id) ON DELETE CASCADE,
		leave_type TEXT NOT NULL,
		start_date TEXT NOT NULL,
		end_date TEXT NOT NULL,
		days TEXT NOT NULL,
		justification TEXT,
		substitute_id TEXT,
		status TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	-- Overlap detection hot path: employee + active range scan
	CREATE INDEX IF NOT EXISTS idx_leaves_employee_range
		ON leave_records(employee_id, start_date, end_date);
	CREATE INDEX IF NOT EXISTS idx_leaves_status
		ON leave_records(status);

	CREATE TABLE IF NOT EXISTS certificates (
		leave_id TEXT PRIMARY KEY REFERENCES leave_records(id) ON DELETE CASCADE,
		file_path TEXT NOT NULL,
		attached_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS custom_holidays (
		date TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS system_config (
		config_key TEXT PRIMARY KEY NOT NULL,
		config_value TEXT NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// TRANSACTION BOUNDARY (leave.TxStore)
// =============================================================================

// WithTx executes fn within a database transaction. Single writer: the
// mutex guarantees one active transaction at a time.
func (s *Store) WithTx(ctx context.Context, fn func(leave.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&conn{db: tx}); err != nil {
		return err
	}
	return tx.Commit()
}

// dbtx is the subset of *sql.DB and *sql.Tx the queries need.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// conn implements leave.Store against either the raw connection or an open
// transaction.
type conn struct {
	db dbtx
}

// =============================================================================
// EMPLOYEES
// =============================================================================

func (c *conn) CreateEmployee(ctx context.Context, e *leave.Employee) error {
	_, err := c.db.ExecContext(ctx,
		`INSERT INTO employees (id, ref_code, name, grade, created_at) VALUES (?, ?, ?, ?, ?)`,
		e.ID, e.RefCode, e.Name, e.Grade, time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to create employee: %w", err)
	}
	return nil
}

func (c *conn) UpdateEmployee(ctx context.Context, e *leave.Employee) error {
	res, err := c.db.ExecContext(ctx,
		`UPDATE employees SET ref_code = ?, name = ?, grade = ? WHERE id = ?`,
		e.RefCode, e.Name, e.Grade, e.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update employee: %w", err)
	}
	return requireRow(res, "employee", e.ID)
}

func (c *conn) DeleteEmployee(ctx context.Context, id string) error {
	res, err := c.db.ExecContext(ctx, `DELETE FROM employees WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete employee: %w", err)
	}
	return requireRow(res, "employee", id)
}

func (c *conn) GetEmployee(ctx context.Context, id string) (*leave.Employee, error) {
	var e leave.Employee
	err := c.db.QueryRowContext(ctx,
		`SELECT id, ref_code, name, grade FROM employees WHERE id = ?`, id,
	).Scan(&e.ID, &e.RefCode, &e.Name, &e.Grade)
	if err == sql.ErrNoRows {
		return nil, &leave.NotFoundError{Kind: "employee", ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load employee: %w", err)
	}

	rows, err := c.db.QueryContext(ctx,
		`SELECT id, employee_id, year, amount, status FROM balance_buckets WHERE employee_id = ? ORDER BY year`,
		id,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load buckets: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		b, err := scanBucket(rows)
		if err != nil {
			return nil, err
		}
		e.Buckets = append(e.Buckets, b)
	}
	return &e, rows.Err()
}

func (c *conn) ListEmployees(ctx context.Context) ([]*leave.Employee, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT id, ref_code, name, grade FROM employees ORDER BY name`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list employees: %w", err)
	}
	defer rows.Close()

	var out []*leave.Employee
	for rows.Next() {
		var e leave.Employee
		if err := rows.Scan(&e.ID, &e.RefCode, &e.Name, &e.Grade); err != nil {
			return nil, err
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}

// =============================================================================
// BALANCE BUCKETS
// =============================================================================

func (c *conn) CreateBucket(ctx context.Context, b *leave.BalanceBucket) error {
	_, err := c.db.ExecContext(ctx,
		`INSERT INTO balance_buckets (id, employee_id, year, amount, status) VALUES (?, ?, ?, ?, ?)`,
		b.ID, b.EmployeeID, b.Year, b.Amount.String(), string(b.Status),
	)
	if err != nil {
		return fmt.Errorf("failed to create bucket: %w", err)
	}
	return nil
}

func (c *conn) UpdateBucketAmount(ctx context.Context, bucketID string, amount decimal.Decimal) error {
	res, err := c.db.ExecContext(ctx,
		`UPDATE balance_buckets SET amount = ? WHERE id = ?`,
		amount.String(), bucketID,
	)
	if err != nil {
		return fmt.Errorf("failed to update bucket: %w", err)
	}
	return requireRow(res, "bucket", bucketID)
}

// SetBucketStatus updates the bucket for (employee, year) when it exists.
// A missing bucket is not an error: rollover expires (year - 2) for every
// employee whether or not such a bucket was ever created.
func (c *conn) SetBucketStatus(ctx context.Context, employeeID string, year int, status leave.BucketStatus) error {
	_, err := c.db.ExecContext(ctx,
		`UPDATE balance_buckets SET status = ? WHERE employee_id = ? AND year = ?`,
		string(status), employeeID, year,
	)
	if err != nil {
		return fmt.Errorf("failed to set bucket status: %w", err)
	}
	return nil
}

func (c *conn) ZeroBuckets(ctx context.Context, bucketIDs []string) error {
	if len(bucketIDs) == 0 {
		return nil
	}
	query := `UPDATE balance_buckets SET amount = '0' WHERE id IN (?` +
		repeat(",?", len(bucketIDs)-1) + `)`
	args := make([]any, len(bucketIDs))
	for i, id := range bucketIDs {
		args[i] = id
	}
	if _, err := c.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to zero buckets: %w", err)
	}
	return nil
}

// ListBucketsByStatus returns buckets in the given status that still hold
// days, joined with the owning employee for reporting.
func (c *conn) ListBucketsByStatus(ctx context.Context, status leave.BucketStatus) ([]leave.BucketSummary, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT b.id, b.employee_id, e.name, b.year, b.amount
		FROM balance_buckets b
		JOIN employees e ON b.employee_id = e.id
		WHERE b.status = ? AND CAST(b.amount AS REAL) > 0
		ORDER BY e.name, b.year`,
		string(status),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list buckets: %w", err)
	}
	defer rows.Close()

	var out []leave.BucketSummary
	for rows.Next() {
		var s leave.BucketSummary
		var amount string
		if err := rows.Scan(&s.BucketID, &s.EmployeeID, &s.EmployeeName, &s.Year, &amount); err != nil {
			return nil, err
		}
		s.Amount = mustDecimal(amount)
		out = append(out, s)
	}
	return out, rows.Err()
}

// =============================================================================
// LEAVE RECORDS
// =============================================================================

const leaveColumns = `id, employee_id, leave_type, start_date, end_date, days, justification, substitute_id, status`

func (c *conn) InsertLeave(ctx context.Context, rec *leave.LeaveRecord) error {
	_, err := c.db.ExecContext(ctx,
		`INSERT INTO leave_records (`+leaveColumns+`, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.EmployeeID, string(rec.Type),
		rec.Start.Format(dateLayout), rec.End.Format(dateLayout),
		rec.Days.String(), nullString(rec.Justification), nullString(rec.SubstituteID),
		string(rec.Status), time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to insert leave record: %w", err)
	}
	return nil
}

func (c *conn) DeleteLeave(ctx context.Context, id string) error {
	res, err := c.db.ExecContext(ctx, `DELETE FROM leave_records WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete leave record: %w", err)
	}
	return requireRow(res, "leave", id)
}

func (c *conn) GetLeave(ctx context.Context, id string) (*leave.LeaveRecord, error) {
	row := c.db.QueryRowContext(ctx,
		`SELECT `+leaveColumns+` FROM leave_records WHERE id = ?`, id,
	)
	rec, err := scanLeave(row)
	if err == sql.ErrNoRows {
		return nil, &leave.NotFoundError{Kind: "leave", ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load leave record: %w", err)
	}
	return rec, nil
}

// ListLeaves returns records for one employee, or every record when
// employeeID is empty, most recent start date first.
func (c *conn) ListLeaves(ctx context.Context, employeeID string) ([]*leave.LeaveRecord, error) {
	query := `SELECT ` + leaveColumns + ` FROM leave_records`
	var args []any
	if employeeID != "" {
		query += ` WHERE employee_id = ?`
		args = append(args, employeeID)
	}
	query += ` ORDER BY start_date DESC`
	return c.queryLeaves(ctx, query, args...)
}

// OverlappingLeaves returns Active records whose inclusive range intersects
// [start, end], optionally excluding one record id (the record being
// replaced during a modification).
func (c *conn) OverlappingLeaves(ctx context.Context, employeeID string, start, end time.Time, excludeID string) ([]*leave.LeaveRecord, error) {
	query := `SELECT ` + leaveColumns + ` FROM leave_records
		WHERE employee_id = ? AND end_date >= ? AND start_date <= ? AND status = ?`
	args := []any{employeeID, start.Format(dateLayout), end.Format(dateLayout), string(leave.RecordActive)}
	if excludeID != "" {
		query += ` AND id != ?`
		args = append(args, excludeID)
	}
	return c.queryLeaves(ctx, query, args...)
}

// OnLeave returns the Active records covering the given day.
func (c *conn) OnLeave(ctx context.Context, day time.Time) ([]*leave.LeaveRecord, error) {
	d := calendar.Normalize(day).Format(dateLayout)
	return c.queryLeaves(ctx,
		`SELECT `+leaveColumns+` FROM leave_records
		WHERE status = ? AND start_date <= ? AND end_date >= ?
		ORDER BY employee_id`,
		string(leave.RecordActive), d, d,
	)
}

func (c *conn) queryLeaves(ctx context.Context, query string, args ...any) ([]*leave.LeaveRecord, error) {
	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query leave records: %w", err)
	}
	defer rows.Close()

	var out []*leave.LeaveRecord
	for rows.Next() {
		rec, err := scanLeave(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// =============================================================================
// FISCAL EXERCISE YEAR
// =============================================================================

// ExerciseYear reads the persistent year pointer, initializing it to the
// current calendar year on first access.
func (c *conn) ExerciseYear(ctx context.Context) (int, error) {
	var value string
	err := c.db.QueryRowContext(ctx,
		`SELECT config_value FROM system_config WHERE config_key = 'exercise_year'`,
	).Scan(&value)
	if err == sql.ErrNoRows {
		year := time.Now().Year()
		if err := c.SetExerciseYear(ctx, year); err != nil {
			return 0, err
		}
		return year, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read exercise year: %w", err)
	}
	var year int
	if _, err := fmt.Sscanf(value, "%d", &year); err != nil {
		return 0, fmt.Errorf("corrupt exercise year %q: %w", value, err)
	}
	return year, nil
}

func (c *conn) SetExerciseYear(ctx context.Context, year int) error {
	_, err := c.db.ExecContext(ctx,
		`REPLACE INTO system_config (config_key, config_value) VALUES ('exercise_year', ?)`,
		fmt.Sprintf("%d", year),
	)
	if err != nil {
		return fmt.Errorf("failed to set exercise year: %w", err)
	}
	return nil
}

// =============================================================================
// CERTIFICATES
// =============================================================================

// AttachCertificate records (or replaces) the document reference for a
// leave record.
func (c *conn) AttachCertificate(ctx context.Context, leaveID, path string) error {
	_, err := c.db.ExecContext(ctx,
		`REPLACE INTO certificates (leave_id, file_path, attached_at) VALUES (?, ?, ?)`,
		leaveID, path, time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to attach certificate: %w", err)
	}
	return nil
}

func (c *conn) CertificatePath(ctx context.Context, leaveID string) (string, error) {
	var path string
	err := c.db.QueryRowContext(ctx,
		`SELECT file_path FROM certificates WHERE leave_id = ?`, leaveID,
	).Scan(&path)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to load certificate: %w", err)
	}
	return path, nil
}

// SickLeavesMissingCertificate lists Active sick-leave records with no
// attached document, for the reconciliation report.
func (c *conn) SickLeavesMissingCertificate(ctx context.Context) ([]*leave.LeaveRecord, error) {
	return c.queryLeaves(ctx, `
		SELECT l.id, l.employee_id, l.leave_type, l.start_date, l.end_date, l.days,
		       l.justification, l.substitute_id, l.status
		FROM leave_records l
		LEFT JOIN certificates c ON l.id = c.leave_id
		WHERE l.leave_type = ? AND l.status = ? AND c.leave_id IS NULL
		ORDER BY l.start_date DESC`,
		string(leave.TypeSick), string(leave.RecordActive),
	)
}

// =============================================================================
// CUSTOM HOLIDAYS + HOLIDAY PROVIDER
// =============================================================================

// AddHoliday inserts or replaces a custom non-working date.
func (c *conn) AddHoliday(ctx context.Context, date time.Time, name string) error {
	_, err := c.db.ExecContext(ctx,
		`REPLACE INTO custom_holidays (date, name, created_at) VALUES (?, ?, ?)`,
		calendar.Normalize(date).Format(dateLayout), name, time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to add holiday: %w", err)
	}
	return nil
}

// DeleteHoliday removes a custom non-working date.
func (c *conn) DeleteHoliday(ctx context.Context, date time.Time) error {
	res, err := c.db.ExecContext(ctx,
		`DELETE FROM custom_holidays WHERE date = ?`,
		calendar.Normalize(date).Format(dateLayout),
	)
	if err != nil {
		return fmt.Errorf("failed to delete holiday: %w", err)
	}
	return requireRow(res, "holiday", calendar.Normalize(date).Format(dateLayout))
}

// Holiday is a custom non-working date.
type Holiday struct {
	Date time.Time `json:"date"`
	Name string    `json:"name"`
}

// ListHolidays returns the custom holidays for one year, ordered by date.
func (c *conn) ListHolidays(ctx context.Context, year int) ([]Holiday, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT date, name FROM custom_holidays WHERE date >= ? AND date <= ? ORDER BY date`,
		fmt.Sprintf("%d-01-01", year), fmt.Sprintf("%d-12-31", year),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list holidays: %w", err)
	}
	defer rows.Close()

	var out []Holiday
	for rows.Next() {
		var h Holiday
		var dateStr string
		if err := rows.Scan(&dateStr, &h.Name); err != nil {
			return nil, err
		}
		h.Date, err = time.ParseInLocation(dateLayout, dateStr, time.UTC)
		if err != nil {
			return nil, fmt.Errorf("corrupt holiday date %q: %w", dateStr, err)
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

// NonWorkingDates implements leave.HolidayProvider from the custom-holiday
// table.
func (c *conn) NonWorkingDates(ctx context.Context, startYear, endYear int) (calendar.DateSet, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT date FROM custom_holidays WHERE date >= ? AND date <= ?`,
		fmt.Sprintf("%d-01-01", startYear), fmt.Sprintf("%d-12-31", endYear),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load holidays: %w", err)
	}
	defer rows.Close()

	set := calendar.DateSet{}
	for rows.Next() {
		var dateStr string
		if err := rows.Scan(&dateStr); err != nil {
			return nil, err
		}
		d, err := time.ParseInLocation(dateLayout, dateStr, time.UTC)
		if err != nil {
			return nil, fmt.Errorf("corrupt holiday date %q: %w", dateStr, err)
		}
		set.Add(d)
	}
	return set, rows.Err()
}

// =============================================================================
// SCAN HELPERS
// =============================================================================

type scanner interface {
	Scan(dest ...any) error
}

func scanBucket(row scanner) (leave.BalanceBucket, error) {
	var b leave.BalanceBucket
	var amount, status string
	if err := row.Scan(&b.ID, &b.EmployeeID, &b.Year, &amount, &status); err != nil {
		return b, fmt.Errorf("failed to scan bucket: %w", err)
	}
	b.Amount = mustDecimal(amount)
	st, ok := leave.ParseBucketStatus(status)
	if !ok {
		return b, fmt.Errorf("corrupt bucket status %q", status)
	}
	b.Status = st
	return b, nil
}

func scanLeave(row scanner) (*leave.LeaveRecord, error) {
	var rec leave.LeaveRecord
	var leaveType, startStr, endStr, days, status string
	var justification, substitute sql.NullString

	err := row.Scan(&rec.ID, &rec.EmployeeID, &leaveType, &startStr, &endStr,
		&days, &justification, &substitute, &status)
	if err != nil {
		return nil, err
	}

	rec.Type = leave.LeaveType(leaveType)
	rec.Start, err = time.ParseInLocation(dateLayout, startStr, time.UTC)
	if err != nil {
		return nil, fmt.Errorf("corrupt start date %q: %w", startStr, err)
	}
	rec.End, err = time.ParseInLocation(dateLayout, endStr, time.UTC)
	if err != nil {
		return nil, fmt.Errorf("corrupt end date %q: %w", endStr, err)
	}
	rec.Days = mustDecimal(days)
	rec.Justification = justification.String
	rec.SubstituteID = substitute.String
	st, ok := leave.ParseRecordStatus(status)
	if !ok {
		return nil, fmt.Errorf("corrupt leave status %q", status)
	}
	rec.Status = st
	return &rec, nil
}

func requireRow(res sql.Result, kind, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return &leave.NotFoundError{Kind: kind, ID: id}
	}
	return nil
}

func mustDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		slog.Error("corrupt decimal in database, using zero", "value", s, "error", err)
		return decimal.Zero
	}
	return d
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func repeat(s string, n int) string {
	out := ""
	for i := 0; i < n; i++ {
		out += s
	}
	return out
}
