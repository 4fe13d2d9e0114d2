/*
Package sqlite provides a SQLite-backed implementation of generic.TxStore.

PURPOSE:
  Persists everything the leave workflow reads and writes: employee
  profiles, leave types, work schedules, holidays, leave requests, balance
  rows and the audit log. In production the same patterns apply to
  PostgreSQL with only minor dialect differences.

INTERFACES IMPLEMENTED:
  generic.TxStore: Store.WithTx hands out a generic.Store bound to a *sql.Tx

KEY TABLES:
  employees:       Profile slice used by the workflow (manager, schedule, team)
  leave_types:     Allowance and cadence per leave type
  work_schedules:  Weekday flags; at most one row has is_default = 1
  holidays:        Scoped non-working days
  leave_requests:  One row per request, versioned
  leave_balances:  One row per (employee, leave type, year, month), versioned
  audit_log:       Append-only transition history

INDEXES:
  - idx_single_default_schedule: Partial unique index enforcing one default
  - idx_balances_key: Unique balance key (month = 0 for annual rows)
  - idx_requests_employee_dates: Overlap checks and bypass lookups
  - idx_audit_request: Audit trail by request

CONCURRENCY:
  The pool is capped at one connection, so units of work are serialized
  by database/sql itself. Versioned rows are written with
  "WHERE version = ?" and a zero row count becomes
  generic.ErrConcurrentModification.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) and a busy timeout so a
  second process reading the file does not trip SQLITE_BUSY right away.

USAGE:
  store, err := sqlite.New("./data/leave.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  svc, err := leave.NewService(store)

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - generic/store.go: Interface definitions and conventions
  - generic/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/warp/leave-engine/generic"
)

// Store implements generic.TxStore using SQLite.
type Store struct {
	db *sql.DB
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection serializes units of work and keeps ":memory:" a
	// single database.
	db.SetMaxOpenConns(1)

	store := NewWithDB(db)
	if err := store.migrate(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// NewWithDB wraps an already opened database without migrating it.
func NewWithDB(db *sql.DB) *Store {
	return &Store{db: db}
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping reports whether the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// migrate creates the database schema.
func (s *Store) migrate(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS employees (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL DEFAULT '',
		position TEXT NOT NULL DEFAULT '',
		start_date TEXT NOT NULL DEFAULT '',
		manager_id TEXT,
		work_schedule_id TEXT,
		team_id TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_employees_manager
		ON employees(manager_id) WHERE manager_id IS NOT NULL;

	CREATE TABLE IF NOT EXISTS leave_types (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		default_allowance TEXT NOT NULL,
		cadence TEXT NOT NULL CHECK (cadence IN ('ANNUAL', 'MONTHLY')),
		unit TEXT NOT NULL DEFAULT 'days'
	);

	CREATE TABLE IF NOT EXISTS work_schedules (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		is_default INTEGER NOT NULL DEFAULT 0,
		monday INTEGER NOT NULL DEFAULT 0,
		tuesday INTEGER NOT NULL DEFAULT 0,
		wednesday INTEGER NOT NULL DEFAULT 0,
		thursday INTEGER NOT NULL DEFAULT 0,
		friday INTEGER NOT NULL DEFAULT 0,
		saturday INTEGER NOT NULL DEFAULT 0,
		sunday INTEGER NOT NULL DEFAULT 0
	);

	-- At most one default schedule
	CREATE UNIQUE INDEX IF NOT EXISTS idx_single_default_schedule
		ON work_schedules(is_default) WHERE is_default = 1;

	CREATE TABLE IF NOT EXISTS holidays (
		id TEXT PRIMARY KEY,
		date TEXT NOT NULL,
		name TEXT NOT NULL,
		scope TEXT NOT NULL CHECK (scope IN ('ORGANIZATION', 'TEAM', 'EMPLOYEE')),
		team_id TEXT,
		employee_id TEXT,
		repeat_weekly INTEGER NOT NULL DEFAULT 0,
		locked INTEGER NOT NULL DEFAULT 0,
		created_by TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_holidays_date ON holidays(date);

	CREATE TABLE IF NOT EXISTS leave_requests (
		id TEXT PRIMARY KEY,
		employee_id TEXT NOT NULL,
		leave_type_id TEXT NOT NULL,
		start_date TEXT NOT NULL,
		end_date TEXT NOT NULL,
		status TEXT NOT NULL,
		denial_reason TEXT,
		skip_reason TEXT,
		cancellation_reason TEXT,
		status_before_cancellation TEXT,
		manager_approved_by TEXT,
		manager_approved_at TEXT,
		admin_approved_by TEXT,
		admin_approved_at TEXT,
		denied_by TEXT,
		denied_at TEXT,
		cancelled_by TEXT,
		cancelled_at TEXT,
		requested_days INTEGER NOT NULL DEFAULT 0,
		deducted_days TEXT NOT NULL DEFAULT '0',
		version INTEGER NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_requests_employee_dates
		ON leave_requests(employee_id, start_date, end_date);
	CREATE INDEX IF NOT EXISTS idx_requests_status
		ON leave_requests(status);

	-- month = 0 marks an annual row so the unique key never sees NULL
	CREATE TABLE IF NOT EXISTS leave_balances (
		id TEXT PRIMARY KEY,
		employee_id TEXT NOT NULL,
		leave_type_id TEXT NOT NULL,
		year INTEGER NOT NULL,
		month INTEGER NOT NULL DEFAULT 0,
		total TEXT NOT NULL,
		remaining TEXT NOT NULL,
		is_manual_override INTEGER NOT NULL DEFAULT 0,
		version INTEGER NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_balances_key
		ON leave_balances(employee_id, leave_type_id, year, month);
	CREATE INDEX IF NOT EXISTS idx_balances_bulk
		ON leave_balances(leave_type_id, year);

	-- Append-only: no UPDATE or DELETE is ever issued against this table
	CREATE TABLE IF NOT EXISTS audit_log (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		request_id TEXT NOT NULL REFERENCES leave_requests(id),
		action TEXT NOT NULL,
		previous_status TEXT,
		new_status TEXT NOT NULL,
		actor_id TEXT NOT NULL,
		reason TEXT,
		at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_audit_request ON audit_log(request_id, seq);
	`

	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// =============================================================================
// TRANSACTIONAL STORE (generic.TxStore interface)
// =============================================================================

// WithTx executes fn within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(store generic.Store) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&queries{db: sqlTx}); err != nil {
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// execer is satisfied by both *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// queries implements generic.Store over an execer.
type queries struct {
	db execer
}

var _ generic.Store = (*queries)(nil)

type scanner interface {
	Scan(dest ...any) error
}

// =============================================================================
// EMPLOYEES
// =============================================================================

const employeeColumns = `id, name, position, start_date, manager_id, work_schedule_id, team_id`

func (q *queries) GetEmployee(ctx context.Context, id generic.EmployeeID) (*generic.EmployeeProfile, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+employeeColumns+` FROM employees WHERE id = ?`, id)
	emp, err := scanEmployee(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &emp, nil
}

func (q *queries) SaveEmployee(ctx context.Context, emp generic.EmployeeProfile) error {
	query := `
		INSERT INTO employees (` + employeeColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			position = excluded.position,
			start_date = excluded.start_date,
			manager_id = excluded.manager_id,
			work_schedule_id = excluded.work_schedule_id,
			team_id = excluded.team_id
	`
	_, err := q.db.ExecContext(ctx, query,
		emp.ID,
		emp.Name,
		emp.Position,
		formatDate(emp.StartDate),
		nullString(string(emp.ManagerID)),
		nullString(string(emp.WorkScheduleID)),
		nullString(emp.TeamID),
	)
	if err != nil {
		return fmt.Errorf("failed to save employee: %w", err)
	}
	return nil
}

func (q *queries) ListReports(ctx context.Context, managerID generic.EmployeeID) ([]generic.EmployeeProfile, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT `+employeeColumns+` FROM employees WHERE manager_id = ? ORDER BY id`, managerID)
	if err != nil {
		return nil, fmt.Errorf("failed to query reports: %w", err)
	}
	defer rows.Close()

	var reports []generic.EmployeeProfile
	for rows.Next() {
		emp, err := scanEmployee(rows)
		if err != nil {
			return nil, err
		}
		reports = append(reports, emp)
	}
	return reports, rows.Err()
}

func scanEmployee(row scanner) (generic.EmployeeProfile, error) {
	var (
		emp                         generic.EmployeeProfile
		startDate                   string
		managerID, scheduleID, team sql.NullString
	)
	if err := row.Scan(&emp.ID, &emp.Name, &emp.Position, &startDate, &managerID, &scheduleID, &team); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return emp, err
		}
		return emp, fmt.Errorf("failed to scan employee: %w", err)
	}
	var err error
	if emp.StartDate, err = parseDate(startDate); err != nil {
		return emp, err
	}
	emp.ManagerID = generic.EmployeeID(managerID.String)
	emp.WorkScheduleID = generic.ScheduleID(scheduleID.String)
	emp.TeamID = team.String
	return emp, nil
}

// =============================================================================
// LEAVE TYPES
// =============================================================================

const leaveTypeColumns = `id, name, default_allowance, cadence, unit`

func (q *queries) GetLeaveType(ctx context.Context, id generic.LeaveTypeID) (*generic.LeaveType, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+leaveTypeColumns+` FROM leave_types WHERE id = ?`, id)
	lt, err := scanLeaveType(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &lt, nil
}

func (q *queries) ListLeaveTypes(ctx context.Context) ([]generic.LeaveType, error) {
	rows, err := q.db.QueryContext(ctx, `SELECT `+leaveTypeColumns+` FROM leave_types ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query leave types: %w", err)
	}
	defer rows.Close()

	var types []generic.LeaveType
	for rows.Next() {
		lt, err := scanLeaveType(rows)
		if err != nil {
			return nil, err
		}
		types = append(types, lt)
	}
	return types, rows.Err()
}

func (q *queries) SaveLeaveType(ctx context.Context, lt generic.LeaveType) error {
	query := `
		INSERT INTO leave_types (` + leaveTypeColumns + `)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			default_allowance = excluded.default_allowance,
			cadence = excluded.cadence,
			unit = excluded.unit
	`
	unit := lt.Unit
	if unit == "" {
		unit = generic.UnitDays
	}
	_, err := q.db.ExecContext(ctx, query, lt.ID, lt.Name, lt.DefaultAllowance.String(), lt.Cadence, unit)
	if err != nil {
		return fmt.Errorf("failed to save leave type: %w", err)
	}
	return nil
}

func scanLeaveType(row scanner) (generic.LeaveType, error) {
	var lt generic.LeaveType
	if err := row.Scan(&lt.ID, &lt.Name, &lt.DefaultAllowance, &lt.Cadence, &lt.Unit); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return lt, err
		}
		return lt, fmt.Errorf("failed to scan leave type: %w", err)
	}
	return lt, nil
}

// =============================================================================
// WORK SCHEDULES
// =============================================================================

const scheduleColumns = `id, name, is_default, monday, tuesday, wednesday, thursday, friday, saturday, sunday`

func (q *queries) GetWorkSchedule(ctx context.Context, id generic.ScheduleID) (*generic.WorkSchedule, error) {
	return q.getSchedule(ctx, `SELECT `+scheduleColumns+` FROM work_schedules WHERE id = ?`, id)
}

func (q *queries) GetDefaultWorkSchedule(ctx context.Context) (*generic.WorkSchedule, error) {
	return q.getSchedule(ctx, `SELECT `+scheduleColumns+` FROM work_schedules WHERE is_default = 1 LIMIT 1`)
}

func (q *queries) getSchedule(ctx context.Context, query string, args ...any) (*generic.WorkSchedule, error) {
	var ws generic.WorkSchedule
	err := q.db.QueryRowContext(ctx, query, args...).Scan(
		&ws.ID, &ws.Name, &ws.IsDefault,
		&ws.Monday, &ws.Tuesday, &ws.Wednesday, &ws.Thursday, &ws.Friday, &ws.Saturday, &ws.Sunday,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan work schedule: %w", err)
	}
	return &ws, nil
}

func (q *queries) SaveWorkSchedule(ctx context.Context, ws generic.WorkSchedule) error {
	query := `
		INSERT INTO work_schedules (` + scheduleColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			is_default = excluded.is_default,
			monday = excluded.monday,
			tuesday = excluded.tuesday,
			wednesday = excluded.wednesday,
			thursday = excluded.thursday,
			friday = excluded.friday,
			saturday = excluded.saturday,
			sunday = excluded.sunday
	`
	_, err := q.db.ExecContext(ctx, query,
		ws.ID, ws.Name, ws.IsDefault,
		ws.Monday, ws.Tuesday, ws.Wednesday, ws.Thursday, ws.Friday, ws.Saturday, ws.Sunday,
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return fmt.Errorf("save schedule %s: %w", ws.ID, generic.ErrDefaultScheduleExists)
		}
		return fmt.Errorf("failed to save work schedule: %w", err)
	}
	return nil
}

// =============================================================================
// HOLIDAYS
// =============================================================================

const holidayColumns = `id, date, name, scope, team_id, employee_id, repeat_weekly, locked, created_by`

func (q *queries) GetHoliday(ctx context.Context, id generic.HolidayID) (*generic.Holiday, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+holidayColumns+` FROM holidays WHERE id = ?`, id)
	h, err := scanHoliday(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &h, nil
}

// ListHolidays mirrors generic.HolidayFilter.Matches in SQL.
func (q *queries) ListHolidays(ctx context.Context, filter generic.HolidayFilter) ([]generic.Holiday, error) {
	var (
		where []string
		args  []any
	)

	if emp := filter.Employee; emp != nil {
		where = append(where, `(scope = 'ORGANIZATION'
			OR (scope = 'TEAM' AND team_id = ?)
			OR (scope = 'EMPLOYEE' AND employee_id = ?))`)
		args = append(args, nullString(emp.TeamID), string(emp.ID))
	}

	oneOff := []string{"repeat_weekly = 0"}
	weekly := []string{"repeat_weekly = 1"}
	if !filter.From.IsZero() {
		oneOff = append(oneOff, "date >= ?")
	}
	if !filter.To.IsZero() {
		oneOff = append(oneOff, "date <= ?")
		weekly = append(weekly, "date <= ?")
	}
	where = append(where, "(("+strings.Join(oneOff, " AND ")+") OR ("+strings.Join(weekly, " AND ")+"))")
	if !filter.From.IsZero() {
		args = append(args, formatDate(filter.From))
	}
	if !filter.To.IsZero() {
		args = append(args, formatDate(filter.To), formatDate(filter.To))
	}

	query := `SELECT ` + holidayColumns + ` FROM holidays WHERE ` + strings.Join(where, " AND ") + ` ORDER BY date, id`
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query holidays: %w", err)
	}
	defer rows.Close()

	var holidays []generic.Holiday
	for rows.Next() {
		h, err := scanHoliday(rows)
		if err != nil {
			return nil, err
		}
		holidays = append(holidays, h)
	}
	return holidays, rows.Err()
}

func (q *queries) SaveHoliday(ctx context.Context, h generic.Holiday) error {
	query := `
		INSERT INTO holidays (` + holidayColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			date = excluded.date,
			name = excluded.name,
			scope = excluded.scope,
			team_id = excluded.team_id,
			employee_id = excluded.employee_id,
			repeat_weekly = excluded.repeat_weekly,
			locked = excluded.locked,
			created_by = excluded.created_by
	`
	_, err := q.db.ExecContext(ctx, query,
		h.ID,
		formatDate(h.Date),
		h.Name,
		h.Scope,
		nullString(h.TeamID),
		nullString(string(h.EmployeeID)),
		h.RepeatWeekly,
		h.Locked,
		nullString(string(h.CreatedBy)),
	)
	if err != nil {
		return fmt.Errorf("failed to save holiday: %w", err)
	}
	return nil
}

func (q *queries) DeleteHoliday(ctx context.Context, id generic.HolidayID) error {
	_, err := q.db.ExecContext(ctx, `DELETE FROM holidays WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete holiday: %w", err)
	}
	return nil
}

func scanHoliday(row scanner) (generic.Holiday, error) {
	var (
		h                           generic.Holiday
		date                        string
		teamID, employeeID, creator sql.NullString
	)
	if err := row.Scan(&h.ID, &date, &h.Name, &h.Scope, &teamID, &employeeID, &h.RepeatWeekly, &h.Locked, &creator); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return h, err
		}
		return h, fmt.Errorf("failed to scan holiday: %w", err)
	}
	var err error
	if h.Date, err = parseDate(date); err != nil {
		return h, err
	}
	h.TeamID = teamID.String
	h.EmployeeID = generic.EmployeeID(employeeID.String)
	h.CreatedBy = generic.EmployeeID(creator.String)
	return h, nil
}

// =============================================================================
// LEAVE REQUESTS
// =============================================================================

const requestColumns = `id, employee_id, leave_type_id, start_date, end_date, status,
	denial_reason, skip_reason, cancellation_reason, status_before_cancellation,
	manager_approved_by, manager_approved_at, admin_approved_by, admin_approved_at,
	denied_by, denied_at, cancelled_by, cancelled_at,
	requested_days, deducted_days, version, created_at, updated_at`

func (q *queries) GetRequest(ctx context.Context, id generic.RequestID) (*generic.LeaveRequest, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+requestColumns+` FROM leave_requests WHERE id = ?`, id)
	r, err := scanRequest(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (q *queries) ListRequests(ctx context.Context, filter generic.RequestFilter) ([]generic.LeaveRequest, error) {
	var (
		where []string
		args  []any
	)
	if len(filter.EmployeeIDs) > 0 {
		where = append(where, "employee_id IN ("+placeholders(len(filter.EmployeeIDs))+")")
		for _, id := range filter.EmployeeIDs {
			args = append(args, string(id))
		}
	}
	if len(filter.Statuses) > 0 {
		where = append(where, "status IN ("+placeholders(len(filter.Statuses))+")")
		for _, st := range filter.Statuses {
			args = append(args, string(st))
		}
	}
	if p := filter.Overlapping; p != nil {
		where = append(where, "start_date <= ? AND end_date >= ?")
		args = append(args, formatDate(p.End), formatDate(p.Start))
	}

	query := `SELECT ` + requestColumns + ` FROM leave_requests`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY start_date, id`

	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query requests: %w", err)
	}
	defer rows.Close()

	var requests []generic.LeaveRequest
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		requests = append(requests, r)
	}
	return requests, rows.Err()
}

func (q *queries) CreateRequest(ctx context.Context, r generic.LeaveRequest) error {
	query := `INSERT INTO leave_requests (` + requestColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := q.db.ExecContext(ctx, query, requestArgs(r)...)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	return nil
}

// UpdateRequest writes r if the stored version is r.Version-1.
func (q *queries) UpdateRequest(ctx context.Context, r generic.LeaveRequest) error {
	query := `
		UPDATE leave_requests SET
			employee_id = ?, leave_type_id = ?, start_date = ?, end_date = ?, status = ?,
			denial_reason = ?, skip_reason = ?, cancellation_reason = ?, status_before_cancellation = ?,
			manager_approved_by = ?, manager_approved_at = ?, admin_approved_by = ?, admin_approved_at = ?,
			denied_by = ?, denied_at = ?, cancelled_by = ?, cancelled_at = ?,
			requested_days = ?, deducted_days = ?, version = ?, created_at = ?, updated_at = ?
		WHERE id = ? AND version = ?
	`
	values := requestArgs(r)
	args := append(values[1:], r.ID, r.Version-1)
	res, err := q.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update request: %w", err)
	}
	return expectOneRow(res)
}

func requestArgs(r generic.LeaveRequest) []any {
	return []any{
		r.ID,
		r.EmployeeID,
		r.LeaveTypeID,
		formatDate(r.StartDate),
		formatDate(r.EndDate),
		r.Status,
		nullString(r.DenialReason),
		nullString(r.SkipReason),
		nullString(r.CancellationReason),
		nullString(string(r.StatusBeforeCancellation)),
		nullString(string(r.ManagerApprovedBy)),
		nullTime(r.ManagerApprovedAt),
		nullString(string(r.AdminApprovedBy)),
		nullTime(r.AdminApprovedAt),
		nullString(string(r.DeniedBy)),
		nullTime(r.DeniedAt),
		nullString(string(r.CancelledBy)),
		nullTime(r.CancelledAt),
		r.RequestedDays,
		r.DeductedDays.String(),
		r.Version,
		formatTime(r.CreatedAt),
		formatTime(r.UpdatedAt),
	}
}

func scanRequest(row scanner) (generic.LeaveRequest, error) {
	var (
		r                                            generic.LeaveRequest
		startDate, endDate, createdAt, updatedAt     string
		denial, skip, cancellation, before           sql.NullString
		managerBy, managerAt, adminBy, adminAt       sql.NullString
		deniedBy, deniedAt, cancelledBy, cancelledAt sql.NullString
	)
	err := row.Scan(
		&r.ID, &r.EmployeeID, &r.LeaveTypeID, &startDate, &endDate, &r.Status,
		&denial, &skip, &cancellation, &before,
		&managerBy, &managerAt, &adminBy, &adminAt,
		&deniedBy, &deniedAt, &cancelledBy, &cancelledAt,
		&r.RequestedDays, &r.DeductedDays, &r.Version, &createdAt, &updatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return r, err
		}
		return r, fmt.Errorf("failed to scan request: %w", err)
	}

	if r.StartDate, err = parseDate(startDate); err != nil {
		return r, err
	}
	if r.EndDate, err = parseDate(endDate); err != nil {
		return r, err
	}
	r.DenialReason = denial.String
	r.SkipReason = skip.String
	r.CancellationReason = cancellation.String
	r.StatusBeforeCancellation = generic.RequestStatus(before.String)
	r.ManagerApprovedBy = generic.EmployeeID(managerBy.String)
	r.AdminApprovedBy = generic.EmployeeID(adminBy.String)
	r.DeniedBy = generic.EmployeeID(deniedBy.String)
	r.CancelledBy = generic.EmployeeID(cancelledBy.String)

	for _, ts := range []struct {
		src sql.NullString
		dst **time.Time
	}{
		{managerAt, &r.ManagerApprovedAt},
		{adminAt, &r.AdminApprovedAt},
		{deniedAt, &r.DeniedAt},
		{cancelledAt, &r.CancelledAt},
	} {
		if *ts.dst, err = parseNullTime(ts.src); err != nil {
			return r, err
		}
	}
	if r.CreatedAt, err = parseTime(createdAt); err != nil {
		return r, err
	}
	if r.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return r, err
	}
	return r, nil
}

// =============================================================================
// BALANCES
// =============================================================================

const balanceColumns = `id, employee_id, leave_type_id, year, month, total, remaining, is_manual_override, version, updated_at`

func (q *queries) GetBalance(ctx context.Context, key generic.BalanceKey) (*generic.LeaveBalance, error) {
	query := `SELECT ` + balanceColumns + ` FROM leave_balances
		WHERE employee_id = ? AND leave_type_id = ? AND year = ? AND month = ?`
	row := q.db.QueryRowContext(ctx, query, key.EmployeeID, key.LeaveTypeID, key.Period.Year, int(key.Period.Month))
	b, err := scanBalance(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (q *queries) ListBalances(ctx context.Context, employeeID generic.EmployeeID) ([]generic.LeaveBalance, error) {
	query := `SELECT ` + balanceColumns + ` FROM leave_balances
		WHERE employee_id = ? ORDER BY leave_type_id, year, month`
	rows, err := q.db.QueryContext(ctx, query, employeeID)
	if err != nil {
		return nil, fmt.Errorf("failed to query balances: %w", err)
	}
	defer rows.Close()

	var balances []generic.LeaveBalance
	for rows.Next() {
		b, err := scanBalance(rows)
		if err != nil {
			return nil, err
		}
		balances = append(balances, b)
	}
	return balances, rows.Err()
}

func (q *queries) CreateBalance(ctx context.Context, b generic.LeaveBalance) error {
	query := `INSERT INTO leave_balances (` + balanceColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := q.db.ExecContext(ctx, query,
		b.ID, b.EmployeeID, b.LeaveTypeID, b.Period.Year, int(b.Period.Month),
		b.Total.String(), b.Remaining.String(), b.IsManualOverride, b.Version, formatTime(b.UpdatedAt),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return fmt.Errorf("balance %s already exists: %w", b.Key(), generic.ErrConcurrentModification)
		}
		return fmt.Errorf("failed to create balance: %w", err)
	}
	return nil
}

// UpdateBalance writes b if the stored version is b.Version-1.
func (q *queries) UpdateBalance(ctx context.Context, b generic.LeaveBalance) error {
	query := `
		UPDATE leave_balances
		SET total = ?, remaining = ?, is_manual_override = ?, version = ?, updated_at = ?
		WHERE employee_id = ? AND leave_type_id = ? AND year = ? AND month = ? AND version = ?
	`
	res, err := q.db.ExecContext(ctx, query,
		b.Total.String(), b.Remaining.String(), b.IsManualOverride, b.Version, formatTime(b.UpdatedAt),
		b.EmployeeID, b.LeaveTypeID, b.Period.Year, int(b.Period.Month), b.Version-1,
	)
	if err != nil {
		return fmt.Errorf("failed to update balance: %w", err)
	}
	return expectOneRow(res)
}

func (q *queries) BulkSetBalances(ctx context.Context, u generic.BulkBalanceUpdate) (int, error) {
	query := `
		UPDATE leave_balances
		SET total = ?, remaining = ?, is_manual_override = 0, version = version + 1, updated_at = ?
		WHERE leave_type_id = ? AND year = ?
	`
	if !u.ApplyToAll {
		query += ` AND is_manual_override = 0`
	}
	res, err := q.db.ExecContext(ctx, query, u.Total.String(), u.Total.String(), formatTime(u.At), u.LeaveTypeID, u.Year)
	if err != nil {
		return 0, fmt.Errorf("failed to bulk update balances: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count updated balances: %w", err)
	}
	return int(n), nil
}

func scanBalance(row scanner) (generic.LeaveBalance, error) {
	var (
		b         generic.LeaveBalance
		month     int
		updatedAt string
		total     decimal.Decimal
		remaining decimal.Decimal
	)
	err := row.Scan(&b.ID, &b.EmployeeID, &b.LeaveTypeID, &b.Period.Year, &month,
		&total, &remaining, &b.IsManualOverride, &b.Version, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return b, err
		}
		return b, fmt.Errorf("failed to scan balance: %w", err)
	}
	b.Period.Month = time.Month(month)
	b.Total = total
	b.Remaining = remaining
	if b.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return b, err
	}
	return b, nil
}

// =============================================================================
// AUDIT LOG (append-only)
// =============================================================================

func (q *queries) AppendAudit(ctx context.Context, e generic.AuditEntry) error {
	query := `
		INSERT INTO audit_log (id, request_id, action, previous_status, new_status, actor_id, reason, at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := q.db.ExecContext(ctx, query,
		e.ID, e.RequestID, e.Action, nullString(string(e.PreviousStatus)), e.NewStatus,
		e.ActorID, nullString(e.Reason), formatTime(e.At),
	)
	if err != nil {
		return fmt.Errorf("failed to append audit entry: %w", err)
	}
	return nil
}

func (q *queries) ListAudit(ctx context.Context, requestID generic.RequestID) ([]generic.AuditEntry, error) {
	query := `
		SELECT id, request_id, action, previous_status, new_status, actor_id, reason, at
		FROM audit_log WHERE request_id = ? ORDER BY seq
	`
	rows, err := q.db.QueryContext(ctx, query, requestID)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit log: %w", err)
	}
	defer rows.Close()

	var entries []generic.AuditEntry
	for rows.Next() {
		var (
			e            generic.AuditEntry
			prev, reason sql.NullString
			at           string
		)
		if err := rows.Scan(&e.ID, &e.RequestID, &e.Action, &prev, &e.NewStatus, &e.ActorID, &reason, &at); err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		e.PreviousStatus = generic.RequestStatus(prev.String)
		e.Reason = reason.String
		if e.At, err = parseTime(at); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Helper functions

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse timestamp %q: %w", s, err)
	}
	return t, nil
}

func parseNullTime(ns sql.NullString) (*time.Time, error) {
	if !ns.Valid || ns.String == "" {
		return nil, nil
	}
	t, err := parseTime(ns.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func formatDate(tp generic.TimePoint) string {
	if tp.IsZero() {
		return ""
	}
	return tp.String()
}

func parseDate(s string) (generic.TimePoint, error) {
	if s == "" {
		return generic.TimePoint{}, nil
	}
	return generic.ParseDate(s)
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func expectOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to count updated rows: %w", err)
	}
	if n == 0 {
		return generic.ErrConcurrentModification
	}
	return nil
}

func isUniqueConstraintError(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}
