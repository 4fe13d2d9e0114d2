/*
store.go - Persistence interface for the leave workflow

PURPOSE:
  Defines the interface between the workflow and the database. The engine
  never talks to a driver directly: every read and every write happens on
  a Store handed to it by TxStore.WithTx, so a transition's status change,
  balance mutation and audit append commit together or not at all.

KEY INTERFACES:
  Store:   Reads and writes over requests, balances, schedules, holidays,
           audit rows, employee profiles and leave types
  TxStore: Opens a unit of work and hands a Store scoped to it

CONVENTIONS:
  - Get* methods return (nil, nil) when the row does not exist.
  - Update* methods on versioned rows (requests, balances) only succeed
    when the stored Version equals the one being written minus one, and
    return ErrConcurrentModification otherwise.
  - Audit rows have Append only. No update, no delete.

CONCURRENCY:
  Implementations must serialize conflicting units of work on the same
  request or balance row. SQLite does it with a single connection; the
  memory store holds its mutex for the whole unit.

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go: SQLite via database/sql
  - generic/store/memory.go: In-memory for testing

SEE ALSO:
  - ledger.go: Balance operations on top of Store
  - audit.go: Audit recorder on top of Store
*/
package generic

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// STORE - Transaction-scoped data access
// =============================================================================

type Store interface {
	// Employees
	GetEmployee(ctx context.Context, id EmployeeID) (*EmployeeProfile, error)
	SaveEmployee(ctx context.Context, emp EmployeeProfile) error
	ListReports(ctx context.Context, managerID EmployeeID) ([]EmployeeProfile, error)

	// Leave types
	GetLeaveType(ctx context.Context, id LeaveTypeID) (*LeaveType, error)
	ListLeaveTypes(ctx context.Context) ([]LeaveType, error)
	SaveLeaveType(ctx context.Context, lt LeaveType) error

	// Work schedules
	GetWorkSchedule(ctx context.Context, id ScheduleID) (*WorkSchedule, error)
	GetDefaultWorkSchedule(ctx context.Context) (*WorkSchedule, error)
	SaveWorkSchedule(ctx context.Context, ws WorkSchedule) error

	// Holidays
	GetHoliday(ctx context.Context, id HolidayID) (*Holiday, error)
	ListHolidays(ctx context.Context, filter HolidayFilter) ([]Holiday, error)
	SaveHoliday(ctx context.Context, h Holiday) error
	DeleteHoliday(ctx context.Context, id HolidayID) error

	// Requests
	GetRequest(ctx context.Context, id RequestID) (*LeaveRequest, error)
	ListRequests(ctx context.Context, filter RequestFilter) ([]LeaveRequest, error)
	CreateRequest(ctx context.Context, r LeaveRequest) error
	UpdateRequest(ctx context.Context, r LeaveRequest) error

	// Balances
	GetBalance(ctx context.Context, key BalanceKey) (*LeaveBalance, error)
	ListBalances(ctx context.Context, employeeID EmployeeID) ([]LeaveBalance, error)
	CreateBalance(ctx context.Context, b LeaveBalance) error
	UpdateBalance(ctx context.Context, b LeaveBalance) error
	BulkSetBalances(ctx context.Context, update BulkBalanceUpdate) (int, error)

	// Audit (append-only)
	AppendAudit(ctx context.Context, entry AuditEntry) error
	ListAudit(ctx context.Context, requestID RequestID) ([]AuditEntry, error)
}

// =============================================================================
// TRANSACTIONAL STORE - For atomic operations across multiple writes
// =============================================================================

// TxStore hands out transaction-scoped stores.
type TxStore interface {
	// WithTx executes fn within a transaction.
	// If fn returns error, transaction is rolled back.
	// If fn returns nil, transaction is committed.
	WithTx(ctx context.Context, fn func(Store) error) error
}

// =============================================================================
// FILTERS
// =============================================================================

// HolidayFilter selects holidays relevant to a date range.
// When Employee is set only holidays applying to that employee are returned.
// Weekly repeating holidays anchored on or before To are always included.
type HolidayFilter struct {
	From     TimePoint
	To       TimePoint
	Employee *EmployeeProfile
}

// Matches evaluates the filter in memory.
func (f HolidayFilter) Matches(h Holiday) bool {
	if f.Employee != nil && !h.AppliesTo(*f.Employee) {
		return false
	}
	if h.RepeatWeekly {
		return f.To.IsZero() || h.Date.BeforeOrEqual(f.To)
	}
	if !f.From.IsZero() && h.Date.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && h.Date.After(f.To) {
		return false
	}
	return true
}

// BulkBalanceUpdate sets total = remaining = Total on every row of the
// leave type and year. Rows with IsManualOverride are skipped unless
// ApplyToAll is set. Touched rows have IsManualOverride cleared.
type BulkBalanceUpdate struct {
	LeaveTypeID LeaveTypeID
	Year        int
	Total       decimal.Decimal
	ApplyToAll  bool
	At          time.Time
}
