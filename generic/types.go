/*
Package generic provides the core leave workflow engine primitives.

PURPOSE:
  This package contains the types and algorithms that the leave workflow
  is built from: working-day calendars, the per-period balance ledger,
  the request record and its status enum, the audit trail, the error
  taxonomy and the transactional store contract. The leave package
  composes these into the request state machine.

KEY CONCEPTS IN THIS FILE (types.go):
  - Unit: What a leave balance is counted in (days)
  - Identifiers: Type-safe IDs for employees, leave types, requests, ...
  - EmployeeProfile: Manager link, work schedule link and team
  - LeaveType: Default allowance and accrual cadence

DESIGN PRINCIPLES:
  1. Precision: Balances use decimal.Decimal, never float64
  2. Type Safety: Strong typing for IDs prevents mixing employee/request IDs
  3. Explicit lifecycle: Requests only change through state-machine transitions

USAGE:
  lt := generic.LeaveType{
      ID:               "annual",
      DefaultAllowance: decimal.NewFromInt(20),
      Cadence:          generic.CadenceAnnual,
      Unit:             generic.UnitDays,
  }

SEE ALSO:
  - calendar.go: Working-day resolution
  - ledger.go: Balance ledger
  - request.go: Request record and status enum
*/
package generic

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// =============================================================================
// UNIT
// =============================================================================

// Unit is what a leave type's balance is counted in. Only whole days exist.
type Unit string

const (
	UnitDays Unit = "days"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type EmployeeID string
type LeaveTypeID string
type RequestID string
type ScheduleID string
type HolidayID string
type BalanceID string

// NewID returns a random identifier for newly created rows.
func NewID() string {
	return uuid.NewString()
}

// =============================================================================
// EMPLOYEE PROFILE
// =============================================================================

// EmployeeProfile is the slice of the HR profile the workflow needs.
// ManagerID and WorkScheduleID are optional; empty means unset.
type EmployeeProfile struct {
	ID             EmployeeID
	Name           string
	Position       string
	StartDate      TimePoint
	ManagerID      EmployeeID
	WorkScheduleID ScheduleID
	TeamID         string
}

// HasManager reports whether a manager is assigned.
func (e EmployeeProfile) HasManager() bool {
	return e.ManagerID != ""
}

// =============================================================================
// LEAVE TYPE
// =============================================================================

// Cadence controls how balance periods are keyed for a leave type.
type Cadence string

const (
	CadenceAnnual  Cadence = "ANNUAL"
	CadenceMonthly Cadence = "MONTHLY"
)

func (c Cadence) Valid() bool {
	return c == CadenceAnnual || c == CadenceMonthly
}

type LeaveType struct {
	ID               LeaveTypeID
	Name             string
	DefaultAllowance decimal.Decimal
	Cadence          Cadence
	Unit             Unit
}

// =============================================================================
// CALLER
// =============================================================================

// Role is the caller's organisational role as supplied by the session layer.
type Role string

const (
	RoleEmployee   Role = "EMPLOYEE"
	RoleManager    Role = "MANAGER"
	RoleAdmin      Role = "ADMIN"
	RoleSuperAdmin Role = "SUPER_ADMIN"
)

func (r Role) IsAdmin() bool {
	return r == RoleAdmin || r == RoleSuperAdmin
}

// Caller identifies who is invoking an operation.
type Caller struct {
	ID   EmployeeID
	Role Role
}

// Clock returns the current wall time. Swapped in tests.
type Clock func() time.Time
