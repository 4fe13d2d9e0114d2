/*
ledger.go - Per-period leave balance ledger

PURPOSE:
  Tracks, for every (employee, leave type, period), how many units were
  allotted (Total) and how many are left (Remaining). The state machine
  calls into the ledger from inside its transaction: a final approval
  reserves, an approved cancellation restores, administrators set totals.

CRITICAL INVARIANTS:
  1. Remaining is never allowed below zero: ReserveOrFail checks
     remaining >= amount BEFORE writing, never after.
  2. Every mutation happens on the transaction-scoped Store handed in by
     the caller, so it commits or rolls back with the status change.
  3. Writes are version-checked; a lost race surfaces as
     ErrConcurrentModification instead of a silent double deduction.

ROW LIFECYCLE:
  Rows are created lazily with the leave type's DefaultAllowance the first
  time a period is touched (GetOrCreate). ANNUAL leave types key rows by
  year, MONTHLY leave types by year and month.

MANUAL OVERRIDE:
  Override marks a row as hand-set. BulkSetTotal leaves such rows alone
  unless applyToAll is given. SetTotal (the manual single-row update)
  resets remaining to total and does not raise the flag.

EXAMPLE:
  ledger := generic.NewBalanceLedger(time.Now)
  err := txStore.WithTx(ctx, func(s generic.Store) error {
      _, err := ledger.ReserveOrFail(ctx, s, "emp-1", leaveType, period, days)
      return err
  })

SEE ALSO:
  - period.go: BalancePeriod and PeriodFor
  - leave/service.go: Calls the ledger from transitions
*/
package generic

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// BALANCE ROW
// =============================================================================

// BalanceKey identifies one balance row.
type BalanceKey struct {
	EmployeeID  EmployeeID
	LeaveTypeID LeaveTypeID
	Period      BalancePeriod
}

func (k BalanceKey) String() string {
	return fmt.Sprintf("%s/%s/%s", k.EmployeeID, k.LeaveTypeID, k.Period)
}

type LeaveBalance struct {
	ID               BalanceID
	EmployeeID       EmployeeID
	LeaveTypeID      LeaveTypeID
	Period           BalancePeriod
	Total            decimal.Decimal
	Remaining        decimal.Decimal
	IsManualOverride bool
	Version          int
	UpdatedAt        time.Time
}

func (b LeaveBalance) Key() BalanceKey {
	return BalanceKey{EmployeeID: b.EmployeeID, LeaveTypeID: b.LeaveTypeID, Period: b.Period}
}

// Used returns the units consumed so far.
func (b LeaveBalance) Used() decimal.Decimal {
	return b.Total.Sub(b.Remaining)
}

// =============================================================================
// BALANCE LEDGER
// =============================================================================

type BalanceLedger struct {
	now Clock
}

func NewBalanceLedger(now Clock) *BalanceLedger {
	if now == nil {
		now = time.Now
	}
	return &BalanceLedger{now: now}
}

// Find returns the balance row or a NotFoundError.
func (l *BalanceLedger) Find(ctx context.Context, store Store, key BalanceKey) (*LeaveBalance, error) {
	bal, err := store.GetBalance(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("load balance %s: %w", key, err)
	}
	if bal == nil {
		return nil, &NotFoundError{Resource: "leave balance", ID: key.String()}
	}
	return bal, nil
}

// GetOrCreate returns the balance row, creating it with the leave type's
// default allowance if this is the first access for the period.
func (l *BalanceLedger) GetOrCreate(ctx context.Context, store Store, employeeID EmployeeID, lt LeaveType, period BalancePeriod) (*LeaveBalance, error) {
	key := BalanceKey{EmployeeID: employeeID, LeaveTypeID: lt.ID, Period: period}
	bal, err := store.GetBalance(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("load balance %s: %w", key, err)
	}
	if bal != nil {
		return bal, nil
	}

	created := LeaveBalance{
		ID:          BalanceID(NewID()),
		EmployeeID:  employeeID,
		LeaveTypeID: lt.ID,
		Period:      period,
		Total:       lt.DefaultAllowance,
		Remaining:   lt.DefaultAllowance,
		Version:     1,
		UpdatedAt:   l.now().UTC(),
	}
	if err := store.CreateBalance(ctx, created); err != nil {
		return nil, fmt.Errorf("create balance %s: %w", key, err)
	}
	return &created, nil
}

// CheckSufficient fails with InsufficientBalanceError if bal cannot cover amount.
func (l *BalanceLedger) CheckSufficient(bal LeaveBalance, amount decimal.Decimal) error {
	if bal.Remaining.GreaterThanOrEqual(amount) {
		return nil
	}
	return &InsufficientBalanceError{
		EmployeeID:  bal.EmployeeID,
		LeaveTypeID: bal.LeaveTypeID,
		Period:      bal.Period,
		Remaining:   bal.Remaining,
		Required:    amount,
	}
}

// ReserveOrFail decrements remaining by amount, refusing to go negative.
func (l *BalanceLedger) ReserveOrFail(ctx context.Context, store Store, key BalanceKey, amount decimal.Decimal) (*LeaveBalance, error) {
	if amount.IsNegative() {
		return nil, &ValidationError{Field: "amount", Message: "reservation must not be negative"}
	}
	bal, err := l.Find(ctx, store, key)
	if err != nil {
		return nil, err
	}
	if err := l.CheckSufficient(*bal, amount); err != nil {
		return nil, err
	}
	bal.Remaining = bal.Remaining.Sub(amount)
	return l.write(ctx, store, *bal)
}

// Restore increments remaining by amount. It does not cap at total: a
// total lowered after the deduction is the administrator's call.
func (l *BalanceLedger) Restore(ctx context.Context, store Store, key BalanceKey, amount decimal.Decimal) (*LeaveBalance, error) {
	if amount.IsNegative() {
		return nil, &ValidationError{Field: "amount", Message: "restoration must not be negative"}
	}
	bal, err := l.Find(ctx, store, key)
	if err != nil {
		return nil, err
	}
	bal.Remaining = bal.Remaining.Add(amount)
	return l.write(ctx, store, *bal)
}

// SetTotal is the manual single-row create-or-update: total = remaining =
// total. The manual override flag is left as it was.
func (l *BalanceLedger) SetTotal(ctx context.Context, store Store, employeeID EmployeeID, lt LeaveType, period BalancePeriod, total decimal.Decimal) (*LeaveBalance, error) {
	return l.set(ctx, store, employeeID, lt, period, total, false)
}

// Override sets total = remaining = total and marks the row as manually
// overridden so bulk updates without applyToAll skip it.
func (l *BalanceLedger) Override(ctx context.Context, store Store, employeeID EmployeeID, lt LeaveType, period BalancePeriod, total decimal.Decimal) (*LeaveBalance, error) {
	return l.set(ctx, store, employeeID, lt, period, total, true)
}

func (l *BalanceLedger) set(ctx context.Context, store Store, employeeID EmployeeID, lt LeaveType, period BalancePeriod, total decimal.Decimal, override bool) (*LeaveBalance, error) {
	if total.IsNegative() {
		return nil, &ValidationError{Field: "total", Message: "total must not be negative"}
	}
	bal, err := l.GetOrCreate(ctx, store, employeeID, lt, period)
	if err != nil {
		return nil, err
	}
	bal.Total = total
	bal.Remaining = total
	if override {
		bal.IsManualOverride = true
	}
	return l.write(ctx, store, *bal)
}

// BulkSetTotal sets total = remaining = total for every matching row and
// returns how many rows were touched.
func (l *BalanceLedger) BulkSetTotal(ctx context.Context, store Store, leaveTypeID LeaveTypeID, year int, total decimal.Decimal, applyToAll bool) (int, error) {
	if total.IsNegative() {
		return 0, &ValidationError{Field: "total", Message: "total must not be negative"}
	}
	n, err := store.BulkSetBalances(ctx, BulkBalanceUpdate{
		LeaveTypeID: leaveTypeID,
		Year:        year,
		Total:       total,
		ApplyToAll:  applyToAll,
		At:          l.now().UTC(),
	})
	if err != nil {
		return 0, fmt.Errorf("bulk set balances for %s/%d: %w", leaveTypeID, year, err)
	}
	return n, nil
}

func (l *BalanceLedger) write(ctx context.Context, store Store, bal LeaveBalance) (*LeaveBalance, error) {
	bal.Version++
	bal.UpdatedAt = l.now().UTC()
	if err := store.UpdateBalance(ctx, bal); err != nil {
		return nil, fmt.Errorf("update balance %s: %w", bal.Key(), err)
	}
	return &bal, nil
}
