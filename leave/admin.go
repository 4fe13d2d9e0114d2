package leave

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/warp/leave-engine/generic"
)

// =============================================================================
// BALANCES
// =============================================================================

// SetBalance is the manual single-row update: total = remaining = total
// for one employee, leave type and period. It does not mark the row as a
// manual override.
func (s *Service) SetBalance(ctx context.Context, caller generic.Caller, employeeID generic.EmployeeID, leaveTypeID generic.LeaveTypeID, period generic.BalancePeriod, total decimal.Decimal) (*generic.LeaveBalance, error) {
	return s.writeBalance(ctx, caller, employeeID, leaveTypeID, period, total, s.ledger.SetTotal)
}

// OverrideBalance sets total = remaining = total and flags the row so
// bulk updates without applyToAll leave it alone.
func (s *Service) OverrideBalance(ctx context.Context, caller generic.Caller, employeeID generic.EmployeeID, leaveTypeID generic.LeaveTypeID, period generic.BalancePeriod, total decimal.Decimal) (*generic.LeaveBalance, error) {
	return s.writeBalance(ctx, caller, employeeID, leaveTypeID, period, total, s.ledger.Override)
}

type balanceWriter func(ctx context.Context, store generic.Store, employeeID generic.EmployeeID, lt generic.LeaveType, period generic.BalancePeriod, total decimal.Decimal) (*generic.LeaveBalance, error)

func (s *Service) writeBalance(ctx context.Context, caller generic.Caller, employeeID generic.EmployeeID, leaveTypeID generic.LeaveTypeID, period generic.BalancePeriod, total decimal.Decimal, write balanceWriter) (*generic.LeaveBalance, error) {
	if err := requireAdmin(caller, "set leave balances"); err != nil {
		return nil, err
	}

	var result *generic.LeaveBalance
	err := s.store.WithTx(ctx, func(store generic.Store) error {
		emp, err := s.requireEmployee(ctx, store, employeeID)
		if err != nil {
			return err
		}
		lt, err := s.requireLeaveType(ctx, store, leaveTypeID)
		if err != nil {
			return err
		}
		if err := validateBalancePeriod(*lt, period); err != nil {
			return err
		}
		result, err = write(ctx, store, emp.ID, *lt, period, total)
		return err
	})
	if err != nil {
		s.logger.Warn("set balance failed",
			zap.String("employee_id", string(employeeID)),
			zap.String("leave_type_id", string(leaveTypeID)),
			zap.Error(err),
		)
		return nil, err
	}

	s.metrics.BalanceAdjusted("set", total)
	s.logger.Info("balance set",
		zap.String("balance", result.Key().String()),
		zap.String("total", result.Total.String()),
		zap.Bool("manual_override", result.IsManualOverride),
		zap.String("actor_id", string(caller.ID)),
	)
	return result, nil
}

// BulkSetBalance sets total = remaining = newTotal on every balance row
// of the leave type and year and returns the number of rows touched.
// Without applyToAll, manual-override rows are skipped.
func (s *Service) BulkSetBalance(ctx context.Context, caller generic.Caller, leaveTypeID generic.LeaveTypeID, year int, newTotal decimal.Decimal, applyToAll bool) (int, error) {
	if err := requireAdmin(caller, "bulk update leave balances"); err != nil {
		return 0, err
	}
	if year <= 0 {
		return 0, &generic.ValidationError{Field: "year", Message: "year is required"}
	}

	var n int
	err := s.store.WithTx(ctx, func(store generic.Store) error {
		if _, err := s.requireLeaveType(ctx, store, leaveTypeID); err != nil {
			return err
		}
		var err error
		n, err = s.ledger.BulkSetTotal(ctx, store, leaveTypeID, year, newTotal, applyToAll)
		return err
	})
	if err != nil {
		s.logger.Warn("bulk balance update failed", zap.String("leave_type_id", string(leaveTypeID)), zap.Int("year", year), zap.Error(err))
		return 0, err
	}

	s.metrics.BalanceAdjusted("bulk_set", newTotal)
	s.logger.Info("bulk balance update success",
		zap.String("leave_type_id", string(leaveTypeID)),
		zap.Int("year", year),
		zap.String("total", newTotal.String()),
		zap.Bool("apply_to_all", applyToAll),
		zap.Int("rows", n),
	)
	return n, nil
}

func validateBalancePeriod(lt generic.LeaveType, period generic.BalancePeriod) error {
	if period.Year <= 0 {
		return &generic.ValidationError{Field: "year", Message: "year is required"}
	}
	switch {
	case lt.Cadence == generic.CadenceMonthly && !period.IsMonthly():
		return &generic.ValidationError{Field: "month", Message: "monthly leave types need a month"}
	case lt.Cadence == generic.CadenceAnnual && period.IsMonthly():
		return &generic.ValidationError{Field: "month", Message: "annual leave types take no month"}
	case period.Month < 0 || period.Month > time.December:
		return &generic.ValidationError{Field: "month", Message: "month must be between 1 and 12"}
	}
	return nil
}

// =============================================================================
// EMPLOYEES AND LEAVE TYPES
// =============================================================================

// SaveEmployee creates or updates a profile. The manager link is checked
// for cycles the same way AssignManager does.
func (s *Service) SaveEmployee(ctx context.Context, caller generic.Caller, emp generic.EmployeeProfile) (*generic.EmployeeProfile, error) {
	if err := requireAdmin(caller, "manage employee profiles"); err != nil {
		return nil, err
	}
	if emp.ID == "" {
		return nil, &generic.ValidationError{Field: "id", Message: "employee id is required"}
	}
	err := s.store.WithTx(ctx, func(store generic.Store) error {
		if err := ensureAcyclic(ctx, store, emp.ID, emp.ManagerID); err != nil {
			return err
		}
		if emp.WorkScheduleID != "" {
			ws, err := store.GetWorkSchedule(ctx, emp.WorkScheduleID)
			if err != nil {
				return fmt.Errorf("load work schedule %s: %w", emp.WorkScheduleID, err)
			}
			if ws == nil {
				return &generic.NotFoundError{Resource: "work schedule", ID: string(emp.WorkScheduleID)}
			}
		}
		return store.SaveEmployee(ctx, emp)
	})
	if err != nil {
		return nil, err
	}
	return &emp, nil
}

// AssignManager points employeeID at managerID, or clears the link when
// managerID is empty. Assignments that would close a cycle are refused.
func (s *Service) AssignManager(ctx context.Context, caller generic.Caller, employeeID, managerID generic.EmployeeID) (*generic.EmployeeProfile, error) {
	if err := requireAdmin(caller, "assign managers"); err != nil {
		return nil, err
	}

	var updated generic.EmployeeProfile
	err := s.store.WithTx(ctx, func(store generic.Store) error {
		emp, err := s.requireEmployee(ctx, store, employeeID)
		if err != nil {
			return err
		}
		if err := ensureAcyclic(ctx, store, employeeID, managerID); err != nil {
			return err
		}
		emp.ManagerID = managerID
		if err := store.SaveEmployee(ctx, *emp); err != nil {
			return fmt.Errorf("save employee %s: %w", employeeID, err)
		}
		updated = *emp
		return nil
	})
	if err != nil {
		s.logger.Warn("assign manager failed",
			zap.String("employee_id", string(employeeID)),
			zap.String("manager_id", string(managerID)),
			zap.Error(err),
		)
		return nil, err
	}
	s.logger.Info("manager assigned",
		zap.String("employee_id", string(employeeID)),
		zap.String("manager_id", string(managerID)),
	)
	return &updated, nil
}

func (s *Service) SaveLeaveType(ctx context.Context, caller generic.Caller, lt generic.LeaveType) (*generic.LeaveType, error) {
	if err := requireAdmin(caller, "manage leave types"); err != nil {
		return nil, err
	}
	switch {
	case lt.ID == "":
		return nil, &generic.ValidationError{Field: "id", Message: "leave type id is required"}
	case !lt.Cadence.Valid():
		return nil, &generic.ValidationError{Field: "cadence", Message: "cadence must be ANNUAL or MONTHLY"}
	case lt.DefaultAllowance.IsNegative():
		return nil, &generic.ValidationError{Field: "defaultAllowance", Message: "default allowance must not be negative"}
	}
	if lt.Unit == "" {
		lt.Unit = generic.UnitDays
	}
	err := s.store.WithTx(ctx, func(store generic.Store) error {
		return store.SaveLeaveType(ctx, lt)
	})
	if err != nil {
		return nil, fmt.Errorf("save leave type %s: %w", lt.ID, err)
	}
	return &lt, nil
}

// =============================================================================
// WORK SCHEDULES
// =============================================================================

// SaveWorkSchedule creates or updates a schedule. A second default
// schedule is refused.
func (s *Service) SaveWorkSchedule(ctx context.Context, caller generic.Caller, ws generic.WorkSchedule) (*generic.WorkSchedule, error) {
	if err := requireAdmin(caller, "manage work schedules"); err != nil {
		return nil, err
	}
	if err := validateSchedule(ws); err != nil {
		return nil, err
	}
	if ws.ID == "" {
		ws.ID = generic.ScheduleID(generic.NewID())
	}

	err := s.store.WithTx(ctx, func(store generic.Store) error {
		if ws.IsDefault {
			def, err := store.GetDefaultWorkSchedule(ctx)
			if err != nil {
				return fmt.Errorf("load default work schedule: %w", err)
			}
			if def != nil && def.ID != ws.ID {
				return &generic.ValidationError{
					Field:   "isDefault",
					Message: fmt.Sprintf("schedule %s is already the default", def.ID),
				}
			}
		}
		if err := store.SaveWorkSchedule(ctx, ws); err != nil {
			if errors.Is(err, generic.ErrDefaultScheduleExists) {
				return &generic.ValidationError{Field: "isDefault", Message: err.Error()}
			}
			return fmt.Errorf("save work schedule %s: %w", ws.ID, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("work schedule saved",
		zap.String("schedule_id", string(ws.ID)),
		zap.Bool("default", ws.IsDefault),
		zap.Int("working_weekdays", ws.WorkingWeekdays()),
	)
	return &ws, nil
}

// =============================================================================
// HOLIDAYS
// =============================================================================

// SaveHoliday creates or updates a holiday. Locked holidays cannot be
// edited; unlock them first with SetHolidayLock.
func (s *Service) SaveHoliday(ctx context.Context, caller generic.Caller, h generic.Holiday) (*generic.Holiday, error) {
	if err := requireAdmin(caller, "manage holidays"); err != nil {
		return nil, err
	}
	if err := h.Validate(); err != nil {
		return nil, err
	}
	if h.ID == "" {
		h.ID = generic.HolidayID(generic.NewID())
	}
	if h.CreatedBy == "" {
		h.CreatedBy = caller.ID
	}

	err := s.store.WithTx(ctx, func(store generic.Store) error {
		existing, err := store.GetHoliday(ctx, h.ID)
		if err != nil {
			return fmt.Errorf("load holiday %s: %w", h.ID, err)
		}
		if existing != nil && existing.Locked {
			return &generic.ValidationError{Field: "locked", Message: fmt.Sprintf("holiday %s is locked", h.ID)}
		}
		if existing != nil {
			h.CreatedBy = existing.CreatedBy
		}
		return store.SaveHoliday(ctx, h)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("holiday saved",
		zap.String("holiday_id", string(h.ID)),
		zap.String("date", h.Date.String()),
		zap.String("scope", string(h.Scope)),
	)
	return &h, nil
}

// SetHolidayLock locks or unlocks a holiday.
func (s *Service) SetHolidayLock(ctx context.Context, caller generic.Caller, id generic.HolidayID, locked bool) (*generic.Holiday, error) {
	if err := requireAdmin(caller, "lock holidays"); err != nil {
		return nil, err
	}
	var updated generic.Holiday
	err := s.store.WithTx(ctx, func(store generic.Store) error {
		h, err := requireHoliday(ctx, store, id)
		if err != nil {
			return err
		}
		h.Locked = locked
		updated = *h
		return store.SaveHoliday(ctx, *h)
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// DeleteHoliday removes an unlocked holiday.
func (s *Service) DeleteHoliday(ctx context.Context, caller generic.Caller, id generic.HolidayID) error {
	if err := requireAdmin(caller, "delete holidays"); err != nil {
		return err
	}
	return s.store.WithTx(ctx, func(store generic.Store) error {
		h, err := requireHoliday(ctx, store, id)
		if err != nil {
			return err
		}
		if h.Locked {
			return &generic.ValidationError{Field: "locked", Message: fmt.Sprintf("holiday %s is locked", id)}
		}
		return store.DeleteHoliday(ctx, id)
	})
}

// ListHolidays lists holidays in [from, to]; zero bounds are open.
func (s *Service) ListHolidays(ctx context.Context, from, to generic.TimePoint) ([]generic.Holiday, error) {
	var holidays []generic.Holiday
	err := s.store.WithTx(ctx, func(store generic.Store) error {
		var err error
		holidays, err = store.ListHolidays(ctx, generic.HolidayFilter{From: from, To: to})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("list holidays: %w", err)
	}
	return holidays, nil
}

func requireHoliday(ctx context.Context, store generic.Store, id generic.HolidayID) (*generic.Holiday, error) {
	h, err := store.GetHoliday(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load holiday %s: %w", id, err)
	}
	if h == nil {
		return nil, &generic.NotFoundError{Resource: "holiday", ID: string(id)}
	}
	return h, nil
}

func requireAdmin(caller generic.Caller, what string) error {
	if caller.Role.IsAdmin() {
		return nil
	}
	return &generic.AuthorizationError{ActorID: caller.ID, Action: what, Reason: "administrator role required"}
}
