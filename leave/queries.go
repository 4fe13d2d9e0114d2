package leave

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/warp/leave-engine/generic"
)

// GetBalances returns every balance row of the employee, first creating
// the current period's row for each leave type that has none yet.
func (s *Service) GetBalances(ctx context.Context, employeeID generic.EmployeeID) ([]generic.LeaveBalance, error) {
	var balances []generic.LeaveBalance
	err := s.store.WithTx(ctx, func(store generic.Store) error {
		emp, err := s.requireEmployee(ctx, store, employeeID)
		if err != nil {
			return err
		}
		types, err := store.ListLeaveTypes(ctx)
		if err != nil {
			return fmt.Errorf("list leave types: %w", err)
		}

		today := generic.DateOf(s.now())
		for _, lt := range types {
			if _, err := s.ledger.GetOrCreate(ctx, store, emp.ID, lt, generic.PeriodFor(lt.Cadence, today)); err != nil {
				return err
			}
		}

		balances, err = store.ListBalances(ctx, emp.ID)
		if err != nil {
			return fmt.Errorf("list balances for %s: %w", emp.ID, err)
		}
		return nil
	})
	if err != nil {
		s.logger.Warn("get balances failed", zap.String("employee_id", string(employeeID)), zap.Error(err))
		return nil, err
	}
	return balances, nil
}

// BalancesFor is GetBalances for a caller: the employee, their direct
// manager or an administrator.
func (s *Service) BalancesFor(ctx context.Context, caller generic.Caller, employeeID generic.EmployeeID) ([]generic.LeaveBalance, error) {
	if caller.ID != employeeID && !caller.Role.IsAdmin() {
		err := s.store.WithTx(ctx, func(store generic.Store) error {
			emp, err := s.requireEmployee(ctx, store, employeeID)
			if err != nil {
				return err
			}
			return canView(caller, *emp, "view balances")
		})
		if err != nil {
			return nil, err
		}
	}
	return s.GetBalances(ctx, employeeID)
}

// canView allows the employee, their direct manager and administrators.
func canView(caller generic.Caller, emp generic.EmployeeProfile, action string) error {
	if caller.Role.IsAdmin() {
		return nil
	}
	if caller.ID != "" && (caller.ID == emp.ID || caller.ID == emp.ManagerID) {
		return nil
	}
	return &generic.AuthorizationError{ActorID: caller.ID, Action: action, Reason: "not the employee or their manager"}
}

// GetRequest returns a request visible to the caller: its owner, the
// owner's manager or an administrator.
func (s *Service) GetRequest(ctx context.Context, caller generic.Caller, id generic.RequestID) (*generic.LeaveRequest, error) {
	var req *generic.LeaveRequest
	err := s.store.WithTx(ctx, func(store generic.Store) error {
		var err error
		req, err = s.visibleRequest(ctx, store, caller, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return req, nil
}

// AuditTrail lists the audit rows of a request in append order.
func (s *Service) AuditTrail(ctx context.Context, caller generic.Caller, id generic.RequestID) ([]generic.AuditEntry, error) {
	var entries []generic.AuditEntry
	err := s.store.WithTx(ctx, func(store generic.Store) error {
		if _, err := s.visibleRequest(ctx, store, caller, id); err != nil {
			return err
		}
		var err error
		entries, err = store.ListAudit(ctx, id)
		if err != nil {
			return fmt.Errorf("list audit for %s: %w", id, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// MyRequests lists the caller's own requests.
func (s *Service) MyRequests(ctx context.Context, caller generic.Caller) ([]generic.LeaveRequest, error) {
	return s.listRequests(ctx, generic.RequestFilter{EmployeeIDs: []generic.EmployeeID{caller.ID}})
}

// PendingApprovals lists PENDING_MANAGER requests of the caller's direct reports.
func (s *Service) PendingApprovals(ctx context.Context, caller generic.Caller) ([]generic.LeaveRequest, error) {
	return s.reportsRequests(ctx, caller, generic.StatusPendingManager)
}

// PendingCancellations lists cancellation requests of the caller's direct
// reports that await a manager.
func (s *Service) PendingCancellations(ctx context.Context, caller generic.Caller) ([]generic.LeaveRequest, error) {
	return s.reportsRequests(ctx, caller, generic.StatusCancellationRequested, generic.StatusCancellationPendingManager)
}

// AdminQueue lists every request waiting on an administrator.
func (s *Service) AdminQueue(ctx context.Context, caller generic.Caller) ([]generic.LeaveRequest, error) {
	if err := requireAdmin(caller, "view the administrator queue"); err != nil {
		return nil, err
	}
	return s.listRequests(ctx, generic.RequestFilter{Statuses: []generic.RequestStatus{
		generic.StatusPendingAdmin,
		generic.StatusApprovedByManager,
		generic.StatusCancellationPendingAdmin,
	}})
}

// PreviewWorkingDays returns the working dates an employee would be
// charged for the range, without touching any balance. The result
// reveals personal holidays, so it has the same audience as balances.
func (s *Service) PreviewWorkingDays(ctx context.Context, caller generic.Caller, employeeID generic.EmployeeID, start, end generic.TimePoint) ([]generic.TimePoint, error) {
	period := generic.Period{Start: start, End: end}
	if err := period.Validate(); err != nil {
		return nil, err
	}
	var dates []generic.TimePoint
	err := s.store.WithTx(ctx, func(store generic.Store) error {
		emp, err := s.requireEmployee(ctx, store, employeeID)
		if err != nil {
			return err
		}
		if err := canView(caller, *emp, "preview working days"); err != nil {
			return err
		}
		dates, err = s.workingDates(ctx, store, *emp, period)
		return err
	})
	if err != nil {
		return nil, err
	}
	return dates, nil
}

func (s *Service) visibleRequest(ctx context.Context, store generic.Store, caller generic.Caller, id generic.RequestID) (*generic.LeaveRequest, error) {
	req, err := s.requireRequest(ctx, store, id)
	if err != nil {
		return nil, err
	}
	emp, err := s.requireEmployee(ctx, store, req.EmployeeID)
	if err != nil {
		return nil, err
	}
	if len(relationshipsOf(caller, *req, *emp)) == 0 {
		return nil, &generic.AuthorizationError{ActorID: caller.ID, Action: "view request", Reason: "no relationship to this request"}
	}
	return req, nil
}

func (s *Service) reportsRequests(ctx context.Context, caller generic.Caller, statuses ...generic.RequestStatus) ([]generic.LeaveRequest, error) {
	var requests []generic.LeaveRequest
	err := s.store.WithTx(ctx, func(store generic.Store) error {
		reports, err := store.ListReports(ctx, caller.ID)
		if err != nil {
			return fmt.Errorf("list reports of %s: %w", caller.ID, err)
		}
		if len(reports) == 0 {
			return nil
		}
		ids := make([]generic.EmployeeID, len(reports))
		for i, r := range reports {
			ids[i] = r.ID
		}
		requests, err = store.ListRequests(ctx, generic.RequestFilter{EmployeeIDs: ids, Statuses: statuses})
		if err != nil {
			return fmt.Errorf("list requests of reports: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return requests, nil
}

func (s *Service) listRequests(ctx context.Context, filter generic.RequestFilter) ([]generic.LeaveRequest, error) {
	var requests []generic.LeaveRequest
	err := s.store.WithTx(ctx, func(store generic.Store) error {
		var err error
		requests, err = store.ListRequests(ctx, filter)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("list requests: %w", err)
	}
	return requests, nil
}
