/*
workflow.go - Dual-approval flows and transition handlers

PURPOSE:
  The leave workflow and the cancellation sub-workflow have the same
  shape: a manager stage that the bypass policy may skip, an
  administrator stage, a terminal success with a balance side effect and
  a rejection. dualApproval captures that shape once; leaveFlow and
  cancellationFlow are its two instances.

                   ┌─────────── leaveFlow ───────────┬──── cancellationFlow ────┐
  awaitingManager  │ PENDING_MANAGER                 │ CANCELLATION_PENDING_MANAGER
  awaitingAdmin    │ PENDING_ADMIN                   │ CANCELLATION_PENDING_ADMIN
  unrouted         │ (always routed)                 │ CANCELLATION_REQUESTED
  managerApproved  │ APPROVED_BY_MANAGER             │ CANCELLED (manager sign-off is final)
  approved         │ APPROVED_BY_ADMIN               │ CANCELLED
  settle           │ reserve balance                 │ restore balance
  reject           │ DENIED                          │ status before cancellation

  Every handler mutates tc.req in place. The service persists the row,
  bumps its version and appends the audit row afterwards, all inside the
  same transaction.

SEE ALSO:
  - permissions.go: Which statuses each action starts from, and who may act
  - service.go: Transition orchestration
*/
package leave

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/warp/leave-engine/generic"
)

// transitionContext carries one transition through its handler.
type transitionContext struct {
	ctx    context.Context
	store  generic.Store
	caller generic.Caller
	req    *generic.LeaveRequest
	emp    generic.EmployeeProfile
	reason string
	now    time.Time

	// auditReason is what ends up on the audit row.
	auditReason string
}

func (tc *transitionContext) stamp() *time.Time {
	t := tc.now
	return &t
}

// =============================================================================
// DUAL APPROVAL
// =============================================================================

type dualApproval struct {
	awaitingManager generic.RequestStatus
	awaitingAdmin   generic.RequestStatus
	unrouted        generic.RequestStatus
	managerApproved generic.RequestStatus
	approved        generic.RequestStatus

	signOff func(tc *transitionContext)
	settle  func(s *Service, tc *transitionContext) error
	reject  func(tc *transitionContext) generic.RequestStatus
}

// route picks the entry status of the flow.
func (f *dualApproval) route(decision BypassDecision, routed bool) generic.RequestStatus {
	if !routed && f.unrouted != "" {
		return f.unrouted
	}
	if decision.Bypass {
		return f.awaitingAdmin
	}
	return f.awaitingManager
}

func (f *dualApproval) approveAsManager(s *Service, tc *transitionContext) error {
	if f.managerApproved == f.approved {
		return f.complete(s, tc)
	}
	if f.signOff != nil {
		f.signOff(tc)
	}
	tc.req.Status = f.managerApproved
	return nil
}

func (f *dualApproval) complete(s *Service, tc *transitionContext) error {
	if err := f.settle(s, tc); err != nil {
		return err
	}
	tc.req.Status = f.approved
	return nil
}

func (f *dualApproval) rejectWith(tc *transitionContext) {
	tc.req.Status = f.reject(tc)
}

var leaveFlow = &dualApproval{
	awaitingManager: generic.StatusPendingManager,
	awaitingAdmin:   generic.StatusPendingAdmin,
	managerApproved: generic.StatusApprovedByManager,
	approved:        generic.StatusApprovedByAdmin,
	signOff: func(tc *transitionContext) {
		tc.req.ManagerApprovedBy = tc.caller.ID
		tc.req.ManagerApprovedAt = tc.stamp()
		tc.auditReason = withDefault(tc.reason, "Approved by manager.")
	},
	settle: (*Service).deduct,
	reject: func(tc *transitionContext) generic.RequestStatus {
		tc.req.DenialReason = tc.reason
		tc.req.DeniedBy = tc.caller.ID
		tc.req.DeniedAt = tc.stamp()
		tc.auditReason = tc.reason
		return generic.StatusDenied
	},
}

var cancellationFlow = &dualApproval{
	awaitingManager: generic.StatusCancellationPendingManager,
	awaitingAdmin:   generic.StatusCancellationPendingAdmin,
	unrouted:        generic.StatusCancellationRequested,
	managerApproved: generic.StatusCancelled,
	approved:        generic.StatusCancelled,
	settle:          (*Service).restore,
	reject: func(tc *transitionContext) generic.RequestStatus {
		back := tc.req.StatusBeforeCancellation
		if back == "" {
			back = generic.StatusApprovedByAdmin
		}
		if tc.reason != "" {
			tc.req.CancellationReason = "Cancellation rejected: " + tc.reason
		} else {
			tc.req.CancellationReason = "Cancellation rejected."
		}
		tc.req.StatusBeforeCancellation = ""
		tc.auditReason = tc.req.CancellationReason
		return back
	},
}

// =============================================================================
// HANDLERS
// =============================================================================

type handler func(s *Service, tc *transitionContext) error

var handlers = map[generic.Action]handler{
	generic.ActionApproveManager: func(s *Service, tc *transitionContext) error {
		return leaveFlow.approveAsManager(s, tc)
	},
	generic.ActionApproveAdmin: func(s *Service, tc *transitionContext) error {
		return leaveFlow.complete(s, tc)
	},
	generic.ActionDeny: func(_ *Service, tc *transitionContext) error {
		leaveFlow.rejectWith(tc)
		return nil
	},
	generic.ActionCancel:              (*Service).withdraw,
	generic.ActionRequestCancellation: (*Service).openCancellation,
	generic.ActionApproveCancellation: func(s *Service, tc *transitionContext) error {
		if tc.req.Status == cancellationFlow.awaitingAdmin {
			return cancellationFlow.complete(s, tc)
		}
		return cancellationFlow.approveAsManager(s, tc)
	},
	generic.ActionRejectCancellation: func(_ *Service, tc *transitionContext) error {
		cancellationFlow.rejectWith(tc)
		return nil
	},
}

// withdraw cancels a request before anything was deducted.
func (s *Service) withdraw(tc *transitionContext) error {
	tc.req.Status = generic.StatusCancelled
	tc.req.CancelledBy = tc.caller.ID
	tc.req.CancelledAt = tc.stamp()
	tc.req.CancellationReason = withDefault(tc.reason, "Cancelled by employee.")
	tc.auditReason = tc.req.CancellationReason
	return nil
}

// openCancellation moves an approved request into the cancellation flow.
func (s *Service) openCancellation(tc *transitionContext) error {
	var decision BypassDecision
	if s.routeCancellations {
		decision = s.bypass.Evaluate(tc.ctx, tc.store, tc.emp)
	}
	tc.req.StatusBeforeCancellation = tc.req.Status
	tc.req.Status = cancellationFlow.route(decision, s.routeCancellations)
	tc.req.CancellationReason = tc.reason
	if decision.Bypass {
		tc.req.SkipReason = decision.Reason
	}
	tc.auditReason = withDefault(tc.reason, "Cancellation requested.")
	if decision.Bypass {
		tc.auditReason += " " + decision.Reason
	}
	return nil
}

// deduct is the settle step of leaveFlow: recompute the working days for
// the range and take them from the balance.
func (s *Service) deduct(tc *transitionContext) error {
	lt, err := s.requireLeaveType(tc.ctx, tc.store, tc.req.LeaveTypeID)
	if err != nil {
		return err
	}
	days, err := s.countWorkingDays(tc.ctx, tc.store, tc.emp, tc.req.Period())
	if err != nil {
		return err
	}
	if days == 0 {
		return &generic.NoWorkingDaysError{Start: tc.req.StartDate, End: tc.req.EndDate}
	}

	amount := decimal.NewFromInt(int64(days))
	key := balanceKeyFor(*tc.req, *lt)
	bal, err := s.ledger.ReserveOrFail(tc.ctx, tc.store, key, amount)
	if err != nil {
		return err
	}
	s.logger.Debug("balance reserved",
		zap.String("request_id", string(tc.req.ID)),
		zap.String("balance", key.String()),
		zap.String("amount", amount.String()),
		zap.String("remaining", bal.Remaining.String()),
	)
	s.metrics.BalanceAdjusted("reserve", amount)

	tc.req.AdminApprovedBy = tc.caller.ID
	tc.req.AdminApprovedAt = tc.stamp()
	tc.req.DenialReason = ""
	tc.req.DeductedDays = amount
	tc.auditReason = withDefault(tc.reason, "Approved by administrator.")
	return nil
}

// restore is the settle step of cancellationFlow: recompute the working
// days of the original range and give them back.
func (s *Service) restore(tc *transitionContext) error {
	lt, err := s.requireLeaveType(tc.ctx, tc.store, tc.req.LeaveTypeID)
	if err != nil {
		return err
	}
	days, err := s.countWorkingDays(tc.ctx, tc.store, tc.emp, tc.req.Period())
	if err != nil {
		return err
	}

	amount := decimal.NewFromInt(int64(days))
	key := balanceKeyFor(*tc.req, *lt)
	bal, err := s.ledger.Restore(tc.ctx, tc.store, key, amount)
	if err != nil {
		return err
	}
	s.logger.Debug("balance restored",
		zap.String("request_id", string(tc.req.ID)),
		zap.String("balance", key.String()),
		zap.String("amount", amount.String()),
		zap.String("remaining", bal.Remaining.String()),
	)
	s.metrics.BalanceAdjusted("restore", amount)

	tc.req.CancelledBy = tc.caller.ID
	tc.req.CancelledAt = tc.stamp()
	tc.req.CancellationReason = withDefault(tc.reason, "Cancellation approved.")
	tc.req.StatusBeforeCancellation = ""
	tc.auditReason = tc.req.CancellationReason
	return nil
}

func balanceKeyFor(req generic.LeaveRequest, lt generic.LeaveType) generic.BalanceKey {
	return generic.BalanceKey{
		EmployeeID:  req.EmployeeID,
		LeaveTypeID: lt.ID,
		Period:      generic.PeriodFor(lt.Cadence, req.StartDate),
	}
}

func withDefault(s, fallback string) string {
	if strings.TrimSpace(s) == "" {
		return fallback
	}
	return strings.TrimSpace(s)
}
