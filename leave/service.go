/*
Package leave implements the leave request state machine.

PURPOSE:
  Service is the entry point for every inbound action on a leave request:
  submit, approve, deny, cancel, request cancellation, approve or reject a
  cancellation. Each action is one unit of work on a generic.TxStore:

    1. validate input (no store access)
    2. refuse admin-only actions for non-admins (no store access)
    3. WithTx:
         re-read the request          (never trust the caller's copy)
         resolve caller relationships and evaluate the permission table
         check the current status     (StateConflictError otherwise)
         run the action handler       (calendar, ledger, bypass policy)
         write the request            (version-checked)
         append the audit row
    4. commit, or roll everything back

  A failure anywhere in step 3 leaves no partial status change and no
  partial ledger mutation.

CONCURRENCY:
  Two callers racing on the same request are serialized by the store. The
  loser re-reads the post-transition status and fails the status check,
  or fails the version check on write; both surface as StateConflictError.
  The engine never retries.

EXAMPLE:
  svc, err := leave.NewService(store, leave.WithLogger(logger))
  req, err := svc.SubmitRequest(ctx, caller, "annual", start, end)
  req, err = svc.Transition(ctx, admin, req.ID, generic.ActionApproveAdmin, "")

SEE ALSO:
  - workflow.go: Action handlers and the dual-approval flows
  - permissions.go: Permission table
  - bypass.go: Manager-bypass policy
  - schedule.go: Work schedule resolution
*/
package leave

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/warp/leave-engine/generic"
)

// Service runs the leave workflow on top of a transactional store.
type Service struct {
	store     generic.TxStore
	ledger    *generic.BalanceLedger
	audit     *generic.AuditRecorder
	schedules ScheduleProvider
	bypass    *BypassPolicy
	perms     *PermissionTable
	metrics   Metrics
	logger    *zap.Logger
	now       generic.Clock

	rules              []Rule
	routeCancellations bool
}

type Option func(*Service)

// WithLogger sets the logger; the service logs under "leave.service".
func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger.Named("leave.service")
		}
	}
}

// WithClock replaces time.Now. "Today" for the bypass policy and lazy
// balance periods both come from it.
func WithClock(now generic.Clock) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

func WithMetrics(m Metrics) Option {
	return func(s *Service) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithCancellationRouting controls whether cancellation requests are
// routed through the bypass policy (CANCELLATION_PENDING_MANAGER or
// CANCELLATION_PENDING_ADMIN) or parked in CANCELLATION_REQUESTED.
func WithCancellationRouting(enabled bool) Option {
	return func(s *Service) { s.routeCancellations = enabled }
}

// WithPermissionRules replaces DefaultRules.
func WithPermissionRules(rules []Rule) Option {
	return func(s *Service) { s.rules = rules }
}

func NewService(store generic.TxStore, opts ...Option) (*Service, error) {
	s := &Service{
		store:              store,
		metrics:            noopMetrics{},
		logger:             zap.L().Named("leave.service"),
		now:                time.Now,
		rules:              DefaultRules,
		routeCancellations: true,
	}
	for _, opt := range opts {
		opt(s)
	}

	perms, err := NewPermissionTable(s.rules)
	if err != nil {
		return nil, err
	}
	s.perms = perms
	s.ledger = generic.NewBalanceLedger(s.now)
	s.audit = generic.NewAuditRecorder(s.now)
	s.bypass = NewBypassPolicy(s.now, s.logger)
	return s, nil
}

// =============================================================================
// SUBMIT
// =============================================================================

// SubmitRequest files a leave request for the caller's own profile.
// Nothing is deducted; the balance is only checked.
func (s *Service) SubmitRequest(ctx context.Context, caller generic.Caller, leaveTypeID generic.LeaveTypeID, start, end generic.TimePoint) (*generic.LeaveRequest, error) {
	s.logger.Debug("submit leave requested",
		zap.String("employee_id", string(caller.ID)),
		zap.String("leave_type_id", string(leaveTypeID)),
		zap.String("start_date", start.String()),
		zap.String("end_date", end.String()),
	)

	period := generic.Period{Start: start, End: end}
	if err := s.validateSubmit(caller, leaveTypeID, period); err != nil {
		s.logger.Warn("submit leave validation failed", zap.Error(err))
		s.metrics.TransitionFailed(generic.ActionSubmit, generic.KindOf(err))
		return nil, err
	}

	var created generic.LeaveRequest
	err := s.store.WithTx(ctx, func(store generic.Store) error {
		emp, err := s.requireEmployee(ctx, store, caller.ID)
		if err != nil {
			return err
		}
		lt, err := s.requireLeaveType(ctx, store, leaveTypeID)
		if err != nil {
			return err
		}

		days, err := s.countWorkingDays(ctx, store, *emp, period)
		if err != nil {
			return err
		}
		if days == 0 {
			return &generic.NoWorkingDaysError{Start: start, End: end}
		}

		overlapping, err := store.ListRequests(ctx, generic.RequestFilter{
			EmployeeIDs: []generic.EmployeeID{emp.ID},
			Statuses:    activeStatuses(),
			Overlapping: &period,
		})
		if err != nil {
			return fmt.Errorf("check overlapping requests: %w", err)
		}
		if len(overlapping) > 0 {
			return &generic.ValidationError{
				Field:   "dates",
				Message: fmt.Sprintf("overlaps existing request %s (%s)", overlapping[0].ID, overlapping[0].Status),
			}
		}

		bal, err := s.ledger.GetOrCreate(ctx, store, emp.ID, *lt, generic.PeriodFor(lt.Cadence, start))
		if err != nil {
			return err
		}
		if err := s.ledger.CheckSufficient(*bal, decimal.NewFromInt(int64(days))); err != nil {
			return err
		}

		decision := s.bypass.Evaluate(ctx, store, *emp)
		now := s.now().UTC()
		created = generic.LeaveRequest{
			ID:            generic.RequestID(generic.NewID()),
			EmployeeID:    emp.ID,
			LeaveTypeID:   lt.ID,
			StartDate:     start,
			EndDate:       end,
			Status:        leaveFlow.route(decision, true),
			SkipReason:    decision.Reason,
			RequestedDays: days,
			DeductedDays:  decimal.Zero,
			Version:       1,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if err := store.CreateRequest(ctx, created); err != nil {
			return fmt.Errorf("create request: %w", err)
		}

		_, err = s.audit.Record(ctx, store, created, generic.ActionSubmit, "", caller.ID, withDefault(decision.Reason, "Submitted."))
		return err
	})
	if err != nil {
		s.logFailure("submit leave failed", generic.ActionSubmit, err,
			zap.String("employee_id", string(caller.ID)),
		)
		return nil, err
	}

	s.metrics.TransitionSucceeded(generic.ActionSubmit, "", created.Status)
	s.logger.Info("submit leave success",
		zap.String("request_id", string(created.ID)),
		zap.String("employee_id", string(created.EmployeeID)),
		zap.String("status", string(created.Status)),
		zap.Int("working_days", created.RequestedDays),
	)
	return &created, nil
}

func (s *Service) validateSubmit(caller generic.Caller, leaveTypeID generic.LeaveTypeID, period generic.Period) error {
	if caller.ID == "" {
		return &generic.AuthorizationError{Action: string(generic.ActionSubmit), Reason: "caller identity is required"}
	}
	if leaveTypeID == "" {
		return &generic.ValidationError{Field: "leaveTypeId", Message: "leave type is required"}
	}
	return period.Validate()
}

// =============================================================================
// TRANSITION
// =============================================================================

// Transition applies action to the request on behalf of caller.
func (s *Service) Transition(ctx context.Context, caller generic.Caller, requestID generic.RequestID, action generic.Action, reason string) (*generic.LeaveRequest, error) {
	reason = strings.TrimSpace(reason)
	s.logger.Debug("transition requested",
		zap.String("request_id", string(requestID)),
		zap.String("actor_id", string(caller.ID)),
		zap.String("role", string(caller.Role)),
		zap.String("action", string(action)),
	)

	if err := s.validateTransition(caller, requestID, action, reason); err != nil {
		s.logger.Warn("transition rejected", zap.String("action", string(action)), zap.Error(err))
		s.metrics.TransitionFailed(action, generic.KindOf(err))
		return nil, err
	}

	var (
		result generic.LeaveRequest
		prev   generic.RequestStatus
	)
	err := s.store.WithTx(ctx, func(store generic.Store) error {
		req, err := s.requireRequest(ctx, store, requestID)
		if err != nil {
			return err
		}
		emp, err := s.requireEmployee(ctx, store, req.EmployeeID)
		if err != nil {
			return err
		}

		if err := s.authorize(caller, *req, *emp, action); err != nil {
			return err
		}

		prev = req.Status
		tc := &transitionContext{
			ctx:    ctx,
			store:  store,
			caller: caller,
			req:    req,
			emp:    *emp,
			reason: reason,
			now:    s.now().UTC(),
		}
		if err := handlers[action](s, tc); err != nil {
			return err
		}

		req.Version++
		req.UpdatedAt = tc.now
		if err := store.UpdateRequest(ctx, *req); err != nil {
			if errors.Is(err, generic.ErrConcurrentModification) {
				return s.conflict(ctx, store, requestID, action, prev)
			}
			return fmt.Errorf("update request %s: %w", requestID, err)
		}

		if _, err := s.audit.Record(ctx, store, *req, action, prev, caller.ID, tc.auditReason); err != nil {
			return err
		}
		result = *req
		return nil
	})
	if err != nil {
		if errors.Is(err, generic.ErrConcurrentModification) {
			err = &generic.StateConflictError{RequestID: requestID, Action: string(action), Current: prev}
		}
		s.logFailure("transition failed", action, err,
			zap.String("request_id", string(requestID)),
			zap.String("actor_id", string(caller.ID)),
		)
		return nil, err
	}

	s.metrics.TransitionSucceeded(action, prev, result.Status)
	s.logger.Info("transition success",
		zap.String("request_id", string(result.ID)),
		zap.String("action", string(action)),
		zap.String("from", string(prev)),
		zap.String("to", string(result.Status)),
		zap.String("actor_id", string(caller.ID)),
	)
	return &result, nil
}

func (s *Service) validateTransition(caller generic.Caller, requestID generic.RequestID, action generic.Action, reason string) error {
	if !action.Valid() {
		return &generic.ValidationError{Field: "action", Message: fmt.Sprintf("unknown action %q", action)}
	}
	if requestID == "" {
		return &generic.ValidationError{Field: "requestId", Message: "request id is required"}
	}
	if caller.ID == "" {
		return &generic.AuthorizationError{Action: string(action), Reason: "caller identity is required"}
	}
	if action == generic.ActionDeny && reason == "" {
		return &generic.ValidationError{Field: "reason", Message: "a denial reason is required"}
	}
	if s.perms.AdminOnly(action) && !caller.Role.IsAdmin() {
		return &generic.AuthorizationError{ActorID: caller.ID, Action: string(action), Reason: "administrator role required"}
	}
	return nil
}

// authorize runs the permission table against the freshly read request.
// A caller with no relationship that could ever perform the action is
// refused before the status is looked at.
func (s *Service) authorize(caller generic.Caller, req generic.LeaveRequest, emp generic.EmployeeProfile, action generic.Action) error {
	rels := relationshipsOf(caller, req, emp)
	if !s.perms.MayEverPerform(rels, action) {
		return &generic.AuthorizationError{ActorID: caller.ID, Action: string(action), Reason: "no permitted relationship to this request"}
	}
	if !s.perms.Handles(action, req.Status) {
		return &generic.StateConflictError{RequestID: req.ID, Action: string(action), Current: req.Status}
	}
	ok, err := s.perms.Allows(rels, action, req.Status)
	if err != nil {
		return err
	}
	if !ok {
		return &generic.AuthorizationError{
			ActorID: caller.ID,
			Action:  string(action),
			Reason:  fmt.Sprintf("not permitted while request is %s", req.Status),
		}
	}
	return nil
}

// conflict reports a lost race with the status the winner left behind.
func (s *Service) conflict(ctx context.Context, store generic.Store, id generic.RequestID, action generic.Action, fallback generic.RequestStatus) error {
	current := fallback
	if req, err := store.GetRequest(ctx, id); err == nil && req != nil {
		current = req.Status
	}
	return &generic.StateConflictError{RequestID: id, Action: string(action), Current: current}
}

// ShouldBypassManager is the boolean form of the bypass policy for the
// given employee. Any lookup failure answers false.
func (s *Service) ShouldBypassManager(ctx context.Context, employeeID generic.EmployeeID) bool {
	var decision BypassDecision
	err := s.store.WithTx(ctx, func(store generic.Store) error {
		emp, err := s.requireEmployee(ctx, store, employeeID)
		if err != nil {
			return err
		}
		decision = s.bypass.Evaluate(ctx, store, *emp)
		return nil
	})
	if err != nil {
		s.logger.Warn("bypass lookup failed", zap.String("employee_id", string(employeeID)), zap.Error(err))
		return false
	}
	return decision.Bypass
}

// =============================================================================
// HELPERS
// =============================================================================

func (s *Service) requireRequest(ctx context.Context, store generic.Store, id generic.RequestID) (*generic.LeaveRequest, error) {
	req, err := store.GetRequest(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load request %s: %w", id, err)
	}
	if req == nil {
		return nil, &generic.NotFoundError{Resource: "leave request", ID: string(id)}
	}
	return req, nil
}

func (s *Service) requireEmployee(ctx context.Context, store generic.Store, id generic.EmployeeID) (*generic.EmployeeProfile, error) {
	emp, err := store.GetEmployee(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load employee %s: %w", id, err)
	}
	if emp == nil {
		return nil, &generic.NotFoundError{Resource: "employee profile", ID: string(id)}
	}
	return emp, nil
}

func (s *Service) requireLeaveType(ctx context.Context, store generic.Store, id generic.LeaveTypeID) (*generic.LeaveType, error) {
	lt, err := store.GetLeaveType(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load leave type %s: %w", id, err)
	}
	if lt == nil {
		return nil, &generic.NotFoundError{Resource: "leave type", ID: string(id)}
	}
	return lt, nil
}

// workingDates resolves schedule and holidays for emp and returns the
// working dates of period.
func (s *Service) workingDates(ctx context.Context, store generic.Store, emp generic.EmployeeProfile, period generic.Period) ([]generic.TimePoint, error) {
	schedule, err := s.schedules.Resolve(ctx, store, emp)
	if err != nil {
		return nil, err
	}
	holidays, err := store.ListHolidays(ctx, generic.HolidayFilter{From: period.Start, To: period.End, Employee: &emp})
	if err != nil {
		return nil, fmt.Errorf("load holidays %s: %w", period, err)
	}

	var dates []generic.TimePoint
	for d := range generic.WorkingDays(period.Start, period.End, *schedule, generic.NewHolidaySet(holidays)) {
		dates = append(dates, d)
	}
	return dates, nil
}

func (s *Service) countWorkingDays(ctx context.Context, store generic.Store, emp generic.EmployeeProfile, period generic.Period) (int, error) {
	dates, err := s.workingDates(ctx, store, emp, period)
	if err != nil {
		return 0, err
	}
	return len(dates), nil
}

func (s *Service) logFailure(msg string, action generic.Action, err error, fields ...zap.Field) {
	kind := generic.KindOf(err)
	s.metrics.TransitionFailed(action, kind)
	fields = append(fields, zap.String("action", string(action)), zap.String("kind", string(kind)), zap.Error(err))
	if kind == generic.KindInternal || kind == generic.KindConfiguration {
		s.logger.Error(msg, fields...)
		return
	}
	s.logger.Warn(msg, fields...)
}

func activeStatuses() []generic.RequestStatus {
	var active []generic.RequestStatus
	for _, st := range generic.AllStatuses {
		if st.Active() {
			active = append(active, st)
		}
	}
	return active
}
