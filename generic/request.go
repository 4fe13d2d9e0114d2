/*
request.go - Leave request record and lifecycle vocabulary

PURPOSE:
  Defines the LeaveRequest row, the status enum it moves through and the
  actions that move it. The transition rules themselves live in the leave
  package; this file only owns the vocabulary and the invariants that are
  true of any single row.

REQUEST FLOW:
  ┌──────────────────────────────────────────────────────────────────────┐
  │                                                                      │
  │  submit ──▶ PENDING_MANAGER ──approve──▶ APPROVED_BY_MANAGER ──┐     │
  │       │          │                                              │     │
  │       │ (bypass) └──deny──▶ DENIED                              │     │
  │       ▼                                                         ▼     │
  │  PENDING_ADMIN ─────────────approve (deducts)────▶ APPROVED_BY_ADMIN │
  │                                                         │            │
  │                                       request-cancellation            │
  │                                                         ▼            │
  │        CANCELLATION_{REQUESTED,PENDING_MANAGER,PENDING_ADMIN}        │
  │                  │ approve (restores)        │ reject               │
  │                  ▼                           ▼                       │
  │              CANCELLED            status before cancellation         │
  │                                                                      │
  └──────────────────────────────────────────────────────────────────────┘

TERMINAL STATES:
  DENIED and CANCELLED accept no further transitions. Rows are never
  deleted; the audit trail keeps growing.

SEE ALSO:
  - leave/workflow.go: Transition rules
  - leave/permissions.go: Who may perform which action in which status
  - audit.go: One audit row per transition
*/
package generic

import (
	"slices"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// STATUS
// =============================================================================

type RequestStatus string

const (
	StatusPendingManager             RequestStatus = "PENDING_MANAGER"
	StatusPendingAdmin               RequestStatus = "PENDING_ADMIN"
	StatusApprovedByManager          RequestStatus = "APPROVED_BY_MANAGER"
	StatusApprovedByAdmin            RequestStatus = "APPROVED_BY_ADMIN"
	StatusDenied                     RequestStatus = "DENIED"
	StatusCancelled                  RequestStatus = "CANCELLED"
	StatusCancellationRequested      RequestStatus = "CANCELLATION_REQUESTED"
	StatusCancellationPendingManager RequestStatus = "CANCELLATION_PENDING_MANAGER"
	StatusCancellationPendingAdmin   RequestStatus = "CANCELLATION_PENDING_ADMIN"
)

// AllStatuses lists every status in lifecycle order.
var AllStatuses = []RequestStatus{
	StatusPendingManager,
	StatusPendingAdmin,
	StatusApprovedByManager,
	StatusApprovedByAdmin,
	StatusDenied,
	StatusCancelled,
	StatusCancellationRequested,
	StatusCancellationPendingManager,
	StatusCancellationPendingAdmin,
}

func (s RequestStatus) Valid() bool {
	return slices.Contains(AllStatuses, s)
}

func (s RequestStatus) IsTerminal() bool {
	return s == StatusDenied || s == StatusCancelled
}

// IsCancellationPending reports whether the request sits in the
// cancellation sub-workflow.
func (s RequestStatus) IsCancellationPending() bool {
	return s == StatusCancellationRequested ||
		s == StatusCancellationPendingManager ||
		s == StatusCancellationPendingAdmin
}

// Active reports whether the request still holds (or may hold) days.
func (s RequestStatus) Active() bool {
	return !s.IsTerminal()
}

// =============================================================================
// ACTIONS
// =============================================================================

type Action string

const (
	ActionApproveManager      Action = "APPROVE_MANAGER"
	ActionApproveAdmin        Action = "APPROVE_ADMIN"
	ActionDeny                Action = "DENY"
	ActionCancel              Action = "CANCEL"
	ActionRequestCancellation Action = "REQUEST_CANCELLATION"
	ActionApproveCancellation Action = "APPROVE_CANCELLATION"
	ActionRejectCancellation  Action = "REJECT_CANCELLATION"

	// ActionSubmit only appears in audit rows and metrics.
	ActionSubmit Action = "SUBMIT"
)

var AllActions = []Action{
	ActionApproveManager,
	ActionApproveAdmin,
	ActionDeny,
	ActionCancel,
	ActionRequestCancellation,
	ActionApproveCancellation,
	ActionRejectCancellation,
}

func (a Action) Valid() bool {
	return slices.Contains(AllActions, a)
}

// =============================================================================
// LEAVE REQUEST
// =============================================================================

type LeaveRequest struct {
	ID          RequestID
	EmployeeID  EmployeeID
	LeaveTypeID LeaveTypeID
	StartDate   TimePoint
	EndDate     TimePoint
	Status      RequestStatus

	DenialReason             string
	SkipReason               string
	CancellationReason       string
	StatusBeforeCancellation RequestStatus

	ManagerApprovedBy EmployeeID
	ManagerApprovedAt *time.Time
	AdminApprovedBy   EmployeeID
	AdminApprovedAt   *time.Time
	DeniedBy          EmployeeID
	DeniedAt          *time.Time
	CancelledBy       EmployeeID
	CancelledAt       *time.Time

	// RequestedDays is the count at submission; DeductedDays the count
	// taken from the balance at final approval. Both are informational,
	// transitions always recompute.
	RequestedDays int
	DeductedDays  decimal.Decimal

	// Version increments on every update and guards concurrent writers.
	Version   int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Period returns the requested date range.
func (r LeaveRequest) Period() Period {
	return Period{Start: r.StartDate, End: r.EndDate}
}

// RequestFilter narrows ListRequests. Zero fields match everything.
type RequestFilter struct {
	EmployeeIDs []EmployeeID
	Statuses    []RequestStatus
	// Overlapping restricts to requests sharing at least one day with it.
	Overlapping *Period
}

// Matches evaluates the filter in memory.
func (f RequestFilter) Matches(r LeaveRequest) bool {
	if len(f.EmployeeIDs) > 0 && !slices.Contains(f.EmployeeIDs, r.EmployeeID) {
		return false
	}
	if len(f.Statuses) > 0 && !slices.Contains(f.Statuses, r.Status) {
		return false
	}
	if f.Overlapping != nil && !f.Overlapping.Overlaps(r.Period()) {
		return false
	}
	return true
}
