/*
errors.go - Centralized error types for the leave engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Every failure the engine surfaces belongs to exactly one kind, and
  every structured error unwraps to that kind's sentinel so callers can
  branch with errors.Is and still read the computed details with
  errors.As.

ERROR KINDS:
  ValidationError          malformed or missing input
  AuthorizationError       caller lacks the role or relationship
  NotFoundError            unknown request, profile, leave type or balance
  NoWorkingDaysError       the range contains no working days
  InsufficientBalanceError remaining < required (carries both numbers)
  ConfigurationError       no default work schedule, operator must fix
  StateConflictError       action invalid for current status, lost races

USAGE:
  var insufficient *generic.InsufficientBalanceError
  if errors.As(err, &insufficient) {
      fmt.Println(insufficient.Remaining, insufficient.Required)
  }

  if errors.Is(err, generic.ErrStateConflict) {
      // refresh and show current status
  }

SEE ALSO:
  - ledger.go: Raises InsufficientBalanceError and NotFoundError
  - leave/service.go: Raises the state machine errors
  - api/errors.go: Maps kinds to HTTP status codes
*/
package generic

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	ErrValidation          = errors.New("validation failed")
	ErrUnauthorized        = errors.New("not authorized")
	ErrNotFound            = errors.New("not found")
	ErrNoWorkingDays       = errors.New("no working days in range")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrConfiguration       = errors.New("configuration error")
	ErrStateConflict       = errors.New("request is not in a valid state")

	// ErrConcurrentModification is returned by stores when an optimistic
	// version check fails. The service layer turns it into a StateConflictError.
	ErrConcurrentModification = errors.New("concurrent modification detected")

	// ErrDefaultScheduleExists is returned by stores asked to save a second
	// default work schedule.
	ErrDefaultScheduleExists = errors.New("a default work schedule already exists")
)

// Kind names an error category for transports and metrics.
type Kind string

const (
	KindValidation          Kind = "validation"
	KindAuthorization       Kind = "authorization"
	KindNotFound            Kind = "not_found"
	KindNoWorkingDays       Kind = "no_working_days"
	KindInsufficientBalance Kind = "insufficient_balance"
	KindConfiguration       Kind = "configuration"
	KindStateConflict       Kind = "state_conflict"
	KindInternal            Kind = "internal"
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Message
	}
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

type AuthorizationError struct {
	ActorID EmployeeID
	Action  string
	Reason  string
}

func (e *AuthorizationError) Error() string {
	return fmt.Sprintf("not authorized: %s cannot %s: %s", e.ActorID, e.Action, e.Reason)
}

func (e *AuthorizationError) Unwrap() error { return ErrUnauthorized }

type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Resource, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

type NoWorkingDaysError struct {
	Start TimePoint
	End   TimePoint
}

func (e *NoWorkingDaysError) Error() string {
	return fmt.Sprintf("range %s..%s does not contain any working days", e.Start, e.End)
}

func (e *NoWorkingDaysError) Unwrap() error { return ErrNoWorkingDays }

// InsufficientBalanceError provides details about a balance shortage.
type InsufficientBalanceError struct {
	EmployeeID  EmployeeID
	LeaveTypeID LeaveTypeID
	Period      BalancePeriod
	Remaining   decimal.Decimal
	Required    decimal.Decimal
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient leave balance: remaining %s, requested working days %s",
		e.Remaining, e.Required)
}

func (e *InsufficientBalanceError) Unwrap() error { return ErrInsufficientBalance }

type ConfigurationError struct {
	Message string
}

func (e *ConfigurationError) Error() string {
	return "configuration error: " + e.Message
}

func (e *ConfigurationError) Unwrap() error { return ErrConfiguration }

// StateConflictError carries the status the request was found in so
// callers can refresh.
type StateConflictError struct {
	RequestID RequestID
	Action    string
	Current   RequestStatus
}

func (e *StateConflictError) Error() string {
	return fmt.Sprintf("request %s is not in a valid state for %s (current status %s)",
		e.RequestID, e.Action, e.Current)
}

func (e *StateConflictError) Unwrap() error { return ErrStateConflict }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// KindOf classifies err. Unknown errors are KindInternal.
func KindOf(err error) Kind {
	switch {
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, ErrUnauthorized):
		return KindAuthorization
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrNoWorkingDays):
		return KindNoWorkingDays
	case errors.Is(err, ErrInsufficientBalance):
		return KindInsufficientBalance
	case errors.Is(err, ErrConfiguration):
		return KindConfiguration
	case errors.Is(err, ErrStateConflict), errors.Is(err, ErrConcurrentModification):
		return KindStateConflict
	default:
		return KindInternal
	}
}

// IsRetryable returns true if the error might succeed on retry.
// The engine never retries itself.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConcurrentModification)
}

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrNoWorkingDays) ||
		errors.Is(err, ErrInsufficientBalance)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
