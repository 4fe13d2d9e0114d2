package generic

import (
	"context"
	"fmt"
	"time"
)

// =============================================================================
// AUDIT TRAIL - Append-only, one row per transition
// =============================================================================

// AuditEntry records a single status transition of a request.
// PreviousStatus is empty for the submission row.
type AuditEntry struct {
	ID             string
	RequestID      RequestID
	Action         Action
	PreviousStatus RequestStatus
	NewStatus      RequestStatus
	ActorID        EmployeeID
	Reason         string
	At             time.Time
}

// AuditRecorder appends audit rows inside the caller's transaction.
type AuditRecorder struct {
	now Clock
}

func NewAuditRecorder(now Clock) *AuditRecorder {
	if now == nil {
		now = time.Now
	}
	return &AuditRecorder{now: now}
}

// Record appends the transition prev -> req.Status performed by actor.
func (a *AuditRecorder) Record(ctx context.Context, store Store, req LeaveRequest, action Action, prev RequestStatus, actor EmployeeID, reason string) (AuditEntry, error) {
	entry := AuditEntry{
		ID:             NewID(),
		RequestID:      req.ID,
		Action:         action,
		PreviousStatus: prev,
		NewStatus:      req.Status,
		ActorID:        actor,
		Reason:         reason,
		At:             a.now().UTC(),
	}
	if err := store.AppendAudit(ctx, entry); err != nil {
		return AuditEntry{}, fmt.Errorf("append audit for request %s: %w", req.ID, err)
	}
	return entry, nil
}
