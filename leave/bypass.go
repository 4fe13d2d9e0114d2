package leave

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/warp/leave-engine/generic"
)

const (
	ReasonNoManager      = "No manager assigned."
	ReasonManagerOnLeave = "Manager is on leave."
)

// BypassDecision says whether the manager stage is skipped, and why.
type BypassDecision struct {
	Bypass bool
	Reason string
}

// BypassPolicy decides whether an approval routes through the direct
// manager or goes straight to an administrator.
type BypassPolicy struct {
	now    generic.Clock
	logger *zap.Logger
}

func NewBypassPolicy(now generic.Clock, logger *zap.Logger) *BypassPolicy {
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BypassPolicy{now: now, logger: logger}
}

// Evaluate bypasses when the employee has no manager or when the manager
// has an APPROVED_BY_ADMIN request covering today. Lookup failures fail
// closed: the manager stage is kept.
func (p *BypassPolicy) Evaluate(ctx context.Context, store generic.Store, emp generic.EmployeeProfile) BypassDecision {
	if !emp.HasManager() {
		return BypassDecision{Bypass: true, Reason: ReasonNoManager}
	}

	today := generic.DateOf(p.now())
	leaves, err := store.ListRequests(ctx, generic.RequestFilter{
		EmployeeIDs: []generic.EmployeeID{emp.ManagerID},
		Statuses:    []generic.RequestStatus{generic.StatusApprovedByAdmin},
		Overlapping: &generic.Period{Start: today, End: today},
	})
	if err != nil {
		p.logger.Warn("manager leave lookup failed, keeping manager stage",
			zap.String("employee_id", string(emp.ID)),
			zap.String("manager_id", string(emp.ManagerID)),
			zap.Error(err),
		)
		return BypassDecision{}
	}
	if len(leaves) > 0 {
		return BypassDecision{Bypass: true, Reason: ReasonManagerOnLeave}
	}
	return BypassDecision{}
}
