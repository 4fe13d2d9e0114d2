package leave

import (
	"github.com/shopspring/decimal"

	"github.com/warp/leave-engine/generic"
)

// Metrics receives workflow events. The metrics package provides the
// Prometheus implementation.
type Metrics interface {
	TransitionSucceeded(action generic.Action, from, to generic.RequestStatus)
	TransitionFailed(action generic.Action, kind generic.Kind)
	BalanceAdjusted(operation string, amount decimal.Decimal)
}

type noopMetrics struct{}

func (noopMetrics) TransitionSucceeded(generic.Action, generic.RequestStatus, generic.RequestStatus) {}
func (noopMetrics) TransitionFailed(generic.Action, generic.Kind)                                    {}
func (noopMetrics) BalanceAdjusted(string, decimal.Decimal)                                          {}
