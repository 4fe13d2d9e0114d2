package leave

import (
	"context"
	"fmt"

	"github.com/warp/leave-engine/generic"
)

// ScheduleProvider resolves the weekly working pattern for an employee.
type ScheduleProvider struct{}

// Resolve returns the employee's own schedule, else the single default
// schedule. No schedule at all is a ConfigurationError: nothing can be
// counted and the enclosing transition must abort before it writes.
func (ScheduleProvider) Resolve(ctx context.Context, store generic.Store, emp generic.EmployeeProfile) (*generic.WorkSchedule, error) {
	if emp.WorkScheduleID != "" {
		ws, err := store.GetWorkSchedule(ctx, emp.WorkScheduleID)
		if err != nil {
			return nil, fmt.Errorf("load work schedule %s: %w", emp.WorkScheduleID, err)
		}
		if ws != nil {
			return ws, nil
		}
	}

	def, err := store.GetDefaultWorkSchedule(ctx)
	if err != nil {
		return nil, fmt.Errorf("load default work schedule: %w", err)
	}
	if def == nil {
		return nil, &generic.ConfigurationError{Message: "no default work schedule found"}
	}
	return def, nil
}

func validateSchedule(ws generic.WorkSchedule) error {
	if ws.Name == "" {
		return &generic.ValidationError{Field: "name", Message: "schedule name is required"}
	}
	if ws.WorkingWeekdays() == 0 {
		return &generic.ValidationError{Field: "days", Message: "a schedule needs at least one working day"}
	}
	return nil
}
