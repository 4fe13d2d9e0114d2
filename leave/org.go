package leave

import (
	"context"
	"fmt"

	"github.com/warp/leave-engine/generic"
)

// ensureAcyclic refuses a manager link that would make employeeID its own
// (indirect) manager. It walks up from managerID; a pre-existing loop
// elsewhere in the tree stops the walk instead of spinning.
func ensureAcyclic(ctx context.Context, store generic.Store, employeeID, managerID generic.EmployeeID) error {
	if managerID == "" {
		return nil
	}
	if managerID == employeeID {
		return &generic.ValidationError{Field: "managerId", Message: "an employee cannot manage themselves"}
	}

	visited := make(map[generic.EmployeeID]bool)
	for cur := managerID; cur != ""; {
		if cur == employeeID {
			return &generic.ValidationError{
				Field:   "managerId",
				Message: fmt.Sprintf("%s reports to %s, assignment would create a cycle", managerID, employeeID),
			}
		}
		if visited[cur] {
			return nil
		}
		visited[cur] = true

		emp, err := store.GetEmployee(ctx, cur)
		if err != nil {
			return fmt.Errorf("load employee %s: %w", cur, err)
		}
		if emp == nil {
			if cur == managerID {
				return &generic.NotFoundError{Resource: "manager profile", ID: string(managerID)}
			}
			return nil
		}
		cur = emp.ManagerID
	}
	return nil
}
