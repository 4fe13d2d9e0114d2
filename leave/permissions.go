package leave

import (
	"fmt"
	"slices"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"

	"github.com/warp/leave-engine/generic"
)

// =============================================================================
// RELATIONSHIPS
// =============================================================================

// Relationship is how a caller relates to the request being acted on.
type Relationship string

const (
	RelOwner   Relationship = "owner"
	RelManager Relationship = "manager"
	RelAdmin   Relationship = "admin"
)

// relationshipsOf lists every relationship the caller holds to req.
func relationshipsOf(caller generic.Caller, req generic.LeaveRequest, emp generic.EmployeeProfile) []Relationship {
	var rels []Relationship
	if caller.ID != "" && caller.ID == req.EmployeeID {
		rels = append(rels, RelOwner)
	}
	if caller.ID != "" && emp.HasManager() && caller.ID == emp.ManagerID {
		rels = append(rels, RelManager)
	}
	if caller.Role.IsAdmin() {
		rels = append(rels, RelAdmin)
	}
	return rels
}

// =============================================================================
// PERMISSION TABLE
// =============================================================================

// Rule grants an action on requests in any of Statuses to callers holding
// any of Allowed.
type Rule struct {
	Action   generic.Action
	Statuses []generic.RequestStatus
	Allowed  []Relationship
}

// DefaultRules is the permission table of the leave workflow.
var DefaultRules = []Rule{
	{
		Action:   generic.ActionApproveManager,
		Statuses: []generic.RequestStatus{generic.StatusPendingManager},
		Allowed:  []Relationship{RelManager, RelAdmin},
	},
	{
		Action:   generic.ActionDeny,
		Statuses: []generic.RequestStatus{generic.StatusPendingManager, generic.StatusPendingAdmin},
		Allowed:  []Relationship{RelManager, RelAdmin},
	},
	{
		Action:   generic.ActionApproveAdmin,
		Statuses: []generic.RequestStatus{generic.StatusPendingAdmin, generic.StatusApprovedByManager},
		Allowed:  []Relationship{RelAdmin},
	},
	{
		Action:   generic.ActionCancel,
		Statuses: []generic.RequestStatus{generic.StatusPendingManager, generic.StatusApprovedByManager},
		Allowed:  []Relationship{RelOwner},
	},
	{
		Action:   generic.ActionRequestCancellation,
		Statuses: []generic.RequestStatus{generic.StatusApprovedByAdmin},
		Allowed:  []Relationship{RelOwner},
	},
	{
		Action:   generic.ActionApproveCancellation,
		Statuses: []generic.RequestStatus{generic.StatusCancellationRequested, generic.StatusCancellationPendingManager},
		Allowed:  []Relationship{RelManager, RelAdmin},
	},
	{
		Action:   generic.ActionApproveCancellation,
		Statuses: []generic.RequestStatus{generic.StatusCancellationPendingAdmin},
		Allowed:  []Relationship{RelAdmin},
	},
	{
		Action:   generic.ActionRejectCancellation,
		Statuses: []generic.RequestStatus{generic.StatusCancellationRequested, generic.StatusCancellationPendingManager},
		Allowed:  []Relationship{RelManager, RelAdmin},
	},
	{
		Action:   generic.ActionRejectCancellation,
		Statuses: []generic.RequestStatus{generic.StatusCancellationPendingAdmin},
		Allowed:  []Relationship{RelAdmin},
	},
}

// (relationship, status, action) triples, matched exactly.
const permissionModel = `[request_definition]
r = sub, obj, act

[policy_definition]
p = sub, obj, act

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = r.sub == p.sub && r.obj == p.obj && r.act == p.act
`

// PermissionTable answers "may a caller holding these relationships
// perform this action on a request in this status?".
type PermissionTable struct {
	enforcer *casbin.SyncedEnforcer
	statuses map[generic.Action][]generic.RequestStatus
	allowed  map[generic.Action][]Relationship
}

func NewPermissionTable(rules []Rule) (*PermissionTable, error) {
	m, err := model.NewModelFromString(permissionModel)
	if err != nil {
		return nil, fmt.Errorf("parse permission model: %w", err)
	}
	e, err := casbin.NewSyncedEnforcer(m)
	if err != nil {
		return nil, fmt.Errorf("create permission enforcer: %w", err)
	}

	pt := &PermissionTable{
		enforcer: e,
		statuses: make(map[generic.Action][]generic.RequestStatus),
		allowed:  make(map[generic.Action][]Relationship),
	}

	var policies [][]string
	for _, rule := range rules {
		if !rule.Action.Valid() {
			return nil, fmt.Errorf("permission rule for unknown action %q", rule.Action)
		}
		for _, status := range rule.Statuses {
			if !slices.Contains(pt.statuses[rule.Action], status) {
				pt.statuses[rule.Action] = append(pt.statuses[rule.Action], status)
			}
			for _, rel := range rule.Allowed {
				policies = append(policies, []string{string(rel), string(status), string(rule.Action)})
			}
		}
		for _, rel := range rule.Allowed {
			if !slices.Contains(pt.allowed[rule.Action], rel) {
				pt.allowed[rule.Action] = append(pt.allowed[rule.Action], rel)
			}
		}
	}
	if len(policies) > 0 {
		if _, err := e.AddPolicies(policies); err != nil {
			return nil, fmt.Errorf("load permission rules: %w", err)
		}
	}
	return pt, nil
}

// Handles reports whether action is defined for requests in status.
func (pt *PermissionTable) Handles(action generic.Action, status generic.RequestStatus) bool {
	return slices.Contains(pt.statuses[action], status)
}

// Statuses returns the statuses action may start from.
func (pt *PermissionTable) Statuses(action generic.Action) []generic.RequestStatus {
	return slices.Clone(pt.statuses[action])
}

// MayEverPerform reports whether any relationship in rels is granted
// action in at least one status.
func (pt *PermissionTable) MayEverPerform(rels []Relationship, action generic.Action) bool {
	for _, rel := range rels {
		if slices.Contains(pt.allowed[action], rel) {
			return true
		}
	}
	return false
}

// AdminOnly reports whether only administrators can ever perform action.
// Such actions are refused before any request is read.
func (pt *PermissionTable) AdminOnly(action generic.Action) bool {
	allowed := pt.allowed[action]
	return len(allowed) == 1 && allowed[0] == RelAdmin
}

// Allows evaluates the table for a single (action, status).
func (pt *PermissionTable) Allows(rels []Relationship, action generic.Action, status generic.RequestStatus) (bool, error) {
	for _, rel := range rels {
		ok, err := pt.enforcer.Enforce(string(rel), string(status), string(action))
		if err != nil {
			return false, fmt.Errorf("evaluate permission %s/%s/%s: %w", rel, status, action, err)
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}
