// Package store provides Store implementations.
package store

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sort"
	"sync"

	"github.com/warp/leave-engine/generic"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Memory is a TxStore kept in maps. Every unit of work holds the mutex
// for its whole duration, so units are fully serialized.
type Memory struct {
	mu    sync.Mutex
	state memoryState
}

type memoryState struct {
	employees  map[generic.EmployeeID]generic.EmployeeProfile
	leaveTypes map[generic.LeaveTypeID]generic.LeaveType
	schedules  map[generic.ScheduleID]generic.WorkSchedule
	holidays   map[generic.HolidayID]generic.Holiday
	requests   map[generic.RequestID]generic.LeaveRequest
	balances   map[generic.BalanceKey]generic.LeaveBalance
	audit      []generic.AuditEntry
}

func NewMemory() *Memory {
	return &Memory{state: memoryState{
		employees:  make(map[generic.EmployeeID]generic.EmployeeProfile),
		leaveTypes: make(map[generic.LeaveTypeID]generic.LeaveType),
		schedules:  make(map[generic.ScheduleID]generic.WorkSchedule),
		holidays:   make(map[generic.HolidayID]generic.Holiday),
		requests:   make(map[generic.RequestID]generic.LeaveRequest),
		balances:   make(map[generic.BalanceKey]generic.LeaveBalance),
	}}
}

// WithTx executes fn within a transaction.
// For memory store, this is simulated with a snapshot + rollback on error.
func (m *Memory) WithTx(ctx context.Context, fn func(generic.Store) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	snapshot := m.state.clone()
	view := &memoryView{state: &m.state}
	if err := fn(view); err != nil {
		m.state = snapshot
		return err
	}
	return nil
}

// Rows are plain values, so copying the maps is a full snapshot.
func (s memoryState) clone() memoryState {
	return memoryState{
		employees:  maps.Clone(s.employees),
		leaveTypes: maps.Clone(s.leaveTypes),
		schedules:  maps.Clone(s.schedules),
		holidays:   maps.Clone(s.holidays),
		requests:   maps.Clone(s.requests),
		balances:   maps.Clone(s.balances),
		audit:      slices.Clone(s.audit),
	}
}

// =============================================================================
// TRANSACTION VIEW
// =============================================================================

type memoryView struct {
	state *memoryState
}

// Employees

func (v *memoryView) GetEmployee(_ context.Context, id generic.EmployeeID) (*generic.EmployeeProfile, error) {
	emp, ok := v.state.employees[id]
	if !ok {
		return nil, nil
	}
	return &emp, nil
}

func (v *memoryView) SaveEmployee(_ context.Context, emp generic.EmployeeProfile) error {
	v.state.employees[emp.ID] = emp
	return nil
}

func (v *memoryView) ListReports(_ context.Context, managerID generic.EmployeeID) ([]generic.EmployeeProfile, error) {
	var reports []generic.EmployeeProfile
	for _, emp := range v.state.employees {
		if emp.ManagerID == managerID {
			reports = append(reports, emp)
		}
	}
	sort.Slice(reports, func(i, j int) bool { return reports[i].ID < reports[j].ID })
	return reports, nil
}

// Leave types

func (v *memoryView) GetLeaveType(_ context.Context, id generic.LeaveTypeID) (*generic.LeaveType, error) {
	lt, ok := v.state.leaveTypes[id]
	if !ok {
		return nil, nil
	}
	return &lt, nil
}

func (v *memoryView) ListLeaveTypes(_ context.Context) ([]generic.LeaveType, error) {
	types := slices.Collect(maps.Values(v.state.leaveTypes))
	sort.Slice(types, func(i, j int) bool { return types[i].ID < types[j].ID })
	return types, nil
}

func (v *memoryView) SaveLeaveType(_ context.Context, lt generic.LeaveType) error {
	v.state.leaveTypes[lt.ID] = lt
	return nil
}

// Work schedules

func (v *memoryView) GetWorkSchedule(_ context.Context, id generic.ScheduleID) (*generic.WorkSchedule, error) {
	ws, ok := v.state.schedules[id]
	if !ok {
		return nil, nil
	}
	return &ws, nil
}

func (v *memoryView) GetDefaultWorkSchedule(_ context.Context) (*generic.WorkSchedule, error) {
	for _, ws := range v.state.schedules {
		if ws.IsDefault {
			return &ws, nil
		}
	}
	return nil, nil
}

func (v *memoryView) SaveWorkSchedule(_ context.Context, ws generic.WorkSchedule) error {
	if ws.IsDefault {
		for id, existing := range v.state.schedules {
			if existing.IsDefault && id != ws.ID {
				return fmt.Errorf("schedule %s is the default: %w", id, generic.ErrDefaultScheduleExists)
			}
		}
	}
	v.state.schedules[ws.ID] = ws
	return nil
}

// Holidays

func (v *memoryView) GetHoliday(_ context.Context, id generic.HolidayID) (*generic.Holiday, error) {
	h, ok := v.state.holidays[id]
	if !ok {
		return nil, nil
	}
	return &h, nil
}

func (v *memoryView) ListHolidays(_ context.Context, filter generic.HolidayFilter) ([]generic.Holiday, error) {
	var result []generic.Holiday
	for _, h := range v.state.holidays {
		if filter.Matches(h) {
			result = append(result, h)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Date.Before(result[j].Date) })
	return result, nil
}

func (v *memoryView) SaveHoliday(_ context.Context, h generic.Holiday) error {
	v.state.holidays[h.ID] = h
	return nil
}

func (v *memoryView) DeleteHoliday(_ context.Context, id generic.HolidayID) error {
	delete(v.state.holidays, id)
	return nil
}

// Requests

func (v *memoryView) GetRequest(_ context.Context, id generic.RequestID) (*generic.LeaveRequest, error) {
	r, ok := v.state.requests[id]
	if !ok {
		return nil, nil
	}
	return &r, nil
}

func (v *memoryView) ListRequests(_ context.Context, filter generic.RequestFilter) ([]generic.LeaveRequest, error) {
	var result []generic.LeaveRequest
	for _, r := range v.state.requests {
		if filter.Matches(r) {
			result = append(result, r)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].StartDate.Equal(result[j].StartDate) {
			return result[i].StartDate.Before(result[j].StartDate)
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

func (v *memoryView) CreateRequest(_ context.Context, r generic.LeaveRequest) error {
	if _, exists := v.state.requests[r.ID]; exists {
		return fmt.Errorf("request %s already exists", r.ID)
	}
	v.state.requests[r.ID] = r
	return nil
}

func (v *memoryView) UpdateRequest(_ context.Context, r generic.LeaveRequest) error {
	current, ok := v.state.requests[r.ID]
	if !ok || current.Version != r.Version-1 {
		return generic.ErrConcurrentModification
	}
	v.state.requests[r.ID] = r
	return nil
}

// Balances

func (v *memoryView) GetBalance(_ context.Context, key generic.BalanceKey) (*generic.LeaveBalance, error) {
	b, ok := v.state.balances[key]
	if !ok {
		return nil, nil
	}
	return &b, nil
}

func (v *memoryView) ListBalances(_ context.Context, employeeID generic.EmployeeID) ([]generic.LeaveBalance, error) {
	var result []generic.LeaveBalance
	for _, b := range v.state.balances {
		if b.EmployeeID == employeeID {
			result = append(result, b)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		a, b := result[i], result[j]
		if a.LeaveTypeID != b.LeaveTypeID {
			return a.LeaveTypeID < b.LeaveTypeID
		}
		if a.Period.Year != b.Period.Year {
			return a.Period.Year < b.Period.Year
		}
		return a.Period.Month < b.Period.Month
	})
	return result, nil
}

func (v *memoryView) CreateBalance(_ context.Context, b generic.LeaveBalance) error {
	if _, exists := v.state.balances[b.Key()]; exists {
		return fmt.Errorf("balance %s already exists: %w", b.Key(), generic.ErrConcurrentModification)
	}
	v.state.balances[b.Key()] = b
	return nil
}

func (v *memoryView) UpdateBalance(_ context.Context, b generic.LeaveBalance) error {
	current, ok := v.state.balances[b.Key()]
	if !ok || current.Version != b.Version-1 {
		return generic.ErrConcurrentModification
	}
	v.state.balances[b.Key()] = b
	return nil
}

func (v *memoryView) BulkSetBalances(_ context.Context, u generic.BulkBalanceUpdate) (int, error) {
	n := 0
	for key, b := range v.state.balances {
		if b.LeaveTypeID != u.LeaveTypeID || b.Period.Year != u.Year {
			continue
		}
		if b.IsManualOverride && !u.ApplyToAll {
			continue
		}
		b.Total = u.Total
		b.Remaining = u.Total
		b.IsManualOverride = false
		b.Version++
		b.UpdatedAt = u.At
		v.state.balances[key] = b
		n++
	}
	return n, nil
}

// Audit

func (v *memoryView) AppendAudit(_ context.Context, entry generic.AuditEntry) error {
	v.state.audit = append(v.state.audit, entry)
	return nil
}

func (v *memoryView) ListAudit(_ context.Context, requestID generic.RequestID) ([]generic.AuditEntry, error) {
	var result []generic.AuditEntry
	for _, e := range v.state.audit {
		if e.RequestID == requestID {
			result = append(result, e)
		}
	}
	return result, nil
}
