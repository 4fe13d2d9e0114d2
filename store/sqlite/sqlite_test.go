package sqlite_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/leave-engine/generic"
	"github.com/warp/leave-engine/leave"
	"github.com/warp/leave-engine/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

var testNow = time.Date(2025, time.March, 3, 9, 0, 0, 0, time.UTC)

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func d(month time.Month, day int) generic.TimePoint {
	return generic.NewTimePoint(2025, month, day)
}

func inTx(t *testing.T, store *sqlite.Store, fn func(s generic.Store) error) {
	t.Helper()
	require.NoError(t, store.WithTx(context.Background(), fn))
}

// seed writes a default schedule, an annual leave type and emp-1 -> mgr-1.
func seed(t *testing.T, store *sqlite.Store) {
	t.Helper()
	ctx := context.Background()
	inTx(t, store, func(s generic.Store) error {
		week := generic.StandardWeek()
		week.ID = "standard"
		week.IsDefault = true
		if err := s.SaveWorkSchedule(ctx, week); err != nil {
			return err
		}
		if err := s.SaveLeaveType(ctx, generic.LeaveType{
			ID: "annual", Name: "Annual leave", DefaultAllowance: decimal.NewFromInt(20), Cadence: generic.CadenceAnnual,
		}); err != nil {
			return err
		}
		for _, emp := range []generic.EmployeeProfile{
			{ID: "mgr-1", Name: "Morgan", TeamID: "eng"},
			{ID: "emp-1", Name: "Eli", ManagerID: "mgr-1", TeamID: "eng", StartDate: d(time.January, 6)},
			{ID: "solo-1", Name: "Sam"},
		} {
			if err := s.SaveEmployee(ctx, emp); err != nil {
				return err
			}
		}
		return nil
	})
}

// =============================================================================
// PROFILES AND REFERENCE DATA
// =============================================================================

func TestStore_EmployeeRoundTrip(t *testing.T) {
	store := newTestStore(t)
	seed(t, store)
	ctx := context.Background()

	inTx(t, store, func(s generic.Store) error {
		emp, err := s.GetEmployee(ctx, "emp-1")
		require.NoError(t, err)
		require.NotNil(t, emp)
		assert.Equal(t, generic.EmployeeID("mgr-1"), emp.ManagerID)
		assert.Equal(t, "eng", emp.TeamID)
		assert.True(t, emp.StartDate.Equal(d(time.January, 6)))
		assert.Empty(t, emp.WorkScheduleID)

		solo, err := s.GetEmployee(ctx, "solo-1")
		require.NoError(t, err)
		assert.False(t, solo.HasManager())
		assert.True(t, solo.StartDate.IsZero())

		missing, err := s.GetEmployee(ctx, "ghost")
		assert.NoError(t, err)
		assert.Nil(t, missing)

		reports, err := s.ListReports(ctx, "mgr-1")
		require.NoError(t, err)
		require.Len(t, reports, 1)
		assert.Equal(t, generic.EmployeeID("emp-1"), reports[0].ID)
		return nil
	})
}

func TestStore_LeaveTypes(t *testing.T) {
	store := newTestStore(t)
	seed(t, store)
	ctx := context.Background()

	inTx(t, store, func(s generic.Store) error {
		lt, err := s.GetLeaveType(ctx, "annual")
		require.NoError(t, err)
		require.NotNil(t, lt)
		assert.True(t, lt.DefaultAllowance.Equal(decimal.NewFromInt(20)))
		assert.Equal(t, generic.UnitDays, lt.Unit)

		lt.DefaultAllowance = decimal.RequireFromString("22.5")
		require.NoError(t, s.SaveLeaveType(ctx, *lt))

		types, err := s.ListLeaveTypes(ctx)
		require.NoError(t, err)
		require.Len(t, types, 1)
		assert.Equal(t, "22.5", types[0].DefaultAllowance.String())
		return nil
	})
}

func TestStore_SingleDefaultSchedule(t *testing.T) {
	store := newTestStore(t)
	seed(t, store)
	ctx := context.Background()

	other := generic.StandardWeek()
	other.ID = "other"
	other.IsDefault = true
	err := store.WithTx(ctx, func(s generic.Store) error { return s.SaveWorkSchedule(ctx, other) })
	assert.ErrorIs(t, err, generic.ErrDefaultScheduleExists)

	other.IsDefault = false
	other.Saturday = true
	inTx(t, store, func(s generic.Store) error {
		if err := s.SaveWorkSchedule(ctx, other); err != nil {
			return err
		}
		ws, err := s.GetWorkSchedule(ctx, "other")
		require.NoError(t, err)
		assert.Equal(t, 6, ws.WorkingWeekdays())

		def, err := s.GetDefaultWorkSchedule(ctx)
		require.NoError(t, err)
		assert.Equal(t, generic.ScheduleID("standard"), def.ID)
		return nil
	})
}

// =============================================================================
// HOLIDAYS
// =============================================================================

func TestStore_HolidayFilter(t *testing.T) {
	// GIVEN: Holidays of every scope, inside and outside March
	// WHEN: Listing March for emp-1 (team eng)
	// THEN: Only what applies to emp-1 in March comes back, plus weekly
	//       holidays anchored before the end of March

	store := newTestStore(t)
	seed(t, store)
	ctx := context.Background()

	inTx(t, store, func(s generic.Store) error {
		for _, h := range []generic.Holiday{
			{ID: "org-march", Name: "Founders", Date: d(time.March, 17), Scope: generic.HolidayOrganization},
			{ID: "org-april", Name: "Spring", Date: d(time.April, 18), Scope: generic.HolidayOrganization},
			{ID: "team-eng", Name: "Offsite", Date: d(time.March, 11), Scope: generic.HolidayTeam, TeamID: "eng"},
			{ID: "team-sales", Name: "Kickoff", Date: d(time.March, 12), Scope: generic.HolidayTeam, TeamID: "sales"},
			{ID: "emp-weekly", Name: "Fridays", Date: d(time.February, 7), Scope: generic.HolidayEmployee, EmployeeID: "emp-1", RepeatWeekly: true},
			{ID: "solo-day", Name: "Move", Date: d(time.March, 20), Scope: generic.HolidayEmployee, EmployeeID: "solo-1"},
		} {
			if err := s.SaveHoliday(ctx, h); err != nil {
				return err
			}
		}
		return nil
	})

	var forEmp, all []generic.Holiday
	inTx(t, store, func(s generic.Store) error {
		emp, err := s.GetEmployee(ctx, "emp-1")
		if err != nil {
			return err
		}
		forEmp, err = s.ListHolidays(ctx, generic.HolidayFilter{From: d(time.March, 1), To: d(time.March, 31), Employee: emp})
		if err != nil {
			return err
		}
		all, err = s.ListHolidays(ctx, generic.HolidayFilter{})
		return err
	})

	var ids []generic.HolidayID
	for _, h := range forEmp {
		ids = append(ids, h.ID)
	}
	assert.Equal(t, []generic.HolidayID{"emp-weekly", "team-eng", "org-march"}, ids, "ordered by date")
	assert.True(t, forEmp[0].RepeatWeekly)
	assert.Len(t, all, 6)
}

func TestStore_HolidayLockAndDelete(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	inTx(t, store, func(s generic.Store) error {
		return s.SaveHoliday(ctx, generic.Holiday{ID: "h-1", Name: "Founders", Date: d(time.March, 17), Scope: generic.HolidayOrganization, Locked: true, CreatedBy: "admin-1"})
	})
	inTx(t, store, func(s generic.Store) error {
		h, err := s.GetHoliday(ctx, "h-1")
		require.NoError(t, err)
		assert.True(t, h.Locked)
		assert.Equal(t, generic.EmployeeID("admin-1"), h.CreatedBy)
		return s.DeleteHoliday(ctx, "h-1")
	})
	inTx(t, store, func(s generic.Store) error {
		h, err := s.GetHoliday(ctx, "h-1")
		assert.NoError(t, err)
		assert.Nil(t, h)
		return nil
	})
}

// =============================================================================
// REQUESTS
// =============================================================================

func TestStore_RequestVersioning(t *testing.T) {
	store := newTestStore(t)
	seed(t, store)
	ctx := context.Background()

	req := generic.LeaveRequest{
		ID: "r-1", EmployeeID: "emp-1", LeaveTypeID: "annual",
		StartDate: d(time.March, 10), EndDate: d(time.March, 14),
		Status: generic.StatusPendingManager, RequestedDays: 5, DeductedDays: decimal.Zero,
		Version: 1, CreatedAt: testNow, UpdatedAt: testNow,
	}
	inTx(t, store, func(s generic.Store) error { return s.CreateRequest(ctx, req) })

	approvedAt := testNow.Add(time.Hour)
	next := req
	next.Status = generic.StatusApprovedByManager
	next.ManagerApprovedBy = "mgr-1"
	next.ManagerApprovedAt = &approvedAt
	next.Version = 2
	inTx(t, store, func(s generic.Store) error { return s.UpdateRequest(ctx, next) })

	stale := req
	stale.Version = 2
	stale.Status = generic.StatusDenied
	err := store.WithTx(ctx, func(s generic.Store) error { return s.UpdateRequest(ctx, stale) })
	assert.ErrorIs(t, err, generic.ErrConcurrentModification)

	inTx(t, store, func(s generic.Store) error {
		got, err := s.GetRequest(ctx, "r-1")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, generic.StatusApprovedByManager, got.Status)
		assert.Equal(t, 2, got.Version)
		require.NotNil(t, got.ManagerApprovedAt)
		assert.True(t, got.ManagerApprovedAt.Equal(approvedAt))
		assert.Nil(t, got.AdminApprovedAt)
		assert.True(t, got.StartDate.Equal(d(time.March, 10)))
		assert.True(t, got.DeductedDays.IsZero())
		assert.True(t, got.CreatedAt.Equal(testNow))
		return nil
	})
}

func TestStore_ListRequestsFilter(t *testing.T) {
	store := newTestStore(t)
	seed(t, store)
	ctx := context.Background()

	inTx(t, store, func(s generic.Store) error {
		for _, r := range []generic.LeaveRequest{
			{ID: "r-1", EmployeeID: "emp-1", LeaveTypeID: "annual", StartDate: d(time.March, 10), EndDate: d(time.March, 14), Status: generic.StatusApprovedByAdmin},
			{ID: "r-2", EmployeeID: "emp-1", LeaveTypeID: "annual", StartDate: d(time.April, 7), EndDate: d(time.April, 8), Status: generic.StatusPendingManager},
			{ID: "r-3", EmployeeID: "mgr-1", LeaveTypeID: "annual", StartDate: d(time.March, 3), EndDate: d(time.March, 4), Status: generic.StatusApprovedByAdmin},
		} {
			r.Version, r.CreatedAt, r.UpdatedAt = 1, testNow, testNow
			if err := s.CreateRequest(ctx, r); err != nil {
				return err
			}
		}
		return nil
	})

	inTx(t, store, func(s generic.Store) error {
		overlapping, err := s.ListRequests(ctx, generic.RequestFilter{
			EmployeeIDs: []generic.EmployeeID{"emp-1"},
			Overlapping: &generic.Period{Start: d(time.March, 14), End: d(time.April, 1)},
		})
		require.NoError(t, err)
		require.Len(t, overlapping, 1)
		assert.Equal(t, generic.RequestID("r-1"), overlapping[0].ID)

		onLeaveToday, err := s.ListRequests(ctx, generic.RequestFilter{
			EmployeeIDs: []generic.EmployeeID{"mgr-1"},
			Statuses:    []generic.RequestStatus{generic.StatusApprovedByAdmin},
			Overlapping: &generic.Period{Start: d(time.March, 3), End: d(time.March, 3)},
		})
		require.NoError(t, err)
		assert.Len(t, onLeaveToday, 1)

		all, err := s.ListRequests(ctx, generic.RequestFilter{})
		require.NoError(t, err)
		require.Len(t, all, 3)
		assert.Equal(t, generic.RequestID("r-3"), all[0].ID, "ordered by start date")
		return nil
	})
}

// =============================================================================
// BALANCES
// =============================================================================

func TestStore_Balances(t *testing.T) {
	store := newTestStore(t)
	seed(t, store)
	ctx := context.Background()
	annual := generic.BalancePeriod{Year: 2025}

	bal := generic.LeaveBalance{
		ID: "b-1", EmployeeID: "emp-1", LeaveTypeID: "annual", Period: annual,
		Total: decimal.NewFromInt(20), Remaining: decimal.NewFromInt(20), Version: 1, UpdatedAt: testNow,
	}
	inTx(t, store, func(s generic.Store) error { return s.CreateBalance(ctx, bal) })

	dup := bal
	dup.ID = "b-2"
	err := store.WithTx(ctx, func(s generic.Store) error { return s.CreateBalance(ctx, dup) })
	assert.ErrorIs(t, err, generic.ErrConcurrentModification, "same key twice")

	spent := bal
	spent.Remaining = decimal.RequireFromString("14.5")
	spent.Version = 2
	inTx(t, store, func(s generic.Store) error { return s.UpdateBalance(ctx, spent) })

	err = store.WithTx(ctx, func(s generic.Store) error { return s.UpdateBalance(ctx, spent) })
	assert.ErrorIs(t, err, generic.ErrConcurrentModification, "version 2 already written")

	inTx(t, store, func(s generic.Store) error {
		got, err := s.GetBalance(ctx, bal.Key())
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "14.5", got.Remaining.String())
		assert.Equal(t, annual, got.Period)

		monthly, err := s.GetBalance(ctx, generic.BalanceKey{EmployeeID: "emp-1", LeaveTypeID: "annual", Period: generic.BalancePeriod{Year: 2025, Month: time.March}})
		assert.NoError(t, err)
		assert.Nil(t, monthly, "annual rows are not monthly rows")
		return nil
	})
}

func TestStore_BulkSetBalances(t *testing.T) {
	store := newTestStore(t)
	seed(t, store)
	ctx := context.Background()

	inTx(t, store, func(s generic.Store) error {
		for _, b := range []generic.LeaveBalance{
			{ID: "b-1", EmployeeID: "emp-1", LeaveTypeID: "annual", Period: generic.BalancePeriod{Year: 2025}},
			{ID: "b-2", EmployeeID: "mgr-1", LeaveTypeID: "annual", Period: generic.BalancePeriod{Year: 2025}, IsManualOverride: true},
			{ID: "b-3", EmployeeID: "emp-1", LeaveTypeID: "annual", Period: generic.BalancePeriod{Year: 2024}},
		} {
			b.Total, b.Remaining, b.Version, b.UpdatedAt = decimal.NewFromInt(20), decimal.NewFromInt(20), 1, testNow
			if err := s.CreateBalance(ctx, b); err != nil {
				return err
			}
		}
		return nil
	})

	var skipped, forced int
	inTx(t, store, func(s generic.Store) error {
		var err error
		skipped, err = s.BulkSetBalances(ctx, generic.BulkBalanceUpdate{LeaveTypeID: "annual", Year: 2025, Total: decimal.NewFromInt(25), At: testNow})
		if err != nil {
			return err
		}
		forced, err = s.BulkSetBalances(ctx, generic.BulkBalanceUpdate{LeaveTypeID: "annual", Year: 2025, Total: decimal.NewFromInt(26), ApplyToAll: true, At: testNow})
		return err
	})

	assert.Equal(t, 1, skipped)
	assert.Equal(t, 2, forced)

	inTx(t, store, func(s generic.Store) error {
		rows, err := s.ListBalances(ctx, "emp-1")
		require.NoError(t, err)
		require.Len(t, rows, 2)
		assert.Equal(t, 2024, rows[0].Period.Year, "ordered by year")
		assert.True(t, rows[0].Total.Equal(decimal.NewFromInt(20)))
		assert.True(t, rows[1].Total.Equal(decimal.NewFromInt(26)))
		assert.Equal(t, 3, rows[1].Version)

		mgr, err := s.GetBalance(ctx, generic.BalanceKey{EmployeeID: "mgr-1", LeaveTypeID: "annual", Period: generic.BalancePeriod{Year: 2025}})
		require.NoError(t, err)
		assert.False(t, mgr.IsManualOverride)
		assert.True(t, mgr.Remaining.Equal(decimal.NewFromInt(26)))
		return nil
	})
}

// =============================================================================
// AUDIT AND TRANSACTIONS
// =============================================================================

func TestStore_AuditInAppendOrder(t *testing.T) {
	store := newTestStore(t)
	seed(t, store)
	ctx := context.Background()

	inTx(t, store, func(s generic.Store) error {
		if err := s.CreateRequest(ctx, generic.LeaveRequest{
			ID: "r-1", EmployeeID: "emp-1", LeaveTypeID: "annual", StartDate: d(time.March, 10), EndDate: d(time.March, 14),
			Status: generic.StatusPendingManager, Version: 1, CreatedAt: testNow, UpdatedAt: testNow,
		}); err != nil {
			return err
		}
		// Same timestamp on purpose: order comes from append sequence.
		for _, e := range []generic.AuditEntry{
			{ID: "z", RequestID: "r-1", Action: generic.ActionSubmit, NewStatus: generic.StatusPendingManager, ActorID: "emp-1", Reason: "Submitted.", At: testNow},
			{ID: "a", RequestID: "r-1", Action: generic.ActionApproveManager, PreviousStatus: generic.StatusPendingManager, NewStatus: generic.StatusApprovedByManager, ActorID: "mgr-1", At: testNow},
		} {
			if err := s.AppendAudit(ctx, e); err != nil {
				return err
			}
		}
		return nil
	})

	inTx(t, store, func(s generic.Store) error {
		entries, err := s.ListAudit(ctx, "r-1")
		require.NoError(t, err)
		require.Len(t, entries, 2)
		assert.Equal(t, "z", entries[0].ID)
		assert.Equal(t, generic.RequestStatus(""), entries[0].PreviousStatus)
		assert.Equal(t, generic.StatusPendingManager, entries[1].PreviousStatus)
		assert.Empty(t, entries[1].Reason)
		return nil
	})
}

func TestStore_RollbackOnError(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	boom := errors.New("boom")
	err := store.WithTx(ctx, func(s generic.Store) error {
		if err := s.SaveEmployee(ctx, generic.EmployeeProfile{ID: "emp-9"}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	inTx(t, store, func(s generic.Store) error {
		emp, err := s.GetEmployee(ctx, "emp-9")
		assert.NoError(t, err)
		assert.Nil(t, emp)
		return nil
	})
}

func TestStore_WithTx_CommitsWithSqlmock(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	store := sqlite.NewWithDB(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO leave_types").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	err = store.WithTx(context.Background(), func(s generic.Store) error {
		return s.SaveLeaveType(context.Background(), generic.LeaveType{ID: "annual", Name: "Annual", Cadence: generic.CadenceAnnual})
	})

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_WithTx_RollsBackWithSqlmock(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	store := sqlite.NewWithDB(db)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE leave_balances").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err = store.WithTx(context.Background(), func(s generic.Store) error {
		return s.UpdateBalance(context.Background(), generic.LeaveBalance{
			EmployeeID: "emp-1", LeaveTypeID: "annual", Period: generic.BalancePeriod{Year: 2025}, Version: 2,
		})
	})

	assert.ErrorIs(t, err, generic.ErrConcurrentModification, "zero rows means a stale version")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_WithTx_BeginFails(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin().WillReturnError(errors.New("database is locked"))

	called := false
	err = sqlite.NewWithDB(db).WithTx(context.Background(), func(generic.Store) error {
		called = true
		return nil
	})

	assert.Error(t, err)
	assert.False(t, called)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// =============================================================================
// WORKFLOW ON SQLITE
// =============================================================================

func newService(t *testing.T, store *sqlite.Store) *leave.Service {
	t.Helper()
	svc, err := leave.NewService(store, leave.WithClock(func() time.Time { return testNow }))
	require.NoError(t, err)
	return svc
}

func TestWorkflow_CancellationRoundTrip(t *testing.T) {
	// GIVEN: emp-1 with 20 days
	// WHEN: A 5-day request is approved, then cancelled with manager approval
	// THEN: remaining returns to 20 and the audit trail has all five steps

	store := newTestStore(t)
	seed(t, store)
	svc := newService(t, store)
	ctx := context.Background()
	emp := generic.Caller{ID: "emp-1", Role: generic.RoleEmployee}
	mgr := generic.Caller{ID: "mgr-1", Role: generic.RoleManager}
	admin := generic.Caller{ID: "admin-1", Role: generic.RoleAdmin}

	req, err := svc.SubmitRequest(ctx, emp, "annual", d(time.March, 10), d(time.March, 14))
	require.NoError(t, err)
	_, err = svc.Transition(ctx, mgr, req.ID, generic.ActionApproveManager, "")
	require.NoError(t, err)
	_, err = svc.Transition(ctx, admin, req.ID, generic.ActionApproveAdmin, "")
	require.NoError(t, err)

	balances, err := svc.GetBalances(ctx, "emp-1")
	require.NoError(t, err)
	require.Len(t, balances, 1)
	assert.True(t, balances[0].Remaining.Equal(decimal.NewFromInt(15)))

	_, err = svc.Transition(ctx, emp, req.ID, generic.ActionRequestCancellation, "")
	require.NoError(t, err)
	final, err := svc.Transition(ctx, mgr, req.ID, generic.ActionApproveCancellation, "")
	require.NoError(t, err)
	assert.Equal(t, generic.StatusCancelled, final.Status)

	balances, err = svc.GetBalances(ctx, "emp-1")
	require.NoError(t, err)
	assert.True(t, balances[0].Remaining.Equal(decimal.NewFromInt(20)))

	trail, err := svc.AuditTrail(ctx, emp, req.ID)
	require.NoError(t, err)
	assert.Len(t, trail, 5)
}

func TestWorkflow_ConcurrentApprovalDeductsOnce(t *testing.T) {
	store := newTestStore(t)
	seed(t, store)
	svc := newService(t, store)
	ctx := context.Background()

	req, err := svc.SubmitRequest(ctx, generic.Caller{ID: "solo-1"}, "annual", d(time.March, 10), d(time.March, 14))
	require.NoError(t, err)
	require.Equal(t, generic.StatusPendingAdmin, req.Status)

	const racers = 4
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Transition(ctx, generic.Caller{ID: "admin-1", Role: generic.RoleAdmin}, req.ID, generic.ActionApproveAdmin, "")
			if err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
				return
			}
			assert.ErrorIs(t, err, generic.ErrStateConflict)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
	balances, err := svc.GetBalances(ctx, "solo-1")
	require.NoError(t, err)
	assert.True(t, balances[0].Remaining.Equal(decimal.NewFromInt(15)))
}

func TestWorkflow_ConcurrentApprovalsShareBalance(t *testing.T) {
	// GIVEN: solo-1 has 5 days left and two 3-day requests awaiting an admin
	// WHEN: Both are approved concurrently
	// THEN: The approvals serialize; the second fails with InsufficientBalanceError

	store := newTestStore(t)
	seed(t, store)
	svc := newService(t, store)
	ctx := context.Background()
	solo := generic.Caller{ID: "solo-1", Role: generic.RoleEmployee}
	admin := generic.Caller{ID: "admin-1", Role: generic.RoleAdmin}

	_, err := svc.SetBalance(ctx, admin, "solo-1", "annual", generic.BalancePeriod{Year: 2025}, decimal.NewFromInt(5))
	require.NoError(t, err)
	first, err := svc.SubmitRequest(ctx, solo, "annual", d(time.March, 10), d(time.March, 12))
	require.NoError(t, err)
	second, err := svc.SubmitRequest(ctx, solo, "annual", d(time.March, 17), d(time.March, 19))
	require.NoError(t, err)

	var (
		wg           sync.WaitGroup
		mu           sync.Mutex
		wins, shorts int
	)
	for _, id := range []generic.RequestID{first.ID, second.ID} {
		wg.Add(1)
		go func(id generic.RequestID) {
			defer wg.Done()
			_, err := svc.Transition(ctx, admin, id, generic.ActionApproveAdmin, "")
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				wins++
				return
			}
			assert.ErrorIs(t, err, generic.ErrInsufficientBalance)
			shorts++
		}(id)
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
	assert.Equal(t, 1, shorts)
	balances, err := svc.GetBalances(ctx, "solo-1")
	require.NoError(t, err)
	require.Len(t, balances, 1)
	assert.True(t, balances[0].Remaining.Equal(decimal.NewFromInt(2)))
}
