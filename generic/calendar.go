/*
calendar.go - Working-day resolution

PURPOSE:
  Answers "which dates in [start, end] are working days for this person?"
  A date is a working day iff its weekday is flagged as working in the
  applicable WorkSchedule AND no applicable Holiday blocks it.

  Everything here is pure: the same inputs always give the same answer,
  nothing is cached and iteration can be restarted. The state machine
  relies on that to recompute days inside a transaction at approval and
  cancellation time instead of trusting the submission-time count.

HOLIDAY SCOPES:
  ORGANIZATION  applies to everyone
  TEAM          applies to employees whose TeamID matches
  EMPLOYEE      applies to one employee; may repeat weekly from its date

YEAR BOUNDARIES:
  Holidays are loaded by date range, not by year, so a range from
  Dec 29 to Jan 3 sees the holidays of both years.

EXAMPLE:
  schedule := generic.StandardWeek()
  holidays := generic.NewHolidaySet(list)
  n := generic.CountWorkingDays(start, end, schedule, holidays)

  for d := range generic.WorkingDays(start, end, schedule, holidays) {
      fmt.Println(d)
  }

SEE ALSO:
  - leave/schedule.go: Picks the schedule for an employee
  - store.go: HolidayFilter used to load the holiday list
*/
package generic

import (
	"iter"
	"time"
)

// =============================================================================
// WORK SCHEDULE
// =============================================================================

// WorkSchedule flags which weekdays are working days.
// At most one schedule in the store may have IsDefault set.
type WorkSchedule struct {
	ID        ScheduleID
	Name      string
	IsDefault bool

	Monday    bool
	Tuesday   bool
	Wednesday bool
	Thursday  bool
	Friday    bool
	Saturday  bool
	Sunday    bool
}

// StandardWeek returns a Monday to Friday schedule.
func StandardWeek() WorkSchedule {
	return WorkSchedule{
		Name:   "Standard week",
		Monday: true, Tuesday: true, Wednesday: true, Thursday: true, Friday: true,
	}
}

// Works reports whether wd is a working weekday.
func (ws WorkSchedule) Works(wd time.Weekday) bool {
	switch wd {
	case time.Monday:
		return ws.Monday
	case time.Tuesday:
		return ws.Tuesday
	case time.Wednesday:
		return ws.Wednesday
	case time.Thursday:
		return ws.Thursday
	case time.Friday:
		return ws.Friday
	case time.Saturday:
		return ws.Saturday
	case time.Sunday:
		return ws.Sunday
	}
	return false
}

// WorkingWeekdays returns the number of working weekdays per week.
func (ws WorkSchedule) WorkingWeekdays() int {
	n := 0
	for wd := time.Sunday; wd <= time.Saturday; wd++ {
		if ws.Works(wd) {
			n++
		}
	}
	return n
}

// =============================================================================
// HOLIDAYS
// =============================================================================

type HolidayScope string

const (
	HolidayOrganization HolidayScope = "ORGANIZATION"
	HolidayTeam         HolidayScope = "TEAM"
	HolidayEmployee     HolidayScope = "EMPLOYEE"
)

func (s HolidayScope) Valid() bool {
	return s == HolidayOrganization || s == HolidayTeam || s == HolidayEmployee
}

// Holiday blocks a date for everyone, a team or a single employee.
type Holiday struct {
	ID           HolidayID
	Date         TimePoint
	Name         string
	Scope        HolidayScope
	TeamID       string
	EmployeeID   EmployeeID
	RepeatWeekly bool
	Locked       bool
	CreatedBy    EmployeeID
}

// Validate checks scope-dependent fields.
func (h Holiday) Validate() error {
	switch {
	case h.Date.IsZero():
		return &ValidationError{Field: "date", Message: "holiday date is required"}
	case h.Name == "":
		return &ValidationError{Field: "name", Message: "holiday name is required"}
	case !h.Scope.Valid():
		return &ValidationError{Field: "scope", Message: "unknown holiday scope " + string(h.Scope)}
	case h.Scope == HolidayTeam && h.TeamID == "":
		return &ValidationError{Field: "teamId", Message: "team holidays need a team"}
	case h.Scope == HolidayEmployee && h.EmployeeID == "":
		return &ValidationError{Field: "employeeId", Message: "employee holidays need an employee"}
	case h.RepeatWeekly && h.Scope != HolidayEmployee:
		return &ValidationError{Field: "repeatWeekly", Message: "only employee holidays can repeat weekly"}
	}
	return nil
}

// AppliesTo reports whether the holiday is in scope for the employee.
func (h Holiday) AppliesTo(emp EmployeeProfile) bool {
	switch h.Scope {
	case HolidayOrganization:
		return true
	case HolidayTeam:
		return emp.TeamID != "" && h.TeamID == emp.TeamID
	case HolidayEmployee:
		return h.EmployeeID == emp.ID
	}
	return false
}

// Blocks reports whether the holiday makes date a non-working day.
func (h Holiday) Blocks(date TimePoint) bool {
	if h.RepeatWeekly {
		return date.AfterOrEqual(h.Date) && date.Weekday() == h.Date.Weekday()
	}
	return date.Equal(h.Date)
}

// HolidaySet is the block-list consulted by the resolver. One-off dates
// are indexed; weekly holidays are checked one by one.
// The zero value blocks nothing.
type HolidaySet struct {
	dates  map[TimePoint]struct{}
	weekly []Holiday
}

func NewHolidaySet(holidays []Holiday) HolidaySet {
	hs := HolidaySet{dates: make(map[TimePoint]struct{}, len(holidays))}
	for _, h := range holidays {
		if h.RepeatWeekly {
			hs.weekly = append(hs.weekly, h)
			continue
		}
		hs.dates[DateOf(h.Date.Time)] = struct{}{}
	}
	return hs
}

// Blocks reports whether date is a holiday.
func (hs HolidaySet) Blocks(date TimePoint) bool {
	if _, ok := hs.dates[DateOf(date.Time)]; ok {
		return true
	}
	for _, h := range hs.weekly {
		if h.Blocks(date) {
			return true
		}
	}
	return false
}

// =============================================================================
// RESOLVER
// =============================================================================

// WorkingDays lazily yields every working date in [start, end], in order.
// An inverted range yields nothing.
func WorkingDays(start, end TimePoint, schedule WorkSchedule, holidays HolidaySet) iter.Seq[TimePoint] {
	return func(yield func(TimePoint) bool) {
		for d := DateOf(start.Time); d.BeforeOrEqual(end); d = d.AddDays(1) {
			if !schedule.Works(d.Weekday()) || holidays.Blocks(d) {
				continue
			}
			if !yield(d) {
				return
			}
		}
	}
}

// CountWorkingDays returns the number of working days in [start, end].
func CountWorkingDays(start, end TimePoint, schedule WorkSchedule, holidays HolidaySet) int {
	n := 0
	for range WorkingDays(start, end, schedule, holidays) {
		n++
	}
	return n
}
