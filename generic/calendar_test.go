package generic_test

import (
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/leave-engine/generic"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func date(y int, m time.Month, d int) generic.TimePoint {
	return generic.NewTimePoint(y, m, d)
}

func orgHoliday(name string, d generic.TimePoint) generic.Holiday {
	return generic.Holiday{ID: generic.HolidayID(name), Name: name, Date: d, Scope: generic.HolidayOrganization}
}

// =============================================================================
// WORKING DAY RESOLUTION
// =============================================================================

func TestWorkingDays_FullWeekNoHolidays(t *testing.T) {
	// GIVEN: Mon-Fri schedule, no holidays
	// WHEN: Counting Mon 2025-03-10 .. Fri 2025-03-14
	// THEN: 5 working days

	n := generic.CountWorkingDays(date(2025, time.March, 10), date(2025, time.March, 14),
		generic.StandardWeek(), generic.NewHolidaySet(nil))

	assert.Equal(t, 5, n)
}

func TestWorkingDays_WeekendAndHolidaySkipped(t *testing.T) {
	// GIVEN: Mon-Fri schedule, holiday on Monday 2025-03-17
	// WHEN: Counting Thu 2025-03-13 .. Wed 2025-03-19 (7 calendar days)
	// THEN: Only Thu, Fri, Tue, Wed count

	holidays := generic.NewHolidaySet([]generic.Holiday{orgHoliday("founders-day", date(2025, time.March, 17))})

	var got []generic.TimePoint
	for d := range generic.WorkingDays(date(2025, time.March, 13), date(2025, time.March, 19), generic.StandardWeek(), holidays) {
		got = append(got, d)
	}

	assert.Equal(t, []generic.TimePoint{
		date(2025, time.March, 13),
		date(2025, time.March, 14),
		date(2025, time.March, 18),
		date(2025, time.March, 19),
	}, got)
}

func TestWorkingDays_SingleDay(t *testing.T) {
	schedule := generic.StandardWeek()
	none := generic.NewHolidaySet(nil)

	assert.Equal(t, 1, generic.CountWorkingDays(date(2025, time.March, 12), date(2025, time.March, 12), schedule, none))
	assert.Equal(t, 0, generic.CountWorkingDays(date(2025, time.March, 15), date(2025, time.March, 15), schedule, none), "saturday")
}

func TestWorkingDays_InvertedRangeYieldsNothing(t *testing.T) {
	n := generic.CountWorkingDays(date(2025, time.March, 14), date(2025, time.March, 10),
		generic.StandardWeek(), generic.NewHolidaySet(nil))

	assert.Zero(t, n)
}

func TestWorkingDays_AcrossYearBoundary(t *testing.T) {
	// GIVEN: New Year's Day holiday on Thu 2026-01-01
	// WHEN: Counting Mon 2025-12-29 .. Fri 2026-01-02
	// THEN: 4 working days, holidays of both years are seen

	holidays := generic.NewHolidaySet([]generic.Holiday{
		orgHoliday("new-year", date(2026, time.January, 1)),
	})

	n := generic.CountWorkingDays(date(2025, time.December, 29), date(2026, time.January, 2), generic.StandardWeek(), holidays)

	assert.Equal(t, 4, n)
}

func TestWorkingDays_CustomSchedule(t *testing.T) {
	// GIVEN: A Sunday-Thursday schedule
	schedule := generic.WorkSchedule{Name: "gulf", Sunday: true, Monday: true, Tuesday: true, Wednesday: true, Thursday: true}

	// WHEN: Counting a full calendar week Sat 2025-03-08 .. Fri 2025-03-14
	n := generic.CountWorkingDays(date(2025, time.March, 8), date(2025, time.March, 14), schedule, generic.NewHolidaySet(nil))

	// THEN: Friday and Saturday are off
	assert.Equal(t, 5, n)
	assert.Equal(t, 5, schedule.WorkingWeekdays())
}

func TestWorkingDays_WeeklyHolidayBlocksFromAnchor(t *testing.T) {
	// GIVEN: An employee holiday on Wed 2025-03-12 repeating weekly
	weekly := generic.Holiday{
		ID: "wed-off", Name: "Wednesday off", Date: date(2025, time.March, 12),
		Scope: generic.HolidayEmployee, EmployeeID: "emp-1", RepeatWeekly: true,
	}
	holidays := generic.NewHolidaySet([]generic.Holiday{weekly})

	// WHEN: Counting Mon 2025-03-03 .. Fri 2025-03-21 (15 weekdays)
	n := generic.CountWorkingDays(date(2025, time.March, 3), date(2025, time.March, 21), generic.StandardWeek(), holidays)

	// THEN: Wed 03-12 and Wed 03-19 are blocked, Wed 03-05 predates the anchor
	assert.Equal(t, 13, n)
	assert.False(t, holidays.Blocks(date(2025, time.March, 5)))
	assert.True(t, holidays.Blocks(date(2025, time.March, 19)))
}

func TestWorkingDays_Restartable(t *testing.T) {
	seq := generic.WorkingDays(date(2025, time.March, 10), date(2025, time.March, 21),
		generic.StandardWeek(), generic.NewHolidaySet(nil))

	first := slices.Collect(seq)
	second := slices.Collect(seq)

	require.Len(t, first, 10)
	assert.Equal(t, first, second)
}

func TestWorkingDays_EarlyBreak(t *testing.T) {
	seq := generic.WorkingDays(date(2025, time.March, 10), date(2025, time.December, 31),
		generic.StandardWeek(), generic.NewHolidaySet(nil))

	var got []generic.TimePoint
	for d := range seq {
		got = append(got, d)
		if len(got) == 2 {
			break
		}
	}

	assert.Equal(t, []generic.TimePoint{date(2025, time.March, 10), date(2025, time.March, 11)}, got)
}

func TestWorkingDays_MonotonicInRangeEnd(t *testing.T) {
	// Extending the range by one day never lowers the count.
	holidays := generic.NewHolidaySet([]generic.Holiday{
		orgHoliday("a", date(2025, time.April, 18)),
		orgHoliday("b", date(2025, time.April, 21)),
	})
	start := date(2025, time.April, 1)

	prev := 0
	for end := start; end.Before(date(2025, time.June, 1)); end = end.AddDays(1) {
		n := generic.CountWorkingDays(start, end, generic.StandardWeek(), holidays)
		require.GreaterOrEqual(t, n, prev, "end=%s", end)
		prev = n
	}
}

// =============================================================================
// HOLIDAYS
// =============================================================================

func TestHoliday_AppliesTo(t *testing.T) {
	emp := generic.EmployeeProfile{ID: "emp-1", TeamID: "eng"}
	other := generic.EmployeeProfile{ID: "emp-2", TeamID: "sales"}

	org := orgHoliday("org", date(2025, time.May, 1))
	team := generic.Holiday{Name: "offsite", Date: date(2025, time.May, 2), Scope: generic.HolidayTeam, TeamID: "eng"}
	personal := generic.Holiday{Name: "move", Date: date(2025, time.May, 5), Scope: generic.HolidayEmployee, EmployeeID: "emp-1"}

	assert.True(t, org.AppliesTo(emp))
	assert.True(t, org.AppliesTo(other))
	assert.True(t, team.AppliesTo(emp))
	assert.False(t, team.AppliesTo(other))
	assert.True(t, personal.AppliesTo(emp))
	assert.False(t, personal.AppliesTo(other))
	assert.False(t, team.AppliesTo(generic.EmployeeProfile{ID: "emp-3"}), "no team")
}

func TestHoliday_BlocksMatchesSet(t *testing.T) {
	// GIVEN: A one-off holiday and a weekly one anchored on Wed 2025-03-12
	once := orgHoliday("once", date(2025, time.March, 17))
	weekly := generic.Holiday{Name: "wed", Date: date(2025, time.March, 12), Scope: generic.HolidayEmployee, EmployeeID: "emp-1", RepeatWeekly: true}
	set := generic.NewHolidaySet([]generic.Holiday{once, weekly})

	// THEN: The set blocks a day exactly when one of its holidays does
	for d := date(2025, time.March, 1); d.BeforeOrEqual(date(2025, time.March, 31)); d = d.AddDays(1) {
		assert.Equal(t, once.Blocks(d) || weekly.Blocks(d), set.Blocks(d), d.String())
	}
	assert.True(t, once.Blocks(date(2025, time.March, 17)))
	assert.False(t, once.Blocks(date(2025, time.March, 24)), "one-off holidays do not repeat")
	assert.True(t, weekly.Blocks(date(2025, time.March, 26)))
	assert.False(t, weekly.Blocks(date(2025, time.March, 5)), "before the anchor")
}

func TestHoliday_Validate(t *testing.T) {
	tests := []struct {
		name    string
		holiday generic.Holiday
		field   string
	}{
		{"missing date", generic.Holiday{Name: "x", Scope: generic.HolidayOrganization}, "date"},
		{"missing name", generic.Holiday{Date: date(2025, time.May, 1), Scope: generic.HolidayOrganization}, "name"},
		{"bad scope", generic.Holiday{Name: "x", Date: date(2025, time.May, 1), Scope: "GALAXY"}, "scope"},
		{"team without team", generic.Holiday{Name: "x", Date: date(2025, time.May, 1), Scope: generic.HolidayTeam}, "teamId"},
		{"employee without employee", generic.Holiday{Name: "x", Date: date(2025, time.May, 1), Scope: generic.HolidayEmployee}, "employeeId"},
		{"weekly org holiday", generic.Holiday{Name: "x", Date: date(2025, time.May, 1), Scope: generic.HolidayOrganization, RepeatWeekly: true}, "repeatWeekly"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.holiday.Validate()

			var ve *generic.ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.field, ve.Field)
		})
	}

	assert.NoError(t, orgHoliday("ok", date(2025, time.May, 1)).Validate())
}

func TestHolidayFilter_Matches(t *testing.T) {
	emp := generic.EmployeeProfile{ID: "emp-1", TeamID: "eng"}
	filter := generic.HolidayFilter{From: date(2025, time.March, 1), To: date(2025, time.March, 31), Employee: &emp}

	assert.True(t, filter.Matches(orgHoliday("in", date(2025, time.March, 17))))
	assert.False(t, filter.Matches(orgHoliday("before", date(2025, time.February, 28))))
	assert.False(t, filter.Matches(orgHoliday("after", date(2025, time.April, 1))))
	assert.True(t, filter.Matches(generic.Holiday{
		Date: date(2024, time.January, 3), Scope: generic.HolidayEmployee, EmployeeID: "emp-1", RepeatWeekly: true,
	}), "weekly holidays anchored earlier still apply")
	assert.False(t, filter.Matches(generic.Holiday{
		Date: date(2025, time.March, 3), Scope: generic.HolidayEmployee, EmployeeID: "emp-2",
	}), "someone else's holiday")
}

// =============================================================================
// PERIODS
// =============================================================================

func TestPeriod_Validate(t *testing.T) {
	assert.NoError(t, generic.Period{Start: date(2025, time.March, 10), End: date(2025, time.March, 10)}.Validate())
	assert.ErrorIs(t, generic.Period{End: date(2025, time.March, 10)}.Validate(), generic.ErrValidation)
	assert.ErrorIs(t, generic.Period{Start: date(2025, time.March, 11), End: date(2025, time.March, 10)}.Validate(), generic.ErrValidation)
}

func TestPeriod_ValidateCapsLength(t *testing.T) {
	// GIVEN: Ranges around the maximum length
	// THEN: 366 calendar days pass, 367 and a millennium-wide range fail on endDate

	start := date(2024, time.January, 1)
	leapYear := generic.Period{Start: start, End: date(2024, time.December, 31)}
	require.Equal(t, 366, leapYear.Days())
	assert.NoError(t, leapYear.Validate())

	tooLong := generic.Period{Start: start, End: date(2025, time.January, 1)}
	assert.Equal(t, 367, tooLong.Days())
	var ve *generic.ValidationError
	require.ErrorAs(t, tooLong.Validate(), &ve)
	assert.Equal(t, "endDate", ve.Field)

	huge := generic.Period{Start: generic.NewTimePoint(1, time.January, 2), End: generic.NewTimePoint(9999, time.December, 31)}
	assert.ErrorIs(t, huge.Validate(), generic.ErrValidation)
}

func TestPeriod_Days(t *testing.T) {
	assert.Equal(t, 1, generic.Period{Start: date(2025, time.March, 10), End: date(2025, time.March, 10)}.Days())
	assert.Equal(t, 31, generic.Period{Start: date(2025, time.March, 1), End: date(2025, time.March, 31)}.Days())
	assert.Equal(t, 2, generic.Period{Start: date(2025, time.December, 31), End: date(2026, time.January, 1)}.Days())
}

func TestPeriod_Overlaps(t *testing.T) {
	march := generic.Period{Start: date(2025, time.March, 10), End: date(2025, time.March, 14)}

	assert.True(t, march.Overlaps(generic.Period{Start: date(2025, time.March, 14), End: date(2025, time.March, 20)}), "shared last day")
	assert.True(t, march.Overlaps(generic.Period{Start: date(2025, time.March, 1), End: date(2025, time.March, 31)}), "contained")
	assert.False(t, march.Overlaps(generic.Period{Start: date(2025, time.March, 15), End: date(2025, time.March, 20)}))
}

func TestPeriodFor(t *testing.T) {
	d := date(2025, time.July, 15)

	assert.Equal(t, generic.BalancePeriod{Year: 2025}, generic.PeriodFor(generic.CadenceAnnual, d))
	assert.Equal(t, generic.BalancePeriod{Year: 2025, Month: time.July}, generic.PeriodFor(generic.CadenceMonthly, d))
	assert.Equal(t, "2025-07", generic.PeriodFor(generic.CadenceMonthly, d).String())
}

func TestParseDate(t *testing.T) {
	d, err := generic.ParseDate("2025-03-10")
	require.NoError(t, err)
	assert.True(t, d.Equal(date(2025, time.March, 10)))
	assert.Equal(t, time.Monday, d.Weekday())

	_, err = generic.ParseDate("10/03/2025")
	assert.Error(t, err)

	// Year 1 is the zero TimePoint; it is refused here instead of reading as "unset".
	_, err = generic.ParseDate("0001-01-01")
	assert.ErrorContains(t, err, "not supported")
}
