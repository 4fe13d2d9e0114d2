package generic

import (
	"fmt"
	"time"
)

// =============================================================================
// PERIOD - Inclusive date range
// =============================================================================

// MaxPeriodDays bounds the calendar length of a request or preview range.
const MaxPeriodDays = 366

// Period is an inclusive date range [Start, End].
type Period struct {
	Start TimePoint
	End   TimePoint
}

// Validate rejects malformed ranges.
func (p Period) Validate() error {
	if p.Start.IsZero() || p.End.IsZero() {
		return &ValidationError{Field: "dates", Message: "start and end dates are required"}
	}
	if p.End.Before(p.Start) {
		return &ValidationError{Field: "endDate", Message: "end date must not be before start date"}
	}
	if p.Days() > MaxPeriodDays {
		return &ValidationError{Field: "endDate", Message: fmt.Sprintf("range spans %d days, at most %d allowed", p.Days(), MaxPeriodDays)}
	}
	return nil
}

// Overlaps reports whether the two inclusive ranges share at least one day.
func (p Period) Overlaps(other Period) bool {
	return p.Start.BeforeOrEqual(other.End) && other.Start.BeforeOrEqual(p.End)
}

// Days returns the number of calendar days in the period.
func (p Period) Days() int {
	return p.Start.DaysUntil(p.End) + 1
}

func (p Period) String() string {
	return "[" + p.Start.String() + ", " + p.End.String() + "]"
}

// =============================================================================
// BALANCE PERIOD - Key of a balance row in time
// =============================================================================

// BalancePeriod identifies the accounting period of a balance row.
// Month is zero for annual rows.
type BalancePeriod struct {
	Year  int
	Month time.Month
}

// PeriodFor returns the balance period covering date for the given cadence.
func PeriodFor(cadence Cadence, date TimePoint) BalancePeriod {
	if cadence == CadenceMonthly {
		return BalancePeriod{Year: date.Year(), Month: date.Month()}
	}
	return BalancePeriod{Year: date.Year()}
}

func (bp BalancePeriod) IsMonthly() bool {
	return bp.Month != 0
}

func (bp BalancePeriod) String() string {
	if bp.IsMonthly() {
		return fmt.Sprintf("%04d-%02d", bp.Year, int(bp.Month))
	}
	return fmt.Sprintf("%04d", bp.Year)
}
