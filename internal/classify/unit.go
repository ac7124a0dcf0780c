package classify

import (
	"fmt"
	"strings"
)

// TimeUnit is the unit attached to an age-like magnitude.
type TimeUnit int

const (
	Days TimeUnit = iota + 1
	Weeks
	Months
	Years
)

// Unit lengths in sixteenths of a day. Every unit is a whole number of ticks
// (a year is 365.25 days, a month a twelfth of that) so whole-number
// magnitudes compare exactly across units.
var unitTicks = map[TimeUnit]int64{
	Days:   16,
	Weeks:  112,
	Months: 487,
	Years:  5844,
}

func (u TimeUnit) String() string {
	switch u {
	case Days:
		return "days"
	case Weeks:
		return "weeks"
	case Months:
		return "months"
	case Years:
		return "years"
	}
	return fmt.Sprintf("TimeUnit(%d)", int(u))
}

// Valid reports whether u is one of the known units.
func (u TimeUnit) Valid() bool {
	_, ok := unitTicks[u]
	return ok
}

// ParseUnit accepts the unit names used in catalog files and CLI flags.
func ParseUnit(s string) (TimeUnit, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "d", "day", "days":
		return Days, nil
	case "w", "week", "weeks":
		return Weeks, nil
	case "mo", "month", "months":
		return Months, nil
	case "y", "yr", "year", "years":
		return Years, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownUnit, s)
}

// Convert expresses value (given in from) in the unit to.
func Convert(value float64, from, to TimeUnit) float64 {
	if from == to {
		return value
	}
	return value * float64(unitTicks[from]) / float64(unitTicks[to])
}

// ticks expresses value (given in u) in sixteenths of a day.
func ticks(value float64, u TimeUnit) float64 {
	return value * float64(unitTicks[u])
}

// finer returns the unit with the smaller granularity.
func finer(a, b TimeUnit) TimeUnit {
	if unitTicks[a] <= unitTicks[b] {
		return a
	}
	return b
}
