// Package period models the time window a view count is restricted to.
//
// A Period is either fixed (explicit start and/or end instants) or relative
// ("past 5 days", "last 34 seconds"). Relative periods are resolved into an
// absolute start bound when they are built, but keep their relative
// description for cache keys. Periods are immutable; every setter returns a
// new value.
package period

import (
	"errors"
	"fmt"
	"strconv"
	"time"
)

// ErrInvalidPeriod is returned when a start bound lies after the end bound.
var ErrInvalidPeriod = errors.New("invalid period: start is after end")

// Unit is the granularity of a relative period.
type Unit int

const (
	Second Unit = iota + 1
	Minute
	Hour
	Day
	Week
	Month
	Year
)

var unitNames = map[Unit]string{
	Second: "seconds",
	Minute: "minutes",
	Hour:   "hours",
	Day:    "days",
	Week:   "weeks",
	Month:  "months",
	Year:   "years",
}

// String returns the plural unit name used in key fragments.
func (u Unit) String() string {
	if name, ok := unitNames[u]; ok {
		return name
	}
	return "unit(" + strconv.Itoa(int(u)) + ")"
}

// Anchor is the instant a relative period is measured back from.
type Anchor int

const (
	// Now measures from the construction instant ("sub" periods).
	Now Anchor = iota
	// StartOfToday measures from midnight of the construction day ("past" periods).
	StartOfToday
)

func (a Anchor) tag() string {
	if a == StartOfToday {
		return "past"
	}
	return "sub"
}

// Period is a time window. The zero value spans all time.
type Period struct {
	start    time.Time
	end      time.Time
	hasStart bool
	hasEnd   bool

	relative  bool
	anchor    Anchor
	unit      Unit
	magnitude int
}

// New builds a fixed period. A zero time means the bound is absent. Bounds are
// truncated to whole seconds, the resolution of key fragments.
func New(start, end time.Time) (Period, error) {
	start, end = start.Truncate(time.Second), end.Truncate(time.Second)
	p := Period{
		start:    start,
		end:      end,
		hasStart: !start.IsZero(),
		hasEnd:   !end.IsZero(),
	}
	if p.hasStart && p.hasEnd && start.After(end) {
		return Period{}, fmt.Errorf("%w (%s > %s)", ErrInvalidPeriod,
			start.Format(time.RFC3339), end.Format(time.RFC3339))
	}
	return p, nil
}

// Since builds a period bounded only by its start.
func Since(start time.Time) Period {
	start = start.Truncate(time.Second)
	return Period{start: start, hasStart: !start.IsZero()}
}

// Upto builds a period bounded only by its end.
func Upto(end time.Time) Period {
	end = end.Truncate(time.Second)
	return Period{end: end, hasEnd: !end.IsZero()}
}

// Relative resolves anchor - magnitude*unit against now into the start bound.
// The end bound stays open.
func Relative(now time.Time, anchor Anchor, unit Unit, magnitude int) Period {
	base := now
	if anchor == StartOfToday {
		y, m, d := now.Date()
		base = time.Date(y, m, d, 0, 0, 0, 0, now.Location())
	}
	return Period{
		start:     subtract(base, unit, magnitude),
		hasStart:  true,
		relative:  true,
		anchor:    anchor,
		unit:      unit,
		magnitude: magnitude,
	}
}

func subtract(t time.Time, unit Unit, n int) time.Time {
	switch unit {
	case Second:
		return t.Add(-time.Duration(n) * time.Second)
	case Minute:
		return t.Add(-time.Duration(n) * time.Minute)
	case Hour:
		return t.Add(-time.Duration(n) * time.Hour)
	case Day:
		return t.AddDate(0, 0, -n)
	case Week:
		return t.AddDate(0, 0, -7*n)
	case Month:
		return t.AddDate(0, -n, 0)
	case Year:
		return t.AddDate(-n, 0, 0)
	default:
		return t
	}
}

func PastDays(n int) Period   { return Relative(time.Now(), StartOfToday, Day, n) }
func PastWeeks(n int) Period  { return Relative(time.Now(), StartOfToday, Week, n) }
func PastMonths(n int) Period { return Relative(time.Now(), StartOfToday, Month, n) }
func PastYears(n int) Period  { return Relative(time.Now(), StartOfToday, Year, n) }

func SubSeconds(n int) Period { return Relative(time.Now(), Now, Second, n) }
func SubMinutes(n int) Period { return Relative(time.Now(), Now, Minute, n) }
func SubHours(n int) Period   { return Relative(time.Now(), Now, Hour, n) }
func SubDays(n int) Period    { return Relative(time.Now(), Now, Day, n) }
func SubWeeks(n int) Period   { return Relative(time.Now(), Now, Week, n) }
func SubMonths(n int) Period  { return Relative(time.Now(), Now, Month, n) }
func SubYears(n int) Period   { return Relative(time.Now(), Now, Year, n) }

// WithStart returns a copy with the start bound replaced. The copy is fixed.
func (p Period) WithStart(start time.Time) (Period, error) {
	end, _ := p.End()
	return New(start, end)
}

// WithEnd returns a copy with the end bound replaced. The copy is fixed.
func (p Period) WithEnd(end time.Time) (Period, error) {
	start, _ := p.Start()
	return New(start, end)
}

// Start returns the resolved start bound.
func (p Period) Start() (time.Time, bool) {
	return p.start, p.hasStart
}

// End returns the resolved end bound.
func (p Period) End() (time.Time, bool) {
	return p.end, p.hasEnd
}

// HasFixedBounds is true only for bounds given as explicit instants.
func (p Period) HasFixedBounds() bool {
	return !p.relative
}

// IsAllTime reports whether the period has no bounds at all.
func (p Period) IsAllTime() bool {
	return !p.hasStart && !p.hasEnd
}

// Relative returns the relative description. ok is false for fixed periods.
func (p Period) Relative() (anchor Anchor, unit Unit, magnitude int, ok bool) {
	return p.anchor, p.unit, p.magnitude, p.relative
}

// KeyFragment serializes the period for cache keys. Fixed periods become
// "{startUnix}|{endUnix}" with absent bounds left empty; relative periods keep
// their description, e.g. "past5days|" or "sub34seconds|".
func (p Period) KeyFragment() string {
	if p.relative {
		return p.anchor.tag() + strconv.Itoa(p.magnitude) + p.unit.String() + "|"
	}
	var start, end string
	if p.hasStart {
		start = strconv.FormatInt(p.start.Unix(), 10)
	}
	if p.hasEnd {
		end = strconv.FormatInt(p.end.Unix(), 10)
	}
	return start + "|" + end
}

// String is the key fragment.
func (p Period) String() string {
	return p.KeyFragment()
}
