package period

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

var unitsByName = map[string]Unit{
	"seconds": Second, "second": Second,
	"minutes": Minute, "minute": Minute,
	"hours": Hour, "hour": Hour,
	"days": Day, "day": Day,
	"weeks": Week, "week": Week,
	"months": Month, "month": Month,
	"years": Year, "year": Year,
}

// Parse reads the key fragment syntax back into a Period, resolving relative
// descriptions against now:
//
//	""              all time
//	"past5days"     since midnight five days before today
//	"sub34seconds"  since 34 seconds before now
//	"1514768400|"   since a unix timestamp
//	"|1514768400"   up to a unix timestamp
//	"1514768400|1514772000"
func Parse(s string, now time.Time) (Period, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "|" {
		return Period{}, nil
	}

	if before, after, found := strings.Cut(s, "|"); found && (after != "" || isDigits(before)) {
		return parseFixed(before, after)
	}
	s = strings.TrimSuffix(s, "|")

	var anchor Anchor
	switch {
	case strings.HasPrefix(s, "past"):
		anchor = StartOfToday
		s = s[len("past"):]
	case strings.HasPrefix(s, "sub"):
		anchor = Now
		s = s[len("sub"):]
	default:
		return Period{}, fmt.Errorf("parse period %q: expected past or sub prefix", s)
	}

	i := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	if i == 0 {
		return Period{}, fmt.Errorf("parse period: missing magnitude in %q", s)
	}
	magnitude, err := strconv.Atoi(s[:i])
	if err != nil {
		return Period{}, fmt.Errorf("parse period: %w", err)
	}
	unit, ok := unitsByName[s[i:]]
	if !ok {
		return Period{}, fmt.Errorf("parse period: unknown unit %q", s[i:])
	}

	return Relative(now, anchor, unit, magnitude), nil
}

func parseFixed(startStr, endStr string) (Period, error) {
	var start, end time.Time
	if startStr != "" {
		sec, err := strconv.ParseInt(startStr, 10, 64)
		if err != nil {
			return Period{}, fmt.Errorf("parse period start: %w", err)
		}
		start = time.Unix(sec, 0).UTC()
	}
	if endStr != "" {
		sec, err := strconv.ParseInt(endStr, 10, 64)
		if err != nil {
			return Period{}, fmt.Errorf("parse period end: %w", err)
		}
		end = time.Unix(sec, 0).UTC()
	}
	return New(start, end)
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
