package cron

import (
	"testing"
	"time"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		expr    string
		tz      string
		wantErr bool
	}{
		{"nightly", "0 3 * * *", "UTC", false},
		{"hourly", "0 * * * *", "UTC", false},
		{"weekly sunday", "30 4 * * 0", "Europe/Paris", false},
		{"first of month", "0 0 1 * *", "Asia/Tokyo", false},
		{"daily descriptor", "@daily", "UTC", false},
		{"interval descriptor", "@every 6h", "Pacific/Auckland", false},

		{"four fields", "0 3 * *", "UTC", true},
		{"seconds field", "0 0 3 * * *", "UTC", true},
		{"minute out of range", "60 3 * * *", "UTC", true},
		{"hour out of range", "0 24 * * *", "UTC", true},
		{"garbage", "nightly", "UTC", true},
		{"empty", "", "UTC", true},
		{"unknown descriptor", "@fortnightly", "UTC", true},
		{"unknown zone", "0 3 * * *", "Mars/Olympus", true},
		{"abbreviation zone", "0 3 * * *", "NOPE", true},
	}

	p := NewParser()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sched, err := p.Parse(tt.expr, tt.tz)
			if tt.wantErr {
				if err == nil {
					t.Errorf("Parse(%q, %q) succeeded, want error", tt.expr, tt.tz)
				}
				return
			}
			if err != nil || sched == nil {
				t.Errorf("Parse(%q, %q) = (%v, %v), want schedule", tt.expr, tt.tz, sched, err)
			}
		})
	}
}

func TestSchedule_Next(t *testing.T) {
	p := NewParser()
	sched, err := p.Parse("0 3 * * *", "UTC")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	tests := []struct {
		after time.Time
		want  time.Time
	}{
		{time.Date(2024, 1, 15, 2, 0, 0, 0, time.UTC), time.Date(2024, 1, 15, 3, 0, 0, 0, time.UTC)},
		{time.Date(2024, 1, 15, 3, 0, 0, 0, time.UTC), time.Date(2024, 1, 16, 3, 0, 0, 0, time.UTC)},
		{time.Date(2024, 12, 31, 4, 0, 0, 0, time.UTC), time.Date(2025, 1, 1, 3, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		if got := sched.Next(tt.after); !got.Equal(tt.want) {
			t.Errorf("Next(%v) = %v, want %v", tt.after, got, tt.want)
		}
	}
}

func TestSchedule_NextUsesTimezone(t *testing.T) {
	p := NewParser()
	paris, err := p.Parse("0 3 * * *", "Europe/Paris")
	if err != nil {
		t.Fatalf("Parse Paris: %v", err)
	}
	tokyo, err := p.Parse("0 3 * * *", "Asia/Tokyo")
	if err != nil {
		t.Fatalf("Parse Tokyo: %v", err)
	}

	ref := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

	// 03:00 JST = 18:00 UTC, 03:00 CEST = 01:00 UTC next day.
	if got, want := tokyo.Next(ref).UTC(), time.Date(2024, 6, 15, 18, 0, 0, 0, time.UTC); !got.Equal(want) {
		t.Errorf("Tokyo Next = %v, want %v", got, want)
	}
	if got, want := paris.Next(ref).UTC(), time.Date(2024, 6, 16, 1, 0, 0, 0, time.UTC); !got.Equal(want) {
		t.Errorf("Paris Next = %v, want %v", got, want)
	}
}

func TestSchedule_DST(t *testing.T) {
	ny := mustLoadLocation("America/New_York")
	p := NewParser()

	// 2024-03-10 02:30 does not exist in New York.
	gap, err := p.Parse("30 2 * * *", "America/New_York")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	before := time.Date(2024, 3, 10, 1, 0, 0, 0, ny)
	next := gap.Next(before)
	if !next.After(before) {
		t.Errorf("Next(%v) = %v, want a later instant", before, next)
	}
	if next.Day() == 10 && next.Hour() == 2 {
		t.Errorf("Next(%v) = %v, fires inside the spring-forward gap", before, next)
	}

	// 2024-11-03 01:30 happens twice; only one run that day.
	overlap, err := p.Parse("30 1 * * *", "America/New_York")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	first := overlap.Next(time.Date(2024, 11, 3, 0, 0, 0, 0, ny))
	if first.Day() != 3 || first.Hour() != 1 || first.Minute() != 30 {
		t.Errorf("first run = %v, want Nov 3 01:30", first)
	}
	if after := overlap.Next(time.Date(2024, 11, 3, 3, 0, 0, 0, ny)); after.Day() != 4 {
		t.Errorf("run after fall back = %v, want Nov 4", after)
	}
}

func TestDue(t *testing.T) {
	p := NewParser()
	sched, err := p.Parse("0 3 * * *", "UTC")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	tests := []struct {
		name string
		last time.Time
		now  time.Time
		want bool
	}{
		{"before fire time", time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC), time.Date(2024, 1, 16, 2, 59, 0, 0, time.UTC), false},
		{"at fire time", time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC), time.Date(2024, 1, 16, 3, 0, 0, 0, time.UTC), true},
		{"already ran today", time.Date(2024, 1, 16, 3, 0, 5, 0, time.UTC), time.Date(2024, 1, 16, 23, 0, 0, 0, time.UTC), false},
		{"several fire times missed", time.Date(2024, 1, 10, 3, 0, 5, 0, time.UTC), time.Date(2024, 1, 17, 3, 1, 0, 0, time.UTC), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Due(sched, tt.last, tt.now); got != tt.want {
				t.Errorf("Due(last=%v, now=%v) = %v, want %v", tt.last, tt.now, got, tt.want)
			}
		})
	}
}

func mustLoadLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		panic("mustLoadLocation: " + err.Error())
	}
	return loc
}
