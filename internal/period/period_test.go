package period

import (
	"errors"
	"math/rand"
	"testing"
	"time"
)

func TestNew_RejectsStartAfterEnd(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	base := time.Date(2018, 1, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 200; i++ {
		a := base.Add(time.Duration(rng.Int63n(1000*3600)) * time.Second)
		b := base.Add(time.Duration(rng.Int63n(1000*3600)) * time.Second)
		start, end := a, b

		p, err := New(start, end)
		if start.After(end) {
			if !errors.Is(err, ErrInvalidPeriod) {
				t.Fatalf("New(%v, %v): err = %v, want ErrInvalidPeriod", start, end, err)
			}
			continue
		}
		if err != nil {
			t.Fatalf("New(%v, %v): unexpected error %v", start, end, err)
		}
		gotStart, ok := p.Start()
		if !ok || !gotStart.Equal(start) {
			t.Fatalf("Start() = (%v, %v), want (%v, true)", gotStart, ok, start)
		}
		gotEnd, ok := p.End()
		if !ok || !gotEnd.Equal(end) {
			t.Fatalf("End() = (%v, %v), want (%v, true)", gotEnd, ok, end)
		}
	}
}

func TestNew_EqualBounds(t *testing.T) {
	ts := time.Date(2018, 1, 1, 2, 0, 0, 0, time.UTC)
	if _, err := New(ts, ts); err != nil {
		t.Fatalf("New with equal bounds: %v", err)
	}
}

func TestFixedBounds_TruncatedToSeconds(t *testing.T) {
	second := time.Date(2018, 1, 1, 1, 0, 0, 0, time.UTC)
	early := second.Add(200 * time.Millisecond)
	late := second.Add(700 * time.Millisecond)

	tests := []struct {
		name string
		p    func() (Period, error)
	}{
		{"since", func() (Period, error) { return Since(early), nil }},
		{"upto", func() (Period, error) { return Upto(early), nil }},
		{"new", func() (Period, error) { return New(early, late) }},
		{"with start", func() (Period, error) { return Upto(second.Add(time.Hour)).WithStart(late) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := tt.p()
			if err != nil {
				t.Fatalf("build: %v", err)
			}
			if start, ok := p.Start(); ok && !start.Equal(second) {
				t.Errorf("Start() = %v, want %v", start, second)
			}
			if end, ok := p.End(); ok && end.Nanosecond() != 0 {
				t.Errorf("End() = %v, want whole seconds", end)
			}
		})
	}

	// Same-second bounds are one window, so they share a key and a query.
	if Since(early).KeyFragment() != Since(second).KeyFragment() {
		t.Error("same-second periods produced different fragments")
	}
	a, _ := Since(early).Start()
	b, _ := Since(second).Start()
	if !a.Equal(b) {
		t.Errorf("same-second periods resolve to different bounds: %v vs %v", a, b)
	}
}

func TestZeroValue_IsAllTime(t *testing.T) {
	var p Period
	if !p.IsAllTime() {
		t.Error("zero Period should be all time")
	}
	if got := p.KeyFragment(); got != "|" {
		t.Errorf("KeyFragment() = %q, want %q", got, "|")
	}
}

func TestKeyFragment_Fixed(t *testing.T) {
	start := time.Date(2018, 1, 1, 1, 0, 0, 0, time.UTC)
	end := time.Date(2018, 1, 1, 3, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		p    Period
		want string
	}{
		{"since", Since(start), "1514768400|"},
		{"upto", Upto(end), "|1514775600"},
		{"both", mustNew(t, start, end), "1514768400|1514775600"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.p.KeyFragment(); got != tt.want {
				t.Errorf("KeyFragment() = %q, want %q", got, tt.want)
			}
			if !tt.p.HasFixedBounds() {
				t.Error("HasFixedBounds() = false, want true")
			}
		})
	}
}

func TestRelative(t *testing.T) {
	now := time.Date(2018, 3, 10, 15, 30, 45, 0, time.UTC)

	tests := []struct {
		name      string
		anchor    Anchor
		unit      Unit
		magnitude int
		wantStart time.Time
		wantKey   string
	}{
		{"past5days", StartOfToday, Day, 5, time.Date(2018, 3, 5, 0, 0, 0, 0, time.UTC), "past5days|"},
		{"sub34seconds", Now, Second, 34, time.Date(2018, 3, 10, 15, 30, 11, 0, time.UTC), "sub34seconds|"},
		{"sub2hours", Now, Hour, 2, time.Date(2018, 3, 10, 13, 30, 45, 0, time.UTC), "sub2hours|"},
		{"past1weeks", StartOfToday, Week, 1, time.Date(2018, 3, 3, 0, 0, 0, 0, time.UTC), "past1weeks|"},
		{"sub1months", Now, Month, 1, time.Date(2018, 2, 10, 15, 30, 45, 0, time.UTC), "sub1months|"},
		{"past2years", StartOfToday, Year, 2, time.Date(2016, 3, 10, 0, 0, 0, 0, time.UTC), "past2years|"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Relative(now, tt.anchor, tt.unit, tt.magnitude)

			start, ok := p.Start()
			if !ok || !start.Equal(tt.wantStart) {
				t.Errorf("Start() = (%v, %v), want (%v, true)", start, ok, tt.wantStart)
			}
			if _, ok := p.End(); ok {
				t.Error("relative period should have no end bound")
			}
			if p.HasFixedBounds() {
				t.Error("HasFixedBounds() = true for relative period")
			}
			if got := p.KeyFragment(); got != tt.wantKey {
				t.Errorf("KeyFragment() = %q, want %q", got, tt.wantKey)
			}
		})
	}
}

func TestRelative_KeyIgnoresInstant(t *testing.T) {
	t1 := time.Date(2018, 3, 10, 15, 0, 0, 0, time.UTC)
	t2 := t1.Add(36 * time.Hour)

	a := Relative(t1, StartOfToday, Day, 5)
	b := Relative(t2, StartOfToday, Day, 5)

	if a.KeyFragment() != b.KeyFragment() {
		t.Errorf("fragments differ: %q vs %q", a.KeyFragment(), b.KeyFragment())
	}
	as, _ := a.Start()
	bs, _ := b.Start()
	if as.Equal(bs) {
		t.Error("resolved starts should differ for different instants")
	}
}

func TestWithStart_CopyOnWrite(t *testing.T) {
	start := time.Date(2018, 1, 1, 1, 0, 0, 0, time.UTC)
	end := time.Date(2018, 1, 1, 3, 0, 0, 0, time.UTC)
	original := mustNew(t, start, end)

	changed, err := original.WithStart(start.Add(time.Hour))
	if err != nil {
		t.Fatalf("WithStart: %v", err)
	}
	if got, _ := original.Start(); !got.Equal(start) {
		t.Errorf("original start mutated to %v", got)
	}
	if got, _ := changed.Start(); !got.Equal(start.Add(time.Hour)) {
		t.Errorf("changed start = %v", got)
	}

	if _, err := original.WithStart(end.Add(time.Second)); !errors.Is(err, ErrInvalidPeriod) {
		t.Errorf("WithStart past end: err = %v, want ErrInvalidPeriod", err)
	}
	if _, err := original.WithEnd(start.Add(-time.Second)); !errors.Is(err, ErrInvalidPeriod) {
		t.Errorf("WithEnd before start: err = %v, want ErrInvalidPeriod", err)
	}
}

func TestWithEnd_MakesRelativeFixed(t *testing.T) {
	now := time.Date(2018, 3, 10, 15, 0, 0, 0, time.UTC)
	p, err := Relative(now, Now, Day, 1).WithEnd(now)
	if err != nil {
		t.Fatalf("WithEnd: %v", err)
	}
	if !p.HasFixedBounds() {
		t.Error("period with explicit end should be fixed")
	}
}

func TestParse(t *testing.T) {
	now := time.Date(2018, 3, 10, 15, 30, 45, 0, time.UTC)

	tests := []struct {
		in      string
		wantKey string
	}{
		{"", "|"},
		{"|", "|"},
		{"past5days", "past5days|"},
		{"past5days|", "past5days|"},
		{"sub34seconds", "sub34seconds|"},
		{"sub1hour", "sub1hours|"},
		{"1514768400|", "1514768400|"},
		{"|1514775600", "|1514775600"},
		{"1514768400|1514775600", "1514768400|1514775600"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			p, err := Parse(tt.in, now)
			if err != nil {
				t.Fatalf("Parse(%q): %v", tt.in, err)
			}
			if got := p.KeyFragment(); got != tt.wantKey {
				t.Errorf("Parse(%q).KeyFragment() = %q, want %q", tt.in, got, tt.wantKey)
			}
		})
	}
}

func TestParse_Errors(t *testing.T) {
	now := time.Now()
	for _, in := range []string{"5days", "pastdays", "sub3fortnights", "abc|def", "1514775600|1514768400"} {
		if _, err := Parse(in, now); err == nil {
			t.Errorf("Parse(%q) succeeded, want error", in)
		}
	}

	if _, err := Parse("1514775600|1514768400", now); !errors.Is(err, ErrInvalidPeriod) {
		t.Errorf("reversed bounds: err = %v, want ErrInvalidPeriod", err)
	}
}

func mustNew(t *testing.T, start, end time.Time) Period {
	t.Helper()
	p, err := New(start, end)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return p
}
