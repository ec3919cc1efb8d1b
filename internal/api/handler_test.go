package api

import (
	"errors"
	"net/url"
	"testing"
	"time"

	"github.com/djlord-it/easy-views/internal/period"
)

func TestParseTopLimit(t *testing.T) {
	tests := []struct {
		raw     string
		want    int
		wantErr bool
	}{
		{"", DefaultTopLimit, false},
		{"0", DefaultTopLimit, false},
		{"5", 5, false},
		{"100", MaxTopLimit, false},
		{"101", 0, true},
		{"-1", 0, true},
		{"abc", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := parseTopLimit(url.Values{"limit": {tt.raw}})
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseTopLimit(%q) err = %v, wantErr %v", tt.raw, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("parseTopLimit(%q) = %d, want %d", tt.raw, got, tt.want)
			}
		})
	}
}

func TestParsePeriod(t *testing.T) {
	now := time.Date(2018, 1, 1, 12, 0, 0, 0, time.UTC)

	p, err := parsePeriod(url.Values{}, now)
	if err != nil || p != nil {
		t.Fatalf("empty query = (%v, %v), want (nil, nil)", p, err)
	}

	p, err = parsePeriod(url.Values{"period": {"past2days"}}, now)
	if err != nil {
		t.Fatalf("past2days: %v", err)
	}
	if got := p.KeyFragment(); got != "past2days|" {
		t.Errorf("KeyFragment() = %q, want past2days|", got)
	}

	p, err = parsePeriod(url.Values{"since": {"2018-01-01T01:00:00Z"}, "until": {"2018-01-01T03:00:00Z"}}, now)
	if err != nil {
		t.Fatalf("since/until: %v", err)
	}
	if got := p.KeyFragment(); got != "1514768400|1514775600" {
		t.Errorf("KeyFragment() = %q", got)
	}

	_, err = parsePeriod(url.Values{"since": {"2018-01-01T03:00:00Z"}, "until": {"2018-01-01T01:00:00Z"}}, now)
	if !errors.Is(err, period.ErrInvalidPeriod) {
		t.Errorf("reversed bounds err = %v, want ErrInvalidPeriod", err)
	}

	for _, q := range []url.Values{
		{"period": {"yesterday"}},
		{"since": {"1514768400"}},
		{"until": {"tomorrow"}},
	} {
		if _, err := parsePeriod(q, now); err == nil {
			t.Errorf("parsePeriod(%v) succeeded, want error", q)
		}
	}
}

func TestParseRemember(t *testing.T) {
	tests := []struct {
		raw      string
		lifetime time.Duration
		ok       bool
		wantErr  bool
	}{
		{"", 0, false, false},
		{"false", 0, false, false},
		{"true", 0, true, false},
		{"10m", 10 * time.Minute, true, false},
		{"-5m", 0, false, true},
		{"soon", 0, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			lifetime, ok, err := parseRemember(url.Values{"remember": {tt.raw}})
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if lifetime != tt.lifetime || ok != tt.ok {
				t.Errorf("parseRemember(%q) = (%s, %v), want (%s, %v)", tt.raw, lifetime, ok, tt.lifetime, tt.ok)
			}
		})
	}
}

func TestParseBearer(t *testing.T) {
	tests := []struct {
		header string
		want   string
	}{
		{"Bearer abc.def.ghi", "abc.def.ghi"},
		{"bearer abc", "abc"},
		{"Basic dXNlcg==", ""},
		{"Bearer", ""},
		{"", ""},
	}
	for _, tt := range tests {
		if got := parseBearer(tt.header); got != tt.want {
			t.Errorf("parseBearer(%q) = %q, want %q", tt.header, got, tt.want)
		}
	}
}

func TestIPLimiter(t *testing.T) {
	l := newIPLimiter(1, 2)

	if !l.allow("192.0.2.1") || !l.allow("192.0.2.1") {
		t.Fatal("burst of 2 should be allowed")
	}
	if l.allow("192.0.2.1") {
		t.Error("third request within the burst window should be limited")
	}
	if !l.allow("192.0.2.2") {
		t.Error("other IPs have their own bucket")
	}
}
