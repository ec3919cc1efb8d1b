package api

import (
	"net/url"
	"strings"
	"testing"
)

func TestValidateName(t *testing.T) {
	tests := []struct {
		name    string
		wantErr bool
	}{
		{"post", false},
		{"blog-post", false},
		{"v2", false},
		{"", true},
		{"Post", true},
		{"blog_post", true},
		{"blog.post", true},
		{strings.Repeat("a", maxNameLength), false},
		{strings.Repeat("a", maxNameLength+1), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateName("type", tt.name)
			if (err != nil) != tt.wantErr {
				t.Errorf("validateName(%q) = %v, wantErr %v", tt.name, err, tt.wantErr)
			}
		})
	}
}

func TestValidateID(t *testing.T) {
	tests := []struct {
		id      string
		wantErr bool
	}{
		{"1", false},
		{"5f0c2e1a-aaaa-bbbb-cccc-000000000001", false},
		{"", true},
		{"1.2", true},
		{"a b", true},
		{strings.Repeat("x", 129), true},
	}

	for _, tt := range tests {
		if err := validateID(tt.id); (err != nil) != tt.wantErr {
			t.Errorf("validateID(%q) = %v, wantErr %v", tt.id, err, tt.wantErr)
		}
	}
}

func TestParseCollection(t *testing.T) {
	if c, err := parseCollection(url.Values{}); err != nil || c != "" {
		t.Errorf("absent = (%q, %v), want (\"\", nil)", c, err)
	}
	if c, err := parseCollection(url.Values{"collection": {"homepage"}}); err != nil || c != "homepage" {
		t.Errorf("homepage = (%q, %v)", c, err)
	}
	if _, err := parseCollection(url.Values{"collection": {"Home Page"}}); err == nil {
		t.Error("expected error for invalid collection")
	}
}

func TestParseCooldown(t *testing.T) {
	if d, err := parseCooldown(url.Values{}); err != nil || d != 0 {
		t.Errorf("absent = (%s, %v)", d, err)
	}
	if d, err := parseCooldown(url.Values{"cooldown": {"30m"}}); err != nil || d.Minutes() != 30 {
		t.Errorf("30m = (%s, %v)", d, err)
	}
	for _, raw := range []string{"0s", "-1m", "later"} {
		if _, err := parseCooldown(url.Values{"cooldown": {raw}}); err == nil {
			t.Errorf("parseCooldown(%q) succeeded, want error", raw)
		}
	}
}
