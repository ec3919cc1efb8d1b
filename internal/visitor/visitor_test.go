package visitor

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

const browserUA = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36"

func newRequest(remote, ua string, headers map[string]string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/subjects/post/1/views", nil)
	req.RemoteAddr = remote
	req.Header.Set("User-Agent", ua)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return req
}

func TestResolve_IDSources(t *testing.T) {
	r := NewResolver("easyviews_visitor", false)

	withCookie := newRequest("1.2.3.4:5000", browserUA, map[string]string{HeaderVisitorID: "header-id"})
	withCookie.AddCookie(&http.Cookie{Name: "easyviews_visitor", Value: "cookie-id"})
	if got := r.Resolve(withCookie).ID; got != "cookie-id" {
		t.Errorf("cookie: ID = %q, want cookie-id", got)
	}

	withHeader := newRequest("1.2.3.4:5000", browserUA, map[string]string{HeaderVisitorID: "header-id"})
	if got := r.Resolve(withHeader).ID; got != "header-id" {
		t.Errorf("header: ID = %q, want header-id", got)
	}

	a := r.Resolve(newRequest("1.2.3.4:5000", browserUA, nil)).ID
	b := r.Resolve(newRequest("1.2.3.4:6000", browserUA, nil)).ID
	c := r.Resolve(newRequest("5.6.7.8:5000", browserUA, nil)).ID
	if a == "" || a != b {
		t.Errorf("hashed id not stable across ports: %q vs %q", a, b)
	}
	if a == c {
		t.Error("different IPs produced the same hashed id")
	}
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name     string
		trustXFF bool
		remote   string
		xff      string
		want     string
	}{
		{"remote addr", false, "1.2.3.4:5000", "", "1.2.3.4"},
		{"xff ignored when untrusted", false, "1.2.3.4:5000", "9.9.9.9", "1.2.3.4"},
		{"xff first entry", true, "1.2.3.4:5000", "9.9.9.9, 10.0.0.1", "9.9.9.9"},
		{"empty xff falls back", true, "1.2.3.4:5000", " , ", "1.2.3.4"},
		{"ipv6", false, "[::1]:8080", "", "::1"},
		{"no port", false, "1.2.3.4", "", "1.2.3.4"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewResolver("", tt.trustXFF)
			headers := map[string]string{}
			if tt.xff != "" {
				headers["X-Forwarded-For"] = tt.xff
			}
			if got := r.ClientIP(newRequest(tt.remote, browserUA, headers)); got != tt.want {
				t.Errorf("ClientIP = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestResolve_Flags(t *testing.T) {
	r := NewResolver("", false)

	v := r.Resolve(newRequest("1.2.3.4:1", browserUA, map[string]string{"DNT": "1"}))
	if !v.DoNotTrack || v.Crawler {
		t.Errorf("browser with DNT = %+v", v)
	}

	v = r.Resolve(newRequest("1.2.3.4:1", "Googlebot/2.1 (+http://www.google.com/bot.html)", nil))
	if !v.Crawler || v.DoNotTrack {
		t.Errorf("googlebot = %+v", v)
	}
}

func TestKeywordDetector(t *testing.T) {
	d := DefaultCrawlers()
	tests := []struct {
		ua   string
		want bool
	}{
		{browserUA, false},
		{"", true},
		{"curl/8.4.0", true},
		{"Mozilla/5.0 (compatible; bingbot/2.0)", true},
		{"facebookexternalhit/1.1", true},
		{"Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) Mobile/15E148", false},
	}
	for _, tt := range tests {
		if got := d.IsCrawler(tt.ua); got != tt.want {
			t.Errorf("IsCrawler(%q) = %v, want %v", tt.ua, got, tt.want)
		}
	}

	custom := NewKeywordDetector(" Internal-Checker ", "")
	if !custom.IsCrawler("internal-checker/1.0") {
		t.Error("custom keyword not matched")
	}
	if custom.IsCrawler(browserUA) {
		t.Error("custom detector matched a browser")
	}
}
