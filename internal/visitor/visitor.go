// Package visitor identifies the visitor behind an HTTP request.
//
// Visitor ids are never issued here. An existing id cookie is honored, then
// the X-Visitor-Id header; otherwise the id is a stable hash of the client IP
// and user agent.
package visitor

import (
	"crypto/sha256"
	"encoding/hex"
	"net"
	"net/http"
	"strings"

	"github.com/djlord-it/easy-views/internal/domain"
)

// HeaderVisitorID carries a caller-assigned visitor id.
const HeaderVisitorID = "X-Visitor-Id"

// CrawlerDetector classifies user agents.
type CrawlerDetector interface {
	IsCrawler(userAgent string) bool
}

// Resolver builds a domain.Visitor from a request.
type Resolver struct {
	cookieName string
	trustXFF   bool
	crawlers   CrawlerDetector
}

// NewResolver returns a Resolver reading the id from cookieName. trustXFF
// takes the client IP from the first X-Forwarded-For entry.
func NewResolver(cookieName string, trustXFF bool) *Resolver {
	return &Resolver{
		cookieName: cookieName,
		trustXFF:   trustXFF,
		crawlers:   DefaultCrawlers(),
	}
}

// WithCrawlerDetector replaces the user-agent classifier.
func (r *Resolver) WithCrawlerDetector(d CrawlerDetector) *Resolver {
	r.crawlers = d
	return r
}

// Resolve identifies the visitor of req.
func (r *Resolver) Resolve(req *http.Request) domain.Visitor {
	ip := r.ClientIP(req)
	ua := req.UserAgent()
	return domain.Visitor{
		ID:         r.visitorID(req, ip, ua),
		IP:         ip,
		DoNotTrack: strings.TrimSpace(req.Header.Get("DNT")) == "1",
		Crawler:    r.crawlers != nil && r.crawlers.IsCrawler(ua),
	}
}

func (r *Resolver) visitorID(req *http.Request, ip, ua string) string {
	if r.cookieName != "" {
		if c, err := req.Cookie(r.cookieName); err == nil && c.Value != "" {
			return c.Value
		}
	}
	if v := strings.TrimSpace(req.Header.Get(HeaderVisitorID)); v != "" {
		return v
	}
	sum := sha256.Sum256([]byte(ip + "|" + ua))
	return hex.EncodeToString(sum[:16])
}

// ClientIP returns the client address of req.
func (r *Resolver) ClientIP(req *http.Request) string {
	if r.trustXFF {
		if xff := req.Header.Get("X-Forwarded-For"); xff != "" {
			first, _, _ := strings.Cut(xff, ",")
			if ip := strings.TrimSpace(first); ip != "" {
				return ip
			}
		}
	}

	host, _, err := net.SplitHostPort(strings.TrimSpace(req.RemoteAddr))
	if err == nil && host != "" {
		return host
	}
	if req.RemoteAddr != "" {
		return req.RemoteAddr
	}
	return "unknown"
}
