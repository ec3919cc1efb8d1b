// Package guard decides whether a view may be recorded at all. Guards are
// pure predicates over the visitor signals and run before the cooldown check.
package guard

import (
	"net/netip"
	"strings"

	"github.com/djlord-it/easy-views/internal/domain"
)

// Guard inspects a visitor and returns a non-empty reason to reject the view.
type Guard interface {
	Check(v domain.Visitor) domain.RejectReason
}

// Func adapts a function into a Guard.
type Func func(v domain.Visitor) domain.RejectReason

func (f Func) Check(v domain.Visitor) domain.RejectReason { return f(v) }

// Pipeline runs guards in order and stops at the first rejection.
type Pipeline []Guard

// Evaluate returns the first rejection reason, or "" when every guard admits.
func (p Pipeline) Evaluate(v domain.Visitor) domain.RejectReason {
	for _, g := range p {
		if reason := g.Check(v); reason != "" {
			return reason
		}
	}
	return ""
}

// Config selects which guards are active.
type Config struct {
	IgnoreBots      bool
	HonorDoNotTrack bool
	IgnoredIPs      []string // addresses or CIDR prefixes
}

// New builds the standard bot, do-not-track, IP blocklist pipeline.
func New(cfg Config) (Pipeline, error) {
	var p Pipeline
	if cfg.IgnoreBots {
		p = append(p, Bot())
	}
	if cfg.HonorDoNotTrack {
		p = append(p, DoNotTrack())
	}
	if len(cfg.IgnoredIPs) > 0 {
		ips, err := NewIPBlocklist(cfg.IgnoredIPs)
		if err != nil {
			return nil, err
		}
		p = append(p, ips)
	}
	return p, nil
}

// Bot rejects visitors classified as crawlers.
func Bot() Guard {
	return Func(func(v domain.Visitor) domain.RejectReason {
		if v.Crawler {
			return domain.RejectBot
		}
		return ""
	})
}

// DoNotTrack rejects visitors that sent DNT: 1.
func DoNotTrack() Guard {
	return Func(func(v domain.Visitor) domain.RejectReason {
		if v.DoNotTrack {
			return domain.RejectDoNotTrack
		}
		return ""
	})
}

// IPBlocklist rejects visitors whose address is listed, exactly or by prefix.
type IPBlocklist struct {
	exact    map[string]struct{}
	prefixes []netip.Prefix
}

// NewIPBlocklist parses entries as CIDR prefixes when they contain a '/',
// otherwise as single addresses. Unparseable addresses are matched verbatim.
func NewIPBlocklist(entries []string) (*IPBlocklist, error) {
	b := &IPBlocklist{exact: make(map[string]struct{})}
	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		if strings.Contains(entry, "/") {
			prefix, err := netip.ParsePrefix(entry)
			if err != nil {
				return nil, err
			}
			b.prefixes = append(b.prefixes, prefix.Masked())
			continue
		}
		if addr, err := netip.ParseAddr(entry); err == nil {
			entry = addr.Unmap().String()
		}
		b.exact[entry] = struct{}{}
	}
	return b, nil
}

func (b *IPBlocklist) Check(v domain.Visitor) domain.RejectReason {
	if b.Contains(v.IP) {
		return domain.RejectIgnoredIP
	}
	return ""
}

// Contains reports whether ip is blocked.
func (b *IPBlocklist) Contains(ip string) bool {
	ip = strings.TrimSpace(ip)
	if ip == "" {
		return false
	}
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		_, ok := b.exact[ip]
		return ok
	}
	addr = addr.Unmap()
	if _, ok := b.exact[addr.String()]; ok {
		return true
	}
	for _, p := range b.prefixes {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}
