package visitor

import "strings"

// defaultCrawlerKeywords match the user agents of common crawlers, link
// previewers and HTTP tooling.
var defaultCrawlerKeywords = []string{
	"bot", "crawl", "spider", "slurp", "mediapartners",
	"facebookexternalhit", "embedly", "quora link preview", "outbrain",
	"pinterest", "vkshare", "w3c_validator", "whatsapp", "preview",
	"curl", "wget", "python-requests", "go-http-client", "headlesschrome",
	"lighthouse", "pingdom", "uptime",
}

// KeywordDetector flags user agents containing any keyword, case-insensitively.
type KeywordDetector struct {
	keywords []string
}

// NewKeywordDetector returns a detector for the given keywords.
func NewKeywordDetector(keywords ...string) *KeywordDetector {
	lowered := make([]string, 0, len(keywords))
	for _, k := range keywords {
		if k = strings.ToLower(strings.TrimSpace(k)); k != "" {
			lowered = append(lowered, k)
		}
	}
	return &KeywordDetector{keywords: lowered}
}

// DefaultCrawlers returns the built-in keyword list detector.
func DefaultCrawlers() *KeywordDetector {
	return NewKeywordDetector(defaultCrawlerKeywords...)
}

// IsCrawler reports whether userAgent looks automated. An empty user agent
// counts as a crawler.
func (d *KeywordDetector) IsCrawler(userAgent string) bool {
	ua := strings.ToLower(strings.TrimSpace(userAgent))
	if ua == "" {
		return true
	}
	for _, k := range d.keywords {
		if strings.Contains(ua, k) {
			return true
		}
	}
	return false
}
