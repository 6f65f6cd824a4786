package redact

import (
	"context"
	"net"
	"regexp"
	"sort"
	"strings"
)

// Replacement tokens for the URL/path scrubbing layer.
const (
	internalURLToken = "[INTERNAL_URL]"
	privateIPToken   = "[PRIVATE_IP]"
	pathToken        = "[PATH]"
)

// DefaultAllowedDomains are public documentation and package hosts whose
// URLs carry no tenant information and survive scrubbing.
var DefaultAllowedDomains = []string{
	"github.com",
	"gitlab.com",
	"stackoverflow.com",
	"golang.org",
	"go.dev",
	"pypi.org",
	"npmjs.com",
	"developer.mozilla.org",
	"wikipedia.org",
	"learn.microsoft.com",
	"aws.amazon.com",
	"cloud.google.com",
}

var (
	urlRe = regexp.MustCompile(`\bhttps?://[^\s<>"')\]]+`)

	// Bare detectors are anchored to a preceding boundary so substrings of
	// an already-detected URL never produce their own candidates. Group 1
	// is the span to replace. The IP boundary additionally admits `:`, `,`,
	// `[` and `>` so host:ip, list, bracket, and arrow contexts are caught.
	bareIPRe = regexp.MustCompile(`(?:^|[\s"'(=:,>\[])((?:(?:25[0-5]|2[0-4][0-9]|[01]?[0-9][0-9]?)\.){3}(?:25[0-5]|2[0-4][0-9]|[01]?[0-9][0-9]?))\b`)

	unixPathRe    = regexp.MustCompile(`(?:^|[\s"'(=])(~?(?:/[A-Za-z0-9._\-]+){2,}/?)`)
	windowsPathRe = regexp.MustCompile(`(?:^|[\s"'(=])([A-Za-z]:\\[^\s"'<>|]+)`)
	uncPathRe     = regexp.MustCompile(`(?:^|[\s"'(=])(\\\\[A-Za-z0-9._\-]+\\[^\s"'<>|]+)`)
)

// URLPathLayer scrubs internal URLs, private IP addresses, and filesystem
// paths (order 300). Never blocks.
type URLPathLayer struct {
	allowedDomains []string
}

// NewURLPathLayer creates the layer. Empty allowedDomains uses
// DefaultAllowedDomains.
func NewURLPathLayer(allowedDomains []string) *URLPathLayer {
	if len(allowedDomains) == 0 {
		allowedDomains = DefaultAllowedDomains
	}
	return &URLPathLayer{allowedDomains: allowedDomains}
}

// Name identifies the layer in findings.
func (l *URLPathLayer) Name() string { return "url_path_scrubbing" }

type scrubCandidate struct {
	start, end  int
	replacement string
	category    string
	confidence  float64
}

// Apply collects candidates from the three detectors, deduplicates
// overlapping spans descending by start offset, and applies replacements
// descending so earlier replacements don't invalidate later offsets.
// Findings are reported ascending by offset for readability.
func (l *URLPathLayer) Apply(_ context.Context, input string, _ *Context) LayerResult {
	var candidates []scrubCandidate

	for _, loc := range urlRe.FindAllStringIndex(input, -1) {
		rawURL := input[loc[0]:loc[1]]
		host := hostOf(rawURL)
		if l.isAllowedHost(host) {
			continue
		}
		if isInternalHost(host) {
			candidates = append(candidates, scrubCandidate{
				start: loc[0], end: loc[1],
				replacement: internalURLToken,
				category:    "internal_url",
				confidence:  0.9,
			})
		}
	}

	for _, loc := range bareIPRe.FindAllStringSubmatchIndex(input, -1) {
		start, end := loc[2], loc[3]
		if isPrivateIP(input[start:end]) {
			candidates = append(candidates, scrubCandidate{
				start: start, end: end,
				replacement: privateIPToken,
				category:    "private_ip",
				confidence:  0.85,
			})
		}
	}

	for _, re := range []*regexp.Regexp{unixPathRe, windowsPathRe, uncPathRe} {
		for _, loc := range re.FindAllStringSubmatchIndex(input, -1) {
			candidates = append(candidates, scrubCandidate{
				start: loc[2], end: loc[3],
				replacement: pathToken,
				category:    "filesystem_path",
				confidence:  0.7,
			})
		}
	}

	if len(candidates) == 0 {
		return LayerResult{Output: input}
	}

	// Dedup: descending by start, first span wins on intersection.
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].start > candidates[j].start })
	var accepted []scrubCandidate
	for _, c := range candidates {
		overlaps := false
		for _, a := range accepted {
			if c.start < a.end && a.start < c.end {
				overlaps = true
				break
			}
		}
		if !overlaps {
			accepted = append(accepted, c)
		}
	}

	output := input
	findings := make([]Finding, 0, len(accepted))
	for _, c := range accepted {
		output = output[:c.start] + c.replacement + output[c.end:]
		findings = append(findings, Finding{
			Layer:          l.Name(),
			Category:       c.category,
			OriginalLength: c.end - c.start,
			Replacement:    c.replacement,
			StartOffset:    c.start,
			EndOffset:      c.end,
			Confidence:     c.confidence,
		})
	}
	sort.Slice(findings, func(i, j int) bool { return findings[i].StartOffset < findings[j].StartOffset })

	return LayerResult{Output: output, Findings: findings}
}

// hostOf extracts the host portion of a raw URL without the scheme, port,
// userinfo, path, or trailing punctuation.
func hostOf(rawURL string) string {
	rest := rawURL
	if idx := strings.Index(rest, "://"); idx >= 0 {
		rest = rest[idx+3:]
	}
	if idx := strings.IndexAny(rest, "/?#"); idx >= 0 {
		rest = rest[:idx]
	}
	if idx := strings.LastIndex(rest, "@"); idx >= 0 {
		rest = rest[idx+1:]
	}
	if idx := strings.Index(rest, ":"); idx >= 0 {
		rest = rest[:idx]
	}
	return strings.TrimRight(strings.ToLower(rest), ".")
}

// isAllowedHost reports whether host is an allow-listed public domain or a
// subdomain of one (docs.foo.com matches allow-listed foo.com).
func (l *URLPathLayer) isAllowedHost(host string) bool {
	for _, domain := range l.allowedDomains {
		domain = strings.ToLower(domain)
		if host == domain || strings.HasSuffix(host, "."+domain) {
			return true
		}
	}
	return false
}

// isInternalHost applies the internal-host heuristics: reserved TLD
// suffixes, localhost, and private or loopback IPs.
func isInternalHost(host string) bool {
	if host == "" {
		return false
	}
	if host == "localhost" {
		return true
	}
	for _, suffix := range []string{".local", ".internal", ".corp", ".lan", ".intranet"} {
		if strings.HasSuffix(host, suffix) {
			return true
		}
	}
	return isPrivateIP(host)
}

// isPrivateIP reports whether s is an RFC1918, link-local, or loopback
// IPv4 address.
func isPrivateIP(s string) bool {
	ip := net.ParseIP(s)
	if ip == nil {
		return false
	}
	return ip.IsPrivate() || ip.IsLoopback() || ip.IsLinkLocalUnicast()
}
