// Package checks contains the feature extractors. Each extractor is a pure
// function over the message, the reference data and optionally the
// pre-extracted IOC set, and emits exactly one CheckResult. Extractors never
// read each other's output, which keeps them order-insensitive and
// independently testable.
package checks

import (
	"net"
	"net/url"
	"regexp"
	"sort"
	"strings"

	"github.com/mailsentry/mailsentry/internal/core"
)

var (
	urlPattern = regexp.MustCompile(`https?://[^\s<>"'{}|\\^` + "`" + `\[\]]+`)
	ipPattern  = regexp.MustCompile(`\b(\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3})\b`)
	// Bare domains in running text. Anchored to a dotted form with a
	// letter-bearing final label so version numbers don't match.
	bareDomainPattern = regexp.MustCompile(`(?i)\b((?:[a-z0-9][a-z0-9-]{0,62}\.)+[a-z]{2,})\b`)
	tagPattern        = regexp.MustCompile(`<[^>]+>`)
)

// headers that may carry an originating IP address.
var ipBearingHeaders = []string{"Received", "X-Received", "X-Originating-IP", "X-Sender-IP", "X-Client-IP"}

// ExtractIOCs scans the message once and collects the indicator sets shared
// by the URL, domain and IP extractors, so no extractor rescans raw text.
func ExtractIOCs(msg *core.EmailMessage) *core.IOCSet {
	iocs := &core.IOCSet{}

	urlSeen := map[string]bool{}
	for _, body := range []string{msg.BodyText, msg.BodyHTML} {
		for _, u := range urlPattern.FindAllString(body, -1) {
			u = strings.TrimRight(u, ".,;:")
			if !urlSeen[u] {
				urlSeen[u] = true
				iocs.URLs = append(iocs.URLs, u)
			}
		}
	}

	ipSeen := map[string]bool{}
	for name, value := range msg.Headers {
		if !isIPBearingHeader(name) {
			continue
		}
		for _, ip := range ipPattern.FindAllString(value, -1) {
			if !ipSeen[ip] {
				ipSeen[ip] = true
				iocs.IPs = append(iocs.IPs, ip)
			}
		}
	}

	// Bare domains come from text with the full URLs removed: URL hosts are
	// the URL extractors' business.
	text := urlPattern.ReplaceAllString(msg.BodyText, " ")
	text += " " + urlPattern.ReplaceAllString(stripTags(msg.BodyHTML), " ")
	domainSeen := map[string]bool{}
	for _, d := range bareDomainPattern.FindAllString(text, -1) {
		d = strings.ToLower(strings.TrimSuffix(d, "."))
		if !domainSeen[d] {
			domainSeen[d] = true
			iocs.Domains = append(iocs.Domains, d)
		}
	}
	sort.Strings(iocs.Domains)

	return iocs
}

func isIPBearingHeader(name string) bool {
	for _, h := range ipBearingHeaders {
		if strings.EqualFold(name, h) {
			return true
		}
	}
	return false
}

func stripTags(html string) string {
	return tagPattern.ReplaceAllString(html, " ")
}

// urlDomain returns the lowercased hostname of a URL, or "" when the URL is
// malformed. Malformed URLs are skipped by the callers item by item rather
// than failing the whole check.
func urlDomain(raw string) string {
	if !strings.HasPrefix(raw, "http://") && !strings.HasPrefix(raw, "https://") {
		raw = "http://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return ""
	}
	return strings.ToLower(u.Hostname())
}

func emailDomain(addr string) string {
	at := strings.LastIndex(addr, "@")
	if at < 0 || at == len(addr)-1 {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(addr[at+1:]))
}

func isIPLiteral(host string) bool {
	return net.ParseIP(host) != nil
}

func isASCII(s string) bool {
	for _, r := range s {
		if r > 127 {
			return false
		}
	}
	return true
}

func truncateList(items []string, n int) []string {
	if len(items) > n {
		return items[:n]
	}
	return items
}
