package checks

import (
	"fmt"
	"strings"

	"github.com/mailsentry/mailsentry/internal/core"
	"github.com/mailsentry/mailsentry/internal/refdata"
)

var urlShorteners = map[string]bool{
	"bit.ly": true, "tinyurl.com": true, "goo.gl": true, "t.co": true,
	"ow.ly": true, "is.gd": true, "buff.ly": true, "j.mp": true,
	"su.pr": true, "tr.im": true, "cli.gs": true, "short.to": true,
	"cutt.ly": true, "rb.gy": true, "shorturl.at": true, "tiny.cc": true,
	"adf.ly": true, "lnkd.in": true, "db.tt": true, "qr.ae": true,
}

func isShortener(domain string) bool {
	if urlShorteners[domain] {
		return true
	}
	for s := range urlShorteners {
		if strings.HasSuffix(domain, "."+s) {
			return true
		}
	}
	return false
}

// Links is the basic URL hygiene check: shorteners, suspicious domains,
// IP literals, overlong or non-ASCII hostnames. Brand-owned domains are
// exempt via the reference data's allow-listing.
func Links(msg *core.EmailMessage, data *refdata.RefData, iocs *core.IOCSet) core.CheckResult {
	if len(iocs.URLs) == 0 {
		return core.CheckResult{
			Name: "links", Status: core.StatusInfo, Score: 0.0,
			Title:       "No links",
			Description: "message contains no URLs",
		}
	}

	var issues []string
	suspicious := 0
	skipped := 0

	for _, raw := range iocs.URLs {
		domain := urlDomain(raw)
		if domain == "" {
			// Malformed URL: skip this item, keep scanning the rest.
			skipped++
			continue
		}

		switch {
		case isShortener(domain):
			issues = append(issues, "shortened link: "+domain)
			suspicious++
		case isIPLiteral(domain):
			issues = append(issues, "IP address instead of domain: "+domain)
			suspicious++
		default:
			if sus, reasons := data.IsSuspiciousDomain(domain); sus {
				issues = append(issues, reasons...)
				suspicious++
				continue
			}
			if len(domain) > 50 {
				issues = append(issues, "unusually long domain: "+domain)
				suspicious++
			}
			if !isASCII(domain) {
				issues = append(issues, "non-ASCII characters in domain: "+domain)
				suspicious++
			}
		}
	}

	details := map[string]interface{}{
		"total_links": len(iocs.URLs),
		"issues":      truncateList(issues, 10),
	}
	if skipped > 0 {
		details["skipped_malformed"] = skipped
	}

	switch {
	case suspicious == 0:
		return core.CheckResult{
			Name: "links", Status: core.StatusPass, Score: 0.1,
			Title:       "Links look safe",
			Description: fmt.Sprintf("%d links checked, no findings", len(iocs.URLs)),
			Details:     details,
		}
	case suspicious <= 2:
		return core.CheckResult{
			Name: "links", Status: core.StatusWarn, Score: -0.5 * float64(suspicious),
			Title:       "Suspicious links",
			Description: fmt.Sprintf("%d suspicious links found", suspicious),
			Details:     details,
		}
	default:
		return core.CheckResult{
			Name: "links", Status: core.StatusFail, Score: -1.5,
			Title:       "Dangerous links",
			Description: fmt.Sprintf("many suspicious links (%d)", suspicious),
			Details:     details,
		}
	}
}

// URLsAdvanced is the stricter URL inspection: any IP-literal, data-URI or
// encoded-script URL is an immediate failure, as are three or more
// suspicious URLs. Brand-owned targets stay exempt.
func URLsAdvanced(msg *core.EmailMessage, data *refdata.RefData, iocs *core.IOCSet) core.CheckResult {
	bodies := msg.BodyText + " " + msg.BodyHTML
	hasDataURI := strings.Contains(strings.ToLower(bodies), "data:text/html") ||
		strings.Contains(strings.ToLower(bodies), "data:application/")

	if len(iocs.URLs) == 0 && !hasDataURI {
		return core.CheckResult{
			Name: "urls_advanced", Status: core.StatusInfo, Score: 0.0,
			Title:       "No URLs to inspect",
			Description: "message contains no URLs",
		}
	}

	var issues []string
	var offending []string
	suspicious := 0
	critical := false

	if hasDataURI {
		issues = append(issues, "data-URI payload embedded in body")
		critical = true
	}

	for _, raw := range iocs.URLs {
		domain := urlDomain(raw)
		if domain == "" {
			continue
		}
		if data.IsBrandDomain(domain) {
			continue
		}

		lower := strings.ToLower(raw)
		switch {
		case isIPLiteral(domain):
			issues = append(issues, "URL points at raw IP: "+domain)
			offending = append(offending, raw)
			critical = true
		case strings.Contains(lower, "%3cscript") || strings.Contains(lower, "javascript:"):
			issues = append(issues, "encoded script in URL")
			offending = append(offending, raw)
			critical = true
		default:
			flagged := false
			if sus, reasons := data.IsSuspiciousDomain(domain); sus {
				issues = append(issues, reasons...)
				flagged = true
			}
			for _, pattern := range data.PhishingDomainPatterns {
				if strings.Contains(domain, pattern) {
					issues = append(issues, "look-alike domain pattern: "+pattern)
					flagged = true
					break
				}
			}
			if isShortener(domain) {
				issues = append(issues, "shortened link: "+domain)
				flagged = true
			}
			if len(raw) > 200 {
				issues = append(issues, "unusually long URL")
				flagged = true
			}
			if strings.Count(lower, "http") > 1 {
				issues = append(issues, "nested URL, possible redirect chain")
				flagged = true
			}
			if flagged {
				suspicious++
				offending = append(offending, raw)
			}
		}
	}

	details := map[string]interface{}{
		"total_urls":      len(iocs.URLs),
		"issues":          truncateList(issues, 10),
		"offending_urls":  truncateList(offending, 10),
		"suspicious_urls": suspicious,
	}

	switch {
	case critical || suspicious >= 3:
		return core.CheckResult{
			Name: "urls_advanced", Status: core.StatusFail, Score: -2.5,
			Title:       "High-risk URLs detected",
			Description: strings.Join(truncateList(issues, 3), "; "),
			Details:     details,
		}
	case suspicious > 0:
		return core.CheckResult{
			Name: "urls_advanced", Status: core.StatusWarn, Score: -0.5 * float64(suspicious),
			Title:       "Questionable URLs",
			Description: fmt.Sprintf("%d suspicious URLs found", suspicious),
			Details:     details,
		}
	default:
		return core.CheckResult{
			Name: "urls_advanced", Status: core.StatusPass, Score: 0.1,
			Title:       "URL inspection clean",
			Description: fmt.Sprintf("%d URLs inspected", len(iocs.URLs)),
			Details:     details,
		}
	}
}

// MaliciousURLs matches URLs against the fixed deny-list of known-bad and
// adult-content domains. Any hit, or an IP-literal URL, is a failure with
// unconditional veto power in the verdict engine.
func MaliciousURLs(data *refdata.RefData, iocs *core.IOCSet) core.CheckResult {
	if len(iocs.URLs) == 0 {
		return core.CheckResult{
			Name: "malicious_urls", Status: core.StatusInfo, Score: 0.0,
			Title:       "No URLs",
			Description: "message contains no URLs",
		}
	}

	var matches []string
	var reasons []string
	for _, raw := range iocs.URLs {
		domain := urlDomain(raw)
		if domain == "" {
			continue
		}
		if bad, reason := data.IsMaliciousDomain(domain); bad {
			matches = append(matches, raw)
			reasons = append(reasons, reason)
			continue
		}
		if isIPLiteral(domain) {
			matches = append(matches, raw)
			reasons = append(reasons, "URL points at raw IP: "+domain)
		}
	}

	if len(matches) == 0 {
		return core.CheckResult{
			Name: "malicious_urls", Status: core.StatusPass, Score: 0.1,
			Title:       "No known-bad URLs",
			Description: fmt.Sprintf("%d URLs checked against deny-list", len(iocs.URLs)),
		}
	}
	return core.CheckResult{
		Name: "malicious_urls", Status: core.StatusFail, Score: -3.0,
		Title:       "Known malicious URL",
		Description: strings.Join(truncateList(reasons, 3), "; "),
		Details: map[string]interface{}{
			"matched_urls": truncateList(matches, 10),
			"reasons":      truncateList(reasons, 10),
		},
	}
}
