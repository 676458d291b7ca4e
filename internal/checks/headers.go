package checks

import (
	"fmt"
	"net"
	"strings"

	"github.com/emersion/go-msgauth/authres"

	"github.com/mailsentry/mailsentry/internal/core"
	"github.com/mailsentry/mailsentry/internal/refdata"
)

var suspiciousMailers = []string{"phpmailer", "swiftmailer", "mass mail", "bulk"}

var importantHeaders = []string{"Date", "Message-ID", "From", "To"}

// Headers grades the transport header set: Return-Path alignment with the
// From domain, mailer software fingerprints, presence of the standard
// headers and at least one Received line.
func Headers(msg *core.EmailMessage) core.CheckResult {
	score := 0.0
	var issues []string

	if rp := extractAddress(msg.Header("Return-Path")); rp != "" {
		rpDomain := emailDomain(rp)
		fromDomain := msg.SenderDomain()
		if rpDomain != "" && fromDomain != "" && !strings.EqualFold(rpDomain, fromDomain) {
			score -= 0.5
			issues = append(issues, "Return-Path domain differs from From: "+rpDomain)
		}
	}

	mailer := strings.ToLower(msg.Header("X-Mailer") + " " + msg.Header("User-Agent"))
	for _, sig := range suspiciousMailers {
		if strings.Contains(mailer, sig) {
			score -= 0.3
			issues = append(issues, "bulk-mailer software: "+sig)
			break
		}
	}

	for _, name := range importantHeaders {
		if msg.Header(name) == "" {
			score -= 0.2
			issues = append(issues, "missing header: "+name)
		}
	}

	if msg.Header("Received") == "" {
		score -= 0.5
		issues = append(issues, "no Received chain")
	}

	details := map[string]interface{}{"issues": issues}
	switch {
	case len(issues) == 0:
		return core.CheckResult{
			Name: "headers", Status: core.StatusPass, Score: 0.2,
			Title:       "Headers look normal",
			Description: "standard header set present and aligned",
		}
	case score > -1.0:
		return core.CheckResult{
			Name: "headers", Status: core.StatusWarn, Score: score,
			Title:       "Header anomalies",
			Description: strings.Join(issues, "; "),
			Details:     details,
		}
	default:
		return core.CheckResult{
			Name: "headers", Status: core.StatusFail, Score: score,
			Title:       "Severely malformed headers",
			Description: strings.Join(issues, "; "),
			Details:     details,
		}
	}
}

// ReceivedChain only distinguishes between a present and an absent relay
// chain. Some legitimate first-hop submissions carry none, so absence is
// never more than a warning.
func ReceivedChain(msg *core.EmailMessage) core.CheckResult {
	if msg.Header("Received") == "" {
		return core.CheckResult{
			Name: "received_chain", Status: core.StatusWarn, Score: -0.5,
			Title:       "No relay chain",
			Description: "message carries no Received headers",
		}
	}
	return core.CheckResult{
		Name: "received_chain", Status: core.StatusPass, Score: 0.1,
		Title:       "Relay chain present",
		Description: "Received headers recorded by transit hops",
	}
}

// OriginatingIP inspects the IPs the transit hops recorded. Reserved and
// private origins are common behind NAT, so findings stay advisory.
func OriginatingIP(msg *core.EmailMessage, iocs *core.IOCSet) core.CheckResult {
	if len(iocs.IPs) == 0 {
		return core.CheckResult{
			Name: "originating_ip", Status: core.StatusInfo, Score: 0.0,
			Title:       "No originating IPs",
			Description: "headers expose no client IP addresses",
		}
	}

	var issues []string
	for _, raw := range iocs.IPs {
		ip := net.ParseIP(raw)
		if ip == nil {
			issues = append(issues, "malformed IP in headers: "+raw)
			continue
		}
		if ip.IsPrivate() || ip.IsLoopback() || ip.IsUnspecified() {
			issues = append(issues, "reserved-range origin: "+raw)
		}
	}

	details := map[string]interface{}{"ips": iocs.IPs, "issues": issues}
	if len(issues) > 0 {
		return core.CheckResult{
			Name: "originating_ip", Status: core.StatusWarn, Score: -0.5,
			Title:       "Unusual originating IPs",
			Description: strings.Join(truncateList(issues, 3), "; "),
			Details:     details,
		}
	}
	return core.CheckResult{
		Name: "originating_ip", Status: core.StatusPass, Score: 0.1,
		Title:       "Originating IPs look normal",
		Description: fmt.Sprintf("%d routable origin IPs recorded", len(iocs.IPs)),
		Details:     details,
	}
}

// EnvelopeSender compares the SMTP envelope sender (Return-Path) against the
// From domain. Mailing-list providers legitimately diverge here, so known
// bulk bounce domains are exempt and the finding stays advisory.
func EnvelopeSender(msg *core.EmailMessage, data *refdata.RefData) core.CheckResult {
	rp := extractAddress(msg.Header("Return-Path"))
	if rp == "" {
		return core.CheckResult{
			Name: "envelope_sender", Status: core.StatusInfo, Score: 0.0,
			Title:       "No envelope sender recorded",
			Description: "Return-Path header absent",
		}
	}

	rpDomain := emailDomain(rp)
	fromDomain := msg.SenderDomain()
	if rpDomain == "" || fromDomain == "" || strings.EqualFold(rpDomain, fromDomain) {
		return core.CheckResult{
			Name: "envelope_sender", Status: core.StatusPass, Score: 0.1,
			Title:       "Envelope sender aligned",
			Description: "Return-Path matches the From domain",
		}
	}
	if data.IsBulkSenderDomain(rpDomain) {
		return core.CheckResult{
			Name: "envelope_sender", Status: core.StatusPass, Score: 0.1,
			Title:       "Known bulk-mail bounce domain",
			Description: "Return-Path uses a recognized mailing provider: " + rpDomain,
			Details:     map[string]interface{}{"return_path": rpDomain, "from": fromDomain},
		}
	}
	return core.CheckResult{
		Name: "envelope_sender", Status: core.StatusWarn, Score: -0.5,
		Title:       "Envelope sender mismatch",
		Description: "Return-Path domain " + rpDomain + " differs from From domain " + fromDomain,
		Details:     map[string]interface{}{"return_path": rpDomain, "from": fromDomain},
	}
}

// ReplyTo checks for reply redirection. A Reply-To pointing at a free-mail
// provider while the From claims anything else is the classic invoice-fraud
// setup and fails outright.
func ReplyTo(msg *core.EmailMessage, data *refdata.RefData) core.CheckResult {
	rt := extractAddress(msg.Header("Reply-To"))
	if rt == "" {
		return core.CheckResult{
			Name: "reply_to", Status: core.StatusInfo, Score: 0.0,
			Title:       "No Reply-To",
			Description: "replies go to the From address",
		}
	}

	rtDomain := emailDomain(rt)
	fromDomain := msg.SenderDomain()
	if rtDomain == "" || strings.EqualFold(rtDomain, fromDomain) {
		return core.CheckResult{
			Name: "reply_to", Status: core.StatusPass, Score: 0.1,
			Title:       "Reply-To aligned",
			Description: "Reply-To matches the sender domain",
		}
	}

	details := map[string]interface{}{"reply_to": rtDomain, "from": fromDomain}
	if data.IsFreeEmailDomain(rtDomain) && !data.IsFreeEmailDomain(fromDomain) {
		return core.CheckResult{
			Name: "reply_to", Status: core.StatusFail, Score: -2.5,
			Title:       "Replies diverted to free mail",
			Description: "Reply-To uses free provider " + rtDomain + " while From is " + fromDomain,
			Details:     details,
		}
	}
	return core.CheckResult{
		Name: "reply_to", Status: core.StatusWarn, Score: -0.5,
		Title:       "Reply-To differs from sender",
		Description: "replies go to " + rtDomain + " instead of " + fromDomain,
		Details:     details,
	}
}

// AuthResults reads the upstream server's Authentication-Results verdicts.
// The live DNS checks are authoritative, so a recorded failure here only
// warns.
func AuthResults(msg *core.EmailMessage) core.CheckResult {
	raw := msg.Header("Authentication-Results")
	if raw == "" {
		return core.CheckResult{
			Name: "auth_results", Status: core.StatusInfo, Score: 0.0,
			Title:       "No authentication results",
			Description: "upstream server recorded no verdicts",
		}
	}

	_, results, err := authres.Parse(raw)
	if err != nil {
		return core.CheckResult{
			Name: "auth_results", Status: core.StatusWarn, Score: -0.3,
			Title:       "Unparsable authentication results",
			Description: "Authentication-Results header could not be parsed",
		}
	}

	var failures []string
	for _, res := range results {
		switch r := res.(type) {
		case *authres.SPFResult:
			if r.Value == authres.ResultFail || r.Value == authres.ResultPermError {
				failures = append(failures, "spf="+string(r.Value))
			}
		case *authres.DKIMResult:
			if r.Value == authres.ResultFail || r.Value == authres.ResultPermError {
				failures = append(failures, "dkim="+string(r.Value))
			}
		case *authres.DMARCResult:
			if r.Value == authres.ResultFail {
				failures = append(failures, "dmarc="+string(r.Value))
			}
		}
	}

	if len(failures) > 0 {
		return core.CheckResult{
			Name: "auth_results", Status: core.StatusWarn, Score: -0.5,
			Title:       "Upstream authentication failures",
			Description: strings.Join(failures, "; "),
			Details:     map[string]interface{}{"failures": failures},
		}
	}
	return core.CheckResult{
		Name: "auth_results", Status: core.StatusPass, Score: 0.2,
		Title:       "Upstream authentication clean",
		Description: fmt.Sprintf("%d recorded verdicts, none failing", len(results)),
	}
}

// extractAddress pulls a bare address out of "Name <addr>" or "<addr>".
func extractAddress(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	if start := strings.LastIndex(value, "<"); start >= 0 {
		if end := strings.Index(value[start:], ">"); end > 0 {
			return strings.TrimSpace(value[start+1 : start+end])
		}
	}
	return value
}
