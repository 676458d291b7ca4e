package checks

import (
	"fmt"

	"github.com/mailsentry/mailsentry/internal/core"
)

// The four DNS-posture extractors consume facts from the DNS oracle. A
// non-nil oracle error yields an ERROR result that carries no score and
// participates in no verdict rule.

// SPF grades the sender domain's SPF posture. A domain that does not exist
// at all is a FAIL in its own right.
func SPF(domain string, rec *core.SPFRecord, err error) core.CheckResult {
	if err != nil {
		return oracleUnavailable("spf", "SPF check unavailable", err)
	}
	if rec.DomainNotFound {
		return core.CheckResult{
			Name:        "spf",
			Status:      core.StatusFail,
			Score:       -1.0,
			Title:       "Sender domain does not exist",
			Description: fmt.Sprintf("domain %s is not registered in DNS", domain),
			Details:     map[string]interface{}{"domain": domain},
		}
	}
	if !rec.Present {
		return core.CheckResult{
			Name:        "spf",
			Status:      core.StatusWarn,
			Score:       -0.5,
			Title:       "SPF record missing",
			Description: fmt.Sprintf("domain %s publishes no SPF record", domain),
			Details:     map[string]interface{}{"domain": domain},
		}
	}

	details := map[string]interface{}{"domain": domain, "spf_record": rec.Raw, "policy": rec.Policy}
	switch rec.Policy {
	case core.SPFPolicyStrict:
		return core.CheckResult{
			Name: "spf", Status: core.StatusPass, Score: 0.5,
			Title:       "SPF configured strictly",
			Description: "hard-fail policy (-all)",
			Details:     details,
		}
	case core.SPFPolicySoft:
		return core.CheckResult{
			Name: "spf", Status: core.StatusPass, Score: 0.3,
			Title:       "SPF configured",
			Description: "soft-fail policy (~all)",
			Details:     details,
		}
	default:
		return core.CheckResult{
			Name: "spf", Status: core.StatusWarn, Score: 0.0,
			Title:       "SPF policy is weak",
			Description: "record present but policy is not enforcing",
			Details:     details,
		}
	}
}

// DKIM grades the DKIM key found for the sender domain, rewarding 2048-bit
// keys over the legacy 1024-bit minimum.
func DKIM(domain string, rec *core.DKIMRecord, err error) core.CheckResult {
	if err != nil {
		return oracleUnavailable("dkim", "DKIM check unavailable", err)
	}
	if !rec.Present {
		return core.CheckResult{
			Name:        "dkim",
			Status:      core.StatusWarn,
			Score:       -0.3,
			Title:       "DKIM key not found",
			Description: fmt.Sprintf("no DKIM key located for %s", domain),
			Details:     map[string]interface{}{"domain": domain},
		}
	}

	details := map[string]interface{}{"domain": domain, "selector": rec.Selector}
	if rec.KeyBits > 0 {
		details["key_bits_approx"] = rec.KeyBits
	}
	score := 0.3
	desc := fmt.Sprintf("DKIM key found (selector: %s)", rec.Selector)
	if rec.KeyBits >= 2048 {
		score = 0.5
	} else if rec.KeyBits > 0 && rec.KeyBits < 1024 {
		desc += ", key shorter than 1024 bits"
	}
	return core.CheckResult{
		Name: "dkim", Status: core.StatusPass, Score: score,
		Title:       "DKIM configured",
		Description: desc,
		Details:     details,
	}
}

// DMARC grades the domain's DMARC policy strictness.
func DMARC(domain string, rec *core.DMARCRecord, err error) core.CheckResult {
	if err != nil {
		return oracleUnavailable("dmarc", "DMARC check unavailable", err)
	}
	if !rec.Present {
		return core.CheckResult{
			Name:        "dmarc",
			Status:      core.StatusWarn,
			Score:       -0.3,
			Title:       "DMARC not configured",
			Description: fmt.Sprintf("no DMARC record for %s", domain),
			Details:     map[string]interface{}{"domain": domain},
		}
	}

	details := map[string]interface{}{"domain": domain, "dmarc_record": rec.Raw, "policy": rec.Policy}
	switch rec.Policy {
	case core.DMARCPolicyReject:
		return core.CheckResult{
			Name: "dmarc", Status: core.StatusPass, Score: 0.5,
			Title:       "DMARC enforced",
			Description: "reject policy",
			Details:     details,
		}
	case core.DMARCPolicyQuarantine:
		return core.CheckResult{
			Name: "dmarc", Status: core.StatusPass, Score: 0.4,
			Title:       "DMARC configured",
			Description: "quarantine policy",
			Details:     details,
		}
	default:
		return core.CheckResult{
			Name: "dmarc", Status: core.StatusWarn, Score: 0.1,
			Title:       "DMARC is monitor-only",
			Description: "policy none, alignment not enforced",
			Details:     details,
		}
	}
}

// MX checks that the sender domain can receive mail at all.
func MX(domain string, hosts []core.MXHost, err error) core.CheckResult {
	if err != nil {
		return oracleUnavailable("mx", "MX check unavailable", err)
	}
	if len(hosts) == 0 {
		return core.CheckResult{
			Name:        "mx",
			Status:      core.StatusWarn,
			Score:       -0.5,
			Title:       "No MX records",
			Description: fmt.Sprintf("domain %s cannot receive mail", domain),
			Details:     map[string]interface{}{"domain": domain},
		}
	}
	return core.CheckResult{
		Name:        "mx",
		Status:      core.StatusPass,
		Score:       0.2,
		Title:       "MX records present",
		Description: fmt.Sprintf("%d MX records found", len(hosts)),
		Details:     map[string]interface{}{"domain": domain, "mx_records": hosts},
	}
}

func oracleUnavailable(name, title string, err error) core.CheckResult {
	return core.CheckResult{
		Name:        name,
		Status:      core.StatusError,
		Score:       0,
		Title:       title,
		Description: err.Error(),
	}
}
