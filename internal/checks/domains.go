package checks

import (
	"fmt"
	"strings"

	"github.com/mailsentry/mailsentry/internal/core"
	"github.com/mailsentry/mailsentry/internal/refdata"
)

// SuspiciousDomains sweeps every bare domain mentioned in the body against
// the TLD and substring rules. Link and sender checks already grade their
// own domains, so this sweep stays advisory and its penalty is capped.
func SuspiciousDomains(msg *core.EmailMessage, data *refdata.RefData, iocs *core.IOCSet) core.CheckResult {
	if len(iocs.Domains) == 0 {
		return core.CheckResult{
			Name: "suspicious_domains", Status: core.StatusInfo, Score: 0.0,
			Title:       "No domains mentioned",
			Description: "body text references no bare domains",
		}
	}

	sender := strings.ToLower(msg.SenderDomain())
	var flagged []string
	var reasons []string
	for _, domain := range iocs.Domains {
		if strings.EqualFold(domain, sender) {
			continue
		}
		if sus, why := data.IsSuspiciousDomain(domain); sus {
			flagged = append(flagged, domain)
			reasons = append(reasons, domain+": "+strings.Join(why, ", "))
		}
	}

	if len(flagged) == 0 {
		return core.CheckResult{
			Name: "suspicious_domains", Status: core.StatusPass, Score: 0.1,
			Title:       "Mentioned domains look normal",
			Description: fmt.Sprintf("%d domains checked", len(iocs.Domains)),
		}
	}

	capped := len(flagged)
	if capped > 3 {
		capped = 3
	}
	return core.CheckResult{
		Name: "suspicious_domains", Status: core.StatusWarn, Score: -0.5 * float64(capped),
		Title:       "Suspicious domains mentioned",
		Description: strings.Join(truncateList(reasons, 3), "; "),
		Details: map[string]interface{}{
			"flagged": truncateList(flagged, 10),
			"checked": len(iocs.Domains),
		},
	}
}
