package checks

import (
	"fmt"
	"strings"

	"github.com/mailsentry/mailsentry/internal/core"
	"github.com/mailsentry/mailsentry/internal/refdata"
)

// Attachments grades every attachment by extension tier. A critical tier hit
// (executables, double extensions) fails the check outright; high and medium
// tiers accumulate as warnings.
func Attachments(msg *core.EmailMessage, data *refdata.RefData) core.CheckResult {
	if len(msg.Attachments) == 0 {
		return core.CheckResult{
			Name: "attachments", Status: core.StatusInfo, Score: 0.0,
			Title:       "No attachments",
			Description: "message has no attachments",
		}
	}

	var criticalFindings []string
	var warnings []string
	names := make([]string, 0, len(msg.Attachments))

	for _, att := range msg.Attachments {
		names = append(names, att.Filename)
		dangerous, tier, reason := data.IsDangerousExtension(att.Filename)
		if !dangerous {
			continue
		}
		finding := att.Filename + ": " + reason
		if tier == refdata.TierCritical {
			criticalFindings = append(criticalFindings, finding)
		} else {
			warnings = append(warnings, finding)
		}
	}

	details := map[string]interface{}{
		"attachments": names,
		"critical":    criticalFindings,
		"warnings":    warnings,
	}

	switch {
	case len(criticalFindings) > 0:
		return core.CheckResult{
			Name: "attachments", Status: core.StatusFail, Score: -3.0,
			Title:       "Dangerous attachment",
			Description: strings.Join(criticalFindings, "; "),
			Details:     details,
		}
	case len(warnings) > 0:
		return core.CheckResult{
			Name: "attachments", Status: core.StatusWarn, Score: -0.5 * float64(len(warnings)),
			Title:       "Risky attachments",
			Description: strings.Join(warnings, "; "),
			Details:     details,
		}
	default:
		return core.CheckResult{
			Name: "attachments", Status: core.StatusPass, Score: 0.0,
			Title:       "Attachments look safe",
			Description: fmt.Sprintf("%d attachments, none dangerous", len(msg.Attachments)),
			Details:     details,
		}
	}
}
