package checks

import (
	"strings"

	"github.com/mailsentry/mailsentry/internal/core"
	"github.com/mailsentry/mailsentry/internal/refdata"
)

// BrandImpersonation cross-checks brand references in the display name and
// subject against the sender's actual domain. A brand claim from a
// free-mail address or from an unrelated domain is treated as spoofing;
// mail genuinely originating from a brand-owned domain confirms the claim.
func BrandImpersonation(msg *core.EmailMessage, data *refdata.RefData) core.CheckResult {
	domain := msg.SenderDomain()
	if domain == "" {
		return core.CheckResult{
			Name: "brand_impersonation", Status: core.StatusInfo, Score: 0.0,
			Title:       "No sender domain",
			Description: "cannot evaluate brand claims without a sender address",
		}
	}

	// Free-mail providers may also appear in a brand's domain list (gmail
	// under Google), but a personal account there proves nothing.
	if !data.IsFreeEmailDomain(domain) {
		if brand := data.BrandForDomain(domain); brand != "" {
			return core.CheckResult{
				Name: "brand_impersonation", Status: core.StatusPass, Score: 0.5,
				Title:       "Sender domain owned by " + brand,
				Description: "mail originates from a registered brand domain",
				Details:     map[string]interface{}{"brand": brand, "domain": domain},
			}
		}
	}

	haystack := strings.ToLower(msg.FromName + " " + msg.Subject)
	var claimed string
	for keyword, brand := range data.BrandKeywords() {
		if strings.Contains(haystack, keyword) {
			claimed = brand
			break
		}
	}
	if claimed == "" {
		return core.CheckResult{
			Name: "brand_impersonation", Status: core.StatusInfo, Score: 0.0,
			Title:       "No brand references",
			Description: "no known brand mentioned in sender name or subject",
		}
	}

	details := map[string]interface{}{
		"claimed_brand": claimed,
		"sender_domain": domain,
	}
	if data.IsFreeEmailDomain(domain) {
		return core.CheckResult{
			Name: "brand_impersonation", Status: core.StatusFail, Score: -3.0,
			Title:       "Brand impersonation from free mail",
			Description: claimed + " referenced but sender uses free provider " + domain,
			Details:     details,
		}
	}
	return core.CheckResult{
		Name: "brand_impersonation", Status: core.StatusFail, Score: -2.5,
		Title:       "Brand referenced from unrelated domain",
		Description: claimed + " referenced but sender domain is " + domain,
		Details:     details,
	}
}
