package checks

import (
	"regexp"
	"strings"

	"github.com/mailsentry/mailsentry/internal/core"
	"github.com/mailsentry/mailsentry/internal/refdata"
)

var officialWords = []string{
	"support", "admin", "security", "team", "service", "help",
	"account", "billing", "verify", "notification", "alert",
	"поддержка", "служба", "безопасность", "команда",
}

var embeddedEmailPattern = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)

func containsOfficialWord(s string) (string, bool) {
	lower := strings.ToLower(s)
	for _, word := range officialWords {
		if strings.Contains(lower, word) {
			return word, true
		}
	}
	return "", false
}

// Sender grades the From identity itself: a missing address, an
// official-sounding display name on a free-mail account, a second address
// embedded in the display name, or a suspicious sender domain.
func Sender(msg *core.EmailMessage, data *refdata.RefData) core.CheckResult {
	if msg.FromEmail == "" {
		return core.CheckResult{
			Name: "sender", Status: core.StatusFail, Score: -1.0,
			Title:       "No sender address",
			Description: "message carries no From address",
		}
	}

	score := 0.0
	var issues []string
	domain := msg.SenderDomain()

	if data.IsFreeEmailDomain(domain) {
		if word, ok := containsOfficialWord(msg.FromName); ok {
			score -= 1.0
			issues = append(issues, "official-sounding name \""+word+"\" on free-mail account")
		}
	}

	if embedded := embeddedEmailPattern.FindString(msg.FromName); embedded != "" &&
		!strings.EqualFold(embedded, msg.FromEmail) {
		score -= 0.5
		issues = append(issues, "different address embedded in display name: "+embedded)
	}

	if sus, reasons := data.IsSuspiciousDomain(domain); sus {
		score -= 0.5 * float64(len(reasons))
		issues = append(issues, reasons...)
	}

	details := map[string]interface{}{
		"from_name":  msg.FromName,
		"from_email": msg.FromEmail,
		"issues":     issues,
	}
	switch {
	case len(issues) == 0:
		return core.CheckResult{
			Name: "sender", Status: core.StatusPass, Score: 0.1,
			Title:       "Sender identity consistent",
			Description: "no anomalies in the From identity",
		}
	case score > -1.0:
		return core.CheckResult{
			Name: "sender", Status: core.StatusWarn, Score: score,
			Title:       "Sender identity anomalies",
			Description: strings.Join(issues, "; "),
			Details:     details,
		}
	default:
		return core.CheckResult{
			Name: "sender", Status: core.StatusFail, Score: score,
			Title:       "Deceptive sender identity",
			Description: strings.Join(issues, "; "),
			Details:     details,
		}
	}
}

// OfficialFromFree is the hard rule behind the softer sender check: a
// free-mail sender presenting as an organization, a brand or with a known
// phishing phrase is an unconditional failure with veto power.
func OfficialFromFree(msg *core.EmailMessage, data *refdata.RefData) core.CheckResult {
	domain := msg.SenderDomain()
	if domain == "" || !data.IsFreeEmailDomain(domain) {
		return core.CheckResult{
			Name: "official_from_free", Status: core.StatusInfo, Score: 0.0,
			Title:       "Not a free-mail sender",
			Description: "rule applies only to free-mail accounts",
		}
	}

	haystack := strings.ToLower(msg.FromName + " " + msg.Subject)
	details := map[string]interface{}{
		"from_email": msg.FromEmail,
		"from_name":  msg.FromName,
	}

	for keyword, brand := range data.BrandKeywords() {
		if strings.Contains(haystack, keyword) {
			details["matched"] = "brand: " + brand
			return core.CheckResult{
				Name: "official_from_free", Status: core.StatusFail, Score: -3.0,
				Title:       "Organization claim from free mail",
				Description: brand + " referenced from free-mail account " + msg.FromEmail,
				Details:     details,
			}
		}
	}
	if word, ok := containsOfficialWord(msg.FromName); ok {
		details["matched"] = "official word: " + word
		return core.CheckResult{
			Name: "official_from_free", Status: core.StatusFail, Score: -3.0,
			Title:       "Organization claim from free mail",
			Description: "display name \"" + msg.FromName + "\" presents as an organization from " + domain,
			Details:     details,
		}
	}
	for _, phrase := range data.PhishingSubjects {
		if strings.Contains(haystack, phrase) {
			details["matched"] = "phrase: " + phrase
			return core.CheckResult{
				Name: "official_from_free", Status: core.StatusFail, Score: -3.0,
				Title:       "Phishing phrase from free mail",
				Description: "subject phrase \"" + phrase + "\" sent from " + domain,
				Details:     details,
			}
		}
	}
	return core.CheckResult{
		Name: "official_from_free", Status: core.StatusPass, Score: 0.0,
		Title:       "Free-mail sender without claims",
		Description: "no organization or brand claims from this account",
	}
}

// SuspiciousSubject flags subject-line social engineering, but only when
// paired with a free-mail sender: legitimate providers send "verify your
// account" mail from their own domains.
func SuspiciousSubject(msg *core.EmailMessage, data *refdata.RefData) core.CheckResult {
	if strings.TrimSpace(msg.Subject) == "" {
		return core.CheckResult{
			Name: "suspicious_subject", Status: core.StatusInfo, Score: 0.0,
			Title:       "No subject",
			Description: "message has an empty subject line",
		}
	}

	free := data.IsFreeEmailDomain(msg.SenderDomain())
	subject := strings.ToLower(msg.Subject)
	name := strings.ToLower(msg.FromName)

	var matched []string
	for _, phrase := range data.PhishingSubjects {
		if strings.Contains(subject, phrase) {
			matched = append(matched, phrase)
		}
	}
	var brandInName string
	for keyword, brand := range data.BrandKeywords() {
		if strings.Contains(name, keyword) {
			brandInName = brand
			break
		}
	}

	details := map[string]interface{}{
		"subject":         msg.Subject,
		"matched_phrases": matched,
	}
	switch {
	case free && len(matched) > 0:
		return core.CheckResult{
			Name: "suspicious_subject", Status: core.StatusFail, Score: -2.5,
			Title:       "Phishing subject from free mail",
			Description: "subject phrase \"" + matched[0] + "\" from free-mail sender",
			Details:     details,
		}
	case free && brandInName != "":
		details["brand"] = brandInName
		return core.CheckResult{
			Name: "suspicious_subject", Status: core.StatusFail, Score: -2.5,
			Title:       "Brand display name from free mail",
			Description: brandInName + " in display name of a free-mail sender",
			Details:     details,
		}
	case len(matched) > 0:
		return core.CheckResult{
			Name: "suspicious_subject", Status: core.StatusWarn, Score: -0.5,
			Title:       "Pressure phrases in subject",
			Description: "subject phrase \"" + matched[0] + "\"",
			Details:     details,
		}
	default:
		return core.CheckResult{
			Name: "suspicious_subject", Status: core.StatusPass, Score: 0.1,
			Title:       "Subject looks normal",
			Description: "no known pressure phrases",
		}
	}
}
