package checks

import (
	"fmt"
	"strings"

	"github.com/mailsentry/mailsentry/internal/core"
	"github.com/mailsentry/mailsentry/internal/refdata"
)

// Per-category penalties, each capped at three matches so one wordy category
// cannot dominate the check.
var triggerCategories = []struct {
	key     string
	label   string
	penalty float64
}{
	{"urgent_words", "urgent", 0.3},
	{"threat_words", "threat", 0.5},
	{"action_words", "action", 0.2},
	{"money_words", "money", 0.4},
	{"credential_words", "credential", 0.6},
}

// TriggerWords scans subject and body for urgency, threat and
// credential-request language. Three or more distinct hits is a failure.
func TriggerWords(msg *core.EmailMessage, data *refdata.RefData) core.CheckResult {
	fullText := strings.ToLower(msg.Subject + " " + msg.BodyText + " " + stripTags(msg.BodyHTML))

	found := map[string][]string{}
	total := 0
	score := 0.0

	for _, cat := range triggerCategories {
		var hits []string
		for word := range data.TriggerWordsByCategory(cat.key) {
			if strings.Contains(fullText, word) {
				hits = append(hits, word)
			}
		}
		if len(hits) > 0 {
			found[cat.label] = hits
			total += len(hits)
			n := len(hits)
			if n > 3 {
				n = 3
			}
			score -= cat.penalty * float64(n)
		}
	}

	switch {
	case total == 0:
		return core.CheckResult{
			Name: "trigger_words", Status: core.StatusPass, Score: 0.2,
			Title:       "No trigger words",
			Description: "text contains no common phishing phrases",
		}
	case total <= 2:
		return core.CheckResult{
			Name: "trigger_words", Status: core.StatusWarn, Score: score,
			Title:       "Trigger words found",
			Description: fmt.Sprintf("%d trigger words detected", total),
			Details:     map[string]interface{}{"found": found},
		}
	default:
		return core.CheckResult{
			Name: "trigger_words", Status: core.StatusFail, Score: score,
			Title:       "Heavy trigger-word usage",
			Description: fmt.Sprintf("%d trigger words detected, typical of phishing", total),
			Details:     map[string]interface{}{"found": found},
		}
	}
}
