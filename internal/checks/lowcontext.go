package checks

import (
	"strings"

	"github.com/mailsentry/mailsentry/internal/core"
)

// LowContext measures how much actual message there is around the links.
// Spam blasts tend toward an empty subject, a near-empty body, or a body
// that is nothing but a link.
func LowContext(msg *core.EmailMessage) core.CheckResult {
	text := strings.TrimSpace(msg.BodyText)
	if text == "" && msg.BodyHTML != "" {
		text = strings.TrimSpace(stripTags(msg.BodyHTML))
	}
	words := len(strings.Fields(text))
	urls := len(urlPattern.FindAllString(msg.BodyText+" "+msg.BodyHTML, -1))
	emptySubject := strings.TrimSpace(msg.Subject) == ""

	score := 0.0
	var issues []string

	if emptySubject {
		score -= 1.0
		issues = append(issues, "empty subject")
	}
	if words < 10 && urls == 0 {
		score -= 0.5
		issues = append(issues, "almost no message text")
	}
	if words < 15 && urls > 0 {
		score -= 2.0
		issues = append(issues, "link with no surrounding context")
		if emptySubject {
			score -= 2.0
			issues = append(issues, "bare link with empty subject")
		}
	}
	if words > 0 && urls > 0 && float64(urls)/float64(words) > 0.2 {
		score -= 0.5
		issues = append(issues, "high link-to-text ratio")
	}

	details := map[string]interface{}{
		"word_count": words,
		"url_count":  urls,
		"issues":     issues,
	}
	switch {
	case len(issues) == 0:
		return core.CheckResult{
			Name: "low_context", Status: core.StatusPass, Score: 0.1,
			Title:       "Enough message context",
			Description: "subject and body carry real content",
			Details:     details,
		}
	case score <= -3.0:
		return core.CheckResult{
			Name: "low_context", Status: core.StatusFail, Score: score,
			Title:       "Contentless link blast",
			Description: strings.Join(issues, "; "),
			Details:     details,
		}
	case score <= -1.0:
		return core.CheckResult{
			Name: "low_context", Status: core.StatusWarn, Score: score,
			Title:       "Very little context",
			Description: strings.Join(issues, "; "),
			Details:     details,
		}
	default:
		return core.CheckResult{
			Name: "low_context", Status: core.StatusInfo, Score: score,
			Title:       "Sparse message",
			Description: strings.Join(issues, "; "),
			Details:     details,
		}
	}
}
