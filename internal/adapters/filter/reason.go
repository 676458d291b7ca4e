package filter

import (
	"strings"

	"github.com/mailsentry/mailsentry/internal/core"
)

// spamReason builds the one-line explanation stamped into the reason
// header: the titles of the failing checks, or the worst warnings when
// nothing failed.
func spamReason(result *core.AnalysisResult) string {
	var failed []string
	var warned []string
	for _, c := range result.Checks {
		switch c.Status {
		case core.StatusFail:
			failed = append(failed, c.Title)
		case core.StatusWarn:
			warned = append(warned, c.Title)
		}
	}
	if len(failed) > 0 {
		return join(failed, 3)
	}
	if len(warned) > 0 {
		return join(warned, 3)
	}
	return "no findings"
}

func join(items []string, n int) string {
	if len(items) > n {
		items = items[:n]
	}
	return strings.Join(items, "; ")
}
