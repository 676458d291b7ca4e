package filter

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mailsentry/mailsentry/internal/core"
)

func TestSpamReason(t *testing.T) {
	result := &core.AnalysisResult{Checks: []core.CheckResult{
		{Status: core.StatusPass, Title: "Links look safe"},
		{Status: core.StatusFail, Title: "Brand impersonation from free mail"},
		{Status: core.StatusWarn, Title: "Header anomalies"},
	}}
	assert.Equal(t, "Brand impersonation from free mail", spamReason(result))

	warnOnly := &core.AnalysisResult{Checks: []core.CheckResult{
		{Status: core.StatusWarn, Title: "Header anomalies"},
	}}
	assert.Equal(t, "Header anomalies", spamReason(warnOnly))

	clean := &core.AnalysisResult{Checks: []core.CheckResult{
		{Status: core.StatusPass, Title: "ok"},
	}}
	assert.Equal(t, "no findings", spamReason(clean))
}
