package core

import "math"

// Verdict rule tables. Detection is categorical: it is driven by check names
// and statuses, never by the numeric score alone. The numeric score is a
// human-facing severity dial that gets clamped once a rule fires, so a
// single strong signal cannot be outvoted by a pile of passing checks.

// phishingGrade lists checks where one FAIL (or a penalty at or below
// severePenalty) marks the message as phishing.
var phishingGrade = map[string]bool{
	"brand_impersonation":   true,
	"suspicious_links":      true,
	"credential_harvesting": true,
	"link_spoofing":         true,
	"suspicious_subject":    true,
	"urls_advanced":         true,
	"envelope_sender":       true,
	"reply_to":              true,
	"suspicious_domains":    true,
	"unicode_spoofing":      true,
	"official_from_free":    true,
	"malicious_urls":        true,
}

// vetoChecks carry unconditional veto power: a FAIL sets both phishing and
// spam regardless of anything else.
var vetoChecks = map[string]bool{
	"unicode_spoofing":   true,
	"official_from_free": true,
	"malicious_urls":     true,
}

// criticalThreat marks content-delivery threats (dangerous attachments,
// credential-harvesting HTML).
var criticalThreat = map[string]bool{
	"attachments":  true,
	"html_content": true,
}

// spamGrade marks structural spam signals.
var spamGrade = map[string]bool{
	"low_context":    true,
	"received_chain": true,
}

// Thresholds are the empirically tuned combination constants. They are
// reproduced behavior, not law; tests may override them.
type Thresholds struct {
	// SeverePenalty is the per-check score at or below which a
	// phishing-grade check counts as phishing even without FAIL status.
	SeverePenalty float64
	// FailCount alone, or FailPair together with WarnPair, flags spam.
	FailCount int
	FailPair  int
	WarnPair  int
	// WarnOnly flags spam on many warnings with zero failures.
	WarnOnly int
	// ThreatCap is the score ceiling once spam or phishing is flagged.
	ThreatCap float64
}

// DefaultThresholds returns the tuned production constants.
func DefaultThresholds() Thresholds {
	return Thresholds{
		SeverePenalty: -2.0,
		FailCount:     3,
		FailPair:      2,
		WarnPair:      3,
		WarnOnly:      5,
		ThreatCap:     1.0,
	}
}

// Verdict is the output of the scoring engine.
type Verdict struct {
	TotalScore float64
	RiskLevel  string
	IsSpam     bool
	IsPhishing bool
}

// CalculateScore aggregates a check list into a verdict. It is a pure
// function of its input: calling it twice on the same list yields the same
// verdict, and ERROR-status checks contribute nothing.
func CalculateScore(checks []CheckResult, th Thresholds) Verdict {
	v := Verdict{}
	score := 10.0

	failCount := 0
	warnCount := 0
	severePenalty := 0.0 // kept for traceability, not used beyond the cap

	for _, c := range checks {
		switch c.Status {
		case StatusFail:
			failCount++
		case StatusWarn:
			warnCount++
		}

		if phishingGrade[c.Name] {
			if c.Status == StatusFail {
				v.IsPhishing = true
				severePenalty += math.Abs(c.Score)
			} else if c.Score <= th.SeverePenalty {
				v.IsPhishing = true
				severePenalty += math.Abs(c.Score)
			}
		}

		if vetoChecks[c.Name] && c.Status == StatusFail {
			v.IsPhishing = true
			v.IsSpam = true
		}

		if criticalThreat[c.Name] && c.Status == StatusFail && c.Score <= th.SeverePenalty {
			v.IsSpam = true
			severePenalty += math.Abs(c.Score)
		}

		if spamGrade[c.Name] && c.Status == StatusFail {
			v.IsSpam = true
		}
	}

	// Combination rules: several independent failures, or a failure pair
	// backed by warnings, mean spam even when no single check was decisive.
	if failCount >= th.FailCount || (failCount >= th.FailPair && warnCount >= th.WarnPair) {
		v.IsSpam = true
	}
	// Many weak signals without a single failure are just as meaningful.
	if warnCount >= th.WarnOnly && failCount == 0 {
		v.IsSpam = true
	}

	for _, c := range checks {
		score += c.Score
	}

	// A detected threat caps the score: benign headers must not dilute a
	// phishing message back into the safe range.
	if v.IsPhishing || v.IsSpam {
		score = math.Min(score, th.ThreatCap)
	}

	v.TotalScore = math.Max(0.0, math.Min(10.0, score))

	switch {
	case v.IsPhishing || v.IsSpam:
		v.RiskLevel = RiskCritical
	case v.TotalScore >= 8:
		v.RiskLevel = RiskSafe
	case v.TotalScore >= 6:
		v.RiskLevel = RiskLow
	case v.TotalScore >= 4:
		v.RiskLevel = RiskMedium
	case v.TotalScore >= 2:
		v.RiskLevel = RiskHigh
	default:
		v.RiskLevel = RiskCritical
	}

	return v
}

// Finalize runs the verdict engine over the result's checks and freezes the
// derived fields. Re-running on the same check list is idempotent.
func (r *AnalysisResult) Finalize(th Thresholds) {
	v := CalculateScore(r.Checks, th)
	r.TotalScore = v.TotalScore
	r.RiskLevel = v.RiskLevel
	r.IsSpam = v.IsSpam
	r.IsPhishing = v.IsPhishing
}
