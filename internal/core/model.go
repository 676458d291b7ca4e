package core

import (
	"strings"
	"time"
)

// CheckStatus is the outcome class of a single detector.
type CheckStatus string

const (
	StatusPass CheckStatus = "pass"
	StatusWarn CheckStatus = "warning"
	StatusFail CheckStatus = "fail"
	StatusInfo CheckStatus = "info"
	// StatusError means the check could not run at all. It carries no
	// content signal and never participates in verdict rules.
	StatusError CheckStatus = "error"
)

// CheckResult is one detector's finding. It is created once by an extractor
// and never mutated afterwards.
type CheckResult struct {
	Name        string                 `json:"name"`
	Status      CheckStatus            `json:"status"`
	Score       float64                `json:"score"`
	Title       string                 `json:"title"`
	Description string                 `json:"description"`
	Details     map[string]interface{} `json:"details,omitempty"`
}

// Attachment describes one attachment as supplied by the mail transport.
type Attachment struct {
	Filename    string `json:"filename"`
	Size        int64  `json:"size"`
	ContentType string `json:"content_type"`
}

// EmailMessage is the flat message record handed over by the mail transport.
// The transport is responsible for MIME and header-charset decoding; the
// analysis core never sees raw MIME.
type EmailMessage struct {
	MessageID   string
	FromName    string
	FromEmail   string
	ToEmail     string
	Subject     string
	Date        time.Time
	BodyText    string
	BodyHTML    string
	Attachments []Attachment
	Headers     map[string]string
}

// SenderDomain returns the lowercased domain part of the From address, or ""
// when the address has no domain.
func (m *EmailMessage) SenderDomain() string {
	at := strings.LastIndex(m.FromEmail, "@")
	if at < 0 || at == len(m.FromEmail)-1 {
		return ""
	}
	return strings.ToLower(m.FromEmail[at+1:])
}

// Header returns a header value by case-insensitive name.
func (m *EmailMessage) Header(name string) string {
	if v, ok := m.Headers[name]; ok {
		return v
	}
	for k, v := range m.Headers {
		if strings.EqualFold(k, name) {
			return v
		}
	}
	return ""
}

// Risk levels for the final score.
const (
	RiskSafe     = "safe"
	RiskLow      = "low"
	RiskMedium   = "medium"
	RiskHigh     = "high"
	RiskCritical = "critical"
)

// AnalysisResult is one message's full verdict: the envelope copy, the
// ordered list of check results and the derived verdict fields.
type AnalysisResult struct {
	MessageID    string `json:"message_id"`
	EmailAccount string `json:"email_account"`

	FromName  string     `json:"from_name"`
	FromEmail string     `json:"from_email"`
	ToEmail   string     `json:"to_email"`
	Subject   string     `json:"subject"`
	Date      *time.Time `json:"date,omitempty"`

	Checks []CheckResult `json:"checks"`

	TotalScore float64 `json:"total_score"`
	RiskLevel  string  `json:"risk_level"`
	IsSpam     bool    `json:"is_spam"`
	IsPhishing bool    `json:"is_phishing"`

	AnalyzedAt     time.Time `json:"analyzed_at"`
	AnalysisTimeMs int64     `json:"analysis_time_ms"`
}

// NewAnalysisResult creates an empty result with the envelope fields copied
// from the message.
func NewAnalysisResult(msg *EmailMessage, account string) *AnalysisResult {
	r := &AnalysisResult{
		MessageID:    msg.MessageID,
		EmailAccount: account,
		FromName:     msg.FromName,
		FromEmail:    msg.FromEmail,
		ToEmail:      msg.ToEmail,
		Subject:      msg.Subject,
		RiskLevel:    RiskSafe,
		AnalyzedAt:   time.Now(),
	}
	if !msg.Date.IsZero() {
		d := msg.Date
		r.Date = &d
	}
	return r
}

// AddCheck appends a check result. Insertion order is the extractor
// invocation order and is preserved for display.
func (r *AnalysisResult) AddCheck(c CheckResult) {
	r.Checks = append(r.Checks, c)
}

// ShouldQuarantine reports whether the mail transport should move the
// message out of the inbox.
func (r *AnalysisResult) ShouldQuarantine() bool {
	return r.IsSpam || r.IsPhishing || r.RiskLevel == RiskCritical
}

// IOCSet is the typed bag of indicators extracted once per message and
// shared by the extractors that need it, so the raw text is scanned once.
type IOCSet struct {
	URLs    []string
	IPs     []string
	Domains []string
}
