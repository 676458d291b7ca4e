package core

import (
	"context"
	"time"
)

// SPF policies as reported by the DNS oracle.
const (
	SPFPolicyStrict = "strict" // -all
	SPFPolicySoft   = "soft"   // ~all
	SPFPolicyNone   = "none"   // ?all, +all or no all mechanism
)

// SPFRecord is the oracle's answer for a domain's SPF posture.
// DomainNotFound means the domain itself does not resolve, which is a
// stronger signal than a missing record.
type SPFRecord struct {
	Present        bool
	Policy         string
	Raw            string
	DomainNotFound bool
}

// DKIMRecord is the oracle's answer for a DKIM key lookup.
type DKIMRecord struct {
	Present  bool
	Selector string
	KeyBits  int
	Raw      string
}

// DMARC policies as reported by the DNS oracle.
const (
	DMARCPolicyReject     = "reject"
	DMARCPolicyQuarantine = "quarantine"
	DMARCPolicyNone       = "none"
)

// DMARCRecord is the oracle's answer for a domain's DMARC policy.
type DMARCRecord struct {
	Present bool
	Policy  string
	Raw     string
}

// MXHost is one MX record, lowest priority first when listed.
type MXHost struct {
	Priority uint16 `json:"priority"`
	Host     string `json:"host"`
}

// DNSOracle answers authentication-posture questions about a sender domain.
// A non-nil error means the oracle itself was unavailable (no resolver,
// network down, query timeout); "record absent" is reported in the record
// structs, never as an error.
type DNSOracle interface {
	SPF(ctx context.Context, domain string) (*SPFRecord, error)
	DKIM(ctx context.Context, domain, selector string) (*DKIMRecord, error)
	DMARC(ctx context.Context, domain string) (*DMARCRecord, error)
	MX(ctx context.Context, domain string) ([]MXHost, error)
}

// ResultStore persists analysis results. Save must be safe under concurrent
// writers; LoadAll returns newest first, deduplicated by message id.
type ResultStore interface {
	Save(result *AnalysisResult) error
	LoadAll(accountFilter string, limit int) ([]*AnalysisResult, error)
}

// MailSource supplies decoded messages from a mailbox and carries out the
// quarantine action the analyzer signals. MIME decoding is the source's job.
type MailSource interface {
	Fetch(ctx context.Context, limit int) ([]*EmailMessage, error)
	Quarantine(ctx context.Context, messageID string) error
	Close() error
}

// EmailFilter is a mail-processing front end: the SMTP proxy or the CLI.
type EmailFilter interface {
	ProcessEmail(ctx context.Context, email *EmailMessage) (*AnalysisResult, error)
	Start() error
	Stop() error
}

// Collector records analysis metrics. Implementations live in
// internal/metrics; a noop is used when metrics are disabled.
type Collector interface {
	AnalysisCompleted(riskLevel string, duration time.Duration)
	SpamDetected(account string)
	PhishingDetected(account string)
	CheckErrored(checkName string)
}
