package analyzer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mailsentry/mailsentry/internal/core"
	"github.com/mailsentry/mailsentry/internal/metrics"
	"github.com/mailsentry/mailsentry/internal/refdata"
)

// fakeOracle serves canned DNS facts per domain.
type fakeOracle struct {
	spf   map[string]*core.SPFRecord
	dkim  map[string]*core.DKIMRecord
	dmarc map[string]*core.DMARCRecord
	mx    map[string][]core.MXHost
	err   error
}

func (f *fakeOracle) SPF(_ context.Context, domain string) (*core.SPFRecord, error) {
	if f.err != nil {
		return nil, f.err
	}
	if rec, ok := f.spf[domain]; ok {
		return rec, nil
	}
	return &core.SPFRecord{}, nil
}

func (f *fakeOracle) DKIM(_ context.Context, domain, _ string) (*core.DKIMRecord, error) {
	if f.err != nil {
		return nil, f.err
	}
	if rec, ok := f.dkim[domain]; ok {
		return rec, nil
	}
	return &core.DKIMRecord{}, nil
}

func (f *fakeOracle) DMARC(_ context.Context, domain string) (*core.DMARCRecord, error) {
	if f.err != nil {
		return nil, f.err
	}
	if rec, ok := f.dmarc[domain]; ok {
		return rec, nil
	}
	return &core.DMARCRecord{}, nil
}

func (f *fakeOracle) MX(_ context.Context, domain string) ([]core.MXHost, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.mx[domain], nil
}

// memStore collects saved results in memory.
type memStore struct {
	saved []*core.AnalysisResult
	err   error
}

func (m *memStore) Save(r *core.AnalysisResult) error {
	if m.err != nil {
		return m.err
	}
	m.saved = append(m.saved, r)
	return nil
}

func (m *memStore) LoadAll(string, int) ([]*core.AnalysisResult, error) {
	return m.saved, nil
}

func newService(t *testing.T, oracle *fakeOracle, store *memStore) *Service {
	t.Helper()
	data := refdata.Load("../../data", zap.NewNop())
	return NewService(data, oracle, store, metrics.NewNoop(), zap.NewNop(), core.DefaultThresholds())
}

func checkByName(t *testing.T, result *core.AnalysisResult, name string) core.CheckResult {
	t.Helper()
	for _, c := range result.Checks {
		if c.Name == name {
			return c
		}
	}
	t.Fatalf("check %q not present", name)
	return core.CheckResult{}
}

func TestAnalyzePhishingImpersonation(t *testing.T) {
	oracle := &fakeOracle{
		spf:   map[string]*core.SPFRecord{"gmail.com": {Present: true, Policy: core.SPFPolicySoft, Raw: "v=spf1 ~all"}},
		dkim:  map[string]*core.DKIMRecord{"gmail.com": {Present: true, Selector: "default", KeyBits: 2048}},
		dmarc: map[string]*core.DMARCRecord{"gmail.com": {Present: true, Policy: core.DMARCPolicyNone}},
		mx:    map[string][]core.MXHost{"gmail.com": {{Priority: 10, Host: "mx.gmail.com"}}},
	}
	store := &memStore{}
	svc := newService(t, oracle, store)

	msg := &core.EmailMessage{
		MessageID: "<phish-1@bait.example>",
		FromName:  "Google Support",
		FromEmail: "scammer123@gmail.com",
		ToEmail:   "victim@example.com",
		Subject:   "Security alert: verify your account immediately",
		BodyText:  "Your account will be suspended. Click here https://bit.ly/3xmplq right away to confirm your password.",
		Headers:   map[string]string{"Received": "from unknown (HELO mail) (192.168.1.77)"},
	}

	result, err := svc.Analyze(context.Background(), msg, "victim@example.com")
	require.NoError(t, err)

	assert.True(t, result.IsPhishing)
	assert.True(t, result.IsSpam)
	assert.Equal(t, core.RiskCritical, result.RiskLevel)
	assert.LessOrEqual(t, result.TotalScore, 1.0)
	assert.True(t, result.ShouldQuarantine())

	assert.Equal(t, core.StatusFail, checkByName(t, result, "brand_impersonation").Status)
	assert.Equal(t, core.StatusFail, checkByName(t, result, "official_from_free").Status)
	assert.Equal(t, core.StatusFail, checkByName(t, result, "suspicious_subject").Status)

	require.Len(t, store.saved, 1)
	assert.Equal(t, result.MessageID, store.saved[0].MessageID)
}

func TestAnalyzeLegitimateMail(t *testing.T) {
	oracle := &fakeOracle{
		spf:   map[string]*core.SPFRecord{"accounts.google.com": {Present: true, Policy: core.SPFPolicyStrict, Raw: "v=spf1 -all"}},
		dkim:  map[string]*core.DKIMRecord{"accounts.google.com": {Present: true, Selector: "google", KeyBits: 2048}},
		dmarc: map[string]*core.DMARCRecord{"accounts.google.com": {Present: true, Policy: core.DMARCPolicyReject}},
		mx:    map[string][]core.MXHost{"accounts.google.com": {{Priority: 5, Host: "mx1.google.com"}}},
	}
	store := &memStore{}
	svc := newService(t, oracle, store)

	msg := &core.EmailMessage{
		MessageID: "<report-7@accounts.google.com>",
		FromName:  "Google",
		FromEmail: "no-reply@accounts.google.com",
		ToEmail:   "user@example.com",
		Subject:   "Your monthly storage summary",
		Date:      time.Date(2026, 8, 29, 9, 0, 0, 0, time.UTC),
		BodyText: "Hello, here is the monthly summary of the storage used across your " +
			"services. Everything is within the included quota this month, and there " +
			"is nothing you need to do. Details: https://accounts.google.com/storage",
		Headers: map[string]string{
			"Date":                   "Sat, 29 Aug 2026 09:00:00 +0000",
			"Message-ID":             "<report-7@accounts.google.com>",
			"From":                   "Google <no-reply@accounts.google.com>",
			"To":                     "user@example.com",
			"Received":               "from mail-sor.google.com ([209.85.220.41]) by mx.example.com",
			"Return-Path":            "<no-reply@accounts.google.com>",
			"Authentication-Results": "mx.example.com; spf=pass smtp.mailfrom=accounts.google.com; dkim=pass header.d=google.com",
		},
	}

	result, err := svc.Analyze(context.Background(), msg, "user@example.com")
	require.NoError(t, err)

	assert.False(t, result.IsSpam)
	assert.False(t, result.IsPhishing)
	assert.Equal(t, core.RiskSafe, result.RiskLevel)
	assert.GreaterOrEqual(t, result.TotalScore, 8.0)
	assert.False(t, result.ShouldQuarantine())

	assert.Equal(t, core.StatusPass, checkByName(t, result, "spf").Status)
	assert.Equal(t, core.StatusPass, checkByName(t, result, "brand_impersonation").Status)
}

func TestAnalyzeOracleOutageDegradesToErrors(t *testing.T) {
	oracle := &fakeOracle{err: errors.New("resolver timeout")}
	store := &memStore{}
	svc := newService(t, oracle, store)

	msg := &core.EmailMessage{
		MessageID: "<m@example.com>",
		FromName:  "Alice",
		FromEmail: "alice@example.com",
		Subject:   "Agenda for the retrospective on Friday afternoon",
		BodyText: "Hi all, sharing the agenda ahead of the retrospective so everyone " +
			"can add topics before we meet on Friday afternoon in the usual room.",
		Headers: map[string]string{
			"Date": "x", "Message-ID": "x", "From": "x", "To": "x",
			"Received": "from relay.example.com",
		},
	}

	result, err := svc.Analyze(context.Background(), msg, "user@example.com")
	require.NoError(t, err)

	for _, name := range []string{"spf", "dkim", "dmarc", "mx"} {
		c := checkByName(t, result, name)
		assert.Equal(t, core.StatusError, c.Status, name)
		assert.Zero(t, c.Score, name)
	}
	assert.False(t, result.IsSpam, "oracle outage alone never marks spam")
	assert.Equal(t, core.RiskSafe, result.RiskLevel)
}

func TestAnalyzeWithoutSenderDomainSkipsDNS(t *testing.T) {
	store := &memStore{}
	svc := newService(t, &fakeOracle{}, store)

	msg := &core.EmailMessage{
		MessageID: "<no-from@x>",
		Subject:   "hello",
		BodyText:  "short",
	}

	result, err := svc.Analyze(context.Background(), msg, "user@example.com")
	require.NoError(t, err)

	for _, c := range result.Checks {
		assert.NotContains(t, []string{"spf", "dkim", "dmarc", "mx"}, c.Name)
	}
	assert.Equal(t, core.StatusFail, checkByName(t, result, "sender").Status)
}

func TestAnalyzeReturnsResultOnStoreFailure(t *testing.T) {
	store := &memStore{err: errors.New("disk full")}
	svc := newService(t, &fakeOracle{}, store)

	msg := &core.EmailMessage{
		MessageID: "<m@x>",
		FromName:  "Alice",
		FromEmail: "alice@example.com",
		Subject:   "notes",
		BodyText:  "see you tomorrow at the office for the planning session notes review",
	}

	result, err := svc.Analyze(context.Background(), msg, "user@example.com")
	require.Error(t, err)
	require.NotNil(t, result, "verdict survives persistence failure")
	assert.NotEmpty(t, result.Checks)
}

func TestDKIMSelectorFromSignatureHeader(t *testing.T) {
	msg := &core.EmailMessage{
		Headers: map[string]string{
			"DKIM-Signature": "v=1; a=rsa-sha256; d=example.com; s=mail2026; h=from:to:subject; bh=abc; b=def",
		},
	}
	assert.Equal(t, "mail2026", dkimSelector(msg))

	assert.Equal(t, "", dkimSelector(&core.EmailMessage{}))

	noSelector := &core.EmailMessage{
		Headers: map[string]string{"DKIM-Signature": "v=1; a=rsa-sha256; d=example.com"},
	}
	assert.Equal(t, "", dkimSelector(noSelector))
}

// panicOracle blows up on every lookup.
type panicOracle struct{}

func (panicOracle) SPF(context.Context, string) (*core.SPFRecord, error) { panic("resolver gone") }

func (panicOracle) DKIM(context.Context, string, string) (*core.DKIMRecord, error) {
	panic("resolver gone")
}

func (panicOracle) DMARC(context.Context, string) (*core.DMARCRecord, error) {
	panic("resolver gone")
}

func (panicOracle) MX(context.Context, string) ([]core.MXHost, error) { panic("resolver gone") }

func TestAnalyzeSurvivesPanickingOracle(t *testing.T) {
	store := &memStore{}
	data := refdata.Load("../../data", zap.NewNop())
	svc := NewService(data, panicOracle{}, store, metrics.NewNoop(), zap.NewNop(), core.DefaultThresholds())

	msg := &core.EmailMessage{
		MessageID: "<p@x>",
		FromName:  "Alice",
		FromEmail: "alice@example.com",
		Subject:   "notes",
		BodyText:  "see you tomorrow at the office for the planning session notes review",
	}

	result, err := svc.Analyze(context.Background(), msg, "user@example.com")
	require.NoError(t, err)
	require.NotNil(t, result)

	for _, name := range []string{"spf", "dkim", "dmarc", "mx"} {
		assert.Equal(t, core.StatusError, checkByName(t, result, name).Status, name)
	}
	assert.Greater(t, len(result.Checks), 4, "content checks still ran")
}
