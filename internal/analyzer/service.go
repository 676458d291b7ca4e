// Package analyzer runs the full check catalogue over one message and
// derives the verdict. It owns the invocation order and the per-check
// failure isolation; the extractors themselves live in internal/checks.
package analyzer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mailsentry/mailsentry/internal/checks"
	"github.com/mailsentry/mailsentry/internal/core"
	"github.com/mailsentry/mailsentry/internal/refdata"
)

// Service is the analysis orchestrator.
type Service struct {
	data       *refdata.RefData
	oracle     core.DNSOracle
	store      core.ResultStore
	metrics    core.Collector
	logger     *zap.Logger
	thresholds core.Thresholds
}

// NewService creates an analyzer service.
func NewService(
	data *refdata.RefData,
	oracle core.DNSOracle,
	store core.ResultStore,
	metrics core.Collector,
	logger *zap.Logger,
	thresholds core.Thresholds,
) *Service {
	return &Service{
		data:       data,
		oracle:     oracle,
		store:      store,
		metrics:    metrics,
		logger:     logger,
		thresholds: thresholds,
	}
}

// Analyze runs every check over the message, derives the verdict and
// persists the result. The result is returned even when persisting fails;
// the error reports the persistence problem only.
func (s *Service) Analyze(ctx context.Context, msg *core.EmailMessage, account string) (*core.AnalysisResult, error) {
	start := time.Now()
	result := core.NewAnalysisResult(msg, account)

	s.runDNSChecks(ctx, msg, result)

	iocs := checks.ExtractIOCs(msg)
	data := s.data

	extractors := []struct {
		name string
		run  func() core.CheckResult
	}{
		{"trigger_words", func() core.CheckResult { return checks.TriggerWords(msg, data) }},
		{"links", func() core.CheckResult { return checks.Links(msg, data, iocs) }},
		{"urls_advanced", func() core.CheckResult { return checks.URLsAdvanced(msg, data, iocs) }},
		{"attachments", func() core.CheckResult { return checks.Attachments(msg, data) }},
		{"html_content", func() core.CheckResult { return checks.HTMLContent(msg) }},
		{"brand_impersonation", func() core.CheckResult { return checks.BrandImpersonation(msg, data) }},
		{"headers", func() core.CheckResult { return checks.Headers(msg) }},
		{"sender", func() core.CheckResult { return checks.Sender(msg, data) }},
		{"low_context", func() core.CheckResult { return checks.LowContext(msg) }},
		{"suspicious_subject", func() core.CheckResult { return checks.SuspiciousSubject(msg, data) }},
		{"link_spoofing", func() core.CheckResult { return checks.LinkSpoofing(msg) }},
		{"suspicious_domains", func() core.CheckResult { return checks.SuspiciousDomains(msg, data, iocs) }},
		{"reply_to", func() core.CheckResult { return checks.ReplyTo(msg, data) }},
		{"envelope_sender", func() core.CheckResult { return checks.EnvelopeSender(msg, data) }},
		{"received_chain", func() core.CheckResult { return checks.ReceivedChain(msg) }},
		{"originating_ip", func() core.CheckResult { return checks.OriginatingIP(msg, iocs) }},
		{"unicode_spoofing", func() core.CheckResult { return checks.UnicodeSpoofing(msg, data) }},
		{"official_from_free", func() core.CheckResult { return checks.OfficialFromFree(msg, data) }},
		{"auth_results", func() core.CheckResult { return checks.AuthResults(msg) }},
		{"malicious_urls", func() core.CheckResult { return checks.MaliciousURLs(data, iocs) }},
	}
	for _, ext := range extractors {
		result.AddCheck(s.runIsolated(ext.name, ext.run))
	}

	result.Finalize(s.thresholds)
	result.AnalysisTimeMs = time.Since(start).Milliseconds()

	s.recordMetrics(result, time.Since(start))
	s.logger.Info("Analyzed message",
		zap.String("message_id", result.MessageID),
		zap.String("account", account),
		zap.Float64("score", result.TotalScore),
		zap.String("risk_level", result.RiskLevel),
		zap.Bool("is_spam", result.IsSpam),
		zap.Bool("is_phishing", result.IsPhishing),
		zap.Int64("duration_ms", result.AnalysisTimeMs))

	if err := s.store.Save(result); err != nil {
		s.logger.Error("Failed to persist analysis result",
			zap.String("message_id", result.MessageID), zap.Error(err))
		return result, fmt.Errorf("failed to persist result: %w", err)
	}
	return result, nil
}

// runDNSChecks queries the oracle for the sender domain's posture. Without
// a sender domain there is nothing to ask; an unreachable oracle degrades
// each check to an ERROR result instead of blocking the analysis.
func (s *Service) runDNSChecks(ctx context.Context, msg *core.EmailMessage, result *core.AnalysisResult) {
	domain := msg.SenderDomain()
	if domain == "" {
		return
	}

	result.AddCheck(s.runIsolated("spf", func() core.CheckResult {
		rec, err := s.oracle.SPF(ctx, domain)
		return checks.SPF(domain, rec, err)
	}))
	result.AddCheck(s.runIsolated("dkim", func() core.CheckResult {
		rec, err := s.oracle.DKIM(ctx, domain, dkimSelector(msg))
		return checks.DKIM(domain, rec, err)
	}))
	result.AddCheck(s.runIsolated("dmarc", func() core.CheckResult {
		rec, err := s.oracle.DMARC(ctx, domain)
		return checks.DMARC(domain, rec, err)
	}))
	result.AddCheck(s.runIsolated("mx", func() core.CheckResult {
		hosts, err := s.oracle.MX(ctx, domain)
		return checks.MX(domain, hosts, err)
	}))
}

// dkimSelector pulls the s= tag from the DKIM-Signature header. An empty
// selector tells the oracle to probe its common-selector list instead.
func dkimSelector(msg *core.EmailMessage) string {
	sig := msg.Header("DKIM-Signature")
	if sig == "" {
		return ""
	}
	for _, tag := range strings.Split(sig, ";") {
		key, value, found := strings.Cut(strings.TrimSpace(tag), "=")
		if found && key == "s" {
			return strings.TrimSpace(value)
		}
	}
	return ""
}

// runIsolated is the panic barrier around one extractor. A panicking check
// becomes an ERROR result; the remaining checks still run.
func (s *Service) runIsolated(name string, run func() core.CheckResult) (res core.CheckResult) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Check panicked",
				zap.String("check", name), zap.Any("panic", r))
			res = s.observe(core.CheckResult{
				Name:        name,
				Status:      core.StatusError,
				Score:       0,
				Title:       "Check failed",
				Description: fmt.Sprintf("internal error: %v", r),
			})
		}
	}()
	return s.observe(run())
}

func (s *Service) observe(res core.CheckResult) core.CheckResult {
	if res.Status == core.StatusError {
		s.metrics.CheckErrored(res.Name)
		s.logger.Warn("Check did not complete",
			zap.String("check", res.Name), zap.String("reason", res.Description))
	}
	return res
}

func (s *Service) recordMetrics(result *core.AnalysisResult, elapsed time.Duration) {
	s.metrics.AnalysisCompleted(result.RiskLevel, elapsed)
	if result.IsSpam {
		s.metrics.SpamDetected(result.EmailAccount)
	}
	if result.IsPhishing {
		s.metrics.PhishingDetected(result.EmailAccount)
	}
}
