package filter

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/mailsentry/mailsentry/internal/analyzer"
	"github.com/mailsentry/mailsentry/internal/core"
)

// CliFilter runs one analysis and renders the per-check report to stdout.
type CliFilter struct {
	service *analyzer.Service
	logger  *zap.Logger
	verbose bool
}

// NewCliFilter creates a new CLI filter
func NewCliFilter(service *analyzer.Service, logger *zap.Logger, verbose bool) (*CliFilter, error) {
	return &CliFilter{
		service: service,
		logger:  logger,
		verbose: verbose,
	}, nil
}

// ProcessEmail analyzes one message and displays the results
func (f *CliFilter) ProcessEmail(ctx context.Context, email *core.EmailMessage) (*core.AnalysisResult, error) {
	f.logger.Debug("Processing email", zap.String("sender", email.FromEmail))

	fmt.Printf("\n=== Email Summary ===\n")
	fmt.Printf("From: %s <%s>\n", email.FromName, email.FromEmail)
	fmt.Printf("To: %s\n", email.ToEmail)
	fmt.Printf("Subject: %s\n", email.Subject)
	fmt.Printf("Body length: %d bytes\n", len(email.BodyText)+len(email.BodyHTML))
	fmt.Printf("Attachments: %d\n", len(email.Attachments))

	if f.verbose {
		preview := email.BodyText
		if len(preview) > 500 {
			preview = preview[:500] + "..."
		}
		fmt.Printf("\nBody preview:\n%s\n", preview)
	}

	fmt.Printf("\n=== Checks ===\n")
	result, err := f.service.Analyze(ctx, email, email.ToEmail)
	if err != nil {
		// Persistence failure only; continue with the verdict.
		f.logger.Warn("Result not persisted", zap.Error(err))
	}
	if result == nil {
		return nil, err
	}

	for _, check := range result.Checks {
		marker := statusMarker(check.Status)
		fmt.Printf("%-4s %-22s %6.2f  %s\n", marker, check.Name, check.Score, check.Title)
		if f.verbose && check.Description != "" {
			fmt.Printf("     %s\n", check.Description)
		}
	}

	fmt.Printf("\n=== Verdict ===\n")
	fmt.Printf("Score: %.2f / 10\n", result.TotalScore)
	fmt.Printf("Risk level: %s\n", result.RiskLevel)
	fmt.Printf("Is spam: %t\n", result.IsSpam)
	fmt.Printf("Is phishing: %t\n", result.IsPhishing)
	fmt.Printf("Processing time: %dms\n", result.AnalysisTimeMs)

	return result, nil
}

func statusMarker(status core.CheckStatus) string {
	switch status {
	case core.StatusPass:
		return "[+]"
	case core.StatusWarn:
		return "[!]"
	case core.StatusFail:
		return "[X]"
	case core.StatusError:
		return "[E]"
	default:
		return "[ ]"
	}
}

// Start is a no-op for the CLI filter
func (f *CliFilter) Start() error {
	return nil
}

// Stop is a no-op for the CLI filter
func (f *CliFilter) Stop() error {
	return nil
}
