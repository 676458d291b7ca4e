package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"

	"github.com/mailsentry/mailsentry/internal/adapters/resultlog"
	"github.com/mailsentry/mailsentry/internal/analyzer"
	"github.com/mailsentry/mailsentry/internal/core"
	"github.com/mailsentry/mailsentry/internal/di"
	"github.com/mailsentry/mailsentry/internal/mailparse"
)

// errQuarantined signals a flagged verdict through the error path so run's
// deferred cleanup executes before the process exits non-zero.
var errQuarantined = errors.New("message flagged for quarantine")

func main() {
	flags := di.ParseFlags()

	// Build the dependency injection container
	container, err := di.BuildCLIContainer(flags)
	if err != nil {
		fmt.Printf("Failed to build dependency container: %v\n", err)
		os.Exit(2)
	}

	// Run the analysis
	err = container.Invoke(run)
	if err != nil && !errors.Is(err, errQuarantined) {
		fmt.Printf("Application error: %v\n", err)
	}
	os.Exit(exitCode(err))
}

// exitCode maps the run outcome to the process exit status: 0 clean,
// 1 flagged message, 2 failure.
func exitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, errQuarantined):
		return 1
	default:
		return 2
	}
}

// run reads one message, analyzes it and renders the verdict
func run(flags *di.CLIFlags, logger *zap.Logger, emailFilter core.EmailFilter, service *analyzer.Service) error {
	defer logger.Sync()

	if flags.Stats {
		return printStats(flags, logger)
	}

	// Read email from file or stdin
	var emailReader io.Reader
	if flags.InputFile != "" {
		file, err := os.Open(flags.InputFile)
		if err != nil {
			return fmt.Errorf("failed to open input file %s: %w", flags.InputFile, err)
		}
		defer file.Close()
		emailReader = file
		logger.Debug("Reading email from file", zap.String("file", flags.InputFile))
	} else {
		emailReader = os.Stdin
		logger.Debug("Reading email from stdin")
	}

	// Parse email
	msg, err := mailparse.ParseMessage(bufio.NewReader(emailReader))
	if err != nil {
		return fmt.Errorf("failed to parse email: %w", err)
	}

	// JSON output skips the rendered report and emits the raw result
	var result *core.AnalysisResult
	if flags.JSONOut {
		result, err = service.Analyze(context.Background(), msg, msg.ToEmail)
		if err != nil {
			return fmt.Errorf("failed to analyze email: %w", err)
		}
		encoded, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode result: %w", err)
		}
		fmt.Println(string(encoded))
	} else {
		result, err = emailFilter.ProcessEmail(context.Background(), msg)
		if err != nil {
			return fmt.Errorf("failed to analyze email: %w", err)
		}
	}

	if result.ShouldQuarantine() {
		return errQuarantined
	}
	return nil
}

// printStats summarizes the result log instead of analyzing a message.
func printStats(flags *di.CLIFlags, logger *zap.Logger) error {
	dir := flags.ResultsDir
	if dir == "" {
		dir = "./results"
	}
	store, err := resultlog.NewStore(dir, logger)
	if err != nil {
		return fmt.Errorf("failed to open result log: %w", err)
	}

	stats, err := store.Statistics("")
	if err != nil {
		return fmt.Errorf("failed to aggregate results: %w", err)
	}

	if flags.JSONOut {
		encoded, err := json.MarshalIndent(stats, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode statistics: %w", err)
		}
		fmt.Println(string(encoded))
		return nil
	}

	fmt.Printf("\n=== Result Log (%s) ===\n", dir)
	fmt.Printf("Analyzed: %d\n", stats.Total)
	fmt.Printf("Spam: %d\n", stats.Spam)
	fmt.Printf("Phishing: %d\n", stats.Phishing)
	fmt.Printf("Average score: %.2f\n", stats.AverageScore)
	for level, count := range stats.ByRiskLevel {
		fmt.Printf("  %s: %d\n", level, count)
	}
	return nil
}
