package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/mailsentry/mailsentry/internal/batch"
	"github.com/mailsentry/mailsentry/internal/config"
	"github.com/mailsentry/mailsentry/internal/core"
	"github.com/mailsentry/mailsentry/internal/di"
	"github.com/mailsentry/mailsentry/internal/factory"
	"github.com/mailsentry/mailsentry/internal/metrics"
)

func main() {
	// Build the dependency injection container
	container, err := di.BuildContainer()
	if err != nil {
		fmt.Printf("Failed to build dependency container: %v\n", err)
		os.Exit(1)
	}

	// Run the application
	if err := container.Invoke(run); err != nil {
		fmt.Printf("Application error: %v\n", err)
		os.Exit(1)
	}
}

// run is the main application function that gets all dependencies injected
func run(
	cfg *config.Config,
	logger *zap.Logger,
	emailFilter core.EmailFilter,
	oracle core.DNSOracle,
	collector core.Collector,
	store core.ResultStore,
	runner *batch.Runner,
	sourceFactory *factory.SourceFactory,
) error {
	defer logger.Sync()

	// Start the filter
	if err := emailFilter.Start(); err != nil {
		logger.Fatal("Failed to start filter", zap.Error(err))
		return err
	}

	// Serve Prometheus metrics if enabled
	var metricsServer *http.Server
	if prom, ok := collector.(*metrics.PrometheusCollector); ok {
		metricsServer = &http.Server{
			Addr:    cfg.GetString("metrics.listen_address"),
			Handler: prom.Handler(),
		}
		go func() {
			logger.Info("Serving metrics", zap.String("address", metricsServer.Addr))
			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("Metrics server failed", zap.Error(err))
			}
		}()
	}

	// Connect the configured IMAP accounts and start polling them
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sources, err := sourceFactory.CreateMailSources()
	if err != nil {
		logger.Error("Failed to connect mail sources", zap.Error(err))
		_ = emailFilter.Stop()
		return err
	}
	pollDone := make(chan struct{})
	if len(sources) > 0 {
		go func() {
			defer close(pollDone)
			pollSources(ctx, cfg, logger, runner, store, sources)
		}()
	} else {
		close(pollDone)
	}

	// Handle graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	<-sigCh
	logger.Info("Shutting down...")
	cancel()
	<-pollDone

	// Stop the filter
	if err := emailFilter.Stop(); err != nil {
		logger.Error("Failed to stop filter", zap.Error(err))
	}

	// Stop the metrics server
	if metricsServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("Failed to stop metrics server", zap.Error(err))
		}
	}

	// Close mail sources
	for _, s := range sources {
		if err := s.Source.Close(); err != nil {
			logger.Error("Failed to close mail source",
				zap.String("account", s.Account),
				zap.Error(err))
		}
	}

	// Stop the DNS cache if needed
	if stopper, ok := oracle.(interface{ Stop() }); ok {
		stopper.Stop()
	}

	logger.Info("Shutdown complete")
	return nil
}

// pollSources fetches and analyzes new mail on every poll interval,
// quarantining anything the verdict flags.
func pollSources(
	ctx context.Context,
	cfg *config.Config,
	logger *zap.Logger,
	runner *batch.Runner,
	store core.ResultStore,
	sources []factory.AccountSource,
) {
	analysis := cfg.GetAnalysis()
	ticker := time.NewTicker(analysis.PollInterval)
	defer ticker.Stop()

	// First sweep immediately, then on every tick.
	for {
		for _, s := range sources {
			sweepSource(ctx, logger, runner, store, s, analysis.FetchLimit)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func sweepSource(
	ctx context.Context,
	logger *zap.Logger,
	runner *batch.Runner,
	store core.ResultStore,
	s factory.AccountSource,
	fetchLimit int,
) {
	messages, err := s.Source.Fetch(ctx, fetchLimit)
	if err != nil {
		logger.Error("Failed to fetch mail",
			zap.String("account", s.Account),
			zap.Error(err))
		return
	}
	messages = dropAnalyzed(logger, store, s.Account, messages)
	if len(messages) == 0 {
		return
	}
	logger.Info("Analyzing fetched mail",
		zap.String("account", s.Account),
		zap.Int("count", len(messages)))

	for _, outcome := range runner.AnalyzeAll(ctx, messages, s.Account) {
		if outcome.Err != nil {
			logger.Error("Analysis failed",
				zap.String("account", s.Account),
				zap.Error(outcome.Err))
			continue
		}
		if !outcome.Result.ShouldQuarantine() {
			continue
		}
		if err := s.Source.Quarantine(ctx, outcome.Message.MessageID); err != nil {
			logger.Error("Failed to quarantine message",
				zap.String("account", s.Account),
				zap.String("message_id", outcome.Message.MessageID),
				zap.Error(err))
		}
	}
}

// dropAnalyzed filters out messages whose ids are already in the result log.
func dropAnalyzed(
	logger *zap.Logger,
	store core.ResultStore,
	account string,
	messages []*core.EmailMessage,
) []*core.EmailMessage {
	if len(messages) == 0 {
		return messages
	}
	previous, err := store.LoadAll(account, 0)
	if err != nil {
		logger.Warn("Could not read result log, reanalyzing everything",
			zap.String("account", account),
			zap.Error(err))
		return messages
	}
	seen := make(map[string]bool, len(previous))
	for _, r := range previous {
		seen[r.MessageID] = true
	}
	fresh := messages[:0]
	for _, m := range messages {
		if m.MessageID != "" && seen[m.MessageID] {
			continue
		}
		fresh = append(fresh, m)
	}
	return fresh
}
