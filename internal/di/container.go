package di

import (
	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/mailsentry/mailsentry/internal/adapters/dnscache"
	"github.com/mailsentry/mailsentry/internal/adapters/resultlog"
	"github.com/mailsentry/mailsentry/internal/analyzer"
	"github.com/mailsentry/mailsentry/internal/batch"
	"github.com/mailsentry/mailsentry/internal/config"
	"github.com/mailsentry/mailsentry/internal/core"
	"github.com/mailsentry/mailsentry/internal/factory"
	"github.com/mailsentry/mailsentry/internal/logging"
	"github.com/mailsentry/mailsentry/internal/metrics"
	"github.com/mailsentry/mailsentry/internal/refdata"
)

// BuildContainer creates and configures a dependency injection container
func BuildContainer() (*dig.Container, error) {
	container := dig.New()

	// Register configuration
	if err := container.Provide(config.New); err != nil {
		return nil, err
	}

	// Register logger
	if err := container.Provide(logging.InitLogger); err != nil {
		return nil, err
	}

	// Register reference data
	if err := container.Provide(func(cfg *config.Config, logger *zap.Logger) *refdata.RefData {
		return refdata.Load(cfg.GetString("data.dir"), logger)
	}); err != nil {
		return nil, err
	}

	// Register factories
	if err := container.Provide(factory.NewCacheFactory); err != nil {
		return nil, err
	}
	if err := container.Provide(factory.NewFilterFactory); err != nil {
		return nil, err
	}
	if err := container.Provide(factory.NewSourceFactory); err != nil {
		return nil, err
	}

	// Register DNS oracle
	if err := container.Provide(func(f *factory.CacheFactory) (*dnscache.Oracle, error) {
		return f.CreateOracle()
	}); err != nil {
		return nil, err
	}
	if err := container.Provide(func(oracle *dnscache.Oracle) core.DNSOracle {
		return oracle
	}); err != nil {
		return nil, err
	}

	// Register result store
	if err := container.Provide(func(cfg *config.Config, logger *zap.Logger) (core.ResultStore, error) {
		return resultlog.NewStore(cfg.GetString("results.dir"), logger)
	}); err != nil {
		return nil, err
	}

	// Register metrics collector
	if err := container.Provide(func(cfg *config.Config) core.Collector {
		if cfg.GetBool("metrics.enabled") {
			return metrics.NewPrometheusCollector()
		}
		return metrics.NewNoop()
	}); err != nil {
		return nil, err
	}

	// Register verdict thresholds
	if err := container.Provide(core.DefaultThresholds); err != nil {
		return nil, err
	}

	// Register analysis service
	if err := container.Provide(analyzer.NewService); err != nil {
		return nil, err
	}

	// Register batch runner
	if err := container.Provide(func(cfg *config.Config, service *analyzer.Service) *batch.Runner {
		return batch.NewRunner(service, cfg.GetAnalysis().Workers)
	}); err != nil {
		return nil, err
	}

	// Register email filter
	if err := container.Provide(func(f *factory.FilterFactory) (core.EmailFilter, error) {
		return f.CreateEmailFilter()
	}); err != nil {
		return nil, err
	}

	return container, nil
}
