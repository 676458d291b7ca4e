package di

import (
	"flag"

	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/mailsentry/mailsentry/internal/adapters/dnscache"
	"github.com/mailsentry/mailsentry/internal/adapters/resultlog"
	"github.com/mailsentry/mailsentry/internal/analyzer"
	"github.com/mailsentry/mailsentry/internal/config"
	"github.com/mailsentry/mailsentry/internal/core"
	"github.com/mailsentry/mailsentry/internal/factory"
	"github.com/mailsentry/mailsentry/internal/logging"
	"github.com/mailsentry/mailsentry/internal/metrics"
	"github.com/mailsentry/mailsentry/internal/refdata"
)

// CLIFlags contains all command line flags for the CLI application
type CLIFlags struct {
	InputFile  string
	DataDir    string
	ResultsDir string
	DNSTimeout string
	Verbose    bool
	JSONLog    bool
	JSONOut    bool
	Stats      bool
	ConfigFile string
}

// ParseFlags parses command line flags and returns a CLIFlags struct
func ParseFlags() *CLIFlags {
	flags := &CLIFlags{}

	flag.StringVar(&flags.InputFile, "file", "", "Input email file (use stdin if not specified)")
	flag.StringVar(&flags.DataDir, "data-dir", "./data", "Directory with reference data files")
	flag.StringVar(&flags.ResultsDir, "results-dir", "", "Directory for the result log (results are not saved if empty)")
	flag.StringVar(&flags.DNSTimeout, "dns-timeout", "3s", "Timeout per DNS query")
	flag.BoolVar(&flags.Verbose, "verbose", false, "Enable verbose logging")
	flag.BoolVar(&flags.JSONLog, "json-log", false, "Output logs in JSON format")
	flag.BoolVar(&flags.JSONOut, "json", false, "Print the analysis result as JSON instead of the report")
	flag.BoolVar(&flags.Stats, "stats", false, "Print result-log statistics instead of analyzing a message")
	flag.StringVar(&flags.ConfigFile, "config", "", "Path to config file (overrides command line flags)")

	flag.Parse()
	return flags
}

// discardStore drops results; the CLI only prints its report unless a
// results directory is given.
type discardStore struct{}

func (discardStore) Save(*core.AnalysisResult) error { return nil }

func (discardStore) LoadAll(string, int) ([]*core.AnalysisResult, error) { return nil, nil }

// BuildCLIContainer creates and configures a dependency injection container for the CLI application
func BuildCLIContainer(flags *CLIFlags) (*dig.Container, error) {
	container := dig.New()

	// Register flags
	if err := container.Provide(func() *CLIFlags { return flags }); err != nil {
		return nil, err
	}

	// Register logger
	if err := container.Provide(func(flags *CLIFlags) (*zap.Logger, error) {
		return logging.InitConsoleLogger(flags.Verbose, flags.JSONLog)
	}); err != nil {
		return nil, err
	}

	// Register configuration
	if err := container.Provide(func(flags *CLIFlags, logger *zap.Logger) (*config.Config, error) {
		if flags.ConfigFile != "" {
			cfg, err := config.New()
			if err != nil {
				return nil, err
			}
			logger.Info("Loaded configuration from file", zap.String("file", cfg.GetViper().ConfigFileUsed()))
			return cfg, nil
		}

		// Create config from command line flags
		return createConfigFromFlags(flags), nil
	}); err != nil {
		return nil, err
	}

	// Register reference data
	if err := container.Provide(func(cfg *config.Config, logger *zap.Logger) *refdata.RefData {
		return refdata.Load(cfg.GetString("data.dir"), logger)
	}); err != nil {
		return nil, err
	}

	// Register DNS oracle with an in-memory cache
	if err := container.Provide(func(cfg *config.Config, logger *zap.Logger) core.DNSOracle {
		dns := cfg.GetDNS()
		cache := dnscache.NewMemoryCache(logger, dns.CleanupFrequency)
		return dnscache.NewOracle(cache, dns.CacheTTL, dns.Timeout, logger)
	}); err != nil {
		return nil, err
	}

	// Register result store
	if err := container.Provide(func(cfg *config.Config, logger *zap.Logger) (core.ResultStore, error) {
		dir := cfg.GetString("results.dir")
		if dir == "" {
			return discardStore{}, nil
		}
		return resultlog.NewStore(dir, logger)
	}); err != nil {
		return nil, err
	}

	// Register a noop metrics collector for one-shot runs
	if err := container.Provide(func() core.Collector {
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

	// Register email filter
	if err := container.Provide(factory.NewFilterFactory); err != nil {
		return nil, err
	}
	if err := container.Provide(func(f *factory.FilterFactory) (core.EmailFilter, error) {
		return f.CreateEmailFilter()
	}); err != nil {
		return nil, err
	}

	return container, nil
}

// createConfigFromFlags creates a configuration from command line flags
func createConfigFromFlags(flags *CLIFlags) *config.Config {
	v := config.NewEmptyViper()

	// Set some cli specific settings
	v.Set("server.filter_type", "cli")
	v.Set("cli.verbose", flags.Verbose)

	v.Set("data.dir", flags.DataDir)
	v.Set("results.dir", flags.ResultsDir)
	v.Set("dns.timeout", flags.DNSTimeout)

	return config.NewFromViper(v)
}
