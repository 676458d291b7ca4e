package factory

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/mailsentry/mailsentry/internal/adapters/dnscache"
	"github.com/mailsentry/mailsentry/internal/config"
)

// CacheFactory creates DNS record caches based on configuration
type CacheFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewCacheFactory creates a new cache factory
func NewCacheFactory(cfg *config.Config, logger *zap.Logger) *CacheFactory {
	return &CacheFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreateRecordCache creates a DNS record cache based on the configuration
func (f *CacheFactory) CreateRecordCache() (dnscache.RecordCache, error) {
	dns := f.cfg.GetDNS()

	switch dns.CacheType {
	case "memory":
		return dnscache.NewMemoryCache(f.logger, dns.CleanupFrequency), nil
	case "sqlite":
		// Ensure directory exists
		if err := os.MkdirAll(filepath.Dir(dns.SQLitePath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create SQLite directory: %w", err)
		}
		return dnscache.NewSQLiteCache(dns.SQLitePath, f.logger, dns.CleanupFrequency)
	case "mysql":
		return dnscache.NewMySQLCache(dns.MySQLDSN, f.logger, dns.CleanupFrequency)
	default:
		return nil, fmt.Errorf("unsupported cache type: %s", dns.CacheType)
	}
}

// CreateOracle creates the DNS oracle backed by the configured cache
func (f *CacheFactory) CreateOracle() (*dnscache.Oracle, error) {
	cache, err := f.CreateRecordCache()
	if err != nil {
		return nil, err
	}
	dns := f.cfg.GetDNS()
	return dnscache.NewOracle(cache, dns.CacheTTL, dns.Timeout, f.logger), nil
}
