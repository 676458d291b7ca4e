package dnscache

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"go.uber.org/zap"
)

// MySQLCache is a RecordCache backed by MySQL, for deployments where several
// analyzer instances share one DNS fact cache.
type MySQLCache struct {
	db          *sql.DB
	logger      *zap.Logger
	cleanupFreq time.Duration
	stopCh      chan struct{}
}

// NewMySQLCache connects to MySQL at dsn and prepares the cache table.
func NewMySQLCache(dsn string, logger *zap.Logger, cleanupFreq time.Duration) (*MySQLCache, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open MySQL database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to MySQL database: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS dns_cache (
			record_type VARCHAR(16) NOT NULL,
			domain VARCHAR(255) NOT NULL,
			payload BLOB NOT NULL,
			expires_at TIMESTAMP NOT NULL,
			PRIMARY KEY (record_type, domain),
			INDEX idx_dns_expires_at (expires_at)
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}

	cache := &MySQLCache{
		db:          db,
		logger:      logger,
		cleanupFreq: cleanupFreq,
		stopCh:      make(chan struct{}),
	}

	go cache.startCleanupTask()

	return cache, nil
}

// Get returns the cached payload for a record, if present and fresh.
func (c *MySQLCache) Get(recordType, domain string) ([]byte, bool) {
	var payload []byte
	err := c.db.QueryRow(`
		SELECT payload FROM dns_cache
		WHERE record_type = ? AND domain = ? AND expires_at > NOW()
	`, recordType, domain).Scan(&payload)
	if err != nil {
		if err != sql.ErrNoRows {
			c.logger.Error("Failed to query DNS cache",
				zap.Error(err), zap.String("domain", domain), zap.String("record_type", recordType))
		}
		return nil, false
	}
	return payload, true
}

// Set stores a record payload with the given TTL.
func (c *MySQLCache) Set(recordType, domain string, payload []byte, ttl time.Duration) {
	_, err := c.db.Exec(`
		REPLACE INTO dns_cache (record_type, domain, payload, expires_at)
		VALUES (?, ?, ?, ?)
	`, recordType, domain, payload, time.Now().Add(ttl))
	if err != nil {
		c.logger.Error("Failed to insert DNS cache entry",
			zap.Error(err), zap.String("domain", domain), zap.String("record_type", recordType))
	}
}

func (c *MySQLCache) cleanup() {
	res, err := c.db.Exec(`DELETE FROM dns_cache WHERE expires_at <= NOW()`)
	if err != nil {
		c.logger.Error("Failed to clean up DNS cache", zap.Error(err))
		return
	}
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		c.logger.Debug("Cleaned up expired DNS cache entries", zap.Int64("expired_count", n))
	}
}

func (c *MySQLCache) startCleanupTask() {
	ticker := time.NewTicker(c.cleanupFreq)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.cleanup()
		case <-c.stopCh:
			return
		}
	}
}

// Stop stops the cleanup task and closes the connection pool.
func (c *MySQLCache) Stop() {
	close(c.stopCh)
	if err := c.db.Close(); err != nil {
		c.logger.Error("Failed to close MySQL connection", zap.Error(err))
	}
}
