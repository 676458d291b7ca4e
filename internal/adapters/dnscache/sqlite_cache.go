package dnscache

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

// SQLiteCache is a RecordCache backed by a local SQLite file, so DNS facts
// survive daemon restarts.
type SQLiteCache struct {
	db          *sql.DB
	logger      *zap.Logger
	cleanupFreq time.Duration
	stopCh      chan struct{}
}

// NewSQLiteCache opens (and if needed creates) the cache database at dbPath.
func NewSQLiteCache(dbPath string, logger *zap.Logger, cleanupFreq time.Duration) (*SQLiteCache, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS dns_cache (
			record_type TEXT NOT NULL,
			domain TEXT NOT NULL,
			payload BLOB NOT NULL,
			expires_at TIMESTAMP NOT NULL,
			PRIMARY KEY (record_type, domain)
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}

	_, err = db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_dns_expires_at ON dns_cache(expires_at)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create index: %w", err)
	}

	cache := &SQLiteCache{
		db:          db,
		logger:      logger,
		cleanupFreq: cleanupFreq,
		stopCh:      make(chan struct{}),
	}

	go cache.startCleanupTask()

	return cache, nil
}

// Get returns the cached payload for a record, if present and fresh.
func (c *SQLiteCache) Get(recordType, domain string) ([]byte, bool) {
	var payload []byte
	err := c.db.QueryRow(`
		SELECT payload FROM dns_cache
		WHERE record_type = ? AND domain = ? AND expires_at > ?
	`, recordType, domain, time.Now().UTC().Format(time.RFC3339)).Scan(&payload)
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
func (c *SQLiteCache) Set(recordType, domain string, payload []byte, ttl time.Duration) {
	expiresAt := time.Now().UTC().Add(ttl)
	_, err := c.db.Exec(`
		INSERT OR REPLACE INTO dns_cache (record_type, domain, payload, expires_at)
		VALUES (?, ?, ?, ?)
	`, recordType, domain, payload, expiresAt.Format(time.RFC3339))
	if err != nil {
		c.logger.Error("Failed to insert DNS cache entry",
			zap.Error(err), zap.String("domain", domain), zap.String("record_type", recordType))
	}
}

func (c *SQLiteCache) cleanup() {
	res, err := c.db.Exec(`DELETE FROM dns_cache WHERE expires_at <= ?`,
		time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		c.logger.Error("Failed to clean up DNS cache", zap.Error(err))
		return
	}
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		c.logger.Debug("Cleaned up expired DNS cache entries", zap.Int64("expired_count", n))
	}
}

func (c *SQLiteCache) startCleanupTask() {
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

// Stop stops the cleanup task and closes the database.
func (c *SQLiteCache) Stop() {
	close(c.stopCh)
	if err := c.db.Close(); err != nil {
		c.logger.Error("Failed to close SQLite database", zap.Error(err))
	}
}
