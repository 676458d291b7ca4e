package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg := NewFromViper(NewEmptyViper())

	assert.Equal(t, "./data", cfg.GetString("data.dir"))
	assert.Equal(t, "postfix", cfg.GetString("server.filter_type"))
	assert.Equal(t, "0.0.0.0:10025", cfg.GetString("server.listen_address"))
	assert.Equal(t, 10, cfg.GetInt("analysis.workers"))
	assert.True(t, cfg.GetBool("metrics.enabled"))
}

func TestGetDNS(t *testing.T) {
	v := NewEmptyViper()
	v.Set("dns.timeout", "1s")
	v.Set("dns.cache.type", "sqlite")
	v.Set("dns.cache.sqlite_path", "/tmp/dns.db")
	cfg := NewFromViper(v)

	dns := cfg.GetDNS()
	assert.Equal(t, time.Second, dns.Timeout)
	assert.Equal(t, "sqlite", dns.CacheType)
	assert.Equal(t, "/tmp/dns.db", dns.SQLitePath)
	assert.Equal(t, 5*time.Minute, dns.CacheTTL)
}

func TestGetDNSFallsBackOnBadDurations(t *testing.T) {
	v := NewEmptyViper()
	v.Set("dns.timeout", "soon")
	v.Set("dns.cache.ttl", "later")
	cfg := NewFromViper(v)

	dns := cfg.GetDNS()
	assert.Equal(t, 3*time.Second, dns.Timeout)
	assert.Equal(t, 5*time.Minute, dns.CacheTTL)
}

func TestGetAnalysisAndServer(t *testing.T) {
	v := NewEmptyViper()
	v.Set("analysis.workers", 4)
	v.Set("server.block_spam", true)
	cfg := NewFromViper(v)

	analysis := cfg.GetAnalysis()
	assert.Equal(t, 4, analysis.Workers)
	assert.Equal(t, 50, analysis.FetchLimit)
	assert.Equal(t, 5*time.Minute, analysis.PollInterval)

	server := cfg.GetServer()
	assert.True(t, server.BlockSpam)
	assert.Equal(t, "X-Spam-Status", server.SpamHeader)
	assert.Equal(t, "[SPAM] ", server.SubjectPrefix)
}

func TestGetIMAP(t *testing.T) {
	v := NewEmptyViper()
	v.Set("imap.accounts", []string{"alice@gmail.com:hunter2"})
	cfg := NewFromViper(v)

	imap := cfg.GetIMAP()
	require.Len(t, imap.Accounts, 1)
	assert.Equal(t, "Junk", imap.QuarantineFolder)
	assert.Equal(t, "imap_hosts.json", imap.HostsFile)
}
