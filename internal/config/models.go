package config

import "time"

// DNSConfig represents the configuration for the DNS oracle and its cache
type DNSConfig struct {
	Timeout          time.Duration
	CacheType        string
	CacheTTL         time.Duration
	CleanupFrequency time.Duration
	SQLitePath       string
	MySQLDSN         string
}

// AnalysisConfig represents the analysis pipeline configuration
type AnalysisConfig struct {
	Workers      int
	FetchLimit   int
	PollInterval time.Duration
}

// ServerConfig represents the mail filter server configuration
type ServerConfig struct {
	FilterType    string
	ListenAddress string
	BlockSpam     bool
	SpamHeader    string
	ScoreHeader   string
	ReasonHeader  string
	SubjectPrefix string
}

// IMAPConfig represents the IMAP polling configuration
type IMAPConfig struct {
	Accounts         []string
	QuarantineFolder string
	HostsFile        string
}

// GetDNS returns the DNS oracle configuration
func (c *Config) GetDNS() DNSConfig {
	timeout, err := c.GetDuration("dns.timeout")
	if err != nil {
		timeout = 3 * time.Second
	}
	ttl, err := c.GetDuration("dns.cache.ttl")
	if err != nil {
		ttl = 5 * time.Minute
	}
	cleanup, err := c.GetDuration("dns.cache.cleanup_frequency")
	if err != nil {
		cleanup = 10 * time.Minute
	}
	return DNSConfig{
		Timeout:          timeout,
		CacheType:        c.GetString("dns.cache.type"),
		CacheTTL:         ttl,
		CleanupFrequency: cleanup,
		SQLitePath:       c.GetString("dns.cache.sqlite_path"),
		MySQLDSN:         c.GetString("dns.cache.mysql_dsn"),
	}
}

// GetAnalysis returns the analysis pipeline configuration
func (c *Config) GetAnalysis() AnalysisConfig {
	interval, err := c.GetDuration("analysis.poll_interval")
	if err != nil {
		interval = 5 * time.Minute
	}
	return AnalysisConfig{
		Workers:      c.GetInt("analysis.workers"),
		FetchLimit:   c.GetInt("analysis.fetch_limit"),
		PollInterval: interval,
	}
}

// GetServer returns the mail filter server configuration
func (c *Config) GetServer() ServerConfig {
	return ServerConfig{
		FilterType:    c.GetString("server.filter_type"),
		ListenAddress: c.GetString("server.listen_address"),
		BlockSpam:     c.GetBool("server.block_spam"),
		SpamHeader:    c.GetString("server.headers.spam"),
		ScoreHeader:   c.GetString("server.headers.score"),
		ReasonHeader:  c.GetString("server.headers.reason"),
		SubjectPrefix: c.GetString("server.subject_prefix"),
	}
}

// GetIMAP returns the IMAP polling configuration
func (c *Config) GetIMAP() IMAPConfig {
	return IMAPConfig{
		Accounts:         c.GetStringSlice("imap.accounts"),
		QuarantineFolder: c.GetString("imap.quarantine_folder"),
		HostsFile:        c.GetString("imap.hosts_file"),
	}
}
