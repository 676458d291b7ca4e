// Package dnscache implements the DNS oracle: live resolver lookups for
// SPF, DKIM, DMARC and MX facts, fronted by a TTL cache with memory,
// SQLite and MySQL backends.
package dnscache

import "time"

// RecordCache stores serialized DNS facts keyed by record type and domain.
// Implementations run their own expiry cleanup until Stop is called.
type RecordCache interface {
	Get(recordType, domain string) ([]byte, bool)
	Set(recordType, domain string, payload []byte, ttl time.Duration)
	Stop()
}
