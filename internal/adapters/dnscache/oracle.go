package dnscache

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mailsentry/mailsentry/internal/core"
)

// Selectors probed when the caller does not name one. Covers the default
// selector plus the ones the big providers publish.
var defaultSelectors = []string{"default", "google", "selector1", "selector2", "k1", "dkim", "mail", "s1", "s2"}

const (
	recordSPF   = "spf"
	recordDKIM  = "dkim"
	recordDMARC = "dmarc"
	recordMX    = "mx"
)

// Oracle answers SPF, DKIM, DMARC and MX questions with live resolver
// lookups behind a TTL cache. Lookup errors other than NXDOMAIN propagate to
// the caller; absence of a record is a fact, not an error.
type Oracle struct {
	resolver *net.Resolver
	cache    RecordCache
	ttl      time.Duration
	timeout  time.Duration
	logger   *zap.Logger
}

// NewOracle creates a DNS oracle using the system resolver.
func NewOracle(cache RecordCache, ttl, timeout time.Duration, logger *zap.Logger) *Oracle {
	return &Oracle{
		resolver: net.DefaultResolver,
		cache:    cache,
		ttl:      ttl,
		timeout:  timeout,
		logger:   logger,
	}
}

// Stop releases the backing cache.
func (o *Oracle) Stop() {
	o.cache.Stop()
}

// SPF looks up the domain's SPF record and classifies its policy.
func (o *Oracle) SPF(ctx context.Context, domain string) (*core.SPFRecord, error) {
	domain = strings.ToLower(domain)
	var rec core.SPFRecord
	if o.fromCache(recordSPF, domain, &rec) {
		return &rec, nil
	}

	txts, err := o.lookupTXT(ctx, domain)
	if err != nil {
		if isNotFound(err) {
			rec = core.SPFRecord{DomainNotFound: true}
			o.toCache(recordSPF, domain, &rec)
			return &rec, nil
		}
		return nil, err
	}

	for _, txt := range txts {
		if !strings.HasPrefix(strings.ToLower(txt), "v=spf1") {
			continue
		}
		rec = core.SPFRecord{Present: true, Raw: txt, Policy: spfPolicy(txt)}
		o.toCache(recordSPF, domain, &rec)
		return &rec, nil
	}

	rec = core.SPFRecord{}
	o.toCache(recordSPF, domain, &rec)
	return &rec, nil
}

func spfPolicy(record string) string {
	lower := strings.ToLower(record)
	switch {
	case strings.Contains(lower, "-all"):
		return core.SPFPolicyStrict
	case strings.Contains(lower, "~all"):
		return core.SPFPolicySoft
	default:
		return core.SPFPolicyNone
	}
}

// DKIM probes for a DKIM key. An empty selector tries the common selector
// list; the first key found wins.
func (o *Oracle) DKIM(ctx context.Context, domain, selector string) (*core.DKIMRecord, error) {
	domain = strings.ToLower(domain)
	var rec core.DKIMRecord
	if o.fromCache(recordDKIM, domain, &rec) {
		return &rec, nil
	}

	selectors := defaultSelectors
	if selector != "" {
		selectors = []string{selector}
	}

	var lastErr error
	for _, sel := range selectors {
		txts, err := o.lookupTXT(ctx, sel+"._domainkey."+domain)
		if err != nil {
			if !isNotFound(err) {
				lastErr = err
			}
			continue
		}
		for _, txt := range txts {
			if !strings.Contains(txt, "p=") {
				continue
			}
			rec = core.DKIMRecord{
				Present:  true,
				Selector: sel,
				KeyBits:  estimateKeyBits(txt),
				Raw:      txt,
			}
			o.toCache(recordDKIM, domain, &rec)
			return &rec, nil
		}
	}

	if lastErr != nil {
		return nil, lastErr
	}
	rec = core.DKIMRecord{}
	o.toCache(recordDKIM, domain, &rec)
	return &rec, nil
}

// estimateKeyBits derives an approximate RSA key size from the length of the
// base64 p= value. Exact modulus extraction would need full DER parsing; the
// scoring only cares about the 1024/2048 boundary.
func estimateKeyBits(record string) int {
	var p string
	for _, part := range strings.Split(record, ";") {
		part = strings.TrimSpace(part)
		if strings.HasPrefix(part, "p=") {
			p = strings.TrimPrefix(part, "p=")
			break
		}
	}
	if p == "" {
		return 0
	}
	decoded, err := base64.StdEncoding.DecodeString(p)
	if err != nil {
		return 0
	}
	switch n := len(decoded); {
	case n >= 500:
		return 4096
	case n >= 270:
		return 2048
	case n >= 140:
		return 1024
	case n > 0:
		return 512
	default:
		return 0
	}
}

// DMARC looks up _dmarc.<domain> and extracts the p= policy tag.
func (o *Oracle) DMARC(ctx context.Context, domain string) (*core.DMARCRecord, error) {
	domain = strings.ToLower(domain)
	var rec core.DMARCRecord
	if o.fromCache(recordDMARC, domain, &rec) {
		return &rec, nil
	}

	txts, err := o.lookupTXT(ctx, "_dmarc."+domain)
	if err != nil {
		if isNotFound(err) {
			rec = core.DMARCRecord{}
			o.toCache(recordDMARC, domain, &rec)
			return &rec, nil
		}
		return nil, err
	}

	for _, txt := range txts {
		if !strings.HasPrefix(strings.ToLower(txt), "v=dmarc1") {
			continue
		}
		rec = core.DMARCRecord{Present: true, Raw: txt, Policy: dmarcPolicy(txt)}
		o.toCache(recordDMARC, domain, &rec)
		return &rec, nil
	}

	rec = core.DMARCRecord{}
	o.toCache(recordDMARC, domain, &rec)
	return &rec, nil
}

func dmarcPolicy(record string) string {
	for _, part := range strings.Split(record, ";") {
		part = strings.TrimSpace(strings.ToLower(part))
		if strings.HasPrefix(part, "p=") {
			switch strings.TrimPrefix(part, "p=") {
			case "reject":
				return core.DMARCPolicyReject
			case "quarantine":
				return core.DMARCPolicyQuarantine
			}
			return core.DMARCPolicyNone
		}
	}
	return core.DMARCPolicyNone
}

// MX returns the domain's mail exchangers, lowest priority first. A domain
// with no MX records yields an empty slice, not an error.
func (o *Oracle) MX(ctx context.Context, domain string) ([]core.MXHost, error) {
	domain = strings.ToLower(domain)
	var cached struct {
		Hosts []core.MXHost `json:"hosts"`
	}
	if o.fromCache(recordMX, domain, &cached) {
		return cached.Hosts, nil
	}

	qctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()
	mxs, err := o.resolver.LookupMX(qctx, domain)
	if err != nil && !isNotFound(err) {
		return nil, err
	}

	hosts := make([]core.MXHost, 0, len(mxs))
	for _, mx := range mxs {
		hosts = append(hosts, core.MXHost{
			Priority: mx.Pref,
			Host:     strings.TrimSuffix(mx.Host, "."),
		})
	}
	sort.Slice(hosts, func(i, j int) bool { return hosts[i].Priority < hosts[j].Priority })

	cached.Hosts = hosts
	o.toCache(recordMX, domain, &cached)
	return hosts, nil
}

func (o *Oracle) lookupTXT(ctx context.Context, name string) ([]string, error) {
	qctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()
	return o.resolver.LookupTXT(qctx, name)
}

// isNotFound reports NXDOMAIN and empty answers, which are facts about the
// domain rather than oracle failures.
func isNotFound(err error) bool {
	var dnsErr *net.DNSError
	return errors.As(err, &dnsErr) && dnsErr.IsNotFound
}

func (o *Oracle) fromCache(recordType, domain string, v interface{}) bool {
	if o.cache == nil {
		return false
	}
	payload, ok := o.cache.Get(recordType, domain)
	if !ok {
		return false
	}
	if err := json.Unmarshal(payload, v); err != nil {
		o.logger.Warn("Discarding corrupt DNS cache entry",
			zap.String("record_type", recordType), zap.String("domain", domain), zap.Error(err))
		return false
	}
	return true
}

func (o *Oracle) toCache(recordType, domain string, v interface{}) {
	if o.cache == nil {
		return
	}
	payload, err := json.Marshal(v)
	if err != nil {
		return
	}
	o.cache.Set(recordType, domain, payload, o.ttl)
}
