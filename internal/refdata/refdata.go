// Package refdata loads and exposes the static classification data the
// detectors consult: trigger-word lists, dangerous file extensions,
// suspicious TLD and domain patterns, free-mail providers, known brands and
// deny-lists. All tables are immutable after load and shared read-only
// across concurrent analyses.
package refdata

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// Brand is one known organization: its display name, the domains it owns
// and the keywords that refer to it in mail content.
type Brand struct {
	Name     string   `json:"name"`
	Domains  []string `json:"domains"`
	Keywords []string `json:"keywords"`
}

// RefData holds every classification table. Loading fails soft: a missing or
// corrupt file leaves that table empty, since partial detection beats none.
type RefData struct {
	// TriggerWords is category -> language -> words.
	TriggerWords map[string]map[string][]string

	CriticalExtensions      map[string]bool
	HighRiskExtensions      map[string]bool
	MacroExtensions         map[string]bool
	DoubleExtensionPatterns []string

	HighRiskTLDs           []string
	SuspiciousSubstrings   []string
	FreeEmailDomains       map[string]bool
	PhishingDomainPatterns []string

	Brands map[string]Brand

	PhishingSubjects  []string
	MaliciousDomains  map[string]bool
	AdultDomains      map[string]bool
	BulkSenderDomains map[string]bool
	Confusables       map[string]string
}

// Extension risk tiers returned by IsDangerousExtension.
const (
	TierCritical = "critical"
	TierHigh     = "high"
	TierMedium   = "medium"
	TierSafe     = "safe"
)

// Load reads every data file under dataDir. Each file that cannot be read
// or parsed is logged and skipped.
func Load(dataDir string, logger *zap.Logger) *RefData {
	d := &RefData{
		TriggerWords:       map[string]map[string][]string{},
		CriticalExtensions: map[string]bool{},
		HighRiskExtensions: map[string]bool{},
		MacroExtensions:    map[string]bool{},
		FreeEmailDomains:   map[string]bool{},
		Brands:             map[string]Brand{},
		MaliciousDomains:   map[string]bool{},
		AdultDomains:       map[string]bool{},
		BulkSenderDomains:  map[string]bool{},
		Confusables:        map[string]string{},
	}

	loadJSON(dataDir, "trigger_words.json", logger, &d.TriggerWords)

	var ext struct {
		Critical []string `json:"critical_extensions"`
		HighRisk []string `json:"high_risk_extensions"`
		Macro    []string `json:"macro_extensions"`
		Double   []string `json:"double_extension_patterns"`
	}
	if loadJSON(dataDir, "dangerous_extensions.json", logger, &ext) {
		d.CriticalExtensions = toSet(ext.Critical)
		d.HighRiskExtensions = toSet(ext.HighRisk)
		d.MacroExtensions = toSet(ext.Macro)
		d.DoubleExtensionPatterns = lowerAll(ext.Double)
	}

	var tld struct {
		HighRiskTLDs         []string `json:"high_risk_tlds"`
		SuspiciousSubstrings []string `json:"suspicious_substrings"`
		FreeEmailDomains     []string `json:"free_email_domains"`
		PhishingPatterns     []string `json:"phishing_domain_patterns"`
	}
	if loadJSON(dataDir, "suspicious_tlds.json", logger, &tld) {
		d.HighRiskTLDs = lowerAll(tld.HighRiskTLDs)
		d.SuspiciousSubstrings = lowerAll(tld.SuspiciousSubstrings)
		d.FreeEmailDomains = toSet(tld.FreeEmailDomains)
		d.PhishingDomainPatterns = lowerAll(tld.PhishingPatterns)
	}

	var brands struct {
		Brands map[string]Brand `json:"brands"`
	}
	if loadJSON(dataDir, "known_brands.json", logger, &brands) && brands.Brands != nil {
		d.Brands = brands.Brands
	}

	var subjects struct {
		Phrases []string `json:"phrases"`
	}
	if loadJSON(dataDir, "phishing_subjects.json", logger, &subjects) {
		d.PhishingSubjects = lowerAll(subjects.Phrases)
	}

	var malicious struct {
		Domains []string `json:"malicious_domains"`
		Adult   []string `json:"adult_domains"`
	}
	if loadJSON(dataDir, "malicious_domains.json", logger, &malicious) {
		d.MaliciousDomains = toSet(malicious.Domains)
		d.AdultDomains = toSet(malicious.Adult)
	}

	var bulk struct {
		Domains []string `json:"bounce_domains"`
	}
	if loadJSON(dataDir, "bulk_senders.json", logger, &bulk) {
		d.BulkSenderDomains = toSet(bulk.Domains)
	}

	loadJSON(dataDir, "confusables.json", logger, &d.Confusables)

	return d
}

func loadJSON(dir, name string, logger *zap.Logger, v interface{}) bool {
	raw, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		logger.Warn("Reference data file unavailable, table stays empty",
			zap.String("file", name), zap.Error(err))
		return false
	}
	if err := json.Unmarshal(raw, v); err != nil {
		logger.Warn("Reference data file corrupt, table stays empty",
			zap.String("file", name), zap.Error(err))
		return false
	}
	return true
}

func toSet(items []string) map[string]bool {
	s := make(map[string]bool, len(items))
	for _, it := range items {
		s[strings.ToLower(strings.TrimSpace(it))] = true
	}
	return s
}

func lowerAll(items []string) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, strings.ToLower(strings.TrimSpace(it)))
	}
	return out
}

// TriggerWordsByCategory returns the case-folded word set for one category
// across all languages.
func (d *RefData) TriggerWordsByCategory(category string) map[string]bool {
	words := map[string]bool{}
	for _, list := range d.TriggerWords[category] {
		for _, w := range list {
			words[strings.ToLower(w)] = true
		}
	}
	return words
}

// IsDangerousExtension classifies a filename by extension risk. Double
// extensions are checked first, then critical, then macro-bearing office
// formats, then the general high-risk tier. First match wins.
func (d *RefData) IsDangerousExtension(filename string) (bool, string, string) {
	lower := strings.ToLower(filename)

	for _, pattern := range d.DoubleExtensionPatterns {
		if strings.HasSuffix(lower, pattern) {
			return true, TierCritical, "double extension: " + pattern
		}
	}

	ext := strings.ToLower(filepath.Ext(lower))
	switch {
	case d.CriticalExtensions[ext]:
		return true, TierCritical, "executable extension: " + ext
	case d.MacroExtensions[ext]:
		return true, TierHigh, "macro-capable document: " + ext
	case d.HighRiskExtensions[ext]:
		return true, TierMedium, "risky extension: " + ext
	}
	return false, TierSafe, ""
}

// IsBrandDomain reports whether the domain is, or is a subdomain of, a
// domain registered to a known brand. Brand domains are authoritative
// safe-listing for every detector.
func (d *RefData) IsBrandDomain(domain string) bool {
	return d.BrandForDomain(domain) != ""
}

// BrandForDomain returns the brand name owning the domain, with
// subdomain-of semantics (accounts.google.com matches google.com), or "".
func (d *RefData) BrandForDomain(domain string) string {
	lower := strings.ToLower(domain)
	for id, brand := range d.Brands {
		for _, owned := range brand.Domains {
			o := strings.ToLower(owned)
			if lower == o || strings.HasSuffix(lower, "."+o) {
				if brand.Name != "" {
					return brand.Name
				}
				return id
			}
		}
	}
	return ""
}

// IsSuspiciousDomain flags a domain on TLD or substring rules. A brand-owned
// domain short-circuits to not suspicious before any rule is consulted.
func (d *RefData) IsSuspiciousDomain(domain string) (bool, []string) {
	lower := strings.ToLower(domain)

	if d.IsBrandDomain(lower) {
		return false, nil
	}

	var reasons []string
	for _, tld := range d.HighRiskTLDs {
		if strings.HasSuffix(lower, tld) {
			reasons = append(reasons, "high-risk TLD: "+tld)
			break
		}
	}
	for _, sub := range d.SuspiciousSubstrings {
		if strings.Contains(lower, sub) {
			reasons = append(reasons, "suspicious pattern in domain: "+sub)
			break
		}
	}
	return len(reasons) > 0, reasons
}

// BrandKeywords returns keyword -> brand name for every registered brand.
func (d *RefData) BrandKeywords() map[string]string {
	out := map[string]string{}
	for id, brand := range d.Brands {
		name := brand.Name
		if name == "" {
			name = id
		}
		for _, kw := range brand.Keywords {
			out[strings.ToLower(kw)] = name
		}
	}
	return out
}

// BrandDomains returns registered domain -> brand name.
func (d *RefData) BrandDomains() map[string]string {
	out := map[string]string{}
	for id, brand := range d.Brands {
		name := brand.Name
		if name == "" {
			name = id
		}
		for _, dom := range brand.Domains {
			out[strings.ToLower(dom)] = name
		}
	}
	return out
}

// IsFreeEmailDomain reports whether the domain belongs to a free mail
// provider.
func (d *RefData) IsFreeEmailDomain(domain string) bool {
	return d.FreeEmailDomains[strings.ToLower(domain)]
}

// IsBulkSenderDomain reports whether the domain is a known legitimate
// bulk-mail bounce domain (used by envelope_sender to avoid flagging
// mailing-list providers).
func (d *RefData) IsBulkSenderDomain(domain string) bool {
	lower := strings.ToLower(domain)
	if d.BulkSenderDomains[lower] {
		return true
	}
	for bounce := range d.BulkSenderDomains {
		if strings.HasSuffix(lower, "."+bounce) {
			return true
		}
	}
	return false
}

// IsMaliciousDomain matches the fixed deny-list, including subdomains.
func (d *RefData) IsMaliciousDomain(domain string) (bool, string) {
	lower := strings.ToLower(domain)
	for deny := range d.MaliciousDomains {
		if lower == deny || strings.HasSuffix(lower, "."+deny) {
			return true, "known malicious domain: " + deny
		}
	}
	for deny := range d.AdultDomains {
		if lower == deny || strings.HasSuffix(lower, "."+deny) {
			return true, "adult-content domain: " + deny
		}
	}
	return false, ""
}
