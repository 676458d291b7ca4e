package refdata

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testData(t *testing.T) *RefData {
	t.Helper()
	return Load(filepath.Join("..", "..", "data"), zap.NewNop())
}

func TestLoadFailsSoft(t *testing.T) {
	dir := t.TempDir()
	// One corrupt file, everything else missing.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "known_brands.json"), []byte("{not json"), 0o644))

	d := Load(dir, zap.NewNop())
	assert.Empty(t, d.Brands)
	assert.Empty(t, d.HighRiskTLDs)

	ok, tier, _ := d.IsDangerousExtension("report.pdf.exe")
	assert.False(t, ok)
	assert.Equal(t, TierSafe, tier)
}

func TestTriggerWordsByCategory(t *testing.T) {
	d := testData(t)
	words := d.TriggerWordsByCategory("credential_words")
	assert.True(t, words["password"])
	assert.True(t, words["пароль"])
	assert.False(t, words["urgent"])
}

func TestIsDangerousExtension(t *testing.T) {
	d := testData(t)
	tests := []struct {
		filename  string
		dangerous bool
		tier      string
	}{
		{"invoice.pdf.exe", true, TierCritical}, // double extension beats plain .exe
		{"setup.exe", true, TierCritical},
		{"budget.xlsm", true, TierHigh},
		{"archive.zip", true, TierMedium},
		{"report.pdf", false, TierSafe},
		{"PHOTO.JPG.SCR", true, TierCritical},
	}
	for _, tc := range tests {
		t.Run(tc.filename, func(t *testing.T) {
			dangerous, tier, reason := d.IsDangerousExtension(tc.filename)
			assert.Equal(t, tc.dangerous, dangerous)
			assert.Equal(t, tc.tier, tier)
			if tc.dangerous {
				assert.NotEmpty(t, reason)
			}
		})
	}
}

func TestBrandDomainAllowListPrecedence(t *testing.T) {
	d := testData(t)

	// "-secure" is a suspicious substring, but brand ownership wins.
	suspicious, _ := d.IsSuspiciousDomain("accounts.google.com")
	assert.False(t, suspicious)

	suspicious, reasons := d.IsSuspiciousDomain("google-secure-login.tk")
	assert.True(t, suspicious)
	assert.NotEmpty(t, reasons)
}

func TestBrandForDomainSubdomains(t *testing.T) {
	d := testData(t)
	assert.Equal(t, "Google", d.BrandForDomain("accounts.google.com"))
	assert.Equal(t, "Google", d.BrandForDomain("google.com"))
	assert.Equal(t, "PayPal", d.BrandForDomain("paypal.com"))
	assert.Empty(t, d.BrandForDomain("paypal-secure.ru"))
}

func TestBrandKeywordsAndDomains(t *testing.T) {
	d := testData(t)
	kw := d.BrandKeywords()
	assert.Equal(t, "Google", kw["gmail"])
	assert.Equal(t, "Steam", kw["steam guard"])

	dom := d.BrandDomains()
	assert.Equal(t, "Microsoft", dom["outlook.com"])
}

func TestFreeBulkAndMaliciousLookups(t *testing.T) {
	d := testData(t)

	assert.True(t, d.IsFreeEmailDomain("GMAIL.COM"))
	assert.False(t, d.IsFreeEmailDomain("example.org"))

	assert.True(t, d.IsBulkSenderDomain("sendgrid.net"))
	assert.True(t, d.IsBulkSenderDomain("em1234.sendgrid.net"))
	assert.False(t, d.IsBulkSenderDomain("sendgrid.net.evil.ru"))

	bad, reason := d.IsMaliciousDomain("iplogger.org")
	assert.True(t, bad)
	assert.Contains(t, reason, "iplogger.org")

	bad, _ = d.IsMaliciousDomain("sub.grabify.link")
	assert.True(t, bad)

	bad, _ = d.IsMaliciousDomain("example.com")
	assert.False(t, bad)
}
