package dnscache

import (
	"encoding/base64"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestMemoryCacheRoundTrip(t *testing.T) {
	cache := NewMemoryCache(zap.NewNop(), time.Minute)
	defer cache.Stop()

	cache.Set("spf", "example.com", []byte(`{"present":true}`), time.Minute)

	payload, ok := cache.Get("spf", "example.com")
	assert.True(t, ok)
	assert.JSONEq(t, `{"present":true}`, string(payload))

	_, ok = cache.Get("dmarc", "example.com")
	assert.False(t, ok, "record types are separate keys")

	_, ok = cache.Get("spf", "other.example")
	assert.False(t, ok)
}

func TestMemoryCacheExpiry(t *testing.T) {
	cache := NewMemoryCache(zap.NewNop(), time.Minute)
	defer cache.Stop()

	cache.Set("mx", "example.com", []byte(`{}`), -time.Second)

	_, ok := cache.Get("mx", "example.com")
	assert.False(t, ok, "expired entries are invisible")

	cache.cleanup()
	cache.mu.RLock()
	defer cache.mu.RUnlock()
	assert.Empty(t, cache.entries)
}

func TestMemoryCacheStopIdempotent(t *testing.T) {
	cache := NewMemoryCache(zap.NewNop(), time.Minute)
	cache.Stop()
	cache.Stop()
}

func TestEstimateKeyBits(t *testing.T) {
	// 2048-bit RSA SubjectPublicKeyInfo is 294 DER bytes, 1024-bit is 162.
	long := make([]byte, 294)
	short := make([]byte, 162)

	assert.Equal(t, 2048, estimateKeyBits("v=DKIM1; k=rsa; p="+b64(long)))
	assert.Equal(t, 1024, estimateKeyBits("v=DKIM1; p="+b64(short)))
	assert.Equal(t, 0, estimateKeyBits("v=DKIM1; k=rsa"))
	assert.Equal(t, 0, estimateKeyBits("v=DKIM1; p=!!!not-base64!!!"))
}

func TestSPFPolicyClassification(t *testing.T) {
	assert.Equal(t, "strict", spfPolicy("v=spf1 include:_spf.google.com -all"))
	assert.Equal(t, "soft", spfPolicy("v=spf1 mx ~all"))
	assert.Equal(t, "none", spfPolicy("v=spf1 mx ?all"))
	assert.Equal(t, "none", spfPolicy("v=spf1 include:x.example"))
}

func TestDMARCPolicyClassification(t *testing.T) {
	assert.Equal(t, "reject", dmarcPolicy("v=DMARC1; p=reject; rua=mailto:d@example.com"))
	assert.Equal(t, "quarantine", dmarcPolicy("v=DMARC1;p=quarantine"))
	assert.Equal(t, "none", dmarcPolicy("v=DMARC1; p=none"))
	assert.Equal(t, "none", dmarcPolicy("v=DMARC1"))
}

func b64(raw []byte) string {
	return base64.StdEncoding.EncodeToString(raw)
}
