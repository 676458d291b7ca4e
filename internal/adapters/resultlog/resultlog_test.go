package resultlog

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mailsentry/mailsentry/internal/core"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(t.TempDir(), zap.NewNop())
	require.NoError(t, err)
	return store
}

func result(id, account string, at time.Time) *core.AnalysisResult {
	return &core.AnalysisResult{
		MessageID:    id,
		EmailAccount: account,
		TotalScore:   5.0,
		RiskLevel:    core.RiskMedium,
		AnalyzedAt:   at,
	}
}

func TestSaveCreatesAccountLayout(t *testing.T) {
	store := newStore(t)
	at := time.Date(2026, 8, 29, 10, 30, 0, 0, time.UTC)

	r := result("<abc/123@mail.example>", "user@example.com", at)
	require.NoError(t, store.Save(r))

	path := filepath.Join(store.baseDir, "user@example.com", "20260829_103000__abc_123@mail.example_.json")
	_, err := os.Stat(path)
	assert.NoError(t, err, "angle brackets and slash sanitized to underscores")
}

func TestSaveTruncatesLongMessageID(t *testing.T) {
	store := newStore(t)
	long := make([]byte, 120)
	for i := range long {
		long[i] = 'x'
	}
	r := result(string(long), "a@example.com", time.Now())
	require.NoError(t, store.Save(r))

	items, err := os.ReadDir(filepath.Join(store.baseDir, "a@example.com"))
	require.NoError(t, err)
	require.Len(t, items, 1)
	// 15 chars of timestamp, underscore, 50 of id, ".json"
	assert.Len(t, items[0].Name(), 15+1+50+5)
}

func TestLoadAllNewestFirstAndDeduplicated(t *testing.T) {
	store := newStore(t)
	base := time.Now().Add(-time.Hour)

	older := result("<dup@example>", "a@example.com", base)
	older.TotalScore = 2.0
	require.NoError(t, store.Save(older))

	newer := result("<dup@example>", "a@example.com", base.Add(time.Minute))
	newer.TotalScore = 8.0
	require.NoError(t, store.Save(newer))

	other := result("<other@example>", "a@example.com", base.Add(2*time.Minute))
	require.NoError(t, store.Save(other))

	// Spread mtimes so ordering does not depend on write timing.
	touch(t, store, "a@example.com", base)

	results, err := store.LoadAll("", 0)
	require.NoError(t, err)
	require.Len(t, results, 2, "duplicate message id collapsed")
	assert.Equal(t, "<other@example>", results[0].MessageID)
	assert.Equal(t, "<dup@example>", results[1].MessageID)
	assert.InDelta(t, 8.0, results[1].TotalScore, 1e-9, "freshest duplicate wins")
}

// touch rewrites each file's mtime to match the timestamp encoded in its
// name, so newest-first ordering is deterministic in tests.
func touch(t *testing.T, store *Store, account string, base time.Time) {
	t.Helper()
	dir := filepath.Join(store.baseDir, account)
	items, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, item := range items {
		ts, err := time.Parse("20060102_150405", item.Name()[:15])
		require.NoError(t, err)
		require.NoError(t, os.Chtimes(filepath.Join(dir, item.Name()), ts, ts))
	}
}

func TestLoadAllAccountFilterAndLimit(t *testing.T) {
	store := newStore(t)
	now := time.Now()

	require.NoError(t, store.Save(result("<1@x>", "a@example.com", now)))
	require.NoError(t, store.Save(result("<2@x>", "b@example.com", now)))
	require.NoError(t, store.Save(result("<3@x>", "b@example.com", now.Add(time.Second))))

	onlyB, err := store.LoadAll("b@example.com", 0)
	require.NoError(t, err)
	assert.Len(t, onlyB, 2)
	for _, r := range onlyB {
		assert.Equal(t, "b@example.com", r.EmailAccount)
	}

	limited, err := store.LoadAll("", 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestLoadAllSkipsCorruptFiles(t *testing.T) {
	store := newStore(t)
	require.NoError(t, store.Save(result("<ok@x>", "a@example.com", time.Now())))

	dir := filepath.Join(store.baseDir, "a@example.com")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "19990101_000000_junk.json"), []byte("{broken"), 0o644))

	results, err := store.LoadAll("", 0)
	require.NoError(t, err)
	assert.Len(t, results, 1)
}

func TestStatistics(t *testing.T) {
	store := newStore(t)
	now := time.Now()

	spam := result("<s@x>", "a@example.com", now)
	spam.IsSpam = true
	spam.RiskLevel = core.RiskHigh
	spam.TotalScore = 2.0
	require.NoError(t, store.Save(spam))

	phish := result("<p@x>", "a@example.com", now.Add(time.Second))
	phish.IsSpam = true
	phish.IsPhishing = true
	phish.RiskLevel = core.RiskCritical
	phish.TotalScore = 0.5
	require.NoError(t, store.Save(phish))

	clean := result("<c@x>", "a@example.com", now.Add(2*time.Second))
	clean.RiskLevel = core.RiskSafe
	clean.TotalScore = 9.5
	require.NoError(t, store.Save(clean))

	stats, err := store.Statistics("")
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 2, stats.Spam)
	assert.Equal(t, 1, stats.Phishing)
	assert.Equal(t, 1, stats.ByRiskLevel[core.RiskCritical])
	assert.InDelta(t, 4.0, stats.AverageScore, 1e-9)
}
