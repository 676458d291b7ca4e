// Package resultlog persists analysis results as one JSON document per
// message, organized per account, and answers history and statistics
// queries over the stored documents.
package resultlog

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mailsentry/mailsentry/internal/core"
)

// Store writes results under baseDir/<account>/<timestamp>_<message-id>.json.
type Store struct {
	baseDir string
	logger  *zap.Logger
}

// NewStore prepares the result directory.
func NewStore(baseDir string, logger *zap.Logger) (*Store, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create result directory: %w", err)
	}
	return &Store{baseDir: baseDir, logger: logger}, nil
}

// Save writes one result document. Concurrent writers are safe because
// every document gets its own file.
func (s *Store) Save(result *core.AnalysisResult) error {
	dir := filepath.Join(s.baseDir, safeFilename(result.EmailAccount))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create account directory: %w", err)
	}

	name := fmt.Sprintf("%s_%s.json",
		result.AnalyzedAt.Format("20060102_150405"),
		truncate(safeFilename(result.MessageID), 50))
	path := filepath.Join(dir, name)

	raw, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize result: %w", err)
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return fmt.Errorf("failed to write result file: %w", err)
	}

	s.logger.Debug("Saved analysis result",
		zap.String("account", result.EmailAccount),
		zap.String("file", name))
	return nil
}

// LoadAll returns stored results newest first, deduplicated by message id
// (the freshest document wins). accountFilter narrows to one account; limit
// of 0 means unlimited.
func (s *Store) LoadAll(accountFilter string, limit int) ([]*core.AnalysisResult, error) {
	type entry struct {
		path    string
		modTime time.Time
	}
	var files []entry

	accounts, err := os.ReadDir(s.baseDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read result directory: %w", err)
	}
	for _, acc := range accounts {
		if !acc.IsDir() {
			continue
		}
		if accountFilter != "" && acc.Name() != safeFilename(accountFilter) {
			continue
		}
		dir := filepath.Join(s.baseDir, acc.Name())
		items, err := os.ReadDir(dir)
		if err != nil {
			s.logger.Warn("Skipping unreadable account directory",
				zap.String("dir", dir), zap.Error(err))
			continue
		}
		for _, item := range items {
			if item.IsDir() || !strings.HasSuffix(item.Name(), ".json") {
				continue
			}
			info, err := item.Info()
			if err != nil {
				continue
			}
			files = append(files, entry{
				path:    filepath.Join(dir, item.Name()),
				modTime: info.ModTime(),
			})
		}
	}

	sort.Slice(files, func(i, j int) bool { return files[i].modTime.After(files[j].modTime) })

	var results []*core.AnalysisResult
	seen := map[string]bool{}
	for _, f := range files {
		raw, err := os.ReadFile(f.path)
		if err != nil {
			s.logger.Warn("Skipping unreadable result file", zap.String("file", f.path), zap.Error(err))
			continue
		}
		var result core.AnalysisResult
		if err := json.Unmarshal(raw, &result); err != nil {
			s.logger.Warn("Skipping corrupt result file", zap.String("file", f.path), zap.Error(err))
			continue
		}
		if result.MessageID != "" && seen[result.MessageID] {
			continue
		}
		seen[result.MessageID] = true
		results = append(results, &result)
		if limit > 0 && len(results) >= limit {
			break
		}
	}
	return results, nil
}

// Statistics is the aggregate view over stored results.
type Statistics struct {
	Total        int            `json:"total"`
	Spam         int            `json:"spam"`
	Phishing     int            `json:"phishing"`
	ByRiskLevel  map[string]int `json:"by_risk_level"`
	AverageScore float64        `json:"average_score"`
}

// Statistics aggregates every stored result for the account filter.
func (s *Store) Statistics(accountFilter string) (*Statistics, error) {
	results, err := s.LoadAll(accountFilter, 0)
	if err != nil {
		return nil, err
	}

	stats := &Statistics{ByRiskLevel: map[string]int{}}
	sum := 0.0
	for _, r := range results {
		stats.Total++
		if r.IsSpam {
			stats.Spam++
		}
		if r.IsPhishing {
			stats.Phishing++
		}
		stats.ByRiskLevel[r.RiskLevel]++
		sum += r.TotalScore
	}
	if stats.Total > 0 {
		stats.AverageScore = sum / float64(stats.Total)
	}
	return stats, nil
}

// safeFilename keeps letters, digits and "._-@"; everything else becomes an
// underscore so message ids and account names cannot escape the directory.
func safeFilename(name string) string {
	var sb strings.Builder
	sb.Grow(len(name))
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			sb.WriteRune(r)
		case r == '.' || r == '_' || r == '-' || r == '@':
			sb.WriteRune(r)
		default:
			sb.WriteRune('_')
		}
	}
	return sb.String()
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}
