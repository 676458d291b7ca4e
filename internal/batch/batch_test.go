package batch

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mailsentry/mailsentry/internal/analyzer"
	"github.com/mailsentry/mailsentry/internal/core"
	"github.com/mailsentry/mailsentry/internal/metrics"
	"github.com/mailsentry/mailsentry/internal/refdata"
)

type emptyOracle struct{}

func (emptyOracle) SPF(context.Context, string) (*core.SPFRecord, error) {
	return &core.SPFRecord{}, nil
}

func (emptyOracle) DKIM(context.Context, string, string) (*core.DKIMRecord, error) {
	return &core.DKIMRecord{}, nil
}

func (emptyOracle) DMARC(context.Context, string) (*core.DMARCRecord, error) {
	return &core.DMARCRecord{}, nil
}

func (emptyOracle) MX(context.Context, string) ([]core.MXHost, error) {
	return nil, nil
}

type countingStore struct {
	mu    sync.Mutex
	saved []*core.AnalysisResult
}

func (s *countingStore) Save(r *core.AnalysisResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saved = append(s.saved, r)
	return nil
}

func (s *countingStore) LoadAll(string, int) ([]*core.AnalysisResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saved, nil
}

func testMessage(i int) *core.EmailMessage {
	return &core.EmailMessage{
		MessageID: fmt.Sprintf("<msg-%d@example.org>", i),
		FromName:  "Alice",
		FromEmail: "alice@example.org",
		ToEmail:   "bob@example.org",
		Subject:   fmt.Sprintf("Status update %d", i),
		BodyText:  "The weekly numbers are attached below, let me know if anything looks off.",
		Headers: map[string]string{
			"From":       "alice@example.org",
			"To":         "bob@example.org",
			"Date":       "Fri, 29 Aug 2026 10:00:00 +0000",
			"Message-ID": fmt.Sprintf("<msg-%d@example.org>", i),
			"Received":   "from mail.example.org by mx.example.org",
		},
	}
}

func TestAnalyzeAllKeepsOrder(t *testing.T) {
	data := refdata.Load("../../data", zap.NewNop())
	store := &countingStore{}
	service := analyzer.NewService(data, emptyOracle{}, store, metrics.NewNoop(), zap.NewNop(), core.DefaultThresholds())
	runner := NewRunner(service, 4)

	messages := make([]*core.EmailMessage, 9)
	for i := range messages {
		messages[i] = testMessage(i)
	}

	outcomes := runner.AnalyzeAll(context.Background(), messages, "bob@example.org")
	require.Len(t, outcomes, 9)

	for i, outcome := range outcomes {
		require.NoError(t, outcome.Err)
		require.NotNil(t, outcome.Result)
		assert.Same(t, messages[i], outcome.Message)
		assert.Equal(t, messages[i].MessageID, outcome.Result.MessageID)
	}
	assert.Len(t, store.saved, 9)
}

func TestAnalyzeAllEmptyBatch(t *testing.T) {
	data := refdata.Load("../../data", zap.NewNop())
	service := analyzer.NewService(data, emptyOracle{}, &countingStore{}, metrics.NewNoop(), zap.NewNop(), core.DefaultThresholds())
	runner := NewRunner(service, 4)

	outcomes := runner.AnalyzeAll(context.Background(), nil, "bob@example.org")
	assert.Empty(t, outcomes)
}

func TestNewRunnerClampsConcurrency(t *testing.T) {
	data := refdata.Load("../../data", zap.NewNop())
	service := analyzer.NewService(data, emptyOracle{}, &countingStore{}, metrics.NewNoop(), zap.NewNop(), core.DefaultThresholds())
	runner := NewRunner(service, 0)

	outcomes := runner.AnalyzeAll(context.Background(), []*core.EmailMessage{testMessage(1)}, "bob@example.org")
	require.Len(t, outcomes, 1)
	assert.NoError(t, outcomes[0].Err)
}
