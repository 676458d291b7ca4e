package batch

import (
	"context"

	"github.com/mailsentry/mailsentry/internal/analyzer"
	"github.com/mailsentry/mailsentry/internal/core"
)

// Outcome pairs one analyzed message with its verdict, or with the
// error that prevented analysis.
type Outcome struct {
	Message *core.EmailMessage
	Result  *core.AnalysisResult
	Err     error
}

// Runner fans analysis of a message batch out over a bounded number of
// goroutines.
type Runner struct {
	service     *analyzer.Service
	concurrency int
}

func NewRunner(service *analyzer.Service, concurrency int) *Runner {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Runner{service: service, concurrency: concurrency}
}

// AnalyzeAll runs every message through the analyzer, at most
// concurrency at a time. Outcomes keep the input order.
func (r *Runner) AnalyzeAll(ctx context.Context, messages []*core.EmailMessage, account string) []Outcome {
	semaphore := make(chan bool, r.concurrency)
	outcomes := make([]Outcome, len(messages))
	for i := 0; i < len(messages); i++ {
		semaphore <- true
		go func(index int) {
			result, err := r.service.Analyze(ctx, messages[index], account)
			outcomes[index] = Outcome{
				Message: messages[index],
				Result:  result,
				Err:     err,
			}
			<-semaphore
		}(i)
	}

	for i := 0; i < r.concurrency; i++ {
		semaphore <- true
	}

	return outcomes
}
