package pipeline

import (
	"context"
	"log"
	"sync"
	"sync/atomic"

	"github.com/mohammad-safakhou/sift/internal/retry"
	"github.com/mohammad-safakhou/sift/internal/store"
	"github.com/mohammad-safakhou/sift/models"
	"github.com/mohammad-safakhou/sift/provider"
)

// Synthesis summarizes the top-ranked unsummarized items. The limit
// caps language model spend per run; lower-ranked items wait for a
// later invocation.
type Synthesis struct {
	logger  *log.Logger
	store   *store.Store
	llm     provider.Provider
	retry   retry.Policy
	limit   int
	workers int
}

// NewSynthesis wires the synthesis stage.
func NewSynthesis(logger *log.Logger, st *store.Store, llm provider.Provider, policy retry.Policy, limit, workers int) *Synthesis {
	if limit <= 0 {
		limit = 5
	}
	if workers <= 0 {
		workers = 1
	}
	return &Synthesis{logger: logger, store: st, llm: llm, retry: policy, limit: limit, workers: workers}
}

func (s *Synthesis) Name() string { return "synthesis" }

func (s *Synthesis) Run(ctx context.Context) (int, error) {
	items, err := s.store.ListPendingSynthesis(ctx, s.limit)
	if err != nil {
		return 0, err
	}

	var processed int64
	sem := make(chan struct{}, s.workers)
	var wg sync.WaitGroup
	for _, item := range items {
		wg.Add(1)
		sem <- struct{}{}
		go func(item models.ContentItem) {
			defer wg.Done()
			defer func() { <-sem }()

			var summary provider.Summary
			err := s.retry.Do(ctx, func() error {
				var serr error
				summary, serr = s.llm.Summarize(ctx, provider.SummarizeInput{
					Title:       item.Title,
					BodySnippet: item.Body,
				})
				return serr
			})
			if err != nil {
				s.logger.Printf("warn: summarize item %d failed, skipping this run: %v", item.ID, err)
				return
			}

			if err := s.store.SetSummary(ctx, item.ID, summary.Headline, summary.TLDR, summary.Highlights, summary.WhyItMatters); err != nil {
				s.logger.Printf("warn: persist summary for item %d: %v", item.ID, err)
				return
			}
			s.logger.Printf("synthesized item %d: %s", item.ID, summary.Headline)
			atomic.AddInt64(&processed, 1)
		}(item)
	}
	wg.Wait()
	return int(atomic.LoadInt64(&processed)), nil
}
