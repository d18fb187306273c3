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

// Relevance labels unclassified items via the language model.
// Item-level calls are independent and only write their own item's
// fields, so they fan out over a bounded worker pool with per-item
// commits.
type Relevance struct {
	logger  *log.Logger
	store   *store.Store
	llm     provider.Provider
	retry   retry.Policy
	batch   int
	workers int
}

// NewRelevance wires the relevance stage.
func NewRelevance(logger *log.Logger, st *store.Store, llm provider.Provider, policy retry.Policy, batch, workers int) *Relevance {
	if batch <= 0 {
		batch = 10
	}
	if workers <= 0 {
		workers = 1
	}
	return &Relevance{logger: logger, store: st, llm: llm, retry: policy, batch: batch, workers: workers}
}

func (r *Relevance) Name() string { return "relevance" }

func (r *Relevance) Run(ctx context.Context) (int, error) {
	items, err := r.store.ListPendingRelevance(ctx, r.batch)
	if err != nil {
		return 0, err
	}

	var processed int64
	sem := make(chan struct{}, r.workers)
	var wg sync.WaitGroup
	for _, item := range items {
		wg.Add(1)
		sem <- struct{}{}
		go func(item models.ContentItem) {
			defer wg.Done()
			defer func() { <-sem }()

			var cls provider.Classification
			err := r.retry.Do(ctx, func() error {
				var cerr error
				cls, cerr = r.llm.Classify(ctx, provider.ClassifyInput{
					Title:       item.Title,
					Source:      item.Source,
					BodySnippet: item.Body,
				})
				return cerr
			})
			if err != nil {
				r.logger.Printf("warn: classify item %d failed, skipping this run: %v", item.ID, err)
				return
			}

			cls = clampClassification(cls)
			if err := r.store.SetRelevance(ctx, item.ID, cls.Label, cls.Confidence, cls.Reason); err != nil {
				r.logger.Printf("warn: persist relevance for item %d: %v", item.ID, err)
				return
			}
			r.logger.Printf("classified item %d as %s (%.2f)", item.ID, cls.Label, cls.Confidence)
			atomic.AddInt64(&processed, 1)
		}(item)
	}
	wg.Wait()
	return int(atomic.LoadInt64(&processed)), nil
}

// clampClassification enforces the prompt-level contract defensively:
// unknown labels and low-confidence verdicts become IRRELEVANT.
func clampClassification(cls provider.Classification) provider.Classification {
	if _, ok := models.KnownLabels[cls.Label]; !ok {
		cls.Label = models.LabelIrrelevant
	}
	if cls.Confidence < 0 {
		cls.Confidence = 0
	}
	if cls.Confidence > 1 {
		cls.Confidence = 1
	}
	if cls.Label != models.LabelIrrelevant && cls.Confidence < models.MinRelevanceConfidence {
		cls.Label = models.LabelIrrelevant
	}
	return cls
}
