package pipeline

import (
	"context"
	"fmt"
	"log"
	"math"
	"time"

	"github.com/mohammad-safakhou/sift/internal/store"
	"github.com/mohammad-safakhou/sift/models"
)

const (
	labelBoost    = 0.1
	recencyBoost  = 0.05
	recencyWindow = 24 * time.Hour
)

// boostLabels is the fixed label set that earns the priority boost.
var boostLabels = map[string]struct{}{
	models.LabelFoundationModels: {},
	models.LabelAgenticAI:        {},
}

// PriorityScore is the deterministic ranking heuristic: relevance
// confidence, plus a boost for high-signal labels, plus a recency
// boost, rounded to 3 decimals. Pure function of its inputs; a missing
// publication time is a precondition violation for that item.
func PriorityScore(label string, confidence float64, publishedAt, now time.Time) (float64, error) {
	if publishedAt.IsZero() {
		return 0, fmt.Errorf("missing published_at")
	}
	score := confidence
	if _, ok := boostLabels[label]; ok {
		score += labelBoost
	}
	if now.Sub(publishedAt) < recencyWindow {
		score += recencyBoost
	}
	return math.Round(score*1000) / 1000, nil
}

// Ranker scores relevant items that still carry the zero sentinel.
// Items with an existing non-zero score are never re-ranked.
type Ranker struct {
	logger *log.Logger
	store  *store.Store
	now    func() time.Time
}

// NewRanker wires the prioritization stage.
func NewRanker(logger *log.Logger, st *store.Store) *Ranker {
	return &Ranker{logger: logger, store: st, now: func() time.Time { return time.Now().UTC() }}
}

func (r *Ranker) Name() string { return "prioritization" }

func (r *Ranker) Run(ctx context.Context) (int, error) {
	items, err := r.store.ListPendingRank(ctx)
	if err != nil {
		return 0, err
	}

	now := r.now()
	processed := 0
	for _, item := range items {
		score, err := PriorityScore(item.RelevanceLabel, item.RelevanceConfidence, item.PublishedAt, now)
		if err != nil {
			r.logger.Printf("error: rank item %d: %v", item.ID, err)
			continue
		}
		if err := r.store.SetPriority(ctx, item.ID, score); err != nil {
			r.logger.Printf("warn: persist priority for item %d: %v", item.ID, err)
			continue
		}
		r.logger.Printf("prioritized item %d: %.3f", item.ID, score)
		processed++
	}
	return processed, nil
}
