package pipeline

import (
	"context"
	"log"
	"strings"

	"github.com/google/uuid"

	"github.com/mohammad-safakhou/sift/internal/retry"
	"github.com/mohammad-safakhou/sift/internal/store"
)

// topicKeywords is the fixed vocabulary scanned for topic tags.
var topicKeywords = []string{
	"LLM", "Transformer", "Generative AI", "Reinforcement Learning", "Vision", "Agent", "Ethics",
}

// Enrichment computes an embedding, topic tags and a cluster
// assignment for relevant items. Items are processed sequentially
// because clustering is order-dependent: each enriched item joins the
// lookback window for the next one. Clusters are append-only; earlier
// items are never reassigned.
type Enrichment struct {
	logger *log.Logger
	store  *store.Store
	llm    Embedder
	retry  retry.Policy
	batch  int
}

// Embedder is the slice of the provider the enrichment stage needs.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// NewEnrichment wires the enrichment stage.
func NewEnrichment(logger *log.Logger, st *store.Store, llm Embedder, policy retry.Policy, batch int) *Enrichment {
	if batch <= 0 {
		batch = 20
	}
	return &Enrichment{logger: logger, store: st, llm: llm, retry: policy, batch: batch}
}

func (e *Enrichment) Name() string { return "enrichment" }

func (e *Enrichment) Run(ctx context.Context) (int, error) {
	items, err := e.store.ListPendingEnrichment(ctx, e.batch)
	if err != nil {
		return 0, err
	}
	if len(items) == 0 {
		return 0, nil
	}

	window, err := e.store.RecentClustered(ctx, clusterWindowSize)
	if err != nil {
		return 0, err
	}

	processed := 0
	for _, item := range items {
		var embedding []float32
		err := e.retry.Do(ctx, func() error {
			var eerr error
			embedding, eerr = e.llm.Embed(ctx, item.Title+"\n"+item.Body)
			return eerr
		})
		if err != nil {
			e.logger.Printf("warn: embed item %d failed, skipping this run: %v", item.ID, err)
			continue
		}

		topics := extractTopics(item.Body)

		clusterID := assignCluster(item.Title, item.URL, window)
		if clusterID == "" {
			clusterID = uuid.NewString()
		}

		if err := e.store.SetEnrichment(ctx, item.ID, embedding, topics, clusterID); err != nil {
			e.logger.Printf("warn: persist enrichment for item %d: %v", item.ID, err)
			continue
		}

		// the freshly clustered item becomes the newest window member
		window = append([]store.ClusterCandidate{{
			ID:        item.ID,
			Title:     item.Title,
			URL:       item.URL,
			ClusterID: clusterID,
		}}, window...)
		if len(window) > clusterWindowSize {
			window = window[:clusterWindowSize]
		}

		e.logger.Printf("enriched item %d (cluster %s, topics %v)", item.ID, clusterID, topics)
		processed++
	}
	return processed, nil
}

func extractTopics(body string) []string {
	lower := strings.ToLower(body)
	var found []string
	for _, kw := range topicKeywords {
		if strings.Contains(lower, strings.ToLower(kw)) {
			found = append(found, kw)
		}
	}
	return found
}
