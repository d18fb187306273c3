package pipeline

import (
	"context"
	"fmt"
	"log"
	"strings"
	"unicode/utf8"

	"github.com/mohammad-safakhou/sift/internal/retry"
	"github.com/mohammad-safakhou/sift/internal/store"
	"github.com/mohammad-safakhou/sift/models"
	"github.com/mohammad-safakhou/sift/provider"
)

const (
	maxHeadlineLen    = 120
	critiquePassScore = 7
)

// forbiddenPhrases is the boilerplate denylist scanned in summaries.
var forbiddenPhrases = []string{"As an AI", "I cannot", "knowledge cutoff"}

// Gate validates synthesized items before delivery. Local rules run
// fail-fast; the external critique call is fail-open: if the service
// is unreachable the item passes with a logged warning, trading
// strictness for availability. Every item entering the gate leaves it
// PASS or FAIL.
type Gate struct {
	logger *log.Logger
	store  *store.Store
	critic Critic
	retry  retry.Policy
}

// Critic is the slice of the provider the gate needs. A nil critic
// disables the external critique step entirely.
type Critic interface {
	Critique(ctx context.Context, in provider.CritiqueInput) (provider.Critique, error)
}

// NewGate wires the validation stage.
func NewGate(logger *log.Logger, st *store.Store, critic Critic, policy retry.Policy) *Gate {
	return &Gate{logger: logger, store: st, critic: critic, retry: policy}
}

func (g *Gate) Name() string { return "validation" }

func (g *Gate) Run(ctx context.Context) (int, error) {
	items, err := g.store.ListPendingValidation(ctx)
	if err != nil {
		return 0, err
	}

	processed := 0
	for _, item := range items {
		status, reason := g.validate(ctx, item)
		if err := g.store.SetValidation(ctx, item.ID, status); err != nil {
			g.logger.Printf("warn: persist validation for item %d: %v", item.ID, err)
			continue
		}
		if status == models.ValidationFail {
			g.logger.Printf("validation FAILED for item %d: %s", item.ID, reason)
		} else {
			g.logger.Printf("validated item %d: PASS", item.ID)
		}
		processed++
	}
	return processed, nil
}

// validate applies the local rules in order (first failure wins), then
// the external critique.
func (g *Gate) validate(ctx context.Context, item models.ContentItem) (models.ValidationStatus, string) {
	if utf8.RuneCountInString(item.SummaryHeadline) > maxHeadlineLen {
		return models.ValidationFail, "Headline too long"
	}
	if strings.TrimSpace(item.URL) == "" {
		return models.ValidationFail, "Missing source URL"
	}

	fullText := strings.ToLower(item.SummaryTLDR + " " + strings.Join(item.SummaryHighlights, " "))
	for _, phrase := range forbiddenPhrases {
		if strings.Contains(fullText, strings.ToLower(phrase)) {
			return models.ValidationFail, fmt.Sprintf("Contains forbidden phrase: %s", phrase)
		}
	}

	if g.critic == nil {
		return models.ValidationPass, ""
	}

	var critique provider.Critique
	err := g.retry.Do(ctx, func() error {
		var cerr error
		critique, cerr = g.critic.Critique(ctx, provider.CritiqueInput{
			OriginalSnippet: item.Body,
			Headline:        item.SummaryHeadline,
			TLDR:            item.SummaryTLDR,
		})
		return cerr
	})
	if err != nil {
		// fail-open: availability over strictness
		g.logger.Printf("warn: critique for item %d unavailable, passing: %v", item.ID, err)
		return models.ValidationPass, ""
	}
	if critique.Score < critiquePassScore {
		return models.ValidationFail, fmt.Sprintf("critique score %d (%s): %s", critique.Score, critique.Flag, critique.Reason)
	}
	return models.ValidationPass, ""
}
