package provider

import (
	"context"
	"fmt"
	"log"

	"github.com/mohammad-safakhou/sift/models"
)

// ClassifyInput carries the fields the relevance contract sends.
type ClassifyInput struct {
	Title       string
	Source      string
	BodySnippet string
}

// Classification is the relevance verdict returned by the model.
type Classification struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence_score"`
	Reason     string  `json:"reason"`
}

// SummarizeInput carries the fields the synthesis contract sends.
type SummarizeInput struct {
	Title       string
	BodySnippet string
}

// Summary is a synthesized insight for one item.
type Summary struct {
	Headline     string   `json:"headline"`
	TLDR         string   `json:"tldr"`
	Highlights   []string `json:"highlights"`
	WhyItMatters string   `json:"why_it_matters"`
}

// CritiqueInput carries the fields the critique contract sends.
type CritiqueInput struct {
	OriginalSnippet string
	Headline        string
	TLDR            string
}

// Critique flags possible hallucination, hype or spam in a summary.
type Critique struct {
	Score  int    `json:"score"`
	Reason string `json:"reason"`
	Flag   string `json:"flag"`
}

// Critique flags.
const (
	CritiqueOK            = "OK"
	CritiqueHallucination = "HALLUCINATION"
	CritiqueHype          = "HYPE"
	CritiqueSpam          = "SPAM"
)

// Provider is the language model port every pipeline adapter calls.
type Provider interface {
	Classify(ctx context.Context, in ClassifyInput) (Classification, error)
	Summarize(ctx context.Context, in SummarizeInput) (Summary, error)
	Critique(ctx context.Context, in CritiqueInput) (Critique, error)
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Mock is the degraded-mode provider selected when no API key is
// configured. Outputs are deterministic so the pipeline stays runnable
// in test environments; callers must log that mock mode is active.
type Mock struct{}

// NewMock constructs the mock provider and loudly announces it.
func NewMock(logger *log.Logger) *Mock {
	if logger != nil {
		logger.Printf("WARNING: no LLM API key configured, using mock provider with placeholder outputs")
	}
	return &Mock{}
}

func (m *Mock) Classify(ctx context.Context, in ClassifyInput) (Classification, error) {
	return Classification{
		Label:      models.LabelFoundationModels,
		Confidence: 0.9,
		Reason:     "mock decision (no API key)",
	}, nil
}

func (m *Mock) Summarize(ctx context.Context, in SummarizeInput) (Summary, error) {
	title := in.Title
	if len(title) > 20 {
		title = title[:20]
	}
	return Summary{
		Headline:     fmt.Sprintf("Summary of %s...", title),
		TLDR:         "This is a mock summary because no API key is present.",
		Highlights:   []string{"Point 1", "Point 2"},
		WhyItMatters: "It matters because we need to test.",
	}, nil
}

func (m *Mock) Critique(ctx context.Context, in CritiqueInput) (Critique, error) {
	return Critique{Score: 8, Reason: "mock critique (no API key)", Flag: CritiqueOK}, nil
}

func (m *Mock) Embed(ctx context.Context, text string) ([]float32, error) {
	vec := make([]float32, 10)
	for i := range vec {
		vec[i] = 0.1
	}
	return vec, nil
}

var _ Provider = (*Mock)(nil)
