package pipeline

import (
	"testing"
	"time"

	"github.com/mohammad-safakhou/sift/models"
)

func TestPriorityScore(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	cases := []struct {
		name        string
		label       string
		confidence  float64
		publishedAt time.Time
		want        float64
	}{
		{
			name:        "boosted label and fresh",
			label:       models.LabelFoundationModels,
			confidence:  0.9,
			publishedAt: now.Add(-2 * time.Hour),
			want:        1.05,
		},
		{
			name:        "agentic label stale",
			label:       models.LabelAgenticAI,
			confidence:  0.8,
			publishedAt: now.Add(-48 * time.Hour),
			want:        0.9,
		},
		{
			name:        "plain label fresh",
			label:       models.LabelAppliedGenAI,
			confidence:  0.8,
			publishedAt: now.Add(-1 * time.Hour),
			want:        0.85,
		},
		{
			name:        "plain label stale",
			label:       models.LabelMultimodalAI,
			confidence:  0.77,
			publishedAt: now.Add(-72 * time.Hour),
			want:        0.77,
		},
		{
			name:        "exactly 24h is not fresh",
			label:       models.LabelAISafetyPolicy,
			confidence:  0.8,
			publishedAt: now.Add(-recencyWindow),
			want:        0.8,
		},
		{
			name:        "maximum possible",
			label:       models.LabelFoundationModels,
			confidence:  1.0,
			publishedAt: now.Add(-time.Minute),
			want:        1.15,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := PriorityScore(tc.label, tc.confidence, tc.publishedAt, now)
			if err != nil {
				t.Fatalf("PriorityScore: %v", err)
			}
			if got != tc.want {
				t.Fatalf("PriorityScore = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestPriorityScoreBounds(t *testing.T) {
	now := time.Now().UTC()
	for _, label := range []string{models.LabelFoundationModels, models.LabelAppliedGenAI} {
		for _, conf := range []float64{0, 0.5, 0.75, 1.0} {
			for _, age := range []time.Duration{time.Hour, 100 * time.Hour} {
				score, err := PriorityScore(label, conf, now.Add(-age), now)
				if err != nil {
					t.Fatalf("PriorityScore: %v", err)
				}
				if score < 0 || score > 1.15 {
					t.Fatalf("score %v out of [0, 1.15] for label=%s conf=%v age=%s", score, label, conf, age)
				}
			}
		}
	}
}

func TestPriorityScoreMissingPublishedAt(t *testing.T) {
	_, err := PriorityScore(models.LabelFoundationModels, 0.9, time.Time{}, time.Now())
	if err == nil {
		t.Fatal("expected error for zero published_at")
	}
}

func TestPriorityScoreRounding(t *testing.T) {
	now := time.Now().UTC()
	got, err := PriorityScore(models.LabelAppliedGenAI, 0.7777, now.Add(-48*time.Hour), now)
	if err != nil {
		t.Fatalf("PriorityScore: %v", err)
	}
	if got != 0.778 {
		t.Fatalf("expected 3-decimal rounding, got %v", got)
	}
}
