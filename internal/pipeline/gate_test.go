package pipeline

import (
	"context"
	"errors"
	"io"
	"log"
	"strings"
	"testing"

	"github.com/mohammad-safakhou/sift/internal/retry"
	"github.com/mohammad-safakhou/sift/models"
	"github.com/mohammad-safakhou/sift/provider"
)

type stubCritic struct {
	critique provider.Critique
	err      error
	calls    int
}

func (s *stubCritic) Critique(ctx context.Context, in provider.CritiqueInput) (provider.Critique, error) {
	s.calls++
	return s.critique, s.err
}

func newTestGate(critic Critic) *Gate {
	logger := log.New(io.Discard, "", 0)
	policy := retry.Policy{MaxAttempts: 1}
	return NewGate(logger, nil, critic, policy)
}

func TestGateHeadlineTooLong(t *testing.T) {
	critic := &stubCritic{critique: provider.Critique{Score: 10, Flag: provider.CritiqueOK}}
	g := newTestGate(critic)

	item := models.ContentItem{
		ID:              1,
		URL:             "https://example.com/p",
		SummaryHeadline: strings.Repeat("x", 130),
		SummaryTLDR:     "fine",
	}
	status, reason := g.validate(context.Background(), item)
	if status != models.ValidationFail {
		t.Fatalf("expected FAIL, got %s", status)
	}
	if reason != "Headline too long" {
		t.Fatalf("unexpected reason %q", reason)
	}
	if critic.calls != 0 {
		t.Fatalf("local rule failure must short-circuit the critique, got %d calls", critic.calls)
	}
}

func TestGateHeadlineRuneCount(t *testing.T) {
	// 120 multibyte runes are within the limit even though the byte
	// length exceeds it
	g := newTestGate(&stubCritic{critique: provider.Critique{Score: 9, Flag: provider.CritiqueOK}})
	item := models.ContentItem{
		ID:              1,
		URL:             "https://example.com/p",
		SummaryHeadline: strings.Repeat("é", 120),
		SummaryTLDR:     "fine",
	}
	status, _ := g.validate(context.Background(), item)
	if status != models.ValidationPass {
		t.Fatalf("120 runes must pass, got %s", status)
	}
}

func TestGateMissingURL(t *testing.T) {
	g := newTestGate(&stubCritic{critique: provider.Critique{Score: 9, Flag: provider.CritiqueOK}})
	item := models.ContentItem{ID: 1, SummaryHeadline: "ok", SummaryTLDR: "fine"}
	status, reason := g.validate(context.Background(), item)
	if status != models.ValidationFail || reason != "Missing source URL" {
		t.Fatalf("expected missing URL failure, got %s %q", status, reason)
	}
}

func TestGateForbiddenPhrases(t *testing.T) {
	cases := []struct {
		name       string
		tldr       string
		highlights []string
		wantFail   bool
	}{
		{"clean", "a normal summary", []string{"point"}, false},
		{"in tldr", "as an ai I think this matters", nil, true},
		{"case insensitive", "I CANNOT verify this claim", nil, true},
		{"in highlights", "fine", []string{"limited by knowledge cutoff"}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			g := newTestGate(&stubCritic{critique: provider.Critique{Score: 9, Flag: provider.CritiqueOK}})
			item := models.ContentItem{
				ID:                1,
				URL:               "https://example.com/p",
				SummaryHeadline:   "ok",
				SummaryTLDR:       tc.tldr,
				SummaryHighlights: tc.highlights,
			}
			status, reason := g.validate(context.Background(), item)
			if tc.wantFail && status != models.ValidationFail {
				t.Fatalf("expected FAIL, got %s", status)
			}
			if tc.wantFail && !strings.HasPrefix(reason, "Contains forbidden phrase") {
				t.Fatalf("unexpected reason %q", reason)
			}
			if !tc.wantFail && status != models.ValidationPass {
				t.Fatalf("expected PASS, got %s (%s)", status, reason)
			}
		})
	}
}

func TestGateCritiqueScore(t *testing.T) {
	item := models.ContentItem{ID: 1, URL: "https://example.com/p", SummaryHeadline: "ok", SummaryTLDR: "fine"}

	low := newTestGate(&stubCritic{critique: provider.Critique{Score: 6, Flag: provider.CritiqueHype, Reason: "overblown"}})
	status, reason := low.validate(context.Background(), item)
	if status != models.ValidationFail {
		t.Fatalf("score below 7 must FAIL, got %s", status)
	}
	if !strings.Contains(reason, "overblown") {
		t.Fatalf("reason must carry the critique, got %q", reason)
	}

	pass := newTestGate(&stubCritic{critique: provider.Critique{Score: 7, Flag: provider.CritiqueOK}})
	if status, _ := pass.validate(context.Background(), item); status != models.ValidationPass {
		t.Fatalf("score 7 must PASS, got %s", status)
	}
}

func TestGateCritiqueUnavailableFailsOpen(t *testing.T) {
	critic := &stubCritic{err: errors.New("connection refused")}
	g := newTestGate(critic)

	item := models.ContentItem{ID: 1, URL: "https://example.com/p", SummaryHeadline: "ok", SummaryTLDR: "fine"}
	status, _ := g.validate(context.Background(), item)
	if status != models.ValidationPass {
		t.Fatalf("critique transport failure must fail open to PASS, got %s", status)
	}
	if critic.calls == 0 {
		t.Fatal("critique was never attempted")
	}
}

func TestGateNilCriticPasses(t *testing.T) {
	g := newTestGate(nil)
	item := models.ContentItem{ID: 1, URL: "https://example.com/p", SummaryHeadline: "ok", SummaryTLDR: "fine"}
	if status, _ := g.validate(context.Background(), item); status != models.ValidationPass {
		t.Fatalf("nil critic must pass local-rule-clean items, got %s", status)
	}
}
