package pipeline

import (
	"math"
	"testing"

	"github.com/mohammad-safakhou/sift/internal/store"
)

func TestJaccard(t *testing.T) {
	cases := []struct {
		name string
		a, b string
		want float64
	}{
		{"identical", "OpenAI releases new model", "OpenAI releases new model", 1.0},
		{"empty left", "", "some title", 0},
		{"empty right", "some title", "", 0},
		{"both empty", "", "", 0},
		{"disjoint", "quantum computing update", "soccer finals tonight", 0},
		{"case insensitive", "LLM Training", "llm training", 1.0},
		{"partial overlap", "OpenAI releases new model", "OpenAI unveils new model today", 3.0 / 7.0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := jaccard(tc.a, tc.b)
			if math.Abs(got-tc.want) > 1e-9 {
				t.Fatalf("jaccard(%q, %q) = %v, want %v", tc.a, tc.b, got, tc.want)
			}
		})
	}
}

func TestJaccardSymmetric(t *testing.T) {
	a := "OpenAI releases new model"
	b := "OpenAI unveils new model today"
	if jaccard(a, b) != jaccard(b, a) {
		t.Fatalf("jaccard is not symmetric for %q / %q", a, b)
	}
}

func TestAssignClusterJoinsSimilar(t *testing.T) {
	window := []store.ClusterCandidate{
		{ID: 2, Title: "OpenAI releases new model", URL: "https://example.com/a", ClusterID: "cluster-a"},
		{ID: 1, Title: "Soccer finals recap", URL: "https://example.com/b", ClusterID: "cluster-b"},
	}
	// similarity 3/7 > 0.4 joins cluster-a
	got := assignCluster("OpenAI unveils new model today", "https://example.com/c", window)
	if got != "cluster-a" {
		t.Fatalf("expected cluster-a, got %q", got)
	}
}

func TestAssignClusterBelowThreshold(t *testing.T) {
	window := []store.ClusterCandidate{
		{ID: 1, Title: "OpenAI releases new model", URL: "https://example.com/a", ClusterID: "cluster-a"},
	}
	got := assignCluster("Quantum computing milestone reached", "https://example.com/q", window)
	if got != "" {
		t.Fatalf("expected fresh cluster (empty id), got %q", got)
	}
}

func TestAssignClusterExactThresholdStaysFresh(t *testing.T) {
	// 2 shared tokens of 5 union = 0.4 exactly, strictly-greater rule
	// means no join
	window := []store.ClusterCandidate{
		{ID: 1, Title: "alpha beta gamma", URL: "https://example.com/a", ClusterID: "cluster-a"},
	}
	got := assignCluster("alpha beta delta epsilon", "https://example.com/b", window)
	if j := jaccard("alpha beta gamma", "alpha beta delta epsilon"); j != 0.4 {
		t.Fatalf("test fixture drifted, jaccard = %v", j)
	}
	if got != "" {
		t.Fatalf("similarity exactly at threshold must not join, got %q", got)
	}
}

func TestAssignClusterURLOverride(t *testing.T) {
	window := []store.ClusterCandidate{
		{ID: 1, Title: "completely different words here", URL: "https://example.com/same", ClusterID: "cluster-x"},
	}
	got := assignCluster("unrelated candidate title", "https://example.com/same", window)
	if got != "cluster-x" {
		t.Fatalf("exact URL match must force the join, got %q", got)
	}
}

func TestAssignClusterTieKeepsNewest(t *testing.T) {
	// both members are identical to the candidate; the window is
	// ordered newest first and the first match must win
	window := []store.ClusterCandidate{
		{ID: 2, Title: "same exact title", URL: "https://example.com/new", ClusterID: "cluster-new"},
		{ID: 1, Title: "same exact title", URL: "https://example.com/old", ClusterID: "cluster-old"},
	}
	got := assignCluster("same exact title", "https://example.com/other", window)
	if got != "cluster-new" {
		t.Fatalf("tie must keep the newest member, got %q", got)
	}
}
