package pipeline

import (
	"strings"

	"github.com/mohammad-safakhou/sift/internal/store"
)

const (
	// clusterWindowSize bounds the lookback window of already-clustered
	// items a candidate is compared against.
	clusterWindowSize = 50
	// clusterThreshold is the similarity above which a candidate joins
	// an existing cluster. Tunable constant, not derived.
	clusterThreshold = 0.4
)

func tokenize(title string) map[string]struct{} {
	tokens := map[string]struct{}{}
	for _, tok := range strings.Fields(strings.ToLower(title)) {
		tokens[tok] = struct{}{}
	}
	return tokens
}

// jaccard computes bag-of-words Jaccard similarity over
// whitespace-split, lowercased tokens. Empty titles score 0.
func jaccard(a, b string) float64 {
	if strings.TrimSpace(a) == "" || strings.TrimSpace(b) == "" {
		return 0
	}
	ta, tb := tokenize(a), tokenize(b)
	intersection := 0
	for tok := range ta {
		if _, ok := tb[tok]; ok {
			intersection++
		}
	}
	union := len(ta) + len(tb) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

// assignCluster scores a candidate against the window (ordered newest
// first) and returns the cluster id to adopt, or "" when no member is
// similar enough and a fresh cluster should be minted. An exact URL
// match forces similarity to 1.0 as a defensive overlap with
// ingestion-level dedup. Ties keep the first (most recent) member.
func assignCluster(title, url string, window []store.ClusterCandidate) string {
	best := 0.0
	bestCluster := ""
	for _, member := range window {
		score := jaccard(title, member.Title)
		if url != "" && url == member.URL {
			score = 1.0
		}
		if score > best {
			best = score
			bestCluster = member.ClusterID
		}
	}
	if best > clusterThreshold {
		return bestCluster
	}
	return ""
}
