package transcript

import (
	"sort"
	"strings"

	"github.com/antzucaro/matchr"
)

// defaultSearchThreshold is the minimum Jaro-Winkler score for a fuzzy match
// to be reported when no substring match exists.
const defaultSearchThreshold = 0.80

// SearchResult pairs a matching entry with its similarity score.
type SearchResult struct {
	Entry Entry `json:"entry"`
	// Score is 1.0 for substring matches, otherwise the best per-word
	// Jaro-Winkler similarity in [threshold, 1).
	Score float64 `json:"score"`
}

// Search finds entries whose message matches query, tolerating the kind of
// near-miss spellings a live transcription produces. Matching is
// case-insensitive: an entry containing query as a substring scores 1.0;
// otherwise each word of the message is compared to query with Jaro-Winkler
// and the best score above the threshold counts.
//
// Results are ordered by descending score, ties broken by transcript order.
// limit <= 0 means no limit.
func Search(entries []Entry, query string, limit int) []SearchResult {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return nil
	}

	var results []SearchResult
	for _, e := range entries {
		msg := strings.ToLower(e.Message)
		if strings.Contains(msg, query) {
			results = append(results, SearchResult{Entry: e, Score: 1.0})
			continue
		}
		best := 0.0
		for _, word := range strings.Fields(msg) {
			if s := matchr.JaroWinkler(word, query, false); s > best {
				best = s
			}
		}
		if best >= defaultSearchThreshold {
			results = append(results, SearchResult{Entry: e, Score: best})
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results
}
