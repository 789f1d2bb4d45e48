package parser

import (
	"sort"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"
)

// maxSuggestDistance bounds the edit distance of a "did you mean" hint
const maxSuggestDistance = 2

// findClosestMatch returns the candidate closest to target, or "" when
// nothing is close enough to be a plausible typo.
func findClosestMatch(target string, candidates []string) string {
	if target == "" || len(candidates) == 0 {
		return ""
	}

	// Abbreviations and missing letters: "set" -> "setup".
	ranks := fuzzy.RankFindFold(target, candidates)
	if len(ranks) > 0 {
		sort.Sort(ranks)
		return ranks[0].Target
	}

	// Transpositions and substitutions: "setpu" -> "setup".
	lower := strings.ToLower(target)
	best, bestDistance := "", maxSuggestDistance+1
	for _, c := range candidates {
		if d := fuzzy.LevenshteinDistance(lower, c); d < bestDistance {
			best, bestDistance = c, d
		}
	}
	return best
}
