package validate

import "github.com/agnivade/levenshtein"

// maxSuggestionDistance bounds how far a candidate may be from the
// misspelled name before suggesting it does more harm than good.
const maxSuggestionDistance = 3

// nearest returns the candidate closest to name by edit distance, or
// empty when nothing is close enough to be a plausible typo.
func nearest(name string, candidates []string) string {
	best := ""
	bestDist := maxSuggestionDistance + 1
	for _, candidate := range candidates {
		if d := levenshtein.ComputeDistance(name, candidate); d < bestDist {
			best = candidate
			bestDist = d
		}
	}
	return best
}
