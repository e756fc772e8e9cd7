package patchset

import (
	"strings"

	"github.com/antzucaro/matchr"
)

// defaultSuggestThreshold is the minimum Jaro-Winkler score for a candidate
// to be offered as a "did you mean" hint.
const defaultSuggestThreshold = 0.85

// suggest returns the candidate most similar to input, compared
// case-insensitively on the bare names. ok is false when no candidate
// reaches threshold.
func suggest(input string, candidates []string, threshold float64) (best string, ok bool) {
	in := stripNamespace(strings.ToLower(strings.TrimSpace(input)))
	if in == "" {
		return "", false
	}

	var bestScore float64
	for _, c := range candidates {
		// The shared "minecraft:" prefix would inflate every score.
		score := matchr.JaroWinkler(in, stripNamespace(strings.ToLower(c)), false)
		if score > bestScore {
			best, bestScore = c, score
		}
	}
	if bestScore < threshold {
		return "", false
	}
	return best, true
}

// stripNamespace drops everything up to the namespace separator and the
// attribute group prefix ("generic.").
func stripNamespace(s string) string {
	if i := strings.IndexByte(s, ':'); i >= 0 {
		s = s[i+1:]
	}
	if i := strings.LastIndexByte(s, '.'); i >= 0 {
		s = s[i+1:]
	}
	return s
}

// hint formats a suggestion for an error message.
func hint(input string, candidates []string, threshold float64) string {
	if s, ok := suggest(input, candidates, threshold); ok {
		return " (did you mean " + s + "?)"
	}
	return ""
}
