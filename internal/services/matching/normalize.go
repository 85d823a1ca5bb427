package matching

import (
	"math"
	"strings"

	"github.com/agnivade/levenshtein"
)

// Normalize folds a free-text name into the canonical comparison form used by
// every matching tier: lower-case, "&" -> "and", commas and periods dropped,
// whitespace collapsed.
func Normalize(s string) string {
	s = strings.ToLower(s)
	s = strings.ReplaceAll(s, "&", "and")
	s = strings.ReplaceAll(s, ",", " ")
	s = strings.ReplaceAll(s, ".", " ")
	return strings.Join(strings.Fields(s), " ")
}

// Similarity returns a 0..1 ratio between two already-normalized strings.
func Similarity(a, b string) float64 {
	if a == b {
		return 1.0
	}
	if a == "" || b == "" {
		return 0.0
	}
	dist := levenshtein.ComputeDistance(a, b)
	maxLen := math.Max(float64(len([]rune(a))), float64(len([]rune(b))))
	return 1.0 - float64(dist)/maxLen
}
