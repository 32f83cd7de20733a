// Package textsim implements the hybrid lexical similarity used by the
// hazard scorer: a 60/40 blend of token Jaccard overlap and normalized
// Levenshtein similarity over normalized strings.
package textsim

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/agext/levenshtein"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const (
	jaccardWeight     = 0.6
	levenshteinWeight = 0.4
)

// stripDiacritics decomposes to NFD, drops combining marks, and recomposes.
// Field-entered text mixes accented and plain spellings of the same
// location or category names.
var stripDiacritics = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Normalize lowercases, strips diacritics, trims, and collapses internal
// whitespace to single spaces.
func Normalize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return ""
	}
	if folded, _, err := transform.String(stripDiacritics, s); err == nil {
		s = folded
	}
	return strings.Join(strings.Fields(s), " ")
}

// Equal reports whether two strings are identical after normalization.
func Equal(a, b string) bool {
	na, nb := Normalize(a), Normalize(b)
	return na != "" && na == nb
}

// Similarity computes the hybrid similarity of two strings in [0,1].
// Either side empty after normalization scores 0; identical normalized
// strings score 1 without computing the blend.
func Similarity(a, b string) float64 {
	na, nb := Normalize(a), Normalize(b)
	if na == "" || nb == "" {
		return 0
	}
	if na == nb {
		return 1.0
	}
	return jaccardWeight*tokenJaccard(na, nb) + levenshteinWeight*editSimilarity(na, nb)
}

// tokenJaccard computes |A∩B| / |A∪B| over whitespace-delimited token sets.
func tokenJaccard(a, b string) float64 {
	setA := tokenSet(a)
	setB := tokenSet(b)
	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}

	intersection := 0
	for tok := range setA {
		if setB[tok] {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

// editSimilarity converts Levenshtein edit distance into a similarity:
// 1 - distance/maxLen. Lengths are in runes to match the distance metric.
func editSimilarity(a, b string) float64 {
	maxLen := utf8.RuneCountInString(a)
	if n := utf8.RuneCountInString(b); n > maxLen {
		maxLen = n
	}
	if maxLen == 0 {
		return 0
	}
	dist := levenshtein.Distance(a, b, nil)
	sim := 1.0 - float64(dist)/float64(maxLen)
	if sim < 0 {
		return 0
	}
	return sim
}

func tokenSet(s string) map[string]bool {
	fields := strings.Fields(s)
	set := make(map[string]bool, len(fields))
	for _, f := range fields {
		set[f] = true
	}
	return set
}
