package textutil

import (
	"math"
	"strings"
	"unicode"
)

// leafWeight scales tokens from the last path segment, which names the book.
// Parent segments usually repeat the author across many items.
const leafWeight = 2

// Fingerprint is a weighted term-frequency vector over a relative path.
type Fingerprint struct {
	tokens map[string]float64
	norm   float64
}

// NewFingerprint builds a fingerprint from a relative path. Both slash styles
// separate segments. It returns nil when the path yields no tokens.
func NewFingerprint(relativePath string) *Fingerprint {
	segments := strings.FieldsFunc(relativePath, func(r rune) bool {
		return r == '/' || r == '\\'
	})
	counts := make(map[string]float64)
	for idx, segment := range segments {
		weight := 1.0
		if idx == len(segments)-1 {
			weight = leafWeight
		}
		for _, token := range tokenize(segment) {
			counts[token] += weight
		}
	}
	if len(counts) == 0 {
		return nil
	}
	var norm float64
	for _, count := range counts {
		norm += count * count
	}
	return &Fingerprint{tokens: counts, norm: math.Sqrt(norm)}
}

// tokenize lowercases a segment and splits it on anything other than letters
// and digits. Single letters are dropped; numbers of any length are kept so
// "Book 2" and "Book 3" stay apart.
func tokenize(segment string) []string {
	fields := strings.FieldsFunc(strings.ToLower(segment), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	tokens := fields[:0]
	for _, field := range fields {
		if len([]rune(field)) < 2 && !unicode.IsDigit([]rune(field)[0]) {
			continue
		}
		tokens = append(tokens, field)
	}
	return tokens
}
