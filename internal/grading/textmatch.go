package grading

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// MaxInputRunes bounds how much of a response is compared. Levenshtein is
// O(|a|*|b|) so unbounded speech transcripts are cut down before scoring.
const MaxInputRunes = 4000

// Normalize lower-cases s, strips combining marks after NFD decomposition and
// trims surrounding whitespace. Punctuation is left alone.
//
//	Normalize("  Café ") == "cafe"
func Normalize(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	lower := strings.ToLower(s)
	out, _, err := transform.String(t, lower)
	if err != nil {
		out = lower
	}
	return strings.TrimSpace(out)
}

// Fold is the lighter normalization used by similarity scoring: case and
// surrounding whitespace only, accents are kept.
func Fold(s string) string {
	return strings.TrimSpace(strings.ToLower(s))
}

// Levenshtein computes edit distance (insertion, deletion, substitution cost 1)
// over runes. Only two rows of the table are kept.
func Levenshtein(a, b string) int {
	ar, br := []rune(a), []rune(b)
	if len(ar) < len(br) {
		ar, br = br, ar
	}
	m := len(br)

	prev := make([]int, m+1)
	cur := make([]int, m+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ar); i++ {
		cur[0] = i
		for j := 1; j <= m; j++ {
			if ar[i-1] == br[j-1] {
				cur[j] = prev[j-1]
				continue
			}
			cur[j] = 1 + min(prev[j-1], prev[j], cur[j-1])
		}
		prev, cur = cur, prev
	}
	return prev[m]
}

// withinOneEdit reports Levenshtein(a, b) <= 1 in a single pass.
func withinOneEdit(a, b string) bool {
	ar, br := []rune(a), []rune(b)
	if len(ar) < len(br) {
		ar, br = br, ar
	}
	if len(ar)-len(br) > 1 {
		return false
	}
	i := 0
	for i < len(br) && ar[i] == br[i] {
		i++
	}
	if i == len(br) {
		return true
	}
	if len(ar) == len(br) {
		// one substitution, rest equal
		return string(ar[i+1:]) == string(br[i+1:])
	}
	// one insertion into the shorter word
	return string(ar[i+1:]) == string(br[i:])
}

// truncateRunes cuts s to at most n runes; n <= 0 disables the cap.
func truncateRunes(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}

func exceedsRunes(s string, n int) bool {
	if n <= 0 || len(s) <= n {
		return false
	}
	return len([]rune(s)) > n
}
