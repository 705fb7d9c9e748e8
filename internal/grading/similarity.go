package grading

import (
	"strings"
	"unicode/utf8"
)

// maxWordEdit is the per-word typo tolerance for spoken and dictated answers.
const maxWordEdit = 1

// Similarity scores user against reference in [0,1] by per-word fuzzy
// matching: every reference word that has an identical or one-edit-away
// counterpart among the user's words counts as matched, and the count is
// divided by the longer of the two word lists.
func Similarity(user, reference string) float64 {
	return similarity(user, reference, MaxInputRunes)
}

// BestSimilarity returns the highest Similarity against any present reference,
// or 0 when there is none.
func BestSimilarity(user string, refs ...*string) float64 {
	return bestSimilarity(user, refs, MaxInputRunes)
}

func bestSimilarity(user string, refs []*string, maxRunes int) float64 {
	best := 0.0
	for _, r := range refs {
		if r == nil {
			continue
		}
		if s := similarity(user, *r, maxRunes); s > best {
			best = s
		}
	}
	return best
}

func similarity(user, reference string, maxRunes int) float64 {
	a := Fold(truncateRunes(user, maxRunes))
	b := Fold(truncateRunes(reference, maxRunes))
	if a == b && a != "" {
		return 1
	}
	if a == "" || b == "" {
		return 0
	}

	refWords := strings.Fields(a)
	targetWords := strings.Fields(b)

	matched := 0
	for _, tw := range targetWords {
		if containsNear(refWords, tw) {
			matched++
		}
	}
	return float64(matched) / float64(max(len(refWords), len(targetWords)))
}

func containsNear(words []string, target string) bool {
	tl := utf8.RuneCountInString(target)
	for _, w := range words {
		if w == target {
			return true
		}
		// length gap alone already exceeds the tolerance
		if d := utf8.RuneCountInString(w) - tl; d > maxWordEdit || d < -maxWordEdit {
			continue
		}
		if withinOneEdit(w, target) {
			return true
		}
	}
	return false
}
