package grading

import "strings"

// Unselected is the placeholder value dropdown items carry until the learner
// picks an option. It never matches.
const Unselected = "not selected yet"

// AnswerKey lists the accepted answers for one item. A nil entry means no
// alternate was provided at that position and is skipped.
type AnswerKey []*string

// Key builds an AnswerKey with every entry present.
func Key(answers ...string) AnswerKey {
	out := make(AnswerKey, 0, len(answers))
	for i := range answers {
		out = append(out, &answers[i])
	}
	return out
}

// Present returns the non-absent entries of k.
func (k AnswerKey) Present() []string {
	out := make([]string, 0, len(k))
	for _, a := range k {
		if a != nil {
			out = append(out, *a)
		}
	}
	return out
}

// Matches reports whether user equals, after Normalize, any present entry of
// key. Empty, whitespace-only and unselected answers never match.
func Matches(user string, key AnswerKey) bool {
	return matches(user, key, Unselected, MaxInputRunes)
}

func matches(user string, key AnswerKey, unselected string, maxRunes int) bool {
	trimmed := strings.TrimSpace(user)
	if trimmed == "" || (unselected != "" && trimmed == unselected) {
		return false
	}
	if exceedsRunes(user, maxRunes) {
		return false
	}
	nu := Normalize(user)
	for _, k := range key {
		if k == nil {
			continue
		}
		if Normalize(*k) == nu {
			return true
		}
	}
	return false
}
