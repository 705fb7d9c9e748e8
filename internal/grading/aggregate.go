package grading

import (
	"fmt"
	"math"
	"strings"
)

// Policy decides how items whose answer was revealed up front ("shown")
// take part in the exercise grade.
type Policy string

const (
	// PolicyForceShown scores shown items as correct and averages every item.
	PolicyForceShown Policy = "force_shown"
	// PolicyExcludeShown drops shown items and averages the rest.
	PolicyExcludeShown Policy = "exclude_shown"
)

// ParsePolicy accepts the policy names used in config files.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(strings.ToLower(strings.TrimSpace(s))) {
	case PolicyForceShown:
		return PolicyForceShown, nil
	case PolicyExcludeShown:
		return PolicyExcludeShown, nil
	default:
		return "", fmt.Errorf("unknown grading policy %q", s)
	}
}

// Aggregate combines per-item scores into one grade in [0,1]. shown may be
// shorter than scores; missing flags count as false. With nothing left to
// average the grade is 1. The zero Policy behaves like PolicyForceShown.
func Aggregate(scores []float64, shown []bool, policy Policy) float64 {
	sum, n := 0.0, 0
	for i, s := range scores {
		if i < len(shown) && shown[i] {
			if policy == PolicyExcludeShown {
				continue
			}
			s = 1
		}
		sum += clamp01(s)
		n++
	}
	if n == 0 {
		return 1
	}
	return clamp01(sum / float64(n))
}

// Percent converts a grade to the whole-number percentage shown to learners
// and sent to the gradebook.
func Percent(grade float64) int {
	return int(math.Round(clamp01(grade) * 100))
}

// Round2 rounds a grade to two decimals for storage.
func Round2(grade float64) float64 {
	return math.Round(clamp01(grade)*100) / 100
}

func clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
