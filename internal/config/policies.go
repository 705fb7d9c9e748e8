package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/mind-engage/mindengage-grader/internal/grading"
)

// policyFile is the YAML layout of GRADING_POLICY_FILE:
//
//	policies:
//	  select: force_shown
//	  speaking: exclude_shown
type policyFile struct {
	Policies map[string]string `yaml:"policies"`
}

// LoadPolicies reads per-exercise-type aggregation policies. An empty path
// yields no overrides.
func LoadPolicies(path string) (map[string]grading.Policy, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read policy file: %w", err)
	}
	return ParsePolicies(data)
}

func ParsePolicies(data []byte) (map[string]grading.Policy, error) {
	var pf policyFile
	if err := yaml.Unmarshal(data, &pf); err != nil {
		return nil, fmt.Errorf("parse policy file: %w", err)
	}
	out := make(map[string]grading.Policy, len(pf.Policies))
	for typ, name := range pf.Policies {
		p, err := grading.ParsePolicy(name)
		if err != nil {
			return nil, fmt.Errorf("policy for %s: %w", typ, err)
		}
		out[typ] = p
	}
	return out, nil
}
