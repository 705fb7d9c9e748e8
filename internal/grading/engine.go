package grading

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// Exercise types with built-in strategies.
const (
	TypeSelect    = "select"
	TypeFillBlank = "fill_blank"
	TypeTranslate = "translate"
	TypeSpeaking  = "speaking"
	TypeDictation = "dictation"
)

var ErrUnknownExerciseType = errors.New("unknown exercise type")

// Item is one gradable unit of an attempt. A nil Response means the learner
// never answered.
type Item struct {
	ID       string    `json:"id"`
	Response *string   `json:"response"`
	Key      AnswerKey `json:"answer_key"`
	Shown    bool      `json:"shown,omitempty"`
}

// Attempt is what the grader sees of one exercise attempt.
type Attempt struct {
	ExerciseType string `json:"exercise_type"`
	Items        []Item `json:"items"`
}

type ItemResult struct {
	ID      string  `json:"id"`
	Score   float64 `json:"score"`
	Shown   bool    `json:"shown,omitempty"`
	Correct bool    `json:"correct"`
}

// Result is the outcome of grading an attempt. Grade keeps full precision;
// Percent is the rounded display value.
type Result struct {
	Grade   float64      `json:"grade"`
	Percent int          `json:"percent"`
	Policy  Policy       `json:"policy"`
	Items   []ItemResult `json:"items"`
}

// Strategy scores a single item in [0,1].
type Strategy interface {
	Score(it Item) float64
}

// Grader routes attempts by exercise type to the correct Strategy and
// aggregates with the type's Policy. Implementations are safe for
// concurrent use.
type Grader interface {
	Grade(ctx context.Context, a Attempt) (Result, error)
	GradeBatch(ctx context.Context, attempts []Attempt) ([]Result, error)
	PolicyFor(exerciseType string) (Policy, bool)
}

type defaultGrader struct {
	strategies  map[string]Strategy
	policies    map[string]Policy
	concurrency int
}

func (g *defaultGrader) PolicyFor(exerciseType string) (Policy, bool) {
	if _, ok := g.strategies[exerciseType]; !ok {
		return "", false
	}
	return g.policies[exerciseType], true
}

func (g *defaultGrader) Grade(ctx context.Context, a Attempt) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	s, ok := g.strategies[a.ExerciseType]
	if !ok {
		return Result{}, fmt.Errorf("%w: %q", ErrUnknownExerciseType, a.ExerciseType)
	}
	policy := g.policies[a.ExerciseType]

	scores := make([]float64, len(a.Items))
	shown := make([]bool, len(a.Items))
	items := make([]ItemResult, len(a.Items))
	for i, it := range a.Items {
		shown[i] = it.Shown
		if it.Shown {
			items[i] = ItemResult{ID: it.ID, Score: 1, Shown: true, Correct: true}
			continue
		}
		if it.Response != nil {
			scores[i] = s.Score(it)
		}
		items[i] = ItemResult{ID: it.ID, Score: scores[i], Correct: scores[i] >= 1}
	}

	grade := Aggregate(scores, shown, policy)
	return Result{Grade: grade, Percent: Percent(grade), Policy: policy, Items: items}, nil
}

// GradeBatch grades attempts concurrently; results keep the input order.
// The first failure cancels the remaining work.
func (g *defaultGrader) GradeBatch(ctx context.Context, attempts []Attempt) ([]Result, error) {
	out := make([]Result, len(attempts))
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(g.concurrency)
	for i, a := range attempts {
		eg.Go(func() error {
			res, err := g.Grade(ctx, a)
			if err != nil {
				return fmt.Errorf("attempt %d: %w", i, err)
			}
			out[i] = res
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// Engine options

type Option func(*config)

type config struct {
	MaxInputRunes int    // cap on compared response length
	Unselected    string // dropdown placeholder that never matches
	Concurrency   int    // GradeBatch worker limit
	Policies      map[string]Policy
}

func WithMaxInputRunes(n int) Option { return func(c *config) { c.MaxInputRunes = n } }
func WithUnselected(s string) Option { return func(c *config) { c.Unselected = s } }
func WithConcurrency(n int) Option   { return func(c *config) { c.Concurrency = n } }

// WithPolicy overrides the aggregation policy of one exercise type.
func WithPolicy(exerciseType string, p Policy) Option {
	return func(c *config) { c.Policies[exerciseType] = p }
}

// WithPolicies applies several overrides, e.g. from a policy file.
func WithPolicies(m map[string]Policy) Option {
	return func(c *config) {
		for k, v := range m {
			c.Policies[k] = v
		}
	}
}

// NewDefaultGrader installs built-in strategies. Choice-style exercises use
// exact matching with PolicyForceShown; spoken and dictated ones use fuzzy
// similarity with PolicyExcludeShown.
func NewDefaultGrader(opts ...Option) Grader {
	cfg := &config{
		MaxInputRunes: MaxInputRunes,
		Unselected:    Unselected,
		Concurrency:   4,
		Policies: map[string]Policy{
			TypeSelect:    PolicyForceShown,
			TypeFillBlank: PolicyForceShown,
			TypeTranslate: PolicyForceShown,
			TypeSpeaking:  PolicyExcludeShown,
			TypeDictation: PolicyExcludeShown,
		},
	}
	for _, o := range opts {
		o(cfg)
	}
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}

	exact := exactStrategy{unselected: cfg.Unselected, maxRunes: cfg.MaxInputRunes}
	fuzzy := similarityStrategy{maxRunes: cfg.MaxInputRunes}
	g := &defaultGrader{
		strategies: map[string]Strategy{
			TypeSelect:    exact,
			TypeFillBlank: exact,
			TypeTranslate: exact,
			TypeSpeaking:  fuzzy,
			TypeDictation: fuzzy,
		},
		policies:    map[string]Policy{},
		concurrency: cfg.Concurrency,
	}
	for t := range g.strategies {
		p := cfg.Policies[t]
		if p == "" {
			p = PolicyForceShown
		}
		g.policies[t] = p
	}
	return g
}

// --- Strategies ---

type exactStrategy struct {
	unselected string
	maxRunes   int
}

func (s exactStrategy) Score(it Item) float64 {
	if it.Response == nil {
		return 0
	}
	if matches(*it.Response, it.Key, s.unselected, s.maxRunes) {
		return 1
	}
	return 0
}

type similarityStrategy struct{ maxRunes int }

func (s similarityStrategy) Score(it Item) float64 {
	if it.Response == nil {
		return 0
	}
	return bestSimilarity(*it.Response, it.Key, s.maxRunes)
}
