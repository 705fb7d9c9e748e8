package grading_test

import (
	"context"
	"errors"
	"testing"

	"github.com/mind-engage/mindengage-grader/internal/grading"
)

func TestGradeSelectForcesShown(t *testing.T) {
	g := grading.NewDefaultGrader()
	a := grading.Attempt{
		ExerciseType: grading.TypeSelect,
		Items: []grading.Item{
			{ID: "q1", Response: ptr("red"), Key: grading.Key("Red")},
			{ID: "q2", Response: ptr(grading.Unselected), Key: grading.Key("blue"), Shown: true},
		},
	}
	res, err := g.Grade(context.Background(), a)
	if err != nil {
		t.Fatal(err)
	}
	if res.Grade != 1 || res.Percent != 100 {
		t.Fatalf("grade = %v (%d%%), want 1", res.Grade, res.Percent)
	}
	if res.Policy != grading.PolicyForceShown {
		t.Fatalf("policy = %q", res.Policy)
	}
	if !res.Items[1].Shown || !res.Items[1].Correct {
		t.Fatalf("shown item not reported as correct: %+v", res.Items[1])
	}
}

func TestGradeFillBlankMissingResponse(t *testing.T) {
	g := grading.NewDefaultGrader()
	a := grading.Attempt{
		ExerciseType: grading.TypeFillBlank,
		Items: []grading.Item{
			{ID: "b1", Response: ptr("went"), Key: grading.AnswerKey{ptr("went"), nil}},
			{ID: "b2", Response: nil, Key: grading.Key("gone")},
			{ID: "b3", Response: ptr("  "), Key: grading.Key("go")},
			{ID: "b4", Response: ptr("goes"), Key: grading.Key("goes")},
		},
	}
	res, err := g.Grade(context.Background(), a)
	if err != nil {
		t.Fatal(err)
	}
	if res.Grade != 0.5 || res.Percent != 50 {
		t.Fatalf("grade = %v, want 0.5", res.Grade)
	}
	if res.Items[1].Score != 0 || res.Items[1].Correct {
		t.Fatalf("missing response scored: %+v", res.Items[1])
	}
}

func TestGradeSpeakingExcludesShown(t *testing.T) {
	g := grading.NewDefaultGrader()
	a := grading.Attempt{
		ExerciseType: grading.TypeSpeaking,
		Items: []grading.Item{
			{ID: "s1", Response: ptr("helo wrld"), Key: grading.Key("hello world")},
			{ID: "s2", Response: ptr("hello"), Key: grading.Key("hello world", "hi world")},
			{ID: "s3", Response: ptr(""), Key: grading.Key("good morning"), Shown: true},
		},
	}
	res, err := g.Grade(context.Background(), a)
	if err != nil {
		t.Fatal(err)
	}
	if want := 0.75; res.Grade != want {
		t.Fatalf("grade = %v, want %v", res.Grade, want)
	}
	if res.Percent != 75 {
		t.Fatalf("percent = %d", res.Percent)
	}
	if res.Items[0].Score != 1 || !res.Items[0].Correct {
		t.Fatalf("s1 = %+v", res.Items[0])
	}
	if res.Items[1].Correct {
		t.Fatalf("partial answer marked correct")
	}
}

func TestGradePoliciesDiverge(t *testing.T) {
	items := []grading.Item{
		{ID: "1", Response: ptr("wrong"), Key: grading.Key("right")},
		{ID: "2", Response: ptr("wrong"), Key: grading.Key("right"), Shown: true},
	}
	force := grading.NewDefaultGrader()
	exclude := grading.NewDefaultGrader(grading.WithPolicy(grading.TypeSelect, grading.PolicyExcludeShown))

	a := grading.Attempt{ExerciseType: grading.TypeSelect, Items: items}
	rf, _ := force.Grade(context.Background(), a)
	re, _ := exclude.Grade(context.Background(), a)
	if rf.Grade != 0.5 || re.Grade != 0 {
		t.Fatalf("force = %v exclude = %v, want 0.5 and 0", rf.Grade, re.Grade)
	}
}

func TestGradeEmptyAttempt(t *testing.T) {
	g := grading.NewDefaultGrader()
	for _, typ := range []string{grading.TypeSelect, grading.TypeDictation} {
		res, err := g.Grade(context.Background(), grading.Attempt{ExerciseType: typ})
		if err != nil {
			t.Fatal(err)
		}
		if res.Grade != 1 {
			t.Fatalf("%s: empty attempt grade = %v, want 1", typ, res.Grade)
		}
	}
}

func TestGradeUnknownType(t *testing.T) {
	g := grading.NewDefaultGrader()
	_, err := g.Grade(context.Background(), grading.Attempt{ExerciseType: "essay"})
	if !errors.Is(err, grading.ErrUnknownExerciseType) {
		t.Fatalf("err = %v, want ErrUnknownExerciseType", err)
	}
}

func TestGradeCustomUnselected(t *testing.T) {
	g := grading.NewDefaultGrader(grading.WithUnselected("--"))
	a := grading.Attempt{
		ExerciseType: grading.TypeSelect,
		Items:        []grading.Item{{ID: "d", Response: ptr("--"), Key: grading.Key("--")}},
	}
	res, _ := g.Grade(context.Background(), a)
	if res.Grade != 0 {
		t.Fatalf("placeholder matched: %v", res.Grade)
	}
}

func TestGradeCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := grading.NewDefaultGrader().Grade(ctx, grading.Attempt{ExerciseType: grading.TypeSelect})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v", err)
	}
}

func TestGradeBatchKeepsOrder(t *testing.T) {
	g := grading.NewDefaultGrader(grading.WithConcurrency(3))
	var attempts []grading.Attempt
	for i := 0; i < 20; i++ {
		resp := "no"
		if i%2 == 0 {
			resp = "yes"
		}
		attempts = append(attempts, grading.Attempt{
			ExerciseType: grading.TypeSelect,
			Items:        []grading.Item{{ID: "x", Response: ptr(resp), Key: grading.Key("yes")}},
		})
	}
	out, err := g.GradeBatch(context.Background(), attempts)
	if err != nil {
		t.Fatal(err)
	}
	for i, r := range out {
		want := 0.0
		if i%2 == 0 {
			want = 1
		}
		if r.Grade != want {
			t.Fatalf("result %d = %v, want %v", i, r.Grade, want)
		}
	}
}

func TestGradeBatchFailsOnUnknownType(t *testing.T) {
	g := grading.NewDefaultGrader()
	_, err := g.GradeBatch(context.Background(), []grading.Attempt{
		{ExerciseType: grading.TypeSelect},
		{ExerciseType: "bogus"},
	})
	if !errors.Is(err, grading.ErrUnknownExerciseType) {
		t.Fatalf("err = %v", err)
	}
}

func TestPolicyFor(t *testing.T) {
	g := grading.NewDefaultGrader(grading.WithPolicies(map[string]grading.Policy{
		grading.TypeDictation: grading.PolicyForceShown,
	}))
	if p, ok := g.PolicyFor(grading.TypeDictation); !ok || p != grading.PolicyForceShown {
		t.Fatalf("dictation policy = %q %v", p, ok)
	}
	if p, _ := g.PolicyFor(grading.TypeSpeaking); p != grading.PolicyExcludeShown {
		t.Fatalf("speaking policy = %q", p)
	}
	if _, ok := g.PolicyFor("essay"); ok {
		t.Fatalf("unknown type reported a policy")
	}
}
