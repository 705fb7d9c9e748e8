package exercise

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mind-engage/mindengage-grader/internal/grading"
)

var (
	ErrExerciseNotFound = errors.New("exercise not found")
	ErrAttemptNotFound  = errors.New("attempt not found")
	ErrSubmitted        = errors.New("attempt already submitted")
	ErrUnknownItem      = errors.New("unknown item")
	ErrInvalid          = errors.New("invalid input")
)

type AttemptListOpts struct {
	ExerciseID string
	UserID     string
	Status     string // optional: in_progress|submitted
	Limit      int
	Offset     int
}

type GradeListOpts struct {
	ExerciseID string
	UserID     string
	Limit      int
	Offset     int
}

type Store interface {
	PutExercise(ctx context.Context, e Exercise) error
	GetExercise(ctx context.Context, id string) (Exercise, error)      // learner-safe (no answer keys)
	GetExerciseAdmin(ctx context.Context, id string) (Exercise, error) // full exercise, for grading/teachers
	ListUnit(ctx context.Context, unitID string) ([]ExerciseSummary, error)

	NewAttempt(ctx context.Context, exerciseID, userID string) (Attempt, error)
	SaveResponses(ctx context.Context, attemptID string, resp map[string]*string) (Attempt, error)
	MarkShown(ctx context.Context, attemptID, itemID string) (Attempt, error)
	Submit(ctx context.Context, attemptID string) (Attempt, error)
	GetAttempt(ctx context.Context, id string) (Attempt, error)
	ListAttempts(ctx context.Context, opts AttemptListOpts) ([]Attempt, error)
	MarkSync(ctx context.Context, attemptID, status, lastErr string) error

	RecordGrade(ctx context.Context, g GradeRecord) (GradeRecord, error)
	ListGrades(ctx context.Context, opts GradeListOpts) ([]GradeRecord, error)
}

// Validate checks an exercise before it is stored.
func Validate(e Exercise, g grading.Grader) error {
	if strings.TrimSpace(e.ID) == "" {
		return fmt.Errorf("%w: exercise id is required", ErrInvalid)
	}
	if _, ok := g.PolicyFor(e.Type); !ok {
		return fmt.Errorf("%w: %w %q", ErrInvalid, grading.ErrUnknownExerciseType, e.Type)
	}
	seen := map[string]bool{}
	for _, it := range e.Items {
		if it.ID == "" {
			return fmt.Errorf("%w: item id is required", ErrInvalid)
		}
		if seen[it.ID] {
			return fmt.Errorf("%w: duplicate item id %s", ErrInvalid, it.ID)
		}
		seen[it.ID] = true
		if len(it.AnswerKey.Present()) == 0 {
			return fmt.Errorf("%w: item %s has no answer", ErrInvalid, it.ID)
		}
	}
	return nil
}

// gradeRecordFor turns a submitted attempt into the grade row kept for it.
func gradeRecordFor(a Attempt) GradeRecord {
	var at int64
	if a.SubmittedAt != nil {
		at = *a.SubmittedAt
	}
	return GradeRecord{
		ExerciseID: a.ExerciseID,
		UserID:     a.UserID,
		AttemptID:  a.ID,
		Grade:      a.Grade,
		Percent:    a.Percent,
		RecordedAt: at,
	}
}

func normalizeGrade(g *GradeRecord) error {
	if g.ExerciseID == "" || g.UserID == "" {
		return fmt.Errorf("%w: exercise_id and user_id required", ErrInvalid)
	}
	if g.Grade < 0 || g.Grade > 1 {
		return fmt.Errorf("%w: grade must be within [0,1]", ErrInvalid)
	}
	g.Grade = grading.Round2(g.Grade)
	g.Percent = grading.Percent(g.Grade)
	return nil
}

func pageDefaults(limit, offset int) (int, int) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
