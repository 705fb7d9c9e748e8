package report

import (
	"context"
	"errors"
	"time"

	"github.com/mind-engage/mindengage-grader/internal/exercise"
)

// Store is the part of exercise.Store the syncer needs.
type Store interface {
	GetAttempt(ctx context.Context, id string) (exercise.Attempt, error)
	MarkSync(ctx context.Context, attemptID, status, lastErr string) error
}

// Poster delivers scores; *Client is the HTTP implementation.
type Poster interface {
	PostScore(ctx context.Context, s Score) error
}

type Clock func() time.Time

var ErrNotSubmitted = errors.New("attempt not submitted")

type Syncer struct {
	Store  Store
	Poster Poster
	Now    Clock
}

func NewSyncer(store Store, p Poster, now Clock) *Syncer {
	if now == nil {
		now = time.Now
	}
	return &Syncer{Store: store, Poster: p, Now: now}
}

// SyncAttempt pushes the grade of a submitted attempt and records the
// outcome on the attempt.
func (s *Syncer) SyncAttempt(ctx context.Context, attemptID string) error {
	at, err := s.Store.GetAttempt(ctx, attemptID)
	if err != nil {
		return err
	}
	if at.Status != exercise.StatusSubmitted {
		return ErrNotSubmitted
	}
	_ = s.Store.MarkSync(ctx, at.ID, exercise.SyncPending, "")

	if err := s.Poster.PostScore(ctx, Score{
		ExerciseID: at.ExerciseID,
		UserID:     at.UserID,
		AttemptID:  at.ID,
		Grade:      at.Grade,
		Percent:    at.Percent,
		Timestamp:  s.Now(),
	}); err != nil {
		_ = s.Store.MarkSync(ctx, at.ID, exercise.SyncFailed, err.Error())
		return err
	}
	return s.Store.MarkSync(ctx, at.ID, exercise.SyncOK, "")
}
