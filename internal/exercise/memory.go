package exercise

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mind-engage/mindengage-grader/internal/grading"
)

type memoryStore struct {
	mu        sync.RWMutex
	grader    grading.Grader
	exercises map[string]Exercise
	attempts  map[string]Attempt
	grades    []GradeRecord
	now       func() time.Time
}

// NewInMemoryStore keeps everything in process memory; used for tests and
// the offline demo mode.
func NewInMemoryStore(g grading.Grader) Store {
	return &memoryStore{
		grader:    g,
		exercises: map[string]Exercise{},
		attempts:  map[string]Attempt{},
		now:       time.Now,
	}
}

func (m *memoryStore) PutExercise(_ context.Context, e Exercise) error {
	if err := Validate(e, m.grader); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if old, ok := m.exercises[e.ID]; ok {
		e.CreatedAt = old.CreatedAt
	} else {
		e.CreatedAt = m.now().Unix()
	}
	m.exercises[e.ID] = e
	return nil
}

func (m *memoryStore) GetExercise(ctx context.Context, id string) (Exercise, error) {
	e, err := m.GetExerciseAdmin(ctx, id)
	if err != nil {
		return Exercise{}, err
	}
	return e.withoutKeys(), nil
}

func (m *memoryStore) GetExerciseAdmin(_ context.Context, id string) (Exercise, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.exercises[id]
	if !ok {
		return Exercise{}, ErrExerciseNotFound
	}
	return e, nil
}

func (m *memoryStore) ListUnit(_ context.Context, unitID string) ([]ExerciseSummary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []ExerciseSummary{}
	for _, e := range m.exercises {
		if e.UnitID == unitID {
			out = append(out, e.summary())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Position != out[j].Position {
			return out[i].Position < out[j].Position
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m *memoryStore) NewAttempt(_ context.Context, exerciseID, userID string) (Attempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.exercises[exerciseID]; !ok {
		return Attempt{}, ErrExerciseNotFound
	}
	a := Attempt{
		ID:         uuid.NewString(),
		ExerciseID: exerciseID,
		UserID:     userID,
		Status:     StatusInProgress,
		Responses:  map[string]*string{},
		Shown:      map[string]bool{},
		StartedAt:  m.now().Unix(),
	}
	m.attempts[a.ID] = a
	return cloneAttempt(a), nil
}

func (m *memoryStore) SaveResponses(_ context.Context, attemptID string, resp map[string]*string) (Attempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.attempts[attemptID]
	if !ok {
		return Attempt{}, ErrAttemptNotFound
	}
	if a.Status == StatusSubmitted {
		return Attempt{}, ErrSubmitted
	}
	e := m.exercises[a.ExerciseID]
	for k := range resp {
		if !hasItem(e, k) {
			return Attempt{}, ErrUnknownItem
		}
	}
	for k, v := range resp {
		if v != nil {
			s := *v
			v = &s
		}
		a.Responses[k] = v
	}
	m.attempts[attemptID] = a
	return cloneAttempt(a), nil
}

func (m *memoryStore) MarkShown(_ context.Context, attemptID, itemID string) (Attempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.attempts[attemptID]
	if !ok {
		return Attempt{}, ErrAttemptNotFound
	}
	if a.Status == StatusSubmitted {
		return Attempt{}, ErrSubmitted
	}
	if !hasItem(m.exercises[a.ExerciseID], itemID) {
		return Attempt{}, ErrUnknownItem
	}
	a.Shown[itemID] = true
	m.attempts[attemptID] = a
	return cloneAttempt(a), nil
}

func (m *memoryStore) Submit(ctx context.Context, attemptID string) (Attempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.attempts[attemptID]
	if !ok {
		return Attempt{}, ErrAttemptNotFound
	}
	if a.Status == StatusSubmitted {
		return cloneAttempt(a), nil
	}
	e := m.exercises[a.ExerciseID]
	res, err := m.grader.Grade(ctx, gradingAttempt(e, a))
	if err != nil {
		return Attempt{}, err
	}
	now := m.now().Unix()
	a.Grade = grading.Round2(res.Grade)
	a.Percent = res.Percent
	a.Status = StatusSubmitted
	a.SubmittedAt = &now
	m.attempts[attemptID] = a

	rec := gradeRecordFor(a)
	rec.ID = uuid.NewString()
	m.grades = append(m.grades, rec)
	return cloneAttempt(a), nil
}

func (m *memoryStore) GetAttempt(_ context.Context, id string) (Attempt, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.attempts[id]
	if !ok {
		return Attempt{}, ErrAttemptNotFound
	}
	return cloneAttempt(a), nil
}

func (m *memoryStore) ListAttempts(_ context.Context, opts AttemptListOpts) ([]Attempt, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []Attempt{}
	for _, a := range m.attempts {
		if opts.ExerciseID != "" && a.ExerciseID != opts.ExerciseID {
			continue
		}
		if opts.UserID != "" && a.UserID != opts.UserID {
			continue
		}
		if opts.Status != "" && a.Status != opts.Status {
			continue
		}
		out = append(out, cloneAttempt(a))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartedAt != out[j].StartedAt {
			return out[i].StartedAt > out[j].StartedAt
		}
		return out[i].ID < out[j].ID
	})
	limit, offset := pageDefaults(opts.Limit, opts.Offset)
	return page(out, limit, offset), nil
}

func (m *memoryStore) MarkSync(_ context.Context, attemptID, status, lastErr string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.attempts[attemptID]
	if !ok {
		return ErrAttemptNotFound
	}
	a.SyncStatus, a.SyncError = status, lastErr
	m.attempts[attemptID] = a
	return nil
}

func (m *memoryStore) RecordGrade(_ context.Context, g GradeRecord) (GradeRecord, error) {
	if err := normalizeGrade(&g); err != nil {
		return GradeRecord{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.exercises[g.ExerciseID]; !ok {
		return GradeRecord{}, ErrExerciseNotFound
	}
	g.ID = uuid.NewString()
	g.RecordedAt = m.now().Unix()
	m.grades = append(m.grades, g)
	return g, nil
}

func (m *memoryStore) ListGrades(_ context.Context, opts GradeListOpts) ([]GradeRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []GradeRecord{}
	// newest first
	for i := len(m.grades) - 1; i >= 0; i-- {
		g := m.grades[i]
		if opts.ExerciseID != "" && g.ExerciseID != opts.ExerciseID {
			continue
		}
		if opts.UserID != "" && g.UserID != opts.UserID {
			continue
		}
		out = append(out, g)
	}
	limit, offset := pageDefaults(opts.Limit, opts.Offset)
	return page(out, limit, offset), nil
}

func hasItem(e Exercise, itemID string) bool {
	for _, it := range e.Items {
		if it.ID == itemID {
			return true
		}
	}
	return false
}

func cloneAttempt(a Attempt) Attempt {
	resp := make(map[string]*string, len(a.Responses))
	for k, v := range a.Responses {
		if v != nil {
			s := *v
			v = &s
		}
		resp[k] = v
	}
	shown := make(map[string]bool, len(a.Shown))
	for k, v := range a.Shown {
		shown[k] = v
	}
	a.Responses, a.Shown = resp, shown
	return a
}

func page[T any](in []T, limit, offset int) []T {
	if offset >= len(in) {
		return []T{}
	}
	end := offset + limit
	if end > len(in) {
		end = len(in)
	}
	return in[offset:end]
}
