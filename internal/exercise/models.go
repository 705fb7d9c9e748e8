package exercise

import "github.com/mind-engage/mindengage-grader/internal/grading"

// ItemDef is one gradable unit of an exercise as authored.
type ItemDef struct {
	ID        string            `json:"id"`
	Prompt    string            `json:"prompt,omitempty"`
	AnswerKey grading.AnswerKey `json:"answer_key,omitempty"` // null entries are absent alternates
}

type Exercise struct {
	ID       string    `json:"id"`
	UnitID   string    `json:"unit_id"`
	Position int       `json:"position"` // order within the unit
	Title    string    `json:"title"`
	Type     string    `json:"type"` // select, fill_blank, translate, speaking, dictation
	Items    []ItemDef `json:"items"`

	CreatedAt int64 `json:"created_at,omitempty"`
}

type ExerciseSummary struct {
	ID       string `json:"id"`
	UnitID   string `json:"unit_id"`
	Position int    `json:"position"`
	Title    string `json:"title"`
	Type     string `json:"type"`
}

const (
	StatusInProgress = "in_progress"
	StatusSubmitted  = "submitted"
)

// Sync states of a submitted attempt towards the remote gradebook.
const (
	SyncPending = "pending"
	SyncOK      = "ok"
	SyncFailed  = "failed"
)

type Attempt struct {
	ID          string             `json:"id"`
	ExerciseID  string             `json:"exercise_id"`
	UserID      string             `json:"user_id"`
	Status      string             `json:"status"` // in_progress|submitted
	Grade       float64            `json:"grade"`
	Percent     int                `json:"percent"`
	Responses   map[string]*string `json:"responses"`       // itemID -> response, null when cleared
	Shown       map[string]bool    `json:"shown,omitempty"` // itemID -> answer revealed
	StartedAt   int64              `json:"started_at"`
	SubmittedAt *int64             `json:"submitted_at,omitempty"`
	SyncStatus  string             `json:"sync_status,omitempty"`
	SyncError   string             `json:"sync_error,omitempty"`
}

// GradeRecord is a grade stored against an exercise for one learner, either
// produced by Submit or posted directly by a client that graded locally.
type GradeRecord struct {
	ID         string  `json:"id"`
	ExerciseID string  `json:"exercise_id"`
	UserID     string  `json:"user_id"`
	AttemptID  string  `json:"attempt_id,omitempty"`
	Grade      float64 `json:"grade"`
	Percent    int     `json:"percent"`
	RecordedAt int64   `json:"recorded_at"`
}

func (e Exercise) summary() ExerciseSummary {
	return ExerciseSummary{ID: e.ID, UnitID: e.UnitID, Position: e.Position, Title: e.Title, Type: e.Type}
}

// withoutKeys strips answer keys for learner-facing reads.
func (e Exercise) withoutKeys() Exercise {
	items := make([]ItemDef, len(e.Items))
	for i, it := range e.Items {
		it.AnswerKey = nil
		items[i] = it
	}
	e.Items = items
	return e
}

// gradingAttempt builds the engine's view of attempt a against exercise e.
func gradingAttempt(e Exercise, a Attempt) grading.Attempt {
	ga := grading.Attempt{ExerciseType: e.Type, Items: make([]grading.Item, 0, len(e.Items))}
	for _, it := range e.Items {
		ga.Items = append(ga.Items, grading.Item{
			ID:       it.ID,
			Response: a.Responses[it.ID],
			Key:      it.AnswerKey,
			Shown:    a.Shown[it.ID],
		})
	}
	return ga
}
