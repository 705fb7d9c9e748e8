package exercise

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mind-engage/mindengage-grader/internal/grading"
	syncx "github.com/mind-engage/mindengage-grader/internal/sync"
)

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

type SQLStore struct {
	db     *sql.DB
	grader grading.Grader
	events *syncx.EventRepo
	now    func() time.Time
}

func NewSQLStore(db *sql.DB, g grading.Grader, events *syncx.EventRepo) *SQLStore {
	return &SQLStore{db: db, grader: g, events: events, now: time.Now}
}

func (s *SQLStore) PutExercise(ctx context.Context, e Exercise) error {
	if err := Validate(e, s.grader); err != nil {
		return err
	}
	ij, err := json.Marshal(e.Items)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO exercises (id,unit_id,position,title,type,items_json,created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		ON CONFLICT (id) DO UPDATE SET unit_id=EXCLUDED.unit_id, position=EXCLUDED.position,
			title=EXCLUDED.title, type=EXCLUDED.type, items_json=EXCLUDED.items_json`,
		e.ID, e.UnitID, e.Position, e.Title, e.Type, string(ij), s.now().Unix())
	return err
}

func (s *SQLStore) GetExercise(ctx context.Context, id string) (Exercise, error) {
	e, err := s.GetExerciseAdmin(ctx, id)
	if err != nil {
		return Exercise{}, err
	}
	return e.withoutKeys(), nil
}

func (s *SQLStore) GetExerciseAdmin(ctx context.Context, id string) (Exercise, error) {
	return loadExercise(ctx, s.db, id)
}

func loadExercise(ctx context.Context, q querier, id string) (Exercise, error) {
	row := q.QueryRowContext(ctx, `SELECT id,unit_id,position,title,type,items_json,created_at FROM exercises WHERE id=$1`, id)
	var e Exercise
	var ij string
	if err := row.Scan(&e.ID, &e.UnitID, &e.Position, &e.Title, &e.Type, &ij, &e.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Exercise{}, ErrExerciseNotFound
		}
		return Exercise{}, err
	}
	if err := json.Unmarshal([]byte(ij), &e.Items); err != nil {
		return Exercise{}, fmt.Errorf("decode items of %s: %w", id, err)
	}
	return e, nil
}

func (s *SQLStore) ListUnit(ctx context.Context, unitID string) ([]ExerciseSummary, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id,unit_id,position,title,type FROM exercises WHERE unit_id=$1 ORDER BY position ASC, id ASC`, unitID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []ExerciseSummary{}
	for rows.Next() {
		var es ExerciseSummary
		if err := rows.Scan(&es.ID, &es.UnitID, &es.Position, &es.Title, &es.Type); err != nil {
			return nil, err
		}
		out = append(out, es)
	}
	return out, rows.Err()
}

func (s *SQLStore) NewAttempt(ctx context.Context, exerciseID, userID string) (Attempt, error) {
	if _, err := loadExercise(ctx, s.db, exerciseID); err != nil {
		return Attempt{}, err
	}
	a := Attempt{
		ID:         uuid.NewString(),
		ExerciseID: exerciseID,
		UserID:     userID,
		Status:     StatusInProgress,
		Responses:  map[string]*string{},
		Shown:      map[string]bool{},
		StartedAt:  s.now().Unix(),
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO attempts (id,exercise_id,user_id,status,grade,percent,responses_json,shown_json,started_at)
		VALUES ($1,$2,$3,$4,0,0,'{}','{}',$5)`,
		a.ID, a.ExerciseID, a.UserID, a.Status, a.StartedAt)
	if err != nil {
		return Attempt{}, err
	}
	return a, nil
}

func (s *SQLStore) SaveResponses(ctx context.Context, attemptID string, resp map[string]*string) (Attempt, error) {
	return s.mutateOpen(ctx, attemptID, func(e Exercise, a *Attempt) error {
		for k, v := range resp {
			if !hasItem(e, k) {
				return ErrUnknownItem
			}
			a.Responses[k] = v
		}
		return nil
	})
}

func (s *SQLStore) MarkShown(ctx context.Context, attemptID, itemID string) (Attempt, error) {
	return s.mutateOpen(ctx, attemptID, func(e Exercise, a *Attempt) error {
		if !hasItem(e, itemID) {
			return ErrUnknownItem
		}
		a.Shown[itemID] = true
		return nil
	})
}

// mutateOpen applies fn to an in-progress attempt inside one transaction.
func (s *SQLStore) mutateOpen(ctx context.Context, attemptID string, fn func(Exercise, *Attempt) error) (Attempt, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Attempt{}, err
	}
	defer tx.Rollback()

	a, err := loadAttempt(ctx, tx, attemptID)
	if err != nil {
		return Attempt{}, err
	}
	if a.Status == StatusSubmitted {
		return Attempt{}, ErrSubmitted
	}
	e, err := loadExercise(ctx, tx, a.ExerciseID)
	if err != nil {
		return Attempt{}, err
	}
	if err := fn(e, &a); err != nil {
		return Attempt{}, err
	}
	rj, _ := json.Marshal(a.Responses)
	sj, _ := json.Marshal(a.Shown)
	if _, err := tx.ExecContext(ctx, `UPDATE attempts SET responses_json=$1, shown_json=$2 WHERE id=$3`,
		string(rj), string(sj), attemptID); err != nil {
		return Attempt{}, err
	}
	if err := tx.Commit(); err != nil {
		return Attempt{}, err
	}
	return a, nil
}

func (s *SQLStore) Submit(ctx context.Context, attemptID string) (Attempt, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Attempt{}, err
	}
	defer tx.Rollback()

	a, err := loadAttempt(ctx, tx, attemptID)
	if err != nil {
		return Attempt{}, err
	}
	if a.Status == StatusSubmitted {
		return a, nil
	}

	// full exercise WITH keys for grading
	e, err := loadExercise(ctx, tx, a.ExerciseID)
	if err != nil {
		return Attempt{}, err
	}
	res, err := s.grader.Grade(ctx, gradingAttempt(e, a))
	if err != nil {
		return Attempt{}, err
	}

	now := s.now().Unix()
	a.Grade = grading.Round2(res.Grade)
	a.Percent = res.Percent
	a.Status = StatusSubmitted
	a.SubmittedAt = &now
	upd, err := tx.ExecContext(ctx, `UPDATE attempts SET status=$1, grade=$2, percent=$3, submitted_at=$4
		WHERE id=$5 AND status=$6`,
		a.Status, a.Grade, a.Percent, now, attemptID, StatusInProgress)
	if err != nil {
		return Attempt{}, err
	}
	if n, _ := upd.RowsAffected(); n == 0 {
		// a concurrent submit got there first
		_ = tx.Rollback()
		return loadAttempt(ctx, s.db, attemptID)
	}

	rec := gradeRecordFor(a)
	rec.ID = uuid.NewString()
	if err := insertGrade(ctx, tx, rec); err != nil {
		return Attempt{}, err
	}
	if s.events != nil {
		payload := map[string]any{
			"attempt_id": a.ID, "exercise_id": a.ExerciseID, "user_id": a.UserID,
			"grade": a.Grade, "percent": a.Percent, "policy": res.Policy, "items": res.Items,
		}
		if err := s.events.Append(ctx, tx, syncx.EventAttemptGraded, a.ID, payload); err != nil {
			return Attempt{}, fmt.Errorf("append event: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return Attempt{}, err
	}
	return a, nil
}

func (s *SQLStore) GetAttempt(ctx context.Context, id string) (Attempt, error) {
	return loadAttempt(ctx, s.db, id)
}

const attemptCols = `id,exercise_id,user_id,status,grade,percent,responses_json,shown_json,started_at,submitted_at,sync_status,sync_error`

type scanner interface {
	Scan(dest ...any) error
}

func scanAttempt(sc scanner) (Attempt, error) {
	var a Attempt
	var rj, sj string
	var submitted sql.NullInt64
	if err := sc.Scan(&a.ID, &a.ExerciseID, &a.UserID, &a.Status, &a.Grade, &a.Percent,
		&rj, &sj, &a.StartedAt, &submitted, &a.SyncStatus, &a.SyncError); err != nil {
		return Attempt{}, err
	}
	if submitted.Valid {
		v := submitted.Int64
		a.SubmittedAt = &v
	}
	if err := json.Unmarshal([]byte(rj), &a.Responses); err != nil {
		return Attempt{}, fmt.Errorf("decode responses of %s: %w", a.ID, err)
	}
	if err := json.Unmarshal([]byte(sj), &a.Shown); err != nil {
		return Attempt{}, fmt.Errorf("decode shown of %s: %w", a.ID, err)
	}
	if a.Responses == nil {
		a.Responses = map[string]*string{}
	}
	if a.Shown == nil {
		a.Shown = map[string]bool{}
	}
	return a, nil
}

func loadAttempt(ctx context.Context, q querier, id string) (Attempt, error) {
	a, err := scanAttempt(q.QueryRowContext(ctx, `SELECT `+attemptCols+` FROM attempts WHERE id=$1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Attempt{}, ErrAttemptNotFound
		}
		return Attempt{}, err
	}
	return a, nil
}

func (s *SQLStore) ListAttempts(ctx context.Context, opts AttemptListOpts) ([]Attempt, error) {
	var where []string
	var args []any
	add := func(col, v string) {
		if v == "" {
			return
		}
		args = append(args, v)
		where = append(where, fmt.Sprintf("%s=$%d", col, len(args)))
	}
	add("exercise_id", opts.ExerciseID)
	add("user_id", opts.UserID)
	add("status", opts.Status)

	q := `SELECT ` + attemptCols + ` FROM attempts`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	limit, offset := pageDefaults(opts.Limit, opts.Offset)
	args = append(args, limit, offset)
	q += fmt.Sprintf(" ORDER BY started_at DESC, id ASC LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Attempt{}
	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *SQLStore) MarkSync(ctx context.Context, attemptID, status, lastErr string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE attempts SET sync_status=$1, sync_error=$2 WHERE id=$3`,
		status, lastErr, attemptID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrAttemptNotFound
	}
	return nil
}

func (s *SQLStore) RecordGrade(ctx context.Context, g GradeRecord) (GradeRecord, error) {
	if err := normalizeGrade(&g); err != nil {
		return GradeRecord{}, err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return GradeRecord{}, err
	}
	defer tx.Rollback()

	if _, err := loadExercise(ctx, tx, g.ExerciseID); err != nil {
		return GradeRecord{}, err
	}
	g.ID = uuid.NewString()
	g.RecordedAt = s.now().Unix()
	if err := insertGrade(ctx, tx, g); err != nil {
		return GradeRecord{}, err
	}
	if s.events != nil {
		if err := s.events.Append(ctx, tx, syncx.EventGradeRecorded, g.ID, g); err != nil {
			return GradeRecord{}, fmt.Errorf("append event: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return GradeRecord{}, err
	}
	return g, nil
}

func insertGrade(ctx context.Context, q querier, g GradeRecord) error {
	_, err := q.ExecContext(ctx, `INSERT INTO grades (id,exercise_id,user_id,attempt_id,grade,percent,recorded_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		g.ID, g.ExerciseID, g.UserID, g.AttemptID, g.Grade, g.Percent, g.RecordedAt)
	return err
}

func (s *SQLStore) ListGrades(ctx context.Context, opts GradeListOpts) ([]GradeRecord, error) {
	var where []string
	var args []any
	if opts.ExerciseID != "" {
		args = append(args, opts.ExerciseID)
		where = append(where, fmt.Sprintf("exercise_id=$%d", len(args)))
	}
	if opts.UserID != "" {
		args = append(args, opts.UserID)
		where = append(where, fmt.Sprintf("user_id=$%d", len(args)))
	}
	q := `SELECT id,exercise_id,user_id,attempt_id,grade,percent,recorded_at FROM grades`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	limit, offset := pageDefaults(opts.Limit, opts.Offset)
	args = append(args, limit, offset)
	q += fmt.Sprintf(" ORDER BY recorded_at DESC, id ASC LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []GradeRecord{}
	for rows.Next() {
		var g GradeRecord
		if err := rows.Scan(&g.ID, &g.ExerciseID, &g.UserID, &g.AttemptID, &g.Grade, &g.Percent, &g.RecordedAt); err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}
