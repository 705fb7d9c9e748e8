package http

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/mind-engage/mindengage-grader/internal/exercise"
	"github.com/mind-engage/mindengage-grader/internal/rbac"
)

// POST /exercises/{exerciseID}/grades  { "user_id": "...", "grade": 0.75 }
// Records a grade computed by the client. Students may only record their own.
func RecordGradeHandler(store exercise.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			UserID    string  `json:"user_id"`
			AttemptID string  `json:"attempt_id"`
			Grade     float64 `json:"grade"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		userID := strings.TrimSpace(req.UserID)
		if userID == "" || !rbac.Can(r.Context(), rbac.PermGradeViewAll) {
			userID = rbac.SubjectFromContext(r.Context())
		}
		g, err := store.RecordGrade(r.Context(), exercise.GradeRecord{
			ExerciseID: chi.URLParam(r, "exerciseID"),
			UserID:     userID,
			AttemptID:  req.AttemptID,
			Grade:      req.Grade,
		})
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, g)
	}
}

// GET /grades?exercise_id=...&user_id=...&limit=50&offset=0
func ListGradesHandler(store exercise.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		userID := strings.TrimSpace(q.Get("user_id"))
		if !rbac.Can(r.Context(), rbac.PermGradeViewAll) {
			userID = rbac.SubjectFromContext(r.Context())
		}
		list, err := store.ListGrades(r.Context(), exercise.GradeListOpts{
			ExerciseID: strings.TrimSpace(q.Get("exercise_id")),
			UserID:     userID,
			Limit:      parseIntDefault(q.Get("limit"), 50),
			Offset:     parseIntDefault(q.Get("offset"), 0),
		})
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, list)
	}
}
