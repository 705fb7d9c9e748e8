package http

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/mind-engage/mindengage-grader/internal/exercise"
	"github.com/mind-engage/mindengage-grader/internal/rbac"
)

// AttemptSyncer pushes a submitted attempt's grade to the remote gradebook.
type AttemptSyncer interface {
	SyncAttempt(ctx context.Context, attemptID string) error
}

// adminOnly matches only the wildcard grant, so owners and admins pass.
const adminOnly = "*"

// loadAttempt fetches the attempt named in the URL and checks the caller may
// act on it. Owners always may; others need perm.
func loadAttempt(w http.ResponseWriter, r *http.Request, store exercise.Store, perm string) (exercise.Attempt, bool) {
	a, err := store.GetAttempt(r.Context(), chi.URLParam(r, "attemptID"))
	if err != nil {
		writeError(w, err)
		return exercise.Attempt{}, false
	}
	if a.UserID != rbac.SubjectFromContext(r.Context()) && !rbac.Can(r.Context(), perm) {
		http.Error(w, "forbidden", http.StatusForbidden)
		return exercise.Attempt{}, false
	}
	return a, true
}

// POST /attempts  { "exercise_id": "...", "user_id": "..." }
// user_id defaults to the caller; only roles with attempt:view-all may start
// attempts for someone else.
func CreateAttemptHandler(store exercise.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ExerciseID string `json:"exercise_id"`
			UserID     string `json:"user_id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		sub := rbac.SubjectFromContext(r.Context())
		userID := strings.TrimSpace(req.UserID)
		if userID == "" || !rbac.Can(r.Context(), rbac.PermAttemptViewAll) {
			userID = sub
		}
		if req.ExerciseID == "" || userID == "" {
			http.Error(w, "exercise_id and user_id required", http.StatusBadRequest)
			return
		}
		a, err := store.NewAttempt(r.Context(), req.ExerciseID, userID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, a)
	}
}

// POST /attempts/{attemptID}/responses  { "<itemID>": "answer" | null, ... }
func SaveResponsesHandler(store exercise.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a, ok := loadAttempt(w, r, store, adminOnly)
		if !ok {
			return
		}
		var resp map[string]*string
		if err := json.NewDecoder(r.Body).Decode(&resp); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		a, err := store.SaveResponses(r.Context(), a.ID, resp)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, a)
	}
}

// POST /attempts/{attemptID}/shown/{itemID}
// Records that the learner revealed the answer for an item.
func MarkShownHandler(store exercise.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a, ok := loadAttempt(w, r, store, adminOnly)
		if !ok {
			return
		}
		a, err := store.MarkShown(r.Context(), a.ID, chi.URLParam(r, "itemID"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, a)
	}
}

// POST /attempts/{attemptID}/submit
// Grades the attempt. When a syncer is configured the grade is pushed to the
// gradebook; a failed push is recorded on the attempt, not returned.
func SubmitAttemptHandler(store exercise.Store, syncer AttemptSyncer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a, ok := loadAttempt(w, r, store, adminOnly)
		if !ok {
			return
		}
		a, err := store.Submit(r.Context(), a.ID)
		if err != nil {
			writeError(w, err)
			return
		}
		if syncer != nil {
			if err := syncer.SyncAttempt(r.Context(), a.ID); err != nil {
				log.Printf("sync attempt %s: %v", a.ID, err)
			}
			if fresh, err := store.GetAttempt(r.Context(), a.ID); err == nil {
				a = fresh
			}
		}
		writeJSON(w, http.StatusOK, a)
	}
}

// POST /attempts/{attemptID}/sync
func SyncAttemptHandler(store exercise.Store, syncer AttemptSyncer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if syncer == nil {
			http.Error(w, "grade reporting disabled", http.StatusServiceUnavailable)
			return
		}
		a, err := store.GetAttempt(r.Context(), chi.URLParam(r, "attemptID"))
		if err != nil {
			writeError(w, err)
			return
		}
		if a.Status != exercise.StatusSubmitted {
			http.Error(w, "attempt not submitted", http.StatusConflict)
			return
		}
		if err := syncer.SyncAttempt(r.Context(), a.ID); err != nil {
			http.Error(w, "sync: "+err.Error(), http.StatusBadGateway)
			return
		}
		if a, err = store.GetAttempt(r.Context(), a.ID); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, a)
	}
}

// GET /attempts/{attemptID}
func GetAttemptHandler(store exercise.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a, ok := loadAttempt(w, r, store, rbac.PermAttemptViewAll)
		if !ok {
			return
		}
		writeJSON(w, http.StatusOK, a)
	}
}

// GET /attempts?exercise_id=...&user_id=...&status=...&limit=50&offset=0
// Callers without attempt:view-all only see their own attempts.
func ListAttemptsHandler(store exercise.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		userID := strings.TrimSpace(q.Get("user_id"))
		if !rbac.Can(r.Context(), rbac.PermAttemptViewAll) {
			userID = rbac.SubjectFromContext(r.Context())
		}
		list, err := store.ListAttempts(r.Context(), exercise.AttemptListOpts{
			ExerciseID: strings.TrimSpace(q.Get("exercise_id")),
			UserID:     userID,
			Status:     strings.TrimSpace(q.Get("status")),
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
