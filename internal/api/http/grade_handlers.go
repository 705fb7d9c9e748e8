package http

import (
	"encoding/json"
	"net/http"

	"github.com/mind-engage/mindengage-grader/internal/grading"
)

// maxBatch bounds POST /grade/batch.
const maxBatch = 500

// POST /grade
// Stateless: the caller supplies answer keys and responses.
func GradeHandler(g grading.Grader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var a grading.Attempt
		if err := json.NewDecoder(r.Body).Decode(&a); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		res, err := g.Grade(r.Context(), a)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

// POST /grade/batch  { "attempts": [ ... ] }
func GradeBatchHandler(g grading.Grader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Attempts []grading.Attempt `json:"attempts"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		if len(req.Attempts) > maxBatch {
			http.Error(w, "too many attempts", http.StatusRequestEntityTooLarge)
			return
		}
		res, err := g.GradeBatch(r.Context(), req.Attempts)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"results": res})
	}
}
