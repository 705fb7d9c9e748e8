package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/mind-engage/mindengage-grader/internal/exercise"
	"github.com/mind-engage/mindengage-grader/internal/grading"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps store and engine errors to status codes.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, exercise.ErrExerciseNotFound), errors.Is(err, exercise.ErrAttemptNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, exercise.ErrSubmitted):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, exercise.ErrInvalid),
		errors.Is(err, exercise.ErrUnknownItem),
		errors.Is(err, grading.ErrUnknownExerciseType):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	if v, err := strconv.Atoi(s); err == nil && v >= 0 {
		return v
	}
	return def
}
