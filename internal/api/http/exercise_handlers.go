package http

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mind-engage/mindengage-grader/internal/exercise"
	"github.com/mind-engage/mindengage-grader/internal/rbac"
)

// POST /exercises
func UploadExerciseHandler(store exercise.Store, pos *exercise.PositionIndex) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var e exercise.Exercise
		if err := json.NewDecoder(r.Body).Decode(&e); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		prev, prevErr := store.GetExercise(r.Context(), e.ID)
		if err := store.PutExercise(r.Context(), e); err != nil {
			writeError(w, err)
			return
		}
		if pos != nil {
			pos.Invalidate(e.UnitID)
			if prevErr == nil && prev.UnitID != e.UnitID {
				pos.Invalidate(prev.UnitID)
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "id": e.ID})
	}
}

// GET /exercises/{exerciseID}
// Answer keys are only included for roles allowed to see them.
func GetExerciseHandler(store exercise.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "exerciseID")
		get := store.GetExercise
		if rbac.Can(r.Context(), rbac.PermExerciseKeys) {
			get = store.GetExerciseAdmin
		}
		e, err := get(r.Context(), id)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, e)
	}
}

// GET /exercises/{exerciseID}/position
func PositionHandler(pos *exercise.PositionIndex) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := pos.Lookup(r.Context(), chi.URLParam(r, "exerciseID"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, p)
	}
}

// GET /units/{unitID}/exercises
func ListUnitHandler(store exercise.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := store.ListUnit(r.Context(), chi.URLParam(r, "unitID"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, list)
	}
}
