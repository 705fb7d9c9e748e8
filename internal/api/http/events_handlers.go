package http

import (
	"context"
	"net/http"

	syncx "github.com/mind-engage/mindengage-grader/internal/sync"
)

// EventLister reads the event log; *syncx.EventRepo implements it.
type EventLister interface {
	Since(ctx context.Context, after int64, limit int) ([]syncx.Event, error)
}

// GET /events?after=0&limit=100
// Pages through AttemptGraded and GradeRecorded events, oldest first.
func ListEventsHandler(events EventLister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if events == nil {
			http.Error(w, "event log unavailable", http.StatusServiceUnavailable)
			return
		}
		q := r.URL.Query()
		limit := parseIntDefault(q.Get("limit"), 100)
		if limit > 1000 {
			limit = 1000
		}
		list, err := events.Since(r.Context(), int64(parseIntDefault(q.Get("after"), 0)), limit)
		if err != nil {
			writeError(w, err)
			return
		}
		if list == nil {
			list = []syncx.Event{}
		}
		writeJSON(w, http.StatusOK, list)
	}
}
