package http

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	auth "github.com/mind-engage/mindengage-grader/internal/auth/middleware"
	"github.com/mind-engage/mindengage-grader/internal/exercise"
	"github.com/mind-engage/mindengage-grader/internal/grading"
	"github.com/mind-engage/mindengage-grader/internal/rbac"
)

// Pinger is satisfied by *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

type Deps struct {
	Auth        *auth.AuthService
	Login       auth.LoginOptions
	EnableLogin bool

	Grader    grading.Grader
	Store     exercise.Store
	Positions *exercise.PositionIndex
	Events    EventLister
	Syncer    AttemptSyncer // nil disables grade reporting
	DB        Pinger        // optional, checked by /readyz

	CORSOrigins    []string
	RequestTimeout time.Duration
}

func NewRouter(d Deps) chi.Router {
	if d.RequestTimeout <= 0 {
		d.RequestTimeout = 30 * time.Second
	}
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)
	r.Use(middleware.Timeout(d.RequestTimeout))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   d.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if d.EnableLogin {
		r.Post("/auth/login", auth.LoginHandler(d.Auth, d.Login))
	}

	// Protected API (JWT → role in context → RBAC)
	r.Group(func(pr chi.Router) {
		pr.Use(auth.JWTMiddleware(d.Auth))

		pr.With(rbac.Require(rbac.PermGrade)).
			Post("/grade", GradeHandler(d.Grader))
		pr.With(rbac.Require(rbac.PermGrade)).
			Post("/grade/batch", GradeBatchHandler(d.Grader))

		pr.With(rbac.Require(rbac.PermExerciseCreate)).
			Post("/exercises", UploadExerciseHandler(d.Store, d.Positions))
		pr.With(rbac.Require(rbac.PermExerciseView)).
			Get("/exercises/{exerciseID}", GetExerciseHandler(d.Store))
		pr.With(rbac.Require(rbac.PermExerciseView)).
			Get("/exercises/{exerciseID}/position", PositionHandler(d.Positions))
		pr.With(rbac.Require(rbac.PermExerciseView)).
			Get("/units/{unitID}/exercises", ListUnitHandler(d.Store))

		// Learner flow
		pr.With(rbac.Require(rbac.PermAttemptCreate)).
			Post("/attempts", CreateAttemptHandler(d.Store))
		pr.With(rbac.Require(rbac.PermAttemptSave)).
			Post("/attempts/{attemptID}/responses", SaveResponsesHandler(d.Store))
		pr.With(rbac.Require(rbac.PermAttemptSave)).
			Post("/attempts/{attemptID}/shown/{itemID}", MarkShownHandler(d.Store))
		pr.With(rbac.Require(rbac.PermAttemptSubmit)).
			Post("/attempts/{attemptID}/submit", SubmitAttemptHandler(d.Store, d.Syncer))
		pr.With(rbac.RequireAny(rbac.PermAttemptViewOwn, rbac.PermAttemptViewAll)).
			Get("/attempts/{attemptID}", GetAttemptHandler(d.Store))
		pr.With(rbac.RequireAny(rbac.PermAttemptViewOwn, rbac.PermAttemptViewAll)).
			Get("/attempts", ListAttemptsHandler(d.Store))
		pr.With(rbac.Require(rbac.PermGradeSync)).
			Post("/attempts/{attemptID}/sync", SyncAttemptHandler(d.Store, d.Syncer))

		pr.With(rbac.Require(rbac.PermGradeRecord)).
			Post("/exercises/{exerciseID}/grades", RecordGradeHandler(d.Store))
		pr.With(rbac.RequireAny(rbac.PermGradeRecord, rbac.PermGradeViewAll)).
			Get("/grades", ListGradesHandler(d.Store))

		pr.With(rbac.Require(rbac.PermEventView)).
			Get("/events", ListEventsHandler(d.Events))
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	r.Get("/readyz", ReadyHandler(d.DB))
	return r
}

// GET /readyz
func ReadyHandler(db Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if db != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := db.PingContext(ctx); err != nil {
				http.Error(w, "db: "+err.Error(), http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
	}
}
