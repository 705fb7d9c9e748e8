package main

import (
	"context"
	"log"
	"net/http"
	"time"

	api "github.com/mind-engage/mindengage-grader/internal/api/http"
	auth "github.com/mind-engage/mindengage-grader/internal/auth/middleware"
	"github.com/mind-engage/mindengage-grader/internal/config"
	"github.com/mind-engage/mindengage-grader/internal/db"
	"github.com/mind-engage/mindengage-grader/internal/exercise"
	"github.com/mind-engage/mindengage-grader/internal/grading"
	"github.com/mind-engage/mindengage-grader/internal/report"
	syncx "github.com/mind-engage/mindengage-grader/internal/sync"
)

func main() {
	cfg := config.FromEnv()

	policies, err := config.LoadPolicies(cfg.PolicyFile)
	if err != nil {
		log.Fatalf("policies: %v", err)
	}
	grader := grading.NewDefaultGrader(
		grading.WithMaxInputRunes(cfg.MaxInputRunes),
		grading.WithConcurrency(cfg.GradeConcurrency),
		grading.WithPolicies(policies),
	)

	// --- DB ---
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	dbh, err := db.Open(ctx, db.Driver(cfg.DBDriver), cfg.DBDSN)
	if err != nil {
		log.Fatalf("db open failed: %v", err)
	}
	events := syncx.NewEventRepo(dbh, cfg.SiteID)
	store := exercise.NewSQLStore(dbh, grader, events)

	deps := api.Deps{
		Auth: auth.NewAuthService(cfg.AuthSecret),
		Login: auth.LoginOptions{
			AdminUser:     cfg.AdminUser,
			AdminPassHash: cfg.AdminPassHash,
			DevLogin:      cfg.EnableLocalAuth,
		},
		EnableLogin:    true,
		Grader:         grader,
		Store:          store,
		Positions:      exercise.NewPositionIndex(store, cfg.PositionCacheTTL),
		Events:         events,
		DB:             dbh,
		CORSOrigins:    cfg.CORSOrigins(),
		RequestTimeout: time.Duration(cfg.RequestTimeoutSec) * time.Second,
	}

	// Grade reporting is online-only and opt-in.
	if cfg.ReportBaseURL != "" {
		client := report.New(report.Config{
			BaseURL:      cfg.ReportBaseURL,
			TokenURL:     cfg.ReportTokenURL,
			ClientID:     cfg.ReportClientID,
			ClientSecret: cfg.ReportClientSecret,
			Timeout:      10 * time.Second,
		})
		deps.Syncer = report.NewSyncer(store, client, nil)
		log.Printf("grade reporting to %s", cfg.ReportBaseURL)
	}

	r := api.NewRouter(deps)

	log.Printf("listening on %s (mode=%s, db=%s)", cfg.HTTPAddr, cfg.Mode, cfg.DBDriver)
	log.Fatal(http.ListenAndServe(cfg.HTTPAddr, r))
}
