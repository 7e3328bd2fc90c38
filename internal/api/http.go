package api

import (
	"context"
	"log"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nzahrani/offercast/internal/alerting"
	"github.com/nzahrani/offercast/internal/api/swagger"
	"github.com/nzahrani/offercast/internal/auth"
	"github.com/nzahrani/offercast/internal/config"
	"github.com/nzahrani/offercast/internal/distribution"
	"github.com/nzahrani/offercast/internal/extract"
	"github.com/nzahrani/offercast/internal/ingest"
	migrate "github.com/nzahrani/offercast/internal/migrate"
	"github.com/nzahrani/offercast/internal/notification"
	"github.com/nzahrani/offercast/internal/pricing"
	"github.com/nzahrani/offercast/internal/storage"
)

// NewMux opens storage, wires the pricing, extraction, distribution and
// auth services, and mounts every route on a fresh mux.
func NewMux(cfg config.Config) *http.ServeMux {
	ctx := context.Background()

	if cfg.AutoMigrate && cfg.DBDriver != "memory" {
		if err := migrate.Up(ctx, cfg.DBDriver, cfg.DBDSN); err != nil {
			log.Printf("auto-migration failed: %v", err)
		}
	}

	st, err := storage.Open(ctx, storage.Config{Driver: cfg.DBDriver, DSN: cfg.DBDSN})
	if err != nil {
		log.Printf("storage.Open failed (driver=%s): %v; falling back to in-memory storage", cfg.DBDriver, err)
		st = storage.NewMemory()
	}

	authSvc, err := auth.NewService(st)
	if err != nil {
		log.Printf("auth disabled: %v", err)
		authSvc = nil
	}
	bootstrapAdmin(ctx, authSvc)

	notifSvc := notification.NewService(st).WithCountryPrefix(cfg.CountryPrefix)
	engine := distribution.NewEngine(pricing.NewEngine(st), notifSvc, st).
		WithWorkers(cfg.Workers).
		WithSendTimeout(cfg.SendTimeout)

	gemini := extract.NewGemini(cfg.GoogleAPIKey)
	if cfg.GeminiModel != "" {
		gemini.Model = cfg.GeminiModel
	}
	ingestSvc := ingest.NewService(st, gemini).
		WithKeywordMatcher(gemini).
		WithDistribution(engine)

	mux := http.NewServeMux()

	mux.Handle("/metrics", promhttp.Handler())

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if err := st.Ping(r.Context()); err != nil {
			log.Printf("readyz: db ping failed: %v", err)
			http.Error(w, "db not ready", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})
	mux.HandleFunc("/livez", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("live"))
	})

	srv := NewServer(st, authSvc, notifSvc, ingestSvc, engine).WithShippingImporter(gemini)
	if ac := alerting.DefaultAlertConfig(); ac.WebhookURL != "" {
		srv = srv.WithAlerter(alerting.NewAlerter(ac))
	}
	srv.Register(mux)

	mux.Handle("/swagger/", http.StripPrefix("/swagger", swagger.Handler()))

	return mux
}

// bootstrapAdmin creates the initial admin account from the environment so
// a fresh deployment is reachable before any user exists.
func bootstrapAdmin(ctx context.Context, authSvc *auth.Service) {
	if authSvc == nil {
		return
	}
	username := os.Getenv("OFFERCAST_ADMIN_USER")
	password := os.Getenv("OFFERCAST_ADMIN_PASSWORD")
	if username == "" || password == "" {
		return
	}
	if _, err := authSvc.Register(ctx, username, password, "admin"); err != nil {
		log.Printf("admin bootstrap skipped: %v", err)
	}
}
