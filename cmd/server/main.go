// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in internal service packages.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/go-chi/chi/v5"

	"clearclaim/internal/audit"
	"clearclaim/internal/cache"
	"clearclaim/internal/claims"
	claimshandler "clearclaim/internal/claims/handler"
	claimsservice "clearclaim/internal/claims/service"
	"clearclaim/internal/fraud"
	"clearclaim/internal/patients"
	"clearclaim/internal/platform/config"
	"clearclaim/internal/platform/httpserver"
	"clearclaim/internal/platform/logger"
	"clearclaim/internal/platform/metrics"
	"clearclaim/internal/platform/postgres"
	platformredis "clearclaim/internal/platform/redis"
	"clearclaim/internal/platform/token"
)

func main() {
	cfg := config.FromEnv()
	log := logger.New()
	m := metrics.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	// Stores: PostgreSQL when configured, in-memory otherwise.
	var (
		claimStore claims.Store
		auditStore audit.Store
	)
	if cfg.PostgresURL != "" {
		db, err := postgres.Open(ctx, cfg.PostgresURL)
		if err != nil {
			log.Error("postgres connection failed", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		claimStore = claims.NewPostgres(db)
		auditStore = audit.NewPostgres(db)
	} else {
		log.Warn("no postgres URL configured, using in-memory stores")
		claimStore = claims.NewInMemoryStore()
		auditStore = audit.NewInMemoryStore()
	}

	// Cache backend: Redis when configured, in-memory otherwise.
	var backend cache.Backend
	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		log.Error("redis connection failed", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
		backend = cache.NewRedisBackend(redisClient)
	} else {
		log.Warn("no redis URL configured, using in-memory cache backend")
		backend = cache.NewMemoryBackend()
	}
	listCache := cache.New(backend, log, m)

	// The medical record store is an external collaborator; the in-memory
	// implementation stands in until a real adapter is wired.
	recordStore := patients.NewInMemoryStore()

	recorder := audit.NewRecorder(log, m)
	worker := audit.NewWorker(auditStore, recorder.Inbox(), log)
	go func() {
		if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("audit worker stopped", "error", err)
		}
	}()

	engine := fraud.NewEngine(recordStore, claimStore, fraud.DefaultRuleTables(), log, m)
	service := claimsservice.New(claimStore, engine, listCache, recorder, log, m, cfg.ListCacheTTL)

	validator := token.NewValidator(cfg.JWTSigningKey)
	handler := claimshandler.New(service, log, m, validator)

	router := chi.NewRouter()
	router.Handle("/metrics", metrics.Handler())
	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	handler.Register(router)

	srv := httpserver.New(cfg.Addr, router)

	log.Info("starting clearclaim", "addr", cfg.Addr)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
	}
}
