// Command server runs the SMS messaging backbone: the HTTP API, the inbound
// webhook, and the background scheduler (automation passes, conversation
// archival, stale-pending reconciliation) in a single process.
//
// Startup order:
//  1. Load .env (best effort) and validate configuration.
//  2. Configure global logging (level, optional pretty console output).
//  3. Open the database and migrate the schema.
//  4. Configure OpenTelemetry tracing (no-op unless enabled).
//  5. Select the telephony gateway (real, simulator, or failing stub).
//  6. Mount routes and start the HTTP server.
//  7. Start the scheduler.
//
// Shutdown is graceful: SIGINT/SIGTERM stops accepting connections, drains
// in-flight requests, stops the scheduler (waiting for in-flight ticks), and
// flushes traces.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/dev-avwi/TradieTrack-sub004/internal/config"
	"github.com/dev-avwi/TradieTrack-sub004/internal/gateway"
	httpapi "github.com/dev-avwi/TradieTrack-sub004/internal/http"
	"github.com/dev-avwi/TradieTrack-sub004/internal/observability"
	"github.com/dev-avwi/TradieTrack-sub004/internal/repo"
	"github.com/dev-avwi/TradieTrack-sub004/internal/scheduler"
	"github.com/dev-avwi/TradieTrack-sub004/internal/sysutil"
)

// version is stamped via -ldflags at build time.
var version = "dev"

func main() {
	// Local development convenience; a missing .env is not an error.
	_ = godotenv.Load()

	cfg := config.MustLoad()

	sysutil.SetLogLevel(cfg.LogLevel)
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if cfg.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}

	db, err := repo.OpenSQLite(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DBPath).Msg("open database")
	}
	if err := repo.AutoMigrate(db); err != nil {
		log.Fatal().Err(err).Msg("migrate schema")
	}

	ctx := context.Background()
	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, version)
	if err != nil {
		log.Fatal().Err(err).Msg("setup tracing")
	}

	gw := gateway.New(gateway.Config{
		AccountSID: cfg.Gateway.AccountSID,
		AuthToken:  cfg.Gateway.AuthToken,
		FromNumber: cfg.Gateway.FromNumber,
		BaseURL:    cfg.Gateway.BaseURL,
	}, cfg.Production())

	svcs := httpapi.BuildServices(db, gw, cfg)

	gin.SetMode(cfg.GinMode)
	engine := gin.New()
	httpapi.RegisterRoutes(engine, db, svcs, cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           engine,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	sched := newScheduler(svcs, cfg)
	sched.Start(ctx)

	go func() {
		log.Info().
			Str("addr", srv.Addr).
			Str("env", cfg.Environment).
			Str("version", version).
			Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http server failed")
		}
	}()

	// Wait for termination.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	log.Info().Str("signal", sig.String()).Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http server shutdown")
	}
	sched.Stop()
	if err := shutdownOTel(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("tracing shutdown")
	}
	log.Info().Msg("shutdown complete")
}

// newScheduler wires the periodic passes: rule evaluation, idle-thread
// archival, and stale-pending reconciliation.
func newScheduler(svcs *httpapi.AppServices, cfg config.Config) *scheduler.Scheduler {
	s := scheduler.New()
	s.DefaultStagger = cfg.Scheduler.Stagger

	s.Add(scheduler.Task{
		Name:     "sms_automation",
		Interval: cfg.Scheduler.AutomationInterval,
		Run: func(ctx context.Context) error {
			stats, err := svcs.Automation.RunPass(ctx, time.Now().UTC())
			if err != nil {
				return err
			}
			if stats.Sent+stats.Skipped+stats.Failed > 0 {
				log.Info().
					Int("rules", stats.Rules).
					Int("sent", stats.Sent).
					Int("skipped", stats.Skipped).
					Int("failed", stats.Failed).
					Msg("automation pass completed")
			}
			return nil
		},
	})
	s.Add(scheduler.Task{
		Name:     "conversation_archive",
		Interval: cfg.Scheduler.ArchiveInterval,
		Run: func(ctx context.Context) error {
			return svcs.Maintenance.ArchiveIdle(ctx, time.Now().UTC())
		},
	})
	s.Add(scheduler.Task{
		Name:     "pending_reconcile",
		Interval: cfg.Scheduler.ReconcileInterval,
		Run: func(ctx context.Context) error {
			return svcs.Maintenance.ReconcilePending(ctx, time.Now().UTC())
		},
	})
	return s
}
