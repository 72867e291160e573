package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/glinrdock-paas/supervisor/internal/api"
	"github.com/glinrdock-paas/supervisor/internal/audit"
	"github.com/glinrdock-paas/supervisor/internal/config"
	"github.com/glinrdock-paas/supervisor/internal/deploy"
	"github.com/glinrdock-paas/supervisor/internal/metrics"
	"github.com/glinrdock-paas/supervisor/internal/registry"
	"github.com/glinrdock-paas/supervisor/internal/staticserve"
	"github.com/glinrdock-paas/supervisor/internal/webhook"
)

// main dispatches into the self-reexec static file server when invoked as
// a deployed static app's process, before any of the supervisor's own
// setup runs.
func main() {
	if len(os.Args) > 1 && os.Args[1] == staticserve.Subcommand {
		runStaticServe()
		return
	}

	cfg := config.Load()
	config.SetupLogger(cfg.LogLevel)

	gin.SetMode(gin.ReleaseMode)

	reg, err := registry.Open(filepath.Join(cfg.DataDir, "data", "apps.json"))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open app registry")
	}

	pipeline := deploy.New(deploy.Config{
		AppsRoot:          cfg.DataDir,
		PortFloor:         cfg.StartPort,
		AutoRestartMax:    cfg.AutoRestartMax,
		AutoRestartWindow: time.Duration(cfg.AutoRestartWindow) * time.Second,
		LogMaxSizeMB:      cfg.LogMaxSizeMB,
		LogMaxFiles:       cfg.LogMaxFiles,
		StopGrace:         10 * time.Second,
	}, reg)

	if err := pipeline.Restore(); err != nil {
		log.Error().Err(err).Msg("failed to restore previously running apps")
	}

	auditLogger, err := audit.Open(filepath.Join(cfg.DataDir, "data"))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open audit log")
	}
	defer auditLogger.Close()
	pipeline.SetAuditLogger(auditLogger)

	metrics.InitGlobal()
	log.Info().Msg("metrics collector initialized")

	sweepCtx, stopSweeps := context.WithCancel(context.Background())
	defer stopSweeps()
	pipeline.StartHealthSweeps(sweepCtx, 60*time.Second)
	pipeline.StartResourceSweeps(sweepCtx, 2*time.Second)

	redeployer := webhook.New(reg, pipeline.Redeploy)

	engine := gin.New()
	engine.Use(gin.Recovery())
	api.New(engine, pipeline, reg, redeployer, auditLogger, filepath.Join(cfg.DataDir, "apps"))

	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: engine,
	}

	log.Info().Str("addr", cfg.HTTPAddr).Msg("starting supervisord")

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server startup failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down supervisord...")
	stopSweeps()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http server forced to shutdown")
	}

	apps, err := reg.List()
	if err != nil {
		log.Error().Err(err).Msg("failed to list apps during shutdown")
	}
	for _, app := range apps {
		if err := pipeline.Stop(app.Name); err != nil {
			log.Warn().Err(err).Str("app", app.Name).Msg("failed to stop app during shutdown")
		}
	}

	log.Info().Msg("supervisord exited")
}

// runStaticServe serves the current working directory over HTTP on the
// port the supervisor assigned this process, via the PORT environment
// variable it injects into every app's environment.
func runStaticServe() {
	portStr := os.Getenv("PORT")
	port, err := strconv.Atoi(portStr)
	if err != nil {
		log.Fatal().Str("port", portStr).Msg("static file server requires a numeric PORT")
	}

	if err := staticserve.Run(".", port); err != nil {
		log.Fatal().Err(err).Msg("static file server exited")
	}
}
