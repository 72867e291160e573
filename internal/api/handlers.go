// Package api is the narrow HTTP/WS surface the supervisor owns directly:
// webhook ingestion, live log/event streaming, and on-demand health and
// platform probes. It is not the operator CRUD/auth API, which stays out
// of scope — every other operation is invoked by calling the
// corresponding package (deploy, registry, version) directly.
package api

import (
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/glinrdock-paas/supervisor/internal/audit"
	"github.com/glinrdock-paas/supervisor/internal/buildinfo"
	"github.com/glinrdock-paas/supervisor/internal/deploy"
	"github.com/glinrdock-paas/supervisor/internal/health"
	"github.com/glinrdock-paas/supervisor/internal/metrics"
	"github.com/glinrdock-paas/supervisor/internal/registry"
	"github.com/glinrdock-paas/supervisor/internal/webhook"
)

// Handlers holds the dependencies every route needs.
type Handlers struct {
	pipeline   *deploy.Pipeline
	registry   *registry.Registry
	redeployer *webhook.Redeployer
	auditLog   *audit.Logger
	appsRoot   string
	startedAt  time.Time
}

// New builds the Handlers set and registers routes onto engine. appsRoot
// is the directory holding every deployed app's working directory, used
// by PlatformHealth's reachability check.
func New(engine *gin.Engine, pipeline *deploy.Pipeline, reg *registry.Registry, redeployer *webhook.Redeployer, auditLog *audit.Logger, appsRoot string) *Handlers {
	h := &Handlers{
		pipeline:   pipeline,
		registry:   reg,
		redeployer: redeployer,
		auditLog:   auditLog,
		appsRoot:   appsRoot,
		startedAt:  time.Now(),
	}
	h.registerRoutes(engine)
	return h
}

func (h *Handlers) registerRoutes(engine *gin.Engine) {
	engine.POST("/webhooks/:app", h.HandleWebhook)
	engine.GET("/apps/:app/logs/stream", h.StreamLogs)
	engine.GET("/apps/:app/events/stream", h.StreamEvents)
	engine.GET("/apps/:app/health", h.AppHealth)
	engine.GET("/platform/health", h.PlatformHealth)
	engine.GET("/metrics", h.Metrics)
}

// AppHealth runs an on-demand health probe for the named app.
func (h *Handlers) AppHealth(c *gin.Context) {
	name := c.Param("app")

	result, err := h.pipeline.Probe(c.Request.Context(), name)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	metrics.RecordHealthProbe(result.Status == health.StatusHealthy)
	c.JSON(http.StatusOK, result)
}

// PlatformHealth reports process uptime and registry/apps-root reachability.
func (h *Handlers) PlatformHealth(c *gin.Context) {
	apps, err := h.registry.List()
	registryReachable := err == nil

	_, statErr := os.Stat(h.appsRoot)
	appsRootReachable := statErr == nil

	response := gin.H{
		"uptime_seconds":      buildinfo.Uptime().Seconds(),
		"registry_reachable":  registryReachable,
		"apps_root_reachable": appsRootReachable,
		"app_count":           len(apps),
	}
	if !registryReachable {
		response["error"] = err.Error()
	}
	c.JSON(http.StatusOK, response)
}

// Metrics exposes the Prometheus registry in exposition format.
func (h *Handlers) Metrics(c *gin.Context) {
	if metrics.DefaultCollector == nil {
		c.Status(http.StatusServiceUnavailable)
		return
	}
	gatherer := metrics.DefaultCollector.Registry()
	handler := prometheusHandler(gatherer)
	handler.ServeHTTP(c.Writer, c.Request)
}

func (h *Handlers) recordAudit(c *gin.Context, app string, action audit.Action, meta map[string]any) {
	if h.auditLog == nil {
		return
	}
	h.auditLog.Record(c.Request.Context(), app, action, meta)
}

func logError(msg string, err error) {
	log.Error().Err(err).Msg(msg)
}
