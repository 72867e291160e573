// Package metrics exposes a Prometheus registry of supervisor-level
// gauges and counters, adapted from the platform's own metrics collector.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// DefaultCollector is the process-wide collector, initialized once via
// InitGlobal.
var (
	DefaultCollector *Collector
	once             sync.Once
)

// Collector owns every metric the supervisor exposes at GET /metrics.
type Collector struct {
	registry  *prometheus.Registry
	startTime time.Time

	uptimeSeconds  prometheus.Gauge
	appsRegistered prometheus.Gauge
	appsRunning    prometheus.Gauge
	appsCrashed    prometheus.Gauge

	deploysTotal    *prometheus.CounterVec
	restartsTotal   *prometheus.CounterVec
	webhooksTotal   *prometheus.CounterVec
	rollbacksTotal  *prometheus.CounterVec
	healthProbes    *prometheus.CounterVec
	crashLoopsTotal prometheus.Counter

	deployDuration prometheus.Histogram

	appCPUPercent  *prometheus.GaugeVec
	appMemoryBytes *prometheus.GaugeVec
}

// NewCollector builds a fresh Collector with its own Prometheus registry.
func NewCollector() *Collector {
	registry := prometheus.NewRegistry()
	startTime := time.Now()

	c := &Collector{
		registry:  registry,
		startTime: startTime,

		uptimeSeconds: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "supervisor_uptime_seconds",
			Help: "Seconds since the supervisor process started.",
		}),
		appsRegistered: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "supervisor_apps_registered",
			Help: "Total number of apps currently registered.",
		}),
		appsRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "supervisor_apps_running",
			Help: "Number of apps whose last-known status is running.",
		}),
		appsCrashed: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "supervisor_apps_crashed",
			Help: "Number of apps currently locked in crash loop protection.",
		}),
		deploysTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "supervisor_deploys_total",
			Help: "Total number of deploy attempts by outcome.",
		}, []string{"outcome"}),
		restartsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "supervisor_restarts_total",
			Help: "Total number of automatic crash-restarts by app.",
		}, []string{"app"}),
		webhooksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "supervisor_webhook_deliveries_total",
			Help: "Total number of webhook deliveries by outcome.",
		}, []string{"outcome"}),
		rollbacksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "supervisor_rollbacks_total",
			Help: "Total number of rollback operations by outcome.",
		}, []string{"outcome"}),
		healthProbes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "supervisor_health_probes_total",
			Help: "Total number of health probes by result.",
		}, []string{"result"}),
		crashLoopsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "supervisor_crash_loops_total",
			Help: "Total number of times an app entered crash loop protection.",
		}),
		deployDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "supervisor_deploy_duration_seconds",
			Help:    "Duration of deploy pipeline runs in seconds.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10),
		}),
		appCPUPercent: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "supervisor_app_cpu_percent",
			Help: "Last-sampled CPU percent per app.",
		}, []string{"app"}),
		appMemoryBytes: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "supervisor_app_memory_bytes",
			Help: "Last-sampled resident memory bytes per app.",
		}, []string{"app"}),
	}

	registry.MustRegister(
		c.uptimeSeconds,
		c.appsRegistered,
		c.appsRunning,
		c.appsCrashed,
		c.deploysTotal,
		c.restartsTotal,
		c.webhooksTotal,
		c.rollbacksTotal,
		c.healthProbes,
		c.crashLoopsTotal,
		c.deployDuration,
		c.appCPUPercent,
		c.appMemoryBytes,
	)

	go c.updateUptime()

	return c
}

// InitGlobal initializes DefaultCollector exactly once.
func InitGlobal() {
	once.Do(func() {
		DefaultCollector = NewCollector()
	})
}

// Registry returns the underlying Prometheus registry for exposition.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

func (c *Collector) updateUptime() {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	for range ticker.C {
		c.uptimeSeconds.Set(time.Since(c.startTime).Seconds())
	}
}

// SetAppCounts updates the registered/running/crashed gauges in one call,
// matching one sweep of the registry.
func (c *Collector) SetAppCounts(registered, running, crashed int) {
	c.appsRegistered.Set(float64(registered))
	c.appsRunning.Set(float64(running))
	c.appsCrashed.Set(float64(crashed))
}

// RecordDeploy records a deploy attempt's outcome and duration.
func (c *Collector) RecordDeploy(success bool, duration time.Duration) {
	outcome := "success"
	if !success {
		outcome = "failure"
	}
	c.deploysTotal.WithLabelValues(outcome).Inc()
	c.deployDuration.Observe(duration.Seconds())
}

// RecordRestart records one automatic crash-restart attempt for app.
func (c *Collector) RecordRestart(app string) {
	c.restartsTotal.WithLabelValues(app).Inc()
}

// RecordCrashLoop records one app entering crash loop protection.
func (c *Collector) RecordCrashLoop() {
	c.crashLoopsTotal.Inc()
}

// RecordWebhook records a webhook delivery's outcome.
func (c *Collector) RecordWebhook(success bool) {
	outcome := "success"
	if !success {
		outcome = "rejected"
	}
	c.webhooksTotal.WithLabelValues(outcome).Inc()
}

// RecordRollback records a rollback operation's outcome.
func (c *Collector) RecordRollback(success bool) {
	outcome := "success"
	if !success {
		outcome = "failure"
	}
	c.rollbacksTotal.WithLabelValues(outcome).Inc()
}

// RecordHealthProbe records one health probe's result.
func (c *Collector) RecordHealthProbe(healthy bool) {
	result := "healthy"
	if !healthy {
		result = "unhealthy"
	}
	c.healthProbes.WithLabelValues(result).Inc()
}

// SetAppResourceSample records the most recent CPU/memory reading for app.
func (c *Collector) SetAppResourceSample(app string, cpuPercent float64, memoryBytes uint64) {
	c.appCPUPercent.WithLabelValues(app).Set(cpuPercent)
	c.appMemoryBytes.WithLabelValues(app).Set(float64(memoryBytes))
}

// Global convenience wrappers, mirroring the package-level helpers the
// rest of the platform's call sites use.

func SetAppCounts(registered, running, crashed int) {
	if DefaultCollector != nil {
		DefaultCollector.SetAppCounts(registered, running, crashed)
	}
}

func RecordDeploy(success bool, duration time.Duration) {
	if DefaultCollector != nil {
		DefaultCollector.RecordDeploy(success, duration)
	}
}

func RecordRestart(app string) {
	if DefaultCollector != nil {
		DefaultCollector.RecordRestart(app)
	}
}

func RecordCrashLoop() {
	if DefaultCollector != nil {
		DefaultCollector.RecordCrashLoop()
	}
}

func RecordWebhook(success bool) {
	if DefaultCollector != nil {
		DefaultCollector.RecordWebhook(success)
	}
}

func RecordRollback(success bool) {
	if DefaultCollector != nil {
		DefaultCollector.RecordRollback(success)
	}
}

func RecordHealthProbe(healthy bool) {
	if DefaultCollector != nil {
		DefaultCollector.RecordHealthProbe(healthy)
	}
}

func SetAppResourceSample(app string, cpuPercent float64, memoryBytes uint64) {
	if DefaultCollector != nil {
		DefaultCollector.SetAppResourceSample(app, cpuPercent, memoryBytes)
	}
}
