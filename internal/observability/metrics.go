package observability

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/yungbote/guildops-backend/internal/platform/logger"
)

type Metrics struct {
	apiRequests  *CounterVec
	apiLatency   *HistogramVec
	apiInflight  *Gauge
	apiReqTotal  *Counter
	apiReqError  *Counter
	aggOps       *CounterVec
	aggLatency   *HistogramVec
	aggConflicts *CounterVec
	aggRetries   *CounterVec
	progressIn   *Counter
	autoComplete *Counter
	busPublished *CounterVec
	mirrorSyncs  *CounterVec
	dbStats      *GaugeVec
	redisUp      *Gauge
	redisPing    *Gauge

	interval time.Duration
}

type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	// Addr serves a standalone exposition endpoint next to the API's /metrics.
	Addr                  string `yaml:"addr"`
	ScrapeIntervalSeconds int    `yaml:"scrape_interval_seconds"`
}

func (c MetricsConfig) interval() time.Duration {
	if c.ScrapeIntervalSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.ScrapeIntervalSeconds) * time.Second
}

// Init returns a metrics set, or nil when cfg disables metrics. Every method
// on a nil *Metrics is a no-op.
func Init(log *logger.Logger, cfg MetricsConfig) *Metrics {
	if !cfg.Enabled {
		return nil
	}
	m := New()
	m.interval = cfg.interval()
	if log != nil {
		log.Info("metrics enabled", "interval", m.interval, "addr", cfg.Addr)
	}
	return m
}

// New builds an unregistered metrics set.
func New() *Metrics {
	return &Metrics{
		apiRequests: NewCounterVec("guildops_api_requests_total", "Total API requests by method/route/status.", []string{"method", "route", "status"}),
		apiLatency: NewHistogramVec(
			"guildops_api_request_duration_seconds",
			"API request latency in seconds by method/route/status.",
			[]string{"method", "route", "status"},
			[]float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		),
		apiInflight: NewGauge("guildops_api_inflight_requests", "In-flight API requests."),
		apiReqTotal: NewCounter("guildops_api_requests_total_all", "Total API requests (all)."),
		apiReqError: NewCounter("guildops_api_requests_error_total", "Total API requests answered with a 5xx status."),
		aggOps:      NewCounterVec("guildops_aggregate_operations_total", "Aggregate write operations by name/status.", []string{"operation", "status"}),
		aggLatency: NewHistogramVec(
			"guildops_aggregate_operation_duration_seconds",
			"Aggregate write latency in seconds by name/status.",
			[]string{"operation", "status"},
			[]float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		),
		aggConflicts: NewCounterVec("guildops_aggregate_conflicts_total", "Aggregate writes rejected with a conflict.", []string{"operation"}),
		aggRetries:   NewCounterVec("guildops_aggregate_retries_total", "Aggregate writes that failed with a retryable error.", []string{"operation"}),
		progressIn:   NewCounter("guildops_progress_entries_total", "Progress entries applied to assignments."),
		autoComplete: NewCounter("guildops_assignments_autocompleted_total", "Assignments completed by their final nodes."),
		busPublished: NewCounterVec("guildops_progress_events_total", "Progress bus publish attempts by kind/status.", []string{"kind", "status"}),
		mirrorSyncs:  NewCounterVec("guildops_graph_mirror_syncs_total", "Blueprint graph mirror syncs by status.", []string{"status"}),
		dbStats:      NewGaugeVec("guildops_db_pool", "Database pool stats.", []string{"stat"}),
		redisUp:      NewGauge("guildops_redis_up", "Redis reachability (1 up, 0 down)."),
		redisPing:    NewGauge("guildops_redis_ping_seconds", "Redis ping latency in seconds."),
		interval:     MetricsConfig{}.interval(),
	}
}

func (m *Metrics) StartServer(ctx context.Context, log *logger.Logger, addr string) {
	if m == nil {
		return
	}
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           http.HandlerFunc(m.WriteHTTP),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = srv.Shutdown(shutdownCtx)
		cancel()
	}()
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			if log != nil {
				log.Error("metrics server failed", "error", err, "addr", addr)
			}
		}
	}()
}

func (m *Metrics) WriteHTTP(w http.ResponseWriter, r *http.Request) {
	if m == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	_ = m.WritePrometheus(w)
}

func (m *Metrics) WritePrometheus(w io.Writer) error {
	if m == nil {
		return nil
	}
	writers := []interface{ WritePrometheus(io.Writer) error }{
		m.apiRequests,
		m.apiLatency,
		m.apiInflight,
		m.apiReqTotal,
		m.apiReqError,
		m.aggOps,
		m.aggLatency,
		m.aggConflicts,
		m.aggRetries,
		m.progressIn,
		m.autoComplete,
		m.busPublished,
		m.mirrorSyncs,
		m.dbStats,
		m.redisUp,
		m.redisPing,
	}
	for _, mw := range writers {
		if err := mw.WritePrometheus(w); err != nil {
			return err
		}
	}
	return nil
}

func (m *Metrics) ObserveAPI(method, route, status string, dur time.Duration) {
	if m == nil {
		return
	}
	if method == "" {
		method = "UNKNOWN"
	}
	if route == "" {
		route = "unknown"
	}
	if status == "" {
		status = "0"
	}
	m.apiRequests.Inc(method, route, status)
	m.apiLatency.Observe(dur.Seconds(), method, route, status)
	m.apiReqTotal.Inc()
	if isServerErrorStatus(status) {
		m.apiReqError.Inc()
	}
}

func (m *Metrics) ApiInflightInc() {
	if m == nil {
		return
	}
	m.apiInflight.Inc()
}

func (m *Metrics) ApiInflightDec() {
	if m == nil {
		return
	}
	m.apiInflight.Dec()
}

func (m *Metrics) ObserveAggregateOperation(name, status string, dur time.Duration) {
	if m == nil {
		return
	}
	if name == "" {
		name = "unknown"
	}
	if status == "" {
		status = "unknown"
	}
	m.aggOps.Inc(name, status)
	m.aggLatency.Observe(dur.Seconds(), name, status)
}

func (m *Metrics) IncAggregateConflict(name string) {
	if m == nil {
		return
	}
	if name == "" {
		name = "unknown"
	}
	m.aggConflicts.Inc(name)
}

func (m *Metrics) IncAggregateRetry(name string) {
	if m == nil {
		return
	}
	if name == "" {
		name = "unknown"
	}
	m.aggRetries.Inc(name)
}

func (m *Metrics) IncProgressEntries(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.progressIn.Add(float64(n))
}

func (m *Metrics) IncAutoCompleted() {
	if m == nil {
		return
	}
	m.autoComplete.Inc()
}

func (m *Metrics) IncProgressEvent(kind, status string) {
	if m == nil {
		return
	}
	if kind == "" {
		kind = "unknown"
	}
	m.busPublished.Inc(kind, status)
}

func (m *Metrics) IncGraphMirrorSync(status string) {
	if m == nil {
		return
	}
	m.mirrorSyncs.Inc(status)
}

func (m *Metrics) StartDBCollector(ctx context.Context, log *logger.Logger, db *gorm.DB) {
	if m == nil || db == nil {
		return
	}
	go func() {
		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.collectDBStats(log, db)
			}
		}
	}()
}

func (m *Metrics) collectDBStats(log *logger.Logger, db *gorm.DB) {
	sqlDB, err := db.DB()
	if err != nil {
		if log != nil {
			log.Warn("metrics: db stats unavailable", "error", err)
		}
		return
	}
	stats := sqlDB.Stats()
	m.dbStats.Set(float64(stats.OpenConnections), "open_connections")
	m.dbStats.Set(float64(stats.InUse), "in_use")
	m.dbStats.Set(float64(stats.Idle), "idle")
	m.dbStats.Set(float64(stats.WaitCount), "wait_count")
	m.dbStats.Set(stats.WaitDuration.Seconds(), "wait_duration_seconds")
	m.dbStats.Set(float64(stats.MaxOpenConnections), "max_open_connections")
}

func (m *Metrics) StartRedisCollector(ctx context.Context, log *logger.Logger, rdb redis.UniversalClient) {
	if m == nil || rdb == nil {
		return
	}
	go func() {
		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				start := time.Now()
				if err := rdb.Ping(ctx).Err(); err != nil {
					m.redisUp.Set(0)
					if log != nil {
						log.Warn("metrics: redis ping failed", "error", err)
					}
					continue
				}
				m.redisUp.Set(1)
				m.redisPing.Set(time.Since(start).Seconds())
			}
		}
	}()
}
