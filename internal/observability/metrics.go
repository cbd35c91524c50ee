package observability

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/yungbote/promptchain-backend/internal/pkg/logger"
)

// Metrics is the engine's Prometheus surface. Every method is safe on a nil
// receiver so callers can skip the enabled check.
type Metrics struct {
	registry *prometheus.Registry

	aggregateOps      *prometheus.CounterVec
	aggregateLatency  *prometheus.HistogramVec
	aggregateConflict *prometheus.CounterVec
	aggregateRetry    *prometheus.CounterVec
	activityEmission  *prometheus.CounterVec
	relayEvents       *prometheus.CounterVec
	relayLatency      *prometheus.HistogramVec
	dbStats           *prometheus.GaugeVec
	redisUp           prometheus.Gauge
	redisPing         prometheus.Gauge
}

var (
	initOnce sync.Once
	instance *Metrics
)

// Init builds the process-wide Metrics once. It returns nil when disabled.
func Init(enabled bool) *Metrics {
	if !enabled {
		return nil
	}
	initOnce.Do(func() {
		instance = New()
		instance.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	})
	return instance
}

func Current() *Metrics {
	return instance
}

// New builds Metrics on a private registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Metrics{
		registry: reg,
		aggregateOps: f.NewCounterVec(prometheus.CounterOpts{
			Name: "pc_aggregate_operations_total",
			Help: "Aggregate write operations by operation/status.",
		}, []string{"operation", "status"}),
		aggregateLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pc_aggregate_operation_duration_seconds",
			Help:    "Aggregate write latency in seconds by operation/status.",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		}, []string{"operation", "status"}),
		aggregateConflict: f.NewCounterVec(prometheus.CounterOpts{
			Name: "pc_aggregate_conflicts_total",
			Help: "Aggregate writes rejected with a conflict.",
		}, []string{"operation"}),
		aggregateRetry: f.NewCounterVec(prometheus.CounterOpts{
			Name: "pc_aggregate_retries_total",
			Help: "Aggregate write attempts that ended retryable.",
		}, []string{"operation"}),
		activityEmission: f.NewCounterVec(prometheus.CounterOpts{
			Name: "pc_activity_emissions_total",
			Help: "Activity events handed to the recorder by operation/status.",
		}, []string{"operation", "status"}),
		relayEvents: f.NewCounterVec(prometheus.CounterOpts{
			Name: "pc_relay_events_total",
			Help: "Activity events consumed by the relay by kind/status.",
		}, []string{"kind", "status"}),
		relayLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pc_relay_apply_duration_seconds",
			Help:    "Time to apply one relayed event to its sinks.",
			Buckets: prometheus.DefBuckets,
		}, []string{"kind"}),
		dbStats: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "pc_db_pool",
			Help: "database/sql pool statistics.",
		}, []string{"stat"}),
		redisUp: f.NewGauge(prometheus.GaugeOpts{
			Name: "pc_redis_up",
			Help: "1 when the last redis ping succeeded.",
		}),
		redisPing: f.NewGauge(prometheus.GaugeOpts{
			Name: "pc_redis_ping_seconds",
			Help: "Latency of the last redis ping.",
		}),
	}
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) StartServer(ctx context.Context, log *logger.Logger, addr string) {
	if m == nil {
		return
	}
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = srv.Shutdown(shutdownCtx)
		cancel()
	}()
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			if log != nil {
				log.Error("metrics server failed", "error", err, "addr", addr)
			}
		}
	}()
}

func (m *Metrics) ObserveAggregateOperation(op, status string, dur time.Duration) {
	if m == nil {
		return
	}
	m.aggregateOps.WithLabelValues(op, status).Inc()
	m.aggregateLatency.WithLabelValues(op, status).Observe(dur.Seconds())
}

func (m *Metrics) IncAggregateConflict(op string) {
	if m == nil {
		return
	}
	m.aggregateConflict.WithLabelValues(op).Inc()
}

func (m *Metrics) IncAggregateRetry(op string) {
	if m == nil {
		return
	}
	m.aggregateRetry.WithLabelValues(op).Inc()
}

func (m *Metrics) ObserveActivityEmission(op, status string) {
	if m == nil {
		return
	}
	m.activityEmission.WithLabelValues(op, status).Inc()
}

func (m *Metrics) ObserveRelayEvent(kind, status string, dur time.Duration) {
	if m == nil {
		return
	}
	m.relayEvents.WithLabelValues(kind, status).Inc()
	m.relayLatency.WithLabelValues(kind).Observe(dur.Seconds())
}

// StartDBCollector samples the gorm pool every interval until ctx ends.
func (m *Metrics) StartDBCollector(ctx context.Context, log *logger.Logger, db *gorm.DB, interval time.Duration) {
	if m == nil || db == nil {
		return
	}
	if interval <= 0 {
		interval = 10 * time.Second
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := m.collectDBStats(db); err != nil && log != nil {
					log.Warn("metrics: db stats unavailable", "error", err)
				}
			}
		}
	}()
}

func (m *Metrics) collectDBStats(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	stats := sqlDB.Stats()
	m.dbStats.WithLabelValues("open_connections").Set(float64(stats.OpenConnections))
	m.dbStats.WithLabelValues("in_use").Set(float64(stats.InUse))
	m.dbStats.WithLabelValues("idle").Set(float64(stats.Idle))
	m.dbStats.WithLabelValues("wait_count").Set(float64(stats.WaitCount))
	m.dbStats.WithLabelValues("wait_duration_seconds").Set(stats.WaitDuration.Seconds())
	m.dbStats.WithLabelValues("max_open_connections").Set(float64(stats.MaxOpenConnections))
	return nil
}

// StartRedisCollector pings rdb every interval until ctx ends. The client is
// owned by the caller.
func (m *Metrics) StartRedisCollector(ctx context.Context, log *logger.Logger, rdb *redis.Client, interval time.Duration) {
	if m == nil || rdb == nil {
		return
	}
	if interval <= 0 {
		interval = 10 * time.Second
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := m.pingRedis(ctx, rdb); err != nil && log != nil {
					log.Warn("metrics: redis ping failed", "error", err)
				}
			}
		}
	}()
}

func (m *Metrics) pingRedis(ctx context.Context, rdb *redis.Client) error {
	start := time.Now()
	if err := rdb.Ping(ctx).Err(); err != nil {
		m.redisUp.Set(0)
		return err
	}
	m.redisUp.Set(1)
	m.redisPing.Set(time.Since(start).Seconds())
	return nil
}
