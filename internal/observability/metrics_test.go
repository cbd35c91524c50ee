package observability

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
)

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.ObserveAggregateOperation("op", "success", time.Millisecond)
	m.IncAggregateConflict("op")
	m.IncAggregateRetry("op")
	m.ObserveActivityEmission("op", "failure")
	m.ObserveRelayEvent("updated", "success", time.Millisecond)
	m.StartServer(context.Background(), nil, ":0")
	if m.Registry() != nil {
		t.Fatalf("nil metrics should have no registry")
	}
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	if rec.Code != 503 {
		t.Fatalf("expected 503 from nil handler, got %d", rec.Code)
	}
	if Init(false) != nil {
		t.Fatalf("disabled Init should return nil")
	}
}

func TestAggregateCounters(t *testing.T) {
	m := New()
	m.ObserveAggregateOperation("Prompt.Family.Create", "success", 3*time.Millisecond)
	m.ObserveAggregateOperation("Prompt.Family.Create", "success", time.Millisecond)
	m.ObserveAggregateOperation("Prompt.Family.Create", "duplicate_key", time.Millisecond)
	m.IncAggregateConflict("Prompt.Family.CreateVersion")
	m.IncAggregateRetry("Prompt.Family.CreateVersion")
	m.IncAggregateRetry("Prompt.Family.CreateVersion")
	m.ObserveActivityEmission("Prompt.Family.Create", "failure")

	if got := testutil.ToFloat64(m.aggregateOps.WithLabelValues("Prompt.Family.Create", "success")); got != 2 {
		t.Fatalf("success ops: %v", got)
	}
	if got := testutil.ToFloat64(m.aggregateConflict.WithLabelValues("Prompt.Family.CreateVersion")); got != 1 {
		t.Fatalf("conflicts: %v", got)
	}
	if got := testutil.ToFloat64(m.aggregateRetry.WithLabelValues("Prompt.Family.CreateVersion")); got != 2 {
		t.Fatalf("retries: %v", got)
	}
	if got := testutil.ToFloat64(m.activityEmission.WithLabelValues("Prompt.Family.Create", "failure")); got != 1 {
		t.Fatalf("emissions: %v", got)
	}

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body := rec.Body.String()
	if !strings.Contains(body, "pc_aggregate_operations_total") || !strings.Contains(body, `status="duplicate_key"`) {
		t.Fatalf("metrics output missing series:\n%s", body)
	}
}

func TestRelayMetrics(t *testing.T) {
	m := New()
	m.ObserveRelayEvent("version_created", "success", time.Millisecond)
	m.ObserveRelayEvent("version_created", "failure", time.Millisecond)
	if got := testutil.ToFloat64(m.relayEvents.WithLabelValues("version_created", "failure")); got != 1 {
		t.Fatalf("relay failures: %v", got)
	}
	if n := testutil.CollectAndCount(m.relayLatency); n != 1 {
		t.Fatalf("relay latency series: %d", n)
	}
}

func TestCollectDBStats(t *testing.T) {
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{Logger: gormLogger.Default.LogMode(gormLogger.Silent)})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, _ := db.DB()
	sqlDB.SetMaxOpenConns(3)
	t.Cleanup(func() { _ = sqlDB.Close() })

	m := New()
	if err := m.collectDBStats(db); err != nil {
		t.Fatalf("collectDBStats: %v", err)
	}
	if got := testutil.ToFloat64(m.dbStats.WithLabelValues("max_open_connections")); got != 3 {
		t.Fatalf("max_open_connections: %v", got)
	}
}

func TestPingRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	m := New()
	if err := m.pingRedis(context.Background(), rdb); err != nil {
		t.Fatalf("ping: %v", err)
	}
	if got := testutil.ToFloat64(m.redisUp); got != 1 {
		t.Fatalf("redis up: %v", got)
	}

	mr.Close()
	if err := m.pingRedis(context.Background(), rdb); err == nil {
		t.Fatalf("expected ping failure after close")
	}
	if got := testutil.ToFloat64(m.redisUp); got != 0 {
		t.Fatalf("redis up after close: %v", got)
	}
}
