package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/yungbote/promptchain-backend/internal/data/activitysink"
	"github.com/yungbote/promptchain-backend/internal/data/aggregates"
	"github.com/yungbote/promptchain-backend/internal/data/db"
	"github.com/yungbote/promptchain-backend/internal/data/family"
	"github.com/yungbote/promptchain-backend/internal/data/repos"
	"github.com/yungbote/promptchain-backend/internal/domain/activity"
	"github.com/yungbote/promptchain-backend/internal/observability"
	"github.com/yungbote/promptchain-backend/internal/pkg/logger"
	"github.com/yungbote/promptchain-backend/internal/platform/neo4jdb"
	"github.com/yungbote/promptchain-backend/internal/services"
)

type App struct {
	Cfg   Config
	Log   *logger.Logger
	Store *db.Service
	Repos repos.Set

	Family   *family.Traverser
	Recorder activity.Recorder
	Prompts  services.PromptVersionService
	Projects services.ProjectService

	Metrics *observability.Metrics
	Bus     *activitysink.RedisBus
	Graph   *neo4jdb.Client

	otelShutdown func(context.Context) error
	cancel       context.CancelFunc
}

// New opens every configured backend and wires the engine. Optional
// backends (Redis, Neo4j, metrics, tracing) stay nil when unconfigured.
func New(ctx context.Context, cfg Config) (*App, error) {
	log, err := logger.New(cfg.LogMode)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	a := &App{Cfg: cfg, Log: log}
	if err := a.wire(ctx); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) wire(ctx context.Context) error {
	cfg := a.Cfg
	a.otelShutdown = observability.InitOTel(ctx, a.Log, cfg.otel())

	store, err := openStore(cfg.DB, a.Log)
	if err != nil {
		return err
	}
	a.Store = store
	if err := store.AutoMigrateAll(); err != nil {
		return fmt.Errorf("%s automigrate: %w", store.Driver(), err)
	}
	gdb := store.DB()

	a.Metrics = observability.Init(cfg.Metrics.Enabled)
	a.Repos = repos.NewSet(gdb, a.Log)
	a.Family = family.NewTraverser(a.Repos.Versions, a.Log)

	sinks := []activity.Recorder{activitysink.NewDBRecorder(a.Repos.Activities, a.Log)}
	if cfg.Redis.Addr != "" {
		rdb, err := activitysink.DialRedis(ctx, cfg.Redis.Addr)
		if err != nil {
			return fmt.Errorf("init redis: %w", err)
		}
		bus, err := activitysink.NewRedisBus(rdb, cfg.Redis.Channel, a.Log)
		if err != nil {
			_ = rdb.Close()
			return err
		}
		a.Bus = bus
		sinks = append(sinks, bus)
	}
	a.Recorder = activitysink.NewFanout(sinks...)

	graphClient, err := neo4jdb.New(ctx, cfg.Neo4j.toClient(), a.Log)
	if err != nil {
		return fmt.Errorf("init neo4j: %w", err)
	}
	a.Graph = graphClient

	hooks := aggregates.ChainHooks(aggregates.NewObservabilityHooks(a.Metrics), aggregates.NewLogHooks(a.Log))
	var runner aggregates.TxRunner
	if store.Driver() == db.DriverPostgres {
		runner = aggregates.NewGormTxRunner(gdb, aggregates.WithIsolation(sql.LevelReadCommitted))
	}
	aggregate := aggregates.NewPromptFamilyAggregate(aggregates.PromptFamilyAggregateDeps{
		Base: aggregates.BaseDeps{
			DB:             gdb,
			Log:            a.Log,
			Runner:         runner,
			Hooks:          hooks,
			TxTimeout:      cfg.Tx.Timeout,
			MaxAttempts:    cfg.Tx.MaxAttempts,
			RetryBaseDelay: cfg.Tx.RetryBaseDelay,
		},
		Versions: a.Repos.Versions,
		Projects: a.Repos.Projects,
		Family:   a.Family,
		Recorder: a.Recorder,
	})
	a.Prompts = services.NewPromptVersionService(a.Log, a.Repos, a.Family, aggregate, nil)
	a.Projects = services.NewProjectService(gdb, a.Log, a.Repos.Projects, a.Recorder)
	return nil
}

func openStore(cfg DBConfig, log *logger.Logger) (*db.Service, error) {
	switch cfg.Driver {
	case db.DriverPostgres:
		s, err := db.NewPostgresService(cfg.Postgres.toDB(), log)
		if err != nil {
			return nil, fmt.Errorf("init postgres: %w", err)
		}
		return s, nil
	case db.DriverSQLite:
		s, err := db.NewSQLiteService(cfg.SQLitePath, log)
		if err != nil {
			return nil, fmt.Errorf("init sqlite: %w", err)
		}
		return s, nil
	}
	return nil, fmt.Errorf("unknown db driver %q", cfg.Driver)
}

// Start launches background collectors and the metrics endpoint.
func (a *App) Start(ctx context.Context) {
	if a == nil || a.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	a.cancel = cancel
	if a.Metrics == nil {
		return
	}
	a.Metrics.StartServer(ctx, a.Log, a.Cfg.Metrics.Addr)
	a.Metrics.StartDBCollector(ctx, a.Log, a.Store.DB(), a.Cfg.Metrics.ScrapeInterval)
	if a.Bus != nil {
		a.Metrics.StartRedisCollector(ctx, a.Log, a.Bus.Client(), a.Cfg.Metrics.ScrapeInterval)
	}
}

// NewRelay builds the bus-to-lineage relay. Both Redis and Neo4j must be
// configured.
func (a *App) NewRelay(ctx context.Context) (*activitysink.Relay, error) {
	if a.Bus == nil {
		return nil, errors.New("relay requires REDIS_ADDR")
	}
	if a.Graph == nil {
		return nil, errors.New("relay requires NEO4J_URI")
	}
	sink := activitysink.NewLineageRecorder(ctx, a.Graph, a.Log)
	return activitysink.NewRelay(a.Bus, sink, a.Metrics, a.Log), nil
}

func (a *App) Close() {
	if a == nil {
		return
	}
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
	ctx := context.Background()
	if a.Bus != nil {
		if err := a.Bus.Close(); err != nil {
			a.Log.Warn("redis close failed", "error", err)
		}
	}
	if a.Graph != nil {
		if err := a.Graph.Close(ctx); err != nil {
			a.Log.Warn("neo4j close failed", "error", err)
		}
	}
	if a.Store != nil {
		if err := a.Store.Close(); err != nil {
			a.Log.Warn("db close failed", "error", err)
		}
	}
	if a.otelShutdown != nil {
		_ = a.otelShutdown(ctx)
	}
	if a.Log != nil {
		a.Log.Sync()
	}
}
