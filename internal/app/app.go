package app

import (
	"context"
	"errors"
	"fmt"

	goredis "github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	redisbus "github.com/yungbote/guildops-backend/internal/clients/redis"
	dataagg "github.com/yungbote/guildops-backend/internal/data/aggregates"
	"github.com/yungbote/guildops-backend/internal/data/db"
	"github.com/yungbote/guildops-backend/internal/data/repos"
	domainagg "github.com/yungbote/guildops-backend/internal/domain/aggregates"
	apphttp "github.com/yungbote/guildops-backend/internal/http"
	"github.com/yungbote/guildops-backend/internal/observability"
	"github.com/yungbote/guildops-backend/internal/platform/logger"
	"github.com/yungbote/guildops-backend/internal/platform/neo4jdb"
	"github.com/yungbote/guildops-backend/internal/services"
)

type Services struct {
	Auth        services.AuthService
	Quest       services.QuestService
	Blueprints  domainagg.BlueprintAggregate
	Assignments domainagg.AssignmentAggregate
	Notifier    services.QuestNotifier
}

type App struct {
	Log      *logger.Logger
	Cfg      Config
	DB       *gorm.DB
	Repos    repos.Set
	Services Services
	Metrics  *observability.Metrics
	Server   *apphttp.Server

	store        *db.Service
	bus          redisbus.ProgressBus
	neo4j        *neo4jdb.Client
	otelShutdown func(context.Context) error
	cancel       context.CancelFunc
}

// OpenStore connects to the configured database and migrates the quest tables.
func OpenStore(log *logger.Logger, cfg Config) (*db.Service, error) {
	store, err := db.Open(cfg.DB, log)
	if err != nil {
		return nil, fmt.Errorf("init db: %w", err)
	}
	if err := store.AutoMigrateAll(); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("db automigrate: %w", err)
	}
	return store, nil
}

func New(ctx context.Context, log *logger.Logger, cfg Config) (*App, error) {
	if log == nil {
		return nil, errors.New("logger required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	tracing := cfg.Tracing
	tracing.ServiceName, tracing.Environment = cfg.ServiceName, cfg.Environment
	otelShutdown := observability.InitOTel(ctx, log, tracing)
	metrics := observability.Init(log, cfg.Metrics)

	store, err := OpenStore(log, cfg)
	if err != nil {
		return nil, err
	}
	a := &App{
		Log:          log,
		Cfg:          cfg,
		DB:           store.DB(),
		Metrics:      metrics,
		store:        store,
		otelShutdown: otelShutdown,
	}

	a.bus, err = redisbus.NewProgressBus(log, redisbus.BusOptions{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		Channel:  cfg.Redis.Channel,
	})
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("init progress bus: %w", err)
	}
	a.neo4j, err = neo4jdb.Open(ctx, log, cfg.Neo4j)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("init neo4j: %w", err)
	}

	a.Repos = repos.NewSet(a.DB, log)
	a.Services = wireServices(log, cfg, a.DB, store.Driver(), a.Repos, metrics, a.bus, a.neo4j)
	a.Server = apphttp.NewServer(wireRouterConfig(log, cfg, a.DB, metrics, a.Services))
	return a, nil
}

func wireServices(log *logger.Logger, cfg Config, gdb *gorm.DB, driver string, rs repos.Set, metrics *observability.Metrics, bus redisbus.ProgressBus, graph *neo4jdb.Client) Services {
	log.Info("Wiring services...")
	base := dataagg.BaseDeps{
		DB:    gdb,
		Log:   log,
		Hooks: dataagg.NewObservabilityHooks(dataagg.HooksOptions{Metrics: metrics, Log: log}),
	}
	if driver == db.DriverPostgres && cfg.DB.WriteAttempts > 1 {
		base.Runner = dataagg.NewRetryingTxRunner(gdb, cfg.DB.WriteAttempts)
	}
	blueprints := dataagg.NewBlueprintAggregate(dataagg.BlueprintAggregateDeps{
		Base:        base,
		Blueprints:  rs.Blueprint,
		Nodes:       rs.Node,
		Links:       rs.Link,
		Assignments: rs.Assignment,
		Progress:    rs.NodeProgress,
	})
	assignments := dataagg.NewAssignmentAggregate(dataagg.AssignmentAggregateDeps{
		Base:        base,
		Blueprints:  rs.Blueprint,
		Nodes:       rs.Node,
		Links:       rs.Link,
		Assignments: rs.Assignment,
		Progress:    rs.NodeProgress,
		Characters:  rs.Character,
	})

	notifier := services.NewQuestNotifier(log, bus, services.NewNeo4jMirror(graph), metrics)

	return Services{
		Auth: services.NewAuthService(log, cfg.JWTSecret, cfg.JWTIssuer),
		Quest: services.NewQuestService(log, services.QuestServiceDeps{
			Repos:       rs,
			Blueprints:  blueprints,
			Assignments: assignments,
			Roles:       services.NewRoleResolver(log, rs.Member),
			Characters:  services.NewCharacterDirectory(rs.Character),
			Notifier:    notifier,
		}),
		Blueprints:  blueprints,
		Assignments: assignments,
		Notifier:    notifier,
	}
}

// Start launches background collectors. They stop when ctx is done or Close is called.
func (a *App) Start(ctx context.Context) {
	if a == nil || a.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	a.Metrics.StartDBCollector(ctx, a.Log, a.DB)
	if rc, ok := a.bus.(interface {
		Client() goredis.UniversalClient
	}); ok {
		a.Metrics.StartRedisCollector(ctx, a.Log, rc.Client())
	}
	a.Metrics.StartServer(ctx, a.Log, a.Cfg.Metrics.Addr)
}

// Run serves HTTP until ctx is done.
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.Server == nil {
		return fmt.Errorf("app not initialized")
	}
	return a.Server.Run(ctx, a.Cfg.HTTPAddr)
}

func (a *App) Close() {
	if a == nil {
		return
	}
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
	if a.bus != nil {
		if err := a.bus.Close(); err != nil {
			a.Log.Warn("progress bus close failed", "error", err)
		}
	}
	if a.neo4j != nil {
		if err := a.neo4j.Close(context.Background()); err != nil {
			a.Log.Warn("neo4j close failed", "error", err)
		}
	}
	if a.otelShutdown != nil {
		if err := a.otelShutdown(context.Background()); err != nil {
			a.Log.Warn("otel shutdown failed", "error", err)
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.Log.Warn("db close failed", "error", err)
		}
	}
	a.Log.Sync()
}
