package main

import (
	"context"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/mhp-app/backend/config"
	"github.com/mhp-app/backend/internal/announcements"
	"github.com/mhp-app/backend/internal/auth"
	"github.com/mhp-app/backend/internal/cutoff"
	"github.com/mhp-app/backend/internal/headcount"
	"github.com/mhp-app/backend/internal/mealconfig"
	"github.com/mhp-app/backend/internal/models"
	"github.com/mhp-app/backend/internal/participation"
	"github.com/mhp-app/backend/internal/realtime"
	"github.com/mhp-app/backend/internal/specialdays"
	"github.com/mhp-app/backend/internal/store"
	"github.com/mhp-app/backend/internal/store/memory"
	"github.com/mhp-app/backend/internal/store/postgres"
	"github.com/mhp-app/backend/internal/teams"
	"github.com/mhp-app/backend/internal/users"
	"github.com/mhp-app/backend/internal/worker"
	"github.com/mhp-app/backend/internal/worklocation"
	"github.com/mhp-app/backend/pkg/database"
	"github.com/mhp-app/backend/pkg/metrics"
	"github.com/mhp-app/backend/pkg/queue"
	"github.com/mhp-app/backend/pkg/redis"
)

// healthCheck probes one dependency.
type healthCheck struct {
	name  string
	check func(ctx context.Context) error
}

// app is the wired server: router, live hub and the optional in-process worker.
type app struct {
	router  *gin.Engine
	hub     *realtime.Hub
	worker  *worker.AnnouncementPublisher
	checks  []healthCheck
	closers []func()
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// newApp connects storage and Redis, builds every service and registers routes.
func newApp(ctx context.Context, cfg *config.Config, logger *zap.Logger, reg *prometheus.Registry) (*app, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &app{}
	ok := false
	defer func() {
		if !ok {
			a.Close()
		}
	}()

	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	st, err := a.openStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	var (
		rdb      *redis.Client
		jobQueue *queue.Queue
		redisPub realtime.Publisher
		redisSub realtime.Subscriber
	)
	if cfg.Redis.Enabled() {
		rdb, err = redis.NewClient(ctx, redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
		}, logger)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() { _ = rdb.Close() })
		a.checks = append(a.checks, healthCheck{name: "redis", check: rdb.Check})
		ps := realtime.NewRedisPubSub(rdb.Client, logger)
		redisPub, redisSub = ps, ps
		jobQueue = queue.NewQueue(rdb.Client, logger)
	} else {
		logger.Info("redis disabled: single-instance fan-out, scheduled announcements unavailable")
	}

	loc, err := cfg.Policy.Location()
	if err != nil {
		return nil, err
	}
	policy := cutoff.New(cfg.Policy.CutoffHour, loc)
	today := func() models.Date { return policy.Today(time.Now()) }

	engine := headcount.NewEngine(st, m, logger)
	hub := realtime.NewHub(engine, logger, m, redisPub, redisSub)
	hub.SetHeartbeat(cfg.Stream.Heartbeat)
	if err := hub.Start(); err != nil {
		return nil, fmt.Errorf("start hub: %w", err)
	}
	a.hub = hub
	a.closers = append(a.closers, hub.Close)

	authSvc := auth.NewService(st, auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpireHours), logger)
	if cfg.Store.SeedAdminEmail != "" {
		if _, err := authSvc.EnsureAdmin(ctx, cfg.Store.SeedAdminEmail, cfg.Store.SeedAdminPassword); err != nil {
			return nil, fmt.Errorf("seed admin: %w", err)
		}
	}

	partSvc := participation.NewService(st, participation.Options{
		Policy:                  policy,
		AllowForceOnBlockedDays: cfg.Policy.AllowForceOnBlockedDays,
		Notifier:                hub,
		Metrics:                 m,
		Logger:                  logger,
	})
	wlSvc := worklocation.NewService(st, partSvc, hub, m, logger)

	var scheduler announcements.Scheduler
	if jobQueue != nil {
		scheduler = jobQueue
	}
	annSvc := announcements.NewService(st, hub, scheduler, logger)
	if jobQueue != nil && cfg.Worker.InProcess {
		a.worker = worker.NewAnnouncementPublisher(jobQueue, annSvc, m, logger)
		a.worker.SetPoll(cfg.Worker.Poll)
	}

	h := handlers{
		auth:          auth.NewHandler(authSvc, logger),
		participation: participation.NewHandler(partSvc),
		mealConfig:    mealconfig.NewHandler(mealconfig.NewService(st, hub, logger)),
		headcount:     headcount.NewHandler(engine, today),
		workLocation:  worklocation.NewHandler(wlSvc),
		specialDays:   specialdays.NewHandler(st, hub, logger),
		users:         users.NewHandler(st, authSvc, hub, logger),
		teams:         teams.NewHandler(st, engine, today),
		announcements: announcements.NewHandler(annSvc),
		stream:        realtime.NewStream(hub, authSvc.Authenticate, today, logger),
	}
	a.router = newRouter(cfg, logger, reg, authSvc, h, a.checks)
	ok = true
	return a, nil
}

func (a *app) openStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (store.Store, error) {
	if cfg.Store.Driver == config.StoreMemory {
		logger.Warn("using in-memory store: data is lost on restart")
		return memory.New(), nil
	}
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), database.PoolOptions{
		MaxConns:        int32(cfg.Database.MaxConns),
		MinConns:        int32(cfg.Database.MinConns),
		MaxConnLifetime: cfg.Database.MaxConnLifetime,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}
	a.closers = append(a.closers, pool.Close)
	a.checks = append(a.checks, healthCheck{name: "postgres", check: pool.Ping})
	if cfg.Database.AutoMigrate {
		if err := database.Migrate(ctx, pool, logger); err != nil {
			return nil, fmt.Errorf("migrate: %w", err)
		}
	}
	return postgres.New(pool), nil
}
