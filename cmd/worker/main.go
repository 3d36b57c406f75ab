// Package main runs the background job worker that publishes scheduled announcements.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/mhp-app/backend/config"
	"github.com/mhp-app/backend/internal/announcements"
	"github.com/mhp-app/backend/internal/realtime"
	"github.com/mhp-app/backend/internal/store/postgres"
	"github.com/mhp-app/backend/internal/worker"
	"github.com/mhp-app/backend/pkg/database"
	"github.com/mhp-app/backend/pkg/metrics"
	"github.com/mhp-app/backend/pkg/queue"
	"github.com/mhp-app/backend/pkg/redis"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}
	if cfg.Store.Driver != config.StorePostgres {
		logger.Fatal("worker needs the postgres store", zap.String("store", cfg.Store.Driver))
	}
	if !cfg.Redis.Enabled() {
		logger.Fatal("worker needs REDIS_ADDR")
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), database.PoolOptions{
		MaxConns:        int32(cfg.Database.MaxConns),
		MaxConnLifetime: cfg.Database.MaxConnLifetime,
	}, logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	rdb, err := redis.NewClient(ctx, redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
	}, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	// The worker has no live subscribers; its hub only relays announcements
	// over Redis to the API instances.
	hub := realtime.NewHub(nil, logger, m, realtime.NewRedisPubSub(rdb.Client, logger), nil)
	defer hub.Close()

	jobQueue := queue.NewQueue(rdb.Client, logger)
	annSvc := announcements.NewService(postgres.New(pool), hub, jobQueue, logger)
	processor := worker.NewAnnouncementPublisher(jobQueue, annSvc, m, logger)
	processor.SetPoll(cfg.Worker.Poll)

	metricsSrv := &http.Server{
		Addr:              ":" + getEnv("WORKER_METRICS_PORT", "9091"),
		Handler:           promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server", zap.Error(err))
		}
	}()

	workerCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		defer close(done)
		processor.Run(workerCtx)
	}()
	logger.Info("worker started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	cancel()
	shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
	defer stop()
	_ = metricsSrv.Shutdown(shutdownCtx)
	select {
	case <-done:
	case <-shutdownCtx.Done():
	}
	logger.Info("worker stopped")
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
