// Package main provides a CLI that follows the live headcount stream and logs each snapshot.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/mhp-app/backend/internal/models"
	"github.com/mhp-app/backend/pkg/headcountclient"
)

func main() {
	var (
		baseURL string
		token   string
		date    string
		team    string
		retry   time.Duration
		verbose bool
	)
	flag.StringVar(&baseURL, "url", envOr("MHP_API_URL", "http://localhost:8080"), "API base URL")
	flag.StringVar(&token, "token", os.Getenv("MHP_TOKEN"), "access token (default $MHP_TOKEN)")
	flag.StringVar(&date, "date", "", "date to watch, YYYY-MM-DD (default: today on the server)")
	flag.StringVar(&team, "team", "", "narrow to one team (admins only)")
	flag.DurationVar(&retry, "retry", 0, "fixed reconnect delay (default: server advertised, else 5s)")
	flag.BoolVar(&verbose, "v", false, "log heartbeats and state changes")
	flag.Parse()

	logger := newLogger(verbose)
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client, err := headcountclient.New(headcountclient.Options{
		BaseURL:    baseURL,
		Token:      token,
		Date:       date,
		Team:       team,
		RetryDelay: retry,
		Logger:     logger,
		OnState: func(s headcountclient.State) {
			logger.Info("stream state", zap.Stringer("state", s))
		},
		OnEvent: func(ev headcountclient.Event) {
			handleEvent(logger, ev)
		},
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}
	if err := client.Start(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	<-ctx.Done()
	client.Close()
}

func handleEvent(logger *zap.Logger, ev headcountclient.Event) {
	switch ev.Name {
	case "headcount":
		var agg models.HeadcountAggregate
		if err := ev.Decode(&agg); err != nil {
			logger.Warn("undecodable headcount", zap.Error(err))
			return
		}
		fields := []zap.Field{
			zap.String("date", agg.Date.String()),
			zap.Int("total_users", agg.TotalUsers),
			zap.Int("total_participating", agg.TotalParticipating),
		}
		meals := make([]string, 0, len(agg.Meals))
		for mt := range agg.Meals {
			meals = append(meals, string(mt))
		}
		sort.Strings(meals)
		for _, mt := range meals {
			fields = append(fields, zap.Int(mt, agg.Meals[models.MealType(mt)].OptedIn))
		}
		logger.Info("headcount", fields...)
	case "announcement":
		var a models.Announcement
		if err := ev.Decode(&a); err != nil {
			logger.Warn("undecodable announcement", zap.Error(err))
			return
		}
		logger.Info("announcement", zap.String("title", a.Title), zap.String("body", a.Body))
	case "heartbeat":
		logger.Debug("heartbeat")
	default:
		logger.Debug("event", zap.String("name", ev.Name))
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func newLogger(verbose bool) *zap.Logger {
	config := zap.NewProductionConfig()
	config.Encoding = "console"
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if verbose {
		config.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	logger, _ := config.Build()
	return logger
}
