package main

import (
	"context"
	"fmt"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	feedbackAuth "github.com/MrEthical07/feedbackAuth"
	"github.com/MrEthical07/feedbackAuth/internal/logging"
	"github.com/MrEthical07/feedbackAuth/internal/settings"
	"github.com/MrEthical07/feedbackAuth/metrics"
	"github.com/MrEthical07/feedbackAuth/store/memory"
	"github.com/MrEthical07/feedbackAuth/store/postgres"
)

// app is everything a command needs, with one teardown.
type app struct {
	settings *settings.Settings
	logger   *logrus.Logger
	engine   *feedbackAuth.Engine
	metrics  *metrics.Registry
	closers  []func()
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func newApp(ctx context.Context, configFile string, embeddedRedis bool) (_ *app, err error) {
	s, err := settings.Load(configFile)
	if err != nil {
		return nil, err
	}
	if embeddedRedis {
		s.Redis.Embedded = true
	}

	logger, err := logging.New(s.Logging)
	if err != nil {
		return nil, err
	}
	a := &app{settings: s, logger: logger, metrics: metrics.NewRegistry("feedback")}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	cfg, err := s.EngineConfig()
	if err != nil {
		return nil, fmt.Errorf("auth config: %w", err)
	}

	rdb, err := a.redis(ctx)
	if err != nil {
		return nil, err
	}

	users, err := a.userStore(ctx)
	if err != nil {
		return nil, err
	}

	sinks := []feedbackAuth.AuditSink{}
	if s.Audit.Log {
		sinks = append(sinks, feedbackAuth.NewLogSink(logger.WithField("component", "audit")))
	}

	builder := feedbackAuth.New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithUserStore(users).
		WithLogger(logger.WithField("component", "engine")).
		WithMetrics(a.metrics)
	if len(sinks) > 0 {
		builder = builder.WithAuditSink(feedbackAuth.MultiAuditSink(sinks...))
	}

	a.engine, err = builder.Build()
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, a.engine.Close)
	a.metrics.WatchAuditDrops(a.engine.AuditDropped, a.engine.AuditDroppedCritical)
	return a, nil
}

func (a *app) redis(ctx context.Context) (redis.UniversalClient, error) {
	opts := &redis.Options{
		Addr:     a.settings.Redis.Addr,
		Password: a.settings.Redis.Password,
		DB:       a.settings.Redis.DB,
	}
	if a.settings.Redis.Embedded {
		mr, err := miniredis.Run()
		if err != nil {
			return nil, fmt.Errorf("embedded redis: %w", err)
		}
		a.closers = append(a.closers, mr.Close)
		opts = &redis.Options{Addr: mr.Addr()}
		a.logger.WithField("addr", mr.Addr()).Warn("using embedded redis; sessions are lost on exit")
	}

	rdb := redis.NewClient(opts)
	a.closers = append(a.closers, func() { _ = rdb.Close() })
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("%w: redis: %v", feedbackAuth.ErrStoreUnavailable, err)
	}
	return rdb, nil
}

func (a *app) userStore(ctx context.Context) (feedbackAuth.UserStore, error) {
	if a.settings.Postgres.DSN == "" {
		a.logger.Warn("no postgres dsn configured; using in-memory user store")
		return memory.New(), nil
	}

	store, err := postgres.Open(ctx, a.settings.Postgres.DSN)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, func() { _ = store.Close() })
	if a.settings.Postgres.Migrate {
		if err := store.Migrate(ctx); err != nil {
			return nil, err
		}
	}
	return store, nil
}
