package main

import (
	"context"
	"database/sql"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hearthctl/ruleengine/adapter/cli/rule"
	"github.com/hearthctl/ruleengine/internal/ruleengine/application"
	"github.com/hearthctl/ruleengine/internal/ruleengine/config"
	"github.com/hearthctl/ruleengine/internal/ruleengine/domain"
	"github.com/hearthctl/ruleengine/internal/ruleengine/infrastructure/clock"
	"github.com/hearthctl/ruleengine/internal/ruleengine/infrastructure/dispatch"
	"github.com/hearthctl/ruleengine/internal/ruleengine/infrastructure/eventbus"
	"github.com/hearthctl/ruleengine/internal/ruleengine/infrastructure/logsink"
	"github.com/hearthctl/ruleengine/internal/ruleengine/infrastructure/loopguard"
	"github.com/hearthctl/ruleengine/internal/ruleengine/infrastructure/migrations"
	"github.com/hearthctl/ruleengine/internal/ruleengine/infrastructure/persistence"
	rtesting "github.com/hearthctl/ruleengine/internal/ruleengine/ports/testing"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		cancel()
	}()

	cfg, err := config.Load()
	if err != nil {
		logger.Warn("failed to load config, using defaults", "error", err)
		cfg = &config.Config{AppEnv: "development"}
	}
	if cfg.LogLevel == "debug" {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}

	store, closeStore, err := openRuleStore(ctx, cfg)
	if err != nil {
		logger.Error("failed to open rule store", "error", err)
		os.Exit(1)
	}
	defer closeStore()

	// ThingManager is a named port (§1, §6.1): concrete device drivers live
	// outside this engine. The in-memory fake stands in as the reference
	// implementation for standalone operation; a real deployment wires a
	// client to the actual Thing Manager service here instead.
	things := rtesting.NewThingManager()

	dispatcher := dispatch.NewDispatcher(things, dispatch.Config{
		MaxRequests:      3,
		Interval:         cfg.ActionBreakerInterval,
		Timeout:          cfg.ActionBreakerTimeout,
		FailureThreshold: cfg.ActionBreakerThreshold,
	}, logger)

	sink := logsink.NewSlogSink(logger)

	engine := application.NewEngine(store, things, dispatcher, sink, application.Config{
		ActionTimeout: cfg.ActionTimeout,
	})
	if err := engine.Load(ctx); err != nil {
		logger.Error("failed to load rules", "error", err)
		os.Exit(1)
	}

	ticks := clock.NewTickerTimeManager(cfg.TickInterval)
	ticks.Subscribe(func(tick time.Time) {
		if err := engine.HandleTick(ctx, tick); err != nil {
			logger.Error("tick handling failed", "error", err)
		}
	})
	go ticks.Run(cfg.TickInterval)

	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			logger.Warn("failed to parse redis url, continuing with the in-memory loop guard only", "error", err)
		} else {
			redisClient := redis.NewClient(opts)
			engine.SetDistributedLoopGuard(loopguard.NewRedisGuard(redisClient, cfg.ActionTimeout))
			defer redisClient.Close()
		}
	}

	if cfg.RabbitMQURL != "" {
		publisher, err := eventbus.NewAMQPPublisher(cfg.RabbitMQURL, logger)
		if err != nil {
			logger.Warn("failed to connect rule event publisher, continuing without it", "error", err)
		} else {
			go publisher.Run(ctx, engine.Events())
			defer publisher.Close()
		}
	}

	rule.SetEngine(engine)

	root := &cobra.Command{Use: "ruleengine", Short: "Reactive home-automation rule engine"}
	root.AddCommand(rule.Cmd)
	if err := root.ExecuteContext(ctx); err != nil {
		logger.Error("command failed", "error", err)
		os.Exit(1)
	}
}

func openRuleStore(ctx context.Context, cfg *config.Config) (store domain.RuleStore, closeFn func(), err error) {
	if cfg.IsPostgres() {
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		if err := migrations.RunPostgres(ctx, pool); err != nil {
			pool.Close()
			return nil, nil, err
		}
		return persistence.NewPostgresRuleStore(pool), pool.Close, nil
	}

	db, err := sql.Open("sqlite", cfg.SQLitePath)
	if err != nil {
		return nil, nil, err
	}
	if err := migrations.RunSQLite(ctx, db); err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	return persistence.NewSQLiteRuleStore(db), func() { _ = db.Close() }, nil
}
