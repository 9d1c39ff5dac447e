package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/guardhouse/guardhouse/internal/core/config"
	"github.com/guardhouse/guardhouse/internal/core/db"
	"github.com/guardhouse/guardhouse/internal/core/gateway"
	"github.com/guardhouse/guardhouse/internal/engine"
	"github.com/guardhouse/guardhouse/internal/store"
)

const Version = "0.1.0"

var moderateCmd = &cobra.Command{
	Use:   "moderate",
	Short: "Start the moderation daemon",
	RunE:  runModerate,
}

func init() {
	rootCmd.AddCommand(moderateCmd)
	moderateCmd.Flags().String("nats-url", "", "NATS server URL")
	moderateCmd.Flags().String("redis-addr", "", "redis address for shared cooldowns and cache invalidation")
	moderateCmd.Flags().String("metrics-addr", "", "metrics listen address")
}

func runModerate(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if dbURL != "" {
		cfg.DatabaseURL = dbURL
	}
	if cmd.Flags().Changed("nats-url") {
		cfg.NATSURL, _ = cmd.Flags().GetString("nats-url")
	}
	if cmd.Flags().Changed("redis-addr") {
		cfg.RedisAddr, _ = cmd.Flags().GetString("redis-addr")
	}
	if cmd.Flags().Changed("metrics-addr") {
		cfg.MetricsAddr, _ = cmd.Flags().GetString("metrics-addr")
	}

	logger, err := newLogger()
	if err != nil {
		return err
	}
	defer logger.Sync()

	database, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer database.Close()

	if err := db.MigrateUp(database); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	queries, err := db.LoadQueries(database)
	if err != nil {
		return fmt.Errorf("failed to load queries: %w", err)
	}
	ruleStore := store.New(queries)

	conn, err := nats.Connect(cfg.NATSURL,
		nats.Name("guardhouse"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second))
	if err != nil {
		return fmt.Errorf("failed to connect to NATS: %w", err)
	}
	defer conn.Drain()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Cooldown state lives in redis when an address is configured, so
	// replicas behind the same queue group suppress consistently. Without
	// redis each replica tracks its own cooldowns and rule-change
	// invalidation falls back to the cache TTL.
	var cooldowns engine.CooldownStore
	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: config.RedisPassword(),
		})
		defer redisClient.Close()
		if err := redisClient.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("failed to ping redis: %w", err)
		}
		cooldowns = engine.NewRedisCooldownStore(redisClient, cfg.CooldownRetention)
	} else {
		memStore := engine.NewMemCooldownStore()
		go memStore.RunSweeper(ctx, cfg.CooldownSweepInterval, cfg.CooldownRetention)
		cooldowns = memStore
	}

	cache := engine.NewRuleCache(ruleStore, logger, cfg.CacheTTL)
	directory := gateway.NewDirectory(conn, cfg.DirectorySubject, cfg.DirectoryTimeout)
	commander := gateway.NewCommander(conn, cfg.ActionSubjectPrefix, ruleStore)
	executor := engine.NewActionExecutor(commander, logger)
	eng := engine.New(logger, cache, cooldowns, directory, executor, ruleStore)

	if redisClient != nil {
		go func() {
			if err := engine.RunInvalidationSubscriber(ctx, redisClient, cfg.InvalidationChannel, eng, logger); err != nil {
				logger.Error("invalidation subscriber exited", zap.Error(err))
			}
		}()
	}

	metricsServer := &http.Server{Addr: cfg.MetricsAddr, Handler: promhttp.Handler()}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", zap.Error(err))
		}
	}()

	consumer := gateway.NewConsumer(conn, eng, logger, cfg.EventSubject, cfg.QueueGroup)

	logger.Info("guardhouse moderation daemon started",
		zap.String("version", Version),
		zap.String("subject", cfg.EventSubject),
		zap.String("db", cfg.DatabaseURL))

	errChan := make(chan error, 1)
	go func() {
		errChan <- consumer.Run(ctx)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return err
	case <-sigChan:
		logger.Info("shutting down gracefully")
		cancel()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		metricsServer.Shutdown(shutdownCtx)
		return <-errChan
	}
}
