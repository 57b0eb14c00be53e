package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/skatehubba/skate-core/internal/config"
	"github.com/skatehubba/skate-core/internal/handler"
	"github.com/skatehubba/skate-core/internal/kafka"
	"github.com/skatehubba/skate-core/internal/metrics"
	"github.com/skatehubba/skate-core/internal/postgres"
	"github.com/skatehubba/skate-core/internal/redis"
	"github.com/skatehubba/skate-core/internal/service"
	"github.com/skatehubba/skate-core/internal/worker"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// config.yaml may reference variables from .env
	if err := godotenv.Load(); err != nil {
		logger.Debug("no .env file found, reading environment directly")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Warn("failed to load config file, using defaults", "error", err)
		cfg = config.DefaultConfig()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger.Info("connecting to Redis", "addr", cfg.Redis.Addr)
	store, err := redis.NewStore(&cfg.Redis, logger)
	if err != nil {
		logger.Error("failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	defer store.Close()
	logger.Info("connected to Redis")

	logger.Info("connecting to PostgreSQL", "host", cfg.Postgres.Host, "database", cfg.Postgres.Database)
	repo, err := postgres.NewRepository(&cfg.Postgres, logger)
	if err != nil {
		logger.Error("failed to connect to PostgreSQL", "error", err)
		os.Exit(1)
	}
	defer repo.Close()
	logger.Info("connected to PostgreSQL")

	if err := repo.RunMigrations(ctx); err != nil {
		logger.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	metricsManager := metrics.NewManager()
	txRunner := service.NewTxRunner(&cfg.Voting, metricsManager, logger)

	gameService := service.NewGameService(store, repo, repo, txRunner, &cfg.Game, metricsManager, logger)
	votingService := service.NewVotingService(store, repo, txRunner, metricsManager, logger)
	queueService := service.NewQueueService(store, &cfg.Voting, metricsManager, logger)
	cooldownService := service.NewCooldownService(store, logger)
	leaderboardService := service.NewLeaderboardService(store, repo, &cfg.Game, logger)
	playerService := service.NewPlayerService(repo, logger)

	syncWorker := worker.NewSyncWorker(store, repo, &cfg.Sync, logger)

	logger.Info("restoring player stats from database")
	if err := syncWorker.SyncFromDatabase(ctx); err != nil {
		logger.Warn("failed to restore stats on startup", "error", err)
	}

	if cfg.Sync.Enabled {
		if err := syncWorker.Start(ctx); err != nil {
			logger.Error("failed to start sync worker", "error", err)
			os.Exit(1)
		}
	}

	expiryWorker := worker.NewExpiryWorker(gameService, &cfg.Game, logger)
	if cfg.Game.ExpiryEnabled {
		if err := expiryWorker.Start(ctx); err != nil {
			logger.Error("failed to start expiry worker", "error", err)
			os.Exit(1)
		}
	}

	// Votes may also arrive over Kafka from producers holding the producer token
	var voteConsumer *kafka.Consumer
	if cfg.Kafka.Enabled {
		logger.Info("initializing Kafka vote consumer",
			"brokers", cfg.Kafka.Brokers,
			"topic", cfg.Kafka.Topic,
		)
		voteConsumer, err = kafka.NewConsumer(&cfg.Kafka, votingService, logger)
		if err != nil {
			logger.Warn("failed to create Kafka consumer, continuing without Kafka", "error", err)
			voteConsumer = nil
		} else if err := voteConsumer.Start(); err != nil {
			logger.Warn("failed to start Kafka consumer, continuing without Kafka", "error", err)
			voteConsumer = nil
		}
	}

	httpHandler := handler.NewHandler(handler.Services{
		Games:       gameService,
		Voting:      votingService,
		Queue:       queueService,
		Cooldowns:   cooldownService,
		Leaderboard: leaderboardService,
		Players:     playerService,
		Checks: map[string]handler.Checker{
			"redis":    store.Ping,
			"postgres": repo.Ping,
		},
	}, &cfg.Server, metricsManager, logger)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      httpHandler.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		logger.Info("starting HTTP server", "port", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown server", "error", err)
	}

	if voteConsumer != nil {
		if err := voteConsumer.Stop(); err != nil {
			logger.Error("failed to stop Kafka consumer", "error", err)
		}
	}

	if err := expiryWorker.Stop(); err != nil {
		logger.Error("failed to stop expiry worker", "error", err)
	}

	// Stop flushes a final stats snapshot to PostgreSQL
	if err := syncWorker.Stop(); err != nil {
		logger.Error("failed to stop sync worker", "error", err)
	}

	logger.Info("server stopped")
}
