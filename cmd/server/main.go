package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/mycine-gamification/internal/config"
	"github.com/mycine-gamification/internal/handler"
	"github.com/mycine-gamification/internal/kafka"
	"github.com/mycine-gamification/internal/logger"
	"github.com/mycine-gamification/internal/postgres"
	"github.com/mycine-gamification/internal/redis"
	"github.com/mycine-gamification/internal/service"
	"github.com/mycine-gamification/internal/websocket"
	"github.com/mycine-gamification/internal/worker"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	flag.Parse()

	// .env is optional; real deployments set the environment directly
	envErr := godotenv.Load()

	cfg, cfgErr := config.Load(*configPath)
	if cfgErr != nil {
		cfg = config.DefaultConfig()
		cfg.Auth.JWTSecret = os.Getenv("MYCINE_JWT_SECRET")
	}

	log, err := logger.New(cfg.Log.Mode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if envErr != nil {
		log.Debug("no .env file loaded", "error", envErr)
	}
	if cfgErr != nil {
		log.Warn("failed to load config file, using defaults", "path", *configPath, "error", cfgErr)
		if err := cfg.Validate(); err != nil {
			log.Fatal("invalid default configuration", "error", err)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	log.Info("connecting to PostgreSQL", "host", cfg.Postgres.Host, "database", cfg.Postgres.Database)
	repo, err := postgres.NewRepository(ctx, &cfg.Postgres, log)
	if err != nil {
		log.Fatal("failed to connect to PostgreSQL", "error", err)
	}
	defer repo.Close()

	if err := repo.RunMigrations(ctx); err != nil {
		log.Fatal("failed to run migrations", "error", err)
	}

	log.Info("connecting to Redis", "addr", cfg.Redis.Addr)
	redisClient, err := redis.NewClient(ctx, &cfg.Redis)
	if err != nil {
		log.Fatal("failed to connect to Redis", "error", err)
	}
	ranking := redis.NewLeaderboard(redisClient, log)
	defer ranking.Close()

	hub := websocket.NewHub(log, cfg.Server.AllowedOrigins)
	go hub.Run()

	progression := service.NewProgressionService(repo, ranking, hub, log)
	achievements := service.NewAchievementService(repo, repo, hub, log)
	challenges := service.NewChallengeService(repo, progression, achievements, hub, log)
	leaderboard := service.NewLeaderboardService(ranking, repo, repo, &cfg.Leaderboard, log)
	activity := service.NewActivityService(progression, challenges, achievements, log)

	svc := handler.Services{
		Progression:  progression,
		Challenges:   challenges,
		Achievements: achievements,
		Reviews:      service.NewReviewService(repo, progression, challenges, achievements, log),
		Profiles:     service.NewProfileService(repo, progression, achievements, ranking, log),
		Leaderboard:  leaderboard,
		Admin:        service.NewAdminService(repo, repo, log),
	}

	// Rebuild the ranking cache from the ledger on startup
	syncWorker := worker.NewSyncWorker(leaderboard, &cfg.Sync, log)
	if err := syncWorker.RunOnce(ctx); err != nil {
		log.Warn("failed to rebuild leaderboard on startup", "error", err)
	}
	if cfg.Sync.Enabled {
		if err := syncWorker.Start(ctx); err != nil {
			log.Fatal("failed to start sync worker", "error", err)
		}
	}

	var resetScheduler *worker.ResetScheduler
	if cfg.Scheduler.Enabled {
		resetScheduler, err = worker.NewResetScheduler(challenges, &cfg.Scheduler, log)
		if err != nil {
			log.Fatal("failed to create reset scheduler", "error", err)
		}
		resetScheduler.Start()
	}

	var consumer *kafka.Consumer
	if cfg.Kafka.Enabled {
		consumer, err = kafka.NewConsumer(&cfg.Kafka, activity, log)
		if err != nil {
			log.Warn("failed to create kafka consumer, continuing without kafka", "error", err)
		} else if err := consumer.Start(); err != nil {
			log.Warn("failed to start kafka consumer, continuing without kafka", "error", err)
			consumer = nil
		}
	}

	api := handler.NewHandler(svc, hub, cfg, log)
	api.AddReadinessCheck("postgres", repo.Ping)
	api.AddReadinessCheck("redis", ranking.Ping)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      api.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("starting HTTP server", "port", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("HTTP server error", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("failed to shutdown server", "error", err)
	}

	hub.Stop()

	if consumer != nil {
		if err := consumer.Stop(); err != nil {
			log.Error("failed to stop kafka consumer", "error", err)
		}
	}

	if resetScheduler != nil {
		if err := resetScheduler.Stop(); err != nil {
			log.Error("failed to stop reset scheduler", "error", err)
		}
	}

	if err := syncWorker.Stop(); err != nil {
		log.Error("failed to stop sync worker", "error", err)
	}

	log.Info("server stopped")
}
