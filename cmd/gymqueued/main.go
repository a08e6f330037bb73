package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gymqueue-backend/config"
	"gymqueue-backend/internal/api"
	"gymqueue-backend/internal/broadcast"
	"gymqueue-backend/internal/clock"
	"gymqueue-backend/internal/db"
	"gymqueue-backend/internal/logging"
	"gymqueue-backend/internal/model"
	"gymqueue-backend/internal/queue"
	"gymqueue-backend/internal/store"
	"gymqueue-backend/internal/sweeper"
	"gymqueue-backend/internal/usage"
	"gymqueue-backend/internal/ws"
)

func main() {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./config/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		slog.Error("failed to load configuration", "path", configPath, "error", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.Log, os.Stdout)
	logger.Info("configuration loaded", "path", configPath)

	policySource, err := queue.ParsePolicySource(cfg.Queue.LatePolicySource)
	if err != nil {
		logger.Error("invalid queue configuration", "error", err)
		os.Exit(1)
	}

	gormDB, err := db.Init(&cfg.Database)
	if err != nil {
		logger.Error("failed to initialize database", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	appStore := store.NewGormStore(gormDB)
	if len(cfg.Catalog) > 0 {
		created, err := store.SeedCatalog(ctx, appStore, catalogItems(cfg.Catalog))
		if err != nil {
			logger.Error("failed to seed equipment catalog", "error", err)
			os.Exit(1)
		}
		logger.Info("equipment catalog seeded", "entries", len(cfg.Catalog), "created", created)
	}
	clk := clock.NewRealClock()
	queueSvc := queue.NewService(appStore, clk, queue.Options{
		LateThreshold: time.Duration(cfg.Queue.LateThresholdMinutes) * time.Minute,
		Grace:         time.Duration(cfg.Queue.GraceMinutes) * time.Minute,
		PolicySource:  policySource,
		Logger:        logger,
	})

	hub := ws.NewHub(logger)
	go hub.Run(ctx)

	workerPool := broadcast.NewWorkerPool(cfg.Broadcast.Workers, queueSvc, hub, logger)
	workerPool.Start(ctx)

	if cfg.Sweeper.Enabled {
		sweep := sweeper.NewService(queueSvc, appStore, clk, workerPool, logger)
		scheduler, err := sweep.Schedule(ctx, cfg.Sweeper.Schedule)
		if err != nil {
			logger.Error("invalid sweeper schedule", "schedule", cfg.Sweeper.Schedule, "error", err)
			os.Exit(1)
		}
		scheduler.Start()
		defer scheduler.Stop()
		logger.Info("sweeper started", "schedule", cfg.Sweeper.Schedule)
	} else {
		logger.Info("sweeper is disabled")
	}

	router := api.NewRouter(api.Dependencies{
		Store:    appStore,
		Queue:    queueSvc,
		Usage:    usage.NewService(appStore, clk),
		Hub:      hub,
		Notifier: workerPool,
	}, cfg.Server, logger)
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		logger.Info("HTTP server starting", "port", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server ListenAndServe", "error", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	<-stop
	logger.Info("shutdown signal received, stopping services")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server Shutdown", "error", err)
	}
	cancel()

	logger.Info("server gracefully stopped")
}

func catalogItems(seeds []config.EquipmentSeed) []model.Equipment {
	items := make([]model.Equipment, 0, len(seeds))
	for _, seed := range seeds {
		items = append(items, model.Equipment{
			Name:     seed.Name,
			Type:     seed.Type,
			GymName:  seed.GymName,
			ImageURL: seed.ImageURL,
		})
	}
	return items
}
