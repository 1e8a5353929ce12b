package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/JamesB-1qbit/Tangelo/internal/clients/scf"
	"github.com/JamesB-1qbit/Tangelo/internal/config"
	"github.com/JamesB-1qbit/Tangelo/internal/database"
	"github.com/JamesB-1qbit/Tangelo/internal/database/repositories"
	"github.com/JamesB-1qbit/Tangelo/internal/events"
	"github.com/JamesB-1qbit/Tangelo/internal/modules/backends"
	"github.com/JamesB-1qbit/Tangelo/internal/modules/workflow"
	"github.com/JamesB-1qbit/Tangelo/internal/scheduler"
	"github.com/JamesB-1qbit/Tangelo/internal/server"
	"github.com/JamesB-1qbit/Tangelo/pkg/logger"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	// Initialize logger
	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})
	logger.SetGlobalLogger(log)

	log.Info().Msg("Starting Tangelo workflow engine")

	// Initialize database
	db, err := database.New(cfg.DatabasePath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer db.Close()

	// Run migrations
	if err := db.Migrate(); err != nil {
		log.Fatal().Err(err).Msg("Failed to run migrations")
	}

	runRepo := repositories.NewRunRepository(db.Conn(), log)
	eventBus := events.NewManager(log)

	// Classical integral solver (mean-field and conventional fragment solves)
	scfClient := scf.NewClient(cfg.SCFServiceURL, 0, log)

	workflowSvc := workflow.NewService(scfClient, scfClient, runRepo, eventBus, backends.Config{
		Name:  cfg.DefaultBackend,
		Shots: cfg.DefaultShots,
		URL:   cfg.RemoteBackendURL,
	}, workflow.Defaults{
		Encoding:              cfg.DefaultEncoding,
		Scheme:                cfg.DefaultScheme,
		MaxIterations:         cfg.MaxIterations,
		Tolerance:             cfg.Tolerance,
		BackendTimeoutSeconds: cfg.BackendTimeout,
	}, log)

	// Initialize scheduler
	sched := scheduler.New(log)
	sched.Start()
	defer sched.Stop()

	// Register background jobs
	probe := scheduler.NewBackendProbeJob(cfg.RemoteBackendURL, log)
	if err := sched.AddJob("@every 1m", probe); err != nil {
		log.Fatal().Err(err).Msg("Failed to register backend probe job")
	}
	cleanup := scheduler.NewCleanupJob(runRepo, 0, 0, log)
	if err := sched.AddJob("@hourly", cleanup); err != nil {
		log.Fatal().Err(err).Msg("Failed to register cleanup job")
	}

	// Initialize HTTP server
	srv := server.New(server.Config{
		Port:     cfg.Port,
		Log:      log,
		DB:       db,
		Config:   cfg,
		Workflow: workflowSvc,
		Events:   eventBus,
		DevMode:  cfg.DevMode,
	})

	// Start server in goroutine
	go func() {
		if err := srv.Start(); err != nil {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	log.Info().Int("port", cfg.Port).Msg("Server started successfully")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
}
