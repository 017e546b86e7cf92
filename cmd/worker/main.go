package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/flicket/backend/internal/generation"
	"github.com/flicket/backend/internal/models"
	"github.com/flicket/backend/internal/mux"
	"github.com/flicket/backend/internal/repositories"
	"github.com/flicket/backend/internal/services"
	"github.com/flicket/backend/internal/storage"
	"github.com/flicket/backend/internal/workflow"
	"github.com/flicket/backend/libs/config"
	"github.com/flicket/backend/libs/logger"
	_ "github.com/go-sql-driver/mysql"
	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v\n", err)
	}

	// Initialize logger
	if err := logger.Init(cfg.Logging.Level); err != nil {
		log.Fatalf("Failed to initialize logger: %v\n", err)
	}
	defer logger.Sync()

	logger.Logger.Info("Starting Flicket Worker")

	// Connect to database
	db, err := connectDB(cfg.DSN())
	if err != nil {
		logger.Logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	// Initialize storage
	thumbnailStorage, err := storage.NewS3Storage(context.Background(), cfg.S3, logger.Logger)
	if err != nil {
		logger.Logger.Fatal("Failed to initialize storage", zap.Error(err))
	}

	// Initialize repositories and clients
	videoRepo := repositories.NewVideoRepository(db)
	runRepo := repositories.NewGenerationRunRepository(db)
	muxClient := mux.NewClient(cfg.Mux)
	generator := generation.NewClient(cfg.Generation)

	generationService := services.NewGenerationService(videoRepo, runRepo, muxClient, generator, thumbnailStorage, logger.Logger)

	// Create Asynq server
	srv := asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:     cfg.Redis.Addr(),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		},
		asynq.Config{
			Queues: map[string]int{
				workflow.Queue: 1,
			},
		},
	)

	worker := NewWorker(logger.Logger, generationService, cfg.SMTP)

	// Register task handlers
	taskMux := asynq.NewServeMux()
	for _, w := range []models.Workflow{models.WorkflowTitle, models.WorkflowDescription, models.WorkflowThumbnail} {
		taskMux.HandleFunc(workflow.TaskType(w), worker.HandleWorkflow(w))
	}

	// Start worker
	go func() {
		if err := srv.Run(taskMux); err != nil {
			logger.Logger.Fatal("Failed to start worker", zap.Error(err))
		}
	}()

	logger.Logger.Info("Worker started")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Logger.Info("Shutting down worker...")
	srv.Shutdown()
	logger.Logger.Info("Worker exited")
}

// connectDB connects to the database
func connectDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}
