package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/studycat-io/studycat/internal/config"
	"github.com/studycat-io/studycat/internal/db"
	dbMemory "github.com/studycat-io/studycat/internal/db/memory"
	dbMongo "github.com/studycat-io/studycat/internal/db/mongo"
	logpkg "github.com/studycat-io/studycat/internal/logger"
	"github.com/studycat-io/studycat/internal/metrics"
	datasetrepo "github.com/studycat-io/studycat/internal/repository/dataset"
	studyrepo "github.com/studycat-io/studycat/internal/repository/study"
	versionrepo "github.com/studycat-io/studycat/internal/repository/version"
	chiTransport "github.com/studycat-io/studycat/internal/transport/chi"
	datasetuc "github.com/studycat-io/studycat/internal/usecase/dataset"
	healthuc "github.com/studycat-io/studycat/internal/usecase/health"
	searchuc "github.com/studycat-io/studycat/internal/usecase/search"
	studyuc "github.com/studycat-io/studycat/internal/usecase/study"
	"github.com/studycat-io/studycat/internal/version"
)

func main() {
	// Load configuration based on ENV
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting studycat API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("db_driver", cfg.Database.Driver),
	)

	// Create document store based on driver
	var store db.Store
	var mongoStore *dbMongo.Store
	switch cfg.Database.Driver {
	case "mongo":
		mongoStore, err = dbMongo.NewStore(dbMongo.Config{
			URI:      cfg.Database.URI,
			Database: cfg.Database.Database,
		})
		if err != nil {
			logger.Fatal("Failed to create database store", zap.Error(err))
		}
		store = mongoStore
	case "memory":
		store = dbMemory.NewStore()
	default:
		logger.Fatal("Unknown database driver", zap.String("driver", cfg.Database.Driver))
	}
	defer store.Close()

	// Wait for database to be ready
	ctx := context.Background()
	if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
		logger.Fatal("Database not ready", zap.Error(err))
	}
	logger.Info("Connected to database")

	// The text indexes back free-text search; the memory driver scans.
	if mongoStore != nil {
		if err := mongoStore.EnsureTextIndex(ctx, db.CollectionStudies, studyrepo.TextFields); err != nil {
			logger.Fatal("Failed to ensure study text index", zap.Error(err))
		}
		if err := mongoStore.EnsureTextIndex(ctx, db.CollectionDatasets, datasetrepo.TextFields); err != nil {
			logger.Fatal("Failed to ensure dataset text index", zap.Error(err))
		}
	}

	// Register engine metrics explicitly (no init())
	metrics.RegisterEngineMetrics()

	// Create repositories
	studies := studyrepo.New(store)
	versions := versionrepo.New(store)
	datasets := datasetrepo.New(store)

	// Create use case services
	searchSvc := searchuc.New(studies, versions, datasets, logger)
	studySvc := studyuc.New(studies, versions, datasets, logger)
	datasetSvc := datasetuc.New(studies, versions, datasets, logger)
	healthSvc := healthuc.New(store)

	// Create chi server
	server := chiTransport.NewServer(searchSvc, studySvc, datasetSvc, healthSvc, logger)
	handler := server.Routes(chiTransport.ActorMiddleware(cfg.Auth.Tokens))

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}
