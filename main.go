package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ahmad-alkadri/scrubber/internal/config"
	"github.com/ahmad-alkadri/scrubber/internal/logging"
	"github.com/ahmad-alkadri/scrubber/internal/scrub"
	"github.com/ahmad-alkadri/scrubber/internal/services"
	"github.com/dustin/go-humanize"
)

const shutdownTimeout = 15 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Create ConfigManager
	configManager := config.NewConfigManager()
	defer configManager.Stop()
	cfg := configManager.GetConfig()

	logger := logging.Setup(cfg.LogLevel, cfg.LogJSON)
	logger.Info().
		Str("endpoint", cfg.MinioEndpoint).
		Str("bucket", cfg.MinioBucket).
		Bool("ssl", cfg.MinioUseSSL).
		Str("max_upload", humanize.IBytes(uint64(cfg.MaxUploadBytes))).
		Msg("Starting server")

	// Initialize storage service
	storageService, err := services.NewMinioService(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize MinIO service")
	}
	logger.Info().Msg("MinIO service initialized successfully")

	// Create all service dependencies (following dependency injection)
	walker := scrub.NewWalker(
		scrub.WithWorkers(cfg.ArchiveWorkers),
		scrub.WithLogger(logger.With().Str("component", "archive").Logger()),
	)
	cleaningService := NewDefaultCleaningService(
		storageService,
		walker,
		services.NewUUIDGenerator(),
		NewDefaultContentTypeDetector(),
		logger,
	)

	httpHandler := NewHTTPHandler(
		cleaningService,
		services.NewMultipartProcessor("file"),
		NewDefaultFilenameExtractor(),
		NewDefaultResponseFormatter(),
		cfg.MaxUploadBytes,
		logger,
	)

	server := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           httpHandler.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("Server shutdown failed")
		}
	}()

	logger.Info().Str("addr", server.Addr).Msg("Server listening")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal().Err(err).Msg("Server failed")
	}
	<-shutdownDone
	logger.Info().Msg("Server stopped")
}
