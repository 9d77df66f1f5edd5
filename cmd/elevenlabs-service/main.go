// main package for the elevenlabs-service
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/book-expert/logger"
	"github.com/nats-io/nats.go"

	"github.com/book-expert/elevenlabs-service/internal/archive"
	"github.com/book-expert/elevenlabs-service/internal/config"
	"github.com/book-expert/elevenlabs-service/internal/core"
	"github.com/book-expert/elevenlabs-service/internal/elevenlabs"
	"github.com/book-expert/elevenlabs-service/internal/server"
	"github.com/book-expert/elevenlabs-service/internal/worker"
)

const (
	initializeTimeout = 30 * time.Second
	shutdownTimeout   = 15 * time.Second
	readHeaderTimeout = 10 * time.Second
)

func setupLogger(logPath string) (*logger.Logger, error) {
	log, err := logger.New(logPath, "elevenlabs-service.log")
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	return log, nil
}

func run() error {
	// 1. Create a temporary logger for the bootstrap process
	bootstrapLog, err := setupLogger(os.TempDir())
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Failed to create bootstrap logger: %v\n", err)

		return err
	}

	// 2. Load configuration using the central configurator. A missing or
	// placeholder API key aborts here, before any listener is opened.
	cfg, err := config.Load(bootstrapLog)
	if err != nil {
		bootstrapLog.Error("Failed to load configuration: %v", err)

		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// 3. Initialize the final logger based on the loaded configuration
	finalLog, err := setupLogger(cfg.Paths.BaseLogsDir)
	if err != nil {
		bootstrapLog.Error("Failed to create final logger: %v", err)

		return fmt.Errorf("failed to create final logger: %w", err)
	}

	defer func() {
		closeErr := finalLog.Close()
		if closeErr != nil {
			fmt.Fprintf(os.Stderr, "error closing final logger: %v\n", closeErr)
		}
	}()

	return serve(cfg, finalLog)
}

func serve(cfg *config.Config, log *logger.Logger) error {
	client := elevenlabs.New(
		cfg.ElevenLabs.BaseURL,
		cfg.ElevenLabs.APIKey,
		time.Duration(cfg.ElevenLabs.TimeoutSeconds)*time.Second,
		log,
	)

	initCtx, cancelInit := context.WithTimeout(context.Background(), initializeTimeout)
	defer cancelInit()

	err := client.Initialize(initCtx)
	if err != nil {
		return fmt.Errorf("failed to initialize ElevenLabs client: %w", err)
	}

	audioArchive, err := setupArchive(cfg, log)
	if err != nil {
		return err
	}

	facade := server.New(server.Options{
		Provider:        client,
		Pool:            worker.New(cfg.ElevenLabs.MaxConcurrentRequests),
		Archive:         audioArchive,
		Log:             log,
		DefaultVoiceID:  cfg.ElevenLabs.DefaultVoiceID,
		DefaultTTSModel: cfg.ElevenLabs.DefaultTTSModel,
		DefaultSTTModel: cfg.ElevenLabs.DefaultSTTModel,
		AllowDegraded:   cfg.STT.AllowDegraded,
	})

	httpServer := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           facade.Router(),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	return listenUntilSignaled(httpServer, log)
}

// setupArchive builds the optional NATS audio archive. An empty NATS URL
// disables the feature.
func setupArchive(cfg *config.Config, log *logger.Logger) (core.AudioArchive, error) {
	if cfg.NATS.URL == "" {
		return nil, nil
	}

	natsConnection, err := nats.Connect(cfg.NATS.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS at %s: %w", cfg.NATS.URL, err)
	}

	jetstreamContext, err := natsConnection.JetStream()
	if err != nil {
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	audioArchive, err := archive.New(
		natsConnection,
		jetstreamContext,
		cfg.NATS.AudioObjectStoreBucket,
		cfg.NATS.AudioChunkCreatedSubject,
		log,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create audio archive: %w", err)
	}

	log.Info("Audio archive enabled, bucket: %s", cfg.NATS.AudioObjectStoreBucket)

	return audioArchive, nil
}

// listenUntilSignaled serves until SIGINT or SIGTERM, then drains in-flight
// requests within the shutdown timeout.
func listenUntilSignaled(httpServer *http.Server, log *logger.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)

	go func() {
		log.System("Listening on %s", httpServer.Addr)
		serveErr <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}

		return nil
	case <-ctx.Done():
	}

	log.System("Shutdown signal received, draining requests")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	err := httpServer.Shutdown(shutdownCtx)
	if err != nil {
		return fmt.Errorf("failed to shut down cleanly: %w", err)
	}

	return nil
}

func main() {
	err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Service exited with error: %v\n", err)
		os.Exit(1)
	}
}
