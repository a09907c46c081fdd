package main

import (
	"context"
	"flag"
	"io/fs"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"captiond"
	"captiond/internal/api"
	"captiond/internal/config"
	"captiond/internal/events"
	"captiond/internal/pipeline"
	"captiond/internal/storage"
	"captiond/internal/transcribe"
	"captiond/internal/watch"
)

var version = "dev"

func main() {
	startTime := time.Now()

	var overrides config.Overrides
	flag.StringVar(&overrides.EnvFile, "env-file", "", "path to .env file")
	flag.StringVar(&overrides.HTTPAddr, "addr", "", "HTTP listen address")
	flag.StringVar(&overrides.LogLevel, "log-level", "", "log level (debug, info, warn, error)")
	flag.StringVar(&overrides.WhisperURL, "whisper-url", "", "whisper transcription endpoint URL")
	flag.StringVar(&overrides.WorkDir, "work-dir", "", "directory for uploads and caption files")
	flag.StringVar(&overrides.WatchDir, "watch-dir", "", "directory to watch for audio files")
	flag.Parse()

	// Config
	cfg, err := config.Load(overrides)
	if err != nil {
		early := zerolog.New(os.Stderr).With().Timestamp().Logger()
		early.Fatal().Err(err).Msg("failed to load config")
	}

	// Logger
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	log := zerolog.New(os.Stdout).With().Timestamp().Logger().Level(level)
	log.Info().Str("version", version).Msg("captiond starting")

	// Context for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Artifact store
	store, err := storage.NewLocalStore(cfg.WorkDir)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create work directory")
	}

	// Whisper backend
	provider := transcribe.NewWhisperClient(cfg.WhisperURL, cfg.WhisperTimeout)

	if cfg.PreprocessAudio {
		if transcribe.CheckSox() {
			log.Info().Msg("audio preprocessing enabled (sox found)")
		} else {
			log.Warn().Msg("PREPROCESS_AUDIO=true but sox not found in PATH; preprocessing disabled")
		}
	}

	// Progress events + pipeline
	bus := events.NewBus()
	pipe := pipeline.New(pipeline.Options{
		Provider:        provider,
		Bus:             bus,
		PreprocessAudio: cfg.PreprocessAudio,
		Language:        cfg.Language,
		Temperature:     cfg.Temperature,
		Log:             log.With().Str("component", "pipeline").Logger(),
	})

	// Optional watch directory
	if cfg.WatchDir != "" {
		watcher := watch.New(pipe, cfg.WatchDir, cfg.ModelSize, log)
		if err := watcher.Start(); err != nil {
			log.Fatal().Err(err).Str("watch_dir", cfg.WatchDir).Msg("failed to start file watcher")
		}
		defer watcher.Stop()
	}

	// HTTP Server
	webFS, err := fs.Sub(captiond.WebFiles, "web")
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load embedded web files")
	}
	httpLog := log.With().Str("component", "http").Logger()
	srv := api.NewServer(cfg, pipe, store, bus, provider, webFS, version, startTime, httpLog)

	// Start HTTP server in background
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	// Wait for shutdown signal or server error
	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			log.Error().Err(err).Msg("http server error")
		}
	}

	// Graceful shutdown with 10s timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http server shutdown error")
	}

	log.Info().Msg("captiond stopped")
}
