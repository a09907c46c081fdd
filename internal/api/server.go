package api

import (
	"context"
	"io/fs"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"captiond/internal/config"
	"captiond/internal/events"
	"captiond/internal/metrics"
	"captiond/internal/storage"
	"captiond/internal/transcribe"
)

type Server struct {
	http *http.Server
	log  zerolog.Logger
}

// NewServer wires the HTTP surface: the single-page UI, the transcription
// API, the SSE progress stream, health, and metrics.
func NewServer(cfg *config.Config, runner TranscriptionRunner, store *storage.LocalStore, bus *events.Bus, provider transcribe.Provider, webFS fs.FS, version string, startTime time.Time, log zerolog.Logger) *Server {
	r := chi.NewRouter()

	// Global middleware
	r.Use(RequestID)
	r.Use(Recoverer)
	r.Use(Logger(log))
	r.Use(metrics.InstrumentHandler)
	r.Use(CORS)

	// Health and metrics — no auth
	health := NewHealthHandler(provider, version, startTime)
	r.Get("/api/v1/health", health.ServeHTTP)
	r.Handle("/metrics", promhttp.Handler())

	// Authenticated API routes
	r.Group(func(r chi.Router) {
		r.Use(BearerAuth(cfg.AuthToken))

		th := NewTranscriptionsHandler(runner, store, cfg.MaxUploadMB<<20, log)
		th.Routes(r)

		eh := NewEventsHandler(bus)
		r.Get("/api/v1/events", eh.StreamProgress)
	})

	// Single-page UI
	r.Handle("/*", http.FileServer(http.FS(webFS)))

	return &Server{
		http: &http.Server{
			Addr:         cfg.HTTPAddr,
			Handler:      r,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
			IdleTimeout:  cfg.IdleTimeout,
		},
		log: log,
	}
}

func (s *Server) Start() error {
	s.log.Info().Str("addr", s.http.Addr).Msg("http server starting")
	err := s.http.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("http server shutting down")
	return s.http.Shutdown(ctx)
}
