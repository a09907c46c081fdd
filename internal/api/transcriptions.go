package api

import (
	"context"
	"errors"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"captiond/internal/pipeline"
	"captiond/internal/storage"
	"captiond/internal/subtitle"
	"captiond/internal/transcribe"
)

// TranscriptionRunner runs one transcription job. Implemented by
// pipeline.Pipeline; narrowed to an interface so tests can fake it.
type TranscriptionRunner interface {
	Run(ctx context.Context, audioPath, modelSize string) (*pipeline.Result, error)
}

// TranscriptionsHandler handles audio uploads and caption downloads.
type TranscriptionsHandler struct {
	runner         TranscriptionRunner
	store          *storage.LocalStore
	maxUploadBytes int64
	log            zerolog.Logger
}

// NewTranscriptionsHandler creates a new transcriptions handler.
func NewTranscriptionsHandler(runner TranscriptionRunner, store *storage.LocalStore, maxUploadBytes int64, log zerolog.Logger) *TranscriptionsHandler {
	return &TranscriptionsHandler{
		runner:         runner,
		store:          store,
		maxUploadBytes: maxUploadBytes,
		log:            log.With().Str("handler", "transcriptions").Logger(),
	}
}

// Routes registers the transcription endpoints.
func (h *TranscriptionsHandler) Routes(r chi.Router) {
	r.Post("/api/v1/transcriptions", h.Create)
	r.Get("/api/v1/captions/{name}", h.DownloadCaption)
	r.Get("/api/v1/models", h.ListModels)
}

// ModelsResponse lists the model sizes offered by the UI dropdown.
type ModelsResponse struct {
	Sizes   []string `json:"sizes"`
	Default string   `json:"default"`
}

// ListModels handles GET /api/v1/models.
func (h *TranscriptionsHandler) ListModels(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, ModelsResponse{
		Sizes:   transcribe.ModelSizes,
		Default: transcribe.DefaultModelSize,
	})
}

// TranscriptionResponse is the result body for a completed transcription.
type TranscriptionResponse struct {
	JobID           string             `json:"job_id"`
	Text            string             `json:"text"`
	Language        string             `json:"language,omitempty"`
	SegmentCount    int                `json:"segment_count"`
	DurationSeconds float64            `json:"duration_seconds,omitempty"`
	DurationLabel   string             `json:"duration_label,omitempty"`
	CaptionFile     string             `json:"caption_file"`
	CaptionURL      string             `json:"caption_url"`
	Timings         pipeline.Timings   `json:"timings"`
	Segments        []subtitle.Segment `json:"segments"`
}

// Create handles POST /api/v1/transcriptions. Accepts a multipart form with
// an "audio" file and an optional "model_size" field, runs the job
// synchronously, and returns the transcript with its timing breakdown.
func (h *TranscriptionsHandler) Create(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	if err := r.ParseMultipartForm(h.maxUploadBytes); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid multipart form: "+err.Error())
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("audio")
	if err != nil {
		WriteError(w, http.StatusBadRequest, "missing audio file field")
		return
	}
	defer file.Close()

	name := sanitizeFilename(header.Filename)
	if name == "" {
		WriteError(w, http.StatusBadRequest, "invalid audio filename")
		return
	}

	// The model size selector is passed through unvalidated; an unknown
	// value is the transcription backend's error to raise.
	modelSize := r.FormValue("model_size")

	// Keep the original base name so the caption inherits it.
	if err := h.store.SaveFrom(name, file); err != nil {
		h.log.Error().Err(err).Str("file", name).Msg("failed to store upload")
		WriteError(w, http.StatusInternalServerError, "failed to store upload")
		return
	}

	res, err := h.runner.Run(r.Context(), h.store.LocalPath(name), modelSize)
	if err != nil {
		h.writeRunError(w, err)
		return
	}

	resp := TranscriptionResponse{
		JobID:        res.JobID,
		Text:         res.Transcript.Text,
		Language:     res.Transcript.Language,
		SegmentCount: res.SegmentCount,
		CaptionFile:  res.CaptionFile,
		CaptionURL:   "/api/v1/captions/" + res.CaptionFile,
		Timings:      res.Timings,
		Segments:     res.Transcript.Segments,
	}
	if d := res.Transcript.Duration; d > 0 {
		resp.DurationSeconds = d
		resp.DurationLabel = subtitle.FormatDuration(d)
	}
	WriteJSON(w, http.StatusOK, resp)
}

// writeRunError maps pipeline failures onto HTTP status codes: busy → 409,
// collaborator failures (model load, inference) → 502, local failures
// (serialization, file write) → 500.
func (h *TranscriptionsHandler) writeRunError(w http.ResponseWriter, err error) {
	if errors.Is(err, pipeline.ErrBusy) {
		WriteError(w, http.StatusConflict, err.Error())
		return
	}
	var pe *pipeline.PhaseError
	if errors.As(err, &pe) {
		status := http.StatusInternalServerError
		if pe.Phase == pipeline.PhaseModelLoad || pe.Phase == pipeline.PhaseInference {
			status = http.StatusBadGateway
		}
		WritePhaseError(w, status, string(pe.Phase), pe.Err.Error())
		return
	}
	h.log.Error().Err(err).Msg("transcription failed")
	WriteError(w, http.StatusInternalServerError, err.Error())
}

// DownloadCaption handles GET /api/v1/captions/{name}, serving the caption
// file as a download.
func (h *TranscriptionsHandler) DownloadCaption(w http.ResponseWriter, r *http.Request) {
	name := sanitizeFilename(chi.URLParam(r, "name"))
	if name == "" || !strings.HasSuffix(name, ".srt") {
		WriteError(w, http.StatusBadRequest, "invalid caption name")
		return
	}

	path := h.store.LocalPath(name)
	if path == "" {
		WriteError(w, http.StatusNotFound, "caption not found")
		return
	}

	w.Header().Set("Content-Type", "application/x-subrip; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	http.ServeFile(w, r, path)
}

// sanitizeFilename reduces a client-supplied filename to a safe base name.
// Returns "" if nothing usable remains.
func sanitizeFilename(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	if name == "." || name == ".." || name == "/" || strings.HasPrefix(name, ".") {
		return ""
	}
	return name
}
