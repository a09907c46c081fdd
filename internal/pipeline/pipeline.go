// Package pipeline orchestrates one transcription request end to end:
// model warm-up, inference, caption serialization, and the atomic caption
// file write. Inputs and outputs are explicit values; the only artifact that
// outlives a request is the caption file itself.
package pipeline

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"captiond/internal/events"
	"captiond/internal/metrics"
	"captiond/internal/storage"
	"captiond/internal/subtitle"
	"captiond/internal/transcribe"
)

// Phase identifies the stage of a transcription job.
type Phase string

const (
	PhaseModelLoad Phase = "model_load"
	PhaseInference Phase = "inference"
	PhaseSerialize Phase = "serialization"
	PhaseWrite     Phase = "file_write"
)

// PhaseError reports which phase of a job failed.
type PhaseError struct {
	Phase Phase
	Err   error
}

func (e *PhaseError) Error() string {
	return string(e.Phase) + ": " + e.Err.Error()
}

func (e *PhaseError) Unwrap() error { return e.Err }

// ErrBusy is returned when a job is already in flight. The service processes
// one transcription start-to-finish before the next begins.
var ErrBusy = errors.New("a transcription is already in progress")

// PhaseTiming is one entry of the timing breakdown.
type PhaseTiming struct {
	Seconds float64 `json:"seconds"`
	Label   string  `json:"label"`
}

// Timings is the per-phase breakdown reported with each result.
type Timings struct {
	ModelLoad     PhaseTiming `json:"model_load"`
	Inference     PhaseTiming `json:"inference"`
	Serialization PhaseTiming `json:"serialization"`
	FileWrite     PhaseTiming `json:"file_write"`
	Total         PhaseTiming `json:"total"`
}

// Result is the outcome of one completed transcription job.
type Result struct {
	JobID        string
	Transcript   *subtitle.Transcript
	SegmentCount int
	CaptionFile  string // caption filename, e.g. clip.srt
	CaptionPath  string // full path of the written caption file
	Timings      Timings
}

// Options configures a Pipeline.
type Options struct {
	Provider        transcribe.Provider
	Bus             *events.Bus
	PreprocessAudio bool
	Language        string
	Temperature     float64
	Log             zerolog.Logger
}

// Pipeline runs transcription jobs. Safe for concurrent use; overlapping
// jobs beyond the first are rejected with ErrBusy.
type Pipeline struct {
	opts Options
	log  zerolog.Logger
	mu   sync.Mutex
}

// New creates a pipeline around the given provider.
func New(opts Options) *Pipeline {
	return &Pipeline{opts: opts, log: opts.Log}
}

// CaptionName returns the caption filename for an audio file: the same base
// name with the extension swapped for .srt.
func CaptionName(audioPath string) string {
	base := filepath.Base(audioPath)
	return strings.TrimSuffix(base, filepath.Ext(base)) + ".srt"
}

// Run transcribes the audio file at audioPath and writes the caption file
// next to it. Returns ErrBusy if a job is already in flight; any other
// failure is a *PhaseError naming the failed phase. On failure no caption
// file is written.
func (p *Pipeline) Run(ctx context.Context, audioPath, modelSize string) (*Result, error) {
	if !p.mu.TryLock() {
		return nil, ErrBusy
	}
	defer p.mu.Unlock()

	model := modelSize
	if model == "" {
		model = transcribe.DefaultModelSize
	}

	jobID := uuid.NewString()
	log := p.log.With().Str("job_id", jobID).Str("model", model).Logger()
	log.Info().Str("audio", filepath.Base(audioPath)).Msg("transcription started")

	total := time.Now()
	var timings Timings

	// 1. Model warm-up
	p.publish(jobID, PhaseModelLoad, 0, "Loading Whisper model...")
	start := time.Now()
	if err := p.opts.Provider.Warmup(ctx); err != nil {
		return nil, p.fail(log, jobID, model, PhaseModelLoad, err)
	}
	timings.ModelLoad = timing(start)

	// 2. Optional preprocessing, then inference
	p.publish(jobID, PhaseInference, 10, "Preparing audio for transcription...")
	transcribePath := audioPath
	if p.opts.PreprocessAudio {
		processed, cleanup, err := transcribe.Preprocess(ctx, audioPath)
		if err != nil {
			log.Warn().Err(err).Msg("preprocessing failed, using original audio")
		} else {
			transcribePath = processed
			defer cleanup()
		}
	}

	p.publish(jobID, PhaseInference, 20, "Starting transcription...")
	start = time.Now()
	transcript, err := p.opts.Provider.Transcribe(ctx, transcribePath, transcribe.TranscribeOpts{
		ModelSize:   model,
		Language:    p.opts.Language,
		Temperature: p.opts.Temperature,
	})
	if err != nil {
		return nil, p.fail(log, jobID, model, PhaseInference, err)
	}
	timings.Inference = timing(start)

	// 3. Caption serialization
	p.publish(jobID, PhaseSerialize, 50, "Generating transcription details...")
	p.publish(jobID, PhaseSerialize, 75, "Creating SRT file...")
	start = time.Now()
	srt, err := subtitle.SerializeSRTChecked(transcript.Segments)
	if err != nil {
		return nil, p.fail(log, jobID, model, PhaseSerialize, err)
	}
	timings.Serialization = timing(start)

	// 4. Atomic caption write beside the audio file
	captionPath := filepath.Join(filepath.Dir(audioPath), CaptionName(audioPath))
	start = time.Now()
	if err := storage.AtomicWrite(captionPath, []byte(srt)); err != nil {
		return nil, p.fail(log, jobID, model, PhaseWrite, err)
	}
	timings.FileWrite = timing(start)
	timings.Total = timing(total)

	metrics.TranscriptionsTotal.WithLabelValues(model, "ok").Inc()
	metrics.PhaseDuration.WithLabelValues(string(PhaseModelLoad)).Observe(timings.ModelLoad.Seconds)
	metrics.PhaseDuration.WithLabelValues(string(PhaseInference)).Observe(timings.Inference.Seconds)
	metrics.PhaseDuration.WithLabelValues(string(PhaseSerialize)).Observe(timings.Serialization.Seconds)
	metrics.PhaseDuration.WithLabelValues(string(PhaseWrite)).Observe(timings.FileWrite.Seconds)
	metrics.CaptionSegments.Observe(float64(len(transcript.Segments)))

	p.publish(jobID, "complete", 100, "Transcription Complete!")
	log.Info().
		Int("segments", len(transcript.Segments)).
		Str("caption", filepath.Base(captionPath)).
		Float64("total_sec", timings.Total.Seconds).
		Msg("transcription complete")

	return &Result{
		JobID:        jobID,
		Transcript:   transcript,
		SegmentCount: len(transcript.Segments),
		CaptionFile:  filepath.Base(captionPath),
		CaptionPath:  captionPath,
		Timings:      timings,
	}, nil
}

func (p *Pipeline) fail(log zerolog.Logger, jobID, model string, phase Phase, err error) error {
	metrics.TranscriptionsTotal.WithLabelValues(model, "failed").Inc()
	if p.opts.Bus != nil {
		p.opts.Bus.Publish(events.ProgressEvent{
			JobID:   jobID,
			Phase:   string(phase),
			Percent: 0,
			Message: "Transcription Failed",
			Error:   err.Error(),
		})
	}
	log.Warn().Err(err).Str("phase", string(phase)).Msg("transcription failed")
	return &PhaseError{Phase: phase, Err: err}
}

func (p *Pipeline) publish(jobID string, phase Phase, percent int, msg string) {
	if p.opts.Bus == nil {
		return
	}
	p.opts.Bus.Publish(events.ProgressEvent{
		JobID:   jobID,
		Phase:   string(phase),
		Percent: percent,
		Message: msg,
	})
}

func timing(since time.Time) PhaseTiming {
	s := time.Since(since).Seconds()
	return PhaseTiming{Seconds: s, Label: subtitle.FormatDuration(s)}
}
