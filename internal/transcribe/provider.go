package transcribe

import (
	"context"

	"captiond/internal/subtitle"
)

// ModelSizes are the Whisper model tiers offered by the UI, smallest to
// largest. The selector is passed through to the backend unvalidated:
// an unknown size is the backend's error to raise.
var ModelSizes = []string{"tiny", "base", "small", "medium", "large"}

// DefaultModelSize is used when the request does not pick one.
const DefaultModelSize = "medium"

// Provider is the interface for speech-to-text backends.
type Provider interface {
	// Warmup verifies the backend is reachable and able to serve models.
	// Failures here are model-availability failures, distinct from
	// inference failures.
	Warmup(ctx context.Context) error
	Transcribe(ctx context.Context, audioPath string, opts TranscribeOpts) (*subtitle.Transcript, error)
	Name() string
}

// TranscribeOpts are per-request options passed to the backend.
type TranscribeOpts struct {
	ModelSize   string  // tiny/base/small/medium/large; empty = DefaultModelSize
	Language    string  // ISO 639-1 hint; empty = let the backend detect
	Temperature float64 // sampling temperature
	Prompt      string  // initial prompt / domain vocabulary
}
