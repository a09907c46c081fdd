package transcribe

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
)

// soxAvailable caches whether sox is in PATH (checked once at startup).
var soxAvailable *bool

// CheckSox checks if sox is available in PATH. Call once at startup.
func CheckSox() bool {
	if soxAvailable != nil {
		return *soxAvailable
	}
	_, err := exec.LookPath("sox")
	avail := err == nil
	soxAvailable = &avail
	return avail
}

// Preprocess applies audio cleanup for Whisper using sox:
//   - Resample to 16kHz mono (Whisper's native input rate)
//   - Normalize volume
//
// Returns the path to a temporary WAV file and a cleanup function.
// If sox is unavailable, returns the original path with a no-op cleanup.
func Preprocess(ctx context.Context, inputPath string) (string, func(), error) {
	noop := func() {}

	if !CheckSox() {
		return inputPath, noop, nil
	}

	tmpDir := os.TempDir()
	outPath := filepath.Join(tmpDir, fmt.Sprintf("captiond-preprocess-%d.wav", os.Getpid()))

	cmd := exec.CommandContext(ctx, "sox",
		inputPath, outPath,
		"rate", "16000",
		"channels", "1",
		"norm",
	)
	if err := cmd.Run(); err != nil {
		// Clean up partial output
		os.Remove(outPath)
		return inputPath, noop, fmt.Errorf("sox preprocess: %w", err)
	}

	cleanup := func() {
		os.Remove(outPath)
	}
	return outPath, cleanup, nil
}
