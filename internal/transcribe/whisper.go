package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"captiond/internal/subtitle"
)

// WhisperClient calls an OpenAI-compatible /v1/audio/transcriptions endpoint
// and maps the verbose_json response onto the transcript model. Works with
// speaches, faster-whisper-server, or the OpenAI API itself.
type WhisperClient struct {
	url     string
	timeout time.Duration
	client  *http.Client
}

// whisperResponse is the verbose_json payload from the Whisper API.
type whisperResponse struct {
	Text     string           `json:"text"`
	Language string           `json:"language"`
	Duration float64          `json:"duration"`
	Segments []whisperSegment `json:"segments"`
}

// whisperSegment is a timed segment from Whisper.
type whisperSegment struct {
	ID    int     `json:"id"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// NewWhisperClient creates a new Whisper HTTP client.
func NewWhisperClient(url string, timeout time.Duration) *WhisperClient {
	return &WhisperClient{
		url:     url,
		timeout: timeout,
		client:  &http.Client{Timeout: timeout},
	}
}

func (wc *WhisperClient) Name() string { return "whisper" }

// Warmup probes the backend's model listing. A reachable server that can
// enumerate models is treated as load-ready; the actual model weights may
// still be pulled lazily on the first request.
func (wc *WhisperClient) Warmup(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, wc.modelsURL(), nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	resp, err := wc.client.Do(req)
	if err != nil {
		return fmt.Errorf("whisper server unreachable: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 500 {
		return fmt.Errorf("whisper server unhealthy (status %d)", resp.StatusCode)
	}
	return nil
}

// modelsURL derives the /v1/models endpoint from the transcriptions URL.
func (wc *WhisperClient) modelsURL() string {
	u, err := url.Parse(wc.url)
	if err != nil {
		return wc.url
	}
	if i := strings.Index(u.Path, "/v1/"); i >= 0 {
		u.Path = u.Path[:i] + "/v1/models"
	} else {
		u.Path = "/v1/models"
	}
	u.RawQuery = ""
	return u.String()
}

// Transcribe sends an audio file to the Whisper API and returns the parsed
// transcript. Uses multipart/form-data; only non-default parameters are
// sent, so servers that ignore unknown form fields keep working.
func (wc *WhisperClient) Transcribe(ctx context.Context, audioPath string, opts TranscribeOpts) (*subtitle.Transcript, error) {
	f, err := os.Open(audioPath)
	if err != nil {
		return nil, fmt.Errorf("open audio file: %w", err)
	}
	defer f.Close()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	part, err := w.CreateFormFile("file", filepath.Base(audioPath))
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, fmt.Errorf("copy audio data: %w", err)
	}

	model := opts.ModelSize
	if model == "" {
		model = DefaultModelSize
	}
	w.WriteField("model", model)

	if opts.Language != "" {
		w.WriteField("language", opts.Language)
	}

	w.WriteField("temperature", fmt.Sprintf("%.2f", opts.Temperature))

	// verbose_json carries the segment timings needed for captions.
	w.WriteField("response_format", "verbose_json")
	w.WriteField("timestamp_granularities[]", "segment")

	if opts.Prompt != "" {
		w.WriteField("prompt", opts.Prompt)
	}

	w.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, wc.url, &buf)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := wc.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("whisper request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("whisper API error (status %d): %s", resp.StatusCode, string(body))
	}

	var result whisperResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	tr := &subtitle.Transcript{
		Text:     result.Text,
		Language: result.Language,
		Duration: result.Duration,
		Segments: make([]subtitle.Segment, 0, len(result.Segments)),
	}
	for _, s := range result.Segments {
		tr.Segments = append(tr.Segments, subtitle.Segment{
			Start: s.Start,
			End:   s.End,
			Text:  s.Text,
		})
	}
	return tr, nil
}
