package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"captiond/internal/pipeline"
	"captiond/internal/storage"
	"captiond/internal/subtitle"
)

// mockRunner implements TranscriptionRunner for testing.
type mockRunner struct {
	lastAudioPath string
	lastModelSize string
	result        *pipeline.Result
	err           error
}

func (m *mockRunner) Run(ctx context.Context, audioPath, modelSize string) (*pipeline.Result, error) {
	m.lastAudioPath = audioPath
	m.lastModelSize = modelSize
	if m.err != nil {
		return nil, m.err
	}
	if m.result != nil {
		return m.result, nil
	}
	return &pipeline.Result{
		JobID: "job-1",
		Transcript: &subtitle.Transcript{
			Text:     "Hello world.",
			Language: "en",
			Duration: 65.0,
			Segments: []subtitle.Segment{{Start: 0, End: 1.5, Text: "Hello world."}},
		},
		SegmentCount: 1,
		CaptionFile:  "clip.srt",
		CaptionPath:  "/tmp/clip.srt",
	}, nil
}

func newTestHandler(t *testing.T, mock *mockRunner) (*TranscriptionsHandler, *storage.LocalStore) {
	t.Helper()
	store, err := storage.NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	return NewTranscriptionsHandler(mock, store, 32<<20, zerolog.Nop()), store
}

func buildUploadForm(t *testing.T, fields map[string]string, fileName string, fileData []byte) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for k, v := range fields {
		writer.WriteField(k, v)
	}
	if fileData != nil {
		part, err := writer.CreateFormFile("audio", fileName)
		if err != nil {
			t.Fatal(err)
		}
		part.Write(fileData)
	}
	writer.Close()
	return body, writer.FormDataContentType()
}

func doCreate(t *testing.T, h *TranscriptionsHandler, body *bytes.Buffer, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest("POST", "/api/v1/transcriptions", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	h.Create(w, req)
	return w
}

func TestCreate_Success(t *testing.T) {
	mock := &mockRunner{}
	h, store := newTestHandler(t, mock)

	body, ct := buildUploadForm(t, map[string]string{"model_size": "small"}, "clip.mp3", []byte("audio-bytes"))
	w := doCreate(t, h, body, ct)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	if mock.lastModelSize != "small" {
		t.Errorf("model size = %q, want small", mock.lastModelSize)
	}
	if !store.Exists("clip.mp3") {
		t.Error("upload not stored")
	}
	if mock.lastAudioPath != store.LocalPath("clip.mp3") {
		t.Errorf("runner got path %q, want stored upload path", mock.lastAudioPath)
	}

	var resp TranscriptionResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.JobID != "job-1" {
		t.Errorf("job_id = %q", resp.JobID)
	}
	if resp.SegmentCount != 1 {
		t.Errorf("segment_count = %d, want 1", resp.SegmentCount)
	}
	if resp.CaptionURL != "/api/v1/captions/clip.srt" {
		t.Errorf("caption_url = %q", resp.CaptionURL)
	}
	if resp.DurationLabel != "1 min 5 sec" {
		t.Errorf("duration_label = %q, want \"1 min 5 sec\"", resp.DurationLabel)
	}
}

func TestCreate_SelectorPassedThrough(t *testing.T) {
	// Unknown model sizes reach the runner untouched.
	mock := &mockRunner{}
	h, _ := newTestHandler(t, mock)

	body, ct := buildUploadForm(t, map[string]string{"model_size": "enormous"}, "clip.mp3", []byte("x"))
	if w := doCreate(t, h, body, ct); w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if mock.lastModelSize != "enormous" {
		t.Errorf("model size = %q, want enormous (unvalidated pass-through)", mock.lastModelSize)
	}
}

func TestCreate_MissingAudio(t *testing.T) {
	h, _ := newTestHandler(t, &mockRunner{})
	body, ct := buildUploadForm(t, map[string]string{"model_size": "base"}, "", nil)
	if w := doCreate(t, h, body, ct); w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestCreate_Busy(t *testing.T) {
	h, _ := newTestHandler(t, &mockRunner{err: pipeline.ErrBusy})
	body, ct := buildUploadForm(t, nil, "clip.mp3", []byte("x"))
	if w := doCreate(t, h, body, ct); w.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409", w.Code)
	}
}

func TestCreate_PhaseErrorStatus(t *testing.T) {
	tests := []struct {
		phase      pipeline.Phase
		wantStatus int
	}{
		{pipeline.PhaseModelLoad, http.StatusBadGateway},
		{pipeline.PhaseInference, http.StatusBadGateway},
		{pipeline.PhaseSerialize, http.StatusInternalServerError},
		{pipeline.PhaseWrite, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(string(tt.phase), func(t *testing.T) {
			h, _ := newTestHandler(t, &mockRunner{
				err: &pipeline.PhaseError{Phase: tt.phase, Err: errors.New("boom")},
			})
			body, ct := buildUploadForm(t, nil, "clip.mp3", []byte("x"))
			w := doCreate(t, h, body, ct)
			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			var resp ErrorResponse
			if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
				t.Fatalf("decode error body: %v", err)
			}
			if resp.Phase != string(tt.phase) {
				t.Errorf("phase = %q, want %q", resp.Phase, tt.phase)
			}
		})
	}
}

func downloadRequest(h *TranscriptionsHandler, name string) *httptest.ResponseRecorder {
	r := chi.NewRouter()
	r.Get("/api/v1/captions/{name}", h.DownloadCaption)
	req := httptest.NewRequest("GET", "/api/v1/captions/"+name, nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestDownloadCaption(t *testing.T) {
	h, store := newTestHandler(t, &mockRunner{})
	srt := "1\n00:00:00,000 --> 00:00:01,500\nHi\n\n"
	if err := store.Save("clip.srt", []byte(srt)); err != nil {
		t.Fatal(err)
	}

	w := downloadRequest(h, "clip.srt")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if got := w.Header().Get("Content-Type"); got != "application/x-subrip; charset=utf-8" {
		t.Errorf("content-type = %q", got)
	}
	if w.Body.String() != srt {
		t.Errorf("body = %q, want %q", w.Body.String(), srt)
	}
}

func TestDownloadCaption_NotFound(t *testing.T) {
	h, _ := newTestHandler(t, &mockRunner{})
	if w := downloadRequest(h, "missing.srt"); w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestDownloadCaption_RejectsNonSRT(t *testing.T) {
	h, store := newTestHandler(t, &mockRunner{})
	if err := store.Save("clip.mp3", []byte("audio")); err != nil {
		t.Fatal(err)
	}
	if w := downloadRequest(h, "clip.mp3"); w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"clip.mp3", "clip.mp3"},
		{"dir/clip.mp3", "clip.mp3"},
		{`c:\evil\clip.mp3`, "clip.mp3"},
		{"../../etc/passwd", "passwd"},
		{".hidden", ""},
		{"..", ""},
		{"", ""},
	}
	for _, tt := range tests {
		if got := sanitizeFilename(tt.in); got != tt.want {
			t.Errorf("sanitizeFilename(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestListModels(t *testing.T) {
	h, _ := newTestHandler(t, &mockRunner{})
	w := httptest.NewRecorder()
	h.ListModels(w, httptest.NewRequest("GET", "/api/v1/models", nil))

	var resp ModelsResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Sizes) != 5 || resp.Sizes[0] != "tiny" || resp.Sizes[4] != "large" {
		t.Errorf("sizes = %v", resp.Sizes)
	}
	if resp.Default != "medium" {
		t.Errorf("default = %q, want medium", resp.Default)
	}
}

func TestCreate_UploadStoredBeforeRun(t *testing.T) {
	// The runner must see a real file on disk, not the multipart stream.
	mock := &mockRunner{}
	h, _ := newTestHandler(t, mock)
	body, ct := buildUploadForm(t, nil, "clip.mp3", []byte("audio-bytes"))
	if w := doCreate(t, h, body, ct); w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	data, err := os.ReadFile(mock.lastAudioPath)
	if err != nil {
		t.Fatalf("runner path unreadable: %v", err)
	}
	if string(data) != "audio-bytes" {
		t.Errorf("stored bytes = %q", data)
	}
}
