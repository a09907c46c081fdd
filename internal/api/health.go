package api

import (
	"context"
	"net/http"
	"time"

	"captiond/internal/transcribe"
)

type HealthResponse struct {
	Status        string            `json:"status"`
	Version       string            `json:"version"`
	UptimeSeconds int64             `json:"uptime_seconds"`
	Checks        map[string]string `json:"checks"`
}

type HealthHandler struct {
	provider  transcribe.Provider
	version   string
	startTime time.Time
}

func NewHealthHandler(provider transcribe.Provider, version string, startTime time.Time) *HealthHandler {
	return &HealthHandler{
		provider:  provider,
		version:   version,
		startTime: startTime,
	}
}

// ServeHTTP handles GET /api/v1/health. The whisper check probes the
// backend's model listing; a failure degrades status but the endpoint
// still returns 200 so load balancers keep routing to the UI.
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	checks := map[string]string{}
	status := "ok"

	if h.provider != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.provider.Warmup(ctx); err != nil {
			checks["whisper"] = err.Error()
			status = "degraded"
		} else {
			checks["whisper"] = "ok"
		}
	}

	WriteJSON(w, http.StatusOK, HealthResponse{
		Status:        status,
		Version:       h.version,
		UptimeSeconds: int64(time.Since(h.startTime).Seconds()),
		Checks:        checks,
	})
}
