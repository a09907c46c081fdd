package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"captiond/internal/events"
)

type EventsHandler struct {
	bus *events.Bus
}

func NewEventsHandler(bus *events.Bus) *EventsHandler {
	return &EventsHandler{bus: bus}
}

// StreamProgress opens an SSE connection and pushes transcription progress
// events until the client disconnects.
func (h *EventsHandler) StreamProgress(w http.ResponseWriter, r *http.Request) {
	if h.bus == nil {
		WriteError(w, http.StatusServiceUnavailable, "event streaming not available")
		return
	}

	// ResponseController reaches the flusher through middleware wrappers
	// (metrics, hlog) via their Unwrap methods.
	rc := http.NewResponseController(w)

	// Set SSE headers
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	if err := rc.Flush(); err != nil {
		return
	}

	ch, cancel := h.bus.Subscribe()
	defer cancel()

	// Keep-alive comments so proxies don't drop the idle connection.
	keepalive := time.NewTicker(15 * time.Second)
	defer keepalive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-keepalive.C:
			fmt.Fprint(w, ": keepalive\n\n")
			if err := rc.Flush(); err != nil {
				return
			}
		case e := <-ch:
			data, err := json.Marshal(e)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "id: %s\nevent: progress\ndata: %s\n\n", e.ID, data)
			if err := rc.Flush(); err != nil {
				return
			}
		}
	}
}
