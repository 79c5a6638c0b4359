package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/cmlabs-hris/attendance-agent/internal/domain/attendance"
	"github.com/cmlabs-hris/attendance-agent/internal/pkg/sse"
)

type EventsHandler interface {
	Stream(w http.ResponseWriter, r *http.Request)
}

type eventsHandlerImpl struct {
	hub               *sse.Hub
	topic             string
	attendanceService attendance.AttendanceService
	keepalive         time.Duration
}

// NewEventsHandler streams the controller's events on topic to the shell.
func NewEventsHandler(hub *sse.Hub, topic string, attendanceService attendance.AttendanceService, keepalive time.Duration) EventsHandler {
	if keepalive <= 0 {
		keepalive = 30 * time.Second
	}
	return &eventsHandlerImpl{
		hub:               hub,
		topic:             topic,
		attendanceService: attendanceService,
		keepalive:         keepalive,
	}
}

// Stream handles the SSE connection of a UI shell
func (h *eventsHandlerImpl) Stream(w http.ResponseWriter, r *http.Request) {
	// Check if streaming is supported
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	// Set SSE headers
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	// The current view model supersedes retained state and tick events, and
	// notices are shown once.
	events, cleanup := h.hub.Subscribe(h.topic, "state", "tick", "notice")
	defer cleanup()

	writeEvent(w, "state", h.attendanceService.State())
	flusher.Flush()

	keepalive := time.NewTicker(h.keepalive)
	defer keepalive.Stop()

	for {
		select {
		case event, ok := <-events:
			if !ok {
				return
			}
			writeEvent(w, event.Event, event.Data)
			flusher.Flush()

		case <-keepalive.C:
			fmt.Fprintf(w, "event: ping\ndata: {\"timestamp\":%d}\n\n", time.Now().Unix())
			flusher.Flush()

		case <-r.Context().Done():
			return
		}
	}
}

func writeEvent(w http.ResponseWriter, event string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
}
