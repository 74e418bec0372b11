package sse

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"wave-ticketing/internal/logger"
)

// InitialFunc produces the first payload sent after a client connects.
type InitialFunc func(ctx context.Context, eventID string) (interface{}, error)

type Handler struct {
	Emitter   *Emitter
	Logger    *logger.Logger
	Heartbeat time.Duration
}

func NewHandler(emitter *Emitter, log *logger.Logger) *Handler {
	return &Handler{Emitter: emitter, Logger: log, Heartbeat: 25 * time.Second}
}

// Stream serves one kind of message for the event in the {id} URL param.
// initial may be nil.
func (h *Handler) Stream(kind string, initial InitialFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		eventID := chi.URLParam(r, "id")
		if eventID == "" {
			http.Error(w, "Event ID is required", http.StatusBadRequest)
			return
		}

		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
			return
		}

		var first interface{}
		if initial != nil {
			payload, err := initial(r.Context(), eventID)
			if err != nil {
				h.Logger.Warn("SSE", fmt.Sprintf("initial %s payload for %s failed: %v", kind, eventID, err))
				http.Error(w, "Event not found", http.StatusNotFound)
				return
			}
			first = payload
		}

		ctx := r.Context()
		messages := h.Emitter.Subscribe(ctx, kind, eventID)

		setupSSEHeaders(w)
		fmt.Fprintf(w, "event: connected\ndata: {\"status\":\"connected\",\"eventId\":%q}\n\n", eventID)
		if first != nil {
			writeEvent(w, kind, first)
		}
		flusher.Flush()

		h.Logger.Info("SSE", fmt.Sprintf("Client connected to %s stream for event: %s", kind, eventID))

		heartbeat := time.NewTicker(h.Heartbeat)
		defer heartbeat.Stop()

		for {
			select {
			case msg, ok := <-messages:
				if !ok {
					return
				}
				if err := writeEvent(w, msg.Kind, msg.Data); err != nil {
					h.Logger.Error("SSE", fmt.Sprintf("Failed to serialize %s event: %v", msg.Kind, err))
					continue
				}
				flusher.Flush()

			case <-heartbeat.C:
				fmt.Fprint(w, ": ping\n\n")
				flusher.Flush()

			case <-ctx.Done():
				h.Logger.Debug("SSE", fmt.Sprintf("Client disconnected from %s stream for: %s", kind, eventID))
				return
			}
		}
	}
}

func writeEvent(w http.ResponseWriter, kind string, data interface{}) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", kind, jsonData)
	return err
}

func setupSSEHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream;charset=UTF-8")
	w.Header().Set("Cache-Control", "no-cache, no-store, max-age=0, must-revalidate")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.Header().Set("X-Content-Type-Options", "nosniff")
}
