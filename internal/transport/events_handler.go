package transport

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"orderdesk/internal/middleware"
	"orderdesk/internal/notify"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// heartbeatInterval keeps intermediaries from closing idle streams.
const heartbeatInterval = 25 * time.Second

// EventsHandler serves the live order event stream over server-sent events.
// Each connection receives every broadcast event plus the owner-scoped
// events of the authenticated user; the owner scope is derived from the
// verified identity, never from a client-supplied value.
type EventsHandler struct {
	hub    *notify.Hub
	logger *zap.Logger
}

// NewEventsHandler creates a new EventsHandler
func NewEventsHandler(hub *notify.Hub, logger *zap.Logger) *EventsHandler {
	return &EventsHandler{
		hub:    hub,
		logger: logger,
	}
}

// RegisterRoutes registers the event stream route
func (h *EventsHandler) RegisterRoutes(r chi.Router, authMiddleware func(http.Handler) http.Handler) {
	r.With(authMiddleware).Get("/api/events", h.Stream)
}

// Stream subscribes the connection to the hub and writes events until the
// client disconnects. Delivery is at-most-once: events emitted while a
// client is away are not replayed, the client re-fetches on reconnect.
func (h *EventsHandler) Stream(w http.ResponseWriter, r *http.Request) {
	userIDStr, ok := middleware.GetUserID(r.Context())
	if !ok {
		middleware.RespondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	userID, err := uuid.Parse(userIDStr)
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid user ID")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		middleware.RespondWithError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	sub := h.hub.Subscribe(userID)
	defer sub.Close()

	h.logger.Debug("Event stream opened", zap.String("user_id", userID.String()))

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			h.logger.Debug("Event stream closed", zap.String("user_id", userID.String()))
			return
		case <-heartbeat.C:
			fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		case ev, ok := <-sub.C:
			if !ok {
				return
			}
			payload, err := json.Marshal(ev.Order)
			if err != nil {
				h.logger.Error("Failed to marshal event payload", zap.Error(err))
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Name, payload)
			flusher.Flush()
		}
	}
}
