package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/lampapompa/line-nutrition-bot/internal/messaging"
	"github.com/lampapompa/line-nutrition-bot/internal/models"
)

// webhookHandler receives platform webhook deliveries. Signature mismatches
// are rejected with 400; everything past signature verification answers 200
// "OK" so the platform never retry-storms the endpoint over an internal
// failure. Events are handled off the request goroutine since replies are
// scheduled, not sent inline.
func (s *Server) webhookHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	slog.Debug("Server.webhookHandler: processing webhook request", "method", r.Method, "path", r.URL.Path)
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		slog.Warn("Server.webhookHandler: method not allowed", "method", r.Method)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	events, err := s.gateway.ParseWebhook(r)
	if err != nil {
		if errors.Is(err, messaging.ErrInvalidSignature) {
			slog.Warn("Server.webhookHandler: rejecting request with invalid signature")
			writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid signature"))
			return
		}
		slog.Warn("Server.webhookHandler: failed to parse webhook request", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid webhook request"))
		return
	}

	for _, ev := range events {
		go s.dispatcher.HandleEvent(context.Background(), ev)
	}

	slog.Debug("Server.webhookHandler: accepted events", "count", len(events))
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("OK")); err != nil {
		slog.Error("Server.webhookHandler: failed to write response", "error", err)
	}
}

// healthHandler reports service liveness plus store readiness and the number
// of pending images.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	slog.Debug("Server.healthHandler: processing health request", "method", r.Method)
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	status := map[string]any{
		"status":  "ok",
		"backend": s.gateway.Platform(),
	}
	if count, err := s.store.CountPendingImages(r.Context()); err != nil {
		slog.Warn("Server.healthHandler: store unreachable", "error", err)
		status["store"] = "degraded"
	} else {
		status["store"] = "ok"
		status["pending_images"] = count
	}

	writeJSONResponse(w, http.StatusOK, models.Success(status))
}
