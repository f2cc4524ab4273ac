package handler

import (
	"log/slog"
	"net/http"

	"mindmoney/internal/agents"
	"mindmoney/internal/domain/repositories"
	"mindmoney/internal/httputil"
)

// HealthHandler reports service and storage health
type HealthHandler struct {
	store  repositories.ConversationStore
	roster *agents.Registry
	logger *slog.Logger
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(store repositories.ConversationStore, roster *agents.Registry, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{
		store:  store,
		roster: roster,
		logger: logger,
	}
}

// HealthCheck reports whether the backing store is reachable. A failed
// ping degrades the status instead of failing the request.
// GET /health
func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	connected := true
	if err := h.store.Ping(r.Context()); err != nil {
		h.logger.Warn("health check: store unreachable", "error", err)
		connected = false
	}

	status := "healthy"
	if !connected {
		status = "degraded"
	}

	httputil.RespondJSON(w, http.StatusOK, HealthResponse{
		Status:            status,
		DatabaseConnected: connected,
	})
}

// APIInfo describes the service and its agent roster
// GET /
func (h *HealthHandler) APIInfo(w http.ResponseWriter, r *http.Request) {
	httputil.RespondJSON(w, http.StatusOK, APIInfoResponse{
		Name:        "MindMoney API",
		Version:     "1.0.0",
		Description: "Conversation store for a multi-agent financial-support assistant",
		Agents:      h.roster.List(),
	})
}
