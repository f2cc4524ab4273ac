package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"mindmoney/internal/domain/services"
	"mindmoney/internal/httputil"
	"mindmoney/internal/service/conversation"
)

// SessionHandler serves session browsing: list, context, history, logs
type SessionHandler struct {
	conversations services.ConversationService
	logger        *slog.Logger
}

// NewSessionHandler creates a new session handler
func NewSessionHandler(conversations services.ConversationService, logger *slog.Logger) *SessionHandler {
	return &SessionHandler{
		conversations: conversations,
		logger:        logger,
	}
}

// ListSessions retrieves the sessions visible to the caller
// GET /api/sessions?user_id=:id
//
// With an authenticated caller the identity from the token governs; a
// conflicting user_id query parameter is rejected. Without authentication
// the query parameter stands in for the caller's identity, matching the
// legacy no-auth behavior.
func (h *SessionHandler) ListSessions(w http.ResponseWriter, r *http.Request) {
	caller := httputil.GetUserID(r)
	requested := r.URL.Query().Get("user_id")

	if caller != "" && requested != "" && requested != caller {
		httputil.RespondError(w, http.StatusForbidden, "cannot list sessions for another user")
		return
	}
	if caller == "" {
		caller = requested
	}

	sessions, err := h.conversations.ListSessions(r.Context(), caller)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, SessionsResponse{
		Sessions: sessions,
		Count:    len(sessions),
	})
}

// GetSession retrieves the full context for one session
// GET /api/sessions/{id}
func (h *SessionHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := PathParam(w, r, "id", "Session ID")
	if !ok {
		return
	}

	caller := httputil.GetUserID(r)
	context, err := h.conversations.GetSessionContext(r.Context(), caller, sessionID, conversation.DefaultHistoryLimit)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, context)
}

// GetHistory retrieves a session's conversation history
// GET /api/sessions/{id}/history?limit=:n
func (h *SessionHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := PathParam(w, r, "id", "Session ID")
	if !ok {
		return
	}

	limit := conversation.DefaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			httputil.RespondError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	caller := httputil.GetUserID(r)
	history, err := h.conversations.GetHistory(r.Context(), caller, sessionID, limit)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, HistoryResponse{
		SessionID: sessionID,
		History:   history,
		Count:     len(history),
	})
}

// GetLogs retrieves a session's agent logs
// GET /api/sessions/{id}/logs
func (h *SessionHandler) GetLogs(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := PathParam(w, r, "id", "Session ID")
	if !ok {
		return
	}

	caller := httputil.GetUserID(r)
	logs, err := h.conversations.GetLogs(r.Context(), caller, sessionID)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, LogsResponse{
		SessionID: sessionID,
		Logs:      logs,
		Count:     len(logs),
	})
}
