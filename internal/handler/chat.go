package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"mindmoney/internal/domain"
	"mindmoney/internal/domain/models"
	"mindmoney/internal/domain/services"
	"mindmoney/internal/httputil"
	"mindmoney/internal/service/conversation"
)

// ChatHandler processes one user message end to end: run the
// orchestration engine, then record the exchange and its agent logs
// atomically. Handlers only talk to services, never the store directly.
type ChatHandler struct {
	conversations services.ConversationService
	engine        services.Engine
	logger        *slog.Logger
}

// NewChatHandler creates a new chat handler
func NewChatHandler(conversations services.ConversationService, engine services.Engine, logger *slog.Logger) *ChatHandler {
	return &ChatHandler{
		conversations: conversations,
		engine:        engine,
		logger:        logger,
	}
}

// Chat handles one user/assistant exchange
// POST /api/chat
func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	caller := httputil.GetUserID(r)

	var req ChatRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.SessionID == "" {
		httputil.RespondError(w, http.StatusBadRequest, "session_id is required")
		return
	}
	if req.Message == "" {
		httputil.RespondError(w, http.StatusBadRequest, "message is required")
		return
	}
	// Authenticated exchanges default to the caller's identity; an
	// explicit foreign user_id is rejected by the service.
	if req.UserID == "" {
		req.UserID = caller
	}

	history, err := h.conversations.GetHistory(r.Context(), caller, req.SessionID, conversation.DefaultHistoryLimit)
	if err != nil {
		handleError(w, err)
		return
	}

	result, err := h.engine.Respond(r.Context(), &services.EngineRequest{
		SessionID: req.SessionID,
		Message:   req.Message,
		History:   history,
	})
	if err != nil {
		handleError(w, err)
		return
	}

	logs := make([]services.RecordLogRequest, 0, len(result.Logs))
	for _, entry := range result.Logs {
		logs = append(logs, services.RecordLogRequest{
			AgentName:     entry.AgentName,
			ModelUsed:     entry.ModelUsed,
			InputSummary:  entry.InputSummary,
			OutputSummary: entry.OutputSummary,
			DecisionMade:  entry.DecisionMade,
			DurationMs:    entry.DurationMs,
			TokensUsed:    entry.TokensUsed,
		})
	}

	// Concurrent chats on the same session can race to the same turn
	// number; the loser recomputes once before surfacing a conflict.
	var (
		turn       *models.Turn
		storedLogs []models.AgentLog
	)
	for attempt := 0; ; attempt++ {
		turnNumber, err := h.conversations.NextTurnNumber(r.Context(), caller, req.SessionID)
		if err != nil {
			handleError(w, err)
			return
		}

		turn, storedLogs, err = h.conversations.RecordExchange(r.Context(), caller, &services.RecordTurnRequest{
			SessionID:     req.SessionID,
			TurnNumber:    turnNumber,
			UserMessage:   req.Message,
			AssistantResp: result.Response,
			Metrics:       result.Metrics,
			UserID:        req.UserID,
			UserAgent:     r.UserAgent(),
		}, logs)
		if err == nil {
			break
		}
		if errors.Is(err, domain.ErrDuplicateTurn) && attempt == 0 {
			continue
		}
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, ChatResponse{
		SessionID:  turn.SessionID,
		TurnNumber: turn.TurnNumber,
		Response:   turn.AssistantResp,
		AgentLogs:  storedLogs,
		Metrics:    result.Metrics,
	})
}
