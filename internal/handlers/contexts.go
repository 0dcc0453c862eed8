package handlers

import (
	"net/http"
	"time"

	"screenai-backend/internal/models"
	"screenai-backend/internal/pkg/logger"
)

type tokenIssuer interface {
	Issue() (contextID, token string, expiresAt time.Time, err error)
}

type ContextHandler struct {
	tokens tokenIssuer
	log    logger.ILogger
}

func NewContextHandler(tokens tokenIssuer, log logger.ILogger) *ContextHandler {
	return &ContextHandler{tokens: tokens, log: log}
}

// Create registers a new page context. The token it returns authenticates
// the page's socket and its viewport uploads.
func (h *ContextHandler) Create(w http.ResponseWriter, r *http.Request) {
	id, token, expiresAt, err := h.tokens.Issue()
	if err != nil {
		h.log.Error("Contexts", "token issue failed", map[string]interface{}{"error": err.Error()})
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Could not create page context", r))
		return
	}

	writeJSON(w, http.StatusCreated, models.PageContext{ID: id, Token: token, ExpiresAt: expiresAt})
}
