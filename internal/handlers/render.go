package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"screenai-backend/internal/markdown"
)

const maxRenderBytes = 1 << 20

type renderRequest struct {
	Markdown string `json:"markdown"`
}

type renderResponse struct {
	HTML string `json:"html"`
	Text string `json:"text"`
}

type RenderHandler struct{}

func NewRenderHandler() *RenderHandler {
	return &RenderHandler{}
}

// Render previews how an assistant reply will look in the panel.
func (h *RenderHandler) Render(w http.ResponseWriter, r *http.Request) {
	var req renderRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRenderBytes)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	if strings.TrimSpace(req.Markdown) == "" {
		writeJSON(w, http.StatusBadRequest, errorRespWithFields("VALIDATION_ERROR", "Validation failed",
			map[string]string{"markdown": "is required"}, r))
		return
	}

	doc := markdown.Parse(req.Markdown)
	writeJSON(w, http.StatusOK, renderResponse{HTML: doc.HTML(), Text: doc.PlainText()})
}
