package handlers

import (
	"context"
	"io"
	"net/http"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"screenai-backend/internal/middleware"
	"screenai-backend/internal/pkg/logger"
)

const maxViewportBytes = 16 << 20

type frameSink interface {
	Put(ctx context.Context, contextID string, frame []byte) error
}

type ViewportHandler struct {
	frames frameSink
	log    logger.ILogger
}

func NewViewportHandler(frames frameSink, log logger.ILogger) *ViewportHandler {
	return &ViewportHandler{frames: frames, log: log}
}

// Upload stores the page's current viewport image (raw PNG or JPEG body).
// It is the HTTP alternative to sending a viewportSnapshot over the socket.
func (h *ViewportHandler) Upload(w http.ResponseWriter, r *http.Request) {
	contextID := middleware.GetContextID(r.Context())

	frame, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxViewportBytes))
	if err != nil {
		writeJSON(w, http.StatusRequestEntityTooLarge, errorResp("TOO_LARGE", "Viewport image is too large", r))
		return
	}

	mt := mimetype.Detect(frame)
	if !mt.Is("image/png") && !mt.Is("image/jpeg") {
		writeJSON(w, http.StatusUnsupportedMediaType, errorRespWithFields("VALIDATION_ERROR", "Validation failed",
			map[string]string{"body": "must be a PNG or JPEG image, got " + strings.SplitN(mt.String(), ";", 2)[0]}, r))
		return
	}

	if err := h.frames.Put(r.Context(), contextID, frame); err != nil {
		h.log.Error("Viewport", "store failed", map[string]interface{}{"context_id": contextID, "error": err.Error()})
		writeJSON(w, http.StatusServiceUnavailable, errorResp("UNAVAILABLE", "Could not store viewport", r))
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
