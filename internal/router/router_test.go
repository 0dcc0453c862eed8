package router

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"golang.org/x/time/rate"

	"screenai-backend/internal/handlers"
	"screenai-backend/internal/middleware"
	"screenai-backend/internal/pkg/logger"
)

type discardFrames struct{}

func (discardFrames) Put(context.Context, string, []byte) error { return nil }

func testRouter(t *testing.T) http.Handler {
	t.Helper()
	tokens := middleware.NewContextTokens("secret", time.Hour)
	limiter := middleware.NewRateLimiter(rate.Every(time.Minute), 2)
	t.Cleanup(limiter.Stop)

	log := logger.NewNop()
	return New(tokens, limiter, Handlers{
		Contexts: handlers.NewContextHandler(tokens, log),
		Render:   handlers.NewRenderHandler(),
		Viewport: handlers.NewViewportHandler(discardFrames{}, log),
		Health:   handlers.NewHealthHandler(),
		WebSocket: func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusTeapot)
		},
	}, "*")
}

func TestRoutes(t *testing.T) {
	r := testRouter(t)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		status int
	}{
		{"health", http.MethodGet, "/health", "", http.StatusOK},
		{"create context", http.MethodPost, "/api/v1/contexts", "", http.StatusCreated},
		{"render", http.MethodPost, "/api/v1/render", `{"markdown":"hi"}`, http.StatusOK},
		{"viewport needs token", http.MethodPost, "/api/v1/viewport", "x", http.StatusUnauthorized},
		{"websocket mounted", http.MethodGet, "/api/v1/ws", "", http.StatusTeapot},
		{"unknown", http.MethodGet, "/api/v1/summaries", "", http.StatusNotFound},
		{"preflight", http.MethodOptions, "/api/v1/render", "", http.StatusNoContent},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			r.ServeHTTP(rr, httptest.NewRequest(tc.method, tc.path, strings.NewReader(tc.body)))
			assert.Equal(t, tc.status, rr.Code)
			assert.NotEmpty(t, rr.Header().Get("X-Request-ID"))
		})
	}
}

func TestContextCreation_RateLimited(t *testing.T) {
	r := testRouter(t)

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/v1/contexts", nil))
		codes = append(codes, rr.Code)
	}
	assert.Equal(t, []int{http.StatusCreated, http.StatusCreated, http.StatusTooManyRequests}, codes)
}
