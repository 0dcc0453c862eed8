package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"screenai-backend/internal/middleware"
	"screenai-backend/internal/models"
	"screenai-backend/internal/pkg/logger"
)

// ─── Contexts ───

func TestCreateContext(t *testing.T) {
	tokens := middleware.NewContextTokens("secret", time.Hour)
	h := NewContextHandler(tokens, logger.NewNop())

	rr := httptest.NewRecorder()
	h.Create(rr, httptest.NewRequest(http.MethodPost, "/api/v1/contexts", nil))

	require.Equal(t, http.StatusCreated, rr.Code)
	var pc models.PageContext
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&pc))

	id, err := tokens.Verify(pc.Token)
	require.NoError(t, err)
	assert.Equal(t, pc.ID, id)
}

type failingIssuer struct{}

func (failingIssuer) Issue() (string, string, time.Time, error) {
	return "", "", time.Time{}, errors.New("no entropy")
}

func TestCreateContext_IssueFailure(t *testing.T) {
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/contexts", nil)
	req.Header.Set("X-Request-ID", "r-9")
	NewContextHandler(failingIssuer{}, logger.NewNop()).Create(rr, req)

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	var body models.ErrorResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&body))
	assert.Equal(t, "INTERNAL_ERROR", body.Error.Code)
	assert.Equal(t, "r-9", body.Error.RequestID)
}

// ─── Render ───

func TestRender(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		status int
		html   string
	}{
		{"heading and bold", `{"markdown":"# Title\n**bold** text"}`, http.StatusOK,
			"<h1>Title</h1>\n<p><strong>bold</strong> text</p>\n"},
		{"escaped", `{"markdown":"a < b"}`, http.StatusOK, "<p>a &lt; b</p>\n"},
		{"empty", `{"markdown":"  "}`, http.StatusBadRequest, ""},
		{"bad json", `{`, http.StatusBadRequest, ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/api/v1/render", strings.NewReader(tc.body))
			NewRenderHandler().Render(rr, req)

			assert.Equal(t, tc.status, rr.Code)
			if tc.status != http.StatusOK {
				return
			}
			var resp renderResponse
			require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
			assert.Equal(t, tc.html, resp.HTML)
		})
	}
}

// ─── Viewport ───

type memFrames struct {
	frames map[string][]byte
	err    error
}

func (m *memFrames) Put(_ context.Context, id string, frame []byte) error {
	if m.err != nil {
		return m.err
	}
	m.frames[id] = frame
	return nil
}

func uploadRequest(t *testing.T, tokens *middleware.ContextTokens, token string, body []byte, h http.Handler) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/viewport", bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	tokens.Middleware(h).ServeHTTP(rr, req)
	return rr
}

func TestViewportUpload(t *testing.T) {
	tokens := middleware.NewContextTokens("secret", time.Hour)
	id, tok, _, err := tokens.Issue()
	require.NoError(t, err)

	frames := &memFrames{frames: map[string][]byte{}}
	h := http.HandlerFunc(NewViewportHandler(frames, logger.NewNop()).Upload)

	var img bytes.Buffer
	require.NoError(t, png.Encode(&img, image.NewRGBA(image.Rect(0, 0, 4, 4))))

	rr := uploadRequest(t, tokens, tok, img.Bytes(), h)
	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Equal(t, img.Bytes(), frames.frames[id])

	rr = uploadRequest(t, tokens, tok, []byte("hello world"), h)
	assert.Equal(t, http.StatusUnsupportedMediaType, rr.Code)

	rr = uploadRequest(t, tokens, "forged", img.Bytes(), h)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	frames.err = errors.New("redis down")
	rr = uploadRequest(t, tokens, tok, img.Bytes(), h)
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

// ─── Health ───

func TestHealth(t *testing.T) {
	ok := PingFunc(func(context.Context) error { return nil })
	down := PingFunc(func(context.Context) error { return errors.New("connection refused") })

	rr := httptest.NewRecorder()
	NewHealthHandler().Check("redis", ok).Health(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"ok","checks":{"redis":"ok"}}`, rr.Body.String())

	rr = httptest.NewRecorder()
	NewHealthHandler().Check("redis", down).Health(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.Contains(t, rr.Body.String(), `"degraded"`)
}
