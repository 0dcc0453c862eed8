package pagectx

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"screenai-backend/internal/models"
	"screenai-backend/internal/protocol"
)

// fakeServer answers queryText with showLoading then showResponse, the way
// the real server does after a round trip through the queue.
func fakeServer(t *testing.T) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/contexts", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(models.PageContext{ID: "ctx-1", Token: "tok"})
	})
	mux.HandleFunc("/api/v1/ws", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("token") != "tok" {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			msg, err := protocol.Decode(data)
			if err != nil {
				continue
			}
			if q, ok := msg.(protocol.QueryText); ok {
				for _, out := range []protocol.Message{
					protocol.ShowLoading{},
					protocol.ShowResponse{Prompt: q.Text, Response: "hi there"},
				} {
					frame, _ := protocol.Encode(out)
					conn.WriteMessage(websocket.TextMessage, frame)
				}
			}
		}
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestDial_RoundTrip(t *testing.T) {
	srv := fakeServer(t)
	ctx := context.Background()

	pc, err := Register(ctx, srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "ctx-1", pc.ID)

	wsURL, err := WebSocketURL(srv.URL)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(wsURL, "ws://"))

	conn, err := Dial(ctx, wsURL, pc.Token, Options{TickInterval: time.Hour})
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.Page().QueryText("hello"))

	assert.Eventually(t, func() bool {
		return conn.Page().Modal().State() == models.ModalChat
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, models.ChatHistory{
		{Role: models.RoleUser, Content: "hello"},
		{Role: models.RoleAssistant, Content: "hi there"},
	}, conn.Page().Modal().History())
}

func TestDial_BadToken(t *testing.T) {
	srv := fakeServer(t)
	wsURL, _ := WebSocketURL(srv.URL)

	_, err := Dial(context.Background(), wsURL, "wrong", Options{})
	assert.Error(t, err)
}
