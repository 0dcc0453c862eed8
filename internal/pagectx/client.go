package pagectx

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/gorilla/websocket"

	"screenai-backend/internal/models"
	"screenai-backend/internal/pkg/logger"
	"screenai-backend/internal/protocol"
)

// Register asks the server at baseURL for a new page context.
func Register(ctx context.Context, baseURL string) (*models.PageContext, error) {
	endpoint := strings.TrimRight(baseURL, "/") + "/api/v1/contexts"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader([]byte("{}")))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("register page context: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusCreated {
		var apiErr models.ErrorResponse
		json.NewDecoder(res.Body).Decode(&apiErr)
		return nil, fmt.Errorf("register page context: %s %s", res.Status, apiErr.Error.Message)
	}

	var pc models.PageContext
	if err := json.NewDecoder(res.Body).Decode(&pc); err != nil {
		return nil, fmt.Errorf("decode page context: %w", err)
	}
	return &pc, nil
}

// WebSocketURL turns an http(s) base URL into the socket endpoint.
func WebSocketURL(baseURL string) (string, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	u.Path += "/api/v1/ws"
	return u.String(), nil
}

// Conn is a Page whose orchestrator is reached over a WebSocket.
type Conn struct {
	ws      *websocket.Conn
	page    *Page
	writeMu sync.Mutex
	done    chan struct{}
	log     logger.ILogger
}

// Dial connects to wsURL with a page context token and starts delivering
// inbound messages to a new Page.
func Dial(ctx context.Context, wsURL, token string, opts Options) (*Conn, error) {
	u, err := url.Parse(wsURL)
	if err != nil {
		return nil, err
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()

	ws, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", wsURL, err)
	}

	c := &Conn{ws: ws, done: make(chan struct{}), log: opts.Logger}
	if c.log == nil {
		c.log = logger.NewNop()
	}
	c.page = New(c.write, opts)

	go c.readLoop()
	return c, nil
}

func (c *Conn) write(msg protocol.Message) error {
	data, err := protocol.Encode(msg)
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.ws.WriteMessage(websocket.TextMessage, data)
}

func (c *Conn) readLoop() {
	defer close(c.done)
	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			return
		}
		msg, err := protocol.Decode(data)
		if err != nil {
			c.log.Warn("Page", "undecodable frame", map[string]interface{}{"error": err.Error()})
			continue
		}
		if err := c.page.Deliver(msg); err != nil {
			c.log.Warn("Page", "message not handled", map[string]interface{}{"type": msg.Type(), "error": err.Error()})
		}
	}
}

func (c *Conn) Page() *Page {
	return c.page
}

// Done is closed when the connection ends.
func (c *Conn) Done() <-chan struct{} {
	return c.done
}

func (c *Conn) Close() error {
	c.writeMu.Lock()
	c.ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	c.writeMu.Unlock()
	err := c.ws.Close()
	<-c.done
	return err
}
