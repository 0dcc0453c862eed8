package websocket

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"screenai-backend/internal/pkg/logger"
	"screenai-backend/internal/protocol"
)

const (
	writeWait      = 10 * time.Second
	maxMessageSize = 16 << 20 // viewport snapshots are large
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// TokenVerifier resolves a page context token to its context id.
type TokenVerifier interface {
	Verify(token string) (string, error)
}

// Enqueuer accepts inbound page messages for the orchestrator.
type Enqueuer interface {
	Enqueue(ctx context.Context, env protocol.Envelope) error
}

const (
	msgThrottled   = "Too many requests. Please wait a moment and try again."
	msgUnavailable = "The assistant is unavailable. Please try again."
)

type client struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
	limiter *rate.Limiter
}

func (c *client) write(data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// Hub holds the sockets of every connected page context. Inbound frames go to
// the intent queue; results arrive on the context's pub/sub channel and are
// written to all of its sockets.
type Hub struct {
	mu          sync.RWMutex
	connections map[string][]*client
	cancelFuncs map[string]context.CancelFunc
	redisClient *redis.Client
	tokens      TokenVerifier
	queue       Enqueuer
	channelFor  func(contextID string) string
	msgRate     rate.Limit
	msgBurst    int
	log         logger.ILogger
}

// NewHub builds a hub. redisClient may be nil, in which case results must be
// pushed with SendToContext.
func NewHub(redisClient *redis.Client, tokens TokenVerifier, queue Enqueuer, channelFor func(string) string, log logger.ILogger) *Hub {
	return &Hub{
		connections: make(map[string][]*client),
		cancelFuncs: make(map[string]context.CancelFunc),
		redisClient: redisClient,
		tokens:      tokens,
		queue:       queue,
		channelFor:  channelFor,
		msgRate:     rate.Limit(10),
		msgBurst:    20,
		log:         log,
	}
}

// SetMessageRate changes the per-socket inbound limit for new connections.
func (h *Hub) SetMessageRate(r rate.Limit, burst int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.msgRate, h.msgBurst = r, burst
}

func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	// Authenticate via token query param
	tokenStr := r.URL.Query().Get("token")
	if tokenStr == "" {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	contextID, err := h.tokens.Verify(tokenStr)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("Hub", "upgrade failed", map[string]interface{}{"error": err.Error()})
		return
	}
	conn.SetReadLimit(maxMessageSize)

	h.mu.RLock()
	limiter := rate.NewLimiter(h.msgRate, h.msgBurst)
	h.mu.RUnlock()

	c := &client{conn: conn, limiter: limiter}
	h.registerConnection(contextID, c)

	go func() {
		defer h.unregisterConnection(contextID, c)
		h.readLoop(contextID, c)
	}()
}

func (h *Hub) readLoop(contextID string, c *client) {
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}

		msg, err := protocol.Decode(data)
		if err != nil {
			h.log.Warn("Hub", "undecodable frame", map[string]interface{}{"context_id": contextID, "error": err.Error()})
			continue
		}
		if protocol.DirectionOf(msg) != protocol.ToOrchestrator {
			h.log.Warn("Hub", "page sent a page-bound message", map[string]interface{}{"context_id": contextID, "type": msg.Type()})
			continue
		}

		if !c.limiter.Allow() {
			h.log.Warn("Hub", "inbound message dropped: rate limited", map[string]interface{}{"context_id": contextID, "type": msg.Type()})
			// a viewport push has no answer to wait for; anything else
			// would leave the panel loading
			if _, ok := msg.(protocol.ViewportSnapshot); !ok {
				h.reply(contextID, c, protocol.ShowError{Message: msgThrottled})
			}
			continue
		}

		env := protocol.Envelope{ContextID: contextID, Message: msg}
		if err := h.queue.Enqueue(context.Background(), env); err != nil {
			h.log.Error("Hub", "enqueue failed", map[string]interface{}{"context_id": contextID, "error": err.Error()})
			h.reply(contextID, c, protocol.ShowError{Message: msgUnavailable})
		}
	}
}

// reply writes msg to one socket only.
func (h *Hub) reply(contextID string, c *client, msg protocol.Message) {
	frame, err := protocol.Encode(msg)
	if err == nil {
		err = c.write(frame)
	}
	if err != nil {
		h.log.Debug("Hub", "reply failed", map[string]interface{}{"context_id": contextID, "type": msg.Type(), "error": err.Error()})
	}
}

func (h *Hub) registerConnection(contextID string, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.connections[contextID] = append(h.connections[contextID], c)

	// Start pub/sub subscription if this is the first connection for this context
	if len(h.connections[contextID]) == 1 && h.redisClient != nil {
		ctx, cancel := context.WithCancel(context.Background())
		h.cancelFuncs[contextID] = cancel
		go h.subscribeToPubSub(ctx, contextID)
	}

	h.log.Info("Hub", "socket connected", map[string]interface{}{"context_id": contextID, "total": len(h.connections[contextID])})
}

func (h *Hub) unregisterConnection(contextID string, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	c.conn.Close()

	conns := h.connections[contextID]
	for i, existing := range conns {
		if existing == c {
			h.connections[contextID] = append(conns[:i], conns[i+1:]...)
			break
		}
	}

	// If no more connections, cancel pub/sub
	if len(h.connections[contextID]) == 0 {
		delete(h.connections, contextID)
		if cancel, ok := h.cancelFuncs[contextID]; ok {
			cancel()
			delete(h.cancelFuncs, contextID)
		}
	}

	h.log.Info("Hub", "socket disconnected", map[string]interface{}{"context_id": contextID})
}

func (h *Hub) subscribeToPubSub(ctx context.Context, contextID string) {
	pubsub := h.redisClient.Subscribe(ctx, h.channelFor(contextID))
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			h.broadcast(contextID, []byte(msg.Payload))
		}
	}
}

func (h *Hub) broadcast(contextID string, data []byte) {
	h.mu.RLock()
	conns := append([]*client(nil), h.connections[contextID]...)
	h.mu.RUnlock()

	for _, c := range conns {
		if err := c.write(data); err != nil {
			h.log.Debug("Hub", "write failed", map[string]interface{}{"context_id": contextID, "error": err.Error()})
		}
	}
}

// SendToContext writes a message directly to a page context's sockets,
// bypassing pub/sub. It satisfies the orchestrator's Sender for a
// single-process server.
func (h *Hub) SendToContext(_ context.Context, contextID string, msg protocol.Message) error {
	data, err := protocol.Encode(msg)
	if err != nil {
		return err
	}
	h.broadcast(contextID, data)
	return nil
}

// Connected reports how many sockets a page context has open.
func (h *Hub) Connected(contextID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.connections[contextID])
}
