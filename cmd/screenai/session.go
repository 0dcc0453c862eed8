package main

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"screenai-backend/internal/bus"
	"screenai-backend/internal/capture"
	"screenai-backend/internal/credentials"
	"screenai-backend/internal/modal"
	"screenai-backend/internal/orchestrator"
	"screenai-backend/internal/pagectx"
	"screenai-backend/internal/pkg/logger"
	"screenai-backend/internal/services"
)

// watcher keeps the latest panel snapshot and wakes waiters on change.
type watcher struct {
	mu      sync.Mutex
	last    modal.Snapshot
	changed chan struct{}
}

func newWatcher() *watcher {
	return &watcher{changed: make(chan struct{}, 1)}
}

func (w *watcher) onChange(s modal.Snapshot) {
	w.mu.Lock()
	w.last = s
	w.mu.Unlock()
	select {
	case w.changed <- struct{}{}:
	default:
	}
}

func (w *watcher) bubbles() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.last.Bubbles)
}

// reply blocks until the transcript grows past `after` bubbles and ends in an
// assistant or error bubble. An error bubble comes back as the error.
func (w *watcher) reply(ctx context.Context, after int) (modal.Bubble, error) {
	for {
		w.mu.Lock()
		s := w.last
		w.mu.Unlock()

		if n := len(s.Bubbles); n > after && s.Loading() == "" {
			last := s.Bubbles[n-1]
			switch last.Kind {
			case modal.BubbleAssistant, modal.BubbleOcrResult:
				return last, nil
			case modal.BubbleError:
				return last, errors.New(last.Text)
			}
		}

		select {
		case <-ctx.Done():
			return modal.Bubble{}, ctx.Err()
		case <-w.changed:
		}
	}
}

// session is one page context, either in-process or over the server socket.
type session struct {
	page  *pagectx.Page
	watch *watcher
	close func()
}

func openLocal(ctx context.Context, log logger.ILogger) *session {
	w := newWatcher()
	b := bus.NewLocal(log)
	b.Bind(orchestrator.New(orchestrator.Deps{
		Sender:      b,
		Generator:   services.NewGeminiService(1, log),
		Recognizer:  services.NewOCRService(services.DefaultOCREndpoint, log),
		Images:      services.NewImageFetcher(services.DefaultImageProxy),
		Capturer:    capture.NewMemoryStore(time.Minute),
		Credentials: credentials.NewEnvStore(),
		Logger:      log,
	}))

	id := uuid.NewString()
	page := pagectx.New(b.Sender(ctx, id), pagectx.Options{OnChange: w.onChange, Logger: log})
	detach := b.Attach(id, page)

	return &session{page: page, watch: w, close: func() {
		b.Wait()
		detach()
	}}
}

func openRemote(ctx context.Context, baseURL string, log logger.ILogger) (*session, error) {
	pc, err := pagectx.Register(ctx, baseURL)
	if err != nil {
		return nil, err
	}
	wsURL, err := pagectx.WebSocketURL(baseURL)
	if err != nil {
		return nil, err
	}

	w := newWatcher()
	conn, err := pagectx.Dial(ctx, wsURL, pc.Token, pagectx.Options{OnChange: w.onChange, Logger: log})
	if err != nil {
		return nil, err
	}
	log.Debug("CLI", "page context registered", map[string]interface{}{"context_id": pc.ID, "expires_at": pc.ExpiresAt})

	return &session{page: conn.Page(), watch: w, close: func() { conn.Close() }}, nil
}
