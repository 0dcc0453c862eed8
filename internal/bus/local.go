// Package bus connects page contexts to an orchestrator inside one process.
package bus

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"screenai-backend/internal/pkg/logger"
	"screenai-backend/internal/protocol"
)

var ErrUnknownContext = errors.New("bus: no page attached for context")

// Page receives messages addressed to one page context.
type Page interface {
	Deliver(msg protocol.Message) error
}

type Dispatcher interface {
	Dispatch(ctx context.Context, env protocol.Envelope) error
}

// Local is both the orchestrator's Sender and the pages' way up. Each page
// context has a mailbox drained by one goroutine: its messages are dispatched
// in the order posted, while other contexts proceed in parallel.
type Local struct {
	mu         sync.RWMutex
	pages      map[string]Page
	dispatcher Dispatcher
	log        logger.ILogger
	wg         sync.WaitGroup

	boxMu sync.Mutex
	boxes map[string]*mailbox
}

type posted struct {
	ctx context.Context
	msg protocol.Message
}

// mailbox exists only while it has a drainer running.
type mailbox struct {
	pending []posted
}

func NewLocal(log logger.ILogger) *Local {
	if log == nil {
		log = logger.NewNop()
	}
	return &Local{pages: make(map[string]Page), boxes: make(map[string]*mailbox), log: log}
}

// Bind sets the orchestrator. It must be called before the first Post.
func (b *Local) Bind(d Dispatcher) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.dispatcher = d
}

// Attach registers page under contextID and returns a function that removes it.
func (b *Local) Attach(contextID string, page Page) func() {
	b.mu.Lock()
	b.pages[contextID] = page
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if b.pages[contextID] == page {
			delete(b.pages, contextID)
		}
	}
}

// Send delivers an orchestrator result to the page, in the caller's goroutine.
func (b *Local) Send(_ context.Context, contextID string, msg protocol.Message) error {
	b.mu.RLock()
	page, ok := b.pages[contextID]
	b.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w %s", ErrUnknownContext, contextID)
	}
	return page.Deliver(msg)
}

// Post queues a page message for the orchestrator without waiting for it.
func (b *Local) Post(ctx context.Context, contextID string, msg protocol.Message) error {
	b.mu.RLock()
	d := b.dispatcher
	b.mu.RUnlock()
	if d == nil {
		return errors.New("bus: no orchestrator bound")
	}

	b.wg.Add(1)
	b.boxMu.Lock()
	box, running := b.boxes[contextID]
	if !running {
		box = &mailbox{}
		b.boxes[contextID] = box
	}
	box.pending = append(box.pending, posted{ctx: ctx, msg: msg})
	b.boxMu.Unlock()

	if !running {
		go b.drain(d, contextID, box)
	}
	return nil
}

func (b *Local) drain(d Dispatcher, contextID string, box *mailbox) {
	for {
		b.boxMu.Lock()
		if len(box.pending) == 0 {
			delete(b.boxes, contextID)
			b.boxMu.Unlock()
			return
		}
		next := box.pending[0]
		box.pending = box.pending[1:]
		b.boxMu.Unlock()

		env := protocol.Envelope{ContextID: contextID, Message: next.msg}
		if err := d.Dispatch(next.ctx, env); err != nil {
			b.log.Warn("Bus", "dispatch failed", map[string]interface{}{
				"context_id": contextID,
				"type":       next.msg.Type(),
				"error":      err.Error(),
			})
		}
		b.wg.Done()
	}
}

// Sender returns the page-side send function for contextID.
func (b *Local) Sender(ctx context.Context, contextID string) func(protocol.Message) error {
	return func(msg protocol.Message) error {
		return b.Post(ctx, contextID, msg)
	}
}

// Wait blocks until every posted message has been dispatched, including
// messages posted while waiting.
func (b *Local) Wait() {
	b.wg.Wait()
}
