// Package pagectx is the runtime of one page context: a modal controller and
// at most one active region picker, fed by messages from the orchestrator.
package pagectx

import (
	"fmt"
	"sync"
	"time"

	"screenai-backend/internal/modal"
	"screenai-backend/internal/models"
	"screenai-backend/internal/pkg/logger"
	"screenai-backend/internal/picker"
	"screenai-backend/internal/protocol"
)

type Options struct {
	DevicePixelRatio float64
	// NewOverlay builds the surface for each picker activation. Defaults to
	// picker.NopOverlay.
	NewOverlay   func() picker.Overlay
	OnChange     func(modal.Snapshot)
	TickInterval time.Duration
	Logger       logger.ILogger
}

type Page struct {
	mu         sync.Mutex
	picker     *picker.Picker
	modal      *modal.Controller
	send       func(protocol.Message) error
	newOverlay func() picker.Overlay
	dpr        float64
	log        logger.ILogger
}

// New builds a page whose messages to the orchestrator go through send.
func New(send func(protocol.Message) error, opts Options) *Page {
	p := &Page{
		send:       send,
		newOverlay: opts.NewOverlay,
		dpr:        opts.DevicePixelRatio,
		log:        opts.Logger,
	}
	if p.newOverlay == nil {
		p.newOverlay = func() picker.Overlay { return picker.NopOverlay{} }
	}
	if p.dpr <= 0 {
		p.dpr = 1
	}
	if p.log == nil {
		p.log = logger.NewNop()
	}
	p.modal = modal.NewController(modal.Options{
		Send:         send,
		OnChange:     opts.OnChange,
		TickInterval: opts.TickInterval,
		Logger:       p.log,
	})
	return p
}

// Deliver routes a message from the orchestrator.
func (p *Page) Deliver(msg protocol.Message) error {
	switch protocol.DirectionOf(msg) {
	case protocol.ToPicker:
		p.activatePicker()
		return nil
	case protocol.ToModal:
		return p.modal.Handle(msg)
	default:
		return fmt.Errorf("pagectx: %s is addressed to the orchestrator", msg.Type())
	}
}

// activatePicker hides the panel and shows a fresh picker. The two never own
// the page at the same time.
func (p *Page) activatePicker() {
	p.mu.Lock()
	if p.picker != nil && p.picker.State() != models.PickerResolved {
		p.mu.Unlock()
		return
	}
	pk := picker.New(p.newOverlay(), p.dpr, p.emitFromPicker)
	p.picker = pk
	p.mu.Unlock()

	p.modal.BeginPick()
	pk.Activate()
}

func (p *Page) emitFromPicker(msg protocol.Message) {
	if err := p.send(msg); err != nil {
		p.log.Warn("Page", "picker outcome not delivered", map[string]interface{}{"type": msg.Type(), "error": err.Error()})
		// the orchestrator will never answer; bring the panel back
		p.modal.EndPick()
	}
}

func (p *Page) Modal() *modal.Controller {
	return p.modal
}

// Picker returns the current picker activation, or nil if none was started.
func (p *Page) Picker() *picker.Picker {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.picker
}

// QueryText starts a new conversation about the selected text.
func (p *Page) QueryText(text string) error {
	return p.send(protocol.QueryText{Text: text})
}

// QueryImage starts a new conversation about the image at url.
func (p *Page) QueryImage(url string) error {
	return p.send(protocol.QueryImage{ImageURL: url})
}

// OpenEmpty opens the panel without a question.
func (p *Page) OpenEmpty() error {
	return p.send(protocol.OpenEmpty{})
}

// PushViewport sends the current visible viewport, base64 encoded, so a
// later region pick can be cropped from it.
func (p *Page) PushViewport(imageBase64 string) error {
	return p.send(protocol.ViewportSnapshot{ImageBase64: imageBase64})
}
