// Package picker implements the drag-to-select region overlay. One Picker
// serves one activation and reports exactly one outcome.
package picker

import (
	"fmt"
	"math"
	"sync"

	"screenai-backend/internal/models"
	"screenai-backend/internal/protocol"
)

// MinSize is the smallest width and height, in CSS pixels, that counts as a
// selection. Anything not strictly larger is a cancellation.
const MinSize = 5

const KeyEscape = "Escape"

type Point struct {
	X, Y float64
}

type Rect struct {
	X, Y, Width, Height float64
}

// Normalize returns the axis-aligned box between two corners.
func Normalize(a, b Point) Rect {
	return Rect{
		X:      math.Min(a.X, b.X),
		Y:      math.Min(a.Y, b.Y),
		Width:  math.Abs(b.X - a.X),
		Height: math.Abs(b.Y - a.Y),
	}
}

// ClipPath is a CSS polygon covering the viewport with r cut out, so the
// dimming layer leaves the selection undimmed.
func ClipPath(r Rect) string {
	l, t, rt, b := r.X, r.Y, r.X+r.Width, r.Y+r.Height
	return fmt.Sprintf("polygon(0%% 0%%, 0%% 100%%, 100%% 100%%, 100%% 0%%, 0%% 0%%, "+
		"%gpx %gpx, %gpx %gpx, %gpx %gpx, %gpx %gpx, %gpx %gpx)",
		l, t, rt, t, rt, b, l, b, l, t)
}

// Overlay is the page surface the picker draws on.
type Overlay interface {
	// Show adds the full viewport dimming layer with a crosshair cursor.
	Show()
	// Update moves the selection box and punches the dimming layer out over it.
	Update(r Rect)
	// Teardown removes the layer and every listener it installed.
	Teardown()
}

type Picker struct {
	mu      sync.Mutex
	state   models.PickerState
	active  bool
	anchor  Point
	rect    Rect
	dpr     float64
	overlay Overlay
	emit    func(protocol.Message)
	done    chan struct{}
}

// New prepares a picker for a page with the given device pixel ratio. emit
// receives either a CaptureRegion or a CancelScreenshot, once.
func New(overlay Overlay, dpr float64, emit func(protocol.Message)) *Picker {
	return &Picker{
		state:   models.PickerIdle,
		dpr:     dpr,
		overlay: overlay,
		emit:    emit,
		done:    make(chan struct{}),
	}
}

// Activate shows the overlay. Calling it again, or after resolution, does nothing.
func (p *Picker) Activate() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.active || p.state == models.PickerResolved {
		return
	}
	p.active = true
	p.overlay.Show()
}

func (p *Picker) PointerDown(pt Point) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.active || p.state != models.PickerIdle {
		return
	}
	p.state = models.PickerDragging
	p.anchor = pt
	p.rect = Rect{X: pt.X, Y: pt.Y}
	p.overlay.Update(p.rect)
}

func (p *Picker) PointerMove(pt Point) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != models.PickerDragging {
		return
	}
	p.rect = Normalize(p.anchor, pt)
	p.overlay.Update(p.rect)
}

func (p *Picker) PointerUp(pt Point) {
	p.mu.Lock()
	if p.state != models.PickerDragging {
		p.mu.Unlock()
		return
	}
	r := Normalize(p.anchor, pt)
	var out protocol.Message = protocol.CancelScreenshot{}
	if r.Width > MinSize && r.Height > MinSize {
		out = protocol.CaptureRegion{X: r.X, Y: r.Y, Width: r.Width, Height: r.Height, DPR: p.dpr}
	}
	p.resolveLocked()
	p.mu.Unlock()

	p.emit(out)
}

// KeyDown cancels on Escape in any active state.
func (p *Picker) KeyDown(key string) {
	if key != KeyEscape {
		return
	}
	p.Cancel()
}

// Cancel ends the activation without a selection.
func (p *Picker) Cancel() {
	p.mu.Lock()
	if !p.active || p.state == models.PickerResolved {
		p.mu.Unlock()
		return
	}
	p.resolveLocked()
	p.mu.Unlock()

	p.emit(protocol.CancelScreenshot{})
}

// resolveLocked tears the overlay down before any outcome leaves the picker.
func (p *Picker) resolveLocked() {
	p.state = models.PickerResolved
	p.active = false
	p.overlay.Teardown()
	close(p.done)
}

func (p *Picker) State() models.PickerState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Selection is the rectangle currently shown while dragging.
func (p *Picker) Selection() Rect {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rect
}

// Done is closed once the picker has resolved.
func (p *Picker) Done() <-chan struct{} {
	return p.done
}

// NopOverlay draws nothing. Headless page contexts use it.
type NopOverlay struct{}

func (NopOverlay) Show()       {}
func (NopOverlay) Update(Rect) {}
func (NopOverlay) Teardown()   {}
