package picker

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"screenai-backend/internal/models"
	"screenai-backend/internal/protocol"
)

// recorder logs overlay calls and emitted messages in one sequence, so tests
// can check that teardown happens before the outcome is sent.
type recorder struct {
	events  []string
	updates []Rect
	sent    []protocol.Message
}

func (r *recorder) Show()         { r.events = append(r.events, "show") }
func (r *recorder) Update(x Rect) { r.updates = append(r.updates, x) }
func (r *recorder) Teardown()     { r.events = append(r.events, "teardown") }
func (r *recorder) emit(m protocol.Message) {
	r.events = append(r.events, "emit:"+m.Type())
	r.sent = append(r.sent, m)
}

func activePicker(dpr float64) (*Picker, *recorder) {
	rec := &recorder{}
	p := New(rec, dpr, rec.emit)
	p.Activate()
	return p, rec
}

func drag(p *Picker, from, to Point) {
	p.PointerDown(from)
	p.PointerMove(Point{X: (from.X + to.X) / 2, Y: (from.Y + to.Y) / 2})
	p.PointerUp(to)
}

func TestDragDirectionDoesNotMatter(t *testing.T) {
	forward, recF := activePicker(2)
	drag(forward, Point{50, 50}, Point{100, 100})

	backward, recB := activePicker(2)
	drag(backward, Point{100, 100}, Point{50, 50})

	want := protocol.CaptureRegion{X: 50, Y: 50, Width: 50, Height: 50, DPR: 2}
	require.Len(t, recF.sent, 1)
	require.Len(t, recB.sent, 1)
	assert.Equal(t, want, recF.sent[0])
	assert.Equal(t, want, recB.sent[0])
}

func TestOtherDiagonals(t *testing.T) {
	tests := []struct {
		from, to Point
	}{
		{Point{100, 50}, Point{50, 100}},
		{Point{50, 100}, Point{100, 50}},
	}
	for _, tt := range tests {
		p, rec := activePicker(1)
		drag(p, tt.from, tt.to)
		require.Len(t, rec.sent, 1)
		assert.Equal(t, protocol.CaptureRegion{X: 50, Y: 50, Width: 50, Height: 50, DPR: 1}, rec.sent[0])
	}
}

func TestTinyDragCancels(t *testing.T) {
	tests := []struct {
		name string
		to   Point
	}{
		{"3x3", Point{13, 13}},
		{"exactly threshold", Point{15, 15}},
		{"wide but flat", Point{300, 12}},
		{"click", Point{10, 10}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, rec := activePicker(1)
			drag(p, Point{10, 10}, tt.to)
			assert.Equal(t, []protocol.Message{protocol.CancelScreenshot{}}, rec.sent)
			assert.Equal(t, models.PickerResolved, p.State())
		})
	}
}

func TestTeardownPrecedesOutcome(t *testing.T) {
	p, rec := activePicker(1)
	drag(p, Point{0, 0}, Point{40, 40})
	assert.Equal(t, []string{"show", "teardown", "emit:captureRegion"}, rec.events)

	p, rec = activePicker(1)
	p.KeyDown(KeyEscape)
	assert.Equal(t, []string{"show", "teardown", "emit:cancelScreenshot"}, rec.events)
}

func TestEscapeCancelsWhileDragging(t *testing.T) {
	p, rec := activePicker(1)
	p.PointerDown(Point{10, 10})
	p.PointerMove(Point{80, 80})
	assert.Equal(t, models.PickerDragging, p.State())

	p.KeyDown(KeyEscape)
	p.PointerUp(Point{80, 80})

	assert.Equal(t, []protocol.Message{protocol.CancelScreenshot{}}, rec.sent)
	select {
	case <-p.Done():
	default:
		t.Fatal("expected Done to be closed")
	}
}

func TestExactlyOneOutcome(t *testing.T) {
	p, rec := activePicker(1)
	drag(p, Point{0, 0}, Point{40, 40})
	p.KeyDown(KeyEscape)
	p.Cancel()
	drag(p, Point{0, 0}, Point{80, 80})
	p.Activate()

	assert.Len(t, rec.sent, 1)
	assert.Equal(t, 1, countOf(rec.events, "teardown"))
}

func TestIgnoresInputBeforeActivationAndOtherKeys(t *testing.T) {
	rec := &recorder{}
	p := New(rec, 1, rec.emit)
	p.PointerDown(Point{0, 0})
	p.KeyDown(KeyEscape)
	assert.Equal(t, models.PickerIdle, p.State())
	assert.Empty(t, rec.sent)

	p.Activate()
	p.KeyDown("Enter")
	assert.Empty(t, rec.sent)
}

func TestMoveTracksRectangle(t *testing.T) {
	p, rec := activePicker(1)
	p.PointerDown(Point{100, 100})
	p.PointerMove(Point{40, 130})

	assert.Equal(t, Rect{X: 40, Y: 100, Width: 60, Height: 30}, p.Selection())
	assert.Equal(t, Rect{X: 40, Y: 100, Width: 60, Height: 30}, rec.updates[len(rec.updates)-1])
}

func TestClipPath(t *testing.T) {
	got := ClipPath(Rect{X: 10, Y: 20, Width: 30, Height: 40.5})
	assert.Equal(t, "polygon(0% 0%, 0% 100%, 100% 100%, 100% 0%, 0% 0%, "+
		"10px 20px, 40px 20px, 40px 60.5px, 10px 60.5px, 10px 20px)", got)
}

func countOf(events []string, name string) int {
	n := 0
	for _, e := range events {
		if e == name {
			n++
		}
	}
	return n
}
