// Package modal holds the per-page chat panel state machine. The controller
// owns the chat history; the rendered panel is only ever a projection of it.
package modal

import (
	"encoding/base64"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gabriel-vasile/mimetype"

	"screenai-backend/internal/models"
	"screenai-backend/internal/pkg/logger"
	"screenai-backend/internal/protocol"
)

const DefaultTickInterval = 500 * time.Millisecond

// pending is the kind of answer the controller is waiting for.
type pending int

const (
	awaitNone pending = iota
	awaitFirst
	awaitFollowUp
	awaitOcr
)

type Options struct {
	// Send delivers a message to the orchestrator. It is never called while
	// the controller holds its lock, so it may deliver synchronously.
	Send func(protocol.Message) error
	// OnChange receives a snapshot after every visible change. Calls are
	// serialized and never go backwards: a snapshot older than one already
	// delivered is skipped. OnChange must not call back into the controller.
	OnChange     func(Snapshot)
	TickInterval time.Duration
	Logger       logger.ILogger
}

type Controller struct {
	mu sync.Mutex

	state    models.ModalState
	history  models.ChatHistory
	bubbles  []Bubble
	awaiting pending
	answered bool

	picking    bool
	beforePick models.ModalState

	loading  *indicator
	stopTick chan struct{}
	seq      uint64

	notifyMu  sync.Mutex
	delivered uint64

	send     func(protocol.Message) error
	onChange func(Snapshot)
	interval time.Duration
	log      logger.ILogger
}

func NewController(opts Options) *Controller {
	c := &Controller{
		state:    models.ModalClosed,
		send:     opts.Send,
		onChange: opts.OnChange,
		interval: opts.TickInterval,
		log:      opts.Logger,
	}
	if c.send == nil {
		c.send = func(protocol.Message) error { return nil }
	}
	if c.interval <= 0 {
		c.interval = DefaultTickInterval
	}
	if c.log == nil {
		c.log = logger.NewNop()
	}
	return c
}

// Handle applies a message from the orchestrator. Results are matched by
// destination only, so a result the controller is no longer waiting for is
// dropped.
func (c *Controller) Handle(msg protocol.Message) error {
	switch m := msg.(type) {
	case protocol.ShowLoading:
		c.StartNewQuery()
	case protocol.ShowEmptyModal:
		c.StartEmptyOpen()
	case protocol.ShowResponse:
		c.firstResponse(m.Prompt, m.Response)
	case protocol.ShowFollowUpResponse:
		c.followUpResponse(m.ChatMessage())
	case protocol.ShowOcrResult:
		c.ocrResult(m.Text)
	case protocol.ShowError:
		c.showError(m.Message)
	case protocol.ShowOcrError:
		c.showError(m.Message)
	case protocol.ScreenshotReady:
		return c.screenshotReady(m.ImageBase64)
	case protocol.ShowModal:
		c.EndPick()
	case protocol.ActivatePicker:
		c.BeginPick()
	default:
		return fmt.Errorf("%w: %s is not addressed to the panel", ErrInvalidTransition, msg.Type())
	}
	return nil
}

// StartNewQuery opens the panel for a fresh query and waits for its answer.
// Any previous conversation is discarded.
func (c *Controller) StartNewQuery() {
	c.mu.Lock()
	c.resetLocked()
	c.state = models.ModalLoading
	c.awaiting = awaitFirst
	c.startLoadingLocked(labelLoading)
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.notify(snap)
}

// StartEmptyOpen opens the panel with no content. Nothing is requested, so
// the panel goes straight to Chat.
func (c *Controller) StartEmptyOpen() {
	c.mu.Lock()
	c.resetLocked()
	c.state = models.ModalChat
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.notify(snap)
}

func (c *Controller) firstResponse(prompt, response string) {
	c.mu.Lock()
	if c.awaiting != awaitFirst || c.state != models.ModalLoading {
		c.mu.Unlock()
		c.log.Debug("Modal", "dropping stale response", nil)
		return
	}
	c.stopLoadingLocked()
	c.awaiting = awaitNone
	c.answered = true
	c.history = models.ChatHistory{
		{Role: models.RoleUser, Content: prompt},
		{Role: models.RoleAssistant, Content: response},
	}
	c.bubbles = []Bubble{newBubble(BubbleUser, prompt), newBubble(BubbleAssistant, response)}
	c.state = models.ModalChat
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.notify(snap)
}

func (c *Controller) followUpResponse(msg models.ChatMessage) {
	c.mu.Lock()
	if c.awaiting != awaitFollowUp || c.state == models.ModalClosed {
		c.mu.Unlock()
		c.log.Debug("Modal", "dropping stale follow-up response", nil)
		return
	}
	c.stopLoadingLocked()
	c.awaiting = awaitNone
	c.answered = true
	c.history = c.history.Append(msg)
	c.bubbles = append(c.bubbles, newBubble(BubbleAssistant, msg.Content))
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.notify(snap)
}

func (c *Controller) ocrResult(text string) {
	c.mu.Lock()
	if c.awaiting != awaitOcr || c.state == models.ModalClosed {
		c.mu.Unlock()
		c.log.Debug("Modal", "dropping stale OCR result", nil)
		return
	}
	c.stopLoadingLocked()
	c.awaiting = awaitNone
	c.bubbles = append(c.bubbles, newBubble(BubbleOcrResult, text))
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.notify(snap)
}

// showError replaces any pending indicator with an error bubble. A closed
// panel only reopens for an error that ends a region pick; anything else is
// stale.
func (c *Controller) showError(message string) {
	c.mu.Lock()
	if c.state == models.ModalClosed {
		if !c.picking {
			c.mu.Unlock()
			c.log.Debug("Modal", "dropping error for closed panel", map[string]interface{}{"message": message})
			return
		}
		c.resetLocked()
		c.state = models.ModalChat
	}
	c.picking = false
	c.stopLoadingLocked()
	c.awaiting = awaitNone
	if c.state == models.ModalLoading {
		c.state = models.ModalChat
	}
	c.bubbles = append(c.bubbles, newBubble(BubbleError, message))
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.notify(snap)
}

// screenshotReady shows the panel again and starts OCR on the cropped image.
func (c *Controller) screenshotReady(imageBase64 string) error {
	c.mu.Lock()
	c.picking = false
	if c.state == models.ModalClosed {
		c.resetLocked()
		c.state = models.ModalChat
	}
	if c.state == models.ModalMinimized {
		c.state = models.ModalChat
	}
	c.awaiting = awaitOcr
	c.startLoadingLocked(labelExtracting)
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.notify(snap)
	return c.dispatch(protocol.DoOcr{ImageBase64: imageBase64})
}

// SubmitFollowUp appends the user's question at once and asks for an answer
// to the whole conversation.
func (c *Controller) SubmitFollowUp(text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrEmptyInput
	}

	c.mu.Lock()
	if err := c.readyLocked(); err != nil {
		c.mu.Unlock()
		return err
	}
	c.history = c.history.Append(models.ChatMessage{Role: models.RoleUser, Content: text})
	c.bubbles = append(c.bubbles, newBubble(BubbleUser, text))
	c.awaiting = awaitFollowUp
	c.startLoadingLocked(labelLoading)
	history := c.history.Clone()
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.notify(snap)
	return c.dispatch(protocol.AskFollowUp{History: history})
}

// SubmitOcrResultToAI continues the conversation with extracted text as the
// user's next turn.
func (c *Controller) SubmitOcrResultToAI(text string) error {
	return c.SubmitFollowUp(text)
}

// SubmitImageForOcr sends pasted or uploaded bytes for text extraction.
// Bytes that are not an image get an error bubble and are not sent.
func (c *Controller) SubmitImageForOcr(data []byte) error {
	c.mu.Lock()
	if err := c.readyLocked(); err != nil {
		c.mu.Unlock()
		return err
	}
	if !isImage(data) {
		c.bubbles = append(c.bubbles, newBubble(BubbleError, NotImageMessage))
		snap := c.snapshotLocked()
		c.mu.Unlock()
		c.notify(snap)
		return ErrNotImage
	}
	c.awaiting = awaitOcr
	c.startLoadingLocked(labelExtracting)
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.notify(snap)
	return c.dispatch(protocol.DoOcr{ImageBase64: base64.StdEncoding.EncodeToString(data)})
}

// RequestRegionPick asks the orchestrator to start a region pick. The panel
// is hidden when the picker actually activates.
func (c *Controller) RequestRegionPick() error {
	c.mu.Lock()
	if c.picking {
		c.mu.Unlock()
		return ErrBusy
	}
	if c.awaiting != awaitNone || c.state == models.ModalLoading {
		c.mu.Unlock()
		return ErrBusy
	}
	c.mu.Unlock()

	return c.dispatch(protocol.InitiateScreenshot{})
}

// BeginPick hides the panel while the picker owns the page.
func (c *Controller) BeginPick() {
	c.mu.Lock()
	if !c.picking {
		c.beforePick = c.state
	}
	c.picking = true
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.notify(snap)
}

// EndPick restores the panel after a cancelled pick, in whatever state it had
// before the pick started.
func (c *Controller) EndPick() {
	c.mu.Lock()
	if c.picking {
		c.picking = false
		c.state = c.beforePick
	}
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.notify(snap)
}

// Close discards the conversation. A result still in flight is dropped when
// it arrives.
func (c *Controller) Close() error {
	c.mu.Lock()
	if c.state == models.ModalClosed {
		c.mu.Unlock()
		return ErrNotOpen
	}
	c.resetLocked()
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.notify(snap)
	return nil
}

// ToggleMinimize switches between Chat and Minimized. History is untouched.
func (c *Controller) ToggleMinimize() error {
	c.mu.Lock()
	switch c.state {
	case models.ModalChat:
		c.state = models.ModalMinimized
	case models.ModalMinimized:
		c.state = models.ModalChat
	case models.ModalClosed:
		c.mu.Unlock()
		return ErrNotOpen
	default:
		c.mu.Unlock()
		return fmt.Errorf("%w: cannot minimize while %s", ErrInvalidTransition, c.state)
	}
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.notify(snap)
	return nil
}

func (c *Controller) State() models.ModalState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// History returns a copy of the conversation.
func (c *Controller) History() models.ChatHistory {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.history.Clone()
}

func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// readyLocked reports whether the user may start a request now.
func (c *Controller) readyLocked() error {
	switch {
	case c.state == models.ModalClosed:
		return ErrNotOpen
	case c.state == models.ModalLoading, c.awaiting != awaitNone, c.picking:
		return ErrBusy
	case c.state == models.ModalMinimized:
		return fmt.Errorf("%w: panel is minimized", ErrInvalidTransition)
	}
	return nil
}

// dispatch sends msg and, if it cannot be delivered, turns the pending
// indicator into an error bubble.
func (c *Controller) dispatch(msg protocol.Message) error {
	err := c.send(msg)
	if err == nil {
		return nil
	}
	c.log.Warn("Modal", "send failed", map[string]interface{}{"type": msg.Type(), "error": err.Error()})

	c.mu.Lock()
	c.stopLoadingLocked()
	c.awaiting = awaitNone
	if c.state != models.ModalClosed {
		c.bubbles = append(c.bubbles, newBubble(BubbleError, "Error: Could not reach the assistant. Please try again."))
	}
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.notify(snap)
	return fmt.Errorf("modal: send %s: %w", msg.Type(), err)
}

func (c *Controller) resetLocked() {
	c.stopLoadingLocked()
	c.state = models.ModalClosed
	c.history = nil
	c.bubbles = nil
	c.awaiting = awaitNone
	c.answered = false
	c.picking = false
}

// startLoadingLocked replaces any running indicator with a new one and starts
// its animation.
func (c *Controller) startLoadingLocked(label string) {
	c.stopLoadingLocked()
	ind := &indicator{label: label}
	stop := make(chan struct{})
	c.loading = ind
	c.stopTick = stop
	go c.animate(ind, stop)
}

func (c *Controller) stopLoadingLocked() {
	if c.stopTick != nil {
		close(c.stopTick)
		c.stopTick = nil
	}
	c.loading = nil
}

func (c *Controller) animate(ind *indicator, stop <-chan struct{}) {
	t := time.NewTicker(c.interval)
	defer t.Stop()
	for {
		select {
		case <-stop:
			return
		case <-t.C:
			c.mu.Lock()
			if c.loading != ind {
				c.mu.Unlock()
				return
			}
			ind.frame = (ind.frame + 1) % len(dotFrames)
			snap := c.snapshotLocked()
			c.mu.Unlock()
			c.notify(snap)
		}
	}
}

func (c *Controller) snapshotLocked() Snapshot {
	bubbles := make([]Bubble, len(c.bubbles), len(c.bubbles)+1)
	copy(bubbles, c.bubbles)
	if c.loading != nil {
		bubbles = append(bubbles, newBubble(BubbleLoading, c.loading.text()))
	}
	c.seq++
	placeholder := PlaceholderNew
	if c.answered {
		placeholder = PlaceholderFollowUp
	}
	return Snapshot{
		State:        c.state,
		Hidden:       c.picking,
		History:      c.history.Clone(),
		Bubbles:      bubbles,
		Placeholder:  placeholder,
		InputEnabled: c.readyLocked() == nil,
		seq:          c.seq,
	}
}

// notify hands s to OnChange unless a newer snapshot already went out. A tick
// that took its snapshot before a transition loses the race here.
func (c *Controller) notify(s Snapshot) {
	if c.onChange == nil {
		return
	}
	c.notifyMu.Lock()
	defer c.notifyMu.Unlock()
	if s.seq <= c.delivered {
		return
	}
	c.delivered = s.seq
	c.onChange(s)
}

func isImage(data []byte) bool {
	for m := mimetype.Detect(data); m != nil; m = m.Parent() {
		if strings.HasPrefix(m.String(), "image/") {
			return true
		}
	}
	return false
}
