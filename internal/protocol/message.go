// Package protocol defines the messages exchanged between the orchestrator,
// the per-page modal controller and the region picker.
//
// Message is a closed set: only types in this package implement it. Receivers
// dispatch with a type switch and treat any other value as a programming error.
package protocol

import "screenai-backend/internal/models"

type Message interface {
	// Type returns the wire tag.
	Type() string
	sealed()
}

// Direction groups message kinds by receiver.
type Direction int

const (
	ToModal Direction = iota
	ToPicker
	ToOrchestrator
)

// ──── Orchestrator → Modal ────

// ShowLoading enters Loading for a new query.
type ShowLoading struct{}

// ShowResponse is a first-turn success.
type ShowResponse struct {
	Prompt   string `json:"prompt"`
	Response string `json:"response"`
}

// ShowFollowUpResponse is a follow-up success.
type ShowFollowUpResponse struct {
	Role    models.Role `json:"role"`
	Content string      `json:"content"`
}

type ShowError struct {
	Message string `json:"message"`
}

type ShowOcrError struct {
	Message string `json:"message"`
}

// ShowEmptyModal opens the panel with no content.
type ShowEmptyModal struct{}

type ShowOcrResult struct {
	Text string `json:"text"`
}

// ScreenshotReady carries the cropped region; the modal starts OCR on it.
type ScreenshotReady struct {
	ImageBase64 string `json:"imageBase64"`
}

// ShowModal restores the panel after a cancelled region pick.
type ShowModal struct{}

// ──── Orchestrator → Picker ────

type ActivatePicker struct{}

// ──── Modal / Picker / Host → Orchestrator ────

type AskFollowUp struct {
	History models.ChatHistory `json:"history"`
}

type DoOcr struct {
	ImageBase64 string `json:"imageBase64"`
}

type InitiateScreenshot struct{}

type CaptureRegion struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	DPR    float64 `json:"dpr"`
}

type CancelScreenshot struct{}

// QueryText starts a new conversation from selected text.
type QueryText struct {
	Text string `json:"text"`
}

// QueryImage starts a new conversation about an image on the page.
type QueryImage struct {
	ImageURL string `json:"imageUrl"`
}

// OpenEmpty is sent when the shortcut fires with nothing selected.
type OpenEmpty struct{}

// ViewportSnapshot publishes the page's current visible viewport. It is the
// capture source the orchestrator crops from.
type ViewportSnapshot struct {
	ImageBase64 string `json:"imageBase64"`
}

func (ShowLoading) Type() string          { return "showLoading" }
func (ShowResponse) Type() string         { return "showResponse" }
func (ShowFollowUpResponse) Type() string { return "showFollowUpResponse" }
func (ShowError) Type() string            { return "showError" }
func (ShowOcrError) Type() string         { return "showOcrError" }
func (ShowEmptyModal) Type() string       { return "showEmptyModal" }
func (ShowOcrResult) Type() string        { return "showOcrResult" }
func (ScreenshotReady) Type() string      { return "screenshotReady" }
func (ShowModal) Type() string            { return "showModal" }
func (ActivatePicker) Type() string       { return "activatePicker" }
func (AskFollowUp) Type() string          { return "askFollowUp" }
func (DoOcr) Type() string                { return "doOcr" }
func (InitiateScreenshot) Type() string   { return "initiateScreenshot" }
func (CaptureRegion) Type() string        { return "captureRegion" }
func (CancelScreenshot) Type() string     { return "cancelScreenshot" }
func (QueryText) Type() string            { return "queryText" }
func (QueryImage) Type() string           { return "queryImage" }
func (OpenEmpty) Type() string            { return "openEmpty" }
func (ViewportSnapshot) Type() string     { return "viewportSnapshot" }

func (ShowLoading) sealed()          {}
func (ShowResponse) sealed()         {}
func (ShowFollowUpResponse) sealed() {}
func (ShowError) sealed()            {}
func (ShowOcrError) sealed()         {}
func (ShowEmptyModal) sealed()       {}
func (ShowOcrResult) sealed()        {}
func (ScreenshotReady) sealed()      {}
func (ShowModal) sealed()            {}
func (ActivatePicker) sealed()       {}
func (AskFollowUp) sealed()          {}
func (DoOcr) sealed()                {}
func (InitiateScreenshot) sealed()   {}
func (CaptureRegion) sealed()        {}
func (CancelScreenshot) sealed()     {}
func (QueryText) sealed()            {}
func (QueryImage) sealed()           {}
func (OpenEmpty) sealed()            {}
func (ViewportSnapshot) sealed()     {}

// Region converts the picker payload to a SelectionRegion.
func (m CaptureRegion) Region() models.SelectionRegion {
	return models.SelectionRegion{X: m.X, Y: m.Y, Width: m.Width, Height: m.Height, DevicePixelRatio: m.DPR}
}

// ChatMessage returns the reply as a history entry.
func (m ShowFollowUpResponse) ChatMessage() models.ChatMessage {
	return models.ChatMessage{Role: m.Role, Content: m.Content}
}

// DirectionOf reports which context consumes m.
func DirectionOf(m Message) Direction {
	switch m.(type) {
	case ActivatePicker:
		return ToPicker
	case AskFollowUp, DoOcr, InitiateScreenshot, CaptureRegion, CancelScreenshot,
		QueryText, QueryImage, OpenEmpty, ViewportSnapshot:
		return ToOrchestrator
	default:
		return ToModal
	}
}

// Envelope pairs a message with the page context it came from or is bound for.
type Envelope struct {
	ContextID string
	Message   Message
}
