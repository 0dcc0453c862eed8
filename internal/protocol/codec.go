package protocol

import (
	"encoding/json"
	"fmt"
)

// wireMessage is the JSON frame: {"type": "...", "payload": {...}}.
type wireMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

var decoders = map[string]func(json.RawMessage) (Message, error){
	"showLoading":          empty(ShowLoading{}),
	"showResponse":         decodeAs[ShowResponse],
	"showFollowUpResponse": decodeAs[ShowFollowUpResponse],
	"showError":            decodeAs[ShowError],
	"showOcrError":         decodeAs[ShowOcrError],
	"showEmptyModal":       empty(ShowEmptyModal{}),
	"showOcrResult":        decodeAs[ShowOcrResult],
	"screenshotReady":      decodeAs[ScreenshotReady],
	"showModal":            empty(ShowModal{}),
	"activatePicker":       empty(ActivatePicker{}),
	"askFollowUp":          decodeAs[AskFollowUp],
	"doOcr":                decodeAs[DoOcr],
	"initiateScreenshot":   empty(InitiateScreenshot{}),
	"captureRegion":        decodeAs[CaptureRegion],
	"cancelScreenshot":     empty(CancelScreenshot{}),
	"queryText":            decodeAs[QueryText],
	"queryImage":           decodeAs[QueryImage],
	"openEmpty":            empty(OpenEmpty{}),
	"viewportSnapshot":     decodeAs[ViewportSnapshot],
}

// Encode marshals m into its wire frame.
func Encode(m Message) ([]byte, error) {
	if m == nil {
		return nil, fmt.Errorf("encode: nil message")
	}
	payload, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", m.Type(), err)
	}
	frame := wireMessage{Type: m.Type()}
	if string(payload) != "{}" {
		frame.Payload = payload
	}
	return json.Marshal(frame)
}

// Decode parses a wire frame. Unknown tags are rejected.
func Decode(data []byte) (Message, error) {
	var frame wireMessage
	if err := json.Unmarshal(data, &frame); err != nil {
		return nil, fmt.Errorf("decode frame: %w", err)
	}
	dec, ok := decoders[frame.Type]
	if !ok {
		return nil, fmt.Errorf("decode frame: unknown message type %q", frame.Type)
	}
	return dec(frame.Payload)
}

func decodeAs[T Message](raw json.RawMessage) (Message, error) {
	var m T
	if len(raw) == 0 {
		return m, nil
	}
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", m.Type(), err)
	}
	return m, nil
}

func empty(m Message) func(json.RawMessage) (Message, error) {
	return func(json.RawMessage) (Message, error) { return m, nil }
}

// envelopeJSON is the queued form of an Envelope.
type envelopeJSON struct {
	ContextID string          `json:"context_id"`
	Message   json.RawMessage `json:"message"`
}

// MarshalEnvelope encodes env for queues and pub/sub channels.
func MarshalEnvelope(env Envelope) ([]byte, error) {
	msg, err := Encode(env.Message)
	if err != nil {
		return nil, err
	}
	return json.Marshal(envelopeJSON{ContextID: env.ContextID, Message: msg})
}

func UnmarshalEnvelope(data []byte) (Envelope, error) {
	var raw envelopeJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return Envelope{}, fmt.Errorf("decode envelope: %w", err)
	}
	msg, err := Decode(raw.Message)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{ContextID: raw.ContextID, Message: msg}, nil
}
