// Package orchestrator is the process-wide coordinator. It is the only
// component that touches credentials and external providers, and it routes
// every result back by page context id alone.
package orchestrator

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"

	"screenai-backend/internal/capture"
	"screenai-backend/internal/credentials"
	"screenai-backend/internal/models"
	"screenai-backend/internal/pkg/logger"
	"screenai-backend/internal/protocol"
	"screenai-backend/internal/services"
)

// ErrMisrouted is returned by Dispatch for messages meant for a page.
var ErrMisrouted = errors.New("orchestrator: message is not addressed to the orchestrator")

// Sender delivers a message to one page context.
type Sender interface {
	Send(ctx context.Context, contextID string, msg protocol.Message) error
}

type Generator interface {
	Generate(ctx context.Context, apiKey, model string, turns []services.Turn) (string, error)
}

type Recognizer interface {
	Recognize(ctx context.Context, apiKey, imageBase64 string) (string, error)
}

type ImageFetcher interface {
	Fetch(ctx context.Context, imageURL string) (*services.InlineImage, error)
}

type Deps struct {
	Sender      Sender
	Generator   Generator
	Recognizer  Recognizer
	Images      ImageFetcher
	Capturer    capture.Capturer
	Credentials credentials.Store
	Logger      logger.ILogger

	// Models default to the fast text model and the stronger vision model.
	TextModel   string
	VisionModel string
}

type Orchestrator struct {
	sender      Sender
	gen         Generator
	ocr         Recognizer
	images      ImageFetcher
	capturer    capture.Capturer
	creds       credentials.Store
	log         logger.ILogger
	textModel   string
	visionModel string
}

func New(d Deps) *Orchestrator {
	o := &Orchestrator{
		sender:      d.Sender,
		gen:         d.Generator,
		ocr:         d.Recognizer,
		images:      d.Images,
		capturer:    d.Capturer,
		creds:       d.Credentials,
		log:         d.Logger,
		textModel:   d.TextModel,
		visionModel: d.VisionModel,
	}
	if o.textModel == "" {
		o.textModel = services.DefaultTextModel
	}
	if o.visionModel == "" {
		o.visionModel = services.DefaultVisionModel
	}
	if o.log == nil {
		o.log = logger.NewNop()
	}
	return o
}

// Dispatch runs the operation for one inbound message. Provider and capture
// failures are reported to the page and do not surface here; the returned
// error is only for messages that could not be handled or delivered.
func (o *Orchestrator) Dispatch(ctx context.Context, env protocol.Envelope) error {
	id := env.ContextID
	switch m := env.Message.(type) {
	case protocol.QueryText:
		if err := o.sender.Send(ctx, id, protocol.ShowLoading{}); err != nil {
			return err
		}
		return o.HandleNewTextQuery(ctx, m.Text, id)
	case protocol.QueryImage:
		if err := o.sender.Send(ctx, id, protocol.ShowLoading{}); err != nil {
			return err
		}
		return o.HandleNewImageQuery(ctx, m.ImageURL, id)
	case protocol.OpenEmpty:
		return o.sender.Send(ctx, id, protocol.ShowEmptyModal{})
	case protocol.AskFollowUp:
		return o.HandleFollowUp(ctx, m.History, id)
	case protocol.DoOcr:
		return o.HandleOcrRequest(ctx, m.ImageBase64, id)
	case protocol.InitiateScreenshot:
		return o.InitiateRegionPick(ctx, id)
	case protocol.CaptureRegion:
		return o.CaptureAndCrop(ctx, m.Region(), id)
	case protocol.CancelScreenshot:
		return o.sender.Send(ctx, id, protocol.ShowModal{})
	case protocol.ViewportSnapshot:
		return o.storeSnapshot(ctx, m.ImageBase64, id)
	case protocol.ShowLoading, protocol.ShowResponse, protocol.ShowFollowUpResponse,
		protocol.ShowError, protocol.ShowOcrError, protocol.ShowEmptyModal,
		protocol.ShowOcrResult, protocol.ScreenshotReady, protocol.ShowModal,
		protocol.ActivatePicker:
		return fmt.Errorf("%w: %s", ErrMisrouted, m.Type())
	default:
		return fmt.Errorf("orchestrator: unhandled message %T", m)
	}
}

// HandleNewTextQuery answers a single-turn question.
func (o *Orchestrator) HandleNewTextQuery(ctx context.Context, text, contextID string) error {
	key, err := o.creds.Get(ctx, credentials.ProviderGemini)
	if err != nil {
		return o.fail(ctx, contextID, "text query", err)
	}

	reply, err := o.gen.Generate(ctx, key, o.textModel, []services.Turn{{Role: models.RoleUser, Text: text}})
	if err != nil {
		return o.fail(ctx, contextID, "text query", err)
	}
	return o.sender.Send(ctx, contextID, protocol.ShowResponse{Prompt: text, Response: reply})
}

// ImagePrompt is what the conversation records as the user's turn for an
// image query.
func ImagePrompt(imageURL string) string {
	return "Analyze image: " + imageURL
}

// HandleNewImageQuery fetches the image and asks the vision model to describe it.
func (o *Orchestrator) HandleNewImageQuery(ctx context.Context, imageURL, contextID string) error {
	key, err := o.creds.Get(ctx, credentials.ProviderGemini)
	if err != nil {
		return o.fail(ctx, contextID, "image query", err)
	}

	img, err := o.images.Fetch(ctx, imageURL)
	if err != nil {
		return o.fail(ctx, contextID, "image query", err)
	}

	turns := []services.Turn{{Role: models.RoleUser, Text: services.ImageInstruction, Image: img}}
	reply, err := o.gen.Generate(ctx, key, o.visionModel, turns)
	if err != nil {
		return o.fail(ctx, contextID, "image query", err)
	}
	return o.sender.Send(ctx, contextID, protocol.ShowResponse{Prompt: ImagePrompt(imageURL), Response: reply})
}

// HandleFollowUp answers the whole conversation with one assistant message.
// Follow-ups always use the text model, even for image conversations.
func (o *Orchestrator) HandleFollowUp(ctx context.Context, history models.ChatHistory, contextID string) error {
	last, ok := history.Last()
	if !ok || last.Role != models.RoleUser {
		return o.fail(ctx, contextID, "follow-up",
			models.NewError(models.KindInternal, "There is no question to answer.", nil))
	}

	key, err := o.creds.Get(ctx, credentials.ProviderGemini)
	if err != nil {
		return o.fail(ctx, contextID, "follow-up", err)
	}

	reply, err := o.gen.Generate(ctx, key, o.textModel, services.TurnsFromHistory(history))
	if err != nil {
		return o.fail(ctx, contextID, "follow-up", err)
	}
	return o.sender.Send(ctx, contextID, protocol.ShowFollowUpResponse{Role: models.RoleAssistant, Content: reply})
}

// HandleOcrRequest extracts text from a base64 image.
func (o *Orchestrator) HandleOcrRequest(ctx context.Context, imageBase64, contextID string) error {
	key, err := o.creds.Get(ctx, credentials.ProviderOCRSpace)
	if err != nil {
		return o.failOcr(ctx, contextID, err)
	}

	text, err := o.ocr.Recognize(ctx, key, imageBase64)
	if err != nil {
		return o.failOcr(ctx, contextID, err)
	}
	return o.sender.Send(ctx, contextID, protocol.ShowOcrResult{Text: text})
}

func (o *Orchestrator) InitiateRegionPick(ctx context.Context, contextID string) error {
	return o.sender.Send(ctx, contextID, protocol.ActivatePicker{})
}

// CaptureAndCrop crops the page's visible viewport to region and hands the
// image to the panel for OCR.
func (o *Orchestrator) CaptureAndCrop(ctx context.Context, region models.SelectionRegion, contextID string) error {
	frame, err := o.capturer.CaptureVisible(ctx, contextID)
	if err != nil {
		return o.fail(ctx, contextID, "capture", err)
	}

	cropped, err := capture.Crop(frame, region)
	if err != nil {
		return o.fail(ctx, contextID, "crop", err)
	}

	return o.sender.Send(ctx, contextID, protocol.ScreenshotReady{
		ImageBase64: base64.StdEncoding.EncodeToString(cropped),
	})
}

func (o *Orchestrator) storeSnapshot(ctx context.Context, imageBase64, contextID string) error {
	store, ok := o.capturer.(capture.FrameStore)
	if !ok {
		return fmt.Errorf("orchestrator: capturer does not accept viewport snapshots")
	}
	frame, err := base64.StdEncoding.DecodeString(imageBase64)
	if err != nil {
		return fmt.Errorf("orchestrator: decode viewport snapshot: %w", err)
	}
	return store.Put(ctx, contextID, frame)
}

func (o *Orchestrator) fail(ctx context.Context, contextID, op string, err error) error {
	o.logFailure(contextID, op, err)
	return o.sender.Send(ctx, contextID, protocol.ShowError{Message: models.UserMessage(err)})
}

func (o *Orchestrator) failOcr(ctx context.Context, contextID string, err error) error {
	o.logFailure(contextID, "ocr", err)
	return o.sender.Send(ctx, contextID, protocol.ShowOcrError{Message: models.UserMessage(err)})
}

func (o *Orchestrator) logFailure(contextID, op string, err error) {
	o.log.Warn("Orchestrator", op+" failed", map[string]interface{}{
		"context_id": contextID,
		"kind":       string(models.KindOf(err)),
		"error":      err.Error(),
	})
}
