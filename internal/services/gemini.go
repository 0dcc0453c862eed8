package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"screenai-backend/internal/models"
	"screenai-backend/internal/pkg/logger"
)

const (
	DefaultTextModel   = "gemini-2.5-flash"
	DefaultVisionModel = "gemini-2.5-pro"

	// ImageInstruction accompanies every image sent for analysis.
	ImageInstruction = "Describe this image in detail."

	// Provider role names.
	roleUser  = "user"
	roleModel = "model"
)

// InlineImage is an image attached to a turn.
type InlineImage struct {
	MIMEType string
	Data     []byte
}

// Turn is one role-tagged unit of conversation sent to the provider.
type Turn struct {
	Role  models.Role
	Text  string
	Image *InlineImage
}

// TurnsFromHistory maps a chat history onto provider turns.
func TurnsFromHistory(history models.ChatHistory) []Turn {
	turns := make([]Turn, 0, len(history))
	for _, msg := range history {
		turns = append(turns, Turn{Role: msg.Role, Text: msg.Content})
	}
	return turns
}

type GeminiService struct {
	clientOpts []option.ClientOption
	log        logger.ILogger
	rateChan   chan struct{} // Token bucket
}

// NewGeminiService caps concurrent provider calls at concurrentReqs. The API
// key is supplied per call, so extra options must not carry credentials.
func NewGeminiService(concurrentReqs int, log logger.ILogger, opts ...option.ClientOption) *GeminiService {
	if concurrentReqs <= 0 {
		concurrentReqs = 1
	}
	rateChan := make(chan struct{}, concurrentReqs)
	for i := 0; i < concurrentReqs; i++ {
		rateChan <- struct{}{}
	}

	return &GeminiService{
		clientOpts: opts,
		log:        log,
		rateChan:   rateChan,
	}
}

// acquireRate blocks until a rate slot is available
func (s *GeminiService) acquireRate(ctx context.Context) error {
	select {
	case <-s.rateChan:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(5 * time.Minute):
		return fmt.Errorf("timeout waiting for Gemini rate slot")
	}
}

func (s *GeminiService) releaseRate() {
	s.rateChan <- struct{}{}
}

// Generate sends turns to model and returns the first candidate's text. The
// last turn must be a user turn. A client is built for this call only and
// closed before returning, so the key does not outlive the call.
func (s *GeminiService) Generate(ctx context.Context, apiKey, model string, turns []Turn) (string, error) {
	if apiKey == "" {
		return "", models.NewError(models.KindMissingCredential,
			"Google AI API key not set. Add it in the extension options.", nil)
	}
	if len(turns) == 0 {
		return "", models.NewError(models.KindInternal, "Nothing to send to Google AI.", nil)
	}
	last := turns[len(turns)-1]
	if last.Role != models.RoleUser {
		return "", models.NewError(models.KindInternal, "The conversation must end with a user message.", nil)
	}

	if err := s.acquireRate(ctx); err != nil {
		return "", models.NewError(models.KindTransportFailure, "Google AI is busy. Please try again.", err)
	}
	defer s.releaseRate()

	opts := append([]option.ClientOption{option.WithAPIKey(apiKey)}, s.clientOpts...)
	client, err := genai.NewClient(ctx, opts...)
	if err != nil {
		return "", models.NewError(models.KindTransportFailure, "Could not connect to Google AI.", err)
	}
	defer client.Close()

	contents := toContents(turns)
	cs := client.GenerativeModel(model).StartChat()
	cs.History = contents[:len(contents)-1]

	start := time.Now()
	resp, err := cs.SendMessage(ctx, contents[len(contents)-1].Parts...)
	text, err := interpretResponse(resp, err)

	details := map[string]interface{}{"model": model, "turns": len(turns), "elapsed_ms": time.Since(start).Milliseconds()}
	if err != nil {
		details["kind"] = string(models.KindOf(err))
		details["error"] = err.Error()
		s.log.Warn("Gemini", "generate failed", details)
		return "", err
	}
	s.log.Debug("Gemini", "generate ok", details)
	return text, nil
}

func toContents(turns []Turn) []*genai.Content {
	contents := make([]*genai.Content, 0, len(turns))
	for _, t := range turns {
		role := roleUser
		if t.Role == models.RoleAssistant {
			role = roleModel
		}
		var parts []genai.Part
		if t.Text != "" {
			parts = append(parts, genai.Text(t.Text))
		}
		if t.Image != nil {
			parts = append(parts, genai.Blob{MIMEType: t.Image.MIMEType, Data: t.Image.Data})
		}
		contents = append(contents, &genai.Content{Role: role, Parts: parts})
	}
	return contents
}

// interpretResponse separates a safety block, an empty answer and a transport
// error from a usable reply.
func interpretResponse(resp *genai.GenerateContentResponse, err error) (string, error) {
	if err != nil {
		var blocked *genai.BlockedError
		if errors.As(err, &blocked) {
			return "", models.NewError(models.KindProviderRejected,
				"Request blocked by Google for safety reasons: "+blockReason(blocked), err)
		}
		var apiErr *googleapi.Error
		if errors.As(err, &apiErr) {
			msg := apiErr.Message
			if msg == "" {
				msg = fmt.Sprintf("HTTP %d", apiErr.Code)
			}
			return "", models.NewError(models.KindTransportFailure, "Google AI Error: "+msg, err)
		}
		return "", models.NewError(models.KindTransportFailure, "Could not reach Google AI.", err)
	}

	if resp == nil || len(resp.Candidates) == 0 {
		if resp != nil && resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != genai.BlockReasonUnspecified {
			return "", models.NewError(models.KindProviderRejected,
				"Request blocked by Google for safety reasons: "+resp.PromptFeedback.BlockReason.String(), nil)
		}
		return "", models.NewError(models.KindEmptyResult,
			"No response from Google AI. The prompt might have been blocked.", nil)
	}

	text := candidateText(resp.Candidates[0])
	if strings.TrimSpace(text) == "" {
		return "", models.NewError(models.KindEmptyResult, "Google AI returned an empty response.", nil)
	}
	return text, nil
}

func candidateText(cand *genai.Candidate) string {
	if cand == nil || cand.Content == nil {
		return ""
	}
	var text strings.Builder
	for _, part := range cand.Content.Parts {
		if t, ok := part.(genai.Text); ok {
			text.WriteString(string(t))
		}
	}
	return text.String()
}

func blockReason(b *genai.BlockedError) string {
	if b.PromptFeedback != nil && b.PromptFeedback.BlockReason != genai.BlockReasonUnspecified {
		return b.PromptFeedback.BlockReason.String()
	}
	if b.Candidate != nil {
		return b.Candidate.FinishReason.String()
	}
	return "unspecified"
}
