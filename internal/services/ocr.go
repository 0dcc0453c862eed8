package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"screenai-backend/internal/models"
	"screenai-backend/internal/pkg/logger"
)

const DefaultOCREndpoint = "https://api.ocr.space/parse/image"

type OCRService struct {
	endpoint   string
	httpClient *http.Client
	log        logger.ILogger
}

func NewOCRService(endpoint string, log logger.ILogger) *OCRService {
	if endpoint == "" {
		endpoint = DefaultOCREndpoint
	}
	return &OCRService{
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		log:        log,
	}
}

type ocrResponse struct {
	ParsedResults []struct {
		ParsedText string `json:"ParsedText"`
	} `json:"ParsedResults"`
	IsErroredOnProcessing bool            `json:"IsErroredOnProcessing"`
	ErrorMessage          json.RawMessage `json:"ErrorMessage"`
}

// Recognize extracts text from a base64 JPEG. Orientation detection and
// scaling are always requested.
func (s *OCRService) Recognize(ctx context.Context, apiKey, imageBase64 string) (string, error) {
	if apiKey == "" {
		return "", models.NewError(models.KindMissingCredential,
			"OCR.space API key not set. Add it in the extension options.", nil)
	}

	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	fields := [][2]string{
		{"apikey", apiKey},
		{"base64Image", "data:image/jpeg;base64," + imageBase64},
		{"isOverlayRequired", "false"},
		{"detectOrientation", "true"},
		{"scale", "true"},
	}
	for _, f := range fields {
		if err := form.WriteField(f[0], f[1]); err != nil {
			return "", models.NewError(models.KindInternal, "Could not build OCR request.", err)
		}
	}
	if err := form.Close(); err != nil {
		return "", models.NewError(models.KindInternal, "Could not build OCR request.", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, &body)
	if err != nil {
		return "", models.NewError(models.KindInternal, "Could not build OCR request.", err)
	}
	req.Header.Set("Content-Type", form.FormDataContentType())

	res, err := s.httpClient.Do(req)
	if err != nil {
		return "", models.NewError(models.KindTransportFailure, "Could not reach OCR.space.", err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return "", models.NewError(models.KindTransportFailure,
			fmt.Sprintf("OCR.space API Error: %s", http.StatusText(res.StatusCode)), nil)
	}

	raw, err := io.ReadAll(io.LimitReader(res.Body, 10*1024*1024))
	if err != nil {
		return "", models.NewError(models.KindTransportFailure, "Could not read OCR.space response.", err)
	}

	var parsed ocrResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", models.NewError(models.KindOcrProcessingError, "OCR.space returned an unreadable response.", err)
	}

	if parsed.IsErroredOnProcessing {
		return "", models.NewError(models.KindOcrProcessingError, "OCR.space Error: "+firstErrorMessage(parsed.ErrorMessage), nil)
	}

	if len(parsed.ParsedResults) == 0 || strings.TrimSpace(parsed.ParsedResults[0].ParsedText) == "" {
		return "", models.NewError(models.KindOcrEmptyResult, "No text could be extracted from the image.", nil)
	}

	s.log.Debug("OCR", "recognized text", map[string]interface{}{"chars": len(parsed.ParsedResults[0].ParsedText)})
	return parsed.ParsedResults[0].ParsedText, nil
}

// firstErrorMessage accepts both the string and the string-array forms the
// API uses for ErrorMessage.
func firstErrorMessage(raw json.RawMessage) string {
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil && len(list) > 0 {
		return list[0]
	}
	var single string
	if err := json.Unmarshal(raw, &single); err == nil && single != "" {
		return single
	}
	return "unknown processing error"
}
