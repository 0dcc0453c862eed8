package services

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"

	"screenai-backend/internal/models"
)

const (
	DefaultImageProxy = "https://images1-focus-opensocial.googleusercontent.com/gadgets/proxy?container=none"

	maxImageBytes = 20 * 1024 * 1024
)

// ImageFetcher downloads page images through a proxy so that images the page
// itself could not hand over (cross-origin) can still be analyzed.
type ImageFetcher struct {
	proxyURL   string
	httpClient *http.Client
}

// NewImageFetcher fetches through proxyURL, which receives the original URL in
// its "url" query parameter. An empty proxyURL fetches directly.
func NewImageFetcher(proxyURL string) *ImageFetcher {
	return &ImageFetcher{
		proxyURL:   proxyURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Fetch resolves imageURL to bytes and a mime type. data: URLs are decoded in place.
func (f *ImageFetcher) Fetch(ctx context.Context, imageURL string) (*InlineImage, error) {
	if strings.HasPrefix(imageURL, "data:") {
		return decodeDataURL(imageURL)
	}

	target, err := f.proxied(imageURL)
	if err != nil {
		return nil, models.NewError(models.KindTransportFailure, "Invalid image URL.", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, models.NewError(models.KindTransportFailure, "Invalid image URL.", err)
	}
	res, err := f.httpClient.Do(req)
	if err != nil {
		return nil, models.NewError(models.KindTransportFailure, "Failed to fetch image.", err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return nil, models.NewError(models.KindTransportFailure,
			fmt.Sprintf("Failed to fetch image (Status: %d)", res.StatusCode), nil)
	}

	data, err := io.ReadAll(io.LimitReader(res.Body, maxImageBytes))
	if err != nil {
		return nil, models.NewError(models.KindTransportFailure, "Failed to read image.", err)
	}

	return asImage(data, res.Header.Get("Content-Type"))
}

func (f *ImageFetcher) proxied(imageURL string) (string, error) {
	if _, err := url.ParseRequestURI(imageURL); err != nil {
		return "", err
	}
	if f.proxyURL == "" {
		return imageURL, nil
	}
	u, err := url.Parse(f.proxyURL)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("url", imageURL)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func decodeDataURL(dataURL string) (*InlineImage, error) {
	header, payload, ok := strings.Cut(strings.TrimPrefix(dataURL, "data:"), ",")
	if !ok || !strings.HasSuffix(header, ";base64") {
		return nil, models.NewError(models.KindTransportFailure, "Unsupported image data URL.", nil)
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, models.NewError(models.KindTransportFailure, "Unsupported image data URL.", err)
	}
	return asImage(data, strings.TrimSuffix(header, ";base64"))
}

// asImage trusts an image/* declared type and otherwise sniffs the bytes.
func asImage(data []byte, declared string) (*InlineImage, error) {
	if len(data) == 0 {
		return nil, models.NewError(models.KindEmptyResult, "The image is empty.", nil)
	}
	mt, _, _ := mime.ParseMediaType(declared)
	if !strings.HasPrefix(mt, "image/") {
		mt = DetectImageType(data)
	}
	if mt == "" {
		return nil, models.NewError(models.KindTransportFailure, "The fetched resource is not an image.", nil)
	}
	return &InlineImage{MIMEType: mt, Data: data}, nil
}

// DetectImageType sniffs data and returns its image mime type, or "" when it
// is not an image.
func DetectImageType(data []byte) string {
	mt := mimetype.Detect(data)
	for m := mt; m != nil; m = m.Parent() {
		if strings.HasPrefix(m.String(), "image/") {
			return m.String()
		}
	}
	return ""
}
