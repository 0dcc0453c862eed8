package services

import (
	"bytes"
	"context"
	"encoding/base64"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"screenai-backend/internal/models"
)

func pngBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 2, 2))))
	return buf.Bytes()
}

func TestFetch_ThroughProxy(t *testing.T) {
	img := pngBytes(t)
	var requested string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requested = r.URL.Query().Get("url")
		assert.Equal(t, "none", r.URL.Query().Get("container"))
		// no Content-Type on purpose; the bytes decide
		w.Header()["Content-Type"] = nil
		w.Write(img)
	}))
	defer srv.Close()

	f := NewImageFetcher(srv.URL + "/gadgets/proxy?container=none")
	got, err := f.Fetch(context.Background(), "https://example.com/cat.png?size=l")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/cat.png?size=l", requested)
	assert.Equal(t, "image/png", got.MIMEType)
	assert.Equal(t, img, got.Data)
}

func TestFetch_DeclaredTypeWins(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/webp; charset=binary")
		w.Write([]byte("RIFF...."))
	}))
	defer srv.Close()

	got, err := NewImageFetcher("").Fetch(context.Background(), srv.URL+"/a.webp")
	require.NoError(t, err)
	assert.Equal(t, "image/webp", got.MIMEType)
}

func TestFetch_Failures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/missing":
			http.NotFound(w, r)
		case "/page":
			w.Header().Set("Content-Type", "text/html")
			w.Write([]byte("<html><body>nope</body></html>"))
		}
	}))
	defer srv.Close()

	f := NewImageFetcher("")

	_, err := f.Fetch(context.Background(), srv.URL+"/missing")
	assert.Equal(t, "Failed to fetch image (Status: 404)", models.UserMessage(err))

	_, err = f.Fetch(context.Background(), srv.URL+"/page")
	assert.Equal(t, models.KindTransportFailure, models.KindOf(err))

	_, err = f.Fetch(context.Background(), "not a url")
	assert.Equal(t, models.KindTransportFailure, models.KindOf(err))
}

func TestFetch_DataURL(t *testing.T) {
	img := pngBytes(t)
	got, err := NewImageFetcher("http://unused.invalid").Fetch(context.Background(),
		"data:image/png;base64,"+base64.StdEncoding.EncodeToString(img))
	require.NoError(t, err)
	assert.Equal(t, "image/png", got.MIMEType)
	assert.Equal(t, img, got.Data)
}

func TestDetectImageType(t *testing.T) {
	assert.Equal(t, "image/png", DetectImageType(pngBytes(t)))
	assert.Equal(t, "", DetectImageType([]byte("just some text")))
}
