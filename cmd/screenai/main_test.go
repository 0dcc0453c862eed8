package main

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"screenai-backend/internal/modal"
)

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(args)
	t.Cleanup(func() { renderPlain = false })
	err := rootCmd.Execute()
	return out.String(), err
}

func TestRenderCommand(t *testing.T) {
	out, err := run(t, "# Hi\n**there**", "render")
	require.NoError(t, err)
	assert.Equal(t, "<h1>Hi</h1>\n<p><strong>there</strong></p>\n", out)

	out, err = run(t, "# Hi\n**there**", "render", "--text")
	require.NoError(t, err)
	assert.Contains(t, out, "there")
	assert.NotContains(t, out, "<strong>")
}

func TestTokenCommand(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	_, err := run(t, "", "token")
	assert.ErrorContains(t, err, "JWT_SECRET")

	t.Setenv("JWT_SECRET", "s3cret")
	out, err := run(t, "", "token")
	require.NoError(t, err)
	assert.Contains(t, out, `"token"`)
}

func TestAskRequiresInput(t *testing.T) {
	_, err := run(t, "", "ask")
	assert.ErrorContains(t, err, "--image")
}

func TestMask(t *testing.T) {
	assert.Equal(t, "****", mask("abc"))
	assert.Equal(t, "****wxyz", mask("AIzaSyw_wxyz"))
}

func TestWatcherReply(t *testing.T) {
	w := newWatcher()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	go func() {
		w.onChange(modal.Snapshot{Bubbles: []modal.Bubble{{Kind: modal.BubbleLoading, Text: "Loading"}}})
		w.onChange(modal.Snapshot{Bubbles: []modal.Bubble{
			{Kind: modal.BubbleUser, Text: "hi"},
			{Kind: modal.BubbleAssistant, Text: "hello"},
		}})
	}()

	b, err := w.reply(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, "hello", b.Text)
}

func TestWatcherReply_ErrorBubble(t *testing.T) {
	w := newWatcher()
	w.onChange(modal.Snapshot{Bubbles: []modal.Bubble{{Kind: modal.BubbleError, Text: "Error: Could not reach Google AI."}}})

	_, err := w.reply(context.Background(), 0)
	assert.EqualError(t, err, "Error: Could not reach Google AI.")
}
