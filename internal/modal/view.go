package modal

import (
	"screenai-backend/internal/markdown"
	"screenai-backend/internal/models"
)

type BubbleKind int

const (
	BubbleUser BubbleKind = iota
	BubbleAssistant
	BubbleError
	BubbleOcrResult
	BubbleLoading
)

func (k BubbleKind) String() string {
	switch k {
	case BubbleUser:
		return "user"
	case BubbleAssistant:
		return "assistant"
	case BubbleError:
		return "error"
	case BubbleOcrResult:
		return "ocr-result"
	case BubbleLoading:
		return "loading"
	default:
		return "unknown"
	}
}

// Bubble is one rendered entry of the transcript.
type Bubble struct {
	Kind BubbleKind
	Text string
	HTML string
}

// newBubble renders text for its kind. Only assistant text is markdown; OCR
// output and everything else is escaped verbatim.
func newBubble(kind BubbleKind, text string) Bubble {
	b := Bubble{Kind: kind, Text: text}
	if kind == BubbleAssistant {
		b.HTML = markdown.RenderHTML(text)
	} else {
		b.HTML = markdown.Escape(text)
	}
	return b
}

const (
	PlaceholderNew      = "Ask, paste image, or click to upload..."
	PlaceholderFollowUp = "Ask a follow-up..."

	NotImageMessage = "Error: The provided file is not a valid image."

	labelLoading    = "Loading"
	labelExtracting = "Extracting text"
)

var dotFrames = [4]string{"", " .", " ..", " ..."}

type indicator struct {
	label string
	frame int
}

func (i *indicator) text() string {
	return i.label + dotFrames[i.frame]
}

// Snapshot is everything a page needs to draw the panel. The transcript is a
// projection of the history plus error and OCR bubbles; the loading indicator,
// when present, is always the last bubble.
type Snapshot struct {
	State        models.ModalState
	Hidden       bool // picker owns the page
	History      models.ChatHistory
	Bubbles      []Bubble
	Placeholder  string
	InputEnabled bool

	seq uint64
}

// Loading returns the indicator text, or "" when nothing is pending.
func (s Snapshot) Loading() string {
	if n := len(s.Bubbles); n > 0 && s.Bubbles[n-1].Kind == BubbleLoading {
		return s.Bubbles[n-1].Text
	}
	return ""
}
