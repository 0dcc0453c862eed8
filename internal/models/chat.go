package models

// Role identifies who authored a ChatMessage.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ChatMessage represents a single message in a conversation.
type ChatMessage struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// ChatHistory is an ordered conversation. Order is the turn order sent to the
// AI provider. A history only ever grows by appending.
type ChatHistory []ChatMessage

// Append returns a new history with msg added at the end. The receiver's
// backing array is never written to, so earlier copies stay intact.
func (h ChatHistory) Append(msg ChatMessage) ChatHistory {
	out := make(ChatHistory, len(h), len(h)+1)
	copy(out, h)
	return append(out, msg)
}

// Clone returns an independent copy.
func (h ChatHistory) Clone() ChatHistory {
	if h == nil {
		return nil
	}
	out := make(ChatHistory, len(h))
	copy(out, h)
	return out
}

// Last returns the final message, if any.
func (h ChatHistory) Last() (ChatMessage, bool) {
	if len(h) == 0 {
		return ChatMessage{}, false
	}
	return h[len(h)-1], true
}
