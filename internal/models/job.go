package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Job is one inbound page message waiting on the intent queue. Envelope holds
// the context id and message in their queued form.
type Job struct {
	ID        uuid.UUID       `json:"id"`
	Envelope  json.RawMessage `json:"envelope"`
	CreatedAt time.Time       `json:"created_at"`
}

func NewJob(envelope json.RawMessage) Job {
	return Job{
		ID:        uuid.New(),
		Envelope:  envelope,
		CreatedAt: time.Now().UTC(),
	}
}

// PageContext is a registered page. Its id is the routing key for every result.
type PageContext struct {
	ID        string    `json:"id"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// API Error response
type APIError struct {
	Code      string            `json:"code"`
	Message   string            `json:"message"`
	Fields    map[string]string `json:"fields,omitempty"`
	RequestID string            `json:"request_id"`
}

type ErrorResponse struct {
	Error APIError `json:"error"`
}
