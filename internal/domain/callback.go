package domain

import (
	"encoding/json"
	"time"
)

// CallbackKind distinguishes the two halves of a webhook invocation.
type CallbackKind string

const (
	CallbackRequest  CallbackKind = "request"
	CallbackResponse CallbackKind = "response"
)

// CallbackRecord is a read-only snapshot delivered to observers.
// Request records carry the inbound body; response records carry the body
// that was sent back and the time it took to produce it.
type CallbackRecord struct {
	Kind         CallbackKind    `json:"kind"`
	Type         RequestType     `json:"type"`
	Application  string          `json:"application"`
	InvocationID string          `json:"invocationId"`
	SessionKey   SessionKey      `json:"sessionKey,omitempty"`
	Payload      json.RawMessage `json:"payload,omitempty"`
	Elapsed      time.Duration   `json:"elapsed,omitempty"`
	At           time.Time       `json:"at"`
}
