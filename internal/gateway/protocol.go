package gateway

import "encoding/json"

// Frame types for the /events stream.
const (
	FrameTypeHello = "hello"
	FrameTypeEvent = "event"
)

// Event names carried by event frames.
const (
	EventCallbackRequest  = "callback.request"
	EventCallbackResponse = "callback.response"
)

// Frame is the envelope for every message written to an events subscriber.
type Frame struct {
	Type    string          `json:"type"`
	Event   string          `json:"event,omitempty"`
	Seq     int64           `json:"seq,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Hello is sent once to a new subscriber.
type Hello struct {
	Protocol int    `json:"protocol"`
	Version  string `json:"version"`
	ConnID   string `json:"connId"`
}

// ErrorShape is the JSON body of HTTP error responses.
type ErrorShape struct {
	Error string `json:"error"`
	Path  string `json:"path,omitempty"`
}

// NewHello creates the greeting frame.
func NewHello(h Hello) (Frame, error) {
	raw, err := json.Marshal(h)
	if err != nil {
		return Frame{}, err
	}
	return Frame{Type: FrameTypeHello, Payload: raw}, nil
}

// NewEvent creates an event frame.
func NewEvent(event string, payload any, seq int64) (Frame, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Frame{}, err
	}
	return Frame{
		Type:    FrameTypeEvent,
		Event:   event,
		Payload: raw,
		Seq:     seq,
	}, nil
}

// Protocol version of the events stream.
const ProtocolVersion = 1
