package domain

import "github.com/tidwall/gjson"

// SessionKey correlates the tool registrations made while answering an
// assistant-request with the callbacks the platform sends later in the same
// call. It is the platform's call id.
type SessionKey string

// String returns the key as a plain string.
func (k SessionKey) String() string { return string(k) }

// IsZero reports whether the key is empty. An empty key never matches a
// registration.
func (k SessionKey) IsZero() bool { return k == "" }

// SessionKeyFromPayload extracts message.call.id from a webhook body.
// Returns the zero key when the body is not JSON or the field is missing.
func SessionKeyFromPayload(body []byte) SessionKey {
	if !gjson.ValidBytes(body) {
		return ""
	}
	return SessionKey(gjson.GetBytes(body, "message.call.id").String())
}
