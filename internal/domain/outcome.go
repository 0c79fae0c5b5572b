package domain

// Message types for ToolMessage.
const (
	MessageRequestStart    = "request-start"
	MessageRequestComplete = "request-complete"
	MessageRequestFailed   = "request-failed"
)

// ToolMessage is a structured follow-up message attached to a tool result.
// The platform speaks Content to the caller.
type ToolMessage struct {
	Type    string `json:"type"`
	Content string `json:"content"`
	Role    string `json:"role,omitempty"`
}

// InvocationOutcome is the normalized result of invoking a callable. When
// Failed is set, Error carries the failure and Result is empty; otherwise
// Result carries the (possibly empty) success value and Error is empty.
type InvocationOutcome struct {
	Result   string
	Error    string
	Failed   bool
	Messages []ToolMessage
}

// Succeeded builds a success outcome.
func Succeeded(result string, msgs ...ToolMessage) InvocationOutcome {
	return InvocationOutcome{Result: result, Messages: msgs}
}

// FailedWith builds a failure outcome.
func FailedWith(reason string, msgs ...ToolMessage) InvocationOutcome {
	return InvocationOutcome{Error: reason, Failed: true, Messages: msgs}
}
