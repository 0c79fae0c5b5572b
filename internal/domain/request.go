package domain

import "github.com/tidwall/gjson"

// RequestType is the value of message.type in a webhook body.
type RequestType string

// Known request types sent by the voice platform.
const (
	AssistantRequest           RequestType = "assistant-request"
	ConversationUpdate         RequestType = "conversation-update"
	EndOfCallReport            RequestType = "end-of-call-report"
	FunctionCall               RequestType = "function-call"
	Hang                       RequestType = "hang"
	PhoneCallControl           RequestType = "phone-call-control"
	SpeechUpdate               RequestType = "speech-update"
	StatusUpdate               RequestType = "status-update"
	ToolCalls                  RequestType = "tool-calls"
	Transcript                 RequestType = "transcript"
	TransferDestinationRequest RequestType = "transfer-destination-request"
	UserInterrupted            RequestType = "user-interrupted"
	VoiceInput                 RequestType = "voice-input"
	Unknown                    RequestType = "unknown"

	// AnyRequest is not sent by the platform. Observers registered for it
	// receive records of every type.
	AnyRequest RequestType = "*"
)

// AllRequestTypes lists the request types the platform can send.
var AllRequestTypes = []RequestType{
	AssistantRequest,
	ConversationUpdate,
	EndOfCallReport,
	FunctionCall,
	Hang,
	PhoneCallControl,
	SpeechUpdate,
	StatusUpdate,
	ToolCalls,
	Transcript,
	TransferDestinationRequest,
	UserInterrupted,
	VoiceInput,
}

var knownTypes = func() map[string]RequestType {
	m := make(map[string]RequestType, len(AllRequestTypes))
	for _, t := range AllRequestTypes {
		m[string(t)] = t
	}
	return m
}()

// ParseRequestType maps a message.type value to a RequestType. Unrecognized
// values map to Unknown.
func ParseRequestType(s string) RequestType {
	if t, ok := knownTypes[s]; ok {
		return t
	}
	return Unknown
}

// ClassifyPayload reads message.type from a raw webhook body. It never
// fails: malformed JSON and missing fields classify as Unknown.
func ClassifyPayload(body []byte) RequestType {
	if !gjson.ValidBytes(body) {
		return Unknown
	}
	v := gjson.GetBytes(body, "message.type")
	if v.Type != gjson.String {
		return Unknown
	}
	return ParseRequestType(v.Str)
}
