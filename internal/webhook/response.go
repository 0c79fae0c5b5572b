package webhook

import "github.com/soyeahso/voicehook/internal/domain"

// FunctionResult answers a function-call.
type FunctionResult struct {
	Result string `json:"result"`
	Error  string `json:"error,omitempty"`
}

// ToolCallResult is the outcome of one entry of a tool-calls batch.
type ToolCallResult struct {
	ToolCallID string               `json:"toolCallId"`
	Name       string               `json:"name"`
	Result     string               `json:"result"`
	Error      string               `json:"error,omitempty"`
	Message    []domain.ToolMessage `json:"message,omitempty"`
}

// ToolCallsResponse answers a tool-calls batch. Error repeats the last failed
// entry's error.
type ToolCallsResponse struct {
	Results []ToolCallResult `json:"results"`
	Error   string           `json:"error,omitempty"`
}

// Ack acknowledges callbacks that need no computed answer.
type Ack struct {
	Status string             `json:"status"`
	Type   domain.RequestType `json:"type"`
}

func ack(t domain.RequestType) Ack {
	return Ack{Status: "ok", Type: t}
}

func toolCallResult(id, name string, out domain.InvocationOutcome) ToolCallResult {
	res := ToolCallResult{
		ToolCallID: id,
		Name:       name,
		Message:    out.Messages,
	}
	if out.Failed {
		res.Error = out.Error
	} else {
		res.Result = out.Result
	}
	return res
}

// assemble collects per-entry results in order and surfaces the last failure.
func assemble(results []ToolCallResult) ToolCallsResponse {
	resp := ToolCallsResponse{Results: results}
	for _, r := range results {
		if r.Error != "" {
			resp.Error = r.Error
		}
	}
	if resp.Results == nil {
		resp.Results = []ToolCallResult{}
	}
	return resp
}
