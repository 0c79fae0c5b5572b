// Package invoke binds JSON tool arguments to registered callables and runs
// them, normalizing every result or failure into a domain.InvocationOutcome.
package invoke

import (
	"context"
	"errors"
	"fmt"

	"github.com/soyeahso/voicehook/internal/domain"
)

// ParamType is the semantic type of a declared tool parameter.
type ParamType int

const (
	String ParamType = iota + 1
	Int
	Float
	Bool
	// RawRequest receives the inbound webhook body verbatim instead of a
	// value from the tool arguments.
	RawRequest
)

func (t ParamType) String() string {
	switch t {
	case String:
		return "string"
	case Int:
		return "integer"
	case Float:
		return "number"
	case Bool:
		return "boolean"
	case RawRequest:
		return "request"
	default:
		return fmt.Sprintf("ParamType(%d)", int(t))
	}
}

func (t ParamType) supported() bool {
	return t >= String && t <= RawRequest
}

var (
	ErrUnsupportedParameterType = errors.New("unsupported parameter type")
	ErrInvalidArgument          = errors.New("invalid argument")
	ErrInvalidParams            = errors.New("invalid parameter declaration")
	ErrToolPanic                = errors.New("tool panicked")
)

// Param declares one named parameter of a tool.
type Param struct {
	Name        string
	Type        ParamType
	Description string
}

// Request is the webhook invocation a tool call belongs to.
type Request struct {
	Type       domain.RequestType
	SessionKey domain.SessionKey
	ToolCallID string
	Body       []byte
}

// Tool is the capability a callable must implement to be registered.
type Tool interface {
	// Name returns the base name of the tool. Registries may store it under a
	// disambiguated name.
	Name() string

	// Description is advertised to the platform's model.
	Description() string

	// Params declares the arguments the tool accepts.
	Params() []Param

	// Call runs the tool with arguments already bound by name and type.
	Call(ctx context.Context, args Args) (string, error)
}

// CompleteHook is implemented by tools that attach follow-up messages to a
// successful result.
type CompleteHook interface {
	OnComplete(ctx context.Context, req *Request, result string) ([]domain.ToolMessage, error)
}

// FailHook is implemented by tools that attach follow-up messages to a
// failed invocation.
type FailHook interface {
	OnFailed(ctx context.Context, req *Request, err error) ([]domain.ToolMessage, error)
}

// Callable is a registered tool together with the parameters captured when
// it was registered and its invocation counter.
type Callable interface {
	Tool() Tool
	Params() []Param
	CountInvocation()
}

// ValidateParams rejects empty or duplicate names and unsupported types.
func ValidateParams(params []Param) error {
	seen := make(map[string]bool, len(params))
	for _, p := range params {
		if p.Name == "" {
			return fmt.Errorf("%w: empty parameter name", ErrInvalidParams)
		}
		if seen[p.Name] {
			return fmt.Errorf("%w: duplicate parameter %q", ErrInvalidParams, p.Name)
		}
		seen[p.Name] = true
		if !p.Type.supported() {
			return fmt.Errorf("%w: %s for parameter %q", ErrUnsupportedParameterType, p.Type, p.Name)
		}
	}
	return nil
}

// QualifiedName is a human-readable name naming the implementation type.
func QualifiedName(t Tool) string {
	return fmt.Sprintf("%T.%s", t, t.Name())
}

// FuncTool adapts a plain function to the Tool interface.
type FuncTool struct {
	name        string
	description string
	params      []Param
	fn          func(ctx context.Context, args Args) (string, error)

	completeMessage string
	failedMessage   string
}

// FuncOption configures a FuncTool.
type FuncOption func(*FuncTool)

// WithCompleteMessage attaches a request-complete message to successful calls.
func WithCompleteMessage(content string) FuncOption {
	return func(f *FuncTool) { f.completeMessage = content }
}

// WithFailedMessage attaches a request-failed message to failed calls.
func WithFailedMessage(content string) FuncOption {
	return func(f *FuncTool) { f.failedMessage = content }
}

// Func builds a Tool from a function.
func Func(name, description string, params []Param, fn func(ctx context.Context, args Args) (string, error), opts ...FuncOption) *FuncTool {
	f := &FuncTool{
		name:        name,
		description: description,
		params:      params,
		fn:          fn,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func (f *FuncTool) Name() string        { return f.name }
func (f *FuncTool) Description() string { return f.description }
func (f *FuncTool) Params() []Param     { return f.params }

func (f *FuncTool) Call(ctx context.Context, args Args) (string, error) {
	return f.fn(ctx, args)
}

func (f *FuncTool) OnComplete(_ context.Context, _ *Request, _ string) ([]domain.ToolMessage, error) {
	if f.completeMessage == "" {
		return nil, nil
	}
	return []domain.ToolMessage{{Type: domain.MessageRequestComplete, Content: f.completeMessage}}, nil
}

func (f *FuncTool) OnFailed(_ context.Context, _ *Request, _ error) ([]domain.ToolMessage, error) {
	if f.failedMessage == "" {
		return nil, nil
	}
	return []domain.ToolMessage{{Type: domain.MessageRequestFailed, Content: f.failedMessage}}, nil
}
