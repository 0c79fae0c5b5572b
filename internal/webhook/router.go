package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/soyeahso/voicehook/internal/domain"
	"github.com/soyeahso/voicehook/internal/hooks"
	"github.com/soyeahso/voicehook/internal/invoke"
	"github.com/soyeahso/voicehook/internal/logging"
	"github.com/soyeahso/voicehook/internal/registry"
	"github.com/tidwall/gjson"
)

var (
	// ErrNoAssistantHandler means an assistant-request arrived for an
	// application without a builder.
	ErrNoAssistantHandler = errors.New("no assistant-request handler registered")

	// ErrHandlerPanic wraps a panic raised while answering a callback.
	ErrHandlerPanic = errors.New("webhook handler panicked")
)

// Router answers webhook callbacks for every application.
type Router struct {
	tools      *registry.Registry
	functions  *registry.Registry
	invoker    *invoke.Invoker
	dispatcher *hooks.Dispatcher
	toolLookup []Strategy
	now        func() time.Time
	log        *logging.Logger
}

// RouterOption configures a Router.
type RouterOption func(*Router)

// WithDispatcher routes callback records to observers.
func WithDispatcher(d *hooks.Dispatcher) RouterOption {
	return func(r *Router) { r.dispatcher = d }
}

// WithToolLookup replaces the tool-calls lookup strategies.
func WithToolLookup(strategies ...Strategy) RouterOption {
	return func(r *Router) { r.toolLookup = strategies }
}

// NewRouter creates a router over the tools and functions registries. By
// default tool-calls resolve in the session's tools first and then in the
// application's manual table.
func NewRouter(tools, functions *registry.Registry, log *logging.Logger, opts ...RouterOption) *Router {
	r := &Router{
		tools:     tools,
		functions: functions,
		invoker:   invoke.NewInvoker(log),
		now:       time.Now,
		log:       log.Sub("webhook"),
	}
	r.toolLookup = []Strategy{SessionLookup{Registry: tools}, ManualLookup{}}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Tools returns the tools registry.
func (r *Router) Tools() *registry.Registry { return r.tools }

// Functions returns the functions registry.
func (r *Router) Functions() *registry.Registry { return r.functions }

// NewRequest classifies a raw body for app.
func (r *Router) NewRequest(app *Application, body []byte) *Request {
	return &Request{
		ID:          uuid.New().String(),
		Application: app.Name,
		Type:        domain.ClassifyPayload(body),
		SessionKey:  domain.SessionKeyFromPayload(body),
		Body:        body,
		ReceivedAt:  r.now(),
	}
}

// Handle classifies body and produces the JSON-marshalable answer. An error
// is returned only when no answer can be produced at all; per-call failures
// are reported inside the answer. The request record is queued for observers
// before handling and the response record after.
func (r *Router) Handle(ctx context.Context, app *Application, body []byte) (any, error) {
	req := r.NewRequest(app, body)
	r.notifyRequest(app, req)

	resp, err := r.dispatch(ctx, app, req)

	elapsed := r.now().Sub(req.ReceivedAt)
	r.notifyResponse(app, req, resp, err, elapsed)

	level := r.log.Debug
	if err != nil {
		level = r.log.Error
	}
	level().Err(err).
		Str("app", app.Name).
		Str("type", string(req.Type)).
		Str("session", req.SessionKey.String()).
		Str("invocation", req.ID).
		Dur("elapsed", elapsed).
		Msg("webhook handled")

	return resp, err
}

func (r *Router) dispatch(ctx context.Context, app *Application, req *Request) (resp any, err error) {
	defer func() {
		if p := recover(); p != nil {
			resp, err = nil, fmt.Errorf("%w: %v", ErrHandlerPanic, p)
		}
	}()

	switch req.Type {
	case domain.AssistantRequest:
		return r.assistantRequest(ctx, app, req)
	case domain.FunctionCall:
		return r.functionCall(ctx, req), nil
	case domain.ToolCalls:
		return r.toolCalls(ctx, app, req), nil
	case domain.EndOfCallReport:
		r.endOfCall(req)
		return ack(req.Type), nil
	default:
		return ack(req.Type), nil
	}
}

func (r *Router) assistantRequest(ctx context.Context, app *Application, req *Request) (any, error) {
	if app.Assistant == nil {
		return nil, fmt.Errorf("application %q: %w", app.Name, ErrNoAssistantHandler)
	}

	// A repeated assistant-request for the same call replaces its session.
	if r.dropSession(req.SessionKey) {
		r.log.Info().
			Str("app", app.Name).
			Str("session", req.SessionKey.String()).
			Msg("replacing session registrations")
	}

	built := false
	defer func() {
		if !built {
			r.dropSession(req.SessionKey)
		}
	}()

	reg := &sessionRegistrar{key: req.SessionKey, tools: r.tools, functions: r.functions}
	out, err := app.Assistant.BuildAssistant(ctx, req, reg)
	if err != nil {
		return nil, fmt.Errorf("building assistant for %q: %w", app.Name, err)
	}
	built = true
	return out, nil
}

// dropSession removes key from both registries and reports whether either
// held it.
func (r *Router) dropSession(key domain.SessionKey) bool {
	_, inTools := r.tools.Remove(key)
	_, inFunctions := r.functions.Remove(key)
	return inTools || inFunctions
}

func (r *Router) functionCall(ctx context.Context, req *Request) FunctionResult {
	call := gjson.GetBytes(req.Body, "message.functionCall")
	name := call.Get("name").String()

	rec, err := r.functions.Lookup(req.SessionKey, name)
	if err != nil {
		r.log.Warn().Err(err).Str("function", name).Msg("function lookup failed")
		return FunctionResult{Error: err.Error()}
	}

	out := r.invoker.Invoke(ctx, rec, []byte(call.Get("parameters").Raw), &invoke.Request{
		Type:       req.Type,
		SessionKey: req.SessionKey,
		Body:       req.Body,
	})
	if out.Failed {
		return FunctionResult{Error: out.Error}
	}
	return FunctionResult{Result: out.Result}
}

// toolCallEntries returns message.toolCallList, falling back to
// message.toolCalls.
func toolCallEntries(body []byte) []gjson.Result {
	list := gjson.GetBytes(body, "message.toolCallList")
	if !list.IsArray() {
		list = gjson.GetBytes(body, "message.toolCalls")
	}
	if !list.IsArray() {
		return nil
	}
	return list.Array()
}

func (r *Router) toolCalls(ctx context.Context, app *Application, req *Request) ToolCallsResponse {
	entries := toolCallEntries(req.Body)
	results := make([]ToolCallResult, 0, len(entries))

	for _, entry := range entries {
		id := entry.Get("id").String()
		name := entry.Get("function.name").String()

		c, err := resolve(r.toolLookup, app, req.SessionKey, name)
		if err != nil {
			r.log.Warn().Err(err).Str("tool", name).Str("toolCallId", id).Msg("tool lookup failed")
			results = append(results, toolCallResult(id, name, domain.FailedWith(err.Error())))
			continue
		}

		out := r.invoker.Invoke(ctx, c, []byte(entry.Get("function.arguments").Raw), &invoke.Request{
			Type:       req.Type,
			SessionKey: req.SessionKey,
			ToolCallID: id,
			Body:       req.Body,
		})
		results = append(results, toolCallResult(id, name, out))
	}

	return assemble(results)
}

func (r *Router) endOfCall(req *Request) {
	if req.SessionKey.IsZero() {
		return
	}
	_, hadTools := r.tools.Remove(req.SessionKey)
	_, hadFunctions := r.functions.Remove(req.SessionKey)
	r.log.Debug().
		Str("session", req.SessionKey.String()).
		Bool("tools", hadTools).
		Bool("functions", hadFunctions).
		Msg("session released")
}

func (r *Router) record(app *Application, req *Request) domain.CallbackRecord {
	return domain.CallbackRecord{
		Type:         req.Type,
		Application:  app.Name,
		InvocationID: req.ID,
		SessionKey:   req.SessionKey,
		At:           r.now(),
	}
}

func (r *Router) notifyRequest(app *Application, req *Request) {
	if r.dispatcher == nil {
		return
	}
	rec := r.record(app, req)
	if json.Valid(req.Body) {
		rec.Payload = json.RawMessage(req.Body)
	}
	if err := r.dispatcher.NotifyRequest(app.Hooks, rec); err != nil {
		r.log.Debug().Err(err).Str("invocation", req.ID).Msg("request record not queued")
	}
}

func (r *Router) notifyResponse(app *Application, req *Request, resp any, handleErr error, elapsed time.Duration) {
	if r.dispatcher == nil {
		return
	}
	rec := r.record(app, req)
	rec.Elapsed = elapsed

	lazy := func() ([]byte, error) {
		if handleErr != nil {
			return json.Marshal(map[string]string{"error": handleErr.Error()})
		}
		return json.Marshal(resp)
	}
	if err := r.dispatcher.NotifyResponse(app.Hooks, rec, lazy); err != nil {
		r.log.Debug().Err(err).Str("invocation", req.ID).Msg("response record not queued")
	}
}
