package invoke

import (
	"context"
	"fmt"

	"github.com/soyeahso/voicehook/internal/domain"
	"github.com/soyeahso/voicehook/internal/logging"
)

// Invoker runs registered callables and never lets a tool failure escape as a
// panic or error: every call ends in an InvocationOutcome.
type Invoker struct {
	log *logging.Logger
}

// NewInvoker creates an invoker.
func NewInvoker(log *logging.Logger) *Invoker {
	return &Invoker{log: log.Sub("invoke")}
}

// Invoke binds args to the callable's parameters, calls it and runs its
// completion or failure hooks. The callable's invocation counter is
// incremented exactly once regardless of outcome.
func (iv *Invoker) Invoke(ctx context.Context, c Callable, args []byte, req *Request) domain.InvocationOutcome {
	c.CountInvocation()
	tool := c.Tool()

	bound, err := Bind(c.Params(), args, req)
	if err != nil {
		return iv.failure(ctx, tool, req, err)
	}

	result, err := iv.call(ctx, tool, bound)
	if err != nil {
		return iv.failure(ctx, tool, req, err)
	}

	var msgs []domain.ToolMessage
	if h, ok := tool.(CompleteHook); ok {
		msgs = iv.runHook(tool, "complete", func() ([]domain.ToolMessage, error) {
			return h.OnComplete(ctx, req, result)
		})
	}
	return domain.Succeeded(result, msgs...)
}

func (iv *Invoker) call(ctx context.Context, tool Tool, args Args) (result string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrToolPanic, r)
		}
	}()
	return tool.Call(ctx, args)
}

func (iv *Invoker) failure(ctx context.Context, tool Tool, req *Request, cause error) domain.InvocationOutcome {
	iv.log.Warn().
		Err(cause).
		Str("tool", QualifiedName(tool)).
		Msg("tool invocation failed")

	var msgs []domain.ToolMessage
	if h, ok := tool.(FailHook); ok {
		msgs = iv.runHook(tool, "failed", func() ([]domain.ToolMessage, error) {
			return h.OnFailed(ctx, req, cause)
		})
	}
	return domain.FailedWith(cause.Error(), msgs...)
}

// runHook swallows hook errors and panics; a hook can only add messages.
func (iv *Invoker) runHook(tool Tool, which string, fn func() ([]domain.ToolMessage, error)) (msgs []domain.ToolMessage) {
	defer func() {
		if r := recover(); r != nil {
			iv.log.Error().
				Str("tool", QualifiedName(tool)).
				Str("hook", which).
				Interface("panic", r).
				Msg("tool hook panicked")
			msgs = nil
		}
	}()

	msgs, err := fn()
	if err != nil {
		iv.log.Warn().
			Err(err).
			Str("tool", QualifiedName(tool)).
			Str("hook", which).
			Msg("tool hook failed")
		return nil
	}
	return msgs
}
