// Package webhook classifies inbound platform callbacks and answers them:
// assistant requests are delegated to the application's builder, tool and
// function calls are resolved against the session registries and invoked,
// and every other callback is acknowledged.
package webhook

import (
	"context"
	"encoding/json"
	"time"

	"github.com/soyeahso/voicehook/internal/domain"
	"github.com/soyeahso/voicehook/internal/hooks"
	"github.com/soyeahso/voicehook/internal/invoke"
	"github.com/soyeahso/voicehook/internal/registry"
)

// Request is one classified webhook invocation.
type Request struct {
	ID          string
	Application string
	Type        domain.RequestType
	SessionKey  domain.SessionKey
	Body        []byte
	ReceivedAt  time.Time
}

// AssistantHandler answers assistant-request callbacks. It registers the
// session's tools through reg and returns the assistant configuration that
// is sent back verbatim.
type AssistantHandler interface {
	BuildAssistant(ctx context.Context, req *Request, reg Registrar) (json.RawMessage, error)
}

// AssistantHandlerFunc adapts a function to AssistantHandler.
type AssistantHandlerFunc func(ctx context.Context, req *Request, reg Registrar) (json.RawMessage, error)

func (f AssistantHandlerFunc) BuildAssistant(ctx context.Context, req *Request, reg Registrar) (json.RawMessage, error) {
	return f(ctx, req, reg)
}

// Application is one webhook endpoint with its own assistant builder,
// manual tools and observers.
type Application struct {
	Name      string
	Path      string
	Secret    string
	Assistant AssistantHandler

	// Manual holds tools that are resolvable in every session.
	Manual *registry.Table

	// Hooks receives this application's callback records in addition to the
	// global observers.
	Hooks *hooks.Manager
}

// Registrar registers callables for the session being configured.
type Registrar interface {
	SessionKey() domain.SessionKey
	RegisterTool(name string, tool invoke.Tool) error
	RegisterFunction(name string, tool invoke.Tool) error
}

type sessionRegistrar struct {
	key       domain.SessionKey
	tools     *registry.Registry
	functions *registry.Registry
}

func (s *sessionRegistrar) SessionKey() domain.SessionKey { return s.key }

func (s *sessionRegistrar) RegisterTool(name string, tool invoke.Tool) error {
	return s.tools.Register(s.key, name, tool)
}

func (s *sessionRegistrar) RegisterFunction(name string, tool invoke.Tool) error {
	return s.functions.Register(s.key, name, tool)
}
