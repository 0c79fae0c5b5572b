// Package plugin manages the optional components that observe webhook
// traffic, such as the event stream and the call report store.
package plugin

import (
	"context"
	"io"

	"github.com/soyeahso/voicehook/internal/domain"
	"github.com/soyeahso/voicehook/internal/hooks"
	"github.com/soyeahso/voicehook/internal/logging"
)

// Plugin is a component with a managed lifecycle.
type Plugin interface {
	// ID returns a unique identifier, e.g. "reports".
	ID() string

	// Init subscribes observers and acquires resources.
	Init(ctx context.Context, api API) error

	// Close releases resources. It is called even if Init was not.
	Close() error
}

// API is handed to plugins during Init.
type API struct {
	Hooks *hooks.Manager
	Log   *logging.Logger
}

// Observer is a Plugin that registers a single hook observer under its name.
// An empty Kind subscribes to both requests and responses; an empty Type
// subscribes to every request type.
type Observer struct {
	Name    string
	Kind    domain.CallbackKind
	Type    domain.RequestType
	Observe hooks.Observer

	// Closer, if set, is closed after the observer is removed.
	Closer io.Closer

	hooks *hooks.Manager
}

func (o *Observer) ID() string { return o.Name }

func (o *Observer) Init(_ context.Context, api API) error {
	typ := o.Type
	if typ == "" {
		typ = domain.AnyRequest
	}
	kinds := []domain.CallbackKind{o.Kind}
	if o.Kind == "" {
		kinds = []domain.CallbackKind{domain.CallbackRequest, domain.CallbackResponse}
	}
	for _, k := range kinds {
		api.Hooks.On(k, typ, o.Name, o.Observe)
	}
	o.hooks = api.Hooks
	return nil
}

func (o *Observer) Close() error {
	if o.hooks != nil {
		o.hooks.Off(o.Name)
		o.hooks = nil
	}
	if o.Closer != nil {
		return o.Closer.Close()
	}
	return nil
}
