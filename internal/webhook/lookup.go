package webhook

import (
	"errors"
	"fmt"

	"github.com/soyeahso/voicehook/internal/domain"
	"github.com/soyeahso/voicehook/internal/invoke"
	"github.com/soyeahso/voicehook/internal/registry"
)

// ErrCallableNotFound is returned when no lookup strategy resolves a name.
var ErrCallableNotFound = errors.New("callable not found")

// Strategy resolves a callable name for a session. Strategies are tried in
// order; the first match wins.
type Strategy interface {
	Name() string
	Resolve(app *Application, key domain.SessionKey, name string) (invoke.Callable, error)
}

// SessionLookup resolves names registered for the session in a registry.
type SessionLookup struct {
	Registry *registry.Registry
}

func (s SessionLookup) Name() string { return "session:" + s.Registry.Name() }

func (s SessionLookup) Resolve(_ *Application, key domain.SessionKey, name string) (invoke.Callable, error) {
	rec, err := s.Registry.Lookup(key, name)
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// ManualLookup resolves names from the application's manual tool table.
type ManualLookup struct{}

func (ManualLookup) Name() string { return "manual" }

func (ManualLookup) Resolve(app *Application, _ domain.SessionKey, name string) (invoke.Callable, error) {
	if app == nil || app.Manual == nil {
		return nil, fmt.Errorf("%q: no manual tools: %w", name, registry.ErrNotFound)
	}
	rec, ok := app.Manual.Get(name)
	if !ok {
		return nil, fmt.Errorf("manual tool %q: %w", name, registry.ErrNotFound)
	}
	return rec, nil
}

// resolve tries each strategy in order.
func resolve(strategies []Strategy, app *Application, key domain.SessionKey, name string) (invoke.Callable, error) {
	for _, s := range strategies {
		c, err := s.Resolve(app, key, name)
		if err == nil {
			return c, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrCallableNotFound, name)
}
