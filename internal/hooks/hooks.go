// Package hooks delivers webhook request and response records to observers
// registered globally or per application, off the HTTP request path.
package hooks

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/soyeahso/voicehook/internal/domain"
	"github.com/soyeahso/voicehook/internal/logging"
)

// Observer handles one callback record. Returning an error logs the failure
// but does not affect other observers.
type Observer func(ctx context.Context, rec domain.CallbackRecord) error

// Manager holds observer registrations keyed by record kind and request type.
// Observers registered for domain.AnyRequest receive every record of their
// kind.
type Manager struct {
	mu        sync.RWMutex
	observers map[subscription][]namedObserver
	log       *logging.Logger
}

type subscription struct {
	kind domain.CallbackKind
	typ  domain.RequestType
}

type namedObserver struct {
	name     string
	observer Observer
}

// NewManager creates an observer manager.
func NewManager(log *logging.Logger) *Manager {
	return &Manager{
		observers: make(map[subscription][]namedObserver),
		log:       log.Sub("hooks"),
	}
}

// On registers an observer for records of the given kind and request type.
// The name identifies the observer for logging and removal.
func (m *Manager) On(kind domain.CallbackKind, typ domain.RequestType, name string, obs Observer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sub := subscription{kind: kind, typ: typ}
	m.observers[sub] = append(m.observers[sub], namedObserver{name: name, observer: obs})
	m.log.Debug().
		Str("kind", string(kind)).
		Str("type", string(typ)).
		Str("observer", name).
		Msg("observer registered")
}

// OnRequest registers an observer for request records of typ.
func (m *Manager) OnRequest(typ domain.RequestType, name string, obs Observer) {
	m.On(domain.CallbackRequest, typ, name, obs)
}

// OnResponse registers an observer for response records of typ.
func (m *Manager) OnResponse(typ domain.RequestType, name string, obs Observer) {
	m.On(domain.CallbackResponse, typ, name, obs)
}

// OnAny registers an observer for every request and response record.
func (m *Manager) OnAny(name string, obs Observer) {
	m.On(domain.CallbackRequest, domain.AnyRequest, name, obs)
	m.On(domain.CallbackResponse, domain.AnyRequest, name, obs)
}

// Off removes every observer registered under name.
func (m *Manager) Off(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for sub, observers := range m.observers {
		filtered := make([]namedObserver, 0, len(observers))
		for _, o := range observers {
			if o.name != name {
				filtered = append(filtered, o)
			}
		}
		if len(filtered) == 0 {
			delete(m.observers, sub)
			continue
		}
		m.observers[sub] = filtered
	}
}

// Count returns the number of observers registered for kind and typ. Global
// observers are counted only when typ is domain.AnyRequest.
func (m *Manager) Count(kind domain.CallbackKind, typ domain.RequestType) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.observers[subscription{kind: kind, typ: typ}])
}

// Subscriptions lists "<kind>:<type>" for every subscription with at least
// one observer, sorted.
func (m *Manager) Subscriptions() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	subs := make([]string, 0, len(m.observers))
	for sub, observers := range m.observers {
		if len(observers) > 0 {
			subs = append(subs, fmt.Sprintf("%s:%s", sub.kind, sub.typ))
		}
	}
	sort.Strings(subs)
	return subs
}

// observersFor returns the global observers followed by the type-specific
// observers that should receive rec. The result is a copy.
func (m *Manager) observersFor(rec domain.CallbackRecord) []namedObserver {
	if m == nil {
		return nil
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	global := m.observers[subscription{kind: rec.Kind, typ: domain.AnyRequest}]
	typed := m.observers[subscription{kind: rec.Kind, typ: rec.Type}]
	out := make([]namedObserver, 0, len(global)+len(typed))
	out = append(out, global...)
	out = append(out, typed...)
	return out
}

// Has reports whether any observer would receive rec.
func (m *Manager) Has(rec domain.CallbackRecord) bool {
	if m == nil {
		return false
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.observers[subscription{kind: rec.Kind, typ: domain.AnyRequest}])+
		len(m.observers[subscription{kind: rec.Kind, typ: rec.Type}]) > 0
}

// Emit delivers rec to every matching observer concurrently and waits for all
// of them. Observer errors and panics are logged and never returned.
func (m *Manager) Emit(ctx context.Context, rec domain.CallbackRecord) {
	emit(ctx, m.log, rec, m.observersFor(rec))
}

func emit(ctx context.Context, log *logging.Logger, rec domain.CallbackRecord, observers []namedObserver) {
	switch len(observers) {
	case 0:
		return
	case 1:
		run(ctx, log, rec, observers[0])
		return
	}

	var wg sync.WaitGroup
	for _, o := range observers {
		wg.Add(1)
		go func(o namedObserver) {
			defer wg.Done()
			run(ctx, log, rec, o)
		}(o)
	}
	wg.Wait()
}

func run(ctx context.Context, log *logging.Logger, rec domain.CallbackRecord, o namedObserver) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Interface("panic", r).
				Str("observer", o.name).
				Str("kind", string(rec.Kind)).
				Str("type", string(rec.Type)).
				Msg("observer panicked")
		}
	}()

	if err := o.observer(ctx, rec); err != nil {
		log.Warn().
			Err(err).
			Str("observer", o.name).
			Str("kind", string(rec.Kind)).
			Str("type", string(rec.Type)).
			Msg("observer error")
	}
}
