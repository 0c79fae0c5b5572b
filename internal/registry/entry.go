package registry

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/soyeahso/voicehook/internal/domain"
	"github.com/soyeahso/voicehook/internal/invoke"
)

// Entry holds the callables registered for one session.
type Entry struct {
	Key       domain.SessionKey
	CreatedAt time.Time

	mu      sync.RWMutex
	records map[string]*Record
}

func newEntry(key domain.SessionKey, now time.Time) *Entry {
	return &Entry{
		Key:       key,
		CreatedAt: now,
		records:   make(map[string]*Record),
	}
}

func (e *Entry) add(rec *Record) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, exists := e.records[rec.name]; exists {
		return false
	}
	e.records[rec.name] = rec
	return true
}

func (e *Entry) get(name string) *Record {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.records[name]
}

// Names returns the registered callable names, sorted.
func (e *Entry) Names() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	names := make([]string, 0, len(e.records))
	for n := range e.records {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of callables in the entry.
func (e *Entry) Len() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.records)
}

func (e *Entry) info(now time.Time) EntryInfo {
	e.mu.RLock()
	defer e.mu.RUnlock()

	info := EntryInfo{
		SessionKey: e.Key,
		CreatedAt:  e.CreatedAt,
		Age:        now.Sub(e.CreatedAt).Round(time.Second).String(),
		Callables:  make([]CallableInfo, 0, len(e.records)),
	}
	for _, rec := range e.records {
		info.Callables = append(info.Callables, rec.info())
	}
	sort.Slice(info.Callables, func(i, j int) bool {
		return info.Callables[i].Name < info.Callables[j].Name
	})
	return info
}

// Record is a registered callable. Only the invocation counter changes after
// registration.
type Record struct {
	name      string
	qualified string
	tool      invoke.Tool
	params    []invoke.Param

	invocations atomic.Int64
}

func newRecord(name string, tool invoke.Tool) *Record {
	params := tool.Params()
	return &Record{
		name:      name,
		qualified: invoke.QualifiedName(tool),
		tool:      tool,
		params:    append([]invoke.Param(nil), params...),
	}
}

// Name is the name the record was registered under.
func (r *Record) Name() string { return r.name }

// QualifiedName names the implementation type and base tool name.
func (r *Record) QualifiedName() string { return r.qualified }

// Params returns the declared parameters captured at registration.
func (r *Record) Params() []invoke.Param { return r.params }

// Tool implements invoke.Callable.
func (r *Record) Tool() invoke.Tool { return r.tool }

// CountInvocation implements invoke.Callable.
func (r *Record) CountInvocation() { r.invocations.Add(1) }

// Invocations returns how many times the record has been invoked.
func (r *Record) Invocations() int64 { return r.invocations.Load() }

func (r *Record) info() CallableInfo {
	return CallableInfo{
		Name:          r.name,
		QualifiedName: r.qualified,
		Invocations:   r.Invocations(),
	}
}

// Standalone wraps a tool that is not stored in a session registry, such as
// an entry of a manual Table, so it can be passed to the invoker.
func Standalone(name string, tool invoke.Tool) *Record {
	return newRecord(name, tool)
}
