// Package registry stores the tools registered for each live call, keyed by
// session key. Entries are spread over independently locked shards so that
// unrelated calls never contend on a single lock.
package registry

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/soyeahso/voicehook/internal/domain"
	"github.com/soyeahso/voicehook/internal/invoke"
	"github.com/soyeahso/voicehook/internal/logging"
)

// Registry names used by the webhook router.
const (
	Tools     = "tools"
	Functions = "functions"
)

const defaultShards = 32

var (
	ErrDuplicateRegistration = errors.New("duplicate registration")
	ErrNotFound              = errors.New("not found")
	ErrEmptySessionKey       = errors.New("empty session key")
)

// Registry is a concurrent map from session key to the callables registered
// for that session.
type Registry struct {
	name   string
	shards []*shard
	now    func() time.Time
	log    *logging.Logger
}

type shard struct {
	mu      sync.RWMutex
	entries map[domain.SessionKey]*Entry
}

// Option configures a Registry.
type Option func(*Registry)

// WithClock replaces time.Now as the source of entry creation times and ages.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

// WithShards sets the number of shards. Values below 1 are ignored.
func WithShards(n int) Option {
	return func(r *Registry) {
		if n > 0 {
			r.shards = newShards(n)
		}
	}
}

// WithLogger sets the logger used for registration and eviction events.
func WithLogger(log *logging.Logger) Option {
	return func(r *Registry) { r.log = log }
}

// New creates an empty registry. The name appears in logs and diagnostics.
func New(name string, opts ...Option) *Registry {
	r := &Registry{
		name:   name,
		shards: newShards(defaultShards),
		now:    time.Now,
		log:    logging.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.log = r.log.Sub("registry").With("registry", name)
	return r
}

func newShards(n int) []*shard {
	s := make([]*shard, n)
	for i := range s {
		s[i] = &shard{entries: make(map[domain.SessionKey]*Entry)}
	}
	return s
}

// Name returns the registry name.
func (r *Registry) Name() string { return r.name }

func (r *Registry) shardFor(key domain.SessionKey) *shard {
	return r.shards[xxhash.Sum64String(string(key))%uint64(len(r.shards))]
}

// Register adds tool under name for the session. The entry for the session is
// created on first registration. Registering a name that already exists under
// the session fails with ErrDuplicateRegistration and leaves the existing
// record untouched.
func (r *Registry) Register(key domain.SessionKey, name string, tool invoke.Tool) error {
	if key.IsZero() {
		return fmt.Errorf("register %q in %s: %w", name, r.name, ErrEmptySessionKey)
	}
	if err := invoke.ValidateParams(tool.Params()); err != nil {
		return fmt.Errorf("register %q in %s: %w", name, r.name, err)
	}

	rec := newRecord(name, tool)

	s := r.shardFor(key)
	s.mu.Lock()
	e, ok := s.entries[key]
	if !ok {
		e = newEntry(key, r.now())
		s.entries[key] = e
	}
	added := e.add(rec)
	s.mu.Unlock()

	if !added {
		return fmt.Errorf("register %q for session %s in %s: %w", name, key, r.name, ErrDuplicateRegistration)
	}

	r.log.Debug().
		Str("session", key.String()).
		Str("name", name).
		Str("tool", rec.QualifiedName()).
		Msg("callable registered")
	return nil
}

// Lookup returns the record registered under name for the session.
func (r *Registry) Lookup(key domain.SessionKey, name string) (*Record, error) {
	s := r.shardFor(key)
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[key]
	if !ok {
		return nil, fmt.Errorf("session %q in %s: %w", key, r.name, ErrNotFound)
	}
	rec := e.get(name)
	if rec == nil {
		return nil, fmt.Errorf("%q for session %q in %s: %w", name, key, r.name, ErrNotFound)
	}
	return rec, nil
}

// Contains reports whether the session has an entry.
func (r *Registry) Contains(key domain.SessionKey) bool {
	s := r.shardFor(key)
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.entries[key]
	return ok
}

// Remove detaches and returns the session's entry.
func (r *Registry) Remove(key domain.SessionKey) (*Entry, bool) {
	s := r.shardFor(key)
	s.mu.Lock()
	e, ok := s.entries[key]
	if ok {
		delete(s.entries, key)
	}
	s.mu.Unlock()

	if ok {
		r.log.Debug().Str("session", key.String()).Msg("session removed")
	}
	return e, ok
}

// SweepOlderThan removes every entry whose age is at least maxAge and returns
// how many were removed. Shards are swept one at a time.
func (r *Registry) SweepOlderThan(maxAge time.Duration) int {
	now := r.now()
	removed := 0
	for _, s := range r.shards {
		s.mu.Lock()
		for key, e := range s.entries {
			if now.Sub(e.CreatedAt) >= maxAge {
				delete(s.entries, key)
				removed++
			}
		}
		s.mu.Unlock()
	}
	if removed > 0 {
		r.log.Info().Int("removed", removed).Dur("maxAge", maxAge).Msg("swept stale sessions")
	}
	return removed
}

// Clear removes every entry regardless of age.
func (r *Registry) Clear() int {
	removed := 0
	for _, s := range r.shards {
		s.mu.Lock()
		removed += len(s.entries)
		s.entries = make(map[domain.SessionKey]*Entry)
		s.mu.Unlock()
	}
	if removed > 0 {
		r.log.Info().Int("removed", removed).Msg("cleared sessions")
	}
	return removed
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	n := 0
	for _, s := range r.shards {
		s.mu.RLock()
		n += len(s.entries)
		s.mu.RUnlock()
	}
	return n
}

// EntryInfo is a diagnostic view of one session entry.
type EntryInfo struct {
	SessionKey domain.SessionKey `json:"sessionKey"`
	CreatedAt  time.Time         `json:"createdAt"`
	Age        string            `json:"age"`
	Callables  []CallableInfo    `json:"callables"`
}

// CallableInfo is a diagnostic view of one record.
type CallableInfo struct {
	Name          string `json:"name"`
	QualifiedName string `json:"qualifiedName"`
	Invocations   int64  `json:"invocations"`
}

// Snapshot returns the current contents ordered by creation time.
func (r *Registry) Snapshot() []EntryInfo {
	now := r.now()
	out := make([]EntryInfo, 0)
	for _, s := range r.shards {
		s.mu.RLock()
		for _, e := range s.entries {
			out = append(out, e.info(now))
		}
		s.mu.RUnlock()
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].SessionKey < out[j].SessionKey
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}
