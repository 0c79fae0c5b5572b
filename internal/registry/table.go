package registry

import (
	"fmt"
	"sort"
	"sync"

	"github.com/soyeahso/voicehook/internal/invoke"
)

// Table holds manually registered tools for one application. Unlike session
// entries they never expire.
type Table struct {
	mu      sync.RWMutex
	records map[string]*Record
}

// NewTable creates an empty manual tool table.
func NewTable() *Table {
	return &Table{records: make(map[string]*Record)}
}

// Add registers tool under its own name.
func (t *Table) Add(tool invoke.Tool) error {
	return t.AddAs(tool.Name(), tool)
}

// AddAs registers tool under an explicit name.
func (t *Table) AddAs(name string, tool invoke.Tool) error {
	if err := invoke.ValidateParams(tool.Params()); err != nil {
		return fmt.Errorf("manual tool %q: %w", name, err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if _, exists := t.records[name]; exists {
		return fmt.Errorf("manual tool %q: %w", name, ErrDuplicateRegistration)
	}
	t.records[name] = newRecord(name, tool)
	return nil
}

// Get returns the record for name.
func (t *Table) Get(name string) (*Record, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	rec, ok := t.records[name]
	return rec, ok
}

// Names returns the registered names, sorted.
func (t *Table) Names() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	names := make([]string, 0, len(t.records))
	for n := range t.records {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Infos returns diagnostic views of the table's records.
func (t *Table) Infos() []CallableInfo {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]CallableInfo, 0, len(t.records))
	for _, rec := range t.records {
		out = append(out, rec.info())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
