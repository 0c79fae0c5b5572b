// Package assistant answers assistant-request callbacks from a configured
// template: it registers the template's tools for the call under
// call-unique names and returns the assistant configuration advertising them.
package assistant

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/soyeahso/voicehook/internal/invoke"
)

// Catalog maps tool names to Go implementations that templates may reference.
type Catalog struct {
	mu    sync.RWMutex
	tools map[string]invoke.Tool
}

// NewCatalog creates an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{tools: make(map[string]invoke.Tool)}
}

// DefaultCatalog returns a catalog holding the built-in tools.
func DefaultCatalog() *Catalog {
	c := NewCatalog()
	for _, t := range []invoke.Tool{WeatherByCity(), CurrentTime(time.Now), Echo()} {
		// Built-in names are distinct and their parameters valid.
		_ = c.Add(t)
	}
	return c
}

// Add registers a tool under its base name.
func (c *Catalog) Add(t invoke.Tool) error {
	if err := invoke.ValidateParams(t.Params()); err != nil {
		return fmt.Errorf("catalog tool %q: %w", t.Name(), err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.tools[t.Name()]; exists {
		return fmt.Errorf("catalog tool %q already exists", t.Name())
	}
	c.tools[t.Name()] = t
	return nil
}

// Get returns the tool registered under name.
func (c *Catalog) Get(name string) (invoke.Tool, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	t, ok := c.tools[name]
	return t, ok
}

// Names lists the catalog, sorted.
func (c *Catalog) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.tools))
	for n := range c.tools {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// WeatherByCity reports a canned forecast for a city.
func WeatherByCity() invoke.Tool {
	return invoke.Func("getWeatherByCity", "Get the current weather for a city",
		[]invoke.Param{
			{Name: "city", Type: invoke.String, Description: "City name"},
			{Name: "state", Type: invoke.String, Description: "State or region"},
		},
		func(_ context.Context, args invoke.Args) (string, error) {
			city := strings.TrimSpace(args.String("city"))
			if city == "" {
				return "", fmt.Errorf("city is required")
			}
			return fmt.Sprintf("The weather in city %s and state %s is windy", city, args.String("state")), nil
		},
		invoke.WithFailedMessage("Sorry, I couldn't look up the weather for that city."))
}

// CurrentTime tells the time in an IANA time zone (UTC when omitted).
func CurrentTime(now func() time.Time) invoke.Tool {
	return invoke.Func("currentTime", "Get the current date and time",
		[]invoke.Param{
			{Name: "timezone", Type: invoke.String, Description: "IANA time zone, e.g. America/Chicago"},
		},
		func(_ context.Context, args invoke.Args) (string, error) {
			name := args.String("timezone")
			if name == "" {
				name = "UTC"
			}
			loc, err := time.LoadLocation(name)
			if err != nil {
				return "", fmt.Errorf("unknown time zone %q", name)
			}
			return now().In(loc).Format("Monday, January 2, 2006 3:04 PM MST"), nil
		})
}

// Echo returns its input.
func Echo() invoke.Tool {
	return invoke.Func("echo", "Repeat the given text",
		[]invoke.Param{{Name: "text", Type: invoke.String, Description: "Text to repeat"}},
		func(_ context.Context, args invoke.Args) (string, error) {
			return args.String("text"), nil
		})
}
