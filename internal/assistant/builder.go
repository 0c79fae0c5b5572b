package assistant

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/cespare/xxhash/v2"
	"github.com/soyeahso/voicehook/internal/domain"
	"github.com/soyeahso/voicehook/internal/invoke"
	"github.com/soyeahso/voicehook/internal/logging"
	"github.com/soyeahso/voicehook/internal/webhook"
	"github.com/tidwall/sjson"
)

var (
	// ErrUnknownTool is returned when a template references a tool missing
	// from the catalog.
	ErrUnknownTool = errors.New("unknown catalog tool")

	// ErrDuplicateTool is returned when a template lists a tool twice in the
	// same section.
	ErrDuplicateTool = errors.New("duplicate template tool")
)

// Template describes the assistant returned for one application.
type Template struct {
	// Assistant is copied into the response under "assistant".
	Assistant map[string]any

	// Tools and Functions name catalog entries registered per call as
	// tool-calls tools and function-call functions respectively.
	Tools     []string
	Functions []string
}

// Builder implements webhook.AssistantHandler for a Template.
type Builder struct {
	app     string
	tmpl    Template
	catalog *Catalog
	log     *logging.Logger
}

// NewBuilder validates tmpl against catalog. Each name must exist in the
// catalog and appear at most once in Tools and at most once in Functions.
func NewBuilder(app string, tmpl Template, catalog *Catalog, log *logging.Logger) (*Builder, error) {
	for _, names := range [][]string{tmpl.Tools, tmpl.Functions} {
		seen := make(map[string]bool, len(names))
		for _, name := range names {
			if _, ok := catalog.Get(name); !ok {
				return nil, fmt.Errorf("application %q: %w: %q", app, ErrUnknownTool, name)
			}
			if seen[name] {
				return nil, fmt.Errorf("application %q: %w: %q", app, ErrDuplicateTool, name)
			}
			seen[name] = true
		}
	}
	return &Builder{
		app:     app,
		tmpl:    tmpl,
		catalog: catalog,
		log:     log.Sub("assistant").With("app", app),
	}, nil
}

// CallableName derives the per-call name of a tool. The suffix is stable for
// one call and application and differs across concurrent calls.
func CallableName(base string, key domain.SessionKey, app string) string {
	sum := xxhash.Sum64String(string(key) + app)
	return fmt.Sprintf("%s_%08x", base, uint32(sum>>32))
}

// BuildAssistant registers the template's tools for the call and returns
// {"assistant": ...} with their definitions under model.tools and
// model.functions.
func (b *Builder) BuildAssistant(_ context.Context, req *webhook.Request, reg webhook.Registrar) (json.RawMessage, error) {
	base := []byte(`{}`)
	if len(b.tmpl.Assistant) > 0 {
		var err error
		if base, err = json.Marshal(b.tmpl.Assistant); err != nil {
			return nil, fmt.Errorf("encoding assistant template: %w", err)
		}
	}

	out, err := b.attach(base, "model.tools", b.tmpl.Tools, reg.RegisterTool, req, func(d invoke.Definition) any { return d })
	if err != nil {
		return nil, err
	}
	out, err = b.attach(out, "model.functions", b.tmpl.Functions, reg.RegisterFunction, req, func(d invoke.Definition) any { return d.Function })
	if err != nil {
		return nil, err
	}

	resp, err := sjson.SetRawBytes([]byte(`{}`), "assistant", out)
	if err != nil {
		return nil, fmt.Errorf("wrapping assistant: %w", err)
	}

	b.log.Debug().
		Str("session", req.SessionKey.String()).
		Int("tools", len(b.tmpl.Tools)).
		Int("functions", len(b.tmpl.Functions)).
		Msg("assistant built")
	return resp, nil
}

func (b *Builder) attach(doc []byte, path string, names []string,
	register func(string, invoke.Tool) error, req *webhook.Request,
	shape func(invoke.Definition) any,
) ([]byte, error) {
	for _, name := range names {
		tool, ok := b.catalog.Get(name)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownTool, name)
		}

		callable := CallableName(name, req.SessionKey, b.app)
		if err := register(callable, tool); err != nil {
			return nil, err
		}

		var err error
		doc, err = sjson.SetBytes(doc, path+".-1", shape(invoke.Describe(callable, tool)))
		if err != nil {
			return nil, fmt.Errorf("adding %q to %s: %w", callable, path, err)
		}
	}
	return doc, nil
}
