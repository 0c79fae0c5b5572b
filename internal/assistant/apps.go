package assistant

import (
	"fmt"

	"github.com/soyeahso/voicehook/internal/config"
	"github.com/soyeahso/voicehook/internal/hooks"
	"github.com/soyeahso/voicehook/internal/logging"
	"github.com/soyeahso/voicehook/internal/registry"
	"github.com/soyeahso/voicehook/internal/webhook"
)

// Application builds a webhook application from its config entry. Manual
// tools are resolvable by their catalog name in every call.
func Application(cfg config.ApplicationConfig, catalog *Catalog, log *logging.Logger) (*webhook.Application, error) {
	builder, err := NewBuilder(cfg.Name, Template{
		Assistant: cfg.Assistant,
		Tools:     cfg.Tools,
		Functions: cfg.Functions,
	}, catalog, log)
	if err != nil {
		return nil, err
	}

	manual := registry.NewTable()
	for _, name := range cfg.ManualTools {
		tool, ok := catalog.Get(name)
		if !ok {
			return nil, fmt.Errorf("application %q: %w: %q", cfg.Name, ErrUnknownTool, name)
		}
		if err := manual.Add(tool); err != nil {
			return nil, fmt.Errorf("application %q: %w", cfg.Name, err)
		}
	}

	return &webhook.Application{
		Name:      cfg.Name,
		Path:      cfg.Path,
		Secret:    cfg.Secret,
		Assistant: builder,
		Manual:    manual,
		Hooks:     hooks.NewManager(log.With("app", cfg.Name)),
	}, nil
}

// Applications builds every configured application.
func Applications(cfgs []config.ApplicationConfig, catalog *Catalog, log *logging.Logger) ([]*webhook.Application, error) {
	apps := make([]*webhook.Application, 0, len(cfgs))
	for _, c := range cfgs {
		app, err := Application(c, catalog, log)
		if err != nil {
			return nil, err
		}
		apps = append(apps, app)
	}
	return apps, nil
}
