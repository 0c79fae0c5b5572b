package config

import (
	"fmt"
	"slices"
	"strings"
)

// ValidationIssue describes a problem with a config value.
type ValidationIssue struct {
	Path    string
	Message string
}

func (v ValidationIssue) String() string {
	return fmt.Sprintf("%s: %s", v.Path, v.Message)
}

// ReservedPaths are served by the gateway itself and cannot host an application.
var ReservedPaths = []string{"/ping", "/health", "/version", "/caches", "/clear-caches", "/reports", "/events"}

// Validate checks a Config for issues. Returns nil if valid.
func Validate(cfg *Config) []ValidationIssue {
	var issues []ValidationIssue
	add := func(path, format string, args ...any) {
		issues = append(issues, ValidationIssue{Path: path, Message: fmt.Sprintf(format, args...)})
	}

	// Server validation
	if cfg.Server.Port < 0 || cfg.Server.Port > 65535 {
		add("server.port", "port must be 0-65535, got %d", cfg.Server.Port)
	}
	if cfg.Server.MaxBodyBytes < 0 {
		add("server.maxBodyBytes", "must not be negative, got %d", cfg.Server.MaxBodyBytes)
	}
	if cfg.Server.ShutdownTimeoutSeconds < 0 {
		add("server.shutdownTimeoutSeconds", "must not be negative, got %d", cfg.Server.ShutdownTimeoutSeconds)
	}

	// Applications
	names := make(map[string]bool)
	paths := make(map[string]bool)
	for i, app := range cfg.Applications {
		prefix := fmt.Sprintf("applications[%d]", i)
		if app.Name == "" {
			add(prefix+".name", "name is required")
		} else if names[app.Name] {
			add(prefix+".name", "duplicate application name %q", app.Name)
		}
		names[app.Name] = true

		switch {
		case !strings.HasPrefix(app.Path, "/"):
			add(prefix+".path", "must start with /, got %q", app.Path)
		case slices.Contains(ReservedPaths, app.Path):
			add(prefix+".path", "%q is reserved", app.Path)
		case paths[app.Path]:
			add(prefix+".path", "duplicate path %q", app.Path)
		}
		paths[app.Path] = true

		for _, list := range []struct {
			field string
			names []string
		}{{"tools", app.Tools}, {"functions", app.Functions}, {"manualTools", app.ManualTools}} {
			seen := make(map[string]bool, len(list.names))
			for j, n := range list.names {
				switch {
				case n == "":
					add(fmt.Sprintf("%s.%s[%d]", prefix, list.field, j), "tool name is empty")
				case seen[n]:
					add(fmt.Sprintf("%s.%s[%d]", prefix, list.field, j), "duplicate tool name %q", n)
				}
				seen[n] = true
			}
		}
	}

	// Cache
	if cfg.Cache.PauseMinutes <= 0 {
		add("cache.pauseMinutes", "must be positive, got %d", cfg.Cache.PauseMinutes)
	}
	if cfg.Cache.MaxAgeMinutes <= 0 {
		add("cache.maxAgeMinutes", "must be positive, got %d", cfg.Cache.MaxAgeMinutes)
	}

	// Dispatcher
	if cfg.Dispatcher.Workers <= 0 {
		add("dispatcher.workers", "must be positive, got %d", cfg.Dispatcher.Workers)
	}
	if cfg.Dispatcher.QueueSize <= 0 {
		add("dispatcher.queueSize", "must be positive, got %d", cfg.Dispatcher.QueueSize)
	}
	if cfg.Dispatcher.EnqueueTimeoutMs < 0 {
		add("dispatcher.enqueueTimeoutMs", "must not be negative, got %d", cfg.Dispatcher.EnqueueTimeoutMs)
	}

	// Reports
	validStores := []string{"sqlite", "memory"}
	if cfg.Reports.Store != "" && !slices.Contains(validStores, cfg.Reports.Store) {
		add("reports.store", "must be one of %v, got %q", validStores, cfg.Reports.Store)
	}

	// Logging validation
	validLogLevels := []string{"silent", "fatal", "error", "warn", "info", "debug", "trace"}
	if cfg.Logging.Level != "" && !slices.Contains(validLogLevels, cfg.Logging.Level) {
		add("logging.level", "must be one of %v, got %q", validLogLevels, cfg.Logging.Level)
	}
	validConsoleStyles := []string{"pretty", "json"}
	if cfg.Logging.ConsoleStyle != "" && !slices.Contains(validConsoleStyles, cfg.Logging.ConsoleStyle) {
		add("logging.consoleStyle", "must be one of %v, got %q", validConsoleStyles, cfg.Logging.ConsoleStyle)
	}

	return issues
}
