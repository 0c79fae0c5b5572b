package config

import "time"

// Config is the root configuration for voicehook.
type Config struct {
	Server       ServerConfig        `yaml:"server,omitempty"`
	Applications []ApplicationConfig `yaml:"applications,omitempty"`
	Cache        CacheConfig         `yaml:"cache,omitempty"`
	Dispatcher   DispatcherConfig    `yaml:"dispatcher,omitempty"`
	Reports      ReportsConfig       `yaml:"reports,omitempty"`
	Admin        AdminConfig         `yaml:"admin,omitempty"`
	Logging      LoggingConfig       `yaml:"logging,omitempty"`
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Host                   string `yaml:"host,omitempty"`
	Port                   int    `yaml:"port,omitempty"`
	MaxBodyBytes           int64  `yaml:"maxBodyBytes,omitempty"`
	SecretHeader           string `yaml:"secretHeader,omitempty"`
	ShutdownTimeoutSeconds int    `yaml:"shutdownTimeoutSeconds,omitempty"`
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	return joinHostPort(s.Host, s.Port)
}

// ShutdownTimeout returns the graceful shutdown budget.
func (s ServerConfig) ShutdownTimeout() time.Duration {
	return time.Duration(s.ShutdownTimeoutSeconds) * time.Second
}

// ApplicationConfig describes one webhook application mounted at Path.
type ApplicationConfig struct {
	Name   string `yaml:"name"`
	Path   string `yaml:"path"`
	Secret string `yaml:"secret,omitempty"`

	// Assistant is copied into the assistant-request response.
	Assistant map[string]any `yaml:"assistant,omitempty"`
	// Tools and Functions name catalog tools registered per call.
	Tools     []string `yaml:"tools,omitempty"`
	Functions []string `yaml:"functions,omitempty"`
	// ManualTools are resolvable by their plain name in every call.
	ManualTools []string `yaml:"manualTools,omitempty"`
}

// CacheConfig controls the registry janitor.
type CacheConfig struct {
	PauseMinutes  int `yaml:"pauseMinutes,omitempty"`
	MaxAgeMinutes int `yaml:"maxAgeMinutes,omitempty"`
}

// Pause returns the interval between sweeps.
func (c CacheConfig) Pause() time.Duration { return time.Duration(c.PauseMinutes) * time.Minute }

// MaxAge returns the age after which session entries are evicted.
func (c CacheConfig) MaxAge() time.Duration { return time.Duration(c.MaxAgeMinutes) * time.Minute }

// DispatcherConfig sizes the async callback dispatcher.
type DispatcherConfig struct {
	Workers          int `yaml:"workers,omitempty"`
	QueueSize        int `yaml:"queueSize,omitempty"`
	EnqueueTimeoutMs int `yaml:"enqueueTimeoutMs,omitempty"`
}

// EnqueueTimeout returns how long a full queue is waited on before dropping.
func (d DispatcherConfig) EnqueueTimeout() time.Duration {
	return time.Duration(d.EnqueueTimeoutMs) * time.Millisecond
}

// ReportsConfig controls end-of-call report persistence.
type ReportsConfig struct {
	Enabled bool   `yaml:"enabled,omitempty"`
	Store   string `yaml:"store,omitempty"` // "sqlite" | "memory"
	Path    string `yaml:"path,omitempty"`  // defaults to <data>/voicehook.db
}

// AdminConfig protects the diagnostic endpoints.
type AdminConfig struct {
	Token string `yaml:"token,omitempty"`
}

// LoggingConfig configures logging behavior.
type LoggingConfig struct {
	Level        string `yaml:"level,omitempty"`
	File         string `yaml:"file,omitempty"`
	ConsoleStyle string `yaml:"consoleStyle,omitempty"` // "pretty" | "json"
}
