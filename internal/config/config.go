// Package config loads, defaults and validates the voicehook YAML config.
package config

import (
	"fmt"
	"net"
	"strconv"
)

// ConfigError represents a configuration error.
type ConfigError struct {
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s", e.Message)
}

const (
	DefaultPort            = 8080
	DefaultMaxBodyBytes    = 4 << 20
	DefaultSecretHeader    = "X-Vapi-Secret"
	DefaultShutdownSeconds = 10
	DefaultPauseMinutes    = 30
	DefaultMaxAgeMinutes   = 60
	DefaultWorkers         = 4
	DefaultQueueSize       = 256
	DefaultEnqueueMs       = 50
)

// Defaults returns a Config with sensible defaults applied.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Host:                   "127.0.0.1",
			Port:                   DefaultPort,
			MaxBodyBytes:           DefaultMaxBodyBytes,
			SecretHeader:           DefaultSecretHeader,
			ShutdownTimeoutSeconds: DefaultShutdownSeconds,
		},
		Cache: CacheConfig{
			PauseMinutes:  DefaultPauseMinutes,
			MaxAgeMinutes: DefaultMaxAgeMinutes,
		},
		Dispatcher: DispatcherConfig{
			Workers:          DefaultWorkers,
			QueueSize:        DefaultQueueSize,
			EnqueueTimeoutMs: DefaultEnqueueMs,
		},
		Reports: ReportsConfig{
			Store: "sqlite",
		},
		Logging: LoggingConfig{
			Level:        "info",
			ConsoleStyle: "pretty",
		},
	}
}

func joinHostPort(host string, port int) string {
	return net.JoinHostPort(host, strconv.Itoa(port))
}
