package config

import (
	"fmt"
	"log/slog"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dirsize/dirsize-exporter/pkg/types"
)

// Default values applied when fields are absent from the config file.
const (
	DefaultIntervalSeconds = 60
	DefaultPort            = 8080
	DefaultMetricsPath     = "/metrics"
	DefaultAPIKeyHeader    = "X-API-Key"
	DefaultLogLevel        = "info"
	DefaultLogFormat       = "json"
)

// Environment variables that override values from the config file.
const (
	EnvIntervalSeconds = "DIRSIZE_INTERVAL_SECONDS"
	EnvAddress         = "DIRSIZE_ADDRESS"
	EnvPort            = "DIRSIZE_PORT"
	EnvMaxDepth        = "DIRSIZE_MAX_DEPTH"
	EnvLogLevel        = "DIRSIZE_LOG_LEVEL"
	EnvLogFormat       = "DIRSIZE_LOG_FORMAT"
)

// Config is the top-level configuration. Fields map 1:1 to config.example.yaml.
type Config struct {
	Exporter ExporterConfig `yaml:"exporter"`
	Server   ServerConfig   `yaml:"server"`
	Log      LogConfig      `yaml:"log"`
}

// ExporterConfig holds the scrape settings.
type ExporterConfig struct {
	// IntervalSeconds is the process-wide delay between scrape cycles.
	IntervalSeconds int `yaml:"interval_seconds"`

	// MaxDepth caps how many directory levels below a measured unit are
	// walked. Zero means no cap.
	MaxDepth int `yaml:"max_depth"`

	// Directories is the ordered list of targets measured every cycle.
	Directories []Target `yaml:"directories"`
}

// Interval returns IntervalSeconds as a time.Duration.
func (e ExporterConfig) Interval() time.Duration {
	return time.Duration(e.IntervalSeconds) * time.Second
}

// Target is one configured directory.
type Target struct {
	Path string           `yaml:"path"`
	Mode types.ScrapeMode `yaml:"mode"`
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	// Address is the bind address. Empty or "+" binds all interfaces.
	Address string `yaml:"address"`

	Port int `yaml:"port"`

	// MetricsPath is where the Prometheus exposition is served.
	MetricsPath string `yaml:"metrics_path"`

	// SnapshotTTL is how long a measurement stays in the status API without
	// being refreshed. Zero means three scrape intervals.
	SnapshotTTL time.Duration `yaml:"snapshot_ttl"`

	// Auth configures how /api and /ws requests are authenticated.
	Auth AuthConfig `yaml:"auth"`
}

// ListenAddr returns the host:port the HTTP server binds to.
func (s ServerConfig) ListenAddr() string {
	host := s.Address
	if host == "+" || host == "*" {
		host = ""
	}
	return net.JoinHostPort(host, strconv.Itoa(s.Port))
}

// AuthConfig configures API key authentication of the status endpoints.
type AuthConfig struct {
	// Mode is one of: apikey | none.
	Mode string `yaml:"mode"`

	// Header is the HTTP header that carries the key.
	Header string `yaml:"header"`

	// KeyEnv is the name of the environment variable that holds the key value.
	KeyEnv string `yaml:"key_env"`
}

// Key returns the API key value resolved from the environment.
// Returns empty string if KeyEnv is unset or the variable is not found.
func (a AuthConfig) Key() string {
	if a.KeyEnv == "" {
		return ""
	}
	return os.Getenv(a.KeyEnv)
}

// LogConfig controls the process logger.
type LogConfig struct {
	// Level is one of: debug | info | warn | error.
	Level string `yaml:"level"`

	// Format is one of: json | text.
	Format string `yaml:"format"`
}

// SlogLevel maps Level to a slog.Level. Unknown values map to info; validate
// rejects them before this is called.
func (l LogConfig) SlogLevel() slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(l.Level)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}

// Load reads and parses the YAML config file at path.
// Missing optional fields are filled with defaults, then environment
// overrides are applied and the result is validated.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read file: %w", err)
	}

	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse yaml: %w", err)
	}

	if err := applyEnv(cfg, os.LookupEnv); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	return cfg, nil
}

// defaults returns a Config pre-populated with default values.
func defaults() *Config {
	return &Config{
		Exporter: ExporterConfig{
			IntervalSeconds: DefaultIntervalSeconds,
		},
		Server: ServerConfig{
			Port:        DefaultPort,
			MetricsPath: DefaultMetricsPath,
			Auth: AuthConfig{
				Mode:   "none",
				Header: DefaultAPIKeyHeader,
			},
		},
		Log: LogConfig{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
	}
}

// applyEnv overlays DIRSIZE_* environment variables onto cfg.
func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	intVar := func(name string, dst *int) error {
		raw, ok := lookup(name)
		if !ok || raw == "" {
			return nil
		}
		n, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil {
			return fmt.Errorf("%s: %q is not an integer", name, raw)
		}
		*dst = n
		return nil
	}
	strVar := func(name string, dst *string) {
		if raw, ok := lookup(name); ok && raw != "" {
			*dst = raw
		}
	}

	if err := intVar(EnvIntervalSeconds, &cfg.Exporter.IntervalSeconds); err != nil {
		return err
	}
	if err := intVar(EnvMaxDepth, &cfg.Exporter.MaxDepth); err != nil {
		return err
	}
	if err := intVar(EnvPort, &cfg.Server.Port); err != nil {
		return err
	}
	strVar(EnvAddress, &cfg.Server.Address)
	strVar(EnvLogLevel, &cfg.Log.Level)
	strVar(EnvLogFormat, &cfg.Log.Format)
	return nil
}

// validate checks required fields and structural constraints.
func validate(cfg *Config) error {
	if cfg.Exporter.IntervalSeconds <= 0 {
		return fmt.Errorf("exporter.interval_seconds must be positive")
	}
	if cfg.Exporter.MaxDepth < 0 {
		return fmt.Errorf("exporter.max_depth must not be negative")
	}
	for i, d := range cfg.Exporter.Directories {
		if d.Path == "" {
			return fmt.Errorf("directories[%d]: path is required", i)
		}
		switch d.Mode {
		case types.ModeSingleDirectory, types.ModeImmediateChildren:
		case types.ModeRecursive:
			return fmt.Errorf("directories[%d] %q: mode %q is not implemented", i, d.Path, d.Mode)
		default:
			return fmt.Errorf("directories[%d] %q: mode is required", i, d.Path)
		}
	}
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", cfg.Server.Port)
	}
	if !strings.HasPrefix(cfg.Server.MetricsPath, "/") {
		return fmt.Errorf("server.metrics_path must start with /")
	}
	if cfg.Server.SnapshotTTL < 0 {
		return fmt.Errorf("server.snapshot_ttl must not be negative")
	}
	switch cfg.Server.Auth.Mode {
	case "apikey":
		if cfg.Server.Auth.Header == "" {
			return fmt.Errorf("server.auth.header is required for apikey mode")
		}
	case "none", "":
	default:
		return fmt.Errorf("server.auth: unknown mode %q", cfg.Server.Auth.Mode)
	}
	switch strings.ToLower(cfg.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level: unknown level %q", cfg.Log.Level)
	}
	switch cfg.Log.Format {
	case "json", "text":
	default:
		return fmt.Errorf("log.format: unknown format %q", cfg.Log.Format)
	}
	return nil
}

// EffectiveSnapshotTTL returns SnapshotTTL, or three scrape intervals when it
// is unset.
func (c *Config) EffectiveSnapshotTTL() time.Duration {
	if c.Server.SnapshotTTL > 0 {
		return c.Server.SnapshotTTL
	}
	return 3 * c.Exporter.Interval()
}

// SameTargets reports whether a and b configure the same directories in the
// same order with the same modes.
func SameTargets(a, b []Target) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
