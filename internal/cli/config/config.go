package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/yndnr/feedauth-go/internal/cli/connection"
	"github.com/yndnr/feedauth-go/internal/core/domain"
	"github.com/yndnr/feedauth-go/internal/infra/confloader"
	"github.com/yndnr/feedauth-go/internal/infra/tlsroots"
	"github.com/yndnr/feedauth-go/internal/storage"
	"github.com/yndnr/feedauth-go/internal/telemetry/logger"
)

// Config is the configuration for feedauth-cli.
type Config struct {
	Server  ServerConfig  `koanf:"server"`
	Session SessionConfig `koanf:"session"`
	Store   StoreConfig   `koanf:"store"`
	Log     LogConfig     `koanf:"log"`
	Metrics MetricsConfig `koanf:"metrics"`
}

// ServerConfig describes the auth server.
type ServerConfig struct {
	URL       string        `koanf:"url"`
	Timeout   time.Duration `koanf:"timeout"`
	RateLimit float64       `koanf:"rate_limit"`
	Burst     int           `koanf:"burst"`

	// CAFile is a PEM file or directory trusted in addition to the system
	// roots. CertFile and KeyFile enable mutual TLS.
	CAFile   string `koanf:"ca_file"`
	CertFile string `koanf:"cert_file"`
	KeyFile  string `koanf:"key_file"`
}

// TLS returns the TLS options for the server connection.
func (s ServerConfig) TLS() tlsroots.Options {
	return tlsroots.Options{CAFile: s.CAFile, CertFile: s.CertFile, KeyFile: s.KeyFile}
}

// SessionConfig holds session defaults.
type SessionConfig struct {
	// DefaultTTL applies when the server does not report a lifetime.
	DefaultTTL time.Duration `koanf:"default_ttl"`
}

// StoreConfig selects where the session is persisted.
type StoreConfig struct {
	Engine string `koanf:"engine"`
	Dir    string `koanf:"dir"`
	// EncryptionKey, when set, seals the stored token. Any length; a key is
	// derived from it.
	EncryptionKey string `koanf:"encryption_key"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// MetricsConfig configures the Prometheus endpoint served by the REPL.
type MetricsConfig struct {
	// Address is host:port for /metrics. Empty disables it.
	Address string `koanf:"address"`
}

// Home returns the per-user FeedAuth directory.
func Home() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = os.TempDir()
	}
	return filepath.Join(homeDir, ".feedauth")
}

// DefaultConfigPath returns the default CLI config file path.
func DefaultConfigPath() string {
	return filepath.Join(Home(), "cli.yaml")
}

// Default returns the default CLI configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			URL:       connection.DefaultServer,
			Timeout:   30 * time.Second,
			RateLimit: 2,
			Burst:     4,
		},
		Session: SessionConfig{
			DefaultTTL: domain.DefaultSessionTTL,
		},
		Store: StoreConfig{
			Engine: storage.EngineBadger,
			Dir:    filepath.Join(Home(), "data"),
		},
		Log: LogConfig{
			Level:  "warn",
			Format: "text",
		},
	}
}

// Load reads configuration from path, the environment and overrides.
//
// An empty path means DefaultConfigPath, which may be absent. An explicit
// path must exist. Override keys are dotted, e.g. "server.url".
func Load(path string, overrides map[string]any) (*Config, error) {
	fileOpt := confloader.WithConfigFile(path)
	if path == "" {
		fileOpt = confloader.WithOptionalConfigFile(DefaultConfigPath())
	}

	cfg := Default()
	loader := confloader.NewLoader(fileOpt, confloader.WithOverrides(overrides))
	if err := loader.Load(cfg); err != nil {
		return nil, err
	}

	cfg.Store.Dir = expandHome(cfg.Store.Dir)
	cfg.Server.CAFile = expandHome(cfg.Server.CAFile)
	cfg.Server.CertFile = expandHome(cfg.Server.CertFile)
	cfg.Server.KeyFile = expandHome(cfg.Server.KeyFile)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for values the CLI cannot use.
func (c *Config) Validate() error {
	var problems []string

	if _, err := storage.Origin(connection.NormalizeServer(c.Server.URL)); err != nil {
		problems = append(problems, fmt.Sprintf("server.url %q is not a valid URL", c.Server.URL))
	}
	if c.Server.Timeout <= 0 {
		problems = append(problems, "server.timeout must be positive")
	}
	if c.Server.RateLimit < 0 {
		problems = append(problems, "server.rate_limit must not be negative")
	}
	if c.Server.Burst < 0 {
		problems = append(problems, "server.burst must not be negative")
	}
	if err := c.Server.TLS().Validate(); err != nil {
		problems = append(problems, "server.cert_file and server.key_file must be set together")
	}
	if c.Session.DefaultTTL <= 0 {
		problems = append(problems, "session.default_ttl must be positive")
	}

	switch c.Store.Engine {
	case storage.EngineBadger:
		if c.Store.Dir == "" {
			problems = append(problems, "store.dir is required for the badger engine")
		}
	case storage.EngineMemory:
	default:
		problems = append(problems, fmt.Sprintf("store.engine %q must be %q or %q",
			c.Store.Engine, storage.EngineBadger, storage.EngineMemory))
	}

	if !logger.ValidLevel(c.Log.Level) {
		problems = append(problems, fmt.Sprintf("log.level %q is not one of debug, info, warn, error", c.Log.Level))
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		problems = append(problems, fmt.Sprintf("log.format %q must be text or json", c.Log.Format))
	}

	if len(problems) > 0 {
		return domain.ErrInvalidArgument.WithDetails("config: " + strings.Join(problems, "; "))
	}
	return nil
}

// Redacted returns a copy safe to print.
func (c *Config) Redacted() *Config {
	out := *c
	if out.Store.EncryptionKey != "" {
		out.Store.EncryptionKey = "***REDACTED***"
	}
	return &out
}

// Map returns the configuration as nested maps keyed like the YAML file,
// with durations rendered as strings.
func (c *Config) Map() map[string]any {
	return map[string]any{
		"server": map[string]any{
			"url":        c.Server.URL,
			"timeout":    c.Server.Timeout.String(),
			"rate_limit": c.Server.RateLimit,
			"burst":      c.Server.Burst,
			"ca_file":    c.Server.CAFile,
			"cert_file":  c.Server.CertFile,
			"key_file":   c.Server.KeyFile,
		},
		"session": map[string]any{
			"default_ttl": c.Session.DefaultTTL.String(),
		},
		"store": map[string]any{
			"engine":         c.Store.Engine,
			"dir":            c.Store.Dir,
			"encryption_key": c.Store.EncryptionKey,
		},
		"log": map[string]any{
			"level":  c.Log.Level,
			"format": c.Log.Format,
		},
		"metrics": map[string]any{
			"address": c.Metrics.Address,
		},
	}
}

// Save writes cfg as YAML to path (0600), creating the directory.
func Save(cfg *Config, path string) error {
	if path == "" {
		path = DefaultConfigPath()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg.Map())
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0o600)
}

func expandHome(p string) string {
	if p == "~" || strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(p, "~"))
		}
	}
	return p
}
