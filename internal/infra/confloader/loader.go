package confloader

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// DefaultEnvPrefix is the default environment variable prefix.
const DefaultEnvPrefix = "FEEDAUTH_"

// Loader layers a YAML file, the environment and explicit overrides, later
// sources winning, and unmarshals the result onto a struct with koanf tags.
type Loader struct {
	envPrefix    string
	filePath     string
	fileOptional bool
	overrides    map[string]any
}

// Option configures a Loader.
type Option func(*Loader)

// WithEnvPrefix sets the environment variable prefix.
func WithEnvPrefix(prefix string) Option {
	return func(l *Loader) { l.envPrefix = prefix }
}

// WithConfigFile sets a configuration file that must exist.
func WithConfigFile(path string) Option {
	return func(l *Loader) { l.filePath, l.fileOptional = path, false }
}

// WithOptionalConfigFile sets a configuration file that is skipped when it
// does not exist. A file that exists but does not parse is still an error.
func WithOptionalConfigFile(path string) Option {
	return func(l *Loader) { l.filePath, l.fileOptional = path, true }
}

// WithOverrides sets dotted keys applied after every other source.
func WithOverrides(values map[string]any) Option {
	return func(l *Loader) { l.overrides = values }
}

// NewLoader returns a Loader reading FEEDAUTH_ variables and nothing else
// unless opts add a file or overrides.
func NewLoader(opts ...Option) *Loader {
	l := &Loader{envPrefix: DefaultEnvPrefix}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load reads every source into a fresh koanf tree and unmarshals it over
// target. Fields no source mentions keep their values, so target can carry
// defaults. Load may be called again to pick up changed sources.
func (l *Loader) Load(target any) error {
	k := koanf.New(".")

	if err := l.loadFile(k); err != nil {
		return err
	}

	envKeys := env.Provider(l.envPrefix, ".", func(s string) string {
		return EnvKey(l.envPrefix, s)
	})
	if err := k.Load(envKeys, nil); err != nil {
		return fmt.Errorf("load env: %w", err)
	}

	if len(l.overrides) > 0 {
		if err := k.Load(mapProvider(l.overrides), nil); err != nil {
			return fmt.Errorf("load overrides: %w", err)
		}
	}

	if err := k.Unmarshal("", target); err != nil {
		return fmt.Errorf("unmarshal config: %w", err)
	}
	return nil
}

func (l *Loader) loadFile(k *koanf.Koanf) error {
	if l.filePath == "" {
		return nil
	}
	if _, err := os.Stat(l.filePath); err != nil {
		if l.fileOptional && errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load config file: %w", err)
	}
	if err := k.Load(file.Provider(l.filePath), yaml.Parser()); err != nil {
		return fmt.Errorf("load config file %s: %w", l.filePath, err)
	}
	return nil
}

// EnvKey maps an environment variable name to a dotted config key, or ""
// if the variable has no section.
//
// The first underscore after the prefix separates the section from the key,
// so FEEDAUTH_SERVER_RATE_LIMIT becomes server.rate_limit. Variables such as
// FEEDAUTH_SERVER name no key and are ignored.
func EnvKey(prefix, name string) string {
	s := strings.ToLower(strings.TrimPrefix(name, prefix))
	section, key, ok := strings.Cut(s, "_")
	if !ok || section == "" || key == "" {
		return ""
	}
	return section + "." + key
}
