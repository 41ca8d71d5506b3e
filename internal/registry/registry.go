// Package registry holds the static mapping from configuration names to
// build configurations. The stock registry is embedded at build time; a
// project may replace it with its own file.
package registry

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/relforge/relforge/internal/models"
)

//go:embed assets/configs.yaml
var embeddedConfigs []byte

// ErrUnknownConfig marks lookups of configuration names that were never registered.
var ErrUnknownConfig = errors.New("unknown configuration")

// UnknownConfigError reports the offending name alongside ErrUnknownConfig.
type UnknownConfigError struct {
	Name string
}

func (e *UnknownConfigError) Error() string {
	return fmt.Sprintf("configuration %q does not exist", e.Name)
}

func (e *UnknownConfigError) Unwrap() error { return ErrUnknownConfig }

// Registry maps configuration names to immutable build configurations.
// It is read-only after construction and safe for concurrent use.
type Registry struct {
	app     string
	configs map[string]models.BuildConfig
	names   []string
}

type registryFile struct {
	App     string               `yaml:"app"`
	Bin     string               `yaml:"bin"`
	Configs []models.BuildConfig `yaml:"configs"`
}

// Embedded returns the registry compiled into the binary.
func Embedded() (*Registry, error) {
	return parse(embeddedConfigs)
}

// LoadFile reads a project-local registry file, replacing the embedded one.
func LoadFile(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read registry file %s: %w", path, err)
	}
	reg, err := parse(data)
	if err != nil {
		return nil, fmt.Errorf("registry file %s: %w", path, err)
	}
	return reg, nil
}

func parse(data []byte) (*Registry, error) {
	var file registryFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse registry: %w", err)
	}
	if file.App == "" {
		return nil, fmt.Errorf("registry is missing the app name")
	}
	if len(file.Configs) == 0 {
		return nil, fmt.Errorf("registry declares no configurations")
	}

	configs := make(map[string]models.BuildConfig, len(file.Configs))
	names := make([]string, 0, len(file.Configs))
	for _, cfg := range file.Configs {
		if cfg.Bin == "" {
			cfg.Bin = file.Bin
		}
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
		if _, ok := configs[cfg.Name]; ok {
			return nil, fmt.Errorf("configuration %q is declared twice", cfg.Name)
		}
		configs[cfg.Name] = cfg
		names = append(names, cfg.Name)
	}
	sort.Strings(names)

	return &Registry{app: file.App, configs: configs, names: names}, nil
}

// App returns the application name artifacts are named after.
func (r *Registry) App() string {
	return r.app
}

// Lookup resolves a configuration name. Absent names fail with an error
// matching ErrUnknownConfig.
func (r *Registry) Lookup(name string) (models.BuildConfig, error) {
	cfg, ok := r.configs[name]
	if !ok {
		return models.BuildConfig{}, &UnknownConfigError{Name: name}
	}
	return cfg, nil
}

// Names returns the registered configuration names in sorted order.
func (r *Registry) Names() []string {
	return append([]string(nil), r.names...)
}
