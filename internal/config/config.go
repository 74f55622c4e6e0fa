// Package config loads the forgepack project file.
package config

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	ferrors "git.home.luguber.info/inful/forgepack/internal/foundation/errors"
	"git.home.luguber.info/inful/forgepack/internal/retry"
)

// DefaultFile is the project file name looked up when none is given.
const DefaultFile = "forgepack.yaml"

// Config is the project file.
type Config struct {
	// MainConfig is an inline mapping or a path reference to the main-process
	// bundler configuration.
	MainConfig any             `yaml:"mainConfig"`
	Renderer   RendererConfig  `yaml:"renderer"`
	DevServer  DevServerConfig `yaml:"devServer"`
	// StagingDir is where bundles are emitted, relative to the project directory.
	StagingDir string        `yaml:"stagingDir,omitempty"`
	Logging    LoggingConfig `yaml:"logging"`
	LogSink    LogSinkConfig `yaml:"logSink"`

	// Dir is the directory the file was loaded from.
	Dir string `yaml:"-"`
}

// RendererConfig describes the renderer targets.
type RendererConfig struct {
	// EntryPoints stays raw here; it is validated when targets are derived.
	EntryPoints     any      `yaml:"entryPoints"`
	Config          any      `yaml:"config"`
	PrefixedEntries []string `yaml:"prefixedEntries,omitempty"`
}

// DevServerConfig configures the development servers.
type DevServerConfig struct {
	BasePort int    `yaml:"basePort"`
	Host     string `yaml:"host,omitempty"`
}

// LoggingConfig configures the process logger.
type LoggingConfig struct {
	Level  LogLevel  `yaml:"level"`
	Format LogFormat `yaml:"format"`
}

// LogSinkConfig selects where compiler output goes.
type LogSinkConfig struct {
	Type    SinkType `yaml:"type"`
	NATSURL string   `yaml:"natsURL,omitempty"`
	Subject string   `yaml:"subject,omitempty"`
	// Retry governs connection attempts to the NATS server.
	Retry RetryConfig `yaml:"retry"`
}

// RetryConfig mirrors retry.Policy.
type RetryConfig struct {
	Backoff    retry.BackoffMode `yaml:"backoff"`
	Initial    time.Duration     `yaml:"initial"`
	Max        time.Duration     `yaml:"max"`
	MaxRetries int               `yaml:"maxRetries"`
}

// Policy returns the retry policy described by r.
func (r RetryConfig) Policy() retry.Policy {
	return retry.NewPolicy(r.Backoff, r.Initial, r.Max, r.MaxRetries)
}

// Load reads the project file at path. .env and .env.local next to it are loaded
// first without overriding the environment; ${VAR} references in the file are
// expanded before decoding. Unknown keys are rejected.
func Load(path string) (*Config, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, ferrors.ConfigResolutionError("cannot resolve configuration path").
			WithCause(err).WithContext("path", path).Build()
	}
	dir := filepath.Dir(abs)
	loadEnvFiles(dir)

	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, ferrors.ConfigResolutionError("configuration file cannot be read").
			WithCause(err).WithContext("path", abs).Build()
	}
	cfg, err := Parse([]byte(os.ExpandEnv(string(data))))
	if err != nil {
		if c, ok := ferrors.AsClassified(err); ok {
			return nil, c.WithContext("path", abs)
		}
		return nil, err
	}
	cfg.Dir = dir
	return cfg, nil
}

// Parse decodes, normalizes, defaults and validates a project document.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, ferrors.ConfigResolutionError("configuration file cannot be parsed").
			WithCause(err).Build()
	}
	normalize(&cfg)
	if err := applyDefaults(&cfg); err != nil {
		return nil, err
	}
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
