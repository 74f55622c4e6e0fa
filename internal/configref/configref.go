// Package configref resolves caller configuration values that are either inline
// mappings or references to external definition files, and normalizes them
// against built-in defaults with smart-merge semantics.
package configref

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	ferrors "git.home.luguber.info/inful/forgepack/internal/foundation/errors"
	"git.home.luguber.info/inful/forgepack/internal/merge"
)

// Loader turns a configuration reference into a configuration mapping.
type Loader interface {
	Load(ref string) (map[string]any, error)
}

// FileLoader reads references from disk, anchored at Root rather than the process
// working directory.
type FileLoader struct {
	Root string
}

// Path returns the absolute location ref resolves to.
func (l FileLoader) Path(ref string) string {
	if filepath.IsAbs(ref) {
		return filepath.Clean(ref)
	}
	return filepath.Join(l.Root, ref)
}

// Load decodes the referenced file by extension: YAML and JSON via yaml.v3, TOML via
// BurntSushi/toml. Environment variables in the file are expanded before decoding.
func (l FileLoader) Load(ref string) (map[string]any, error) {
	path := l.Path(ref)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, resolutionError(ref, path, "configuration reference cannot be read", err)
	}
	expanded := os.ExpandEnv(string(data))

	out := map[string]any{}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml", ".json":
		var doc any
		if err := yaml.Unmarshal([]byte(expanded), &doc); err != nil {
			return nil, resolutionError(ref, path, "configuration reference cannot be parsed", err)
		}
		if doc == nil {
			return out, nil
		}
		m, ok := doc.(map[string]any)
		if !ok {
			return nil, resolutionError(ref, path, "configuration reference is not a mapping", fmt.Errorf("got %T", doc))
		}
		out = m
	case ".toml":
		if err := toml.Unmarshal([]byte(expanded), &out); err != nil {
			return nil, resolutionError(ref, path, "configuration reference cannot be parsed", err)
		}
	default:
		return nil, resolutionError(ref, path, "unsupported configuration reference type", fmt.Errorf("extension %q", filepath.Ext(path)))
	}
	return out, nil
}

// MapLoader serves references from memory. Used by tests and embedding hosts.
type MapLoader map[string]map[string]any

// Load returns a deep copy of the registered mapping.
func (l MapLoader) Load(ref string) (map[string]any, error) {
	m, ok := l[ref]
	if !ok {
		return nil, resolutionError(ref, ref, "configuration reference not found", os.ErrNotExist)
	}
	return merge.CloneMap(m), nil
}

// Resolver resolves raw caller configuration values.
type Resolver struct {
	Loader Loader
}

// Resolve accepts nil, an inline mapping, or a string reference and returns the
// smart merge of defaults and the resolved value. The caller value wins scalar
// conflicts. Neither input is mutated.
func (r Resolver) Resolve(raw any, defaults map[string]any) (map[string]any, error) {
	resolved, err := r.resolveRaw(raw)
	if err != nil {
		return nil, err
	}
	return merge.Smart(defaults, resolved), nil
}

func (r Resolver) resolveRaw(raw any) (map[string]any, error) {
	switch v := raw.(type) {
	case nil:
		return map[string]any{}, nil
	case map[string]any:
		return merge.CloneMap(v), nil
	case string:
		if strings.TrimSpace(v) == "" {
			return map[string]any{}, nil
		}
		if r.Loader == nil {
			return nil, ferrors.ConfigResolutionError("no configuration loader available").
				WithContext("reference", v).Build()
		}
		return r.Loader.Load(v)
	default:
		if m, ok := merge.Clone(raw).(map[string]any); ok {
			return m, nil
		}
		return nil, ferrors.ConfigResolutionError("configuration must be a mapping or a path reference").
			WithContext("type", fmt.Sprintf("%T", raw)).Build()
	}
}

func resolutionError(ref, path, msg string, cause error) error {
	return ferrors.ConfigResolutionError(msg).
		WithCause(cause).
		WithContext("reference", ref).
		WithContext("path", path).
		Build()
}
