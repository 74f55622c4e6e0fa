package target

import (
	"git.home.luguber.info/inful/forgepack/internal/merge"
)

// Config is the configuration tree a compiler engine consumes for one target.
// Values are produced fresh per derivation and never mutated afterwards.
type Config map[string]any

// Recognized configuration keys.
const (
	KeyName     = "name"
	KeyMode     = "mode"
	KeyTarget   = "target"
	KeyEntry    = "entry"
	KeyOutput   = "output"
	KeyDevtool  = "devtool"
	KeyResolve  = "resolve"
	KeyDefine   = "define"
	KeyNode     = "node"
	KeyHTML     = "html"
	KeyExternal = "external"
	KeyLoader   = "loader"
	KeyMinify   = "minify"
)

// Target kinds.
const (
	KindMain     = "electron-main"
	KindRenderer = "electron-renderer"
)

// LiveReloadClientEntry is the entry placeholder engines replace with the
// live-update client in development renderer bundles.
const LiveReloadClientEntry = "forgepack:livereload-client"

// Clone deep-copies the configuration.
func (c Config) Clone() Config {
	return Config(merge.CloneMap(map[string]any(c)))
}

// Name returns the target name.
func (c Config) Name() string { return c.str(KeyName) }

// Kind returns the target kind (KindMain or KindRenderer).
func (c Config) Kind() string { return c.str(KeyTarget) }

// Mode returns the mode the configuration was derived for.
func (c Config) Mode() Mode { return Mode(c.str(KeyMode)) }

// Devtool returns the source map style.
func (c Config) Devtool() string { return c.str(KeyDevtool) }

// Minify reports whether output should be minified.
func (c Config) Minify() bool {
	b, _ := c[KeyMinify].(bool)
	return b
}

// Entries returns the entry list; a single string entry is returned as a one-element list.
func (c Config) Entries() []string {
	return stringList(c[KeyEntry])
}

// OutputPath returns output.path.
func (c Config) OutputPath() string { return c.section(KeyOutput).str("path") }

// OutputFilename returns output.filename.
func (c Config) OutputFilename() string { return c.section(KeyOutput).str("filename") }

// ResolveModules returns resolve.modules.
func (c Config) ResolveModules() []string {
	return stringList(c.section(KeyResolve)["modules"])
}

// Externals returns module names left out of the bundle.
func (c Config) Externals() []string { return stringList(c[KeyExternal]) }

// Defines returns the constant name to JavaScript expression mapping.
func (c Config) Defines() map[string]string {
	return stringMap(c[KeyDefine])
}

// Loaders returns the file extension to loader name mapping.
func (c Config) Loaders() map[string]string {
	return stringMap(c[KeyLoader])
}

// NodeGlobal reports whether the node.<name> polyfill flag is set; false means the
// bundle sees its real runtime value.
func (c Config) NodeGlobal(name string) bool {
	b, _ := c.section(KeyNode)[name].(bool)
	return b
}

// HTMLTemplate returns html.template and html.filename; ok is false when the target
// has no HTML step.
func (c Config) HTMLTemplate() (template, filename string, ok bool) {
	h := c.section(KeyHTML)
	template = h.str("template")
	if template == "" {
		return "", "", false
	}
	filename = h.str("filename")
	if filename == "" {
		filename = "index.html"
	}
	return template, filename, true
}

func (c Config) str(key string) string {
	s, _ := c[key].(string)
	return s
}

func (c Config) section(key string) Config {
	switch v := c[key].(type) {
	case map[string]any:
		return Config(v)
	case Config:
		return v
	}
	return Config{}
}

func stringList(v any) []string {
	switch t := v.(type) {
	case string:
		if t == "" {
			return nil
		}
		return []string{t}
	case []string:
		return append([]string(nil), t...)
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			if s, ok := item.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

func stringMap(v any) map[string]string {
	m, ok := v.(map[string]any)
	if !ok {
		return map[string]string{}
	}
	out := make(map[string]string, len(m))
	for k, val := range m {
		if s, ok := val.(string); ok {
			out[k] = s
		}
	}
	return out
}
