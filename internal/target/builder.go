package target

import (
	"path/filepath"
	"strings"

	"git.home.luguber.info/inful/forgepack/internal/configref"
	ferrors "git.home.luguber.info/inful/forgepack/internal/foundation/errors"
	"git.home.luguber.info/inful/forgepack/internal/merge"
)

// DefaultStagingDir is the build staging directory relative to the project root.
const DefaultStagingDir = ".webpack"

// BuilderOptions carries the caller configuration every derivation reads.
type BuilderOptions struct {
	ProjectDir      string
	StagingDir      string // relative to ProjectDir unless absolute
	BasePort        int
	MainConfig      any // inline mapping or reference
	RendererConfig  any // inline mapping or reference
	EntryPoints     any // raw renderer.entryPoints
	PrefixedEntries []string
	Resolver        configref.Resolver
}

// Builder derives per-target configurations. Every call re-derives its result from
// the mode argument and the immutable options.
type Builder struct {
	opts BuilderOptions
}

// NewBuilder returns a Builder. A zero Resolver gets a FileLoader anchored at ProjectDir.
func NewBuilder(opts BuilderOptions) *Builder {
	if opts.StagingDir == "" {
		opts.StagingDir = DefaultStagingDir
	}
	if opts.BasePort <= 0 {
		opts.BasePort = DefaultBasePort
	}
	if opts.Resolver.Loader == nil {
		opts.Resolver.Loader = configref.FileLoader{Root: opts.ProjectDir}
	}
	opts.PrefixedEntries = append([]string(nil), opts.PrefixedEntries...)
	return &Builder{opts: opts}
}

// BasePort returns the port of the first renderer entry point.
func (b *Builder) BasePort() int { return b.opts.BasePort }

// StagingRoot returns the absolute staging directory.
func (b *Builder) StagingRoot() string {
	if filepath.IsAbs(b.opts.StagingDir) {
		return b.opts.StagingDir
	}
	return filepath.Join(b.opts.ProjectDir, b.opts.StagingDir)
}

// MainOutputDir returns the main bundle output directory.
func (b *Builder) MainOutputDir() string {
	return filepath.Join(b.StagingRoot(), "main")
}

// RendererOutputDir returns the output directory of the named entry point.
func (b *Builder) RendererOutputDir(name string) string {
	return filepath.Join(b.StagingRoot(), "renderer", name)
}

// EntryPoints returns the validated renderer entry points in declaration order.
func (b *Builder) EntryPoints() ([]EntryPoint, error) {
	return ParseEntryPoints(b.opts.EntryPoints)
}

// Addresses computes the resolution address of every entry point for mode.
func (b *Builder) Addresses(mode Mode) ([]ResolutionAddress, error) {
	entries, err := b.EntryPoints()
	if err != nil {
		return nil, err
	}
	out := make([]ResolutionAddress, len(entries))
	for i, e := range entries {
		out[i] = AddressFor(mode, e, i, b.opts.BasePort)
	}
	return out, nil
}

// BuildMain derives the main-process target configuration.
func (b *Builder) BuildMain(mode Mode) (Config, error) {
	caller, err := b.opts.Resolver.Resolve(b.opts.MainConfig, nil)
	if err != nil {
		return nil, err
	}
	if len(stringList(caller[KeyEntry])) == 0 {
		return nil, ferrors.MissingEntryError("main configuration must declare at least one entry").
			WithContext("option", "mainConfig.entry").
			Build()
	}
	addrs, err := b.Addresses(mode)
	if err != nil {
		return nil, err
	}

	defines := make(map[string]any, len(addrs))
	for _, a := range addrs {
		defines[DefineName(a.EntryName)] = a.Expr
	}

	base := map[string]any{
		KeyName:   "main",
		KeyMode:   string(mode),
		KeyTarget: KindMain,
		KeyOutput: map[string]any{
			"path":     b.MainOutputDir(),
			"filename": "index.js",
		},
		KeyResolve: map[string]any{
			"modules": []any{filepath.Join(b.opts.ProjectDir, "node_modules"), "node_modules"},
		},
		KeyDevtool: "source-map",
		KeyDefine:  defines,
		KeyNode: map[string]any{
			"__dirname":  false,
			"__filename": false,
		},
		KeyMinify: mode.IsProduction(),
	}
	out := merge.Smart(base, caller)
	out[KeyName] = "main"
	return Config(out), nil
}

// BuildRenderer derives the configuration of one renderer entry point.
func (b *Builder) BuildRenderer(mode Mode, entry EntryPoint) (Config, error) {
	caller, err := b.opts.Resolver.Resolve(b.opts.RendererConfig, nil)
	if err != nil {
		return nil, err
	}

	entries := make([]any, 0, len(b.opts.PrefixedEntries)+2)
	for _, p := range b.opts.PrefixedEntries {
		if strings.TrimSpace(p) != "" {
			entries = append(entries, p)
		}
	}
	if !mode.IsProduction() {
		entries = append(entries, LiveReloadClientEntry)
	}
	entries = append(entries, entry.JS)

	base := map[string]any{
		KeyName:    entry.Name,
		KeyMode:    string(mode),
		KeyTarget:  KindRenderer,
		KeyDevtool: "inline-source-map",
		KeyOutput: map[string]any{
			"path":     b.RendererOutputDir(entry.Name),
			"filename": "index.js",
		},
		KeyEntry: entries,
		KeyHTML: map[string]any{
			"template": entry.HTML,
			"filename": "index.html",
		},
		KeyMinify: mode.IsProduction(),
	}
	out := merge.Smart(base, caller)
	// The entry name identifies the target's channel and output directory.
	out[KeyName] = entry.Name
	return Config(out), nil
}
