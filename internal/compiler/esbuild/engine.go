// Package esbuild implements compiler.Engine on top of the esbuild Go API.
package esbuild

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/evanw/esbuild/pkg/api"
	"github.com/google/uuid"

	"git.home.luguber.info/inful/forgepack/internal/compiler"
	ferrors "git.home.luguber.info/inful/forgepack/internal/foundation/errors"
	"git.home.luguber.info/inful/forgepack/internal/htmlgen"
	"git.home.luguber.info/inful/forgepack/internal/target"
)

// Engine compiles target configurations with esbuild. Relative entries and templates
// resolve against ProjectDir.
type Engine struct {
	ProjectDir string
}

// New returns an Engine anchored at projectDir.
func New(projectDir string) *Engine {
	if abs, err := filepath.Abs(projectDir); err == nil {
		projectDir = abs
	}
	return &Engine{ProjectDir: projectDir}
}

var _ compiler.Engine = (*Engine)(nil)

// Build implements compiler.Engine.
func (e *Engine) Build(ctx context.Context, cfg target.Config) (*compiler.Report, error) {
	opts, err := e.Options(cfg)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start := time.Now()
	res := api.Build(opts)
	return e.report(cfg, res, time.Since(start)), nil
}

// Session implements compiler.Engine.
func (e *Engine) Session(cfg target.Config) (compiler.Session, error) {
	opts, err := e.Options(cfg)
	if err != nil {
		return nil, err
	}
	bctx, cerr := api.Context(opts)
	if cerr != nil {
		return nil, ferrors.CompileError("cannot create esbuild context").
			WithContext("target", cfg.Name()).
			WithContext("diagnostics", formatLog(cerr.Errors, api.ErrorMessage)).
			Build()
	}
	return &session{engine: e, cfg: cfg.Clone(), ctx: bctx}, nil
}

type session struct {
	engine *Engine
	cfg    target.Config
	ctx    api.BuildContext
}

func (s *session) Rebuild(ctx context.Context) (*compiler.Report, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start := time.Now()
	res := s.ctx.Rebuild()
	return s.engine.report(s.cfg, res, time.Since(start)), nil
}

func (s *session) Close() error {
	s.ctx.Dispose()
	return nil
}

// Options translates cfg into esbuild build options.
func (e *Engine) Options(cfg target.Config) (api.BuildOptions, error) {
	entries := cfg.Entries()
	if len(entries) == 0 {
		return api.BuildOptions{}, ferrors.MissingEntryError("target has no entry").
			WithContext("target", cfg.Name()).
			WithContext("option", target.KeyEntry).
			Build()
	}
	outDir := cfg.OutputPath()
	if outDir == "" {
		return api.BuildOptions{}, ferrors.ValidationError("target has no output path").
			WithContext("target", cfg.Name()).
			WithContext("option", "output.path").
			Build()
	}
	filename := cfg.OutputFilename()
	if filename == "" {
		filename = "index.js"
	}

	opts := api.BuildOptions{
		Stdin: &api.StdinOptions{
			Contents:   entryModule(entries),
			ResolveDir: e.ProjectDir,
			Sourcefile: cfg.Name() + ".entry.js",
			Loader:     api.LoaderJS,
		},
		AbsWorkingDir: e.ProjectDir,
		Outfile:       filepath.Join(outDir, filename),
		Bundle:        true,
		Write:         true,
		Metafile:      true,
		LogLevel:      api.LogLevelSilent,
		NodePaths:     e.absPaths(cfg.ResolveModules()),
		External:      cfg.Externals(),
		Sourcemap:     sourceMap(cfg.Devtool()),
		Plugins:       []api.Plugin{liveReloadPlugin()},
	}

	if cfg.Kind() == target.KindMain {
		opts.Platform = api.PlatformNode
		opts.Format = api.FormatCommonJS
		if !contains(opts.External, "electron") {
			opts.External = append(opts.External, "electron")
		}
	} else {
		opts.Platform = api.PlatformBrowser
		opts.Format = api.FormatIIFE
	}

	if cfg.Minify() {
		opts.MinifyWhitespace = true
		opts.MinifyIdentifiers = true
		opts.MinifySyntax = true
	}
	if cfg.Mode().IsProduction() {
		opts.Define = map[string]string{"process.env.NODE_ENV": `"production"`}
	} else {
		opts.Define = map[string]string{"process.env.NODE_ENV": `"development"`}
	}

	define, banner := splitDefines(cfg.Defines())
	for k, v := range define {
		opts.Define[k] = v
	}
	if banner != "" {
		opts.Banner = map[string]string{"js": banner}
	}

	loaders, err := loaderMap(cfg.Loaders())
	if err != nil {
		return api.BuildOptions{}, ferrors.WrapError(err, ferrors.CategoryValidation, "unknown loader").
			WithContext("target", cfg.Name()).
			WithContext("option", target.KeyLoader).
			Build()
	}
	if len(loaders) > 0 {
		opts.Loader = loaders
	}
	return opts, nil
}

func entryModule(entries []string) string {
	var b strings.Builder
	for _, entry := range entries {
		q, _ := json.Marshal(entry)
		b.WriteString("import ")
		b.Write(q)
		b.WriteString(";\n")
	}
	return b.String()
}

func sourceMap(devtool string) api.SourceMap {
	switch {
	case devtool == "":
		return api.SourceMapNone
	case strings.Contains(devtool, "inline"):
		return api.SourceMapInline
	case strings.Contains(devtool, "hidden"):
		return api.SourceMapExternal
	case strings.Contains(devtool, "source-map"):
		return api.SourceMapLinked
	}
	return api.SourceMapNone
}

var identChain = regexp.MustCompile(`^[A-Za-z_$][A-Za-z0-9_$]*(\.[A-Za-z_$][A-Za-z0-9_$]*)*$`)

// splitDefines separates defines esbuild accepts verbatim (JSON values and
// identifier chains) from arbitrary expressions, which are bound to generated
// constants in a banner.
func splitDefines(defines map[string]string) (map[string]string, string) {
	keys := make([]string, 0, len(defines))
	for k := range defines {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	direct := make(map[string]string, len(defines))
	var banner strings.Builder
	n := 0
	for _, k := range keys {
		v := strings.TrimSpace(defines[k])
		if v == "" {
			continue
		}
		if json.Valid([]byte(v)) || identChain.MatchString(v) {
			direct[k] = v
			continue
		}
		name := fmt.Sprintf("__forgepack_define_%d", n)
		n++
		fmt.Fprintf(&banner, "const %s = %s;\n", name, v)
		direct[k] = name
	}
	return direct, strings.TrimSuffix(banner.String(), "\n")
}

var loaders = map[string]api.Loader{
	"js":      api.LoaderJS,
	"jsx":     api.LoaderJSX,
	"ts":      api.LoaderTS,
	"tsx":     api.LoaderTSX,
	"json":    api.LoaderJSON,
	"css":     api.LoaderCSS,
	"text":    api.LoaderText,
	"base64":  api.LoaderBase64,
	"dataurl": api.LoaderDataURL,
	"file":    api.LoaderFile,
	"binary":  api.LoaderBinary,
	"copy":    api.LoaderCopy,
	"empty":   api.LoaderEmpty,
}

func loaderMap(in map[string]string) (map[string]api.Loader, error) {
	out := make(map[string]api.Loader, len(in))
	for ext, name := range in {
		l, ok := loaders[strings.ToLower(strings.TrimSpace(name))]
		if !ok {
			return nil, fmt.Errorf("loader %q for %q", name, ext)
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		out[ext] = l
	}
	return out, nil
}

func (e *Engine) absPaths(paths []string) []string {
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		if !filepath.IsAbs(p) {
			p = filepath.Join(e.ProjectDir, p)
		}
		if !contains(out, p) {
			out = append(out, p)
		}
	}
	return out
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// report converts an esbuild result and, on success, runs the HTML step.
func (e *Engine) report(cfg target.Config, res api.BuildResult, d time.Duration) *compiler.Report {
	rep := &compiler.Report{
		ID:        uuid.NewString(),
		Target:    cfg.Name(),
		Succeeded: len(res.Errors) == 0,
		Duration:  d,
	}
	rep.Inputs, rep.Outputs = parseMetafile(res.Metafile, e.ProjectDir)

	var log []string
	if s := formatLog(res.Errors, api.ErrorMessage); s != "" {
		log = append(log, s)
	}
	if s := formatLog(res.Warnings, api.WarningMessage); s != "" {
		log = append(log, s)
	}

	if rep.Succeeded {
		if tpl, name, ok := cfg.HTMLTemplate(); ok {
			if !filepath.IsAbs(tpl) {
				tpl = filepath.Join(e.ProjectDir, tpl)
			}
			out := filepath.Join(cfg.OutputPath(), name)
			script := cfg.OutputFilename()
			if script == "" {
				script = "index.js"
			}
			if err := htmlgen.Render(tpl, out, []string{script}); err != nil {
				rep.Succeeded = false
				log = append(log, err.Error())
			} else {
				rep.Outputs = append(rep.Outputs, out)
				rep.Inputs = append(rep.Inputs, tpl)
			}
		}
	}
	for _, o := range rep.Outputs {
		log = append(log, "emitted "+o)
	}
	if rep.Succeeded {
		log = append(log, fmt.Sprintf("%s compiled in %s", rep.Target, d.Round(time.Millisecond)))
	}
	rep.Log = strings.Join(log, "\n")
	return rep
}

func formatLog(msgs []api.Message, kind api.MessageKind) string {
	if len(msgs) == 0 {
		return ""
	}
	lines := api.FormatMessages(msgs, api.FormatMessagesOptions{Kind: kind})
	return strings.TrimRight(strings.Join(lines, ""), "\n")
}

type metafile struct {
	Inputs  map[string]json.RawMessage `json:"inputs"`
	Outputs map[string]json.RawMessage `json:"outputs"`
}

// parseMetafile returns the absolute on-disk inputs and outputs recorded by esbuild.
// Virtual modules (stdin, plugin namespaces) are skipped.
func parseMetafile(raw, root string) (inputs, outputs []string) {
	if raw == "" {
		return nil, nil
	}
	var m metafile
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return nil, nil
	}
	abs := func(p string) string {
		if filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(root, p)
	}
	for p := range m.Inputs {
		if p == "<stdin>" || strings.Contains(p, ":") {
			continue
		}
		inputs = append(inputs, abs(p))
	}
	for p := range m.Outputs {
		outputs = append(outputs, abs(p))
	}
	sort.Strings(inputs)
	sort.Strings(outputs)
	return inputs, outputs
}
