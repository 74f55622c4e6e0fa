// Package orchestrator drives the build: it selects the mode once per run, compiles
// the main target before any renderer work and either packages every renderer in
// declaration order or hands the renderers to the dev server manager.
package orchestrator

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"

	"git.home.luguber.info/inful/forgepack/internal/compiler"
	"git.home.luguber.info/inful/forgepack/internal/compiler/esbuild"
	"git.home.luguber.info/inful/forgepack/internal/configref"
	"git.home.luguber.info/inful/forgepack/internal/devserver"
	ferrors "git.home.luguber.info/inful/forgepack/internal/foundation/errors"
	"git.home.luguber.info/inful/forgepack/internal/logfields"
	"git.home.luguber.info/inful/forgepack/internal/logsink"
	"git.home.luguber.info/inful/forgepack/internal/metrics"
	"git.home.luguber.info/inful/forgepack/internal/target"
)

// MainChannel is the log channel of the main target.
const MainChannel = "main"

// Options is the caller configuration plus injected collaborators. Only the
// configuration fields are required; collaborators default to the esbuild engine, a
// file loader anchored at the project directory, an slog sink and no metrics.
type Options struct {
	MainConfig      any
	RendererConfig  any
	EntryPoints     any
	PrefixedEntries []string
	BasePort        int
	StagingDir      string

	Engine   compiler.Engine
	Loader   configref.Loader
	Sink     logsink.Sink
	Recorder metrics.Recorder
	Logger   *slog.Logger
	// Host is the interface dev servers bind on.
	Host string
}

// Orchestrator implements the host extension points.
type Orchestrator struct {
	opts Options

	mu         sync.Mutex
	projectDir string
	state      State
	runner     *compiler.Runner
	manager    *devserver.Manager
	launches   []devserver.LaunchResult
	shutdown   bool
}

// New returns an idle Orchestrator.
func New(opts Options) *Orchestrator {
	if opts.Recorder == nil {
		opts.Recorder = metrics.NoopRecorder{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Sink == nil {
		opts.Sink = logsink.NewSlogSink(opts.Logger)
	}
	return &Orchestrator{opts: opts}
}

// Init records the project directory every relative path is anchored on. It must
// precede the other hooks.
func (o *Orchestrator) Init(projectDir string) error {
	abs, err := filepath.Abs(projectDir)
	if err != nil {
		return ferrors.FileSystemError("cannot resolve project directory").
			WithCause(err).WithContext("path", projectDir).Build()
	}
	fi, err := os.Stat(abs)
	if err != nil || !fi.IsDir() {
		return ferrors.FileSystemError("project directory not found").
			WithCause(err).WithContext("path", abs).Build()
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state != StateIdle {
		return ferrors.RuntimeError("cannot initialize after a build mode was selected").
			WithContext("state", o.state.String()).Build()
	}
	o.projectDir = abs
	engine := o.opts.Engine
	if engine == nil {
		engine = esbuild.New(abs)
	}
	o.runner = compiler.NewRunner(engine,
		compiler.WithRecorder(o.opts.Recorder),
		compiler.WithLogger(o.opts.Logger))
	return nil
}

// ProjectDir returns the directory recorded by Init.
func (o *Orchestrator) ProjectDir() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.projectDir
}

// State returns the current lifecycle state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Builder returns a target builder over the caller configuration.
func (o *Orchestrator) Builder() (*target.Builder, error) {
	o.mu.Lock()
	dir := o.projectDir
	o.mu.Unlock()
	if dir == "" {
		return nil, errNotInitialized()
	}
	return o.builder(dir), nil
}

func (o *Orchestrator) builder(dir string) *target.Builder {
	loader := o.opts.Loader
	if loader == nil {
		loader = configref.FileLoader{Root: dir}
	}
	return target.NewBuilder(target.BuilderOptions{
		ProjectDir:      dir,
		StagingDir:      o.opts.StagingDir,
		BasePort:        o.opts.BasePort,
		MainConfig:      o.opts.MainConfig,
		RendererConfig:  o.opts.RendererConfig,
		EntryPoints:     o.opts.EntryPoints,
		PrefixedEntries: o.opts.PrefixedEntries,
		Resolver:        configref.Resolver{Loader: loader},
	})
}

func errNotInitialized() error {
	return ferrors.RuntimeError("orchestrator used before Init").Build()
}

// selectMode moves Idle to the mode's state. The selection is irreversible.
func (o *Orchestrator) selectMode(mode target.Mode) (*target.Builder, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.projectDir == "" {
		return nil, errNotInitialized()
	}
	if o.state != StateIdle {
		return nil, ferrors.RuntimeError("build mode already selected").
			WithContext("state", o.state.String()).
			WithContext("requested", mode.String()).
			Build()
	}
	if mode.IsProduction() {
		o.state = StateProduction
	} else {
		o.state = StateDevelopment
	}
	return o.builder(o.projectDir), nil
}

func (o *Orchestrator) terminate() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.state = StateTerminated
}

// PrePackage runs the production pipeline: main, then each renderer in declaration
// order, one at a time. The first failure aborts the run.
func (o *Orchestrator) PrePackage(ctx context.Context) error {
	b, err := o.selectMode(target.Production)
	if err != nil {
		return err
	}
	defer o.terminate()
	logger := o.runLogger(target.Production)
	logger.Info("Packaging started")

	err = o.production(ctx, b, logger)
	o.opts.Recorder.IncPipelineOutcome(target.Production.String(), outcome(err))
	if err != nil {
		logger.Error("Packaging failed", logfields.Error(err))
		return err
	}
	logger.Info("Packaging finished")
	return nil
}

func (o *Orchestrator) production(ctx context.Context, b *target.Builder, logger *slog.Logger) error {
	mainCfg, renderers, err := derive(b, target.Production)
	if err != nil {
		return err
	}
	if err := o.compile(ctx, MainChannel, mainCfg, logger); err != nil {
		return err
	}
	for _, r := range renderers {
		if err := o.compile(ctx, r.entry.Name, r.cfg, logger); err != nil {
			return err
		}
	}
	return nil
}

// Start runs the development pipeline: main once (fatal on failure), then every dev
// server, then the log sink. It always reports false: the host must not run its own
// default launch.
func (o *Orchestrator) Start(ctx context.Context) (launchDefault bool, err error) {
	b, err := o.selectMode(target.Development)
	if err != nil {
		return false, err
	}
	logger := o.runLogger(target.Development)
	logger.Info("Development session starting")

	err = o.development(ctx, b, logger)
	o.opts.Recorder.IncPipelineOutcome(target.Development.String(), outcome(err))
	if err != nil {
		logger.Error("Development session failed to start", logfields.Error(err))
		_ = o.Shutdown(context.Background())
		return false, err
	}
	return false, nil
}

func (o *Orchestrator) development(ctx context.Context, b *target.Builder, logger *slog.Logger) error {
	mainCfg, _, err := derive(b, target.Development)
	if err != nil {
		return err
	}
	if err := o.compile(ctx, MainChannel, mainCfg, logger); err != nil {
		return err
	}

	o.mu.Lock()
	if o.shutdown {
		o.mu.Unlock()
		return ferrors.RuntimeError("orchestrator shut down during startup").Build()
	}
	o.manager = devserver.NewManager(devserver.Options{
		Builder:  b,
		Runner:   o.runner,
		Sink:     o.opts.Sink,
		Recorder: o.opts.Recorder,
		Logger:   logger,
		Host:     o.opts.Host,
	})
	manager := o.manager
	o.mu.Unlock()

	results, err := manager.Launch(ctx)
	if err != nil {
		return err
	}
	for _, r := range results {
		if r.Err != nil {
			logger.Warn("Dev server unavailable", logfields.EntryPoint(r.Entry.Name), logfields.Port(r.Port), logfields.Error(r.Err))
			continue
		}
		logger.Info("Dev server ready", logfields.EntryPoint(r.Entry.Name), "url", r.URL)
	}
	o.mu.Lock()
	o.launches = results
	o.mu.Unlock()

	return o.opts.Sink.Start(ctx)
}

// Launches returns the results of the last dev server launch.
func (o *Orchestrator) Launches() []devserver.LaunchResult {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]devserver.LaunchResult(nil), o.launches...)
}

// Shutdown tears down every dev server and closes the log sink. It is safe in any
// state and idempotent; afterwards no mode can be selected.
func (o *Orchestrator) Shutdown(ctx context.Context) error {
	o.mu.Lock()
	if o.shutdown {
		o.mu.Unlock()
		return nil
	}
	o.shutdown = true
	o.state = StateTerminated
	manager := o.manager
	o.mu.Unlock()

	var errs []error
	if manager != nil {
		errs = append(errs, manager.Shutdown(ctx))
	}
	errs = append(errs, o.opts.Sink.Close())
	return errors.Join(errs...)
}

// compile runs one target and routes its output to the target's channel.
func (o *Orchestrator) compile(ctx context.Context, channel string, cfg target.Config, logger *slog.Logger) error {
	ch := o.opts.Sink.CreateChannel(channel)
	logger.Debug("Compiling target", logfields.Target(cfg.Name()))
	report, err := o.runner.Compile(ctx, cfg)
	if err != nil {
		ch.Write(compiler.Diagnostics(err))
		return err
	}
	ch.Write(report.Log)
	return nil
}

// renderer pairs a derived configuration with the entry point it was built for.
type renderer struct {
	entry target.EntryPoint
	cfg   target.Config
}

// derive produces every target configuration of a run up front, so configuration
// and entry-point errors surface before the first compile.
func derive(b *target.Builder, mode target.Mode) (target.Config, []renderer, error) {
	mainCfg, err := b.BuildMain(mode)
	if err != nil {
		return nil, nil, err
	}
	entries, err := b.EntryPoints()
	if err != nil {
		return nil, nil, err
	}
	renderers := make([]renderer, 0, len(entries))
	for _, e := range entries {
		cfg, err := b.BuildRenderer(mode, e)
		if err != nil {
			return nil, nil, err
		}
		renderers = append(renderers, renderer{entry: e, cfg: cfg})
	}
	return mainCfg, renderers, nil
}

func (o *Orchestrator) runLogger(mode target.Mode) *slog.Logger {
	return o.opts.Logger.With(logfields.RunID(uuid.NewString()), logfields.Mode(mode.String()))
}

func outcome(err error) string {
	if err != nil {
		return "failed"
	}
	return "success"
}
