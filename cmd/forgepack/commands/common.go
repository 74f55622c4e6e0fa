package commands

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/forgepack/internal/compiler"
	"git.home.luguber.info/inful/forgepack/internal/config"
	ferrors "git.home.luguber.info/inful/forgepack/internal/foundation/errors"
	"git.home.luguber.info/inful/forgepack/internal/logsink"
	"git.home.luguber.info/inful/forgepack/internal/metrics"
	"git.home.luguber.info/inful/forgepack/internal/orchestrator"
)

// Global carries collaborators shared by all commands. Zero fields get production
// defaults; tests inject fakes.
type Global struct {
	Out    io.Writer
	Engine compiler.Engine
	Sink   logsink.Sink
}

// CLI definition & global flags.
type CLI struct {
	Config     string           `short:"c" help:"Project configuration file" default:"forgepack.yaml"`
	ProjectDir string           `short:"C" name:"project-dir" help:"Project directory (defaults to the configuration file's directory)"`
	Verbose    bool             `short:"v" help:"Enable verbose logging"`
	Version    kong.VersionFlag `name:"version" help:"Show version and exit"`

	Package PackageCmd `cmd:"" help:"Compile main and every renderer for packaging"`
	Start   StartCmd   `cmd:"" help:"Compile main and serve every renderer with live reload"`
	Inspect InspectCmd `cmd:"" help:"Print the derived bundler configurations as YAML"`
}

// AfterApply runs after flag parsing; sets up logging until the project file
// says otherwise.
// nolint:unparam // AfterApply currently never returns an error.
func (c *CLI) AfterApply() error {
	level := slog.LevelInfo
	if c.Verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
	return nil
}

// configPath resolves --config against --project-dir.
func (c *CLI) configPath() string {
	if c.ProjectDir != "" && !filepath.IsAbs(c.Config) {
		return filepath.Join(c.ProjectDir, c.Config)
	}
	return c.Config
}

// loadProject reads the project file and installs the configured logger.
func (c *CLI) loadProject() (*config.Config, string, error) {
	cfg, err := config.Load(c.configPath())
	if err != nil {
		return nil, "", err
	}
	level := cfg.Logging.Level.SlogLevel()
	if c.Verbose {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler = slog.NewTextHandler(os.Stderr, opts)
	if cfg.Logging.Format == config.LogFormatJSON {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))

	dir := c.ProjectDir
	if dir == "" {
		dir = cfg.Dir
	}
	return cfg, dir, nil
}

// newSink builds the configured log sink. The NATS sink is paired with the slog
// sink so output stays visible on the console.
func newSink(ctx context.Context, cfg *config.Config, logger *slog.Logger) (logsink.Sink, error) {
	slogSink := logsink.NewSlogSink(logger)
	if cfg.LogSink.Type != config.SinkNATS {
		return slogSink, nil
	}
	var natsSink *logsink.NATSSink
	err := cfg.LogSink.Retry.Policy().Do(ctx, func(attempt int) error {
		if attempt > 0 {
			logger.Warn("Retrying NATS connection", "attempt", attempt, "url", cfg.LogSink.NATSURL)
		}
		s, err := logsink.NewNATSSink(cfg.LogSink.NATSURL, cfg.LogSink.Subject)
		natsSink = s
		return err
	})
	if err != nil {
		return nil, ferrors.NetworkError("log sink unavailable").WithCause(err).
			WithContext("url", cfg.LogSink.NATSURL).Build()
	}
	return logsink.Multi{slogSink, natsSink}, nil
}

// newOrchestrator wires an initialized orchestrator for the project.
func newOrchestrator(ctx context.Context, g *Global, cfg *config.Config, dir string, rec metrics.Recorder) (*orchestrator.Orchestrator, error) {
	logger := slog.Default()
	sink := g.Sink
	if sink == nil {
		s, err := newSink(ctx, cfg, logger)
		if err != nil {
			return nil, err
		}
		sink = s
	}
	o := orchestrator.New(orchestrator.Options{
		MainConfig:      cfg.MainConfig,
		RendererConfig:  cfg.Renderer.Config,
		EntryPoints:     cfg.Renderer.EntryPoints,
		PrefixedEntries: cfg.Renderer.PrefixedEntries,
		BasePort:        cfg.DevServer.BasePort,
		StagingDir:      cfg.StagingDir,
		Engine:          g.Engine,
		Sink:            sink,
		Recorder:        rec,
		Logger:          logger,
		Host:            cfg.DevServer.Host,
	})
	if err := o.Init(dir); err != nil {
		_ = sink.Close()
		return nil, err
	}
	return o, nil
}

func (g *Global) out() io.Writer {
	if g.Out == nil {
		return os.Stdout
	}
	return g.Out
}
