package devserver

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"git.home.luguber.info/inful/forgepack/internal/compiler"
	ferrors "git.home.luguber.info/inful/forgepack/internal/foundation/errors"
	"git.home.luguber.info/inful/forgepack/internal/logfields"
	"git.home.luguber.info/inful/forgepack/internal/logsink"
	"git.home.luguber.info/inful/forgepack/internal/metrics"
	"git.home.luguber.info/inful/forgepack/internal/target"
)

// Options configures a Manager.
type Options struct {
	Builder  *target.Builder
	Runner   *compiler.Runner
	Sink     logsink.Sink
	Recorder metrics.Recorder
	Logger   *slog.Logger
	// Host is the interface servers bind on; defaults to localhost.
	Host     string
	Debounce time.Duration
}

// LaunchResult is the independent outcome of one entry point's launch.
type LaunchResult struct {
	Entry  target.EntryPoint
	Port   int
	URL    string
	Server *Server
	Err    error
}

// Manager launches and tears down the dev servers of all renderer entry points.
type Manager struct {
	opts Options

	mu      sync.Mutex
	servers []*Server
	closed  bool
	stop    func() bool
}

// NewManager returns a Manager.
func NewManager(opts Options) *Manager {
	if opts.Recorder == nil {
		opts.Recorder = metrics.NoopRecorder{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Manager{opts: opts}
}

// Launch starts one server per entry point concurrently. Every entry gets a result;
// a failing entry never prevents its siblings from serving. The returned error is
// reserved for failures that affect every entry (invalid entry points, a closed
// manager). Cancelling ctx shuts every server down.
func (m *Manager) Launch(ctx context.Context) ([]LaunchResult, error) {
	m.mu.Lock()
	closed := m.closed
	m.mu.Unlock()
	if closed {
		return nil, ferrors.RuntimeError("dev server manager already shut down").Build()
	}

	entries, err := m.opts.Builder.EntryPoints()
	if err != nil {
		return nil, err
	}

	results := make([]LaunchResult, len(entries))
	var g errgroup.Group
	for i, entry := range entries {
		port := target.PortFor(m.opts.Builder.BasePort(), i)
		results[i] = LaunchResult{Entry: entry, Port: port}
		g.Go(func() error {
			srv, err := m.launchOne(ctx, entry, port)
			results[i].Server = srv
			results[i].Err = err
			if srv != nil {
				results[i].URL = srv.URL()
			}
			return nil
		})
	}
	_ = g.Wait()

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		for i, r := range results {
			if r.Server != nil {
				_ = r.Server.Close(context.Background())
				results[i].Server = nil
				results[i].Err = ferrors.RuntimeError("dev server manager shut down during launch").Build()
			}
		}
		return results, nil
	}
	for _, r := range results {
		if r.Server != nil {
			m.servers = append(m.servers, r.Server)
		}
	}
	running := len(m.servers)
	if m.stop == nil {
		m.stop = context.AfterFunc(ctx, func() { _ = m.Shutdown(context.Background()) })
	}
	m.mu.Unlock()
	m.opts.Recorder.SetDevServers(running)
	return results, nil
}

func (m *Manager) launchOne(ctx context.Context, entry target.EntryPoint, port int) (*Server, error) {
	logger := m.opts.Logger.With(logfields.EntryPoint(entry.Name), logfields.Port(port))
	ch := m.opts.Sink.CreateChannel(entry.Name)
	fail := func(err error) (*Server, error) {
		logger.Error("Dev server launch failed", logfields.Error(err))
		if d := compiler.Diagnostics(err); d != "" {
			ch.Write(d)
		} else {
			ch.Write(err.Error())
		}
		return nil, err
	}

	cfg, err := m.opts.Builder.BuildRenderer(target.Development, entry)
	if err != nil {
		return fail(err)
	}
	session, err := m.opts.Runner.Engine().Session(cfg)
	if err != nil {
		if !ferrors.IsClassified(err) {
			err = ferrors.CompileError("cannot start incremental compiler").
				WithCause(err).
				WithContext("target", entry.Name).
				Build()
		}
		return fail(err)
	}

	srv := NewServer(ServerConfig{
		Entry:      entry,
		Port:       port,
		Host:       m.opts.Host,
		OutputDir:  cfg.OutputPath(),
		IgnoreDirs: []string{m.opts.Builder.StagingRoot()},
		Session:    session,
		Runner:     m.opts.Runner,
		Channel:    ch,
		Recorder:   m.opts.Recorder,
		Logger:     m.opts.Logger,
		Debounce:   m.opts.Debounce,
	})
	if err := srv.Start(ctx); err != nil {
		_ = srv.Close(context.Background())
		logger.Error("Dev server launch failed", logfields.Error(err))
		if ferrors.IsServerBind(err) {
			ch.Write(err.Error())
		}
		return nil, err
	}
	return srv, nil
}

// Servers returns the running servers in launch order.
func (m *Manager) Servers() []*Server {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*Server(nil), m.servers...)
}

// Shutdown closes every server. Safe to call repeatedly and before Launch.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	servers := m.servers
	m.servers = nil
	if m.stop != nil {
		m.stop()
	}
	m.mu.Unlock()

	var g errgroup.Group
	errs := make([]error, len(servers))
	for i, s := range servers {
		g.Go(func() error {
			errs[i] = s.Close(ctx)
			return nil
		})
	}
	_ = g.Wait()
	m.opts.Recorder.SetDevServers(0)
	if len(servers) > 0 {
		m.opts.Logger.Info("Dev servers stopped", "count", len(servers))
	}
	return errors.Join(errs...)
}
