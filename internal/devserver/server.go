package devserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"git.home.luguber.info/inful/forgepack/internal/compiler"
	ferrors "git.home.luguber.info/inful/forgepack/internal/foundation/errors"
	"git.home.luguber.info/inful/forgepack/internal/livereload"
	"git.home.luguber.info/inful/forgepack/internal/logfields"
	"git.home.luguber.info/inful/forgepack/internal/logsink"
	"git.home.luguber.info/inful/forgepack/internal/metrics"
	"git.home.luguber.info/inful/forgepack/internal/target"
)

// DefaultDebounce is how long the watcher waits for filesystem events to settle.
const DefaultDebounce = 300 * time.Millisecond

// ServerConfig describes one entry point's dev server.
type ServerConfig struct {
	Entry     target.EntryPoint
	Port      int
	Host      string
	OutputDir string
	// IgnoreDirs are never watched (the staging directory).
	IgnoreDirs []string
	Session    compiler.Session
	Runner     *compiler.Runner
	Channel    logsink.Channel
	Recorder   metrics.Recorder
	Logger     *slog.Logger
	Debounce   time.Duration
}

// Server serves one entry point's compiled output.
type Server struct {
	cfg     ServerConfig
	status  *buildStatus
	hub     *livereload.Hub
	adapter *ferrors.HTTPErrorAdapter
	logger  *slog.Logger
	handler http.Handler

	httpSrv *http.Server
	ln      net.Listener
	watch   *watcher

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	closeOnce sync.Once
	closeErr  error
}

// NewServer prepares a server; nothing is compiled or bound until Start.
func NewServer(cfg ServerConfig) *Server {
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Recorder == nil {
		cfg.Recorder = metrics.NoopRecorder{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultDebounce
	}
	logger := cfg.Logger.With(logfields.EntryPoint(cfg.Entry.Name), logfields.Port(cfg.Port))
	s := &Server{
		cfg:     cfg,
		status:  newBuildStatus(),
		adapter: ferrors.NewHTTPErrorAdapter(logger),
		logger:  logger,
	}
	s.hub = livereload.NewHub(func() { cfg.Recorder.IncLiveReloadBroadcast(cfg.Entry.Name) })
	s.ctx, s.cancel = context.WithCancel(context.Background())

	mux := http.NewServeMux()
	mux.Handle(livereload.Path, s.hub)
	mux.HandleFunc("/", s.serveOutput)
	s.handler = chain(logger, s.adapter)(mux)
	return s
}

// Handler returns the server's HTTP handler.
func (s *Server) Handler() http.Handler { return s.handler }

// Entry returns the entry point served.
func (s *Server) Entry() target.EntryPoint { return s.cfg.Entry }

// Port returns the assigned port.
func (s *Server) Port() int { return s.cfg.Port }

// URL returns the address the main bundle resolves this entry point to.
func (s *Server) URL() string { return fmt.Sprintf("http://localhost:%d", s.cfg.Port) }

// Hub returns the live-reload hub.
func (s *Server) Hub() *livereload.Hub { return s.hub }

// Start runs the initial compile, binds the assigned port and starts serving and
// watching. A failed initial compile returns a CompileError and binds nothing.
func (s *Server) Start(ctx context.Context) error {
	if _, err := s.Rebuild(ctx); err != nil {
		return err
	}

	addr := net.JoinHostPort(s.cfg.Host, fmt.Sprint(s.cfg.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return ferrors.ServerBindError("cannot bind dev server port").
			WithCause(err).
			WithContext("entry", s.cfg.Entry.Name).
			WithContext("port", s.cfg.Port).
			Build()
	}
	s.ln = ln
	s.httpSrv = &http.Server{Handler: s.handler, ReadHeaderTimeout: 10 * time.Second}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.httpSrv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("Dev server stopped", logfields.Error(err))
			s.cfg.Channel.Write("dev server stopped: " + err.Error())
		}
	}()

	w, err := newWatcher(s.cfg.IgnoreDirs, s.logger)
	if err != nil {
		s.logger.Warn("File watching disabled", logfields.Error(err))
	} else {
		s.watch = w
		if good, _ := s.status.get(); good != nil {
			w.update(good.Inputs)
		}
		s.startWatchLoop()
	}

	s.logger.Info("Dev server listening", "url", s.URL())
	s.cfg.Channel.Write("dev server listening on " + s.URL())
	return nil
}

// Rebuild runs one incremental compile. Requests arriving meanwhile wait for it.
// The compiler output goes to the entry's channel and connected pages are notified.
func (s *Server) Rebuild(ctx context.Context) (*compiler.Report, error) {
	s.status.begin()
	report, err := s.cfg.Runner.Rebuild(ctx, s.cfg.Session, s.cfg.Entry.Name, target.Development)
	s.status.end(report, err)

	if err != nil {
		s.cfg.Channel.Write(compiler.Diagnostics(err))
		id := "unknown"
		if report != nil && report.ID != "" {
			id = report.ID
		}
		s.hub.BroadcastFailure(id)
		if report != nil && s.watch != nil {
			s.watch.update(report.Inputs)
		}
		return report, err
	}
	s.cfg.Channel.Write(report.Log)
	s.hub.Broadcast(report.ID)
	if s.watch != nil {
		s.watch.update(report.Inputs)
	}
	return report, nil
}

func (s *Server) serveOutput(w http.ResponseWriter, r *http.Request) {
	if err := s.status.wait(r.Context()); err != nil {
		return
	}
	good, lastErr := s.status.get()
	if good == nil {
		if lastErr == nil {
			lastErr = ferrors.CompileError("no successful build yet").
				WithContext("target", s.cfg.Entry.Name).
				Build()
		}
		s.adapter.WriteErrorResponse(w, r, lastErr)
		return
	}

	if s.wantsIndex(r) {
		s.serveIndex(w, r)
		return
	}
	http.FileServer(http.Dir(s.cfg.OutputDir)).ServeHTTP(w, r)
}

// wantsIndex applies single-page routing: an extension-less GET or HEAD from a client
// accepting HTML gets index.html unless a file exists at that path.
func (s *Server) wantsIndex(r *http.Request) bool {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		return false
	}
	p := path.Clean("/" + r.URL.Path)
	if p == "/" || strings.Contains(path.Base(p), ".") {
		return false
	}
	accept := r.Header.Get("Accept")
	if !strings.Contains(accept, "text/html") && !strings.Contains(accept, "*/*") {
		return false
	}
	if fi, err := os.Stat(filepath.Join(s.cfg.OutputDir, filepath.FromSlash(p))); err == nil && !fi.IsDir() {
		return false
	}
	return true
}

func (s *Server) serveIndex(w http.ResponseWriter, r *http.Request) {
	f, err := os.Open(filepath.Join(s.cfg.OutputDir, "index.html"))
	if err != nil {
		http.NotFound(w, r)
		return
	}
	defer func() { _ = f.Close() }()
	fi, err := f.Stat()
	if err != nil {
		http.NotFound(w, r)
		return
	}
	http.ServeContent(w, r, "index.html", fi.ModTime(), f)
}

// Close stops watching, disconnects live-reload clients, shuts the listener down and
// closes the compiler session. Idempotent.
func (s *Server) Close(ctx context.Context) error {
	s.closeOnce.Do(func() {
		s.cancel()
		var errs []error
		if s.watch != nil {
			errs = append(errs, s.watch.close())
		}
		s.hub.Shutdown()
		if s.httpSrv != nil {
			if err := s.httpSrv.Shutdown(ctx); err != nil {
				errs = append(errs, err, s.httpSrv.Close())
			}
		}
		s.wg.Wait()
		errs = append(errs, s.cfg.Session.Close())
		s.closeErr = errors.Join(errs...)
		s.logger.Debug("Dev server closed")
	})
	return s.closeErr
}
