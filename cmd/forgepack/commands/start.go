package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"git.home.luguber.info/inful/forgepack/internal/metrics"
)

// StartCmd runs the development pipeline until interrupted.
type StartCmd struct {
	MetricsAddr string `name:"metrics-addr" help:"Serve Prometheus metrics on this address (e.g. :9464)"`
}

func (s *StartCmd) Run(g *Global, root *CLI) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	return s.run(ctx, g, root)
}

func (s *StartCmd) run(ctx context.Context, g *Global, root *CLI) error {
	cfg, dir, err := root.loadProject()
	if err != nil {
		return err
	}

	var rec metrics.Recorder = metrics.NoopRecorder{}
	var metricsSrv *http.Server
	if s.MetricsAddr != "" {
		reg := prometheus.NewRegistry()
		rec = metrics.NewPrometheusRecorder(reg)
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.HTTPHandler(reg))
		metricsSrv = &http.Server{Addr: s.MetricsAddr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
		go func() {
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("Metrics server failed", "error", err)
			}
		}()
		slog.Info("Metrics available", "addr", s.MetricsAddr, "path", "/metrics")
	}

	o, err := newOrchestrator(ctx, g, cfg, dir, rec)
	if err != nil {
		return err
	}
	defer func() {
		stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer stopCancel()
		if err := o.Shutdown(stopCtx); err != nil {
			slog.Warn("Shutdown failed", "error", err)
		}
		if metricsSrv != nil {
			_ = metricsSrv.Shutdown(stopCtx)
		}
	}()

	if _, err := o.Start(ctx); err != nil {
		return err
	}
	for _, l := range o.Launches() {
		if l.Err != nil {
			_, _ = fmt.Fprintf(g.out(), "%-20s failed: %v\n", l.Entry.Name, l.Err)
			continue
		}
		_, _ = fmt.Fprintf(g.out(), "%-20s %s\n", l.Entry.Name, l.URL)
	}

	<-ctx.Done()
	slog.Info("Shutdown signal received, stopping dev servers...")
	return nil
}
