package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
)

// PackageCmd runs the production pipeline.
type PackageCmd struct{}

func (p *PackageCmd) Run(g *Global, root *CLI) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, dir, err := root.loadProject()
	if err != nil {
		return err
	}
	o, err := newOrchestrator(ctx, g, cfg, dir, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err := o.Shutdown(context.Background()); err != nil {
			slog.Warn("Shutdown failed", "error", err)
		}
	}()

	if err := o.PrePackage(ctx); err != nil {
		return err
	}
	_, _ = fmt.Fprintf(g.out(), "Bundles written to %s\n", o.ProjectDir())
	return nil
}
