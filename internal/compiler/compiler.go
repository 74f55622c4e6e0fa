// Package compiler defines the boundary to the bundler engine and the runner the
// orchestrator compiles targets through.
package compiler

import (
	"context"
	"time"

	"git.home.luguber.info/inful/forgepack/internal/target"
)

// Report is the outcome of one compilation attempt. Reports are consumed immediately
// by the log sink or attached to a CompileError; they are never persisted.
type Report struct {
	ID        string
	Target    string
	Succeeded bool
	Log       string
	Outputs   []string
	Inputs    []string
	Duration  time.Duration
}

// Engine compiles a target configuration. Engines must treat the configuration as
// read-only.
type Engine interface {
	// Build runs one compilation and resolves once the engine reports completion.
	// A diagnosed failure is a Report with Succeeded false and a nil error; the
	// error return is reserved for the engine itself failing.
	Build(ctx context.Context, cfg target.Config) (*Report, error)
	// Session prepares an incremental compiler for watch-mode rebuilds.
	Session(cfg target.Config) (Session, error)
}

// Session is a long-lived incremental compilation of one target.
type Session interface {
	Rebuild(ctx context.Context) (*Report, error)
	Close() error
}
