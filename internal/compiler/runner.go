package compiler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	ferrors "git.home.luguber.info/inful/forgepack/internal/foundation/errors"
	"git.home.luguber.info/inful/forgepack/internal/logfields"
	"git.home.luguber.info/inful/forgepack/internal/metrics"
	"git.home.luguber.info/inful/forgepack/internal/target"
)

// Runner invokes an Engine and turns engine failures into CompileErrors.
type Runner struct {
	engine   Engine
	recorder metrics.Recorder
	logger   *slog.Logger
}

// Option configures a Runner.
type Option func(*Runner)

// WithRecorder sets the metrics recorder.
func WithRecorder(r metrics.Recorder) Option {
	return func(rn *Runner) {
		if r != nil {
			rn.recorder = r
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(rn *Runner) {
		if l != nil {
			rn.logger = l
		}
	}
}

// NewRunner returns a Runner around engine.
func NewRunner(engine Engine, opts ...Option) *Runner {
	r := &Runner{engine: engine, recorder: metrics.NoopRecorder{}, logger: slog.Default()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Engine returns the wrapped engine.
func (r *Runner) Engine() Engine { return r.engine }

// Compile runs the engine once for cfg. On success the report is returned for logging;
// otherwise the error is a CompileError carrying the engine diagnostics. When the
// engine produced a report, it is returned alongside the error.
func (r *Runner) Compile(ctx context.Context, cfg target.Config) (*Report, error) {
	name := cfg.Name()
	return r.observe(name, string(cfg.Mode()), func() (*Report, error) {
		return r.engine.Build(ctx, cfg)
	})
}

// Rebuild runs one incremental rebuild of session under the same rules as Compile.
func (r *Runner) Rebuild(ctx context.Context, session Session, name string, mode target.Mode) (*Report, error) {
	return r.observe(name, string(mode), func() (*Report, error) {
		return session.Rebuild(ctx)
	})
}

func (r *Runner) observe(name, mode string, run func() (*Report, error)) (report *Report, err error) {
	start := time.Now()
	defer func() {
		if p := recover(); p != nil {
			report = nil
			err = ferrors.CompileError("compiler engine panicked").
				WithCause(fmt.Errorf("%v", p)).
				WithContext("target", name).
				Build()
		}
		d := time.Since(start)
		r.recorder.ObserveCompileDuration(name, mode, d)
		r.recorder.IncCompileResult(name, mode, resultLabel(report, err))
		attrs := []any{logfields.Target(name), logfields.Mode(mode), logfields.DurationMS(float64(d.Microseconds()) / 1000)}
		if err != nil {
			r.logger.Error("Compilation failed", append(attrs, logfields.Error(err))...)
			return
		}
		r.logger.Info("Compilation succeeded", attrs...)
	}()

	report, err = run()
	if err != nil {
		return report, ferrors.CompileError("compiler engine failed").
			WithCause(err).
			WithContext("target", name).
			Build()
	}
	if report == nil {
		return nil, ferrors.CompileError("compiler engine returned no report").
			WithContext("target", name).
			Build()
	}
	if report.Target == "" {
		report.Target = name
	}
	if !report.Succeeded {
		return report, ferrors.CompileError("compilation failed").
			WithContext("target", name).
			WithContext("diagnostics", report.Log).
			Build()
	}
	return report, nil
}

func resultLabel(report *Report, err error) metrics.ResultLabel {
	switch {
	case err == nil:
		return metrics.ResultSuccess
	case report != nil:
		return metrics.ResultFailed
	default:
		return metrics.ResultError
	}
}

// Diagnostics extracts the engine diagnostic text from a CompileError.
func Diagnostics(err error) string {
	c, ok := ferrors.AsClassified(err)
	if !ok {
		return ""
	}
	if d, ok := c.Context().GetString("diagnostics"); ok {
		return d
	}
	if cause := c.Cause(); cause != nil {
		return cause.Error()
	}
	return ""
}
