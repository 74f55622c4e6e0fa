package compiler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ferrors "git.home.luguber.info/inful/forgepack/internal/foundation/errors"
	"git.home.luguber.info/inful/forgepack/internal/metrics"
	"git.home.luguber.info/inful/forgepack/internal/target"
)

type countingRecorder struct {
	metrics.NoopRecorder
	results []metrics.ResultLabel
}

func (c *countingRecorder) IncCompileResult(_, _ string, r metrics.ResultLabel) {
	c.results = append(c.results, r)
}

func (c *countingRecorder) ObserveCompileDuration(string, string, time.Duration) {}

func cfg(name string) target.Config {
	return target.Config{target.KeyName: name, target.KeyMode: "development"}
}

func TestCompileSuccess(t *testing.T) {
	eng := NewFakeEngine()
	eng.Succeed("main", "built main")
	rec := &countingRecorder{}
	r := NewRunner(eng, WithRecorder(rec))

	rep, err := r.Compile(context.Background(), cfg("main"))
	require.NoError(t, err)
	assert.True(t, rep.Succeeded)
	assert.Equal(t, "built main", rep.Log)
	assert.Equal(t, []metrics.ResultLabel{metrics.ResultSuccess}, rec.results)
}

func TestCompileDiagnosedFailure(t *testing.T) {
	eng := NewFakeEngine()
	eng.Fail("main", "syntax error in main.js")
	rec := &countingRecorder{}
	r := NewRunner(eng, WithRecorder(rec))

	rep, err := r.Compile(context.Background(), cfg("main"))
	require.Error(t, err)
	assert.True(t, ferrors.IsCompile(err))
	require.NotNil(t, rep)
	assert.False(t, rep.Succeeded)
	assert.Equal(t, "syntax error in main.js", Diagnostics(err))
	assert.Equal(t, []metrics.ResultLabel{metrics.ResultFailed}, rec.results)
}

func TestCompileEngineError(t *testing.T) {
	eng := NewFakeEngine()
	eng.Errors["main"] = errors.New("engine exploded")
	rec := &countingRecorder{}
	r := NewRunner(eng, WithRecorder(rec))

	rep, err := r.Compile(context.Background(), cfg("main"))
	require.Error(t, err)
	assert.Nil(t, rep)
	assert.True(t, ferrors.IsCompile(err))
	assert.Equal(t, "engine exploded", Diagnostics(err))
	assert.Equal(t, []metrics.ResultLabel{metrics.ResultError}, rec.results)
}

func TestCompileRecoversPanic(t *testing.T) {
	eng := NewFakeEngine()
	eng.Panics["main"] = "boom"
	r := NewRunner(eng)

	rep, err := r.Compile(context.Background(), cfg("main"))
	require.Error(t, err)
	assert.Nil(t, rep)
	assert.True(t, ferrors.IsCompile(err))
	assert.Contains(t, Diagnostics(err), "boom")
}

func TestRebuildThroughSession(t *testing.T) {
	eng := NewFakeEngine()
	r := NewRunner(eng)

	s, err := eng.Session(cfg("main_window"))
	require.NoError(t, err)
	rep, err := r.Rebuild(context.Background(), s, "main_window", target.Development)
	require.NoError(t, err)
	assert.Equal(t, "main_window", rep.Target)

	eng.Fail("main_window", "bad import")
	_, err = r.Rebuild(context.Background(), s, "main_window", target.Development)
	require.Error(t, err)
	assert.Equal(t, "bad import", Diagnostics(err))

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
	opened, closed := eng.Sessions()
	assert.Equal(t, 1, opened)
	assert.Equal(t, 1, closed)
}

func TestEngineReceivesConfigCopy(t *testing.T) {
	eng := NewFakeEngine()
	r := NewRunner(eng)
	c := cfg("main")
	_, err := r.Compile(context.Background(), c)
	require.NoError(t, err)

	c[target.KeyName] = "changed"
	assert.Equal(t, []string{"main"}, eng.BuiltNames())
}
