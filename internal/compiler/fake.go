package compiler

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"git.home.luguber.info/inful/forgepack/internal/target"
)

// FakeEngine is an in-memory Engine that records every configuration it receives.
// Results are looked up by target name; unknown targets succeed. Every report gets
// a fresh ID.
type FakeEngine struct {
	mu       sync.Mutex
	Results  map[string]*Report
	Errors   map[string]error
	Panics   map[string]any
	builds   []target.Config
	sessions int
	closed   int
}

// NewFakeEngine returns an empty FakeEngine.
func NewFakeEngine() *FakeEngine {
	return &FakeEngine{
		Results: map[string]*Report{},
		Errors:  map[string]error{},
		Panics:  map[string]any{},
	}
}

// Fail makes builds of name produce a failed report with log.
func (f *FakeEngine) Fail(name, log string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Results[name] = &Report{Target: name, Succeeded: false, Log: log}
}

// Succeed makes builds of name succeed with log.
func (f *FakeEngine) Succeed(name, log string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Results[name] = &Report{Target: name, Succeeded: true, Log: log}
}

// Build implements Engine.
func (f *FakeEngine) Build(_ context.Context, cfg target.Config) (*Report, error) {
	f.mu.Lock()
	f.builds = append(f.builds, cfg.Clone())
	name := cfg.Name()
	p, panics := f.Panics[name]
	err := f.Errors[name]
	res := f.Results[name]
	f.mu.Unlock()

	if panics {
		panic(p)
	}
	if err != nil {
		return nil, err
	}
	if res == nil {
		return &Report{ID: uuid.NewString(), Target: name, Succeeded: true, Log: name + " compiled"}, nil
	}
	out := *res
	out.ID = uuid.NewString()
	out.Inputs = append([]string(nil), res.Inputs...)
	return &out, nil
}

// Session implements Engine.
func (f *FakeEngine) Session(cfg target.Config) (Session, error) {
	f.mu.Lock()
	f.sessions++
	f.mu.Unlock()
	return &fakeSession{engine: f, cfg: cfg.Clone()}, nil
}

// Builds returns copies of the configurations passed to Build, in call order.
func (f *FakeEngine) Builds() []target.Config {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]target.Config(nil), f.builds...)
}

// BuiltNames returns the target names passed to Build, in call order.
func (f *FakeEngine) BuiltNames() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	names := make([]string, len(f.builds))
	for i, c := range f.builds {
		names[i] = c.Name()
	}
	return names
}

// Sessions returns how many sessions were opened and closed.
func (f *FakeEngine) Sessions() (opened, closed int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sessions, f.closed
}

type fakeSession struct {
	engine *FakeEngine
	cfg    target.Config
	once   sync.Once
}

func (s *fakeSession) Rebuild(ctx context.Context) (*Report, error) {
	return s.engine.Build(ctx, s.cfg)
}

func (s *fakeSession) Close() error {
	s.once.Do(func() {
		s.engine.mu.Lock()
		s.engine.closed++
		s.engine.mu.Unlock()
	})
	return nil
}
