package logsink

import (
	"context"
	"sync"
)

// Memory keeps every line in memory. Hosts embedding the orchestrator use it to
// render channels themselves; tests use it to assert on output.
type Memory struct {
	mu      sync.Mutex
	lines   map[string][]string
	order   []string
	started bool
	closed  bool
}

// NewMemory returns an empty Memory sink.
func NewMemory() *Memory {
	return &Memory{lines: map[string][]string{}}
}

func (m *Memory) CreateChannel(name string) Channel {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.lines[name]; !ok {
		m.lines[name] = nil
		m.order = append(m.order, name)
	}
	return memChannel{m: m, name: name}
}

func (m *Memory) Start(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.started = true
	return nil
}

func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Lines returns a copy of the lines written to channel name.
func (m *Memory) Lines(name string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.lines[name]...)
}

// Channels returns channel names in creation order.
func (m *Memory) Channels() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.order...)
}

// Started reports whether Start was called.
func (m *Memory) Started() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.started
}

// Closed reports whether Close was called.
func (m *Memory) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

type memChannel struct {
	m    *Memory
	name string
}

func (c memChannel) Name() string { return c.name }

func (c memChannel) Write(text string) {
	lines := Lines(text)
	c.m.mu.Lock()
	defer c.m.mu.Unlock()
	c.m.lines[c.name] = append(c.m.lines[c.name], lines...)
}
