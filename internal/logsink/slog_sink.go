package logsink

import (
	"context"
	"log/slog"
	"sync"

	"git.home.luguber.info/inful/forgepack/internal/logfields"
)

// SlogSink re-emits every line as an slog record tagged with its channel.
type SlogSink struct {
	logger *slog.Logger

	mu       sync.Mutex
	channels map[string]*slogChannel
	started  bool
	closed   bool
}

// NewSlogSink returns a sink writing to logger (slog.Default when nil).
func NewSlogSink(logger *slog.Logger) *SlogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogSink{logger: logger, channels: map[string]*slogChannel{}}
}

func (s *SlogSink) CreateChannel(name string) Channel {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ch, ok := s.channels[name]; ok {
		return ch
	}
	ch := &slogChannel{sink: s, name: name, logger: s.logger.With(logfields.Channel(name))}
	s.channels[name] = ch
	return ch
}

func (s *SlogSink) Start(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return nil
	}
	s.started = true
	names := make([]string, 0, len(s.channels))
	for n := range s.channels {
		names = append(names, n)
	}
	s.logger.Info("Log sink started", "channels", names)
	return nil
}

func (s *SlogSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *SlogSink) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

type slogChannel struct {
	sink   *SlogSink
	name   string
	logger *slog.Logger
}

func (c *slogChannel) Name() string { return c.name }

func (c *slogChannel) Write(text string) {
	if c.sink.isClosed() {
		return
	}
	for _, line := range Lines(text) {
		c.logger.Info(line)
	}
}
