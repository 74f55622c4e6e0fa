package logsink

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
)

// DefaultSubject is the subject prefix lines are published under.
const DefaultSubject = "forgepack.logs"

// Publisher is the subset of *nats.Conn the sink uses.
type Publisher interface {
	Publish(subject string, data []byte) error
	FlushTimeout(timeout time.Duration) error
	Drain() error
}

// Line is the JSON payload published for every line.
type Line struct {
	Channel   string    `json:"channel"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// NATSSink publishes lines to "<subject>.<channel>".
type NATSSink struct {
	pub     Publisher
	subject string

	mu       sync.Mutex
	channels map[string]*natsChannel
	closed   bool
}

// NewNATSSink connects to url and returns a sink publishing under subject.
func NewNATSSink(url, subject string) (*NATSSink, error) {
	if url == "" {
		url = nats.DefaultURL
	}
	conn, err := nats.Connect(url, nats.Name("forgepack"))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	slog.Info("NATS log sink connected", "url", url, "subject", subjectOrDefault(subject))
	return NewNATSSinkWithPublisher(conn, subject), nil
}

// NewNATSSinkWithPublisher returns a sink publishing through pub.
func NewNATSSinkWithPublisher(pub Publisher, subject string) *NATSSink {
	return &NATSSink{pub: pub, subject: subjectOrDefault(subject), channels: map[string]*natsChannel{}}
}

func subjectOrDefault(s string) string {
	s = strings.Trim(strings.TrimSpace(s), ".")
	if s == "" {
		return DefaultSubject
	}
	return s
}

// Subject returns the subject lines of channel name are published to.
func (s *NATSSink) Subject(name string) string {
	return s.subject + "." + subjectToken(name)
}

// subjectToken maps a channel name onto a single NATS subject token.
func subjectToken(name string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '.', '*', '>', ' ', '\t':
			return '_'
		}
		return r
	}, name)
}

func (s *NATSSink) CreateChannel(name string) Channel {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ch, ok := s.channels[name]; ok {
		return ch
	}
	ch := &natsChannel{sink: s, name: name, subject: s.Subject(name)}
	s.channels[name] = ch
	return ch
}

func (s *NATSSink) Start(context.Context) error {
	return nil
}

func (s *NATSSink) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	if err := s.pub.FlushTimeout(5 * time.Second); err != nil {
		slog.Warn("NATS log sink flush failed", "error", err)
	}
	return s.pub.Drain()
}

func (s *NATSSink) publish(subject string, payload Line) {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		slog.Debug("NATS log sink marshal", "error", err)
		return
	}
	if err := s.pub.Publish(subject, data); err != nil {
		slog.Debug("NATS log sink publish", "subject", subject, "error", err)
	}
}

type natsChannel struct {
	sink    *NATSSink
	name    string
	subject string
}

func (c *natsChannel) Name() string { return c.name }

func (c *natsChannel) Write(text string) {
	now := time.Now().UTC()
	for _, line := range Lines(text) {
		c.sink.publish(c.subject, Line{Channel: c.name, Text: line, Timestamp: now})
	}
}
