package logsink

import (
	"context"
	"errors"
)

// Multi fans every channel out to several sinks.
type Multi []Sink

func (m Multi) CreateChannel(name string) Channel {
	chs := make([]Channel, 0, len(m))
	for _, s := range m {
		chs = append(chs, s.CreateChannel(name))
	}
	return namedMulti{name: name, chs: chs}
}

func (m Multi) Start(ctx context.Context) error {
	var errs []error
	for _, s := range m {
		errs = append(errs, s.Start(ctx))
	}
	return errors.Join(errs...)
}

func (m Multi) Close() error {
	var errs []error
	for _, s := range m {
		errs = append(errs, s.Close())
	}
	return errors.Join(errs...)
}

type namedMulti struct {
	name string
	chs  []Channel
}

func (n namedMulti) Name() string { return n.name }

func (n namedMulti) Write(text string) {
	for _, c := range n.chs {
		c.Write(text)
	}
}
