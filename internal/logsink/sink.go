// Package logsink multiplexes compiler output into named channels, one per target.
package logsink

import (
	"context"
	"strings"
)

// Sink creates named channels and owns their delivery.
type Sink interface {
	// CreateChannel returns the channel registered under name, creating it on first use.
	CreateChannel(name string) Channel
	// Start begins delivery to any presentation the sink drives.
	Start(ctx context.Context) error
	// Close flushes pending lines and releases resources. Idempotent.
	Close() error
}

// Channel receives lines for one target.
type Channel interface {
	Name() string
	Write(text string)
}

// Lines splits text into non-empty lines with trailing whitespace removed.
func Lines(text string) []string {
	raw := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	out := make([]string, 0, len(raw))
	for _, l := range raw {
		l = strings.TrimRight(l, " \t\r")
		if l != "" {
			out = append(out, l)
		}
	}
	return out
}
