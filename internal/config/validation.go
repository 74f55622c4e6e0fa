package config

import (
	"fmt"

	ferrors "git.home.luguber.info/inful/forgepack/internal/foundation/errors"
	"git.home.luguber.info/inful/forgepack/internal/retry"
)

// Validate checks the fields the project file owns. Bundler configurations and entry
// points are validated when targets are derived.
func Validate(cfg *Config) error {
	if cfg.DevServer.BasePort < 1 || cfg.DevServer.BasePort > 65535 {
		return invalid("devServer.basePort", fmt.Sprintf("port %d out of range", cfg.DevServer.BasePort))
	}
	switch cfg.LogSink.Type {
	case SinkSlog:
	case SinkNATS:
		if cfg.LogSink.NATSURL == "" {
			return invalid("logSink.natsURL", "required when logSink.type is nats")
		}
	default:
		return invalid("logSink.type", fmt.Sprintf("unknown sink type %q", cfg.LogSink.Type))
	}
	switch cfg.LogSink.Retry.Backoff {
	case "", retry.BackoffFixed, retry.BackoffLinear, retry.BackoffExponential:
	default:
		return invalid("logSink.retry.backoff", fmt.Sprintf("unknown backoff mode %q", cfg.LogSink.Retry.Backoff))
	}
	if cfg.LogSink.Retry.MaxRetries < 0 {
		return invalid("logSink.retry.maxRetries", "cannot be negative")
	}
	for i, p := range cfg.Renderer.PrefixedEntries {
		if p == "" {
			return invalid("renderer.prefixedEntries", fmt.Sprintf("entry %d is empty", i))
		}
	}
	return nil
}

func invalid(option, msg string) error {
	return ferrors.ValidationError("invalid configuration: "+msg).
		WithContext("option", option).
		Build()
}
