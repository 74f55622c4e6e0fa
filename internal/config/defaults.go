package config

import (
	"strings"

	"git.home.luguber.info/inful/forgepack/internal/logsink"
	"git.home.luguber.info/inful/forgepack/internal/retry"
	"git.home.luguber.info/inful/forgepack/internal/target"
)

// DefaultApplier applies defaults for a specific configuration domain.
type DefaultApplier interface {
	ApplyDefaults(cfg *Config) error
	Domain() string
}

// DevServerDefaultApplier handles dev server defaults.
type DevServerDefaultApplier struct{}

func (d *DevServerDefaultApplier) Domain() string { return "devServer" }

func (d *DevServerDefaultApplier) ApplyDefaults(cfg *Config) error {
	if cfg.DevServer.BasePort == 0 {
		cfg.DevServer.BasePort = target.DefaultBasePort
	}
	if cfg.DevServer.Host == "" {
		cfg.DevServer.Host = "localhost"
	}
	if cfg.StagingDir == "" {
		cfg.StagingDir = target.DefaultStagingDir
	}
	return nil
}

// LoggingDefaultApplier handles logging defaults.
type LoggingDefaultApplier struct{}

func (l *LoggingDefaultApplier) Domain() string { return "logging" }

func (l *LoggingDefaultApplier) ApplyDefaults(cfg *Config) error {
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = LogLevelInfo
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = LogFormatText
	}
	return nil
}

// LogSinkDefaultApplier handles log sink defaults.
type LogSinkDefaultApplier struct{}

func (l *LogSinkDefaultApplier) Domain() string { return "logSink" }

func (l *LogSinkDefaultApplier) ApplyDefaults(cfg *Config) error {
	if cfg.LogSink.Type == "" {
		cfg.LogSink.Type = SinkSlog
	}
	if cfg.LogSink.Subject == "" {
		cfg.LogSink.Subject = logsink.DefaultSubject
	}
	if cfg.LogSink.Retry == (RetryConfig{}) {
		d := retry.DefaultPolicy()
		cfg.LogSink.Retry = RetryConfig{Backoff: d.Mode, Initial: d.Initial, Max: d.Max, MaxRetries: d.MaxRetries}
	}
	return nil
}

var appliers = []DefaultApplier{
	&DevServerDefaultApplier{},
	&LoggingDefaultApplier{},
	&LogSinkDefaultApplier{},
}

func applyDefaults(cfg *Config) error {
	for _, a := range appliers {
		if err := a.ApplyDefaults(cfg); err != nil {
			return err
		}
	}
	return nil
}

// normalize case-folds enumerations. Unknown sink types are kept verbatim so
// validation can name them.
func normalize(cfg *Config) {
	if cfg.Logging.Level != "" {
		cfg.Logging.Level = NormalizeLogLevel(string(cfg.Logging.Level))
	}
	if cfg.Logging.Format != "" {
		cfg.Logging.Format = NormalizeLogFormat(string(cfg.Logging.Format))
	}
	if cfg.LogSink.Type != "" {
		if t := NormalizeSinkType(string(cfg.LogSink.Type)); t != "" {
			cfg.LogSink.Type = t
		}
	}
	cfg.LogSink.Retry.Backoff = retry.BackoffMode(strings.ToLower(strings.TrimSpace(string(cfg.LogSink.Retry.Backoff))))
}
