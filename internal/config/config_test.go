package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ferrors "git.home.luguber.info/inful/forgepack/internal/foundation/errors"
	"git.home.luguber.info/inful/forgepack/internal/retry"
)

const sample = `
mainConfig: ./webpack.main.config.js.yaml
renderer:
  config: ./webpack.renderer.config.yaml
  prefixedEntries: [./src/polyfills.js]
  entryPoints:
    - name: main_window
      js: ./src/renderer.js
      html: ./src/index.html
devServer:
  basePort: 4000
logging:
  level: DEBUG
  format: json
`

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	p := filepath.Join(dir, DefaultFile)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o600))
	return p
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Load(writeConfig(t, dir, sample))
	require.NoError(t, err)

	assert.Equal(t, dir, cfg.Dir)
	assert.Equal(t, "./webpack.main.config.js.yaml", cfg.MainConfig)
	assert.Equal(t, []string{"./src/polyfills.js"}, cfg.Renderer.PrefixedEntries)
	assert.Equal(t, 4000, cfg.DevServer.BasePort)
	assert.Equal(t, LogLevelDebug, cfg.Logging.Level)
	assert.Equal(t, LogFormatJSON, cfg.Logging.Format)

	eps, ok := cfg.Renderer.EntryPoints.([]any)
	require.True(t, ok)
	require.Len(t, eps, 1)
	assert.Equal(t, "main_window", eps[0].(map[string]any)["name"])
}

func TestDefaults(t *testing.T) {
	cfg, err := Parse([]byte("renderer:\n  entryPoints: []\n"))
	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.DevServer.BasePort)
	assert.Equal(t, "localhost", cfg.DevServer.Host)
	assert.Equal(t, ".webpack", cfg.StagingDir)
	assert.Equal(t, LogLevelInfo, cfg.Logging.Level)
	assert.Equal(t, LogFormatText, cfg.Logging.Format)
	assert.Equal(t, SinkSlog, cfg.LogSink.Type)
	assert.Equal(t, "forgepack.logs", cfg.LogSink.Subject)
}

func TestEmptyDocumentGetsDefaults(t *testing.T) {
	cfg, err := Parse(nil)
	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.DevServer.BasePort)
}

func TestInlineMainConfig(t *testing.T) {
	cfg, err := Parse([]byte("mainConfig:\n  entry: ./src/main.js\n  external: [sqlite3]\n"))
	require.NoError(t, err)
	m, ok := cfg.MainConfig.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "./src/main.js", m["entry"])
}

func TestEnvExpansionAndDotEnv(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("FORGEPACK_TEST_PORT=5000\nFORGEPACK_TEST_SUBJECT=from-env-file\n"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env.local"), []byte("FORGEPACK_TEST_PORT=5100\n"), 0o600))
	t.Setenv("FORGEPACK_TEST_SUBJECT", "from-process")
	t.Cleanup(func() { _ = os.Unsetenv("FORGEPACK_TEST_PORT") })

	cfg, err := Load(writeConfig(t, dir, "devServer:\n  basePort: ${FORGEPACK_TEST_PORT}\nlogSink:\n  subject: ${FORGEPACK_TEST_SUBJECT}\n"))
	require.NoError(t, err)
	assert.Equal(t, 5100, cfg.DevServer.BasePort)
	assert.Equal(t, "from-process", cfg.LogSink.Subject)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), DefaultFile))
	require.Error(t, err)
	assert.True(t, ferrors.IsConfigResolution(err))
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name     string
		doc      string
		category ferrors.ErrorCategory
		option   string
	}{
		{"malformed yaml", "renderer: [", ferrors.CategoryConfig, ""},
		{"unknown key", "mainconfig: {}\n", ferrors.CategoryConfig, ""},
		{"port out of range", "devServer:\n  basePort: 70000\n", ferrors.CategoryValidation, "devServer.basePort"},
		{"unknown sink", "logSink:\n  type: kafka\n", ferrors.CategoryValidation, "logSink.type"},
		{"nats without url", "logSink:\n  type: NATS\n", ferrors.CategoryValidation, "logSink.natsURL"},
		{"unknown backoff", "logSink:\n  retry:\n    backoff: random\n", ferrors.CategoryValidation, "logSink.retry.backoff"},
		{"negative retries", "logSink:\n  retry:\n    maxRetries: -1\n", ferrors.CategoryValidation, "logSink.retry.maxRetries"},
		{"empty prefixed entry", "renderer:\n  prefixedEntries: ['']\n", ferrors.CategoryValidation, "renderer.prefixedEntries"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			require.Error(t, err)
			assert.Equal(t, tt.category, ferrors.GetCategory(err))
			if tt.option != "" {
				c, ok := ferrors.AsClassified(err)
				require.True(t, ok)
				opt, _ := c.Context().GetString("option")
				assert.Equal(t, tt.option, opt)
			}
		})
	}
}

func TestNATSSinkConfig(t *testing.T) {
	cfg, err := Parse([]byte("logSink:\n  type: nats\n  natsURL: nats://127.0.0.1:4222\n"))
	require.NoError(t, err)
	assert.Equal(t, SinkNATS, cfg.LogSink.Type)
	assert.Equal(t, retry.DefaultPolicy(), cfg.LogSink.Retry.Policy())
}

func TestNATSRetryConfig(t *testing.T) {
	doc := "logSink:\n  type: nats\n  natsURL: nats://127.0.0.1:4222\n  retry:\n    backoff: Exponential\n    initial: 100ms\n    max: 2s\n    maxRetries: 4\n"
	cfg, err := Parse([]byte(doc))
	require.NoError(t, err)
	p := cfg.LogSink.Retry.Policy()
	assert.Equal(t, retry.BackoffExponential, p.Mode)
	assert.Equal(t, 100*time.Millisecond, p.Initial)
	assert.Equal(t, 2*time.Second, p.Max)
	assert.Equal(t, 4, p.MaxRetries)
}

func TestLogLevelMapping(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, NormalizeLogLevel("Debug").SlogLevel())
	assert.Equal(t, slog.LevelWarn, NormalizeLogLevel("warning").SlogLevel())
	assert.Equal(t, slog.LevelInfo, NormalizeLogLevel("verbose").SlogLevel())
	assert.Equal(t, LogFormatText, NormalizeLogFormat("pretty"))
}
