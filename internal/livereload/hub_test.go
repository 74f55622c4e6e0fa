package livereload

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func connect(t *testing.T, url string) (*bufio.Reader, context.CancelFunc) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))
	return bufio.NewReader(resp.Body), cancel
}

// nextData returns the payload of the next data event.
func nextData(t *testing.T, r *bufio.Reader) string {
	t.Helper()
	for {
		line, err := r.ReadString('\n')
		require.NoError(t, err)
		if strings.HasPrefix(line, "data: ") {
			return strings.TrimSpace(strings.TrimPrefix(line, "data: "))
		}
	}
}

func waitClients(t *testing.T, h *Hub, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return h.Clients() == n }, 2*time.Second, 10*time.Millisecond)
}

func TestHubBroadcast(t *testing.T) {
	var sent atomic.Int32
	h := NewHub(func() { sent.Add(1) })
	srv := httptest.NewServer(h)
	defer srv.Close()
	defer h.Shutdown()

	r, cancel := connect(t, srv.URL)
	defer cancel()
	waitClients(t, h, 1)

	h.Broadcast("build-1")
	assert.Equal(t, "build-1", nextData(t, r))

	h.Broadcast("build-1") // duplicate ignored
	h.BroadcastFailure("build-2")
	assert.Equal(t, "error:build-2", nextData(t, r))
	assert.Equal(t, int32(2), sent.Load())
}

func TestHubSendsLastSuccessOnConnect(t *testing.T) {
	h := NewHub(nil)
	srv := httptest.NewServer(h)
	defer srv.Close()
	defer h.Shutdown()

	h.Broadcast("build-1")
	h.BroadcastFailure("build-2")

	r, cancel := connect(t, srv.URL)
	defer cancel()
	assert.Equal(t, "build-1", nextData(t, r))
}

func TestHubShutdown(t *testing.T) {
	h := NewHub(nil)
	srv := httptest.NewServer(h)
	defer srv.Close()

	_, cancel := connect(t, srv.URL)
	defer cancel()
	waitClients(t, h, 1)

	h.Shutdown()
	h.Shutdown()
	assert.Equal(t, 0, h.Clients())

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestClientScriptTargetsHub(t *testing.T) {
	assert.Contains(t, ClientScript, `new EventSource("/livereload")`)
	assert.Contains(t, ClientScript, `"error:"`)
}
