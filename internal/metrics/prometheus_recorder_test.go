package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

func TestPrometheusRecorder(t *testing.T) {
	reg := prom.NewRegistry()
	pr := NewPrometheusRecorder(reg)
	pr.ObserveCompileDuration("main", "production", 150*time.Millisecond)
	pr.IncCompileResult("main", "production", ResultSuccess)
	pr.IncPipelineOutcome("production", "success")
	pr.SetDevServers(2)
	pr.IncLiveReloadBroadcast("Main Window")

	mfs, err := reg.Gather()
	require.NoError(t, err)
	require.Len(t, mfs, 5)
}

func TestHTTPHandler_ServesRegistry(t *testing.T) {
	reg := prom.NewRegistry()
	NewPrometheusRecorder(reg).IncCompileResult("settings", "development", ResultFailed)

	srv := httptest.NewServer(HTTPHandler(reg))
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.True(t, strings.Contains(string(body), `forgepack_compile_results_total{mode="development",result="failed",target="settings"} 1`),
		"unexpected scrape output:\n%s", body)
}

func TestNilPrometheusRecorderIsSafe(t *testing.T) {
	var pr *PrometheusRecorder
	pr.ObserveCompileDuration("main", "production", time.Second)
	pr.SetDevServers(1)
}

var _ Recorder = NoopRecorder{}
var _ Recorder = (*PrometheusRecorder)(nil)
