package metrics

import (
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	compileDuration *prom.HistogramVec
	compileResults  *prom.CounterVec
	pipelineOutcome *prom.CounterVec
	devServers      prom.Gauge
	liveReloads     *prom.CounterVec
}

// NewPrometheusRecorder constructs the collectors and registers them on reg.
// A nil registry gets a fresh one.
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{
		compileDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: "forgepack",
			Name:      "compile_duration_seconds",
			Help:      "Duration of individual target compilations",
			Buckets:   prom.DefBuckets,
		}, []string{"target", "mode"}),
		compileResults: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "forgepack",
			Name:      "compile_results_total",
			Help:      "Compilation results by target and outcome",
		}, []string{"target", "mode", "result"}),
		pipelineOutcome: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "forgepack",
			Name:      "pipeline_outcomes_total",
			Help:      "Pipeline outcomes by mode",
		}, []string{"mode", "outcome"}),
		devServers: prom.NewGauge(prom.GaugeOpts{
			Namespace: "forgepack",
			Name:      "dev_servers",
			Help:      "Renderer dev servers currently serving",
		}),
		liveReloads: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "forgepack",
			Name:      "livereload_broadcasts_total",
			Help:      "Live-update notifications pushed per entry point",
		}, []string{"entry"}),
	}
	reg.MustRegister(pr.compileDuration, pr.compileResults, pr.pipelineOutcome, pr.devServers, pr.liveReloads)
	return pr
}

func (p *PrometheusRecorder) ObserveCompileDuration(target, mode string, d time.Duration) {
	if p == nil {
		return
	}
	p.compileDuration.WithLabelValues(target, mode).Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncCompileResult(target, mode string, result ResultLabel) {
	if p == nil {
		return
	}
	p.compileResults.WithLabelValues(target, mode, string(result)).Inc()
}

func (p *PrometheusRecorder) IncPipelineOutcome(mode, outcome string) {
	if p == nil {
		return
	}
	p.pipelineOutcome.WithLabelValues(mode, outcome).Inc()
}

func (p *PrometheusRecorder) SetDevServers(n int) {
	if p == nil {
		return
	}
	p.devServers.Set(float64(n))
}

func (p *PrometheusRecorder) IncLiveReloadBroadcast(entry string) {
	if p == nil {
		return
	}
	p.liveReloads.WithLabelValues(entry).Inc()
}
