package metrics

import "time"

// ResultLabel enumerates compilation result categories for counters.
type ResultLabel string

const (
	ResultSuccess ResultLabel = "success"
	ResultFailed  ResultLabel = "failed"
	ResultError   ResultLabel = "error" // engine error or panic, not a diagnosed failure
)

// Recorder defines observability hooks for the build orchestrator.
type Recorder interface {
	ObserveCompileDuration(target, mode string, d time.Duration)
	IncCompileResult(target, mode string, result ResultLabel)
	IncPipelineOutcome(mode, outcome string) // outcome: success|failed
	SetDevServers(n int)
	IncLiveReloadBroadcast(entry string)
}

// NoopRecorder is a Recorder that does nothing (default when metrics not configured).
type NoopRecorder struct{}

func (NoopRecorder) ObserveCompileDuration(string, string, time.Duration) {}
func (NoopRecorder) IncCompileResult(string, string, ResultLabel)         {}
func (NoopRecorder) IncPipelineOutcome(string, string)                    {}
func (NoopRecorder) SetDevServers(int)                                    {}
func (NoopRecorder) IncLiveReloadBroadcast(string)                        {}
