// Package metrics provides the observability hooks for compilations, dev servers
// and pipeline outcomes.
//
// Components receive a Recorder through dependency injection and default to
// NoopRecorder, so metrics collection never needs nil checks:
//
//	runner := compiler.NewRunner(engine, compiler.WithRecorder(metrics.NewPrometheusRecorder(reg)))
//
// PrometheusRecorder registers its collectors on the supplied registry and
// HTTPHandler exposes that registry for scraping.
package metrics
