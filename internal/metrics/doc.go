// Package metrics provides observability hooks for release and stage metrics.
//
// The package implements the Null Object pattern: components receive a
// Recorder through dependency injection and default to NoopRecorder, so
// metrics collection needs no nil checks at call sites and costs nothing
// when disabled.
//
//	recorder := metrics.Recorder(metrics.NoopRecorder{})
//	if cfg.Metrics.Enabled {
//	    recorder = metrics.NewPrometheusRecorder(registry)
//	}
//
// The Prometheus implementation registers all collectors under the
// "wheelwright" namespace; HTTPHandler exposes the registry for scraping
// from the daemon's admin listener.
package metrics
