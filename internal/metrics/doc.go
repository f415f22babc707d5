// Package metrics provides the observability hooks of publish runs.
//
// Components receive a Recorder through dependency injection and default to
// NoopRecorder, so metrics collection never needs nil checks:
//
//	recorder := metrics.NewPrometheusRecorder(registry)
//	publisher := publish.NewPublisher(store, catalog, publish.WithRecorder(recorder))
//
// The registry is exposed over HTTP with HTTPHandler.
package metrics
