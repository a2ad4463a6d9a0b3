// Package metrics records export outcomes.
//
// Components receive a Recorder through injection and default to
// NoopRecorder, so no call site checks for nil. PrometheusRecorder backs the
// interface with a Prometheus registry; the CLI writes that registry to a
// textfile after an export when asked to.
package metrics
