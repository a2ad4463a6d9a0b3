package metrics

import (
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

const namespace = "docexport"

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	registry       *prom.Registry
	targetDuration *prom.HistogramVec
	targetResults  *prom.CounterVec
	stageDuration  *prom.HistogramVec
	assetResults   *prom.CounterVec
	inFlight       prom.Gauge
}

// Compile-time interface check.
var _ Recorder = (*PrometheusRecorder)(nil)

// NewPrometheusRecorder constructs metrics and registers them on reg.
// A nil reg gets a fresh registry.
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{
		registry: reg,
		targetDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "target_duration_seconds",
			Help:      "Duration of export target executions",
			Buckets:   prom.DefBuckets,
		}, []string{"format"}),
		targetResults: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "target_results_total",
			Help:      "Export target results by format and outcome",
		}, []string{"format", "result"}),
		stageDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Duration of individual pipeline stages",
			Buckets:   prom.DefBuckets,
		}, []string{"stage"}),
		assetResults: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "asset_results_total",
			Help:      "Materialized asset results",
		}, []string{"result"}),
		inFlight: prom.NewGauge(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "targets_in_flight",
			Help:      "Export targets currently executing",
		}),
	}
	reg.MustRegister(pr.targetDuration, pr.targetResults, pr.stageDuration, pr.assetResults, pr.inFlight)
	return pr
}

// Registry returns the registry the metrics are registered on.
func (p *PrometheusRecorder) Registry() *prom.Registry { return p.registry }

// WriteTextfile writes the current metrics in text exposition format,
// suitable for the node exporter textfile collector.
func (p *PrometheusRecorder) WriteTextfile(path string) error {
	return prom.WriteToTextfile(path, p.registry)
}

func (p *PrometheusRecorder) ObserveTargetDuration(format string, d time.Duration) {
	if p == nil {
		return
	}
	p.targetDuration.WithLabelValues(format).Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncTargetResult(format string, result ResultLabel) {
	if p == nil {
		return
	}
	p.targetResults.WithLabelValues(format, string(result)).Inc()
}

func (p *PrometheusRecorder) ObserveStageDuration(stage string, d time.Duration) {
	if p == nil {
		return
	}
	p.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncAssetResult(success bool) {
	if p == nil {
		return
	}
	res := ResultFailure
	if success {
		res = ResultSuccess
	}
	p.assetResults.WithLabelValues(string(res)).Inc()
}

func (p *PrometheusRecorder) SetInFlightTargets(n int) {
	if p == nil {
		return
	}
	p.inFlight.Set(float64(n))
}
