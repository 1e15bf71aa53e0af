// Package metrics mirrors reporter outcomes into Prometheus collectors so a
// run can be exported in the node_exporter textfile format.
package metrics

import (
	"context"

	"github.com/chainguard-dev/clog"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/daryltucker/gotest-jtl/internal/model"
)

const Namespace = "gotest_jtl"

// Metrics holds the collectors of one run on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	testsTotal       *prometheus.CounterVec
	testDuration     prometheus.Histogram
	diagnosticsTotal prometheus.Counter
	lastRun          *prometheus.GaugeVec
}

// New registers the run collectors on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		testsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "tests_total",
			Help:      "Count of reported tests by outcome",
		}, []string{"outcome"}),
		testDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "test_duration_seconds",
			Help:      "Elapsed time of reported tests",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
		}),
		diagnosticsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "diagnostics_total",
			Help:      "Count of diagnostic entries written for failed and errored tests",
		}),
		lastRun: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the run finished",
		}, []string{"run_id"}),
	}
	m.registry.MustRegister(m.testsTotal, m.testDuration, m.diagnosticsTotal, m.lastRun)
	return m
}

// ObserveSample records one finished sample.
func (m *Metrics) ObserveSample(_ context.Context, s *model.Sample) {
	m.testsTotal.WithLabelValues(s.ResponseCode.Outcome()).Inc()
	m.testDuration.Observe(float64(s.ElapsedMs) / 1000)
	if s.ResponseCode.IsProblem() {
		m.diagnosticsTotal.Inc()
	}
}

// MarkFinished sets the last-run gauge for runID.
func (m *Metrics) MarkFinished(runID string, unixSeconds float64) {
	m.lastRun.WithLabelValues(runID).Set(unixSeconds)
}

// Registry exposes the private registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// WriteTextfile writes all collectors to path atomically.
func (m *Metrics) WriteTextfile(ctx context.Context, path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return err
	}
	clog.FromContext(ctx).Debug("Metrics written", "path", path)
	return nil
}
