package harness

import (
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/YuminosukeSato/churnscope/pkg/errors"
)

// Metrics collects per-run gauges on a private registry so that several
// harness runs in one process do not collide.
type Metrics struct {
	registry *prometheus.Registry

	stepDuration *prometheus.GaugeVec
	stepSuccess  *prometheus.GaugeVec
	modelAUC     *prometheus.GaugeVec
	runState     prometheus.Gauge
}

// NewMetrics registers the harness gauges on a fresh registry.
func NewMetrics(runID string) *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	labels := prometheus.Labels{"run_id": runID}

	return &Metrics{
		registry: reg,
		stepDuration: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace:   "churnscope",
			Subsystem:   "harness",
			Name:        "step_duration_seconds",
			Help:        "Wall time of each verification step",
			ConstLabels: labels,
		}, []string{"step"}),
		stepSuccess: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace:   "churnscope",
			Subsystem:   "harness",
			Name:        "step_success",
			Help:        "1 if the verification step passed, 0 if it failed",
			ConstLabels: labels,
		}, []string{"step"}),
		modelAUC: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace:   "churnscope",
			Subsystem:   "model",
			Name:        "auc",
			Help:        "ROC AUC of a trained model",
			ConstLabels: labels,
		}, []string{"model", "split"}),
		runState: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   "churnscope",
			Subsystem:   "harness",
			Name:        "state",
			Help:        "Furthest state reached, 0 (not-started) to 6 (done)",
			ConstLabels: labels,
		}),
	}
}

// ObserveStep records the outcome of one step.
func (m *Metrics) ObserveStep(step string, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.stepDuration.WithLabelValues(step).Set(d.Seconds())
	ok := 1.0
	if err != nil {
		ok = 0
	}
	m.stepSuccess.WithLabelValues(step).Set(ok)
}

// ObserveAUC records a model's train and test AUC.
func (m *Metrics) ObserveAUC(model string, train, test float64) {
	if m == nil {
		return
	}
	m.modelAUC.WithLabelValues(model, "train").Set(train)
	m.modelAUC.WithLabelValues(model, "test").Set(test)
}

// ObserveState records the furthest state reached.
func (m *Metrics) ObserveState(s State) {
	if m == nil {
		return
	}
	m.runState.Set(float64(s))
}

// Registry exposes the underlying registry, e.g. for a push gateway.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// WriteTextfile writes the gauges in the node-exporter textfile format.
func (m *Metrics) WriteTextfile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrapf(err, "create metrics directory for %s", path)
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return errors.Wrapf(err, "write metrics textfile %s", path)
	}
	return nil
}
