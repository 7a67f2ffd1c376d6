package observability

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// CorrectionCollector exposes metrics for the pilot velocity-correction hook.
type CorrectionCollector struct {
	gatherer prometheus.Gatherer

	CorrectionDuration prometheus.Histogram
	CorrectionsTotal   *prometheus.CounterVec
}

// NewCorrectionCollector registers correction metrics against the provided registerer.
func NewCorrectionCollector(reg prometheus.Registerer) (*CorrectionCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	hist := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "airspace_velocity_correction_duration_seconds",
		Help:    "Time spent waiting on the velocity-correction hook for one aircraft.",
		Buckets: []float64{0.00001, 0.0001, 0.001, 0.01, 0.1, 1, 5, 30, 120},
	})
	hist, err := registerHistogram(reg, hist, "airspace_velocity_correction_duration_seconds")
	if err != nil {
		return nil, err
	}

	total := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "airspace_velocity_corrections_total",
		Help: "Velocity-correction hook calls, labeled by whether the velocity changed.",
	}, []string{"changed"})
	total, err = registerCounterVec(reg, total, "airspace_velocity_corrections_total")
	if err != nil {
		return nil, err
	}

	return &CorrectionCollector{
		gatherer:           gatherer,
		CorrectionDuration: hist,
		CorrectionsTotal:   total,
	}, nil
}

// Gatherer returns the Prometheus gatherer associated with the collector.
func (c *CorrectionCollector) Gatherer() prometheus.Gatherer {
	if c == nil {
		return nil
	}
	return c.gatherer
}

// ObserveCorrection records one hook call.
func (c *CorrectionCollector) ObserveCorrection(d time.Duration, changed bool) {
	if c == nil {
		return
	}
	if c.CorrectionDuration != nil {
		c.CorrectionDuration.Observe(d.Seconds())
	}
	if c.CorrectionsTotal != nil {
		c.CorrectionsTotal.WithLabelValues(strconv.FormatBool(changed)).Inc()
	}
}
