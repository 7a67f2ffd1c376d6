package observability

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SimCollector bundles Prometheus metrics for the simulation engine and
// airspace registry, and exposes them over HTTP.
type SimCollector struct {
	gatherer prometheus.Gatherer

	StepsTotal        prometheus.Counter
	StepFailuresTotal prometheus.Counter
	StepDurations     prometheus.Histogram
	CollisionsTotal   prometheus.Counter

	AircraftRegistered prometheus.Gauge
	AircraftByFuelBand *prometheus.GaugeVec
}

// NewSimCollector registers simulation metrics against the provided
// registerer, defaulting to the global Prometheus registry when nil.
func NewSimCollector(reg prometheus.Registerer) (*SimCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	steps, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "airspace_steps_total",
		Help: "Total number of committed simulation steps.",
	}), "airspace_steps_total")
	if err != nil {
		return nil, err
	}
	failures, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "airspace_step_failures_total",
		Help: "Total number of simulation steps aborted and rolled back.",
	}), "airspace_step_failures_total")
	if err != nil {
		return nil, err
	}
	durations, err := registerHistogram(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "airspace_step_duration_seconds",
		Help:    "Wall-clock duration of a simulation step, including velocity corrections.",
		Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 30},
	}), "airspace_step_duration_seconds")
	if err != nil {
		return nil, err
	}
	collisions, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "airspace_collisions_total",
		Help: "Total number of conflicting aircraft pairs detected and resolved.",
	}), "airspace_collisions_total")
	if err != nil {
		return nil, err
	}
	registered, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "airspace_aircraft_registered",
		Help: "Current number of aircraft in the airspace registry.",
	}), "airspace_aircraft_registered")
	if err != nil {
		return nil, err
	}
	bands, err := registerGaugeVec(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "airspace_aircraft_fuel_band",
		Help: "Number of aircraft in each fuel band after the latest step.",
	}, []string{"band"}), "airspace_aircraft_fuel_band")
	if err != nil {
		return nil, err
	}

	return &SimCollector{
		gatherer:           gatherer,
		StepsTotal:         steps,
		StepFailuresTotal:  failures,
		StepDurations:      durations,
		CollisionsTotal:    collisions,
		AircraftRegistered: registered,
		AircraftByFuelBand: bands,
	}, nil
}

// Handler exposes a ready-to-use /metrics handler.
func (c *SimCollector) Handler() http.Handler {
	gatherer := c.gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// Gatherer returns the Prometheus gatherer associated with the collector.
func (c *SimCollector) Gatherer() prometheus.Gatherer {
	if c == nil {
		return nil
	}
	return c.gatherer
}

// ObserveStep records one committed step. bandCounts replaces the fuel band
// gauges wholesale; bands absent from the map are reset to zero.
func (c *SimCollector) ObserveStep(d time.Duration, collisions int, bandCounts map[string]int) {
	if c == nil {
		return
	}
	if c.StepsTotal != nil {
		c.StepsTotal.Inc()
	}
	if c.StepDurations != nil {
		c.StepDurations.Observe(d.Seconds())
	}
	if c.CollisionsTotal != nil && collisions > 0 {
		c.CollisionsTotal.Add(float64(collisions))
	}
	if c.AircraftByFuelBand != nil {
		c.AircraftByFuelBand.Reset()
		for band, n := range bandCounts {
			c.AircraftByFuelBand.WithLabelValues(band).Set(float64(n))
		}
	}
}

// IncStepFailures counts a step that was rolled back.
func (c *SimCollector) IncStepFailures() {
	if c == nil || c.StepFailuresTotal == nil {
		return
	}
	c.StepFailuresTotal.Inc()
}

// SetAircraftRegistered updates the registry size gauge.
func (c *SimCollector) SetAircraftRegistered(count int) {
	if c == nil || c.AircraftRegistered == nil {
		return
	}
	c.AircraftRegistered.Set(float64(count))
}

func registerCounter(reg prometheus.Registerer, counter prometheus.Counter, name string) (prometheus.Counter, error) {
	if err := reg.Register(counter); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return counter, nil
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerHistogram(reg prometheus.Registerer, hist prometheus.Histogram, name string) (prometheus.Histogram, error) {
	if err := reg.Register(hist); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Histogram); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return hist, nil
}

func registerGauge(reg prometheus.Registerer, gauge prometheus.Gauge, name string) (prometheus.Gauge, error) {
	if err := reg.Register(gauge); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Gauge); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return gauge, nil
}

func registerGaugeVec(reg prometheus.Registerer, vec *prometheus.GaugeVec, name string) (*prometheus.GaugeVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.GaugeVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}
