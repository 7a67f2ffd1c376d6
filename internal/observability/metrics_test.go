package observability

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
)

func TestSimCollectorObserveStep(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := NewSimCollector(reg)
	if err != nil {
		t.Fatalf("NewSimCollector: %v", err)
	}

	collector.ObserveStep(2*time.Millisecond, 2, map[string]int{"Efficient": 3, "Moderate": 1})
	collector.ObserveStep(time.Millisecond, 0, map[string]int{"Moderate": 4})

	if got := testutil.ToFloat64(collector.StepsTotal); got != 2 {
		t.Fatalf("airspace_steps_total = %v, want 2", got)
	}
	if got := testutil.ToFloat64(collector.CollisionsTotal); got != 2 {
		t.Fatalf("airspace_collisions_total = %v, want 2", got)
	}
	if got := testutil.ToFloat64(collector.AircraftByFuelBand.WithLabelValues("Moderate")); got != 4 {
		t.Fatalf("fuel band Moderate = %v, want 4", got)
	}
	// The second step had no Efficient aircraft, so the gauge is gone.
	if got := testutil.CollectAndCount(collector.AircraftByFuelBand); got != 1 {
		t.Fatalf("fuel band series = %d, want 1", got)
	}
	if count := histogramSampleCount(t, reg, "airspace_step_duration_seconds", nil); count != 2 {
		t.Fatalf("airspace_step_duration_seconds sample_count = %d, want 2", count)
	}
}

func TestSimCollectorReRegisterReturnsExisting(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, err := NewSimCollector(reg)
	if err != nil {
		t.Fatalf("NewSimCollector: %v", err)
	}
	second, err := NewSimCollector(reg)
	if err != nil {
		t.Fatalf("second NewSimCollector: %v", err)
	}
	first.IncStepFailures()
	if got := testutil.ToFloat64(second.StepFailuresTotal); got != 1 {
		t.Fatalf("re-registered collector did not share counter: %v", got)
	}
}

func TestNilSimCollectorIsSafe(t *testing.T) {
	var c *SimCollector
	c.ObserveStep(time.Second, 1, nil)
	c.IncStepFailures()
	c.SetAircraftRegistered(3)
	if c.Gatherer() != nil {
		t.Fatalf("nil collector Gatherer should be nil")
	}
}

func TestCorrectionCollector(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := NewCorrectionCollector(reg)
	if err != nil {
		t.Fatalf("NewCorrectionCollector: %v", err)
	}
	collector.ObserveCorrection(time.Millisecond, true)
	collector.ObserveCorrection(time.Millisecond, false)
	collector.ObserveCorrection(time.Millisecond, false)

	if got := testutil.ToFloat64(collector.CorrectionsTotal.WithLabelValues("false")); got != 2 {
		t.Fatalf("corrections changed=false = %v, want 2", got)
	}
	if count := histogramSampleCount(t, reg, "airspace_velocity_correction_duration_seconds", nil); count != 3 {
		t.Fatalf("correction duration sample_count = %d, want 3", count)
	}
}

func TestMetricsHandlerExposesSimulationMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := NewSimCollector(reg)
	if err != nil {
		t.Fatalf("NewSimCollector: %v", err)
	}
	collector.SetAircraftRegistered(7)
	collector.ObserveStep(time.Millisecond, 1, map[string]int{"Efficient": 7})

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	collector.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("/metrics status = %d, want 200", rr.Code)
	}
	body := rr.Body.String()
	for _, metric := range []string{
		"airspace_steps_total",
		"airspace_step_duration_seconds",
		"airspace_collisions_total",
		"airspace_aircraft_registered 7",
		`airspace_aircraft_fuel_band{band="Efficient"} 7`,
	} {
		if !strings.Contains(body, metric) {
			t.Fatalf("expected %q in /metrics output:\n%s", metric, body)
		}
	}
}

func histogramSampleCount(t *testing.T, gatherer prometheus.Gatherer, name string, labels map[string]string) uint64 {
	t.Helper()

	metrics, err := gatherer.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	for _, mf := range metrics {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.Metric {
			if matchLabels(m.GetLabel(), labels) && m.GetHistogram() != nil {
				return m.GetHistogram().GetSampleCount()
			}
		}
	}
	return 0
}

func matchLabels(got []*dto.LabelPair, want map[string]string) bool {
	if len(got) < len(want) {
		return false
	}
	matched := 0
	for _, lp := range got {
		if val, ok := want[lp.GetName()]; ok && val == lp.GetValue() {
			matched++
		}
	}
	return matched == len(want)
}
