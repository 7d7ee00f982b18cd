package metrics

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNoopProviderDiscardsEverything(t *testing.T) {
	p := NewNoopProvider()
	c := p.NewCounter(CounterOpts{CommonOpts{Name: "test_counter"}})
	c.Inc(5)
	require.NoError(t, p.Health(context.Background()))
}

func TestPrometheusProviderRegistersAndReusesMetrics(t *testing.T) {
	p := NewPrometheusProvider(PrometheusProviderOptions{Namespace: "test"})

	c1 := p.NewCounter(CounterOpts{CommonOpts{Name: "readings_total", Labels: []string{"hardware_id"}}})
	c2 := p.NewCounter(CounterOpts{CommonOpts{Name: "readings_total", Labels: []string{"hardware_id"}}})
	c1.Inc(1, "device-1")
	c2.Inc(2, "device-1")

	require.NoError(t, p.Health(context.Background()))
}

func TestPrometheusProviderRejectsInvalidName(t *testing.T) {
	p := NewPrometheusProvider(PrometheusProviderOptions{})
	c := p.NewCounter(CounterOpts{CommonOpts{Name: ""}})
	c.Inc(1)
	assert.IsType(t, noopCounter{}, c)
}

func TestOTelProviderBuildsInstrumentsWithoutError(t *testing.T) {
	p := NewOTelProvider(OTelProviderOptions{ServiceName: "dirt-man-test"})
	counter := p.NewCounter(CounterOpts{CommonOpts{Name: "events_detected", Labels: []string{"event_type"}}})
	gauge := p.NewGauge(GaugeOpts{CommonOpts{Name: "pending_requests"}})
	hist := p.NewHistogram(HistogramOpts{CommonOpts: CommonOpts{Name: "generation_duration_seconds"}})

	counter.Inc(1, "Watering_Event")
	gauge.Set(4)
	hist.Observe(0.42)

	require.NoError(t, p.Health(context.Background()))
}
