package telemetry

import (
	"context"
	"testing"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// TestMetrics is a Metrics set backed by a manual reader so tests can
// assert on recorded values.
type TestMetrics struct {
	*Metrics
	reader *sdkmetric.ManualReader
}

// NewTestMetrics creates instruments on an in-memory meter provider.
func NewTestMetrics(tb testing.TB) *TestMetrics {
	tb.Helper()
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	m, err := NewMetrics(provider.Meter("swarmd/test"))
	if err != nil {
		tb.Fatalf("creating test metrics: %v", err)
	}
	return &TestMetrics{Metrics: m, reader: reader}
}

// CounterValue returns the summed value of a named counter, zero if the
// instrument recorded nothing.
func (t *TestMetrics) CounterValue(tb testing.TB, name string) int64 {
	tb.Helper()
	var rm metricdata.ResourceMetrics
	if err := t.reader.Collect(context.Background(), &rm); err != nil {
		tb.Fatalf("collecting metrics: %v", err)
	}
	var total int64
	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			if m.Name != name {
				continue
			}
			if sum, ok := m.Data.(metricdata.Sum[int64]); ok {
				for _, dp := range sum.DataPoints {
					total += dp.Value
				}
			}
		}
	}
	return total
}
