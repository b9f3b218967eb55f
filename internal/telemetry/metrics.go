package telemetry

import (
	"fmt"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

// Metrics holds the orchestration pipeline instruments.
type Metrics struct {
	Ticks           metric.Int64Counter
	Dispatches      metric.Int64Counter
	WorkerFailures  metric.Int64Counter
	Impasses        metric.Int64Counter
	Escalations     metric.Int64Counter
	SweptPheromones metric.Int64Counter
	TokensUsed      metric.Int64Counter
}

// NewMetrics registers the pipeline instruments on the given meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}
	var err error

	if m.Ticks, err = meter.Int64Counter("swarmd.orchestrator.ticks",
		metric.WithDescription("Orchestration loop ticks")); err != nil {
		return nil, fmt.Errorf("creating ticks counter: %w", err)
	}
	if m.Dispatches, err = meter.Int64Counter("swarmd.orchestrator.dispatches",
		metric.WithDescription("Tasks dispatched to workers")); err != nil {
		return nil, fmt.Errorf("creating dispatches counter: %w", err)
	}
	if m.WorkerFailures, err = meter.Int64Counter("swarmd.worker.failures",
		metric.WithDescription("Worker failures routed to the escalation controller")); err != nil {
		return nil, fmt.Errorf("creating failures counter: %w", err)
	}
	if m.Impasses, err = meter.Int64Counter("swarmd.worker.impasses",
		metric.WithDescription("Self-reported worker impasses")); err != nil {
		return nil, fmt.Errorf("creating impasses counter: %w", err)
	}
	if m.Escalations, err = meter.Int64Counter("swarmd.escalations.human_review",
		metric.WithDescription("Tasks escalated to human review")); err != nil {
		return nil, fmt.Errorf("creating escalations counter: %w", err)
	}
	if m.SweptPheromones, err = meter.Int64Counter("swarmd.pheromones.swept",
		metric.WithDescription("Expired pheromones removed by sweeps")); err != nil {
		return nil, fmt.Errorf("creating sweep counter: %w", err)
	}
	if m.TokensUsed, err = meter.Int64Counter("swarmd.llm.tokens",
		metric.WithDescription("Model tokens consumed")); err != nil {
		return nil, fmt.Errorf("creating tokens counter: %w", err)
	}
	return m, nil
}

// NopMetrics returns instruments backed by a no-op meter.
func NopMetrics() *Metrics {
	m, _ := NewMetrics(noop.NewMeterProvider().Meter("swarmd"))
	return m
}
