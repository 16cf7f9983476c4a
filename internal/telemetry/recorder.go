package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/aiforce-discovery-agent/collectors/scan-console/internal/scan"
)

// Outcome result attribute values.
const (
	ResultFailure = "failure"
	ResultClean   = "clean"
	ResultThreats = "threats"
)

// Recorder counts settled scans and records their duration.
type Recorder struct {
	outcomes metric.Int64Counter
	threats  metric.Int64Counter
	duration metric.Float64Histogram
}

// NewRecorder creates the scan instruments on meter.
func NewRecorder(meter metric.Meter) (*Recorder, error) {
	outcomes, err := meter.Int64Counter("scan.outcomes",
		metric.WithDescription("Settled scans by kind and result"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating outcomes counter: %w", err)
	}

	threats, err := meter.Int64Counter("scan.threats",
		metric.WithDescription("Threats reported by the scan service"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating threats counter: %w", err)
	}

	duration, err := meter.Float64Histogram("scan.duration",
		metric.WithDescription("Time from dispatch to settlement"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating duration histogram: %w", err)
	}

	return &Recorder{outcomes: outcomes, threats: threats, duration: duration}, nil
}

// RecordOutcome records one settled scan.
func (r *Recorder) RecordOutcome(ctx context.Context, kind scan.Kind, outcome scan.Outcome, elapsed time.Duration) {
	result := Result(outcome)
	attrs := metric.WithAttributes(
		attribute.String("kind", string(kind)),
		attribute.String("result", result),
	)

	r.outcomes.Add(ctx, 1, attrs)
	r.duration.Record(ctx, elapsed.Seconds(), attrs)
	if result == ResultThreats {
		r.threats.Add(ctx, int64(outcome.Count), metric.WithAttributes(attribute.String("kind", string(kind))))
	}
}

// Result classifies an outcome the same way the results area does.
func Result(o scan.Outcome) string {
	switch {
	case o.Failed():
		return ResultFailure
	case scan.HasNoThreats(o):
		return ResultClean
	default:
		return ResultThreats
	}
}
