package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.uber.org/zap"

	"github.com/aiforce-discovery-agent/collectors/scan-console/internal/config"
	"github.com/aiforce-discovery-agent/collectors/scan-console/internal/scan"
)

func newTestRecorder(t *testing.T) (*Recorder, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	r, err := NewRecorder(mp.Meter("test"))
	require.NoError(t, err)
	return r, reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	out := make(map[string]metricdata.Metrics)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m
		}
	}
	return out
}

func TestResult(t *testing.T) {
	assert.Equal(t, ResultFailure, Result(scan.Failure("boom")))
	assert.Equal(t, ResultClean, Result(scan.Success(nil, 0)))
	assert.Equal(t, ResultClean, Result(scan.Success(nil, 5)))
	assert.Equal(t, ResultThreats, Result(scan.Success([]scan.Threat{{}, {}}, 2)))
}

func TestRecordOutcome(t *testing.T) {
	r, reader := newTestRecorder(t)
	ctx := context.Background()

	r.RecordOutcome(ctx, scan.KindText, scan.Success([]scan.Threat{{}, {}}, 2), 150*time.Millisecond)
	r.RecordOutcome(ctx, scan.KindText, scan.Success([]scan.Threat{{}}, 1), 50*time.Millisecond)
	r.RecordOutcome(ctx, scan.KindFile, scan.Failure("boom"), time.Second)
	r.RecordOutcome(ctx, scan.KindFile, scan.Success(nil, 4), time.Second)

	metrics := collect(t, reader)

	outcomes, ok := metrics["scan.outcomes"].Data.(metricdata.Sum[int64])
	require.True(t, ok)
	counts := make(map[string]int64)
	for _, dp := range outcomes.DataPoints {
		kind, _ := dp.Attributes.Value(attribute.Key("kind"))
		result, _ := dp.Attributes.Value(attribute.Key("result"))
		counts[kind.AsString()+"/"+result.AsString()] = dp.Value
	}
	assert.Equal(t, map[string]int64{
		"text/threats": 2,
		"file/failure": 1,
		"file/clean":   1,
	}, counts)

	threats, ok := metrics["scan.threats"].Data.(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, threats.DataPoints, 1)
	assert.Equal(t, int64(3), threats.DataPoints[0].Value)

	duration, ok := metrics["scan.duration"].Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	var total uint64
	for _, dp := range duration.DataPoints {
		total += dp.Count
	}
	assert.Equal(t, uint64(4), total)
}

func TestInit_Disabled(t *testing.T) {
	shutdown, err := Init(context.Background(), config.TelemetryConfig{}, zap.NewNop().Sugar())
	require.NoError(t, err)
	require.NotNil(t, shutdown)
	shutdown(context.Background())
}
