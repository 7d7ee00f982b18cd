package aggregator_test

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/allenheltondev/dirt-man/internal/aggregator"
	"github.com/allenheltondev/dirt-man/internal/clock"
	"github.com/allenheltondev/dirt-man/internal/idempotency"
	"github.com/allenheltondev/dirt-man/internal/store/memdb"
	"github.com/allenheltondev/dirt-man/pkg/models"
)

type noopStatus struct{ calls int }

func (n *noopStatus) RecordAggregateComputed(_ context.Context, _ string, _ int64, _ float64) error {
	n.calls++
	return nil
}
func (n *noopStatus) RecordError(_ context.Context, _, _, _ string, _ int64) error { return nil }

func newEngine(t *testing.T, now time.Time) (*aggregator.Engine, *memdb.ReadingStore, *memdb.AggregateStore, *clock.Fake, *noopStatus) {
	t.Helper()
	readings := memdb.NewReadingStore()
	aggregates := memdb.NewAggregateStore()
	processed := memdb.NewProcessedStore()
	c := clock.NewFake(now)
	ledger := idempotency.New(processed, c)
	status := &noopStatus{}
	eng := aggregator.New(readings, aggregates, ledger, status, c, slog.Default())
	return eng, readings, aggregates, c, status
}

func TestIncrementalUpdateOpenWindow(t *testing.T) {
	hourStart := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	eng, _, aggregates, c, _ := newEngine(t, hourStart.Add(5*time.Minute))
	ctx := context.Background()

	r := models.Reading{
		HardwareID:   "hw-1",
		TimestampMs:  hourStart.UnixMilli(),
		BatchID:      "batch-1",
		IngestTimeMs: hourStart.UnixMilli(),
		Values:       map[string]float64{models.SensorTemperature: 20.0},
		Statuses:     map[string]models.SensorStatus{models.SensorTemperature: models.SensorOK},
	}
	require.NoError(t, eng.ProcessReading(ctx, r))

	key := models.DeviceWindowKey{HardwareID: "hw-1", WindowType: models.WindowHourly}
	agg, err := aggregates.Get(ctx, key, hourStart.UnixMilli())
	require.NoError(t, err)
	assert.False(t, agg.IsComplete)
	stats := agg.Sensors[models.SensorTemperature]
	assert.Equal(t, 1, stats.TotalCount)
	assert.Equal(t, 1, stats.ValidCount)
	assert.Equal(t, 20.0, stats.Sum)
	_ = c
}

func TestProcessReadingIsIdempotent(t *testing.T) {
	hourStart := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	eng, _, aggregates, _, _ := newEngine(t, hourStart.Add(5*time.Minute))
	ctx := context.Background()

	r := models.Reading{
		HardwareID:   "hw-1",
		TimestampMs:  hourStart.UnixMilli(),
		BatchID:      "batch-1",
		IngestTimeMs: hourStart.UnixMilli(),
		Values:       map[string]float64{models.SensorTemperature: 20.0},
		Statuses:     map[string]models.SensorStatus{models.SensorTemperature: models.SensorOK},
	}
	require.NoError(t, eng.ProcessReading(ctx, r))
	require.NoError(t, eng.ProcessReading(ctx, r))

	key := models.DeviceWindowKey{HardwareID: "hw-1", WindowType: models.WindowHourly}
	agg, err := aggregates.Get(ctx, key, hourStart.UnixMilli())
	require.NoError(t, err)
	assert.Equal(t, 1, agg.Sensors[models.SensorTemperature].TotalCount, "second claim must be a no-op")
}

func TestLateArrivalRebuildsClosedWindow(t *testing.T) {
	hourStart := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	eng, readings, aggregates, c, status := newEngine(t, hourStart.Add(1*time.Hour))
	ctx := context.Background()

	r := models.Reading{
		HardwareID:   "hw-1",
		TimestampMs:  hourStart.UnixMilli(),
		BatchID:      "batch-1",
		IngestTimeMs: hourStart.UnixMilli(),
		Values:       map[string]float64{models.SensorTemperature: 20.0},
		Statuses:     map[string]models.SensorStatus{models.SensorTemperature: models.SensorOK},
	}
	_, err := readings.PutIfAbsent(ctx, r)
	require.NoError(t, err)

	c.Set(hourStart.Add(3 * time.Hour))
	require.NoError(t, eng.ProcessReading(ctx, r))

	key := models.DeviceWindowKey{HardwareID: "hw-1", WindowType: models.WindowHourly}
	agg, err := aggregates.Get(ctx, key, hourStart.UnixMilli())
	require.NoError(t, err)
	assert.True(t, agg.IsComplete)
	assert.Equal(t, 1, status.calls)
}

func TestTooLateReadingIsDiscarded(t *testing.T) {
	hourStart := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	eng, readings, aggregates, c, _ := newEngine(t, hourStart.Add(26*time.Hour))
	ctx := context.Background()

	r := models.Reading{
		HardwareID:   "hw-1",
		TimestampMs:  hourStart.UnixMilli(),
		BatchID:      "batch-1",
		IngestTimeMs: hourStart.UnixMilli(),
		Values:       map[string]float64{models.SensorTemperature: 20.0},
		Statuses:     map[string]models.SensorStatus{models.SensorTemperature: models.SensorOK},
	}
	_, err := readings.PutIfAbsent(ctx, r)
	require.NoError(t, err)

	require.NoError(t, eng.ProcessReading(ctx, r))

	key := models.DeviceWindowKey{HardwareID: "hw-1", WindowType: models.WindowHourly}
	_, err = aggregates.Get(ctx, key, hourStart.UnixMilli())
	assert.Error(t, err)
	_ = c
}

func TestCombineDailyFromHourly(t *testing.T) {
	dayStart := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	eng, _, aggregates, _, _ := newEngine(t, dayStart.Add(25*time.Hour))
	ctx := context.Background()

	key := models.DeviceWindowKey{HardwareID: "hw-1", WindowType: models.WindowHourly}
	h1 := models.Aggregate{
		HardwareID: "hw-1", WindowType: models.WindowHourly,
		WindowStartMs: dayStart.UnixMilli(), WindowEndMs: dayStart.Add(time.Hour).UnixMilli(),
		Sensors: map[string]models.SensorStats{
			models.SensorTemperature: {Min: 18, Max: 22, Sum: 60, SumSq: 1204, ValidCount: 3, TotalCount: 3, HasMinMax: true},
		},
	}
	h2 := models.Aggregate{
		HardwareID: "hw-1", WindowType: models.WindowHourly,
		WindowStartMs: dayStart.Add(time.Hour).UnixMilli(), WindowEndMs: dayStart.Add(2 * time.Hour).UnixMilli(),
		Sensors: map[string]models.SensorStats{
			models.SensorTemperature: {Min: 20, Max: 24, Sum: 66, SumSq: 1460, ValidCount: 3, TotalCount: 3, HasMinMax: true},
		},
	}
	require.NoError(t, aggregates.Put(ctx, h1))
	require.NoError(t, aggregates.Put(ctx, h2))
	_ = key

	require.NoError(t, eng.ComputeDaily(ctx, dayStart.Add(25*time.Hour).UnixMilli()))

	dailyKey := models.DeviceWindowKey{HardwareID: "hw-1", WindowType: models.WindowDaily}
	daily, err := aggregates.Get(ctx, dailyKey, dayStart.UnixMilli())
	require.NoError(t, err)
	stats := daily.Sensors[models.SensorTemperature]
	assert.Equal(t, 6, stats.ValidCount)
	assert.Equal(t, 6, stats.TotalCount)
	assert.Equal(t, 126.0, stats.Sum)
	assert.Equal(t, 2664.0, stats.SumSq)
	assert.Equal(t, 18.0, stats.Min)
	assert.Equal(t, 24.0, stats.Max)
	avg, _ := stats.Avg()
	assert.InDelta(t, 21.0, avg, 0.0001)
	stddev, _ := stats.StdDev()
	assert.InDelta(t, 1.732, stddev, 0.001)
	assert.True(t, daily.IsComplete)
}
