package rollup_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/allenheltondev/dirt-man/internal/clock"
	"github.com/allenheltondev/dirt-man/internal/rollup"
	"github.com/allenheltondev/dirt-man/internal/store/memdb"
	"github.com/allenheltondev/dirt-man/pkg/models"
)

func TestMetricKeySortsDimensions(t *testing.T) {
	key := rollup.MetricKey("events_detected_count", map[string]string{"b": "2", "a": "1"})
	assert.Equal(t, "events_detected_count#a=1,b=2", key)
}

func TestBucketKeyFormat(t *testing.T) {
	assert.Equal(t, "minute#1000", rollup.BucketKey(models.BucketMinute, 1000))
}

func TestWorkerNeverWritesBusinessTables(t *testing.T) {
	readings := memdb.NewReadingStore()
	events := memdb.NewEventStore()
	aggregates := memdb.NewAggregateStore()
	insights := memdb.NewInsightStore()
	rollups := memdb.NewRollupStore()
	c := clock.NewFake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	ctx := context.Background()

	_, err := readings.PutIfAbsent(ctx, models.Reading{HardwareID: "D", TimestampMs: c.Now().UnixMilli(), BatchID: "b"})
	require.NoError(t, err)
	_, err = events.PutIfAbsent(ctx, models.Event{HardwareID: "D", EventType: models.EventWateringEvent, StartTimeMs: 1})
	require.NoError(t, err)
	require.NoError(t, aggregates.Put(ctx, models.Aggregate{HardwareID: "D", WindowType: models.WindowHourly, WindowStartMs: 0}))
	_, err = insights.PutIfAbsent(ctx, models.Insight{HardwareID: "D", TimestampMs: 1, Summary: "ok"})
	require.NoError(t, err)

	updater := rollup.New(rollups, c)
	worker := rollup.NewWorker(updater, readings.Changes(), events.Changes(), aggregates.Changes(), insights.Changes(), nil)

	readingsBefore, _, _ := readings.Range(ctx, "D", 0, c.Now().UnixMilli()+1, "")
	eventsBefore, _ := events.RangeByTime(ctx, "D", 0, 10)
	aggsBefore, _ := aggregates.RangeByWindow(ctx, models.DeviceWindowKey{HardwareID: "D", WindowType: models.WindowHourly}, 0, 10)
	insightsBefore, _ := insights.RangeByTime(ctx, "D", 0, 10)

	_, err = worker.Tick(ctx, rollup.Cursors{}, 100)
	require.NoError(t, err)

	readingsAfter, _, _ := readings.Range(ctx, "D", 0, c.Now().UnixMilli()+1, "")
	eventsAfter, _ := events.RangeByTime(ctx, "D", 0, 10)
	aggsAfter, _ := aggregates.RangeByWindow(ctx, models.DeviceWindowKey{HardwareID: "D", WindowType: models.WindowHourly}, 0, 10)
	insightsAfter, _ := insights.RangeByTime(ctx, "D", 0, 10)

	assert.Equal(t, readingsBefore, readingsAfter)
	assert.Equal(t, eventsBefore, eventsAfter)
	assert.Equal(t, aggsBefore, aggsAfter)
	assert.Equal(t, insightsBefore, insightsAfter)
}

func TestReadingInsertIncrementsCounters(t *testing.T) {
	rollups := memdb.NewRollupStore()
	c := clock.NewFake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	ctx := context.Background()

	u := rollup.New(rollups, c)
	seen := make(map[string]struct{})
	r := models.Reading{HardwareID: "D", TimestampMs: c.Now().UnixMilli(), Statuses: map[string]models.SensorStatus{models.SensorTemperature: models.SensorOutOfRange}}
	require.NoError(t, u.OnReadingInsert(ctx, r, seen))
	require.NoError(t, u.FlushDevicesSeen(ctx, seen))

	bucket := rollup.BucketKey(models.BucketMinute, c.Now().UnixMilli())
	ingested, err := rollups.Get(ctx, bucket, rollup.MetricKey("readings_ingested_count", nil))
	require.NoError(t, err)
	assert.Equal(t, int64(1), ingested.Count)

	invalid, err := rollups.Get(ctx, bucket, rollup.MetricKey("readings_invalid_count", nil))
	require.NoError(t, err)
	assert.Equal(t, int64(1), invalid.Count)

	devices, err := rollups.Get(ctx, bucket, rollup.MetricKey("devices_reporting_count", nil))
	require.NoError(t, err)
	assert.Equal(t, int64(1), devices.Count)
}
