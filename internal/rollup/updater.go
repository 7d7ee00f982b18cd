package rollup

import (
	"context"

	"github.com/allenheltondev/dirt-man/internal/clock"
	"github.com/allenheltondev/dirt-man/internal/store"
	"github.com/allenheltondev/dirt-man/pkg/models"
)

// Updater folds the four source change feeds into rollup counters. It holds
// no reference to any business table's writer — only store.RollupStore — so
// it structurally cannot create a feedback loop.
type Updater struct {
	rollups store.RollupStore
	clock   clock.Clock
}

// New builds a rollup Updater.
func New(rollups store.RollupStore, c clock.Clock) *Updater {
	return &Updater{rollups: rollups, clock: c}
}

func (u *Updater) add(ctx context.Context, bucketType models.BucketType, bucketStartMs int64, metricName string, dims map[string]string, count int64, sum float64, hasSum bool) error {
	r := models.Rollup{
		BucketKey:  BucketKey(bucketType, bucketStartMs),
		MetricKey:  MetricKey(metricName, dims),
		BucketType: bucketType,
		StartMs:    bucketStartMs,
		MetricName: metricName,
		Dimensions: dims,
		Count:      count,
		Sum:        sum,
		HasSum:     hasSum,
		TTLSeconds: ttlFor(bucketType),
	}
	return u.rollups.AddCounter(ctx, r)
}

// OnReadingInsert handles a single reading-insert change record.
// devicesSeen accumulates the batch's distinct hardware IDs; the caller
// increments devices_reporting_count once per batch via FlushDevicesSeen.
func (u *Updater) OnReadingInsert(ctx context.Context, r models.Reading, devicesSeen map[string]struct{}) error {
	nowMs := clock.NowMs(u.clock)
	bucket := minuteBucket(nowMs)

	if err := u.add(ctx, models.BucketMinute, bucket, "readings_ingested_count", nil, 1, 0, false); err != nil {
		return err
	}

	if invalidReading(r) {
		if err := u.add(ctx, models.BucketMinute, bucket, "readings_invalid_count", nil, 1, 0, false); err != nil {
			return err
		}
	}

	lagSec := float64(nowMs-r.TimestampMs) / 1000.0
	if err := u.add(ctx, models.BucketMinute, bucket, "pipeline_lag_seconds", nil, 1, lagSec, true); err != nil {
		return err
	}

	if devicesSeen != nil {
		devicesSeen[r.HardwareID] = struct{}{}
	}
	return nil
}

// OnReadingModify handles a reading-modify change record — a dedup signal.
func (u *Updater) OnReadingModify(ctx context.Context, _ models.Reading) error {
	nowMs := clock.NowMs(u.clock)
	return u.add(ctx, models.BucketMinute, minuteBucket(nowMs), "readings_deduped_count", nil, 1, 0, false)
}

// FlushDevicesSeen increments devices_reporting_count once by the size of
// the batch's distinct hardware-ID set.
func (u *Updater) FlushDevicesSeen(ctx context.Context, devicesSeen map[string]struct{}) error {
	if len(devicesSeen) == 0 {
		return nil
	}
	nowMs := clock.NowMs(u.clock)
	return u.add(ctx, models.BucketMinute, minuteBucket(nowMs), "devices_reporting_count", nil, int64(len(devicesSeen)), 0, false)
}

func invalidReading(r models.Reading) bool {
	if r.TimestampMs == 0 {
		return true
	}
	for _, sensor := range models.AllSensors {
		if r.Status(sensor) == models.SensorOutOfRange {
			return true
		}
	}
	return false
}

// OnEventInsert handles an event-insert change record.
func (u *Updater) OnEventInsert(ctx context.Context, e models.Event) error {
	nowMs := clock.NowMs(u.clock)
	return u.add(ctx, models.BucketHour, hourBucket(nowMs), "events_detected_count", map[string]string{"event_type": string(e.EventType)}, 1, 0, false)
}

// OnAggregateChange handles any aggregate change record (insert or modify).
func (u *Updater) OnAggregateChange(ctx context.Context, a models.Aggregate) error {
	nowMs := clock.NowMs(u.clock)
	return u.add(ctx, models.BucketHour, hourBucket(nowMs), "aggregates_computed_count", map[string]string{"window_type": string(a.WindowType)}, 1, 0, false)
}

// OnInsightInsert handles an insight-insert change record.
func (u *Updater) OnInsightInsert(ctx context.Context, i models.Insight) error {
	nowMs := clock.NowMs(u.clock)
	status := "failure"
	if i.Summary != "" || len(i.Recommendations) > 0 {
		status = "success"
	}
	if err := u.add(ctx, models.BucketHour, hourBucket(nowMs), "insights_generated_count", map[string]string{"status": status}, 1, 0, false); err != nil {
		return err
	}
	return u.add(ctx, models.BucketHour, hourBucket(nowMs), "insight_generation_duration_ms", nil, 1, float64(i.GenerationDurationMs), true)
}
