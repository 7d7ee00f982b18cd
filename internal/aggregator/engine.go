package aggregator

import (
	"context"
	"log/slog"

	"github.com/allenheltondev/dirt-man/internal/clock"
	"github.com/allenheltondev/dirt-man/internal/idempotency"
	"github.com/allenheltondev/dirt-man/internal/store"
	"github.com/allenheltondev/dirt-man/internal/timeutil"
	"github.com/allenheltondev/dirt-man/pkg/models"
)

// StatusUpdater is the subset of the device status maintainer the aggregator
// is allowed to call: its own owned fields only.
type StatusUpdater interface {
	RecordAggregateComputed(ctx context.Context, hardwareID string, computedAtMs int64, coveragePct float64) error
	RecordError(ctx context.Context, hardwareID string, code, message string, nowMs int64) error
}

// Engine computes incremental and rebuilt window statistics.
type Engine struct {
	readings   store.ReadingStore
	aggregates store.AggregateStore
	ledger     *idempotency.Ledger
	status     StatusUpdater
	clock      clock.Clock
	log        *slog.Logger
}

// New builds an aggregator Engine.
func New(readings store.ReadingStore, aggregates store.AggregateStore, ledger *idempotency.Ledger, status StatusUpdater, c clock.Clock, log *slog.Logger) *Engine {
	if log == nil {
		log = slog.Default()
	}
	return &Engine{readings: readings, aggregates: aggregates, ledger: ledger, status: status, clock: c, log: log}
}

// ProcessReading runs the per-reading aggregation path.
func (e *Engine) ProcessReading(ctx context.Context, r models.Reading) error {
	readingID := r.ReadingID()

	owned, err := e.ledger.Claim(ctx, readingID, r.HardwareID, idempotency.StageAggregate)
	if err != nil {
		return err
	}
	if !owned {
		return nil
	}

	if timeutil.CheckClockSkew(r.TimestampMs, r.IngestTimeMs) {
		e.log.Warn("clock skew detected", "hardware_id", r.HardwareID, "timestamp_ms", r.TimestampMs, "ingest_time_ms", r.IngestTimeMs)
	}

	window := timeutil.HourWindow(r.TimestampMs)
	nowMs := clock.NowMs(e.clock)

	if nowMs < window.End {
		return e.incrementalUpdate(ctx, r, window, nowMs)
	}

	lateness := nowMs - window.End
	if lateness <= timeutil.LatenessWindow.Milliseconds() {
		return e.rebuildWindow(ctx, r.HardwareID, models.WindowHourly, window, nowMs)
	}

	e.log.Info("discarding too-late reading", "hardware_id", r.HardwareID, "timestamp_ms", r.TimestampMs, "lateness_ms", lateness)
	return nil
}

func (e *Engine) incrementalUpdate(ctx context.Context, r models.Reading, window timeutil.Window, nowMs int64) error {
	key := models.DeviceWindowKey{HardwareID: r.HardwareID, WindowType: models.WindowHourly}
	existing, err := e.aggregates.Get(ctx, key, window.Start)
	if err != nil && !isNotFound(err) {
		return err
	}
	if isNotFound(err) {
		existing = models.Aggregate{
			HardwareID:    r.HardwareID,
			WindowType:    models.WindowHourly,
			WindowStartMs: window.Start,
			WindowEndMs:   window.End,
			Sensors:       make(map[string]models.SensorStats),
		}
	}
	if existing.Sensors == nil {
		existing.Sensors = make(map[string]models.SensorStats)
	}

	for _, sensor := range models.AllSensors {
		existing.Sensors[sensor] = applyReading(existing.Sensors[sensor], r, sensor)
	}
	existing.ComputedAtMs = nowMs

	return e.aggregates.Put(ctx, existing)
}

func (e *Engine) rebuildWindow(ctx context.Context, hardwareID string, windowType models.WindowType, window timeutil.Window, nowMs int64) error {
	readings, err := e.collectReadings(ctx, hardwareID, window.Start, window.End)
	if err != nil {
		return err
	}

	agg := models.Aggregate{
		HardwareID:    hardwareID,
		WindowType:    windowType,
		WindowStartMs: window.Start,
		WindowEndMs:   window.End,
		Sensors:       make(map[string]models.SensorStats),
		IsComplete:    true,
		ComputedAtMs:  nowMs,
	}
	for _, sensor := range models.AllSensors {
		agg.Sensors[sensor] = rebuildStats(readings, sensor)
	}

	if err := e.aggregates.Put(ctx, agg); err != nil {
		return err
	}

	if e.status != nil {
		coverage := coveragePct(agg, models.DefaultExpectedIntervalSec)
		if err := e.status.RecordAggregateComputed(ctx, hardwareID, nowMs, coverage); err != nil {
			e.log.Error("device status update failed", "hardware_id", hardwareID, "error", err)
		}
	}
	return nil
}

func (e *Engine) collectReadings(ctx context.Context, hardwareID string, fromMs, toMs int64) ([]models.Reading, error) {
	var out []models.Reading
	pageToken := ""
	for {
		page, next, err := e.readings.Range(ctx, hardwareID, fromMs, toMs, pageToken)
		if err != nil {
			return nil, err
		}
		out = append(out, page...)
		if next == "" {
			break
		}
		pageToken = next
	}
	return out, nil
}

// coveragePct computes expected-vs-actual reading coverage using the
// temperature channel's total_count as the representative reading count
// for the window.
func coveragePct(agg models.Aggregate, expectedIntervalSec int) float64 {
	if expectedIntervalSec <= 0 {
		expectedIntervalSec = models.DefaultExpectedIntervalSec
	}
	expectedPerHour := 3600.0 / float64(expectedIntervalSec)
	if expectedPerHour <= 0 {
		return 0
	}
	stats := agg.Sensors[models.SensorTemperature]
	coverage := float64(stats.TotalCount) / expectedPerHour
	if coverage > 1.0 {
		coverage = 1.0
	}
	return coverage
}

func isNotFound(err error) bool {
	return err != nil && store.IsNotFound(err)
}
