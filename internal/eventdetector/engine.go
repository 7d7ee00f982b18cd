package eventdetector

import (
	"context"
	"log/slog"

	"github.com/allenheltondev/dirt-man/internal/clock"
	"github.com/allenheltondev/dirt-man/internal/idempotency"
	"github.com/allenheltondev/dirt-man/internal/store"
	"github.com/allenheltondev/dirt-man/pkg/models"
)

const (
	contextWindow   = 6 * 60 * 60 * 1000 // ms
	contextRowCap   = 200
	eventDailyCapMs = 24 * 60 * 60 * 1000
	eventDailyCap   = 6
)

// StatusUpdater is the subset of the device status maintainer the detector
// may write.
type StatusUpdater interface {
	RecordEventDetected(ctx context.Context, hardwareID string, detectedAtMs, processedEventTimeMs int64) error
	RecordError(ctx context.Context, hardwareID string, code, message string, nowMs int64) error
}

// Relearner recomputes a device's learned profile fields. A watering event
// is the one signal that makes a device's baseline stale enough to justify
// recomputing it immediately rather than waiting for a scheduled pass.
type Relearner interface {
	Relearn(ctx context.Context, hardwareID string, nowMs int64) error
}

// Engine runs the five detectors per reading and persists at-most-one event
// per detector, subject to cooldown and daily insight-request caps.
type Engine struct {
	readings  store.ReadingStore
	events    store.EventStore
	requests  store.InsightRequestStore
	ledger    *idempotency.Ledger
	status    StatusUpdater
	relearner Relearner
	clock     clock.Clock
	log       *slog.Logger
}

// New builds an event detector Engine.
func New(readings store.ReadingStore, events store.EventStore, requests store.InsightRequestStore, ledger *idempotency.Ledger, status StatusUpdater, c clock.Clock, log *slog.Logger) *Engine {
	if log == nil {
		log = slog.Default()
	}
	return &Engine{readings: readings, events: events, requests: requests, ledger: ledger, status: status, clock: c, log: log}
}

// WithRelearner attaches a Relearner the engine triggers after persisting a
// watering event, and returns the engine for chaining.
func (e *Engine) WithRelearner(r Relearner) *Engine {
	e.relearner = r
	return e
}

// ProcessReading runs the detector pipeline for one reading.
func (e *Engine) ProcessReading(ctx context.Context, r models.Reading) error {
	readingID := r.ReadingID()

	owned, err := e.ledger.Claim(ctx, readingID, r.HardwareID, idempotency.StageEvent)
	if err != nil {
		return err
	}
	if !owned {
		return nil
	}

	recent, err := e.fetchContext(ctx, r)
	if err != nil {
		return err
	}

	if !r.IsValid(models.SensorTemperature) && !r.IsValid(models.SensorHumidity) &&
		!r.IsValid(models.SensorPressure) && !r.IsValid(models.SensorSoilMoisture) {
		// Current reading carries nothing usable; still marked processed.
		return nil
	}

	s := series{readings: recent, current: r}
	nowMs := clock.NowMs(e.clock)

	var anyPersisted bool
	for _, d := range allDetectors() {
		candidate := e.runDetector(d.name, d.run, s)
		if candidate == nil {
			continue
		}
		persisted, err := e.tryPersist(ctx, r.HardwareID, *candidate, nowMs)
		if err != nil {
			e.log.Error("event persist failed", "hardware_id", r.HardwareID, "event_type", candidate.EventType, "error", err)
			continue
		}
		if persisted {
			anyPersisted = true
			if candidate.EventType == models.EventTemperatureStress {
				e.enqueueEventInsight(ctx, r.HardwareID, candidate.EventType, nowMs)
			}
			if candidate.EventType == models.EventWateringEvent && e.relearner != nil {
				if err := e.relearner.Relearn(ctx, r.HardwareID, nowMs); err != nil {
					e.log.Error("profile relearn failed", "hardware_id", r.HardwareID, "error", err)
				}
			}
		}
	}

	if anyPersisted && e.status != nil {
		if err := e.status.RecordEventDetected(ctx, r.HardwareID, nowMs, r.TimestampMs); err != nil {
			e.log.Error("device status update failed", "hardware_id", r.HardwareID, "error", err)
		}
	}
	return nil
}

// runDetector isolates a panic in a single detector so its siblings still
// run.
func (e *Engine) runDetector(name string, fn func(series) *Candidate, s series) (result *Candidate) {
	defer func() {
		if r := recover(); r != nil {
			e.log.Error("detector panicked", "detector", name, "recovered", r)
			result = nil
		}
	}()
	return fn(s)
}

func (e *Engine) fetchContext(ctx context.Context, r models.Reading) ([]models.Reading, error) {
	from := r.TimestampMs - contextWindow
	var out []models.Reading
	pageToken := ""
	for {
		page, next, err := e.readings.Range(ctx, r.HardwareID, from, r.TimestampMs, pageToken)
		if err != nil {
			return nil, err
		}
		out = append(out, page...)
		if next == "" || len(out) >= contextRowCap {
			break
		}
		pageToken = next
	}
	if len(out) > contextRowCap {
		out = out[len(out)-contextRowCap:]
	}
	return out, nil
}

// tryPersist checks cooldown and persists via conditional insert. A
// conditional-check failure on the event key is a successful dedup, not an
// error.
func (e *Engine) tryPersist(ctx context.Context, hardwareID string, c Candidate, nowMs int64) (bool, error) {
	cooldown := cooldownMs(c.EventType)
	if cooldown > 0 {
		onCooldown, err := e.onCooldown(ctx, hardwareID, c.EventType, c.StartTimeMs, cooldown)
		if err != nil {
			return false, err
		}
		if onCooldown {
			return false, nil
		}
	}

	event := models.Event{
		HardwareID:        hardwareID,
		EventType:         c.EventType,
		StartTimeMs:       c.StartTimeMs,
		EndTimeMs:         c.EndTimeMs,
		SensorValues:      c.SensorValues,
		DetectionMetadata: c.DetectionMetadata,
		CreatedAtMs:       nowMs,
	}
	return e.events.PutIfAbsent(ctx, event)
}

func (e *Engine) onCooldown(ctx context.Context, hardwareID string, eventType models.EventType, startTimeMs, cooldown int64) (bool, error) {
	since := startTimeMs - cooldown
	existing, err := e.events.RangeByTimeAndType(ctx, hardwareID, since, startTimeMs+1, eventType)
	if err != nil {
		return false, err
	}
	for _, ev := range existing {
		if ev.StartTimeMs >= since {
			return true, nil
		}
	}
	return false, nil
}

// enqueueEventInsight creates an event-driven InsightRequest for a critical
// event, subject to the rolling-24h cap.
func (e *Engine) enqueueEventInsight(ctx context.Context, hardwareID string, eventType models.EventType, nowMs int64) {
	if e.requests == nil {
		return
	}
	count, err := e.requests.CountSince(ctx, hardwareID, nowMs-eventDailyCapMs, models.RequestEvent)
	if err != nil {
		e.log.Error("insight request cap check failed", "hardware_id", hardwareID, "error", err)
		return
	}
	if count >= eventDailyCap {
		return
	}
	req := models.InsightRequest{
		HardwareID:    hardwareID,
		RequestTimeMs: nowMs,
		RequestType:   models.RequestEvent,
		EventType:     eventType,
		Status:        models.RequestPending,
	}
	if _, err := e.requests.PutIfAbsent(ctx, req); err != nil {
		e.log.Error("insight request enqueue failed", "hardware_id", hardwareID, "error", err)
	}
}
