// Package profile learns the per-device watering interval and baseline
// moisture range from event and aggregate history.
package profile

import (
	"context"
	"sort"

	"github.com/allenheltondev/dirt-man/internal/store"
	"github.com/allenheltondev/dirt-man/pkg/models"
)

const (
	minWateringEventsForInterval   = 2
	minHourlyAggregatesForBaseline = 10
	stressThresholdMoisturePct     = 30.0
	stressMinGapSinceWateringMs    = 48 * 60 * 60 * 1000
)

// Learner recomputes a device's system-learned profile fields.
type Learner struct {
	events     store.EventStore
	aggregates store.AggregateStore
	profiles   store.DeviceProfileStore
}

// New builds a profile Learner.
func New(events store.EventStore, aggregates store.AggregateStore, profiles store.DeviceProfileStore) *Learner {
	return &Learner{events: events, aggregates: aggregates, profiles: profiles}
}

// Relearn recomputes typical_watering_interval_sec and
// baseline_moisture_range for hardwareID and persists only those fields.
func (l *Learner) Relearn(ctx context.Context, hardwareID string, nowMs int64) error {
	wateringEvents, err := l.events.RangeByTimeAndType(ctx, hardwareID, 0, nowMs, models.EventWateringEvent)
	if err != nil {
		return err
	}
	sort.Slice(wateringEvents, func(i, j int) bool { return wateringEvents[i].StartTimeMs < wateringEvents[j].StartTimeMs })
	if len(wateringEvents) > models.MaxTrackedWateringEvents {
		wateringEvents = wateringEvents[len(wateringEvents)-models.MaxTrackedWateringEvents:]
	}

	interval := typicalIntervalSec(wateringEvents)

	hourKey := models.DeviceWindowKey{HardwareID: hardwareID, WindowType: models.WindowHourly}
	hourly, err := l.aggregates.RangeByWindow(ctx, hourKey, 0, nowMs)
	if err != nil {
		return err
	}
	baseline := baselineMoistureRange(hourly)

	var lastEvents []int64
	for _, e := range wateringEvents {
		lastEvents = append(lastEvents, e.StartTimeMs)
	}

	return l.profiles.UpdateLearnedFields(ctx, hardwareID, func(p *models.DeviceProfile) {
		p.TypicalWateringIntervalSec = interval
		p.BaselineMoistureRange = baseline
		p.LastWateringEvents = lastEvents
	})
}

// typicalIntervalSec is the mean of consecutive gaps between the last ≤20
// watering events' start times, requiring at least 2 events.
func typicalIntervalSec(events []models.Event) *int {
	if len(events) < minWateringEventsForInterval {
		return nil
	}
	var total int64
	for i := 1; i < len(events); i++ {
		total += events[i].StartTimeMs - events[i-1].StartTimeMs
	}
	meanMs := total / int64(len(events)-1)
	sec := int(meanMs / 1000)
	return &sec
}

// baselineMoistureRange is the 10th/90th percentile of hourly average soil
// moisture, requiring at least 10 hourly aggregates with valid data.
func baselineMoistureRange(hourly []models.Aggregate) *models.MoistureRange {
	var averages []float64
	for _, a := range hourly {
		stats, ok := a.Sensors[models.SensorSoilMoisture]
		if !ok {
			continue
		}
		avg, has := stats.Avg()
		if !has {
			continue
		}
		averages = append(averages, avg)
	}
	if len(averages) < minHourlyAggregatesForBaseline {
		return nil
	}
	sort.Float64s(averages)
	return &models.MoistureRange{
		Min: percentile(averages, 0.10),
		Max: percentile(averages, 0.90),
	}
}

// percentile interpolates linearly between the two adjacent ranks of a
// pre-sorted slice.
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 1 {
		return sorted[0]
	}
	pos := p * float64(len(sorted)-1)
	lower := int(pos)
	upper := lower + 1
	if upper >= len(sorted) {
		return sorted[lower]
	}
	frac := pos - float64(lower)
	return sorted[lower] + frac*(sorted[upper]-sorted[lower])
}

// CheckStressCondition reports true iff current moisture is below the
// threshold and either no watering event has occurred or the last one was
// at least 48h ago.
func CheckStressCondition(currentMoisturePct float64, lastWateringEventMs *int64, nowMs int64) bool {
	if currentMoisturePct >= stressThresholdMoisturePct {
		return false
	}
	if lastWateringEventMs == nil {
		return true
	}
	return nowMs-*lastWateringEventMs >= stressMinGapSinceWateringMs
}
