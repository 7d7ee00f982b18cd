package aggregator

import (
	"context"

	"github.com/allenheltondev/dirt-man/internal/timeutil"
	"github.com/allenheltondev/dirt-man/pkg/models"
)

// childWindowType maps a window type to the finer-grained type it is
// combined from (hourly for daily, daily for weekly).
func childWindowType(t models.WindowType) models.WindowType {
	if t == models.WindowWeekly {
		return models.WindowDaily
	}
	return models.WindowHourly
}

// ComputeDaily runs the daily combine for "yesterday" relative to nowMs,
// the day window of now-24h. It enumerates every device with any hourly
// aggregate intersecting that day and combines them.
func (e *Engine) ComputeDaily(ctx context.Context, nowMs int64) error {
	const oneDayMs = 24 * 60 * 60 * 1000
	target := timeutil.DayWindow(nowMs - oneDayMs)
	return e.computeCombined(ctx, models.WindowDaily, target, nowMs)
}

// ComputeWeekly runs the weekly combine for the ISO week containing nowMs's
// preceding week, consuming daily rows.
func (e *Engine) ComputeWeekly(ctx context.Context, nowMs int64) error {
	target := timeutil.WeekWindow(nowMs - 7*24*60*60*1000)
	return e.computeCombined(ctx, models.WindowWeekly, target, nowMs)
}

func (e *Engine) computeCombined(ctx context.Context, windowType models.WindowType, window timeutil.Window, nowMs int64) error {
	childType := childWindowType(windowType)

	devices, err := e.aggregates.DevicesWithWindow(ctx, childType, window.Start, window.End)
	if err != nil {
		return err
	}

	for _, hardwareID := range devices {
		if err := e.combineDevice(ctx, hardwareID, windowType, childType, window, nowMs); err != nil {
			e.log.Error("combine failed", "hardware_id", hardwareID, "window_type", windowType, "error", err)
		}
	}
	return nil
}

func (e *Engine) combineDevice(ctx context.Context, hardwareID string, windowType, childType models.WindowType, window timeutil.Window, nowMs int64) error {
	childKey := models.DeviceWindowKey{HardwareID: hardwareID, WindowType: childType}
	children, err := e.aggregates.RangeByWindow(ctx, childKey, window.Start, window.End)
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
		var parts []models.SensorStats
		for _, c := range children {
			parts = append(parts, c.Sensors[sensor])
		}
		agg.Sensors[sensor] = combineStats(parts)
	}

	return e.aggregates.Put(ctx, agg)
}
