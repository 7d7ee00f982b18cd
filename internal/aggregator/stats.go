// Package aggregator implements the incrementally-updated, late-arrival
// tolerant time-window statistics engine (hourly/daily/weekly) over raw
// sensor readings.
package aggregator

import "github.com/allenheltondev/dirt-man/pkg/models"

// applyReading folds one reading's sensor values into stats, unconditionally
// bumping total_count and, for a valid ok reading, bumping valid_count/sum/
// sumsq and seeding min/max if absent (set-if-absent, not true refinement).
func applyReading(stats models.SensorStats, r models.Reading, sensor string) models.SensorStats {
	stats.TotalCount++
	if !r.IsValid(sensor) {
		return stats
	}
	value, _ := r.Value(sensor)
	stats.ValidCount++
	stats.Sum += value
	stats.SumSq += value * value
	if !stats.HasMinMax {
		stats.Min = value
		stats.Max = value
		stats.HasMinMax = true
	}
	return stats
}

// rebuildStats recomputes a sensor's statistics from scratch over a full set
// of readings, giving exact min/max (unlike the incremental path).
func rebuildStats(readings []models.Reading, sensor string) models.SensorStats {
	var stats models.SensorStats
	for _, r := range readings {
		stats.TotalCount++
		if !r.IsValid(sensor) {
			continue
		}
		value, _ := r.Value(sensor)
		stats.ValidCount++
		stats.Sum += value
		stats.SumSq += value * value
		if !stats.HasMinMax || value < stats.Min {
			stats.Min = value
		}
		if !stats.HasMinMax || value > stats.Max {
			stats.Max = value
		}
		stats.HasMinMax = true
	}
	return stats
}

// combineStats merges a set of closed-window stats blocks into one coarser
// window's stats (hourly→daily, daily→weekly).
func combineStats(parts []models.SensorStats) models.SensorStats {
	var out models.SensorStats
	for _, p := range parts {
		out.ValidCount += p.ValidCount
		out.TotalCount += p.TotalCount
		out.Sum += p.Sum
		out.SumSq += p.SumSq
		if p.HasMinMax {
			if !out.HasMinMax || p.Min < out.Min {
				out.Min = p.Min
			}
			if !out.HasMinMax || p.Max > out.Max {
				out.Max = p.Max
			}
			out.HasMinMax = true
		}
	}
	return out
}
