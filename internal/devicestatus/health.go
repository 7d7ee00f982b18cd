package devicestatus

import "github.com/allenheltondev/dirt-man/pkg/models"

const (
	failingWindowMs = 24 * 60 * 60 * 1000
	healthyWindowMs = 2 * 60 * 60 * 1000
	staleWindowMs   = 6 * 60 * 60 * 1000
)

// HealthCategory derives a device's health category at read time from its
// current status row and the current clock. It never trusts a stored
// category.
func HealthCategory(s models.DeviceStatus, nowMs int64) models.HealthCategory {
	if s.LastErrorAtMs > 0 && nowMs-s.LastErrorAtMs <= failingWindowMs {
		return models.HealthFailing
	}
	if s.LastSeenIngestTimeMs == 0 {
		return models.HealthMissing
	}
	age := nowMs - s.LastSeenIngestTimeMs
	switch {
	case age <= healthyWindowMs:
		return models.HealthHealthy
	case age <= staleWindowMs:
		return models.HealthStale
	default:
		return models.HealthMissing
	}
}

// SummaryFromReading collapses a reading's per-sensor values and statuses
// into the coarse summary the status maintainer stores: missing when no
// sensor reported a value at all, degraded when some sensors are invalid or
// absent, ok when every sensor reported a valid value.
func SummaryFromReading(r models.Reading) models.SensorStatusSummary {
	seen := 0
	valid := 0
	for _, sensor := range models.AllSensors {
		if _, ok := r.Value(sensor); ok {
			seen++
		}
		if r.IsValid(sensor) {
			valid++
		}
	}
	switch {
	case seen == 0:
		return models.SensorSummaryMissing
	case valid == len(models.AllSensors):
		return models.SensorSummaryOK
	default:
		return models.SensorSummaryDegraded
	}
}
