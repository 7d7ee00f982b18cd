package eventdetector

import "github.com/allenheltondev/dirt-man/pkg/models"

// cooldownMs returns the minimum gap required between two events of the same
// type for the same device. Drying_Cycle has no cooldown.
func cooldownMs(t models.EventType) int64 {
	switch t {
	case models.EventWateringEvent:
		return 60 * 60 * 1000
	case models.EventTemperatureStress:
		return 30 * 60 * 1000
	case models.EventHumidityAnomaly:
		return 30 * 60 * 1000
	case models.EventEnvironmentalChange:
		return 120 * 60 * 1000
	default:
		return 0
	}
}
