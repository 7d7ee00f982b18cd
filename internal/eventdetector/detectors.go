// Package eventdetector runs the five physical-event detectors over a
// device's recent reading history and persists at-most-one event per
// detector per reading, subject to per-type cooldowns.
package eventdetector

import (
	"fmt"

	"github.com/allenheltondev/dirt-man/pkg/models"
)

// Candidate is a detector's proposed event, not yet persisted.
type Candidate struct {
	EventType         models.EventType
	StartTimeMs       int64
	EndTimeMs         int64
	SensorValues      map[string]float64
	DetectionMetadata map[string]string
}

// series is the ascending-by-time window the orchestrator hands to every
// detector: context readings followed by the current reading.
type series struct {
	readings []models.Reading
	current  models.Reading
}

func (s series) all() []models.Reading {
	return append(append([]models.Reading{}, s.readings...), s.current)
}

// validMoisture returns (value, true) iff the reading's soil_moisture status
// is ok and a value is present.
func validMoisture(r models.Reading) (float64, bool) {
	if !r.IsValid(models.SensorSoilMoisture) {
		return 0, false
	}
	v, _ := r.Value(models.SensorSoilMoisture)
	return v, true
}

func since(readings []models.Reading, sinceMs int64) []models.Reading {
	var out []models.Reading
	for _, r := range readings {
		if r.TimestampMs >= sinceMs {
			out = append(out, r)
		}
	}
	return out
}

// detectWatering detects the watering event: rapid spike takes precedence
// over gradual rise.
func detectWatering(s series) *Candidate {
	if !s.current.IsValid(models.SensorSoilMoisture) {
		return nil
	}
	current, _ := validMoisture(s.current)
	t := s.current.TimestampMs

	window30 := since(s.all(), t-30*60*1000)
	if c := rapidSpike(window30, s.current, current); c != nil {
		return c
	}

	window60 := since(s.all(), t-60*60*1000)
	return gradualRise(window60, s.current, current)
}

func rapidSpike(window []models.Reading, current models.Reading, currentValue float64) *Candidate {
	var minVal float64
	var minTs int64
	found := false
	for _, r := range window {
		if r.TimestampMs == current.TimestampMs {
			continue
		}
		v, ok := validMoisture(r)
		if !ok {
			continue
		}
		if !found || v < minVal {
			minVal = v
			minTs = r.TimestampMs
			found = true
		}
	}
	if !found {
		return nil
	}
	if currentValue-minVal > 15.0 {
		return &Candidate{
			EventType:    models.EventWateringEvent,
			StartTimeMs:  minTs,
			EndTimeMs:    current.TimestampMs,
			SensorValues: map[string]float64{"start_moisture": minVal, "end_moisture": currentValue, "increase_pct": currentValue - minVal},
			DetectionMetadata: map[string]string{
				"mode": "rapid_spike",
			},
		}
	}
	return nil
}

func gradualRise(window []models.Reading, current models.Reading, currentValue float64) *Candidate {
	var samples []models.Reading
	for _, r := range window {
		if _, ok := validMoisture(r); ok {
			samples = append(samples, r)
		}
	}
	// samples includes current; prior samples exclude it.
	priorCount := 0
	for _, r := range samples {
		if r.TimestampMs != current.TimestampMs {
			priorCount++
		}
	}
	if priorCount < 2 {
		return nil
	}

	var minVal float64
	var minTs int64
	found := false
	for _, r := range samples {
		if r.TimestampMs == current.TimestampMs {
			continue
		}
		v, _ := validMoisture(r)
		if !found || v < minVal {
			minVal = v
			minTs = r.TimestampMs
			found = true
		}
	}
	if !found || currentValue-minVal < 10.0 {
		return nil
	}

	if !hasTwoPositiveConsecutiveSlopes(samples) {
		return nil
	}

	return &Candidate{
		EventType:   models.EventWateringEvent,
		StartTimeMs: minTs,
		EndTimeMs:   current.TimestampMs,
		SensorValues: map[string]float64{
			"start_moisture": minVal, "end_moisture": currentValue, "increase_pct": currentValue - minVal,
		},
		DetectionMetadata: map[string]string{"mode": "gradual_rise"},
	}
}

func hasTwoPositiveConsecutiveSlopes(samples []models.Reading) bool {
	if len(samples) < 3 {
		return false
	}
	consecutive := 0
	for i := 1; i < len(samples); i++ {
		prev, _ := validMoisture(samples[i-1])
		cur, _ := validMoisture(samples[i])
		if cur > prev {
			consecutive++
			if consecutive >= 2 {
				return true
			}
		} else {
			consecutive = 0
		}
	}
	return false
}

// detectDryingCycle detects a drying cycle: ≥3 samples in [t-6h, t], a drop of more
// than 10% from the window max, with ≥70% declining consecutive pairs.
func detectDryingCycle(s series) *Candidate {
	if !s.current.IsValid(models.SensorSoilMoisture) {
		return nil
	}
	current, _ := validMoisture(s.current)

	var samples []models.Reading
	for _, r := range s.all() {
		if _, ok := validMoisture(r); ok {
			samples = append(samples, r)
		}
	}
	if len(samples) < 3 {
		return nil
	}

	maxVal := samples[0]
	maxv, _ := validMoisture(maxVal)
	for _, r := range samples[1:] {
		v, _ := validMoisture(r)
		if v > maxv {
			maxv = v
			maxVal = r
		}
	}

	if maxv-current <= 10.0 {
		return nil
	}

	declining := 0
	pairs := 0
	for i := 1; i < len(samples); i++ {
		prev, _ := validMoisture(samples[i-1])
		cur, _ := validMoisture(samples[i])
		pairs++
		if cur < prev {
			declining++
		}
	}
	if pairs == 0 || float64(declining)/float64(pairs) < 0.70 {
		return nil
	}

	return &Candidate{
		EventType:    models.EventDryingCycle,
		StartTimeMs:  samples[0].TimestampMs,
		EndTimeMs:    s.current.TimestampMs,
		SensorValues: map[string]float64{"peak_moisture": maxv, "current_moisture": current},
	}
}

// detectTemperatureStress detects temperature stress: single-sample thresholds, strict
// boundaries (35.0 and 5.0 do not trigger).
func detectTemperatureStress(s series) *Candidate {
	if !s.current.IsValid(models.SensorTemperature) {
		return nil
	}
	temp, _ := s.current.Value(models.SensorTemperature)

	var stressType string
	switch {
	case temp > 35.0:
		stressType = "high"
	case temp < 5.0:
		stressType = "low"
	default:
		return nil
	}

	return &Candidate{
		EventType:         models.EventTemperatureStress,
		StartTimeMs:       s.current.TimestampMs,
		EndTimeMs:         s.current.TimestampMs,
		SensorValues:      map[string]float64{"temperature": temp},
		DetectionMetadata: map[string]string{"stress_type": stressType},
	}
}

// detectHumidityAnomaly detects a humidity anomaly: [t-1h, t] range > 20%.
func detectHumidityAnomaly(s series) *Candidate {
	if !s.current.IsValid(models.SensorHumidity) {
		return nil
	}
	t := s.current.TimestampMs
	window := since(s.all(), t-60*60*1000)

	var minVal, maxVal float64
	found := false
	for _, r := range window {
		if !r.IsValid(models.SensorHumidity) {
			continue
		}
		v, _ := r.Value(models.SensorHumidity)
		if !found {
			minVal, maxVal = v, v
			found = true
			continue
		}
		if v < minVal {
			minVal = v
		}
		if v > maxVal {
			maxVal = v
		}
	}
	if !found || maxVal-minVal <= 20.0 {
		return nil
	}

	return &Candidate{
		EventType:    models.EventHumidityAnomaly,
		StartTimeMs:  t,
		EndTimeMs:    t,
		SensorValues: map[string]float64{"min_humidity": minVal, "max_humidity": maxVal, "range": maxVal - minVal},
	}
}

// detectEnvironmentalChange detects a combined environmental change: [t-2h, t], all three of temp,
// humidity, pressure ranges exceed their thresholds, on readings where all
// three statuses are ok.
func detectEnvironmentalChange(s series) *Candidate {
	t := s.current.TimestampMs
	window := since(s.all(), t-2*60*60*1000)

	var samples []models.Reading
	for _, r := range window {
		if r.IsValid(models.SensorTemperature) && r.IsValid(models.SensorHumidity) && r.IsValid(models.SensorPressure) {
			samples = append(samples, r)
		}
	}
	if len(samples) == 0 {
		return nil
	}

	tempRange := valueRange(samples, models.SensorTemperature)
	humidityRange := valueRange(samples, models.SensorHumidity)
	pressureRange := valueRange(samples, models.SensorPressure)

	if tempRange <= 10 || humidityRange <= 15 || pressureRange <= 10 {
		return nil
	}

	return &Candidate{
		EventType:   models.EventEnvironmentalChange,
		StartTimeMs: samples[0].TimestampMs,
		EndTimeMs:   t,
		SensorValues: map[string]float64{
			"temperature_range": tempRange, "humidity_range": humidityRange, "pressure_range": pressureRange,
		},
	}
}

func valueRange(readings []models.Reading, sensor string) float64 {
	var minVal, maxVal float64
	found := false
	for _, r := range readings {
		v, _ := r.Value(sensor)
		if !found {
			minVal, maxVal = v, v
			found = true
			continue
		}
		if v < minVal {
			minVal = v
		}
		if v > maxVal {
			maxVal = v
		}
	}
	return maxVal - minVal
}

// allDetectors returns every detector function paired with a name for
// logging when a detector panics.
func allDetectors() []struct {
	name string
	run  func(series) *Candidate
} {
	return []struct {
		name string
		run  func(series) *Candidate
	}{
		{"watering", detectWatering},
		{"drying_cycle", detectDryingCycle},
		{"temperature_stress", detectTemperatureStress},
		{"humidity_anomaly", detectHumidityAnomaly},
		{"environmental_change", detectEnvironmentalChange},
	}
}

func (c Candidate) String() string {
	return fmt.Sprintf("%s@%d", c.EventType, c.StartTimeMs)
}
