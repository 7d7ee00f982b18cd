// Package models defines the persisted entities of the plant telemetry
// insights pipeline: readings, aggregates, events, device profiles/status,
// insights and their requests, and rollup counters. Types here are the
// wire/storage shapes shared across every worker; they carry no behavior
// beyond small invariants checks.
package models

import (
	"fmt"
	"math"
)

// SensorStatus tags the quality of a single sensor reading.
type SensorStatus string

const (
	SensorOK         SensorStatus = "ok"
	SensorMissing    SensorStatus = "missing"
	SensorStale      SensorStatus = "stale"
	SensorOutOfRange SensorStatus = "out_of_range"
	SensorNoisy      SensorStatus = "noisy"
)

// Sensor names used as map keys / dimension values throughout.
const (
	SensorTemperature = "temperature"
	SensorHumidity    = "humidity"
	SensorPressure    = "pressure"
	SensorSoilMoisture = "soil_moisture"
)

// AllSensors lists the four sensor channels in a fixed, stable order.
var AllSensors = []string{SensorTemperature, SensorHumidity, SensorPressure, SensorSoilMoisture}

// Reading is a single immutable sensor sample for a device.
// Natural key: (HardwareID, TimestampMs).
type Reading struct {
	HardwareID   string                  `json:"hardware_id"`
	TimestampMs  int64                   `json:"timestamp_ms"`
	BatchID      string                  `json:"batch_id"`
	IngestTimeMs int64                   `json:"ingest_time_ms"`
	Values       map[string]float64      `json:"values,omitempty"`
	Statuses     map[string]SensorStatus `json:"statuses,omitempty"`
}

// ReadingID derives the logical ingestion identifier: batch_id#timestamp_ms.
func (r Reading) ReadingID() string {
	return fmt.Sprintf("%s#%d", r.BatchID, r.TimestampMs)
}

// Value returns the sensor value and whether it is present.
func (r Reading) Value(sensor string) (float64, bool) {
	v, ok := r.Values[sensor]
	return v, ok
}

// Status returns the sensor's status tag, defaulting to ok when absent.
func (r Reading) Status(sensor string) SensorStatus {
	if s, ok := r.Statuses[sensor]; ok {
		return s
	}
	return SensorOK
}

// IsValid reports whether a sensor's value is present and its status is ok.
func (r Reading) IsValid(sensor string) bool {
	_, hasValue := r.Values[sensor]
	return hasValue && r.Status(sensor) == SensorOK
}

// WindowType enumerates aggregate window durations.
type WindowType string

const (
	WindowHourly WindowType = "hourly"
	WindowDaily  WindowType = "daily"
	WindowWeekly WindowType = "weekly"
)

// SensorStats holds the running statistics for one sensor within a window.
type SensorStats struct {
	Min         float64 `json:"min,omitempty"`
	Max         float64 `json:"max,omitempty"`
	Sum         float64 `json:"sum"`
	SumSq       float64 `json:"sumsq"`
	ValidCount  int     `json:"valid_count"`
	TotalCount  int     `json:"total_count"`
	HasMinMax   bool    `json:"has_min_max"`
}

// Avg returns the mean of valid samples, and whether it is defined.
func (s SensorStats) Avg() (float64, bool) {
	if s.ValidCount == 0 {
		return 0, false
	}
	return s.Sum / float64(s.ValidCount), true
}

// StdDev returns the population standard deviation of valid samples.
func (s SensorStats) StdDev() (float64, bool) {
	avg, ok := s.Avg()
	if !ok {
		return 0, false
	}
	variance := s.SumSq/float64(s.ValidCount) - avg*avg
	if variance < 0 {
		variance = 0
	}
	return math.Sqrt(variance), true
}

// DeviceWindowKey is the composite partition key for an Aggregate row.
type DeviceWindowKey struct {
	HardwareID string     `json:"hardware_id"`
	WindowType WindowType `json:"window_type"`
}

// String renders "hardware_id#window_type".
func (k DeviceWindowKey) String() string {
	return fmt.Sprintf("%s#%s", k.HardwareID, k.WindowType)
}

// Aggregate is a time-windowed statistics row for one device.
type Aggregate struct {
	HardwareID    string                 `json:"hardware_id"`
	WindowType    WindowType             `json:"window_type"`
	WindowStartMs int64                  `json:"window_start_ms"`
	WindowEndMs   int64                  `json:"window_end_ms"`
	Sensors       map[string]SensorStats `json:"sensors"`
	IsComplete    bool                   `json:"is_complete"`
	ComputedAtMs  int64                  `json:"computed_at_ms"`
}

// Key returns the composite device/window key for this aggregate.
func (a Aggregate) Key() DeviceWindowKey {
	return DeviceWindowKey{HardwareID: a.HardwareID, WindowType: a.WindowType}
}

// EventType enumerates the five physical events the detector emits.
type EventType string

const (
	EventWateringEvent      EventType = "Watering_Event"
	EventDryingCycle        EventType = "Drying_Cycle"
	EventTemperatureStress  EventType = "Temperature_Stress"
	EventHumidityAnomaly    EventType = "Humidity_Anomaly"
	EventEnvironmentalChange EventType = "Environmental_Change"
)

// Event is a detected physical occurrence. Key: (HardwareID, StartTimeMs).
type Event struct {
	HardwareID        string                 `json:"hardware_id"`
	EventType         EventType              `json:"event_type"`
	StartTimeMs       int64                  `json:"start_time_ms"`
	EndTimeMs         int64                  `json:"end_time_ms"`
	SensorValues      map[string]float64     `json:"sensor_values,omitempty"`
	DetectionMetadata map[string]string      `json:"detection_metadata,omitempty"`
	CreatedAtMs       int64                  `json:"created_at_ms"`
}

// EventKey is the composite key for an Event row.
type EventKey struct {
	HardwareID  string
	StartTimeMs int64
}

func (e Event) Key() EventKey {
	return EventKey{HardwareID: e.HardwareID, StartTimeMs: e.StartTimeMs}
}

// MoistureRange is a learned baseline band for soil moisture.
type MoistureRange struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// DeviceProfile holds user-owned and system-learned fields for a device.
// User fields and learned fields are never written by the same component
// (see package profile and the HTTP API, out of scope here).
type DeviceProfile struct {
	HardwareID string `json:"hardware_id"`

	// User-owned.
	PlantType           string  `json:"plant_type,omitempty"`
	SoilType            string  `json:"soil_type,omitempty"`
	PotSizeLiters       float64 `json:"pot_size_liters,omitempty"`
	ExpectedIntervalSec int     `json:"expected_interval_sec"`

	// System-learned.
	TypicalWateringIntervalSec *int           `json:"typical_watering_interval_sec,omitempty"`
	BaselineMoistureRange      *MoistureRange `json:"baseline_moisture_range,omitempty"`
	LastWateringEvents         []int64        `json:"last_watering_events,omitempty"`
}

// DefaultExpectedIntervalSec is the default reading cadence.
const DefaultExpectedIntervalSec = 300

// MaxTrackedWateringEvents bounds DeviceProfile.LastWateringEvents.
const MaxTrackedWateringEvents = 20

// HealthCategory is the derived health classification of a device.
type HealthCategory string

const (
	HealthHealthy  HealthCategory = "healthy"
	HealthStale    HealthCategory = "stale"
	HealthMissing  HealthCategory = "missing"
	HealthFailing  HealthCategory = "failing"
)

// SensorStatusSummary is the coarse per-device sensor health signal.
type SensorStatusSummary string

const (
	SensorSummaryOK       SensorStatusSummary = "ok"
	SensorSummaryDegraded SensorStatusSummary = "degraded"
	SensorSummaryMissing  SensorStatusSummary = "missing"
)

// ErrorRecord is one bounded, truncated error log entry.
type ErrorRecord struct {
	TimestampMs  int64  `json:"timestamp_ms"`
	ErrorCode    string `json:"error_code"`
	ErrorMessage string `json:"error_message"`
}

// MaxErrorMessageLen bounds ErrorRecord.ErrorMessage.
const MaxErrorMessageLen = 256

// MaxTrackedErrors bounds DeviceStatus.LastErrors.
const MaxTrackedErrors = 10

// DeviceStatus carries health signals only, partitioned by owner.
type DeviceStatus struct {
	HardwareID string `json:"hardware_id"`

	LastSeenEventTimeMs    int64               `json:"last_seen_event_time_ms,omitempty"`
	LastSeenIngestTimeMs   int64               `json:"last_seen_ingest_time_ms,omitempty"`
	LastProcessedEventTime int64               `json:"last_processed_event_time_ms,omitempty"`
	CoveragePctLastHour    float64             `json:"coverage_pct_last_hour,omitempty"`
	SensorStatusSummary    SensorStatusSummary `json:"sensor_status_summary,omitempty"`

	LastEventDetectedAtMs   int64 `json:"last_event_detected_at_ms,omitempty"`
	LastAggregateComputedAt int64 `json:"last_aggregate_computed_at_ms,omitempty"`
	LastInsightGeneratedAt  int64 `json:"last_insight_generated_at_ms,omitempty"`

	LastErrorAtMs int64         `json:"last_error_at_ms,omitempty"`
	LastErrorCode string        `json:"last_error_code,omitempty"`
	LastErrors    []ErrorRecord `json:"last_errors,omitempty"`

	UpdatedAtMs int64 `json:"updated_at_ms,omitempty"`
}

// Confidence is the LLM-produced confidence category for an Insight.
type Confidence string

const (
	ConfidenceLow    Confidence = "low"
	ConfidenceMedium Confidence = "medium"
	ConfidenceHigh   Confidence = "high"
)

// Trend is the LLM-produced trend category for an Insight.
type Trend string

const (
	TrendImproving Trend = "improving"
	TrendDeclining Trend = "declining"
	TrendStable    Trend = "stable"
)

// Urgency labels a Recommendation's priority.
type Urgency string

const (
	UrgencyLow    Urgency = "low"
	UrgencyMedium Urgency = "medium"
	UrgencyHigh   Urgency = "high"
)

// Recommendation is one actionable item surfaced in an Insight.
type Recommendation struct {
	Action  string  `json:"action"`
	Reason  string  `json:"reason"`
	Urgency Urgency `json:"urgency"`
}

// Insight is a generated natural-language assessment. Key: (HardwareID, TimestampMs).
type Insight struct {
	HardwareID            string           `json:"hardware_id"`
	TimestampMs           int64            `json:"timestamp_ms"`
	Summary               string           `json:"summary"`
	Recommendations       []Recommendation `json:"recommendations,omitempty"`
	Confidence            Confidence       `json:"confidence"`
	Trend                 Trend            `json:"trend"`
	GrowthStageSuggestion string           `json:"growth_stage_suggestion,omitempty"`
	Evidence              map[string]any   `json:"evidence,omitempty"`
	ModelID               string           `json:"model_id,omitempty"`
	GenerationDurationMs  int64            `json:"generation_duration_ms,omitempty"`
}

// RequestType distinguishes scheduled insight requests from event-driven ones.
type RequestType string

const (
	RequestScheduled RequestType = "scheduled"
	RequestEvent     RequestType = "event"
)

// RequestStatus is the lifecycle state of an InsightRequest.
type RequestStatus string

const (
	RequestPending    RequestStatus = "pending"
	RequestProcessing RequestStatus = "processing"
	RequestDone       RequestStatus = "done"
	RequestFailed     RequestStatus = "failed"
)

// InsightRequest is both the generator's work queue entry and its audit log
// row. Key: (HardwareID, RequestTimeMs).
type InsightRequest struct {
	HardwareID     string        `json:"hardware_id"`
	RequestTimeMs  int64         `json:"request_time_ms"`
	RequestType    RequestType   `json:"request_type"`
	EventType      EventType     `json:"event_type,omitempty"`
	Status         RequestStatus `json:"status"`
	FailureMessage string        `json:"failure_message,omitempty"`
}

// BucketType enumerates rollup bucket granularities.
type BucketType string

const (
	BucketMinute BucketType = "minute"
	BucketHour   BucketType = "hour"
)

// Rollup is one operational counter/sum keyed by bucket and metric.
type Rollup struct {
	BucketKey  string            `json:"bucket_key"`
	MetricKey  string            `json:"metric_key"`
	BucketType BucketType        `json:"bucket_type"`
	StartMs    int64             `json:"bucket_start_ms"`
	MetricName string            `json:"metric_name"`
	Dimensions map[string]string `json:"dimensions,omitempty"`
	Count      int64             `json:"count"`
	Sum        float64           `json:"sum"`
	HasSum     bool              `json:"has_sum"`
	TTLSeconds int64             `json:"ttl"`
}

// ProcessedReading is the idempotency ledger row. Key: ReadingID.
type ProcessedReading struct {
	ReadingID             string `json:"reading_id"`
	HardwareID            string `json:"hardware_id"`
	EventProcessedAtMs    *int64 `json:"event_processed_at_ms,omitempty"`
	AggregateProcessedAt  *int64 `json:"aggregate_processed_at_ms,omitempty"`
	StatusProcessedAtMs   *int64 `json:"status_processed_at_ms,omitempty"`
	TTLSeconds            int64  `json:"ttl"`
}

// ProcessedReadingsTTL is the ledger row lifetime.
const ProcessedReadingsTTL = 30 * 24 * 60 * 60 // seconds
