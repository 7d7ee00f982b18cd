// Package devicestatus maintains the DeviceStatus table under a
// field-ownership discipline: every updater writes only the fields it
// owns, via a field-scoped read-modify-write, never a full-row put.
package devicestatus

import (
	"context"

	"github.com/allenheltondev/dirt-man/internal/store"
	"github.com/allenheltondev/dirt-man/pkg/models"
)

// Maintainer exposes one method per owning component; each touches only that
// component's fields plus the shared UpdatedAtMs stamp, except that
// RecordIngestion and RecordAggregateComputed both set SensorStatusSummary.
type Maintainer struct {
	statuses store.DeviceStatusStore
}

// New builds a Maintainer over the DeviceStatus table.
func New(statuses store.DeviceStatusStore) *Maintainer {
	return &Maintainer{statuses: statuses}
}

// RecordIngestion is owned by the ingestion/status worker.
func (m *Maintainer) RecordIngestion(ctx context.Context, hardwareID string, eventTimeMs, ingestTimeMs int64, summary models.SensorStatusSummary, nowMs int64) error {
	return m.statuses.Update(ctx, hardwareID, func(s *models.DeviceStatus) {
		s.LastSeenEventTimeMs = eventTimeMs
		s.LastSeenIngestTimeMs = ingestTimeMs
		s.SensorStatusSummary = summary
		s.UpdatedAtMs = nowMs
	})
}

// RecordAggregateComputed is owned by the Aggregator. Besides its own fields
// it overwrites SensorStatusSummary with a summary derived from coverage.
func (m *Maintainer) RecordAggregateComputed(ctx context.Context, hardwareID string, computedAtMs int64, coveragePct float64) error {
	return m.statuses.Update(ctx, hardwareID, func(s *models.DeviceStatus) {
		s.LastAggregateComputedAt = computedAtMs
		s.CoveragePctLastHour = coveragePct
		s.SensorStatusSummary = summaryFromCoverage(coveragePct)
		s.UpdatedAtMs = computedAtMs
	})
}

// RecordEventDetected is owned by the Event Detector.
func (m *Maintainer) RecordEventDetected(ctx context.Context, hardwareID string, detectedAtMs, processedEventTimeMs int64) error {
	return m.statuses.Update(ctx, hardwareID, func(s *models.DeviceStatus) {
		s.LastEventDetectedAtMs = detectedAtMs
		s.LastProcessedEventTime = processedEventTimeMs
		s.UpdatedAtMs = detectedAtMs
	})
}

// RecordInsightGenerated is owned by the Insight Generator.
func (m *Maintainer) RecordInsightGenerated(ctx context.Context, hardwareID string, generatedAtMs int64) error {
	return m.statuses.Update(ctx, hardwareID, func(s *models.DeviceStatus) {
		s.LastInsightGeneratedAt = generatedAtMs
		s.UpdatedAtMs = generatedAtMs
	})
}

// RecordError is callable by any component: append-with-truncate onto the
// shared error log.
func (m *Maintainer) RecordError(ctx context.Context, hardwareID string, code, message string, nowMs int64) error {
	return m.statuses.Update(ctx, hardwareID, func(s *models.DeviceStatus) {
		s.LastErrorAtMs = nowMs
		s.LastErrorCode = code
		s.LastErrors = appendError(s.LastErrors, models.ErrorRecord{
			TimestampMs:  nowMs,
			ErrorCode:    code,
			ErrorMessage: truncate(message, models.MaxErrorMessageLen),
		})
		s.UpdatedAtMs = nowMs
	})
}

// appendError appends rec and drops the oldest entries beyond the bound.
func appendError(errs []models.ErrorRecord, rec models.ErrorRecord) []models.ErrorRecord {
	errs = append(errs, rec)
	if len(errs) > models.MaxTrackedErrors {
		errs = errs[len(errs)-models.MaxTrackedErrors:]
	}
	return errs
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}

// summaryFromCoverage maps a coverage fraction to the coarse sensor status
// summary.
func summaryFromCoverage(coverage float64) models.SensorStatusSummary {
	switch {
	case coverage >= 0.8:
		return models.SensorSummaryOK
	case coverage >= 0.3:
		return models.SensorSummaryDegraded
	default:
		return models.SensorSummaryMissing
	}
}
