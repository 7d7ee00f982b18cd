// Package insight implements the scheduler and generator: active device
// enumeration, rate-limited request creation, prompt construction,
// retrying LLM calls, keyword sanitization, and persistence.
package insight

import (
	"context"
	"log/slog"

	"github.com/allenheltondev/dirt-man/internal/clock"
	"github.com/allenheltondev/dirt-man/internal/store"
	"github.com/allenheltondev/dirt-man/pkg/models"
)

// DefaultActiveThresholdHours is the configurable default.
const DefaultActiveThresholdHours = 24

// Scheduler enumerates recently-ingesting devices and enqueues scheduled
// insight requests.
type Scheduler struct {
	statuses store.DeviceStatusStore
	requests store.InsightRequestStore
	clock    clock.Clock
	log      *slog.Logger

	ActiveThresholdHours int
}

// NewScheduler builds a Scheduler.
func NewScheduler(statuses store.DeviceStatusStore, requests store.InsightRequestStore, c clock.Clock, log *slog.Logger) *Scheduler {
	if log == nil {
		log = slog.Default()
	}
	return &Scheduler{statuses: statuses, requests: requests, clock: c, log: log, ActiveThresholdHours: DefaultActiveThresholdHours}
}

// Run enumerates devices active within the threshold window and creates one
// pending scheduled InsightRequest per device.
func (s *Scheduler) Run(ctx context.Context) (int, error) {
	nowMs := clock.NowMs(s.clock)
	windowMs := int64(s.ActiveThresholdHours) * 60 * 60 * 1000

	devices, err := s.statuses.AllRecentlyIngesting(ctx, nowMs, windowMs)
	if err != nil {
		return 0, err
	}

	created := 0
	for _, hardwareID := range devices {
		req := models.InsightRequest{
			HardwareID:    hardwareID,
			RequestTimeMs: nowMs,
			RequestType:   models.RequestScheduled,
			Status:        models.RequestPending,
		}
		inserted, err := s.requests.PutIfAbsent(ctx, req)
		if err != nil {
			s.log.Error("insight request creation failed", "hardware_id", hardwareID, "error", err)
			continue
		}
		if inserted {
			created++
		}
	}
	return created, nil
}
