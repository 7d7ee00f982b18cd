// Package idempotency wraps the ProcessedReadings table with the three named
// pipeline stages, so workers claim a reading exactly once per stage without
// reasoning about the underlying store directly.
package idempotency

import (
	"context"

	"github.com/allenheltondev/dirt-man/internal/clock"
	"github.com/allenheltondev/dirt-man/internal/store"
)

// Stage names double as the ProcessedReadings column names.
const (
	StageEvent     = "event_processed_at_ms"
	StageAggregate = "aggregate_processed_at_ms"
	StageStatus    = "status_processed_at_ms"
)

// Ledger claims readings for a pipeline stage exactly once.
type Ledger struct {
	store store.ProcessedReadingStore
	clock clock.Clock
}

// New builds a Ledger backed by store and clock.
func New(s store.ProcessedReadingStore, c clock.Clock) *Ledger {
	return &Ledger{store: s, clock: c}
}

// Claim attempts to take ownership of readingID for stage. Only the first
// caller observes owned=true; every subsequent call for the same
// (readingID, stage) pair returns owned=false and no error, signaling the
// caller to skip the reading as already handled.
func (l *Ledger) Claim(ctx context.Context, readingID, hardwareID, stage string) (bool, error) {
	return l.store.MarkIfAbsent(ctx, readingID, hardwareID, stage, clock.NowMs(l.clock))
}

// IsClaimed reports whether readingID has already been claimed for stage.
func (l *Ledger) IsClaimed(ctx context.Context, readingID, stage string) (bool, error) {
	return l.store.IsProcessed(ctx, readingID, stage)
}
