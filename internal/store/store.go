// Package store defines the persistence abstraction: primary-key get/put,
// conditional put/update, atomic add and set-if-absent, per-partition
// range queries, per-table change feeds, secondary indexes, and per-row TTL.
// The underlying key-value store is treated abstractly — see memdb for the
// in-memory reference implementation.
package store

import (
	"context"
	"errors"

	"github.com/allenheltondev/dirt-man/pkg/models"
)

// ErrConditionFailed is returned when a conditional write's precondition
// does not hold. Not an error condition by itself; it indicates dedup or
// ownership loss.
// Callers are expected to treat it as a no-op signal, never log it as a
// failure.
var ErrConditionFailed = errors.New("store: conditional check failed")

// ErrNotFound is returned by Get when no row exists for the given key.
var ErrNotFound = errors.New("store: not found")

// IsNotFound reports whether err wraps ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// ChangeType distinguishes an insert/modify/remove record on a change feed.
type ChangeType string

const (
	ChangeInsert ChangeType = "insert"
	ChangeModify ChangeType = "modify"
	ChangeRemove ChangeType = "remove"
)

// ChangeRecord is one per-shard-ordered entry from a table's change feed.
type ChangeRecord[T any] struct {
	Sequence int64
	Type     ChangeType
	Item     T
}

// ReadingStore is the Readings table. A second write to an existing
// natural key is a deduplication signal, not an error.
type ReadingStore interface {
	// PutIfAbsent inserts a reading; returns (false, nil) if the natural key
	// already exists (dedup), not an error.
	PutIfAbsent(ctx context.Context, r models.Reading) (inserted bool, err error)
	Get(ctx context.Context, hardwareID string, timestampMs int64) (models.Reading, error)
	// Range returns readings for hardwareID with timestamp in [fromMs, toMs),
	// ascending, paginated via continuation tokens.
	Range(ctx context.Context, hardwareID string, fromMs, toMs int64, pageToken string) (items []models.Reading, nextPageToken string, err error)
	Changes() ChangeFeed[models.Reading]
}

// AggregateStore is the Aggregates table, owned by the Aggregator.
type AggregateStore interface {
	Get(ctx context.Context, key models.DeviceWindowKey, windowStartMs int64) (models.Aggregate, error)
	// Put unconditionally overwrites the row (rebuild and combine are
	// idempotent by construction — the key is fixed).
	Put(ctx context.Context, a models.Aggregate) error
	// RangeByWindow returns rows for key with WindowStartMs in [fromMs, toMs).
	RangeByWindow(ctx context.Context, key models.DeviceWindowKey, fromMs, toMs int64) ([]models.Aggregate, error)
	// DevicesWithWindow lists hardware IDs that have any row of windowType
	// with WindowStartMs in [fromMs, toMs) — used for daily/weekly fan-out.
	DevicesWithWindow(ctx context.Context, windowType models.WindowType, fromMs, toMs int64) ([]string, error)
	Changes() ChangeFeed[models.Aggregate]
}

// EventStore is the Events table, append-only and idempotent per key.
type EventStore interface {
	// PutIfAbsent persists an event; returns (false, nil) on key collision —
	// a second insert with the same key is a no-op.
	PutIfAbsent(ctx context.Context, e models.Event) (inserted bool, err error)
	// RangeByTime returns events for hardwareID with StartTimeMs in [fromMs, toMs).
	RangeByTime(ctx context.Context, hardwareID string, fromMs, toMs int64) ([]models.Event, error)
	// RangeByTimeAndType is RangeByTime filtered to a single event type,
	// backed by the secondary index on event_type.
	RangeByTimeAndType(ctx context.Context, hardwareID string, fromMs, toMs int64, eventType models.EventType) ([]models.Event, error)
	Changes() ChangeFeed[models.Event]
}

// DeviceProfileStore is the DeviceProfiles table.
type DeviceProfileStore interface {
	Get(ctx context.Context, hardwareID string) (models.DeviceProfile, error)
	// UpdateUserFields and UpdateLearnedFields are disjoint, field-scoped
	// writers: neither may touch the other's fields.
	UpdateUserFields(ctx context.Context, hardwareID string, fn func(*models.DeviceProfile)) error
	UpdateLearnedFields(ctx context.Context, hardwareID string, fn func(*models.DeviceProfile)) error
}

// DeviceStatusStore is the DeviceStatus table, field-partitioned across
// components. Every update is a field-scoped read-modify-write, never
// a full-row put.
type DeviceStatusStore interface {
	Get(ctx context.Context, hardwareID string) (models.DeviceStatus, error)
	// Update applies fn to a copy of the current row (or a zero-value row if
	// absent) and persists the result. Callers must only mutate the fields
	// they own; ownership is enforced by the devicestatus package's typed
	// updater functions, not by this interface.
	Update(ctx context.Context, hardwareID string, fn func(*models.DeviceStatus)) error
	// RangeByHealthCategory lists devices whose *stored* category matches —
	// present for completeness as a secondary index; the maintainer
	// itself derives health at read time from last_seen/last_error instead of
	// trusting a stale stored category.
	RangeByHealthCategory(ctx context.Context, category models.HealthCategory) ([]string, error)
	// AllRecentlyIngesting lists hardware IDs whose LastSeenIngestTimeMs is
	// within the last `withinMs` of nowMs. Implemented as a full scan today;
	// a production deployment would maintain a health-index-backed listing.
	AllRecentlyIngesting(ctx context.Context, nowMs, withinMs int64) ([]string, error)
}

// InsightStore is the Insights table, owned by the generator.
type InsightStore interface {
	PutIfAbsent(ctx context.Context, i models.Insight) (inserted bool, err error)
	Get(ctx context.Context, hardwareID string, timestampMs int64) (models.Insight, error)
	RangeByTime(ctx context.Context, hardwareID string, fromMs, toMs int64) ([]models.Insight, error)
	Changes() ChangeFeed[models.Insight]
}

// InsightRequestStore is the InsightRequests table: both queue and audit log.
type InsightRequestStore interface {
	PutIfAbsent(ctx context.Context, r models.InsightRequest) (inserted bool, err error)
	// CompareAndSwapStatus performs the queue's CAS transition; returns
	// (false, nil) if the current status did not match `from` (lost the
	// race — ErrConditionFailed semantics, not an error to the caller).
	CompareAndSwapStatus(ctx context.Context, hardwareID string, requestTimeMs int64, from, to models.RequestStatus, failureMessage string) (bool, error)
	// ListPending returns up to `limit` requests with status pending, oldest
	// first; the generator fetches a small batch per tick.
	ListPending(ctx context.Context, limit int) ([]models.InsightRequest, error)
	// CountSince counts requests for hardwareID with RequestTimeMs >= sinceMs
	// and the given type (used for the daily event-driven request cap).
	CountSince(ctx context.Context, hardwareID string, sinceMs int64, requestType models.RequestType) (int, error)
	// HasPendingSince reports whether a pending request exists for
	// hardwareID with RequestTimeMs >= sinceMs.
	HasPendingSince(ctx context.Context, hardwareID string, sinceMs int64) (bool, error)
}

// RollupStore is the Rollups table, exclusively owned by the rollup updater.
type RollupStore interface {
	// AddCounter atomically increments count (and sum, if provided) for
	// (bucketKey, metricKey), setting static attributes and TTL if absent.
	AddCounter(ctx context.Context, r models.Rollup) error
	Get(ctx context.Context, bucketKey, metricKey string) (models.Rollup, error)
}

// ProcessedReadingStore is the ProcessedReadings idempotency ledger.
type ProcessedReadingStore interface {
	// MarkIfAbsent atomically sets the named stage column to nowMs, iff it
	// was previously absent on that row. Returns whether the caller obtained
	// ownership.
	MarkIfAbsent(ctx context.Context, readingID, hardwareID, stageColumn string, nowMs int64) (owned bool, err error)
	IsProcessed(ctx context.Context, readingID, stageColumn string) (bool, error)
}

// ChangeFeed exposes an ordered-per-shard stream of change records. Poll
// returns up to `limit` records starting after `fromSequence`; workers track
// their own cursor (the in-memory implementation keeps changes unbounded in
// memory, a real backend would be a Streams/Kinesis-style shard iterator).
type ChangeFeed[T any] interface {
	Poll(ctx context.Context, fromSequence int64, limit int) ([]ChangeRecord[T], error)
}
