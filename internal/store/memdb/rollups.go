package memdb

import (
	"context"
	"fmt"
	"sync"

	"github.com/allenheltondev/dirt-man/internal/store"
	"github.com/allenheltondev/dirt-man/pkg/models"
)

type rollupKey struct {
	bucketKey string
	metricKey string
}

// RollupStore is the in-memory Rollups table, exclusively written by the
// rollup updater.
type RollupStore struct {
	mu   sync.Mutex
	rows map[rollupKey]models.Rollup
}

// NewRollupStore constructs an empty in-memory Rollups table.
func NewRollupStore() *RollupStore {
	return &RollupStore{rows: make(map[rollupKey]models.Rollup)}
}

// AddCounter atomically adds r.Count (and r.Sum, if r.HasSum) to the existing
// row, setting static attributes and TTL only if the row did not exist yet.
func (s *RollupStore) AddCounter(_ context.Context, r models.Rollup) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := rollupKey{r.BucketKey, r.MetricKey}
	existing, ok := s.rows[k]
	if !ok {
		existing = models.Rollup{
			BucketKey:  r.BucketKey,
			MetricKey:  r.MetricKey,
			BucketType: r.BucketType,
			StartMs:    r.StartMs,
			MetricName: r.MetricName,
			Dimensions: r.Dimensions,
			TTLSeconds: r.TTLSeconds,
		}
	}
	existing.Count += r.Count
	if r.HasSum {
		existing.Sum += r.Sum
		existing.HasSum = true
	}
	s.rows[k] = existing
	return nil
}

func (s *RollupStore) Get(_ context.Context, bucketKey, metricKey string) (models.Rollup, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rows[rollupKey{bucketKey, metricKey}]
	if !ok {
		return models.Rollup{}, fmt.Errorf("rollup %s/%s: %w", bucketKey, metricKey, store.ErrNotFound)
	}
	return r, nil
}
