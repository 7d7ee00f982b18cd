package memdb

import (
	"context"
	"fmt"
	"sync"

	"github.com/allenheltondev/dirt-man/internal/store"
	"github.com/allenheltondev/dirt-man/pkg/models"
)

// AggregateStore is the in-memory Aggregates table.
type AggregateStore struct {
	mu    sync.Mutex
	byKey map[models.DeviceWindowKey]map[int64]models.Aggregate
	feed  feed[models.Aggregate]
}

// NewAggregateStore constructs an empty in-memory Aggregates table.
func NewAggregateStore() *AggregateStore {
	return &AggregateStore{byKey: make(map[models.DeviceWindowKey]map[int64]models.Aggregate)}
}

func (s *AggregateStore) Get(_ context.Context, key models.DeviceWindowKey, windowStartMs int64) (models.Aggregate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows, ok := s.byKey[key]
	if !ok {
		return models.Aggregate{}, fmt.Errorf("aggregate %s@%d: %w", key, windowStartMs, store.ErrNotFound)
	}
	a, ok := rows[windowStartMs]
	if !ok {
		return models.Aggregate{}, fmt.Errorf("aggregate %s@%d: %w", key, windowStartMs, store.ErrNotFound)
	}
	return a, nil
}

func (s *AggregateStore) Put(_ context.Context, a models.Aggregate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := a.Key()
	rows, ok := s.byKey[key]
	if !ok {
		rows = make(map[int64]models.Aggregate)
		s.byKey[key] = rows
	}
	_, existed := rows[a.WindowStartMs]
	rows[a.WindowStartMs] = a
	if existed {
		s.feed.append(store.ChangeModify, a)
	} else {
		s.feed.append(store.ChangeInsert, a)
	}
	return nil
}

func (s *AggregateStore) RangeByWindow(_ context.Context, key models.DeviceWindowKey, fromMs, toMs int64) ([]models.Aggregate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows, ok := s.byKey[key]
	if !ok {
		return nil, nil
	}
	var out []models.Aggregate
	for start, a := range rows {
		if start >= fromMs && start < toMs {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *AggregateStore) DevicesWithWindow(_ context.Context, windowType models.WindowType, fromMs, toMs int64) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := make(map[string]struct{})
	for key, rows := range s.byKey {
		if key.WindowType != windowType {
			continue
		}
		for start := range rows {
			if start >= fromMs && start < toMs {
				seen[key.HardwareID] = struct{}{}
				break
			}
		}
	}
	out := make([]string, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	return out, nil
}

func (s *AggregateStore) Changes() store.ChangeFeed[models.Aggregate] { return &s.feed }
