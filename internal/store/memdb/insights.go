package memdb

import (
	"context"
	"fmt"
	"sync"

	"github.com/allenheltondev/dirt-man/internal/store"
	"github.com/allenheltondev/dirt-man/pkg/models"
)

type insightKey struct {
	hardwareID  string
	timestampMs int64
}

// InsightStore is the in-memory Insights table.
type InsightStore struct {
	mu    sync.Mutex
	byKey map[insightKey]models.Insight
	feed  feed[models.Insight]
}

// NewInsightStore constructs an empty in-memory Insights table.
func NewInsightStore() *InsightStore {
	return &InsightStore{byKey: make(map[insightKey]models.Insight)}
}

func (s *InsightStore) PutIfAbsent(_ context.Context, i models.Insight) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := insightKey{i.HardwareID, i.TimestampMs}
	if _, exists := s.byKey[k]; exists {
		return false, nil
	}
	s.byKey[k] = i
	s.feed.append(store.ChangeInsert, i)
	return true, nil
}

func (s *InsightStore) Get(_ context.Context, hardwareID string, timestampMs int64) (models.Insight, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.byKey[insightKey{hardwareID, timestampMs}]
	if !ok {
		return models.Insight{}, fmt.Errorf("insight %s@%d: %w", hardwareID, timestampMs, store.ErrNotFound)
	}
	return i, nil
}

func (s *InsightStore) RangeByTime(_ context.Context, hardwareID string, fromMs, toMs int64) ([]models.Insight, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Insight
	for _, i := range s.byKey {
		if i.HardwareID == hardwareID && i.TimestampMs >= fromMs && i.TimestampMs < toMs {
			out = append(out, i)
		}
	}
	return out, nil
}

func (s *InsightStore) Changes() store.ChangeFeed[models.Insight] { return &s.feed }
