package memdb

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"

	"github.com/allenheltondev/dirt-man/internal/store"
	"github.com/allenheltondev/dirt-man/pkg/models"
)

// ReadingStore is the in-memory Readings table.
type ReadingStore struct {
	mu    sync.Mutex
	byKey map[string]models.Reading
	feed  feed[models.Reading]
}

// NewReadingStore constructs an empty in-memory Readings table.
func NewReadingStore() *ReadingStore {
	return &ReadingStore{byKey: make(map[string]models.Reading)}
}

func readingKey(hardwareID string, timestampMs int64) string {
	return hardwareID + "#" + strconv.FormatInt(timestampMs, 10)
}

func (s *ReadingStore) PutIfAbsent(_ context.Context, r models.Reading) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := readingKey(r.HardwareID, r.TimestampMs)
	if _, exists := s.byKey[k]; exists {
		s.feed.append(store.ChangeModify, r)
		return false, nil
	}
	s.byKey[k] = r
	s.feed.append(store.ChangeInsert, r)
	return true, nil
}

func (s *ReadingStore) Get(_ context.Context, hardwareID string, timestampMs int64) (models.Reading, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.byKey[readingKey(hardwareID, timestampMs)]
	if !ok {
		return models.Reading{}, fmt.Errorf("reading %s@%d: %w", hardwareID, timestampMs, store.ErrNotFound)
	}
	return r, nil
}

// Range returns ascending readings in [fromMs, toMs); pageToken is ignored by
// this reference implementation (the full result set is materialized and
// sorted, which is acceptable at in-memory scale).
func (s *ReadingStore) Range(_ context.Context, hardwareID string, fromMs, toMs int64, _ string) ([]models.Reading, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Reading
	for _, r := range s.byKey {
		if r.HardwareID == hardwareID && r.TimestampMs >= fromMs && r.TimestampMs < toMs {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TimestampMs < out[j].TimestampMs })
	return out, "", nil
}

func (s *ReadingStore) Changes() store.ChangeFeed[models.Reading] { return &s.feed }
