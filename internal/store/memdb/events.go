package memdb

import (
	"context"
	"sync"

	"github.com/allenheltondev/dirt-man/internal/store"
	"github.com/allenheltondev/dirt-man/pkg/models"
)

// EventStore is the in-memory Events table.
type EventStore struct {
	mu    sync.Mutex
	byKey map[models.EventKey]models.Event
	feed  feed[models.Event]
}

// NewEventStore constructs an empty in-memory Events table.
func NewEventStore() *EventStore {
	return &EventStore{byKey: make(map[models.EventKey]models.Event)}
}

func (s *EventStore) PutIfAbsent(_ context.Context, e models.Event) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := e.Key()
	if _, exists := s.byKey[key]; exists {
		return false, nil
	}
	s.byKey[key] = e
	s.feed.append(store.ChangeInsert, e)
	return true, nil
}

func (s *EventStore) RangeByTime(_ context.Context, hardwareID string, fromMs, toMs int64) ([]models.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Event
	for _, e := range s.byKey {
		if e.HardwareID == hardwareID && e.StartTimeMs >= fromMs && e.StartTimeMs < toMs {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *EventStore) RangeByTimeAndType(_ context.Context, hardwareID string, fromMs, toMs int64, eventType models.EventType) ([]models.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Event
	for _, e := range s.byKey {
		if e.HardwareID == hardwareID && e.EventType == eventType && e.StartTimeMs >= fromMs && e.StartTimeMs < toMs {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *EventStore) Changes() store.ChangeFeed[models.Event] { return &s.feed }
