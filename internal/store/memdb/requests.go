package memdb

import (
	"context"
	"sort"
	"sync"

	"github.com/allenheltondev/dirt-man/pkg/models"
)

type requestKey struct {
	hardwareID    string
	requestTimeMs int64
}

// RequestStore is the in-memory InsightRequests table: queue and audit log.
type RequestStore struct {
	mu    sync.Mutex
	byKey map[requestKey]models.InsightRequest
	order []requestKey
}

// NewRequestStore constructs an empty in-memory InsightRequests table.
func NewRequestStore() *RequestStore {
	return &RequestStore{byKey: make(map[requestKey]models.InsightRequest)}
}

// Get returns the current row for (hardwareID, requestTimeMs). Exposed
// primarily for tests and operational inspection; the generator itself only
// needs PutIfAbsent/CompareAndSwapStatus/ListPending.
func (s *RequestStore) Get(_ context.Context, hardwareID string, requestTimeMs int64) (models.InsightRequest, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.byKey[requestKey{hardwareID, requestTimeMs}]
	return r, ok
}

func (s *RequestStore) PutIfAbsent(_ context.Context, r models.InsightRequest) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := requestKey{r.HardwareID, r.RequestTimeMs}
	if _, exists := s.byKey[k]; exists {
		return false, nil
	}
	s.byKey[k] = r
	s.order = append(s.order, k)
	return true, nil
}

func (s *RequestStore) CompareAndSwapStatus(_ context.Context, hardwareID string, requestTimeMs int64, from, to models.RequestStatus, failureMessage string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := requestKey{hardwareID, requestTimeMs}
	r, ok := s.byKey[k]
	if !ok || r.Status != from {
		return false, nil
	}
	r.Status = to
	if to == models.RequestFailed {
		r.FailureMessage = failureMessage
	}
	s.byKey[k] = r
	return true, nil
}

func (s *RequestStore) ListPending(_ context.Context, limit int) ([]models.InsightRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]requestKey, len(s.order))
	copy(keys, s.order)
	sort.Slice(keys, func(i, j int) bool {
		return s.byKey[keys[i]].RequestTimeMs < s.byKey[keys[j]].RequestTimeMs
	})
	var out []models.InsightRequest
	for _, k := range keys {
		r := s.byKey[k]
		if r.Status == models.RequestPending {
			out = append(out, r)
			if limit > 0 && len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

func (s *RequestStore) CountSince(_ context.Context, hardwareID string, sinceMs int64, requestType models.RequestType) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, r := range s.byKey {
		if r.HardwareID == hardwareID && r.RequestTimeMs >= sinceMs && r.RequestType == requestType {
			count++
		}
	}
	return count, nil
}

func (s *RequestStore) HasPendingSince(_ context.Context, hardwareID string, sinceMs int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.byKey {
		if r.HardwareID == hardwareID && r.RequestTimeMs >= sinceMs && r.Status == models.RequestPending {
			return true, nil
		}
	}
	return false, nil
}
