package memdb

import (
	"context"
	"sync"

	"github.com/allenheltondev/dirt-man/pkg/models"
)

// ProfileStore is the in-memory DeviceProfiles table.
type ProfileStore struct {
	mu   sync.Mutex
	rows map[string]models.DeviceProfile
}

// NewProfileStore constructs an empty in-memory DeviceProfiles table.
func NewProfileStore() *ProfileStore {
	return &ProfileStore{rows: make(map[string]models.DeviceProfile)}
}

func (s *ProfileStore) Get(_ context.Context, hardwareID string) (models.DeviceProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.rows[hardwareID]
	if !ok {
		return models.DeviceProfile{HardwareID: hardwareID, ExpectedIntervalSec: models.DefaultExpectedIntervalSec}, nil
	}
	return p, nil
}

// UpdateUserFields applies fn to only the user-owned fields of the profile;
// fn must not touch learned fields (enforced by convention in the HTTP API,
// out of scope here — this store simply persists whatever fn mutated).
func (s *ProfileStore) UpdateUserFields(_ context.Context, hardwareID string, fn func(*models.DeviceProfile)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.get(hardwareID)
	fn(&p)
	s.rows[hardwareID] = p
	return nil
}

// UpdateLearnedFields applies fn to the stored profile and persists whatever
// fn mutated; it does not restrict fn to the system-learned fields.
func (s *ProfileStore) UpdateLearnedFields(_ context.Context, hardwareID string, fn func(*models.DeviceProfile)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.get(hardwareID)
	fn(&p)
	s.rows[hardwareID] = p
	return nil
}

func (s *ProfileStore) get(hardwareID string) models.DeviceProfile {
	p, ok := s.rows[hardwareID]
	if !ok {
		return models.DeviceProfile{HardwareID: hardwareID, ExpectedIntervalSec: models.DefaultExpectedIntervalSec}
	}
	return p
}
