// Package memdb is the in-memory implementation of the store interfaces:
// a mutex-guarded map plus an append-only slice per table for ordered
// iteration and change-feed draining, standing in for a concrete
// key-value backend until one is wired.
package memdb

import (
	"context"
	"sync"

	"github.com/allenheltondev/dirt-man/internal/store"
)

// feed is a generic, append-only, mutex-guarded change feed shared by every
// in-memory table implementation.
type feed[T any] struct {
	mu      sync.Mutex
	records []store.ChangeRecord[T]
}

func (f *feed[T]) append(changeType store.ChangeType, item T) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = append(f.records, store.ChangeRecord[T]{
		Sequence: int64(len(f.records)) + 1,
		Type:     changeType,
		Item:     item,
	})
}

// Poll implements store.ChangeFeed.
func (f *feed[T]) Poll(_ context.Context, fromSequence int64, limit int) ([]store.ChangeRecord[T], error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []store.ChangeRecord[T]
	for _, r := range f.records {
		if r.Sequence <= fromSequence {
			continue
		}
		out = append(out, r)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}
