// Package streamfanin runs a batch of records through a worker pool with
// per-record error isolation: one record's failure never blocks or aborts
// the records around it. Callers get back the identifiers of records that
// failed so they can be redriven, mirroring a batch-item-failure response
// contract rather than an all-or-nothing batch outcome.
package streamfanin

import (
	"context"
	"sync"
)

// Identifiable is implemented by anything that can report a stable identifier
// for error reporting and redrive.
type Identifiable interface {
	ItemID() string
}

// Result is the outcome of fanning a batch out across workers.
type Result struct {
	Processed      int
	FailedItemIDs  []string
	Errors         map[string]error
}

// Run drains items across workers concurrently, invoking process for each.
// A panic or returned error from process is isolated to that single item;
// every other item still runs. Order of processing is not guaranteed.
func Run[T Identifiable](ctx context.Context, items []T, workers int, process func(context.Context, T) error) Result {
	if workers <= 0 {
		workers = 1
	}
	if len(items) == 0 {
		return Result{Errors: map[string]error{}}
	}

	in := make(chan T, len(items))
	for _, it := range items {
		in <- it
	}
	close(in)

	var (
		mu     sync.Mutex
		result = Result{Errors: make(map[string]error)}
		wg     sync.WaitGroup
	)

	worker := func() {
		defer wg.Done()
		for item := range in {
			err := invoke(ctx, item, process)

			mu.Lock()
			if err != nil {
				result.FailedItemIDs = append(result.FailedItemIDs, item.ItemID())
				result.Errors[item.ItemID()] = err
			} else {
				result.Processed++
			}
			mu.Unlock()
		}
	}

	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go worker()
	}
	wg.Wait()

	return result
}

// invoke calls process, converting a panic within it into an error so a
// single malformed record cannot take down the whole worker pool.
func invoke[T Identifiable](ctx context.Context, item T, process func(context.Context, T) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{ItemID: item.ItemID(), Recovered: r}
		}
	}()
	return process(ctx, item)
}

// PanicError records a recovered panic from a single record's processing.
type PanicError struct {
	ItemID    string
	Recovered any
}

func (e *PanicError) Error() string {
	return "panic processing item " + e.ItemID
}
