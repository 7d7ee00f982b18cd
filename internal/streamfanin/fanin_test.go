package streamfanin_test

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/allenheltondev/dirt-man/internal/streamfanin"
)

type item struct {
	id   string
	fail bool
	pan  bool
}

func (i item) ItemID() string { return i.id }

func TestRunIsolatesFailures(t *testing.T) {
	items := []item{
		{id: "a"},
		{id: "b", fail: true},
		{id: "c"},
		{id: "d", pan: true},
		{id: "e"},
	}

	var processed int32
	result := streamfanin.Run(context.Background(), items, 3, func(_ context.Context, it item) error {
		if it.pan {
			panic("boom")
		}
		if it.fail {
			return errors.New("synthetic failure")
		}
		atomic.AddInt32(&processed, 1)
		return nil
	})

	assert.Equal(t, 3, result.Processed)
	assert.ElementsMatch(t, []string{"b", "d"}, result.FailedItemIDs)
	assert.Error(t, result.Errors["b"])
	assert.Error(t, result.Errors["d"])
	assert.Equal(t, int32(3), processed)
}

func TestRunEmptyBatch(t *testing.T) {
	result := streamfanin.Run(context.Background(), []item{}, 4, func(_ context.Context, it item) error {
		return nil
	})
	assert.Equal(t, 0, result.Processed)
	assert.Empty(t, result.FailedItemIDs)
}

func TestRunDefaultsWorkerCount(t *testing.T) {
	items := []item{{id: "x"}}
	result := streamfanin.Run(context.Background(), items, 0, func(_ context.Context, it item) error {
		return nil
	})
	assert.Equal(t, 1, result.Processed)
}

func TestRunAllItemsRunEvenWhenManyFail(t *testing.T) {
	var items []item
	for i := 0; i < 50; i++ {
		items = append(items, item{id: fmt.Sprintf("item-%d", i), fail: i%2 == 0})
	}
	result := streamfanin.Run(context.Background(), items, 8, func(_ context.Context, it item) error {
		if it.fail {
			return errors.New("fail")
		}
		return nil
	})
	assert.Equal(t, 25, result.Processed)
	assert.Len(t, result.FailedItemIDs, 25)
}
