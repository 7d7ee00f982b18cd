package idempotency_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/allenheltondev/dirt-man/internal/clock"
	"github.com/allenheltondev/dirt-man/internal/idempotency"
	"github.com/allenheltondev/dirt-man/internal/store/memdb"
)

func TestLedgerClaimIsExactlyOnce(t *testing.T) {
	s := memdb.NewProcessedStore()
	l := idempotency.New(s, clock.NewFake(time.Unix(0, 0)))
	ctx := context.Background()

	owned, err := l.Claim(ctx, "batch-1#1000", "hw-1", idempotency.StageAggregate)
	require.NoError(t, err)
	assert.True(t, owned)

	owned, err = l.Claim(ctx, "batch-1#1000", "hw-1", idempotency.StageAggregate)
	require.NoError(t, err)
	assert.False(t, owned)
}

func TestLedgerStagesAreIndependent(t *testing.T) {
	s := memdb.NewProcessedStore()
	l := idempotency.New(s, clock.NewFake(time.Unix(0, 0)))
	ctx := context.Background()

	owned, err := l.Claim(ctx, "batch-1#1000", "hw-1", idempotency.StageAggregate)
	require.NoError(t, err)
	assert.True(t, owned)

	owned, err = l.Claim(ctx, "batch-1#1000", "hw-1", idempotency.StageEvent)
	require.NoError(t, err)
	assert.True(t, owned, "a claim on one stage must not block a claim on another stage")
}

func TestLedgerIsClaimed(t *testing.T) {
	s := memdb.NewProcessedStore()
	l := idempotency.New(s, clock.NewFake(time.Unix(0, 0)))
	ctx := context.Background()

	claimed, err := l.IsClaimed(ctx, "batch-1#1000", idempotency.StageStatus)
	require.NoError(t, err)
	assert.False(t, claimed)

	_, err = l.Claim(ctx, "batch-1#1000", "hw-1", idempotency.StageStatus)
	require.NoError(t, err)

	claimed, err = l.IsClaimed(ctx, "batch-1#1000", idempotency.StageStatus)
	require.NoError(t, err)
	assert.True(t, claimed)
}
