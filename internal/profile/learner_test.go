package profile_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/allenheltondev/dirt-man/internal/profile"
	"github.com/allenheltondev/dirt-man/internal/store/memdb"
	"github.com/allenheltondev/dirt-man/pkg/models"
)

func TestRelearnComputesTypicalIntervalAndBaseline(t *testing.T) {
	events := memdb.NewEventStore()
	aggregates := memdb.NewAggregateStore()
	profiles := memdb.NewProfileStore()
	ctx := context.Background()

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC).UnixMilli()
	dayMs := int64(24 * 60 * 60 * 1000)
	for i := 0; i < 3; i++ {
		_, err := events.PutIfAbsent(ctx, models.Event{
			HardwareID: "D", EventType: models.EventWateringEvent,
			StartTimeMs: base + int64(i)*dayMs,
		})
		require.NoError(t, err)
	}

	for i := 0; i < 12; i++ {
		agg := models.Aggregate{
			HardwareID: "D", WindowType: models.WindowHourly,
			WindowStartMs: base + int64(i)*3600*1000,
			Sensors: map[string]models.SensorStats{
				models.SensorSoilMoisture: {Sum: float64(30 + i), ValidCount: 1, TotalCount: 1},
			},
		}
		require.NoError(t, aggregates.Put(ctx, agg))
	}

	l := profile.New(events, aggregates, profiles)
	require.NoError(t, l.Relearn(ctx, "D", base+10*dayMs))

	p, err := profiles.Get(ctx, "D")
	require.NoError(t, err)
	require.NotNil(t, p.TypicalWateringIntervalSec)
	assert.Equal(t, int(dayMs/1000), *p.TypicalWateringIntervalSec)
	require.NotNil(t, p.BaselineMoistureRange)
	assert.Less(t, p.BaselineMoistureRange.Min, p.BaselineMoistureRange.Max)
	assert.Len(t, p.LastWateringEvents, 3)
}

func TestRelearnRequiresMinimumHistory(t *testing.T) {
	events := memdb.NewEventStore()
	aggregates := memdb.NewAggregateStore()
	profiles := memdb.NewProfileStore()
	ctx := context.Background()

	l := profile.New(events, aggregates, profiles)
	require.NoError(t, l.Relearn(ctx, "D", 1000))

	p, err := profiles.Get(ctx, "D")
	require.NoError(t, err)
	assert.Nil(t, p.TypicalWateringIntervalSec)
	assert.Nil(t, p.BaselineMoistureRange)
}

func TestCheckStressCondition(t *testing.T) {
	now := int64(1_000_000_000)
	assert.False(t, profile.CheckStressCondition(35.0, nil, now))
	assert.True(t, profile.CheckStressCondition(29.0, nil, now))

	recent := now - 10*60*60*1000
	assert.False(t, profile.CheckStressCondition(29.0, &recent, now))

	old := now - 49*60*60*1000
	assert.True(t, profile.CheckStressCondition(29.0, &old, now))
}
