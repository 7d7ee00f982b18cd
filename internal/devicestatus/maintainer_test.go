package devicestatus_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/allenheltondev/dirt-man/internal/devicestatus"
	"github.com/allenheltondev/dirt-man/internal/store/memdb"
	"github.com/allenheltondev/dirt-man/pkg/models"
)

func TestRecordAggregateComputedSetsCoverageAndSummary(t *testing.T) {
	statuses := memdb.NewStatusStore()
	m := devicestatus.New(statuses)
	ctx := context.Background()

	require.NoError(t, m.RecordAggregateComputed(ctx, "D", 1000, 0.9))
	s, err := statuses.Get(ctx, "D")
	require.NoError(t, err)
	assert.Equal(t, models.SensorSummaryOK, s.SensorStatusSummary)
	assert.Equal(t, 0.9, s.CoveragePctLastHour)
}

func TestErrorLogAppendTruncatesAndBounds(t *testing.T) {
	statuses := memdb.NewStatusStore()
	m := devicestatus.New(statuses)
	ctx := context.Background()

	longMsg := strings.Repeat("x", 500)
	for i := 0; i < 15; i++ {
		require.NoError(t, m.RecordError(ctx, "D", "E_TEST", longMsg, int64(i)))
	}

	s, err := statuses.Get(ctx, "D")
	require.NoError(t, err)
	assert.Len(t, s.LastErrors, models.MaxTrackedErrors)
	for _, e := range s.LastErrors {
		assert.LessOrEqual(t, len(e.ErrorMessage), models.MaxErrorMessageLen)
	}
	assert.Equal(t, int64(14), s.LastErrors[len(s.LastErrors)-1].TimestampMs)
}

func TestHealthCategoryDerivation(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC).UnixMilli()

	assert.Equal(t, models.HealthMissing, devicestatus.HealthCategory(models.DeviceStatus{}, now))

	healthy := models.DeviceStatus{LastSeenIngestTimeMs: now - 30*60*1000}
	assert.Equal(t, models.HealthHealthy, devicestatus.HealthCategory(healthy, now))

	stale := models.DeviceStatus{LastSeenIngestTimeMs: now - 4*60*60*1000}
	assert.Equal(t, models.HealthStale, devicestatus.HealthCategory(stale, now))

	missing := models.DeviceStatus{LastSeenIngestTimeMs: now - 8*60*60*1000}
	assert.Equal(t, models.HealthMissing, devicestatus.HealthCategory(missing, now))

	failing := models.DeviceStatus{LastSeenIngestTimeMs: now - 30*60*1000, LastErrorAtMs: now - 60*60*1000}
	assert.Equal(t, models.HealthFailing, devicestatus.HealthCategory(failing, now))
}
