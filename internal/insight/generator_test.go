package insight

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/allenheltondev/dirt-man/internal/clock"
	"github.com/allenheltondev/dirt-man/internal/llm"
	"github.com/allenheltondev/dirt-man/internal/store/memdb"
	"github.com/allenheltondev/dirt-man/pkg/models"
)

type fakeLLM struct {
	response string
	err      error
	calls    int
}

func (f *fakeLLM) Complete(_ context.Context, _ llm.Request) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.response, nil
}

type noopStatus struct{}

func (noopStatus) RecordInsightGenerated(context.Context, string, int64) error      { return nil }
func (noopStatus) RecordError(context.Context, string, string, string, int64) error { return nil }

func seedHourlyAggregates(t *testing.T, aggregates *memdb.AggregateStore, hardwareID string, nowMs int64, hours int) {
	t.Helper()
	for i := 0; i < hours; i++ {
		start := nowMs - int64(hours-i)*60*60*1000
		a := models.Aggregate{
			HardwareID:    hardwareID,
			WindowType:    models.WindowHourly,
			WindowStartMs: start,
			WindowEndMs:   start + 60*60*1000,
			IsComplete:    true,
			ComputedAtMs:  start + 60*60*1000,
			Sensors: map[string]models.SensorStats{
				models.SensorTemperature: {Min: 18, Max: 24, Sum: 21 * 10, SumSq: 21 * 21 * 10, ValidCount: 10, TotalCount: 10, HasMinMax: true},
			},
		}
		require.NoError(t, aggregates.Put(context.Background(), a))
	}
}

func newGenerator(t *testing.T, llmClient LLMClient) (*Generator, *memdb.RequestStore, *memdb.AggregateStore, *memdb.EventStore, *memdb.ProfileStore, *memdb.InsightStore, *clock.Fake) {
	t.Helper()
	requests := memdb.NewRequestStore()
	aggregates := memdb.NewAggregateStore()
	events := memdb.NewEventStore()
	profiles := memdb.NewProfileStore()
	insights := memdb.NewInsightStore()
	fake := clock.NewFake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))

	g := NewGenerator(requests, insights, aggregates, events, profiles, noopStatus{}, llmClient, "test-model", fake, nil)
	return g, requests, aggregates, events, profiles, insights, fake
}

func validCompletion() string {
	return `{"summary":"Moisture is trending down, consider watering soon.","recommendations":[{"action":"Water the plant","reason":"Soil moisture is below baseline","urgency":"medium"}],"confidence":"high","trend":"declining"}`
}

func TestGenerateFailsWithInsufficientData(t *testing.T) {
	g, requests, aggregates, _, _, _, fake := newGenerator(t, &fakeLLM{response: validCompletion()})
	ctx := context.Background()
	nowMs := clock.NowMs(fake)

	seedHourlyAggregates(t, aggregates, "device-1", nowMs, 4)

	req := models.InsightRequest{HardwareID: "device-1", RequestTimeMs: nowMs, RequestType: models.RequestScheduled, Status: models.RequestPending}
	_, err := requests.PutIfAbsent(ctx, req)
	require.NoError(t, err)

	n, err := g.Tick(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, ok := findRequest(t, requests, "device-1", nowMs)
	require.True(t, ok)
	assert.Equal(t, models.RequestFailed, got.Status)
	assert.Contains(t, got.FailureMessage, "insufficient data")
}

func TestGenerateWithLowHistoryForcesLowConfidenceAndCaveat(t *testing.T) {
	llmClient := &fakeLLM{response: validCompletion()}
	g, requests, aggregates, _, profiles, insights, fake := newGenerator(t, llmClient)
	ctx := context.Background()
	nowMs := clock.NowMs(fake)

	seedHourlyAggregates(t, aggregates, "device-2", nowMs, 8)
	_ = profiles // absent profile defaults are exercised directly by gatherEvidence

	req := models.InsightRequest{HardwareID: "device-2", RequestTimeMs: nowMs, RequestType: models.RequestScheduled, Status: models.RequestPending}
	_, err := requests.PutIfAbsent(ctx, req)
	require.NoError(t, err)

	n, err := g.Tick(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 1, llmClient.calls)

	got, ok := findRequest(t, requests, "device-2", nowMs)
	require.True(t, ok)
	assert.Equal(t, models.RequestDone, got.Status)

	stored, err := insights.Get(ctx, "device-2", nowMs)
	require.NoError(t, err)
	assert.Equal(t, models.ConfidenceLow, stored.Confidence)
	assert.Contains(t, stored.Summary, "Limited data available")
}

func TestGenerateSanitizesDisallowedKeywords(t *testing.T) {
	resp := `{"summary":"Watch for fungus near the roots.","recommendations":[{"action":"Treat the infection","reason":"bacteria levels rising","urgency":"high"}],"confidence":"high","trend":"stable"}`
	llmClient := &fakeLLM{response: resp}
	g, requests, aggregates, _, _, insights, fake := newGenerator(t, llmClient)
	ctx := context.Background()
	nowMs := clock.NowMs(fake)

	seedHourlyAggregates(t, aggregates, "device-3", nowMs, 20)

	req := models.InsightRequest{HardwareID: "device-3", RequestTimeMs: nowMs, RequestType: models.RequestScheduled, Status: models.RequestPending}
	_, err := requests.PutIfAbsent(ctx, req)
	require.NoError(t, err)

	_, err = g.Tick(ctx)
	require.NoError(t, err)

	stored, err := insights.Get(ctx, "device-3", nowMs)
	require.NoError(t, err)
	assert.NotContains(t, stored.Summary, "fungus")
	assert.Contains(t, stored.Summary, "condition")
	assert.NotContains(t, stored.Recommendations[0].Action, "infection")
	assert.NotContains(t, stored.Recommendations[0].Reason, "bacteria")
}

func TestGenerateDegradedModeWithoutLLMClient(t *testing.T) {
	g, requests, aggregates, _, _, insights, fake := newGenerator(t, nil)
	ctx := context.Background()
	nowMs := clock.NowMs(fake)

	seedHourlyAggregates(t, aggregates, "device-4", nowMs, 20)

	req := models.InsightRequest{HardwareID: "device-4", RequestTimeMs: nowMs, RequestType: models.RequestScheduled, Status: models.RequestPending}
	_, err := requests.PutIfAbsent(ctx, req)
	require.NoError(t, err)

	_, err = g.Tick(ctx)
	require.NoError(t, err)

	got, ok := findRequest(t, requests, "device-4", nowMs)
	require.True(t, ok)
	assert.Equal(t, models.RequestDone, got.Status)

	stored, err := insights.Get(ctx, "device-4", nowMs)
	require.NoError(t, err)
	assert.Equal(t, "degraded", stored.ModelID)
}

func TestGenerateRetriesTransientLLMFailures(t *testing.T) {
	llmClient := &flakyLLM{failuresBeforeSuccess: 2, response: validCompletion()}
	g, requests, aggregates, _, _, insights, fake := newGenerator(t, llmClient)
	ctx := context.Background()
	nowMs := clock.NowMs(fake)

	seedHourlyAggregates(t, aggregates, "device-5", nowMs, 20)

	req := models.InsightRequest{HardwareID: "device-5", RequestTimeMs: nowMs, RequestType: models.RequestScheduled, Status: models.RequestPending}
	_, err := requests.PutIfAbsent(ctx, req)
	require.NoError(t, err)

	_, err = g.Tick(ctx)
	require.NoError(t, err)

	got, ok := findRequest(t, requests, "device-5", nowMs)
	require.True(t, ok)
	assert.Equal(t, models.RequestDone, got.Status)
	assert.Equal(t, 3, llmClient.calls)

	_, err = insights.Get(ctx, "device-5", nowMs)
	require.NoError(t, err)
}

type flakyLLM struct {
	failuresBeforeSuccess int
	response              string
	calls                 int
}

func (f *flakyLLM) Complete(_ context.Context, _ llm.Request) (string, error) {
	f.calls++
	if f.calls <= f.failuresBeforeSuccess {
		return "", &llm.TransientError{Cause: assert.AnError}
	}
	return f.response, nil
}

func findRequest(t *testing.T, requests *memdb.RequestStore, hardwareID string, requestTimeMs int64) (models.InsightRequest, bool) {
	t.Helper()
	return requests.Get(context.Background(), hardwareID, requestTimeMs)
}
