package insight

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/allenheltondev/dirt-man/internal/clock"
	"github.com/allenheltondev/dirt-man/internal/llm"
	"github.com/allenheltondev/dirt-man/internal/retry"
	"github.com/allenheltondev/dirt-man/internal/store"
	"github.com/allenheltondev/dirt-man/pkg/models"
)

const (
	// DefaultBatchSize is the generator's per-tick pending-request cap.
	DefaultBatchSize = 10

	minValidHoursToGenerate        = 6
	minValidHoursForHighConfidence = 12

	maxFailureMessageLen = 256

	perAttemptTimeout = 30 * time.Second
	overallBudget     = 30 * time.Second
)

// ErrInsufficientData is the terminal failure when fewer than
// minValidHoursToGenerate hourly aggregates have valid temperature data.
var ErrInsufficientData = fmt.Errorf("insight: insufficient data")

// LLMClient is the subset of llm.Client the generator depends on, kept as an
// interface so tests can inject a fake.
type LLMClient interface {
	Complete(ctx context.Context, req llm.Request) (string, error)
}

// StatusUpdater is the subset of the device status maintainer the generator
// may write.
type StatusUpdater interface {
	RecordInsightGenerated(ctx context.Context, hardwareID string, generatedAtMs int64) error
	RecordError(ctx context.Context, hardwareID string, code, message string, nowMs int64) error
}

// Generator executes pending InsightRequests end to end.
type Generator struct {
	requests   store.InsightRequestStore
	insights   store.InsightStore
	aggregates store.AggregateStore
	events     store.EventStore
	profiles   store.DeviceProfileStore
	status     StatusUpdater
	llmClient  LLMClient
	clock      clock.Clock
	log        *slog.Logger

	model     string
	batchSize int
}

// NewGenerator builds a Generator. llmClient may be nil, in which case every
// request is served in degraded mode.
func NewGenerator(requests store.InsightRequestStore, insights store.InsightStore, aggregates store.AggregateStore, events store.EventStore, profiles store.DeviceProfileStore, status StatusUpdater, llmClient LLMClient, model string, c clock.Clock, log *slog.Logger) *Generator {
	if log == nil {
		log = slog.Default()
	}
	return &Generator{
		requests: requests, insights: insights, aggregates: aggregates, events: events, profiles: profiles,
		status: status, llmClient: llmClient, model: model, clock: c, log: log, batchSize: DefaultBatchSize,
	}
}

// Tick fetches up to batchSize pending requests and executes each one that
// this caller wins the CAS race for.
func (g *Generator) Tick(ctx context.Context) (int, error) {
	pending, err := g.requests.ListPending(ctx, g.batchSize)
	if err != nil {
		return 0, err
	}

	executed := 0
	for _, req := range pending {
		won, err := g.requests.CompareAndSwapStatus(ctx, req.HardwareID, req.RequestTimeMs, models.RequestPending, models.RequestProcessing, "")
		if err != nil {
			g.log.Error("insight request CAS failed", "hardware_id", req.HardwareID, "error", err)
			continue
		}
		if !won {
			continue
		}
		g.execute(ctx, req)
		executed++
	}
	return executed, nil
}

func (g *Generator) execute(ctx context.Context, req models.InsightRequest) {
	nowMs := clock.NowMs(g.clock)

	execCtx, cancel := context.WithTimeout(ctx, overallBudget)
	defer cancel()

	insight, err := g.generate(execCtx, req.HardwareID, nowMs)
	if err != nil {
		g.fail(ctx, req, err, nowMs)
		return
	}

	inserted, err := g.insights.PutIfAbsent(ctx, insight)
	if err != nil {
		g.fail(ctx, req, err, nowMs)
		return
	}
	_ = inserted // a collision on (hardware_id, timestamp_ms) is a benign dedup

	if _, err := g.requests.CompareAndSwapStatus(ctx, req.HardwareID, req.RequestTimeMs, models.RequestProcessing, models.RequestDone, ""); err != nil {
		g.log.Error("insight request completion CAS failed", "hardware_id", req.HardwareID, "error", err)
	}

	if g.status != nil {
		if err := g.status.RecordInsightGenerated(ctx, req.HardwareID, nowMs); err != nil {
			g.log.Error("device status update failed", "hardware_id", req.HardwareID, "error", err)
		}
	}
}

func (g *Generator) fail(ctx context.Context, req models.InsightRequest, cause error, nowMs int64) {
	msg := cause.Error()
	if len(msg) > maxFailureMessageLen {
		msg = msg[:maxFailureMessageLen]
	}
	if _, err := g.requests.CompareAndSwapStatus(ctx, req.HardwareID, req.RequestTimeMs, models.RequestProcessing, models.RequestFailed, msg); err != nil {
		g.log.Error("insight request failure CAS failed", "hardware_id", req.HardwareID, "error", err)
	}
	if g.status != nil {
		if err := g.status.RecordError(ctx, req.HardwareID, "insight_generation_failed", msg, nowMs); err != nil {
			g.log.Error("device status error update failed", "hardware_id", req.HardwareID, "error", err)
		}
	}
}

// generate gathers evidence, calls the model (or degrades), sanitizes the
// draft, and returns a fully sanitized Insight ready for persistence.
func (g *Generator) generate(ctx context.Context, hardwareID string, nowMs int64) (models.Insight, error) {
	ev, validHours, err := g.gatherEvidence(ctx, hardwareID, nowMs)
	if err != nil {
		return models.Insight{}, err
	}
	if validHours < minValidHoursToGenerate {
		return models.Insight{}, ErrInsufficientData
	}

	start := clock.NowMs(g.clock)

	var draft DraftInsight
	var modelID string
	if g.llmClient == nil {
		draft = degradedPlaceholder()
		modelID = "degraded"
	} else {
		draft, err = g.callModel(ctx, ev)
		if err != nil {
			return models.Insight{}, err
		}
		modelID = g.model
	}

	if validHours < minValidHoursForHighConfidence {
		draft.Confidence = models.ConfidenceLow
		draft.Summary = "Limited data available for this period. " + draft.Summary
	}

	draft = sanitizeInsight(draft)

	evidenceMap, err := evidenceToMap(ev)
	if err != nil {
		return models.Insight{}, err
	}

	return models.Insight{
		HardwareID:            hardwareID,
		TimestampMs:           nowMs,
		Summary:               draft.Summary,
		Recommendations:       draft.Recommendations,
		Confidence:            draft.Confidence,
		Trend:                 draft.Trend,
		GrowthStageSuggestion: draft.GrowthStageSuggestion,
		Evidence:              evidenceMap,
		ModelID:               modelID,
		GenerationDurationMs:  clock.NowMs(g.clock) - start,
	}, nil
}

func (g *Generator) callModel(ctx context.Context, ev Evidence) (DraftInsight, error) {
	prompt, err := buildPrompt(ev)
	if err != nil {
		return DraftInsight{}, err
	}

	policy := retry.FixedDelays(1*time.Second, 2*time.Second, 4*time.Second)
	isRetryable := func(err error) bool {
		var t *llm.TransientError
		return errors.As(err, &t)
	}

	var raw string
	err = retry.Do(ctx, g.clock, policy, isRetryable, func(attemptCtx context.Context, _ int) error {
		callCtx, cancel := context.WithTimeout(attemptCtx, perAttemptTimeout)
		defer cancel()
		out, callErr := g.llmClient.Complete(callCtx, llm.Request{
			Model:       g.model,
			Messages:    []llm.Message{{Role: "user", Content: prompt}},
			Temperature: 0.7,
			MaxTokens:   1000,
		})
		if callErr != nil {
			return callErr
		}
		raw = out
		return nil
	})
	if err != nil {
		return DraftInsight{}, fmt.Errorf("insight: llm call failed: %w", err)
	}

	var draft DraftInsight
	if err := json.Unmarshal([]byte(raw), &draft); err != nil {
		return DraftInsight{}, fmt.Errorf("insight: parse model response: %w", err)
	}
	return draft, nil
}

func degradedPlaceholder() DraftInsight {
	return DraftInsight{
		Summary:    "Insight generation is running in degraded mode; no language model is configured.",
		Confidence: models.ConfidenceLow,
		Trend:      models.TrendStable,
	}
}

func (g *Generator) gatherEvidence(ctx context.Context, hardwareID string, nowMs int64) (Evidence, int, error) {
	const day = 24 * 60 * 60 * 1000
	const week = 7 * day

	hourly, err := g.aggregates.RangeByWindow(ctx, models.DeviceWindowKey{HardwareID: hardwareID, WindowType: models.WindowHourly}, nowMs-day, nowMs)
	if err != nil {
		return Evidence{}, 0, err
	}
	last7d, err := g.aggregates.RangeByWindow(ctx, models.DeviceWindowKey{HardwareID: hardwareID, WindowType: models.WindowHourly}, nowMs-week, nowMs)
	if err != nil {
		return Evidence{}, 0, err
	}
	events, err := g.events.RangeByTime(ctx, hardwareID, nowMs-day, nowMs)
	if err != nil {
		return Evidence{}, 0, err
	}
	profile, err := g.profiles.Get(ctx, hardwareID)
	if err != nil {
		return Evidence{}, 0, err
	}

	validHours := 0
	for _, a := range hourly {
		if stats, ok := a.Sensors[models.SensorTemperature]; ok && stats.ValidCount > 0 {
			validHours++
		}
	}

	ev := Evidence{
		HardwareID:         hardwareID,
		HourlyAggregates:   hourly,
		Last7DayAggregates: last7d,
		RecentEvents:       events,
		Profile:            profile,
		ValidHours:         validHours,
	}
	return ev, validHours, nil
}

func evidenceToMap(ev Evidence) (map[string]any, error) {
	raw, err := json.Marshal(ev)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}
