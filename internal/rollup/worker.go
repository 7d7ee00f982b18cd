package rollup

import (
	"context"
	"log/slog"

	"github.com/allenheltondev/dirt-man/internal/store"
	"github.com/allenheltondev/dirt-man/pkg/models"
)

// Cursors tracks each source feed's last-polled sequence number between
// worker ticks.
type Cursors struct {
	Readings   int64
	Events     int64
	Aggregates int64
	Insights   int64
}

// Worker drains one batch from each source change feed and folds it into
// rollup counters.
type Worker struct {
	updater    *Updater
	readings   store.ChangeFeed[models.Reading]
	events     store.ChangeFeed[models.Event]
	aggregates store.ChangeFeed[models.Aggregate]
	insights   store.ChangeFeed[models.Insight]
	log        *slog.Logger
}

// NewWorker builds a rollup Worker over the four source feeds.
func NewWorker(updater *Updater, readings store.ChangeFeed[models.Reading], events store.ChangeFeed[models.Event], aggregates store.ChangeFeed[models.Aggregate], insights store.ChangeFeed[models.Insight], log *slog.Logger) *Worker {
	if log == nil {
		log = slog.Default()
	}
	return &Worker{updater: updater, readings: readings, events: events, aggregates: aggregates, insights: insights, log: log}
}

// Tick polls each feed once, from cur, and returns the advanced cursors.
func (w *Worker) Tick(ctx context.Context, cur Cursors, limit int) (Cursors, error) {
	readingRecords, err := w.readings.Poll(ctx, cur.Readings, limit)
	if err != nil {
		return cur, err
	}
	devicesSeen := make(map[string]struct{})
	for _, rec := range readingRecords {
		if err := w.handleReading(ctx, rec, devicesSeen); err != nil {
			w.log.Error("rollup reading update failed", "error", err)
		}
		cur.Readings = rec.Sequence
	}
	if err := w.updater.FlushDevicesSeen(ctx, devicesSeen); err != nil {
		w.log.Error("rollup devices-seen flush failed", "error", err)
	}

	eventRecords, err := w.events.Poll(ctx, cur.Events, limit)
	if err != nil {
		return cur, err
	}
	for _, rec := range eventRecords {
		if rec.Type == store.ChangeInsert {
			if err := w.updater.OnEventInsert(ctx, rec.Item); err != nil {
				w.log.Error("rollup event update failed", "error", err)
			}
		}
		cur.Events = rec.Sequence
	}

	aggregateRecords, err := w.aggregates.Poll(ctx, cur.Aggregates, limit)
	if err != nil {
		return cur, err
	}
	for _, rec := range aggregateRecords {
		if rec.Type == store.ChangeRemove {
			cur.Aggregates = rec.Sequence
			continue
		}
		if err := w.updater.OnAggregateChange(ctx, rec.Item); err != nil {
			w.log.Error("rollup aggregate update failed", "error", err)
		}
		cur.Aggregates = rec.Sequence
	}

	insightRecords, err := w.insights.Poll(ctx, cur.Insights, limit)
	if err != nil {
		return cur, err
	}
	for _, rec := range insightRecords {
		if rec.Type == store.ChangeInsert {
			if err := w.updater.OnInsightInsert(ctx, rec.Item); err != nil {
				w.log.Error("rollup insight update failed", "error", err)
			}
		}
		cur.Insights = rec.Sequence
	}

	return cur, nil
}

func (w *Worker) handleReading(ctx context.Context, rec store.ChangeRecord[models.Reading], devicesSeen map[string]struct{}) error {
	switch rec.Type {
	case store.ChangeInsert:
		return w.updater.OnReadingInsert(ctx, rec.Item, devicesSeen)
	case store.ChangeModify:
		return w.updater.OnReadingModify(ctx, rec.Item)
	default:
		return nil
	}
}
