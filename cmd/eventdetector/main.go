// Command eventdetector drains the readings change feed and runs the five
// physical-event detectors against each device's recent window, triggering a
// profile relearn whenever a watering event fires.
package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"time"

	"github.com/allenheltondev/dirt-man/internal/bootstrap"
	"github.com/allenheltondev/dirt-man/internal/clock"
	"github.com/allenheltondev/dirt-man/internal/devicestatus"
	"github.com/allenheltondev/dirt-man/internal/eventdetector"
	"github.com/allenheltondev/dirt-man/internal/idempotency"
	"github.com/allenheltondev/dirt-man/internal/profile"
	"github.com/allenheltondev/dirt-man/internal/store"
	"github.com/allenheltondev/dirt-man/internal/store/memdb"
	"github.com/allenheltondev/dirt-man/internal/streamfanin"
	"github.com/allenheltondev/dirt-man/pkg/models"
)

type readingItem struct {
	rec store.ChangeRecord[models.Reading]
}

func (i readingItem) ItemID() string { return i.rec.Item.ReadingID() }

func main() {
	f := bootstrap.RegisterFlags(flag.CommandLine, 2*time.Second, 200, 4)
	flag.Parse()

	rt, err := bootstrap.Init("eventdetector", f, nil)
	if err != nil {
		log.Fatalf("bootstrap: %v", err)
	}
	defer rt.Close()

	tables := memdb.NewTables()
	realClock := clock.Real()
	ledger := idempotency.New(tables.Processed, realClock)
	maintainer := devicestatus.New(tables.Statuses)
	learner := profile.New(tables.Events, tables.Aggregates, tables.Profiles)
	engine := eventdetector.New(tables.Readings, tables.Events, tables.Requests, ledger, maintainer, realClock, rt.Logger).
		WithRelearner(learner)

	var cursor int64
	ticker := time.NewTicker(f.PollInterval)
	defer ticker.Stop()

	rt.Logger.Info("event detector worker started", "poll_interval", f.PollInterval)
	for {
		select {
		case <-rt.Ctx.Done():
			rt.Logger.Info("event detector worker stopped")
			return
		case <-ticker.C:
			cursor = tick(rt.Ctx, tables, engine, cursor, f.BatchSize, f.Workers, rt.Logger)
		}
	}
}

func tick(ctx context.Context, tables *memdb.Tables, engine *eventdetector.Engine, cursor int64, batchSize, workers int, logger *slog.Logger) int64 {
	records, err := tables.Readings.Changes().Poll(ctx, cursor, batchSize)
	if err != nil {
		logger.Error("poll readings feed failed", "error", err)
		return cursor
	}
	if len(records) == 0 {
		return cursor
	}

	items := make([]readingItem, len(records))
	for i, r := range records {
		items[i] = readingItem{rec: r}
	}

	result := streamfanin.Run(ctx, items, workers, func(ctx context.Context, it readingItem) error {
		return engine.ProcessReading(ctx, it.rec.Item)
	})
	if len(result.FailedItemIDs) > 0 {
		logger.Error("event detector batch had failures", "failed", len(result.FailedItemIDs), "processed", result.Processed)
	} else {
		logger.Info("event detector batch complete", "processed", result.Processed)
	}

	return records[len(records)-1].Sequence
}
