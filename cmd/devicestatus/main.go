// Command devicestatus drains the readings change feed and maintains each
// device's ingestion status row: last-seen timestamps and the coarse sensor
// health summary (which the aggregator's coverage update also rewrites).
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

	rt, err := bootstrap.Init("devicestatus", f, nil)
	if err != nil {
		log.Fatalf("bootstrap: %v", err)
	}
	defer rt.Close()

	tables := memdb.NewTables()
	realClock := clock.Real()
	maintainer := devicestatus.New(tables.Statuses)

	var cursor int64
	ticker := time.NewTicker(f.PollInterval)
	defer ticker.Stop()

	rt.Logger.Info("device status worker started", "poll_interval", f.PollInterval)
	for {
		select {
		case <-rt.Ctx.Done():
			rt.Logger.Info("device status worker stopped")
			return
		case <-ticker.C:
			cursor = tick(rt.Ctx, tables, maintainer, realClock, cursor, f.BatchSize, f.Workers, rt.Logger)
		}
	}
}

func tick(ctx context.Context, tables *memdb.Tables, maintainer *devicestatus.Maintainer, c clock.Clock, cursor int64, batchSize, workers int, logger *slog.Logger) int64 {
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

	nowMs := clock.NowMs(c)
	result := streamfanin.Run(ctx, items, workers, func(ctx context.Context, it readingItem) error {
		r := it.rec.Item
		summary := devicestatus.SummaryFromReading(r)
		return maintainer.RecordIngestion(ctx, r.HardwareID, r.TimestampMs, r.IngestTimeMs, summary, nowMs)
	})
	if len(result.FailedItemIDs) > 0 {
		logger.Error("device status batch had failures", "failed", len(result.FailedItemIDs), "processed", result.Processed)
	} else {
		logger.Info("device status batch complete", "processed", result.Processed)
	}

	return records[len(records)-1].Sequence
}
