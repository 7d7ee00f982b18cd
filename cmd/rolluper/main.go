// Command rolluper drains the readings, events, aggregates, and insights
// change feeds and folds each into the operational rollup counters: reading
// counts and ingest lag, devices reporting, event rates, aggregate
// computations, and insight throughput by time bucket.
package main

import (
	"flag"
	"log"
	"time"

	"github.com/allenheltondev/dirt-man/internal/bootstrap"
	"github.com/allenheltondev/dirt-man/internal/clock"
	"github.com/allenheltondev/dirt-man/internal/rollup"
	"github.com/allenheltondev/dirt-man/internal/store/memdb"
)

func main() {
	f := bootstrap.RegisterFlags(flag.CommandLine, 5*time.Second, 500, 1)
	flag.Parse()

	rt, err := bootstrap.Init("rolluper", f, nil)
	if err != nil {
		log.Fatalf("bootstrap: %v", err)
	}
	defer rt.Close()

	tables := memdb.NewTables()
	updater := rollup.New(tables.Rollups, clock.Real())
	worker := rollup.NewWorker(updater, tables.Readings.Changes(), tables.Events.Changes(), tables.Aggregates.Changes(), tables.Insights.Changes(), rt.Logger)

	var cursors rollup.Cursors
	ticker := time.NewTicker(f.PollInterval)
	defer ticker.Stop()

	rt.Logger.Info("rollup worker started", "poll_interval", f.PollInterval)
	for {
		select {
		case <-rt.Ctx.Done():
			rt.Logger.Info("rollup worker stopped")
			return
		case <-ticker.C:
			next, err := worker.Tick(rt.Ctx, cursors, f.BatchSize)
			if err != nil {
				rt.Logger.Error("rollup tick failed", "error", err)
				continue
			}
			cursors = next
		}
	}
}
