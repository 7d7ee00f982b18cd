// Command insightscheduler enumerates recently-ingesting devices and enqueues
// one pending scheduled insight request per device per tick, separate from
// the event-driven requests the event detector enqueues directly.
package main

import (
	"flag"
	"log"
	"time"

	"github.com/allenheltondev/dirt-man/internal/bootstrap"
	"github.com/allenheltondev/dirt-man/internal/clock"
	"github.com/allenheltondev/dirt-man/internal/insight"
	"github.com/allenheltondev/dirt-man/internal/store/memdb"
)

func main() {
	f := bootstrap.RegisterFlags(flag.CommandLine, time.Hour, 0, 0)
	flag.Parse()

	rt, err := bootstrap.Init("insightscheduler", f, nil)
	if err != nil {
		log.Fatalf("bootstrap: %v", err)
	}
	defer rt.Close()

	cfg := rt.Config.Current()
	tables := memdb.NewTables()
	scheduler := insight.NewScheduler(tables.Statuses, tables.Requests, clock.Real(), rt.Logger)
	scheduler.ActiveThresholdHours = cfg.Insight.ActiveThresholdHours

	ticker := time.NewTicker(f.PollInterval)
	defer ticker.Stop()

	rt.Logger.Info("insight scheduler started", "poll_interval", f.PollInterval, "active_threshold_hours", scheduler.ActiveThresholdHours)
	for {
		select {
		case <-rt.Ctx.Done():
			rt.Logger.Info("insight scheduler stopped")
			return
		case <-ticker.C:
			n, err := scheduler.Run(rt.Ctx)
			if err != nil {
				rt.Logger.Error("insight scheduler tick failed", "error", err)
				continue
			}
			rt.Logger.Info("insight scheduler tick complete", "requests_created", n)
		}
	}
}
