// Command insightgenerator drains pending insight requests, gathers each
// device's recent evidence, calls the LLM endpoint to draft an insight, and
// falls back to a degraded-mode placeholder when no LLM endpoint or no API
// key is configured.
package main

import (
	"flag"
	"log"
	"net/http"
	"time"

	"github.com/allenheltondev/dirt-man/internal/bootstrap"
	"github.com/allenheltondev/dirt-man/internal/clock"
	"github.com/allenheltondev/dirt-man/internal/devicestatus"
	"github.com/allenheltondev/dirt-man/internal/insight"
	"github.com/allenheltondev/dirt-man/internal/llm"
	"github.com/allenheltondev/dirt-man/internal/store/memdb"
)

func main() {
	f := bootstrap.RegisterFlags(flag.CommandLine, 3*time.Second, 0, 0)
	flag.Parse()

	rt, err := bootstrap.Init("insightgenerator", f, nil)
	if err != nil {
		log.Fatalf("bootstrap: %v", err)
	}
	defer rt.Close()

	cfg := rt.Config.Current()
	tables := memdb.NewTables()
	maintainer := devicestatus.New(tables.Statuses)

	var llmClient insight.LLMClient
	apiKey := cfg.LLMAPIKey()
	switch {
	case cfg.Insight.LLMEndpoint == "":
		rt.Logger.Warn("no LLM endpoint configured; insights will be generated in degraded mode")
	case apiKey == "":
		rt.Logger.Warn("no LLM API key configured; insights will be generated in degraded mode")
	default:
		llmClient = llm.New(&http.Client{Timeout: 30 * time.Second}, cfg.Insight.LLMEndpoint, apiKey)
	}

	generator := insight.NewGenerator(
		tables.Requests, tables.Insights, tables.Aggregates, tables.Events, tables.Profiles,
		maintainer, llmClient, cfg.Insight.LLMModel, clock.Real(), rt.Logger,
	)

	ticker := time.NewTicker(f.PollInterval)
	defer ticker.Stop()

	rt.Logger.Info("insight generator started", "poll_interval", f.PollInterval)
	for {
		select {
		case <-rt.Ctx.Done():
			rt.Logger.Info("insight generator stopped")
			return
		case <-ticker.C:
			n, err := generator.Tick(rt.Ctx)
			if err != nil {
				rt.Logger.Error("insight generator tick failed", "error", err)
				continue
			}
			if n > 0 {
				rt.Logger.Info("insight generator tick complete", "executed", n)
			}
		}
	}
}
