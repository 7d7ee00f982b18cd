// Package bootstrap wires the pieces every worker binary needs before it can
// start draining a change feed: config load/watch, structured logging, a
// metrics provider, a tracer, and a signal-driven context with the same
// double-signal force-exit the CLI entrypoint uses, plus the optional
// /metrics and /healthz HTTP endpoints.
package bootstrap

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/trace"

	"github.com/allenheltondev/dirt-man/internal/config"
	"github.com/allenheltondev/dirt-man/internal/telemetry/metrics"
	"github.com/allenheltondev/dirt-man/internal/telemetry/tracing"
)

// Flags are the command-line options common to every worker binary.
type Flags struct {
	ConfigPath     string
	MetricsAddr    string
	HealthAddr     string
	MetricsBackend string
	PollInterval   time.Duration
	BatchSize      int
	Workers        int
}

// RegisterFlags binds the common flag set to fs, defaulting poll interval,
// batch size, and worker count to the values given.
func RegisterFlags(fs *flag.FlagSet, defaultPoll time.Duration, defaultBatch, defaultWorkers int) *Flags {
	f := &Flags{}
	fs.StringVar(&f.ConfigPath, "config", "config.yaml", "Path to the YAML config file")
	fs.StringVar(&f.MetricsAddr, "metrics", "", "Expose Prometheus/OTel metrics on address (e.g. :9090)")
	fs.StringVar(&f.HealthAddr, "health", "", "Expose health endpoint on address (e.g. :9091)")
	fs.StringVar(&f.MetricsBackend, "metrics-backend", "prom", "Metrics backend: prom|otel|noop")
	fs.DurationVar(&f.PollInterval, "poll-interval", defaultPoll, "Interval between change-feed polls")
	fs.IntVar(&f.BatchSize, "batch-size", defaultBatch, "Max records drained per poll")
	fs.IntVar(&f.Workers, "workers", defaultWorkers, "Concurrent workers per poll")
	return f
}

// HealthChecker reports a binary's readiness for the /healthz endpoint.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// Runtime bundles everything Init assembles: a cancellable context wired to
// OS signals, the hot-reloading config, a logger, a metrics provider, and a
// tracer. Call Close before exit to flush tracing and stop the config
// watcher.
type Runtime struct {
	Ctx    context.Context
	Cancel context.CancelFunc

	Config *config.Watcher
	Logger *slog.Logger
	Metrics metrics.Provider
	Tracer  trace.Tracer

	tracingShutdown tracing.Shutdown
}

// Init loads config, builds logging/metrics/tracing, installs the signal
// handler, and serves /metrics and /healthz if their addresses are set.
func Init(serviceName string, f *Flags, health HealthChecker) (*Runtime, error) {
	cw, err := config.NewWatcher(f.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: load config: %w", err)
	}
	cfg := cw.Current()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel(cfg.Logging.Level)}))
	logger = logger.With("service", serviceName)

	provider := buildMetricsProvider(f.MetricsBackend, cfg, serviceName)

	tracer, shutdown, err := tracing.Init(serviceName, "production")
	if err != nil {
		return nil, fmt.Errorf("bootstrap: init tracing: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, os.Interrupt)
	go func() {
		<-sigCh
		logger.Info("signal received; initiating graceful shutdown")
		cancel()
		<-sigCh
		logger.Error("second signal received; forcing exit")
		os.Exit(1)
	}()

	rt := &Runtime{
		Ctx: ctx, Cancel: cancel,
		Config: cw, Logger: logger, Metrics: provider, Tracer: tracer,
		tracingShutdown: shutdown,
	}

	if f.MetricsAddr != "" {
		rt.serveMetrics(f.MetricsAddr)
	}
	if f.HealthAddr != "" {
		rt.serveHealth(f.HealthAddr, health)
	}

	return rt, nil
}

// Close flushes the tracer provider and stops the config watcher.
func (rt *Runtime) Close() {
	_ = rt.tracingShutdown(context.Background())
	_ = rt.Config.Close()
}

func (rt *Runtime) serveMetrics(addr string) {
	mux := http.NewServeMux()
	if p, ok := rt.Metrics.(*metrics.PrometheusProvider); ok {
		mux.Handle("/metrics", p.MetricsHandler())
	} else {
		mux.HandleFunc("/metrics", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
		})
	}
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		<-rt.Ctx.Done()
		_ = srv.Shutdown(context.Background())
	}()
	go func() {
		rt.Logger.Info("metrics endpoint listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			rt.Logger.Error("metrics endpoint failed", "error", err)
		}
	}()
}

func (rt *Runtime) serveHealth(addr string, health HealthChecker) {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		status := "ok"
		if health != nil {
			if err := health.Health(r.Context()); err != nil {
				status = "degraded"
			}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"status": status})
	})
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		<-rt.Ctx.Done()
		_ = srv.Shutdown(context.Background())
	}()
	go func() {
		rt.Logger.Info("health endpoint listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			rt.Logger.Error("health endpoint failed", "error", err)
		}
	}()
}

func buildMetricsProvider(backend string, cfg *config.Config, serviceName string) metrics.Provider {
	if !cfg.Metrics.Enabled {
		return metrics.NewNoopProvider()
	}
	switch backend {
	case "otel":
		return metrics.NewOTelProvider(metrics.OTelProviderOptions{ServiceName: serviceName})
	case "noop":
		return metrics.NewNoopProvider()
	default:
		return metrics.NewPrometheusProvider(metrics.PrometheusProviderOptions{
			Registry:  prom.NewRegistry(),
			Namespace: cfg.Metrics.Namespace,
		})
	}
}

func logLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
