// Command prewarm-cache runs the animation prewarm cache engine behind an
// HTTP API. Warm operations are simulated with a latency proportional to the
// asset's estimated size, which is enough to exercise the scheduler.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/lmittmann/tint"

	prewarmcache "github.com/wolfeidau/prewarm-cache"
	"github.com/wolfeidau/prewarm-cache/engine"
	"github.com/wolfeidau/prewarm-cache/server"
	"github.com/wolfeidau/prewarm-cache/telemetry"
)

var version = "dev"

var cli struct {
	Address            string        `help:"Address to listen on." default:":8080"`
	Strategy           string        `help:"Admission strategy for newly registered animations." enum:"aggressive,balanced,conservative,manual" default:"balanced"`
	MemoryBudget       float64       `help:"Advisory memory budget in MiB." default:"50"`
	MaxConcurrentWarms int64         `help:"Maximum concurrent warm operations." default:"2"`
	WarmTimeout        time.Duration `help:"Warm timeout hint passed to the warm operation (not enforced by the engine)." default:"5s"`
	Expiration         time.Duration `help:"Idle time before a warm animation expires." default:"5m"`
	SweepInterval      time.Duration `help:"How often to run the expiration sweep." default:"30s"`
	DisablePrediction  bool          `help:"Disable next-animation prediction."`
	PrefetchCount      int           `help:"Maximum predictions per request." default:"3"`
	HotThreshold       int64         `help:"Access count promoting a warm animation to hot." default:"3"`
	LogLevel           string        `help:"Log level." enum:"debug,info,warn,error" default:"info"`
	LogFormat          string        `help:"Log format." enum:"text,json" default:"text"`
	OTLPEndpoint       string        `help:"OTLP gRPC endpoint for metrics export."`
	Prometheus         bool          `help:"Expose Prometheus metrics at /metrics." default:"true" negatable:""`
	Version            kong.VersionFlag
}

func main() {
	kong.Parse(&cli,
		kong.Name("prewarm-cache"),
		kong.Description("Animation prewarm cache engine."),
		kong.Vars{"version": version},
	)

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	logger := newLogger(cli.LogLevel, cli.LogFormat)
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	inst, shutdownMetrics, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:      "prewarm-cache",
		ServiceVersion:   version,
		OTLPEndpoint:     cli.OTLPEndpoint,
		EnablePrometheus: cli.Prometheus,
	})
	if err != nil {
		return fmt.Errorf("initialising metrics: %w", err)
	}
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		_ = shutdownMetrics(shutdownCtx)
	}()

	eng := engine.New(engine.Config{
		Strategy:           prewarmcache.Strategy(cli.Strategy),
		MemoryBudgetMB:     cli.MemoryBudget,
		MaxConcurrentWarms: cli.MaxConcurrentWarms,
		WarmTimeout:        cli.WarmTimeout,
		Expiration:         cli.Expiration,
		SweepInterval:      cli.SweepInterval,
		DisablePrediction:  cli.DisablePrediction,
		PrefetchCount:      cli.PrefetchCount,
		HotThreshold:       cli.HotThreshold,
		WarmFunc:           simulateWarm,
		Instruments:        inst,
		Logger:             logger,
	})
	eng.Start(ctx)
	defer eng.Stop()

	srv := server.New(server.Config{
		Address: cli.Address,
		Engine:  eng,
		Logger:  logger.With("component", "server"),
	})

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		logger.Info("received signal, shutting down", "signal", sig)
		cancel()
	}()

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil {
			errCh <- err
		}
	}()

	logger.Info("server started",
		"address", srv.Address(),
		"strategy", cli.Strategy,
		"memory_budget_mb", cli.MemoryBudget,
		"max_concurrent_warms", cli.MaxConcurrentWarms,
	)

	select {
	case <-ctx.Done():
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

// simulateWarm stands in for a real decode: it sleeps roughly 100µs per
// frame of the animation's estimated footprint.
func simulateWarm(ctx context.Context, e prewarmcache.Entry) error {
	frames := e.SizeBytes / (10 * 1024)
	delay := time.Duration(frames) * 100 * time.Microsecond

	select {
	case <-time.After(delay):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func newLogger(level, format string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	var handler slog.Handler
	if format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	} else {
		handler = tint.NewHandler(os.Stdout, &tint.Options{Level: lvl})
	}
	return slog.New(handler)
}
