package telemetry

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	promexporter "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.39.0"
)

const meterName = "github.com/wolfeidau/prewarm-cache"

// Config configures the metrics export system.
type Config struct {
	// ServiceName is the name of the service for resource attributes.
	ServiceName string

	// ServiceVersion is the version of the service.
	ServiceVersion string

	// OTLPEndpoint is the OTLP gRPC endpoint (e.g., "localhost:4317").
	// If empty, OTLP export is disabled.
	OTLPEndpoint string

	// EnablePrometheus enables the Prometheus /metrics endpoint.
	EnablePrometheus bool

	// FlushInterval is how often to export metrics (default: 10s).
	FlushInterval time.Duration
}

// Instruments holds the OpenTelemetry metric instruments mirrored by the
// Collector. A nil *Instruments is valid and records nothing.
type Instruments struct {
	warmAttemptsTotal metric.Int64Counter
	warmsTotal        metric.Int64Counter
	warmDuration      metric.Float64Histogram
	accessesTotal     metric.Int64Counter
	accessDuration    metric.Float64Histogram
	evictionsTotal    metric.Int64Counter
	memoryUsageMB     metric.Float64Gauge
	memoryPeakMB      metric.Float64Gauge
	sweepExpiredTotal metric.Int64Counter
	sweepDuration     metric.Float64Histogram
}

var (
	initOnce      sync.Once
	initErr       error
	meterProvider *sdkmetric.MeterProvider
	promHandler   http.Handler
)

// Init initialises the OpenTelemetry metrics export pipeline and returns a
// shutdown function to call on application exit, plus the instrument set for
// wiring into a Collector. Uses sync.Once so repeated calls are safe.
func Init(ctx context.Context, cfg Config) (*Instruments, func(context.Context) error, error) {
	initOnce.Do(func() {
		initErr = doInit(ctx, cfg)
	})
	if initErr != nil {
		return nil, nil, initErr
	}

	inst, err := NewInstruments(meterProvider.Meter(meterName))
	if err != nil {
		return nil, nil, err
	}
	return inst, shutdown, nil
}

func doInit(ctx context.Context, cfg Config) error {
	if cfg.ServiceName == "" {
		cfg.ServiceName = "prewarm-cache"
	}
	if cfg.FlushInterval == 0 {
		cfg.FlushInterval = 10 * time.Second
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
		),
	)
	if err != nil {
		return err
	}

	var readers []sdkmetric.Reader

	if cfg.OTLPEndpoint != "" {
		otlpExporter, err := otlpmetricgrpc.New(ctx,
			otlpmetricgrpc.WithEndpoint(cfg.OTLPEndpoint),
			otlpmetricgrpc.WithInsecure(), // Use WithTLSCredentials for production
		)
		if err != nil {
			return err
		}
		readers = append(readers, sdkmetric.NewPeriodicReader(otlpExporter,
			sdkmetric.WithInterval(cfg.FlushInterval),
		))
	}

	if cfg.EnablePrometheus {
		promExp, err := promexporter.New()
		if err != nil {
			return err
		}
		readers = append(readers, promExp)
		promHandler = promhttp.Handler()
	}

	// If no exporters configured, use a no-op periodic reader to still collect metrics
	if len(readers) == 0 {
		readers = append(readers, sdkmetric.NewPeriodicReader(noopExporter{},
			sdkmetric.WithInterval(cfg.FlushInterval),
		))
	}

	opts := []sdkmetric.Option{sdkmetric.WithResource(res)}
	for _, r := range readers {
		opts = append(opts, sdkmetric.WithReader(r))
	}

	meterProvider = sdkmetric.NewMeterProvider(opts...)
	otel.SetMeterProvider(meterProvider)

	return nil
}

func shutdown(ctx context.Context) error {
	if meterProvider == nil {
		return nil
	}
	err := meterProvider.Shutdown(ctx)
	meterProvider = nil
	promHandler = nil
	return err
}

// NewInstruments creates the instrument set on the given meter.
func NewInstruments(meter metric.Meter) (*Instruments, error) {
	warmAttemptsTotal, err := meter.Int64Counter(
		"prewarm_cache_warm_attempts_total",
		metric.WithDescription("Total number of warm attempts"),
		metric.WithUnit("{attempt}"),
	)
	if err != nil {
		return nil, err
	}

	warmsTotal, err := meter.Int64Counter(
		"prewarm_cache_warms_total",
		metric.WithDescription("Total number of completed warms by outcome"),
		metric.WithUnit("{warm}"),
	)
	if err != nil {
		return nil, err
	}

	warmDuration, err := meter.Float64Histogram(
		"prewarm_cache_warm_duration_seconds",
		metric.WithDescription("Duration of successful warm operations"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10),
	)
	if err != nil {
		return nil, err
	}

	accessesTotal, err := meter.Int64Counter(
		"prewarm_cache_accesses_total",
		metric.WithDescription("Total number of cache accesses by result"),
		metric.WithUnit("{access}"),
	)
	if err != nil {
		return nil, err
	}

	accessDuration, err := meter.Float64Histogram(
		"prewarm_cache_access_duration_seconds",
		metric.WithDescription("Duration of cache access operations"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.000001, 0.00001, 0.0001, 0.001, 0.01, 0.1),
	)
	if err != nil {
		return nil, err
	}

	evictionsTotal, err := meter.Int64Counter(
		"prewarm_cache_evictions_total",
		metric.WithDescription("Total number of entries evicted"),
		metric.WithUnit("{entry}"),
	)
	if err != nil {
		return nil, err
	}

	memoryUsageMB, err := meter.Float64Gauge(
		"prewarm_cache_memory_usage_mb",
		metric.WithDescription("Current estimated memory usage of tracked entries"),
		metric.WithUnit("MBy"),
	)
	if err != nil {
		return nil, err
	}

	memoryPeakMB, err := meter.Float64Gauge(
		"prewarm_cache_memory_peak_mb",
		metric.WithDescription("Peak estimated memory usage since start or reset"),
		metric.WithUnit("MBy"),
	)
	if err != nil {
		return nil, err
	}

	sweepExpiredTotal, err := meter.Int64Counter(
		"prewarm_cache_sweep_expired_total",
		metric.WithDescription("Total entries demoted to expired by the sweeper"),
		metric.WithUnit("{entry}"),
	)
	if err != nil {
		return nil, err
	}

	sweepDuration, err := meter.Float64Histogram(
		"prewarm_cache_sweep_duration_seconds",
		metric.WithDescription("Duration of expiration sweeps"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.0001, 0.001, 0.01, 0.1, 1),
	)
	if err != nil {
		return nil, err
	}

	return &Instruments{
		warmAttemptsTotal: warmAttemptsTotal,
		warmsTotal:        warmsTotal,
		warmDuration:      warmDuration,
		accessesTotal:     accessesTotal,
		accessDuration:    accessDuration,
		evictionsTotal:    evictionsTotal,
		memoryUsageMB:     memoryUsageMB,
		memoryPeakMB:      memoryPeakMB,
		sweepExpiredTotal: sweepExpiredTotal,
		sweepDuration:     sweepDuration,
	}, nil
}

func (i *Instruments) recordWarmAttempt(ctx context.Context) {
	if i == nil {
		return
	}
	i.warmAttemptsTotal.Add(ctx, 1)
}

func (i *Instruments) recordWarmOutcome(ctx context.Context, outcome string, d time.Duration) {
	if i == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("outcome", outcome))
	i.warmsTotal.Add(ctx, 1, attrs)
	if outcome == "success" {
		i.warmDuration.Record(ctx, d.Seconds())
	}
}

func (i *Instruments) recordAccess(ctx context.Context, hit bool, latency time.Duration) {
	if i == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	i.accessesTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
	i.accessDuration.Record(ctx, latency.Seconds())
}

func (i *Instruments) recordEvictions(ctx context.Context, n int) {
	if i == nil {
		return
	}
	i.evictionsTotal.Add(ctx, int64(n))
}

func (i *Instruments) recordMemory(ctx context.Context, usageMB, peakMB float64) {
	if i == nil {
		return
	}
	i.memoryUsageMB.Record(ctx, usageMB)
	i.memoryPeakMB.Record(ctx, peakMB)
}

// RecordSweep records one expiration sweep's expired count and duration.
func (i *Instruments) RecordSweep(ctx context.Context, expired int, d time.Duration) {
	if i == nil {
		return
	}
	i.sweepExpiredTotal.Add(ctx, int64(expired))
	i.sweepDuration.Record(ctx, d.Seconds())
}

// PrometheusHandler returns the Prometheus metrics HTTP handler.
// Returns a handler that returns 404 if Prometheus export is not enabled,
// allowing safe registration regardless of initialization order.
func PrometheusHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if promHandler == nil {
			http.NotFound(w, r)
			return
		}
		promHandler.ServeHTTP(w, r)
	})
}

// noopExporter is a no-op metrics exporter for when no exporters are configured.
type noopExporter struct{}

func (noopExporter) Temporality(_ sdkmetric.InstrumentKind) metricdata.Temporality {
	return metricdata.CumulativeTemporality
}

func (noopExporter) Aggregation(_ sdkmetric.InstrumentKind) sdkmetric.Aggregation {
	return nil
}

func (noopExporter) Export(_ context.Context, _ *metricdata.ResourceMetrics) error {
	return nil
}

func (noopExporter) ForceFlush(_ context.Context) error {
	return nil
}

func (noopExporter) Shutdown(_ context.Context) error {
	return nil
}
