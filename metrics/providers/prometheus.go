package providers

import (
	"context"
	"fmt"
	"net/http"

	clientprom "github.com/prometheus/client_golang/prometheus"
	promhttp "github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

type PrometheusProvider struct {
	meterProvider *sdkmetric.MeterProvider
	meter         metric.Meter
	registry      *clientprom.Registry
	httpHandler   http.Handler
}

type PrometheusConfig struct {
	ServiceName    string
	ServiceVersion string
	// SetGlobal installs the meter provider as the otel global.
	SetGlobal bool
}

// NewPrometheusProvider exports through a private Prometheus registry so that
// several providers (one per test, say) never collide on registration.
func NewPrometheusProvider(ctx context.Context, cfg PrometheusConfig) (*PrometheusProvider, error) {
	if cfg.ServiceName == "" {
		cfg.ServiceName = "dblogger"
	}
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	registry := clientprom.NewRegistry()
	promExporter, err := prometheus.New(prometheus.WithRegisterer(registry))
	if err != nil {
		return nil, fmt.Errorf("failed to create Prometheus exporter: %w", err)
	}

	meterProvider := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(promExporter),
	)
	if cfg.SetGlobal {
		otel.SetMeterProvider(meterProvider)
	}

	return &PrometheusProvider{
		meterProvider: meterProvider,
		meter:         meterProvider.Meter(cfg.ServiceName, metric.WithInstrumentationVersion(cfg.ServiceVersion)),
		registry:      registry,
		httpHandler:   promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
	}, nil
}

func (p *PrometheusProvider) CreateCounter(desc MetricDescriptor) (Counter, error) {
	counter, err := p.meter.Int64Counter(
		desc.Name,
		metric.WithDescription(desc.Description),
		metric.WithUnit(desc.Unit),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create counter: %w", err)
	}
	return &prometheusCounter{counter: counter}, nil
}

func (p *PrometheusProvider) CreateHistogram(desc MetricDescriptor) (Histogram, error) {
	opts := []metric.Float64HistogramOption{
		metric.WithDescription(desc.Description),
		metric.WithUnit(desc.Unit),
	}
	if len(desc.Buckets) > 0 {
		opts = append(opts, metric.WithExplicitBucketBoundaries(desc.Buckets...))
	}
	histogram, err := p.meter.Float64Histogram(desc.Name, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create histogram: %w", err)
	}
	return &prometheusHistogram{histogram: histogram}, nil
}

func (p *PrometheusProvider) CreateGauge(desc MetricDescriptor) (Gauge, error) {
	gauge, err := p.meter.Float64Gauge(
		desc.Name,
		metric.WithDescription(desc.Description),
		metric.WithUnit(desc.Unit),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create gauge: %w", err)
	}
	return &prometheusGauge{gauge: gauge}, nil
}

func (p *PrometheusProvider) CreateUpDownCounter(desc MetricDescriptor) (UpDownCounter, error) {
	upDownCounter, err := p.meter.Int64UpDownCounter(
		desc.Name,
		metric.WithDescription(desc.Description),
		metric.WithUnit(desc.Unit),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create up-down counter: %w", err)
	}
	return &prometheusUpDownCounter{counter: upDownCounter}, nil
}

func (p *PrometheusProvider) HTTPHandler() http.Handler {
	return p.httpHandler
}

// Registry exposes the Prometheus registry backing HTTPHandler.
func (p *PrometheusProvider) Registry() *clientprom.Registry {
	return p.registry
}

func (p *PrometheusProvider) Shutdown(ctx context.Context) error {
	if p.meterProvider != nil {
		return p.meterProvider.Shutdown(ctx)
	}
	return nil
}

type prometheusCounter struct {
	counter metric.Int64Counter
}

func (c *prometheusCounter) Add(ctx context.Context, value int64, labels ...Label) {
	c.counter.Add(ctx, value, metric.WithAttributes(labelsToAttributes(labels)...))
}

func (c *prometheusCounter) Inc(ctx context.Context, labels ...Label) {
	c.Add(ctx, 1, labels...)
}

type prometheusHistogram struct {
	histogram metric.Float64Histogram
}

func (h *prometheusHistogram) Record(ctx context.Context, value float64, labels ...Label) {
	h.histogram.Record(ctx, value, metric.WithAttributes(labelsToAttributes(labels)...))
}

type prometheusGauge struct {
	gauge metric.Float64Gauge
}

func (g *prometheusGauge) Set(ctx context.Context, value float64, labels ...Label) {
	g.gauge.Record(ctx, value, metric.WithAttributes(labelsToAttributes(labels)...))
}

type prometheusUpDownCounter struct {
	counter metric.Int64UpDownCounter
}

func (u *prometheusUpDownCounter) Add(ctx context.Context, value int64, labels ...Label) {
	u.counter.Add(ctx, value, metric.WithAttributes(labelsToAttributes(labels)...))
}

func (u *prometheusUpDownCounter) Inc(ctx context.Context, labels ...Label) {
	u.Add(ctx, 1, labels...)
}

func (u *prometheusUpDownCounter) Dec(ctx context.Context, labels ...Label) {
	u.Add(ctx, -1, labels...)
}

func labelsToAttributes(labels []Label) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, len(labels))
	for i, label := range labels {
		attrs[i] = attribute.String(label.Key, label.Value)
	}
	return attrs
}
