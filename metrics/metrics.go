package metrics

import (
	"context"
	"net/http"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/yadunandan004/dblogger/metrics/providers"
)

const instrumentationName = "github.com/yadunandan004/dblogger"

var (
	globalRegistry *MetricRegistry
	globalPipeline *PipelineMetrics
	initOnce       sync.Once
)

type Config struct {
	ServiceName    string
	ServiceVersion string
}

// InitMetrics installs a process-wide Prometheus-backed registry. Later calls
// are no-ops and return the first registry's shutdown.
func InitMetrics(ctx context.Context, cfg Config) (func(context.Context) error, error) {
	var err error
	initOnce.Do(func() {
		var provider *providers.PrometheusProvider
		provider, err = providers.NewPrometheusProvider(ctx, providers.PrometheusConfig{
			ServiceName:    cfg.ServiceName,
			ServiceVersion: cfg.ServiceVersion,
			SetGlobal:      true,
		})
		if err != nil {
			return
		}
		globalRegistry = NewMetricRegistry(provider)
		globalPipeline = NewPipelineMetrics(globalRegistry)
	})
	if err != nil {
		return nil, err
	}
	if globalRegistry == nil {
		return func(context.Context) error { return nil }, nil
	}
	return globalRegistry.Shutdown, nil
}

func GetRegistry() *MetricRegistry {
	return globalRegistry
}

// Pipeline returns the global pipeline metrics, or a no-op set before InitMetrics.
func Pipeline() *PipelineMetrics {
	if globalPipeline != nil {
		return globalPipeline
	}
	return NoopPipeline()
}

func Handler() http.Handler {
	if globalRegistry != nil {
		return globalRegistry.HTTPHandler()
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("Metrics not initialized"))
	})
}

// Tracer resolves through the otel global so a provider installed later still applies.
func Tracer() trace.Tracer {
	return otel.Tracer(instrumentationName)
}
