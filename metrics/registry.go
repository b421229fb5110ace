package metrics

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/yadunandan004/dblogger/metrics/providers"
)

// MetricRegistry creates each named instrument once and hands the same one back afterwards.
type MetricRegistry struct {
	provider    providers.Provider
	mu          sync.RWMutex
	instruments map[string]registered
}

type registered struct {
	kind       providers.MetricType
	instrument any
}

func NewMetricRegistry(provider providers.Provider) *MetricRegistry {
	if provider == nil {
		provider = providers.NewNoopProvider()
	}
	return &MetricRegistry{
		provider:    provider,
		instruments: make(map[string]registered),
	}
}

func register[T any](r *MetricRegistry, desc providers.MetricDescriptor, create func(providers.MetricDescriptor) (T, error)) (T, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var zero T
	if existing, found := r.instruments[desc.Name]; found {
		if existing.kind != desc.Type {
			return zero, fmt.Errorf("metric %s already registered as %s", desc.Name, existing.kind)
		}
		return existing.instrument.(T), nil
	}

	instrument, err := create(desc)
	if err != nil {
		return zero, fmt.Errorf("failed to create %s %s: %w", desc.Type, desc.Name, err)
	}
	r.instruments[desc.Name] = registered{kind: desc.Type, instrument: instrument}
	return instrument, nil
}

func must[T any](instrument T, err error) T {
	if err != nil {
		panic(err)
	}
	return instrument
}

func (r *MetricRegistry) RegisterCounter(name, description, unit string) (providers.Counter, error) {
	return register(r, providers.MetricDescriptor{Name: name, Description: description, Unit: unit, Type: providers.MetricTypeCounter}, r.provider.CreateCounter)
}

func (r *MetricRegistry) MustRegisterCounter(name, description, unit string) providers.Counter {
	return must(r.RegisterCounter(name, description, unit))
}

func (r *MetricRegistry) RegisterHistogram(name, description, unit string, buckets []float64) (providers.Histogram, error) {
	return register(r, providers.MetricDescriptor{Name: name, Description: description, Unit: unit, Type: providers.MetricTypeHistogram, Buckets: buckets}, r.provider.CreateHistogram)
}

func (r *MetricRegistry) MustRegisterHistogram(name, description, unit string, buckets []float64) providers.Histogram {
	return must(r.RegisterHistogram(name, description, unit, buckets))
}

func (r *MetricRegistry) RegisterGauge(name, description, unit string) (providers.Gauge, error) {
	return register(r, providers.MetricDescriptor{Name: name, Description: description, Unit: unit, Type: providers.MetricTypeGauge}, r.provider.CreateGauge)
}

func (r *MetricRegistry) MustRegisterGauge(name, description, unit string) providers.Gauge {
	return must(r.RegisterGauge(name, description, unit))
}

func (r *MetricRegistry) RegisterUpDownCounter(name, description, unit string) (providers.UpDownCounter, error) {
	return register(r, providers.MetricDescriptor{Name: name, Description: description, Unit: unit, Type: providers.MetricTypeUpDownCounter}, r.provider.CreateUpDownCounter)
}

func (r *MetricRegistry) MustRegisterUpDownCounter(name, description, unit string) providers.UpDownCounter {
	return must(r.RegisterUpDownCounter(name, description, unit))
}

func (r *MetricRegistry) HTTPHandler() http.Handler {
	return r.provider.HTTPHandler()
}

func (r *MetricRegistry) Shutdown(ctx context.Context) error {
	return r.provider.Shutdown(ctx)
}

func (r *MetricRegistry) MetricCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.instruments)
}
