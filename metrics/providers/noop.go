package providers

import (
	"context"
	"net/http"
)

// NoopProvider hands out instruments that discard every observation.
type NoopProvider struct{}

func NewNoopProvider() *NoopProvider {
	return &NoopProvider{}
}

func (n *NoopProvider) CreateCounter(MetricDescriptor) (Counter, error) {
	return &NoopCounter{}, nil
}

func (n *NoopProvider) CreateHistogram(MetricDescriptor) (Histogram, error) {
	return &NoopHistogram{}, nil
}

func (n *NoopProvider) CreateGauge(MetricDescriptor) (Gauge, error) {
	return &NoopGauge{}, nil
}

func (n *NoopProvider) CreateUpDownCounter(MetricDescriptor) (UpDownCounter, error) {
	return &NoopUpDownCounter{}, nil
}

func (n *NoopProvider) HTTPHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("# metrics disabled\n"))
	})
}

func (n *NoopProvider) Shutdown(context.Context) error {
	return nil
}
