package providers

import (
	"context"
	"fmt"
	"net/http"
)

type Label struct {
	Key   string
	Value string
}

// Labels pairs up key, value arguments. A trailing key without a value is dropped.
func Labels(pairs ...string) []Label {
	labels := make([]Label, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		labels = append(labels, Label{Key: pairs[i], Value: pairs[i+1]})
	}
	return labels
}

type Counter interface {
	Add(ctx context.Context, value int64, labels ...Label)
	Inc(ctx context.Context, labels ...Label)
}

type Histogram interface {
	Record(ctx context.Context, value float64, labels ...Label)
}

type Gauge interface {
	Set(ctx context.Context, value float64, labels ...Label)
}

type UpDownCounter interface {
	Add(ctx context.Context, value int64, labels ...Label)
	Inc(ctx context.Context, labels ...Label)
	Dec(ctx context.Context, labels ...Label)
}

type MetricType int

const (
	MetricTypeCounter MetricType = iota
	MetricTypeHistogram
	MetricTypeGauge
	MetricTypeUpDownCounter
)

func (t MetricType) String() string {
	switch t {
	case MetricTypeCounter:
		return "counter"
	case MetricTypeHistogram:
		return "histogram"
	case MetricTypeGauge:
		return "gauge"
	case MetricTypeUpDownCounter:
		return "updowncounter"
	default:
		return fmt.Sprintf("metric(%d)", int(t))
	}
}

type MetricDescriptor struct {
	Name        string
	Description string
	Unit        string
	Type        MetricType
	// Buckets overrides the histogram boundaries; ignored for other types.
	Buckets []float64
}

type Provider interface {
	CreateCounter(desc MetricDescriptor) (Counter, error)
	CreateHistogram(desc MetricDescriptor) (Histogram, error)
	CreateGauge(desc MetricDescriptor) (Gauge, error)
	CreateUpDownCounter(desc MetricDescriptor) (UpDownCounter, error)
	HTTPHandler() http.Handler
	Shutdown(ctx context.Context) error
}

type NoopCounter struct{}

func (n *NoopCounter) Add(ctx context.Context, value int64, labels ...Label) {}
func (n *NoopCounter) Inc(ctx context.Context, labels ...Label)              {}

type NoopHistogram struct{}

func (n *NoopHistogram) Record(ctx context.Context, value float64, labels ...Label) {}

type NoopGauge struct{}

func (n *NoopGauge) Set(ctx context.Context, value float64, labels ...Label) {}

type NoopUpDownCounter struct{}

func (n *NoopUpDownCounter) Add(ctx context.Context, value int64, labels ...Label) {}
func (n *NoopUpDownCounter) Inc(ctx context.Context, labels ...Label)              {}
func (n *NoopUpDownCounter) Dec(ctx context.Context, labels ...Label)              {}

// WriteDurationBuckets covers single inserts through large batch transactions.
func WriteDurationBuckets() []float64 {
	return []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 5}
}

// BatchSizeBuckets spans the dialect batch caps (1000, 5000, 10000).
func BatchSizeBuckets() []float64 {
	return []float64{1, 10, 50, 100, 250, 500, 1000, 2500, 5000, 10000}
}
