package metrics

import (
	"context"
	"errors"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/yadunandan004/dblogger/metrics/providers"
)

func scrape(t *testing.T, r *MetricRegistry) string {
	t.Helper()
	rec := httptest.NewRecorder()
	r.HTTPHandler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	return string(body)
}

func TestPipelineExportsPrometheus(t *testing.T) {
	ctx := context.Background()
	provider, err := providers.NewPrometheusProvider(ctx, providers.PrometheusConfig{ServiceName: "test"})
	require.NoError(t, err)
	registry := NewMetricRegistry(provider)
	defer registry.Shutdown(ctx)

	p := NewPipelineMetrics(registry)
	p.RecordWrite(ctx, "app", 7, 3*time.Millisecond, nil)
	p.RecordWrite(ctx, "app", 2, time.Millisecond, errors.New("down"))
	p.RecordBatch(ctx, "app", 7)
	p.RecordFlush(ctx, "app")
	p.SetBuffered(ctx, "app", 3)
	p.LoggerOpened(ctx, "app")

	body := scrape(t, registry)
	assert.Contains(t, body, "dblog_logs_written_total")
	assert.Contains(t, body, "dblog_logs_failed_total")
	assert.Contains(t, body, "dblog_flushes_total")
	assert.Contains(t, body, "dblog_batch_rows")
	assert.Contains(t, body, "dblog_write_duration_seconds")
	assert.Contains(t, body, `logger="app"`)
}

func TestRegistryReusesInstruments(t *testing.T) {
	r := NewMetricRegistry(nil)
	a := r.MustRegisterCounter("x_total", "", "")
	b := r.MustRegisterCounter("x_total", "", "")
	assert.Same(t, a, b)
	assert.Equal(t, 1, r.MetricCount())

	_, err := r.RegisterGauge("x_total", "", "")
	assert.Error(t, err)
	assert.Panics(t, func() { r.MustRegisterHistogram("x_total", "", "", nil) })
}

func TestNoopPipelineAndHandler(t *testing.T) {
	p := Pipeline()
	require.NotNil(t, p)
	p.RecordWrite(context.Background(), "x", 1, time.Second, nil)

	assert.Len(t, providers.Labels("a", "1", "dangling"), 1)
}

func TestTraceOperationRecordsErrors(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	defer otel.SetTracerProvider(prev)

	boom := errors.New("boom")
	err := TraceOperation(context.Background(), "dblog", "write", func(context.Context) error { return boom })
	assert.ErrorIs(t, err, boom)
	require.NoError(t, TraceOperation(context.Background(), "dblog", "read", func(context.Context) error { return nil }))

	spans := sr.Ended()
	require.Len(t, spans, 2)
	assert.Equal(t, "dblog.write", spans[0].Name())
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	assert.Equal(t, "dblog.read", spans[1].Name())
}
