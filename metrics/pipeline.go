package metrics

import (
	"context"
	"time"

	"github.com/yadunandan004/dblogger/metrics/providers"
)

// PipelineMetrics are the per-logger write path instruments. Every method
// labels the observation with the logger name.
type PipelineMetrics struct {
	written       providers.Counter
	failed        providers.Counter
	flushes       providers.Counter
	batchRows     providers.Histogram
	writeDuration providers.Histogram
	buffered      providers.Gauge
	activeLoggers providers.UpDownCounter
}

func NewPipelineMetrics(registry *MetricRegistry) *PipelineMetrics {
	return &PipelineMetrics{
		written: registry.MustRegisterCounter(
			"dblog_logs_written_total",
			"Log entries persisted to the database",
			"{entry}",
		),
		failed: registry.MustRegisterCounter(
			"dblog_logs_failed_total",
			"Log entries that could not be persisted",
			"{entry}",
		),
		flushes: registry.MustRegisterCounter(
			"dblog_flushes_total",
			"Explicit and automatic batch flushes",
			"{flush}",
		),
		batchRows: registry.MustRegisterHistogram(
			"dblog_batch_rows",
			"Rows per batched insert",
			"{row}",
			providers.BatchSizeBuckets(),
		),
		writeDuration: registry.MustRegisterHistogram(
			"dblog_write_duration_seconds",
			"Time spent in one insert or batch insert",
			"s",
			providers.WriteDurationBuckets(),
		),
		buffered: registry.MustRegisterGauge(
			"dblog_buffered_rows",
			"Entries waiting in the batch buffer",
			"{entry}",
		),
		activeLoggers: registry.MustRegisterUpDownCounter(
			"dblog_active_loggers",
			"Loggers currently held by a registry",
			"{logger}",
		),
	}
}

// NoopPipeline discards every observation.
func NoopPipeline() *PipelineMetrics {
	return NewPipelineMetrics(NewMetricRegistry(providers.NewNoopProvider()))
}

func (p *PipelineMetrics) RecordWrite(ctx context.Context, logger string, rows int, d time.Duration, err error) {
	labels := providers.Labels("logger", logger)
	p.writeDuration.Record(ctx, d.Seconds(), labels...)
	if err != nil {
		p.failed.Add(ctx, int64(rows), labels...)
		return
	}
	p.written.Add(ctx, int64(rows), labels...)
}

func (p *PipelineMetrics) RecordBatch(ctx context.Context, logger string, rows int) {
	p.batchRows.Record(ctx, float64(rows), providers.Labels("logger", logger)...)
}

func (p *PipelineMetrics) RecordRejected(ctx context.Context, logger string) {
	p.failed.Inc(ctx, providers.Labels("logger", logger)...)
}

func (p *PipelineMetrics) RecordFlush(ctx context.Context, logger string) {
	p.flushes.Inc(ctx, providers.Labels("logger", logger)...)
}

func (p *PipelineMetrics) SetBuffered(ctx context.Context, logger string, rows int) {
	p.buffered.Set(ctx, float64(rows), providers.Labels("logger", logger)...)
}

func (p *PipelineMetrics) LoggerOpened(ctx context.Context, logger string) {
	p.activeLoggers.Inc(ctx, providers.Labels("logger", logger)...)
}

func (p *PipelineMetrics) LoggerClosed(ctx context.Context, logger string) {
	p.activeLoggers.Dec(ctx, providers.Labels("logger", logger)...)
}
