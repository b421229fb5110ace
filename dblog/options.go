package dblog

import (
	"go.uber.org/zap"

	"github.com/yadunandan004/dblogger/errsink"
	"github.com/yadunandan004/dblogger/metrics"
	"github.com/yadunandan004/dblogger/model"
)

type options struct {
	source  *model.SourceInfo
	zap     *zap.Logger
	metrics *metrics.PipelineMetrics
	sink    errsink.Reporter
}

type Option func(*options)

// WithSource attributes every entry to src. It takes precedence over
// sourceUuid/sourceName from the config.
func WithSource(src model.SourceInfo) Option {
	return func(o *options) { o.source = &src }
}

func WithZap(l *zap.Logger) Option {
	return func(o *options) { o.zap = l }
}

func WithMetrics(m *metrics.PipelineMetrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithSink replaces the file-backed error sink built from errorLogPath.
func WithSink(r errsink.Reporter) Option {
	return func(o *options) { o.sink = r }
}
