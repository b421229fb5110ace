package dblog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/yadunandan004/dblogger/export"
	"github.com/yadunandan004/dblogger/logerr"
	"github.com/yadunandan004/dblogger/metrics"
	"github.com/yadunandan004/dblogger/model"
)

// beforeRead gives in-flight writes a bounded chance to land so reads see
// the caller's own recent entries. A timeout is reported, not returned.
func (l *Logger) beforeRead(op string) error {
	if l.State() == StateDestroyed {
		return ErrShutdown
	}
	if !l.WaitUntilEmpty(l.readWait()) {
		l.sink.Warning(fmt.Sprintf("logger %s: %s ran before the worker queue drained", l.name, op))
	}
	return nil
}

// query runs fn under dbMu inside a span. Failures other than bad
// arguments are copied to the error sink.
func (l *Logger) query(ctx context.Context, op string, fn func(context.Context) error) error {
	if err := l.beforeRead(op); err != nil {
		return err
	}
	l.dbMu.Lock()
	err := metrics.TraceOperation(ctx, "dblog", op, fn, attribute.String("logger", l.name))
	l.dbMu.Unlock()
	if err != nil && !errors.Is(err, logerr.ErrInvalidArgument) {
		l.sink.Error(fmt.Sprintf("logger %s: %s failed: %v", l.name, op, err))
	}
	return err
}

func (l *Logger) GetAllLogs(ctx context.Context) ([]model.LogEntry, error) {
	return l.GetLogsByFilters(ctx, nil, -1, -1)
}

// GetLogsByFilters ANDs filters together. A negative limit or offset means
// no bound. On error the returned slice is empty, never nil.
func (l *Logger) GetLogsByFilters(ctx context.Context, filters []model.Filter, limit, offset int) ([]model.LogEntry, error) {
	var entries []model.LogEntry
	err := l.query(ctx, "get_logs", func(ctx context.Context) error {
		var err error
		entries, err = l.reader.GetLogsByFilters(ctx, filters, limit, offset)
		return err
	})
	if err != nil || entries == nil {
		return []model.LogEntry{}, err
	}
	return entries, nil
}

func (l *Logger) GetLogsByLevel(ctx context.Context, level model.LogLevel) ([]model.LogEntry, error) {
	return l.GetLogsByFilters(ctx, []model.Filter{model.Eq(model.FieldLevel, level.String())}, -1, -1)
}

func (l *Logger) GetLogsByFile(ctx context.Context, file string) ([]model.LogEntry, error) {
	return l.GetLogsByFilters(ctx, []model.Filter{model.Eq(model.FieldFile, file)}, -1, -1)
}

func (l *Logger) GetLogsByFunction(ctx context.Context, function string) ([]model.LogEntry, error) {
	return l.GetLogsByFilters(ctx, []model.Filter{model.Eq(model.FieldFunction, function)}, -1, -1)
}

func (l *Logger) GetLogsByThreadID(ctx context.Context, threadID string) ([]model.LogEntry, error) {
	return l.GetLogsByFilters(ctx, []model.Filter{model.Eq(model.FieldThreadID, threadID)}, -1, -1)
}

// GetLogsByTimestampRange is inclusive at both ends, at one second resolution.
func (l *Logger) GetLogsByTimestampRange(ctx context.Context, from, to time.Time) ([]model.LogEntry, error) {
	if to.Before(from) {
		return []model.LogEntry{}, logerr.Errorf(logerr.KindInvalidArgument, "dblog.timestamp_range", "range end %s is before start %s", to, from)
	}
	filters := model.Between(model.FieldTimestamp, model.FormatTimestamp(from), model.FormatTimestamp(to))
	return l.GetLogsByFilters(ctx, filters, -1, -1)
}

func (l *Logger) GetLogsBySourceID(ctx context.Context, sourceID int64) ([]model.LogEntry, error) {
	if !l.writer.HasSources() {
		return []model.LogEntry{}, nil
	}
	return l.GetLogsByFilters(ctx, []model.Filter{model.Eq(model.FieldSourceID, sourceID)}, -1, -1)
}

// GetLogsBySourceUUID returns nothing for a uuid that was never registered.
func (l *Logger) GetLogsBySourceUUID(ctx context.Context, uuid string) ([]model.LogEntry, error) {
	if !l.writer.HasSources() {
		return []model.LogEntry{}, nil
	}
	var (
		src   model.SourceInfo
		found bool
	)
	err := l.query(ctx, "get_source", func(ctx context.Context) error {
		var err error
		src, found, err = l.reader.GetSourceByUUID(ctx, uuid)
		return err
	})
	if err != nil || !found {
		return []model.LogEntry{}, err
	}
	return l.GetLogsBySourceID(ctx, src.ID)
}

// GetSources lists registered sources; it is empty for loggers without one.
func (l *Logger) GetSources(ctx context.Context) ([]model.SourceInfo, error) {
	if !l.writer.HasSources() {
		return []model.SourceInfo{}, nil
	}
	var sources []model.SourceInfo
	err := l.query(ctx, "get_sources", func(ctx context.Context) error {
		var err error
		sources, err = l.reader.GetAllSources(ctx)
		return err
	})
	if err != nil || sources == nil {
		return []model.SourceInfo{}, err
	}
	return sources, nil
}

func (l *Logger) CountLogs(ctx context.Context, filters ...model.Filter) (int64, error) {
	var n int64
	err := l.query(ctx, "count_logs", func(ctx context.Context) error {
		var err error
		n, err = l.reader.CountLogs(ctx, filters)
		return err
	})
	return n, err
}

// ClearLogs deletes every persisted row. Entries still in the batch buffer
// are written by the next flush.
func (l *Logger) ClearLogs(ctx context.Context) error {
	return l.query(ctx, "clear_logs", l.writer.ClearLogs)
}

// DeleteLogsBefore removes entries stamped strictly before ts.
func (l *Logger) DeleteLogsBefore(ctx context.Context, ts time.Time) (int64, error) {
	var n int64
	err := l.query(ctx, "delete_logs_before", func(ctx context.Context) error {
		var err error
		n, err = l.writer.DeleteLogsBefore(ctx, model.FormatTimestamp(ts))
		return err
	})
	return n, err
}

// Export writes every stored entry to path in the given format.
func (l *Logger) Export(ctx context.Context, path string, format export.Format, opts export.Options) error {
	entries, err := l.GetAllLogs(ctx)
	if err != nil {
		return err
	}
	if err := export.ToFile(path, format, entries, opts); err != nil {
		l.sink.Error(fmt.Sprintf("logger %s: export to %s failed: %v", l.name, path, err))
		return err
	}
	return nil
}
