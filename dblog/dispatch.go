package dblog

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/yadunandan004/dblogger/logerr"
	"github.com/yadunandan004/dblogger/metrics"
	"github.com/yadunandan004/dblogger/model"
)

// ErrShutdown is returned by operations on a logger that has been shut down.
var ErrShutdown = logerr.New(logerr.KindLogic, "dblog", errors.New("logger is shut down"))

func (l *Logger) Log(level model.LogLevel, msg string) {
	l.logAt(level, msg)
}

func (l *Logger) Logf(level model.LogLevel, format string, args ...any) {
	if !l.Enabled(level) {
		return
	}
	l.logAt(level, fmt.Sprintf(format, args...))
}

func (l *Logger) Trace(msg string)   { l.logAt(model.Trace, msg) }
func (l *Logger) Debug(msg string)   { l.logAt(model.Debug, msg) }
func (l *Logger) Info(msg string)    { l.logAt(model.Info, msg) }
func (l *Logger) Warning(msg string) { l.logAt(model.Warning, msg) }
func (l *Logger) Error(msg string)   { l.logAt(model.Error, msg) }

// Fatal records msg at FATAL. It does not exit the process.
func (l *Logger) Fatal(msg string) { l.logAt(model.Fatal, msg) }

func (l *Logger) Tracef(format string, args ...any)   { l.logfAt(model.Trace, format, args...) }
func (l *Logger) Debugf(format string, args ...any)   { l.logfAt(model.Debug, format, args...) }
func (l *Logger) Infof(format string, args ...any)    { l.logfAt(model.Info, format, args...) }
func (l *Logger) Warningf(format string, args ...any) { l.logfAt(model.Warning, format, args...) }
func (l *Logger) Errorf(format string, args ...any)   { l.logfAt(model.Error, format, args...) }
func (l *Logger) Fatalf(format string, args ...any)   { l.logfAt(model.Fatal, format, args...) }

// logAt and logfAt must be called directly by the exported helpers so the
// caller frame is at a fixed depth.
func (l *Logger) logAt(level model.LogLevel, msg string) {
	if !l.Enabled(level) {
		return
	}
	fn, file, line := caller(2)
	l.LogAdd(level, msg, fn, file, line, model.CurrentThreadID())
}

func (l *Logger) logfAt(level model.LogLevel, format string, args ...any) {
	if !l.Enabled(level) {
		return
	}
	fn, file, line := caller(2)
	l.LogAdd(level, fmt.Sprintf(format, args...), fn, file, line, model.CurrentThreadID())
}

// caller reports the frame skip levels above its own caller.
func caller(skip int) (fn, file string, line int) {
	pc, file, line, ok := runtime.Caller(skip + 1)
	if !ok {
		return "", "", 0
	}
	if f := runtime.FuncForPC(pc); f != nil {
		fn = f.Name()
		if i := strings.LastIndexByte(fn, '/'); i >= 0 {
			fn = fn[i+1:]
		}
	}
	return fn, file, line
}

// Enabled reports whether level passes the logger's minimum level.
func (l *Logger) Enabled(level model.LogLevel) bool {
	l.cfgMu.RLock()
	defer l.cfgMu.RUnlock()
	return level >= l.cfg.MinLogLevel
}

// LogAdd is the single ingress point. Entries below the minimum level are
// dropped silently; entries arriving after shutdown count as failed.
func (l *Logger) LogAdd(level model.LogLevel, message, function, file string, line int, threadID string) {
	l.cfgMu.RLock()
	minLevel, onlyFileNames := l.cfg.MinLogLevel, l.cfg.OnlyFileNames
	l.cfgMu.RUnlock()
	if level < minLevel {
		return
	}

	task := model.LogTask{
		Time:     time.Now(),
		Level:    level,
		Message:  message,
		Function: function,
		File:     file,
		Line:     line,
		ThreadID: threadID,
	}
	if onlyFileNames {
		task = task.StripDir()
	}

	l.lifeMu.RLock()
	defer l.lifeMu.RUnlock()
	if !l.running() {
		l.reject(task, ErrShutdown)
		return
	}
	if l.pool == nil {
		l.handle(task)
		return
	}
	if err := l.pool.Submit(func() { l.handle(task) }); err != nil {
		l.reject(task, err)
	}
}

func (l *Logger) reject(task model.LogTask, cause error) {
	l.statsMu.Lock()
	l.stats.failed(1)
	l.statsMu.Unlock()
	l.metrics.RecordRejected(context.Background(), l.name)
	l.sink.Error(fmt.Sprintf("logger %s: dropped %s entry %q: %v", l.name, task.Level, task.Message, cause))
}

// handle either writes the task or appends it to the batch buffer, writing
// the buffer once it reaches the batch size.
func (l *Logger) handle(task model.LogTask) {
	l.batchMu.Lock()
	if !l.batching {
		l.batchMu.Unlock()
		_ = l.processTask(task)
		return
	}
	l.batch = append(l.batch, task)
	var full []model.LogTask
	if len(l.batch) >= l.batchSize {
		full = l.batch
		l.batch = make([]model.LogTask, 0, l.batchSize)
	}
	buffered := len(l.batch)
	l.batchMu.Unlock()

	l.metrics.SetBuffered(context.Background(), l.name, buffered)
	if full != nil {
		l.countFlush()
		_ = l.processBatch(full)
	}
}

func (l *Logger) processTask(task model.LogTask) error {
	entry := task.Entry(l.sourceID.Load())
	ctx, cancel := l.queryContext()
	defer cancel()

	start := time.Now()
	l.dbMu.Lock()
	err := metrics.TraceOperation(ctx, "dblog", "write_log", func(ctx context.Context) error {
		return l.writer.WriteLog(ctx, entry)
	}, attribute.String("logger", l.name))
	l.dbMu.Unlock()

	l.recordWrite(1, time.Since(start), err)
	if err != nil {
		l.sink.Error(fmt.Sprintf("logger %s: write failed for %s entry %q: %v", l.name, entry.Level, entry.Message, err))
	}
	return err
}

func (l *Logger) processBatch(batch []model.LogTask) error {
	if len(batch) == 0 {
		return nil
	}
	sourceID := l.sourceID.Load()
	entries := make([]model.LogEntry, len(batch))
	for i, task := range batch {
		entries[i] = task.Entry(sourceID)
	}
	ctx, cancel := l.queryContext()
	defer cancel()

	start := time.Now()
	l.dbMu.Lock()
	err := metrics.TraceOperation(ctx, "dblog", "write_log_batch", func(ctx context.Context) error {
		return l.writer.WriteLogBatch(ctx, entries)
	}, attribute.String("logger", l.name), attribute.Int("rows", len(entries)))
	l.dbMu.Unlock()

	l.statsMu.Lock()
	l.stats.batch(len(entries))
	l.statsMu.Unlock()
	l.metrics.RecordBatch(context.Background(), l.name, len(entries))
	l.recordWrite(len(entries), time.Since(start), err)
	if err != nil {
		l.sink.Error(fmt.Sprintf("logger %s: batch of %d entries failed: %v", l.name, len(entries), err))
	}
	return err
}

func (l *Logger) recordWrite(rows int, d time.Duration, err error) {
	l.statsMu.Lock()
	l.stats.processed(rows, d, err)
	l.statsMu.Unlock()
	l.metrics.RecordWrite(context.Background(), l.name, rows, d, err)
}

func (l *Logger) countFlush() {
	l.statsMu.Lock()
	l.stats.FlushCount++
	l.statsMu.Unlock()
	l.metrics.RecordFlush(context.Background(), l.name)
}

func (l *Logger) swapBatch() []model.LogTask {
	l.batchMu.Lock()
	defer l.batchMu.Unlock()
	if len(l.batch) == 0 {
		return nil
	}
	pending := l.batch
	l.batch = make([]model.LogTask, 0, max(l.batchSize, 1))
	return pending
}

func (l *Logger) flushBuffer() error {
	pending := l.swapBatch()
	if pending == nil {
		return nil
	}
	l.metrics.SetBuffered(context.Background(), l.name, 0)
	return l.processBatch(pending)
}

// Flush writes whatever is in the batch buffer now. In async mode it first
// waits, up to readWaitTimeout, for accepted entries to reach the buffer.
func (l *Logger) Flush() error {
	if l.State() == StateDestroyed {
		return ErrShutdown
	}
	if l.pool != nil && !l.WaitUntilEmpty(l.readWait()) {
		l.sink.Warning(fmt.Sprintf("logger %s: flush proceeded before the worker queue drained", l.name))
	}
	l.countFlush()
	return l.flushBuffer()
}

// SetBatchSize changes the batch size at runtime. Zero disables batching
// after flushing the buffer.
func (l *Logger) SetBatchSize(n int) error {
	if n < 0 {
		return logerr.Errorf(logerr.KindInvalidArgument, "dblog.set_batch_size", "batch size %d is negative", n)
	}
	if l.State() == StateDestroyed {
		return ErrShutdown
	}
	if n == 0 {
		l.cfgMu.Lock()
		l.cfg.UseBatch = false
		l.cfgMu.Unlock()

		l.batchMu.Lock()
		l.batching = false
		l.batchMu.Unlock()
		return l.Flush()
	}

	maxBatch, err := l.writer.Dialect().MaxBatch()
	if err != nil {
		return err
	}
	if n > maxBatch {
		return logerr.Errorf(logerr.KindInvalidArgument, "dblog.set_batch_size", "batch size %d exceeds the %s limit of %d", n, l.b.DatabaseType(), maxBatch)
	}

	l.cfgMu.Lock()
	l.cfg.UseBatch, l.cfg.BatchSize = true, n
	l.cfgMu.Unlock()

	l.batchMu.Lock()
	var pending []model.LogTask
	if len(l.batch) >= n {
		pending = l.batch
		l.batch = make([]model.LogTask, 0, n)
	}
	l.batchSize, l.batching = n, true
	l.batchMu.Unlock()

	if pending == nil {
		return nil
	}
	l.countFlush()
	return l.processBatch(pending)
}

// BatchSize returns the active batch size, or 0 when batching is off.
func (l *Logger) BatchSize() int {
	l.batchMu.Lock()
	defer l.batchMu.Unlock()
	if !l.batching {
		return 0
	}
	return l.batchSize
}

func (l *Logger) readWait() time.Duration {
	l.cfgMu.RLock()
	defer l.cfgMu.RUnlock()
	return l.cfg.ReadWaitTimeout
}
