package dblog

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/yadunandan004/dblogger/config"
	"github.com/yadunandan004/dblogger/errsink"
	"github.com/yadunandan004/dblogger/logerr"
	"github.com/yadunandan004/dblogger/logger"
	"github.com/yadunandan004/dblogger/metrics"
	"github.com/yadunandan004/dblogger/model"
	"github.com/yadunandan004/dblogger/repository"
	"github.com/yadunandan004/dblogger/store"
	"github.com/yadunandan004/dblogger/store/backend"
	"github.com/yadunandan004/dblogger/workerpool"
)

type State int32

const (
	StateConstructed State = iota
	StateRunning
	StateShuttingDown
	StateDestroyed
)

func (s State) String() string {
	switch s {
	case StateConstructed:
		return "constructed"
	case StateRunning:
		return "running"
	case StateShuttingDown:
		return "shutting_down"
	case StateDestroyed:
		return "destroyed"
	}
	return fmt.Sprintf("state(%d)", int32(s))
}

// Logger persists structured log entries to one database table.
//
// Lock order: cfgMu, lifeMu, batchMu, dbMu, statsMu. batchMu and dbMu are
// never held together: batches are swapped out under batchMu and written
// after it is released.
type Logger struct {
	name string

	cfgMu sync.RWMutex
	cfg   config.LoggerConfig

	// lifeMu is read-held by every dispatch so Shutdown can stop intake atomically.
	lifeMu sync.RWMutex
	state  atomic.Int32

	dbMu   sync.Mutex
	b      backend.Backend
	writer *repository.LogWriter
	reader *repository.LogReader

	batchMu   sync.Mutex
	batch     []model.LogTask
	batchSize int
	batching  bool

	statsMu sync.Mutex
	stats   statsAccumulator

	pool     *workerpool.Pool
	sourceID atomic.Int64
	source   model.SourceInfo

	sink    errsink.Reporter
	ownSink *errsink.Sink
	log     *zap.Logger
	metrics *metrics.PipelineMetrics
}

// Open validates cfg, connects the configured backend and returns a running Logger.
func Open(ctx context.Context, cfg config.LoggerConfig, opts ...Option) (*Logger, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	connStr, err := config.ConnectionString(cfg)
	if err != nil {
		return nil, err
	}
	b, err := store.Open(ctx, cfg.DatabaseType, connStr, cfg.BackendOptions())
	if err != nil {
		return nil, err
	}
	return New(ctx, cfg, b, opts...)
}

// New takes ownership of a connected backend, creates the schema and starts
// the worker pool in async mode. The backend is disconnected if New fails.
func New(ctx context.Context, cfg config.LoggerConfig, b backend.Backend, opts ...Option) (l *Logger, err error) {
	defer func() {
		if err != nil && b != nil {
			_ = b.Disconnect()
		}
	}()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if b == nil || !b.IsConnected() {
		return nil, logerr.Errorf(logerr.KindConnect, "dblog.new", "logger %q needs a connected backend", cfg.Name)
	}
	if b.DatabaseType() != cfg.DatabaseType {
		return nil, logerr.Errorf(logerr.KindConfig, "dblog.new", "backend is %s but config says %s", b.DatabaseType(), cfg.DatabaseType)
	}

	o := options{}
	for _, opt := range opts {
		opt(&o)
	}

	l = &Logger{
		name:    cfg.Name,
		cfg:     cfg,
		b:       b,
		metrics: o.metrics,
	}
	if o.zap == nil {
		o.zap = logger.L()
	}
	l.log = o.zap.Named("dblog").With(zap.String("logger", cfg.Name))
	if l.metrics == nil {
		l.metrics = metrics.Pipeline()
	}
	if o.sink != nil {
		l.sink = o.sink
	} else {
		l.ownSink = errsink.New(cfg.ErrorLogPath, cfg.ErrorLogMaxBytes, errsink.WithZap(l.log))
		l.sink = l.ownSink
	}

	src, withSource := l.pickSource(cfg, o.source)

	if l.writer, err = repository.NewLogWriter(b, cfg.Table(), withSource); err != nil {
		return nil, err
	}
	if l.reader, err = repository.NewLogReader(b, cfg.Table(), withSource); err != nil {
		return nil, err
	}
	if err = l.createSchema(ctx, withSource); err != nil {
		return nil, err
	}
	if withSource {
		if l.source, err = l.registerSource(ctx, src); err != nil {
			return nil, err
		}
		l.sourceID.Store(l.source.ID)
	}

	if cfg.UseBatch {
		if l.writer.Dialect().SupportsBatch() {
			l.batching = true
			l.batchSize = cfg.BatchSize
		} else {
			l.log.Warn("batching requested but not supported by the dialect; writing entries one by one",
				zap.Stringer("database_type", cfg.DatabaseType))
		}
	}

	if !cfg.SyncMode {
		if l.pool, err = workerpool.New(cfg.NumThreads); err != nil {
			return nil, err
		}
	}

	l.stats.reset()
	l.state.Store(int32(StateRunning))
	l.log.Debug("logger started",
		zap.Stringer("database_type", cfg.DatabaseType),
		zap.String("table", cfg.Table()),
		zap.Bool("sync", cfg.SyncMode),
		zap.Bool("batching", l.batching))
	return l, nil
}

// pickSource decides which source identity, if any, the logger writes under.
func (l *Logger) pickSource(cfg config.LoggerConfig, given *model.SourceInfo) (model.SourceInfo, bool) {
	if given == nil {
		return cfg.Source(), cfg.HasSource()
	}
	if cfg.HasSource() {
		fromCfg := cfg.Source()
		if fromCfg.UUID != given.UUID || fromCfg.Name != given.Name {
			l.log.Warn("source passed at construction differs from configured source; using the one passed in",
				zap.String("configured_uuid", fromCfg.UUID),
				zap.String("configured_name", fromCfg.Name),
				zap.String("uuid", given.UUID),
				zap.String("name", given.Name))
		}
	}
	return *given, true
}

func (l *Logger) createSchema(ctx context.Context, withSource bool) error {
	if withSource {
		if err := l.writer.CreateSourcesTable(ctx); err != nil {
			return err
		}
	}
	if err := l.writer.CreateLogsTable(ctx); err != nil {
		return err
	}
	return l.writer.CreateIndexes(ctx)
}

// registerSource looks the source up by uuid (or by name when no uuid is
// given) and inserts it when missing.
func (l *Logger) registerSource(ctx context.Context, src model.SourceInfo) (model.SourceInfo, error) {
	var (
		found model.SourceInfo
		ok    bool
		err   error
	)
	if src.UUID != "" {
		found, ok, err = l.reader.GetSourceByUUID(ctx, src.UUID)
	} else {
		found, ok, err = l.reader.GetSourceByName(ctx, src.Name)
		if !ok && err == nil {
			src = model.NewSourceInfo(src.Name)
		}
	}
	if err != nil {
		return src, err
	}
	if ok {
		if found.Name != src.Name && src.Name != "" {
			l.log.Warn("source already registered under a different name",
				zap.String("uuid", found.UUID), zap.String("stored_name", found.Name), zap.String("name", src.Name))
		}
		return found, nil
	}

	id, err := l.writer.AddSource(ctx, src.Name, src.UUID)
	if err != nil {
		return src, err
	}
	src.ID = id
	l.log.Info("registered log source", zap.Int64("source_id", id), zap.String("uuid", src.UUID))
	return src, nil
}

func (l *Logger) Name() string {
	return l.name
}

// Config returns a copy of the configuration the logger was built with.
func (l *Logger) Config() config.LoggerConfig {
	l.cfgMu.RLock()
	defer l.cfgMu.RUnlock()
	return l.cfg
}

// Source reports the registered source, if the logger writes under one.
func (l *Logger) Source() (model.SourceInfo, bool) {
	return l.source, l.sourceID.Load() > 0
}

func (l *Logger) State() State {
	return State(l.state.Load())
}

func (l *Logger) running() bool {
	return l.State() == StateRunning
}

// Backend exposes the owned backend, for diagnostics such as LastError.
func (l *Logger) Backend() backend.Backend {
	return l.b
}

func (l *Logger) queryContext() (context.Context, context.CancelFunc) {
	l.cfgMu.RLock()
	timeout := l.cfg.QueryTimeout
	l.cfgMu.RUnlock()
	if timeout <= 0 {
		return context.WithCancel(context.Background())
	}
	return context.WithTimeout(context.Background(), timeout)
}

// Shutdown stops intake, drains the worker pool, flushes the batch buffer and
// releases the backend. It is safe to call more than once.
func (l *Logger) Shutdown() error {
	l.lifeMu.Lock()
	if !l.state.CompareAndSwap(int32(StateRunning), int32(StateShuttingDown)) {
		l.lifeMu.Unlock()
		return nil
	}
	l.lifeMu.Unlock()

	var errs []error
	if l.pool != nil {
		l.pool.WaitForCompletion()
	}
	if err := l.flushBuffer(); err != nil {
		errs = append(errs, err)
	}
	if l.pool != nil {
		if dropped := l.pool.Stop(); dropped > 0 {
			l.statsMu.Lock()
			l.stats.failed(dropped)
			l.statsMu.Unlock()
			l.sink.Error(fmt.Sprintf("logger %s: %d queued entries dropped at shutdown", l.name, dropped))
		}
	}

	l.dbMu.Lock()
	if err := l.b.Disconnect(); err != nil {
		errs = append(errs, err)
	}
	l.dbMu.Unlock()

	l.state.Store(int32(StateDestroyed))
	if l.ownSink != nil {
		_ = l.ownSink.Close()
	}
	l.log.Debug("logger stopped", zap.Int64("total_logged", l.Stats().TotalLogged))
	return errors.Join(errs...)
}

// WaitUntilEmpty reports whether every accepted entry left the worker queue
// within timeout. In sync mode there is no queue and it returns true at once.
func (l *Logger) WaitUntilEmpty(timeout time.Duration) bool {
	if l.pool == nil {
		return true
	}
	deadline := time.Now().Add(timeout)
	for {
		if l.pool.IsQueueEmpty() {
			return true
		}
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return false
		}
		time.Sleep(min(remaining, 2*time.Millisecond))
	}
}
