package dblog

import (
	"context"
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/yadunandan004/dblogger/config"
	"github.com/yadunandan004/dblogger/errsink"
	"github.com/yadunandan004/dblogger/export"
	"github.com/yadunandan004/dblogger/logerr"
	"github.com/yadunandan004/dblogger/metrics"
	"github.com/yadunandan004/dblogger/model"
	"github.com/yadunandan004/dblogger/store/mock"
)

type recordingSink struct {
	mu       sync.Mutex
	errors   []string
	warnings []string
}

func (s *recordingSink) Error(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errors = append(s.errors, msg)
}

func (s *recordingSink) Warning(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.warnings = append(s.warnings, msg)
}

func (s *recordingSink) Errors() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.errors...)
}

func testOptions(extra ...Option) []Option {
	return append([]Option{
		WithSink(errsink.Discard{}),
		WithZap(zap.NewNop()),
		WithMetrics(metrics.NoopPipeline()),
	}, extra...)
}

func openLogger(t *testing.T, cfg config.LoggerConfig, opts ...Option) *Logger {
	t.Helper()
	l, err := Open(context.Background(), cfg, testOptions(opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Shutdown() })
	return l
}

func mockConfig(name string) config.LoggerConfig {
	return config.Default(name, model.Mock)
}

func sqliteConfig(t *testing.T, name string) config.LoggerConfig {
	cfg := config.Default(name, model.SQLite)
	cfg.DatabaseName = filepath.Join(t.TempDir(), name+".db")
	return cfg
}

func thisFile(t *testing.T) string {
	_, file, _, ok := runtime.Caller(0)
	require.True(t, ok)
	return file
}

func TestBasicRoundTrip(t *testing.T) {
	ctx := context.Background()
	l := openLogger(t, mockConfig("basic"))

	l.Info("hi")
	l.Warning("w")
	l.Error("e")

	entries, err := l.GetAllLogs(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, []string{"INFO", "WARNING", "ERROR"}, []string{entries[0].Level, entries[1].Level, entries[2].Level})
	assert.Equal(t, []string{"hi", "w", "e"}, []string{entries[0].Message, entries[1].Message, entries[2].Message})
	assert.Equal(t, "dblog.TestBasicRoundTrip", entries[0].Function)
	assert.Equal(t, thisFile(t), entries[0].File)
	assert.Positive(t, entries[0].Line)
	assert.NotEmpty(t, entries[0].ThreadID)

	stats := l.Stats()
	assert.Equal(t, int64(3), stats.TotalLogged)
	assert.Zero(t, stats.TotalFailed)
}

func TestLevelFilter(t *testing.T) {
	l := openLogger(t, mockConfig("levels"))
	l.Trace("t")
	l.Debug("d")
	l.Info("i")
	l.Warning("w")
	l.Error("e")
	l.Fatal("f")

	entries, err := l.GetLogsByLevel(context.Background(), model.Warning)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "WARNING", entries[0].Level)
	assert.Equal(t, "w", entries[0].Message)
}

func TestTimestampRange(t *testing.T) {
	l := openLogger(t, mockConfig("range"))
	l.Infof("at %d", 1)

	entries, err := l.GetLogsByTimestampRange(context.Background(), time.Unix(0, 0), time.Now())
	require.NoError(t, err)
	require.NotEmpty(t, entries)
	assert.Equal(t, "at 1", entries[0].Message)

	_, err = l.GetLogsByTimestampRange(context.Background(), time.Now(), time.Unix(0, 0))
	assert.ErrorIs(t, err, logerr.ErrInvalidArgument)
}

func TestMultiFilterAnd(t *testing.T) {
	ctx := context.Background()
	l := openLogger(t, mockConfig("and"))
	l.Error("this one")
	l.Info("wrong level")
	l.LogAdd(model.Error, "wrong file", "other", "/elsewhere/other.go", 1, "1")

	filters := append([]model.Filter{
		model.Eq(model.FieldLevel, "ERROR"),
		model.Eq(model.FieldFile, thisFile(t)),
	}, model.Between(model.FieldTimestamp, model.FormatTimestamp(time.Unix(0, 0)), model.FormatTimestamp(time.Now()))...)

	entries, err := l.GetLogsByFilters(ctx, filters, -1, -1)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "this one", entries[0].Message)

	n, err := l.CountLogs(ctx, model.Eq(model.FieldLevel, "ERROR"))
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestBadFilterReturnsEmpty(t *testing.T) {
	sink := &recordingSink{}
	l := openLogger(t, mockConfig("badfilter"), WithSink(sink))
	l.Info("x")

	entries, err := l.GetLogsByFilters(context.Background(), []model.Filter{model.Where(model.FieldLevel, "; DROP", "x")}, -1, -1)
	assert.ErrorIs(t, err, logerr.ErrInvalidArgument)
	assert.NotNil(t, entries)
	assert.Empty(t, entries)

	_, err = l.GetLogsByFilters(context.Background(), []model.Filter{model.Eq("message", "x")}, -1, -1)
	assert.ErrorIs(t, err, logerr.ErrInvalidArgument)
	assert.Empty(t, sink.Errors())
}

func TestBatchFlush(t *testing.T) {
	ctx := context.Background()
	cfg := sqliteConfig(t, "batch")
	cfg.UseBatch, cfg.BatchSize = true, 10
	l := openLogger(t, cfg)

	for i := range 7 {
		l.Infof("record %d", i)
	}
	entries, err := l.GetAllLogs(ctx)
	require.NoError(t, err)
	assert.Empty(t, entries)

	require.NoError(t, l.Flush())
	entries, err = l.GetAllLogs(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 7)
	assert.Equal(t, "record 0", entries[0].Message)

	stats := l.Stats()
	assert.Equal(t, int64(7), stats.TotalLogged)
	assert.Equal(t, int64(1), stats.FlushCount)
	assert.Equal(t, int64(1), stats.BatchCount)
	assert.Equal(t, 7, stats.MaxBatchSize)
}

func TestBatchWritesWhenFull(t *testing.T) {
	ctx := context.Background()
	cfg := sqliteConfig(t, "full")
	cfg.UseBatch, cfg.BatchSize = true, 5
	l := openLogger(t, cfg)

	for i := range 12 {
		l.Infof("m%02d", i)
	}
	n, err := l.CountLogs(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(10), n)

	require.NoError(t, l.Flush())
	n, err = l.CountLogs(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(12), n)

	stats := l.Stats()
	assert.Equal(t, int64(3), stats.BatchCount)
	assert.Equal(t, 2, stats.MinBatchSize)
	assert.Equal(t, 5, stats.MaxBatchSize)
	assert.InDelta(t, 4.0, stats.AvgBatchSize, 0.001)
}

func TestBatchingKeepsTheSameRecords(t *testing.T) {
	const producers, perProducer = 4, 25

	collect := func(t *testing.T, cfg config.LoggerConfig) []string {
		l := openLogger(t, cfg)
		var wg sync.WaitGroup
		for g := range producers {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for i := range perProducer {
					l.Log(model.LogLevel(i%int(model.Fatal+1)), fmt.Sprintf("g%d-%02d", g, i))
				}
			}()
		}
		wg.Wait()
		require.True(t, l.WaitUntilEmpty(5*time.Second))
		require.NoError(t, l.Flush())

		entries, err := l.GetAllLogs(context.Background())
		require.NoError(t, err)
		out := make([]string, 0, len(entries))
		for _, e := range entries {
			out = append(out, e.Level+" "+e.Message)
		}
		slices.Sort(out)
		return out
	}

	for _, syncMode := range []bool{true, false} {
		t.Run(fmt.Sprintf("sync=%v", syncMode), func(t *testing.T) {
			plain := sqliteConfig(t, "plain")
			plain.SyncMode, plain.MinLogLevel = syncMode, model.Trace

			batched := sqliteConfig(t, "batched")
			batched.SyncMode, batched.MinLogLevel = syncMode, model.Trace
			batched.UseBatch, batched.BatchSize = true, 7

			want := collect(t, plain)
			require.Len(t, want, producers*perProducer)
			assert.Equal(t, want, collect(t, batched))
		})
	}
}

func TestMultithreadCount(t *testing.T) {
	cfg := mockConfig("threads")
	cfg.SyncMode = false
	l := openLogger(t, cfg)

	var wg sync.WaitGroup
	for g := range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range 100 {
				l.Infof("g%d-%d", g, i)
			}
		}()
	}
	wg.Wait()

	require.True(t, l.WaitUntilEmpty(5*time.Second))
	entries, err := l.GetAllLogs(context.Background())
	require.NoError(t, err)
	assert.Len(t, entries, 1000)
}

func TestSingleWorkerKeepsOrder(t *testing.T) {
	cfg := mockConfig("ordered")
	cfg.SyncMode, cfg.NumThreads = false, 1
	l := openLogger(t, cfg)

	for i := range 50 {
		l.Infof("%03d", i)
	}
	require.True(t, l.WaitUntilEmpty(5*time.Second))

	entries, err := l.GetAllLogs(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 50)
	for i, e := range entries {
		assert.Equal(t, fmt.Sprintf("%03d", i), e.Message)
	}
}

func TestMinLevelGate(t *testing.T) {
	cfg := mockConfig("gate")
	cfg.MinLogLevel = model.Warning
	l := openLogger(t, cfg)

	l.Debug("dropped")
	l.Info("dropped")
	l.Error("kept")
	l.LogAdd(model.Trace, "dropped", "f", "f.go", 1, "1")

	entries, err := l.GetAllLogs(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "kept", entries[0].Message)
	assert.Equal(t, int64(1), l.Stats().TotalLogged)
	assert.Zero(t, l.Stats().TotalFailed)
	assert.False(t, l.Enabled(model.Info))
}

func TestOutOfRangeLinesAreClamped(t *testing.T) {
	l := openLogger(t, sqliteConfig(t, "lines"))

	l.LogAdd(model.Info, "negative", "fn", "a.go", -5, "1")
	l.LogAdd(model.Info, "huge", "fn", "a.go", math.MaxInt32+10, "1")

	entries, err := l.GetAllLogs(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, int32(0), entries[0].Line)
	assert.Equal(t, int32(math.MaxInt32), entries[1].Line)
}

func TestOnlyFileNames(t *testing.T) {
	cfg := mockConfig("basename")
	cfg.OnlyFileNames = true
	l := openLogger(t, cfg)

	l.LogAdd(model.Info, "m", "fn", "/srv/app/handlers/user.go", 3, "9")
	l.Info("here")

	entries, err := l.GetAllLogs(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "user.go", entries[0].File)
	assert.Equal(t, "9", entries[0].ThreadID)
	assert.Equal(t, "logger_test.go", entries[1].File)

	byFile, err := l.GetLogsByFile(context.Background(), "user.go")
	require.NoError(t, err)
	assert.Len(t, byFile, 1)
	byFn, err := l.GetLogsByFunction(context.Background(), "fn")
	require.NoError(t, err)
	assert.Len(t, byFn, 1)
	byThread, err := l.GetLogsByThreadID(context.Background(), "9")
	require.NoError(t, err)
	assert.Len(t, byThread, 1)
}

func TestShutdownDrainsEverything(t *testing.T) {
	cfg := sqliteConfig(t, "drain")
	cfg.SyncMode, cfg.NumThreads = false, 4
	cfg.UseBatch, cfg.BatchSize = true, 7
	l, err := Open(context.Background(), cfg, testOptions()...)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for g := range 5 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range 20 {
				l.Infof("g%d-%d", g, i)
			}
		}()
	}
	wg.Wait()
	require.NoError(t, l.Shutdown())
	assert.Equal(t, StateDestroyed, l.State())

	stats := l.Stats()
	assert.Equal(t, int64(100), stats.TotalLogged+stats.TotalFailed)
	assert.Equal(t, int64(100), stats.TotalLogged)

	reopened := openLogger(t, cfg)
	n, err := reopened.CountLogs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(100), n)
}

func TestLoggingAfterShutdown(t *testing.T) {
	sink := &recordingSink{}
	l, err := Open(context.Background(), mockConfig("closed"), testOptions(WithSink(sink))...)
	require.NoError(t, err)

	l.Info("before")
	require.NoError(t, l.Shutdown())
	require.NoError(t, l.Shutdown())

	l.Info("after")
	stats := l.Stats()
	assert.Equal(t, int64(1), stats.TotalLogged)
	assert.Equal(t, int64(1), stats.TotalFailed)
	require.Len(t, sink.Errors(), 1)
	assert.Contains(t, sink.Errors()[0], "after")

	_, err = l.GetAllLogs(context.Background())
	assert.ErrorIs(t, err, ErrShutdown)
	assert.ErrorIs(t, l.Flush(), ErrShutdown)
	assert.ErrorIs(t, l.SetBatchSize(5), ErrShutdown)
}

func TestWriteFailureGoesToSink(t *testing.T) {
	sink := &recordingSink{}
	l := openLogger(t, mockConfig("failing"), WithSink(sink))
	b := l.Backend().(*mock.Backend)
	b.FailOn("INSERT", errors.New("disk full"))

	l.Info("lost")
	stats := l.Stats()
	assert.Zero(t, stats.TotalLogged)
	assert.Equal(t, int64(1), stats.TotalFailed)
	require.Len(t, sink.Errors(), 1)
	assert.Contains(t, sink.Errors()[0], "disk full")
	assert.Contains(t, b.LastError(), "disk full")

	b.ClearFailures()
	l.Info("saved")
	assert.Equal(t, int64(1), l.Stats().TotalLogged)

	l.ResetStats()
	assert.Equal(t, Stats{}, l.Stats())
}

func TestSetBatchSize(t *testing.T) {
	ctx := context.Background()

	onMock := openLogger(t, mockConfig("nobatch"))
	assert.ErrorIs(t, onMock.SetBatchSize(5), logerr.ErrUnsupported)
	assert.ErrorIs(t, onMock.SetBatchSize(-1), logerr.ErrInvalidArgument)
	assert.Zero(t, onMock.BatchSize())

	l := openLogger(t, sqliteConfig(t, "resize"))
	assert.ErrorIs(t, l.SetBatchSize(1001), logerr.ErrInvalidArgument)

	require.NoError(t, l.SetBatchSize(10))
	assert.Equal(t, 10, l.BatchSize())
	assert.True(t, l.Config().UseBatch)
	for i := range 4 {
		l.Infof("m%d", i)
	}
	n, err := l.CountLogs(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	require.NoError(t, l.SetBatchSize(3))
	n, err = l.CountLogs(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)

	l.Info("buffered")
	require.NoError(t, l.SetBatchSize(0))
	assert.Zero(t, l.BatchSize())
	l.Info("direct")
	n, err = l.CountLogs(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(6), n)
}

func TestStream(t *testing.T) {
	cfg := mockConfig("stream")
	cfg.MinLogLevel = model.Info
	l := openLogger(t, cfg)

	s := l.WarningStream()
	s.Print("loaded ", 3).Printf(" rows in %dms", 12)
	fmt.Fprint(s, "!")
	s.Commit()
	s.Commit()

	quiet := l.DebugStream()
	quiet.Print("never")
	require.NoError(t, quiet.Close())

	entries, err := l.GetAllLogs(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "loaded 3 rows in 12ms!", entries[0].Message)
	assert.Equal(t, "WARNING", entries[0].Level)
	assert.Equal(t, "dblog.TestStream", entries[0].Function)
}

func TestSourceFromConfig(t *testing.T) {
	ctx := context.Background()
	cfg := mockConfig("sourced")
	cfg.SourceName = "billing"
	l := openLogger(t, cfg)

	src, ok := l.Source()
	require.True(t, ok)
	assert.Equal(t, int64(1), src.ID)
	assert.Equal(t, "billing", src.Name)
	assert.NotEmpty(t, src.UUID)

	l.Info("charged")
	entries, err := l.GetLogsBySourceUUID(ctx, src.UUID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "billing", entries[0].SourceName)
	assert.Equal(t, src.UUID, entries[0].SourceUUID)

	missing, err := l.GetLogsBySourceUUID(ctx, "00000000-0000-4000-8000-000000000000")
	require.NoError(t, err)
	assert.Empty(t, missing)

	sources, err := l.GetSources(ctx)
	require.NoError(t, err)
	assert.Len(t, sources, 1)
}

func TestSourceIsReusedAcrossLoggers(t *testing.T) {
	ctx := context.Background()
	const id = "8c7f9a2e-6a51-4d2a-9a53-0d7a1b2c3d4e"
	cfg := sqliteConfig(t, "shared")
	cfg.SourceUUID, cfg.SourceName = id, "api"

	first, err := Open(ctx, cfg, testOptions()...)
	require.NoError(t, err)
	first.Info("one")
	require.NoError(t, first.Shutdown())

	second := openLogger(t, cfg)
	src, ok := second.Source()
	require.True(t, ok)
	assert.Equal(t, int64(1), src.ID)
	second.Info("two")

	entries, err := second.GetLogsBySourceID(ctx, src.ID)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestSourceOptionOverridesConfig(t *testing.T) {
	cfg := mockConfig("override")
	cfg.SourceName = "from-config"
	given := model.SourceInfo{UUID: "1b4e28ba-2fa1-4d2a-9a53-0d7a1b2c3d4e", Name: "from-code"}
	l := openLogger(t, cfg, WithSource(given))

	src, ok := l.Source()
	require.True(t, ok)
	assert.Equal(t, given.UUID, src.UUID)
	assert.Equal(t, "from-code", src.Name)
}

func TestNoSourceReads(t *testing.T) {
	l := openLogger(t, mockConfig("plain"))
	_, ok := l.Source()
	assert.False(t, ok)

	sources, err := l.GetSources(context.Background())
	require.NoError(t, err)
	assert.Empty(t, sources)
	entries, err := l.GetLogsBySourceID(context.Background(), 1)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestClearDeleteAndExport(t *testing.T) {
	ctx := context.Background()
	l := openLogger(t, sqliteConfig(t, "maint"))
	l.Info("a")
	l.Error("b")

	path := filepath.Join(t.TempDir(), "out.csv")
	require.NoError(t, l.Export(ctx, path, export.CSV, export.Options{IncludeFieldNames: true}))

	removed, err := l.DeleteLogsBefore(ctx, time.Unix(0, 0))
	require.NoError(t, err)
	assert.Zero(t, removed)

	require.NoError(t, l.ClearLogs(ctx))
	n, err := l.CountLogs(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestNewRejectsMismatchedBackend(t *testing.T) {
	b := mock.New(config.Default("x", model.Mock).BackendOptions())
	require.NoError(t, b.Connect(context.Background(), ""))

	_, err := New(context.Background(), sqliteConfig(t, "x"), b, testOptions()...)
	assert.ErrorIs(t, err, logerr.ErrConfig)
	assert.False(t, b.IsConnected())

	_, err = Open(context.Background(), config.Default("", model.Mock), testOptions()...)
	assert.ErrorIs(t, err, logerr.ErrConfig)
}

func TestStateString(t *testing.T) {
	for s, want := range map[State]string{
		StateConstructed:  "constructed",
		StateRunning:      "running",
		StateShuttingDown: "shutting_down",
		StateDestroyed:    "destroyed",
	} {
		assert.Equal(t, want, s.String())
	}
	assert.True(t, strings.HasPrefix(State(9).String(), "state("))
}
