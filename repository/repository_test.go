package repository

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yadunandan004/dblogger/logerr"
	"github.com/yadunandan004/dblogger/model"
	"github.com/yadunandan004/dblogger/store/backend"
	"github.com/yadunandan004/dblogger/store/mock"
	"github.com/yadunandan004/dblogger/store/sqlite"
)

func entry(level model.LogLevel, msg, ts string) model.LogEntry {
	return model.LogEntry{Timestamp: ts, Level: level.String(), Message: msg, Function: "fn", File: "main.go", Line: 7, ThreadID: "1"}
}

func newMock(t *testing.T) *mock.Backend {
	t.Helper()
	m := mock.New(backend.Options{})
	require.NoError(t, m.Connect(context.Background(), ""))
	return m
}

func newSQLite(t *testing.T) *sqlite.Backend {
	t.Helper()
	b := sqlite.New(backend.Options{})
	require.NoError(t, b.Connect(context.Background(), filepath.Join(t.TempDir(), "logs.db")))
	t.Cleanup(func() { b.Disconnect() })
	return b
}

func TestWriteAndReadOnMock(t *testing.T) {
	ctx := context.Background()
	m := newMock(t)
	w, err := NewLogWriter(m, "logs", false)
	require.NoError(t, err)
	r, err := NewLogReader(m, "logs", false)
	require.NoError(t, err)

	require.NoError(t, w.CreateLogsTable(ctx))
	require.NoError(t, w.CreateIndexes(ctx))
	assert.Empty(t, m.Statements(), "no DDL on the mock dialect")

	require.NoError(t, w.WriteLog(ctx, entry(model.Info, "hello", "2024-01-01 10:00:00")))
	require.NoError(t, w.WriteLog(ctx, entry(model.Error, "boom", "2024-01-01 09:00:00")))

	all, err := r.GetLogsByFilters(ctx, nil, -1, -1)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "boom", all[0].Message, "ordered by timestamp")
	assert.Equal(t, int64(2), all[0].ID)
	assert.Equal(t, int32(7), all[1].Line)

	errs, err := r.GetLogsByFilters(ctx, []model.Filter{model.Eq(model.FieldLevel, "ERROR")}, -1, -1)
	require.NoError(t, err)
	require.Len(t, errs, 1)
	assert.Equal(t, "boom", errs[0].Message)

	n, err := r.CountLogs(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestUnknownOperatorIssuesNoSQL(t *testing.T) {
	ctx := context.Background()
	m := newMock(t)
	r, err := NewLogReader(m, "logs", false)
	require.NoError(t, err)

	for _, f := range []model.Filter{
		model.Where(model.FieldLevel, "; DROP TABLE logs", "x"),
		model.Where(model.FieldLevel, "", "x"),
		model.Where("message", model.OpEq, "x"),
	} {
		_, err := r.GetLogsByFilters(ctx, []model.Filter{f}, -1, -1)
		assert.ErrorIs(t, err, logerr.ErrInvalidArgument)
	}
	assert.Empty(t, m.Statements())
}

func TestHostileTableNameIsQuoted(t *testing.T) {
	ctx := context.Background()
	m := newMock(t)
	hostile := `" or 1=1 --`
	w, err := NewLogWriter(m, hostile, false)
	require.NoError(t, err)
	r, err := NewLogReader(m, hostile, false)
	require.NoError(t, err)

	require.NoError(t, w.WriteLog(ctx, entry(model.Info, "x", "2024-01-01 00:00:00")))
	got, err := r.GetLogsByFilters(ctx, nil, -1, -1)
	require.NoError(t, err)
	require.Len(t, got, 1)

	for _, st := range m.Statements() {
		assert.Contains(t, st.SQL, `""" or 1=1 --"`)
	}
	assert.Equal(t, 1, m.RowCount(hostile))
}

func TestSQLiteSchemaIsIdempotent(t *testing.T) {
	ctx := context.Background()
	b := newSQLite(t)
	w, err := NewLogWriter(b, "logs", true)
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		require.NoError(t, w.CreateSourcesTable(ctx))
		require.NoError(t, w.CreateLogsTable(ctx))
		require.NoError(t, w.CreateIndexes(ctx))
	}

	rows, err := b.Query(ctx, "SELECT name FROM sqlite_master WHERE type = 'index' AND tbl_name = ? AND name LIKE 'idx_%'", "logs")
	require.NoError(t, err)
	assert.Len(t, rows, 6)
}

func TestSQLiteSourcesAndBatch(t *testing.T) {
	ctx := context.Background()
	b := newSQLite(t)
	w, err := NewLogWriter(b, "logs", true)
	require.NoError(t, err)
	r, err := NewLogReader(b, "logs", true)
	require.NoError(t, err)
	require.NoError(t, w.CreateSourcesTable(ctx))
	require.NoError(t, w.CreateLogsTable(ctx))

	id := uuid.NewString()
	sourceID, err := w.AddSource(ctx, "billing", id)
	require.NoError(t, err)
	assert.Equal(t, int64(1), sourceID)

	bad, err := w.AddSource(ctx, "dup", "not-a-uuid")
	assert.Equal(t, int64(-1), bad)
	assert.ErrorIs(t, err, logerr.ErrInvalidArgument)

	dup, err := w.AddSource(ctx, "again", id)
	assert.Equal(t, int64(-1), dup)
	assert.ErrorIs(t, err, logerr.ErrDriver)

	batch := make([]model.LogEntry, 2500)
	for i := range batch {
		batch[i] = entry(model.Debug, fmt.Sprintf("m%04d", i), "2024-05-05 12:00:00")
		batch[i].SourceID = sourceID
	}
	require.NoError(t, w.WriteLogBatch(ctx, batch))

	n, err := r.CountLogs(ctx, []model.Filter{model.Eq(model.FieldSourceID, sourceID)})
	require.NoError(t, err)
	assert.Equal(t, int64(2500), n)

	page, err := r.GetLogsByFilters(ctx, nil, 2, 10)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "m0010", page[0].Message)
	assert.Equal(t, "billing", page[0].SourceName)
	assert.Equal(t, id, page[0].SourceUUID)

	src, ok, err := r.GetSourceByUUID(ctx, id)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, model.SourceInfo{ID: 1, UUID: id, Name: "billing"}, src)

	_, ok, err = r.GetSourceByName(ctx, "nobody")
	require.NoError(t, err)
	assert.False(t, ok)

	all, err := r.GetAllSources(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestClearAndRetention(t *testing.T) {
	ctx := context.Background()
	b := newSQLite(t)
	w, err := NewLogWriter(b, "app_logs", false)
	require.NoError(t, err)
	r, err := NewLogReader(b, "app_logs", false)
	require.NoError(t, err)
	require.NoError(t, w.CreateLogsTable(ctx))

	require.NoError(t, w.WriteLogBatch(ctx, []model.LogEntry{
		entry(model.Info, "old", "2020-01-01 00:00:00"),
		entry(model.Info, "new", "2024-01-01 00:00:00"),
	}))

	removed, err := w.DeleteLogsBefore(ctx, "2023-01-01 00:00:00")
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	require.NoError(t, w.ClearLogs(ctx))
	left, err := r.GetLogsByFilters(ctx, nil, -1, -1)
	require.NoError(t, err)
	assert.Empty(t, left)
}
