package repository

import (
	"context"
	"strconv"

	"github.com/yadunandan004/dblogger/logerr"
	"github.com/yadunandan004/dblogger/model"
	"github.com/yadunandan004/dblogger/orm"
	"github.com/yadunandan004/dblogger/store/backend"
)

// LogWriter owns the DDL and inserts for one log table.
type LogWriter struct {
	b          backend.Backend
	qb         *orm.QueryBuilder
	logs       *orm.Table
	sources    *orm.Table
	withSource bool
	insertCols []string
}

func NewLogWriter(b backend.Backend, table string, withSource bool) (*LogWriter, error) {
	qb, err := orm.NewQueryBuilder(b.DatabaseType())
	if err != nil {
		return nil, err
	}
	if table == "" {
		table = orm.DefaultLogsTable
	}
	logs, err := orm.LogsTable(table, withSource)
	if err != nil {
		return nil, err
	}
	sources, err := orm.SourcesTable()
	if err != nil {
		return nil, err
	}
	return &LogWriter{
		b:          b,
		qb:         qb,
		logs:       logs,
		sources:    sources,
		withSource: withSource,
		insertCols: logs.InsertColumns(),
	}, nil
}

func (w *LogWriter) Dialect() orm.Dialect {
	return w.qb.Dialect()
}

// HasSources reports whether the logs table carries a source_id column.
func (w *LogWriter) HasSources() bool {
	return w.withSource
}

func (w *LogWriter) TableName() string {
	return w.logs.Name
}

// hasDDL is false for the in-memory dialect, which creates tables on first insert.
func (w *LogWriter) hasDDL() bool {
	return w.qb.Dialect().Type() != model.Mock
}

func (w *LogWriter) createTable(ctx context.Context, t *orm.Table) error {
	if !w.hasDDL() {
		return nil
	}
	stmt, err := w.qb.CreateTable(t)
	if err != nil {
		return err
	}
	_, err = w.b.Execute(ctx, stmt)
	return err
}

func (w *LogWriter) CreateLogsTable(ctx context.Context) error {
	return w.createTable(ctx, w.logs)
}

func (w *LogWriter) CreateSourcesTable(ctx context.Context) error {
	return w.createTable(ctx, w.sources)
}

// CreateIndexes is idempotent; MySQL checks the catalog before each ALTER TABLE.
func (w *LogWriter) CreateIndexes(ctx context.Context) error {
	if !w.hasDDL() {
		return nil
	}
	for _, idx := range w.logs.Indexes {
		if w.qb.Dialect().Type() == model.MySQL {
			lookup, args := w.qb.IndexExists(w.logs.Name, idx.Name)
			rows, err := w.b.Query(ctx, lookup, args...)
			if err != nil {
				return err
			}
			if len(rows) > 0 {
				continue
			}
		}
		if stmt := w.qb.CreateIndex(w.logs, idx); stmt != "" {
			if _, err := w.b.Execute(ctx, stmt); err != nil {
				return err
			}
		}
	}
	return nil
}

func (w *LogWriter) entryArgs(e model.LogEntry) []any {
	args := make([]any, 0, len(w.insertCols))
	if w.withSource {
		if e.SourceID > 0 {
			args = append(args, e.SourceID)
		} else {
			args = append(args, nil)
		}
	}
	return append(args, e.Timestamp, e.Level, e.Message, e.Function, e.File, e.Line, e.ThreadID)
}

func (w *LogWriter) WriteLog(ctx context.Context, e model.LogEntry) error {
	_, err := w.b.Execute(ctx, w.qb.Insert(w.logs.Name, w.insertCols), w.entryArgs(e)...)
	return err
}

// rowsPerStatement bounds a chunk by the dialect batch cap and parameter limit.
func (w *LogWriter) rowsPerStatement(n int) int {
	d := w.qb.Dialect()
	rows := n
	if maxBatch, err := d.MaxBatch(); err == nil && maxBatch < rows {
		rows = maxBatch
	}
	if maxParams := d.MaxParams(); maxParams > 0 && rows*len(w.insertCols) > maxParams {
		rows = maxParams / len(w.insertCols)
	}
	if !d.SupportsBatch() {
		rows = 1
	}
	return rows
}

// WriteLogBatch persists all entries or none. Several statements share one transaction.
func (w *LogWriter) WriteLogBatch(ctx context.Context, entries []model.LogEntry) error {
	if len(entries) == 0 {
		return nil
	}
	per := w.rowsPerStatement(len(entries))
	if per >= len(entries) {
		return w.insertChunk(ctx, entries)
	}

	if err := w.b.BeginTransaction(ctx); err != nil {
		return err
	}
	for start := 0; start < len(entries); start += per {
		end := min(start+per, len(entries))
		if err := w.insertChunk(ctx, entries[start:end]); err != nil {
			_ = w.b.RollbackTransaction()
			return err
		}
	}
	return w.b.CommitTransaction()
}

func (w *LogWriter) insertChunk(ctx context.Context, entries []model.LogEntry) error {
	if len(entries) == 1 {
		return w.WriteLog(ctx, entries[0])
	}
	args := make([]any, 0, len(entries)*len(w.insertCols))
	for _, e := range entries {
		args = append(args, w.entryArgs(e)...)
	}
	_, err := w.b.Execute(ctx, w.qb.BatchInsert(w.logs.Name, w.insertCols, len(entries)), args...)
	return err
}

func (w *LogWriter) ClearLogs(ctx context.Context) error {
	stmt, args, err := w.qb.Delete(w.logs.Name, nil)
	if err != nil {
		return err
	}
	_, err = w.b.Execute(ctx, stmt, args...)
	return err
}

func (w *LogWriter) ClearSources(ctx context.Context) error {
	stmt, args, err := w.qb.Delete(w.sources.Name, nil)
	if err != nil {
		return err
	}
	_, err = w.b.Execute(ctx, stmt, args...)
	return err
}

// DeleteLogsBefore removes rows older than ts and reports how many went.
func (w *LogWriter) DeleteLogsBefore(ctx context.Context, ts string) (int64, error) {
	stmt, args, err := w.qb.Delete(w.logs.Name, []model.Filter{model.Where(model.FieldTimestamp, model.OpLt, ts)})
	if err != nil {
		return 0, err
	}
	return w.b.Execute(ctx, stmt, args...)
}

// AddSource inserts a source row and returns its id, or -1 on failure.
func (w *LogWriter) AddSource(ctx context.Context, name, uuid string) (int64, error) {
	if err := (model.SourceInfo{Name: name, UUID: uuid}).Validate(); err != nil {
		return -1, err
	}
	cols := []string{orm.ColUUID, orm.ColName}
	if _, err := w.b.Execute(ctx, w.qb.Insert(w.sources.Name, cols), uuid, name); err != nil {
		return -1, err
	}
	rows, err := w.b.Query(ctx, w.qb.LastInsertID(w.sources.Name, orm.ColID))
	if err != nil {
		return -1, err
	}
	if len(rows) == 0 || len(rows[0]) == 0 {
		return -1, logerr.Errorf(logerr.KindDriver, "add_source", "no id returned for source %q", name)
	}
	id, err := strconv.ParseInt(rows[0][0].Value, 10, 64)
	if err != nil || id <= 0 {
		return -1, logerr.Errorf(logerr.KindDriver, "add_source", "unexpected source id %q", rows[0][0].Value)
	}
	return id, nil
}
