package repository

import (
	"context"
	"strconv"

	"github.com/yadunandan004/dblogger/model"
	"github.com/yadunandan004/dblogger/orm"
	"github.com/yadunandan004/dblogger/store/backend"
)

// LogReader turns filter queries into LogEntry and SourceInfo values.
type LogReader struct {
	b          backend.Backend
	qb         *orm.QueryBuilder
	table      string
	withSource bool
	columns    []string
}

func NewLogReader(b backend.Backend, table string, withSource bool) (*LogReader, error) {
	qb, err := orm.NewQueryBuilder(b.DatabaseType())
	if err != nil {
		return nil, err
	}
	if table == "" {
		table = orm.DefaultLogsTable
	}
	cols := []string{orm.ColID}
	if withSource {
		cols = append(cols, orm.ColSourceID)
	}
	cols = append(cols, orm.ColTimestamp, orm.ColLevel, orm.ColMessage, orm.ColFunction, orm.ColFile, orm.ColLine, orm.ColThreadID)
	return &LogReader{b: b, qb: qb, table: table, withSource: withSource, columns: cols}, nil
}

// GetLogsByFilters ANDs the filters and orders by timestamp then id.
// An unknown operator or column fails before any SQL reaches the backend.
func (r *LogReader) GetLogsByFilters(ctx context.Context, filters []model.Filter, limit, offset int) ([]model.LogEntry, error) {
	if err := model.ValidateFilters(filters); err != nil {
		return nil, err
	}
	q := orm.NewSelect(r.table, r.columns...).
		Where(filters...).
		Order(orm.ColTimestamp, orm.ColID).
		Page(limit, offset)
	stmt, args, err := r.qb.Select(q)
	if err != nil {
		return nil, err
	}
	rows, err := r.b.Query(ctx, stmt, args...)
	if err != nil {
		return nil, err
	}

	entries := make([]model.LogEntry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, toEntry(row))
	}
	if r.withSource {
		if err := r.attachSources(ctx, entries); err != nil {
			return nil, err
		}
	}
	return entries, nil
}

func (r *LogReader) CountLogs(ctx context.Context, filters []model.Filter) (int64, error) {
	if err := model.ValidateFilters(filters); err != nil {
		return 0, err
	}
	stmt, args, err := r.qb.Count(r.table, filters)
	if err != nil {
		return 0, err
	}
	rows, err := r.b.Query(ctx, stmt, args...)
	if err != nil || len(rows) == 0 || len(rows[0]) == 0 {
		return 0, err
	}
	return strconv.ParseInt(rows[0][0].Value, 10, 64)
}

func (r *LogReader) attachSources(ctx context.Context, entries []model.LogEntry) error {
	cache := map[int64]model.SourceInfo{}
	for i := range entries {
		id := entries[i].SourceID
		if id <= 0 {
			continue
		}
		src, ok := cache[id]
		if !ok {
			found, exists, err := r.GetSourceByID(ctx, id)
			if err != nil {
				return err
			}
			if exists {
				src = found
			}
			cache[id] = src
		}
		entries[i].SourceUUID = src.UUID
		entries[i].SourceName = src.Name
	}
	return nil
}

func toEntry(row backend.Row) model.LogEntry {
	id, _ := strconv.ParseInt(row.Get(orm.ColID), 10, 64)
	line, _ := strconv.ParseInt(row.Get(orm.ColLine), 10, 32)
	var sourceID int64
	if v, ok := row.Lookup(orm.ColSourceID); ok {
		sourceID, _ = strconv.ParseInt(v, 10, 64)
	}
	return model.LogEntry{
		ID:        id,
		Timestamp: row.Get(orm.ColTimestamp),
		Level:     row.Get(orm.ColLevel),
		Message:   row.Get(orm.ColMessage),
		Function:  row.Get(orm.ColFunction),
		File:      row.Get(orm.ColFile),
		Line:      int32(line),
		ThreadID:  row.Get(orm.ColThreadID),
		SourceID:  sourceID,
	}
}

func (r *LogReader) sourceBy(ctx context.Context, f model.Filter) (model.SourceInfo, bool, error) {
	sources, err := r.selectSources(ctx, []model.Filter{f}, 1)
	if err != nil || len(sources) == 0 {
		return model.SourceInfo{}, false, err
	}
	return sources[0], true, nil
}

func (r *LogReader) GetSourceByID(ctx context.Context, id int64) (model.SourceInfo, bool, error) {
	return r.sourceBy(ctx, model.Eq(orm.ColID, id))
}

func (r *LogReader) GetSourceByUUID(ctx context.Context, uuid string) (model.SourceInfo, bool, error) {
	return r.sourceBy(ctx, model.Eq(orm.ColUUID, uuid))
}

func (r *LogReader) GetSourceByName(ctx context.Context, name string) (model.SourceInfo, bool, error) {
	return r.sourceBy(ctx, model.Eq(orm.ColName, name))
}

func (r *LogReader) GetAllSources(ctx context.Context) ([]model.SourceInfo, error) {
	return r.selectSources(ctx, nil, -1)
}

func (r *LogReader) selectSources(ctx context.Context, filters []model.Filter, limit int) ([]model.SourceInfo, error) {
	q := orm.NewSelect(orm.DefaultSourcesTable, orm.ColID, orm.ColUUID, orm.ColName).
		Where(filters...).
		Order(orm.ColID).
		Page(limit, -1)
	stmt, args, err := r.qb.Select(q)
	if err != nil {
		return nil, err
	}
	rows, err := r.b.Query(ctx, stmt, args...)
	if err != nil {
		return nil, err
	}
	out := make([]model.SourceInfo, 0, len(rows))
	for _, row := range rows {
		id, _ := strconv.ParseInt(row.Get(orm.ColID), 10, 64)
		out = append(out, model.SourceInfo{ID: id, UUID: row.Get(orm.ColUUID), Name: row.Get(orm.ColName)})
	}
	return out, nil
}
