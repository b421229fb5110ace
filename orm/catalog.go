package orm

import (
	"fmt"

	"github.com/yadunandan004/dblogger/model"
)

// TableExists returns a query that yields one row when the table exists,
// or "" when the dialect keeps no catalog.
func (q *QueryBuilder) TableExists(table string) (string, []any) {
	switch q.d.Type() {
	case model.SQLite:
		return "SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?", []any{table}
	case model.MySQL:
		return "SELECT table_name FROM information_schema.tables WHERE table_schema = DATABASE() AND table_name = ?", []any{table}
	case model.PostgreSQL:
		return "SELECT tablename FROM pg_catalog.pg_tables WHERE schemaname = current_schema() AND tablename = $1", []any{table}
	default:
		return "", nil
	}
}

func (q *QueryBuilder) IndexExists(table, index string) (string, []any) {
	switch q.d.Type() {
	case model.SQLite:
		return "SELECT name FROM sqlite_master WHERE type = 'index' AND tbl_name = ? AND name = ?", []any{table, index}
	case model.MySQL:
		return "SELECT index_name FROM information_schema.statistics WHERE table_schema = DATABASE() AND table_name = ? AND index_name = ?", []any{table, index}
	case model.PostgreSQL:
		return "SELECT indexname FROM pg_indexes WHERE schemaname = current_schema() AND tablename = $1 AND indexname = $2", []any{table, index}
	default:
		return "", nil
	}
}

// LastInsertID reads the id generated by the previous insert on the same session.
func (q *QueryBuilder) LastInsertID(table, pkColumn string) string {
	switch q.d.Type() {
	case model.SQLite:
		return "SELECT last_insert_rowid() AS id"
	case model.PostgreSQL:
		return fmt.Sprintf("SELECT currval(pg_get_serial_sequence(%s, %s)) AS id",
			q.d.QuoteValue(q.d.QuoteIdent(table)), q.d.QuoteValue(pkColumn))
	default:
		return "SELECT LAST_INSERT_ID() AS id"
	}
}
