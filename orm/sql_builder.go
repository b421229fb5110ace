package orm

import (
	"fmt"
	"strings"

	"github.com/yadunandan004/dblogger/logerr"
	"github.com/yadunandan004/dblogger/model"
)

// QueryBuilder emits dialect-correct SQL text. It never executes anything.
type QueryBuilder struct {
	d Dialect
}

func NewQueryBuilder(t model.DatabaseType) (*QueryBuilder, error) {
	d, err := For(t)
	if err != nil {
		return nil, err
	}
	if !d.IsSQL() {
		return nil, logerr.Errorf(logerr.KindUnsupported, "query_builder", "%s has no SQL query language", t)
	}
	return &QueryBuilder{d: d}, nil
}

func (q *QueryBuilder) Dialect() Dialect {
	return q.d
}

func (q *QueryBuilder) quoteAll(names []string) []string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = q.d.QuoteIdent(n)
	}
	return out
}

func (q *QueryBuilder) CreateTable(t *Table) (string, error) {
	defs := make([]string, 0, len(t.Fields)+len(t.ForeignKeys))
	for _, f := range t.Fields {
		typ, err := q.d.ColumnType(f.Type, f.IsAutoIncrement)
		if err != nil {
			return "", err
		}
		parts := []string{q.d.QuoteIdent(f.Name), typ}
		if f.IsPrimary {
			parts = append(parts, "PRIMARY KEY")
		}
		if f.IsAutoIncrement {
			if kw := q.d.AutoIncrementKeyword(); kw != "" {
				parts = append(parts, kw)
			}
		}
		if !f.IsPrimary && !f.IsNullable {
			parts = append(parts, "NOT NULL")
		}
		if f.IsUnique && !f.IsPrimary {
			parts = append(parts, "UNIQUE")
		}
		if f.Default != "" {
			parts = append(parts, "DEFAULT "+f.Default)
		}
		defs = append(defs, strings.Join(parts, " "))
	}
	for _, fk := range t.ForeignKeys {
		defs = append(defs, fmt.Sprintf("FOREIGN KEY (%s) REFERENCES %s (%s)",
			q.d.QuoteIdent(fk.Field), q.d.QuoteIdent(fk.RefTable), q.d.QuoteIdent(fk.RefField)))
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", q.d.QuoteIdent(t.Name), strings.Join(defs, ", ")), nil
}

// MySQLIndexPrefix is the key length used when MySQL indexes a TEXT column.
const MySQLIndexPrefix = 255

// CreateIndex returns "" for dialects without index DDL. MySQL has no
// IF NOT EXISTS for indexes, so callers check IndexExists first.
func (q *QueryBuilder) CreateIndex(t *Table, idx Index) string {
	cols := q.quoteAll(idx.Columns)
	switch q.d.Type() {
	case model.MySQL:
		for i, c := range idx.Columns {
			if f, ok := t.Field(c); ok && f.Type == Text {
				cols[i] = fmt.Sprintf("%s(%d)", cols[i], MySQLIndexPrefix)
			}
		}
		return fmt.Sprintf("ALTER TABLE %s ADD INDEX %s (%s)", q.d.QuoteIdent(t.Name), q.d.QuoteIdent(idx.Name), strings.Join(cols, ", "))
	case model.SQLite, model.PostgreSQL:
		return fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s (%s)", q.d.QuoteIdent(idx.Name), q.d.QuoteIdent(t.Name), strings.Join(cols, ", "))
	default:
		return ""
	}
}

func (q *QueryBuilder) placeholders(from, n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = q.d.Placeholder(from + i)
	}
	return out
}

func (q *QueryBuilder) Insert(table string, columns []string) string {
	if len(columns) == 0 {
		return ""
	}
	return fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s)",
		q.d.QuoteIdent(table),
		strings.Join(q.quoteAll(columns), ", "),
		strings.Join(q.placeholders(1, len(columns)), ", "),
	)
}

// BatchInsert numbers placeholders row-major: row i, column j gets i*len(columns)+j+1.
func (q *QueryBuilder) BatchInsert(table string, columns []string, rows int) string {
	if len(columns) == 0 || rows <= 0 {
		return ""
	}
	valueSets := make([]string, rows)
	for i := 0; i < rows; i++ {
		valueSets[i] = "(" + strings.Join(q.placeholders(i*len(columns)+1, len(columns)), ", ") + ")"
	}
	return fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES %s",
		q.d.QuoteIdent(table),
		strings.Join(q.quoteAll(columns), ", "),
		strings.Join(valueSets, ", "),
	)
}

// SelectQuery describes a SELECT. Limit and Offset below 1 are unset.
type SelectQuery struct {
	Table   string
	Columns []string
	Filters []model.Filter
	OrderBy []string
	Desc    bool
	Limit   int
	Offset  int
}

func NewSelect(table string, columns ...string) SelectQuery {
	return SelectQuery{Table: table, Columns: columns, Limit: -1, Offset: -1}
}

func (s SelectQuery) Where(filters ...model.Filter) SelectQuery {
	s.Filters = append(append([]model.Filter(nil), s.Filters...), filters...)
	return s
}

func (s SelectQuery) Order(columns ...string) SelectQuery {
	s.OrderBy = columns
	return s
}

func (s SelectQuery) Page(limit, offset int) SelectQuery {
	s.Limit, s.Offset = limit, offset
	return s
}

func (q *QueryBuilder) Select(s SelectQuery) (string, []any, error) {
	cols := "*"
	if len(s.Columns) > 0 {
		cols = strings.Join(q.quoteAll(s.Columns), ", ")
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "SELECT %s FROM %s", cols, q.d.QuoteIdent(s.Table))

	where, args, err := q.Where(s.Filters, 1)
	if err != nil {
		return "", nil, err
	}
	sb.WriteString(where)

	if len(s.OrderBy) > 0 {
		sb.WriteString(" ORDER BY ")
		sb.WriteString(strings.Join(q.quoteAll(s.OrderBy), ", "))
		if s.Desc {
			sb.WriteString(" DESC")
		}
	}
	if s.Limit > 0 {
		fmt.Fprintf(&sb, " LIMIT %d", s.Limit)
		if s.Offset > 0 {
			fmt.Fprintf(&sb, " OFFSET %d", s.Offset)
		}
	}
	return sb.String(), args, nil
}

func (q *QueryBuilder) Count(table string, filters []model.Filter) (string, []any, error) {
	where, args, err := q.Where(filters, 1)
	if err != nil {
		return "", nil, err
	}
	return fmt.Sprintf("SELECT COUNT(*) AS n FROM %s%s", q.d.QuoteIdent(table), where), args, nil
}

// Update binds the SET columns to placeholders 1..len(columns); the returned
// args are the filter values only and follow the SET values.
func (q *QueryBuilder) Update(table string, columns []string, filters []model.Filter) (string, []any, error) {
	if len(columns) == 0 {
		return "", nil, logerr.Errorf(logerr.KindInvalidArgument, "update", "no columns to update")
	}
	pairs := make([]string, len(columns))
	for i, c := range columns {
		pairs[i] = q.d.QuoteIdent(c) + " = " + q.d.Placeholder(i+1)
	}
	where, args, err := q.Where(filters, len(columns)+1)
	if err != nil {
		return "", nil, err
	}
	return fmt.Sprintf("UPDATE %s SET %s%s", q.d.QuoteIdent(table), strings.Join(pairs, ", "), where), args, nil
}

func (q *QueryBuilder) Delete(table string, filters []model.Filter) (string, []any, error) {
	where, args, err := q.Where(filters, 1)
	if err != nil {
		return "", nil, err
	}
	return fmt.Sprintf("DELETE FROM %s%s", q.d.QuoteIdent(table), where), args, nil
}
