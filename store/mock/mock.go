package mock

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/yadunandan004/dblogger/logerr"
	"github.com/yadunandan004/dblogger/model"
	"github.com/yadunandan004/dblogger/store/backend"
)

// Statement is one captured call to Execute or Query.
type Statement struct {
	SQL    string
	Params []any
}

type failRule struct {
	contains string
	err      error
}

// Backend runs statements against a private in-memory SQLite database.
// The mock dialect issues no DDL, so a table and any missing columns are
// created on the first INSERT that names them. Every statement is captured.
type Backend struct {
	*backend.SQLBackend
	opts backend.Options

	mu         sync.Mutex
	statements []Statement
	failures   []failRule
}

var _ backend.Backend = (*Backend)(nil)

var (
	insertPrefix    = regexp.MustCompile(`(?is)^\s*INSERT\s+INTO\s+`)
	bareIdent       = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*`)
	lastInsertID    = regexp.MustCompile(`(?i)LAST_INSERT_ID\(\)`)
	countSelect     = regexp.MustCompile(`(?is)^\s*SELECT\s+COUNT\(\*\)(?:\s+AS\s+("(?:[^"]|"")*"|[A-Za-z_][A-Za-z0-9_]*))?\s+FROM\s`)
	errNotConnected = errors.New("not connected")
)

func New(opts backend.Options) *Backend {
	return &Backend{SQLBackend: backend.NewSQLBackend(model.Mock), opts: opts}
}

// Connect opens a fresh database; the connection string is ignored.
func (m *Backend) Connect(_ context.Context, _ string) error {
	if m.IsConnected() {
		if err := m.Detach(); err != nil {
			return err
		}
	}
	gdb, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return m.Fail(logerr.KindConnect, "connect", fmt.Errorf("open in-memory database: %w", err))
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		return m.Fail(logerr.KindConnect, "connect", fmt.Errorf("get in-memory handle: %w", err))
	}
	m.Attach(sqlDB)
	// the data lives only as long as the single pooled connection
	sqlDB.SetConnMaxLifetime(0)
	return nil
}

// Disconnect rolls back an open transaction and discards the data.
func (m *Backend) Disconnect() error {
	return m.Detach()
}

func (m *Backend) capture(op, query string, params []any) error {
	m.statements = append(m.statements, Statement{SQL: query, Params: append([]any(nil), params...)})
	if !m.IsConnected() {
		return m.Fail(logerr.KindConnect, op, errNotConnected)
	}
	for _, f := range m.failures {
		if strings.Contains(query, f.contains) {
			return m.Fail(logerr.KindDriver, op, f.err)
		}
	}
	return nil
}

func (m *Backend) Execute(ctx context.Context, query string, params ...any) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.capture("execute", query, params); err != nil {
		return 0, err
	}
	if table, cols, ok := insertTarget(query); ok {
		if err := m.ensureTable(ctx, table, cols, params); err != nil {
			return 0, err
		}
	}
	n, err := m.SQLBackend.Execute(ctx, query, params...)
	if missingTable(err) {
		return 0, nil
	}
	return n, err
}

func (m *Backend) Query(ctx context.Context, query string, params ...any) ([]backend.Row, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.capture("query", query, params); err != nil {
		return nil, err
	}
	rows, err := m.SQLBackend.Query(ctx, lastInsertID.ReplaceAllString(query, "last_insert_rowid()"), params...)
	if !missingTable(err) {
		return rows, err
	}
	// an absent table reads as empty
	if match := countSelect.FindStringSubmatch(query); match != nil {
		name := "COUNT(*)"
		if match[1] != "" {
			name, _, _ = readIdent(match[1])
		}
		return []backend.Row{{{Name: name, Value: "0"}}}, nil
	}
	return nil, nil
}

func (m *Backend) DropDatabaseIfExists(ctx context.Context, _ string) error {
	if !m.opts.AllowDrop {
		return m.Fail(logerr.KindUnsupported, "drop_database", errors.New("dropping databases is not permitted for this backend"))
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	rows, err := m.SQLBackend.Query(ctx, "SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%'")
	if err != nil {
		return err
	}
	for _, row := range rows {
		if _, err := m.SQLBackend.Execute(ctx, "DROP TABLE IF EXISTS "+quote(row.Get("name"))); err != nil {
			return err
		}
	}
	return nil
}

// ensureTable creates table, or adds the columns it lacks. Column affinity
// follows the first row's parameter types so filters compare like the real
// dialects do.
func (m *Backend) ensureTable(ctx context.Context, table string, cols []string, params []any) error {
	rows, err := m.SQLBackend.Query(ctx, "PRAGMA table_info("+quote(table)+")")
	if err != nil {
		return err
	}
	have := make(map[string]bool, len(rows))
	for _, row := range rows {
		have[row.Get("name")] = true
	}

	typeOf := func(i int) string {
		if len(params) < len(cols) {
			return ""
		}
		return affinity(params[i])
	}

	if len(have) == 0 {
		defs := []string{"id INTEGER PRIMARY KEY AUTOINCREMENT"}
		for i, c := range cols {
			if c != "id" {
				defs = append(defs, strings.TrimSpace(quote(c)+" "+typeOf(i)))
			}
		}
		_, err := m.SQLBackend.Execute(ctx, fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", quote(table), strings.Join(defs, ", ")))
		return err
	}
	for i, c := range cols {
		if have[c] {
			continue
		}
		stmt := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", quote(table), quote(c), typeOf(i))
		if _, err := m.SQLBackend.Execute(ctx, strings.TrimSpace(stmt)); err != nil {
			return err
		}
		have[c] = true
	}
	return nil
}

func affinity(v any) string {
	switch v.(type) {
	case nil:
		return "NUMERIC"
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, bool:
		return "INTEGER"
	case float32, float64:
		return "REAL"
	default:
		return "TEXT"
	}
}

func missingTable(err error) bool {
	return err != nil && strings.Contains(err.Error(), "no such table")
}

func quote(ident string) string {
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}

// insertTarget extracts the table and column list of an INSERT statement.
func insertTarget(query string) (string, []string, bool) {
	loc := insertPrefix.FindStringIndex(query)
	if loc == nil {
		return "", nil, false
	}
	table, rest, ok := readIdent(query[loc[1]:])
	if !ok {
		return "", nil, false
	}
	rest = strings.TrimSpace(rest)
	if !strings.HasPrefix(rest, "(") {
		return "", nil, false
	}
	rest = rest[1:]
	var cols []string
	for {
		col, r, ok := readIdent(strings.TrimSpace(rest))
		if !ok {
			return "", nil, false
		}
		cols = append(cols, col)
		rest = strings.TrimSpace(r)
		switch {
		case strings.HasPrefix(rest, ","):
			rest = rest[1:]
		case strings.HasPrefix(rest, ")"):
			return table, cols, true
		default:
			return "", nil, false
		}
	}
}

// readIdent reads a bare or double-quoted identifier from the start of s.
func readIdent(s string) (string, string, bool) {
	if !strings.HasPrefix(s, `"`) {
		id := bareIdent.FindString(s)
		return id, s[len(id):], id != ""
	}
	var b strings.Builder
	for i := 1; i < len(s); i++ {
		if s[i] != '"' {
			b.WriteByte(s[i])
			continue
		}
		if i+1 < len(s) && s[i+1] == '"' {
			b.WriteByte('"')
			i++
			continue
		}
		return b.String(), s[i+1:], true
	}
	return "", s, false
}

// Statements returns a copy of every captured statement in execution order.
func (m *Backend) Statements() []Statement {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Statement(nil), m.statements...)
}

func (m *Backend) ResetStatements() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statements = nil
}

// FailOn makes every statement containing substr fail with err.
func (m *Backend) FailOn(substr string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures = append(m.failures, failRule{contains: substr, err: err})
}

func (m *Backend) ClearFailures() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures = nil
}

// RowCount reports the rows currently held by a table.
func (m *Backend) RowCount(table string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	rows, err := m.SQLBackend.Query(context.Background(), "SELECT COUNT(*) AS n FROM "+quote(table))
	if err != nil || len(rows) == 0 {
		return 0
	}
	var n int
	_, _ = fmt.Sscan(rows[0].Get("n"), &n)
	return n
}
