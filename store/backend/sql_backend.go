package backend

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/yadunandan004/dblogger/logerr"
	"github.com/yadunandan004/dblogger/model"
)

var errNotConnected = errors.New("not connected")

// SQLBackend implements the statement half of Backend over database/sql.
// Driver packages embed it and supply Connect, Disconnect and DropDatabaseIfExists.
type SQLBackend struct {
	mu      sync.Mutex
	db      *sql.DB
	tx      *sql.Tx
	lastErr string
	dbType  model.DatabaseType
}

func NewSQLBackend(t model.DatabaseType) *SQLBackend {
	return &SQLBackend{dbType: t}
}

// Attach installs an opened pool pinned to a single connection so session
// state such as last insert ids stays on the connection that wrote.
func (b *SQLBackend) Attach(db *sql.DB) {
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	b.mu.Lock()
	defer b.mu.Unlock()
	b.db = db
}

// Detach rolls back any open transaction and closes the pool.
func (b *SQLBackend) Detach() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.tx != nil {
		_ = b.tx.Rollback()
		b.tx = nil
	}
	if b.db == nil {
		return nil
	}
	err := b.db.Close()
	b.db = nil
	if err != nil {
		return b.failLocked(logerr.KindConnect, "disconnect", err)
	}
	return nil
}

func (b *SQLBackend) DB() *sql.DB {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.db
}

func (b *SQLBackend) IsConnected() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.db != nil
}

func (b *SQLBackend) DatabaseType() model.DatabaseType {
	return b.dbType
}

func (b *SQLBackend) LastError() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastErr
}

// Fail records err as the last error and wraps it.
func (b *SQLBackend) Fail(kind logerr.Kind, op string, err error) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failLocked(kind, op, err)
}

func (b *SQLBackend) failLocked(kind logerr.Kind, op string, err error) error {
	b.lastErr = err.Error()
	return logerr.New(kind, op, err)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (b *SQLBackend) conn() (execer, error) {
	if b.tx != nil {
		return b.tx, nil
	}
	if b.db == nil {
		return nil, errNotConnected
	}
	return b.db, nil
}

func (b *SQLBackend) Execute(ctx context.Context, query string, params ...any) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	c, err := b.conn()
	if err != nil {
		return 0, b.failLocked(logerr.KindConnect, "execute", err)
	}
	res, err := c.ExecContext(ctx, query, params...)
	if err != nil {
		return 0, b.failLocked(classify(ctx, err), "execute", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, nil
	}
	return affected, nil
}

func (b *SQLBackend) Query(ctx context.Context, query string, params ...any) ([]Row, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	c, err := b.conn()
	if err != nil {
		return nil, b.failLocked(logerr.KindConnect, "query", err)
	}
	rows, err := c.QueryContext(ctx, query, params...)
	if err != nil {
		return nil, b.failLocked(classify(ctx, err), "query", err)
	}
	defer rows.Close()

	out, err := ScanRows(rows)
	if err != nil {
		return nil, b.failLocked(classify(ctx, err), "query", err)
	}
	return out, nil
}

func (b *SQLBackend) BeginTransaction(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.tx != nil {
		return b.failLocked(logerr.KindLogic, "begin", errors.New("transaction already in progress"))
	}
	if b.db == nil {
		return b.failLocked(logerr.KindConnect, "begin", errNotConnected)
	}
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return b.failLocked(classify(ctx, err), "begin", err)
	}
	b.tx = tx
	return nil
}

func (b *SQLBackend) CommitTransaction() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.tx == nil {
		return b.failLocked(logerr.KindLogic, "commit", errors.New("no transaction in progress"))
	}
	err := b.tx.Commit()
	b.tx = nil
	if err != nil {
		return b.failLocked(logerr.KindDriver, "commit", err)
	}
	return nil
}

func (b *SQLBackend) RollbackTransaction() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.tx == nil {
		return b.failLocked(logerr.KindLogic, "rollback", errors.New("no transaction in progress"))
	}
	err := b.tx.Rollback()
	b.tx = nil
	if err != nil {
		return b.failLocked(logerr.KindDriver, "rollback", err)
	}
	return nil
}

func classify(ctx context.Context, err error) logerr.Kind {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return logerr.KindTimeout
	}
	if errors.Is(err, sql.ErrConnDone) {
		return logerr.KindConnect
	}
	return logerr.KindDriver
}

// ScanRows renders every column as text in result-set order.
func ScanRows(rows *sql.Rows) ([]Row, error) {
	names, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	var out []Row
	for rows.Next() {
		values := make([]any, len(names))
		ptrs := make([]any, len(names))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := make(Row, len(names))
		for i, name := range names {
			text, isNull := toText(values[i])
			row[i] = Column{Name: name, Value: text, Null: isNull}
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func toText(v any) (string, bool) {
	switch x := v.(type) {
	case nil:
		return "", true
	case string:
		return x, false
	case []byte:
		return string(x), false
	case int64:
		return strconv.FormatInt(x, 10), false
	case int32:
		return strconv.FormatInt(int64(x), 10), false
	case int:
		return strconv.Itoa(x), false
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), false
	case bool:
		if x {
			return "1", false
		}
		return "0", false
	case time.Time:
		return x.Format(model.TimestampLayout), false
	default:
		return fmt.Sprint(x), false
	}
}
