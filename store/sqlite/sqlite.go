package sqlite

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/yadunandan004/dblogger/logerr"
	"github.com/yadunandan004/dblogger/model"
	"github.com/yadunandan004/dblogger/store/backend"
)

// Backend is a file-backed SQLite database opened through gorm's pure-Go
// driver; statements run on the underlying *sql.DB.
type Backend struct {
	*backend.SQLBackend
	opts backend.Options
	path string
}

var _ backend.Backend = (*Backend)(nil)

func New(opts backend.Options) *Backend {
	return &Backend{SQLBackend: backend.NewSQLBackend(model.SQLite), opts: opts}
}

// PathFromConn accepts a bare path or a "Data Source=<path>" / "file:<path>" string.
func PathFromConn(connStr string) string {
	s := strings.TrimSpace(connStr)
	if i := strings.Index(strings.ToLower(s), "data source="); i >= 0 {
		s = s[i+len("data source="):]
		if j := strings.IndexByte(s, ';'); j >= 0 {
			s = s[:j]
		}
	}
	s = strings.TrimPrefix(s, "file:")
	if j := strings.IndexByte(s, '?'); j >= 0 {
		s = s[:j]
	}
	return strings.TrimSpace(s)
}

func (b *Backend) Connect(ctx context.Context, connStr string) error {
	path := PathFromConn(connStr)
	if path == "" {
		return b.Fail(logerr.KindConnect, "connect", errors.New("empty sqlite database path"))
	}
	if b.IsConnected() {
		if err := b.Detach(); err != nil {
			return err
		}
	}
	if err := b.open(ctx, path); err != nil {
		// one reconnect attempt before surfacing the failure
		if retryErr := b.open(ctx, path); retryErr != nil {
			return b.Fail(logerr.KindConnect, "connect", retryErr)
		}
	}
	b.path = path
	return nil
}

func (b *Backend) open(ctx context.Context, path string) error {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return fmt.Errorf("create database directory: %w", err)
		}
	}
	gdb, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return fmt.Errorf("open sqlite database %s: %w", path, err)
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		return fmt.Errorf("get sqlite handle: %w", err)
	}
	b.Attach(sqlDB)

	if path != ":memory:" {
		if _, err := b.Execute(ctx, "PRAGMA journal_mode=WAL"); err != nil {
			_ = b.Detach()
			return err
		}
	}
	if _, err := b.Execute(ctx, "PRAGMA busy_timeout=5000"); err != nil {
		_ = b.Detach()
		return err
	}
	return nil
}

func (b *Backend) Disconnect() error {
	return b.Detach()
}

func (b *Backend) Path() string {
	return b.path
}

// DropDatabaseIfExists disconnects when the file is the open database, then
// removes it together with its WAL and shared-memory files.
func (b *Backend) DropDatabaseIfExists(_ context.Context, connStr string) error {
	if !b.opts.AllowDrop {
		return b.Fail(logerr.KindUnsupported, "drop_database", errors.New("dropping databases is not permitted for this backend"))
	}
	path := PathFromConn(connStr)
	if path == "" {
		path = b.path
	}
	if path == "" || path == ":memory:" {
		return nil
	}
	if b.IsConnected() && filepath.Clean(path) == filepath.Clean(b.path) {
		if err := b.Detach(); err != nil {
			return err
		}
	}
	for _, p := range []string{path, path + "-wal", path + "-shm"} {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			return b.Fail(logerr.KindDriver, "drop_database", err)
		}
	}
	return nil
}
