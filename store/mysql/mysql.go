package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	driver "github.com/go-sql-driver/mysql"

	"github.com/yadunandan004/dblogger/logerr"
	"github.com/yadunandan004/dblogger/model"
	"github.com/yadunandan004/dblogger/store/backend"
)

const defaultPort = 3306

type ConnectionConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
}

// ParseConnString reads "Host=h;Port=p;User=u;Pass=s;Database=d". Keys are case-insensitive.
func ParseConnString(connStr string) (ConnectionConfig, error) {
	cfg := ConnectionConfig{Port: defaultPort}
	for _, part := range strings.Split(connStr, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		key, value, ok := strings.Cut(part, "=")
		if !ok {
			return cfg, logerr.Errorf(logerr.KindConfig, "parse_conn", "malformed mysql connection segment %q", part)
		}
		value = strings.TrimSpace(value)
		switch strings.ToLower(strings.TrimSpace(key)) {
		case "host", "server":
			cfg.Host = value
		case "port":
			port, err := strconv.Atoi(value)
			if err != nil || port < 1 || port > 65535 {
				return cfg, logerr.Errorf(logerr.KindConfig, "parse_conn", "invalid mysql port %q", value)
			}
			cfg.Port = port
		case "user", "uid":
			cfg.User = value
		case "pass", "password", "pwd":
			cfg.Password = value
		case "database", "db":
			cfg.Database = value
		}
	}
	if cfg.Host == "" {
		return cfg, logerr.Errorf(logerr.KindConfig, "parse_conn", "mysql connection string has no Host")
	}
	return cfg, nil
}

// DSN renders the go-sql-driver form; dbName overrides the configured database.
func (c ConnectionConfig) DSN(dbName string) string {
	mc := driver.NewConfig()
	mc.User = c.User
	mc.Passwd = c.Password
	mc.Net = "tcp"
	mc.Addr = net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
	mc.DBName = dbName
	mc.Timeout = 10 * time.Second
	mc.Params = map[string]string{"charset": "utf8mb4"}
	return mc.FormatDSN()
}

// Backend talks to a MySQL server using server-side prepared statements.
type Backend struct {
	*backend.SQLBackend
	opts backend.Options
	cfg  ConnectionConfig
}

var _ backend.Backend = (*Backend)(nil)

func New(opts backend.Options) *Backend {
	return &Backend{SQLBackend: backend.NewSQLBackend(model.MySQL), opts: opts}
}

func quoteIdent(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

func (b *Backend) Connect(ctx context.Context, connStr string) error {
	cfg, err := ParseConnString(connStr)
	if err != nil {
		return b.Fail(logerr.KindConfig, "connect", err)
	}
	if cfg.Database == "" {
		return b.Fail(logerr.KindConfig, "connect", errors.New("mysql connection string has no Database"))
	}
	if b.IsConnected() {
		if err := b.Detach(); err != nil {
			return err
		}
	}

	if b.opts.CreateDatabase {
		if err := b.createDatabase(ctx, cfg); err != nil {
			return b.Fail(logerr.KindConnect, "create_database", err)
		}
	}

	db, err := openAndPing(ctx, cfg.DSN(cfg.Database))
	if err != nil {
		return b.Fail(logerr.KindConnect, "connect", err)
	}
	b.Attach(db)
	b.cfg = cfg
	return nil
}

func openAndPing(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return db, nil
}

func (b *Backend) createDatabase(ctx context.Context, cfg ConnectionConfig) error {
	admin, err := openAndPing(ctx, cfg.DSN(""))
	if err != nil {
		return err
	}
	defer admin.Close()
	_, err = admin.ExecContext(ctx, "CREATE DATABASE IF NOT EXISTS "+quoteIdent(cfg.Database))
	return err
}

func (b *Backend) Disconnect() error {
	return b.Detach()
}

func (b *Backend) DropDatabaseIfExists(ctx context.Context, connStr string) error {
	if !b.opts.AllowDrop {
		return b.Fail(logerr.KindUnsupported, "drop_database", errors.New("dropping databases is not permitted for this backend"))
	}
	cfg, err := ParseConnString(connStr)
	if err != nil {
		return b.Fail(logerr.KindConfig, "drop_database", err)
	}
	if cfg.Database == "" {
		return b.Fail(logerr.KindConfig, "drop_database", errors.New("mysql connection string has no Database"))
	}
	if b.IsConnected() && b.cfg.Database == cfg.Database {
		if err := b.Detach(); err != nil {
			return err
		}
	}
	admin, err := openAndPing(ctx, cfg.DSN(""))
	if err != nil {
		return b.Fail(logerr.KindConnect, "drop_database", err)
	}
	defer admin.Close()
	if _, err := admin.ExecContext(ctx, "DROP DATABASE IF EXISTS "+quoteIdent(cfg.Database)); err != nil {
		return b.Fail(logerr.KindDriver, "drop_database", err)
	}
	return nil
}
