package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"github.com/yadunandan004/dblogger/logerr"
	"github.com/yadunandan004/dblogger/model"
	"github.com/yadunandan004/dblogger/store/backend"
)

const maintenanceDB = "template1"

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
	// Extra keeps unrecognised keys in their original order
	Extra [][2]string
}

// ParseDSN reads the space separated key=value form; values may be single-quoted.
func ParseDSN(dsn string) (*DatabaseConfig, error) {
	cfg := &DatabaseConfig{Port: 5432, SSLMode: "disable"}
	s := strings.TrimSpace(dsn)
	for len(s) > 0 {
		eq := strings.IndexByte(s, '=')
		if eq <= 0 {
			return nil, logerr.Errorf(logerr.KindConfig, "parse_dsn", "malformed postgres connection string near %q", s)
		}
		key := strings.TrimSpace(s[:eq])
		s = strings.TrimLeft(s[eq+1:], " ")

		var value string
		if strings.HasPrefix(s, "'") {
			var sb strings.Builder
			i := 1
			for ; i < len(s); i++ {
				if s[i] == '\\' && i+1 < len(s) {
					i++
					sb.WriteByte(s[i])
					continue
				}
				if s[i] == '\'' {
					break
				}
				sb.WriteByte(s[i])
			}
			if i >= len(s) {
				return nil, logerr.Errorf(logerr.KindConfig, "parse_dsn", "unterminated quote for %q", key)
			}
			value, s = sb.String(), s[i+1:]
		} else if sp := strings.IndexByte(s, ' '); sp >= 0 {
			value, s = s[:sp], s[sp+1:]
		} else {
			value, s = s, ""
		}
		s = strings.TrimLeft(s, " ")

		switch strings.ToLower(key) {
		case "host":
			cfg.Host = value
		case "port":
			port, err := strconv.Atoi(value)
			if err != nil || port < 1 || port > 65535 {
				return nil, logerr.Errorf(logerr.KindConfig, "parse_dsn", "invalid postgres port %q", value)
			}
			cfg.Port = port
		case "user":
			cfg.User = value
		case "password":
			cfg.Password = value
		case "dbname":
			cfg.DBName = value
		case "sslmode":
			cfg.SSLMode = value
		default:
			cfg.Extra = append(cfg.Extra, [2]string{key, value})
		}
	}
	if cfg.Host == "" {
		return nil, logerr.Errorf(logerr.KindConfig, "parse_dsn", "postgres connection string has no host")
	}
	return cfg, nil
}

func quoteDSNValue(v string) string {
	if v != "" && !strings.ContainsAny(v, ` '\`) {
		return v
	}
	v = strings.ReplaceAll(v, `\`, `\\`)
	return "'" + strings.ReplaceAll(v, "'", `\'`) + "'"
}

func BuildDSN(cfg *DatabaseConfig) string {
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		quoteDSNValue(cfg.Host),
		cfg.Port,
		quoteDSNValue(cfg.User),
		quoteDSNValue(cfg.Password),
		quoteDSNValue(cfg.DBName),
		quoteDSNValue(cfg.SSLMode),
	)
	for _, kv := range cfg.Extra {
		dsn += fmt.Sprintf(" %s=%s", kv[0], quoteDSNValue(kv[1]))
	}
	return dsn
}

func (c *DatabaseConfig) withDB(name string) *DatabaseConfig {
	cp := *c
	cp.DBName = name
	return &cp
}

func SetupConnectionFromDSN(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db.SetConnMaxIdleTime(time.Minute * 5)
	return db, nil
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// Backend is a PostgreSQL session over lib/pq.
type Backend struct {
	*backend.SQLBackend
	opts backend.Options
	cfg  *DatabaseConfig
}

var _ backend.Backend = (*Backend)(nil)

func New(opts backend.Options) *Backend {
	return &Backend{SQLBackend: backend.NewSQLBackend(model.PostgreSQL), opts: opts}
}

func (b *Backend) Connect(ctx context.Context, connStr string) error {
	cfg, err := ParseDSN(connStr)
	if err != nil {
		return b.Fail(logerr.KindConfig, "connect", err)
	}
	if cfg.DBName == "" {
		return b.Fail(logerr.KindConfig, "connect", errors.New("postgres connection string has no dbname"))
	}
	if b.IsConnected() {
		if err := b.Detach(); err != nil {
			return err
		}
	}

	if b.opts.CreateDatabase {
		if err := ensureDatabase(ctx, cfg); err != nil {
			return b.Fail(logerr.KindConnect, "create_database", err)
		}
	}

	db, err := SetupConnectionFromDSN(ctx, BuildDSN(cfg))
	if err != nil {
		return b.Fail(logerr.KindConnect, "connect", err)
	}
	b.Attach(db)
	b.cfg = cfg
	return nil
}

// ensureDatabase connects to template1 and creates cfg.DBName when missing.
func ensureDatabase(ctx context.Context, cfg *DatabaseConfig) error {
	admin, err := SetupConnectionFromDSN(ctx, BuildDSN(cfg.withDB(maintenanceDB)))
	if err != nil {
		return err
	}
	defer admin.Close()

	var exists int
	err = admin.QueryRowContext(ctx, "SELECT 1 FROM pg_database WHERE datname = $1", cfg.DBName).Scan(&exists)
	if err == nil {
		return nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return err
	}
	_, err = admin.ExecContext(ctx, "CREATE DATABASE "+quoteIdent(cfg.DBName))
	return err
}

// Disconnect rolls back an open transaction before closing.
func (b *Backend) Disconnect() error {
	return b.Detach()
}

func (b *Backend) DropDatabaseIfExists(ctx context.Context, connStr string) error {
	if !b.opts.AllowDrop {
		return b.Fail(logerr.KindUnsupported, "drop_database", errors.New("dropping databases is not permitted for this backend"))
	}
	cfg, err := ParseDSN(connStr)
	if err != nil {
		return b.Fail(logerr.KindConfig, "drop_database", err)
	}
	if cfg.DBName == "" || cfg.DBName == maintenanceDB {
		return b.Fail(logerr.KindConfig, "drop_database", fmt.Errorf("refusing to drop database %q", cfg.DBName))
	}
	if b.IsConnected() && b.cfg != nil && b.cfg.DBName == cfg.DBName {
		if err := b.Detach(); err != nil {
			return err
		}
	}

	admin, err := SetupConnectionFromDSN(ctx, BuildDSN(cfg.withDB(maintenanceDB)))
	if err != nil {
		return b.Fail(logerr.KindConnect, "drop_database", err)
	}
	defer admin.Close()
	if _, err := admin.ExecContext(ctx, "DROP DATABASE IF EXISTS "+quoteIdent(cfg.DBName)); err != nil {
		return b.Fail(logerr.KindDriver, "drop_database", err)
	}
	return nil
}
