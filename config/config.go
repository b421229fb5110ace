package config

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/yadunandan004/dblogger/errsink"
	"github.com/yadunandan004/dblogger/logerr"
	"github.com/yadunandan004/dblogger/model"
	"github.com/yadunandan004/dblogger/orm"
	"github.com/yadunandan004/dblogger/store"
	"github.com/yadunandan004/dblogger/store/backend"
	"github.com/yadunandan004/dblogger/store/postgres"
)

const (
	EnvPrefix = "DBLOG_"

	DefaultNumThreads      = 4
	DefaultBatchSize       = 100
	DefaultTable           = "logs"
	DefaultQueryTimeout    = 30 * time.Second
	DefaultReadWaitTimeout = 5 * time.Second
)

// dangerous fragments are matched case-insensitively against every string value.
var dangerous = []string{"--", ";", "/*", "xp_", "union ", "drop ", " or "}

// LoggerConfig describes one named logger and the database it writes to.
type LoggerConfig struct {
	Name          string         `yaml:"name" ini:"name"`
	SyncMode      bool           `yaml:"syncMode" ini:"syncMode"`
	NumThreads    int            `yaml:"numThreads" ini:"numThreads"`
	OnlyFileNames bool           `yaml:"onlyFileNames" ini:"onlyFileNames"`
	MinLogLevel   model.LogLevel `yaml:"minLogLevel" ini:"minLogLevel"`
	UseBatch      bool           `yaml:"useBatch" ini:"useBatch"`
	BatchSize     int            `yaml:"batchSize" ini:"batchSize"`

	DatabaseType  model.DatabaseType `yaml:"databaseType" ini:"databaseType"`
	DatabaseName  string             `yaml:"databaseName" ini:"databaseName"`
	DatabaseTable string             `yaml:"databaseTable" ini:"databaseTable"`
	DatabaseHost  string             `yaml:"databaseHost" ini:"databaseHost"`
	DatabasePort  int                `yaml:"databasePort" ini:"databasePort"`
	DatabaseUser  string             `yaml:"databaseUser" ini:"databaseUser"`
	DatabasePass  string             `yaml:"databasePass" ini:"databasePass"`
	SSLMode       string             `yaml:"sslMode" ini:"sslMode"`

	SourceUUID string `yaml:"sourceUuid" ini:"sourceUuid"`
	SourceName string `yaml:"sourceName" ini:"sourceName"`
	PassKey    string `yaml:"passKey" ini:"passKey"`

	AllowDrop        bool          `yaml:"allowDrop" ini:"allowDrop"`
	CreateDatabase   bool          `yaml:"createDatabase" ini:"createDatabase"`
	ErrorLogPath     string        `yaml:"errorLogPath" ini:"errorLogPath"`
	ErrorLogMaxBytes int64         `yaml:"errorLogMaxBytes" ini:"errorLogMaxBytes"`
	QueryTimeout     time.Duration `yaml:"queryTimeout" ini:"queryTimeout"`
	ReadWaitTimeout  time.Duration `yaml:"readWaitTimeout" ini:"readWaitTimeout"`
}

// Default returns a config with every optional key at its default value.
func Default(name string, t model.DatabaseType) LoggerConfig {
	return LoggerConfig{
		Name:             name,
		SyncMode:         true,
		NumThreads:       DefaultNumThreads,
		MinLogLevel:      model.Trace,
		BatchSize:        DefaultBatchSize,
		DatabaseType:     t,
		DatabaseTable:    DefaultTable,
		SSLMode:          "disable",
		CreateDatabase:   true,
		ErrorLogPath:     errsink.DefaultPath,
		ErrorLogMaxBytes: errsink.DefaultMaxBytes,
		QueryTimeout:     DefaultQueryTimeout,
		ReadWaitTimeout:  DefaultReadWaitTimeout,
	}
}

// HasSource reports whether the logger should register itself in the sources table.
func (c LoggerConfig) HasSource() bool {
	return c.SourceUUID != "" || c.SourceName != ""
}

func (c LoggerConfig) Source() model.SourceInfo {
	return model.SourceInfo{UUID: strings.ToLower(c.SourceUUID), Name: c.SourceName}
}

func (c LoggerConfig) BackendOptions() backend.Options {
	return backend.Options{AllowDrop: c.AllowDrop, CreateDatabase: c.CreateDatabase}
}

func (c LoggerConfig) Table() string {
	if c.DatabaseTable == "" {
		return DefaultTable
	}
	return c.DatabaseTable
}

func (c LoggerConfig) stringValues() map[string]string {
	return map[string]string{
		"name":          c.Name,
		"databaseName":  c.DatabaseName,
		"databaseTable": c.DatabaseTable,
		"databaseHost":  c.DatabaseHost,
		"databaseUser":  c.DatabaseUser,
		"databasePass":  c.DatabasePass,
		"sslMode":       c.SSLMode,
		"sourceUuid":    c.SourceUUID,
		"sourceName":    c.SourceName,
		"passKey":       c.PassKey,
		"errorLogPath":  c.ErrorLogPath,
	}
}

func configErr(format string, args ...any) error {
	return logerr.Errorf(logerr.KindConfig, "config.validate", format, args...)
}

// Validate checks ranges, required keys per database type and dangerous substrings.
func (c LoggerConfig) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return configErr("logger name is required")
	}
	if !store.Supported(c.DatabaseType) {
		return logerr.Errorf(logerr.KindUnsupported, "config.validate", "database type %q is not supported by this build", c.DatabaseType)
	}
	d, err := orm.For(c.DatabaseType)
	if err != nil {
		return err
	}

	for key, value := range c.stringValues() {
		lower := strings.ToLower(value)
		for _, frag := range dangerous {
			if strings.Contains(lower, frag) {
				return configErr("%s contains forbidden sequence %q", key, strings.TrimSpace(frag))
			}
		}
	}

	if c.NumThreads < 1 || c.NumThreads > 256 {
		return configErr("numThreads %d outside [1, 256]", c.NumThreads)
	}
	if c.BatchSize < 1 {
		return configErr("batchSize must be positive, got %d", c.BatchSize)
	}
	if maxBatch, err := d.MaxBatch(); err == nil && c.BatchSize > maxBatch {
		return configErr("batchSize %d exceeds the %s limit of %d", c.BatchSize, c.DatabaseType, maxBatch)
	}
	if !c.MinLogLevel.Valid() {
		return configErr("minLogLevel %d is not a known level", int(c.MinLogLevel))
	}
	if c.DatabasePort < 0 || c.DatabasePort > 65535 {
		return configErr("databasePort %d outside [0, 65535]", c.DatabasePort)
	}
	if c.ErrorLogMaxBytes < 0 {
		return configErr("errorLogMaxBytes must not be negative")
	}
	if c.QueryTimeout < 0 || c.ReadWaitTimeout < 0 {
		return configErr("timeouts must not be negative")
	}

	switch c.DatabaseType {
	case model.SQLite:
		if c.DatabaseName == "" {
			return configErr("databaseName (file path) is required for sqlite")
		}
	case model.MySQL, model.PostgreSQL, model.MongoDB:
		for key, value := range map[string]string{"databaseHost": c.DatabaseHost, "databaseName": c.DatabaseName, "databaseUser": c.DatabaseUser} {
			if value == "" {
				return configErr("%s is required for %s", key, c.DatabaseType)
			}
		}
	}

	if c.DatabasePass != "" && c.PassKey == "" {
		return configErr("databasePass is set but passKey is missing")
	}
	if c.SourceUUID != "" {
		if c.SourceName == "" {
			return configErr("sourceName is required when sourceUuid is set")
		}
		if err := c.Source().Validate(); err != nil {
			return configErr("invalid source: %v", err)
		}
	}
	return nil
}

func (c LoggerConfig) port(d orm.Dialect) int {
	if c.DatabasePort > 0 {
		return c.DatabasePort
	}
	p, _ := d.DefaultPort()
	return p
}

// Password decrypts databasePass with passKey; empty when no password is set.
func (c LoggerConfig) Password() (string, error) {
	if c.DatabasePass == "" {
		return "", nil
	}
	return DecryptPassword(c.DatabasePass, c.PassKey)
}

// ConnectionString renders the backend connection string for the configured type.
func ConnectionString(c LoggerConfig) (string, error) {
	d, err := orm.For(c.DatabaseType)
	if err != nil {
		return "", err
	}
	pass, err := c.Password()
	if err != nil {
		return "", err
	}

	switch c.DatabaseType {
	case model.Mock:
		return "", nil
	case model.SQLite:
		return c.DatabaseName, nil
	case model.MySQL:
		if strings.Contains(pass, ";") {
			return "", configErr("mysql password must not contain ';'")
		}
		return fmt.Sprintf("Host=%s;Port=%d;User=%s;Pass=%s;Database=%s",
			c.DatabaseHost, c.port(d), c.DatabaseUser, pass, c.DatabaseName), nil
	case model.PostgreSQL:
		sslMode := c.SSLMode
		if sslMode == "" {
			sslMode = "disable"
		}
		return postgres.BuildDSN(&postgres.DatabaseConfig{
			Host:     c.DatabaseHost,
			Port:     c.port(d),
			User:     c.DatabaseUser,
			Password: pass,
			DBName:   c.DatabaseName,
			SSLMode:  sslMode,
		}), nil
	case model.MongoDB:
		u := url.URL{
			Scheme: "mongodb",
			Host:   net.JoinHostPort(c.DatabaseHost, strconv.Itoa(c.port(d))),
			Path:   "/" + c.DatabaseName,
		}
		if c.DatabaseUser != "" {
			u.User = url.UserPassword(c.DatabaseUser, pass)
		}
		return u.String(), nil
	}
	return "", logerr.Errorf(logerr.KindUnsupported, "config.connection_string", "no connection string form for %q", c.DatabaseType)
}
