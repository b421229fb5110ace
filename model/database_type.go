package model

import (
	"strings"

	"github.com/yadunandan004/dblogger/logerr"
)

type DatabaseType string

const (
	Mock       DatabaseType = "mock"
	SQLite     DatabaseType = "sqlite"
	MySQL      DatabaseType = "mysql"
	PostgreSQL DatabaseType = "postgresql"
	MongoDB    DatabaseType = "mongodb"
)

func ParseDatabaseType(s string) (DatabaseType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "mock":
		return Mock, nil
	case "sqlite", "sqlite3":
		return SQLite, nil
	case "mysql", "mariadb":
		return MySQL, nil
	case "postgresql", "postgres", "pg":
		return PostgreSQL, nil
	case "mongodb", "mongo":
		return MongoDB, nil
	}
	return "", logerr.Errorf(logerr.KindUnsupported, "parse_database_type", "unknown database type %q", s)
}

func (t DatabaseType) String() string {
	return string(t)
}

func (t DatabaseType) MarshalText() ([]byte, error) {
	return []byte(t), nil
}

func (t *DatabaseType) UnmarshalText(text []byte) error {
	parsed, err := ParseDatabaseType(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}
