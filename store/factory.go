package store

import (
	"context"

	"github.com/yadunandan004/dblogger/logerr"
	"github.com/yadunandan004/dblogger/model"
	"github.com/yadunandan004/dblogger/store/backend"
	"github.com/yadunandan004/dblogger/store/mock"
	"github.com/yadunandan004/dblogger/store/mysql"
	"github.com/yadunandan004/dblogger/store/postgres"
	"github.com/yadunandan004/dblogger/store/sqlite"
)

type constructor func(opts backend.Options) backend.Backend

var constructors = map[model.DatabaseType]constructor{
	model.Mock:       func(o backend.Options) backend.Backend { return mock.New(o) },
	model.SQLite:     func(o backend.Options) backend.Backend { return sqlite.New(o) },
	model.MySQL:      func(o backend.Options) backend.Backend { return mysql.New(o) },
	model.PostgreSQL: func(o backend.Options) backend.Backend { return postgres.New(o) },
}

// NewBackend returns an unconnected backend for t.
func NewBackend(t model.DatabaseType, opts backend.Options) (backend.Backend, error) {
	ctor, ok := constructors[t]
	if !ok {
		return nil, logerr.Errorf(logerr.KindUnsupported, "new_backend", "no backend available for database type %q", t)
	}
	return ctor(opts), nil
}

// Open constructs the backend for t and connects it with connStr.
func Open(ctx context.Context, t model.DatabaseType, connStr string, opts backend.Options) (backend.Backend, error) {
	b, err := NewBackend(t, opts)
	if err != nil {
		return nil, err
	}
	if err := b.Connect(ctx, connStr); err != nil {
		return nil, err
	}
	return b, nil
}

// Supported reports whether this build has a backend for t.
func Supported(t model.DatabaseType) bool {
	_, ok := constructors[t]
	return ok
}
