package backend

import (
	"context"

	"github.com/yadunandan004/dblogger/model"
)

// Backend is a connected database session. Implementations retain the
// last driver error verbatim for LastError.
type Backend interface {
	Connect(ctx context.Context, connStr string) error
	Disconnect() error
	IsConnected() bool

	// Execute runs a statement and returns the affected row count.
	Execute(ctx context.Context, query string, params ...any) (int64, error)
	Query(ctx context.Context, query string, params ...any) ([]Row, error)

	BeginTransaction(ctx context.Context) error
	CommitTransaction() error
	RollbackTransaction() error

	// DropDatabaseIfExists requires Options.AllowDrop.
	DropDatabaseIfExists(ctx context.Context, connStr string) error

	LastError() string
	DatabaseType() model.DatabaseType
}

// Options are run-time permissions and behaviours fixed at construction.
type Options struct {
	AllowDrop      bool
	CreateDatabase bool
}

// Column is one value of a result row; every value is rendered as text.
type Column struct {
	Name  string
	Value string
	Null  bool
}

// Row preserves the column order of the result set.
type Row []Column

func (r Row) Lookup(name string) (string, bool) {
	for _, c := range r {
		if c.Name == name {
			return c.Value, !c.Null
		}
	}
	return "", false
}

// Get returns "" for absent or NULL columns.
func (r Row) Get(name string) string {
	v, _ := r.Lookup(name)
	return v
}

func (r Row) Names() []string {
	names := make([]string, len(r))
	for i, c := range r {
		names[i] = c.Name
	}
	return names
}
