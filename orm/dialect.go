package orm

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/yadunandan004/dblogger/logerr"
	"github.com/yadunandan004/dblogger/model"
)

type FieldType int

const (
	Bool FieldType = iota
	Int32
	Int64
	String
	Text
	DateTime
	UUID
)

func (t FieldType) String() string {
	switch t {
	case Bool:
		return "bool"
	case Int32:
		return "int32"
	case Int64:
		return "int64"
	case String:
		return "string"
	case Text:
		return "text"
	case DateTime:
		return "datetime"
	case UUID:
		return "uuid"
	default:
		return fmt.Sprintf("FieldType(%d)", int(t))
	}
}

type dialectRules struct {
	types         map[FieldType]string
	autoIncrement string
	// serialTypes replaces the column type instead of appending a keyword
	serialTypes map[FieldType]string
	placeholder func(i int) string
	quote       byte
	barePlain   bool
	// escape prepares a value for embedding inside single quotes
	escape      func(string) string
	maxBatch    int
	maxParams   int
	defaultPort int
	embedded    bool
	sql         bool
}

var plainIdent = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

var (
	quoteDoubler = strings.NewReplacer("'", "''")
	mysqlEscaper = strings.NewReplacer(
		`\`, `\\`,
		"'", `\'`,
		`"`, `\"`,
		"\n", `\n`,
		"\r", `\r`,
		"\x00", `\0`,
		"\x1a", `\Z`,
	)
	postgresEscaper = strings.NewReplacer("'", "''", `\`, `\\`)
)

func questionMark(int) string { return "?" }

func dollar(i int) string { return fmt.Sprintf("$%d", i) }

var dialects = map[model.DatabaseType]*dialectRules{
	model.SQLite: {
		types: map[FieldType]string{
			Bool: "INTEGER", Int32: "INTEGER", Int64: "INTEGER", String: "TEXT", Text: "TEXT", DateTime: "DATETIME", UUID: "TEXT",
		},
		autoIncrement: "AUTOINCREMENT",
		placeholder:   questionMark,
		quote:         '"',
		maxBatch:      1000,
		maxParams:     32766,
		embedded:      true,
		sql:           true,
	},
	model.MySQL: {
		types: map[FieldType]string{
			Bool: "TINYINT(1)", Int32: "INT", Int64: "BIGINT", String: "VARCHAR(255)", Text: "TEXT", DateTime: "DATETIME", UUID: "CHAR(36)",
		},
		autoIncrement: "AUTO_INCREMENT",
		placeholder:   questionMark,
		quote:         '`',
		escape:        mysqlEscaper.Replace,
		maxBatch:      5000,
		maxParams:     65535,
		defaultPort:   3306,
		sql:           true,
	},
	model.PostgreSQL: {
		types: map[FieldType]string{
			Bool: "BOOLEAN", Int32: "INTEGER", Int64: "BIGINT", String: "TEXT", Text: "TEXT", DateTime: "TIMESTAMP", UUID: "UUID",
		},
		serialTypes: map[FieldType]string{Int32: "SERIAL", Int64: "BIGSERIAL"},
		placeholder: dollar,
		quote:       '"',
		escape:      postgresEscaper.Replace,
		maxBatch:    10000,
		maxParams:   65535,
		defaultPort: 5432,
		sql:         true,
	},
	model.Mock: {
		types: map[FieldType]string{
			Bool: "BOOL", Int32: "INT", Int64: "BIGINT", String: "TEXT", Text: "TEXT", DateTime: "DATETIME", UUID: "UUID",
		},
		autoIncrement: "AUTOINCREMENT",
		placeholder:   questionMark,
		quote:         '"',
		barePlain:     true,
		embedded:      true,
		sql:           true,
	},
	model.MongoDB: {
		types: map[FieldType]string{
			Bool: "bool", Int32: "int", Int64: "long", String: "string", Text: "string", DateTime: "date", UUID: "uuid",
		},
		placeholder: func(int) string { return "" },
		defaultPort: 27017,
	},
}

// Dialect answers per-database syntax questions. The zero value is unusable; use For.
type Dialect struct {
	dbType model.DatabaseType
	rules  *dialectRules
}

func For(t model.DatabaseType) (Dialect, error) {
	rules, ok := dialects[t]
	if !ok {
		return Dialect{}, logerr.Errorf(logerr.KindUnsupported, "dialect", "unsupported database type %q", t)
	}
	return Dialect{dbType: t, rules: rules}, nil
}

// MustFor panics on an unsupported type; for package-level tables and tests.
func MustFor(t model.DatabaseType) Dialect {
	d, err := For(t)
	if err != nil {
		panic(err)
	}
	return d
}

func (d Dialect) Type() model.DatabaseType {
	return d.dbType
}

// IsSQL reports whether the dialect speaks SQL text with positional parameters.
func (d Dialect) IsSQL() bool {
	return d.rules.sql
}

func (d Dialect) IsEmbedded() bool {
	return d.rules.embedded
}

func (d Dialect) TypeName(t FieldType) (string, error) {
	name, ok := d.rules.types[t]
	if !ok {
		return "", logerr.Errorf(logerr.KindLogic, "dialect_type", "no %s mapping for %s", d.dbType, t)
	}
	return name, nil
}

// ColumnType resolves the type of an auto-increment aware column.
func (d Dialect) ColumnType(t FieldType, autoIncrement bool) (string, error) {
	if autoIncrement {
		if serial, ok := d.rules.serialTypes[t]; ok {
			return serial, nil
		}
	}
	return d.TypeName(t)
}

// AutoIncrementKeyword is empty for dialects that express auto-increment through the type.
func (d Dialect) AutoIncrementKeyword() string {
	if len(d.rules.serialTypes) > 0 {
		return ""
	}
	return d.rules.autoIncrement
}

// Placeholder returns the parameter marker for the 1-based position i.
func (d Dialect) Placeholder(i int) string {
	return d.rules.placeholder(i)
}

func (d Dialect) QuoteChar() byte {
	return d.rules.quote
}

// QuoteIdent wraps name in the dialect quote, doubling embedded quotes.
func (d Dialect) QuoteIdent(name string) string {
	if d.rules.quote == 0 {
		return name
	}
	if d.rules.barePlain && plainIdent.MatchString(name) {
		return name
	}
	q := string(d.rules.quote)
	return q + strings.ReplaceAll(name, q, q+q) + q
}

// EscapeString escapes a value for embedding inside single quotes.
// SQLite and Mock double quotes, MySQL backslash-escapes quotes and control
// bytes, PostgreSQL doubles quotes and backslashes.
func (d Dialect) EscapeString(v string) string {
	if d.rules.escape == nil {
		return quoteDoubler.Replace(v)
	}
	return d.rules.escape(v)
}

// QuoteValue returns v as a string literal. PostgreSQL literals holding a
// backslash use the E” form so the escaped backslash reads back as one.
func (d Dialect) QuoteValue(v string) string {
	if d.dbType == model.PostgreSQL && strings.Contains(v, `\`) {
		return "E'" + d.EscapeString(v) + "'"
	}
	return "'" + d.EscapeString(v) + "'"
}

func (d Dialect) SupportsBatch() bool {
	return d.rules.maxBatch > 0
}

// MaxBatch is the largest number of rows a single batched insert may carry.
func (d Dialect) MaxBatch() (int, error) {
	if d.rules.maxBatch == 0 {
		return 0, logerr.Errorf(logerr.KindUnsupported, "max_batch", "%s does not support batched inserts", d.dbType)
	}
	return d.rules.maxBatch, nil
}

// MaxParams bounds the bound parameters of one statement.
func (d Dialect) MaxParams() int {
	return d.rules.maxParams
}

func (d Dialect) DefaultPort() (int, bool) {
	return d.rules.defaultPort, d.rules.defaultPort > 0
}
