package orm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yadunandan004/dblogger/logerr"
	"github.com/yadunandan004/dblogger/model"
)

func builder(t *testing.T, dbType model.DatabaseType) *QueryBuilder {
	t.Helper()
	qb, err := NewQueryBuilder(dbType)
	require.NoError(t, err)
	return qb
}

func TestDialectTable(t *testing.T) {
	tests := []struct {
		dbType      model.DatabaseType
		placeholder string
		maxBatch    int
		port        int
		embedded    bool
		str         string
	}{
		{model.SQLite, "?", 1000, 0, true, "TEXT"},
		{model.MySQL, "?", 5000, 3306, false, "VARCHAR(255)"},
		{model.PostgreSQL, "$3", 10000, 5432, false, "TEXT"},
	}
	for _, tt := range tests {
		t.Run(string(tt.dbType), func(t *testing.T) {
			d := MustFor(tt.dbType)
			assert.Equal(t, tt.placeholder, d.Placeholder(3))
			n, err := d.MaxBatch()
			require.NoError(t, err)
			assert.Equal(t, tt.maxBatch, n)
			port, ok := d.DefaultPort()
			assert.Equal(t, tt.port, port)
			assert.Equal(t, tt.port > 0, ok)
			assert.Equal(t, tt.embedded, d.IsEmbedded())
			typ, err := d.TypeName(String)
			require.NoError(t, err)
			assert.Equal(t, tt.str, typ)
		})
	}

	mongo := MustFor(model.MongoDB)
	port, ok := mongo.DefaultPort()
	assert.True(t, ok)
	assert.Equal(t, 27017, port)

	_, err := MustFor(model.Mock).MaxBatch()
	assert.ErrorIs(t, err, logerr.ErrUnsupported)

	_, err = For(model.DatabaseType("oracle"))
	assert.ErrorIs(t, err, logerr.ErrUnsupported)

	_, err = NewQueryBuilder(model.MongoDB)
	assert.ErrorIs(t, err, logerr.ErrUnsupported)
}

func TestQuoteIdentDoublesEmbeddedQuotes(t *testing.T) {
	hostile := `" or 1=1 --`
	assert.Equal(t, `""" or 1=1 --"`, MustFor(model.SQLite).QuoteIdent(hostile))
	assert.Equal(t, `""" or 1=1 --"`, MustFor(model.PostgreSQL).QuoteIdent(hostile))
	assert.Equal(t, "`a``b`", MustFor(model.MySQL).QuoteIdent("a`b"))
	assert.Equal(t, "logs", MustFor(model.Mock).QuoteIdent("logs"))
	assert.Equal(t, `""" or 1=1 --"`, MustFor(model.Mock).QuoteIdent(hostile))
}

func TestEscapeString(t *testing.T) {
	assert.Equal(t, `'it''s'`, MustFor(model.PostgreSQL).QuoteValue("it's"))
	assert.Equal(t, `'a\\b\'c'`, MustFor(model.MySQL).QuoteValue(`a\b'c`))
	assert.Equal(t, `\"x\"\n\r\0\Z`, MustFor(model.MySQL).EscapeString("\"x\"\n\r\x00\x1a"))
	assert.Equal(t, `E'a\\b''c'`, MustFor(model.PostgreSQL).QuoteValue(`a\b'c`))
	assert.Equal(t, `'a\b'`, MustFor(model.SQLite).QuoteValue(`a\b`))
	assert.Equal(t, `'it''s\n'`, MustFor(model.Mock).QuoteValue(`it's\n`))
}

func TestSchemaForeignKeyOnUndeclaredField(t *testing.T) {
	_, err := NewTable("logs").
		PrimaryKey("id", Int64).
		ForeignKey("source_id", "sources", "id").
		Build()
	assert.ErrorIs(t, err, logerr.ErrLogic)

	_, err = NewTable("logs").PrimaryKey("id", Int64).PrimaryKey("id", Int64).Build()
	assert.ErrorIs(t, err, logerr.ErrLogic)
}

func TestCreateTable(t *testing.T) {
	sources, err := SourcesTable()
	require.NoError(t, err)

	sql, err := builder(t, model.SQLite).CreateTable(sources)
	require.NoError(t, err)
	assert.Equal(t, `CREATE TABLE IF NOT EXISTS "sources" ("id" INTEGER PRIMARY KEY AUTOINCREMENT, "uuid" TEXT NOT NULL UNIQUE, "name" TEXT NOT NULL)`, sql)

	sql, err = builder(t, model.PostgreSQL).CreateTable(sources)
	require.NoError(t, err)
	assert.Equal(t, `CREATE TABLE IF NOT EXISTS "sources" ("id" BIGSERIAL PRIMARY KEY, "uuid" UUID NOT NULL UNIQUE, "name" TEXT NOT NULL)`, sql)

	sql, err = builder(t, model.MySQL).CreateTable(sources)
	require.NoError(t, err)
	assert.Equal(t, "CREATE TABLE IF NOT EXISTS `sources` (`id` BIGINT PRIMARY KEY AUTO_INCREMENT, `uuid` CHAR(36) NOT NULL UNIQUE, `name` VARCHAR(255) NOT NULL)", sql)
}

func TestCreateLogsTableWithSource(t *testing.T) {
	logs, err := LogsTable("logs", true)
	require.NoError(t, err)
	assert.Len(t, logs.Indexes, 6)
	assert.Equal(t, []string{"source_id", "timestamp", "level", "message", "func", "file", "line", "thread_id"}, logs.InsertColumns())

	sql, err := builder(t, model.PostgreSQL).CreateTable(logs)
	require.NoError(t, err)
	assert.Contains(t, sql, `"source_id" BIGINT,`)
	assert.Contains(t, sql, `"timestamp" TIMESTAMP NOT NULL`)
	assert.Contains(t, sql, `FOREIGN KEY ("source_id") REFERENCES "sources" ("id")`)
}

func TestCreateIndex(t *testing.T) {
	logs, err := LogsTable("logs", false)
	require.NoError(t, err)
	idx := Index{Name: "idx_logs_level", Columns: []string{"level"}}

	assert.Equal(t, `CREATE INDEX IF NOT EXISTS "idx_logs_level" ON "logs" ("level")`, builder(t, model.SQLite).CreateIndex(logs, idx))
	assert.Equal(t, `CREATE INDEX IF NOT EXISTS "idx_logs_level" ON "logs" ("level")`, builder(t, model.PostgreSQL).CreateIndex(logs, idx))
	assert.Equal(t, "ALTER TABLE `logs` ADD INDEX `idx_logs_level` (`level`)", builder(t, model.MySQL).CreateIndex(logs, idx))
	assert.Empty(t, builder(t, model.Mock).CreateIndex(logs, idx))
}

func TestMySQLLogsTableUsesText(t *testing.T) {
	logs, err := LogsTable("logs", false)
	require.NoError(t, err)
	qb := builder(t, model.MySQL)

	sql, err := qb.CreateTable(logs)
	require.NoError(t, err)
	for _, col := range []string{ColFunction, ColFile, ColThreadID, ColMessage} {
		assert.Contains(t, sql, "`"+col+"` TEXT NOT NULL", col)
	}

	idx := Index{Name: "idx_logs_file", Columns: []string{ColFile, ColLevel}}
	assert.Equal(t, "ALTER TABLE `logs` ADD INDEX `idx_logs_file` (`file`(255), `level`)", qb.CreateIndex(logs, idx))
	assert.Equal(t, `CREATE INDEX IF NOT EXISTS "idx_logs_file" ON "logs" ("file", "level")`, builder(t, model.PostgreSQL).CreateIndex(logs, idx))
}

func TestInsertAndBatchInsert(t *testing.T) {
	pg := builder(t, model.PostgreSQL)
	assert.Equal(t, `INSERT INTO "logs" ("level", "message") VALUES ($1, $2)`, pg.Insert("logs", []string{"level", "message"}))
	assert.Equal(t,
		`INSERT INTO "logs" ("level", "message") VALUES ($1, $2), ($3, $4), ($5, $6)`,
		pg.BatchInsert("logs", []string{"level", "message"}, 3))

	my := builder(t, model.MySQL)
	assert.Equal(t, "INSERT INTO `logs` (`level`) VALUES (?), (?)", my.BatchInsert("logs", []string{"level"}, 2))

	assert.Empty(t, pg.Insert("logs", nil))
	assert.Empty(t, pg.BatchInsert("logs", []string{"level"}, 0))
	assert.Empty(t, pg.BatchInsert("logs", nil, 4))
}

func TestSelect(t *testing.T) {
	pg := builder(t, model.PostgreSQL)

	sql, args, err := pg.Select(NewSelect("logs", "id", "level").
		Where(model.Eq("level", "INFO"), model.Where("file", "in", []string{"a.go", "b.go"}), model.Where("source_id", "is null", nil)).
		Order("timestamp", "id").
		Page(10, 20))
	require.NoError(t, err)
	assert.Equal(t,
		`SELECT "id", "level" FROM "logs" WHERE "level" = $1 AND "file" IN ($2, $3) AND "source_id" IS NULL ORDER BY "timestamp", "id" LIMIT 10 OFFSET 20`,
		sql)
	assert.Equal(t, []any{"INFO", "a.go", "b.go"}, args)

	sql, args, err = builder(t, model.SQLite).Select(NewSelect("logs"))
	require.NoError(t, err)
	assert.Equal(t, `SELECT * FROM "logs"`, sql)
	assert.Empty(t, args)
}

func TestSelectLimitOffsetRules(t *testing.T) {
	qb := builder(t, model.SQLite)

	sql, _, err := qb.Select(NewSelect("logs").Page(-1, 5))
	require.NoError(t, err)
	assert.Equal(t, `SELECT * FROM "logs"`, sql, "offset without limit is dropped")

	sql, _, err = qb.Select(NewSelect("logs").Page(5, -1))
	require.NoError(t, err)
	assert.Equal(t, `SELECT * FROM "logs" LIMIT 5`, sql)
}

func TestSelectRejectsUnknownOperatorWithoutSQL(t *testing.T) {
	sql, args, err := builder(t, model.SQLite).Select(NewSelect("logs").Where(model.Where("level", "; DROP TABLE logs; --", "x")))
	assert.ErrorIs(t, err, logerr.ErrInvalidArgument)
	assert.Empty(t, sql)
	assert.Nil(t, args)
}

func TestUpdateDeleteCount(t *testing.T) {
	pg := builder(t, model.PostgreSQL)

	sql, args, err := pg.Update("sources", []string{"name"}, []model.Filter{model.Eq("id", 4)})
	require.NoError(t, err)
	assert.Equal(t, `UPDATE "sources" SET "name" = $1 WHERE "id" = $2`, sql)
	assert.Equal(t, []any{4}, args)

	sql, args, err = pg.Delete("logs", nil)
	require.NoError(t, err)
	assert.Equal(t, `DELETE FROM "logs"`, sql)
	assert.Nil(t, args)

	sql, _, err = builder(t, model.MySQL).Count("logs", []model.Filter{model.Eq("level", "ERROR")})
	require.NoError(t, err)
	assert.Equal(t, "SELECT COUNT(*) AS n FROM `logs` WHERE `level` = ?", sql)
}

func TestCatalogQueries(t *testing.T) {
	sql, args := builder(t, model.MySQL).IndexExists("logs", "idx_logs_level")
	assert.Contains(t, sql, "information_schema.statistics")
	assert.Equal(t, []any{"logs", "idx_logs_level"}, args)

	sql, _ = builder(t, model.PostgreSQL).TableExists("logs")
	assert.Contains(t, sql, "pg_tables")

	sql, _ = builder(t, model.Mock).TableExists("logs")
	assert.Empty(t, sql)

	assert.Equal(t, "SELECT last_insert_rowid() AS id", builder(t, model.SQLite).LastInsertID("sources", "id"))
	assert.Equal(t, `SELECT currval(pg_get_serial_sequence('"sources"', 'id')) AS id`, builder(t, model.PostgreSQL).LastInsertID("sources", "id"))
	assert.Equal(t, "SELECT LAST_INSERT_ID() AS id", builder(t, model.Mock).LastInsertID("sources", "id"))
}
