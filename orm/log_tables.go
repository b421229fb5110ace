package orm

// Column names of the logs and sources tables.
const (
	ColID        = "id"
	ColSourceID  = "source_id"
	ColTimestamp = "timestamp"
	ColLevel     = "level"
	ColMessage   = "message"
	ColFunction  = "func"
	ColFile      = "file"
	ColLine      = "line"
	ColThreadID  = "thread_id"

	ColUUID = "uuid"
	ColName = "name"

	DefaultLogsTable    = "logs"
	DefaultSourcesTable = "sources"
)

// LogsTable declares the log table; withSource adds the source_id column and its index.
func LogsTable(name string, withSource bool) (*Table, error) {
	b := NewTable(name).PrimaryKey(ColID, Int64)
	if withSource {
		b.Nullable(ColSourceID, Int64).ForeignKey(ColSourceID, DefaultSourcesTable, ColID)
	}
	b.NotNull(ColTimestamp, DateTime).
		NotNull(ColLevel, String).
		NotNull(ColMessage, Text).
		NotNull(ColFunction, Text).
		NotNull(ColFile, Text).
		NotNull(ColLine, Int32).
		NotNull(ColThreadID, Text)

	for _, col := range []string{ColLevel, ColTimestamp, ColFile, ColFunction, ColThreadID} {
		b.Index("idx_"+name+"_"+col, col)
	}
	if withSource {
		b.Index("idx_"+name+"_"+ColSourceID, ColSourceID)
	}
	return b.Build()
}

func SourcesTable() (*Table, error) {
	return NewTable(DefaultSourcesTable).
		PrimaryKey(ColID, Int64).
		Column(Field{Name: ColUUID, Type: UUID, IsUnique: true}).
		NotNull(ColName, String).
		Build()
}
