package orm

import (
	"strings"

	"github.com/yadunandan004/dblogger/logerr"
)

// Field describes one column of a table declaration.
type Field struct {
	Name            string
	Type            FieldType
	IsPrimary       bool
	IsNullable      bool
	IsAutoIncrement bool
	IsUnique        bool
	Default         string
}

type ForeignKey struct {
	Field    string
	RefTable string
	RefField string
}

type Index struct {
	Name    string
	Columns []string
}

// Table is a validated table declaration.
type Table struct {
	Name        string
	Fields      []Field
	ForeignKeys []ForeignKey
	Indexes     []Index
}

func (t *Table) Field(name string) (Field, bool) {
	for _, f := range t.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

func (t *Table) ColumnNames() []string {
	names := make([]string, len(t.Fields))
	for i, f := range t.Fields {
		names[i] = f.Name
	}
	return names
}

// InsertColumns omits auto-increment columns.
func (t *Table) InsertColumns() []string {
	names := make([]string, 0, len(t.Fields))
	for _, f := range t.Fields {
		if !f.IsAutoIncrement {
			names = append(names, f.Name)
		}
	}
	return names
}

func (t *Table) PrimaryKey() (Field, bool) {
	for _, f := range t.Fields {
		if f.IsPrimary {
			return f, true
		}
	}
	return Field{}, false
}

// TableBuilder accumulates a declaration; errors surface from Build.
type TableBuilder struct {
	table Table
}

func NewTable(name string) *TableBuilder {
	return &TableBuilder{table: Table{Name: name}}
}

func (b *TableBuilder) Column(f Field) *TableBuilder {
	b.table.Fields = append(b.table.Fields, f)
	return b
}

// PrimaryKey adds an auto-increment integer primary key.
func (b *TableBuilder) PrimaryKey(name string, t FieldType) *TableBuilder {
	return b.Column(Field{Name: name, Type: t, IsPrimary: true, IsAutoIncrement: true})
}

func (b *TableBuilder) NotNull(name string, t FieldType) *TableBuilder {
	return b.Column(Field{Name: name, Type: t})
}

func (b *TableBuilder) Nullable(name string, t FieldType) *TableBuilder {
	return b.Column(Field{Name: name, Type: t, IsNullable: true})
}

func (b *TableBuilder) Unique(name string, t FieldType) *TableBuilder {
	return b.Column(Field{Name: name, Type: t, IsUnique: true})
}

func (b *TableBuilder) ForeignKey(field, refTable, refField string) *TableBuilder {
	b.table.ForeignKeys = append(b.table.ForeignKeys, ForeignKey{Field: field, RefTable: refTable, RefField: refField})
	return b
}

func (b *TableBuilder) Index(name string, columns ...string) *TableBuilder {
	b.table.Indexes = append(b.table.Indexes, Index{Name: name, Columns: columns})
	return b
}

func (b *TableBuilder) Build() (*Table, error) {
	t := b.table
	if strings.TrimSpace(t.Name) == "" {
		return nil, logerr.Errorf(logerr.KindLogic, "build_table", "table name is empty")
	}
	if len(t.Fields) == 0 {
		return nil, logerr.Errorf(logerr.KindLogic, "build_table", "table %q declares no fields", t.Name)
	}
	seen := make(map[string]struct{}, len(t.Fields))
	for _, f := range t.Fields {
		if _, dup := seen[f.Name]; dup {
			return nil, logerr.Errorf(logerr.KindLogic, "build_table", "table %q declares field %q twice", t.Name, f.Name)
		}
		seen[f.Name] = struct{}{}
	}
	for _, fk := range t.ForeignKeys {
		if _, ok := seen[fk.Field]; !ok {
			return nil, logerr.Errorf(logerr.KindLogic, "build_table", "foreign key on undeclared field %q of table %q", fk.Field, t.Name)
		}
	}
	for _, idx := range t.Indexes {
		for _, c := range idx.Columns {
			if _, ok := seen[c]; !ok {
				return nil, logerr.Errorf(logerr.KindLogic, "build_table", "index %q on undeclared field %q", idx.Name, c)
			}
		}
	}
	out := t
	return &out, nil
}
