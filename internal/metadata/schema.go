package metadata

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var ErrSchema = errors.New("schema error")

type SemanticType string

const (
	TypeInteger  SemanticType = "integer"
	TypeFloat    SemanticType = "float"
	TypeBoolean  SemanticType = "boolean"
	TypeString   SemanticType = "string"
	TypeText     SemanticType = "text"
	TypeDate     SemanticType = "date"
	TypeDatetime SemanticType = "datetime"
)

// IsTextual reports whether free-text search applies to the type.
func (t SemanticType) IsTextual() bool {
	return t == TypeString || t == TypeText
}

type ColumnMetadata struct {
	Name   string       `json:"name"`
	Type   SemanticType `json:"type"`
	DBType string       `json:"db_type"`
}

// RawColumn is a column as reported by the database catalog.
type RawColumn struct {
	Name   string
	DBType string
}

// ColumnSource lists the columns of a table in declaration order.
type ColumnSource interface {
	TableColumns(ctx context.Context, table string) ([]RawColumn, error)
}

// Schema is an immutable snapshot of the column layout of the resource tables.
type Schema struct {
	tables map[string][]ColumnMetadata
	index  map[string]map[string]int
}

func NewSchema(tables map[string][]ColumnMetadata) *Schema {
	s := &Schema{
		tables: make(map[string][]ColumnMetadata, len(tables)),
		index:  make(map[string]map[string]int, len(tables)),
	}
	for table, cols := range tables {
		cp := make([]ColumnMetadata, len(cols))
		copy(cp, cols)
		s.tables[table] = cp
		idx := make(map[string]int, len(cols))
		for i, c := range cp {
			idx[c.Name] = i
		}
		s.index[table] = idx
	}
	return s
}

// LoadSchema reads the column layout of the given tables. Call it again to
// pick up a migration; the returned snapshot never changes.
func LoadSchema(ctx context.Context, src ColumnSource, tables ...string) (*Schema, error) {
	snapshot := make(map[string][]ColumnMetadata, len(tables))
	for _, table := range tables {
		raw, err := src.TableColumns(ctx, table)
		if err != nil {
			return nil, fmt.Errorf("read columns of %s: %w", table, err)
		}
		if len(raw) == 0 {
			return nil, fmt.Errorf("%w: table %s has no columns or does not exist", ErrSchema, table)
		}
		cols := make([]ColumnMetadata, len(raw))
		for i, rc := range raw {
			cols[i] = ColumnMetadata{Name: rc.Name, Type: SemanticTypeOf(rc.DBType), DBType: rc.DBType}
		}
		snapshot[table] = cols
	}
	return NewSchema(snapshot), nil
}

// ListColumns returns the columns of a table in declaration order.
func (s *Schema) ListColumns(table string) ([]ColumnMetadata, error) {
	cols, ok := s.tables[table]
	if !ok {
		return nil, fmt.Errorf("%w: unknown table %s", ErrSchema, table)
	}
	out := make([]ColumnMetadata, len(cols))
	copy(out, cols)
	return out, nil
}

// ColumnNames returns the column names of a table in declaration order.
func (s *Schema) ColumnNames(table string) ([]string, error) {
	cols, ok := s.tables[table]
	if !ok {
		return nil, fmt.Errorf("%w: unknown table %s", ErrSchema, table)
	}
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Name
	}
	return names, nil
}

func (s *Schema) ColumnType(table, column string) (SemanticType, error) {
	idx, ok := s.index[table]
	if !ok {
		return "", fmt.Errorf("%w: unknown table %s", ErrSchema, table)
	}
	i, ok := idx[column]
	if !ok {
		return "", fmt.Errorf("%w: unknown column %s.%s", ErrSchema, table, column)
	}
	return s.tables[table][i].Type, nil
}

func (s *Schema) HasColumn(table, column string) bool {
	_, ok := s.index[table][column]
	return ok
}

// SemanticTypeOf maps a database column type (postgres information_schema or
// sqlite declared type) to a semantic type.
func SemanticTypeOf(dbType string) SemanticType {
	t := strings.ToLower(strings.TrimSpace(dbType))
	if i := strings.IndexByte(t, '('); i >= 0 {
		t = strings.TrimSpace(t[:i])
	}
	switch {
	case t == "integer" || t == "int" || t == "bigint" || t == "smallint" ||
		t == "int2" || t == "int4" || t == "int8" || t == "serial" || t == "bigserial":
		return TypeInteger
	case t == "real" || t == "float" || t == "float4" || t == "float8" ||
		t == "double" || t == "double precision" || t == "numeric" || t == "decimal":
		return TypeFloat
	case t == "boolean" || t == "bool":
		return TypeBoolean
	case t == "text":
		return TypeText
	case t == "date":
		return TypeDate
	case strings.HasPrefix(t, "timestamp") || t == "datetime":
		return TypeDatetime
	default:
		return TypeString
	}
}
