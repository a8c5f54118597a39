package metadata

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource map[string][]RawColumn

func (f fakeSource) TableColumns(_ context.Context, table string) ([]RawColumn, error) {
	return f[table], nil
}

type failingSource struct{ err error }

func (f failingSource) TableColumns(context.Context, string) ([]RawColumn, error) {
	return nil, f.err
}

var tasksColumns = []RawColumn{
	{Name: "id", DBType: "bigint"},
	{Name: "user_id", DBType: "bigint"},
	{Name: "title", DBType: "character varying"},
	{Name: "description", DBType: "text"},
	{Name: "due_date", DBType: "date"},
	{Name: "created_at", DBType: "timestamp without time zone"},
	{Name: "updated_at", DBType: "timestamp without time zone"},
}

func TestLoadSchema_PreservesOrderAndTypes(t *testing.T) {
	s, err := LoadSchema(context.Background(), fakeSource{"tasks": tasksColumns}, "tasks")
	require.NoError(t, err)

	cols, err := s.ListColumns("tasks")
	require.NoError(t, err)

	got := make([]string, len(cols))
	for i, c := range cols {
		got[i] = c.Name + ":" + string(c.Type)
	}
	want := []string{
		"id:integer", "user_id:integer", "title:string", "description:text",
		"due_date:date", "created_at:datetime", "updated_at:datetime",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("columns mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadSchema_MissingTable(t *testing.T) {
	_, err := LoadSchema(context.Background(), fakeSource{}, "ghosts")
	assert.ErrorIs(t, err, ErrSchema)
}

func TestLoadSchema_SourceError(t *testing.T) {
	boom := errors.New("connection refused")
	_, err := LoadSchema(context.Background(), failingSource{err: boom}, "tasks")
	assert.ErrorIs(t, err, boom)
}

func TestSchema_ColumnType(t *testing.T) {
	s, err := LoadSchema(context.Background(), fakeSource{"tasks": tasksColumns}, "tasks")
	require.NoError(t, err)

	typ, err := s.ColumnType("tasks", "user_id")
	require.NoError(t, err)
	assert.Equal(t, TypeInteger, typ)

	_, err = s.ColumnType("tasks", "nonexistent")
	assert.ErrorIs(t, err, ErrSchema)

	_, err = s.ColumnType("projects", "id")
	assert.ErrorIs(t, err, ErrSchema)

	_, err = s.ListColumns("projects")
	assert.ErrorIs(t, err, ErrSchema)
}

func TestSchema_ListColumnsReturnsCopy(t *testing.T) {
	s, err := LoadSchema(context.Background(), fakeSource{"tasks": tasksColumns}, "tasks")
	require.NoError(t, err)

	cols, _ := s.ListColumns("tasks")
	cols[0].Name = "mutated"

	again, _ := s.ListColumns("tasks")
	assert.Equal(t, "id", again[0].Name)
	assert.True(t, s.HasColumn("tasks", "id"))
	assert.False(t, s.HasColumn("tasks", "mutated"))
}

func TestSemanticTypeOf(t *testing.T) {
	cases := map[string]SemanticType{
		"INTEGER":                     TypeInteger,
		"bigint":                      TypeInteger,
		"REAL":                        TypeFloat,
		"numeric(10,2)":               TypeFloat,
		"double precision":            TypeFloat,
		"BOOLEAN":                     TypeBoolean,
		"VARCHAR(255)":                TypeString,
		"character varying":           TypeString,
		"TEXT":                        TypeText,
		"DATE":                        TypeDate,
		"TIMESTAMP":                   TypeDatetime,
		"timestamp without time zone": TypeDatetime,
		"datetime":                    TypeDatetime,
		"uuid":                        TypeString,
	}
	for dbType, want := range cases {
		assert.Equal(t, want, SemanticTypeOf(dbType), dbType)
	}
	assert.True(t, TypeText.IsTextual())
	assert.False(t, TypeDate.IsTextual())
}
