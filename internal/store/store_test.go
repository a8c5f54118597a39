package store

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockStore(t *testing.T, dialect Dialect) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewWithDB(db, dialect), mock
}

func TestSelect_RendersDialectPlaceholders(t *testing.T) {
	s, mock := newMockStore(t, &PostgresDialect{})

	mock.ExpectQuery(`SELECT id, title FROM tasks WHERE user_id = \$1`).
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "title"}).
			AddRow(int64(1), "write report").
			AddRow(int64(2), []byte("review")))

	q := s.Builder().Select("id", "title").From("tasks").Where("user_id = ?", int64(7))
	rows, err := Select(context.Background(), s.DB, q)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "write report", rows[0]["title"])
	assert.Equal(t, "review", rows[1]["title"])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSelect_NoRowsReturnsEmptySlice(t *testing.T) {
	s, mock := newMockStore(t, &SQLiteDialect{})

	mock.ExpectQuery(`SELECT \* FROM tasks WHERE id = \?`).
		WithArgs(int64(99)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	rows, err := Select(context.Background(), s.DB, s.Builder().Select("*").From("tasks").Where("id = ?", int64(99)))
	require.NoError(t, err)
	assert.NotNil(t, rows)
	assert.Empty(t, rows)
}

func TestSelectOne_NotFound(t *testing.T) {
	s, mock := newMockStore(t, &SQLiteDialect{})

	mock.ExpectQuery(`SELECT id FROM users WHERE id = \?`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := SelectOne(context.Background(), s.DB, s.Builder().Select("id").From("users").Where("id = ?", 1))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCount(t *testing.T) {
	s, mock := newMockStore(t, &PostgresDialect{})

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM tasks`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(12)))

	n, err := Count(context.Background(), s.DB, s.Builder().Select("COUNT(*)").From("tasks"))
	require.NoError(t, err)
	assert.Equal(t, int64(12), n)
}

func TestInsertReturningID(t *testing.T) {
	s, mock := newMockStore(t, &PostgresDialect{})

	mock.ExpectQuery(`INSERT INTO tasks \(title,user_id\) VALUES \(\$1,\$2\) RETURNING id`).
		WithArgs("write report", int64(3)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(41)))

	id, err := InsertReturningID(context.Background(), s.DB,
		s.Builder().Insert("tasks").Columns("title", "user_id").Values("write report", int64(3)))
	require.NoError(t, err)
	assert.Equal(t, int64(41), id)
}

func TestRun_ReturnsRowsAffected(t *testing.T) {
	s, mock := newMockStore(t, &SQLiteDialect{})

	mock.ExpectExec(`DELETE FROM tasks WHERE id IN \(\?,\?\)`).
		WithArgs(int64(1), int64(2)).
		WillReturnResult(sqlmock.NewResult(0, 2))

	n, err := Run(context.Background(), s.DB,
		s.Builder().Delete("tasks").Where("id IN (?,?)", int64(1), int64(2)))
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestPostgresTableColumns_Ordered(t *testing.T) {
	s, mock := newMockStore(t, &PostgresDialect{})

	mock.ExpectQuery(`SELECT column_name, data_type FROM information_schema.columns`).
		WithArgs("tasks").
		WillReturnRows(sqlmock.NewRows([]string{"column_name", "data_type"}).
			AddRow("id", "bigint").
			AddRow("user_id", "bigint").
			AddRow("title", "character varying"))

	cols, err := s.TableColumns(context.Background(), "tasks")
	require.NoError(t, err)
	require.Len(t, cols, 3)
	assert.Equal(t, "id", cols[0].Name)
	assert.Equal(t, "user_id", cols[1].Name)
	assert.Equal(t, "character varying", cols[2].DBType)
}

func TestMapError(t *testing.T) {
	pg := &PostgresDialect{}
	unique := fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505", Message: "duplicate key"})
	assert.ErrorIs(t, MapError(pg, unique), ErrUniqueViolation)

	other := &pgconn.PgError{Code: "23503"}
	assert.False(t, errors.Is(MapError(pg, other), ErrUniqueViolation))

	lite := &SQLiteDialect{}
	assert.ErrorIs(t, MapError(lite, errors.New("constraint failed: UNIQUE constraint failed: users.email (2067)")), ErrUniqueViolation)
	assert.NoError(t, MapError(lite, nil))
}

func TestNormalizeValue(t *testing.T) {
	assert.Nil(t, normalizeValue(nil))
	assert.Equal(t, "hello", normalizeValue([]byte("hello")))
	assert.Equal(t, int64(5), normalizeValue(int64(5)))
	assert.Equal(t, "2026-01-02 03:04:05", normalizeValue("2026-01-02 03:04:05"))
	assert.Equal(t, "2026-01-02 03:04:05", normalizeValue([]byte("2026-01-02 03:04:05")))
}

func TestParseTimestamp(t *testing.T) {
	for _, s := range []string{
		"2026-01-02 03:04:05",
		"2026-01-02 03:04:05.123456789+00:00",
		"2026-01-02T03:04:05Z",
	} {
		got, ok := ParseTimestamp(s)
		require.True(t, ok, s)
		assert.Equal(t, 2026, got.Year())
		assert.Equal(t, 3, got.Hour())
	}

	_, ok := ParseTimestamp("2026-01-02")
	assert.False(t, ok)
	_, ok = ParseTimestamp("not a time")
	assert.False(t, ok)
}

func TestNormalizeBooleans(t *testing.T) {
	rows := []map[string]any{
		{"id": int64(1), "admin": int64(1)},
		{"id": int64(2), "admin": int64(0)},
	}
	NormalizeBooleans(rows, []string{"admin"})
	assert.Equal(t, true, rows[0]["admin"])
	assert.Equal(t, false, rows[1]["admin"])
	assert.Equal(t, int64(1), rows[0]["id"])
}
