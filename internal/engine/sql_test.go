package engine

import (
	"testing"

	"github.com/Masterminds/squirrel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"task-manager-api/internal/metadata"
)

var dollar = squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)

func TestBuildSelectSQL_SearchIsGroupedAfterFilters(t *testing.T) {
	reg := metadata.DefaultRegistry()
	plan, err := BuildQueryPlan(testSchema(), reg, reg.Get(metadata.KindTask), ListParams{
		Columns: []string{"id", "title"},
		Filter:  "[user_id=7]",
		Search:  "report",
		Page:    2,
		PerPage: 10,
	})
	require.NoError(t, err)

	sqlStr, args, err := BuildSelectSQL(dollar, plan).ToSql()
	require.NoError(t, err)
	assert.Equal(t,
		"SELECT id, title FROM tasks WHERE user_id = $1 AND (title LIKE $2) ORDER BY id LIMIT 10 OFFSET 10",
		sqlStr)
	assert.Equal(t, []any{int64(7), "%report%"}, args)

	sqlStr, args, err = BuildCountSQL(dollar, plan).ToSql()
	require.NoError(t, err)
	assert.Equal(t, "SELECT COUNT(*) FROM tasks WHERE user_id = $1 AND (title LIKE $2)", sqlStr)
	assert.Equal(t, []any{int64(7), "%report%"}, args)
}

func TestBuildSelectSQL_UnboundedSelectsAll(t *testing.T) {
	reg := metadata.DefaultRegistry()
	plan, err := BuildQueryPlan(testSchema(), reg, reg.Get(metadata.KindUser), ListParams{PerPage: 0})
	require.NoError(t, err)

	sqlStr, args, err := BuildSelectSQL(dollar, plan).ToSql()
	require.NoError(t, err)
	assert.Equal(t, "SELECT * FROM users ORDER BY id", sqlStr)
	assert.Empty(t, args)
}

func TestBuildWriteSQL(t *testing.T) {
	task := metadata.TaskResource()
	question := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Question)

	sqlStr, args, err := BuildInsertSQL(question, task, map[string]any{"title": "a", "due_date": "2030-01-01", "user_id": int64(3)}).ToSql()
	require.NoError(t, err)
	assert.Equal(t, "INSERT INTO tasks (due_date,title,user_id) VALUES (?,?,?)", sqlStr)
	assert.Equal(t, []any{"2030-01-01", "a", int64(3)}, args)

	sqlStr, args, err = BuildUpdateSQL(question, task, 9, map[string]any{"title": "b"}).ToSql()
	require.NoError(t, err)
	assert.Equal(t, "UPDATE tasks SET title = ? WHERE id = ?", sqlStr)
	assert.Equal(t, []any{"b", int64(9)}, args)

	sqlStr, args, err = BuildDeleteSQL(question, task, []int64{1, 2}).ToSql()
	require.NoError(t, err)
	assert.Equal(t, "DELETE FROM tasks WHERE id IN (?,?)", sqlStr)
	assert.Equal(t, []any{int64(1), int64(2)}, args)

	sqlStr, _, err = BuildOwnersSQL(question, task, []int64{1, 2}).ToSql()
	require.NoError(t, err)
	assert.Equal(t, "SELECT id, user_id FROM tasks WHERE id IN (?,?) ORDER BY id", sqlStr)
}
