package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPage_MiddlePage(t *testing.T) {
	rows := []map[string]any{{"id": 11}, {"id": 12}}
	p := NewPage(rows, 25, Window{Page: 2, PerPage: 10}, "http://localhost/api/tasks")

	assert.Equal(t, 2, p.CurrentPage)
	assert.Equal(t, 3, p.LastPage)
	assert.Equal(t, int64(25), p.Total)
	require.NotNil(t, p.From)
	require.NotNil(t, p.To)
	assert.Equal(t, int64(11), *p.From)
	assert.Equal(t, int64(12), *p.To)
	assert.Equal(t, "http://localhost/api/tasks?page=1", p.FirstPageURL)
	assert.Equal(t, "http://localhost/api/tasks?page=3", p.LastPageURL)
	require.NotNil(t, p.NextPageURL)
	assert.Equal(t, "http://localhost/api/tasks?page=3", *p.NextPageURL)
	require.NotNil(t, p.PrevPageURL)
	assert.Equal(t, "http://localhost/api/tasks?page=1", *p.PrevPageURL)
}

func TestNewPage_Empty(t *testing.T) {
	p := NewPage(nil, 0, Window{Page: 1, PerPage: 10}, "/api/tasks")
	assert.Equal(t, 1, p.LastPage)
	assert.Nil(t, p.From)
	assert.Nil(t, p.To)
	assert.Nil(t, p.NextPageURL)
	assert.Nil(t, p.PrevPageURL)
	assert.NotNil(t, p.Data)
}
