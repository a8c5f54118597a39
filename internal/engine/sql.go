package engine

import (
	"sort"

	"github.com/Masterminds/squirrel"

	"task-manager-api/internal/metadata"
)

func selectColumns(sel Selection) []string {
	if sel.All() {
		return []string{"*"}
	}
	return sel
}

// applyWhere adds the filter predicates in request order and the search
// group. squirrel wraps an Or in parentheses, so a search never widens the
// filter.
func applyWhere(q squirrel.SelectBuilder, plan *QueryPlan) squirrel.SelectBuilder {
	for _, p := range plan.Predicates {
		q = q.Where(squirrel.Eq{p.Column: p.Value})
	}
	if plan.Search != nil {
		q = q.Where(plan.Search)
	}
	return q
}

// BuildSelectSQL renders the data query of a list plan.
func BuildSelectSQL(b squirrel.StatementBuilderType, plan *QueryPlan) squirrel.SelectBuilder {
	q := b.Select(selectColumns(plan.Columns)...).From(plan.Resource.Table)
	q = applyWhere(q, plan).OrderBy(metadata.PrimaryKey)
	if !plan.Window.Unbounded() {
		q = q.Limit(uint64(plan.Window.PerPage)).Offset(plan.Window.Offset())
	}
	return q
}

// BuildCountSQL renders a COUNT query with the same predicates as the select.
func BuildCountSQL(b squirrel.StatementBuilderType, plan *QueryPlan) squirrel.SelectBuilder {
	return applyWhere(b.Select("COUNT(*)").From(plan.Resource.Table), plan)
}

// BuildFetchSQL selects one row by primary key.
func BuildFetchSQL(b squirrel.StatementBuilderType, d *metadata.Descriptor, sel Selection, id int64) squirrel.SelectBuilder {
	return b.Select(selectColumns(sel)...).From(d.Table).Where(squirrel.Eq{metadata.PrimaryKey: id})
}

// BuildOwnersSQL selects the id and owner of each target row.
func BuildOwnersSQL(b squirrel.StatementBuilderType, d *metadata.Descriptor, ids []int64) squirrel.SelectBuilder {
	return b.Select(metadata.PrimaryKey, d.OwnerKey).From(d.Table).
		Where(squirrel.Eq{metadata.PrimaryKey: ids}).
		OrderBy(metadata.PrimaryKey)
}

// BuildInsertSQL inserts the given column values. Columns are sorted for a
// stable statement.
func BuildInsertSQL(b squirrel.StatementBuilderType, d *metadata.Descriptor, values map[string]any) squirrel.InsertBuilder {
	cols := sortedColumns(values)
	vals := make([]any, len(cols))
	for i, c := range cols {
		vals[i] = values[c]
	}
	return b.Insert(d.Table).Columns(cols...).Values(vals...)
}

// BuildUpdateSQL updates one row by primary key.
func BuildUpdateSQL(b squirrel.StatementBuilderType, d *metadata.Descriptor, id int64, values map[string]any) squirrel.UpdateBuilder {
	q := b.Update(d.Table)
	for _, c := range sortedColumns(values) {
		q = q.Set(c, values[c])
	}
	return q.Where(squirrel.Eq{metadata.PrimaryKey: id})
}

// BuildDeleteSQL deletes every row whose primary key is in ids.
func BuildDeleteSQL(b squirrel.StatementBuilderType, d *metadata.Descriptor, ids []int64) squirrel.DeleteBuilder {
	return b.Delete(d.Table).Where(squirrel.Eq{metadata.PrimaryKey: ids})
}

func sortedColumns(values map[string]any) []string {
	cols := make([]string, 0, len(values))
	for c := range values {
		cols = append(cols, c)
	}
	sort.Strings(cols)
	return cols
}
