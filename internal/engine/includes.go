package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"

	"task-manager-api/internal/metadata"
	"task-manager-api/internal/store"
)

// Loader fetches rows for eager loading and shapes them for output.
type Loader struct {
	store    *store.Store
	registry *metadata.Registry
	schema   *metadata.Schema
}

func NewLoader(s *store.Store, reg *metadata.Registry, schema *metadata.Schema) *Loader {
	return &Loader{store: s, registry: reg, schema: schema}
}

// LoadIncludes fetches related rows and attaches them to the parent rows
// under the relation name. Has-many relations attach a list, belongs-to
// relations a single object or nil.
func (l *Loader) LoadIncludes(ctx context.Context, q store.Querier, d *metadata.Descriptor, rows []map[string]any, with []string) error {
	if len(rows) == 0 || len(with) == 0 {
		return nil
	}

	for _, name := range with {
		rel := d.GetRelation(name)
		if rel == nil {
			continue
		}
		target := l.registry.Get(rel.Target)
		if target == nil {
			return fmt.Errorf("unknown relation target: %s", rel.Target)
		}

		switch rel.Type {
		case metadata.HasMany:
			if err := l.loadHasMany(ctx, q, rel, target, rows); err != nil {
				return err
			}
		case metadata.BelongsTo:
			if err := l.loadBelongsTo(ctx, q, rel, target, rows); err != nil {
				return err
			}
		}
	}
	return nil
}

// loadHasMany loads children by the parents' primary keys.
func (l *Loader) loadHasMany(ctx context.Context, q store.Querier, rel *metadata.Relation, target *metadata.Descriptor, rows []map[string]any) error {
	parentIDs := collectValues(rows, metadata.PrimaryKey)
	grouped := make(map[string][]map[string]any)

	if len(parentIDs) > 0 {
		children, err := store.Select(ctx, q, l.store.Builder().
			Select("*").From(target.Table).
			Where(squirrel.Eq{rel.ForeignKey: parentIDs}).
			OrderBy(metadata.PrimaryKey))
		if err != nil {
			return fmt.Errorf("load include %s: %w", rel.Name, err)
		}
		l.Present(target, children)
		for _, child := range children {
			fk := fmt.Sprintf("%v", child[rel.ForeignKey])
			grouped[fk] = append(grouped[fk], child)
		}
	}

	for _, row := range rows {
		children := grouped[fmt.Sprintf("%v", row[metadata.PrimaryKey])]
		if children == nil {
			children = []map[string]any{}
		}
		row[rel.Name] = children
	}
	return nil
}

// loadBelongsTo loads parents by the rows' foreign keys.
func (l *Loader) loadBelongsTo(ctx context.Context, q store.Querier, rel *metadata.Relation, target *metadata.Descriptor, rows []map[string]any) error {
	fkIDs := collectValues(rows, rel.ForeignKey)
	byID := make(map[string]map[string]any)

	if len(fkIDs) > 0 {
		parents, err := store.Select(ctx, q, l.store.Builder().
			Select("*").From(target.Table).
			Where(squirrel.Eq{metadata.PrimaryKey: fkIDs}))
		if err != nil {
			return fmt.Errorf("load include %s: %w", rel.Name, err)
		}
		l.Present(target, parents)
		for _, p := range parents {
			byID[fmt.Sprintf("%v", p[metadata.PrimaryKey])] = p
		}
	}

	for _, row := range rows {
		if parent, ok := byID[fmt.Sprintf("%v", row[rel.ForeignKey])]; ok {
			row[rel.Name] = parent
		} else {
			row[rel.Name] = nil
		}
	}
	return nil
}

// Present shapes rows for output in place: hidden columns are dropped,
// SQLite integers become booleans, date columns render as YYYY-MM-DD and
// timestamp columns stored as text are parsed.
func (l *Loader) Present(d *metadata.Descriptor, rows []map[string]any) {
	if len(rows) == 0 {
		return
	}
	cols, err := l.schema.ListColumns(d.Table)
	if err != nil {
		return
	}

	var bools []string
	for _, c := range cols {
		if c.Type == metadata.TypeBoolean {
			bools = append(bools, c.Name)
		}
	}
	if l.store.Dialect.NeedsBoolFix() {
		store.NormalizeBooleans(rows, bools)
	}

	for _, row := range rows {
		d.StripHidden(row)
		for _, c := range cols {
			switch c.Type {
			case metadata.TypeDate:
				switch v := row[c.Name].(type) {
				case time.Time:
					row[c.Name] = v.Format(dateLayout)
				case string:
					if len(v) > len(dateLayout) {
						row[c.Name] = v[:len(dateLayout)]
					}
				}
			case metadata.TypeDatetime:
				if v, ok := row[c.Name].(string); ok {
					if t, ok := store.ParseTimestamp(v); ok {
						row[c.Name] = t
					}
				}
			}
		}
	}
}

// collectValues returns the distinct non-nil values of a column.
func collectValues(rows []map[string]any, field string) []any {
	seen := make(map[string]bool)
	var vals []any
	for _, row := range rows {
		v := row[field]
		if v == nil {
			continue
		}
		key := fmt.Sprintf("%v", v)
		if !seen[key] {
			seen[key] = true
			vals = append(vals, v)
		}
	}
	return vals
}
