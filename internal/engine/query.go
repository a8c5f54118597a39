package engine

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/Masterminds/squirrel"

	"task-manager-api/internal/metadata"
)

// Selection is the ordered select list of a query. A nil Selection selects
// every column.
type Selection []string

// All reports whether the selection is unrestricted.
func (s Selection) All() bool { return s == nil }

// Contains reports whether the selection includes column. An unrestricted
// selection contains everything.
func (s Selection) Contains(column string) bool {
	if s.All() {
		return true
	}
	for _, c := range s {
		if c == column {
			return true
		}
	}
	return false
}

// FilterPair is one key=value segment of a filter expression, unvalidated.
type FilterPair struct {
	Key   string
	Value string
}

// FilterExpression keeps pairs in request order.
type FilterExpression []FilterPair

// Predicate is an equality constraint with a value already coerced to the
// column's type.
type Predicate struct {
	Column string
	Value  any
}

// Window is the pagination window of a list query.
type Window struct {
	Page    int
	PerPage int
}

// Unbounded reports whether every matching row is returned.
func (w Window) Unbounded() bool { return w.PerPage <= 0 }

func (w Window) Offset() uint64 {
	if w.Unbounded() {
		return 0
	}
	return uint64((w.Page - 1) * w.PerPage)
}

// QueryPlan is built once per request and consumed by the SQL renderer.
type QueryPlan struct {
	Resource   *metadata.Descriptor
	Columns    Selection
	With       []string
	Filter     FilterExpression
	Predicates []Predicate
	Search     squirrel.Sqlizer // nil when no search applies
	Window     Window
}

// ListParams are the raw query parameters of a list request.
type ListParams struct {
	Columns []string
	With    []string
	Filter  string
	Search  string
	Page    int
	PerPage int
}

// ValidateColumns checks every requested column against the schema. An empty
// request or a lone "*" selects all columns. Hidden columns are invalid.
func ValidateColumns(schema *metadata.Schema, d *metadata.Descriptor, requested []string) (Selection, error) {
	if len(requested) == 0 || (len(requested) == 1 && requested[0] == "*") {
		return nil, nil
	}
	sel := make(Selection, 0, len(requested))
	seen := make(map[string]bool, len(requested))
	var invalid []string
	for _, col := range requested {
		if seen[col] {
			continue
		}
		seen[col] = true
		if !schema.HasColumn(d.Table, col) || d.IsHidden(col) {
			invalid = append(invalid, col)
			continue
		}
		sel = append(sel, col)
	}
	if len(invalid) > 0 {
		return nil, ColumnError(invalid)
	}
	return sel, nil
}

// ValidateRelations checks every requested association against the
// resource's declared relations.
func ValidateRelations(reg *metadata.Registry, d *metadata.Descriptor, requested []string) ([]string, error) {
	if len(requested) == 0 {
		return nil, nil
	}
	declared := reg.RelationsOf(d)
	out := make([]string, 0, len(requested))
	var invalid []string
	for _, name := range requested {
		if !containsString(declared, name) {
			invalid = append(invalid, name)
			continue
		}
		if !containsString(out, name) {
			out = append(out, name)
		}
	}
	if len(invalid) > 0 {
		return nil, RelationError(invalid)
	}
	return out, nil
}

// ReconcileKeysForEagerLoad appends the primary key and then every foreign
// key column (schema order) missing from a restricted selection, so eager
// loaded rows can be joined back to their parents.
func ReconcileKeysForEagerLoad(validColumns []string, sel Selection) Selection {
	if sel.All() {
		return sel
	}
	out := make(Selection, len(sel), len(sel)+2)
	copy(out, sel)
	if !out.Contains(metadata.PrimaryKey) {
		out = append(out, metadata.PrimaryKey)
	}
	for _, col := range validColumns {
		if strings.HasSuffix(col, metadata.ForeignKeySuffix) && !out.Contains(col) {
			out = append(out, col)
		}
	}
	return out
}

// ParseFilter parses "[k1=v1,k2=v2]". Brackets are optional; each segment is
// split on its first '='. Every malformed segment is reported.
func ParseFilter(raw string) (FilterExpression, error) {
	body := strings.TrimSpace(raw)
	body = strings.TrimPrefix(body, "[")
	body = strings.TrimSuffix(body, "]")

	segments := strings.Split(body, ",")
	expr := make(FilterExpression, 0, len(segments))
	var bad []string
	for _, seg := range segments {
		key, value, ok := strings.Cut(seg, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			bad = append(bad, strconv.Quote(seg))
			continue
		}
		expr = append(expr, FilterPair{Key: key, Value: value})
	}
	if len(bad) > 0 {
		return nil, FilterError("Invalid filter segment: " + strings.Join(bad, ", "))
	}
	return expr, nil
}

// ValidateFilterKeys reports every filter key that is not a column.
func ValidateFilterKeys(schema *metadata.Schema, d *metadata.Descriptor, f FilterExpression) error {
	var invalid []string
	for _, p := range f {
		known := schema.HasColumn(d.Table, p.Key) && !d.IsHidden(p.Key)
		if !known && !containsString(invalid, p.Key) {
			invalid = append(invalid, p.Key)
		}
	}
	if len(invalid) > 0 {
		return FilterError("Invalid filter key: " + strings.Join(invalid, ", "))
	}
	return nil
}

// CoerceValue converts a raw filter value to the column's semantic type.
// Columns that are not numeric or boolean keep the raw string.
func CoerceValue(schema *metadata.Schema, d *metadata.Descriptor, column, raw string) (any, error) {
	typ, err := schema.ColumnType(d.Table, column)
	if err != nil {
		return nil, FilterError("Invalid filter key: " + column)
	}
	switch typ {
	case metadata.TypeInteger:
		n, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
		if err != nil {
			return nil, TypeError(column, raw)
		}
		return n, nil
	case metadata.TypeFloat:
		f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil {
			return nil, TypeError(column, raw)
		}
		return f, nil
	case metadata.TypeBoolean:
		switch strings.ToLower(strings.TrimSpace(raw)) {
		case "1", "true":
			return true, nil
		case "0", "false":
			return false, nil
		}
		return nil, TypeError(column, raw)
	default:
		return raw, nil
	}
}

// BuildSearchPredicates ORs a LIKE predicate over every string or text
// column, restricted to the selection when it is not "all". Hidden columns
// are never searched. It returns nil when nothing is searchable.
func BuildSearchPredicates(schema *metadata.Schema, d *metadata.Descriptor, search string, sel Selection) (squirrel.Sqlizer, error) {
	if search == "" {
		return nil, nil
	}
	cols, err := schema.ListColumns(d.Table)
	if err != nil {
		return nil, err
	}
	var or squirrel.Or
	for _, c := range cols {
		if !c.Type.IsTextual() || d.IsHidden(c.Name) || !sel.Contains(c.Name) {
			continue
		}
		or = append(or, squirrel.Like{c.Name: "%" + search + "%"})
	}
	if len(or) == 0 {
		return nil, nil
	}
	return or, nil
}

// Paginate normalizes a page request. perPage <= 0 means every row.
func Paginate(perPage, page int) Window {
	if perPage <= 0 {
		return Window{Page: 1, PerPage: 0}
	}
	if page < 1 {
		page = 1
	}
	// keep (page-1)*perPage within int range
	if maxPage := math.MaxInt / perPage; page > maxPage {
		page = maxPage
	}
	return Window{Page: page, PerPage: perPage}
}

// BuildQueryPlan validates every list parameter and composes the plan.
// Column, relation and filter problems are reported together.
func BuildQueryPlan(schema *metadata.Schema, reg *metadata.Registry, d *metadata.Descriptor, p ListParams) (*QueryPlan, error) {
	sel, with, selErr := validateSelection(schema, reg, d, p.Columns, p.With)

	var filterErr *AppError
	var filter FilterExpression
	var preds []Predicate
	if p.Filter != "" {
		parsed, err := ParseFilter(p.Filter)
		if err != nil {
			filterErr = asAppError(err)
		} else if err := ValidateFilterKeys(schema, d, parsed); err != nil {
			filterErr = asAppError(err)
		} else {
			filter = parsed
			var typeErrs []*AppError
			for _, pair := range parsed {
				v, err := CoerceValue(schema, d, pair.Key, pair.Value)
				if err != nil {
					typeErrs = append(typeErrs, asAppError(err))
					continue
				}
				preds = append(preds, Predicate{Column: pair.Key, Value: v})
			}
			filterErr = mergeQueryErrors(typeErrs...)
		}
	}

	if merged := mergeQueryErrors(selErr, filterErr); merged != nil {
		return nil, merged
	}

	search, err := BuildSearchPredicates(schema, d, p.Search, sel)
	if err != nil {
		return nil, fmt.Errorf("build search: %w", err)
	}

	return &QueryPlan{
		Resource:   d,
		Columns:    sel,
		With:       with,
		Filter:     filter,
		Predicates: preds,
		Search:     search,
		Window:     Paginate(p.PerPage, p.Page),
	}, nil
}

// validateSelection validates columns and relations together and reconciles
// join keys when associations are requested.
func validateSelection(schema *metadata.Schema, reg *metadata.Registry, d *metadata.Descriptor, columns, with []string) (Selection, []string, *AppError) {
	sel, colErr := ValidateColumns(schema, d, columns)
	rels, relErr := ValidateRelations(reg, d, with)
	if err := mergeQueryErrors(asAppError(colErr), asAppError(relErr)); err != nil {
		return nil, nil, err
	}
	if len(rels) > 0 {
		names, err := schema.ColumnNames(d.Table)
		if err == nil {
			sel = ReconcileKeysForEagerLoad(names, sel)
		}
	}
	return sel, rels, nil
}

func asAppError(err error) *AppError {
	if err == nil {
		return nil
	}
	if appErr, ok := err.(*AppError); ok {
		return appErr
	}
	return &AppError{Status: 500, Message: err.Error()}
}

// splitList splits a comma separated query value, dropping empty segments.
func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
