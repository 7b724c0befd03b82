package core

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"github.com/JonMunkholm/iefreport/internal/store"
)

// TableRow is one listed row. Values follow the table's FieldSpecs; NULL is "".
type TableRow struct {
	ID     int64
	Link   string
	Values []string
}

// TableDataResult contains one page of a table.
type TableDataResult struct {
	Table      TableInfo
	Fields     []FieldSpec
	Filters    []FilterSpec
	Rows       []TableRow
	Pagination Pagination
	Query      ListQuery // normalized request: invalid sort dropped, page clamped
}

// Records returns the rows keyed by field name, for JSON output.
func (r *TableDataResult) Records() []map[string]any {
	out := make([]map[string]any, len(r.Rows))
	for i, row := range r.Rows {
		rec := make(map[string]any, len(r.Fields)+1)
		rec["id"] = row.ID
		for j, f := range r.Fields {
			rec[f.Name] = typedValue(f, row.Values[j])
		}
		out[i] = rec
	}
	return out
}

// GetTableData fetches one filtered, sorted page of a registered table.
func (s *Service) GetTableData(ctx context.Context, tableKey string, q ListQuery) (*TableDataResult, error) {
	def, err := lookup(tableKey)
	if err != nil {
		return nil, err
	}

	wb, err := buildWhere(def, q)
	if err != nil {
		return nil, err
	}
	whereClause, args := wb.Build()

	total, err := s.count(ctx, "SELECT COUNT(*) FROM "+def.From+whereClause, args...)
	if err != nil {
		return nil, fmt.Errorf("count %s: %w", tableKey, err)
	}

	pageSize := q.PageSize
	if pageSize <= 0 {
		pageSize = s.cfg.PageSize
	}
	p := NewPagination(q.Page, pageSize, total)
	q.Page, q.PageSize = p.Page, p.PerPage

	order, sort := orderBy(def, q.Sort)
	q.Sort = sort

	query := selectClause(def, def.FieldSpecs) + whereClause + order + " LIMIT ? OFFSET ?"
	rows, err := s.query(ctx, query, append(args, p.PerPage, p.Offset())...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", tableKey, store.Translate(err))
	}
	defer rows.Close()

	result := &TableDataResult{
		Table:      def.Info,
		Fields:     def.FieldSpecs,
		Filters:    def.Filters,
		Pagination: p,
		Query:      q,
	}

	err = scanTableRows(rows, def.FieldSpecs, func(id int64, values []string) error {
		row := TableRow{ID: id, Values: values}
		if def.DetailPath != "" {
			row.Link = fmt.Sprintf(def.DetailPath, id)
		}
		result.Rows = append(result.Rows, row)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", tableKey, err)
	}

	return result, nil
}

// buildWhere turns the search term and filters of q into conditions.
func buildWhere(def TableDefinition, q ListQuery) (*WhereBuilder, error) {
	wb := NewWhereBuilder()
	wb.AddSearch(q.Search, def.SearchColumns...)
	if err := wb.AddFilters(def.Filters, q.Filters); err != nil {
		return nil, err
	}
	return wb, nil
}

// orderBy validates sort against the sortable fields. The row id is always
// the last key so pages are stable.
func orderBy(def TableDefinition, sort SortSpec) (string, SortSpec) {
	var parts []string
	valid := SortSpec{}

	if f, ok := def.Field(sort.Column); ok && f.Sortable {
		dir := strings.ToLower(sort.Dir)
		if dir != "desc" {
			dir = "asc"
		}
		parts = append(parts, f.Expr+" "+strings.ToUpper(dir))
		valid = SortSpec{Column: f.Name, Dir: dir}
	} else {
		parts = append(parts, def.DefaultOrder...)
	}
	parts = append(parts, def.IDExpr)

	return " ORDER BY " + strings.Join(parts, ", "), valid
}

func selectClause(def TableDefinition, fields []FieldSpec) string {
	cols := make([]string, 0, len(fields)+1)
	cols = append(cols, def.IDExpr)
	for _, f := range fields {
		cols = append(cols, f.Expr)
	}
	return "SELECT " + strings.Join(cols, ", ") + " FROM " + def.From
}

// scanTableRows reads "id, values..." rows and hands each to fn.
func scanTableRows(rows *sql.Rows, fields []FieldSpec, fn func(id int64, values []string) error) error {
	n := len(fields)
	raw := make([]sql.NullString, n)
	dest := make([]any, n+1)
	var id int64
	dest[0] = &id
	for i := range raw {
		dest[i+1] = &raw[i]
	}

	for rows.Next() {
		if err := rows.Scan(dest...); err != nil {
			return err
		}
		values := make([]string, n)
		for i, v := range raw {
			values[i] = displayValue(fields[i], v)
		}
		if err := fn(id, values); err != nil {
			return err
		}
	}
	return rows.Err()
}

func displayValue(f FieldSpec, v sql.NullString) string {
	if !v.Valid {
		return ""
	}
	if f.Type == FieldGender {
		return GenderLabel(v.String)
	}
	return v.String
}

func typedValue(f FieldSpec, v string) any {
	if f.Type == FieldInt {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return v
}

// GenderLabel spells out the gender codes used in the personnel export.
func GenderLabel(code string) string {
	switch strings.ToUpper(strings.TrimSpace(code)) {
	case "M", "H":
		return "Homme"
	case "F":
		return "Femme"
	default:
		return code
	}
}
