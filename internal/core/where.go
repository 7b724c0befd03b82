package core

import (
	"fmt"
	"strconv"
	"strings"
)

// WhereBuilder accumulates AND-combined conditions with '?' placeholders.
// The store rebinds the placeholders for dialects that number them.
type WhereBuilder struct {
	conditions []string
	args       []any
}

// NewWhereBuilder creates an empty builder.
func NewWhereBuilder() *WhereBuilder {
	return &WhereBuilder{}
}

// Add adds "column = ?". Empty values are skipped.
func (wb *WhereBuilder) Add(column, value string) {
	if value == "" {
		return
	}
	wb.AddCondition(column+" = ?", value)
}

// AddInt adds "column = ?" with an integer argument.
func (wb *WhereBuilder) AddInt(column string, value int64) {
	wb.AddCondition(column+" = ?", value)
}

// AddContains adds a case-insensitive substring match. Empty values are
// skipped.
func (wb *WhereBuilder) AddContains(column, value string) {
	if value == "" {
		return
	}
	wb.AddCondition(likeExpr(column), containsPattern(value))
}

// AddSearch matches term against any of columns. Empty terms are skipped.
func (wb *WhereBuilder) AddSearch(term string, columns ...string) {
	term = strings.TrimSpace(term)
	if term == "" || len(columns) == 0 {
		return
	}

	parts := make([]string, len(columns))
	args := make([]any, len(columns))
	pattern := containsPattern(term)
	for i, col := range columns {
		parts[i] = likeExpr(col)
		args[i] = pattern
	}
	wb.AddCondition("("+strings.Join(parts, " OR ")+")", args...)
}

// AddNull adds "column IS NULL" or "column IS NOT NULL".
func (wb *WhereBuilder) AddNull(column string, isNull bool) {
	if isNull {
		wb.AddCondition(column + " IS NULL")
		return
	}
	wb.AddCondition(column + " IS NOT NULL")
}

// AddFilters applies the filters whose param has a value in values.
// Params not declared in filters are ignored; blank values are skipped.
func (wb *WhereBuilder) AddFilters(filters []FilterSpec, values map[string]string) error {
	for _, f := range filters {
		value := strings.TrimSpace(values[f.Param])
		if value == "" {
			continue
		}
		if err := wb.addFilter(f, value); err != nil {
			return err
		}
	}
	return nil
}

func (wb *WhereBuilder) addFilter(f FilterSpec, value string) error {
	switch f.Operator {
	case OpEquals:
		wb.Add(f.Expr, value)

	case OpContains:
		wb.AddContains(f.Expr, value)

	case OpID:
		id, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return fmt.Errorf("%w: %s must be a number, got %q", ErrInvalidFilter, f.Param, value)
		}
		wb.AddInt(f.Expr, id)

	case OpGender:
		switch strings.ToUpper(value) {
		case "M", "H":
			wb.AddCondition(f.Expr + " IN ('M', 'H')")
		case "F":
			wb.AddCondition(f.Expr + " = 'F'")
		default:
			wb.Add(f.Expr, value)
		}

	case OpAssignment:
		switch value {
		case "affecte":
			wb.AddCondition(f.Expr)
		case "non_affecte":
			wb.AddCondition("NOT " + f.Expr)
		default:
			return fmt.Errorf("%w: %s must be affecte or non_affecte, got %q", ErrInvalidFilter, f.Param, value)
		}

	default:
		return fmt.Errorf("%w: unsupported operator %q", ErrInvalidFilter, f.Operator)
	}
	return nil
}

// AddCondition adds a raw condition. The number of '?' in cond must match
// len(args).
func (wb *WhereBuilder) AddCondition(cond string, args ...any) {
	wb.conditions = append(wb.conditions, cond)
	wb.args = append(wb.args, args...)
}

// Len returns the number of conditions.
func (wb *WhereBuilder) Len() int {
	return len(wb.conditions)
}

// Build returns " WHERE ..." (with a leading space) and its arguments, or
// an empty clause and nil args when there are no conditions.
func (wb *WhereBuilder) Build() (string, []any) {
	if len(wb.conditions) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(wb.conditions, " AND "), wb.args
}

// Both sides go through SQL LOWER so that sqlite and postgres fold case the
// same way.
func likeExpr(column string) string {
	return "LOWER(" + column + `) LIKE LOWER(?) ESCAPE '\'`
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`)

func containsPattern(value string) string {
	return "%" + likeEscaper.Replace(value) + "%"
}
