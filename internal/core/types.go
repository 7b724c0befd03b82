package core

// FieldType represents how a column's values are rendered.
type FieldType int

const (
	FieldText FieldType = iota
	FieldInt
	FieldGender
)

// FieldSpec describes one displayed column of a browsable table.
type FieldSpec struct {
	Name     string    // Query and JSON key: "commune"
	Label    string    // Display header: "Commune"
	Expr     string    // SQL expression producing the value
	Type     FieldType // Rendering hint
	Sortable bool      // May be used in ?sort=
	Export   bool      // Included in CSV exports
}

// FilterOperator represents the comparison a filter applies.
type FilterOperator string

const (
	OpEquals     FilterOperator = "eq"         // expr = value
	OpContains   FilterOperator = "contains"   // case-insensitive substring
	OpID         FilterOperator = "id"         // integer foreign key
	OpGender     FilterOperator = "gender"     // M matches M and H
	OpAssignment FilterOperator = "assignment" // affecte / non_affecte
)

// FilterSpec binds a query parameter to a condition on Expr.
type FilterSpec struct {
	Param    string
	Label    string
	Expr     string
	Operator FilterOperator
}

// TableInfo contains display information about a table.
type TableInfo struct {
	Key     string   // Unique identifier and URL segment: "etablissements"
	Group   string   // Navigation group: "Établissements"
	Label   string   // Display name
	Columns []string // Header labels, derived from FieldSpecs
}

// TableDefinition contains everything needed to list, filter and export a
// table.
type TableDefinition struct {
	Info TableInfo

	// From is the FROM clause, joins included.
	From string

	// IDExpr selects the row id used for detail links.
	IDExpr string

	FieldSpecs []FieldSpec

	// SearchColumns are OR-ed together for the free-text search.
	SearchColumns []string

	Filters []FilterSpec

	// DefaultOrder is used when no valid sort is requested.
	DefaultOrder []string

	// DetailPath formats a row id into its detail page. Empty for tables
	// without one.
	DetailPath string
}

// Field returns the FieldSpec named name.
func (t TableDefinition) Field(name string) (FieldSpec, bool) {
	for _, f := range t.FieldSpecs {
		if f.Name == name {
			return f, true
		}
	}
	return FieldSpec{}, false
}

// ExportFields returns the specs included in CSV exports.
func (t TableDefinition) ExportFields() []FieldSpec {
	var out []FieldSpec
	for _, f := range t.FieldSpecs {
		if f.Export {
			out = append(out, f)
		}
	}
	return out
}

// SortSpec represents a sort column and direction.
type SortSpec struct {
	Column string // FieldSpec name
	Dir    string // "asc" or "desc"
}

// ListQuery is a request for one page of a table.
type ListQuery struct {
	Page     int
	PageSize int
	Search   string
	Filters  map[string]string // FilterSpec param -> raw value
	Sort     SortSpec
}

// LabelCount is one bucket of a breakdown.
type LabelCount struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}
