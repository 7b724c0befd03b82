package core

import (
	"errors"
	"reflect"
	"strings"
	"testing"
)

// ============================================================================
// WhereBuilder Tests
// ============================================================================

func TestNewWhereBuilder(t *testing.T) {
	wb := NewWhereBuilder()

	if wb == nil {
		t.Fatal("NewWhereBuilder returned nil")
	}
	if wb.Len() != 0 {
		t.Errorf("expected empty conditions, got %d", wb.Len())
	}
	if len(wb.args) != 0 {
		t.Errorf("expected empty args, got %d", len(wb.args))
	}
}

func TestWhereBuilder_Build_Empty(t *testing.T) {
	wb := NewWhereBuilder()
	whereClause, args := wb.Build()

	if whereClause != "" {
		t.Errorf("expected empty string for no conditions, got %q", whereClause)
	}

	if args != nil {
		t.Errorf("expected nil args for no conditions, got %v", args)
	}
}

func TestWhereBuilder_Add_MultipleConditions(t *testing.T) {
	wb := NewWhereBuilder()
	wb.Add("e.type_etablissement", "Primaire")
	wb.AddInt("e.commune_id", 7)

	whereClause, args := wb.Build()

	expectedClause := " WHERE e.type_etablissement = ? AND e.commune_id = ?"
	if whereClause != expectedClause {
		t.Errorf("expected %q, got %q", expectedClause, whereClause)
	}

	if !reflect.DeepEqual(args, []any{"Primaire", int64(7)}) {
		t.Errorf("unexpected args %v", args)
	}
}

func TestWhereBuilder_Add_EmptyValue_Skipped(t *testing.T) {
	wb := NewWhereBuilder()
	wb.Add("statut", "")
	wb.AddContains("statut", "")
	wb.AddSearch("   ", "nom")

	if wb.Len() != 0 {
		t.Errorf("expected no conditions, got %d", wb.Len())
	}
}

func TestWhereBuilder_AddContains(t *testing.T) {
	wb := NewWhereBuilder()
	wb.AddContains("e.statut", "Public")

	whereClause, args := wb.Build()

	expectedClause := ` WHERE LOWER(e.statut) LIKE LOWER(?) ESCAPE '\'`
	if whereClause != expectedClause {
		t.Errorf("expected %q, got %q", expectedClause, whereClause)
	}
	if len(args) != 1 || args[0] != "%Public%" {
		t.Errorf("unexpected args %v", args)
	}
}

func TestWhereBuilder_AddSearch(t *testing.T) {
	tests := []struct {
		name       string
		term       string
		columns    []string
		wantClause string
		wantArgs   []any
	}{
		{
			name:       "no columns skipped",
			term:       "diop",
			wantClause: "",
		},
		{
			name:       "single column",
			term:       "diop",
			columns:    []string{"p.nom"},
			wantClause: ` WHERE (LOWER(p.nom) LIKE LOWER(?) ESCAPE '\')`,
			wantArgs:   []any{"%diop%"},
		},
		{
			name:    "several columns share the pattern",
			term:    " École ",
			columns: []string{"e.nom", "e.directeur", "c.nom"},
			wantClause: ` WHERE (LOWER(e.nom) LIKE LOWER(?) ESCAPE '\'` +
				` OR LOWER(e.directeur) LIKE LOWER(?) ESCAPE '\'` +
				` OR LOWER(c.nom) LIKE LOWER(?) ESCAPE '\')`,
			wantArgs: []any{"%École%", "%École%", "%École%"},
		},
		{
			name:       "wildcards are escaped",
			term:       `50%_a\b`,
			columns:    []string{"nom"},
			wantClause: ` WHERE (LOWER(nom) LIKE LOWER(?) ESCAPE '\')`,
			wantArgs:   []any{`%50\%\_a\\b%`},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wb := NewWhereBuilder()
			wb.AddSearch(tt.term, tt.columns...)
			clause, args := wb.Build()

			if clause != tt.wantClause {
				t.Errorf("clause = %q, want %q", clause, tt.wantClause)
			}
			if len(args) != len(tt.wantArgs) || (len(args) > 0 && !reflect.DeepEqual(args, tt.wantArgs)) {
				t.Errorf("args = %v, want %v", args, tt.wantArgs)
			}
		})
	}
}

func TestWhereBuilder_AddNull(t *testing.T) {
	wb := NewWhereBuilder()
	wb.AddNull("p.etablissement_id", true)
	wb.AddNull("p.grade", false)

	whereClause, args := wb.Build()

	expectedClause := " WHERE p.etablissement_id IS NULL AND p.grade IS NOT NULL"
	if whereClause != expectedClause {
		t.Errorf("expected %q, got %q", expectedClause, whereClause)
	}
	if len(args) != 0 {
		t.Errorf("expected no args, got %v", args)
	}
}

func TestWhereBuilder_AddCondition_KeepsArgOrder(t *testing.T) {
	wb := NewWhereBuilder()
	wb.Add("a", "1")
	wb.AddCondition("b IN (?, ?)", "2", "3")
	wb.Add("c", "4")

	_, args := wb.Build()
	if !reflect.DeepEqual(args, []any{"1", "2", "3", "4"}) {
		t.Errorf("unexpected args %v", args)
	}
}

func TestWhereBuilder_AddFilters(t *testing.T) {
	filters := []FilterSpec{
		{Param: "type", Expr: "e.type_etablissement", Operator: OpEquals},
		{Param: "statut", Expr: "e.statut", Operator: OpContains},
		{Param: "commune_id", Expr: "e.commune_id", Operator: OpID},
		{Param: "genre", Expr: "p.genre", Operator: OpGender},
		{Param: "affectation", Expr: "p.etablissement_id IS NOT NULL", Operator: OpAssignment},
	}

	tests := []struct {
		name       string
		values     map[string]string
		wantClause string
		wantArgs   []any
		wantErr    bool
	}{
		{
			name:       "equals",
			values:     map[string]string{"type": "Primaire"},
			wantClause: " WHERE e.type_etablissement = ?",
			wantArgs:   []any{"Primaire"},
		},
		{
			name:       "contains escapes wildcards",
			values:     map[string]string{"statut": "50%"},
			wantClause: ` WHERE LOWER(e.statut) LIKE LOWER(?) ESCAPE '\'`,
			wantArgs:   []any{`%50\%%`},
		},
		{
			name:       "id",
			values:     map[string]string{"commune_id": " 12 "},
			wantClause: " WHERE e.commune_id = ?",
			wantArgs:   []any{int64(12)},
		},
		{
			name:    "id not a number",
			values:  map[string]string{"commune_id": "douze"},
			wantErr: true,
		},
		{
			name:       "gender folds M and H",
			values:     map[string]string{"genre": "h"},
			wantClause: " WHERE p.genre IN ('M', 'H')",
		},
		{
			name:       "gender F",
			values:     map[string]string{"genre": "F"},
			wantClause: " WHERE p.genre = 'F'",
		},
		{
			name:       "unassigned",
			values:     map[string]string{"affectation": "non_affecte"},
			wantClause: " WHERE NOT p.etablissement_id IS NOT NULL",
		},
		{
			name:    "assignment unknown value",
			values:  map[string]string{"affectation": "peut-etre"},
			wantErr: true,
		},
		{
			name:   "undeclared and blank params ignored",
			values: map[string]string{"zone": "Nord", "type": "  "},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wb := NewWhereBuilder()
			err := wb.AddFilters(filters, tt.values)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidFilter) {
					t.Fatalf("expected ErrInvalidFilter, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			whereClause, args := wb.Build()
			if whereClause != tt.wantClause {
				t.Errorf("expected %q, got %q", tt.wantClause, whereClause)
			}
			if len(args) != len(tt.wantArgs) || (len(args) > 0 && !reflect.DeepEqual(args, tt.wantArgs)) {
				t.Errorf("expected args %v, got %v", tt.wantArgs, args)
			}
		})
	}
}

func TestWhereBuilder_AddFilters_UnsupportedOperator(t *testing.T) {
	wb := NewWhereBuilder()
	err := wb.AddFilters([]FilterSpec{{Param: "x", Expr: "x", Operator: "between"}}, map[string]string{"x": "1"})
	if !errors.Is(err, ErrInvalidFilter) {
		t.Fatalf("expected ErrInvalidFilter, got %v", err)
	}
}

func TestWhereBuilder_ComplexQuery(t *testing.T) {
	wb := NewWhereBuilder()

	wb.AddSearch("diop", "p.nom", "p.prenom")
	err := wb.AddFilters([]FilterSpec{
		{Param: "grade", Expr: "p.grade", Operator: OpEquals},
		{Param: "etablissement_id", Expr: "p.etablissement_id", Operator: OpID},
	}, map[string]string{"grade": "A1", "etablissement_id": "3"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	wb.AddNull("p.corps", false)

	whereClause, args := wb.Build()

	expectedConditions := []string{
		"LOWER(p.nom) LIKE",
		"LOWER(p.prenom) LIKE",
		"p.grade = ?",
		"p.etablissement_id = ?",
		"p.corps IS NOT NULL",
	}
	for _, cond := range expectedConditions {
		if !strings.Contains(whereClause, cond) {
			t.Errorf("expected whereClause to contain %q, got %q", cond, whereClause)
		}
	}

	// 2 (search) + 2 (filters) = 4
	if len(args) != 4 {
		t.Fatalf("expected 4 args, got %d: %v", len(args), args)
	}
	if args[0] != "%diop%" {
		t.Errorf("expected first arg to be '%%diop%%', got %v", args[0])
	}
	if wb.Len() != 4 {
		t.Errorf("expected 4 conditions, got %d", wb.Len())
	}
}
