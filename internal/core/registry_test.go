package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validDefinition() TableDefinition {
	return TableDefinition{
		Info: TableInfo{Key: "zones", Group: "Territoire", Label: "Zones"},
		From: "zones z",
		FieldSpecs: []FieldSpec{
			{Name: "nom", Label: "Zone", Expr: "z.nom"},
			{Name: "code", Label: "Code", Expr: "z.code"},
		},
		Filters: []FilterSpec{
			{Param: "code", Expr: "z.code", Operator: OpEquals},
		},
		DefaultOrder: []string{"z.nom"},
	}
}

func TestValidateDefinition_Valid(t *testing.T) {
	assert.NoError(t, validateDefinition(validDefinition()))
}

func TestValidateDefinition_Errors(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*TableDefinition)
		want   string
	}{
		{"empty key", func(d *TableDefinition) { d.Info.Key = "" }, "empty key"},
		{"no from", func(d *TableDefinition) { d.From = "" }, "empty From"},
		{"no fields", func(d *TableDefinition) { d.FieldSpecs = nil }, "no fields"},
		{"no order", func(d *TableDefinition) { d.DefaultOrder = nil }, "no default order"},
		{
			"duplicate field",
			func(d *TableDefinition) { d.FieldSpecs = append(d.FieldSpecs, FieldSpec{Name: "nom", Expr: "z.nom2"}) },
			`field "nom" declared twice`,
		},
		{
			"field without expr",
			func(d *TableDefinition) { d.FieldSpecs[1].Expr = "" },
			`field "code": name and expr are required`,
		},
		{
			"duplicate filter",
			func(d *TableDefinition) { d.Filters = append(d.Filters, d.Filters[0]) },
			`filter "code" declared twice`,
		},
		{
			"reserved filter",
			func(d *TableDefinition) { d.Filters[0].Param = "sort" },
			`filter "sort" shadows a listing parameter`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			def := validDefinition()
			tt.modify(&def)
			err := validateDefinition(def)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestRegister_InvalidPanicsWithoutRegistering(t *testing.T) {
	def := validDefinition()
	def.Info.Key = "zones_invalid"
	def.DefaultOrder = nil
	before := TableCount()

	assert.PanicsWithValue(t, `register table "zones_invalid": no default order`, func() {
		Register(def)
	})
	assert.Equal(t, before, TableCount())
	_, ok := Get("zones_invalid")
	assert.False(t, ok)
}

func TestGroups_SortedAndDistinct(t *testing.T) {
	groups := Groups()
	assert.IsIncreasing(t, groups)
	for _, g := range groups {
		for _, def := range ByGroup(g) {
			assert.Equal(t, g, def.Info.Group)
		}
	}
}
