package tables

import "github.com/JonMunkholm/iefreport/internal/core"

func init() {
	core.Register(core.TableDefinition{
		Info: core.TableInfo{
			Key:   "communes",
			Group: "Territoire",
			Label: "Communes",
		},
		From:   "communes c",
		IDExpr: "c.id",
		FieldSpecs: []core.FieldSpec{
			{Name: "nom", Label: "Commune", Expr: "c.nom", Sortable: true, Export: true},
			{Name: "arrondissement", Label: "Arrondissement", Expr: "c.arrondissement", Sortable: true, Export: true},
			{Name: "departement", Label: "Département", Expr: "c.departement", Export: true},
			{
				Name:     "etablissements",
				Label:    "Établissements",
				Expr:     "(SELECT COUNT(*) FROM etablissements e WHERE e.commune_id = c.id)",
				Type:     core.FieldInt,
				Sortable: true,
				Export:   true,
			},
			{
				Name:     "personnel",
				Label:    "Personnel",
				Expr:     "(SELECT COUNT(*) FROM personnel p JOIN etablissements e ON e.id = p.etablissement_id WHERE e.commune_id = c.id)",
				Type:     core.FieldInt,
				Sortable: true,
				Export:   true,
			},
		},
		SearchColumns: []string{"c.nom", "c.arrondissement"},
		Filters: []core.FilterSpec{
			{Param: "arrondissement", Label: "Arrondissement", Expr: "c.arrondissement", Operator: core.OpEquals},
		},
		DefaultOrder: []string{"c.nom"},
		// Rows link to the establishments of the commune.
		DetailPath: "/etablissements?commune_id=%d",
	})
}
