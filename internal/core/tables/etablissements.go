package tables

import "github.com/JonMunkholm/iefreport/internal/core"

func init() {
	core.Register(core.TableDefinition{
		Info: core.TableInfo{
			Key:   "etablissements",
			Group: "Établissements",
			Label: "Établissements",
		},
		From:   "etablissements e LEFT JOIN communes c ON c.id = e.commune_id",
		IDExpr: "e.id",
		FieldSpecs: []core.FieldSpec{
			{Name: "nom", Label: "Établissement", Expr: "e.nom", Sortable: true, Export: true},
			{Name: "type", Label: "Type", Expr: "e.type_etablissement", Sortable: true, Export: true},
			{Name: "statut", Label: "Statut", Expr: "e.statut", Sortable: true, Export: true},
			{Name: "commune", Label: "Commune", Expr: "c.nom", Sortable: true, Export: true},
			{Name: "arrondissement", Label: "Arrondissement", Expr: "c.arrondissement", Sortable: true, Export: true},
			{Name: "zone", Label: "Zone", Expr: "e.zone", Export: true},
			{Name: "directeur", Label: "Directeur", Expr: "e.directeur", Sortable: true, Export: true},
			{Name: "contact", Label: "Contact", Expr: "e.contact_1", Export: true},
			{Name: "email", Label: "Email directeur", Expr: "e.email_directeur", Export: true},
			{
				Name:     "personnel",
				Label:    "Personnel",
				Expr:     "(SELECT COUNT(*) FROM personnel p WHERE p.etablissement_id = e.id)",
				Type:     core.FieldInt,
				Sortable: true,
				Export:   true,
			},
		},
		SearchColumns: []string{"e.nom", "e.directeur", "c.nom"},
		Filters: []core.FilterSpec{
			{Param: "type", Label: "Type", Expr: "e.type_etablissement", Operator: core.OpEquals},
			{Param: "commune_id", Label: "Commune", Expr: "e.commune_id", Operator: core.OpID},
			{Param: "statut", Label: "Statut", Expr: "e.statut", Operator: core.OpContains},
			{Param: "zone", Label: "Zone", Expr: "e.zone", Operator: core.OpEquals},
		},
		DefaultOrder: []string{"e.nom"},
		DetailPath:   "/etablissements/%d",
	})
}
