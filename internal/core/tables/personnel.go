package tables

import "github.com/JonMunkholm/iefreport/internal/core"

func init() {
	core.Register(core.TableDefinition{
		Info: core.TableInfo{
			Key:   "personnel",
			Group: "Personnel",
			Label: "Personnel",
		},
		From: `personnel p
LEFT JOIN etablissements e ON e.id = p.etablissement_id
LEFT JOIN communes c ON c.id = e.commune_id`,
		IDExpr: "p.id",
		FieldSpecs: []core.FieldSpec{
			{Name: "matricule", Label: "Matricule", Expr: "p.matricule", Sortable: true, Export: true},
			{Name: "nom", Label: "Nom", Expr: "p.nom", Sortable: true, Export: true},
			{Name: "prenom", Label: "Prénom", Expr: "p.prenom", Sortable: true, Export: true},
			{Name: "genre", Label: "Genre", Expr: "p.genre", Type: core.FieldGender, Sortable: true, Export: true},
			{Name: "corps", Label: "Corps", Expr: "p.corps", Sortable: true, Export: true},
			{Name: "grade", Label: "Grade", Expr: "p.grade", Sortable: true, Export: true},
			{Name: "fonction", Label: "Fonction", Expr: "p.fonction", Sortable: true, Export: true},
			{Name: "specialite", Label: "Spécialité", Expr: "p.specialite", Sortable: true, Export: true},
			{Name: "etablissement", Label: "Établissement", Expr: "e.nom", Sortable: true, Export: true},
			{Name: "commune", Label: "Commune", Expr: "c.nom", Sortable: true, Export: true},
			{Name: "contact", Label: "Contact", Expr: "p.contact", Export: true},
			{
				Name:   "affectation",
				Label:  "Affectation",
				Expr:   "CASE WHEN p.etablissement_id IS NOT NULL THEN 'Établissement' WHEN COALESCE(p.service, '') <> '' THEN 'Service' ELSE 'Non affecté' END",
				Export: true,
			},
		},
		SearchColumns: []string{"p.nom", "p.prenom", "p.matricule"},
		Filters: []core.FilterSpec{
			{Param: "corps", Label: "Corps", Expr: "p.corps", Operator: core.OpEquals},
			{Param: "grade", Label: "Grade", Expr: "p.grade", Operator: core.OpEquals},
			{Param: "fonction", Label: "Fonction", Expr: "p.fonction", Operator: core.OpEquals},
			{Param: "specialite", Label: "Spécialité", Expr: "p.specialite", Operator: core.OpEquals},
			{Param: "genre", Label: "Genre", Expr: "p.genre", Operator: core.OpGender},
			{Param: "etablissement_id", Label: "Établissement", Expr: "p.etablissement_id", Operator: core.OpID},
			{Param: "affectation", Label: "Affectation", Expr: assignedExpr, Operator: core.OpAssignment},
		},
		DefaultOrder: []string{"p.nom", "p.prenom"},
		DetailPath:   "/personnel/%d",
	})
}
