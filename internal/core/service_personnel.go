package core

import (
	"context"
	"fmt"
	"strings"

	"github.com/JonMunkholm/iefreport/internal/store"
)

// Person is one staff member with the establishment they work in.
type Person struct {
	ID                   int64  `json:"id"`
	Matricule            string `json:"matricule"`
	Nom                  string `json:"nom"`
	Prenom               string `json:"prenom"`
	Genre                string `json:"genre"`
	Corps                string `json:"corps"`
	Grade                string `json:"grade"`
	Fonction             string `json:"fonction"`
	Specialite           string `json:"specialite"`
	Service              string `json:"service,omitempty"`
	Contact              string `json:"contact"`
	Email                string `json:"email,omitempty"`
	Statut               string `json:"statut,omitempty"`
	DiplomeAcademique    string `json:"diplome_academique,omitempty"`
	DiplomeProfessionnel string `json:"diplome_professionnel,omitempty"`
	EstablishmentID      int64  `json:"etablissement_id,omitempty"`
	Establishment        string `json:"etablissement_nom"`
	EstablishmentType    string `json:"type_etablissement"`
	Commune              string `json:"commune_nom"`
	Arrondissement       string `json:"arrondissement"`
}

// FullName is "Prenom Nom", or just the name when no first name is known.
func (p Person) FullName() string {
	return strings.TrimSpace(p.Prenom + " " + p.Nom)
}

// GenderLabel spells out the gender code.
func (p Person) GenderLabel() string {
	return GenderLabel(p.Genre)
}

// Assigned reports whether the person works in an establishment or a service.
func (p Person) Assigned() bool {
	return p.EstablishmentID != 0 || strings.TrimSpace(p.Service) != ""
}

const personSelect = `SELECT p.id, p.matricule, p.nom, p.prenom, p.genre, p.corps, p.grade,
    p.fonction, p.specialite, p.service, p.contact, p.email, p.statut,
    p.diplome_academique, p.diplome_professionnel, p.etablissement_id,
    e.nom, e.type_etablissement, c.nom, c.arrondissement
FROM personnel p
LEFT JOIN etablissements e ON e.id = p.etablissement_id
LEFT JOIN communes c ON c.id = e.commune_id`

func scanPerson(sc rowScanner) (Person, error) {
	var p Person
	err := sc.Scan(
		&p.ID, &p.Matricule, &p.Nom, text{&p.Prenom}, text{&p.Genre}, text{&p.Corps}, text{&p.Grade},
		text{&p.Fonction}, text{&p.Specialite}, text{&p.Service}, text{&p.Contact}, text{&p.Email}, text{&p.Statut},
		text{&p.DiplomeAcademique}, text{&p.DiplomeProfessionnel}, nullable{&p.EstablishmentID},
		text{&p.Establishment}, text{&p.EstablishmentType}, text{&p.Commune}, text{&p.Arrondissement},
	)
	return p, err
}

func (s *Service) people(ctx context.Context, q string, args ...any) ([]Person, error) {
	rows, err := s.query(ctx, q, args...)
	if err != nil {
		return nil, store.Translate(err)
	}
	defer rows.Close()

	var out []Person
	for rows.Next() {
		p, err := scanPerson(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// GetPerson returns one staff member. Returns store.ErrNotFound for an
// unknown id.
func (s *Service) GetPerson(ctx context.Context, id int64) (*Person, error) {
	p, err := scanPerson(s.queryRow(ctx, personSelect+" WHERE p.id = ?", id))
	if err != nil {
		return nil, fmt.Errorf("person %d: %w", id, store.Translate(err))
	}
	return &p, nil
}

// Unassigned lists the staff attached to neither an establishment nor a
// service.
type Unassigned struct {
	Personnel []Person   `json:"personnel"`
	Stats     StaffStats `json:"stats"`
}

// GetUnassigned returns the unassigned staff ordered by name.
func (s *Service) GetUnassigned(ctx context.Context) (*Unassigned, error) {
	cond := "NOT " + assigned("p")
	list, err := s.people(ctx, personSelect+" WHERE "+cond+" ORDER BY p.nom, p.prenom, p.id")
	if err != nil {
		return nil, fmt.Errorf("unassigned staff: %w", err)
	}
	stats, err := s.staffStats(ctx, cond)
	if err != nil {
		return nil, fmt.Errorf("unassigned stats: %w", err)
	}
	return &Unassigned{Personnel: list, Stats: stats}, nil
}

// GroupAnalysis is one row of a per-corps or per-fonction breakdown.
type GroupAnalysis struct {
	Label          string `json:"libelle"`
	Total          int    `json:"total"`
	Men            int    `json:"hommes"`
	Women          int    `json:"femmes"`
	Assigned       int    `json:"affectes"`
	Establishments int    `json:"nb_etablissements"`
}

// GradeAnalysis is one row of the per-grade breakdown.
type GradeAnalysis struct {
	Grade    string  `json:"grade"`
	Total    int     `json:"total"`
	Assigned int     `json:"affectes"`
	Rate     float64 `json:"taux_affectation"`
}

// ArrondissementStaff is the staff distribution over one arrondissement.
type ArrondissementStaff struct {
	Arrondissement   string  `json:"arrondissement"`
	Personnel        int     `json:"nb_personnel"`
	Establishments   int     `json:"nb_etablissements"`
	Corps            int     `json:"nb_corps"`
	PerEstablishment float64 `json:"personnel_par_etablissement"`
}

// PersonnelAnalytics is the personnel analytics page.
type PersonnelAnalytics struct {
	ByCorps          []GroupAnalysis       `json:"par_corps"`
	ByFonction       []GroupAnalysis       `json:"par_fonction"`
	ByGrade          []GradeAnalysis       `json:"par_grade"`
	BySpecialite     []LabelCount          `json:"par_specialite"`
	Qualifications   []LabelCount          `json:"qualifications"`
	ByArrondissement []ArrondissementStaff `json:"par_arrondissement"`
}

// GetPersonnelAnalytics returns the staff breakdowns.
func (s *Service) GetPersonnelAnalytics(ctx context.Context) (*PersonnelAnalytics, error) {
	a := &PersonnelAnalytics{}
	var err error

	if a.ByCorps, err = s.groupAnalysis(ctx, "corps"); err != nil {
		return nil, err
	}
	if a.ByFonction, err = s.groupAnalysis(ctx, "fonction"); err != nil {
		return nil, err
	}
	if a.ByGrade, err = s.gradeAnalysis(ctx); err != nil {
		return nil, err
	}
	if a.BySpecialite, err = s.personnelBreakdown(ctx, "specialite", 20); err != nil {
		return nil, err
	}
	if a.Qualifications, err = s.personnelBreakdown(ctx, "diplome_academique", 15); err != nil {
		return nil, err
	}
	if a.ByArrondissement, err = s.staffByArrondissement(ctx); err != nil {
		return nil, err
	}
	return a, nil
}

// groupAnalysis breaks the staff down by corps or fonction.
func (s *Service) groupAnalysis(ctx context.Context, column string) ([]GroupAnalysis, error) {
	if column != "corps" && column != "fonction" {
		return nil, fmt.Errorf("group analysis: unsupported column %q", column)
	}
	col := "p." + column
	q := `SELECT ` + col + `, COUNT(*) AS total, ` +
		countIf(isMale("p.genre")) + `, ` +
		countIf(isFemale("p.genre")) + `, ` +
		countIf(assigned("p")) + `,
    COUNT(DISTINCT p.etablissement_id)
FROM personnel p
WHERE ` + notBlank(col) + `
GROUP BY ` + col + `
ORDER BY total DESC, ` + col

	rows, err := s.query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("personnel by %s: %w", column, store.Translate(err))
	}
	defer rows.Close()

	var out []GroupAnalysis
	for rows.Next() {
		var g GroupAnalysis
		if err := rows.Scan(&g.Label, &g.Total, &g.Men, &g.Women, &g.Assigned, &g.Establishments); err != nil {
			return nil, fmt.Errorf("personnel by %s: %w", column, err)
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

var gradeAnalysisSQL = `SELECT p.grade, COUNT(*) AS total, ` + countIf(assigned("p")) + `
FROM personnel p
WHERE ` + notBlank("p.grade") + `
GROUP BY p.grade
ORDER BY total DESC, p.grade`

func (s *Service) gradeAnalysis(ctx context.Context) ([]GradeAnalysis, error) {
	rows, err := s.query(ctx, gradeAnalysisSQL)
	if err != nil {
		return nil, fmt.Errorf("personnel by grade: %w", store.Translate(err))
	}
	defer rows.Close()

	var out []GradeAnalysis
	for rows.Next() {
		var g GradeAnalysis
		if err := rows.Scan(&g.Grade, &g.Total, &g.Assigned); err != nil {
			return nil, fmt.Errorf("personnel by grade: %w", err)
		}
		g.Rate = percent(g.Assigned, g.Total)
		out = append(out, g)
	}
	return out, rows.Err()
}

const staffByArrondissementSQL = `SELECT c.arrondissement, COUNT(p.id) AS total,
    COUNT(DISTINCT e.id), COUNT(DISTINCT p.corps)
FROM communes c
JOIN etablissements e ON e.commune_id = c.id
JOIN personnel p ON p.etablissement_id = e.id
WHERE c.arrondissement IS NOT NULL
GROUP BY c.arrondissement
HAVING COUNT(p.id) > 0
ORDER BY total DESC, c.arrondissement`

func (s *Service) staffByArrondissement(ctx context.Context) ([]ArrondissementStaff, error) {
	rows, err := s.query(ctx, staffByArrondissementSQL)
	if err != nil {
		return nil, fmt.Errorf("staff by arrondissement: %w", store.Translate(err))
	}
	defer rows.Close()

	var out []ArrondissementStaff
	for rows.Next() {
		var a ArrondissementStaff
		if err := rows.Scan(&a.Arrondissement, &a.Personnel, &a.Establishments, &a.Corps); err != nil {
			return nil, fmt.Errorf("staff by arrondissement: %w", err)
		}
		a.PerEstablishment = ratio(a.Personnel, a.Establishments)
		out = append(out, a)
	}
	return out, rows.Err()
}

// PersonnelFilters are the select options of the personnel list.
type PersonnelFilters struct {
	Corps          []string `json:"corps"`
	Grades         []string `json:"grades"`
	Fonctions      []string `json:"fonctions"`
	Specialites    []string `json:"specialites"`
	Genres         []string `json:"genres"`
	Establishments []IDName `json:"etablissements"`
}

// GetPersonnelFilters returns the distinct values offered as filters.
func (s *Service) GetPersonnelFilters(ctx context.Context) (*PersonnelFilters, error) {
	f := &PersonnelFilters{}
	var err error
	if f.Corps, err = s.distinct(ctx, "personnel", "corps"); err != nil {
		return nil, err
	}
	if f.Grades, err = s.distinct(ctx, "personnel", "grade"); err != nil {
		return nil, err
	}
	if f.Fonctions, err = s.distinct(ctx, "personnel", "fonction"); err != nil {
		return nil, err
	}
	if f.Specialites, err = s.distinct(ctx, "personnel", "specialite"); err != nil {
		return nil, err
	}
	if f.Genres, err = s.distinct(ctx, "personnel", "genre"); err != nil {
		return nil, err
	}
	f.Establishments, err = s.idNames(ctx, `SELECT DISTINCT e.id, e.nom
FROM etablissements e
JOIN personnel p ON p.etablissement_id = e.id
ORDER BY e.nom, e.id`)
	if err != nil {
		return nil, fmt.Errorf("establishment options: %w", err)
	}
	return f, nil
}
