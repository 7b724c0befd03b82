package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/JonMunkholm/iefreport/internal/store"
)

// ErrUnknownReport is returned for a report kind that does not exist.
var ErrUnknownReport = errors.New("unknown report")

// ReportKind describes one of the available reports.
type ReportKind struct {
	Key         string `json:"key"`
	Title       string `json:"titre"`
	Description string `json:"description"`
}

// ReportKinds lists the reports in display order.
var ReportKinds = []ReportKind{
	{Key: "synthese", Title: "Synthèse générale", Description: "Chiffres clés, répartition par type et principales communes"},
	{Key: "etablissements", Title: "Rapport établissements", Description: "Types et statuts, complétude des données, distribution par commune"},
	{Key: "personnel", Title: "Rapport personnel", Description: "Corps et grades par genre, affectations, spécialités"},
	{Key: "couverture", Title: "Couverture territoriale", Description: "Couverture par arrondissement et par commune, zones critiques"},
}

// LookupReport returns the report kind for key.
func LookupReport(key string) (ReportKind, error) {
	for _, k := range ReportKinds {
		if k.Key == key {
			return k, nil
		}
	}
	return ReportKind{}, fmt.Errorf("%w: %s", ErrUnknownReport, key)
}

// ReportsIndex is the reports landing page.
type ReportsIndex struct {
	Kinds   []ReportKind   `json:"rapports"`
	Stats   DashboardStats `json:"stats"`
	LastRun *RunInfo       `json:"derniere_execution,omitempty"`
}

// GetReportsIndex returns the available reports with the headline figures.
func (s *Service) GetReportsIndex(ctx context.Context) (*ReportsIndex, error) {
	stats, err := s.GetDashboardStats(ctx)
	if err != nil {
		return nil, err
	}
	run, err := s.LastRun(ctx)
	if err != nil {
		return nil, err
	}
	return &ReportsIndex{Kinds: ReportKinds, Stats: stats, LastRun: run}, nil
}

// TypeShare is an establishment type with its share of the total.
type TypeShare struct {
	Type    string  `json:"type"`
	Count   int     `json:"nombre"`
	Percent float64 `json:"pourcentage"`
}

// Synthesis is the general summary report.
type Synthesis struct {
	Stats       DashboardStats   `json:"chiffres_cles"`
	Types       []TypeShare      `json:"types"`
	TopCommunes []CommuneFigures `json:"top_communes"`
	LastRun     *RunInfo         `json:"derniere_execution,omitempty"`
}

// GetSynthesis builds the summary report.
func (s *Service) GetSynthesis(ctx context.Context) (*Synthesis, error) {
	stats, err := s.GetDashboardStats(ctx)
	if err != nil {
		return nil, err
	}
	r := &Synthesis{Stats: stats}

	byType, err := s.establishmentsByType(ctx)
	if err != nil {
		return nil, err
	}
	for _, t := range byType {
		if t.Label == "" {
			continue
		}
		r.Types = append(r.Types, TypeShare{Type: t.Label, Count: t.Count, Percent: percent(t.Count, stats.Establishments)})
	}

	if r.TopCommunes, err = s.communeFigures(ctx, "etablissements > 0", "etablissements DESC", s.cfg.TopN); err != nil {
		return nil, err
	}
	if r.LastRun, err = s.LastRun(ctx); err != nil {
		return nil, err
	}
	return r, nil
}

// TypeStatutCount counts establishments per type and status.
type TypeStatutCount struct {
	Type   string `json:"type"`
	Statut string `json:"statut"`
	Count  int    `json:"nombre"`
}

// CommuneTypeCount counts establishments per commune and type.
type CommuneTypeCount struct {
	Commune        string `json:"commune"`
	Arrondissement string `json:"arrondissement"`
	Type           string `json:"type"`
	Count          int    `json:"nombre"`
}

// EstablishmentsReport is the establishments report.
type EstablishmentsReport struct {
	TypeStatut   []TypeStatutCount  `json:"type_statut"`
	Completeness Completeness       `json:"completude"`
	CommuneTypes []CommuneTypeCount `json:"commune_type"`
}

const typeStatutSQL = `SELECT type_etablissement, statut, COUNT(*) AS n
FROM etablissements
WHERE type_etablissement IS NOT NULL AND statut IS NOT NULL
GROUP BY type_etablissement, statut
ORDER BY type_etablissement, n DESC, statut`

const communeTypeSQL = `SELECT c.nom, c.arrondissement, e.type_etablissement, COUNT(*) AS n
FROM etablissements e
JOIN communes c ON c.id = e.commune_id
WHERE e.type_etablissement IS NOT NULL
GROUP BY c.nom, c.arrondissement, e.type_etablissement
ORDER BY c.arrondissement, c.nom, n DESC, e.type_etablissement`

// GetEstablishmentsReport builds the establishments report.
func (s *Service) GetEstablishmentsReport(ctx context.Context) (*EstablishmentsReport, error) {
	r := &EstablishmentsReport{}

	rows, err := s.query(ctx, typeStatutSQL)
	if err != nil {
		return nil, fmt.Errorf("type by statut: %w", store.Translate(err))
	}
	defer rows.Close()
	for rows.Next() {
		var t TypeStatutCount
		if err := rows.Scan(&t.Type, &t.Statut, &t.Count); err != nil {
			return nil, fmt.Errorf("type by statut: %w", err)
		}
		r.TypeStatut = append(r.TypeStatut, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("type by statut: %w", err)
	}

	if r.Completeness, err = s.completeness(ctx); err != nil {
		return nil, err
	}

	rows2, err := s.query(ctx, communeTypeSQL)
	if err != nil {
		return nil, fmt.Errorf("commune by type: %w", store.Translate(err))
	}
	defer rows2.Close()
	for rows2.Next() {
		var c CommuneTypeCount
		if err := rows2.Scan(&c.Commune, text{&c.Arrondissement}, &c.Type, &c.Count); err != nil {
			return nil, fmt.Errorf("commune by type: %w", err)
		}
		r.CommuneTypes = append(r.CommuneTypes, c)
	}
	return r, rows2.Err()
}

// CorpsGradeCount counts staff per corps and grade, split by gender.
type CorpsGradeCount struct {
	Corps string `json:"corps"`
	Grade string `json:"grade"`
	Total int    `json:"total"`
	Men   int    `json:"hommes"`
	Women int    `json:"femmes"`
}

// AssignmentSplit counts staff per kind of assignment.
type AssignmentSplit struct {
	Total         int `json:"total"`
	Establishment int `json:"etablissement"`
	ServiceOnly   int `json:"service"`
	Unassigned    int `json:"non_affecte"`
}

// PersonnelReport is the personnel report.
type PersonnelReport struct {
	CorpsGrade   []CorpsGradeCount `json:"corps_grade"`
	Assignment   AssignmentSplit   `json:"affectation"`
	BySpecialite []LabelCount      `json:"specialites"`
}

var corpsGradeSQL = `SELECT corps, grade, COUNT(*) AS n, ` +
	countIf(isMale("genre")) + `, ` +
	countIf(isFemale("genre")) + `
FROM personnel
WHERE corps IS NOT NULL AND grade IS NOT NULL
GROUP BY corps, grade
ORDER BY corps, n DESC, grade`

var assignmentSplitSQL = `SELECT COUNT(*), ` +
	countIf("etablissement_id IS NOT NULL") + `, ` +
	countIf("etablissement_id IS NULL AND "+notBlank("service")) + `, ` +
	countIf("NOT "+assigned("")) + `
FROM personnel`

// GetPersonnelReport builds the personnel report.
func (s *Service) GetPersonnelReport(ctx context.Context) (*PersonnelReport, error) {
	r := &PersonnelReport{}

	rows, err := s.query(ctx, corpsGradeSQL)
	if err != nil {
		return nil, fmt.Errorf("corps by grade: %w", store.Translate(err))
	}
	defer rows.Close()
	for rows.Next() {
		var c CorpsGradeCount
		if err := rows.Scan(&c.Corps, &c.Grade, &c.Total, &c.Men, &c.Women); err != nil {
			return nil, fmt.Errorf("corps by grade: %w", err)
		}
		r.CorpsGrade = append(r.CorpsGrade, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("corps by grade: %w", err)
	}

	a := &r.Assignment
	if err := s.queryRow(ctx, assignmentSplitSQL).Scan(&a.Total, &a.Establishment, &a.ServiceOnly, &a.Unassigned); err != nil {
		return nil, fmt.Errorf("assignment split: %w", store.Translate(err))
	}

	if r.BySpecialite, err = s.personnelBreakdown(ctx, "specialite", 20); err != nil {
		return nil, err
	}
	return r, nil
}

// ArrondissementCoverage is the coverage of one arrondissement.
type ArrondissementCoverage struct {
	Arrondissement string  `json:"arrondissement"`
	Communes       int     `json:"nb_communes"`
	Covered        int     `json:"communes_couvertes"`
	Establishments int     `json:"nb_etablissements"`
	Personnel      int     `json:"nb_personnel"`
	Rate           float64 `json:"taux_couverture"`
}

// CoverageReport is the territorial coverage report.
type CoverageReport struct {
	ByArrondissement []ArrondissementCoverage `json:"par_arrondissement"`
	ByCommune        []CommuneFigures         `json:"par_commune"`
	Critical         []CommuneFigures         `json:"zones_critiques"`
}

// Critical zones have fewer establishments or types than these.
const (
	criticalEstablishments = 5
	criticalTypes          = 2
)

const arrondissementCoverageSQL = `SELECT arrondissement, COUNT(*), ` +
	`COUNT(CASE WHEN etablissements > 0 THEN 1 END), COALESCE(SUM(etablissements), 0), COALESCE(SUM(personnel), 0)
FROM (` + communeFiguresSQL + `) cf
GROUP BY arrondissement
ORDER BY 4 DESC, arrondissement`

// GetCoverageReport builds the coverage report. The coverage rate of an
// arrondissement is the share of its communes with at least one
// establishment.
func (s *Service) GetCoverageReport(ctx context.Context) (*CoverageReport, error) {
	r := &CoverageReport{}

	rows, err := s.query(ctx, arrondissementCoverageSQL)
	if err != nil {
		return nil, fmt.Errorf("coverage by arrondissement: %w", store.Translate(err))
	}
	defer rows.Close()
	for rows.Next() {
		var a ArrondissementCoverage
		if err := rows.Scan(text{&a.Arrondissement}, &a.Communes, &a.Covered, &a.Establishments, &a.Personnel); err != nil {
			return nil, fmt.Errorf("coverage by arrondissement: %w", err)
		}
		a.Rate = percent(a.Covered, a.Communes)
		r.ByArrondissement = append(r.ByArrondissement, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("coverage by arrondissement: %w", err)
	}

	if r.ByCommune, err = s.communeFigures(ctx, "", "etablissements DESC", 0); err != nil {
		return nil, err
	}
	critical := fmt.Sprintf("etablissements < %d OR types < %d", criticalEstablishments, criticalTypes)
	if r.Critical, err = s.communeFigures(ctx, critical, "etablissements", 0); err != nil {
		return nil, err
	}
	return r, nil
}

// GetReport builds the report named by kind.
func (s *Service) GetReport(ctx context.Context, kind string) (any, error) {
	switch kind {
	case "synthese":
		return s.GetSynthesis(ctx)
	case "etablissements":
		return s.GetEstablishmentsReport(ctx)
	case "personnel":
		return s.GetPersonnelReport(ctx)
	case "couverture":
		return s.GetCoverageReport(ctx)
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownReport, kind)
}
