package core

import (
	"context"
	"fmt"
	"math"

	"github.com/JonMunkholm/iefreport/internal/store"
)

// DashboardStats are the headline figures shown on the home page.
type DashboardStats struct {
	Communes       int     `json:"total_communes"`
	Establishments int     `json:"total_etablissements"`
	Personnel      int     `json:"total_personnel"`
	Public         int     `json:"etablissements_publics"`
	Private        int     `json:"etablissements_prives"`
	Community      int     `json:"etablissements_com_ass"`
	Men            int     `json:"personnel_hommes"`
	Women          int     `json:"personnel_femmes"`
	Assigned       int     `json:"personnel_affecte"`
	Unassigned     int     `json:"personnel_non_affecte"`
	Ratio          float64 `json:"ratio_personnel_etablissement"`
}

// Dashboard is everything rendered on the home page.
type Dashboard struct {
	Stats       DashboardStats `json:"stats"`
	ByType      []LabelCount   `json:"etablissements_par_type"`
	TopCommunes []LabelCount   `json:"top_communes"`
	ByCorps     []LabelCount   `json:"personnel_par_corps"`
	ByGrade     []LabelCount   `json:"personnel_par_grade"`
	ByFonction  []LabelCount   `json:"personnel_par_fonction"`
	LastRun     *RunInfo       `json:"derniere_execution,omitempty"`
}

var dashboardStatsSQL = `SELECT
    (SELECT COUNT(*) FROM communes),
    (SELECT COUNT(*) FROM etablissements),
    (SELECT COUNT(*) FROM personnel),
    (SELECT ` + countIf(isPublic("statut")) + ` FROM etablissements),
    (SELECT ` + countIf(isPrivate("statut")) + ` FROM etablissements),
    (SELECT ` + countIf(isCommunity("statut")) + ` FROM etablissements),
    (SELECT ` + countIf(isMale("genre")) + ` FROM personnel),
    (SELECT ` + countIf(isFemale("genre")) + ` FROM personnel),
    (SELECT ` + countIf(assigned("")) + ` FROM personnel)`

// GetDashboardStats returns the headline figures.
func (s *Service) GetDashboardStats(ctx context.Context) (DashboardStats, error) {
	var st DashboardStats
	err := s.queryRow(ctx, dashboardStatsSQL).Scan(
		&st.Communes, &st.Establishments, &st.Personnel,
		&st.Public, &st.Private, &st.Community,
		&st.Men, &st.Women, &st.Assigned,
	)
	if err != nil {
		return st, fmt.Errorf("dashboard stats: %w", store.Translate(err))
	}
	st.Unassigned = st.Personnel - st.Assigned
	st.Ratio = ratio(st.Personnel, st.Establishments)
	return st, nil
}

// GetDashboard returns the home page data.
func (s *Service) GetDashboard(ctx context.Context) (*Dashboard, error) {
	stats, err := s.GetDashboardStats(ctx)
	if err != nil {
		return nil, err
	}
	d := &Dashboard{Stats: stats}

	if d.ByType, err = s.establishmentsByType(ctx); err != nil {
		return nil, err
	}
	if d.TopCommunes, err = s.topCommunes(ctx, s.cfg.TopN); err != nil {
		return nil, err
	}
	if d.ByCorps, err = s.personnelBreakdown(ctx, "corps", s.cfg.TopN); err != nil {
		return nil, err
	}
	if d.ByGrade, err = s.personnelBreakdown(ctx, "grade", s.cfg.TopN); err != nil {
		return nil, err
	}
	if d.ByFonction, err = s.personnelBreakdown(ctx, "fonction", s.cfg.TopN); err != nil {
		return nil, err
	}
	if d.LastRun, err = s.LastRun(ctx); err != nil {
		return nil, err
	}
	return d, nil
}

func (s *Service) establishmentsByType(ctx context.Context) ([]LabelCount, error) {
	out, err := s.labelCounts(ctx, `SELECT type_etablissement, COUNT(*) AS n
FROM etablissements
GROUP BY type_etablissement
ORDER BY n DESC, type_etablissement`)
	if err != nil {
		return nil, fmt.Errorf("establishments by type: %w", err)
	}
	return out, nil
}

// topCommunes lists communes by number of establishments, empty ones left out.
func (s *Service) topCommunes(ctx context.Context, limit int) ([]LabelCount, error) {
	out, err := s.labelCounts(ctx, `SELECT c.nom, COUNT(e.id) AS n
FROM communes c
JOIN etablissements e ON e.commune_id = c.id
GROUP BY c.id, c.nom
ORDER BY n DESC, c.nom
LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("top communes: %w", err)
	}
	return out, nil
}

// personnelBreakdowns are the columns personnelBreakdown may group on.
var personnelBreakdowns = map[string]bool{
	"corps": true, "grade": true, "fonction": true, "specialite": true, "diplome_academique": true,
}

// personnelBreakdown counts staff per non-blank value of column.
func (s *Service) personnelBreakdown(ctx context.Context, column string, limit int) ([]LabelCount, error) {
	if !personnelBreakdowns[column] {
		return nil, fmt.Errorf("personnel breakdown: unsupported column %q", column)
	}
	out, err := s.labelCounts(ctx, `SELECT `+column+`, COUNT(*) AS n
FROM personnel
WHERE `+notBlank(column)+`
GROUP BY `+column+`
ORDER BY n DESC, `+column+`
LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("personnel by %s: %w", column, err)
	}
	return out, nil
}

// ratio is num/den rounded to one decimal, 0 when den is 0.
func ratio(num, den int) float64 {
	if den == 0 {
		return 0
	}
	return round1(float64(num) / float64(den))
}

// percent is part/total as a percentage rounded to one decimal.
func percent(part, total int) float64 {
	if total == 0 {
		return 0
	}
	return round1(float64(part) * 100 / float64(total))
}

func round1(f float64) float64 {
	return math.Round(f*10) / 10
}
