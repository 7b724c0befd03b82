package core

import (
	"context"
	"fmt"

	"github.com/JonMunkholm/iefreport/internal/store"
)

// Establishment is one row of etablissements with its commune resolved.
type Establishment struct {
	ID             int64  `json:"id"`
	Name           string `json:"nom"`
	Code           string `json:"code,omitempty"`
	Type           string `json:"type_etablissement"`
	Cycle          string `json:"cycle,omitempty"`
	Statut         string `json:"statut"`
	TypeStatut     string `json:"type_statut"`
	Zone           string `json:"zone"`
	Address        string `json:"adresse,omitempty"`
	X              string `json:"coordonnees_x,omitempty"`
	Y              string `json:"coordonnees_y,omitempty"`
	Director       string `json:"directeur"`
	Contact1       string `json:"contact_1"`
	Contact2       string `json:"contact_2,omitempty"`
	Email          string `json:"email_directeur"`
	Observations   string `json:"observations,omitempty"`
	CommuneID      int64  `json:"commune_id,omitempty"`
	Commune        string `json:"commune_nom"`
	Arrondissement string `json:"arrondissement"`
	Personnel      int    `json:"nb_personnel"`
}

// Geolocated reports whether both coordinates are known.
func (e Establishment) Geolocated() bool {
	return e.X != "" && e.Y != ""
}

const establishmentSelect = `SELECT e.id, e.nom, e.code, e.type_etablissement, e.cycle, e.statut,
    e.type_statut, e.zone, e.adresse, e.coordonnees_x, e.coordonnees_y, e.directeur,
    e.contact_1, e.contact_2, e.email_directeur, e.observations, e.commune_id,
    c.nom, c.arrondissement,
    (SELECT COUNT(*) FROM personnel p WHERE p.etablissement_id = e.id)
FROM etablissements e
LEFT JOIN communes c ON c.id = e.commune_id`

func scanEstablishment(sc rowScanner) (Establishment, error) {
	var e Establishment
	err := sc.Scan(
		&e.ID, &e.Name, text{&e.Code}, text{&e.Type}, text{&e.Cycle}, text{&e.Statut},
		text{&e.TypeStatut}, text{&e.Zone}, text{&e.Address}, text{&e.X}, text{&e.Y}, text{&e.Director},
		text{&e.Contact1}, text{&e.Contact2}, text{&e.Email}, text{&e.Observations}, nullable{&e.CommuneID},
		text{&e.Commune}, text{&e.Arrondissement},
		&e.Personnel,
	)
	return e, err
}

func (s *Service) establishments(ctx context.Context, q string, args ...any) ([]Establishment, error) {
	rows, err := s.query(ctx, q, args...)
	if err != nil {
		return nil, store.Translate(err)
	}
	defer rows.Close()

	var out []Establishment
	for rows.Next() {
		e, err := scanEstablishment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// StaffStats summarise a group of staff members.
type StaffStats struct {
	Total       int `json:"total"`
	Men         int `json:"hommes"`
	Women       int `json:"femmes"`
	WithContact int `json:"avec_contact"`
	Corps       int `json:"nb_corps"`
	Grades      int `json:"nb_grades"`
	Fonctions   int `json:"nb_fonctions"`
}

var staffStatsSQL = `SELECT COUNT(*), ` +
	countIf(isMale("p.genre")) + `, ` +
	countIf(isFemale("p.genre")) + `, ` +
	countIf(notBlank("p.contact")) + `,
    COUNT(DISTINCT p.corps), COUNT(DISTINCT p.grade), COUNT(DISTINCT p.fonction)
FROM personnel p`

func (s *Service) staffStats(ctx context.Context, where string, args ...any) (StaffStats, error) {
	var st StaffStats
	err := s.queryRow(ctx, staffStatsSQL+" WHERE "+where, args...).Scan(
		&st.Total, &st.Men, &st.Women, &st.WithContact, &st.Corps, &st.Grades, &st.Fonctions,
	)
	return st, store.Translate(err)
}

// EstablishmentDetail is an establishment with its staff.
type EstablishmentDetail struct {
	Establishment
	Staff      []Person   `json:"personnel"`
	StaffStats StaffStats `json:"stats_personnel"`
}

// GetEstablishment returns one establishment with its staff ordered by name.
// Returns store.ErrNotFound for an unknown id.
func (s *Service) GetEstablishment(ctx context.Context, id int64) (*EstablishmentDetail, error) {
	return s.establishmentDetail(ctx, id, "p.nom, p.prenom")
}

// GetEstablishmentFiche returns the printable form of an establishment, its
// staff grouped by corps then grade.
func (s *Service) GetEstablishmentFiche(ctx context.Context, id int64) (*EstablishmentDetail, error) {
	return s.establishmentDetail(ctx, id, "p.corps, p.grade, p.nom, p.prenom")
}

func (s *Service) establishmentDetail(ctx context.Context, id int64, staffOrder string) (*EstablishmentDetail, error) {
	e, err := scanEstablishment(s.queryRow(ctx, establishmentSelect+" WHERE e.id = ?", id))
	if err != nil {
		return nil, fmt.Errorf("establishment %d: %w", id, store.Translate(err))
	}
	d := &EstablishmentDetail{Establishment: e}

	if d.Staff, err = s.people(ctx, personSelect+" WHERE p.etablissement_id = ? ORDER BY "+staffOrder, id); err != nil {
		return nil, fmt.Errorf("establishment %d staff: %w", id, err)
	}
	if d.StaffStats, err = s.staffStats(ctx, "p.etablissement_id = ?", id); err != nil {
		return nil, fmt.Errorf("establishment %d staff stats: %w", id, err)
	}
	return d, nil
}

// TypeStats summarise the establishments of one type.
type TypeStats struct {
	Total      int `json:"total"`
	Public     int `json:"publics"`
	Private    int `json:"prives"`
	Geolocated int `json:"geolocalises"`
}

// EstablishmentsOfType is the by-type page.
type EstablishmentsOfType struct {
	Type           string          `json:"type"`
	Establishments []Establishment `json:"etablissements"`
	Stats          TypeStats       `json:"stats"`
}

// GetEstablishmentsByType lists the establishments of one type, by name.
func (s *Service) GetEstablishmentsByType(ctx context.Context, typ string) (*EstablishmentsOfType, error) {
	list, err := s.establishments(ctx, establishmentSelect+" WHERE e.type_etablissement = ? ORDER BY e.nom, e.id", typ)
	if err != nil {
		return nil, fmt.Errorf("establishments of type %q: %w", typ, err)
	}
	out := &EstablishmentsOfType{Type: typ, Establishments: list}
	for _, e := range list {
		out.Stats.Total++
		if e.Geolocated() {
			out.Stats.Geolocated++
		}
	}

	err = s.queryRow(ctx, `SELECT `+countIf(isPublic("statut"))+`, `+countIf(isPrivate("statut"))+`
FROM etablissements WHERE type_etablissement = ?`, typ).Scan(&out.Stats.Public, &out.Stats.Private)
	if err != nil {
		return nil, fmt.Errorf("type %q stats: %w", typ, store.Translate(err))
	}
	return out, nil
}

// TypeAnalysis is one row of the per-type analytics.
type TypeAnalysis struct {
	Type         string  `json:"type"`
	Total        int     `json:"total"`
	Public       int     `json:"publics"`
	Private      int     `json:"prives"`
	Community    int     `json:"com_ass"`
	Geolocated   int     `json:"geolocalises"`
	WithDirector int     `json:"avec_directeur"`
	AvgStaff     float64 `json:"moyenne_personnel"`
}

// Completeness counts establishments with each optional attribute filled.
type Completeness struct {
	Total        int `json:"total"`
	Geolocated   int `json:"avec_coordonnees"`
	WithDirector int `json:"avec_directeur"`
	WithContact  int `json:"avec_contact"`
	WithEmail    int `json:"avec_email"`
}

// EstablishmentAnalytics is the establishments analytics page.
type EstablishmentAnalytics struct {
	ByType       []TypeAnalysis   `json:"par_type"`
	ByCommune    []CommuneFigures `json:"par_commune"`
	Completeness Completeness     `json:"completude"`
}

var typeAnalysisSQL = `SELECT e.type_etablissement, COUNT(*) AS total, ` +
	countIf(isPublic("e.statut")) + `, ` +
	countIf(isPrivate("e.statut")) + `, ` +
	countIf(isCommunity("e.statut")) + `, ` +
	countIf("e.coordonnees_x IS NOT NULL AND e.coordonnees_y IS NOT NULL") + `, ` +
	countIf(notBlank("e.directeur")) + `,
    AVG(COALESCE(pc.n, 0))
FROM etablissements e
LEFT JOIN (SELECT etablissement_id, COUNT(*) AS n FROM personnel GROUP BY etablissement_id) pc
    ON pc.etablissement_id = e.id
WHERE ` + notBlank("e.type_etablissement") + `
GROUP BY e.type_etablissement
ORDER BY total DESC, e.type_etablissement`

var completenessSQL = `SELECT COUNT(*), ` +
	countIf("coordonnees_x IS NOT NULL AND coordonnees_y IS NOT NULL") + `, ` +
	countIf(notBlank("directeur")) + `, ` +
	countIf(notBlank("contact_1")) + `, ` +
	countIf(notBlank("email_directeur")) + `
FROM etablissements`

// GetEstablishmentAnalytics returns the per-type, per-commune and data
// completeness figures.
func (s *Service) GetEstablishmentAnalytics(ctx context.Context) (*EstablishmentAnalytics, error) {
	a := &EstablishmentAnalytics{}

	rows, err := s.query(ctx, typeAnalysisSQL)
	if err != nil {
		return nil, fmt.Errorf("type analytics: %w", store.Translate(err))
	}
	defer rows.Close()
	for rows.Next() {
		var t TypeAnalysis
		if err := rows.Scan(&t.Type, &t.Total, &t.Public, &t.Private, &t.Community,
			&t.Geolocated, &t.WithDirector, decimal{&t.AvgStaff}); err != nil {
			return nil, fmt.Errorf("type analytics: %w", err)
		}
		t.AvgStaff = round1(t.AvgStaff)
		a.ByType = append(a.ByType, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("type analytics: %w", err)
	}

	if a.ByCommune, err = s.communeFigures(ctx, "etablissements > 0", "etablissements DESC", 0); err != nil {
		return nil, err
	}
	if a.Completeness, err = s.completeness(ctx); err != nil {
		return nil, err
	}
	return a, nil
}

func (s *Service) completeness(ctx context.Context) (Completeness, error) {
	var c Completeness
	err := s.queryRow(ctx, completenessSQL).Scan(&c.Total, &c.Geolocated, &c.WithDirector, &c.WithContact, &c.WithEmail)
	if err != nil {
		return c, fmt.Errorf("completeness: %w", store.Translate(err))
	}
	return c, nil
}

// EstablishmentFilters are the select options of the establishments list.
type EstablishmentFilters struct {
	Types    []string `json:"types"`
	Statuts  []string `json:"statuts"`
	Zones    []string `json:"zones"`
	Communes []IDName `json:"communes"`
}

// GetEstablishmentFilters returns the distinct values offered as filters.
func (s *Service) GetEstablishmentFilters(ctx context.Context) (*EstablishmentFilters, error) {
	f := &EstablishmentFilters{}
	var err error
	if f.Types, err = s.distinct(ctx, "etablissements", "type_etablissement"); err != nil {
		return nil, err
	}
	if f.Statuts, err = s.distinct(ctx, "etablissements", "statut"); err != nil {
		return nil, err
	}
	if f.Zones, err = s.distinct(ctx, "etablissements", "zone"); err != nil {
		return nil, err
	}
	if f.Communes, err = s.idNames(ctx, "SELECT id, nom FROM communes ORDER BY nom"); err != nil {
		return nil, fmt.Errorf("commune options: %w", err)
	}
	return f, nil
}

// distinct lists the non-blank values of a trusted table column, sorted.
func (s *Service) distinct(ctx context.Context, table, column string) ([]string, error) {
	out, err := s.stringList(ctx, "SELECT DISTINCT "+column+" FROM "+table+" WHERE "+notBlank(column)+" ORDER BY "+column)
	if err != nil {
		return nil, fmt.Errorf("distinct %s.%s: %w", table, column, err)
	}
	return out, nil
}
