package core_test

import (
	"bytes"
	"context"
	"encoding/csv"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/iefreport/internal/config"
	"github.com/JonMunkholm/iefreport/internal/core"
	_ "github.com/JonMunkholm/iefreport/internal/core/tables"
	"github.com/JonMunkholm/iefreport/internal/store"
)

// seed is a small district:
//
//	Louga (arr. Louga): EE Louga 1 (Primaire, Public), EE Louga 2 (Primaire, Privé)
//	Kébémer (arr. Kébémer): CEM Kébémer (Moyen, Com_Ass)
//	Sakal (arr. Louga): nothing
//	Lycée X (Secondaire, Public) without commune
var seed = []string{
	`INSERT INTO communes (id, nom, arrondissement, departement) VALUES
        (1, 'Louga', 'Louga', 'LOUGA'),
        (2, 'Kébémer', 'Kébémer', 'LOUGA'),
        (3, 'Sakal', 'Louga', 'LOUGA')`,
	`INSERT INTO etablissements (id, nom, type_etablissement, statut, commune_id, zone, directeur, contact_1, email_directeur, coordonnees_x, coordonnees_y) VALUES
        (1, 'EE Louga 1', 'Primaire', 'Public', 1, 'Urbaine', 'Fall', '770000000', 'fall@ief.sn', 15.61, -16.22),
        (2, 'EE Louga 2', 'Primaire', 'Privé Laïc', 1, 'Urbaine', NULL, NULL, NULL, NULL, NULL),
        (3, 'CEM Kébémer', 'Moyen', 'Com_Ass', 2, 'Rurale', NULL, NULL, NULL, NULL, NULL),
        (4, 'Lycée X', 'Secondaire', 'Public', NULL, NULL, NULL, NULL, NULL, NULL, NULL)`,
	`INSERT INTO personnel (id, matricule, nom, prenom, genre, corps, grade, fonction, specialite, etablissement_id, service, contact) VALUES
        (1, 'M001', 'Diop', 'Awa', 'F', 'Instituteur', 'IA', 'Enseignant', 'Français', 1, NULL, '771111111'),
        (2, 'M002', 'Ndiaye', 'Moussa', 'M', 'Instituteur', 'IA', 'Directeur', NULL, 1, NULL, NULL),
        (3, 'M003', 'Sow', 'Ali', 'H', 'Professeur', 'PCEM', 'Enseignant', 'Maths', 3, NULL, NULL),
        (4, 'M004', 'Ba', 'Fatou', 'F', 'Professeur', 'PCEM', 'Conseiller', NULL, NULL, 'IEF', NULL),
        (5, 'M005', 'Gueye', 'Omar', 'M', 'Instituteur', 'IS', NULL, NULL, NULL, NULL, NULL),
        (6, 'M006', 'Kane', 'Binta', 'F', NULL, NULL, NULL, NULL, 2, NULL, NULL)`,
}

func newTestService(t *testing.T) *core.Service {
	t.Helper()
	ctx := context.Background()
	cfg := config.DatabaseConfig{
		Driver:   config.DriverSQLite,
		URL:      filepath.Join(t.TempDir(), "ief.db"),
		MaxConns: 1,
	}
	st, err := store.Initialize(ctx, cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	for _, stmt := range seed {
		_, err := st.DB.ExecContext(ctx, stmt)
		require.NoError(t, err)
	}

	return core.NewService(st, config.ReportConfig{
		PageSize:             50,
		TopN:                 10,
		ExportFlushRows:      2,
		MaxConcurrentExports: 2,
		ExportWait:           time.Second,
	})
}

func column(t *testing.T, res *core.TableDataResult, name string) []any {
	t.Helper()
	var out []any
	for _, rec := range res.Records() {
		v, ok := rec[name]
		require.True(t, ok, "missing column %s", name)
		out = append(out, v)
	}
	return out
}

// ============================================================================
// Dashboard
// ============================================================================

func TestGetDashboardStats(t *testing.T) {
	s := newTestService(t)

	st, err := s.GetDashboardStats(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, st.Communes)
	assert.Equal(t, 4, st.Establishments)
	assert.Equal(t, 6, st.Personnel)
	assert.Equal(t, 2, st.Public)
	assert.Equal(t, 1, st.Private)
	assert.Equal(t, 1, st.Community)
	assert.Equal(t, 3, st.Men, "H counts as male")
	assert.Equal(t, 3, st.Women)
	assert.Equal(t, 5, st.Assigned, "service-only staff counts as assigned")
	assert.Equal(t, 1, st.Unassigned)
	assert.Equal(t, 1.5, st.Ratio)
}

func TestGetDashboard(t *testing.T) {
	s := newTestService(t)

	d, err := s.GetDashboard(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []core.LabelCount{{Label: "Primaire", Count: 2}, {Label: "Moyen", Count: 1}, {Label: "Secondaire", Count: 1}}, d.ByType)
	assert.Equal(t, []core.LabelCount{{Label: "Louga", Count: 2}, {Label: "Kébémer", Count: 1}}, d.TopCommunes, "communes without establishments are left out")
	assert.Equal(t, []core.LabelCount{{Label: "Instituteur", Count: 3}, {Label: "Professeur", Count: 2}}, d.ByCorps, "blank corps excluded")
	assert.Nil(t, d.LastRun, "no run recorded yet")
}

// ============================================================================
// Listings
// ============================================================================

func TestGetTableData_Filters(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		table   string
		q       core.ListQuery
		wantCol string
		want    []any
	}{
		{
			name:    "establishments by type",
			table:   "etablissements",
			q:       core.ListQuery{Filters: map[string]string{"type": "Primaire"}},
			wantCol: "nom",
			want:    []any{"EE Louga 1", "EE Louga 2"},
		},
		{
			name:    "establishments search matches commune name",
			table:   "etablissements",
			q:       core.ListQuery{Search: "LOUGA"},
			wantCol: "nom",
			want:    []any{"EE Louga 1", "EE Louga 2"},
		},
		{
			name:    "establishments statut contains",
			table:   "etablissements",
			q:       core.ListQuery{Filters: map[string]string{"statut": "pub"}},
			wantCol: "nom",
			want:    []any{"EE Louga 1", "Lycée X"},
		},
		{
			name:    "establishments by commune id",
			table:   "etablissements",
			q:       core.ListQuery{Filters: map[string]string{"commune_id": "2"}},
			wantCol: "personnel",
			want:    []any{int64(1)},
		},
		{
			name:    "male filter includes H",
			table:   "personnel",
			q:       core.ListQuery{Filters: map[string]string{"genre": "M"}},
			wantCol: "matricule",
			want:    []any{"M005", "M002", "M003"},
		},
		{
			name:    "unassigned staff",
			table:   "personnel",
			q:       core.ListQuery{Filters: map[string]string{"affectation": "non_affecte"}},
			wantCol: "affectation",
			want:    []any{"Non affecté"},
		},
		{
			name:    "sort descending",
			table:   "communes",
			q:       core.ListQuery{Sort: core.SortSpec{Column: "etablissements", Dir: "desc"}},
			wantCol: "nom",
			want:    []any{"Louga", "Kébémer", "Sakal"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := s.GetTableData(ctx, tt.table, tt.q)
			require.NoError(t, err)
			assert.Equal(t, tt.want, column(t, res, tt.wantCol))
		})
	}
}

func TestGetTableData_Pagination(t *testing.T) {
	s := newTestService(t)

	res, err := s.GetTableData(context.Background(), "personnel", core.ListQuery{Page: 2, PageSize: 2})
	require.NoError(t, err)

	assert.Equal(t, 6, res.Pagination.Total)
	assert.Equal(t, 3, res.Pagination.TotalPages)
	assert.Equal(t, []any{"Gueye", "Kane"}, column(t, res, "nom"))
	assert.Equal(t, "/personnel/5", res.Rows[0].Link)
	assert.Equal(t, "Homme", res.Rows[0].Values[3])
}

func TestGetTableData_Errors(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	_, err := s.GetTableData(ctx, "budgets", core.ListQuery{})
	assert.ErrorIs(t, err, core.ErrUnknownTable)

	_, err = s.GetTableData(ctx, "etablissements", core.ListQuery{Filters: map[string]string{"commune_id": "abc"}})
	assert.ErrorIs(t, err, core.ErrInvalidFilter)

	_, err = s.GetTableData(ctx, "personnel", core.ListQuery{Filters: map[string]string{"affectation": "maybe"}})
	assert.ErrorIs(t, err, core.ErrInvalidFilter)
}

func TestGetTableData_UnknownSortFallsBack(t *testing.T) {
	s := newTestService(t)

	res, err := s.GetTableData(context.Background(), "etablissements", core.ListQuery{Sort: core.SortSpec{Column: "zone; DROP TABLE x"}})
	require.NoError(t, err)
	assert.Equal(t, core.SortSpec{}, res.Query.Sort)
	assert.Len(t, res.Rows, 4)
}

func TestListCommunes(t *testing.T) {
	s := newTestService(t)

	list, err := s.ListCommunes(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 3)

	assert.Equal(t, "Kébémer", list[0].Name)
	louga := list[1]
	assert.Equal(t, "Louga", louga.Name)
	assert.Equal(t, 2, louga.Establishments)
	assert.Equal(t, 1, louga.Types)
	assert.Equal(t, 3, louga.Personnel)
	assert.Equal(t, 1.5, louga.Ratio)
}

// ============================================================================
// Establishments
// ============================================================================

func TestGetEstablishment(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	d, err := s.GetEstablishment(ctx, 1)
	require.NoError(t, err)

	assert.Equal(t, "EE Louga 1", d.Name)
	assert.Equal(t, "Louga", d.Commune)
	assert.Equal(t, "Louga", d.Arrondissement)
	assert.True(t, d.Geolocated())
	assert.Equal(t, 2, d.Personnel)
	require.Len(t, d.Staff, 2)
	assert.Equal(t, "Diop", d.Staff[0].Nom)
	assert.Equal(t, core.StaffStats{Total: 2, Men: 1, Women: 1, WithContact: 1, Corps: 1, Grades: 1, Fonctions: 2}, d.StaffStats)

	_, err = s.GetEstablishment(ctx, 999)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestGetEstablishment_NoCommune(t *testing.T) {
	s := newTestService(t)

	d, err := s.GetEstablishment(context.Background(), 4)
	require.NoError(t, err)
	assert.Zero(t, d.CommuneID)
	assert.Empty(t, d.Commune)
	assert.Empty(t, d.Staff)
	assert.False(t, d.Geolocated())
}

func TestGetEstablishmentsByType(t *testing.T) {
	s := newTestService(t)

	res, err := s.GetEstablishmentsByType(context.Background(), "Primaire")
	require.NoError(t, err)
	assert.Len(t, res.Establishments, 2)
	assert.Equal(t, core.TypeStats{Total: 2, Public: 1, Private: 1, Geolocated: 1}, res.Stats)
}

func TestGetEstablishmentAnalytics(t *testing.T) {
	s := newTestService(t)

	a, err := s.GetEstablishmentAnalytics(context.Background())
	require.NoError(t, err)

	require.Len(t, a.ByType, 3)
	primaire := a.ByType[0]
	assert.Equal(t, "Primaire", primaire.Type)
	assert.Equal(t, 2, primaire.Total)
	assert.Equal(t, 1, primaire.Geolocated)
	assert.Equal(t, 1, primaire.WithDirector)
	assert.Equal(t, 1.5, primaire.AvgStaff)

	require.Len(t, a.ByCommune, 2, "communes without establishments are left out")
	assert.Equal(t, "Louga", a.ByCommune[0].Name)

	assert.Equal(t, core.Completeness{Total: 4, Geolocated: 1, WithDirector: 1, WithContact: 1, WithEmail: 1}, a.Completeness)
}

func TestGetEstablishmentFilters(t *testing.T) {
	s := newTestService(t)

	f, err := s.GetEstablishmentFilters(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"Moyen", "Primaire", "Secondaire"}, f.Types)
	assert.Equal(t, []string{"Rurale", "Urbaine"}, f.Zones)
	require.Len(t, f.Communes, 3)
	assert.Equal(t, core.IDName{ID: 2, Name: "Kébémer"}, f.Communes[0])
}

// ============================================================================
// Personnel
// ============================================================================

func TestGetPerson(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	p, err := s.GetPerson(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, "Ali Sow", p.FullName())
	assert.Equal(t, "Homme", p.GenderLabel())
	assert.Equal(t, "CEM Kébémer", p.Establishment)
	assert.Equal(t, "Moyen", p.EstablishmentType)
	assert.Equal(t, "Kébémer", p.Arrondissement)
	assert.True(t, p.Assigned())

	_, err = s.GetPerson(ctx, 42)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestGetUnassigned(t *testing.T) {
	s := newTestService(t)

	u, err := s.GetUnassigned(context.Background())
	require.NoError(t, err)
	require.Len(t, u.Personnel, 1)
	assert.Equal(t, "M005", u.Personnel[0].Matricule)
	assert.Equal(t, 1, u.Stats.Total)
	assert.Equal(t, 1, u.Stats.Men)
}

func TestGetPersonnelAnalytics(t *testing.T) {
	s := newTestService(t)

	a, err := s.GetPersonnelAnalytics(context.Background())
	require.NoError(t, err)

	require.Len(t, a.ByCorps, 2)
	assert.Equal(t, core.GroupAnalysis{Label: "Instituteur", Total: 3, Men: 2, Women: 1, Assigned: 2, Establishments: 1}, a.ByCorps[0])

	require.Len(t, a.ByGrade, 3)
	assert.Equal(t, "IS", a.ByGrade[2].Grade)
	assert.Equal(t, 0.0, a.ByGrade[2].Rate)
	assert.Equal(t, 100.0, a.ByGrade[1].Rate, "service assignment counts")

	require.Len(t, a.ByArrondissement, 2)
	assert.Equal(t, core.ArrondissementStaff{Arrondissement: "Louga", Personnel: 3, Establishments: 2, Corps: 1, PerEstablishment: 1.5}, a.ByArrondissement[0])
}

func TestGetPersonnelFilters(t *testing.T) {
	s := newTestService(t)

	f, err := s.GetPersonnelFilters(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"F", "H", "M"}, f.Genres)
	assert.Equal(t, []string{"IA", "IS", "PCEM"}, f.Grades)
	assert.Len(t, f.Establishments, 3)
}

// ============================================================================
// Reports
// ============================================================================

func TestGetSynthesis(t *testing.T) {
	s := newTestService(t)

	r, err := s.GetSynthesis(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []core.TypeShare{
		{Type: "Primaire", Count: 2, Percent: 50},
		{Type: "Moyen", Count: 1, Percent: 25},
		{Type: "Secondaire", Count: 1, Percent: 25},
	}, r.Types)
	require.Len(t, r.TopCommunes, 2)
	assert.Equal(t, "Louga", r.TopCommunes[0].Name)
}

func TestGetEstablishmentsReport(t *testing.T) {
	s := newTestService(t)

	r, err := s.GetEstablishmentsReport(context.Background())
	require.NoError(t, err)
	assert.Len(t, r.TypeStatut, 4)
	assert.Equal(t, []core.CommuneTypeCount{
		{Commune: "Kébémer", Arrondissement: "Kébémer", Type: "Moyen", Count: 1},
		{Commune: "Louga", Arrondissement: "Louga", Type: "Primaire", Count: 2},
	}, r.CommuneTypes)
}

func TestGetPersonnelReport(t *testing.T) {
	s := newTestService(t)

	r, err := s.GetPersonnelReport(context.Background())
	require.NoError(t, err)
	assert.Equal(t, core.AssignmentSplit{Total: 6, Establishment: 4, ServiceOnly: 1, Unassigned: 1}, r.Assignment)
	assert.Equal(t, []core.CorpsGradeCount{
		{Corps: "Instituteur", Grade: "IA", Total: 2, Men: 1, Women: 1},
		{Corps: "Instituteur", Grade: "IS", Total: 1, Men: 1, Women: 0},
		{Corps: "Professeur", Grade: "PCEM", Total: 2, Men: 1, Women: 1},
	}, r.CorpsGrade)
}

func TestGetCoverageReport(t *testing.T) {
	s := newTestService(t)

	r, err := s.GetCoverageReport(context.Background())
	require.NoError(t, err)

	require.Len(t, r.ByArrondissement, 2)
	assert.Equal(t, core.ArrondissementCoverage{
		Arrondissement: "Louga", Communes: 2, Covered: 1, Establishments: 2, Personnel: 3, Rate: 50,
	}, r.ByArrondissement[0])

	names := make([]string, len(r.Critical))
	for i, c := range r.Critical {
		names[i] = c.Name
	}
	assert.Equal(t, []string{"Sakal", "Kébémer", "Louga"}, names)
}

func TestGetReport(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	for _, k := range core.ReportKinds {
		r, err := s.GetReport(ctx, k.Key)
		require.NoError(t, err, k.Key)
		assert.NotNil(t, r)
	}

	_, err := s.GetReport(ctx, "annuel")
	assert.ErrorIs(t, err, core.ErrUnknownReport)
}

// ============================================================================
// Exports
// ============================================================================

func TestExportTable(t *testing.T) {
	s := newTestService(t)
	var buf bytes.Buffer

	n, err := s.ExportTable(context.Background(), &buf, "personnel", core.ListQuery{
		Filters:  map[string]string{"genre": "F"},
		PageSize: 1,
	})
	require.NoError(t, err)
	assert.Equal(t, 3, n, "pagination is ignored")

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 4)
	assert.Equal(t, "Matricule", records[0][0])
	assert.Equal(t, "Femme", records[1][3])
}

func TestExportComplete(t *testing.T) {
	s := newTestService(t)
	var buf bytes.Buffer

	n, err := s.ExportComplete(context.Background(), &buf)
	require.NoError(t, err)
	assert.Equal(t, 10, n)

	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "=== ÉTABLISSEMENTS ===\n"))
	sections := strings.Split(out, "\n\n=== PERSONNEL ===\n")
	require.Len(t, sections, 2)

	etabs, err := csv.NewReader(strings.NewReader(strings.TrimPrefix(sections[0], "=== ÉTABLISSEMENTS ===\n"))).ReadAll()
	require.NoError(t, err)
	require.Len(t, etabs, 5)
	assert.Equal(t, "Lycée X", etabs[1][0], "establishments without commune sort first")
}

func TestExportFilename(t *testing.T) {
	now := time.Date(2026, 10, 19, 14, 30, 0, 0, time.UTC)

	assert.Equal(t, "etablissements_20261019_1430.csv", core.ExportFilename("Établissements", now))
	assert.Equal(t, "rapport_ief_louga_20261019_1430.csv", core.ExportFilename("Rapport IEF Louga", now))
	assert.Equal(t, "export_20261019_1430.csv", core.ExportFilename("", now))
}

func TestLastRun(t *testing.T) {
	ctx := context.Background()
	st, err := store.Initialize(ctx, config.DatabaseConfig{
		Driver:   config.DriverSQLite,
		URL:      filepath.Join(t.TempDir(), "ief.db"),
		MaxConns: 1,
	}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	require.NoError(t, st.EnsureRunsTable(ctx))

	s := core.NewService(st, config.ReportConfig{})

	run, err := s.LastRun(ctx)
	require.NoError(t, err)
	assert.Nil(t, run, "empty history")

	_, err = st.DB.ExecContext(ctx, `INSERT INTO etl_runs
        (run_id, started_at, finished_at, status, communes, etablissements, personnel, unmatched, error) VALUES
        ('a', '2026-10-18 08:00:00', '2026-10-18 08:00:05', 'failure', 0, 0, 0, 0, 'load personnel: boom'),
        ('b', '2026-10-19 08:00:00', '2026-10-19 08:00:12', 'success', 48, 412, 3120, 7, NULL)`)
	require.NoError(t, err)

	run, err = s.LastRun(ctx)
	require.NoError(t, err)
	require.NotNil(t, run)
	assert.Equal(t, "b", run.RunID)
	assert.Equal(t, "success", run.Status)
	assert.Equal(t, 412, run.Establishments)
	assert.Equal(t, 7, run.Unmatched)
	assert.Equal(t, 12*time.Second, run.Duration())
	assert.Empty(t, run.Error)
}
