package etl

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"github.com/JonMunkholm/iefreport/internal/config"
	"github.com/JonMunkholm/iefreport/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	cfg := config.DatabaseConfig{
		Driver:   config.DriverSQLite,
		URL:      filepath.Join(t.TempDir(), "ief.db"),
		MaxConns: 1,
	}
	s, err := store.Initialize(context.Background(), cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func newTestLoader(t *testing.T) (*Loader, *store.Store) {
	t.Helper()
	s := newTestStore(t)
	return NewLoader(s, "LOUGA", "nan"), s
}

func estab(name, commune string) Establishment {
	return Establishment{Name: name, Type: "Primaire", Commune: commune, Arrondissement: "Louga"}
}

func person(matricule, nom, etablissement string) Person {
	return Person{Matricule: matricule, Nom: nom, Establishment: etablissement}
}

func count(t *testing.T, s *store.Store, query string, args ...any) int {
	t.Helper()
	var n int
	require.NoError(t, s.DB.QueryRow(query, args...).Scan(&n))
	return n
}

// ============================================================================
// Communes
// ============================================================================

func TestLoadCommunes_DeduplicatesByName(t *testing.T) {
	ctx := context.Background()
	l, s := newTestLoader(t)

	res, err := l.LoadCommunes(ctx, []CommunePair{
		{Name: "Louga", Arrondissement: "Louga"},
		{Name: "Kébémer", Arrondissement: "Kébémer"},
		{Name: "Louga", Arrondissement: "Sakal"},
	})
	require.NoError(t, err)

	assert.Equal(t, 3, res.Attempted)
	assert.Equal(t, 2, res.Lookup.Len())
	assert.Equal(t, 1, count(t, s, "SELECT COUNT(*) FROM communes WHERE nom = ?", "Louga"))

	var arr, dept string
	require.NoError(t, s.DB.QueryRow("SELECT arrondissement, departement FROM communes WHERE nom = ?", "Louga").Scan(&arr, &dept))
	assert.Equal(t, "Louga", arr, "first-seen arrondissement wins")
	assert.Equal(t, "LOUGA", dept)
}

func TestLoadCommunes_FiltersMissingNames(t *testing.T) {
	ctx := context.Background()
	l, s := newTestLoader(t)

	res, err := l.LoadCommunes(ctx, []CommunePair{
		{Name: "", Arrondissement: "Louga"},
		{Name: "nan", Arrondissement: "Louga"},
		{Name: "Ndiagne", Arrondissement: "Sakal"},
	})
	require.NoError(t, err)

	assert.Equal(t, 1, res.Attempted)
	assert.Equal(t, 1, count(t, s, "SELECT COUNT(*) FROM communes"))
	_, ok := res.Lookup.ID("nan")
	assert.False(t, ok)
}

func TestLoadCommunes_LookupMatchesTable(t *testing.T) {
	ctx := context.Background()
	l, s := newTestLoader(t)

	res, err := l.LoadCommunes(ctx, []CommunePair{{Name: "Louga"}, {Name: "Kébémer"}})
	require.NoError(t, err)

	for _, name := range []string{"Louga", "Kébémer"} {
		id, ok := res.Lookup.ID(name)
		require.True(t, ok, name)

		var stored int64
		require.NoError(t, s.DB.QueryRow("SELECT id FROM communes WHERE nom = ?", name).Scan(&stored))
		assert.Equal(t, stored, id)
	}
}

// ============================================================================
// Establishments
// ============================================================================

func TestLoadEstablishments_ResolvesCommunes(t *testing.T) {
	ctx := context.Background()
	l, s := newTestLoader(t)

	communes, err := l.LoadCommunes(ctx, []CommunePair{{Name: "Louga", Arrondissement: "Louga"}})
	require.NoError(t, err)

	res, err := l.LoadEstablishments(ctx, []Establishment{
		estab("École A", "Louga"),
		estab("École B", "Inconnue"),
		estab("École C", ""),
		estab("École D", "nan"),
	}, communes.Lookup)
	require.NoError(t, err)

	assert.Equal(t, 4, res.Inserted)
	assert.Equal(t, 1, res.Linked)

	louga, _ := communes.Lookup.ID("Louga")
	var communeID sql.NullInt64
	require.NoError(t, s.DB.QueryRow("SELECT commune_id FROM etablissements WHERE nom = ?", "École A").Scan(&communeID))
	assert.True(t, communeID.Valid)
	assert.Equal(t, louga, communeID.Int64)

	assert.Equal(t, 3, count(t, s, "SELECT COUNT(*) FROM etablissements WHERE commune_id IS NULL"))
}

func TestLoadEstablishments_LeavesUnsuppliedFieldsNull(t *testing.T) {
	ctx := context.Background()
	l, s := newTestLoader(t)

	e := estab("École A", "")
	e.Zone = optional("Rurale")
	_, err := l.LoadEstablishments(ctx, []Establishment{e}, Lookup{})
	require.NoError(t, err)

	assert.Equal(t, 1, count(t, s, `SELECT COUNT(*) FROM etablissements
WHERE adresse IS NULL AND coordonnees_x IS NULL AND coordonnees_y IS NULL
  AND contact_2 IS NULL AND date_creation IS NULL AND date_ouverture IS NULL
  AND observations IS NULL AND statut IS NULL AND zone = 'Rurale'`))
}

func TestLoadEstablishments_DuplicateNameLastWriteWins(t *testing.T) {
	ctx := context.Background()
	l, s := newTestLoader(t)

	res, err := l.LoadEstablishments(ctx, []Establishment{
		estab("École A", ""),
		estab("École B", ""),
		estab("École A", ""),
	}, Lookup{})
	require.NoError(t, err)

	assert.Equal(t, 2, res.Lookup.Len())

	var maxID int64
	require.NoError(t, s.DB.QueryRow("SELECT MAX(id) FROM etablissements WHERE nom = ?", "École A").Scan(&maxID))
	id, ok := res.Lookup.ID("École A")
	require.True(t, ok)
	assert.Equal(t, maxID, id)
}

// ============================================================================
// Personnel
// ============================================================================

func TestLoadPersonnel_CountsUnmatched(t *testing.T) {
	ctx := context.Background()
	l, s := newTestLoader(t)

	etabs, err := l.LoadEstablishments(ctx, []Establishment{estab("École A", "")}, Lookup{})
	require.NoError(t, err)

	res, err := l.LoadPersonnel(ctx, []Person{
		person("M1", "Diop", "École A"),
		person("M2", "Fall", "École X"),
		person("M3", "Sow", "École Y"),
		person("M4", "Ba", ""),
		person("M5", "Kane", "École X"),
	}, etabs.Lookup)
	require.NoError(t, err)

	assert.Equal(t, 5, res.Inserted)
	assert.Equal(t, 1, res.Linked)
	assert.Equal(t, 3, res.Unmatched)
	assert.Equal(t, 4, count(t, s, "SELECT COUNT(*) FROM personnel WHERE etablissement_id IS NULL"))
}

func TestLoadPersonnel_DuplicateMatriculeIsFatal(t *testing.T) {
	ctx := context.Background()
	l, s := newTestLoader(t)

	_, err := l.LoadPersonnel(ctx, []Person{
		person("M1", "Diop", ""),
		person("M1", "Fall", ""),
	}, Lookup{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, store.ErrConstraint))

	// The batch is one transaction: nothing from it is kept.
	assert.Equal(t, 0, count(t, s, "SELECT COUNT(*) FROM personnel"))
}

// ============================================================================
// Summary
// ============================================================================

func TestSummarize(t *testing.T) {
	ctx := context.Background()
	l, s := newTestLoader(t)

	communes, err := l.LoadCommunes(ctx, []CommunePair{{Name: "Louga"}})
	require.NoError(t, err)

	records := []Establishment{estab("E1", "Louga"), estab("E2", "Louga"), estab("E3", "Louga")}
	records[2].Type = "Moyen"
	etabs, err := l.LoadEstablishments(ctx, records, communes.Lookup)
	require.NoError(t, err)

	_, err = l.LoadPersonnel(ctx, []Person{
		person("M1", "Diop", "E1"),
		person("M2", "Fall", "E1"),
		person("M3", "Sow", "E2"),
		person("M4", "Ba", "E3"),
		person("M5", "Kane", ""),
	}, etabs.Lookup)
	require.NoError(t, err)

	sum, err := Summarize(ctx, s.DB)
	require.NoError(t, err)

	assert.Equal(t, 1, sum.Communes)
	assert.Equal(t, 3, sum.Establishments)
	assert.Equal(t, 5, sum.Personnel)
	assert.Equal(t, []LabelCount{{"Primaire", 2}, {"Moyen", 1}}, sum.ByType)
	assert.InDelta(t, 5.0/3.0, sum.Ratio(), 1e-9)
}

func TestSummarize_EmptyStore(t *testing.T) {
	s := newTestStore(t)

	sum, err := Summarize(context.Background(), s.DB)
	require.NoError(t, err)

	assert.Equal(t, 0, sum.Establishments)
	assert.Empty(t, sum.ByType)
	assert.Equal(t, 0.0, sum.Ratio())
}
