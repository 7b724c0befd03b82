package etl

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/JonMunkholm/iefreport/internal/config"
	"github.com/JonMunkholm/iefreport/internal/metrics"
	"github.com/JonMunkholm/iefreport/internal/store"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/charmap"
)

type fixture struct {
	dir string
	db  config.DatabaseConfig
	etl config.ETLConfig
}

func newFixture(t *testing.T, establishments, personnel string) fixture {
	t.Helper()
	dir := t.TempDir()

	f := fixture{
		dir: dir,
		db: config.DatabaseConfig{
			Driver:   config.DriverSQLite,
			URL:      filepath.Join(dir, "ief_louga.db"),
			MaxConns: 2,
		},
		etl: config.ETLConfig{
			EstablishmentsCSV:  filepath.Join(dir, "etablissements.csv"),
			PersonnelCSV:       filepath.Join(dir, "personnels.csv"),
			Encoding:           "latin-1",
			MissingPlaceholder: "nan",
			Department:         "LOUGA",
		},
	}
	writeLatin1(t, f.etl.EstablishmentsCSV, establishments)
	writeLatin1(t, f.etl.PersonnelCSV, personnel)
	return f
}

func writeLatin1(t *testing.T, path, content string) {
	t.Helper()
	b, err := charmap.ISO8859_1.NewEncoder().String(content)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, []byte(b), 0o644))
}

func (f fixture) open(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(context.Background(), f.db)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestPipeline_EstablishmentScenario(t *testing.T) {
	f := newFixture(t,
		etabHeader+
			"École A;Primaire;Louga Commune;Louga;;;;;;\n"+
			";Primaire;Louga Commune;Louga;;;;;;\n",
		persHeader)

	res, err := NewPipeline(f.db, f.etl, nil, nil).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Establishments.Skipped)

	s := f.open(t)

	var communeID int64
	require.NoError(t, s.DB.QueryRow("SELECT id FROM communes WHERE nom = ?", "Louga Commune").Scan(&communeID))
	assert.Equal(t, 1, count(t, s, "SELECT COUNT(*) FROM communes"))

	var etabCommune sql.NullInt64
	require.NoError(t, s.DB.QueryRow("SELECT commune_id FROM etablissements WHERE nom = ?", "École A").Scan(&etabCommune))
	assert.Equal(t, 1, count(t, s, "SELECT COUNT(*) FROM etablissements"))
	assert.True(t, etabCommune.Valid)
	assert.Equal(t, communeID, etabCommune.Int64)
}

func TestPipeline_UnmatchedPersonScenario(t *testing.T) {
	f := newFixture(t,
		etabHeader+"École A;Primaire;Louga Commune;Louga;;;;;;\n",
		persHeader+"M001;Diop;Awa;F;École Inconnue;;;;;\n")

	res, err := NewPipeline(f.db, f.etl, nil, nil).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.People.Unmatched)

	s := f.open(t)

	var etabID sql.NullInt64
	var prenom string
	require.NoError(t, s.DB.QueryRow("SELECT etablissement_id, prenom FROM personnel WHERE matricule = ?", "M001").Scan(&etabID, &prenom))
	assert.False(t, etabID.Valid)
	assert.Equal(t, "Awa", prenom)
}

func TestPipeline_RerunIsIdempotent(t *testing.T) {
	f := newFixture(t,
		etabHeader+
			"École A;Primaire;Louga;Louga;;Public;;;;\n"+
			"École B;Moyen;Kébémer;Kébémer;;Privé;;;;\n"+
			"École A;Primaire;Louga;Sakal;;;;;;\n"+
			"nan;Primaire;Ndiagne;Louga;;;;;;\n",
		persHeader+
			"M1;Diop;Awa;F;École A;;;;;\n"+
			"M2;Fall;Moussa;M;École B;;;;;\n"+
			"M3;Sow;Fatou;F;École Z;;;;;\n")

	tables := append([]string{}, store.Tables...)
	counts := func() map[string]int {
		s := f.open(t)
		defer s.Close()
		out := make(map[string]int)
		for _, table := range tables {
			out[table] = count(t, s, "SELECT COUNT(*) FROM "+table)
		}
		return out
	}

	p := NewPipeline(f.db, f.etl, nil, nil)
	first, err := p.Run(context.Background())
	require.NoError(t, err)
	before := counts()

	second, err := p.Run(context.Background())
	require.NoError(t, err)
	after := counts()

	assert.Equal(t, before, after)
	assert.Equal(t, map[string]int{"communes": 2, "etablissements": 3, "personnel": 3}, after)
	assert.Equal(t, first.Summary, second.Summary)
	assert.NotEqual(t, first.RunID, second.RunID)
}

func TestPipeline_RecordsRunAndMetrics(t *testing.T) {
	f := newFixture(t,
		etabHeader+"École A;Primaire;Louga;Louga;;;;;;\n;x;y;z;;;;;;\n",
		persHeader+"M1;Diop;Awa;F;École X;;;;;\n")

	m := metrics.New(prometheus.NewRegistry())
	var out bytes.Buffer
	res, err := NewPipeline(f.db, f.etl, m, &out).Run(context.Background())
	require.NoError(t, err)

	s := f.open(t)
	var status string
	var unmatched int
	require.NoError(t, s.DB.QueryRow("SELECT status, unmatched FROM etl_runs WHERE run_id = ?", res.RunID.String()).Scan(&status, &unmatched))
	assert.Equal(t, "success", status)
	assert.Equal(t, 1, unmatched)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.RowsRead.WithLabelValues("etablissements")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RowsSkipped.WithLabelValues("etablissements")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RowsInserted.WithLabelValues("personnel")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.UnmatchedPeople))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Runs.WithLabelValues("success")))

	assert.Contains(t, out.String(), "RÉSUMÉ")
}

func TestPipeline_MissingSourceAborts(t *testing.T) {
	f := newFixture(t, etabHeader, persHeader)
	require.NoError(t, os.Remove(f.etl.PersonnelCSV))

	m := metrics.New(prometheus.NewRegistry())
	_, err := NewPipeline(f.db, f.etl, m, nil).Run(context.Background())
	require.Error(t, err)

	var stageErr *StageError
	require.True(t, errors.As(err, &stageErr))
	assert.Equal(t, StageExtractPersonnel, stageErr.Stage)
	assert.True(t, errors.Is(err, os.ErrNotExist))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Runs.WithLabelValues("failure")))

	s := f.open(t)
	var status string
	require.NoError(t, s.DB.QueryRow("SELECT status FROM etl_runs").Scan(&status))
	assert.Equal(t, "failure", status)
}

func TestPipeline_UnreadableSchemaAborts(t *testing.T) {
	f := newFixture(t, etabHeader, persHeader)
	f.etl.SchemaPath = filepath.Join(f.dir, "missing.sql")

	_, err := NewPipeline(f.db, f.etl, nil, nil).Run(context.Background())
	require.Error(t, err)

	var stageErr *StageError
	require.True(t, errors.As(err, &stageErr))
	assert.Equal(t, StageSchema, stageErr.Stage)
}

func TestPipeline_ConstraintViolationKeepsEarlierStages(t *testing.T) {
	f := newFixture(t,
		etabHeader+"École A;Primaire;Louga;Louga;;;;;;\n",
		persHeader+"M1;Diop;;;École A;;;;;\nM1;Fall;;;École A;;;;;\n")

	_, err := NewPipeline(f.db, f.etl, nil, nil).Run(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, store.ErrConstraint))

	s := f.open(t)
	assert.Equal(t, 1, count(t, s, "SELECT COUNT(*) FROM communes"))
	assert.Equal(t, 1, count(t, s, "SELECT COUNT(*) FROM etablissements"))
	assert.Equal(t, 0, count(t, s, "SELECT COUNT(*) FROM personnel"))
}
