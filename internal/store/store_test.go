package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/JonMunkholm/iefreport/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sqliteConfig(t *testing.T) config.DatabaseConfig {
	t.Helper()
	return config.DatabaseConfig{
		Driver:   config.DriverSQLite,
		URL:      filepath.Join(t.TempDir(), "ief.db"),
		MaxConns: 4,
		MinConns: 1,
	}
}

func countRows(t *testing.T, s *Store, table string) int {
	t.Helper()
	var n int
	require.NoError(t, s.DB.QueryRow("SELECT COUNT(*) FROM "+table).Scan(&n))
	return n
}

// ============================================================================
// Initialize
// ============================================================================

func TestInitialize_DefaultSchema(t *testing.T) {
	ctx := context.Background()
	cfg := sqliteConfig(t)

	s, err := Initialize(ctx, cfg, nil)
	require.NoError(t, err)
	defer s.Close()

	for _, table := range Tables {
		assert.Equal(t, 0, countRows(t, s, table), table)
	}
	assert.Equal(t, config.DriverSQLite, s.Driver())
}

func TestInitialize_DiscardsPreviousStore(t *testing.T) {
	ctx := context.Background()
	cfg := sqliteConfig(t)

	s, err := Initialize(ctx, cfg, nil)
	require.NoError(t, err)
	_, err = s.DB.Exec("INSERT INTO communes (nom, arrondissement, departement) VALUES ('Louga', 'Louga', 'LOUGA')")
	require.NoError(t, err)
	require.Equal(t, 1, countRows(t, s, "communes"))
	require.NoError(t, s.Close())

	s, err = Initialize(ctx, cfg, nil)
	require.NoError(t, err)
	defer s.Close()

	assert.Equal(t, 0, countRows(t, s, "communes"))
}

func TestInitialize_CustomSchema(t *testing.T) {
	ctx := context.Background()
	cfg := sqliteConfig(t)

	schema := []byte(`
-- minimal; schema
CREATE TABLE communes (id INTEGER PRIMARY KEY, nom TEXT UNIQUE, arrondissement TEXT, departement TEXT);
CREATE TABLE notes (id INTEGER PRIMARY KEY, body TEXT DEFAULT 'a;b');
`)
	s, err := Initialize(ctx, cfg, schema)
	require.NoError(t, err)
	defer s.Close()

	assert.Equal(t, 0, countRows(t, s, "notes"))
}

// Runs against a disposable database named by IEF_TEST_POSTGRES_URL.
func TestInitialize_PostgresRerunWithCustomObjects(t *testing.T) {
	url := os.Getenv("IEF_TEST_POSTGRES_URL")
	if url == "" {
		t.Skip("IEF_TEST_POSTGRES_URL not set")
	}
	ctx := context.Background()
	cfg := config.DatabaseConfig{Driver: config.DriverPostgres, URL: url, MaxConns: 2}

	schema := []byte(`
CREATE TABLE communes (id SERIAL PRIMARY KEY, nom TEXT UNIQUE, arrondissement TEXT, departement TEXT);
CREATE TABLE notes (id SERIAL PRIMARY KEY, body TEXT);
CREATE VIEW commune_names AS SELECT nom FROM communes;
`)
	for run := 1; run <= 2; run++ {
		s, err := Initialize(ctx, cfg, schema)
		require.NoError(t, err, "run %d", run)
		assert.Equal(t, 0, countRows(t, s, "notes"))
		s.Close()
	}
}

func TestInitialize_FailingStatementAborts(t *testing.T) {
	ctx := context.Background()
	cfg := sqliteConfig(t)

	schema := []byte("CREATE TABLE ok (id INTEGER);\nCREATE TABLE broken (;")
	_, err := Initialize(ctx, cfg, schema)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "schema statement 2")
}

func TestInitialize_EmptySchema(t *testing.T) {
	_, err := Initialize(context.Background(), sqliteConfig(t), []byte("-- nothing\n"))
	require.Error(t, err)
}

func TestInitialize_UnknownDriver(t *testing.T) {
	cfg := sqliteConfig(t)
	cfg.Driver = "oracle"
	_, err := Initialize(context.Background(), cfg, nil)
	require.Error(t, err)
}

func TestOpen_ExistingStore(t *testing.T) {
	ctx := context.Background()
	cfg := sqliteConfig(t)

	s, err := Initialize(ctx, cfg, nil)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = Open(ctx, cfg)
	require.NoError(t, err)
	defer s.Close()

	assert.Equal(t, 0, countRows(t, s, "personnel"))
	_, err = os.Stat(cfg.URL)
	assert.NoError(t, err)
}

func TestEnsureRunsTable(t *testing.T) {
	ctx := context.Background()
	s, err := Initialize(ctx, sqliteConfig(t), nil)
	require.NoError(t, err)
	defer s.Close()

	has, err := s.HasTable(ctx, RunsTable)
	require.NoError(t, err)
	assert.False(t, has)

	require.NoError(t, s.EnsureRunsTable(ctx))
	require.NoError(t, s.EnsureRunsTable(ctx))
	assert.Equal(t, 0, countRows(t, s, RunsTable))

	has, err = s.HasTable(ctx, RunsTable)
	require.NoError(t, err)
	assert.True(t, has)
}

// ============================================================================
// Errors
// ============================================================================

func TestTranslate_UniqueViolation(t *testing.T) {
	ctx := context.Background()
	s, err := Initialize(ctx, sqliteConfig(t), nil)
	require.NoError(t, err)
	defer s.Close()

	_, err = s.DB.Exec("INSERT INTO personnel (matricule, nom) VALUES ('M1', 'Diop')")
	require.NoError(t, err)
	_, err = s.DB.Exec("INSERT INTO personnel (matricule, nom) VALUES ('M1', 'Fall')")
	require.Error(t, err)

	assert.True(t, errors.Is(Translate(err), ErrConstraint))
}

func TestTranslate_NoRows(t *testing.T) {
	ctx := context.Background()
	s, err := Initialize(ctx, sqliteConfig(t), nil)
	require.NoError(t, err)
	defer s.Close()

	var id int
	err = s.DB.QueryRow("SELECT id FROM communes WHERE nom = 'absent'").Scan(&id)
	assert.ErrorIs(t, Translate(err), ErrNotFound)
	assert.Nil(t, Translate(nil))
}

// ============================================================================
// Rebind and SplitStatements
// ============================================================================

func TestRebind(t *testing.T) {
	pg := &Store{dialect: postgresDialect{}}
	lite := &Store{dialect: sqliteDialect{}}

	tests := []struct {
		in, want string
	}{
		{"SELECT 1", "SELECT 1"},
		{"SELECT * FROM t WHERE a = ? AND b = ?", "SELECT * FROM t WHERE a = $1 AND b = $2"},
		{"SELECT '?' FROM t WHERE a = ?", "SELECT '?' FROM t WHERE a = $1"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, pg.Rebind(tt.in))
		assert.Equal(t, tt.in, lite.Rebind(tt.in))
	}
}

func TestSplitStatements(t *testing.T) {
	script := `
-- header; with semicolon
CREATE TABLE a (x TEXT DEFAULT 'x;y');
CREATE TABLE b (y INTEGER);   -- trailing
;
CREATE INDEX i ON a(x)`

	got := SplitStatements(script)
	require.Len(t, got, 3)
	assert.Equal(t, "CREATE TABLE a (x TEXT DEFAULT 'x;y')", got[0])
	assert.Equal(t, "CREATE TABLE b (y INTEGER)", got[1])
	assert.Equal(t, "CREATE INDEX i ON a(x)", got[2])
}

func TestLoadSchema(t *testing.T) {
	b, err := LoadSchema("", config.DriverPostgres)
	require.NoError(t, err)
	assert.Contains(t, string(b), "SERIAL PRIMARY KEY")

	path := filepath.Join(t.TempDir(), "schema.sql")
	require.NoError(t, os.WriteFile(path, []byte("CREATE TABLE x (id INTEGER);"), 0o644))
	b, err = LoadSchema(path, config.DriverSQLite)
	require.NoError(t, err)
	assert.Equal(t, "CREATE TABLE x (id INTEGER);", string(b))

	_, err = LoadSchema(filepath.Join(t.TempDir(), "missing.sql"), config.DriverSQLite)
	assert.Error(t, err)
}

func TestSqliteDSN(t *testing.T) {
	assert.Equal(t, "a.db?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", sqliteDSN("a.db"))
	assert.Equal(t, "file:a.db?mode=rw&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", sqliteDSN("file:a.db?mode=rw"))
}
