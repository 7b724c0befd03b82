package etl

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/charmap"
)

const etabHeader = "nom_etablissement;type_etablissement;commune;arrondissement;zone;statut;type_statut;nom_directeur_complet;contact_1;email_etablissement\n"
const persHeader = "matricule;nom;prenom;genre;etablissement;specialite;grade;fonction;contact;statut\n"

func latin1(t *testing.T, s string) io.Reader {
	t.Helper()
	b, err := charmap.ISO8859_1.NewEncoder().String(s)
	require.NoError(t, err)
	return strings.NewReader(b)
}

func testExtractor() Extractor {
	return Extractor{Encoding: "latin-1", Placeholder: "nan"}
}

// ============================================================================
// Establishments
// ============================================================================

func TestEstablishments_SkipsMissingNames(t *testing.T) {
	src := etabHeader +
		"École A;Primaire;Louga Commune;Louga;;;;;;\n" +
		";Primaire;Louga Commune;Louga;;;;;;\n" +
		"nan;Primaire;Louga Commune;Louga;;;;;;\n" +
		"   ;Primaire;Louga Commune;Louga;;;;;;\n" +
		"  Collège B  ;Moyen;Kébémer;Kébémer;;;;;;\n"

	batch, err := testExtractor().Establishments(latin1(t, src))
	require.NoError(t, err)

	assert.Equal(t, 5, batch.Stats.Read)
	assert.Equal(t, 3, batch.Stats.Skipped)
	assert.Equal(t, 2, batch.Stats.Kept)
	assert.Len(t, batch.Records, batch.Stats.Read-batch.Stats.Skipped)

	assert.Equal(t, "École A", batch.Records[0].Name)
	assert.Equal(t, "Collège B", batch.Records[1].Name)
}

func TestEstablishments_KeepsDuplicatesInOrder(t *testing.T) {
	src := etabHeader +
		"École A;Primaire;Louga;Louga;;;;;;\n" +
		"École B;Primaire;Louga;Louga;;;;;;\n" +
		"École A;Moyen;Louga;Louga;;;;;;\n"

	batch, err := testExtractor().Establishments(latin1(t, src))
	require.NoError(t, err)

	require.Len(t, batch.Records, 3)
	assert.Equal(t, []string{"École A", "École B", "École A"},
		[]string{batch.Records[0].Name, batch.Records[1].Name, batch.Records[2].Name})
	assert.Equal(t, Counts{"Primaire": 2, "Moyen": 1}, batch.Types)
}

func TestEstablishments_CommunePairs(t *testing.T) {
	src := etabHeader +
		"E1;Primaire;Louga;Louga;;;;;;\n" +
		"E2;Primaire;Kébémer;Kébémer;;;;;;\n" +
		"E3;Primaire;Louga;Louga;;;;;;\n" +
		"E4;Primaire;Louga;Sakal;;;;;;\n" +
		"E5;Primaire;nan;Louga;;;;;;\n" +
		"E6;Primaire;;Louga;;;;;;\n" +
		"nan;Primaire;Ndiagne;Louga;;;;;;\n"

	batch, err := testExtractor().Establishments(latin1(t, src))
	require.NoError(t, err)

	assert.Equal(t, []CommunePair{
		{Name: "Louga", Arrondissement: "Louga"},
		{Name: "Kébémer", Arrondissement: "Kébémer"},
		{Name: "Louga", Arrondissement: "Sakal"},
	}, batch.Communes)
}

func TestEstablishments_OptionalFields(t *testing.T) {
	src := etabHeader +
		"École A;Primaire;Louga;Louga;Urbaine;Public;Public Etat; Awa Diop ;771234567;ecole@example.sn\n" +
		"École B;Primaire;Louga;Louga; ;;  ;;;\n"

	batch, err := testExtractor().Establishments(latin1(t, src))
	require.NoError(t, err)
	require.Len(t, batch.Records, 2)

	a := batch.Records[0]
	assert.Equal(t, "Urbaine", a.Zone.String)
	assert.True(t, a.Zone.Valid)
	assert.Equal(t, "Public", a.Statut.String)
	assert.Equal(t, "Public Etat", a.TypeStatut.String)
	assert.Equal(t, "Awa Diop", a.Director.String)
	assert.Equal(t, "771234567", a.Contact.String)
	assert.Equal(t, "ecole@example.sn", a.Email.String)

	b := batch.Records[1]
	assert.False(t, b.Zone.Valid)
	assert.False(t, b.Statut.Valid)
	assert.False(t, b.TypeStatut.Valid)
	assert.False(t, b.Director.Valid)
	assert.False(t, b.Contact.Valid)
	assert.False(t, b.Email.Valid)
}

func TestEstablishments_ShortRowsAndMissingOptionalColumns(t *testing.T) {
	src := "nom_etablissement;type_etablissement;commune;arrondissement\n" +
		"École A;Primaire\n"

	batch, err := testExtractor().Establishments(latin1(t, src))
	require.NoError(t, err)
	require.Len(t, batch.Records, 1)
	assert.Equal(t, "", batch.Records[0].Commune)
	assert.False(t, batch.Records[0].Zone.Valid)
	assert.Empty(t, batch.Communes)
}

func TestEstablishments_MissingRequiredColumn(t *testing.T) {
	src := "nom_etablissement;type_etablissement;commune\nÉcole A;Primaire;Louga\n"

	_, err := testExtractor().Establishments(latin1(t, src))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "arrondissement")
}

func TestEstablishments_EmptySource(t *testing.T) {
	_, err := testExtractor().Establishments(strings.NewReader(""))
	assert.Error(t, err)
}

func TestEstablishments_CustomPlaceholder(t *testing.T) {
	src := etabHeader +
		"N/A;Primaire;Louga;Louga;;;;;;\n" +
		"nan;Primaire;N/A;Louga;;;;;;\n"

	x := Extractor{Encoding: "latin-1", Placeholder: "N/A"}
	batch, err := x.Establishments(latin1(t, src))
	require.NoError(t, err)

	require.Len(t, batch.Records, 1)
	assert.Equal(t, "nan", batch.Records[0].Name)
	assert.Empty(t, batch.Communes)
}

// ============================================================================
// Personnel
// ============================================================================

func TestPersonnel_SkipsMissingMatriculeOrNom(t *testing.T) {
	src := persHeader +
		"M001;Diop;Awa;F;École A;Français;;;;\n" +
		";Fall;Moussa;M;École A;;;;;\n" +
		"M003;;Moussa;M;École A;;;;;\n" +
		"  ;  ;;;;;;;;\n" +
		" M005 ; Ndiaye ;;;;;;;;\n"

	batch, err := testExtractor().Personnel(latin1(t, src))
	require.NoError(t, err)

	assert.Equal(t, 5, batch.Stats.Read)
	assert.Equal(t, 3, batch.Stats.Skipped)
	assert.Len(t, batch.Records, batch.Stats.Read-batch.Stats.Skipped)
	assert.Equal(t, "M005", batch.Records[1].Matricule)
	assert.Equal(t, "Ndiaye", batch.Records[1].Nom)
	assert.False(t, batch.Records[1].Prenom.Valid)
}

func TestPersonnel_ReferencesAndSpecialties(t *testing.T) {
	src := persHeader +
		"M1;Diop;Awa;F;École A;Français;;;;\n" +
		"M2;Fall;Moussa;M;École B;Maths;;;;\n" +
		"M3;Sow;Fatou;F;École A;Français;;;;\n" +
		"M4;Ba;Ali;M;nan;nan;;;;\n" +
		"M5;Kane;Ami;F;;;;;;\n"

	batch, err := testExtractor().Personnel(latin1(t, src))
	require.NoError(t, err)

	assert.Equal(t, []string{"École A", "École B"}, batch.Establishments)
	assert.Equal(t, Counts{"Français": 2, "Maths": 1}, batch.Specialties)

	assert.Equal(t, "nan", batch.Records[3].Establishment)
	assert.Equal(t, "", batch.Records[4].Establishment)
}

func TestPersonnel_Fields(t *testing.T) {
	src := persHeader + "M001;Diop;Awa;F;École A;Français;Instituteur;Enseignant;771112233;Titulaire\n"

	batch, err := testExtractor().Personnel(latin1(t, src))
	require.NoError(t, err)
	require.Len(t, batch.Records, 1)

	p := batch.Records[0]
	assert.Equal(t, "M001", p.Matricule)
	assert.Equal(t, "Diop", p.Nom)
	assert.Equal(t, "Awa", p.Prenom.String)
	assert.Equal(t, "F", p.Genre.String)
	assert.Equal(t, "École A", p.Establishment)
	assert.Equal(t, "Français", p.Specialite.String)
	assert.Equal(t, "Instituteur", p.Grade.String)
	assert.Equal(t, "Enseignant", p.Fonction.String)
	assert.Equal(t, "771112233", p.Contact.String)
	assert.Equal(t, "Titulaire", p.Statut.String)
}

// ============================================================================
// Source decoding
// ============================================================================

func TestDecodeSource_Encodings(t *testing.T) {
	tests := []struct {
		name     string
		encoding string
		input    []byte
		want     string
	}{
		{"latin-1", "latin-1", []byte{'C', 'o', 'l', 'l', 0xE8, 'g', 'e'}, "Collège"},
		{"iso alias", "ISO-8859-1", []byte{0xC9, 'c', 'o', 'l', 'e'}, "École"},
		{"windows-1252 quote", "windows-1252", []byte{0x92}, "’"},
		{"utf-8 with BOM", "utf-8", append([]byte{0xEF, 0xBB, 0xBF}, []byte("École")...), "École"},
		{"latin-1 with BOM", "latin-1", append([]byte{0xEF, 0xBB, 0xBF}, 'a'), "a"},
		{"utf-8 invalid byte", "utf-8", []byte{'a', 0xE8, 'b'}, "a?b"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := decodeSource(bytes.NewReader(tt.input), tt.encoding)
			require.NoError(t, err)
			got, err := io.ReadAll(r)
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(got))
		})
	}
}

func TestDecodeSource_UnknownEncoding(t *testing.T) {
	_, err := decodeSource(strings.NewReader("x"), "ebcdic")
	assert.Error(t, err)
}

func TestUTF8Sanitizer_SplitSequence(t *testing.T) {
	// One byte at a time forces every multi-byte rune across a read boundary.
	input := []byte("é;ü")
	r := newUTF8Sanitizer(&oneByteReader{data: input})

	got, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "é;ü", string(got))
}

type oneByteReader struct {
	data []byte
}

func (r *oneByteReader) Read(p []byte) (int, error) {
	if len(r.data) == 0 {
		return 0, io.EOF
	}
	p[0] = r.data[0]
	r.data = r.data[1:]
	return 1, nil
}

func TestCountsSorted(t *testing.T) {
	c := Counts{"b": 2, "a": 2, "c": 5, "d": 1}

	assert.Equal(t, []LabelCount{{"c", 5}, {"a", 2}, {"b", 2}, {"d", 1}}, c.Sorted(0))
	assert.Equal(t, []LabelCount{{"c", 5}, {"a", 2}}, c.Sorted(2))
	assert.Empty(t, Counts{}.Sorted(3))
}
