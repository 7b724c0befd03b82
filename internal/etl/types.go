// Package etl loads the two district exports (establishments and personnel)
// into a freshly initialized store.
//
// A run is strictly sequential: extract both sources, load communes, load
// establishments, load personnel, then read back a summary. Foreign keys are
// resolved by exact, trimmed display name through Lookup snapshots read back
// from the store after each insert stage.
package etl

import (
	"database/sql"
	"sort"
)

// Establishment is one kept row of the establishments source.
type Establishment struct {
	Name           string
	Type           string
	Commune        string
	Arrondissement string

	Zone       sql.NullString
	Statut     sql.NullString
	TypeStatut sql.NullString
	Director   sql.NullString
	Contact    sql.NullString
	Email      sql.NullString
}

// Person is one kept row of the personnel source.
type Person struct {
	Matricule string
	Nom       string

	// Establishment is the referenced establishment name; empty means none.
	Establishment string

	Prenom     sql.NullString
	Genre      sql.NullString
	Specialite sql.NullString
	Grade      sql.NullString
	Fonction   sql.NullString
	Contact    sql.NullString
	Statut     sql.NullString
}

// CommunePair is a distinct (commune, arrondissement) combination seen in the
// establishments source.
type CommunePair struct {
	Name           string
	Arrondissement string
}

// RowStats counts what an extractor did with its source rows.
type RowStats struct {
	Read    int
	Kept    int
	Skipped int
}

// EstablishmentBatch is the output of the establishment extractor.
type EstablishmentBatch struct {
	Records  []Establishment
	Communes []CommunePair
	Types    Counts
	Stats    RowStats
}

// PersonnelBatch is the output of the personnel extractor.
type PersonnelBatch struct {
	Records        []Person
	Establishments []string
	Specialties    Counts
	Stats          RowStats
}

// Counts is a label frequency table.
type Counts map[string]int

// LabelCount is one entry of a sorted Counts.
type LabelCount struct {
	Label string
	Count int
}

// Sorted returns the entries by descending count, ties by label. n <= 0
// returns all of them.
func (c Counts) Sorted(n int) []LabelCount {
	out := make([]LabelCount, 0, len(c))
	for label, count := range c {
		out = append(out, LabelCount{Label: label, Count: count})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Label < out[j].Label
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

// Lookup is an immutable name to id snapshot of a table, taken right after
// that table was loaded.
type Lookup struct {
	ids map[string]int64
}

// NewLookup copies ids into a Lookup.
func NewLookup(ids map[string]int64) Lookup {
	m := make(map[string]int64, len(ids))
	for k, v := range ids {
		m[k] = v
	}
	return Lookup{ids: m}
}

// ID resolves name by exact match.
func (l Lookup) ID(name string) (int64, bool) {
	id, ok := l.ids[name]
	return id, ok
}

// Len is the number of distinct names.
func (l Lookup) Len() int {
	return len(l.ids)
}

// nullID turns a lookup result into a nullable foreign key.
func (l Lookup) nullID(name string) sql.NullInt64 {
	if name == "" {
		return sql.NullInt64{}
	}
	id, ok := l.ids[name]
	return sql.NullInt64{Int64: id, Valid: ok}
}
