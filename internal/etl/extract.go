package etl

import (
	"database/sql"
	"fmt"
	"io"
)

// Source column names.
const (
	colEtabName       = "nom_etablissement"
	colEtabType       = "type_etablissement"
	colCommune        = "commune"
	colArrondissement = "arrondissement"
	colZone           = "zone"
	colStatut         = "statut"
	colTypeStatut     = "type_statut"
	colDirector       = "nom_directeur_complet"
	colContact1       = "contact_1"
	colEtabEmail      = "email_etablissement"

	colMatricule     = "matricule"
	colNom           = "nom"
	colPrenom        = "prenom"
	colGenre         = "genre"
	colEtablissement = "etablissement"
	colSpecialite    = "specialite"
	colGrade         = "grade"
	colFonction      = "fonction"
	colContact       = "contact"
)

var (
	establishmentColumns = []string{colEtabName, colEtabType, colCommune, colArrondissement}
	personnelColumns     = []string{colMatricule, colNom}
)

// Extractor parses the two district exports.
type Extractor struct {
	// Encoding of both sources (latin-1, windows-1252, utf-8).
	Encoding string
	// Placeholder is the literal the exporting tool writes for "no value".
	Placeholder string
}

func (x Extractor) missing(v string) bool {
	return v == "" || v == x.Placeholder
}

// Establishments reads the establishments source. Rows whose trimmed name is
// empty or the placeholder are skipped; every other row is kept in source
// order, duplicates included.
func (x Extractor) Establishments(r io.Reader) (*EstablishmentBatch, error) {
	batch := &EstablishmentBatch{Types: Counts{}}
	seen := make(map[CommunePair]bool)

	err := scanRows(r, x.Encoding, establishmentColumns, func(rec row) error {
		batch.Stats.Read++

		name := rec.get(colEtabName)
		if x.missing(name) {
			batch.Stats.Skipped++
			return nil
		}

		e := Establishment{
			Name:           name,
			Type:           rec.get(colEtabType),
			Commune:        rec.get(colCommune),
			Arrondissement: rec.get(colArrondissement),
			Zone:           optional(rec.get(colZone)),
			Statut:         optional(rec.get(colStatut)),
			TypeStatut:     optional(rec.get(colTypeStatut)),
			Director:       optional(rec.get(colDirector)),
			Contact:        optional(rec.get(colContact1)),
			Email:          optional(rec.get(colEtabEmail)),
		}
		batch.Records = append(batch.Records, e)
		batch.Stats.Kept++

		if !x.missing(e.Commune) {
			pair := CommunePair{Name: e.Commune, Arrondissement: e.Arrondissement}
			if !seen[pair] {
				seen[pair] = true
				batch.Communes = append(batch.Communes, pair)
			}
		}
		if e.Type != "" {
			batch.Types[e.Type]++
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("extract establishments: %w", err)
	}

	return batch, nil
}

// Personnel reads the personnel source. Rows with an empty matricule or
// surname are skipped.
func (x Extractor) Personnel(r io.Reader) (*PersonnelBatch, error) {
	batch := &PersonnelBatch{Specialties: Counts{}}
	seen := make(map[string]bool)

	err := scanRows(r, x.Encoding, personnelColumns, func(rec row) error {
		batch.Stats.Read++

		matricule := rec.get(colMatricule)
		nom := rec.get(colNom)
		if matricule == "" || nom == "" {
			batch.Stats.Skipped++
			return nil
		}

		p := Person{
			Matricule:     matricule,
			Nom:           nom,
			Establishment: rec.get(colEtablissement),
			Prenom:        optional(rec.get(colPrenom)),
			Genre:         optional(rec.get(colGenre)),
			Specialite:    optional(rec.get(colSpecialite)),
			Grade:         optional(rec.get(colGrade)),
			Fonction:      optional(rec.get(colFonction)),
			Contact:       optional(rec.get(colContact)),
			Statut:        optional(rec.get(colStatut)),
		}
		batch.Records = append(batch.Records, p)
		batch.Stats.Kept++

		if !x.missing(p.Establishment) && !seen[p.Establishment] {
			seen[p.Establishment] = true
			batch.Establishments = append(batch.Establishments, p.Establishment)
		}
		if p.Specialite.Valid && p.Specialite.String != x.Placeholder {
			batch.Specialties[p.Specialite.String]++
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("extract personnel: %w", err)
	}

	return batch, nil
}

// optional normalizes an empty trimmed value to NULL.
func optional(v string) sql.NullString {
	return sql.NullString{String: v, Valid: v != ""}
}
