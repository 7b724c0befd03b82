package etl

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/JonMunkholm/iefreport/internal/store"
)

const (
	insertCommuneSQL = `INSERT INTO communes (nom, arrondissement, departement)
VALUES (?, ?, ?)
ON CONFLICT (nom) DO NOTHING`

	insertEstablishmentSQL = `INSERT INTO etablissements (
    nom, type_etablissement, commune_id, zone, statut, type_statut,
    adresse, coordonnees_x, coordonnees_y, directeur, contact_1, email_directeur
) VALUES (?, ?, ?, ?, ?, ?, NULL, NULL, NULL, ?, ?, ?)`

	insertPersonSQL = `INSERT INTO personnel (
    matricule, nom, prenom, genre, grade, fonction, specialite,
    etablissement_id, contact, statut
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
)

// Loader writes extracted batches in dependency order. Each Load call is its
// own transaction and commits before returning.
type Loader struct {
	store *store.Store
	// Department is stored on every commune row.
	Department string
	// Placeholder is the source's "no value" literal; communes named with it
	// are never inserted.
	Placeholder string
}

// NewLoader returns a loader writing to s.
func NewLoader(s *store.Store, department, placeholder string) *Loader {
	return &Loader{store: s, Department: department, Placeholder: placeholder}
}

// CommuneLoad reports the commune stage.
type CommuneLoad struct {
	Attempted int
	Lookup    Lookup
}

// EstablishmentLoad reports the establishment stage.
type EstablishmentLoad struct {
	Inserted int
	// Linked counts establishments whose commune resolved.
	Linked int
	Lookup Lookup
}

// PersonnelLoad reports the personnel stage.
type PersonnelLoad struct {
	Inserted int
	// Linked counts people whose establishment resolved.
	Linked int
	// Unmatched counts people naming an establishment that is not loaded.
	Unmatched int
}

// LoadCommunes inserts each pair with insert-or-ignore on name: the first
// arrondissement seen for a name wins. The whole table is then read back.
func (l *Loader) LoadCommunes(ctx context.Context, pairs []CommunePair) (CommuneLoad, error) {
	var res CommuneLoad

	err := l.store.WithTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, l.store.Rebind(insertCommuneSQL))
		if err != nil {
			return fmt.Errorf("prepare: %w", err)
		}
		defer stmt.Close()

		for _, p := range pairs {
			if p.Name == "" || p.Name == l.Placeholder {
				continue
			}
			if _, err := stmt.ExecContext(ctx, p.Name, p.Arrondissement, l.Department); err != nil {
				return fmt.Errorf("insert commune %q: %w", p.Name, store.Translate(err))
			}
			res.Attempted++
		}
		return nil
	})
	if err != nil {
		return res, fmt.Errorf("load communes: %w", err)
	}

	res.Lookup, err = l.readLookup(ctx, "communes")
	if err != nil {
		return res, fmt.Errorf("load communes: %w", err)
	}
	return res, nil
}

// LoadEstablishments inserts every record in source order, resolving the
// commune by exact name (no match is a NULL reference). The read-back lookup
// maps a duplicated name to its highest id.
func (l *Loader) LoadEstablishments(ctx context.Context, records []Establishment, communes Lookup) (EstablishmentLoad, error) {
	var res EstablishmentLoad

	err := l.store.WithTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, l.store.Rebind(insertEstablishmentSQL))
		if err != nil {
			return fmt.Errorf("prepare: %w", err)
		}
		defer stmt.Close()

		for _, e := range records {
			communeID := communes.nullID(e.Commune)
			if _, err := stmt.ExecContext(ctx,
				e.Name, e.Type, communeID, e.Zone, e.Statut, e.TypeStatut,
				e.Director, e.Contact, e.Email,
			); err != nil {
				return fmt.Errorf("insert establishment %q: %w", e.Name, store.Translate(err))
			}
			res.Inserted++
			if communeID.Valid {
				res.Linked++
			}
		}
		return nil
	})
	if err != nil {
		return EstablishmentLoad{}, fmt.Errorf("load establishments: %w", err)
	}

	res.Lookup, err = l.readLookup(ctx, "etablissements")
	if err != nil {
		return res, fmt.Errorf("load establishments: %w", err)
	}
	return res, nil
}

// LoadPersonnel inserts every record in source order. A non-empty
// establishment name with no match is counted in Unmatched and stored as a
// NULL reference.
func (l *Loader) LoadPersonnel(ctx context.Context, records []Person, establishments Lookup) (PersonnelLoad, error) {
	var res PersonnelLoad

	err := l.store.WithTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, l.store.Rebind(insertPersonSQL))
		if err != nil {
			return fmt.Errorf("prepare: %w", err)
		}
		defer stmt.Close()

		for _, p := range records {
			etabID := establishments.nullID(p.Establishment)
			switch {
			case etabID.Valid:
				res.Linked++
			case p.Establishment != "":
				res.Unmatched++
			}

			if _, err := stmt.ExecContext(ctx,
				p.Matricule, p.Nom, p.Prenom, p.Genre, p.Grade, p.Fonction, p.Specialite,
				etabID, p.Contact, p.Statut,
			); err != nil {
				return fmt.Errorf("insert personnel %q: %w", p.Matricule, store.Translate(err))
			}
			res.Inserted++
		}
		return nil
	})
	if err != nil {
		return PersonnelLoad{}, fmt.Errorf("load personnel: %w", err)
	}
	return res, nil
}

// readLookup snapshots name -> id for table. Rows come back by ascending id
// so a repeated name keeps the last inserted id.
func (l *Loader) readLookup(ctx context.Context, table string) (Lookup, error) {
	rows, err := l.store.DB.QueryContext(ctx, "SELECT id, nom FROM "+table+" ORDER BY id")
	if err != nil {
		return Lookup{}, fmt.Errorf("read back %s: %w", table, err)
	}
	defer rows.Close()

	ids := make(map[string]int64)
	for rows.Next() {
		var (
			id  int64
			nom string
		)
		if err := rows.Scan(&id, &nom); err != nil {
			return Lookup{}, fmt.Errorf("scan %s: %w", table, err)
		}
		ids[nom] = id
	}
	if err := rows.Err(); err != nil {
		return Lookup{}, fmt.Errorf("read back %s: %w", table, err)
	}

	return Lookup{ids: ids}, nil
}
