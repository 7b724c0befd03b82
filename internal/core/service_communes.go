package core

import (
	"context"
	"fmt"
	"strconv"

	"github.com/JonMunkholm/iefreport/internal/store"
)

// CommuneFigures are the per-commune counts shared by the communes list,
// the synthesis and the coverage report.
type CommuneFigures struct {
	ID             int64   `json:"id"`
	Name           string  `json:"nom"`
	Arrondissement string  `json:"arrondissement"`
	Establishments int     `json:"nb_etablissements"`
	Types          int     `json:"nb_types"`
	Personnel      int     `json:"nb_personnel"`
	Ratio          float64 `json:"ratio_personnel_etablissement"`
}

const communeFiguresSQL = `SELECT c.id, c.nom, c.arrondissement,
    (SELECT COUNT(*) FROM etablissements e WHERE e.commune_id = c.id) AS etablissements,
    (SELECT COUNT(DISTINCT e.type_etablissement) FROM etablissements e WHERE e.commune_id = c.id) AS types,
    (SELECT COUNT(*) FROM personnel p JOIN etablissements e ON e.id = p.etablissement_id WHERE e.commune_id = c.id) AS personnel
FROM communes c`

// ListCommunes returns every commune with its establishment and staff counts.
func (s *Service) ListCommunes(ctx context.Context) ([]CommuneFigures, error) {
	return s.communeFigures(ctx, "", "nom", 0)
}

// communeFigures selects from the per-commune figures. where is a condition
// on the cf columns ("" for none), order a trusted ORDER BY list, limit 0
// for all rows.
func (s *Service) communeFigures(ctx context.Context, where, order string, limit int) ([]CommuneFigures, error) {
	q := "SELECT id, nom, arrondissement, etablissements, types, personnel FROM (" + communeFiguresSQL + ") cf"
	if where != "" {
		q += " WHERE " + where
	}
	q += " ORDER BY " + order + ", nom"
	if limit > 0 {
		q += " LIMIT " + strconv.Itoa(limit)
	}

	rows, err := s.query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("commune figures: %w", store.Translate(err))
	}
	defer rows.Close()

	var out []CommuneFigures
	for rows.Next() {
		var c CommuneFigures
		if err := rows.Scan(&c.ID, &c.Name, text{&c.Arrondissement}, &c.Establishments, &c.Types, &c.Personnel); err != nil {
			return nil, fmt.Errorf("commune figures: %w", err)
		}
		c.Ratio = ratio(c.Personnel, c.Establishments)
		out = append(out, c)
	}
	return out, rows.Err()
}
