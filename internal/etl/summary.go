package etl

import (
	"context"
	"fmt"

	"github.com/JonMunkholm/iefreport/internal/store"
)

// Summary is the post-load sanity check read back from the store.
type Summary struct {
	Communes       int
	Establishments int
	ByType         []LabelCount
	Personnel      int
}

// Ratio is personnel per establishment, 0 when nothing was loaded.
func (s Summary) Ratio() float64 {
	if s.Establishments == 0 {
		return 0
	}
	return float64(s.Personnel) / float64(s.Establishments)
}

// Summarize reads aggregate counts. It never writes.
func Summarize(ctx context.Context, db store.DBTX) (Summary, error) {
	var s Summary

	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM communes").Scan(&s.Communes); err != nil {
		return s, fmt.Errorf("count communes: %w", err)
	}
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM personnel").Scan(&s.Personnel); err != nil {
		return s, fmt.Errorf("count personnel: %w", err)
	}

	rows, err := db.QueryContext(ctx, `SELECT COALESCE(type_etablissement, ''), COUNT(*) AS n
FROM etablissements
GROUP BY type_etablissement
ORDER BY n DESC, 1`)
	if err != nil {
		return s, fmt.Errorf("count establishments by type: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var lc LabelCount
		if err := rows.Scan(&lc.Label, &lc.Count); err != nil {
			return s, fmt.Errorf("scan establishment type: %w", err)
		}
		s.ByType = append(s.ByType, lc)
		s.Establishments += lc.Count
	}
	if err := rows.Err(); err != nil {
		return s, fmt.Errorf("count establishments by type: %w", err)
	}

	return s, nil
}
