package core

import "database/sql"

// text scans a nullable column into a plain string, NULL becoming "".
type text struct{ dst *string }

func (t text) Scan(v any) error {
	var ns sql.NullString
	if err := ns.Scan(v); err != nil {
		return err
	}
	*t.dst = ns.String
	return nil
}

// nullable scans a nullable integer into a plain int64, NULL becoming 0.
type nullable struct{ dst *int64 }

func (n nullable) Scan(v any) error {
	var ni sql.NullInt64
	if err := ni.Scan(v); err != nil {
		return err
	}
	*n.dst = ni.Int64
	return nil
}

// decimal scans a numeric aggregate (AVG, ROUND) into a float64, NULL
// becoming 0. Postgres hands numerics back as text.
type decimal struct{ dst *float64 }

func (d decimal) Scan(v any) error {
	var nf sql.NullFloat64
	if err := nf.Scan(v); err != nil {
		return err
	}
	*d.dst = nf.Float64
	return nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}
