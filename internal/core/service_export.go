package core

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/unicode/norm"

	"github.com/JonMunkholm/iefreport/internal/logging"
	"github.com/JonMunkholm/iefreport/internal/store"
)

// Section markers of the complete export.
const (
	completeEstablishmentsHeader = "=== ÉTABLISSEMENTS ==="
	completePersonnelHeader      = "=== PERSONNEL ==="
)

// flusher is implemented by http.ResponseWriter implementations that can
// push buffered bytes to the client.
type flusher interface {
	Flush()
}

// ExportTable streams every row of tableKey matching q's search and filters
// as CSV, header first. Pagination in q is ignored. Returns the number of
// data rows written.
func (s *Service) ExportTable(ctx context.Context, w io.Writer, tableKey string, q ListQuery) (int, error) {
	def, err := lookup(tableKey)
	if err != nil {
		return 0, err
	}
	wb, err := buildWhere(def, q)
	if err != nil {
		return 0, err
	}
	order, _ := orderBy(def, q.Sort)

	cw := csv.NewWriter(w)
	n, err := s.writeCSV(ctx, cw, w, def, wb, order)
	if err != nil {
		return n, fmt.Errorf("export %s: %w", tableKey, err)
	}
	logExport(ctx, tableKey, n)
	return n, nil
}

func logExport(ctx context.Context, export string, rows int) {
	logging.FromContext(ctx).Info("export completed",
		"export", export,
		"rows", rows,
		"ip", GetIPAddressFromContext(ctx),
		"user_agent", GetUserAgentFromContext(ctx),
	)
}

// ExportComplete writes the establishments then the personnel as two CSV
// sections, each introduced by a marker line. Establishments are ordered by
// arrondissement, commune and name.
func (s *Service) ExportComplete(ctx context.Context, w io.Writer) (int, error) {
	etabs, err := lookup("etablissements")
	if err != nil {
		return 0, err
	}
	staff, err := lookup("personnel")
	if err != nil {
		return 0, err
	}

	if _, err := io.WriteString(w, completeEstablishmentsHeader+"\n"); err != nil {
		return 0, err
	}
	cw := csv.NewWriter(w)
	n, err := s.writeCSV(ctx, cw, w, etabs, NewWhereBuilder(), " ORDER BY c.arrondissement, c.nom, e.nom, e.id")
	if err != nil {
		return n, fmt.Errorf("export complete establishments: %w", err)
	}

	if _, err := io.WriteString(w, "\n\n"+completePersonnelHeader+"\n"); err != nil {
		return n, err
	}
	order, _ := orderBy(staff, SortSpec{})
	m, err := s.writeCSV(ctx, cw, w, staff, NewWhereBuilder(), order)
	if err != nil {
		return n + m, fmt.Errorf("export complete personnel: %w", err)
	}
	logExport(ctx, "complete", n+m)
	return n + m, nil
}

// writeCSV streams the export fields of def. The csv writer is flushed every
// ExportFlushRows rows, and w too when it can flush.
func (s *Service) writeCSV(ctx context.Context, cw *csv.Writer, w io.Writer, def TableDefinition, wb *WhereBuilder, order string) (int, error) {
	fields := def.ExportFields()
	header := make([]string, len(fields))
	for i, f := range fields {
		header[i] = f.Label
	}
	if err := cw.Write(header); err != nil {
		return 0, err
	}

	whereClause, args := wb.Build()
	rows, err := s.query(ctx, selectClause(def, fields)+whereClause+order, args...)
	if err != nil {
		return 0, store.Translate(err)
	}
	defer rows.Close()

	written := 0
	err = scanTableRows(rows, fields, func(_ int64, values []string) error {
		if err := cw.Write(values); err != nil {
			return err
		}
		written++
		if written%s.cfg.ExportFlushRows == 0 {
			if err := flush(cw, w); err != nil {
				return err
			}
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return written, err
	}
	return written, flush(cw, w)
}

func flush(cw *csv.Writer, w io.Writer) error {
	cw.Flush()
	if err := cw.Error(); err != nil {
		return err
	}
	if f, ok := w.(flusher); ok {
		f.Flush()
	}
	return nil
}

// ExportFilename builds "<prefix>_YYYYMMDD_HHMM.csv" with the prefix folded
// to lowercase ASCII.
func ExportFilename(prefix string, now time.Time) string {
	return foldASCII(prefix) + "_" + now.Format("20060102_1504") + ".csv"
}

// foldASCII strips diacritics and replaces anything outside [a-z0-9_-]
// with an underscore.
func foldASCII(s string) string {
	decomposed := norm.NFD.String(strings.ToLower(strings.TrimSpace(s)))
	var b strings.Builder
	b.Grow(len(decomposed))
	for _, r := range decomposed {
		switch {
		case unicode.Is(unicode.Mn, r):
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_', r == '-':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	if b.Len() == 0 {
		return "export"
	}
	return b.String()
}
