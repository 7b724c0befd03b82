package web

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/JonMunkholm/iefreport/internal/core"
	"github.com/JonMunkholm/iefreport/internal/logging"
)

// completeExportPrefix names the two-section export file.
const completeExportPrefix = "rapport_ief_louga"

// exportFunc streams one export into w and returns the rows written.
type exportFunc func(ctx context.Context, w io.Writer) (int, error)

// handleExportTable streams a registered table as CSV, honouring the same
// search, filters and sort as its listing page.
func (s *Server) handleExportTable(w http.ResponseWriter, r *http.Request) {
	tableKey := chi.URLParam(r, "tableKey")
	q, err := tableQuery(r, tableKey)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.streamExport(w, r, tableKey, tableKey, func(ctx context.Context, w io.Writer) (int, error) {
		return s.service.ExportTable(ctx, w, tableKey, q)
	})
}

// handleExportComplete streams establishments and personnel in one file.
func (s *Server) handleExportComplete(w http.ResponseWriter, r *http.Request) {
	s.streamExport(w, r, "complete", completeExportPrefix, s.service.ExportComplete)
}

// streamExport holds an export slot for the duration of run. Once the first
// row is out, failures can only be logged: the status is already sent.
func (s *Server) streamExport(w http.ResponseWriter, r *http.Request, name, prefix string, run exportFunc) {
	exports := s.service.Exports()
	if err := exports.Acquire(r.Context()); err != nil {
		s.fail(w, r, err)
		return
	}
	defer exports.Release()

	exportID := uuid.NewString()
	ctx := WithRequestMetadata(r.Context(), r)
	ctx = logging.NewContext(ctx, slog.Default().With("export_id", exportID))

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+core.ExportFilename(prefix, time.Now())+`"`)
	w.Header().Set("X-Export-ID", exportID)
	w.Header().Set("Cache-Control", "no-store")

	n, err := run(ctx, w)
	s.metrics.RecordExportRows(name, n)
	if err != nil {
		logging.FromContext(ctx).Error("export failed",
			"export", name,
			"rows", n,
			"error", err,
		)
	}
}
