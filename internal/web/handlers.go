package web

import (
	"context"
	"net/http"

	"github.com/a-h/templ"
	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/iefreport/internal/core"
	"github.com/JonMunkholm/iefreport/internal/logging"
	"github.com/JonMunkholm/iefreport/internal/web/templates"
)

// render writes an HTML component. Errors after the first byte cannot change
// the status, so they are only logged.
func render(w http.ResponseWriter, r *http.Request, c templ.Component) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := c.Render(r.Context(), w); err != nil {
		logging.FromContext(r.Context()).Error("render failed", "path", r.URL.Path, "error", err)
	}
}

// handleDashboard renders the main dashboard page.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	d, err := s.service.GetDashboard(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	render(w, r, templates.Dashboard(d))
}

// listing describes one filtered table page.
type listing struct {
	tableKey string
	title    string
	active   string
	basePath string
	export   string
	options  func(ctx context.Context) (map[string][]templates.Option, error)
}

// handleListing renders a paginated table. htmx requests get the table body
// only, so filters and pager can swap it in place.
func (s *Server) handleListing(w http.ResponseWriter, r *http.Request, l listing) {
	ctx := r.Context()

	q, err := tableQuery(r, l.tableKey)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	result, err := s.service.GetTableData(ctx, l.tableKey, q)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	opts, err := l.options(ctx)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	tv := templates.TableView{
		Title:      l.title,
		Active:     l.active,
		BasePath:   l.basePath,
		ExportPath: l.export,
		Result:     result,
		Options:    opts,
	}
	if isHTMX(r) {
		render(w, r, templates.TableBody(tv))
		return
	}
	render(w, r, templates.Table(tv))
}

func (s *Server) handleEstablishments(w http.ResponseWriter, r *http.Request) {
	s.handleListing(w, r, listing{
		tableKey: "etablissements",
		title:    "Établissements",
		active:   "etablissements",
		basePath: "/etablissements",
		export:   "/api/export/etablissements",
		options:  s.establishmentOptions,
	})
}

func (s *Server) handlePersonnel(w http.ResponseWriter, r *http.Request) {
	s.handleListing(w, r, listing{
		tableKey: "personnel",
		title:    "Personnel",
		active:   "personnel",
		basePath: "/personnel",
		export:   "/api/export/personnel",
		options:  s.personnelOptions,
	})
}

func (s *Server) handleCommunes(w http.ResponseWriter, r *http.Request) {
	s.handleListing(w, r, listing{
		tableKey: "communes",
		title:    "Communes",
		active:   "communes",
		basePath: "/communes",
		options:  s.communeOptions,
	})
}

func (s *Server) handleEstablishmentDetail(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	d, err := s.service.GetEstablishment(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	render(w, r, templates.EstablishmentDetail(d))
}

// handleEstablishmentFiche renders the printable establishment sheet.
func (s *Server) handleEstablishmentFiche(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	d, err := s.service.GetEstablishmentFiche(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	render(w, r, templates.EstablishmentFiche(d))
}

func (s *Server) handleEstablishmentsByType(w http.ResponseWriter, r *http.Request) {
	t, err := s.service.GetEstablishmentsByType(r.Context(), chi.URLParam(r, "type"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	render(w, r, templates.EstablishmentsOfType(t))
}

func (s *Server) handleEstablishmentAnalytics(w http.ResponseWriter, r *http.Request) {
	a, err := s.service.GetEstablishmentAnalytics(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	render(w, r, templates.EstablishmentAnalytics(a))
}

func (s *Server) handlePersonDetail(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	p, err := s.service.GetPerson(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	render(w, r, templates.PersonDetail(p))
}

// handlePersonFiche renders the printable personnel sheet.
func (s *Server) handlePersonFiche(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	p, err := s.service.GetPerson(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	render(w, r, templates.PersonFiche(p))
}

func (s *Server) handleUnassigned(w http.ResponseWriter, r *http.Request) {
	u, err := s.service.GetUnassigned(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	render(w, r, templates.Unassigned(u))
}

func (s *Server) handlePersonnelAnalytics(w http.ResponseWriter, r *http.Request) {
	a, err := s.service.GetPersonnelAnalytics(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	render(w, r, templates.PersonnelAnalytics(a))
}

func (s *Server) handleReports(w http.ResponseWriter, r *http.Request) {
	idx, err := s.service.GetReportsIndex(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	render(w, r, templates.ReportsIndex(idx))
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	kind, err := core.LookupReport(chi.URLParam(r, "kind"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	report, err := s.service.GetReport(r.Context(), kind.Key)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	render(w, r, templates.Report(kind, report))
}
