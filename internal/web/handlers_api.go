package web

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/iefreport/internal/core"
)

// ListResponse is the JSON shape of a paginated listing.
type ListResponse struct {
	Table      string           `json:"table"`
	Data       []map[string]any `json:"data"`
	Pagination core.Pagination  `json:"pagination"`
}

// handleListTables returns all tables organized by group.
func (s *Server) handleListTables(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.service.ListTablesByGroup())
}

func (s *Server) handleAPIDashboard(w http.ResponseWriter, r *http.Request) {
	d, err := s.service.GetDashboard(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, d)
}

func (s *Server) handleAPIStats(w http.ResponseWriter, r *http.Request) {
	st, err := s.service.GetDashboardStats(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, st)
}

// handleAPIList writes one page of tableKey as JSON records.
func (s *Server) handleAPIList(w http.ResponseWriter, r *http.Request, tableKey string) {
	q, err := tableQuery(r, tableKey)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if size := parseIntParam(r, "per_page", 0); size > 0 {
		q.PageSize = min(size, maxAPIPageSize)
	}
	result, err := s.service.GetTableData(r.Context(), tableKey, q)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, ListResponse{
		Table:      tableKey,
		Data:       result.Records(),
		Pagination: result.Pagination,
	})
}

// maxAPIPageSize caps ?per_page= on JSON listings.
const maxAPIPageSize = 500

func (s *Server) handleAPIEstablishments(w http.ResponseWriter, r *http.Request) {
	s.handleAPIList(w, r, "etablissements")
}

func (s *Server) handleAPIPersonnel(w http.ResponseWriter, r *http.Request) {
	s.handleAPIList(w, r, "personnel")
}

func (s *Server) handleAPIEstablishmentFilters(w http.ResponseWriter, r *http.Request) {
	f, err := s.service.GetEstablishmentFilters(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, f)
}

func (s *Server) handleAPIEstablishmentAnalytics(w http.ResponseWriter, r *http.Request) {
	a, err := s.service.GetEstablishmentAnalytics(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, a)
}

func (s *Server) handleAPIEstablishment(w http.ResponseWriter, r *http.Request) {
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
	writeJSON(w, d)
}

func (s *Server) handleAPIPersonnelFilters(w http.ResponseWriter, r *http.Request) {
	f, err := s.service.GetPersonnelFilters(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, f)
}

func (s *Server) handleAPIUnassigned(w http.ResponseWriter, r *http.Request) {
	u, err := s.service.GetUnassigned(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, u)
}

func (s *Server) handleAPIPersonnelAnalytics(w http.ResponseWriter, r *http.Request) {
	a, err := s.service.GetPersonnelAnalytics(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, a)
}

func (s *Server) handleAPIPerson(w http.ResponseWriter, r *http.Request) {
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
	writeJSON(w, p)
}

// handleAPICommunes returns every commune with its figures, unpaginated.
func (s *Server) handleAPICommunes(w http.ResponseWriter, r *http.Request) {
	communes, err := s.service.ListCommunes(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, communes)
}

func (s *Server) handleAPIReports(w http.ResponseWriter, r *http.Request) {
	idx, err := s.service.GetReportsIndex(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, idx)
}

func (s *Server) handleAPIReport(w http.ResponseWriter, r *http.Request) {
	report, err := s.service.GetReport(r.Context(), chi.URLParam(r, "kind"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, report)
}
