package web

// This file contains shared utilities and helper functions used across handlers.

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/iefreport/internal/core"
	"github.com/JonMunkholm/iefreport/internal/store"
	"github.com/JonMunkholm/iefreport/internal/web/templates"
)

// parseIntParam parses an integer query parameter with a default value.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	val := r.URL.Query().Get(name)
	if val == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(val)
	if err != nil || i < 1 {
		return defaultVal
	}
	return i
}

// parseListQuery reads q, page, sort, dir and the filter params declared
// by def. Unknown parameters are ignored; empty filter values are dropped by
// the where builder.
func parseListQuery(r *http.Request, def core.TableDefinition) core.ListQuery {
	values := r.URL.Query()
	q := core.ListQuery{
		Page:    parseIntParam(r, "page", 1),
		Search:  strings.TrimSpace(values.Get("q")),
		Filters: make(map[string]string, len(def.Filters)),
	}
	for _, f := range def.Filters {
		if v := strings.TrimSpace(values.Get(f.Param)); v != "" {
			q.Filters[f.Param] = v
		}
	}
	if col := strings.TrimSpace(values.Get("sort")); col != "" {
		dir := "asc"
		if strings.EqualFold(values.Get("dir"), "desc") {
			dir = "desc"
		}
		q.Sort = core.SortSpec{Column: col, Dir: dir}
	}
	return q
}

// tableQuery resolves tableKey and parses its list query.
func tableQuery(r *http.Request, tableKey string) (core.ListQuery, error) {
	def, ok := core.Get(tableKey)
	if !ok {
		return core.ListQuery{}, fmt.Errorf("%w: %s", core.ErrUnknownTable, tableKey)
	}
	return parseListQuery(r, def), nil
}

// parseID reads the {id} URL parameter. A malformed id is reported as not
// found, like an id that matches no row.
func parseID(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id < 1 {
		return 0, fmt.Errorf("id %q: %w", raw, store.ErrNotFound)
	}
	return id, nil
}

func stringOptions(values []string) []templates.Option {
	opts := make([]templates.Option, len(values))
	for i, v := range values {
		opts[i] = templates.Option{Value: v, Label: v}
	}
	return opts
}

func idNameOptions(values []core.IDName) []templates.Option {
	opts := make([]templates.Option, len(values))
	for i, v := range values {
		opts[i] = templates.Option{Value: strconv.FormatInt(v.ID, 10), Label: v.Name}
	}
	return opts
}

var (
	genreOptions = []templates.Option{
		{Value: "M", Label: "Hommes"},
		{Value: "F", Label: "Femmes"},
	}
	assignmentOptions = []templates.Option{
		{Value: "affecte", Label: "Affectés"},
		{Value: "non_affecte", Label: "Non affectés"},
	}
)

// establishmentOptions builds the select choices of the establishments list.
// The statut filter matches substrings and stays free text.
func (s *Server) establishmentOptions(ctx context.Context) (map[string][]templates.Option, error) {
	f, err := s.service.GetEstablishmentFilters(ctx)
	if err != nil {
		return nil, err
	}
	return map[string][]templates.Option{
		"type":       stringOptions(f.Types),
		"zone":       stringOptions(f.Zones),
		"commune_id": idNameOptions(f.Communes),
	}, nil
}

// personnelOptions builds the select choices of the personnel list.
func (s *Server) personnelOptions(ctx context.Context) (map[string][]templates.Option, error) {
	f, err := s.service.GetPersonnelFilters(ctx)
	if err != nil {
		return nil, err
	}
	return map[string][]templates.Option{
		"corps":            stringOptions(f.Corps),
		"grade":            stringOptions(f.Grades),
		"fonction":         stringOptions(f.Fonctions),
		"specialite":       stringOptions(f.Specialites),
		"genre":            genreOptions,
		"etablissement_id": idNameOptions(f.Establishments),
		"affectation":      assignmentOptions,
	}, nil
}

// communeOptions offers the arrondissements present in the communes table.
func (s *Server) communeOptions(ctx context.Context) (map[string][]templates.Option, error) {
	communes, err := s.service.ListCommunes(ctx)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	var arrondissements []string
	for _, c := range communes {
		if c.Arrondissement != "" && !seen[c.Arrondissement] {
			seen[c.Arrondissement] = true
			arrondissements = append(arrondissements, c.Arrondissement)
		}
	}
	sort.Strings(arrondissements)
	return map[string][]templates.Option{
		"arrondissement": stringOptions(arrondissements),
	}, nil
}
