// Package templates holds the HTML components of the dashboard. The
// components are written in .templ files; run `templ generate` after editing
// them.
package templates

import (
	"net/url"
	"strconv"

	"github.com/JonMunkholm/iefreport/internal/core"
	"github.com/JonMunkholm/iefreport/internal/format"
)

// NavItem is one entry of the top navigation.
type NavItem struct {
	Key   string
	Label string
	Path  string
}

// Nav lists the sections in display order.
var Nav = []NavItem{
	{Key: "dashboard", Label: "Tableau de bord", Path: "/"},
	{Key: "etablissements", Label: "Établissements", Path: "/etablissements"},
	{Key: "personnel", Label: "Personnel", Path: "/personnel"},
	{Key: "communes", Label: "Communes", Path: "/communes"},
	{Key: "rapports", Label: "Rapports", Path: "/rapports"},
}

// Option is one choice of a filter select.
type Option struct {
	Value string
	Label string
}

// TableView is a filtered, paginated listing page.
type TableView struct {
	Title      string
	Active     string
	BasePath   string
	ExportPath string // "" hides the export link
	Result     *core.TableDataResult
	Options    map[string][]Option // filter param -> choices; absent means free text
}

// ListURL encodes q as a query string on base. page 0 drops the page.
func ListURL(base string, q core.ListQuery, page int) string {
	v := url.Values{}
	if q.Search != "" {
		v.Set("q", q.Search)
	}
	for k, val := range q.Filters {
		if val != "" {
			v.Set(k, val)
		}
	}
	if q.Sort.Column != "" {
		v.Set("sort", q.Sort.Column)
		v.Set("dir", q.Sort.Dir)
	}
	if page > 1 {
		v.Set("page", strconv.Itoa(page))
	}
	if len(v) == 0 {
		return base
	}
	return base + "?" + v.Encode()
}

// sortLink returns the header link of f, which flips the direction when f is
// the current sort, and the label with its direction marker.
func sortLink(tv TableView, f core.FieldSpec) (string, string) {
	q := tv.Result.Query
	sort := core.SortSpec{Column: f.Name, Dir: "asc"}
	label := f.Label
	if q.Sort.Column == f.Name {
		if q.Sort.Dir == "asc" {
			sort.Dir = "desc"
			label += " ▲"
		} else {
			label += " ▼"
		}
	}
	q.Sort = sort
	return ListURL(tv.BasePath, q, 0), label
}

// cellText formats a listing value, grouping digits of integer columns.
func cellText(f core.FieldSpec, value string) string {
	if f.Type == core.FieldInt {
		if n, err := strconv.Atoi(value); err == nil {
			return format.Number(n)
		}
	}
	return format.Text(value)
}

func typeURL(label string) string {
	return "/etablissements/type/" + url.PathEscape(label)
}

// filterURL links a breakdown label to the listing at base filtered on param.
func filterURL(base, param string) func(string) string {
	return func(label string) string {
		return base + "?" + param + "=" + url.QueryEscape(label)
	}
}

func itoa(n int64) string {
	return strconv.FormatInt(n, 10)
}
