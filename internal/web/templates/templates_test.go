package templates

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/a-h/templ"

	"github.com/JonMunkholm/iefreport/internal/core"
)

func renderString(t *testing.T, c templ.Component) string {
	t.Helper()
	var buf bytes.Buffer
	if err := c.Render(context.Background(), &buf); err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	return buf.String()
}

func TestListURL(t *testing.T) {
	tests := []struct {
		name string
		q    core.ListQuery
		page int
		want string
	}{
		{"empty", core.ListQuery{}, 0, "/etablissements"},
		{"first page dropped", core.ListQuery{}, 1, "/etablissements"},
		{
			name: "everything",
			q: core.ListQuery{
				Search:  "ee louga",
				Filters: map[string]string{"type": "Primaire", "zone": ""},
				Sort:    core.SortSpec{Column: "nom", Dir: "desc"},
			},
			page: 3,
			want: "/etablissements?dir=desc&page=3&q=ee+louga&sort=nom&type=Primaire",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ListURL("/etablissements", tt.q, tt.page); got != tt.want {
				t.Errorf("ListURL() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestErrorAlert_Escapes(t *testing.T) {
	got := renderString(t, ErrorAlert(`<script>alert("x")</script>`, "Réessayez", "DB001"))

	if strings.Contains(got, "<script>") {
		t.Errorf("message not escaped: %s", got)
	}
	if !strings.Contains(got, "&lt;script&gt;") {
		t.Errorf("escaped message missing: %s", got)
	}
	if !strings.Contains(got, "DB001") || !strings.Contains(got, "Réessayez") {
		t.Errorf("code or action missing: %s", got)
	}
}

func TestPager(t *testing.T) {
	q := core.ListQuery{Filters: map[string]string{"corps": "Instituteur"}}

	got := renderString(t, Pager("/personnel", q, core.NewPagination(5, 10, 200)))

	for _, want := range []string{
		`aria-current="page">5<`,
		"…",
		"corps=Instituteur&amp;page=4",
		"corps=Instituteur&amp;page=20",
		"Précédent",
		"Suivant",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("pager missing %q in %s", want, got)
		}
	}
	if strings.Contains(got, "page=12") {
		t.Errorf("pager should skip distant pages: %s", got)
	}
}

func TestPager_SinglePage(t *testing.T) {
	got := renderString(t, Pager("/personnel", core.ListQuery{}, core.NewPagination(1, 10, 3)))
	if got != "" {
		t.Errorf("Pager() = %q, want empty", got)
	}
}

func TestLayout_MarksActiveSection(t *testing.T) {
	got := renderString(t, Layout("Personnel", "personnel", templ.Raw("<p>corps</p>")))

	if !strings.Contains(got, `href="/personnel" class="active"`) {
		t.Errorf("active nav item missing: %s", got)
	}
	if !strings.Contains(got, "<title>Personnel - IEF Louga</title>") {
		t.Errorf("title missing: %s", got)
	}
	if !strings.Contains(got, "<h1>Personnel</h1><p>corps</p>") {
		t.Errorf("body not rendered under the heading: %s", got)
	}
}

func TestTable_SwapsListing(t *testing.T) {
	got := renderString(t, Table(TableView{
		Title:      "Personnel",
		Active:     "personnel",
		BasePath:   "/personnel",
		ExportPath: "/api/export/personnel",
		Result: &core.TableDataResult{
			Fields: []core.FieldSpec{
				{Name: "matricule", Label: "Matricule", Sortable: true},
				{Name: "nom", Label: "Nom"},
			},
			Rows:       []core.TableRow{{Values: []string{"M001", ""}, Link: "/personnel/1"}},
			Pagination: core.NewPagination(1, 50, 1),
			Query:      core.ListQuery{Sort: core.SortSpec{Column: "matricule", Dir: "asc"}},
		},
	}))

	for _, want := range []string{
		`<div id="listing"><form class="filters"`,
		`hx-get="/personnel" hx-target="#listing"`,
		`href="/personnel?dir=desc&amp;sort=matricule" class="link">Matricule ▲</a>`,
		`<a href="/personnel/1" class="link">M001</a>`,
		`<td>-</td>`,
		`href="/api/export/personnel?dir=asc&amp;sort=matricule"`,
	} {
		if !strings.Contains(got, want) {
			t.Errorf("table missing %q in %s", want, got)
		}
	}
}

func TestTableBody_EmptyResult(t *testing.T) {
	got := renderString(t, TableBody(TableView{
		Title:    "Communes",
		BasePath: "/communes",
		Result: &core.TableDataResult{
			Filters:    []core.FilterSpec{{Param: "arrondissement", Label: "Arrondissement"}},
			Pagination: core.NewPagination(1, 50, 0),
			Query:      core.ListQuery{Filters: map[string]string{"arrondissement": "Coki"}},
		},
		Options: map[string][]Option{"arrondissement": {{Value: "Coki", Label: "Coki"}, {Value: "Louga", Label: "Louga"}}},
	}))

	if !strings.Contains(got, "Aucun résultat") {
		t.Errorf("empty placeholder missing: %s", got)
	}
	if !strings.Contains(got, `value="Coki" selected`) {
		t.Errorf("current filter not selected: %s", got)
	}
	if strings.Contains(got, "Exporter") {
		t.Errorf("export link shown without ExportPath: %s", got)
	}
}
