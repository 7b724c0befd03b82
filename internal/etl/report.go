package etl

import (
	"fmt"
	"io"
	"strings"

	"github.com/JonMunkholm/iefreport/internal/format"
	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("99")).BorderStyle(lipgloss.NormalBorder()).BorderBottom(true).Padding(0, 1)
	okStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("82"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	summaryStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("99")).Padding(0, 2)
)

// Console prints human progress for a run. It is informational only; nothing
// parses it.
type Console struct {
	w io.Writer
}

// NewConsole writes to w. A nil w discards output.
func NewConsole(w io.Writer) *Console {
	if w == nil {
		w = io.Discard
	}
	return &Console{w: w}
}

func (c *Console) stage(title string) {
	fmt.Fprintln(c.w)
	fmt.Fprintln(c.w, titleStyle.Render(title))
}

func (c *Console) ok(msg string, args ...any) {
	fmt.Fprintln(c.w, okStyle.Render("   ✓ "+fmt.Sprintf(msg, args...)))
}

func (c *Console) warn(msg string, args ...any) {
	fmt.Fprintln(c.w, warnStyle.Render("   ! "+fmt.Sprintf(msg, args...)))
}

func (c *Console) detail(msg string, args ...any) {
	fmt.Fprintln(c.w, dimStyle.Render("     "+fmt.Sprintf(msg, args...)))
}

// Schema reports the initialized store.
func (c *Console) Schema(driver, location string) {
	c.stage("SCHEMA")
	c.ok("%s store initialized at %s", driver, location)
}

// Establishments reports the establishment extractor.
func (c *Console) Establishments(b *EstablishmentBatch) {
	c.stage("ÉTABLISSEMENTS (extraction)")
	c.ok("%s établissements lus, %s ignorés", format.Number(b.Stats.Kept), format.Number(b.Stats.Skipped))
	c.ok("%s communes identifiées", format.Number(len(b.Communes)))
	c.detail("Types: %s", joinCounts(b.Types.Sorted(0)))
}

// Personnel reports the personnel extractor.
func (c *Console) Personnel(b *PersonnelBatch) {
	c.stage("PERSONNEL (extraction)")
	c.ok("%s agents lus, %s ignorés", format.Number(b.Stats.Kept), format.Number(b.Stats.Skipped))
	c.ok("%s établissements référencés", format.Number(len(b.Establishments)))
	c.detail("Top spécialités: %s", joinCounts(b.Specialties.Sorted(5)))
}

// Communes reports the commune loader.
func (c *Console) Communes(r CommuneLoad) {
	c.stage("COMMUNES (insertion)")
	c.ok("%s communes soumises, %s en base", format.Number(r.Attempted), format.Number(r.Lookup.Len()))
}

// EstablishmentsLoaded reports the establishment loader.
func (c *Console) EstablishmentsLoaded(r EstablishmentLoad) {
	c.stage("ÉTABLISSEMENTS (insertion)")
	c.ok("%s établissements insérés", format.Number(r.Inserted))
	c.detail("%s rattachés à une commune", format.Number(r.Linked))
}

// PersonnelLoaded reports the personnel loader.
func (c *Console) PersonnelLoaded(r PersonnelLoad) {
	c.stage("PERSONNEL (insertion)")
	c.ok("%s agents insérés", format.Number(r.Inserted))
	if r.Unmatched > 0 {
		c.warn("%s agents avec établissement non trouvé", format.Number(r.Unmatched))
	}
}

// Summary prints the final figures in a box.
func (c *Console) Summary(s Summary) {
	var b strings.Builder
	fmt.Fprintf(&b, "Communes:        %s\n", format.Number(s.Communes))
	fmt.Fprintf(&b, "Établissements:  %s\n", format.Number(s.Establishments))
	for _, t := range s.ByType {
		fmt.Fprintf(&b, "  - %s: %s\n", format.Text(t.Label), format.Number(t.Count))
	}
	fmt.Fprintf(&b, "Personnel:       %s\n", format.Number(s.Personnel))
	fmt.Fprintf(&b, "Ratio:           %s agents/établissement", format.Decimal(s.Ratio()))

	c.stage("RÉSUMÉ")
	fmt.Fprintln(c.w, summaryStyle.Render(b.String()))
}

func joinCounts(counts []LabelCount) string {
	if len(counts) == 0 {
		return "-"
	}
	parts := make([]string, len(counts))
	for i, lc := range counts {
		parts[i] = fmt.Sprintf("%s=%d", lc.Label, lc.Count)
	}
	return strings.Join(parts, ", ")
}
