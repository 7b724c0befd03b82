// Package format renders the figures shown on the console report, the
// dashboard pages and the printable fiches.
package format

import (
	"strconv"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var (
	printer = message.NewPrinter(language.French)

	// CLDR groups French digits with a (narrow) no-break space; reports use a
	// plain space.
	spaces = strings.NewReplacer("\u202f", " ", "\u00a0", " ")
)

// Number formats n with thousands separated by spaces: 12345 -> "12 345".
func Number(n int) string {
	return spaces.Replace(printer.Sprintf("%d", n))
}

// Percent formats value/total as a percentage with one decimal. A zero total
// gives "0%".
func Percent(value, total int) string {
	if total == 0 {
		return "0%"
	}
	return Decimal(float64(value)*100/float64(total)) + "%"
}

// Decimal formats f with one decimal: 2.34 -> "2.3".
func Decimal(f float64) string {
	return strconv.FormatFloat(f, 'f', 1, 64)
}

// Ratio is num/den with one decimal, "0.0" when den is zero.
func Ratio(num, den int) string {
	if den == 0 {
		return "0.0"
	}
	return Decimal(float64(num) / float64(den))
}

// Text renders a nullable column value, "-" when absent.
func Text(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}
