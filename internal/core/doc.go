// Package core provides the read-only reporting logic over the IEF store.
//
// The store is filled by the ETL command; this package only reads it. It is
// independent of any UI or transport layer and is used by the web handlers
// and by tests without modification.
//
// # Architecture
//
//   - Table Definitions: the browsable tables (communes, etablissements,
//     personnel) are registered from package tables with their columns,
//     search columns, filters and export columns.
//   - Service: the entry point for listing, detail pages, analytics,
//     reports and CSV exports.
//   - WhereBuilder and Pagination: the portable query and paging helpers
//     shared by every listing.
//
// # Table Registry
//
// Tables are registered at init time using [Register]:
//
//	core.Register(core.TableDefinition{
//	    Info:   core.TableInfo{Key: "communes", Group: "Territoire", Label: "Communes"},
//	    From:   "communes c",
//	    IDExpr: "c.id",
//	    FieldSpecs: []core.FieldSpec{
//	        {Name: "nom", Label: "Commune", Expr: "c.nom", Sortable: true, Export: true},
//	    },
//	    DefaultOrder: []string{"c.nom"},
//	})
//
// # Dialects
//
// Queries are written with "?" placeholders and portable SQL (COUNT with
// CASE, COALESCE, LOWER ... LIKE). The store rewrites placeholders for
// postgres.
//
// # Error Handling
//
// Technical errors are mapped to user-facing messages using [MapError].
// Each category has a code for support reference:
//
//   - DB001-DB004: store errors (not found, busy, unreachable, timeout)
//   - TBL001-TBL003: unknown table or report, invalid filter
//   - EXP001: too many concurrent exports
//   - RATE001: rate limited
package core
