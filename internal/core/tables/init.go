// Package tables registers the browsable table definitions with the core
// registry. Import it for side effects wherever listings or exports are served.
package tables

// Each table file uses init() to register its definition.

// assignedExpr is true for staff attached to an establishment or a central
// service.
const assignedExpr = "(p.etablissement_id IS NOT NULL OR COALESCE(p.service, '') <> '')"
