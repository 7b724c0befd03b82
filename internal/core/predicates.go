package core

// SQL predicates shared by the dashboard, analytics and report queries.
// Status families match on the free-text statut column; LOWER keeps sqlite
// and postgres in agreement.

func isPublic(col string) string {
	return "LOWER(" + col + ") LIKE '%public%'"
}

func isPrivate(col string) string {
	return "LOWER(" + col + ") LIKE '%privé%'"
}

func isCommunity(col string) string {
	return "(LOWER(" + col + ") LIKE '%com_ass%' OR LOWER(" + col + ") LIKE '%communautaire%')"
}

func isMale(col string) string {
	return col + " IN ('M', 'H')"
}

func isFemale(col string) string {
	return col + " = 'F'"
}

func notBlank(col string) string {
	return "COALESCE(" + col + ", '') <> ''"
}

// assigned is true for staff attached to an establishment or a central
// service. alias is the personnel table alias, "" for none.
func assigned(alias string) string {
	if alias != "" {
		alias += "."
	}
	return "(" + alias + "etablissement_id IS NOT NULL OR " + notBlank(alias+"service") + ")"
}

// countIf is a portable conditional count.
func countIf(cond string) string {
	return "COUNT(CASE WHEN " + cond + " THEN 1 END)"
}
