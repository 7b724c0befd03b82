package core

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// Tables register themselves from init functions in package tables, so the
// registry is filled before any request reaches it.
var (
	registry   = make(map[string]TableDefinition)
	registryMu sync.RWMutex
)

// Register adds a listing definition. It panics on a duplicate key or an
// invalid definition: both are programming errors caught at startup.
func Register(def TableDefinition) {
	if err := validateDefinition(def); err != nil {
		panic(fmt.Sprintf("register table %q: %v", def.Info.Key, err))
	}

	registryMu.Lock()
	defer registryMu.Unlock()

	if _, exists := registry[def.Info.Key]; exists {
		panic(fmt.Sprintf("register table %q: already registered", def.Info.Key))
	}

	if len(def.Info.Columns) == 0 {
		def.Info.Columns = make([]string, len(def.FieldSpecs))
		for i, f := range def.FieldSpecs {
			def.Info.Columns[i] = f.Label
		}
	}

	registry[def.Info.Key] = def
}

// validateDefinition checks what the query builder relies on: field names
// and filter params are unique and ordering is always defined.
func validateDefinition(def TableDefinition) error {
	var errs []error
	if def.Info.Key == "" {
		errs = append(errs, errors.New("empty key"))
	}
	if def.From == "" {
		errs = append(errs, errors.New("empty From"))
	}
	if len(def.FieldSpecs) == 0 {
		errs = append(errs, errors.New("no fields"))
	}
	if len(def.DefaultOrder) == 0 {
		errs = append(errs, errors.New("no default order"))
	}

	names := make(map[string]bool, len(def.FieldSpecs))
	for _, f := range def.FieldSpecs {
		if f.Name == "" || f.Expr == "" {
			errs = append(errs, fmt.Errorf("field %q: name and expr are required", f.Name))
			continue
		}
		if names[f.Name] {
			errs = append(errs, fmt.Errorf("field %q declared twice", f.Name))
		}
		names[f.Name] = true
	}

	params := make(map[string]bool, len(def.Filters))
	for _, f := range def.Filters {
		if reservedParams[f.Param] {
			errs = append(errs, fmt.Errorf("filter %q shadows a listing parameter", f.Param))
		}
		if params[f.Param] {
			errs = append(errs, fmt.Errorf("filter %q declared twice", f.Param))
		}
		params[f.Param] = true
	}
	return errors.Join(errs...)
}

// reservedParams are the query parameters the listing handlers own.
var reservedParams = map[string]bool{
	"page": true, "q": true, "sort": true, "dir": true,
}

// Get returns the definition registered under key.
func Get(key string) (TableDefinition, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	def, ok := registry[key]
	return def, ok
}

// All returns every definition, by group then key.
func All() []TableDefinition {
	registryMu.RLock()
	defs := make([]TableDefinition, 0, len(registry))
	for _, def := range registry {
		defs = append(defs, def)
	}
	registryMu.RUnlock()

	sort.Slice(defs, func(i, j int) bool {
		a, b := defs[i].Info, defs[j].Info
		if a.Group != b.Group {
			return a.Group < b.Group
		}
		return a.Key < b.Key
	})
	return defs
}

// ByGroup returns the definitions of one navigation group, by key.
func ByGroup(group string) []TableDefinition {
	var out []TableDefinition
	for _, def := range All() {
		if def.Info.Group == group {
			out = append(out, def)
		}
	}
	return out
}

// Groups returns the distinct navigation groups, sorted.
func Groups() []string {
	var groups []string
	for _, def := range All() {
		if n := len(groups); n == 0 || groups[n-1] != def.Info.Group {
			groups = append(groups, def.Info.Group)
		}
	}
	return groups
}

// TableCount returns the number of registered tables.
func TableCount() int {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return len(registry)
}
