package domain

// Target is the (database, schema, warehouse) triple a run operates on.
// It is fixed for the lifetime of a run.
type Target struct {
	Database  string
	Schema    string
	Warehouse string
}

// Qualified returns database.schema.
func (t Target) Qualified() string {
	return t.Database + "." + t.Schema
}

// Table returns a TableRef for name inside the target schema.
func (t Target) Table(name string) TableRef {
	return TableRef{Database: t.Database, Schema: t.Schema, Name: name}
}

// TableRef identifies one table by its three-part name.
type TableRef struct {
	Database string
	Schema   string
	Name     string
}

// Qualified returns database.schema.table.
func (r TableRef) Qualified() string {
	return r.Database + "." + r.Schema + "." + r.Name
}

// ExclusionSet holds table names an operator asked to skip during classification.
type ExclusionSet map[string]struct{}

// NewExclusionSet builds an ExclusionSet from a list of table names.
func NewExclusionSet(names []string) ExclusionSet {
	set := make(ExclusionSet, len(names))
	for _, n := range names {
		set[n] = struct{}{}
	}
	return set
}

// Contains reports whether the table name is excluded.
func (s ExclusionSet) Contains(name string) bool {
	_, ok := s[name]
	return ok
}
