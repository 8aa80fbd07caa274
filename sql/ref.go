package sql

import "fmt"

// TableRef identifies a committed table.
type TableRef struct {
	Schema string
	Name   string
}

func (r TableRef) String() string {
	if r.Schema == "" {
		return r.Name
	}
	return r.Schema + "." + r.Name
}

// ColumnRef identifies one committed column of a table, with its type. Proof
// tree nodes hold only these references; raw data stays with the accessor.
// Presence selects the column's NULL-presence vector instead of its values.
type ColumnRef struct {
	Table    TableRef
	Name     string
	Type     ColumnType
	Presence bool
}

func (r ColumnRef) String() string {
	s := fmt.Sprintf("%s.%s", r.Table, r.Name)
	if r.Presence {
		s += "$presence"
	}
	return s
}

// PresenceRef returns the reference of the column's presence vector.
func (r ColumnRef) PresenceRef() ColumnRef {
	r.Presence = true
	r.Type = ColumnType{Kind: KindBoolean}
	return r
}

// ColumnField is a (name, type) schema entry.
type ColumnField struct {
	Name string
	Type ColumnType
}
