package sql

import (
	"fmt"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"

	"github.com/verisql/verisql/commitment"
)

type columnKey struct {
	table    TableRef
	name     string
	presence bool
}

// InMemoryAccessor implements all four accessor contracts over tables held in
// memory. It backs tests and callers without a real database behind them.
type InMemoryAccessor struct {
	tables      map[TableRef]*Table
	offsets     map[TableRef]int
	commitments map[columnKey]commitment.Commitment
}

// NewInMemoryAccessor returns an empty accessor.
func NewInMemoryAccessor() *InMemoryAccessor {
	return &InMemoryAccessor{
		tables:      make(map[TableRef]*Table),
		offsets:     make(map[TableRef]int),
		commitments: make(map[columnKey]commitment.Commitment),
	}
}

// AddTable registers a table at row offset zero.
func (a *InMemoryAccessor) AddTable(ref TableRef, t *Table) {
	a.tables[ref] = t
	a.offsets[ref] = 0
}

// Commit computes and stores commitments for every column of every table
// (including presence vectors of nullable columns) with the given scheme.
func (a *InMemoryAccessor) Commit(scheme commitment.Scheme) error {
	for ref, t := range a.tables {
		offset := a.offsets[ref]
		for i := 0; i < t.NumColumns(); i++ {
			col := t.Column(i)
			c, err := scheme.Commit(col.Scalars(), offset)
			if err != nil {
				return fmt.Errorf("sql: committing %s.%s: %w", ref, t.ColumnName(i), err)
			}
			a.commitments[columnKey{ref, t.ColumnName(i), false}] = c
			if col.Type().Nullable {
				p := col.PresenceScalars()
				if p == nil {
					p = make([]fr.Element, col.Len())
					for j := range p {
						p[j].SetOne()
					}
				}
				pc, err := scheme.Commit(p, offset)
				if err != nil {
					return fmt.Errorf("sql: committing %s.%s presence: %w", ref, t.ColumnName(i), err)
				}
				a.commitments[columnKey{ref, t.ColumnName(i), true}] = pc
			}
		}
	}
	return nil
}

// LookupColumn implements SchemaAccessor.
func (a *InMemoryAccessor) LookupColumn(table TableRef, column string) (ColumnType, bool) {
	t, ok := a.tables[table]
	if !ok {
		return ColumnType{}, false
	}
	c, ok := t.ColumnByName(column)
	if !ok {
		return ColumnType{}, false
	}
	return c.Type(), true
}

// LookupSchema implements SchemaAccessor.
func (a *InMemoryAccessor) LookupSchema(table TableRef) []ColumnField {
	t, ok := a.tables[table]
	if !ok {
		return nil
	}
	return t.Schema()
}

// TableLength implements MetadataAccessor.
func (a *InMemoryAccessor) TableLength(table TableRef) int {
	t, ok := a.tables[table]
	if !ok {
		panic(fmt.Sprintf("sql: unknown table %s", table))
	}
	return t.NumRows()
}

// TableOffset implements MetadataAccessor.
func (a *InMemoryAccessor) TableOffset(table TableRef) int {
	if _, ok := a.tables[table]; !ok {
		panic(fmt.Sprintf("sql: unknown table %s", table))
	}
	return a.offsets[table]
}

// Column implements DataAccessor.
func (a *InMemoryAccessor) Column(ref ColumnRef) Column {
	t, ok := a.tables[ref.Table]
	if !ok {
		panic(fmt.Sprintf("sql: unknown table %s", ref.Table))
	}
	col, ok := t.ColumnByName(ref.Name)
	if !ok {
		panic(fmt.Sprintf("sql: unknown column %s", ref))
	}
	if ref.Presence {
		p := col.Presence()
		if p == nil {
			p = make([]bool, col.Len())
			for i := range p {
				p[i] = true
			}
		}
		return NewBooleanColumn(p)
	}
	return col
}

// Commitment implements CommitmentAccessor.
func (a *InMemoryAccessor) Commitment(ref ColumnRef) commitment.Commitment {
	c, ok := a.commitments[columnKey{ref.Table, ref.Name, ref.Presence}]
	if !ok {
		panic(fmt.Sprintf("sql: no commitment for %s", ref))
	}
	return c
}

var (
	_ DataAccessor       = (*InMemoryAccessor)(nil)
	_ CommitmentAccessor = (*InMemoryAccessor)(nil)
)
