package sql

import "github.com/verisql/verisql/commitment"

// SchemaAccessor resolves column types. The planner is expected to have
// validated queries against it before building a proof plan.
type SchemaAccessor interface {
	// LookupColumn returns the type of a column, false if absent.
	LookupColumn(table TableRef, column string) (ColumnType, bool)
	// LookupSchema returns the (name, type) pairs of a table in column order.
	LookupSchema(table TableRef) []ColumnField
}

// MetadataAccessor exposes table shapes.
type MetadataAccessor interface {
	// TableLength returns the row count of the table.
	TableLength(table TableRef) int
	// TableOffset returns the table's row offset within a larger committed
	// range, for incremental commitment schemes.
	TableOffset(table TableRef) int
}

// DataAccessor serves raw column data to the prover. Implementations panic on
// unknown references: by contract the plan was validated upstream, so a miss
// is a planner bug, not a runtime condition.
type DataAccessor interface {
	MetadataAccessor
	SchemaAccessor
	// Column returns the referenced column's data (or its presence vector
	// when ref.Presence is set).
	Column(ref ColumnRef) Column
}

// CommitmentAccessor serves column commitments to the verifier. Same panic
// contract as DataAccessor.
type CommitmentAccessor interface {
	MetadataAccessor
	SchemaAccessor
	// Commitment returns the commitment to the referenced column.
	Commitment(ref ColumnRef) commitment.Commitment
}
