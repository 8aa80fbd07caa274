// Package sql defines the columnar data model and the accessor contracts
// through which the proof core reads table metadata, raw column data (prover
// side) and column commitments (verifier side).
package sql

import (
	"fmt"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"golang.org/x/crypto/sha3"
)

// Kind enumerates the supported column element kinds.
type Kind uint8

const (
	KindBoolean Kind = iota
	KindTinyInt
	KindSmallInt
	KindInt
	KindBigInt
	KindInt128
	KindDecimal75
	KindScalar
	KindVarChar
	KindVarBinary
	KindTimestampTZ
)

func (k Kind) String() string {
	switch k {
	case KindBoolean:
		return "boolean"
	case KindTinyInt:
		return "tinyint"
	case KindSmallInt:
		return "smallint"
	case KindInt:
		return "int"
	case KindBigInt:
		return "bigint"
	case KindInt128:
		return "int128"
	case KindDecimal75:
		return "decimal75"
	case KindScalar:
		return "scalar"
	case KindVarChar:
		return "varchar"
	case KindVarBinary:
		return "varbinary"
	case KindTimestampTZ:
		return "timestamptz"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// ColumnType is the full type of a column: element kind, decimal parameters
// and nullability.
type ColumnType struct {
	Kind      Kind
	Precision uint8 // Decimal75 only
	Scale     int8  // Decimal75 only
	Nullable  bool
}

func (t ColumnType) String() string {
	s := t.Kind.String()
	if t.Kind == KindDecimal75 {
		s = fmt.Sprintf("decimal75(%d,%d)", t.Precision, t.Scale)
	}
	if t.Nullable {
		s += " null"
	}
	return s
}

// IsNumeric reports whether values of this type map to signed integers in the
// field (and therefore support ordering and arithmetic).
func (t ColumnType) IsNumeric() bool {
	switch t.Kind {
	case KindTinyInt, KindSmallInt, KindInt, KindBigInt, KindInt128, KindDecimal75, KindScalar:
		return true
	}
	return false
}

// IsOrderable reports whether < and > are defined for the type. Scalar is
// orderable through its signed interpretation.
func (t ColumnType) IsOrderable() bool {
	return t.IsNumeric() || t.Kind == KindTimestampTZ
}

// EqualIgnoringNullability compares kinds and decimal parameters.
func (t ColumnType) EqualIgnoringNullability(o ColumnType) bool {
	return t.Kind == o.Kind && t.Precision == o.Precision && t.Scale == o.Scale
}

// WithNullable returns a copy of t with the given nullability.
func (t ColumnType) WithNullable(nullable bool) ColumnType {
	t.Nullable = nullable
	return t
}

// scale returns the decimal scale of the type, 0 for the integer kinds.
func (t ColumnType) scale() int8 {
	if t.Kind == KindDecimal75 {
		return t.Scale
	}
	return 0
}

// Column is a typed, borrowed, fixed-length sequence of values. Exactly one
// of the backing slices is in use, selected by the kind of its type. A
// non-nil presence slice marks which rows are non-NULL.
type Column struct {
	typ      ColumnType
	length   int
	bools    []bool
	ints     []int64 // tinyint, smallint, int, bigint, timestamptz
	bigs     []big.Int
	scalars  []fr.Element
	strs     []string
	raws     [][]byte
	presence []bool
}

// NewBooleanColumn wraps a boolean slice.
func NewBooleanColumn(vs []bool) Column {
	return Column{typ: ColumnType{Kind: KindBoolean}, length: len(vs), bools: vs}
}

// NewTinyIntColumn wraps an int64 slice holding 8-bit values.
func NewTinyIntColumn(vs []int64) Column {
	return Column{typ: ColumnType{Kind: KindTinyInt}, length: len(vs), ints: vs}
}

// NewSmallIntColumn wraps an int64 slice holding 16-bit values.
func NewSmallIntColumn(vs []int64) Column {
	return Column{typ: ColumnType{Kind: KindSmallInt}, length: len(vs), ints: vs}
}

// NewIntColumn wraps an int64 slice holding 32-bit values.
func NewIntColumn(vs []int64) Column {
	return Column{typ: ColumnType{Kind: KindInt}, length: len(vs), ints: vs}
}

// NewBigIntColumn wraps an int64 slice.
func NewBigIntColumn(vs []int64) Column {
	return Column{typ: ColumnType{Kind: KindBigInt}, length: len(vs), ints: vs}
}

// NewInt128Column wraps a big.Int slice holding 128-bit signed values.
func NewInt128Column(vs []big.Int) Column {
	return Column{typ: ColumnType{Kind: KindInt128}, length: len(vs), bigs: vs}
}

// NewDecimalColumn wraps a big.Int slice of scaled decimal values.
func NewDecimalColumn(precision uint8, scale int8, vs []big.Int) Column {
	return Column{
		typ:    ColumnType{Kind: KindDecimal75, Precision: precision, Scale: scale},
		length: len(vs),
		bigs:   vs,
	}
}

// NewScalarColumn wraps raw field elements.
func NewScalarColumn(vs []fr.Element) Column {
	return Column{typ: ColumnType{Kind: KindScalar}, length: len(vs), scalars: vs}
}

// NewVarCharColumn wraps a string slice.
func NewVarCharColumn(vs []string) Column {
	return Column{typ: ColumnType{Kind: KindVarChar}, length: len(vs), strs: vs}
}

// NewVarBinaryColumn wraps a byte-slice slice.
func NewVarBinaryColumn(vs [][]byte) Column {
	return Column{typ: ColumnType{Kind: KindVarBinary}, length: len(vs), raws: vs}
}

// NewTimestampTZColumn wraps UTC epoch values.
func NewTimestampTZColumn(vs []int64) Column {
	return Column{typ: ColumnType{Kind: KindTimestampTZ}, length: len(vs), ints: vs}
}

// WithPresence returns a nullable view of c; presence[i] == false marks row i
// as NULL. Panics on length mismatch: presence vectors come from the same
// table as the column.
func (c Column) WithPresence(presence []bool) Column {
	if len(presence) != c.length {
		panic("sql: presence length mismatch")
	}
	c.presence = presence
	c.typ.Nullable = true
	return c
}

// Type returns the column type.
func (c Column) Type() ColumnType { return c.typ }

// Len returns the number of rows.
func (c Column) Len() int { return c.length }

// Presence returns the presence slice, nil when all rows are present.
func (c Column) Presence() []bool { return c.presence }

// Bools returns the boolean backing slice.
func (c Column) Bools() []bool { return c.bools }

// Ints returns the int64 backing slice (integer and timestamp kinds).
func (c Column) Ints() []int64 { return c.ints }

// Bigs returns the big.Int backing slice (int128 and decimal kinds).
func (c Column) Bigs() []big.Int { return c.bigs }

// ScalarValues returns the field-element backing slice.
func (c Column) ScalarValues() []fr.Element { return c.scalars }

// Strings returns the string backing slice.
func (c Column) Strings() []string { return c.strs }

// Raws returns the byte-slice backing slice.
func (c Column) Raws() [][]byte { return c.raws }

// HashBytesToScalar maps opaque bytes to a field element. Variable-length
// kinds are committed through this map, so only equality is provable on them.
func HashBytesToScalar(b []byte) fr.Element {
	h := sha3.New256()
	h.Write([]byte("verisql/v0/varlen"))
	h.Write(b)
	var r fr.Element
	r.SetBytes(h.Sum(nil))
	return r
}

// Scalars converts the column to its field-element representation. NULL rows
// map to zero; their value is carried by the presence vector instead.
func (c Column) Scalars() []fr.Element {
	out := make([]fr.Element, c.length)
	switch c.typ.Kind {
	case KindBoolean:
		for i, v := range c.bools {
			if v {
				out[i].SetOne()
			}
		}
	case KindTinyInt, KindSmallInt, KindInt, KindBigInt, KindTimestampTZ:
		for i, v := range c.ints {
			out[i].SetInt64(v)
		}
	case KindInt128, KindDecimal75:
		for i := range c.bigs {
			out[i].SetBigInt(&c.bigs[i])
		}
	case KindScalar:
		copy(out, c.scalars)
	case KindVarChar:
		for i, v := range c.strs {
			out[i] = HashBytesToScalar([]byte(v))
		}
	case KindVarBinary:
		for i, v := range c.raws {
			out[i] = HashBytesToScalar(v)
		}
	}
	if c.presence != nil {
		for i, p := range c.presence {
			if !p {
				out[i].SetZero()
			}
		}
	}
	return out
}

// PresenceScalars converts the presence vector to 0/1 field elements, nil for
// non-nullable columns.
func (c Column) PresenceScalars() []fr.Element {
	if c.presence == nil {
		return nil
	}
	out := make([]fr.Element, c.length)
	for i, p := range c.presence {
		if p {
			out[i].SetOne()
		}
	}
	return out
}

// SelectRows materializes the subset of rows at the given indices, in order.
func (c Column) SelectRows(idx []int) Column {
	out := Column{typ: c.typ, length: len(idx)}
	switch c.typ.Kind {
	case KindBoolean:
		out.bools = make([]bool, len(idx))
		for j, i := range idx {
			out.bools[j] = c.bools[i]
		}
	case KindTinyInt, KindSmallInt, KindInt, KindBigInt, KindTimestampTZ:
		out.ints = make([]int64, len(idx))
		for j, i := range idx {
			out.ints[j] = c.ints[i]
		}
	case KindInt128, KindDecimal75:
		out.bigs = make([]big.Int, len(idx))
		for j, i := range idx {
			out.bigs[j].Set(&c.bigs[i])
		}
	case KindScalar:
		out.scalars = make([]fr.Element, len(idx))
		for j, i := range idx {
			out.scalars[j] = c.scalars[i]
		}
	case KindVarChar:
		out.strs = make([]string, len(idx))
		for j, i := range idx {
			out.strs[j] = c.strs[i]
		}
	case KindVarBinary:
		out.raws = make([][]byte, len(idx))
		for j, i := range idx {
			out.raws[j] = c.raws[i]
		}
	}
	if c.presence != nil {
		out.presence = make([]bool, len(idx))
		for j, i := range idx {
			out.presence[j] = c.presence[i]
		}
	}
	return out
}

// Concat appends o to c. Both columns must have the same type, NULLability
// excepted.
func (c Column) Concat(o Column) (Column, error) {
	if !c.typ.EqualIgnoringNullability(o.typ) {
		return Column{}, fmt.Errorf("sql: cannot concat %s with %s", c.typ, o.typ)
	}
	out := Column{typ: c.typ, length: c.length + o.length}
	switch c.typ.Kind {
	case KindBoolean:
		out.bools = append(append([]bool{}, c.bools...), o.bools...)
	case KindTinyInt, KindSmallInt, KindInt, KindBigInt, KindTimestampTZ:
		out.ints = append(append([]int64{}, c.ints...), o.ints...)
	case KindInt128, KindDecimal75:
		out.bigs = append(append([]big.Int{}, c.bigs...), o.bigs...)
	case KindScalar:
		out.scalars = append(append([]fr.Element{}, c.scalars...), o.scalars...)
	case KindVarChar:
		out.strs = append(append([]string{}, c.strs...), o.strs...)
	case KindVarBinary:
		out.raws = append(append([][]byte{}, c.raws...), o.raws...)
	}
	if c.presence != nil || o.presence != nil {
		p := make([]bool, 0, out.length)
		p = appendPresence(p, c.presence, c.length)
		p = appendPresence(p, o.presence, o.length)
		out.presence = p
		out.typ.Nullable = true
	}
	return out, nil
}

func appendPresence(dst, presence []bool, n int) []bool {
	if presence == nil {
		for i := 0; i < n; i++ {
			dst = append(dst, true)
		}
		return dst
	}
	return append(dst, presence...)
}
