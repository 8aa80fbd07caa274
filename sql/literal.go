package sql

import (
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
)

// LiteralValue is one typed constant: a query literal or a bound placeholder
// parameter.
type LiteralValue struct {
	typ    ColumnType
	b      bool
	i      int64
	big    *big.Int
	scalar fr.Element
	s      string
	raw    []byte
}

// NewBooleanLiteral builds a boolean constant.
func NewBooleanLiteral(v bool) LiteralValue {
	return LiteralValue{typ: ColumnType{Kind: KindBoolean}, b: v}
}

// NewTinyIntLiteral builds an 8-bit integer constant.
func NewTinyIntLiteral(v int8) LiteralValue {
	return LiteralValue{typ: ColumnType{Kind: KindTinyInt}, i: int64(v)}
}

// NewSmallIntLiteral builds a 16-bit integer constant.
func NewSmallIntLiteral(v int16) LiteralValue {
	return LiteralValue{typ: ColumnType{Kind: KindSmallInt}, i: int64(v)}
}

// NewIntLiteral builds a 32-bit integer constant.
func NewIntLiteral(v int32) LiteralValue {
	return LiteralValue{typ: ColumnType{Kind: KindInt}, i: int64(v)}
}

// NewBigIntLiteral builds a 64-bit integer constant.
func NewBigIntLiteral(v int64) LiteralValue {
	return LiteralValue{typ: ColumnType{Kind: KindBigInt}, i: v}
}

// NewInt128Literal builds a 128-bit integer constant.
func NewInt128Literal(v *big.Int) LiteralValue {
	return LiteralValue{typ: ColumnType{Kind: KindInt128}, big: new(big.Int).Set(v)}
}

// NewDecimalLiteral builds a scaled decimal constant.
func NewDecimalLiteral(precision uint8, scale int8, v *big.Int) LiteralValue {
	return LiteralValue{
		typ: ColumnType{Kind: KindDecimal75, Precision: precision, Scale: scale},
		big: new(big.Int).Set(v),
	}
}

// NewScalarLiteral builds a raw field-element constant.
func NewScalarLiteral(v fr.Element) LiteralValue {
	return LiteralValue{typ: ColumnType{Kind: KindScalar}, scalar: v}
}

// NewVarCharLiteral builds a string constant.
func NewVarCharLiteral(v string) LiteralValue {
	return LiteralValue{typ: ColumnType{Kind: KindVarChar}, s: v}
}

// NewVarBinaryLiteral builds a byte-string constant.
func NewVarBinaryLiteral(v []byte) LiteralValue {
	return LiteralValue{typ: ColumnType{Kind: KindVarBinary}, raw: append([]byte{}, v...)}
}

// NewTimestampTZLiteral builds a UTC epoch constant.
func NewTimestampTZLiteral(unix int64) LiteralValue {
	return LiteralValue{typ: ColumnType{Kind: KindTimestampTZ}, i: unix}
}

// Type returns the literal's type.
func (l LiteralValue) Type() ColumnType { return l.typ }

// Scalar returns the field-element encoding of the literal, using the same
// mapping as Column.Scalars.
func (l LiteralValue) Scalar() fr.Element {
	var e fr.Element
	switch l.typ.Kind {
	case KindBoolean:
		if l.b {
			e.SetOne()
		}
	case KindTinyInt, KindSmallInt, KindInt, KindBigInt, KindTimestampTZ:
		e.SetInt64(l.i)
	case KindInt128, KindDecimal75:
		e.SetBigInt(l.big)
	case KindScalar:
		e = l.scalar
	case KindVarChar:
		e = HashBytesToScalar([]byte(l.s))
	case KindVarBinary:
		e = HashBytesToScalar(l.raw)
	}
	return e
}

// Column materializes the literal as a column of n identical rows.
func (l LiteralValue) Column(n int) Column {
	switch l.typ.Kind {
	case KindBoolean:
		vs := make([]bool, n)
		for i := range vs {
			vs[i] = l.b
		}
		return NewBooleanColumn(vs)
	case KindTinyInt, KindSmallInt, KindInt, KindBigInt, KindTimestampTZ:
		vs := make([]int64, n)
		for i := range vs {
			vs[i] = l.i
		}
		return Column{typ: l.typ, length: n, ints: vs}
	case KindInt128, KindDecimal75:
		vs := make([]big.Int, n)
		for i := range vs {
			vs[i].Set(l.big)
		}
		return Column{typ: l.typ, length: n, bigs: vs}
	case KindScalar:
		vs := make([]fr.Element, n)
		for i := range vs {
			vs[i] = l.scalar
		}
		return NewScalarColumn(vs)
	case KindVarChar:
		vs := make([]string, n)
		for i := range vs {
			vs[i] = l.s
		}
		return NewVarCharColumn(vs)
	default: // KindVarBinary
		vs := make([][]byte, n)
		for i := range vs {
			vs[i] = l.raw
		}
		return NewVarBinaryColumn(vs)
	}
}
