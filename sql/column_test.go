package sql

import (
	"math/big"
	"testing"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScalarsSignedConversion(t *testing.T) {
	c := NewBigIntColumn([]int64{-1, 0, 1})
	s := c.Scalars()

	var minusOne, one fr.Element
	one.SetOne()
	minusOne.Neg(&one)

	assert.True(t, s[0].Equal(&minusOne))
	assert.True(t, s[1].IsZero())
	assert.True(t, s[2].IsOne())
}

func TestScalarsBigIntNegative(t *testing.T) {
	v := make([]big.Int, 2)
	v[0].SetInt64(-12345)
	v[1].SetString("170141183460469231731687303715884105727", 10) // 2^127 - 1
	c := NewInt128Column(v)
	s := c.Scalars()

	var want fr.Element
	want.SetInt64(-12345)
	assert.True(t, s[0].Equal(&want))
	want.SetBigInt(&v[1])
	assert.True(t, s[1].Equal(&want))
}

func TestVarCharScalarsAreEqualityConsistent(t *testing.T) {
	c := NewVarCharColumn([]string{"hello", "world", "hello"})
	s := c.Scalars()
	assert.True(t, s[0].Equal(&s[2]))
	assert.False(t, s[0].Equal(&s[1]))
}

func TestPresenceZeroesScalars(t *testing.T) {
	c := NewBigIntColumn([]int64{7, 8, 9}).WithPresence([]bool{true, false, true})
	s := c.Scalars()
	assert.False(t, s[0].IsZero())
	assert.True(t, s[1].IsZero())

	p := c.PresenceScalars()
	require.NotNil(t, p)
	assert.True(t, p[0].IsOne())
	assert.True(t, p[1].IsZero())
	assert.True(t, c.Type().Nullable)
}

func TestSelectRowsAndConcat(t *testing.T) {
	assert := require.New(t)

	c := NewVarCharColumn([]string{"a", "b", "c", "d"})
	sub := c.SelectRows([]int{3, 1})
	assert.Equal([]string{"d", "b"}, sub.Strings())

	joined, err := sub.Concat(NewVarCharColumn([]string{"e"}))
	assert.NoError(err)
	assert.Equal([]string{"d", "b", "e"}, joined.Strings())

	_, err = sub.Concat(NewBigIntColumn([]int64{1}))
	assert.Error(err)
}

func TestTableInvariants(t *testing.T) {
	assert := require.New(t)

	tbl := NewTable(2)
	assert.NoError(tbl.AddColumn("a", NewBigIntColumn([]int64{1, 2})))
	assert.Error(tbl.AddColumn("b", NewBigIntColumn([]int64{1, 2, 3})), "length mismatch")
	assert.Error(tbl.AddColumn("a", NewBigIntColumn([]int64{3, 4})), "duplicate name")

	// zero-column table keeps an explicit row count
	empty := NewTable(5)
	assert.Equal(5, empty.NumRows())
	assert.Equal(0, empty.NumColumns())
}

func TestColumnTypeProperties(t *testing.T) {
	assert.True(t, ColumnType{Kind: KindBigInt}.IsNumeric())
	assert.True(t, ColumnType{Kind: KindDecimal75, Precision: 10, Scale: 2}.IsNumeric())
	assert.False(t, ColumnType{Kind: KindVarChar}.IsNumeric())
	assert.True(t, ColumnType{Kind: KindTimestampTZ}.IsOrderable())
	assert.False(t, ColumnType{Kind: KindVarBinary}.IsOrderable())
	assert.Equal(t, "decimal75(10,2)", ColumnType{Kind: KindDecimal75, Precision: 10, Scale: 2}.String())
}
