package proof

import (
	"crypto/rand"
	"testing"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/require"

	"github.com/verisql/verisql/mle"
)

func randomScalar(t *testing.T) fr.Element {
	t.Helper()
	var buf [32]byte
	_, err := rand.Read(buf[:])
	require.NoError(t, err)
	var e fr.Element
	e.SetBytes(buf[:])
	return e
}

func onesColumn(n int) []fr.Element {
	return mle.ChiColumn(n, n)
}

// constraintsHold evaluates every collected constraint directly over the
// rows: identity terms must vanish row by row, zero-sum terms must total
// zero. This checks exactly what the batched sumcheck would establish.
func constraintsHold(b *FinalRoundBuilder) bool {
	for _, sub := range b.Subpolynomials() {
		rows := 0
		for _, term := range sub.Terms {
			for _, m := range term.Multiplicands {
				if len(m) > rows {
					rows = len(m)
				}
			}
		}
		var total fr.Element
		for i := 0; i < rows; i++ {
			var rowSum fr.Element
			for _, term := range sub.Terms {
				v := term.Coefficient
				for _, m := range term.Multiplicands {
					var x fr.Element
					if i < len(m) {
						x = m[i]
					}
					v.Mul(&v, &x)
				}
				rowSum.Add(&rowSum, &v)
			}
			if sub.Kind == Identity && !rowSum.IsZero() {
				return false
			}
			total.Add(&total, &rowSum)
		}
		if sub.Kind == ZeroSum && !total.IsZero() {
			return false
		}
	}
	return true
}

func checkConstraints(t *testing.T, b *FinalRoundBuilder) {
	t.Helper()
	require.True(t, constraintsHold(b), "collected constraints do not hold")
}

func TestProveStarConstraint(t *testing.T) {
	b := NewFinalRoundBuilder(nil)
	alpha := randomScalar(t)
	fold := scalarsOf(3, -7, 0, 11)
	star := ProveStar(b, alpha, fold, onesColumn(4))
	require.Len(t, star, 4)
	checkConstraints(t, b)
}

func TestFoldEvalsMatchesFoldColumns(t *testing.T) {
	assert := require.New(t)

	beta := randomScalar(t)
	cols := [][]fr.Element{scalarsOf(1, 2), scalarsOf(-3, 4), scalarsOf(5, 0)}
	fold := FoldColumns(beta, cols, 2)
	for i := 0; i < 2; i++ {
		want := FoldEvals(beta, cols[0][i], cols[1][i], cols[2][i])
		assert.True(fold[i].Equal(&want), "row %d", i)
	}
}

func TestFilterMultiset(t *testing.T) {
	b := NewFinalRoundBuilder(nil)
	alpha, beta := randomScalar(t), randomScalar(t)

	inCols := [][]fr.Element{scalarsOf(1, 2, 3, 2), scalarsOf(10, 20, 30, 40)}
	sel := scalarsOf(0, 1, 0, 1)
	outCols := [][]fr.Element{scalarsOf(2, 2), scalarsOf(20, 40)}
	ProveFilterMultiset(b, alpha, beta, inCols, sel, outCols, onesColumn(4), onesColumn(2))
	checkConstraints(t, b)
}

func TestFilterMultisetRejectsWrongOutput(t *testing.T) {
	b := NewFinalRoundBuilder(nil)
	alpha, beta := randomScalar(t), randomScalar(t)

	inCols := [][]fr.Element{scalarsOf(1, 2, 3, 2)}
	sel := scalarsOf(0, 1, 0, 1)
	outCols := [][]fr.Element{scalarsOf(2, 3)} // row 3 not selected
	ProveFilterMultiset(b, alpha, beta, inCols, sel, outCols, onesColumn(4), onesColumn(2))
	require.False(t, constraintsHold(b))
}

func TestMultisetEquality(t *testing.T) {
	b := NewFinalRoundBuilder(nil)
	alpha, beta := randomScalar(t), randomScalar(t)

	a := [][]fr.Element{scalarsOf(5, 1, 5), scalarsOf(-1, 2, 3)}
	reordered := [][]fr.Element{scalarsOf(5, 5, 1), scalarsOf(3, -1, 2)}
	ProveMultisetEquality(b, alpha, beta, a, reordered, onesColumn(3), onesColumn(3))
	checkConstraints(t, b)

	b = NewFinalRoundBuilder(nil)
	wrong := [][]fr.Element{scalarsOf(5, 5, 1), scalarsOf(3, -1, 7)}
	ProveMultisetEquality(b, alpha, beta, a, wrong, onesColumn(3), onesColumn(3))
	require.False(t, constraintsHold(b))
}

func TestPermutation(t *testing.T) {
	b := NewFinalRoundBuilder(nil)
	alpha, beta := randomScalar(t), randomScalar(t)

	// source [1,2,3] reordered by sigma [1,2,0] yields [2,3,1]
	columns := [][]fr.Element{scalarsOf(1, 2, 3)}
	permuted := [][]fr.Element{scalarsOf(2, 3, 1)}
	sigma := scalarsOf(1, 2, 0)
	ProvePermutation(b, alpha, beta, columns, permuted, sigma, onesColumn(3), 3)
	checkConstraints(t, b)
}

func TestPermutationRejectsRepeatedIndex(t *testing.T) {
	b := NewFinalRoundBuilder(nil)
	alpha, beta := randomScalar(t), randomScalar(t)

	// sigma hits position 0 twice, so the tagged multisets differ even
	// though the values happen to match as bags.
	columns := [][]fr.Element{scalarsOf(1, 1, 3)}
	permuted := [][]fr.Element{scalarsOf(1, 1, 3)}
	sigma := scalarsOf(0, 0, 2)
	ProvePermutation(b, alpha, beta, columns, permuted, sigma, onesColumn(3), 3)
	require.False(t, constraintsHold(b))
}

func TestShiftConstraints(t *testing.T) {
	b := NewFinalRoundBuilder(nil)
	alpha, beta := randomScalar(t), randomScalar(t)

	column := scalarsOf(5, -7, 9)
	shifted := ShiftColumn(column)
	require.Equal(t, scalarsOf(0, 5, -7, 9), shifted)
	ProveShiftConstraints(b, alpha, beta, column, shifted, onesColumn(3))
	checkConstraints(t, b)
}

func TestShiftConstraintsRejectMisalignment(t *testing.T) {
	b := NewFinalRoundBuilder(nil)
	alpha, beta := randomScalar(t), randomScalar(t)

	column := scalarsOf(5, -7, 9)
	shifted := scalarsOf(0, -7, 5, 9) // rows swapped, not a shift
	ProveShiftConstraints(b, alpha, beta, column, shifted, onesColumn(3))
	require.False(t, constraintsHold(b))
}

func TestProveSign(t *testing.T) {
	assert := require.New(t)

	b := NewFinalRoundBuilder(nil)
	values := scalarsOf(-3, -1, 0, 1, 5)
	sign, err := ProveSign(b, values, onesColumn(5))
	assert.NoError(err)
	checkConstraints(t, b)

	assert.Equal(scalarsOf(1, 1, 0, 0, 0), sign.IsNegative)
	assert.NotNil(sign.SignBit)
}

func TestProveSignConstantColumn(t *testing.T) {
	assert := require.New(t)

	b := NewFinalRoundBuilder(nil)
	sign, err := ProveSign(b, scalarsOf(4, 4), onesColumn(2))
	assert.NoError(err)
	assert.Empty(b.Subpolynomials())
	assert.Nil(sign.SignBit)
	assert.False(sign.ConstantNegative)
	assert.Equal(scalarsOf(0, 0), sign.IsNegative)

	b = NewFinalRoundBuilder(nil)
	sign, err = ProveSign(b, scalarsOf(-2, -2), onesColumn(2))
	assert.NoError(err)
	assert.True(sign.ConstantNegative)
	assert.Equal(scalarsOf(1, 1), sign.IsNegative)
}

func TestProveSignOutOfRange(t *testing.T) {
	b := NewFinalRoundBuilder(nil)
	var v fr.Element
	v.SetOne()
	for i := 0; i < 252; i++ {
		v.Double(&v)
	}
	_, err := ProveSign(b, []fr.Element{v}, onesColumn(1))
	require.ErrorIs(t, err, ErrOutOfRange)
}

func TestStrictlyIncreasing(t *testing.T) {
	assert := require.New(t)

	b := NewFinalRoundBuilder(nil)
	alpha, beta := randomScalar(t), randomScalar(t)
	column := scalarsOf(-5, 0, 2, 100)
	shifted := ShiftColumn(column)
	assert.NoError(ProveStrictlyIncreasing(b, alpha, beta, column, shifted, onesColumn(4)))
	checkConstraints(t, b)
}

func TestStrictlyIncreasingRejectsDuplicate(t *testing.T) {
	b := NewFinalRoundBuilder(nil)
	alpha, beta := randomScalar(t), randomScalar(t)
	column := scalarsOf(1, 2, 2, 3)
	err := ProveStrictlyIncreasing(b, alpha, beta, column, ShiftColumn(column), onesColumn(4))
	if err == nil {
		require.False(t, constraintsHold(b))
	}
}

func TestStrictlyIncreasingRejectsDescending(t *testing.T) {
	b := NewFinalRoundBuilder(nil)
	alpha, beta := randomScalar(t), randomScalar(t)
	column := scalarsOf(3, 2, 1)
	err := ProveStrictlyIncreasing(b, alpha, beta, column, ShiftColumn(column), onesColumn(3))
	if err == nil {
		require.False(t, constraintsHold(b))
	}
}

func TestStrictlyIncreasingConstantColumnErrors(t *testing.T) {
	b := NewFinalRoundBuilder(nil)
	alpha, beta := randomScalar(t), randomScalar(t)
	column := scalarsOf(0, 0)
	err := ProveStrictlyIncreasing(b, alpha, beta, column, ShiftColumn(column), onesColumn(2))
	require.Error(t, err)
}

func TestStrictlyIncreasingSingleRow(t *testing.T) {
	b := NewFinalRoundBuilder(nil)
	alpha, beta := randomScalar(t), randomScalar(t)
	column := scalarsOf(7)
	require.NoError(t, ProveStrictlyIncreasing(b, alpha, beta, column, ShiftColumn(column), onesColumn(1)))
	checkConstraints(t, b)
}

func TestProveSignProperty(t *testing.T) {
	params := gopter.DefaultTestParameters()
	params.MinSuccessfulTests = 200
	properties := gopter.NewProperties(params)

	properties.Property("constraints hold and match the int64 sign", prop.ForAll(
		func(vs []int64) bool {
			if len(vs) == 0 {
				return true
			}
			b := NewFinalRoundBuilder(nil)
			res, err := ProveSign(b, scalarsOf(vs...), onesColumn(len(vs)))
			if err != nil || !constraintsHold(b) {
				return false
			}
			for i, v := range vs {
				if !res.IsNegative[i].IsZero() != (v < 0) {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.Int64()),
	))

	properties.TestingRun(t)
}

func TestNondecreasingAllowsDuplicates(t *testing.T) {
	b := NewFinalRoundBuilder(nil)
	alpha, beta := randomScalar(t), randomScalar(t)
	column := scalarsOf(-3, -3, 0, 0, 7)
	shifted := ShiftColumn(column)
	require.NoError(t, ProveMonotonic(b, alpha, beta, column, shifted, onesColumn(5), false, false))
	checkConstraints(t, b)
}

func TestNondecreasingRejectsDrop(t *testing.T) {
	b := NewFinalRoundBuilder(nil)
	alpha, beta := randomScalar(t), randomScalar(t)
	column := scalarsOf(1, 3, 2)
	err := ProveMonotonic(b, alpha, beta, column, ShiftColumn(column), onesColumn(3), false, false)
	if err == nil {
		require.False(t, constraintsHold(b))
	}
}

func TestStrictlyDecreasing(t *testing.T) {
	b := NewFinalRoundBuilder(nil)
	alpha, beta := randomScalar(t), randomScalar(t)
	column := scalarsOf(9, 4, -1)
	shifted := ShiftColumn(column)
	require.NoError(t, ProveMonotonic(b, alpha, beta, column, shifted, onesColumn(3), true, true))
	checkConstraints(t, b)
}

func TestStrictlyDecreasingRejectsDuplicate(t *testing.T) {
	b := NewFinalRoundBuilder(nil)
	alpha, beta := randomScalar(t), randomScalar(t)
	column := scalarsOf(5, 5, 1)
	err := ProveMonotonic(b, alpha, beta, column, ShiftColumn(column), onesColumn(3), true, true)
	if err == nil {
		require.False(t, constraintsHold(b))
	}
}

func TestNonincreasingConstantColumn(t *testing.T) {
	b := NewFinalRoundBuilder(nil)
	alpha, beta := randomScalar(t), randomScalar(t)
	column := scalarsOf(4, 4, 4)
	shifted := ShiftColumn(column)
	require.NoError(t, ProveMonotonic(b, alpha, beta, column, shifted, onesColumn(3), false, true))
	checkConstraints(t, b)
}
