package mle

import (
	"crypto/rand"
	"testing"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/stretchr/testify/require"
)

func randomPoint(t *testing.T, n int) []fr.Element {
	t.Helper()
	point := make([]fr.Element, n)
	for i := range point {
		var buf [32]byte
		_, err := rand.Read(buf[:])
		require.NoError(t, err)
		point[i].SetBytes(buf[:])
	}
	return point
}

func TestEvalVectorSumsToOne(t *testing.T) {
	assert := require.New(t)
	point := randomPoint(t, 4)
	eq := EvalVector(point)
	assert.Len(eq, 16)

	var sum fr.Element
	for i := range eq {
		sum.Add(&sum, &eq[i])
	}
	var one fr.Element
	one.SetOne()
	assert.True(sum.Equal(&one), "partition of unity")
}

func TestEvalVectorAtBooleanPoint(t *testing.T) {
	assert := require.New(t)
	// point = (1, 0, 1) selects index 0b101 = 5
	point := make([]fr.Element, 3)
	point[0].SetOne()
	point[2].SetOne()
	eq := EvalVector(point)
	for i := range eq {
		if i == 5 {
			assert.True(eq[i].IsOne())
		} else {
			assert.True(eq[i].IsZero())
		}
	}
}

func TestEvaluateMatchesFold(t *testing.T) {
	assert := require.New(t)
	point := randomPoint(t, 3)
	v := make([]fr.Element, 8)
	for i := range v {
		v[i].SetUint64(uint64(i*i + 1))
	}

	direct := Evaluate(v, point)

	folded := append([]fr.Element{}, v...)
	for j := len(point) - 1; j >= 0; j-- {
		folded = Fold(folded, point[j])
	}
	assert.True(direct.Equal(&folded[0]))
}

func TestEvaluateZeroPads(t *testing.T) {
	assert := require.New(t)
	point := randomPoint(t, 3)
	v := make([]fr.Element, 5)
	for i := range v {
		v[i].SetUint64(uint64(7 * (i + 1)))
	}
	padded := Pad(append([]fr.Element{}, v...), 8)
	e1 := Evaluate(v, point)
	e2 := Evaluate(padded, point)
	assert.True(e1.Equal(&e2))
}

func TestChiEvalClosedForm(t *testing.T) {
	assert := require.New(t)
	point := randomPoint(t, 4)
	eq := EvalVector(point)
	for n := 0; n <= 16; n++ {
		var brute fr.Element
		for i := 0; i < n; i++ {
			brute.Add(&brute, &eq[i])
		}
		closed := ChiEval(n, point)
		assert.True(brute.Equal(&closed), "chi mismatch at n=%d", n)
	}
}

func TestRhoEvalClosedForm(t *testing.T) {
	assert := require.New(t)
	point := randomPoint(t, 4)
	eq := EvalVector(point)
	for n := 0; n <= 16; n++ {
		var brute, t0, idx fr.Element
		for i := 0; i < n; i++ {
			idx.SetUint64(uint64(i))
			t0.Mul(&eq[i], &idx)
			brute.Add(&brute, &t0)
		}
		closed := RhoEval(n, point)
		assert.True(brute.Equal(&closed), "rho mismatch at n=%d", n)
	}
}

func TestRhoChiColumns(t *testing.T) {
	assert := require.New(t)
	rho := RhoColumn(4)
	var three fr.Element
	three.SetUint64(3)
	assert.True(rho[3].Equal(&three))

	chi := ChiColumn(3, 8)
	assert.Len(chi, 8)
	assert.True(chi[2].IsOne())
	assert.True(chi[3].IsZero())
}
