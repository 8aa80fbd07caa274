package sumcheck

import (
	"crypto/rand"
	"testing"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/stretchr/testify/require"

	"github.com/verisql/verisql/mle"
	"github.com/verisql/verisql/transcript"
)

func randomMLE(t *testing.T, n int) []fr.Element {
	t.Helper()
	v := make([]fr.Element, n)
	for i := range v {
		var buf [32]byte
		_, err := rand.Read(buf[:])
		require.NoError(t, err)
		v[i].SetBytes(buf[:])
	}
	return v
}

// hypercubeSum computes the claimed sum directly.
func hypercubeSum(poly Polynomial, size int) fr.Element {
	var sum, prod fr.Element
	for i := 0; i < size; i++ {
		for _, term := range poly.Terms {
			prod = term.Coefficient
			for _, m := range term.Multiplicands {
				prod.Mul(&prod, &poly.MLEs[m][i])
			}
			sum.Add(&sum, &prod)
		}
	}
	return sum
}

// compositeAt evaluates the composite at the subclaim point.
func compositeAt(poly Polynomial, point []fr.Element) fr.Element {
	evals := make([]fr.Element, len(poly.MLEs))
	for i := range poly.MLEs {
		evals[i] = mle.Evaluate(poly.MLEs[i], point)
	}
	var res, prod fr.Element
	for _, term := range poly.Terms {
		prod = term.Coefficient
		for _, m := range term.Multiplicands {
			prod.Mul(&prod, &evals[m])
		}
		res.Add(&res, &prod)
	}
	return res
}

func testPolynomial(t *testing.T, nv int) Polynomial {
	size := 1 << nv
	var c1, c2 fr.Element
	c1.SetUint64(3)
	c2.SetInt64(-5)
	return Polynomial{
		MLEs: [][]fr.Element{randomMLE(t, size), randomMLE(t, size), randomMLE(t, size)},
		Terms: []Term{
			{Coefficient: c1, Multiplicands: []int{0, 1, 2}},
			{Coefficient: c2, Multiplicands: []int{1}},
		},
	}
}

func TestProveVerifyRoundTrip(t *testing.T) {
	assert := require.New(t)

	const nv, degree = 4, 3
	poly := testPolynomial(t, nv)
	claim := hypercubeSum(poly, 1<<nv)

	proof, point, err := Prove(transcript.New("test"), poly, nv, degree)
	assert.NoError(err)
	assert.Len(proof.RoundEvaluations, nv)

	subclaim, err := Verify(transcript.New("test"), proof, claim, nv, degree)
	assert.NoError(err)
	assert.Equal(point, subclaim.Point)

	got := compositeAt(poly, subclaim.Point)
	assert.True(got.Equal(&subclaim.ExpectedEvaluation), "final evaluation check")
}

func TestVerifyRejectsWrongClaim(t *testing.T) {
	assert := require.New(t)

	const nv, degree = 3, 3
	poly := testPolynomial(t, nv)
	claim := hypercubeSum(poly, 1<<nv)

	proof, _, err := Prove(transcript.New("test"), poly, nv, degree)
	assert.NoError(err)

	var wrong fr.Element
	wrong.Add(&claim, &wrong)
	wrong.SetUint64(1)
	wrong.Add(&claim, &wrong)
	_, err = Verify(transcript.New("test"), proof, wrong, nv, degree)
	assert.ErrorIs(err, ErrVerification)
}

func TestVerifyRejectsTamperedRound(t *testing.T) {
	assert := require.New(t)

	const nv, degree = 3, 3
	poly := testPolynomial(t, nv)
	claim := hypercubeSum(poly, 1<<nv)

	proof, _, err := Prove(transcript.New("test"), poly, nv, degree)
	assert.NoError(err)

	for round := 0; round < nv; round++ {
		for k := 0; k <= degree; k++ {
			tampered := &Proof{RoundEvaluations: make([][]fr.Element, nv)}
			for i := range proof.RoundEvaluations {
				tampered.RoundEvaluations[i] = append([]fr.Element{}, proof.RoundEvaluations[i]...)
			}
			var one fr.Element
			one.SetOne()
			tampered.RoundEvaluations[round][k].Add(&tampered.RoundEvaluations[round][k], &one)

			subclaim, err := Verify(transcript.New("test"), tampered, claim, nv, degree)
			if err == nil {
				// later-round tampering shifts the subclaim; the final
				// evaluation check must then fail
				got := compositeAt(poly, subclaim.Point)
				assert.False(got.Equal(&subclaim.ExpectedEvaluation),
					"tamper at round %d eval %d must not survive the final check", round, k)
			}
		}
	}
}

func TestZeroVariables(t *testing.T) {
	assert := require.New(t)

	var seven fr.Element
	seven.SetUint64(7)
	poly := Polynomial{
		MLEs:  [][]fr.Element{{seven}},
		Terms: []Term{{Coefficient: fr.One(), Multiplicands: []int{0}}},
	}

	proof, point, err := Prove(transcript.New("test"), poly, 0, 3)
	assert.NoError(err)
	assert.Empty(point)

	subclaim, err := Verify(transcript.New("test"), proof, seven, 0, 3)
	assert.NoError(err)
	assert.Empty(subclaim.Point)
	assert.True(subclaim.ExpectedEvaluation.Equal(&seven))
}

func TestProverDoesNotMutateInputs(t *testing.T) {
	assert := require.New(t)

	const nv, degree = 3, 3
	poly := testPolynomial(t, nv)
	before := append([]fr.Element{}, poly.MLEs[0]...)

	_, _, err := Prove(transcript.New("test"), poly, nv, degree)
	assert.NoError(err)
	assert.Equal(before, poly.MLEs[0])
}

func TestInterpolate(t *testing.T) {
	assert := require.New(t)

	// p(x) = 2x^2 + 3x + 5 over nodes 0..3
	evals := make([]fr.Element, 4)
	for i := range evals {
		evals[i].SetUint64(uint64(2*i*i + 3*i + 5))
	}
	var x, want fr.Element
	x.SetUint64(10)
	want.SetUint64(2*100 + 3*10 + 5)
	got := interpolate(evals, x)
	assert.True(got.Equal(&want))
}
