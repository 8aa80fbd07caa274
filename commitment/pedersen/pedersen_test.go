package pedersen

import (
	"testing"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/stretchr/testify/require"

	"github.com/verisql/verisql/commitment"
	"github.com/verisql/verisql/mle"
	"github.com/verisql/verisql/transcript"
)

func testPoint(n int) []fr.Element {
	point := make([]fr.Element, n)
	for i := range point {
		point[i].SetUint64(uint64(1000 + 7*i))
	}
	return point
}

func TestBatchOpenRoundTrip(t *testing.T) {
	assert := require.New(t)

	setup, err := NewSetup(16)
	assert.NoError(err)
	scheme := NewScheme(setup)

	v1 := make([]fr.Element, 16)
	v2 := make([]fr.Element, 5) // shorter vector, zero-padded
	for i := range v1 {
		v1[i].SetUint64(uint64(i * i))
	}
	for i := range v2 {
		v2[i].SetInt64(int64(-3 * i))
	}

	c1, err := scheme.Commit(v1, 0)
	assert.NoError(err)
	c2, err := scheme.Commit(v2, 0)
	assert.NoError(err)

	point := testPoint(4)
	e1 := mle.Evaluate(v1, point)
	e2 := mle.Evaluate(v2, point)

	proverT := transcript.New("test")
	proof, err := scheme.BatchOpen(proverT, [][]fr.Element{v1, v2}, point, []fr.Element{e1, e2})
	assert.NoError(err)

	verifierT := transcript.New("test")
	err = scheme.VerifyBatchOpening(verifierT, proof, []commitment.Commitment{c1, c2}, point, []fr.Element{e1, e2})
	assert.NoError(err)
}

func TestBatchOpenRejectsWrongEvaluation(t *testing.T) {
	assert := require.New(t)

	setup, err := NewSetup(8)
	assert.NoError(err)
	scheme := NewScheme(setup)

	v := make([]fr.Element, 8)
	for i := range v {
		v[i].SetUint64(uint64(i + 1))
	}
	c, err := scheme.Commit(v, 0)
	assert.NoError(err)

	point := testPoint(3)
	e := mle.Evaluate(v, point)

	proof, err := scheme.BatchOpen(transcript.New("test"), [][]fr.Element{v}, point, []fr.Element{e})
	assert.NoError(err)

	var bad fr.Element
	bad.Add(&e, &bad)
	bad.SetUint64(12345)
	err = scheme.VerifyBatchOpening(transcript.New("test"), proof, []commitment.Commitment{c}, point, []fr.Element{bad})
	assert.ErrorIs(err, ErrOpeningVerification)
}

func TestBatchOpenRejectsWrongCommitment(t *testing.T) {
	assert := require.New(t)

	setup, err := NewSetup(8)
	assert.NoError(err)
	scheme := NewScheme(setup)

	v := make([]fr.Element, 8)
	w := make([]fr.Element, 8)
	for i := range v {
		v[i].SetUint64(uint64(i + 1))
		w[i].SetUint64(uint64(i + 2))
	}
	cw, err := scheme.Commit(w, 0)
	assert.NoError(err)

	point := testPoint(3)
	e := mle.Evaluate(v, point)

	proof, err := scheme.BatchOpen(transcript.New("test"), [][]fr.Element{v}, point, []fr.Element{e})
	assert.NoError(err)

	err = scheme.VerifyBatchOpening(transcript.New("test"), proof, []commitment.Commitment{cw}, point, []fr.Element{e})
	assert.ErrorIs(err, ErrOpeningVerification)
}

func TestZeroVariablePoint(t *testing.T) {
	assert := require.New(t)

	setup, err := NewSetup(4)
	assert.NoError(err)
	scheme := NewScheme(setup)

	v := []fr.Element{{}}
	v[0].SetUint64(42)
	c, err := scheme.Commit(v, 0)
	assert.NoError(err)

	e := mle.Evaluate(v, nil)
	proof, err := scheme.BatchOpen(transcript.New("test"), [][]fr.Element{v}, nil, []fr.Element{e})
	assert.NoError(err)

	err = scheme.VerifyBatchOpening(transcript.New("test"), proof, []commitment.Commitment{c}, nil, []fr.Element{e})
	assert.NoError(err)
}

func TestCommitmentMarshalRoundTrip(t *testing.T) {
	assert := require.New(t)

	setup, err := NewSetup(4)
	assert.NoError(err)
	scheme := NewScheme(setup)

	v := make([]fr.Element, 4)
	for i := range v {
		v[i].SetUint64(uint64(11 * (i + 1)))
	}
	c, err := scheme.Commit(v, 0)
	assert.NoError(err)

	decoded, err := scheme.UnmarshalCommitment(c.Bytes())
	assert.NoError(err)
	assert.Equal(c.Bytes(), decoded.Bytes())
}
