// Package pedersen implements the commitment.Scheme contract with Pedersen
// vector commitments over bn254 G1 and a Bulletproofs-style inner-product
// argument for multilinear evaluation proofs.
//
// The scheme is transparent: generators are derived by hashing to the curve,
// so there is no trusted setup. Opening proofs are logarithmic in the padded
// vector length. Pairing-based schemes with faster verification can be
// substituted behind the same interface.
package pedersen

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc"
	bn254 "github.com/consensys/gnark-crypto/ecc/bn254"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/fxamacker/cbor/v2"

	"github.com/verisql/verisql/commitment"
	"github.com/verisql/verisql/mle"
	"github.com/verisql/verisql/transcript"
)

var (
	// ErrSetupTooSmall signals a vector longer than the generator basis.
	ErrSetupTooSmall = errors.New("pedersen: setup has too few generators")
	// ErrOpeningVerification signals a rejected evaluation proof.
	ErrOpeningVerification = errors.New("pedersen: opening proof verification failed")
)

const generatorDST = "verisql/v0/pedersen/generators"

// Setup holds the public generator basis. It is read-only after construction
// and safe to share across concurrent proof computations.
type Setup struct {
	g []bn254.G1Affine
	h bn254.G1Affine
}

// NewSetup derives n deterministic generators plus the evaluation-binding
// generator by hashing to G1.
func NewSetup(n int) (*Setup, error) {
	s := &Setup{g: make([]bn254.G1Affine, n)}
	var buf [8]byte
	for i := range s.g {
		binary.BigEndian.PutUint64(buf[:], uint64(i))
		p, err := bn254.HashToG1(buf[:], []byte(generatorDST))
		if err != nil {
			return nil, fmt.Errorf("pedersen: hashing generator %d: %w", i, err)
		}
		s.g[i] = p
	}
	h, err := bn254.HashToG1([]byte("H"), []byte(generatorDST))
	if err != nil {
		return nil, fmt.Errorf("pedersen: hashing blinding generator: %w", err)
	}
	s.h = h
	return s, nil
}

// NumGenerators returns the basis size, the maximum supported vector length.
func (s *Setup) NumGenerators() int { return len(s.g) }

// Commitment is a single G1 point.
type Commitment struct {
	point bn254.G1Affine
}

// Bytes returns the compressed point encoding.
func (c Commitment) Bytes() []byte {
	b := c.point.Bytes()
	return b[:]
}

// Scheme implements commitment.Scheme over a shared Setup.
type Scheme struct {
	setup *Setup
}

// NewScheme wraps a setup.
func NewScheme(setup *Setup) *Scheme { return &Scheme{setup: setup} }

var _ commitment.Scheme = (*Scheme)(nil)

// Commit commits to vec at the given row offset: C = sum_i vec[i]*G[offset+i].
func (s *Scheme) Commit(vec []fr.Element, offset int) (commitment.Commitment, error) {
	if offset+len(vec) > len(s.setup.g) {
		return nil, ErrSetupTooSmall
	}
	var c Commitment
	if _, err := c.point.MultiExp(s.setup.g[offset:offset+len(vec)], vec, ecc.MultiExpConfig{}); err != nil {
		return nil, fmt.Errorf("pedersen: msm: %w", err)
	}
	return c, nil
}

// UnmarshalCommitment decodes a compressed G1 point.
func (s *Scheme) UnmarshalCommitment(data []byte) (commitment.Commitment, error) {
	var c Commitment
	if _, err := c.point.SetBytes(data); err != nil {
		return nil, fmt.Errorf("pedersen: decoding commitment: %w", err)
	}
	return c, nil
}

// ipaProof is the wire form of a batched opening.
type ipaProof struct {
	L     [][]byte `cbor:"1,keyasint"`
	R     [][]byte `cbor:"2,keyasint"`
	Final []byte   `cbor:"3,keyasint"`
}

// BatchOpen folds the claimed openings with a transcript challenge and runs
// one inner-product argument on the folded vector.
func (s *Scheme) BatchOpen(t *transcript.Transcript, vecs [][]fr.Element, point []fr.Element, evals []fr.Element) ([]byte, error) {
	if len(vecs) != len(evals) {
		return nil, fmt.Errorf("pedersen: %d vectors for %d evaluations", len(vecs), len(evals))
	}
	n := 1 << len(point)
	if n > len(s.setup.g) {
		return nil, ErrSetupTooSmall
	}

	gamma := t.ChallengeScalar("pcs.batch")

	// v = sum_i gamma^i vecs[i], zero-padded
	v := make([]fr.Element, n)
	var pow, tmp fr.Element
	pow.SetOne()
	for i := range vecs {
		if len(vecs[i]) > n {
			return nil, fmt.Errorf("pedersen: vector %d longer than hypercube", i)
		}
		for j := range vecs[i] {
			tmp.Mul(&vecs[i][j], &pow)
			v[j].Add(&v[j], &tmp)
		}
		pow.Mul(&pow, &gamma)
	}

	// e = sum_i gamma^i evals[i]
	var e fr.Element
	pow.SetOne()
	for i := range evals {
		tmp.Mul(&evals[i], &pow)
		e.Add(&e, &tmp)
		pow.Mul(&pow, &gamma)
	}

	a := mle.EvalVector(point)

	proof, err := s.prove(t, v, a, e)
	if err != nil {
		return nil, err
	}
	em, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		return nil, err
	}
	return em.Marshal(proof)
}

// VerifyBatchOpening replays the batching fold on the commitments and claimed
// evaluations and checks the inner-product argument.
func (s *Scheme) VerifyBatchOpening(t *transcript.Transcript, proofData []byte, comms []commitment.Commitment, point []fr.Element, evals []fr.Element) error {
	if len(comms) != len(evals) {
		return ErrOpeningVerification
	}
	n := 1 << len(point)
	if n > len(s.setup.g) {
		return ErrSetupTooSmall
	}

	gamma := t.ChallengeScalar("pcs.batch")

	// fold commitments and evaluations with powers of gamma
	var folded bn254.G1Jac
	var pow, e, tmp fr.Element
	var bi big.Int
	pow.SetOne()
	for i := range comms {
		pc, ok := comms[i].(Commitment)
		if !ok {
			return fmt.Errorf("pedersen: foreign commitment type %T", comms[i])
		}
		var term bn254.G1Affine
		term.ScalarMultiplication(&pc.point, pow.BigInt(&bi))
		folded.AddMixed(&term)
		tmp.Mul(&evals[i], &pow)
		e.Add(&e, &tmp)
		pow.Mul(&pow, &gamma)
	}
	var c bn254.G1Affine
	c.FromJacobian(&folded)

	var proof ipaProof
	if err := cbor.Unmarshal(proofData, &proof); err != nil {
		return fmt.Errorf("pedersen: decoding opening proof: %w", err)
	}

	a := mle.EvalVector(point)
	if err := s.verify(t, &proof, c, a, e); err != nil {
		return err
	}
	return nil
}

// prove runs the inner-product argument for the claim <v, a> = e.
func (s *Scheme) prove(t *transcript.Transcript, v, a []fr.Element, e fr.Element) (*ipaProof, error) {
	n := len(v)
	t.AppendScalars("pcs.eval", e)

	x := t.ChallengeScalar("pcs.q")
	var q bn254.G1Affine
	var bi big.Int
	q.ScalarMultiplication(&s.setup.h, x.BigInt(&bi))

	g := append([]bn254.G1Affine{}, s.setup.g[:n]...)
	v = append([]fr.Element{}, v...)
	a = append([]fr.Element{}, a...)

	proof := &ipaProof{}
	for len(v) > 1 {
		half := len(v) / 2
		vLo, vHi := v[:half], v[half:]
		aLo, aHi := a[:half], a[half:]
		gLo, gHi := g[:half], g[half:]

		l, err := crossTerm(gHi, vLo, aHi, q)
		if err != nil {
			return nil, err
		}
		r, err := crossTerm(gLo, vHi, aLo, q)
		if err != nil {
			return nil, err
		}
		lb, rb := l.Bytes(), r.Bytes()
		proof.L = append(proof.L, lb[:])
		proof.R = append(proof.R, rb[:])
		t.Append("pcs.L", lb[:])
		t.Append("pcs.R", rb[:])

		u := t.ChallengeScalar("pcs.u")
		var uInv fr.Element
		uInv.Inverse(&u)

		// v' = vLo + u*vHi ; a' = aLo + uInv*aHi ; g' = gLo + uInv*gHi
		var tmp fr.Element
		for i := 0; i < half; i++ {
			tmp.Mul(&vHi[i], &u)
			vLo[i].Add(&vLo[i], &tmp)
			tmp.Mul(&aHi[i], &uInv)
			aLo[i].Add(&aLo[i], &tmp)
			var gh bn254.G1Affine
			gh.ScalarMultiplication(&gHi[i], uInv.BigInt(&bi))
			gLo[i].Add(&gLo[i], &gh)
		}
		v, a, g = vLo, aLo, gLo
	}

	fb := v[0].Bytes()
	proof.Final = fb[:]
	t.AppendScalars("pcs.final", v[0])
	return proof, nil
}

// verify checks the inner-product argument against folded commitment c,
// evaluation vector a and claimed value e.
func (s *Scheme) verify(t *transcript.Transcript, proof *ipaProof, c bn254.G1Affine, a []fr.Element, e fr.Element) error {
	n := len(a)
	rounds := 0
	for 1<<rounds < n {
		rounds++
	}
	if len(proof.L) != rounds || len(proof.R) != rounds {
		return ErrOpeningVerification
	}

	t.AppendScalars("pcs.eval", e)
	x := t.ChallengeScalar("pcs.q")
	var q bn254.G1Affine
	var bi big.Int
	q.ScalarMultiplication(&s.setup.h, x.BigInt(&bi))

	// P = C + e*Q
	var p bn254.G1Jac
	p.FromAffine(&c)
	var qe bn254.G1Affine
	qe.ScalarMultiplication(&q, e.BigInt(&bi))
	p.AddMixed(&qe)

	us := make([]fr.Element, rounds)
	uInvs := make([]fr.Element, rounds)
	ls := make([]bn254.G1Affine, rounds)
	rs := make([]bn254.G1Affine, rounds)
	for j := 0; j < rounds; j++ {
		if _, err := ls[j].SetBytes(proof.L[j]); err != nil {
			return fmt.Errorf("pedersen: decoding L[%d]: %w", j, err)
		}
		if _, err := rs[j].SetBytes(proof.R[j]); err != nil {
			return fmt.Errorf("pedersen: decoding R[%d]: %w", j, err)
		}
		t.Append("pcs.L", proof.L[j])
		t.Append("pcs.R", proof.R[j])
		us[j] = t.ChallengeScalar("pcs.u")
		if us[j].IsZero() {
			return ErrOpeningVerification
		}
		uInvs[j].Inverse(&us[j])
	}

	// P* = P + sum_j uInv_j*L_j + u_j*R_j
	for j := 0; j < rounds; j++ {
		var lt, rt bn254.G1Affine
		lt.ScalarMultiplication(&ls[j], uInvs[j].BigInt(&bi))
		rt.ScalarMultiplication(&rs[j], us[j].BigInt(&bi))
		p.AddMixed(&lt)
		p.AddMixed(&rt)
	}

	// folded generator: G* = sum_i s_i G_i with
	// s_i = prod_j uInv_j^{bit_{rounds-1-j}(i)}
	coeffs := make([]fr.Element, n)
	for i := range coeffs {
		coeffs[i].SetOne()
		for j := 0; j < rounds; j++ {
			if i&(1<<(rounds-1-j)) != 0 {
				coeffs[i].Mul(&coeffs[i], &uInvs[j])
			}
		}
	}
	var gStar bn254.G1Affine
	if _, err := gStar.MultiExp(s.setup.g[:n], coeffs, ecc.MultiExpConfig{}); err != nil {
		return fmt.Errorf("pedersen: msm: %w", err)
	}

	// folded evaluation vector: a* = <a, s'> with s'_i using u in place of 1
	aStar := foldScalars(a, uInvs)

	var final fr.Element
	final.SetBytes(proof.Final)
	t.AppendScalars("pcs.final", final)

	// expected = final*G* + final*a**Q
	var expected bn254.G1Jac
	var gf, qf bn254.G1Affine
	gf.ScalarMultiplication(&gStar, final.BigInt(&bi))
	var fa fr.Element
	fa.Mul(&final, &aStar)
	qf.ScalarMultiplication(&q, fa.BigInt(&bi))
	expected.FromAffine(&gf)
	expected.AddMixed(&qf)

	if !p.Equal(&expected) {
		return ErrOpeningVerification
	}
	return nil
}

// foldScalars folds a as the prover does: each round a' = aLo + uInv*aHi.
func foldScalars(a []fr.Element, uInvs []fr.Element) fr.Element {
	cur := append([]fr.Element{}, a...)
	for _, uInv := range uInvs {
		half := len(cur) / 2
		var tmp fr.Element
		for i := 0; i < half; i++ {
			tmp.Mul(&cur[half+i], &uInv)
			cur[i].Add(&cur[i], &tmp)
		}
		cur = cur[:half]
	}
	return cur[0]
}

func crossTerm(g []bn254.G1Affine, v []fr.Element, a []fr.Element, q bn254.G1Affine) (bn254.G1Affine, error) {
	var res bn254.G1Affine
	if _, err := res.MultiExp(g, v, ecc.MultiExpConfig{}); err != nil {
		return res, err
	}
	ip := mle.InnerProduct(v, a)
	var bi big.Int
	var qt bn254.G1Affine
	qt.ScalarMultiplication(&q, ip.BigInt(&bi))
	res.Add(&res, &qt)
	return res, nil
}
