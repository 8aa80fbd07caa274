package sumcheck

import (
	"fmt"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"

	"github.com/verisql/verisql/transcript"
)

// Verify checks the round polynomials against the claimed hypercube sum,
// replaying the prover's transcript schedule. On success it returns the
// subclaim the caller must discharge: the composite polynomial evaluates to
// ExpectedEvaluation at Point.
//
// With zero variables there are no rounds and the subclaim is the original
// claim itself.
func Verify(t *transcript.Transcript, proof *Proof, claim fr.Element, nv, degree int) (*Subclaim, error) {
	if len(proof.RoundEvaluations) != nv {
		return nil, fmt.Errorf("%w: %d rounds for %d variables", ErrVerification, len(proof.RoundEvaluations), nv)
	}

	expected := claim
	point := make([]fr.Element, nv)

	for round := 0; round < nv; round++ {
		evals := proof.RoundEvaluations[round]
		if len(evals) != degree+1 {
			return nil, fmt.Errorf("%w: round %d has %d evaluations, want %d", ErrVerification, round, len(evals), degree+1)
		}

		// P(0) + P(1) must equal the running claim
		var sum fr.Element
		sum.Add(&evals[0], &evals[1])
		if !sum.Equal(&expected) {
			return nil, fmt.Errorf("%w: round %d sum mismatch", ErrVerification, round)
		}

		t.AppendScalars("sumcheck.round", evals...)
		r := t.ChallengeScalar("sumcheck.challenge")
		point[nv-1-round] = r
		expected = interpolate(evals, r)
	}

	return &Subclaim{Point: point, ExpectedEvaluation: expected}, nil
}
