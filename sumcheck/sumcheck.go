// Package sumcheck implements the interactive sumcheck argument for composite
// polynomials expressed as sums of products of multilinear extensions.
//
// The prover reduces a claimed sum over the Boolean hypercube to a single
// evaluation of the composite at a random point, one transcript challenge per
// hypercube dimension. The verifier checks each round's univariate against the
// running claim and hands back a Subclaim: the final point and the evaluation
// the composite must take there, to be discharged by commitment openings.
package sumcheck

import (
	"errors"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
)

// ErrVerification signals a failed round check. It rejects the whole proof.
var ErrVerification = errors.New("sumcheck: verification failed")

// Term is one product of shared MLEs scaled by a coefficient.
type Term struct {
	Coefficient   fr.Element
	Multiplicands []int // indexes into Polynomial.MLEs
}

// Polynomial is a weighted sum of products of MLEs, all of length 2^nv.
type Polynomial struct {
	MLEs  [][]fr.Element
	Terms []Term
}

// Proof carries the per-round univariate polynomials as evaluations at
// 0..degree.
type Proof struct {
	RoundEvaluations [][]fr.Element
}

// Subclaim is the residual obligation after all rounds: the composite must
// evaluate to ExpectedEvaluation at Point (little-endian variable order).
type Subclaim struct {
	Point              []fr.Element
	ExpectedEvaluation fr.Element
}

// interpolate evaluates at x the unique degree-d polynomial through
// (i, evals[i]) for i = 0..d, by Lagrange interpolation over the integer
// nodes with batch-inverted denominators.
func interpolate(evals []fr.Element, x fr.Element) fr.Element {
	d := len(evals) - 1
	if d == 0 {
		return evals[0]
	}

	// pre[i] = prod_{j<i} (x-j), suf[i] = prod_{j>i} (x-j)
	pre := make([]fr.Element, d+1)
	suf := make([]fr.Element, d+1)
	var node, diff fr.Element
	pre[0].SetOne()
	for i := 1; i <= d; i++ {
		node.SetUint64(uint64(i - 1))
		diff.Sub(&x, &node)
		pre[i].Mul(&pre[i-1], &diff)
	}
	suf[d].SetOne()
	for i := d - 1; i >= 0; i-- {
		node.SetUint64(uint64(i + 1))
		diff.Sub(&x, &node)
		suf[i].Mul(&suf[i+1], &diff)
	}

	// den[i] = i! * (d-i)! * (-1)^(d-i)
	den := make([]fr.Element, d+1)
	var fact fr.Element
	fact.SetOne()
	facts := make([]fr.Element, d+1)
	facts[0].SetOne()
	for i := 1; i <= d; i++ {
		node.SetUint64(uint64(i))
		fact.Mul(&fact, &node)
		facts[i] = fact
	}
	for i := 0; i <= d; i++ {
		den[i].Mul(&facts[i], &facts[d-i])
		if (d-i)%2 == 1 {
			den[i].Neg(&den[i])
		}
	}
	inv := fr.BatchInvert(den)

	var res, term fr.Element
	for i := 0; i <= d; i++ {
		term.Mul(&pre[i], &suf[i])
		term.Mul(&term, &inv[i])
		term.Mul(&term, &evals[i])
		res.Add(&res, &term)
	}
	return res
}
