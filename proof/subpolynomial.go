package proof

import (
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
)

// MaxMultiplicands bounds the number of multilinear factors in a single
// product term. Together with the entrywise selector this caps the round
// polynomial degree at MaxMultiplicands+1.
const MaxMultiplicands = 3

// SumcheckDegree is the degree bound of every aggregated round polynomial.
const SumcheckDegree = MaxMultiplicands + 1

// SubpolynomialKind distinguishes the two constraint shapes the gadgets emit.
type SubpolynomialKind uint8

const (
	// Identity constraints must vanish on every row of the hypercube. The
	// aggregator multiplies them by a random entrywise selector before
	// summing.
	Identity SubpolynomialKind = iota
	// ZeroSum constraints must sum to zero over the hypercube.
	ZeroSum
)

// ProductTerm is one coefficient-weighted product of multilinear vectors on
// the prover side. Multiplicand slices are referenced, not copied; they may be
// shorter than the padded hypercube size and are zero-extended at aggregation
// time.
type ProductTerm struct {
	Coefficient   fr.Element
	Multiplicands [][]fr.Element
}

// Subpolynomial is one constraint as collected by the final round builder.
type Subpolynomial struct {
	Kind  SubpolynomialKind
	Terms []ProductTerm
}

// EvalTerm mirrors ProductTerm on the verifier side: each multiplicand is the
// claimed evaluation of the corresponding vector at the sumcheck point.
type EvalTerm struct {
	Coefficient   fr.Element
	Multiplicands []fr.Element
}

// NewTerm builds a product term with a small-integer coefficient.
func NewTerm(coeff int64, multiplicands ...[]fr.Element) ProductTerm {
	var c fr.Element
	c.SetInt64(coeff)
	return ProductTerm{Coefficient: c, Multiplicands: multiplicands}
}

// NewTermScalar builds a product term with an arbitrary field coefficient.
func NewTermScalar(coeff fr.Element, multiplicands ...[]fr.Element) ProductTerm {
	return ProductTerm{Coefficient: coeff, Multiplicands: multiplicands}
}

// NewEvalTerm builds a verifier-side term with a small-integer coefficient.
func NewEvalTerm(coeff int64, evals ...fr.Element) EvalTerm {
	var c fr.Element
	c.SetInt64(coeff)
	return EvalTerm{Coefficient: c, Multiplicands: evals}
}

// NewEvalTermScalar builds a verifier-side term with a field coefficient.
func NewEvalTermScalar(coeff fr.Element, evals ...fr.Element) EvalTerm {
	return EvalTerm{Coefficient: coeff, Multiplicands: evals}
}
