package proof

import (
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/verisql/verisql/mle"
)

// VerificationBuilder mirrors the two prover builders on the verifier side.
// Each prover production becomes a consumption here, in the same walk order.
// A malformed proof can exhaust a queue mid-walk; that sets a sticky invalid
// flag instead of panicking, and the orchestrator turns the flag into
// ErrVerification.
type VerificationBuilder struct {
	point  []fr.Element
	eqEval fr.Element

	firstRoundEvals []fr.Element
	finalRoundEvals []fr.Element
	chiLengths      []int
	postChallenges  []fr.Element
	multipliers     []fr.Element
	bitDists        []BitDistribution

	frIdx, fnIdx, chiIdx, pcIdx, multIdx, bdIdx int

	aggregate fr.Element
	invalid   bool
}

// NewVerificationBuilder wires the proof's claimed values to the sumcheck
// point. eqEval is the entrywise selector evaluated at the point.
func NewVerificationBuilder(
	point []fr.Element,
	eqEval fr.Element,
	firstRoundEvals, finalRoundEvals []fr.Element,
	chiLengths []int,
	postChallenges, multipliers []fr.Element,
	bitDists []BitDistribution,
) *VerificationBuilder {
	return &VerificationBuilder{
		point:           point,
		eqEval:          eqEval,
		firstRoundEvals: firstRoundEvals,
		finalRoundEvals: finalRoundEvals,
		chiLengths:      chiLengths,
		postChallenges:  postChallenges,
		multipliers:     multipliers,
		bitDists:        bitDists,
	}
}

// Point returns the sumcheck evaluation point.
func (b *VerificationBuilder) Point() []fr.Element { return b.point }

// ConsumeFirstRoundMLE pops the next claimed first round evaluation.
func (b *VerificationBuilder) ConsumeFirstRoundMLE() fr.Element {
	if b.frIdx >= len(b.firstRoundEvals) {
		b.invalid = true
		return fr.Element{}
	}
	e := b.firstRoundEvals[b.frIdx]
	b.frIdx++
	return e
}

// ConsumeFinalRoundMLE pops the next claimed final round evaluation.
func (b *VerificationBuilder) ConsumeFinalRoundMLE() fr.Element {
	if b.fnIdx >= len(b.finalRoundEvals) {
		b.invalid = true
		return fr.Element{}
	}
	e := b.finalRoundEvals[b.fnIdx]
	b.fnIdx++
	return e
}

// ConsumeChiEvaluation pops the next declared auxiliary length and returns
// its indicator evaluation at the sumcheck point along with the length.
func (b *VerificationBuilder) ConsumeChiEvaluation() (fr.Element, int) {
	if b.chiIdx >= len(b.chiLengths) {
		b.invalid = true
		return fr.Element{}, 0
	}
	n := b.chiLengths[b.chiIdx]
	b.chiIdx++
	return mle.ChiEval(n, b.point), n
}

// ChiEvaluation evaluates the length-n indicator at the sumcheck point for a
// length the verifier already knows.
func (b *VerificationBuilder) ChiEvaluation(n int) fr.Element {
	return mle.ChiEval(n, b.point)
}

// RhoEvaluation evaluates the row-index vector restricted to n rows at the
// sumcheck point.
func (b *VerificationBuilder) RhoEvaluation(n int) fr.Element {
	return mle.RhoEval(n, b.point)
}

// PostResultChallenge pops the next post-result challenge.
func (b *VerificationBuilder) PostResultChallenge() fr.Element {
	if b.pcIdx >= len(b.postChallenges) {
		b.invalid = true
		return fr.Element{}
	}
	c := b.postChallenges[b.pcIdx]
	b.pcIdx++
	return c
}

// ConsumeBitDistribution pops the next committed bit distribution.
func (b *VerificationBuilder) ConsumeBitDistribution() BitDistribution {
	if b.bdIdx >= len(b.bitDists) {
		b.invalid = true
		return BitDistribution{}
	}
	bd := b.bitDists[b.bdIdx]
	b.bdIdx++
	return bd
}

// ProduceSumcheckSubpolynomial folds one constraint's claimed evaluation into
// the aggregate, weighted by the next transcript multiplier. Identity
// constraints additionally pick up the entrywise selector.
func (b *VerificationBuilder) ProduceSumcheckSubpolynomial(kind SubpolynomialKind, terms []EvalTerm) {
	if b.multIdx >= len(b.multipliers) {
		b.invalid = true
		return
	}
	lambda := b.multipliers[b.multIdx]
	b.multIdx++

	var sum fr.Element
	for _, t := range terms {
		v := t.Coefficient
		for i := range t.Multiplicands {
			v.Mul(&v, &t.Multiplicands[i])
		}
		sum.Add(&sum, &v)
	}
	if kind == Identity {
		sum.Mul(&sum, &b.eqEval)
	}
	sum.Mul(&sum, &lambda)
	b.aggregate.Add(&b.aggregate, &sum)
}

// Aggregate returns the accumulated sumcheck evaluation claim.
func (b *VerificationBuilder) Aggregate() fr.Element { return b.aggregate }

// Invalid reports whether any queue was exhausted during the walk.
func (b *VerificationBuilder) Invalid() bool { return b.invalid }

// FullyConsumed reports whether the walk consumed every claimed value; a
// proof carrying extra material is rejected.
func (b *VerificationBuilder) FullyConsumed() bool {
	return b.frIdx == len(b.firstRoundEvals) &&
		b.fnIdx == len(b.finalRoundEvals) &&
		b.chiIdx == len(b.chiLengths) &&
		b.pcIdx == len(b.postChallenges) &&
		b.multIdx == len(b.multipliers) &&
		b.bdIdx == len(b.bitDists)
}
