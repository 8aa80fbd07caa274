package proof

import (
	"fmt"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
)

// FinalRoundBuilder collects the second prover phase: vectors that may depend
// on post-result challenges, the sumcheck constraints, and the bit
// distributions of sign-gadget operands. Post-result challenges are dispensed
// from the pre-drawn pool; drawing past the reserved count is a structural
// bug in the plan, not a proof failure, and panics.
type FinalRoundBuilder struct {
	mles             [][]fr.Element
	subpolynomials   []Subpolynomial
	bitDistributions []BitDistribution

	postChallenges []fr.Element
	consumed       int
}

// NewFinalRoundBuilder starts a final round with the challenges drawn after
// the first round was absorbed.
func NewFinalRoundBuilder(postChallenges []fr.Element) *FinalRoundBuilder {
	return &FinalRoundBuilder{postChallenges: postChallenges}
}

// ProduceIntermediateMLE registers a challenge-dependent vector. It is
// committed after the final round completes and opened at the sumcheck point.
func (b *FinalRoundBuilder) ProduceIntermediateMLE(v []fr.Element) {
	b.mles = append(b.mles, v)
}

// ProduceSumcheckSubpolynomial registers one constraint. Terms with more than
// MaxMultiplicands factors would exceed the degree bound and panic.
func (b *FinalRoundBuilder) ProduceSumcheckSubpolynomial(kind SubpolynomialKind, terms []ProductTerm) {
	for _, t := range terms {
		if len(t.Multiplicands) > MaxMultiplicands {
			panic(fmt.Sprintf("subpolynomial term has %d multiplicands, max %d", len(t.Multiplicands), MaxMultiplicands))
		}
	}
	b.subpolynomials = append(b.subpolynomials, Subpolynomial{Kind: kind, Terms: terms})
}

// ProduceBitDistribution registers a sign-gadget bit distribution in walk
// order.
func (b *FinalRoundBuilder) ProduceBitDistribution(bd BitDistribution) {
	b.bitDistributions = append(b.bitDistributions, bd)
}

// PostResultChallenge dispenses the next reserved challenge. Exhausting the
// pool means the first round reserved fewer challenges than the final round
// consumes, which is a plan bug.
func (b *FinalRoundBuilder) PostResultChallenge() fr.Element {
	if b.consumed >= len(b.postChallenges) {
		panic("final round consumed more post-result challenges than the first round requested")
	}
	c := b.postChallenges[b.consumed]
	b.consumed++
	return c
}

// ConsumedChallenges returns how many challenges the walk has drawn.
func (b *FinalRoundBuilder) ConsumedChallenges() int { return b.consumed }

// MLEs returns the produced vectors in production order.
func (b *FinalRoundBuilder) MLEs() [][]fr.Element { return b.mles }

// Subpolynomials returns the collected constraints in production order.
func (b *FinalRoundBuilder) Subpolynomials() []Subpolynomial { return b.subpolynomials }

// BitDistributions returns the collected distributions in production order.
func (b *FinalRoundBuilder) BitDistributions() []BitDistribution { return b.bitDistributions }
