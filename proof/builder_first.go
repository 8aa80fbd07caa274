package proof

import (
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
)

// FirstRoundBuilder collects everything a plan produces before any
// post-result challenge exists: result-dependent multilinear vectors, the
// auxiliary length declarations the verifier cannot derive on its own, and
// the number of post-result challenges the final round will consume.
type FirstRoundBuilder struct {
	mles               [][]fr.Element
	chiLengths         []int
	postChallengeCount int
	rangeLength        int
}

// NewFirstRoundBuilder starts a first round over tables of at most
// initialRange rows.
func NewFirstRoundBuilder(initialRange int) *FirstRoundBuilder {
	return &FirstRoundBuilder{rangeLength: initialRange}
}

// ProduceIntermediateMLE registers a result-dependent vector. It will be
// committed and absorbed into the transcript before any challenge is drawn,
// and opened at the sumcheck point.
func (b *FirstRoundBuilder) ProduceIntermediateMLE(v []fr.Element) {
	b.mles = append(b.mles, v)
	b.UpdateRangeLength(len(v))
}

// ProduceChiEvaluationLength declares an auxiliary table length, such as a
// filter's output row count, that only the prover knows. The declaration is
// absorbed into the transcript and echoed to the verifier in walk order.
func (b *FirstRoundBuilder) ProduceChiEvaluationLength(n int) {
	b.chiLengths = append(b.chiLengths, n)
	b.UpdateRangeLength(n)
}

// RequestPostResultChallenges reserves n challenges to be drawn after the
// first round commitments are absorbed. The final round must consume exactly
// the reserved total.
func (b *FirstRoundBuilder) RequestPostResultChallenges(n int) {
	b.postChallengeCount += n
}

// UpdateRangeLength grows the proving range to cover at least n rows.
func (b *FirstRoundBuilder) UpdateRangeLength(n int) {
	if n > b.rangeLength {
		b.rangeLength = n
	}
}

// MLEs returns the produced vectors in production order.
func (b *FirstRoundBuilder) MLEs() [][]fr.Element { return b.mles }

// ChiEvaluationLengths returns the declared lengths in declaration order.
func (b *FirstRoundBuilder) ChiEvaluationLengths() []int { return b.chiLengths }

// PostChallengeCount returns the total number of reserved challenges.
func (b *FirstRoundBuilder) PostChallengeCount() int { return b.postChallengeCount }

// RangeLength returns the number of rows the hypercube must cover.
func (b *FirstRoundBuilder) RangeLength() int { return b.rangeLength }
