package proof

import (
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/verisql/verisql/mle"
)

// ProvePermutation proves that the permuted column set is the source column
// set reordered by the committed index column sigma: each source row is
// paired with its position, each permuted row with its claimed source index,
// and the two tagged multisets are compared. Equality forces sigma to hit
// every position exactly once and the permuted values to match the source at
// those positions. Sigma and the permuted columns must be committed before
// alpha and beta are drawn.
func ProvePermutation(b *FinalRoundBuilder, alpha, beta fr.Element, columns, permuted [][]fr.Element, sigma, chi []fr.Element, n int) {
	rho := mle.RhoColumn(n)

	srcCols := append(append([][]fr.Element{}, columns...), rho)
	srcStar := ProveStar(b, alpha, FoldColumns(beta, srcCols, n), chi)

	dstCols := append(append([][]fr.Element{}, permuted...), sigma)
	dstStar := ProveStar(b, alpha, FoldColumns(beta, dstCols, n), chi)

	b.ProduceSumcheckSubpolynomial(ZeroSum, []ProductTerm{
		NewTerm(1, srcStar),
		NewTerm(-1, dstStar),
	})
}

// VerifyPermutation mirrors ProvePermutation.
func VerifyPermutation(b *VerificationBuilder, alpha, beta fr.Element, columnEvals, permutedEvals []fr.Element, sigmaEval fr.Element, n int) {
	chiN := b.ChiEvaluation(n)
	rhoN := b.RhoEvaluation(n)

	srcFold := FoldEvals(beta, append(append([]fr.Element{}, columnEvals...), rhoN)...)
	srcStar := VerifyStar(b, alpha, srcFold, chiN)

	dstFold := FoldEvals(beta, append(append([]fr.Element{}, permutedEvals...), sigmaEval)...)
	dstStar := VerifyStar(b, alpha, dstFold, chiN)

	b.ProduceSumcheckSubpolynomial(ZeroSum, []EvalTerm{
		NewEvalTerm(1, srcStar),
		NewEvalTerm(-1, dstStar),
	})
}
