package proof

import (
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/verisql/verisql/mle"
)

// ShiftColumn builds the one-row shift of a column: a vector of n+1 rows with
// a zero first row and the source values moved down by one. The shifted copy
// must be produced as a first round MLE, before the fold challenges exist.
func ShiftColumn(column []fr.Element) []fr.Element {
	shifted := make([]fr.Element, len(column)+1)
	copy(shifted[1:], column)
	return shifted
}

// ProveShiftConstraints proves that shifted is the genuine one-row shift of
// column. Both sides are folded against their row positions, so a value can
// only move from row i to row i+1, and the resulting multisets are compared
// with a star zero-sum. Row zero of the shifted copy is excluded by the
// indicator offset and stays unconstrained.
func ProveShiftConstraints(b *FinalRoundBuilder, alpha, beta fr.Element, column, shifted, chi []fr.Element) {
	n := len(column)
	rho := mle.RhoColumn(n)

	srcFold := FoldColumns(beta, [][]fr.Element{column, rho}, n)
	srcStar := ProveStar(b, alpha, srcFold, chi)

	one := fr.One()
	dstFold := make([]fr.Element, n+1)
	dstChi := make([]fr.Element, n+1)
	for j := 0; j <= n; j++ {
		// beta*shifted_j + (j-1)
		dstFold[j].SetInt64(int64(j) - 1)
		var t fr.Element
		t.Mul(&beta, &shifted[j])
		dstFold[j].Add(&dstFold[j], &t)
		if j > 0 {
			dstChi[j] = one
		}
	}
	dstStar := ProveStar(b, alpha, dstFold, dstChi)

	b.ProduceSumcheckSubpolynomial(ZeroSum, []ProductTerm{
		NewTerm(1, srcStar),
		NewTerm(-1, dstStar),
	})
}

// VerifyShiftConstraints mirrors ProveShiftConstraints for a column of n rows
// whose length the verifier already knows or has consumed.
func VerifyShiftConstraints(b *VerificationBuilder, alpha, beta fr.Element, columnEval, shiftedEval fr.Element, n int) {
	chiN := b.ChiEvaluation(n)
	chiN1 := b.ChiEvaluation(n + 1)
	chi1 := b.ChiEvaluation(1)
	rhoN := b.RhoEvaluation(n)
	rhoN1 := b.RhoEvaluation(n + 1)

	srcFold := FoldEvals(beta, columnEval, rhoN)
	srcStar := VerifyStar(b, alpha, srcFold, chiN)

	// beta*shifted + rho - chi over n+1 rows: position j carries j-1.
	var dstFold fr.Element
	dstFold.Mul(&beta, &shiftedEval)
	dstFold.Add(&dstFold, &rhoN1)
	dstFold.Sub(&dstFold, &chiN1)

	var dstChi fr.Element
	dstChi.Sub(&chiN1, &chi1)
	dstStar := VerifyStar(b, alpha, dstFold, dstChi)

	b.ProduceSumcheckSubpolynomial(ZeroSum, []EvalTerm{
		NewEvalTerm(1, srcStar),
		NewEvalTerm(-1, dstStar),
	})
}
