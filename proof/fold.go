package proof

import (
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/verisql/verisql/internal/utils"
)

// FoldColumns collapses a column set into a single vector of n rows:
// fold_i = sum_j beta^(K-1-j) * cols[j][i]. Columns shorter than n are
// treated as zero-extended.
func FoldColumns(beta fr.Element, cols [][]fr.Element, n int) []fr.Element {
	fold := make([]fr.Element, n)
	utils.Parallelize(n, func(start, end int) {
		for i := start; i < end; i++ {
			for j := range cols {
				fold[i].Mul(&fold[i], &beta)
				if i < len(cols[j]) {
					fold[i].Add(&fold[i], &cols[j][i])
				}
			}
		}
	})
	return fold
}

// FoldEvals is the verifier-side counterpart of FoldColumns, applied to the
// claimed evaluations at the sumcheck point.
func FoldEvals(beta fr.Element, evals ...fr.Element) fr.Element {
	var fold fr.Element
	for i := range evals {
		fold.Mul(&fold, &beta)
		fold.Add(&fold, &evals[i])
	}
	return fold
}

// ProveStar produces the star vector star_i = chi_i / (1 + alpha*fold_i) and
// emits the identity star + alpha*fold*star - chi = 0 that pins it down. The
// returned vector is registered as a final round MLE.
func ProveStar(b *FinalRoundBuilder, alpha fr.Element, fold, chi []fr.Element) []fr.Element {
	n := len(fold)
	denom := make([]fr.Element, n)
	one := fr.One()
	for i := 0; i < n; i++ {
		denom[i].Mul(&alpha, &fold[i])
		denom[i].Add(&denom[i], &one)
	}
	inv := fr.BatchInvert(denom)
	star := make([]fr.Element, n)
	for i := 0; i < n; i++ {
		if i < len(chi) {
			star[i].Mul(&chi[i], &inv[i])
		}
	}
	b.ProduceIntermediateMLE(star)
	b.ProduceSumcheckSubpolynomial(Identity, []ProductTerm{
		NewTerm(1, star),
		NewTermScalar(alpha, fold, star),
		NewTerm(-1, chi),
	})
	return star
}

// VerifyStar mirrors ProveStar: it consumes the star evaluation and emits the
// matching identity against the folded evaluation.
func VerifyStar(b *VerificationBuilder, alpha, foldEval, chiEval fr.Element) fr.Element {
	starEval := b.ConsumeFinalRoundMLE()
	b.ProduceSumcheckSubpolynomial(Identity, []EvalTerm{
		NewEvalTerm(1, starEval),
		NewEvalTermScalar(alpha, foldEval, starEval),
		NewEvalTerm(-1, chiEval),
	})
	return starEval
}
