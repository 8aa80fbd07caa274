package proof

import (
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
)

// ProveFilterMultiset proves that the output column set is exactly the
// selected rows of the input column set as a multiset: the star sums over
// selected input rows and over output rows must cancel. The selection vector
// must separately be proven boolean by the caller.
func ProveFilterMultiset(b *FinalRoundBuilder, alpha, beta fr.Element, inCols [][]fr.Element, sel []fr.Element, outCols [][]fr.Element, chiIn, chiOut []fr.Element) {
	inStar := ProveStar(b, alpha, FoldColumns(beta, inCols, len(chiIn)), chiIn)
	outStar := ProveStar(b, alpha, FoldColumns(beta, outCols, len(chiOut)), chiOut)
	b.ProduceSumcheckSubpolynomial(ZeroSum, []ProductTerm{
		NewTerm(1, sel, inStar),
		NewTerm(-1, outStar),
	})
}

// VerifyFilterMultiset mirrors ProveFilterMultiset.
func VerifyFilterMultiset(b *VerificationBuilder, alpha, beta fr.Element, inEvals []fr.Element, selEval fr.Element, outEvals []fr.Element, chiInEval, chiOutEval fr.Element) {
	inStar := VerifyStar(b, alpha, FoldEvals(beta, inEvals...), chiInEval)
	outStar := VerifyStar(b, alpha, FoldEvals(beta, outEvals...), chiOutEval)
	b.ProduceSumcheckSubpolynomial(ZeroSum, []EvalTerm{
		NewEvalTerm(1, selEval, inStar),
		NewEvalTerm(-1, outStar),
	})
}

// ProveMultisetEquality proves that two column sets hold the same multiset of
// rows.
func ProveMultisetEquality(b *FinalRoundBuilder, alpha, beta fr.Element, aCols, bCols [][]fr.Element, chiA, chiB []fr.Element) {
	aStar := ProveStar(b, alpha, FoldColumns(beta, aCols, len(chiA)), chiA)
	bStar := ProveStar(b, alpha, FoldColumns(beta, bCols, len(chiB)), chiB)
	b.ProduceSumcheckSubpolynomial(ZeroSum, []ProductTerm{
		NewTerm(1, aStar),
		NewTerm(-1, bStar),
	})
}

// VerifyMultisetEquality mirrors ProveMultisetEquality.
func VerifyMultisetEquality(b *VerificationBuilder, alpha, beta fr.Element, aEvals, bEvals []fr.Element, chiAEval, chiBEval fr.Element) {
	aStar := VerifyStar(b, alpha, FoldEvals(beta, aEvals...), chiAEval)
	bStar := VerifyStar(b, alpha, FoldEvals(beta, bEvals...), chiBEval)
	b.ProduceSumcheckSubpolynomial(ZeroSum, []EvalTerm{
		NewEvalTerm(1, aStar),
		NewEvalTerm(-1, bStar),
	})
}
