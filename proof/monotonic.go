package proof

import (
	"fmt"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
)

func orderName(strict, descending bool) string {
	switch {
	case strict && !descending:
		return "strictly increasing"
	case strict && descending:
		return "strictly decreasing"
	case descending:
		return "nonincreasing"
	}
	return "nondecreasing"
}

// ProveMonotonic proves that a column of n rows is ordered under signed
// comparison; strict orders in particular make the values distinct. The
// caller supplies the shifted copy built by ShiftColumn and already
// registered as a first round MLE. The consecutive difference is oriented so
// that strict orders require a cleared sign bit on the interior rows and
// non-strict ones a set bit; the two boundary rows carry arbitrary signs and
// are excluded by the interior indicator.
func ProveMonotonic(b *FinalRoundBuilder, alpha, beta fr.Element, column, shifted, chi []fr.Element, strict, descending bool) error {
	n := len(column)
	ProveShiftConstraints(b, alpha, beta, column, shifted, chi)

	// diff_j over n+1 rows, with column padded by zero. prev-cur for strict
	// ascending and non-strict descending, cur-prev otherwise.
	prevMinusCur := strict != descending
	diff := make([]fr.Element, n+1)
	for j := 0; j <= n; j++ {
		diff[j] = shifted[j]
		if j < n {
			diff[j].Sub(&diff[j], &column[j])
		}
		if !prevMinusCur {
			diff[j].Neg(&diff[j])
		}
	}
	one := fr.One()
	chiPlus := make([]fr.Element, n+1)
	for j := range chiPlus {
		chiPlus[j] = one
	}
	sign, err := ProveSign(b, diff, chiPlus)
	if err != nil {
		return err
	}

	if sign.SignBit != nil {
		// Interior rows 1..n-1.
		interior := make([]fr.Element, n)
		for j := 1; j < n; j++ {
			interior[j] = one
		}
		if strict {
			b.ProduceSumcheckSubpolynomial(Identity, []ProductTerm{
				NewTerm(1, interior, sign.SignBit),
			})
		} else {
			b.ProduceSumcheckSubpolynomial(Identity, []ProductTerm{
				NewTerm(1, interior),
				NewTerm(-1, interior, sign.SignBit),
			})
		}
	} else if n >= 2 && sign.ConstantNegative != strict {
		return fmt.Errorf("column is not %s", orderName(strict, descending))
	}
	return nil
}

// VerifyMonotonic mirrors ProveMonotonic.
func VerifyMonotonic(b *VerificationBuilder, alpha, beta fr.Element, columnEval, shiftedEval fr.Element, n int, strict, descending bool) error {
	VerifyShiftConstraints(b, alpha, beta, columnEval, shiftedEval, n)

	var diffEval fr.Element
	diffEval.Sub(&shiftedEval, &columnEval)
	if strict == descending {
		diffEval.Neg(&diffEval)
	}
	sign, err := VerifySign(b, diffEval, b.ChiEvaluation(n+1))
	if err != nil {
		return err
	}

	if sign.SignBit != nil {
		var interior fr.Element
		chiN := b.ChiEvaluation(n)
		chi1 := b.ChiEvaluation(1)
		interior.Sub(&chiN, &chi1)
		if strict {
			b.ProduceSumcheckSubpolynomial(Identity, []EvalTerm{
				NewEvalTerm(1, interior, *sign.SignBit),
			})
		} else {
			b.ProduceSumcheckSubpolynomial(Identity, []EvalTerm{
				NewEvalTerm(1, interior),
				NewEvalTerm(-1, interior, *sign.SignBit),
			})
		}
	} else if n >= 2 && sign.ConstantNegative != strict {
		return fmt.Errorf("%w: column not proven %s", ErrVerification, orderName(strict, descending))
	}
	return nil
}

// ProveStrictlyIncreasing proves that a column of n rows is strictly
// ascending under signed comparison.
func ProveStrictlyIncreasing(b *FinalRoundBuilder, alpha, beta fr.Element, column, shifted, chi []fr.Element) error {
	return ProveMonotonic(b, alpha, beta, column, shifted, chi, true, false)
}

// VerifyStrictlyIncreasing mirrors ProveStrictlyIncreasing.
func VerifyStrictlyIncreasing(b *VerificationBuilder, alpha, beta fr.Element, columnEval, shiftedEval fr.Element, n int) error {
	return VerifyMonotonic(b, alpha, beta, columnEval, shiftedEval, n, true, false)
}
