package proof

import (
	"fmt"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
)

var pow2Table [signedBits]fr.Element

func init() {
	pow2Table[0].SetOne()
	for i := 1; i < signedBits; i++ {
		pow2Table[i].Double(&pow2Table[i-1])
	}
}

// SignResult carries the prover-side outcome of the sign gadget. IsNegative
// is the per-row negativity vector. SignBit is the committed sign bit column
// when the sign varies across rows, nil otherwise.
type SignResult struct {
	IsNegative       []fr.Element
	SignBit          []fr.Element
	ConstantNegative bool
}

// SignEval is the verifier-side counterpart of SignResult.
type SignEval struct {
	IsNegative       fr.Element
	SignBit          *fr.Element
	ConstantNegative bool
}

// ProveSign establishes the sign of every row of a column. The gadget works
// on w = 2*value + chi rather than the value itself: w is odd on live rows,
// so it is never zero there and the sign of zero resolves to nonnegative. It
// decomposes w into a sign bit s and magnitude bits, commits the varying bit
// columns with booleanity constraints, and emits the reconstruction identity
// (2s-1)*magnitude = w. The chi vector is the row indicator of the column's
// table.
//
// Magnitudes must stay below 2^252; columns reaching further cannot be
// proven, which is a setup error, not a verification failure.
func ProveSign(b *FinalRoundBuilder, values, chi []fr.Element) (SignResult, error) {
	n := len(values)
	w := make([]fr.Element, n)
	for j := 0; j < n; j++ {
		w[j].Double(&values[j])
		if j < len(chi) {
			w[j].Add(&w[j], &chi[j])
		}
	}

	bd := ComputeBitDistribution(w)
	b.ProduceBitDistribution(bd)
	if !bd.IsWithinAcceptableRange() {
		return SignResult{}, ErrOutOfRange
	}

	varying := bd.VaryingBitIndices()

	encodings := make([]*big.Int, n)
	for j := 0; j < n; j++ {
		encodings[j] = signMagUint(&w[j])
	}

	one := fr.One()
	bitCols := make(map[uint][]fr.Element, len(varying))
	for _, i := range varying {
		col := make([]fr.Element, n)
		for j := 0; j < n; j++ {
			if encodings[j].Bit(int(i)) == 1 {
				col[j] = one
			}
		}
		bitCols[i] = col
		b.ProduceIntermediateMLE(col)
		b.ProduceSumcheckSubpolynomial(Identity, []ProductTerm{
			NewTerm(1, col, col),
			NewTerm(-1, col),
		})
	}

	constMag := bd.ConstantMagnitude()
	if len(varying) > 0 {
		terms := make([]ProductTerm, 0, 2*len(varying)+4)
		if bd.SignBitVaries() {
			sign := bitCols[signBitIndex]
			for _, i := range varying {
				if i == signBitIndex {
					continue
				}
				var neg fr.Element
				neg.Neg(&pow2Table[i])
				terms = append(terms,
					NewTermScalar(pow2Table[i+1], sign, bitCols[i]),
					NewTermScalar(neg, bitCols[i]),
				)
			}
			var twoConst, negConst fr.Element
			twoConst.Double(&constMag)
			negConst.Neg(&constMag)
			terms = append(terms,
				NewTermScalar(twoConst, sign),
				NewTermScalar(negConst, chi),
			)
		} else {
			neg := bd.ConstantNegative()
			for _, i := range varying {
				coeff := pow2Table[i]
				if neg {
					coeff.Neg(&coeff)
				}
				terms = append(terms, NewTermScalar(coeff, bitCols[i]))
			}
			coeff := constMag
			if neg {
				coeff.Neg(&coeff)
			}
			terms = append(terms, NewTermScalar(coeff, chi))
		}
		terms = append(terms,
			NewTerm(-2, values),
			NewTerm(-1, chi),
		)
		b.ProduceSumcheckSubpolynomial(Identity, terms)
	}

	res := SignResult{}
	if bd.SignBitVaries() {
		sign := bitCols[signBitIndex]
		res.SignBit = sign
		res.IsNegative = make([]fr.Element, n)
		for j := 0; j < n; j++ {
			if j < len(chi) {
				res.IsNegative[j].Sub(&chi[j], &sign[j])
			}
		}
	} else {
		res.ConstantNegative = bd.ConstantNegative()
		res.IsNegative = make([]fr.Element, n)
		if res.ConstantNegative {
			copy(res.IsNegative, chi)
		}
	}
	return res, nil
}

// VerifySign replays ProveSign against the claimed evaluations: it consumes
// the committed bit distribution and bit columns, re-emits the booleanity and
// reconstruction constraints, and derives the negativity evaluation. When no
// bit varies the column is constant and checked directly.
func VerifySign(b *VerificationBuilder, valueEval, chiEval fr.Element) (SignEval, error) {
	bd := b.ConsumeBitDistribution()
	if b.Invalid() {
		return SignEval{}, fmt.Errorf("%w: missing bit distribution", ErrVerification)
	}
	if !bd.IsWithinAcceptableRange() {
		return SignEval{}, fmt.Errorf("%w: bit distribution out of range", ErrVerification)
	}

	varying := bd.VaryingBitIndices()
	bitEvals := make(map[uint]fr.Element, len(varying))
	for _, i := range varying {
		e := b.ConsumeFinalRoundMLE()
		bitEvals[i] = e
		b.ProduceSumcheckSubpolynomial(Identity, []EvalTerm{
			NewEvalTerm(1, e, e),
			NewEvalTerm(-1, e),
		})
	}

	constMag := bd.ConstantMagnitude()
	if len(varying) > 0 {
		terms := make([]EvalTerm, 0, 2*len(varying)+4)
		if bd.SignBitVaries() {
			sign := bitEvals[signBitIndex]
			for _, i := range varying {
				if i == signBitIndex {
					continue
				}
				var neg fr.Element
				neg.Neg(&pow2Table[i])
				terms = append(terms,
					NewEvalTermScalar(pow2Table[i+1], sign, bitEvals[i]),
					NewEvalTermScalar(neg, bitEvals[i]),
				)
			}
			var twoConst, negConst fr.Element
			twoConst.Double(&constMag)
			negConst.Neg(&constMag)
			terms = append(terms,
				NewEvalTermScalar(twoConst, sign),
				NewEvalTermScalar(negConst, chiEval),
			)
		} else {
			neg := bd.ConstantNegative()
			for _, i := range varying {
				coeff := pow2Table[i]
				if neg {
					coeff.Neg(&coeff)
				}
				terms = append(terms, NewEvalTermScalar(coeff, bitEvals[i]))
			}
			coeff := constMag
			if neg {
				coeff.Neg(&coeff)
			}
			terms = append(terms, NewEvalTermScalar(coeff, chiEval))
		}
		terms = append(terms,
			NewEvalTerm(-2, valueEval),
			NewEvalTerm(-1, chiEval),
		)
		b.ProduceSumcheckSubpolynomial(Identity, terms)
	} else {
		var w, want fr.Element
		w.Double(&valueEval)
		w.Add(&w, &chiEval)
		want.Mul(&constMag, &chiEval)
		if bd.ConstantNegative() {
			want.Neg(&want)
		}
		if !want.Equal(&w) {
			return SignEval{}, fmt.Errorf("%w: constant column evaluation mismatch", ErrVerification)
		}
	}

	res := SignEval{}
	if bd.SignBitVaries() {
		sign := bitEvals[signBitIndex]
		res.SignBit = &sign
		res.IsNegative.Sub(&chiEval, &sign)
	} else {
		res.ConstantNegative = bd.ConstantNegative()
		if res.ConstantNegative {
			res.IsNegative = chiEval
		}
	}
	return res, nil
}
