package proof

import (
	"fmt"
	"math/big"

	"github.com/bits-and-blooms/bitset"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
)

// signedBits is the width of the sign-magnitude encoding: magnitude bits
// 0..251, positions 252..254 unused, sign at 255.
const signedBits = 256

const signBitIndex = signedBits - 1

var (
	frModulus  = fr.Modulus()
	halfFr     = new(big.Int).Rsh(new(big.Int).Sub(frModulus, big.NewInt(1)), 1)
	signOffset = new(big.Int).Lsh(big.NewInt(1), signBitIndex)
)

// signedBigInt maps a field element to its signed representative in
// (-p/2, p/2].
func signedBigInt(v *fr.Element) *big.Int {
	x := v.BigInt(new(big.Int))
	if x.Cmp(halfFr) > 0 {
		x.Sub(x, frModulus)
	}
	return x
}

// IsNegative reports whether the signed representative of v is negative.
func IsNegative(v *fr.Element) bool {
	return signedBigInt(v).Sign() < 0
}

// signMagUint maps a field element to its sign-magnitude encoding: the
// absolute value of the signed representative, with bit 255 set exactly when
// the representative is nonnegative.
func signMagUint(v *fr.Element) *big.Int {
	x := signedBigInt(v)
	if x.Sign() < 0 {
		return x.Neg(x)
	}
	return x.SetBit(x, signBitIndex, 1)
}

// BitDistribution summarizes, for one column of field elements, which bits of
// the sign-magnitude encoding vary across rows and what the constant bits
// are. It is committed to the transcript before the final round challenges,
// so the verifier can trust its structure only after the derived constraints
// pass.
type BitDistribution struct {
	vary  *bitset.BitSet
	konst *bitset.BitSet
}

// ComputeBitDistribution scans a column and records the vary mask and
// constant bit pattern of the sign-magnitude encodings. An empty column is
// treated as a constant zero column.
func ComputeBitDistribution(values []fr.Element) BitDistribution {
	orAcc := new(big.Int)
	andAcc := new(big.Int)
	if len(values) == 0 {
		orAcc.Set(signOffset)
		andAcc.Set(signOffset)
	} else {
		u := signMagUint(&values[0])
		orAcc.Set(u)
		andAcc.Set(u)
		for i := 1; i < len(values); i++ {
			u = signMagUint(&values[i])
			orAcc.Or(orAcc, u)
			andAcc.And(andAcc, u)
		}
	}
	vary := bitset.New(signedBits)
	konst := bitset.New(signedBits)
	for i := uint(0); i < signedBits; i++ {
		if orAcc.Bit(int(i)) != andAcc.Bit(int(i)) {
			vary.Set(i)
		} else if andAcc.Bit(int(i)) == 1 {
			konst.Set(i)
		}
	}
	return BitDistribution{vary: vary, konst: konst}
}

// NumVaryingBits returns the number of bit positions that differ across rows.
func (bd *BitDistribution) NumVaryingBits() int {
	return int(bd.vary.Count())
}

// VaryingBitIndices returns the varying bit positions in ascending order, the
// sign position last when it varies.
func (bd *BitDistribution) VaryingBitIndices() []uint {
	out := make([]uint, 0, bd.vary.Count())
	for i, ok := bd.vary.NextSet(0); ok; i, ok = bd.vary.NextSet(i + 1) {
		out = append(out, i)
	}
	return out
}

// Varies reports whether bit i varies across rows.
func (bd *BitDistribution) Varies(i uint) bool { return bd.vary.Test(i) }

// ConstantBit reports the value of a non-varying bit.
func (bd *BitDistribution) ConstantBit(i uint) bool { return bd.konst.Test(i) }

// SignBitVaries reports whether the sign bit of the encoding is non-constant.
func (bd *BitDistribution) SignBitVaries() bool { return bd.vary.Test(signBitIndex) }

// ConstantNegative reports whether a constant sign bit encodes a negative
// value. Only meaningful when SignBitVaries is false.
func (bd *BitDistribution) ConstantNegative() bool { return !bd.konst.Test(signBitIndex) }

// constantUint rebuilds the integer formed by the constant bits, with zeros
// at every varying position.
func (bd *BitDistribution) constantUint() *big.Int {
	u := new(big.Int)
	for i, ok := bd.konst.NextSet(0); ok; i, ok = bd.konst.NextSet(i + 1) {
		u.SetBit(u, int(i), 1)
	}
	return u
}

// ConstantMagnitude returns the additive contribution of the constant
// magnitude bits, ignoring the sign position.
func (bd *BitDistribution) ConstantMagnitude() fr.Element {
	x := bd.constantUint()
	x.SetBit(x, signBitIndex, 0)
	var e fr.Element
	e.SetBigInt(x)
	return e
}

// IsWithinAcceptableRange checks that no reachable magnitude bit sits at
// position 252 or above. Magnitudes below 2^252 make the sign-magnitude
// decomposition injective modulo p: s=1 needs the magnitude to equal the
// value as an integer, s=0 needs it to equal p minus the value, and both
// cannot be under 2^252 at once. Distributions outside the window are
// rejected unconditionally.
func (bd *BitDistribution) IsWithinAcceptableRange() bool {
	reach := bigFromBitset(bd.vary)
	reach.Or(reach, bd.constantUint())
	for i := 252; i < signBitIndex; i++ {
		if reach.Bit(i) == 1 {
			return false
		}
	}
	return true
}

// MarshalBinary encodes the distribution as 32 bytes of vary mask followed by
// 32 bytes of constant bits, both big-endian.
func (bd *BitDistribution) MarshalBinary() ([]byte, error) {
	buf := make([]byte, 64)
	bigFromBitset(bd.vary).FillBytes(buf[:32])
	bd.constantUint().FillBytes(buf[32:])
	return buf, nil
}

// UnmarshalBinary decodes the MarshalBinary layout. Overlapping vary and
// constant bits are rejected.
func (bd *BitDistribution) UnmarshalBinary(data []byte) error {
	if len(data) != 64 {
		return fmt.Errorf("bit distribution: expected 64 bytes, got %d", len(data))
	}
	vary := new(big.Int).SetBytes(data[:32])
	konst := new(big.Int).SetBytes(data[32:])
	if new(big.Int).And(vary, konst).Sign() != 0 {
		return fmt.Errorf("bit distribution: vary and constant masks overlap")
	}
	bd.vary = bitsetFromBig(vary)
	bd.konst = bitsetFromBig(konst)
	return nil
}

func bigFromBitset(b *bitset.BitSet) *big.Int {
	u := new(big.Int)
	for i, ok := b.NextSet(0); ok; i, ok = b.NextSet(i + 1) {
		u.SetBit(u, int(i), 1)
	}
	return u
}

func bitsetFromBig(u *big.Int) *bitset.BitSet {
	b := bitset.New(signedBits)
	for i := 0; i < signedBits; i++ {
		if u.Bit(i) == 1 {
			b.Set(uint(i))
		}
	}
	return b
}
