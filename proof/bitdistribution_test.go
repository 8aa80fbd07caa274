package proof

import (
	"math/big"
	"testing"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/require"
)

func scalarsOf(values ...int64) []fr.Element {
	out := make([]fr.Element, len(values))
	for i, v := range values {
		out[i].SetInt64(v)
	}
	return out
}

func TestIsNegative(t *testing.T) {
	assert := require.New(t)

	cases := []struct {
		v    int64
		want bool
	}{
		{0, false}, {1, false}, {42, false}, {-1, true}, {-42, true},
	}
	for _, c := range cases {
		var v fr.Element
		v.SetInt64(c.v)
		assert.Equal(c.want, IsNegative(&v), "value %d", c.v)
	}

	// (p-1)/2 is the largest nonnegative representative, (p+1)/2 the most
	// negative one.
	var hi fr.Element
	hi.SetBigInt(halfFr)
	assert.False(IsNegative(&hi))
	one := fr.One()
	hi.Add(&hi, &one)
	assert.True(IsNegative(&hi))
}

func TestIsNegativeProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("matches the int64 sign", prop.ForAll(
		func(x int64) bool {
			var v fr.Element
			v.SetInt64(x)
			return IsNegative(&v) == (x < 0)
		},
		gen.Int64(),
	))
	properties.Property("negation flips the sign of nonzero values", prop.ForAll(
		func(x int64) bool {
			if x == 0 {
				return true
			}
			var v, n fr.Element
			v.SetInt64(x)
			n.Neg(&v)
			return IsNegative(&v) != IsNegative(&n)
		},
		gen.Int64(),
	))

	properties.TestingRun(t)
}

func TestComputeBitDistributionConstant(t *testing.T) {
	assert := require.New(t)

	bd := ComputeBitDistribution(scalarsOf(9, 9, 9))
	assert.Equal(0, bd.NumVaryingBits())
	assert.False(bd.SignBitVaries())
	assert.False(bd.ConstantNegative())
	assert.True(bd.IsWithinAcceptableRange())

	// 9 = 0b1001
	mag := bd.ConstantMagnitude()
	var want fr.Element
	want.SetUint64(9)
	assert.True(mag.Equal(&want))

	bd = ComputeBitDistribution(scalarsOf(-9, -9))
	assert.Equal(0, bd.NumVaryingBits())
	assert.True(bd.ConstantNegative())
	mag = bd.ConstantMagnitude()
	assert.True(mag.Equal(&want))
}

func TestComputeBitDistributionSignStraddle(t *testing.T) {
	assert := require.New(t)

	// {-1, 0} straddles zero: the sign and the low magnitude bit vary, and
	// the distribution stays acceptable.
	bd := ComputeBitDistribution(scalarsOf(-1, 0))
	assert.True(bd.SignBitVaries())
	assert.Equal([]uint{0, signBitIndex}, bd.VaryingBitIndices())
	assert.True(bd.IsWithinAcceptableRange())
}

func TestComputeBitDistributionVarying(t *testing.T) {
	assert := require.New(t)

	// 1 -> 0b001, 3 -> 0b011, 5 -> 0b101: bit 0 constant, bits 1 and 2 vary.
	bd := ComputeBitDistribution(scalarsOf(1, 3, 5))
	assert.Equal([]uint{1, 2}, bd.VaryingBitIndices())
	assert.True(bd.ConstantBit(0))
	assert.True(bd.Varies(1))
	assert.False(bd.SignBitVaries())
	assert.False(bd.ConstantNegative())
}

func TestComputeBitDistributionEmpty(t *testing.T) {
	assert := require.New(t)

	bd := ComputeBitDistribution(nil)
	assert.Equal(0, bd.NumVaryingBits())
	assert.False(bd.ConstantNegative())
	assert.True(bd.IsWithinAcceptableRange())
	mag := bd.ConstantMagnitude()
	assert.True(mag.IsZero())
}

func TestIsWithinAcceptableRangeRejectsHighMagnitude(t *testing.T) {
	assert := require.New(t)

	var v fr.Element
	v.SetBigInt(new(big.Int).Lsh(big.NewInt(1), 252))
	bd := ComputeBitDistribution([]fr.Element{v})
	assert.False(bd.IsWithinAcceptableRange())
}

func TestBitDistributionMarshalRoundTrip(t *testing.T) {
	assert := require.New(t)

	bd := ComputeBitDistribution(scalarsOf(-7, 0, 13, 13))
	buf, err := bd.MarshalBinary()
	assert.NoError(err)
	assert.Len(buf, 64)

	var back BitDistribution
	assert.NoError(back.UnmarshalBinary(buf))
	assert.Equal(bd.VaryingBitIndices(), back.VaryingBitIndices())
	a, b := bd.ConstantMagnitude(), back.ConstantMagnitude()
	assert.True(a.Equal(&b))
	assert.Equal(bd.ConstantNegative(), back.ConstantNegative())
}

func TestBitDistributionUnmarshalRejects(t *testing.T) {
	assert := require.New(t)

	var bd BitDistribution
	assert.Error(bd.UnmarshalBinary(make([]byte, 63)))

	// overlapping vary and constant masks
	buf := make([]byte, 64)
	buf[31] = 1
	buf[63] = 1
	assert.Error(bd.UnmarshalBinary(buf))
}
