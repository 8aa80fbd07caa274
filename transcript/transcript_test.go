package transcript

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDeterministic(t *testing.T) {
	assert := require.New(t)

	t1 := New("test")
	t2 := New("test")
	t1.Append("a", []byte{1, 2, 3})
	t2.Append("a", []byte{1, 2, 3})

	c1 := t1.ChallengeScalar("x")
	c2 := t2.ChallengeScalar("x")
	assert.True(c1.Equal(&c2))
}

func TestDivergence(t *testing.T) {
	assert := require.New(t)

	t1 := New("test")
	t2 := New("test")
	t1.Append("a", []byte{1, 2, 3})
	t2.Append("a", []byte{1, 2, 4})

	c1 := t1.ChallengeScalar("x")
	c2 := t2.ChallengeScalar("x")
	assert.False(c1.Equal(&c2))
}

func TestFramingIsUnambiguous(t *testing.T) {
	assert := require.New(t)

	// "ab" + "c" must not collide with "a" + "bc"
	t1 := New("test")
	t2 := New("test")
	t1.Append("ab", []byte("c"))
	t2.Append("a", []byte("bc"))

	c1 := t1.ChallengeScalar("x")
	c2 := t2.ChallengeScalar("x")
	assert.False(c1.Equal(&c2))
}

func TestRepeatedChallengesAreIndependent(t *testing.T) {
	assert := require.New(t)

	tr := New("test")
	c1 := tr.ChallengeScalar("x")
	c2 := tr.ChallengeScalar("x")
	assert.False(c1.Equal(&c2))

	cs := tr.ChallengeScalars("y", 4)
	for i := range cs {
		for j := i + 1; j < len(cs); j++ {
			assert.False(cs[i].Equal(&cs[j]))
		}
	}
}
