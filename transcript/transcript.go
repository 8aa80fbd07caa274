// Package transcript implements the Fiat-Shamir transcript shared by the
// prover and the verifier.
//
// Every protocol message is absorbed under a label, in a single deterministic
// order; challenges are squeezed from the running sha3 state. The prover and
// verifier must perform the exact same sequence of Append/Challenge calls or
// their challenges diverge and verification fails.
package transcript

import (
	"encoding/binary"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"golang.org/x/crypto/sha3"
)

// Transcript is a hash-chained Fiat-Shamir state.
type Transcript struct {
	state [32]byte
}

// New returns a transcript domain-separated by the given protocol label.
func New(label string) *Transcript {
	t := &Transcript{}
	t.state = sha3.Sum256([]byte(label))
	return t
}

// Append absorbs raw bytes under a label.
func (t *Transcript) Append(label string, data []byte) {
	h := sha3.New256()
	h.Write(t.state[:])
	writeFrame(h, []byte(label))
	writeFrame(h, data)
	h.Sum(t.state[:0])
}

// AppendUint64 absorbs a length or count.
func (t *Transcript) AppendUint64(label string, v uint64) {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], v)
	t.Append(label, buf[:])
}

// AppendScalars absorbs field elements in index order.
func (t *Transcript) AppendScalars(label string, xs ...fr.Element) {
	h := sha3.New256()
	h.Write(t.state[:])
	writeFrame(h, []byte(label))
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(len(xs)))
	h.Write(buf[:])
	for i := range xs {
		b := xs[i].Bytes()
		h.Write(b[:])
	}
	h.Sum(t.state[:0])
}

// ChallengeScalar squeezes one field element. The squeeze advances the state,
// so repeated calls with the same label yield independent challenges.
func (t *Transcript) ChallengeScalar(label string) fr.Element {
	t.Append(label, []byte{'c'})

	// two squeezes give 64 uniform bytes; SetBytes reduces mod p with
	// negligible bias
	lo := sha3.Sum256(append(t.state[:], 0))
	hi := sha3.Sum256(append(t.state[:], 1))
	var wide [64]byte
	copy(wide[:32], hi[:])
	copy(wide[32:], lo[:])

	var r fr.Element
	r.SetBytes(wide[:])
	t.state = sha3.Sum256(append(t.state[:], 2))
	return r
}

// ChallengeScalars squeezes n field elements.
func (t *Transcript) ChallengeScalars(label string, n int) []fr.Element {
	rs := make([]fr.Element, n)
	for i := range rs {
		rs[i] = t.ChallengeScalar(label)
	}
	return rs
}

func writeFrame(h interface{ Write([]byte) (int, error) }, data []byte) {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(len(data)))
	h.Write(buf[:])
	h.Write(data)
}
