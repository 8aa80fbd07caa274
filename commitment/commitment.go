// Package commitment defines the abstract vector-commitment contract the
// proof core depends on. Concrete schemes (see the pedersen subpackage) bind
// to a vector of field elements with a short commitment and later prove,
// against the shared Fiat-Shamir transcript, that the vector's multilinear
// extension evaluates to a claimed value at a claimed point.
package commitment

import (
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"

	"github.com/verisql/verisql/transcript"
)

// Commitment is an opaque, serializable commitment to one vector.
type Commitment interface {
	// Bytes returns a stable encoding of the commitment; it is what gets
	// absorbed into the transcript and serialized into proofs.
	Bytes() []byte
}

// Scheme is a vector-commitment scheme with multilinear evaluation proofs.
// Implementations are safe for concurrent use: their public parameters are
// read-only after construction.
type Scheme interface {
	// Commit commits to a vector placed at the given row offset within the
	// committed table.
	Commit(vec []fr.Element, offset int) (Commitment, error)

	// UnmarshalCommitment decodes a commitment previously encoded with Bytes.
	UnmarshalCommitment(data []byte) (Commitment, error)

	// BatchOpen proves that for every i, the multilinear extension of
	// vecs[i] (zero-padded to 2^len(point) rows) evaluates to evals[i] at
	// point. The openings are folded into a single argument; the fold
	// challenge comes from the transcript, which must already have absorbed
	// the commitments and the claimed evaluations.
	BatchOpen(t *transcript.Transcript, vecs [][]fr.Element, point []fr.Element, evals []fr.Element) ([]byte, error)

	// VerifyBatchOpening checks a BatchOpen proof against the commitments
	// and claimed evaluations, replaying the same transcript operations.
	VerifyBatchOpening(t *transcript.Transcript, proof []byte, comms []Commitment, point []fr.Element, evals []fr.Element) error
}
