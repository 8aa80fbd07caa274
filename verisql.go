// Package verisql proves and verifies SQL query results over cryptographically
// committed tabular data.
//
// A prover executes a query plan against plain column data and produces a
// succinct proof that the returned table is the true and complete result of
// that plan. A verifier replays the plan's algebraic constraints against
// column commitments only; it never re-reads the raw data.
//
// The protocol core is a batched sumcheck argument. Every SQL operator is
// compiled (upstream of this module) into a tree of provable plan and
// expression nodes which accumulate multilinear-extension constraints into a
// shared prover/verifier builder pair; see the proof, proof/exprs and
// proof/plans packages.
package verisql

import "github.com/blang/semver/v4"

// Version of the module. Serialized proofs embed it and verification warns on
// mismatch.
var Version = semver.MustParse("0.3.0")
