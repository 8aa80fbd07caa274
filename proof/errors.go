// Package proof implements the verifiable query protocol core: the
// prover/verifier builder pair, the reusable zero-knowledge gadgets, and the
// orchestration that turns a provable plan tree into a serialized proof and
// back into a verified result table.
package proof

import "errors"

// Verification errors: always recoverable, surfaced to the caller as a
// rejected proof. Every form of cheating must map to one of these; none of
// them ever aborts the process.
var (
	// ErrVerification is the generic proof-rejection error. All specific
	// rejection reasons wrap it.
	ErrVerification = errors.New("proof: verification failed")

	// ErrFieldCountMismatch rejects a result table with the wrong number of
	// columns for the plan's output schema.
	ErrFieldCountMismatch = errors.New("proof: result field count mismatch")

	// ErrFieldNamesMismatch rejects a result table whose column names differ
	// from the plan's output schema.
	ErrFieldNamesMismatch = errors.New("proof: result field names mismatch")

	// ErrInvalidTypeCoercion rejects a result table whose column types do not
	// coerce to the plan's output schema.
	ErrInvalidTypeCoercion = errors.New("proof: invalid result type coercion")
)

// Construction-time errors: recoverable, raised before any proving begins.
var (
	// ErrPlaceholder signals a wrong count or type of bound query parameters.
	ErrPlaceholder = errors.New("proof: placeholder binding error")

	// ErrUnsupportedOffset signals a table committed at a nonzero row offset,
	// which the opening batch does not support.
	ErrUnsupportedOffset = errors.New("proof: nonzero table offset unsupported")

	// ErrOutOfRange signals a sign-gadget operand whose bit distribution
	// falls outside the acceptable range. On the prover side this is a fatal
	// setup error, not a proof failure.
	ErrOutOfRange = errors.New("proof: value outside acceptable sign range")
)
