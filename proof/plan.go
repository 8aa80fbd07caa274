package proof

import (
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/verisql/verisql/mle"
	"github.com/verisql/verisql/sql"
)

// Eval is the claimed evaluation of one logical column at the sumcheck point.
// Presence is non-nil for nullable columns and evaluates the 0/1 presence
// vector.
type Eval struct {
	Value    fr.Element
	Presence *fr.Element
}

// ProverContext is the working-table context an expression evaluates against
// during the final round. Chi is the table's row indicator, all ones over the
// table's rows.
type ProverContext struct {
	Table *sql.Table
	Chi   []fr.Element
}

// NewProverContext builds the final round context over a working table.
func NewProverContext(tbl *sql.Table) *ProverContext {
	n := tbl.NumRows()
	return &ProverContext{Table: tbl, Chi: mle.ChiColumn(n, n)}
}

// EvalContext is the verifier-side mirror of a working table: the claimed
// evaluations of its columns keyed by column name, its row indicator
// evaluation and its row count.
type EvalContext struct {
	ColumnEvals map[string]Eval
	ChiEval     fr.Element
	NumRows     int
}

// Expr is one node of a provable expression tree. The three methods are the
// three protocol phases: plain evaluation before any challenge exists,
// re-evaluation with constraint emission in the final round, and the
// verifier-side replay over claimed evaluations. The three walks must touch
// their builders in identical order.
type Expr interface {
	// DataType returns the expression's output type, fixed at construction.
	DataType() sql.ColumnType

	// FirstRoundEvaluate computes the expression over the working table
	// without emitting constraints.
	FirstRoundEvaluate(tbl *sql.Table) (sql.Column, error)

	// FinalRoundEvaluate recomputes the expression and emits its constraints.
	FinalRoundEvaluate(b *FinalRoundBuilder, pc *ProverContext) (sql.Column, error)

	// VerifierEvaluate derives the expression's evaluation at the sumcheck
	// point from its operands, consuming and constraining claimed values.
	VerifierEvaluate(b *VerificationBuilder, ctx *EvalContext) (Eval, error)

	// CollectColumnRefs adds the base column references the expression reads
	// to dst.
	CollectColumnRefs(dst map[sql.ColumnRef]struct{})

	// BindParams resolves placeholder nodes against the query parameters.
	BindParams(params []sql.LiteralValue) error
}

// PlanEval is the verifier-side outcome of a plan node: the claimed
// evaluations of its output columns in schema order, its output row count and
// the matching row indicator evaluation.
type PlanEval struct {
	ColumnEvals  []Eval
	OutputLength int
	ChiEval      fr.Element
}

// Context converts a plan evaluation into the expression context of the
// node's output table.
func (pe *PlanEval) Context(schema []sql.ColumnField) *EvalContext {
	ctx := &EvalContext{
		ColumnEvals: make(map[string]Eval, len(pe.ColumnEvals)),
		ChiEval:     pe.ChiEval,
		NumRows:     pe.OutputLength,
	}
	for i, f := range schema {
		ctx.ColumnEvals[f.Name] = pe.ColumnEvals[i]
	}
	return ctx
}

// Plan is one node of a provable query plan tree. Like Expr it is walked in
// three phases, and additionally reports its schema and the base tables and
// columns it touches.
type Plan interface {
	// OutputSchema returns the (name, type) pairs the node produces.
	OutputSchema() []sql.ColumnField

	// CollectColumnRefs adds every base column reference the subtree reads,
	// presence vectors included, to dst.
	CollectColumnRefs(dst map[sql.ColumnRef]struct{})

	// CollectTableRefs adds every base table the subtree reads to dst.
	CollectTableRefs(dst map[sql.TableRef]struct{})

	// BindParams resolves placeholder nodes throughout the subtree.
	BindParams(params []sql.LiteralValue) error

	// FirstRoundEvaluate computes the node's output table, producing result
	// MLEs, length declarations and challenge reservations.
	FirstRoundEvaluate(b *FirstRoundBuilder, acc sql.DataAccessor) (*sql.Table, error)

	// FinalRoundEvaluate recomputes the output and emits all constraints.
	FinalRoundEvaluate(b *FinalRoundBuilder, acc sql.DataAccessor) (*sql.Table, error)

	// VerifierEvaluate replays the walk over claimed evaluations.
	VerifierEvaluate(b *VerificationBuilder, acc sql.CommitmentAccessor, baseEvals map[sql.ColumnRef]fr.Element) (*PlanEval, error)
}
