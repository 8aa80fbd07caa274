package exprs

import (
	"fmt"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"

	"github.com/verisql/verisql/proof"
	"github.com/verisql/verisql/sql"
)

// IsTrueExpr collapses three-valued logic: a nullable boolean becomes true
// exactly on rows that are present and true. NULL rows count as false, which
// is the SQL WHERE semantics.
type IsTrueExpr struct {
	inner    proof.Expr
	nullable bool
}

// NewIsTrue builds inner IS TRUE.
func NewIsTrue(inner proof.Expr) (*IsTrueExpr, error) {
	if inner.DataType().Kind != sql.KindBoolean {
		return nil, fmt.Errorf("exprs: IS TRUE requires a boolean operand, got %s", inner.DataType())
	}
	return &IsTrueExpr{inner: inner, nullable: inner.DataType().Nullable}, nil
}

func (e *IsTrueExpr) DataType() sql.ColumnType { return booleanType }

func isTrueColumn(col sql.Column) sql.Column {
	vals := col.Bools()
	pres := col.Presence()
	out := make([]bool, len(vals))
	for i, v := range vals {
		out[i] = v && (pres == nil || pres[i])
	}
	return sql.NewBooleanColumn(out)
}

func (e *IsTrueExpr) FirstRoundEvaluate(tbl *sql.Table) (sql.Column, error) {
	col, err := e.inner.FirstRoundEvaluate(tbl)
	if err != nil {
		return sql.Column{}, err
	}
	return isTrueColumn(col), nil
}

func (e *IsTrueExpr) FinalRoundEvaluate(b *proof.FinalRoundBuilder, pc *proof.ProverContext) (sql.Column, error) {
	col, err := e.inner.FinalRoundEvaluate(b, pc)
	if err != nil {
		return sql.Column{}, err
	}
	out := isTrueColumn(col)
	if !e.nullable {
		return out, nil
	}
	pres := col.PresenceScalars()
	if pres == nil {
		pres = pc.Chi
	}
	res := out.Scalars()
	b.ProduceIntermediateMLE(res)
	b.ProduceSumcheckSubpolynomial(proof.Identity, []proof.ProductTerm{
		proof.NewTerm(1, res),
		proof.NewTerm(-1, pres, col.Scalars()),
	})
	return out, nil
}

func (e *IsTrueExpr) VerifierEvaluate(b *proof.VerificationBuilder, ctx *proof.EvalContext) (proof.Eval, error) {
	inner, err := e.inner.VerifierEvaluate(b, ctx)
	if err != nil {
		return proof.Eval{}, err
	}
	if !e.nullable {
		return proof.Eval{Value: inner.Value}, nil
	}
	if inner.Presence == nil {
		return proof.Eval{}, fmt.Errorf("%w: missing presence evaluation", proof.ErrVerification)
	}
	res := b.ConsumeFinalRoundMLE()
	b.ProduceSumcheckSubpolynomial(proof.Identity, []proof.EvalTerm{
		proof.NewEvalTerm(1, res),
		proof.NewEvalTerm(-1, *inner.Presence, inner.Value),
	})
	return proof.Eval{Value: res}, nil
}

func (e *IsTrueExpr) CollectColumnRefs(dst map[sql.ColumnRef]struct{}) {
	e.inner.CollectColumnRefs(dst)
}

func (e *IsTrueExpr) BindParams(params []sql.LiteralValue) error {
	return e.inner.BindParams(params)
}

// IsNullExpr tests for NULL. Linear over the presence vector.
type IsNullExpr struct {
	inner    proof.Expr
	nullable bool
}

// NewIsNull builds inner IS NULL.
func NewIsNull(inner proof.Expr) (*IsNullExpr, error) {
	return &IsNullExpr{inner: inner, nullable: inner.DataType().Nullable}, nil
}

func (e *IsNullExpr) DataType() sql.ColumnType { return booleanType }

func (e *IsNullExpr) evaluate(col sql.Column) sql.Column {
	out := make([]bool, col.Len())
	if pres := col.Presence(); pres != nil {
		for i, p := range pres {
			out[i] = !p
		}
	}
	return sql.NewBooleanColumn(out)
}

func (e *IsNullExpr) FirstRoundEvaluate(tbl *sql.Table) (sql.Column, error) {
	col, err := e.inner.FirstRoundEvaluate(tbl)
	if err != nil {
		return sql.Column{}, err
	}
	return e.evaluate(col), nil
}

func (e *IsNullExpr) FinalRoundEvaluate(b *proof.FinalRoundBuilder, pc *proof.ProverContext) (sql.Column, error) {
	col, err := e.inner.FinalRoundEvaluate(b, pc)
	if err != nil {
		return sql.Column{}, err
	}
	return e.evaluate(col), nil
}

func (e *IsNullExpr) VerifierEvaluate(b *proof.VerificationBuilder, ctx *proof.EvalContext) (proof.Eval, error) {
	inner, err := e.inner.VerifierEvaluate(b, ctx)
	if err != nil {
		return proof.Eval{}, err
	}
	if !e.nullable || inner.Presence == nil {
		return proof.Eval{}, nil
	}
	var v fr.Element
	v.Sub(&ctx.ChiEval, inner.Presence)
	return proof.Eval{Value: v}, nil
}

func (e *IsNullExpr) CollectColumnRefs(dst map[sql.ColumnRef]struct{}) {
	e.inner.CollectColumnRefs(dst)
}

func (e *IsNullExpr) BindParams(params []sql.LiteralValue) error {
	return e.inner.BindParams(params)
}

// IsNotNullExpr tests for non-NULL. Linear: the presence vector itself.
type IsNotNullExpr struct {
	inner    proof.Expr
	nullable bool
}

// NewIsNotNull builds inner IS NOT NULL.
func NewIsNotNull(inner proof.Expr) (*IsNotNullExpr, error) {
	return &IsNotNullExpr{inner: inner, nullable: inner.DataType().Nullable}, nil
}

func (e *IsNotNullExpr) DataType() sql.ColumnType { return booleanType }

func (e *IsNotNullExpr) evaluate(col sql.Column) sql.Column {
	out := make([]bool, col.Len())
	if pres := col.Presence(); pres != nil {
		copy(out, pres)
	} else {
		for i := range out {
			out[i] = true
		}
	}
	return sql.NewBooleanColumn(out)
}

func (e *IsNotNullExpr) FirstRoundEvaluate(tbl *sql.Table) (sql.Column, error) {
	col, err := e.inner.FirstRoundEvaluate(tbl)
	if err != nil {
		return sql.Column{}, err
	}
	return e.evaluate(col), nil
}

func (e *IsNotNullExpr) FinalRoundEvaluate(b *proof.FinalRoundBuilder, pc *proof.ProverContext) (sql.Column, error) {
	col, err := e.inner.FinalRoundEvaluate(b, pc)
	if err != nil {
		return sql.Column{}, err
	}
	return e.evaluate(col), nil
}

func (e *IsNotNullExpr) VerifierEvaluate(b *proof.VerificationBuilder, ctx *proof.EvalContext) (proof.Eval, error) {
	inner, err := e.inner.VerifierEvaluate(b, ctx)
	if err != nil {
		return proof.Eval{}, err
	}
	if !e.nullable || inner.Presence == nil {
		return proof.Eval{Value: ctx.ChiEval}, nil
	}
	return proof.Eval{Value: *inner.Presence}, nil
}

func (e *IsNotNullExpr) CollectColumnRefs(dst map[sql.ColumnRef]struct{}) {
	e.inner.CollectColumnRefs(dst)
}

func (e *IsNotNullExpr) BindParams(params []sql.LiteralValue) error {
	return e.inner.BindParams(params)
}
