package exprs

import (
	"fmt"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"

	"github.com/verisql/verisql/proof"
	"github.com/verisql/verisql/sql"
)

func unaryResultType(inner proof.Expr, op string) (sql.ColumnType, error) {
	if err := requireNonNullable(inner, op); err != nil {
		return sql.ColumnType{}, err
	}
	t := inner.DataType()
	if !t.IsNumeric() {
		return sql.ColumnType{}, fmt.Errorf("exprs: %s requires a numeric operand, got %s", op, t)
	}
	switch t.Kind {
	case sql.KindScalar:
		return sql.ColumnType{Kind: sql.KindScalar}, nil
	case sql.KindDecimal75:
		return sql.ColumnType{Kind: sql.KindDecimal75, Precision: 75, Scale: t.Scale}, nil
	}
	return sql.ColumnType{Kind: sql.KindInt128}, nil
}

// materializeUnary builds the typed result column from a row-wise unary op.
func materializeUnary(typ sql.ColumnType, col sql.Column, bigOp func(a *big.Int) *big.Int, frOp func(a *fr.Element) fr.Element) sql.Column {
	n := col.Len()
	if typ.Kind == sql.KindScalar {
		vs := col.Scalars()
		out := make([]fr.Element, n)
		for i := 0; i < n; i++ {
			out[i] = frOp(&vs[i])
		}
		return sql.NewScalarColumn(out)
	}
	out := make([]big.Int, n)
	for i := 0; i < n; i++ {
		out[i].Set(bigOp(bigOf(col, i)))
	}
	if typ.Kind == sql.KindInt128 {
		return sql.NewInt128Column(out)
	}
	return sql.NewDecimalColumn(typ.Precision, typ.Scale, out)
}

// NegateExpr is row-wise arithmetic negation; linear, so no constraint is
// emitted.
type NegateExpr struct {
	inner proof.Expr
	typ   sql.ColumnType
}

// NewNegate builds -inner.
func NewNegate(inner proof.Expr) (*NegateExpr, error) {
	typ, err := unaryResultType(inner, "negation")
	if err != nil {
		return nil, err
	}
	return &NegateExpr{inner: inner, typ: typ}, nil
}

func (e *NegateExpr) DataType() sql.ColumnType { return e.typ }

func (e *NegateExpr) negate(col sql.Column) sql.Column {
	return materializeUnary(e.typ, col,
		func(a *big.Int) *big.Int { return new(big.Int).Neg(a) },
		func(a *fr.Element) fr.Element {
			var v fr.Element
			v.Neg(a)
			return v
		})
}

func (e *NegateExpr) FirstRoundEvaluate(tbl *sql.Table) (sql.Column, error) {
	col, err := e.inner.FirstRoundEvaluate(tbl)
	if err != nil {
		return sql.Column{}, err
	}
	return e.negate(col), nil
}

func (e *NegateExpr) FinalRoundEvaluate(b *proof.FinalRoundBuilder, pc *proof.ProverContext) (sql.Column, error) {
	col, err := e.inner.FinalRoundEvaluate(b, pc)
	if err != nil {
		return sql.Column{}, err
	}
	return e.negate(col), nil
}

func (e *NegateExpr) VerifierEvaluate(b *proof.VerificationBuilder, ctx *proof.EvalContext) (proof.Eval, error) {
	inner, err := e.inner.VerifierEvaluate(b, ctx)
	if err != nil {
		return proof.Eval{}, err
	}
	var v fr.Element
	v.Neg(&inner.Value)
	return proof.Eval{Value: v}, nil
}

func (e *NegateExpr) CollectColumnRefs(dst map[sql.ColumnRef]struct{}) {
	e.inner.CollectColumnRefs(dst)
}

func (e *NegateExpr) BindParams(params []sql.LiteralValue) error {
	return e.inner.BindParams(params)
}

// AbsExpr is the row-wise absolute value under the signed interpretation.
// The prover commits the rectified column and binds it to the operand with
// the sign gadget: abs = value - 2*isNegative*value.
type AbsExpr struct {
	inner proof.Expr
	typ   sql.ColumnType
}

// NewAbs builds ABS(inner).
func NewAbs(inner proof.Expr) (*AbsExpr, error) {
	typ, err := unaryResultType(inner, "ABS")
	if err != nil {
		return nil, err
	}
	return &AbsExpr{inner: inner, typ: typ}, nil
}

func (e *AbsExpr) DataType() sql.ColumnType { return e.typ }

func (e *AbsExpr) rectify(col sql.Column) sql.Column {
	return materializeUnary(e.typ, col,
		func(a *big.Int) *big.Int { return new(big.Int).Abs(a) },
		func(a *fr.Element) fr.Element {
			v := *a
			if proof.IsNegative(a) {
				v.Neg(a)
			}
			return v
		})
}

func (e *AbsExpr) FirstRoundEvaluate(tbl *sql.Table) (sql.Column, error) {
	col, err := e.inner.FirstRoundEvaluate(tbl)
	if err != nil {
		return sql.Column{}, err
	}
	return e.rectify(col), nil
}

func (e *AbsExpr) FinalRoundEvaluate(b *proof.FinalRoundBuilder, pc *proof.ProverContext) (sql.Column, error) {
	col, err := e.inner.FinalRoundEvaluate(b, pc)
	if err != nil {
		return sql.Column{}, err
	}
	values := col.Scalars()
	sign, err := proof.ProveSign(b, values, pc.Chi)
	if err != nil {
		return sql.Column{}, err
	}
	out := e.rectify(col)
	rectified := out.Scalars()
	b.ProduceIntermediateMLE(rectified)
	b.ProduceSumcheckSubpolynomial(proof.Identity, []proof.ProductTerm{
		proof.NewTerm(1, rectified),
		proof.NewTerm(-1, values),
		proof.NewTerm(2, sign.IsNegative, values),
	})
	return out, nil
}

func (e *AbsExpr) VerifierEvaluate(b *proof.VerificationBuilder, ctx *proof.EvalContext) (proof.Eval, error) {
	inner, err := e.inner.VerifierEvaluate(b, ctx)
	if err != nil {
		return proof.Eval{}, err
	}
	sign, err := proof.VerifySign(b, inner.Value, ctx.ChiEval)
	if err != nil {
		return proof.Eval{}, err
	}
	rectified := b.ConsumeFinalRoundMLE()
	b.ProduceSumcheckSubpolynomial(proof.Identity, []proof.EvalTerm{
		proof.NewEvalTerm(1, rectified),
		proof.NewEvalTerm(-1, inner.Value),
		proof.NewEvalTerm(2, sign.IsNegative, inner.Value),
	})
	return proof.Eval{Value: rectified}, nil
}

func (e *AbsExpr) CollectColumnRefs(dst map[sql.ColumnRef]struct{}) {
	e.inner.CollectColumnRefs(dst)
}

func (e *AbsExpr) BindParams(params []sql.LiteralValue) error {
	return e.inner.BindParams(params)
}
