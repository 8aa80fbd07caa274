package exprs

import (
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"

	"github.com/verisql/verisql/proof"
	"github.com/verisql/verisql/sql"
)

var booleanType = sql.ColumnType{Kind: sql.KindBoolean}

// NotExpr negates a boolean expression. Purely linear: no committed vector.
type NotExpr struct {
	inner proof.Expr
}

// NewNot builds NOT inner.
func NewNot(inner proof.Expr) (*NotExpr, error) {
	if err := requireBoolean(inner, "NOT"); err != nil {
		return nil, err
	}
	return &NotExpr{inner: inner}, nil
}

func (e *NotExpr) DataType() sql.ColumnType { return booleanType }

func (e *NotExpr) FirstRoundEvaluate(tbl *sql.Table) (sql.Column, error) {
	col, err := e.inner.FirstRoundEvaluate(tbl)
	if err != nil {
		return sql.Column{}, err
	}
	return negateBools(col), nil
}

func (e *NotExpr) FinalRoundEvaluate(b *proof.FinalRoundBuilder, pc *proof.ProverContext) (sql.Column, error) {
	col, err := e.inner.FinalRoundEvaluate(b, pc)
	if err != nil {
		return sql.Column{}, err
	}
	return negateBools(col), nil
}

func (e *NotExpr) VerifierEvaluate(b *proof.VerificationBuilder, ctx *proof.EvalContext) (proof.Eval, error) {
	inner, err := e.inner.VerifierEvaluate(b, ctx)
	if err != nil {
		return proof.Eval{}, err
	}
	var v fr.Element
	v.Sub(&ctx.ChiEval, &inner.Value)
	return proof.Eval{Value: v}, nil
}

func (e *NotExpr) CollectColumnRefs(dst map[sql.ColumnRef]struct{}) {
	e.inner.CollectColumnRefs(dst)
}

func (e *NotExpr) BindParams(params []sql.LiteralValue) error {
	return e.inner.BindParams(params)
}

func negateBools(col sql.Column) sql.Column {
	src := col.Bools()
	out := make([]bool, len(src))
	for i, v := range src {
		out[i] = !v
	}
	return sql.NewBooleanColumn(out)
}

// AndExpr is boolean conjunction. The row-wise product is nonlinear, so the
// result vector is committed with a product constraint.
type AndExpr struct {
	left, right proof.Expr
}

// NewAnd builds left AND right.
func NewAnd(left, right proof.Expr) (*AndExpr, error) {
	if err := requireBoolean(left, "AND"); err != nil {
		return nil, err
	}
	if err := requireBoolean(right, "AND"); err != nil {
		return nil, err
	}
	return &AndExpr{left: left, right: right}, nil
}

func (e *AndExpr) DataType() sql.ColumnType { return booleanType }

func (e *AndExpr) FirstRoundEvaluate(tbl *sql.Table) (sql.Column, error) {
	l, err := e.left.FirstRoundEvaluate(tbl)
	if err != nil {
		return sql.Column{}, err
	}
	r, err := e.right.FirstRoundEvaluate(tbl)
	if err != nil {
		return sql.Column{}, err
	}
	return combineBools(l, r, func(a, b bool) bool { return a && b }), nil
}

func (e *AndExpr) FinalRoundEvaluate(b *proof.FinalRoundBuilder, pc *proof.ProverContext) (sql.Column, error) {
	l, err := e.left.FinalRoundEvaluate(b, pc)
	if err != nil {
		return sql.Column{}, err
	}
	r, err := e.right.FinalRoundEvaluate(b, pc)
	if err != nil {
		return sql.Column{}, err
	}
	out := combineBools(l, r, func(a, b bool) bool { return a && b })
	res := out.Scalars()
	b.ProduceIntermediateMLE(res)
	b.ProduceSumcheckSubpolynomial(proof.Identity, []proof.ProductTerm{
		proof.NewTerm(1, res),
		proof.NewTerm(-1, l.Scalars(), r.Scalars()),
	})
	return out, nil
}

func (e *AndExpr) VerifierEvaluate(b *proof.VerificationBuilder, ctx *proof.EvalContext) (proof.Eval, error) {
	l, err := e.left.VerifierEvaluate(b, ctx)
	if err != nil {
		return proof.Eval{}, err
	}
	r, err := e.right.VerifierEvaluate(b, ctx)
	if err != nil {
		return proof.Eval{}, err
	}
	res := b.ConsumeFinalRoundMLE()
	b.ProduceSumcheckSubpolynomial(proof.Identity, []proof.EvalTerm{
		proof.NewEvalTerm(1, res),
		proof.NewEvalTerm(-1, l.Value, r.Value),
	})
	return proof.Eval{Value: res}, nil
}

func (e *AndExpr) CollectColumnRefs(dst map[sql.ColumnRef]struct{}) {
	e.left.CollectColumnRefs(dst)
	e.right.CollectColumnRefs(dst)
}

func (e *AndExpr) BindParams(params []sql.LiteralValue) error {
	if err := e.left.BindParams(params); err != nil {
		return err
	}
	return e.right.BindParams(params)
}

// OrExpr is boolean disjunction: l + r - l*r.
type OrExpr struct {
	left, right proof.Expr
}

// NewOr builds left OR right.
func NewOr(left, right proof.Expr) (*OrExpr, error) {
	if err := requireBoolean(left, "OR"); err != nil {
		return nil, err
	}
	if err := requireBoolean(right, "OR"); err != nil {
		return nil, err
	}
	return &OrExpr{left: left, right: right}, nil
}

func (e *OrExpr) DataType() sql.ColumnType { return booleanType }

func (e *OrExpr) FirstRoundEvaluate(tbl *sql.Table) (sql.Column, error) {
	l, err := e.left.FirstRoundEvaluate(tbl)
	if err != nil {
		return sql.Column{}, err
	}
	r, err := e.right.FirstRoundEvaluate(tbl)
	if err != nil {
		return sql.Column{}, err
	}
	return combineBools(l, r, func(a, b bool) bool { return a || b }), nil
}

func (e *OrExpr) FinalRoundEvaluate(b *proof.FinalRoundBuilder, pc *proof.ProverContext) (sql.Column, error) {
	l, err := e.left.FinalRoundEvaluate(b, pc)
	if err != nil {
		return sql.Column{}, err
	}
	r, err := e.right.FinalRoundEvaluate(b, pc)
	if err != nil {
		return sql.Column{}, err
	}
	out := combineBools(l, r, func(a, b bool) bool { return a || b })
	res := out.Scalars()
	b.ProduceIntermediateMLE(res)
	b.ProduceSumcheckSubpolynomial(proof.Identity, []proof.ProductTerm{
		proof.NewTerm(1, res),
		proof.NewTerm(-1, l.Scalars()),
		proof.NewTerm(-1, r.Scalars()),
		proof.NewTerm(1, l.Scalars(), r.Scalars()),
	})
	return out, nil
}

func (e *OrExpr) VerifierEvaluate(b *proof.VerificationBuilder, ctx *proof.EvalContext) (proof.Eval, error) {
	l, err := e.left.VerifierEvaluate(b, ctx)
	if err != nil {
		return proof.Eval{}, err
	}
	r, err := e.right.VerifierEvaluate(b, ctx)
	if err != nil {
		return proof.Eval{}, err
	}
	res := b.ConsumeFinalRoundMLE()
	b.ProduceSumcheckSubpolynomial(proof.Identity, []proof.EvalTerm{
		proof.NewEvalTerm(1, res),
		proof.NewEvalTerm(-1, l.Value),
		proof.NewEvalTerm(-1, r.Value),
		proof.NewEvalTerm(1, l.Value, r.Value),
	})
	return proof.Eval{Value: res}, nil
}

func (e *OrExpr) CollectColumnRefs(dst map[sql.ColumnRef]struct{}) {
	e.left.CollectColumnRefs(dst)
	e.right.CollectColumnRefs(dst)
}

func (e *OrExpr) BindParams(params []sql.LiteralValue) error {
	if err := e.left.BindParams(params); err != nil {
		return err
	}
	return e.right.BindParams(params)
}

func combineBools(l, r sql.Column, f func(a, b bool) bool) sql.Column {
	ls, rs := l.Bools(), r.Bools()
	out := make([]bool, len(ls))
	for i := range ls {
		out[i] = f(ls[i], rs[i])
	}
	return sql.NewBooleanColumn(out)
}
