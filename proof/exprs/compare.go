package exprs

import (
	"fmt"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"

	"github.com/verisql/verisql/proof"
	"github.com/verisql/verisql/sql"
)

func subtractScalars(l, r []fr.Element) []fr.Element {
	out := make([]fr.Element, len(l))
	for i := range l {
		out[i].Sub(&l[i], &r[i])
	}
	return out
}

// EqualsExpr is row-wise equality. The prover commits a selector and the
// pseudo-inverse of the difference; together the two constraints force the
// selector to be exactly the difference's zero indicator.
type EqualsExpr struct {
	left, right proof.Expr
}

// NewEquals builds left = right. Variable-length kinds compare by their
// collision-resistant hash, so only equality is available on them.
func NewEquals(left, right proof.Expr) (*EqualsExpr, error) {
	if err := requireComparable(left, right, "="); err != nil {
		return nil, err
	}
	return &EqualsExpr{left: left, right: right}, nil
}

func (e *EqualsExpr) DataType() sql.ColumnType { return booleanType }

func (e *EqualsExpr) FirstRoundEvaluate(tbl *sql.Table) (sql.Column, error) {
	l, err := e.left.FirstRoundEvaluate(tbl)
	if err != nil {
		return sql.Column{}, err
	}
	r, err := e.right.FirstRoundEvaluate(tbl)
	if err != nil {
		return sql.Column{}, err
	}
	return equalsColumn(l, r), nil
}

func equalsColumn(l, r sql.Column) sql.Column {
	ls, rs := l.Scalars(), r.Scalars()
	out := make([]bool, len(ls))
	for i := range ls {
		out[i] = ls[i].Equal(&rs[i])
	}
	return sql.NewBooleanColumn(out)
}

func (e *EqualsExpr) FinalRoundEvaluate(b *proof.FinalRoundBuilder, pc *proof.ProverContext) (sql.Column, error) {
	l, err := e.left.FinalRoundEvaluate(b, pc)
	if err != nil {
		return sql.Column{}, err
	}
	r, err := e.right.FinalRoundEvaluate(b, pc)
	if err != nil {
		return sql.Column{}, err
	}
	diff := subtractScalars(l.Scalars(), r.Scalars())
	inv := fr.BatchInvert(diff) // zero rows stay zero
	out := equalsColumn(l, r)
	sel := out.Scalars()

	b.ProduceIntermediateMLE(inv)
	b.ProduceIntermediateMLE(sel)
	// sel * diff = 0: the selector vanishes wherever the values differ.
	b.ProduceSumcheckSubpolynomial(proof.Identity, []proof.ProductTerm{
		proof.NewTerm(1, sel, diff),
	})
	// chi - sel - diff*inv = 0: wherever they agree the selector is one.
	b.ProduceSumcheckSubpolynomial(proof.Identity, []proof.ProductTerm{
		proof.NewTerm(1, pc.Chi),
		proof.NewTerm(-1, sel),
		proof.NewTerm(-1, diff, inv),
	})
	return out, nil
}

func (e *EqualsExpr) VerifierEvaluate(b *proof.VerificationBuilder, ctx *proof.EvalContext) (proof.Eval, error) {
	l, err := e.left.VerifierEvaluate(b, ctx)
	if err != nil {
		return proof.Eval{}, err
	}
	r, err := e.right.VerifierEvaluate(b, ctx)
	if err != nil {
		return proof.Eval{}, err
	}
	var diff fr.Element
	diff.Sub(&l.Value, &r.Value)
	inv := b.ConsumeFinalRoundMLE()
	sel := b.ConsumeFinalRoundMLE()
	b.ProduceSumcheckSubpolynomial(proof.Identity, []proof.EvalTerm{
		proof.NewEvalTerm(1, sel, diff),
	})
	b.ProduceSumcheckSubpolynomial(proof.Identity, []proof.EvalTerm{
		proof.NewEvalTerm(1, ctx.ChiEval),
		proof.NewEvalTerm(-1, sel),
		proof.NewEvalTerm(-1, diff, inv),
	})
	return proof.Eval{Value: sel}, nil
}

func (e *EqualsExpr) CollectColumnRefs(dst map[sql.ColumnRef]struct{}) {
	e.left.CollectColumnRefs(dst)
	e.right.CollectColumnRefs(dst)
}

func (e *EqualsExpr) BindParams(params []sql.LiteralValue) error {
	if err := e.left.BindParams(params); err != nil {
		return err
	}
	return e.right.BindParams(params)
}

// InequalityExpr is a strict row-wise < comparison under the signed
// interpretation, built on the sign gadget over the difference.
type InequalityExpr struct {
	left, right proof.Expr
}

// NewLessThan builds left < right.
func NewLessThan(left, right proof.Expr) (*InequalityExpr, error) {
	if err := requireComparable(left, right, "<"); err != nil {
		return nil, err
	}
	if !left.DataType().IsOrderable() || !right.DataType().IsOrderable() {
		return nil, fmt.Errorf("exprs: < requires orderable operands, got %s and %s", left.DataType(), right.DataType())
	}
	return &InequalityExpr{left: left, right: right}, nil
}

// NewGreaterThan builds left > right, which is right < left.
func NewGreaterThan(left, right proof.Expr) (*InequalityExpr, error) {
	return NewLessThan(right, left)
}

// NewLessThanOrEqual builds left <= right as NOT (right < left).
func NewLessThanOrEqual(left, right proof.Expr) (proof.Expr, error) {
	gt, err := NewLessThan(right, left)
	if err != nil {
		return nil, err
	}
	return NewNot(gt)
}

// NewGreaterThanOrEqual builds left >= right as NOT (left < right).
func NewGreaterThanOrEqual(left, right proof.Expr) (proof.Expr, error) {
	lt, err := NewLessThan(left, right)
	if err != nil {
		return nil, err
	}
	return NewNot(lt)
}

func (e *InequalityExpr) DataType() sql.ColumnType { return booleanType }

func (e *InequalityExpr) FirstRoundEvaluate(tbl *sql.Table) (sql.Column, error) {
	l, err := e.left.FirstRoundEvaluate(tbl)
	if err != nil {
		return sql.Column{}, err
	}
	r, err := e.right.FirstRoundEvaluate(tbl)
	if err != nil {
		return sql.Column{}, err
	}
	diff := subtractScalars(l.Scalars(), r.Scalars())
	out := make([]bool, len(diff))
	for i := range diff {
		out[i] = proof.IsNegative(&diff[i])
	}
	return sql.NewBooleanColumn(out), nil
}

func (e *InequalityExpr) FinalRoundEvaluate(b *proof.FinalRoundBuilder, pc *proof.ProverContext) (sql.Column, error) {
	l, err := e.left.FinalRoundEvaluate(b, pc)
	if err != nil {
		return sql.Column{}, err
	}
	r, err := e.right.FinalRoundEvaluate(b, pc)
	if err != nil {
		return sql.Column{}, err
	}
	diff := subtractScalars(l.Scalars(), r.Scalars())
	sign, err := proof.ProveSign(b, diff, pc.Chi)
	if err != nil {
		return sql.Column{}, err
	}
	out := make([]bool, len(diff))
	one := fr.One()
	for i := range sign.IsNegative {
		out[i] = sign.IsNegative[i].Equal(&one)
	}
	return sql.NewBooleanColumn(out), nil
}

func (e *InequalityExpr) VerifierEvaluate(b *proof.VerificationBuilder, ctx *proof.EvalContext) (proof.Eval, error) {
	l, err := e.left.VerifierEvaluate(b, ctx)
	if err != nil {
		return proof.Eval{}, err
	}
	r, err := e.right.VerifierEvaluate(b, ctx)
	if err != nil {
		return proof.Eval{}, err
	}
	var diff fr.Element
	diff.Sub(&l.Value, &r.Value)
	sign, err := proof.VerifySign(b, diff, ctx.ChiEval)
	if err != nil {
		return proof.Eval{}, err
	}
	return proof.Eval{Value: sign.IsNegative}, nil
}

func (e *InequalityExpr) CollectColumnRefs(dst map[sql.ColumnRef]struct{}) {
	e.left.CollectColumnRefs(dst)
	e.right.CollectColumnRefs(dst)
}

func (e *InequalityExpr) BindParams(params []sql.LiteralValue) error {
	if err := e.left.BindParams(params); err != nil {
		return err
	}
	return e.right.BindParams(params)
}
