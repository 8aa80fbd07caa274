package exprs

import (
	"fmt"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"

	"github.com/verisql/verisql/proof"
	"github.com/verisql/verisql/sql"
)

// arithResultType resolves the output type of an arithmetic node. Integer
// kinds widen to int128 so honest results never wrap; decimals keep their
// scale (summed for products); raw scalars absorb everything.
func arithResultType(l, r proof.Expr, op string, addScales bool) (sql.ColumnType, error) {
	if err := requireNonNullable(l, op); err != nil {
		return sql.ColumnType{}, err
	}
	if err := requireNonNullable(r, op); err != nil {
		return sql.ColumnType{}, err
	}
	lt, rt := l.DataType(), r.DataType()
	if !lt.IsNumeric() || !rt.IsNumeric() {
		return sql.ColumnType{}, fmt.Errorf("exprs: %s requires numeric operands, got %s and %s", op, lt, rt)
	}
	if lt.Kind == sql.KindScalar || rt.Kind == sql.KindScalar {
		return sql.ColumnType{Kind: sql.KindScalar}, nil
	}
	var scale int8
	if addScales {
		scale = scaleOf(lt) + scaleOf(rt)
	} else {
		if scaleOf(lt) != scaleOf(rt) {
			return sql.ColumnType{}, fmt.Errorf("exprs: %s scale mismatch: %s vs %s, rescale first", op, lt, rt)
		}
		scale = scaleOf(lt)
	}
	if lt.Kind == sql.KindDecimal75 || rt.Kind == sql.KindDecimal75 || scale != 0 {
		return sql.ColumnType{Kind: sql.KindDecimal75, Precision: 75, Scale: scale}, nil
	}
	return sql.ColumnType{Kind: sql.KindInt128}, nil
}

// materializeArith builds the typed result column from a row-wise big-integer
// op, or from field arithmetic when the result is a raw scalar.
func materializeArith(typ sql.ColumnType, l, r sql.Column, bigOp func(a, b *big.Int) *big.Int, frOp func(a, b *fr.Element) fr.Element) sql.Column {
	n := l.Len()
	if typ.Kind == sql.KindScalar {
		ls, rs := l.Scalars(), r.Scalars()
		out := make([]fr.Element, n)
		for i := 0; i < n; i++ {
			out[i] = frOp(&ls[i], &rs[i])
		}
		return sql.NewScalarColumn(out)
	}
	out := make([]big.Int, n)
	for i := 0; i < n; i++ {
		out[i].Set(bigOp(bigOf(l, i), bigOf(r, i)))
	}
	if typ.Kind == sql.KindInt128 {
		return sql.NewInt128Column(out)
	}
	return sql.NewDecimalColumn(typ.Precision, typ.Scale, out)
}

// AddExpr is row-wise addition; linear, so no constraint is emitted.
type AddExpr struct {
	left, right proof.Expr
	typ         sql.ColumnType
}

// NewAdd builds left + right.
func NewAdd(left, right proof.Expr) (*AddExpr, error) {
	typ, err := arithResultType(left, right, "+", false)
	if err != nil {
		return nil, err
	}
	return &AddExpr{left: left, right: right, typ: typ}, nil
}

func (e *AddExpr) DataType() sql.ColumnType { return e.typ }

func (e *AddExpr) materialize(l, r sql.Column) sql.Column {
	return materializeArith(e.typ, l, r,
		func(a, b *big.Int) *big.Int { return a.Add(a, b) },
		func(a, b *fr.Element) fr.Element { var v fr.Element; v.Add(a, b); return v },
	)
}

func (e *AddExpr) FirstRoundEvaluate(tbl *sql.Table) (sql.Column, error) {
	l, err := e.left.FirstRoundEvaluate(tbl)
	if err != nil {
		return sql.Column{}, err
	}
	r, err := e.right.FirstRoundEvaluate(tbl)
	if err != nil {
		return sql.Column{}, err
	}
	return e.materialize(l, r), nil
}

func (e *AddExpr) FinalRoundEvaluate(b *proof.FinalRoundBuilder, pc *proof.ProverContext) (sql.Column, error) {
	l, err := e.left.FinalRoundEvaluate(b, pc)
	if err != nil {
		return sql.Column{}, err
	}
	r, err := e.right.FinalRoundEvaluate(b, pc)
	if err != nil {
		return sql.Column{}, err
	}
	return e.materialize(l, r), nil
}

func (e *AddExpr) VerifierEvaluate(b *proof.VerificationBuilder, ctx *proof.EvalContext) (proof.Eval, error) {
	l, err := e.left.VerifierEvaluate(b, ctx)
	if err != nil {
		return proof.Eval{}, err
	}
	r, err := e.right.VerifierEvaluate(b, ctx)
	if err != nil {
		return proof.Eval{}, err
	}
	var v fr.Element
	v.Add(&l.Value, &r.Value)
	return proof.Eval{Value: v}, nil
}

func (e *AddExpr) CollectColumnRefs(dst map[sql.ColumnRef]struct{}) {
	e.left.CollectColumnRefs(dst)
	e.right.CollectColumnRefs(dst)
}

func (e *AddExpr) BindParams(params []sql.LiteralValue) error {
	if err := e.left.BindParams(params); err != nil {
		return err
	}
	return e.right.BindParams(params)
}

// SubtractExpr is row-wise subtraction; linear like AddExpr.
type SubtractExpr struct {
	left, right proof.Expr
	typ         sql.ColumnType
}

// NewSubtract builds left - right.
func NewSubtract(left, right proof.Expr) (*SubtractExpr, error) {
	typ, err := arithResultType(left, right, "-", false)
	if err != nil {
		return nil, err
	}
	return &SubtractExpr{left: left, right: right, typ: typ}, nil
}

func (e *SubtractExpr) DataType() sql.ColumnType { return e.typ }

func (e *SubtractExpr) materialize(l, r sql.Column) sql.Column {
	return materializeArith(e.typ, l, r,
		func(a, b *big.Int) *big.Int { return a.Sub(a, b) },
		func(a, b *fr.Element) fr.Element { var v fr.Element; v.Sub(a, b); return v },
	)
}

func (e *SubtractExpr) FirstRoundEvaluate(tbl *sql.Table) (sql.Column, error) {
	l, err := e.left.FirstRoundEvaluate(tbl)
	if err != nil {
		return sql.Column{}, err
	}
	r, err := e.right.FirstRoundEvaluate(tbl)
	if err != nil {
		return sql.Column{}, err
	}
	return e.materialize(l, r), nil
}

func (e *SubtractExpr) FinalRoundEvaluate(b *proof.FinalRoundBuilder, pc *proof.ProverContext) (sql.Column, error) {
	l, err := e.left.FinalRoundEvaluate(b, pc)
	if err != nil {
		return sql.Column{}, err
	}
	r, err := e.right.FinalRoundEvaluate(b, pc)
	if err != nil {
		return sql.Column{}, err
	}
	return e.materialize(l, r), nil
}

func (e *SubtractExpr) VerifierEvaluate(b *proof.VerificationBuilder, ctx *proof.EvalContext) (proof.Eval, error) {
	l, err := e.left.VerifierEvaluate(b, ctx)
	if err != nil {
		return proof.Eval{}, err
	}
	r, err := e.right.VerifierEvaluate(b, ctx)
	if err != nil {
		return proof.Eval{}, err
	}
	var v fr.Element
	v.Sub(&l.Value, &r.Value)
	return proof.Eval{Value: v}, nil
}

func (e *SubtractExpr) CollectColumnRefs(dst map[sql.ColumnRef]struct{}) {
	e.left.CollectColumnRefs(dst)
	e.right.CollectColumnRefs(dst)
}

func (e *SubtractExpr) BindParams(params []sql.LiteralValue) error {
	if err := e.left.BindParams(params); err != nil {
		return err
	}
	return e.right.BindParams(params)
}

// MultiplyExpr is row-wise multiplication. The product is nonlinear, so the
// result vector is committed with a product constraint.
type MultiplyExpr struct {
	left, right proof.Expr
	typ         sql.ColumnType
}

// NewMultiply builds left * right. Decimal scales add.
func NewMultiply(left, right proof.Expr) (*MultiplyExpr, error) {
	typ, err := arithResultType(left, right, "*", true)
	if err != nil {
		return nil, err
	}
	return &MultiplyExpr{left: left, right: right, typ: typ}, nil
}

func (e *MultiplyExpr) DataType() sql.ColumnType { return e.typ }

func (e *MultiplyExpr) materialize(l, r sql.Column) sql.Column {
	return materializeArith(e.typ, l, r,
		func(a, b *big.Int) *big.Int { return a.Mul(a, b) },
		func(a, b *fr.Element) fr.Element { var v fr.Element; v.Mul(a, b); return v },
	)
}

func (e *MultiplyExpr) FirstRoundEvaluate(tbl *sql.Table) (sql.Column, error) {
	l, err := e.left.FirstRoundEvaluate(tbl)
	if err != nil {
		return sql.Column{}, err
	}
	r, err := e.right.FirstRoundEvaluate(tbl)
	if err != nil {
		return sql.Column{}, err
	}
	return e.materialize(l, r), nil
}

func (e *MultiplyExpr) FinalRoundEvaluate(b *proof.FinalRoundBuilder, pc *proof.ProverContext) (sql.Column, error) {
	l, err := e.left.FinalRoundEvaluate(b, pc)
	if err != nil {
		return sql.Column{}, err
	}
	r, err := e.right.FinalRoundEvaluate(b, pc)
	if err != nil {
		return sql.Column{}, err
	}
	out := e.materialize(l, r)
	res := out.Scalars()
	b.ProduceIntermediateMLE(res)
	b.ProduceSumcheckSubpolynomial(proof.Identity, []proof.ProductTerm{
		proof.NewTerm(1, res),
		proof.NewTerm(-1, l.Scalars(), r.Scalars()),
	})
	return out, nil
}

func (e *MultiplyExpr) VerifierEvaluate(b *proof.VerificationBuilder, ctx *proof.EvalContext) (proof.Eval, error) {
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

func (e *MultiplyExpr) CollectColumnRefs(dst map[sql.ColumnRef]struct{}) {
	e.left.CollectColumnRefs(dst)
	e.right.CollectColumnRefs(dst)
}

func (e *MultiplyExpr) BindParams(params []sql.LiteralValue) error {
	if err := e.left.BindParams(params); err != nil {
		return err
	}
	return e.right.BindParams(params)
}
