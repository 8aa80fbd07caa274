package exprs

import (
	"fmt"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"

	"github.com/verisql/verisql/proof"
	"github.com/verisql/verisql/sql"
)

func intRank(k sql.Kind) int {
	switch k {
	case sql.KindTinyInt:
		return 1
	case sql.KindSmallInt:
		return 2
	case sql.KindInt:
		return 3
	case sql.KindBigInt:
		return 4
	case sql.KindInt128:
		return 5
	}
	return 0
}

// castAllowed reports whether a value-preserving cast exists from one kind to
// another. Only widening casts are provable: the field encoding must not
// change.
func castAllowed(from, to sql.Kind) bool {
	if from == to {
		return true
	}
	if fromRank, toRank := intRank(from), intRank(to); fromRank > 0 && toRank >= fromRank {
		return true
	}
	if to == sql.KindScalar {
		return from != sql.KindVarChar && from != sql.KindVarBinary
	}
	switch from {
	case sql.KindBoolean:
		return intRank(to) > 0
	case sql.KindTimestampTZ:
		return to == sql.KindBigInt || to == sql.KindInt128
	}
	return false
}

// CastExpr widens a value to another kind. The field encoding is unchanged,
// so the node is free on the proof side.
type CastExpr struct {
	inner proof.Expr
	typ   sql.ColumnType
}

// NewCast builds CAST(inner AS kind).
func NewCast(inner proof.Expr, to sql.Kind) (*CastExpr, error) {
	if err := requireNonNullable(inner, "CAST"); err != nil {
		return nil, err
	}
	from := inner.DataType()
	if from.Kind == sql.KindDecimal75 || to == sql.KindDecimal75 {
		return nil, fmt.Errorf("exprs: use a scaling cast for decimal conversions")
	}
	if !castAllowed(from.Kind, to) {
		return nil, fmt.Errorf("exprs: cannot cast %s to %s", from, to)
	}
	return &CastExpr{inner: inner, typ: sql.ColumnType{Kind: to}}, nil
}

func (e *CastExpr) DataType() sql.ColumnType { return e.typ }

// recast rebuilds the column under the target kind, preserving row values.
func (e *CastExpr) recast(col sql.Column) sql.Column {
	n := col.Len()
	switch e.typ.Kind {
	case sql.KindScalar:
		return sql.NewScalarColumn(col.Scalars())
	case sql.KindInt128:
		out := make([]big.Int, n)
		switch col.Type().Kind {
		case sql.KindInt128:
			copy(out, col.Bigs())
		case sql.KindBoolean:
			for i, v := range col.Bools() {
				if v {
					out[i].SetInt64(1)
				}
			}
		default:
			for i, v := range col.Ints() {
				out[i].SetInt64(v)
			}
		}
		return sql.NewInt128Column(out)
	default:
		out := make([]int64, n)
		if col.Type().Kind == sql.KindBoolean {
			for i, v := range col.Bools() {
				if v {
					out[i] = 1
				}
			}
		} else {
			copy(out, col.Ints())
		}
		switch e.typ.Kind {
		case sql.KindTinyInt:
			return sql.NewTinyIntColumn(out)
		case sql.KindSmallInt:
			return sql.NewSmallIntColumn(out)
		case sql.KindInt:
			return sql.NewIntColumn(out)
		default:
			return sql.NewBigIntColumn(out)
		}
	}
}

func (e *CastExpr) FirstRoundEvaluate(tbl *sql.Table) (sql.Column, error) {
	col, err := e.inner.FirstRoundEvaluate(tbl)
	if err != nil {
		return sql.Column{}, err
	}
	return e.recast(col), nil
}

func (e *CastExpr) FinalRoundEvaluate(b *proof.FinalRoundBuilder, pc *proof.ProverContext) (sql.Column, error) {
	col, err := e.inner.FinalRoundEvaluate(b, pc)
	if err != nil {
		return sql.Column{}, err
	}
	return e.recast(col), nil
}

func (e *CastExpr) VerifierEvaluate(b *proof.VerificationBuilder, ctx *proof.EvalContext) (proof.Eval, error) {
	return e.inner.VerifierEvaluate(b, ctx)
}

func (e *CastExpr) CollectColumnRefs(dst map[sql.ColumnRef]struct{}) {
	e.inner.CollectColumnRefs(dst)
}

func (e *CastExpr) BindParams(params []sql.LiteralValue) error {
	return e.inner.BindParams(params)
}

// ScalingCastExpr converts a numeric value to a decimal of larger scale by
// multiplying with a power of ten. Linear: the verifier scales the claimed
// evaluation by the same constant.
type ScalingCastExpr struct {
	inner  proof.Expr
	typ    sql.ColumnType
	factor *big.Int
}

// NewScalingCast builds CAST(inner AS decimal75(precision, scale)).
func NewScalingCast(inner proof.Expr, precision uint8, scale int8) (*ScalingCastExpr, error) {
	if err := requireNonNullable(inner, "CAST"); err != nil {
		return nil, err
	}
	from := inner.DataType()
	if !from.IsNumeric() || from.Kind == sql.KindScalar {
		return nil, fmt.Errorf("exprs: cannot scale %s to a decimal", from)
	}
	if scale < scaleOf(from) {
		return nil, fmt.Errorf("exprs: cannot narrow scale from %d to %d", scaleOf(from), scale)
	}
	factor := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(scale-scaleOf(from))), nil)
	return &ScalingCastExpr{
		inner:  inner,
		typ:    sql.ColumnType{Kind: sql.KindDecimal75, Precision: precision, Scale: scale},
		factor: factor,
	}, nil
}

func (e *ScalingCastExpr) DataType() sql.ColumnType { return e.typ }

func (e *ScalingCastExpr) rescale(col sql.Column) sql.Column {
	out := make([]big.Int, col.Len())
	for i := range out {
		out[i].Mul(bigOf(col, i), e.factor)
	}
	return sql.NewDecimalColumn(e.typ.Precision, e.typ.Scale, out)
}

func (e *ScalingCastExpr) FirstRoundEvaluate(tbl *sql.Table) (sql.Column, error) {
	col, err := e.inner.FirstRoundEvaluate(tbl)
	if err != nil {
		return sql.Column{}, err
	}
	return e.rescale(col), nil
}

func (e *ScalingCastExpr) FinalRoundEvaluate(b *proof.FinalRoundBuilder, pc *proof.ProverContext) (sql.Column, error) {
	col, err := e.inner.FinalRoundEvaluate(b, pc)
	if err != nil {
		return sql.Column{}, err
	}
	return e.rescale(col), nil
}

func (e *ScalingCastExpr) VerifierEvaluate(b *proof.VerificationBuilder, ctx *proof.EvalContext) (proof.Eval, error) {
	inner, err := e.inner.VerifierEvaluate(b, ctx)
	if err != nil {
		return proof.Eval{}, err
	}
	var c, v fr.Element
	c.SetBigInt(e.factor)
	v.Mul(&c, &inner.Value)
	return proof.Eval{Value: v}, nil
}

func (e *ScalingCastExpr) CollectColumnRefs(dst map[sql.ColumnRef]struct{}) {
	e.inner.CollectColumnRefs(dst)
}

func (e *ScalingCastExpr) BindParams(params []sql.LiteralValue) error {
	return e.inner.BindParams(params)
}
