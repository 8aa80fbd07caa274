// Package exprs provides the provable expression nodes: column and literal
// leaves, placeholders, boolean logic, comparisons, arithmetic, casts and the
// NULL-handling operators. Constructors type-check their operands; a node
// that constructs successfully evaluates without type errors.
package exprs

import (
	"fmt"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"

	"github.com/verisql/verisql/proof"
	"github.com/verisql/verisql/sql"
)

func requireNonNullable(e proof.Expr, op string) error {
	if e.DataType().Nullable {
		return fmt.Errorf("exprs: %s does not accept nullable operands, wrap them with IsTrue/IsNull first", op)
	}
	return nil
}

func requireBoolean(e proof.Expr, op string) error {
	if err := requireNonNullable(e, op); err != nil {
		return err
	}
	if e.DataType().Kind != sql.KindBoolean {
		return fmt.Errorf("exprs: %s requires boolean operands, got %s", op, e.DataType())
	}
	return nil
}

func scaleOf(t sql.ColumnType) int8 {
	if t.Kind == sql.KindDecimal75 {
		return t.Scale
	}
	return 0
}

// requireComparable checks that two operands support = comparison.
func requireComparable(l, r proof.Expr, op string) error {
	if err := requireNonNullable(l, op); err != nil {
		return err
	}
	if err := requireNonNullable(r, op); err != nil {
		return err
	}
	lt, rt := l.DataType(), r.DataType()
	if lt.IsNumeric() && rt.IsNumeric() {
		if scaleOf(lt) != scaleOf(rt) {
			return fmt.Errorf("exprs: %s scale mismatch: %s vs %s", op, lt, rt)
		}
		return nil
	}
	if lt.Kind == rt.Kind {
		return nil
	}
	return fmt.Errorf("exprs: %s cannot compare %s with %s", op, lt, rt)
}

// bigOf reads row i of a numeric, non-scalar column as a big integer.
func bigOf(col sql.Column, i int) *big.Int {
	switch col.Type().Kind {
	case sql.KindInt128, sql.KindDecimal75:
		return new(big.Int).Set(&col.Bigs()[i])
	default:
		return big.NewInt(col.Ints()[i])
	}
}

// ColumnExpr reads one column of the working table by name. Base column
// references are collected by the scanning plan node, not here, so the same
// node works over derived tables.
type ColumnExpr struct {
	name string
	typ  sql.ColumnType
}

// NewColumn builds a column reference into the working table.
func NewColumn(name string, typ sql.ColumnType) *ColumnExpr {
	return &ColumnExpr{name: name, typ: typ}
}

// NewColumnRef builds a column reference from a base table reference.
func NewColumnRef(ref sql.ColumnRef) *ColumnExpr {
	return &ColumnExpr{name: ref.Name, typ: ref.Type}
}

func (e *ColumnExpr) DataType() sql.ColumnType { return e.typ }

func (e *ColumnExpr) FirstRoundEvaluate(tbl *sql.Table) (sql.Column, error) {
	col, ok := tbl.ColumnByName(e.name)
	if !ok {
		panic(fmt.Sprintf("exprs: column %q missing from working table", e.name))
	}
	return col, nil
}

func (e *ColumnExpr) FinalRoundEvaluate(b *proof.FinalRoundBuilder, pc *proof.ProverContext) (sql.Column, error) {
	return e.FirstRoundEvaluate(pc.Table)
}

func (e *ColumnExpr) VerifierEvaluate(b *proof.VerificationBuilder, ctx *proof.EvalContext) (proof.Eval, error) {
	ev, ok := ctx.ColumnEvals[e.name]
	if !ok {
		panic(fmt.Sprintf("exprs: column %q missing from evaluation context", e.name))
	}
	return ev, nil
}

func (e *ColumnExpr) CollectColumnRefs(map[sql.ColumnRef]struct{}) {}

func (e *ColumnExpr) BindParams([]sql.LiteralValue) error { return nil }

// LiteralExpr is a typed constant broadcast over the working table's rows.
type LiteralExpr struct {
	value sql.LiteralValue
}

// NewLiteral builds a constant expression.
func NewLiteral(value sql.LiteralValue) *LiteralExpr {
	return &LiteralExpr{value: value}
}

func (e *LiteralExpr) DataType() sql.ColumnType { return e.value.Type() }

func (e *LiteralExpr) FirstRoundEvaluate(tbl *sql.Table) (sql.Column, error) {
	return e.value.Column(tbl.NumRows()), nil
}

func (e *LiteralExpr) FinalRoundEvaluate(b *proof.FinalRoundBuilder, pc *proof.ProverContext) (sql.Column, error) {
	return e.value.Column(pc.Table.NumRows()), nil
}

func (e *LiteralExpr) VerifierEvaluate(b *proof.VerificationBuilder, ctx *proof.EvalContext) (proof.Eval, error) {
	var v fr.Element
	s := e.value.Scalar()
	v.Mul(&s, &ctx.ChiEval)
	return proof.Eval{Value: v}, nil
}

func (e *LiteralExpr) CollectColumnRefs(map[sql.ColumnRef]struct{}) {}

func (e *LiteralExpr) BindParams([]sql.LiteralValue) error { return nil }

// PlaceholderExpr is a query parameter, bound before proving or verifying.
// Positions are 1-based, mirroring $1-style SQL placeholders.
type PlaceholderExpr struct {
	position int
	typ      sql.ColumnType
	bound    *sql.LiteralValue
}

// NewPlaceholder builds an unbound parameter of a declared type.
func NewPlaceholder(position int, typ sql.ColumnType) (*PlaceholderExpr, error) {
	if position < 1 {
		return nil, fmt.Errorf("%w: position %d", proof.ErrPlaceholder, position)
	}
	if typ.Nullable {
		return nil, fmt.Errorf("%w: placeholders cannot be nullable", proof.ErrPlaceholder)
	}
	return &PlaceholderExpr{position: position, typ: typ}, nil
}

func (e *PlaceholderExpr) DataType() sql.ColumnType { return e.typ }

func (e *PlaceholderExpr) BindParams(params []sql.LiteralValue) error {
	if e.position > len(params) {
		return fmt.Errorf("%w: $%d with %d parameters", proof.ErrPlaceholder, e.position, len(params))
	}
	v := params[e.position-1]
	if !v.Type().EqualIgnoringNullability(e.typ) {
		return fmt.Errorf("%w: $%d expects %s, got %s", proof.ErrPlaceholder, e.position, e.typ, v.Type())
	}
	e.bound = &v
	return nil
}

func (e *PlaceholderExpr) value() (sql.LiteralValue, error) {
	if e.bound == nil {
		return sql.LiteralValue{}, fmt.Errorf("%w: $%d is unbound", proof.ErrPlaceholder, e.position)
	}
	return *e.bound, nil
}

func (e *PlaceholderExpr) FirstRoundEvaluate(tbl *sql.Table) (sql.Column, error) {
	v, err := e.value()
	if err != nil {
		return sql.Column{}, err
	}
	return v.Column(tbl.NumRows()), nil
}

func (e *PlaceholderExpr) FinalRoundEvaluate(b *proof.FinalRoundBuilder, pc *proof.ProverContext) (sql.Column, error) {
	return e.FirstRoundEvaluate(pc.Table)
}

func (e *PlaceholderExpr) VerifierEvaluate(b *proof.VerificationBuilder, ctx *proof.EvalContext) (proof.Eval, error) {
	v, err := e.value()
	if err != nil {
		return proof.Eval{}, err
	}
	var out fr.Element
	s := v.Scalar()
	out.Mul(&s, &ctx.ChiEval)
	return proof.Eval{Value: out}, nil
}

func (e *PlaceholderExpr) CollectColumnRefs(map[sql.ColumnRef]struct{}) {}
