package exprs

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/verisql/verisql/proof"
	"github.com/verisql/verisql/sql"
)

var (
	bigIntCol   = NewColumn("a", sql.ColumnType{Kind: sql.KindBigInt})
	boolCol     = NewColumn("flag", sql.ColumnType{Kind: sql.KindBoolean})
	varcharCol  = NewColumn("s", sql.ColumnType{Kind: sql.KindVarChar})
	nullableCol = NewColumn("n", sql.ColumnType{Kind: sql.KindBigInt, Nullable: true})
)

func decimalCol(name string, scale int8) *ColumnExpr {
	return NewColumn(name, sql.ColumnType{Kind: sql.KindDecimal75, Precision: 20, Scale: scale})
}

func TestNewEqualsTypeChecks(t *testing.T) {
	_, err := NewEquals(bigIntCol, NewLiteral(sql.NewBigIntLiteral(1)))
	require.NoError(t, err)

	_, err = NewEquals(nullableCol, NewLiteral(sql.NewBigIntLiteral(1)))
	require.ErrorContains(t, err, "nullable")

	_, err = NewEquals(bigIntCol, varcharCol)
	require.ErrorContains(t, err, "cannot compare")

	_, err = NewEquals(decimalCol("d", 2), decimalCol("e", 3))
	require.ErrorContains(t, err, "scale mismatch")

	// Same-kind non-numeric operands compare by encoding.
	_, err = NewEquals(varcharCol, NewLiteral(sql.NewVarCharLiteral("x")))
	require.NoError(t, err)
}

func TestNewLessThanRequiresOrderable(t *testing.T) {
	_, err := NewLessThan(bigIntCol, NewLiteral(sql.NewBigIntLiteral(1)))
	require.NoError(t, err)

	_, err = NewLessThan(varcharCol, NewLiteral(sql.NewVarCharLiteral("x")))
	require.ErrorContains(t, err, "orderable")

	lte, err := NewLessThanOrEqual(bigIntCol, NewLiteral(sql.NewBigIntLiteral(1)))
	require.NoError(t, err)
	require.Equal(t, sql.KindBoolean, lte.DataType().Kind)

	_, err = NewGreaterThanOrEqual(varcharCol, varcharCol)
	require.ErrorContains(t, err, "orderable")
}

func TestArithmeticTypeRules(t *testing.T) {
	sum, err := NewAdd(bigIntCol, bigIntCol)
	require.NoError(t, err)
	require.Equal(t, sql.KindInt128, sum.DataType().Kind)

	_, err = NewAdd(bigIntCol, boolCol)
	require.ErrorContains(t, err, "requires numeric")

	_, err = NewAdd(decimalCol("d", 2), decimalCol("e", 3))
	require.ErrorContains(t, err, "scale mismatch")

	dsum, err := NewSubtract(decimalCol("d", 2), decimalCol("e", 2))
	require.NoError(t, err)
	require.Equal(t, sql.KindDecimal75, dsum.DataType().Kind)
	require.Equal(t, int8(2), dsum.DataType().Scale)

	// Multiplication adds scales instead of requiring a match.
	prod, err := NewMultiply(decimalCol("d", 2), decimalCol("e", 3))
	require.NoError(t, err)
	require.Equal(t, int8(5), prod.DataType().Scale)

	_, err = NewMultiply(nullableCol, bigIntCol)
	require.ErrorContains(t, err, "nullable")
}

func TestLogicRequiresBoolean(t *testing.T) {
	_, err := NewNot(boolCol)
	require.NoError(t, err)

	_, err = NewNot(bigIntCol)
	require.ErrorContains(t, err, "requires boolean")

	_, err = NewAnd(boolCol, NewColumn("m", sql.ColumnType{Kind: sql.KindBoolean, Nullable: true}))
	require.ErrorContains(t, err, "nullable")

	_, err = NewOr(boolCol, boolCol)
	require.NoError(t, err)
}

func TestNullHandlingConstructors(t *testing.T) {
	wrapped, err := NewIsTrue(NewColumn("m", sql.ColumnType{Kind: sql.KindBoolean, Nullable: true}))
	require.NoError(t, err)
	require.False(t, wrapped.DataType().Nullable)
	require.Equal(t, sql.KindBoolean, wrapped.DataType().Kind)

	_, err = NewIsTrue(bigIntCol)
	require.ErrorContains(t, err, "boolean")

	isNull, err := NewIsNull(nullableCol)
	require.NoError(t, err)
	require.Equal(t, sql.KindBoolean, isNull.DataType().Kind)

	notNull, err := NewIsNotNull(nullableCol)
	require.NoError(t, err)
	require.Equal(t, sql.KindBoolean, notNull.DataType().Kind)
}

func TestNewPlaceholder(t *testing.T) {
	p, err := NewPlaceholder(1, sql.ColumnType{Kind: sql.KindBigInt})
	require.NoError(t, err)
	require.Equal(t, sql.KindBigInt, p.DataType().Kind)

	_, err = NewPlaceholder(0, sql.ColumnType{Kind: sql.KindBigInt})
	require.ErrorIs(t, err, proof.ErrPlaceholder)

	_, err = NewPlaceholder(1, sql.ColumnType{Kind: sql.KindBigInt, Nullable: true})
	require.ErrorIs(t, err, proof.ErrPlaceholder)

	require.ErrorIs(t, p.BindParams(nil), proof.ErrPlaceholder)
	require.ErrorIs(t, p.BindParams([]sql.LiteralValue{sql.NewBooleanLiteral(true)}), proof.ErrPlaceholder)
	require.NoError(t, p.BindParams([]sql.LiteralValue{sql.NewBigIntLiteral(42)}))
}

func TestNewCastRules(t *testing.T) {
	widened, err := NewCast(NewColumn("i", sql.ColumnType{Kind: sql.KindInt}), sql.KindBigInt)
	require.NoError(t, err)
	require.Equal(t, sql.KindBigInt, widened.DataType().Kind)

	_, err = NewCast(bigIntCol, sql.KindInt)
	require.ErrorContains(t, err, "cannot cast")

	_, err = NewCast(decimalCol("d", 2), sql.KindScalar)
	require.ErrorContains(t, err, "scaling cast")

	_, err = NewCast(varcharCol, sql.KindScalar)
	require.ErrorContains(t, err, "cannot cast")

	asInt, err := NewCast(boolCol, sql.KindBigInt)
	require.NoError(t, err)
	require.Equal(t, sql.KindBigInt, asInt.DataType().Kind)
}

func TestNewScalingCastRules(t *testing.T) {
	scaled, err := NewScalingCast(bigIntCol, 20, 3)
	require.NoError(t, err)
	require.Equal(t, sql.KindDecimal75, scaled.DataType().Kind)
	require.Equal(t, int8(3), scaled.DataType().Scale)

	_, err = NewScalingCast(decimalCol("d", 4), 20, 2)
	require.ErrorContains(t, err, "cannot narrow scale")

	_, err = NewScalingCast(varcharCol, 20, 2)
	require.ErrorContains(t, err, "cannot scale")
}

func TestFirstRoundEvaluation(t *testing.T) {
	tbl, err := sql.TableFromColumns([]string{"a", "b"}, []sql.Column{
		sql.NewBigIntColumn([]int64{3, -4}),
		sql.NewBigIntColumn([]int64{5, 6}),
	})
	require.NoError(t, err)

	sum, err := NewAdd(NewColumn("a", sql.ColumnType{Kind: sql.KindBigInt}), NewColumn("b", sql.ColumnType{Kind: sql.KindBigInt}))
	require.NoError(t, err)
	col, err := sum.FirstRoundEvaluate(tbl)
	require.NoError(t, err)
	require.Equal(t, sql.KindInt128, col.Type().Kind)
	bigs := col.Bigs()
	require.Equal(t, int64(8), bigs[0].Int64())
	require.Equal(t, int64(2), bigs[1].Int64())

	lit := NewLiteral(sql.NewBigIntLiteral(7))
	col, err = lit.FirstRoundEvaluate(tbl)
	require.NoError(t, err)
	require.Equal(t, []int64{7, 7}, col.Ints())
}

func TestUnaryTypeRules(t *testing.T) {
	neg, err := NewNegate(bigIntCol)
	require.NoError(t, err)
	require.Equal(t, sql.KindInt128, neg.DataType().Kind)

	abs, err := NewAbs(decimalCol("d", 2))
	require.NoError(t, err)
	require.Equal(t, sql.KindDecimal75, abs.DataType().Kind)
	require.Equal(t, int8(2), abs.DataType().Scale)

	_, err = NewNegate(boolCol)
	require.ErrorContains(t, err, "numeric")

	_, err = NewAbs(nullableCol)
	require.ErrorContains(t, err, "nullable")
}

func TestUnaryFirstRoundEvaluation(t *testing.T) {
	tbl, err := sql.TableFromColumns([]string{"a"}, []sql.Column{
		sql.NewBigIntColumn([]int64{3, -4, 0}),
	})
	require.NoError(t, err)
	col := NewColumn("a", sql.ColumnType{Kind: sql.KindBigInt})

	neg, err := NewNegate(col)
	require.NoError(t, err)
	out, err := neg.FirstRoundEvaluate(tbl)
	require.NoError(t, err)
	bigs := out.Bigs()
	require.Equal(t, int64(-3), bigs[0].Int64())
	require.Equal(t, int64(4), bigs[1].Int64())
	require.Equal(t, int64(0), bigs[2].Int64())

	abs, err := NewAbs(col)
	require.NoError(t, err)
	out, err = abs.FirstRoundEvaluate(tbl)
	require.NoError(t, err)
	bigs = out.Bigs()
	require.Equal(t, int64(3), bigs[0].Int64())
	require.Equal(t, int64(4), bigs[1].Int64())
	require.Equal(t, int64(0), bigs[2].Int64())
}
