package plans

import (
	"math/big"
	"testing"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/verisql/verisql/commitment/pedersen"
	"github.com/verisql/verisql/proof"
	"github.com/verisql/verisql/proof/exprs"
	"github.com/verisql/verisql/sql"
)

func testAccessor(t *testing.T, tables map[sql.TableRef]*sql.Table) (*sql.InMemoryAccessor, *pedersen.Scheme) {
	t.Helper()
	setup, err := pedersen.NewSetup(64)
	require.NoError(t, err)
	scheme := pedersen.NewScheme(setup)
	acc := sql.NewInMemoryAccessor()
	for ref, tbl := range tables {
		acc.AddTable(ref, tbl)
	}
	require.NoError(t, acc.Commit(scheme))
	return acc, scheme
}

func mustTable(t *testing.T, names []string, cols []sql.Column) *sql.Table {
	t.Helper()
	tbl, err := sql.TableFromColumns(names, cols)
	require.NoError(t, err)
	return tbl
}

func proveAndVerify(t *testing.T, plan proof.Plan, acc *sql.InMemoryAccessor, scheme *pedersen.Scheme) *sql.Table {
	t.Helper()
	res, err := proof.Prove(plan, acc, scheme, nil)
	require.NoError(t, err)
	verified, err := proof.Verify(res, plan, acc, scheme, nil)
	require.NoError(t, err)
	return verified
}

func scalars64(vs ...int64) []fr.Element {
	out := make([]fr.Element, len(vs))
	for i, v := range vs {
		out[i].SetInt64(v)
	}
	return out
}

var testRef = sql.TableRef{Schema: "public", Name: "t"}

var varcharType = sql.ColumnType{Kind: sql.KindVarChar}

func filterProjectionFixture(t *testing.T) (proof.Plan, *sql.InMemoryAccessor, *pedersen.Scheme) {
	t.Helper()
	tbl := mustTable(t, []string{"a", "b"}, []sql.Column{
		sql.NewBigIntColumn([]int64{1, 2, 3, 2}),
		sql.NewVarCharColumn([]string{"hi", "hello", "there", "world"}),
	})
	acc, scheme := testAccessor(t, map[sql.TableRef]*sql.Table{testRef: tbl})

	scan, err := NewTable(testRef, tbl.Schema())
	require.NoError(t, err)
	pred, err := exprs.NewEquals(exprs.NewColumn("a", bigIntType), exprs.NewLiteral(sql.NewBigIntLiteral(2)))
	require.NoError(t, err)
	filter, err := NewFilter(scan, pred)
	require.NoError(t, err)
	plan, err := NewProjection(filter, []AliasedExpr{{Expr: exprs.NewColumn("b", varcharType), Alias: "b"}})
	require.NoError(t, err)
	return plan, acc, scheme
}

func TestFilterProjectionQuery(t *testing.T) {
	plan, acc, scheme := filterProjectionFixture(t)

	res, err := proof.Prove(plan, acc, scheme, nil)
	require.NoError(t, err)
	verified, err := proof.Verify(res, plan, acc, scheme, nil)
	require.NoError(t, err)
	require.Equal(t, 2, verified.NumRows())
	require.Empty(t, cmp.Diff([]string{"hello", "world"}, verified.Column(0).Strings()))

	// Verification is idempotent.
	again, err := proof.Verify(res, plan, acc, scheme, nil)
	require.NoError(t, err)
	require.Empty(t, cmp.Diff(verified.Column(0).Strings(), again.Column(0).Strings()))
}

func TestVerifyRejectsTamperedResult(t *testing.T) {
	plan, acc, scheme := filterProjectionFixture(t)

	res, err := proof.Prove(plan, acc, scheme, nil)
	require.NoError(t, err)

	forged := mustTable(t, []string{"b"}, []sql.Column{sql.NewVarCharColumn([]string{"hello", "there"})})
	_, err = proof.Verify(&proof.VerifiableQueryResult{Result: forged, Proof: res.Proof}, plan, acc, scheme, nil)
	require.ErrorIs(t, err, proof.ErrVerification)
}

func TestVerifyRejectsTamperedProof(t *testing.T) {
	plan, acc, scheme := filterProjectionFixture(t)

	res, err := proof.Prove(plan, acc, scheme, nil)
	require.NoError(t, err)
	require.NotEmpty(t, res.Proof.FinalRoundEvals)

	one := fr.One()
	res.Proof.FinalRoundEvals[0].Add(&res.Proof.FinalRoundEvals[0], &one)
	_, err = proof.Verify(res, plan, acc, scheme, nil)
	require.ErrorIs(t, err, proof.ErrVerification)
}

func TestVerifyRejectsDifferentPredicate(t *testing.T) {
	tbl := mustTable(t, []string{"a", "b"}, []sql.Column{
		sql.NewBigIntColumn([]int64{1, 2, 3, 2}),
		sql.NewBigIntColumn([]int64{10, 20, 30, 40}),
	})
	acc, scheme := testAccessor(t, map[sql.TableRef]*sql.Table{testRef: tbl})

	scan, err := NewTable(testRef, tbl.Schema())
	require.NoError(t, err)
	makePlan := func(want int64) proof.Plan {
		pred, err := exprs.NewEquals(exprs.NewColumn("a", bigIntType), exprs.NewLiteral(sql.NewBigIntLiteral(want)))
		require.NoError(t, err)
		filter, err := NewFilter(scan, pred)
		require.NoError(t, err)
		plan, err := NewProjection(filter, []AliasedExpr{{Expr: exprs.NewColumn("b", bigIntType), Alias: "b"}})
		require.NoError(t, err)
		return plan
	}

	res, err := proof.Prove(makePlan(2), acc, scheme, nil)
	require.NoError(t, err)
	_, err = proof.Verify(res, makePlan(3), acc, scheme, nil)
	require.ErrorIs(t, err, proof.ErrVerification)
}

func TestFilterEmptyResult(t *testing.T) {
	tbl := mustTable(t, []string{"a"}, []sql.Column{
		sql.NewBigIntColumn([]int64{1, 2, 3}),
	})
	acc, scheme := testAccessor(t, map[sql.TableRef]*sql.Table{testRef: tbl})

	scan, err := NewTable(testRef, tbl.Schema())
	require.NoError(t, err)
	pred, err := exprs.NewEquals(exprs.NewColumn("a", bigIntType), exprs.NewLiteral(sql.NewBigIntLiteral(99)))
	require.NoError(t, err)
	plan, err := NewFilter(scan, pred)
	require.NoError(t, err)

	verified := proveAndVerify(t, plan, acc, scheme)
	require.Equal(t, 0, verified.NumRows())
}

func TestGroupByCountEmptyTable(t *testing.T) {
	tbl := mustTable(t, []string{"a"}, []sql.Column{sql.NewBigIntColumn(nil)})
	acc, scheme := testAccessor(t, map[sql.TableRef]*sql.Table{testRef: tbl})

	scan, err := NewTable(testRef, tbl.Schema())
	require.NoError(t, err)
	plan, err := NewGroupBy(scan, nil, nil, "count")
	require.NoError(t, err)

	verified := proveAndVerify(t, plan, acc, scheme)
	require.Equal(t, 1, verified.NumRows())
	require.Empty(t, cmp.Diff([]int64{0}, verified.Column(0).Ints()))
}

func TestGroupByKeyedSumAndCount(t *testing.T) {
	tbl := mustTable(t, []string{"k", "v"}, []sql.Column{
		sql.NewBigIntColumn([]int64{2, 1, 2, 3, 1}),
		sql.NewBigIntColumn([]int64{10, 5, 20, 7, 5}),
	})
	acc, scheme := testAccessor(t, map[sql.TableRef]*sql.Table{testRef: tbl})

	scan, err := NewTable(testRef, tbl.Schema())
	require.NoError(t, err)
	plan, err := NewGroupBy(scan,
		&AliasedExpr{Expr: exprs.NewColumn("k", bigIntType), Alias: "k"},
		[]AliasedExpr{{Expr: exprs.NewColumn("v", bigIntType), Alias: "total"}},
		"count")
	require.NoError(t, err)

	verified := proveAndVerify(t, plan, acc, scheme)
	require.Equal(t, 3, verified.NumRows())
	require.Empty(t, cmp.Diff([]int64{1, 2, 3}, verified.Column(0).Ints()))
	require.Empty(t, cmp.Diff(scalars64(10, 30, 7), verified.Column(1).ScalarValues()))
	require.Empty(t, cmp.Diff([]int64{2, 2, 1}, verified.Column(2).Ints()))
}

func TestSliceWindow(t *testing.T) {
	tbl := mustTable(t, []string{"x"}, []sql.Column{
		sql.NewBigIntColumn([]int64{10, 20, 30, 40, 50}),
	})
	acc, scheme := testAccessor(t, map[sql.TableRef]*sql.Table{testRef: tbl})

	scan, err := NewTable(testRef, tbl.Schema())
	require.NoError(t, err)

	fetch := 2
	plan, err := NewSlice(scan, 1, &fetch)
	require.NoError(t, err)
	verified := proveAndVerify(t, plan, acc, scheme)
	require.Empty(t, cmp.Diff([]int64{20, 30}, verified.Column(0).Ints()))

	// Skipping past the end is a valid empty window.
	past, err := NewSlice(scan, 9, nil)
	require.NoError(t, err)
	verified = proveAndVerify(t, past, acc, scheme)
	require.Equal(t, 0, verified.NumRows())

	// No fetch bound keeps the tail.
	tail, err := NewSlice(scan, 3, nil)
	require.NoError(t, err)
	verified = proveAndVerify(t, tail, acc, scheme)
	require.Empty(t, cmp.Diff([]int64{40, 50}, verified.Column(0).Ints()))
}

func TestUnionConcatenates(t *testing.T) {
	ref1 := sql.TableRef{Schema: "public", Name: "t1"}
	ref2 := sql.TableRef{Schema: "public", Name: "t2"}
	t1 := mustTable(t, []string{"x"}, []sql.Column{sql.NewBigIntColumn([]int64{1, 2})})
	t2 := mustTable(t, []string{"x"}, []sql.Column{sql.NewBigIntColumn([]int64{3})})
	acc, scheme := testAccessor(t, map[sql.TableRef]*sql.Table{ref1: t1, ref2: t2})

	scan1, err := NewTable(ref1, t1.Schema())
	require.NoError(t, err)
	scan2, err := NewTable(ref2, t2.Schema())
	require.NoError(t, err)
	plan, err := NewUnion(scan1, scan2)
	require.NoError(t, err)

	verified := proveAndVerify(t, plan, acc, scheme)
	require.Empty(t, cmp.Diff([]int64{1, 2, 3}, verified.Column(0).Ints()))
}

func TestJoinOnUniqueKeys(t *testing.T) {
	lref := sql.TableRef{Schema: "public", Name: "l"}
	rref := sql.TableRef{Schema: "public", Name: "r"}
	l := mustTable(t, []string{"id", "a"}, []sql.Column{
		sql.NewBigIntColumn([]int64{1, 2, 3}),
		sql.NewBigIntColumn([]int64{10, 20, 30}),
	})
	r := mustTable(t, []string{"id", "b"}, []sql.Column{
		sql.NewBigIntColumn([]int64{2, 3, 4}),
		sql.NewBigIntColumn([]int64{200, 300, 400}),
	})
	acc, scheme := testAccessor(t, map[sql.TableRef]*sql.Table{lref: l, rref: r})

	lscan, err := NewTable(lref, l.Schema())
	require.NoError(t, err)
	rscan, err := NewTable(rref, r.Schema())
	require.NoError(t, err)
	plan, err := NewJoin(lscan, rscan, "id", "id")
	require.NoError(t, err)

	verified := proveAndVerify(t, plan, acc, scheme)
	require.Equal(t, []string{"id", "a", "b"}, verified.ColumnNames())
	require.Empty(t, cmp.Diff([]int64{2, 3}, verified.Column(0).Ints()))
	require.Empty(t, cmp.Diff([]int64{20, 30}, verified.Column(1).Ints()))
	require.Empty(t, cmp.Diff([]int64{200, 300}, verified.Column(2).Ints()))
}

func TestJoinRejectsDuplicateKey(t *testing.T) {
	lref := sql.TableRef{Schema: "public", Name: "l"}
	rref := sql.TableRef{Schema: "public", Name: "r"}
	l := mustTable(t, []string{"id"}, []sql.Column{sql.NewBigIntColumn([]int64{1, 1})})
	r := mustTable(t, []string{"id", "b"}, []sql.Column{
		sql.NewBigIntColumn([]int64{1}),
		sql.NewBigIntColumn([]int64{100}),
	})
	acc, scheme := testAccessor(t, map[sql.TableRef]*sql.Table{lref: l, rref: r})

	lscan, err := NewTable(lref, l.Schema())
	require.NoError(t, err)
	rscan, err := NewTable(rref, r.Schema())
	require.NoError(t, err)
	plan, err := NewJoin(lscan, rscan, "id", "id")
	require.NoError(t, err)

	_, err = proof.Prove(plan, acc, scheme, nil)
	require.ErrorContains(t, err, "join key is not unique")
}

func TestInequalityFilterAroundZero(t *testing.T) {
	tbl := mustTable(t, []string{"x"}, []sql.Column{
		sql.NewBigIntColumn([]int64{-1, 0, 1}),
	})
	acc, scheme := testAccessor(t, map[sql.TableRef]*sql.Table{testRef: tbl})

	scan, err := NewTable(testRef, tbl.Schema())
	require.NoError(t, err)
	pred, err := exprs.NewLessThan(exprs.NewColumn("x", bigIntType), exprs.NewLiteral(sql.NewBigIntLiteral(1)))
	require.NoError(t, err)
	plan, err := NewFilter(scan, pred)
	require.NoError(t, err)

	verified := proveAndVerify(t, plan, acc, scheme)
	require.Empty(t, cmp.Diff([]int64{-1, 0}, verified.Column(0).Ints()))
}

func TestFilterOnNullableBoolean(t *testing.T) {
	flagType := sql.ColumnType{Kind: sql.KindBoolean, Nullable: true}
	tbl := mustTable(t, []string{"flag", "x"}, []sql.Column{
		sql.NewBooleanColumn([]bool{true, true, false}).WithPresence([]bool{true, false, true}),
		sql.NewBigIntColumn([]int64{1, 2, 3}),
	})
	acc, scheme := testAccessor(t, map[sql.TableRef]*sql.Table{testRef: tbl})

	scan, err := NewTable(testRef, tbl.Schema())
	require.NoError(t, err)
	filter, err := NewFilter(scan, exprs.NewColumn("flag", flagType))
	require.NoError(t, err)
	plan, err := NewProjection(filter, []AliasedExpr{{Expr: exprs.NewColumn("x", bigIntType), Alias: "x"}})
	require.NoError(t, err)

	// NULL predicate rows are dropped, same as false ones.
	verified := proveAndVerify(t, plan, acc, scheme)
	require.Empty(t, cmp.Diff([]int64{1}, verified.Column(0).Ints()))
}

func TestFilterIsNotNull(t *testing.T) {
	vType := sql.ColumnType{Kind: sql.KindBigInt, Nullable: true}
	tbl := mustTable(t, []string{"v"}, []sql.Column{
		sql.NewBigIntColumn([]int64{7, 8, 9}).WithPresence([]bool{true, false, true}),
	})
	acc, scheme := testAccessor(t, map[sql.TableRef]*sql.Table{testRef: tbl})

	scan, err := NewTable(testRef, tbl.Schema())
	require.NoError(t, err)
	pred, err := exprs.NewIsNotNull(exprs.NewColumn("v", vType))
	require.NoError(t, err)
	plan, err := NewFilter(scan, pred)
	require.NoError(t, err)

	verified := proveAndVerify(t, plan, acc, scheme)
	require.Equal(t, 2, verified.NumRows())
	require.Empty(t, cmp.Diff([]int64{7, 9}, verified.Column(0).Ints()))
}

func TestArithmeticProjection(t *testing.T) {
	tbl := mustTable(t, []string{"a", "b"}, []sql.Column{
		sql.NewBigIntColumn([]int64{1, 2}),
		sql.NewBigIntColumn([]int64{10, 20}),
	})
	acc, scheme := testAccessor(t, map[sql.TableRef]*sql.Table{testRef: tbl})

	scan, err := NewTable(testRef, tbl.Schema())
	require.NoError(t, err)
	sum, err := exprs.NewAdd(exprs.NewColumn("a", bigIntType), exprs.NewColumn("b", bigIntType))
	require.NoError(t, err)
	plan, err := NewProjection(scan, []AliasedExpr{{Expr: sum, Alias: "s"}})
	require.NoError(t, err)

	verified := proveAndVerify(t, plan, acc, scheme)
	require.Equal(t, sql.KindInt128, verified.Column(0).Type().Kind)
	bigs := verified.Column(0).Bigs()
	require.Len(t, bigs, 2)
	require.Zero(t, bigs[0].Cmp(big.NewInt(11)))
	require.Zero(t, bigs[1].Cmp(big.NewInt(22)))
}

func TestSerializationRoundTrip(t *testing.T) {
	tbl := mustTable(t, []string{"a", "b"}, []sql.Column{
		sql.NewBigIntColumn([]int64{1, 2, 3, 2}),
		sql.NewBigIntColumn([]int64{10, 20, 30, 40}),
	})
	acc, scheme := testAccessor(t, map[sql.TableRef]*sql.Table{testRef: tbl})

	scan, err := NewTable(testRef, tbl.Schema())
	require.NoError(t, err)
	pred, err := exprs.NewEquals(exprs.NewColumn("a", bigIntType), exprs.NewLiteral(sql.NewBigIntLiteral(2)))
	require.NoError(t, err)
	plan, err := NewFilter(scan, pred)
	require.NoError(t, err)

	res, err := proof.Prove(plan, acc, scheme, nil)
	require.NoError(t, err)
	data, err := res.MarshalBinary()
	require.NoError(t, err)

	var decoded proof.VerifiableQueryResult
	require.NoError(t, decoded.UnmarshalBinary(data))
	verified, err := proof.Verify(&decoded, plan, acc, scheme, nil)
	require.NoError(t, err)
	require.Empty(t, cmp.Diff([]int64{2, 2}, verified.Column(0).Ints()))

	var truncated proof.VerifiableQueryResult
	require.Error(t, truncated.UnmarshalBinary(data[:len(data)/2]))
}

func TestAbsProjection(t *testing.T) {
	tbl := mustTable(t, []string{"a"}, []sql.Column{
		sql.NewBigIntColumn([]int64{-3, 5, -7}),
	})
	acc, scheme := testAccessor(t, map[sql.TableRef]*sql.Table{testRef: tbl})

	scan, err := NewTable(testRef, tbl.Schema())
	require.NoError(t, err)
	abs, err := exprs.NewAbs(exprs.NewColumn("a", bigIntType))
	require.NoError(t, err)
	plan, err := NewProjection(scan, []AliasedExpr{{Expr: abs, Alias: "m"}})
	require.NoError(t, err)

	verified := proveAndVerify(t, plan, acc, scheme)
	bigs := verified.Column(0).Bigs()
	require.Len(t, bigs, 3)
	require.Equal(t, int64(3), bigs[0].Int64())
	require.Equal(t, int64(5), bigs[1].Int64())
	require.Equal(t, int64(7), bigs[2].Int64())
}
