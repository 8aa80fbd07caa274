// Package plans provides the provable query plan nodes: table scans,
// projection, filtering, aggregation, slicing, union and joins. Each node
// implements the three-phase proof.Plan contract; the prover and verifier
// walks must touch their builders in identical order, so every node fixes one
// canonical production order and mirrors it exactly on the verifier side.
package plans

import (
	"fmt"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"

	"github.com/verisql/verisql/mle"
	"github.com/verisql/verisql/proof"
	"github.com/verisql/verisql/sql"
)

// AliasedExpr names one output expression of a projection or aggregation.
type AliasedExpr struct {
	Expr  proof.Expr
	Alias string
}

// foldVectors flattens a table into the vectors a multiset argument folds: in
// schema order, each column's value scalars followed by its presence scalars
// when the column is nullable. A nullable column without presence data counts
// as all-present.
func foldVectors(tbl *sql.Table) [][]fr.Element {
	out := make([][]fr.Element, 0, tbl.NumColumns())
	for i := 0; i < tbl.NumColumns(); i++ {
		col := tbl.Column(i)
		out = append(out, col.Scalars())
		if col.Type().Nullable {
			out = append(out, presenceOrOnes(col))
		}
	}
	return out
}

func presenceOrOnes(col sql.Column) []fr.Element {
	if ps := col.PresenceScalars(); ps != nil {
		return ps
	}
	return mle.ChiColumn(col.Len(), col.Len())
}

// foldEvals flattens a plan evaluation the same way foldVectors flattens a
// table, so folds agree between the two sides.
func foldEvals(pe *proof.PlanEval, schema []sql.ColumnField) ([]fr.Element, error) {
	out := make([]fr.Element, 0, len(schema))
	for i, f := range schema {
		ev := pe.ColumnEvals[i]
		out = append(out, ev.Value)
		if f.Type.Nullable {
			if ev.Presence == nil {
				return nil, fmt.Errorf("%w: column %q lacks a presence evaluation", proof.ErrVerification, f.Name)
			}
			out = append(out, *ev.Presence)
		}
	}
	return out, nil
}

// produceTableMLEs registers every column of a committed intermediate table,
// value vector first and presence vector second for nullable columns.
func produceTableMLEs(produce func([]fr.Element), tbl *sql.Table) {
	for i := 0; i < tbl.NumColumns(); i++ {
		col := tbl.Column(i)
		produce(col.Scalars())
		if col.Type().Nullable {
			produce(presenceOrOnes(col))
		}
	}
}

// consumeTableEvals pops the claimed first round evaluations of a committed
// intermediate table, in the order produceTableMLEs registered them.
func consumeTableEvals(b *proof.VerificationBuilder, schema []sql.ColumnField) []proof.Eval {
	evals := make([]proof.Eval, len(schema))
	for i, f := range schema {
		evals[i] = proof.Eval{Value: b.ConsumeFirstRoundMLE()}
		if f.Type.Nullable {
			p := b.ConsumeFirstRoundMLE()
			evals[i].Presence = &p
		}
	}
	return evals
}

func evalValues(evals []proof.Eval, schema []sql.ColumnField) []fr.Element {
	out := make([]fr.Element, 0, len(schema))
	for i, f := range schema {
		out = append(out, evals[i].Value)
		if f.Type.Nullable {
			out = append(out, *evals[i].Presence)
		}
	}
	return out
}

var halfModulus = new(big.Int).Rsh(fr.Modulus(), 1)

// signedScalar interprets a field element as a signed integer in
// (-p/2, p/2].
func signedScalar(v *fr.Element) *big.Int {
	b := new(big.Int)
	v.BigInt(b)
	if b.Cmp(halfModulus) > 0 {
		b.Sub(b, fr.Modulus())
	}
	return b
}

// compareRows orders two rows of an orderable column by value.
func compareRows(col sql.Column, i, j int) int {
	switch col.Type().Kind {
	case sql.KindInt128, sql.KindDecimal75:
		bigs := col.Bigs()
		return bigs[i].Cmp(&bigs[j])
	case sql.KindScalar:
		scalars := col.ScalarValues()
		return signedScalar(&scalars[i]).Cmp(signedScalar(&scalars[j]))
	default:
		ints := col.Ints()
		switch {
		case ints[i] < ints[j]:
			return -1
		case ints[i] > ints[j]:
			return 1
		}
		return 0
	}
}

func requireOrderableKey(t sql.ColumnType, op string) error {
	if t.Nullable {
		return fmt.Errorf("plans: %s key cannot be nullable", op)
	}
	if !t.IsOrderable() {
		return fmt.Errorf("plans: %s key type %s is not orderable", op, t)
	}
	return nil
}
