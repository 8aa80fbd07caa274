package plans

import (
	"fmt"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"

	"github.com/verisql/verisql/proof"
	"github.com/verisql/verisql/sql"
)

// TableNode scans a committed base table. It is the leaf every plan tree
// bottoms out in: column data on the prover side, column commitments on the
// verifier side.
type TableNode struct {
	table  sql.TableRef
	fields []sql.ColumnField
}

// NewTable builds a scan of the named columns of a base table.
func NewTable(table sql.TableRef, fields []sql.ColumnField) (*TableNode, error) {
	if len(fields) == 0 {
		return nil, fmt.Errorf("plans: table scan of %s selects no columns", table)
	}
	return &TableNode{table: table, fields: fields}, nil
}

func (p *TableNode) OutputSchema() []sql.ColumnField { return p.fields }

func (p *TableNode) columnRef(f sql.ColumnField) sql.ColumnRef {
	return sql.ColumnRef{Table: p.table, Name: f.Name, Type: f.Type}
}

func (p *TableNode) CollectColumnRefs(dst map[sql.ColumnRef]struct{}) {
	for _, f := range p.fields {
		ref := p.columnRef(f)
		dst[ref] = struct{}{}
		if f.Type.Nullable {
			dst[ref.PresenceRef()] = struct{}{}
		}
	}
}

func (p *TableNode) CollectTableRefs(dst map[sql.TableRef]struct{}) {
	dst[p.table] = struct{}{}
}

func (p *TableNode) BindParams([]sql.LiteralValue) error { return nil }

func (p *TableNode) scan(acc sql.DataAccessor) (*sql.Table, error) {
	tbl := sql.NewTable(acc.TableLength(p.table))
	for _, f := range p.fields {
		if err := tbl.AddColumn(f.Name, acc.Column(p.columnRef(f))); err != nil {
			return nil, err
		}
	}
	return tbl, nil
}

func (p *TableNode) FirstRoundEvaluate(b *proof.FirstRoundBuilder, acc sql.DataAccessor) (*sql.Table, error) {
	return p.scan(acc)
}

func (p *TableNode) FinalRoundEvaluate(b *proof.FinalRoundBuilder, acc sql.DataAccessor) (*sql.Table, error) {
	return p.scan(acc)
}

func (p *TableNode) VerifierEvaluate(b *proof.VerificationBuilder, acc sql.CommitmentAccessor, baseEvals map[sql.ColumnRef]fr.Element) (*proof.PlanEval, error) {
	n := acc.TableLength(p.table)
	evals := make([]proof.Eval, len(p.fields))
	for i, f := range p.fields {
		ref := p.columnRef(f)
		v, ok := baseEvals[ref]
		if !ok {
			return nil, fmt.Errorf("%w: no evaluation for column %s", proof.ErrVerification, ref)
		}
		evals[i] = proof.Eval{Value: v}
		if f.Type.Nullable {
			pv, ok := baseEvals[ref.PresenceRef()]
			if !ok {
				return nil, fmt.Errorf("%w: no presence evaluation for column %s", proof.ErrVerification, ref)
			}
			evals[i].Presence = &pv
		}
	}
	return &proof.PlanEval{
		ColumnEvals:  evals,
		OutputLength: n,
		ChiEval:      b.ChiEvaluation(n),
	}, nil
}

// EmptyNode produces a single row with no columns, the relational unit. It
// anchors queries that read no table, such as constant projections.
type EmptyNode struct{}

// NewEmpty builds the one-row, zero-column plan.
func NewEmpty() *EmptyNode { return &EmptyNode{} }

func (p *EmptyNode) OutputSchema() []sql.ColumnField { return nil }

func (p *EmptyNode) CollectColumnRefs(map[sql.ColumnRef]struct{}) {}

func (p *EmptyNode) CollectTableRefs(map[sql.TableRef]struct{}) {}

func (p *EmptyNode) BindParams([]sql.LiteralValue) error { return nil }

func (p *EmptyNode) FirstRoundEvaluate(b *proof.FirstRoundBuilder, acc sql.DataAccessor) (*sql.Table, error) {
	b.UpdateRangeLength(1)
	return sql.NewTable(1), nil
}

func (p *EmptyNode) FinalRoundEvaluate(b *proof.FinalRoundBuilder, acc sql.DataAccessor) (*sql.Table, error) {
	return sql.NewTable(1), nil
}

func (p *EmptyNode) VerifierEvaluate(b *proof.VerificationBuilder, acc sql.CommitmentAccessor, baseEvals map[sql.ColumnRef]fr.Element) (*proof.PlanEval, error) {
	return &proof.PlanEval{OutputLength: 1, ChiEval: b.ChiEvaluation(1)}, nil
}
