package plans

import (
	"fmt"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"

	"github.com/verisql/verisql/proof"
	"github.com/verisql/verisql/sql"
)

// ProjectionNode evaluates expressions over its input's rows. It is linear:
// output evaluations derive from input evaluations, so nothing new is
// committed here beyond what the expressions themselves commit.
type ProjectionNode struct {
	input proof.Plan
	exprs []AliasedExpr
}

// NewProjection builds a projection of the given expressions over the input.
func NewProjection(input proof.Plan, exprs []AliasedExpr) (*ProjectionNode, error) {
	if len(exprs) == 0 {
		return nil, fmt.Errorf("plans: projection selects no expressions")
	}
	seen := map[string]struct{}{}
	for _, ae := range exprs {
		if _, dup := seen[ae.Alias]; dup {
			return nil, fmt.Errorf("plans: duplicate output column %q", ae.Alias)
		}
		seen[ae.Alias] = struct{}{}
	}
	return &ProjectionNode{input: input, exprs: exprs}, nil
}

func (p *ProjectionNode) OutputSchema() []sql.ColumnField {
	fields := make([]sql.ColumnField, len(p.exprs))
	for i, ae := range p.exprs {
		fields[i] = sql.ColumnField{Name: ae.Alias, Type: ae.Expr.DataType()}
	}
	return fields
}

func (p *ProjectionNode) CollectColumnRefs(dst map[sql.ColumnRef]struct{}) {
	p.input.CollectColumnRefs(dst)
	for _, ae := range p.exprs {
		ae.Expr.CollectColumnRefs(dst)
	}
}

func (p *ProjectionNode) CollectTableRefs(dst map[sql.TableRef]struct{}) {
	p.input.CollectTableRefs(dst)
}

func (p *ProjectionNode) BindParams(params []sql.LiteralValue) error {
	if err := p.input.BindParams(params); err != nil {
		return err
	}
	for _, ae := range p.exprs {
		if err := ae.Expr.BindParams(params); err != nil {
			return err
		}
	}
	return nil
}

func (p *ProjectionNode) FirstRoundEvaluate(b *proof.FirstRoundBuilder, acc sql.DataAccessor) (*sql.Table, error) {
	in, err := p.input.FirstRoundEvaluate(b, acc)
	if err != nil {
		return nil, err
	}
	out := sql.NewTable(in.NumRows())
	for _, ae := range p.exprs {
		col, err := ae.Expr.FirstRoundEvaluate(in)
		if err != nil {
			return nil, err
		}
		if err := out.AddColumn(ae.Alias, col); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (p *ProjectionNode) FinalRoundEvaluate(b *proof.FinalRoundBuilder, acc sql.DataAccessor) (*sql.Table, error) {
	in, err := p.input.FinalRoundEvaluate(b, acc)
	if err != nil {
		return nil, err
	}
	pc := proof.NewProverContext(in)
	out := sql.NewTable(in.NumRows())
	for _, ae := range p.exprs {
		col, err := ae.Expr.FinalRoundEvaluate(b, pc)
		if err != nil {
			return nil, err
		}
		if err := out.AddColumn(ae.Alias, col); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (p *ProjectionNode) VerifierEvaluate(b *proof.VerificationBuilder, acc sql.CommitmentAccessor, baseEvals map[sql.ColumnRef]fr.Element) (*proof.PlanEval, error) {
	inEval, err := p.input.VerifierEvaluate(b, acc, baseEvals)
	if err != nil {
		return nil, err
	}
	ctx := inEval.Context(p.input.OutputSchema())
	evals := make([]proof.Eval, len(p.exprs))
	for i, ae := range p.exprs {
		ev, err := ae.Expr.VerifierEvaluate(b, ctx)
		if err != nil {
			return nil, err
		}
		evals[i] = ev
	}
	return &proof.PlanEval{
		ColumnEvals:  evals,
		OutputLength: inEval.OutputLength,
		ChiEval:      inEval.ChiEval,
	}, nil
}
