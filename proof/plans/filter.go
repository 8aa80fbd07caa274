package plans

import (
	"fmt"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"

	"github.com/verisql/verisql/mle"
	"github.com/verisql/verisql/proof"
	"github.com/verisql/verisql/proof/exprs"
	"github.com/verisql/verisql/sql"
)

// FilterNode keeps the input rows on which the predicate holds. The output
// rows are committed as first round vectors and tied to the input by a
// multiset argument over the selection, so the verifier learns the output
// row count but not which rows were picked.
type FilterNode struct {
	input     proof.Plan
	predicate proof.Expr
}

// NewFilter builds a row filter. A nullable predicate is wrapped with IS
// TRUE, giving NULL the SQL WHERE treatment of false.
func NewFilter(input proof.Plan, predicate proof.Expr) (*FilterNode, error) {
	t := predicate.DataType()
	if t.Kind != sql.KindBoolean {
		return nil, fmt.Errorf("plans: filter predicate must be boolean, got %s", t)
	}
	if t.Nullable {
		wrapped, err := exprs.NewIsTrue(predicate)
		if err != nil {
			return nil, err
		}
		predicate = wrapped
	}
	return &FilterNode{input: input, predicate: predicate}, nil
}

func (p *FilterNode) OutputSchema() []sql.ColumnField { return p.input.OutputSchema() }

func (p *FilterNode) CollectColumnRefs(dst map[sql.ColumnRef]struct{}) {
	p.input.CollectColumnRefs(dst)
	p.predicate.CollectColumnRefs(dst)
}

func (p *FilterNode) CollectTableRefs(dst map[sql.TableRef]struct{}) {
	p.input.CollectTableRefs(dst)
}

func (p *FilterNode) BindParams(params []sql.LiteralValue) error {
	if err := p.input.BindParams(params); err != nil {
		return err
	}
	return p.predicate.BindParams(params)
}

// selectRows materializes the filtered table from the selection vector.
func selectRows(in *sql.Table, sel []bool) *sql.Table {
	idx := make([]int, 0, len(sel))
	for i, keep := range sel {
		if keep {
			idx = append(idx, i)
		}
	}
	out := sql.NewTable(len(idx))
	for i := 0; i < in.NumColumns(); i++ {
		// AddColumn cannot fail here: lengths agree and names are unique.
		_ = out.AddColumn(in.ColumnName(i), in.Column(i).SelectRows(idx))
	}
	return out
}

func (p *FilterNode) FirstRoundEvaluate(b *proof.FirstRoundBuilder, acc sql.DataAccessor) (*sql.Table, error) {
	in, err := p.input.FirstRoundEvaluate(b, acc)
	if err != nil {
		return nil, err
	}
	sel, err := p.predicate.FirstRoundEvaluate(in)
	if err != nil {
		return nil, err
	}
	out := selectRows(in, sel.Bools())
	produceTableMLEs(b.ProduceIntermediateMLE, out)
	b.ProduceChiEvaluationLength(out.NumRows())
	b.RequestPostResultChallenges(2)
	return out, nil
}

func (p *FilterNode) FinalRoundEvaluate(b *proof.FinalRoundBuilder, acc sql.DataAccessor) (*sql.Table, error) {
	in, err := p.input.FinalRoundEvaluate(b, acc)
	if err != nil {
		return nil, err
	}
	alpha := b.PostResultChallenge()
	beta := b.PostResultChallenge()

	pc := proof.NewProverContext(in)
	sel, err := p.predicate.FinalRoundEvaluate(b, pc)
	if err != nil {
		return nil, err
	}
	out := selectRows(in, sel.Bools())
	m := out.NumRows()
	proof.ProveFilterMultiset(b, alpha, beta,
		foldVectors(in), sel.Scalars(), foldVectors(out),
		pc.Chi, mle.ChiColumn(m, m))
	return out, nil
}

func (p *FilterNode) VerifierEvaluate(b *proof.VerificationBuilder, acc sql.CommitmentAccessor, baseEvals map[sql.ColumnRef]fr.Element) (*proof.PlanEval, error) {
	inEval, err := p.input.VerifierEvaluate(b, acc, baseEvals)
	if err != nil {
		return nil, err
	}
	schema := p.input.OutputSchema()
	outEvals := consumeTableEvals(b, schema)
	chiOut, m := b.ConsumeChiEvaluation()
	alpha := b.PostResultChallenge()
	beta := b.PostResultChallenge()

	ctx := inEval.Context(schema)
	selEval, err := p.predicate.VerifierEvaluate(b, ctx)
	if err != nil {
		return nil, err
	}
	inFold, err := foldEvals(inEval, schema)
	if err != nil {
		return nil, err
	}
	proof.VerifyFilterMultiset(b, alpha, beta,
		inFold, selEval.Value, evalValues(outEvals, schema),
		inEval.ChiEval, chiOut)
	return &proof.PlanEval{
		ColumnEvals:  outEvals,
		OutputLength: m,
		ChiEval:      chiOut,
	}, nil
}
