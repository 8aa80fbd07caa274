package plans

import (
	"fmt"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"

	"github.com/verisql/verisql/mle"
	"github.com/verisql/verisql/proof"
	"github.com/verisql/verisql/sql"
)

// UnionNode concatenates the rows of its inputs (UNION ALL). The output is
// tied to the inputs by one multiset argument: a star sum per input against
// the output's star sum. Row order inside the output is therefore bag
// semantics, not an ordering guarantee.
type UnionNode struct {
	inputs []proof.Plan
}

// NewUnion builds a UNION ALL over two or more inputs. Schemas must agree
// exactly; output column names come from the first input.
func NewUnion(inputs ...proof.Plan) (*UnionNode, error) {
	if len(inputs) < 2 {
		return nil, fmt.Errorf("plans: union needs at least two inputs, got %d", len(inputs))
	}
	first := inputs[0].OutputSchema()
	for k, in := range inputs[1:] {
		schema := in.OutputSchema()
		if len(schema) != len(first) {
			return nil, fmt.Errorf("plans: union input %d has %d columns, first has %d", k+1, len(schema), len(first))
		}
		for i := range schema {
			if schema[i].Type != first[i].Type {
				return nil, fmt.Errorf("plans: union column %d is %s in input %d, %s in first",
					i, schema[i].Type, k+1, first[i].Type)
			}
		}
	}
	return &UnionNode{inputs: inputs}, nil
}

func (p *UnionNode) OutputSchema() []sql.ColumnField { return p.inputs[0].OutputSchema() }

func (p *UnionNode) CollectColumnRefs(dst map[sql.ColumnRef]struct{}) {
	for _, in := range p.inputs {
		in.CollectColumnRefs(dst)
	}
}

func (p *UnionNode) CollectTableRefs(dst map[sql.TableRef]struct{}) {
	for _, in := range p.inputs {
		in.CollectTableRefs(dst)
	}
}

func (p *UnionNode) BindParams(params []sql.LiteralValue) error {
	for _, in := range p.inputs {
		if err := in.BindParams(params); err != nil {
			return err
		}
	}
	return nil
}

func concatTables(tables []*sql.Table, names []string) (*sql.Table, error) {
	cols := make([]sql.Column, tables[0].NumColumns())
	for i := range cols {
		cols[i] = tables[0].Column(i)
	}
	for _, t := range tables[1:] {
		for i := range cols {
			c, err := cols[i].Concat(t.Column(i))
			if err != nil {
				return nil, err
			}
			cols[i] = c
		}
	}
	return sql.TableFromColumns(names, cols)
}

func (p *UnionNode) FirstRoundEvaluate(b *proof.FirstRoundBuilder, acc sql.DataAccessor) (*sql.Table, error) {
	tables := make([]*sql.Table, len(p.inputs))
	for k, in := range p.inputs {
		t, err := in.FirstRoundEvaluate(b, acc)
		if err != nil {
			return nil, err
		}
		tables[k] = t
	}
	names := make([]string, 0, len(p.OutputSchema()))
	for _, f := range p.OutputSchema() {
		names = append(names, f.Name)
	}
	out, err := concatTables(tables, names)
	if err != nil {
		return nil, err
	}
	produceTableMLEs(b.ProduceIntermediateMLE, out)
	b.ProduceChiEvaluationLength(out.NumRows())
	b.RequestPostResultChallenges(2)
	return out, nil
}

func (p *UnionNode) FinalRoundEvaluate(b *proof.FinalRoundBuilder, acc sql.DataAccessor) (*sql.Table, error) {
	tables := make([]*sql.Table, len(p.inputs))
	for k, in := range p.inputs {
		t, err := in.FinalRoundEvaluate(b, acc)
		if err != nil {
			return nil, err
		}
		tables[k] = t
	}
	alpha := b.PostResultChallenge()
	beta := b.PostResultChallenge()

	names := make([]string, 0, len(p.OutputSchema()))
	for _, f := range p.OutputSchema() {
		names = append(names, f.Name)
	}
	out, err := concatTables(tables, names)
	if err != nil {
		return nil, err
	}
	m := out.NumRows()

	terms := make([]proof.ProductTerm, 0, len(tables)+1)
	for _, t := range tables {
		n := t.NumRows()
		star := proof.ProveStar(b, alpha, proof.FoldColumns(beta, foldVectors(t), n), mle.ChiColumn(n, n))
		terms = append(terms, proof.NewTerm(1, star))
	}
	outStar := proof.ProveStar(b, alpha, proof.FoldColumns(beta, foldVectors(out), m), mle.ChiColumn(m, m))
	terms = append(terms, proof.NewTerm(-1, outStar))
	b.ProduceSumcheckSubpolynomial(proof.ZeroSum, terms)
	return out, nil
}

func (p *UnionNode) VerifierEvaluate(b *proof.VerificationBuilder, acc sql.CommitmentAccessor, baseEvals map[sql.ColumnRef]fr.Element) (*proof.PlanEval, error) {
	inEvals := make([]*proof.PlanEval, len(p.inputs))
	total := 0
	for k, in := range p.inputs {
		ev, err := in.VerifierEvaluate(b, acc, baseEvals)
		if err != nil {
			return nil, err
		}
		inEvals[k] = ev
		total += ev.OutputLength
	}
	schema := p.OutputSchema()
	outEvals := consumeTableEvals(b, schema)
	chiOut, m := b.ConsumeChiEvaluation()
	if m != total {
		return nil, fmt.Errorf("%w: union length declaration does not match inputs", proof.ErrVerification)
	}
	alpha := b.PostResultChallenge()
	beta := b.PostResultChallenge()

	terms := make([]proof.EvalTerm, 0, len(p.inputs)+1)
	for k, ev := range inEvals {
		fold, err := foldEvals(ev, p.inputs[k].OutputSchema())
		if err != nil {
			return nil, err
		}
		star := proof.VerifyStar(b, alpha, proof.FoldEvals(beta, fold...), ev.ChiEval)
		terms = append(terms, proof.NewEvalTerm(1, star))
	}
	outFold := evalValues(outEvals, schema)
	outStar := proof.VerifyStar(b, alpha, proof.FoldEvals(beta, outFold...), chiOut)
	terms = append(terms, proof.NewEvalTerm(-1, outStar))
	b.ProduceSumcheckSubpolynomial(proof.ZeroSum, terms)
	return &proof.PlanEval{
		ColumnEvals:  outEvals,
		OutputLength: m,
		ChiEval:      chiOut,
	}, nil
}
