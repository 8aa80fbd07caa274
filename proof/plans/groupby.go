package plans

import (
	"fmt"
	"sort"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"

	"github.com/verisql/verisql/mle"
	"github.com/verisql/verisql/proof"
	"github.com/verisql/verisql/sql"
)

// GroupByNode aggregates input rows, either grouped by a single orderable key
// or globally over the whole input. Keyed output is sorted ascending by key,
// which doubles as the distinctness proof: the committed key column is shown
// strictly increasing, and per-group counts and sums are tied to the input by
// a logUp-style argument over the key. The global form always yields exactly
// one row, so COUNT over an empty input is a row holding zero rather than no
// rows.
type GroupByNode struct {
	input      proof.Plan
	key        *AliasedExpr
	sums       []AliasedExpr
	countAlias string
}

var (
	scalarType = sql.ColumnType{Kind: sql.KindScalar}
	bigIntType = sql.ColumnType{Kind: sql.KindBigInt}
)

// NewGroupBy builds an aggregation. A nil key aggregates the whole input into
// one row. Sums are computed in the field, so their output columns are
// scalar-typed.
func NewGroupBy(input proof.Plan, key *AliasedExpr, sums []AliasedExpr, countAlias string) (*GroupByNode, error) {
	if countAlias == "" {
		return nil, fmt.Errorf("plans: group by needs a count column alias")
	}
	if key != nil {
		if err := requireOrderableKey(key.Expr.DataType(), "group by"); err != nil {
			return nil, err
		}
	}
	for _, s := range sums {
		t := s.Expr.DataType()
		if !t.IsNumeric() || t.Nullable {
			return nil, fmt.Errorf("plans: cannot sum %s column %q", t, s.Alias)
		}
	}
	node := &GroupByNode{input: input, key: key, sums: sums, countAlias: countAlias}
	seen := map[string]struct{}{}
	for _, f := range node.OutputSchema() {
		if _, dup := seen[f.Name]; dup {
			return nil, fmt.Errorf("plans: duplicate output column %q", f.Name)
		}
		seen[f.Name] = struct{}{}
	}
	return node, nil
}

func (p *GroupByNode) OutputSchema() []sql.ColumnField {
	var fields []sql.ColumnField
	if p.key != nil {
		fields = append(fields, sql.ColumnField{Name: p.key.Alias, Type: p.key.Expr.DataType()})
	}
	for _, s := range p.sums {
		fields = append(fields, sql.ColumnField{Name: s.Alias, Type: scalarType})
	}
	return append(fields, sql.ColumnField{Name: p.countAlias, Type: bigIntType})
}

func (p *GroupByNode) CollectColumnRefs(dst map[sql.ColumnRef]struct{}) {
	p.input.CollectColumnRefs(dst)
	if p.key != nil {
		p.key.Expr.CollectColumnRefs(dst)
	}
	for _, s := range p.sums {
		s.Expr.CollectColumnRefs(dst)
	}
}

func (p *GroupByNode) CollectTableRefs(dst map[sql.TableRef]struct{}) {
	p.input.CollectTableRefs(dst)
}

func (p *GroupByNode) BindParams(params []sql.LiteralValue) error {
	if err := p.input.BindParams(params); err != nil {
		return err
	}
	if p.key != nil {
		if err := p.key.Expr.BindParams(params); err != nil {
			return err
		}
	}
	for _, s := range p.sums {
		if err := s.Expr.BindParams(params); err != nil {
			return err
		}
	}
	return nil
}

// aggregate computes the output table. For the keyed form it also returns the
// group head indices into the input, in ascending key order.
func (p *GroupByNode) aggregate(keyCol sql.Column, sumCols []sql.Column, n int) (*sql.Table, error) {
	var heads [][]int
	if p.key == nil {
		all := make([]int, n)
		for i := range all {
			all[i] = i
		}
		heads = [][]int{all}
	} else {
		order := make([]int, n)
		for i := range order {
			order[i] = i
		}
		sort.SliceStable(order, func(a, b int) bool {
			return compareRows(keyCol, order[a], order[b]) < 0
		})
		for i := 0; i < n; {
			j := i
			for j < n && compareRows(keyCol, order[i], order[j]) == 0 {
				j++
			}
			heads = append(heads, order[i:j])
			i = j
		}
	}

	m := len(heads)
	counts := make([]int64, m)
	sums := make([][]fr.Element, len(p.sums))
	for k := range sums {
		sums[k] = make([]fr.Element, m)
	}
	for g, rows := range heads {
		counts[g] = int64(len(rows))
		for k, col := range sumCols {
			s := col.Scalars()
			for _, i := range rows {
				sums[k][g].Add(&sums[k][g], &s[i])
			}
		}
	}

	out := sql.NewTable(m)
	if p.key != nil {
		firsts := make([]int, m)
		for g, rows := range heads {
			firsts[g] = rows[0]
		}
		if err := out.AddColumn(p.key.Alias, keyCol.SelectRows(firsts)); err != nil {
			return nil, err
		}
	}
	for k, s := range p.sums {
		if err := out.AddColumn(s.Alias, sql.NewScalarColumn(sums[k])); err != nil {
			return nil, err
		}
	}
	if err := out.AddColumn(p.countAlias, sql.NewBigIntColumn(counts)); err != nil {
		return nil, err
	}
	return out, nil
}

func (p *GroupByNode) evalInputs(eval func(proof.Expr) (sql.Column, error)) (sql.Column, []sql.Column, error) {
	var keyCol sql.Column
	var err error
	if p.key != nil {
		if keyCol, err = eval(p.key.Expr); err != nil {
			return sql.Column{}, nil, err
		}
	}
	sumCols := make([]sql.Column, len(p.sums))
	for k, s := range p.sums {
		if sumCols[k], err = eval(s.Expr); err != nil {
			return sql.Column{}, nil, err
		}
	}
	return keyCol, sumCols, nil
}

func (p *GroupByNode) FirstRoundEvaluate(b *proof.FirstRoundBuilder, acc sql.DataAccessor) (*sql.Table, error) {
	in, err := p.input.FirstRoundEvaluate(b, acc)
	if err != nil {
		return nil, err
	}
	keyCol, sumCols, err := p.evalInputs(func(e proof.Expr) (sql.Column, error) {
		return e.FirstRoundEvaluate(in)
	})
	if err != nil {
		return nil, err
	}
	out, err := p.aggregate(keyCol, sumCols, in.NumRows())
	if err != nil {
		return nil, err
	}
	produceTableMLEs(b.ProduceIntermediateMLE, out)
	if p.key != nil {
		outKey, _ := out.ColumnByName(p.key.Alias)
		b.ProduceIntermediateMLE(proof.ShiftColumn(outKey.Scalars()))
		m := out.NumRows()
		b.ProduceChiEvaluationLength(m)
		b.ProduceChiEvaluationLength(m + 1)
		b.RequestPostResultChallenges(2)
	}
	return out, nil
}

func (p *GroupByNode) FinalRoundEvaluate(b *proof.FinalRoundBuilder, acc sql.DataAccessor) (*sql.Table, error) {
	in, err := p.input.FinalRoundEvaluate(b, acc)
	if err != nil {
		return nil, err
	}
	var alpha, beta fr.Element
	if p.key != nil {
		alpha = b.PostResultChallenge()
		beta = b.PostResultChallenge()
	}
	pc := proof.NewProverContext(in)
	keyCol, sumCols, err := p.evalInputs(func(e proof.Expr) (sql.Column, error) {
		return e.FinalRoundEvaluate(b, pc)
	})
	if err != nil {
		return nil, err
	}
	out, err := p.aggregate(keyCol, sumCols, in.NumRows())
	if err != nil {
		return nil, err
	}
	m := out.NumRows()
	countCol, _ := out.ColumnByName(p.countAlias)

	if p.key == nil {
		b.ProduceSumcheckSubpolynomial(proof.ZeroSum, []proof.ProductTerm{
			proof.NewTerm(1, pc.Chi),
			proof.NewTerm(-1, countCol.Scalars()),
		})
		for k, s := range p.sums {
			outSum, _ := out.ColumnByName(s.Alias)
			b.ProduceSumcheckSubpolynomial(proof.ZeroSum, []proof.ProductTerm{
				proof.NewTerm(1, sumCols[k].Scalars()),
				proof.NewTerm(-1, outSum.Scalars()),
			})
		}
		return out, nil
	}

	outKey, _ := out.ColumnByName(p.key.Alias)
	keyScalars := outKey.Scalars()
	chiOut := mle.ChiColumn(m, m)
	inStar := proof.ProveStar(b, alpha, keyCol.Scalars(), pc.Chi)
	outStar := proof.ProveStar(b, alpha, keyScalars, chiOut)
	b.ProduceSumcheckSubpolynomial(proof.ZeroSum, []proof.ProductTerm{
		proof.NewTerm(1, inStar),
		proof.NewTerm(-1, countCol.Scalars(), outStar),
	})
	for k, s := range p.sums {
		outSum, _ := out.ColumnByName(s.Alias)
		b.ProduceSumcheckSubpolynomial(proof.ZeroSum, []proof.ProductTerm{
			proof.NewTerm(1, sumCols[k].Scalars(), inStar),
			proof.NewTerm(-1, outSum.Scalars(), outStar),
		})
	}
	if err := proof.ProveStrictlyIncreasing(b, alpha, beta, keyScalars, proof.ShiftColumn(keyScalars), chiOut); err != nil {
		return nil, err
	}
	return out, nil
}

func (p *GroupByNode) VerifierEvaluate(b *proof.VerificationBuilder, acc sql.CommitmentAccessor, baseEvals map[sql.ColumnRef]fr.Element) (*proof.PlanEval, error) {
	inEval, err := p.input.VerifierEvaluate(b, acc, baseEvals)
	if err != nil {
		return nil, err
	}
	schema := p.OutputSchema()
	outEvals := consumeTableEvals(b, schema)
	countEval := outEvals[len(outEvals)-1].Value

	var keyEval, shiftedKeyEval, alpha, beta fr.Element
	var chiOut fr.Element
	m := 1
	if p.key != nil {
		keyEval = outEvals[0].Value
		shiftedKeyEval = b.ConsumeFirstRoundMLE()
		var mPlus1 int
		chiOut, m = b.ConsumeChiEvaluation()
		_, mPlus1 = b.ConsumeChiEvaluation()
		if mPlus1 != m+1 {
			return nil, fmt.Errorf("%w: inconsistent group count declarations", proof.ErrVerification)
		}
		alpha = b.PostResultChallenge()
		beta = b.PostResultChallenge()
	} else {
		chiOut = b.ChiEvaluation(1)
	}

	ctx := inEval.Context(p.input.OutputSchema())
	var keyExprEval proof.Eval
	if p.key != nil {
		if keyExprEval, err = p.key.Expr.VerifierEvaluate(b, ctx); err != nil {
			return nil, err
		}
	}
	sumExprEvals := make([]proof.Eval, len(p.sums))
	for k, s := range p.sums {
		if sumExprEvals[k], err = s.Expr.VerifierEvaluate(b, ctx); err != nil {
			return nil, err
		}
	}

	if p.key == nil {
		b.ProduceSumcheckSubpolynomial(proof.ZeroSum, []proof.EvalTerm{
			proof.NewEvalTerm(1, inEval.ChiEval),
			proof.NewEvalTerm(-1, countEval),
		})
		for k := range p.sums {
			b.ProduceSumcheckSubpolynomial(proof.ZeroSum, []proof.EvalTerm{
				proof.NewEvalTerm(1, sumExprEvals[k].Value),
				proof.NewEvalTerm(-1, outEvals[k].Value),
			})
		}
		return &proof.PlanEval{ColumnEvals: outEvals, OutputLength: 1, ChiEval: chiOut}, nil
	}

	inStar := proof.VerifyStar(b, alpha, keyExprEval.Value, inEval.ChiEval)
	outStar := proof.VerifyStar(b, alpha, keyEval, chiOut)
	b.ProduceSumcheckSubpolynomial(proof.ZeroSum, []proof.EvalTerm{
		proof.NewEvalTerm(1, inStar),
		proof.NewEvalTerm(-1, countEval, outStar),
	})
	for k := range p.sums {
		b.ProduceSumcheckSubpolynomial(proof.ZeroSum, []proof.EvalTerm{
			proof.NewEvalTerm(1, sumExprEvals[k].Value, inStar),
			proof.NewEvalTerm(-1, outEvals[k+1].Value, outStar),
		})
	}
	if err := proof.VerifyStrictlyIncreasing(b, alpha, beta, keyEval, shiftedKeyEval, m); err != nil {
		return nil, err
	}
	return &proof.PlanEval{ColumnEvals: outEvals, OutputLength: m, ChiEval: chiOut}, nil
}
