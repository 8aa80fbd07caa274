package plans

import (
	"fmt"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"

	"github.com/verisql/verisql/mle"
	"github.com/verisql/verisql/proof"
	"github.com/verisql/verisql/sql"
)

// SliceNode keeps the window of rows [skip, skip+fetch) of its input, in
// order. The position-tagged multiset argument pairs output row j with input
// row j+skip, so unlike a filter the exact rows and their order are pinned
// down. A nil fetch keeps everything after skip.
type SliceNode struct {
	input proof.Plan
	skip  int
	fetch *int
}

// NewSlice builds an OFFSET/LIMIT window over the input.
func NewSlice(input proof.Plan, skip int, fetch *int) (*SliceNode, error) {
	if skip < 0 {
		return nil, fmt.Errorf("plans: negative slice offset %d", skip)
	}
	if fetch != nil && *fetch < 0 {
		return nil, fmt.Errorf("plans: negative slice limit %d", *fetch)
	}
	return &SliceNode{input: input, skip: skip, fetch: fetch}, nil
}

func (p *SliceNode) OutputSchema() []sql.ColumnField { return p.input.OutputSchema() }

func (p *SliceNode) CollectColumnRefs(dst map[sql.ColumnRef]struct{}) {
	p.input.CollectColumnRefs(dst)
}

func (p *SliceNode) CollectTableRefs(dst map[sql.TableRef]struct{}) {
	p.input.CollectTableRefs(dst)
}

func (p *SliceNode) BindParams(params []sql.LiteralValue) error {
	return p.input.BindParams(params)
}

// window clamps [lo, hi) to the input's n rows.
func (p *SliceNode) window(n int) (lo, hi int) {
	lo = p.skip
	if lo > n {
		lo = n
	}
	hi = n
	if p.fetch != nil && lo+*p.fetch < hi {
		hi = lo + *p.fetch
	}
	return lo, hi
}

func sliceTable(in *sql.Table, lo, hi int) *sql.Table {
	idx := make([]int, hi-lo)
	for i := range idx {
		idx[i] = lo + i
	}
	out := sql.NewTable(len(idx))
	for i := 0; i < in.NumColumns(); i++ {
		_ = out.AddColumn(in.ColumnName(i), in.Column(i).SelectRows(idx))
	}
	return out
}

func (p *SliceNode) FirstRoundEvaluate(b *proof.FirstRoundBuilder, acc sql.DataAccessor) (*sql.Table, error) {
	in, err := p.input.FirstRoundEvaluate(b, acc)
	if err != nil {
		return nil, err
	}
	lo, hi := p.window(in.NumRows())
	out := sliceTable(in, lo, hi)
	produceTableMLEs(b.ProduceIntermediateMLE, out)
	b.RequestPostResultChallenges(2)
	return out, nil
}

// shiftedRho builds the vector rho_i - skip over n rows.
func shiftedRho(n, skip int) []fr.Element {
	out := mle.RhoColumn(n)
	var s fr.Element
	s.SetInt64(int64(skip))
	for i := range out {
		out[i].Sub(&out[i], &s)
	}
	return out
}

// windowIndicator is 1 on rows [lo, hi), 0 elsewhere.
func windowIndicator(n, lo, hi int) []fr.Element {
	out := make([]fr.Element, n)
	for i := lo; i < hi; i++ {
		out[i].SetOne()
	}
	return out
}

func (p *SliceNode) FinalRoundEvaluate(b *proof.FinalRoundBuilder, acc sql.DataAccessor) (*sql.Table, error) {
	in, err := p.input.FinalRoundEvaluate(b, acc)
	if err != nil {
		return nil, err
	}
	alpha := b.PostResultChallenge()
	beta := b.PostResultChallenge()

	n := in.NumRows()
	lo, hi := p.window(n)
	out := sliceTable(in, lo, hi)
	m := hi - lo

	srcCols := append(foldVectors(in), shiftedRho(n, lo))
	dstCols := append(foldVectors(out), mle.RhoColumn(m))
	srcStar := proof.ProveStar(b, alpha, proof.FoldColumns(beta, srcCols, n), windowIndicator(n, lo, hi))
	dstStar := proof.ProveStar(b, alpha, proof.FoldColumns(beta, dstCols, m), mle.ChiColumn(m, m))
	b.ProduceSumcheckSubpolynomial(proof.ZeroSum, []proof.ProductTerm{
		proof.NewTerm(1, srcStar),
		proof.NewTerm(-1, dstStar),
	})
	return out, nil
}

func (p *SliceNode) VerifierEvaluate(b *proof.VerificationBuilder, acc sql.CommitmentAccessor, baseEvals map[sql.ColumnRef]fr.Element) (*proof.PlanEval, error) {
	inEval, err := p.input.VerifierEvaluate(b, acc, baseEvals)
	if err != nil {
		return nil, err
	}
	schema := p.input.OutputSchema()
	outEvals := consumeTableEvals(b, schema)
	alpha := b.PostResultChallenge()
	beta := b.PostResultChallenge()

	n := inEval.OutputLength
	lo, hi := p.window(n)
	m := hi - lo

	inFold, err := foldEvals(inEval, schema)
	if err != nil {
		return nil, err
	}
	var loScaled, rhoSrc fr.Element
	loScaled.SetInt64(int64(lo))
	loScaled.Mul(&loScaled, &inEval.ChiEval)
	rhoSrc = b.RhoEvaluation(n)
	rhoSrc.Sub(&rhoSrc, &loScaled)
	inFold = append(inFold, rhoSrc)

	outFold := evalValues(outEvals, schema)
	outFold = append(outFold, b.RhoEvaluation(m))

	chiHi, chiLo := b.ChiEvaluation(hi), b.ChiEvaluation(lo)
	var window fr.Element
	window.Sub(&chiHi, &chiLo)
	chiOut := b.ChiEvaluation(m)

	srcStar := proof.VerifyStar(b, alpha, proof.FoldEvals(beta, inFold...), window)
	dstStar := proof.VerifyStar(b, alpha, proof.FoldEvals(beta, outFold...), chiOut)
	b.ProduceSumcheckSubpolynomial(proof.ZeroSum, []proof.EvalTerm{
		proof.NewEvalTerm(1, srcStar),
		proof.NewEvalTerm(-1, dstStar),
	})
	return &proof.PlanEval{
		ColumnEvals:  outEvals,
		OutputLength: m,
		ChiEval:      chiOut,
	}, nil
}
