package plans

import (
	"fmt"
	"sort"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"

	"github.com/verisql/verisql/mle"
	"github.com/verisql/verisql/proof"
	"github.com/verisql/verisql/sql"
)

// JoinNode is an inner equi-join on one orderable key column per side. Keys
// must be unique within each side; the prover proves that with sorted copies
// shown strictly increasing. Each side is split into matched and unmatched
// rows by a multiset argument, and completeness comes from the two unmatched
// key sets being disjoint: their sorted concatenation is also shown strictly
// increasing.
type JoinNode struct {
	left, right       proof.Plan
	leftKey, rightKey string
}

// NewJoin builds an inner join of left and right on the named key columns.
// The output schema is the key (under its left name), the remaining left
// columns, then the remaining right columns.
func NewJoin(left, right proof.Plan, leftKey, rightKey string) (*JoinNode, error) {
	lt, ok := fieldType(left.OutputSchema(), leftKey)
	if !ok {
		return nil, fmt.Errorf("plans: join key %q not in left schema", leftKey)
	}
	rt, ok := fieldType(right.OutputSchema(), rightKey)
	if !ok {
		return nil, fmt.Errorf("plans: join key %q not in right schema", rightKey)
	}
	if err := requireOrderableKey(lt, "join"); err != nil {
		return nil, err
	}
	if err := requireOrderableKey(rt, "join"); err != nil {
		return nil, err
	}
	if !lt.EqualIgnoringNullability(rt) {
		return nil, fmt.Errorf("plans: join key types differ: %s vs %s", lt, rt)
	}
	node := &JoinNode{left: left, right: right, leftKey: leftKey, rightKey: rightKey}
	seen := map[string]struct{}{}
	for _, f := range node.OutputSchema() {
		if _, dup := seen[f.Name]; dup {
			return nil, fmt.Errorf("plans: join output column %q is ambiguous", f.Name)
		}
		seen[f.Name] = struct{}{}
	}
	return node, nil
}

func fieldType(schema []sql.ColumnField, name string) (sql.ColumnType, bool) {
	for _, f := range schema {
		if f.Name == name {
			return f.Type, true
		}
	}
	return sql.ColumnType{}, false
}

func (p *JoinNode) OutputSchema() []sql.ColumnField {
	var fields []sql.ColumnField
	for _, f := range p.left.OutputSchema() {
		if f.Name == p.leftKey {
			fields = append([]sql.ColumnField{f}, fields...)
			continue
		}
		fields = append(fields, f)
	}
	for _, f := range p.right.OutputSchema() {
		if f.Name != p.rightKey {
			fields = append(fields, f)
		}
	}
	return fields
}

func (p *JoinNode) CollectColumnRefs(dst map[sql.ColumnRef]struct{}) {
	p.left.CollectColumnRefs(dst)
	p.right.CollectColumnRefs(dst)
}

func (p *JoinNode) CollectTableRefs(dst map[sql.TableRef]struct{}) {
	p.left.CollectTableRefs(dst)
	p.right.CollectTableRefs(dst)
}

func (p *JoinNode) BindParams(params []sql.LiteralValue) error {
	if err := p.left.BindParams(params); err != nil {
		return err
	}
	return p.right.BindParams(params)
}

// sortedOrder returns row indices sorted ascending by key, erroring on a
// duplicate.
func sortedOrder(key sql.Column, side string) ([]int, error) {
	order := make([]int, key.Len())
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return compareRows(key, order[a], order[b]) < 0
	})
	for i := 1; i < len(order); i++ {
		if compareRows(key, order[i-1], order[i]) == 0 {
			return nil, fmt.Errorf("plans: %s join key is not unique", side)
		}
	}
	return order, nil
}

// joinData holds everything the join commits beyond its output table.
type joinData struct {
	out, lExtra, rExtra       *sql.Table
	sortedL, sortedR, sortedU []fr.Element
}

func tableFromRows(src *sql.Table, idx []int) *sql.Table {
	out := sql.NewTable(len(idx))
	for i := 0; i < src.NumColumns(); i++ {
		_ = out.AddColumn(src.ColumnName(i), src.Column(i).SelectRows(idx))
	}
	return out
}

func (p *JoinNode) compute(lTbl, rTbl *sql.Table) (*joinData, error) {
	lKey, _ := lTbl.ColumnByName(p.leftKey)
	rKey, _ := rTbl.ColumnByName(p.rightKey)
	lOrder, err := sortedOrder(lKey, "left")
	if err != nil {
		return nil, err
	}
	rOrder, err := sortedOrder(rKey, "right")
	if err != nil {
		return nil, err
	}

	// Cross-side compares go through the signed field encoding, which orders
	// every orderable kind consistently with compareRows.
	lScal, rScal := lKey.Scalars(), rKey.Scalars()
	var matchedL, matchedR, extraL, extraR []int
	i, j := 0, 0
	for i < len(lOrder) && j < len(rOrder) {
		li, rj := lOrder[i], rOrder[j]
		c := signedScalar(&lScal[li]).Cmp(signedScalar(&rScal[rj]))
		switch {
		case c < 0:
			extraL = append(extraL, li)
			i++
		case c > 0:
			extraR = append(extraR, rj)
			j++
		default:
			matchedL = append(matchedL, li)
			matchedR = append(matchedR, rj)
			i++
			j++
		}
	}
	for ; i < len(lOrder); i++ {
		extraL = append(extraL, lOrder[i])
	}
	for ; j < len(rOrder); j++ {
		extraR = append(extraR, rOrder[j])
	}

	out := sql.NewTable(len(matchedL))
	if err := out.AddColumn(p.leftKey, lKey.SelectRows(matchedL)); err != nil {
		return nil, err
	}
	for _, f := range p.left.OutputSchema() {
		if f.Name == p.leftKey {
			continue
		}
		col, _ := lTbl.ColumnByName(f.Name)
		if err := out.AddColumn(f.Name, col.SelectRows(matchedL)); err != nil {
			return nil, err
		}
	}
	for _, f := range p.right.OutputSchema() {
		if f.Name == p.rightKey {
			continue
		}
		col, _ := rTbl.ColumnByName(f.Name)
		if err := out.AddColumn(f.Name, col.SelectRows(matchedR)); err != nil {
			return nil, err
		}
	}

	d := &joinData{
		out:    out,
		lExtra: tableFromRows(lTbl, extraL),
		rExtra: tableFromRows(rTbl, extraR),
	}
	d.sortedL = lKey.SelectRows(lOrder).Scalars()
	d.sortedR = rKey.SelectRows(rOrder).Scalars()

	// All extras keys, sorted across both sides.
	extrasKey, err := lKey.SelectRows(extraL).Concat(rKey.SelectRows(extraR))
	if err != nil {
		return nil, err
	}
	uOrder := make([]int, extrasKey.Len())
	for k := range uOrder {
		uOrder[k] = k
	}
	sort.SliceStable(uOrder, func(a, b int) bool {
		return compareRows(extrasKey, uOrder[a], uOrder[b]) < 0
	})
	d.sortedU = extrasKey.SelectRows(uOrder).Scalars()
	return d, nil
}

// outSideFold builds the fold vectors of the output restricted to one side's
// fields, in that side's schema order, with the key column standing in for
// the side's key field.
func outSideFold(out *sql.Table, side []sql.ColumnField, sideKey, outKey string) [][]fr.Element {
	var vecs [][]fr.Element
	for _, f := range side {
		name := f.Name
		if name == sideKey {
			name = outKey
		}
		col, _ := out.ColumnByName(name)
		vecs = append(vecs, col.Scalars())
		if f.Type.Nullable {
			vecs = append(vecs, presenceOrOnes(col))
		}
	}
	return vecs
}

// outSideFoldEvals is the verifier-side mirror of outSideFold.
func outSideFoldEvals(outEvals []proof.Eval, outSchema, side []sql.ColumnField, sideKey, outKey string) ([]fr.Element, error) {
	byName := make(map[string]proof.Eval, len(outSchema))
	for i, f := range outSchema {
		byName[f.Name] = outEvals[i]
	}
	var evals []fr.Element
	for _, f := range side {
		name := f.Name
		if name == sideKey {
			name = outKey
		}
		ev := byName[name]
		evals = append(evals, ev.Value)
		if f.Type.Nullable {
			if ev.Presence == nil {
				return nil, fmt.Errorf("%w: column %q lacks a presence evaluation", proof.ErrVerification, name)
			}
			evals = append(evals, *ev.Presence)
		}
	}
	return evals, nil
}

func (p *JoinNode) FirstRoundEvaluate(b *proof.FirstRoundBuilder, acc sql.DataAccessor) (*sql.Table, error) {
	lTbl, err := p.left.FirstRoundEvaluate(b, acc)
	if err != nil {
		return nil, err
	}
	rTbl, err := p.right.FirstRoundEvaluate(b, acc)
	if err != nil {
		return nil, err
	}
	d, err := p.compute(lTbl, rTbl)
	if err != nil {
		return nil, err
	}

	produceTableMLEs(b.ProduceIntermediateMLE, d.out)
	produceTableMLEs(b.ProduceIntermediateMLE, d.lExtra)
	produceTableMLEs(b.ProduceIntermediateMLE, d.rExtra)
	b.ProduceIntermediateMLE(d.sortedL)
	b.ProduceIntermediateMLE(proof.ShiftColumn(d.sortedL))
	b.ProduceIntermediateMLE(d.sortedR)
	b.ProduceIntermediateMLE(proof.ShiftColumn(d.sortedR))
	b.ProduceIntermediateMLE(d.sortedU)
	b.ProduceIntermediateMLE(proof.ShiftColumn(d.sortedU))

	b.ProduceChiEvaluationLength(d.out.NumRows())
	b.ProduceChiEvaluationLength(d.lExtra.NumRows())
	b.ProduceChiEvaluationLength(d.rExtra.NumRows())
	b.ProduceChiEvaluationLength(len(d.sortedU))
	b.ProduceChiEvaluationLength(lTbl.NumRows() + 1)
	b.ProduceChiEvaluationLength(rTbl.NumRows() + 1)
	b.ProduceChiEvaluationLength(len(d.sortedU) + 1)
	b.RequestPostResultChallenges(2)
	return d.out, nil
}

func (p *JoinNode) FinalRoundEvaluate(b *proof.FinalRoundBuilder, acc sql.DataAccessor) (*sql.Table, error) {
	lTbl, err := p.left.FinalRoundEvaluate(b, acc)
	if err != nil {
		return nil, err
	}
	rTbl, err := p.right.FinalRoundEvaluate(b, acc)
	if err != nil {
		return nil, err
	}
	alpha := b.PostResultChallenge()
	beta := b.PostResultChallenge()
	d, err := p.compute(lTbl, rTbl)
	if err != nil {
		return nil, err
	}

	nl, nr, m := lTbl.NumRows(), rTbl.NumRows(), d.out.NumRows()
	el, er, u := d.lExtra.NumRows(), d.rExtra.NumRows(), len(d.sortedU)
	chiL, chiR := mle.ChiColumn(nl, nl), mle.ChiColumn(nr, nr)
	chiM := mle.ChiColumn(m, m)
	chiEl, chiEr, chiU := mle.ChiColumn(el, el), mle.ChiColumn(er, er), mle.ChiColumn(u, u)

	// Split arguments: each side is the matched output rows plus its extras.
	lStar := proof.ProveStar(b, alpha, proof.FoldColumns(beta, foldVectors(lTbl), nl), chiL)
	olStar := proof.ProveStar(b, alpha,
		proof.FoldColumns(beta, outSideFold(d.out, p.left.OutputSchema(), p.leftKey, p.leftKey), m), chiM)
	leStar := proof.ProveStar(b, alpha, proof.FoldColumns(beta, foldVectors(d.lExtra), el), chiEl)
	b.ProduceSumcheckSubpolynomial(proof.ZeroSum, []proof.ProductTerm{
		proof.NewTerm(1, lStar),
		proof.NewTerm(-1, olStar),
		proof.NewTerm(-1, leStar),
	})

	rStar := proof.ProveStar(b, alpha, proof.FoldColumns(beta, foldVectors(rTbl), nr), chiR)
	orStar := proof.ProveStar(b, alpha,
		proof.FoldColumns(beta, outSideFold(d.out, p.right.OutputSchema(), p.rightKey, p.leftKey), m), chiM)
	reStar := proof.ProveStar(b, alpha, proof.FoldColumns(beta, foldVectors(d.rExtra), er), chiEr)
	b.ProduceSumcheckSubpolynomial(proof.ZeroSum, []proof.ProductTerm{
		proof.NewTerm(1, rStar),
		proof.NewTerm(-1, orStar),
		proof.NewTerm(-1, reStar),
	})

	// Key uniqueness per side.
	lKey, _ := lTbl.ColumnByName(p.leftKey)
	rKey, _ := rTbl.ColumnByName(p.rightKey)
	proof.ProveMultisetEquality(b, alpha, beta,
		[][]fr.Element{lKey.Scalars()}, [][]fr.Element{d.sortedL}, chiL, chiL)
	if err := proof.ProveStrictlyIncreasing(b, alpha, beta, d.sortedL, proof.ShiftColumn(d.sortedL), chiL); err != nil {
		return nil, err
	}
	proof.ProveMultisetEquality(b, alpha, beta,
		[][]fr.Element{rKey.Scalars()}, [][]fr.Element{d.sortedR}, chiR, chiR)
	if err := proof.ProveStrictlyIncreasing(b, alpha, beta, d.sortedR, proof.ShiftColumn(d.sortedR), chiR); err != nil {
		return nil, err
	}

	// No key may sit unmatched on both sides: the union of the extras keys is
	// strictly increasing, hence all distinct.
	lExtraKey, _ := d.lExtra.ColumnByName(p.leftKey)
	rExtraKey, _ := d.rExtra.ColumnByName(p.rightKey)
	leKeyStar := proof.ProveStar(b, alpha, lExtraKey.Scalars(), chiEl)
	reKeyStar := proof.ProveStar(b, alpha, rExtraKey.Scalars(), chiEr)
	uStar := proof.ProveStar(b, alpha, d.sortedU, chiU)
	b.ProduceSumcheckSubpolynomial(proof.ZeroSum, []proof.ProductTerm{
		proof.NewTerm(1, leKeyStar),
		proof.NewTerm(1, reKeyStar),
		proof.NewTerm(-1, uStar),
	})
	if err := proof.ProveStrictlyIncreasing(b, alpha, beta, d.sortedU, proof.ShiftColumn(d.sortedU), chiU); err != nil {
		return nil, err
	}
	return d.out, nil
}

func (p *JoinNode) VerifierEvaluate(b *proof.VerificationBuilder, acc sql.CommitmentAccessor, baseEvals map[sql.ColumnRef]fr.Element) (*proof.PlanEval, error) {
	leftEval, err := p.left.VerifierEvaluate(b, acc, baseEvals)
	if err != nil {
		return nil, err
	}
	rightEval, err := p.right.VerifierEvaluate(b, acc, baseEvals)
	if err != nil {
		return nil, err
	}
	leftSchema, rightSchema := p.left.OutputSchema(), p.right.OutputSchema()
	outSchema := p.OutputSchema()

	outEvals := consumeTableEvals(b, outSchema)
	lExtraEvals := consumeTableEvals(b, leftSchema)
	rExtraEvals := consumeTableEvals(b, rightSchema)
	sortedL := b.ConsumeFirstRoundMLE()
	shiftedL := b.ConsumeFirstRoundMLE()
	sortedR := b.ConsumeFirstRoundMLE()
	shiftedR := b.ConsumeFirstRoundMLE()
	sortedU := b.ConsumeFirstRoundMLE()
	shiftedU := b.ConsumeFirstRoundMLE()

	chiM, m := b.ConsumeChiEvaluation()
	chiEl, el := b.ConsumeChiEvaluation()
	chiEr, er := b.ConsumeChiEvaluation()
	chiU, u := b.ConsumeChiEvaluation()
	_, nl1 := b.ConsumeChiEvaluation()
	_, nr1 := b.ConsumeChiEvaluation()
	_, u1 := b.ConsumeChiEvaluation()
	nl, nr := leftEval.OutputLength, rightEval.OutputLength
	if u != el+er || nl1 != nl+1 || nr1 != nr+1 || u1 != u+1 {
		return nil, fmt.Errorf("%w: inconsistent join length declarations", proof.ErrVerification)
	}
	alpha := b.PostResultChallenge()
	beta := b.PostResultChallenge()

	lFold, err := foldEvals(leftEval, leftSchema)
	if err != nil {
		return nil, err
	}
	olFold, err := outSideFoldEvals(outEvals, outSchema, leftSchema, p.leftKey, p.leftKey)
	if err != nil {
		return nil, err
	}
	lStar := proof.VerifyStar(b, alpha, proof.FoldEvals(beta, lFold...), leftEval.ChiEval)
	olStar := proof.VerifyStar(b, alpha, proof.FoldEvals(beta, olFold...), chiM)
	leStar := proof.VerifyStar(b, alpha, proof.FoldEvals(beta, evalValues(lExtraEvals, leftSchema)...), chiEl)
	b.ProduceSumcheckSubpolynomial(proof.ZeroSum, []proof.EvalTerm{
		proof.NewEvalTerm(1, lStar),
		proof.NewEvalTerm(-1, olStar),
		proof.NewEvalTerm(-1, leStar),
	})

	rFold, err := foldEvals(rightEval, rightSchema)
	if err != nil {
		return nil, err
	}
	orFold, err := outSideFoldEvals(outEvals, outSchema, rightSchema, p.rightKey, p.leftKey)
	if err != nil {
		return nil, err
	}
	rStar := proof.VerifyStar(b, alpha, proof.FoldEvals(beta, rFold...), rightEval.ChiEval)
	orStar := proof.VerifyStar(b, alpha, proof.FoldEvals(beta, orFold...), chiM)
	reStar := proof.VerifyStar(b, alpha, proof.FoldEvals(beta, evalValues(rExtraEvals, rightSchema)...), chiEr)
	b.ProduceSumcheckSubpolynomial(proof.ZeroSum, []proof.EvalTerm{
		proof.NewEvalTerm(1, rStar),
		proof.NewEvalTerm(-1, orStar),
		proof.NewEvalTerm(-1, reStar),
	})

	lKeyEval := evalByName(leftEval, leftSchema, p.leftKey)
	rKeyEval := evalByName(rightEval, rightSchema, p.rightKey)
	proof.VerifyMultisetEquality(b, alpha, beta,
		[]fr.Element{lKeyEval}, []fr.Element{sortedL}, leftEval.ChiEval, leftEval.ChiEval)
	if err := proof.VerifyStrictlyIncreasing(b, alpha, beta, sortedL, shiftedL, nl); err != nil {
		return nil, err
	}
	proof.VerifyMultisetEquality(b, alpha, beta,
		[]fr.Element{rKeyEval}, []fr.Element{sortedR}, rightEval.ChiEval, rightEval.ChiEval)
	if err := proof.VerifyStrictlyIncreasing(b, alpha, beta, sortedR, shiftedR, nr); err != nil {
		return nil, err
	}

	leKeyEval := evalByNameOf(lExtraEvals, leftSchema, p.leftKey)
	reKeyEval := evalByNameOf(rExtraEvals, rightSchema, p.rightKey)
	leKeyStar := proof.VerifyStar(b, alpha, leKeyEval, chiEl)
	reKeyStar := proof.VerifyStar(b, alpha, reKeyEval, chiEr)
	uStar := proof.VerifyStar(b, alpha, sortedU, chiU)
	b.ProduceSumcheckSubpolynomial(proof.ZeroSum, []proof.EvalTerm{
		proof.NewEvalTerm(1, leKeyStar),
		proof.NewEvalTerm(1, reKeyStar),
		proof.NewEvalTerm(-1, uStar),
	})
	if err := proof.VerifyStrictlyIncreasing(b, alpha, beta, sortedU, shiftedU, u); err != nil {
		return nil, err
	}

	return &proof.PlanEval{
		ColumnEvals:  outEvals,
		OutputLength: m,
		ChiEval:      chiM,
	}, nil
}

func evalByName(pe *proof.PlanEval, schema []sql.ColumnField, name string) fr.Element {
	return evalByNameOf(pe.ColumnEvals, schema, name)
}

func evalByNameOf(evals []proof.Eval, schema []sql.ColumnField, name string) fr.Element {
	for i, f := range schema {
		if f.Name == name {
			return evals[i].Value
		}
	}
	return fr.Element{}
}
