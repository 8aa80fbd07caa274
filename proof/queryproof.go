package proof

import (
	"fmt"
	"time"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"

	"github.com/verisql/verisql/commitment"
	"github.com/verisql/verisql/internal/utils"
	"github.com/verisql/verisql/mle"
	"github.com/verisql/verisql/sql"
	"github.com/verisql/verisql/sumcheck"
	"github.com/verisql/verisql/transcript"
)

const transcriptLabel = "verisql/v0/query"

// numVariables returns the hypercube dimension covering n rows.
func numVariables(n int) int {
	if n <= 1 {
		return 0
	}
	return utils.Log2Ceil(n)
}

// eqEvaluate computes eq(r, p) = prod_j (r_j p_j + (1-r_j)(1-p_j)).
func eqEvaluate(r, p []fr.Element) fr.Element {
	one := fr.One()
	res := one
	for j := range r {
		var a, b, t fr.Element
		a.Mul(&r[j], &p[j])
		b.Sub(&one, &r[j])
		t.Sub(&one, &p[j])
		b.Mul(&b, &t)
		a.Add(&a, &b)
		res.Mul(&res, &a)
	}
	return res
}

// checkTableOffsets rejects plans over tables committed at nonzero offsets.
func checkTableOffsets(tables []sql.TableRef, acc sql.MetadataAccessor) error {
	for _, ref := range tables {
		if acc.TableOffset(ref) != 0 {
			return fmt.Errorf("%w: table %s", ErrUnsupportedOffset, ref)
		}
	}
	return nil
}

// checkResultSchema validates a claimed result table against the plan's
// output schema.
func checkResultSchema(result *sql.Table, schema []sql.ColumnField) error {
	if result.NumColumns() != len(schema) {
		return fmt.Errorf("%w: got %d columns, plan has %d", ErrFieldCountMismatch, result.NumColumns(), len(schema))
	}
	for i, f := range schema {
		if result.ColumnName(i) != f.Name {
			return fmt.Errorf("%w: column %d is %q, plan has %q", ErrFieldNamesMismatch, i, result.ColumnName(i), f.Name)
		}
		rt := result.Column(i).Type()
		if !rt.EqualIgnoringNullability(f.Type) {
			return fmt.Errorf("%w: column %q is %s, plan has %s", ErrInvalidTypeCoercion, f.Name, rt, f.Type)
		}
		if rt.Nullable && !f.Type.Nullable {
			return fmt.Errorf("%w: column %q is nullable, plan is not", ErrInvalidTypeCoercion, f.Name)
		}
	}
	return nil
}

// Prove executes a plan over the accessor's data and produces the result
// table together with its proof. Structural plan bugs (challenge count drift,
// oversized terms) panic; data errors return.
func Prove(plan Plan, acc sql.DataAccessor, scheme commitment.Scheme, params []sql.LiteralValue, opts ...Option) (*VerifiableQueryResult, error) {
	cfg := defaultConfig(opts...)
	start := time.Now()

	if err := plan.BindParams(params); err != nil {
		return nil, err
	}
	tables := sortedTableRefs(plan)
	if err := checkTableOffsets(tables, acc); err != nil {
		return nil, err
	}
	refs := sortedColumnRefs(plan)

	initialRange := 0
	for _, ref := range tables {
		if n := acc.TableLength(ref); n > initialRange {
			initialRange = n
		}
	}

	// First round: compute the result and everything committed before any
	// challenge exists.
	frb := NewFirstRoundBuilder(initialRange)
	result, err := plan.FirstRoundEvaluate(frb, acc)
	if err != nil {
		return nil, err
	}
	resultBytes, err := encodeResultTable(result)
	if err != nil {
		return nil, err
	}

	t := transcript.New(transcriptLabel)
	t.Append("result", resultBytes)
	for _, ref := range tables {
		t.AppendUint64("table.length", uint64(acc.TableLength(ref)))
	}

	firstComms := make([][]byte, len(frb.MLEs()))
	for i, v := range frb.MLEs() {
		c, err := scheme.Commit(v, 0)
		if err != nil {
			return nil, err
		}
		firstComms[i] = c.Bytes()
		t.Append("first.commitment", firstComms[i])
	}
	for _, n := range frb.ChiEvaluationLengths() {
		t.AppendUint64("chi.length", uint64(n))
	}
	t.AppendUint64("challenge.count", uint64(frb.PostChallengeCount()))
	posts := t.ChallengeScalars("post.challenge", frb.PostChallengeCount())

	// Final round: recompute with constraints.
	fnb := NewFinalRoundBuilder(posts)
	if _, err := plan.FinalRoundEvaluate(fnb, acc); err != nil {
		return nil, err
	}
	if fnb.ConsumedChallenges() != frb.PostChallengeCount() {
		panic(fmt.Sprintf("final round consumed %d post-result challenges, first round requested %d",
			fnb.ConsumedChallenges(), frb.PostChallengeCount()))
	}

	bds := fnb.BitDistributions()
	for i := range bds {
		b, err := bds[i].MarshalBinary()
		if err != nil {
			return nil, err
		}
		t.Append("bit.distribution", b)
	}
	finalComms := make([][]byte, len(fnb.MLEs()))
	for i, v := range fnb.MLEs() {
		c, err := scheme.Commit(v, 0)
		if err != nil {
			return nil, err
		}
		finalComms[i] = c.Bytes()
		t.Append("final.commitment", finalComms[i])
	}

	subs := fnb.Subpolynomials()
	nv := numVariables(frb.RangeLength())
	t.AppendUint64("nv", uint64(nv))
	t.AppendUint64("subpoly.count", uint64(len(subs)))
	entry := t.ChallengeScalars("entrywise", nv)
	multipliers := t.ChallengeScalars("multiplier", len(subs))

	poly := assemblePolynomial(subs, multipliers, entry, nv)
	scProof, point, err := sumcheck.Prove(t, poly, nv, SumcheckDegree)
	if err != nil {
		return nil, err
	}

	// Claimed evaluations and the batched opening.
	openVecs := make([][]fr.Element, 0, len(frb.MLEs())+len(fnb.MLEs())+len(refs))
	openVecs = append(openVecs, frb.MLEs()...)
	openVecs = append(openVecs, fnb.MLEs()...)
	for _, ref := range refs {
		openVecs = append(openVecs, acc.Column(ref).Scalars())
	}
	eqPoint := mle.EvalVector(point)
	evals := make([]fr.Element, len(openVecs))
	utils.Parallelize(len(openVecs), func(s, e int) {
		for i := s; i < e; i++ {
			evals[i] = mle.InnerProduct(openVecs[i], eqPoint)
		}
	}, cfg.nbTasks)
	t.AppendScalars("mle.evals", evals...)

	opening, err := scheme.BatchOpen(t, openVecs, point, evals)
	if err != nil {
		return nil, err
	}

	nFirst := len(frb.MLEs())
	nFinal := len(fnb.MLEs())
	qp := &QueryProof{
		FirstRoundCommitments: firstComms,
		ChiLengths:            frb.ChiEvaluationLengths(),
		PostChallengeCount:    frb.PostChallengeCount(),
		BitDistributions:      bds,
		FinalRoundCommitments: finalComms,
		NumSubpolynomials:     len(subs),
		SumcheckRounds:        scProof.RoundEvaluations,
		FirstRoundEvals:       evals[:nFirst],
		FinalRoundEvals:       evals[nFirst : nFirst+nFinal],
		BaseEvals:             evals[nFirst+nFinal:],
		Opening:               opening,
	}

	cfg.log.Debug().
		Int("nv", nv).
		Int("subpolynomials", len(subs)).
		Int("rows", result.NumRows()).
		Dur("took", time.Since(start)).
		Msg("query proved")
	return &VerifiableQueryResult{Result: result, Proof: qp}, nil
}

// assemblePolynomial turns the collected constraints into one batched
// sumcheck polynomial. Identity constraints are multiplied by the entrywise
// selector; every constraint is weighted by its transcript multiplier. The
// total hypercube sum of the assembled polynomial is zero for an honest
// prover.
func assemblePolynomial(subs []Subpolynomial, multipliers, entry []fr.Element, nv int) sumcheck.Polynomial {
	size := 1 << nv
	var poly sumcheck.Polynomial
	index := make(map[*fr.Element]int)
	zeroIdx := -1
	addMLE := func(v []fr.Element) int {
		if len(v) == 0 {
			if zeroIdx < 0 {
				zeroIdx = len(poly.MLEs)
				poly.MLEs = append(poly.MLEs, make([]fr.Element, size))
			}
			return zeroIdx
		}
		key := &v[0]
		if i, ok := index[key]; ok {
			return i
		}
		i := len(poly.MLEs)
		index[key] = i
		poly.MLEs = append(poly.MLEs, mle.Pad(v, size))
		return i
	}

	eqIdx := -1
	if len(subs) > 0 {
		eqIdx = addMLE(mle.EvalVector(entry))
	}
	for k, sub := range subs {
		for _, term := range sub.Terms {
			var coeff fr.Element
			coeff.Mul(&term.Coefficient, &multipliers[k])
			idxs := make([]int, 0, len(term.Multiplicands)+1)
			for _, m := range term.Multiplicands {
				idxs = append(idxs, addMLE(m))
			}
			if sub.Kind == Identity {
				idxs = append(idxs, eqIdx)
			}
			poly.Terms = append(poly.Terms, sumcheck.Term{Coefficient: coeff, Multiplicands: idxs})
		}
	}
	return poly
}

// Verify checks the result against the plan and the committed data. Any
// inconsistency surfaces as an error wrapping ErrVerification (or one of the
// schema errors); on success the now-trusted result table is returned.
func Verify(r *VerifiableQueryResult, plan Plan, acc sql.CommitmentAccessor, scheme commitment.Scheme, params []sql.LiteralValue, opts ...Option) (*sql.Table, error) {
	cfg := defaultConfig(opts...)
	start := time.Now()

	if err := plan.BindParams(params); err != nil {
		return nil, err
	}
	tables := sortedTableRefs(plan)
	if err := checkTableOffsets(tables, acc); err != nil {
		return nil, err
	}
	if err := checkResultSchema(r.Result, plan.OutputSchema()); err != nil {
		return nil, err
	}
	refs := sortedColumnRefs(plan)
	p := r.Proof
	if len(p.BaseEvals) != len(refs) ||
		len(p.FirstRoundEvals) != len(p.FirstRoundCommitments) ||
		len(p.FinalRoundEvals) != len(p.FinalRoundCommitments) ||
		p.PostChallengeCount < 0 || p.NumSubpolynomials < 0 {
		return nil, fmt.Errorf("%w: malformed proof shape", ErrVerification)
	}

	resultBytes, err := encodeResultTable(r.Result)
	if err != nil {
		return nil, err
	}

	t := transcript.New(transcriptLabel)
	t.Append("result", resultBytes)
	rangeLength := 0
	for _, ref := range tables {
		n := acc.TableLength(ref)
		if n > rangeLength {
			rangeLength = n
		}
		t.AppendUint64("table.length", uint64(n))
	}
	for _, c := range p.FirstRoundCommitments {
		t.Append("first.commitment", c)
	}
	for _, n := range p.ChiLengths {
		if n < 0 {
			return nil, fmt.Errorf("%w: negative length declaration", ErrVerification)
		}
		if n > rangeLength {
			rangeLength = n
		}
		t.AppendUint64("chi.length", uint64(n))
	}
	t.AppendUint64("challenge.count", uint64(p.PostChallengeCount))
	posts := t.ChallengeScalars("post.challenge", p.PostChallengeCount)

	for i := range p.BitDistributions {
		b, err := p.BitDistributions[i].MarshalBinary()
		if err != nil {
			return nil, err
		}
		t.Append("bit.distribution", b)
	}
	for _, c := range p.FinalRoundCommitments {
		t.Append("final.commitment", c)
	}

	nv := numVariables(rangeLength)
	t.AppendUint64("nv", uint64(nv))
	t.AppendUint64("subpoly.count", uint64(p.NumSubpolynomials))
	entry := t.ChallengeScalars("entrywise", nv)
	multipliers := t.ChallengeScalars("multiplier", p.NumSubpolynomials)

	var zero fr.Element
	scProof := sumcheck.Proof{RoundEvaluations: p.SumcheckRounds}
	subclaim, err := sumcheck.Verify(t, &scProof, zero, nv, SumcheckDegree)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrVerification, err)
	}

	baseEvals := make(map[sql.ColumnRef]fr.Element, len(refs))
	for i, ref := range refs {
		baseEvals[ref] = p.BaseEvals[i]
	}
	vb := NewVerificationBuilder(
		subclaim.Point,
		eqEvaluate(entry, subclaim.Point),
		p.FirstRoundEvals, p.FinalRoundEvals,
		p.ChiLengths,
		posts, multipliers,
		p.BitDistributions,
	)
	pe, err := plan.VerifierEvaluate(vb, acc, baseEvals)
	if err != nil {
		return nil, err
	}
	if vb.Invalid() || !vb.FullyConsumed() {
		return nil, fmt.Errorf("%w: proof shape does not match plan", ErrVerification)
	}
	agg := vb.Aggregate()
	if !agg.Equal(&subclaim.ExpectedEvaluation) {
		return nil, fmt.Errorf("%w: constraint aggregation mismatch", ErrVerification)
	}

	// Openings of every claimed evaluation.
	evals := make([]fr.Element, 0, len(p.FirstRoundEvals)+len(p.FinalRoundEvals)+len(p.BaseEvals))
	evals = append(evals, p.FirstRoundEvals...)
	evals = append(evals, p.FinalRoundEvals...)
	evals = append(evals, p.BaseEvals...)
	t.AppendScalars("mle.evals", evals...)

	comms := make([]commitment.Commitment, 0, len(evals))
	for _, raw := range p.FirstRoundCommitments {
		c, err := scheme.UnmarshalCommitment(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrVerification, err)
		}
		comms = append(comms, c)
	}
	for _, raw := range p.FinalRoundCommitments {
		c, err := scheme.UnmarshalCommitment(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrVerification, err)
		}
		comms = append(comms, c)
	}
	for _, ref := range refs {
		comms = append(comms, acc.Commitment(ref))
	}
	if err := scheme.VerifyBatchOpening(t, p.Opening, comms, subclaim.Point, evals); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrVerification, err)
	}

	// Reconcile the plaintext result against the proven output evaluations.
	if r.Result.NumRows() != pe.OutputLength {
		return nil, fmt.Errorf("%w: result has %d rows, plan proved %d", ErrVerification, r.Result.NumRows(), pe.OutputLength)
	}
	if r.Result.NumRows() > 1<<nv {
		return nil, fmt.Errorf("%w: result exceeds the proving range", ErrVerification)
	}
	if len(pe.ColumnEvals) != r.Result.NumColumns() {
		return nil, fmt.Errorf("%w: plan proved %d output columns", ErrVerification, len(pe.ColumnEvals))
	}
	eqPoint := mle.EvalVector(subclaim.Point)
	for i := 0; i < r.Result.NumColumns(); i++ {
		col := r.Result.Column(i)
		got := mle.InnerProduct(col.Scalars(), eqPoint)
		if !got.Equal(&pe.ColumnEvals[i].Value) {
			return nil, fmt.Errorf("%w: result column %q does not match its proven evaluation", ErrVerification, r.Result.ColumnName(i))
		}
		if pe.ColumnEvals[i].Presence != nil {
			var presEval fr.Element
			if ps := col.PresenceScalars(); ps != nil {
				presEval = mle.InnerProduct(ps, eqPoint)
			} else {
				presEval = mle.ChiEval(col.Len(), subclaim.Point)
			}
			if !presEval.Equal(pe.ColumnEvals[i].Presence) {
				return nil, fmt.Errorf("%w: result column %q presence mismatch", ErrVerification, r.Result.ColumnName(i))
			}
		} else if col.Presence() != nil {
			return nil, fmt.Errorf("%w: result column %q is unexpectedly nullable", ErrInvalidTypeCoercion, r.Result.ColumnName(i))
		}
	}

	cfg.log.Debug().
		Int("nv", nv).
		Int("rows", r.Result.NumRows()).
		Dur("took", time.Since(start)).
		Msg("query verified")
	return r.Result, nil
}
