package sumcheck

import (
	"fmt"
	"runtime"
	"sync"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"

	"github.com/verisql/verisql/internal/utils"
	"github.com/verisql/verisql/transcript"
)

// Prove runs the sumcheck rounds for poly over nv variables, producing one
// univariate (degree+1 evaluations) per round, absorbed into the transcript
// before its challenge is drawn. It returns the proof and the final
// evaluation point in little-endian variable order.
//
// The input MLEs are copied; the caller's slices are left intact.
func Prove(t *transcript.Transcript, poly Polynomial, nv, degree int) (*Proof, []fr.Element, error) {
	size := 1 << nv
	for i := range poly.MLEs {
		if len(poly.MLEs[i]) != size {
			return nil, nil, fmt.Errorf("sumcheck: MLE %d has %d rows, want %d", i, len(poly.MLEs[i]), size)
		}
	}
	for _, term := range poly.Terms {
		if len(term.Multiplicands) > degree {
			return nil, nil, fmt.Errorf("sumcheck: term with %d multiplicands exceeds degree bound %d", len(term.Multiplicands), degree)
		}
	}

	if nv == 0 {
		return &Proof{}, nil, nil
	}

	// working copies: rounds fold in place
	tables := make([][]fr.Element, len(poly.MLEs))
	for i := range tables {
		tables[i] = append([]fr.Element{}, poly.MLEs[i]...)
	}

	proof := &Proof{RoundEvaluations: make([][]fr.Element, nv)}
	point := make([]fr.Element, nv)

	for round := 0; round < nv; round++ {
		evals := roundEvaluations(tables, poly.Terms, degree)
		proof.RoundEvaluations[round] = evals

		t.AppendScalars("sumcheck.round", evals...)
		r := t.ChallengeScalar("sumcheck.challenge")

		// round binds the top variable
		point[nv-1-round] = r
		for i := range tables {
			tables[i] = fold(tables[i], r)
		}
	}

	return proof, point, nil
}

// roundEvaluations computes the univariate summarizing the current round:
// for s = 0..degree, the sum over the remaining half-cube of the composite
// with the top variable set to s.
func roundEvaluations(tables [][]fr.Element, terms []Term, degree int) []fr.Element {
	half := len(tables[0]) / 2

	nbTasks := runtime.NumCPU()
	if half < 256 {
		nbTasks = 1
	}
	partial := make([][]fr.Element, nbTasks)
	var wg sync.WaitGroup
	chunk := (half + nbTasks - 1) / nbTasks

	for task := 0; task < nbTasks; task++ {
		start, end := task*chunk, (task+1)*chunk
		if end > half {
			end = half
		}
		if start >= end {
			partial[task] = make([]fr.Element, degree+1)
			continue
		}
		wg.Add(1)
		go func(task, start, end int) {
			defer wg.Done()
			acc := make([]fr.Element, degree+1)
			cur := make([]fr.Element, len(tables))
			delta := make([]fr.Element, len(tables))
			var prod fr.Element
			for i := start; i < end; i++ {
				for m := range tables {
					cur[m] = tables[m][i]
					delta[m].Sub(&tables[m][half+i], &tables[m][i])
				}
				for s := 0; s <= degree; s++ {
					for _, term := range terms {
						prod = term.Coefficient
						for _, m := range term.Multiplicands {
							prod.Mul(&prod, &cur[m])
						}
						acc[s].Add(&acc[s], &prod)
					}
					if s < degree {
						for m := range tables {
							cur[m].Add(&cur[m], &delta[m])
						}
					}
				}
			}
			partial[task] = acc
		}(task, start, end)
	}
	wg.Wait()

	evals := make([]fr.Element, degree+1)
	for _, acc := range partial {
		for s := range evals {
			evals[s].Add(&evals[s], &acc[s])
		}
	}
	return evals
}

func fold(v []fr.Element, r fr.Element) []fr.Element {
	mid := len(v) / 2
	bottom, top := v[:mid], v[mid:]
	utils.Parallelize(mid, func(start, end int) {
		var t fr.Element
		for i := start; i < end; i++ {
			t.Sub(&top[i], &bottom[i])
			t.Mul(&t, &r)
			bottom[i].Add(&bottom[i], &t)
		}
	})
	return bottom
}
