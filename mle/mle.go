// Package mle manipulates multilinear extensions: fixed-length sequences of
// field elements read as the evaluations, over the Boolean hypercube, of the
// unique multilinear polynomial agreeing with them.
//
// Variable j of an evaluation point corresponds to bit j of the row index
// (little-endian), so eq_i(point) = prod_j (point_j if bit_j(i) else 1-point_j).
// Vectors shorter than the hypercube are zero-padded.
package mle

import (
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"

	"github.com/verisql/verisql/internal/utils"
)

// EvalVector returns the evaluation vector eq(point, .) over the full
// hypercube, of length 2^len(point). The inner product of an MLE with this
// vector is the MLE's evaluation at point.
func EvalVector(point []fr.Element) []fr.Element {
	out := make([]fr.Element, 1<<len(point))
	out[0].SetOne()
	for j := range point {
		half := 1 << j
		for i := half - 1; i >= 0; i-- {
			out[i+half].Mul(&out[i], &point[j])
			out[i].Sub(&out[i], &out[i+half])
		}
	}
	return out
}

// InnerProduct returns the dot product over the common prefix of a and b,
// i.e. it zero-pads the shorter operand.
func InnerProduct(a, b []fr.Element) fr.Element {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var res, t fr.Element
	for i := 0; i < n; i++ {
		t.Mul(&a[i], &b[i])
		res.Add(&res, &t)
	}
	return res
}

// Fold binds the top variable of v to r in place and returns the halved
// slice: v[i] <- v[i] + r*(v[i+mid] - v[i]).
func Fold(v []fr.Element, r fr.Element) []fr.Element {
	mid := len(v) / 2
	bottom, top := v[:mid], v[mid:]
	for i := range bottom {
		top[i].Sub(&top[i], &bottom[i])
		top[i].Mul(&top[i], &r)
		bottom[i].Add(&bottom[i], &top[i])
	}
	return bottom
}

// Evaluate returns the MLE evaluation of v at point, zero-padding v to
// 2^len(point) rows.
func Evaluate(v []fr.Element, point []fr.Element) fr.Element {
	if len(point) == 0 {
		if len(v) == 0 {
			var zero fr.Element
			return zero
		}
		return v[0]
	}
	eq := EvalVector(point)
	return InnerProduct(v, eq)
}

// Pad returns v zero-extended to length n, sharing the backing array when
// capacity allows.
func Pad(v []fr.Element, n int) []fr.Element {
	if len(v) >= n {
		return v
	}
	out := make([]fr.Element, n)
	copy(out, v)
	return out
}

// ChiEval returns the evaluation at point of the 0/1 indicator of the first n
// rows, in O(len(point)) field operations.
func ChiEval(n int, point []fr.Element) fr.Element {
	var zero, one fr.Element
	one.SetOne()
	if n <= 0 {
		return zero
	}
	if len(point) == 0 {
		return one
	}
	half := 1 << (len(point) - 1)
	p := point[len(point)-1]
	var q, res fr.Element
	q.Sub(&one, &p)
	if n <= half {
		sub := ChiEval(n, point[:len(point)-1])
		res.Mul(&q, &sub)
		return res
	}
	// full lower half plus a partial upper half
	sub := ChiEval(n-half, point[:len(point)-1])
	res.Mul(&p, &sub)
	res.Add(&res, &q)
	return res
}

// RhoEval returns the evaluation at point of the row-index column
// [0, 1, ..., n-1, 0, 0, ...].
func RhoEval(n int, point []fr.Element) fr.Element {
	var zero fr.Element
	if n <= 0 || len(point) == 0 {
		return zero
	}
	half := 1 << (len(point) - 1)
	p := point[len(point)-1]
	lower := point[:len(point)-1]
	var one, q, res, t fr.Element
	one.SetOne()
	q.Sub(&one, &p)
	if n <= half {
		sub := RhoEval(n, lower)
		res.Mul(&q, &sub)
		return res
	}
	lo := RhoEval(half, lower)
	res.Mul(&q, &lo)
	// upper half indices are (half + j): rho(n-half) shifted by half*chi(n-half)
	hi := RhoEval(n-half, lower)
	var halfEl fr.Element
	halfEl.SetUint64(uint64(half))
	t = ChiEval(n-half, lower)
	t.Mul(&t, &halfEl)
	hi.Add(&hi, &t)
	hi.Mul(&hi, &p)
	res.Add(&res, &hi)
	return res
}

// RhoColumn materializes the row-index column [0, 1, ..., n-1].
func RhoColumn(n int) []fr.Element {
	out := make([]fr.Element, n)
	utils.Parallelize(n, func(start, end int) {
		for i := start; i < end; i++ {
			out[i].SetUint64(uint64(i))
		}
	})
	return out
}

// ChiColumn materializes the indicator column of n ones padded to length m.
func ChiColumn(n, m int) []fr.Element {
	out := make([]fr.Element, m)
	for i := 0; i < n; i++ {
		out[i].SetOne()
	}
	return out
}
