// Copyright © 2018 Wei Shen <shenwei356@gmail.com>
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.

// Package jaccard computes the Jaccard distance between sorted integer
// sets, and fans a single query out against many references in
// parallel.
package jaccard

import (
	"context"

	"github.com/jlumpe/gambit/internal/workerpool"
)

// Distance computes 1 - |A∩B| / |A∪B| between two strictly sorted
// slices by a single linear merge. The result is always in [0,1],
// symmetric, zero for a set against itself, zero for empty-vs-empty and
// one for empty-vs-nonempty.
func Distance(a, b []uint64) float32 {
	var i, j, u int
	na, nb := len(a), len(b)
	for i < na && j < nb {
		u++
		x, y := a[i], b[j]
		if x <= y {
			i++
		}
		if y <= x {
			j++
		}
	}
	u += (na - i) + (nb - j)

	if u == 0 {
		return 0.0
	}
	return float32(2*u-na-nb) / float32(u)
}

// RefSet gives indexed access to N reference signatures: At(i) returns
// signature i. It does not expose a concatenated values/bounds layout.
// sigfile.Store does not implement it (its Get also returns an error),
// so callers load a store's signatures into a slice and wrap that with
// SliceRefSet.
type RefSet interface {
	Len() int
	At(i int) []uint64
}

// sliceRefSet adapts a plain slice-of-slices to RefSet, for tests and
// small in-memory reference sets.
type sliceRefSet [][]uint64

func (s sliceRefSet) Len() int          { return len(s) }
func (s sliceRefSet) At(i int) []uint64 { return s[i] }

// SliceRefSet wraps refs as a RefSet.
func SliceRefSet(refs [][]uint64) RefSet { return sliceRefSet(refs) }

// DistanceAll computes Distance(query, refs.At(i)) for every i,
// dispatched across a pool sized to cores (<=0 means hardware thread
// count) with dynamic work-stealing so that a batch of small
// signatures doesn't leave workers idle waiting on a few large ones.
// Every output slot is written exactly once; the result is identical,
// element for element, to a sequential run regardless of worker count.
func DistanceAll(ctx context.Context, query []uint64, refs RefSet, cores int) ([]float32, error) {
	n := refs.Len()
	out := make([]float32, n)

	pool := workerpool.New(cores)
	defer pool.Close()

	err := pool.Run(ctx, n, func(i int) {
		out[i] = Distance(query, refs.At(i))
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
