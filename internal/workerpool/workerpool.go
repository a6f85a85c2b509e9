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

// Package workerpool provides a small, explicit, caller-sized
// work-stealing pool used by the signature builder and the Jaccard
// engine for their one-vs-many fan-outs, replacing a per-call-site
// sync.WaitGroup-plus-token-channel pattern with one reusable type
// that takes a worker count and returns a reusable pool.
package workerpool

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"
)

// Pool runs batches of independent units of work across a fixed number
// of goroutines, pulling from a shared index counter so that workers
// finishing a cheap unit immediately steal the next one rather than
// sitting idle (dynamic work-stealing, as opposed to a static
// i*N/workers split that would starve a worker on an uneven batch).
type Pool struct {
	cores int
}

// New returns a Pool sized to cores goroutines. cores <= 0 means "use
// runtime.NumCPU()".
func New(cores int) *Pool {
	if cores <= 0 {
		cores = runtime.NumCPU()
	}
	return &Pool{cores: cores}
}

// Close releases the pool. Pool holds no resources of its own (workers
// are spawned fresh per Run call and exit when it returns); Close
// exists so callers have one deterministic shutdown point to call
// regardless of how the pool is implemented.
func (p *Pool) Close() {}

// Run calls fn(i) for every i in [0, n), distributing work across
// p.cores goroutines. It blocks until every unit has been attempted or
// ctx is cancelled. If ctx is cancelled, Run stops handing out new
// units (units already in flight complete) and returns ctx.Err();
// callers must treat partial results as invalid in that case.
func (p *Pool) Run(ctx context.Context, n int, fn func(i int)) error {
	if n <= 0 {
		return nil
	}
	workers := p.cores
	if workers > n {
		workers = n
	}

	var next int64 = -1
	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				default:
				}
				i := int(atomic.AddInt64(&next, 1))
				if i >= n {
					return
				}
				fn(i)
			}
		}()
	}
	wg.Wait()

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}
