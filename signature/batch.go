package signature

import (
	"context"

	"github.com/jlumpe/gambit/internal/workerpool"
	"github.com/jlumpe/gambit/kmers"
)

// BuildMany computes the signature of every genome in sources in
// parallel, one worker per genome, using a pool sized to cores (<=0
// means hardware thread count). Workers use independent scratch
// buffers — each genome gets its own builder — and the cancellation
// token is additionally polled between genomes, not just between
// sequences within one genome.
//
// A failure building any one genome is recorded in errs[i] and does not
// abort the others; results[i] is nil wherever errs[i] is non-nil.
func BuildMany(ctx context.Context, spec kmers.KmerSpec, sources []SequenceSource, cores int) (results []Signature, errs []error) {
	results = make([]Signature, len(sources))
	errs = make([]error, len(sources))

	pool := workerpool.New(cores)
	defer pool.Close()

	_ = pool.Run(ctx, len(sources), func(i int) {
		sig, err := Build(ctx, spec, sources[i])
		results[i] = sig
		errs[i] = err
	})
	return results, errs
}
