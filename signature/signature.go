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

// Package signature scans nucleotide sequences for prefix-anchored
// k-mers and packs the result into a sorted, deduplicated set of
// k-mer indices — a genome's signature under a given kmers.KmerSpec.
package signature

import (
	"context"
	"sort"

	"github.com/jlumpe/gambit/kmers"
)

// Signature is a sorted, strictly increasing, deduplicated set of k-mer
// indices produced under a single kmers.KmerSpec.
type Signature []uint64

// SequenceSource supplies the nucleotide byte strings (e.g. the contigs
// of one genome assembly) that make up a single signature. Reading a
// FASTA/FASTQ file and handing back its records is an external
// collaborator's job (see cmd/gambit, which wires in
// github.com/shenwei356/bio/seqio/fastx); this package only consumes
// whatever byte slices it is given.
type SequenceSource interface {
	// Next returns the next sequence, or ok=false when exhausted. err
	// is non-nil only on an unrecoverable read failure.
	Next() (seq []byte, ok bool, err error)
}

// SliceSource adapts a [][]byte to a SequenceSource, for tests and for
// callers that already have every contig in memory.
type SliceSource struct {
	seqs []([]byte)
	i    int
}

// NewSliceSource wraps seqs as a SequenceSource.
func NewSliceSource(seqs ...[]byte) *SliceSource {
	return &SliceSource{seqs: seqs}
}

func (s *SliceSource) Next() ([]byte, bool, error) {
	if s.i >= len(s.seqs) {
		return nil, false, nil
	}
	seq := s.seqs[s.i]
	s.i++
	return seq, true, nil
}

// builder accumulates k-mer indices found across every sequence of one
// genome. It is not goroutine-safe; each worker building one genome's
// signature owns its own builder and scratch buffers.
type builder struct {
	spec     kmers.KmerSpec
	prefix   []byte
	prefixRC []byte
	totalLen int
	seen     map[uint64]struct{}
}

func newBuilder(spec kmers.KmerSpec) *builder {
	return &builder{
		spec:     spec,
		prefix:   spec.Prefix,
		prefixRC: kmers.RevComp(spec.Prefix),
		totalLen: spec.TotalLen(),
		seen:     make(map[uint64]struct{}, 1<<14),
	}
}

// scan walks seq once, finding every (possibly overlapping) occurrence
// of the forward prefix and of its reverse complement, and inserting
// the resulting k-mer index (when the body after/before the anchor
// decodes cleanly) into the accumulating set.
func (b *builder) scan(seq []byte) {
	plen := len(b.prefix)
	k := b.spec.K

	// Forward strand: prefix immediately precedes the k-mer body.
	for p := 0; ; {
		idx := indexFold(seq[p:], b.prefix)
		if idx < 0 {
			break
		}
		pos := p + idx
		bodyStart := pos + plen
		if bodyStart+k <= len(seq) {
			if code, err := kmers.Encode(seq[bodyStart : bodyStart+k]); err == nil {
				b.seen[code] = struct{}{}
			}
		}
		p = pos + 1 // overlapping hits are all considered independently
	}

	// Reverse strand: the reverse complement of the prefix appears
	// downstream of the (reverse-complement) k-mer body, i.e. the body
	// occupies the k bytes immediately preceding the match in forward
	// coordinates, read via EncodeRevComp.
	for p := 0; ; {
		idx := indexFold(seq[p:], b.prefixRC)
		if idx < 0 {
			break
		}
		pos := p + idx
		if pos-k >= 0 {
			if code, err := kmers.EncodeRevComp(seq[pos-k : pos]); err == nil {
				b.seen[code] = struct{}{}
			}
		}
		p = pos + 1
	}
}

// finish sorts and returns the accumulated indices.
func (b *builder) finish() Signature {
	out := make(Signature, 0, len(b.seen))
	for code := range b.seen {
		out = append(out, code)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// indexFold is a case-insensitive bytes.Index: the prefix is already
// upper-cased by kmers.NewKmerSpec, so only the haystack needs folding.
// It avoids allocating an upper-cased copy of the whole sequence by
// scanning byte-by-byte, which also lets case-insensitivity short-
// circuit as soon as a mismatch is found.
func indexFold(haystack, needle []byte) int {
	n := len(needle)
	if n == 0 || n > len(haystack) {
		return -1
	}
	limit := len(haystack) - n
outer:
	for i := 0; i <= limit; i++ {
		for j := 0; j < n; j++ {
			if upper(haystack[i+j]) != needle[j] {
				continue outer
			}
		}
		return i
	}
	return -1
}

func upper(b byte) byte {
	if b >= 'a' && b <= 'z' {
		return b - ('a' - 'A')
	}
	return b
}

// Build computes the signature of a genome (one or more sequences) under
// spec. Per-sequence matches are accumulated into a single set; ctx is
// polled between sequences and, if cancelled, Build returns
// context.Cause(ctx) with a nil Signature.
func Build(ctx context.Context, spec kmers.KmerSpec, src SequenceSource) (Signature, error) {
	b := newBuilder(spec)
	for {
		select {
		case <-ctx.Done():
			return nil, context.Cause(ctx)
		default:
		}
		seq, ok, err := src.Next()
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		if len(seq) > 0 {
			b.scan(seq)
		}
	}
	return b.finish(), nil
}

// BuildSlice is a convenience wrapper over Build for callers (tests,
// small tools) that already have every sequence in memory and have no
// need for cancellation.
func BuildSlice(spec kmers.KmerSpec, sequences ...[]byte) (Signature, error) {
	return Build(context.Background(), spec, NewSliceSource(sequences...))
}

// Valid reports whether sig is strictly increasing and every value is
// less than 4^spec.K.
func Valid(spec kmers.KmerSpec, sig Signature) bool {
	for i, v := range sig {
		if !spec.IndexInRange(v) {
			return false
		}
		if i > 0 && sig[i-1] >= v {
			return false
		}
	}
	return true
}

// Equal reports set equality between two (already sorted) signatures.
func Equal(a, b Signature) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
