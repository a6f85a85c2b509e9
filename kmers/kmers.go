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

// Package kmers encodes and decodes fixed-length nucleotide strings as
// 2-bit-packed integers. Unlike a general IUPAC-aware codec, only the
// strict four-letter alphabet {A,C,G,T} (case-insensitive) is accepted;
// any other byte is a hard error, never folded to a default base.
package kmers

import "errors"

// ErrInvalidNucleotide is returned when a byte outside {A,C,G,T,a,c,g,t}
// is encountered while encoding.
var ErrInvalidNucleotide = errors.New("kmers: invalid nucleotide")

// ErrKOverflow is returned when k is outside [1, 32].
var ErrKOverflow = errors.New("kmers: k must be in [1, 32]")

// code2base maps a 2-bit code to its upper-case base.
var code2base = [4]byte{'A', 'C', 'G', 'T'}

// base2code maps every byte value to its 2-bit code, or 0xff if the byte
// is not a valid nucleotide. Built once so Encode has no branches beyond
// the table lookup and the validity check.
var base2code [256]byte

func init() {
	for i := range base2code {
		base2code[i] = 0xff
	}
	base2code['A'], base2code['a'] = 0, 0
	base2code['C'], base2code['c'] = 1, 1
	base2code['G'], base2code['g'] = 2, 2
	base2code['T'], base2code['t'] = 3, 3
}

// complementCode maps a 2-bit code to the code of its complementary base
// (A<->T, C<->G), which for this packing is simply code^3.
func complementCode(c byte) byte { return c ^ 3 }

// Encode packs a k-length nucleotide buffer into a uint64, most
// significant base first, so that lexicographic order on the input
// string equals numeric order on the returned index. k must be in
// [1, 32]; the buffer's length must equal k.
func Encode(seq []byte) (uint64, error) {
	k := len(seq)
	if k == 0 || k > 32 {
		return 0, ErrKOverflow
	}
	var code uint64
	for _, b := range seq {
		c := base2code[b]
		if c == 0xff {
			return 0, ErrInvalidNucleotide
		}
		code = code<<2 | uint64(c)
	}
	return code, nil
}

// EncodeRevComp encodes the reverse complement of seq without
// materializing it: bases are folded A<->T, C<->G and consumed back to
// front.
func EncodeRevComp(seq []byte) (uint64, error) {
	k := len(seq)
	if k == 0 || k > 32 {
		return 0, ErrKOverflow
	}
	var code uint64
	for i := k - 1; i >= 0; i-- {
		c := base2code[seq[i]]
		if c == 0xff {
			return 0, ErrInvalidNucleotide
		}
		code = code<<2 | uint64(complementCode(c))
	}
	return code, nil
}

// Decode unpacks idx back into a k-length, upper-case nucleotide slice.
// It is the inverse of Encode.
func Decode(idx uint64, k int) ([]byte, error) {
	if k <= 0 || k > 32 {
		return nil, ErrKOverflow
	}
	out := make([]byte, k)
	for i := k - 1; i >= 0; i-- {
		out[i] = code2base[idx&3]
		idx >>= 2
	}
	return out, nil
}

var complementTable [256]byte

func init() {
	for i := range complementTable {
		complementTable[i] = byte(i)
	}
	pairs := [][2]byte{{'A', 'T'}, {'C', 'G'}, {'a', 't'}, {'c', 'g'}}
	for _, p := range pairs {
		complementTable[p[0]], complementTable[p[1]] = p[1], p[0]
	}
}

// RevComp returns the byte-wise reverse-complement of seq. Bytes that
// are not recognized nucleotides pass through unchanged, and case is
// preserved.
func RevComp(seq []byte) []byte {
	n := len(seq)
	out := make([]byte, n)
	for i, b := range seq {
		out[n-1-i] = complementTable[b]
	}
	return out
}

// NKmers returns 4^k, the cardinality of the k-mer index space. At
// k==32 the true value (2^64) overflows uint64 and this returns 0;
// callers needing a range check on a k-mer index must use
// KmerSpec.IndexInRange instead of comparing against NKmers directly.
func NKmers(k int) uint64 {
	return uint64(1) << uint(2*k)
}

// IndexWidth is the smallest unsigned integer width that can hold every
// index in [0, 4^k).
type IndexWidth int

const (
	Width16 IndexWidth = 16
	Width32 IndexWidth = 32
	Width64 IndexWidth = 64
)

// WidthForK returns the narrowest IndexWidth such that NKmers(k) <= 2^width.
func WidthForK(k int) IndexWidth {
	switch {
	case k <= 8:
		return Width16
	case k <= 16:
		return Width32
	default:
		return Width64
	}
}
