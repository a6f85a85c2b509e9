// Copyright © 2018-2020 Wei Shen <shenwei356@gmail.com>
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

// Package sigfile implements the on-disk .gs signature container: a
// random-accessible collection of N variable-length sorted integer
// arrays sharing one kmers.KmerSpec, plus optional per-signature IDs
// and a free-form metadata blob.
//
// File layout (all integers big-endian):
//
//	offset  size         field
//	0       8            magic "GAMBITSG"
//	8       4            format version (uint32)
//	12      4            flags (uint32, see flag* consts)
//	16      1            prefix length (uint8)
//	17      plen         prefix bytes
//	17+plen 1            k (uint8)
//	...     8            N (uint64)
//	...     8*(N+1)      bounds (uint64, element offsets into the logical value stream)
//	...     [8*(N+1)]    compressed block index (uint64 byte offsets), only if flagCompressed
//	...     variable     values: N signatures' indices, width from KmerSpec.IndexWidth(),
//	                     either one flat big-endian array (uncompressed) or N
//	                     independently zstd-compressed blocks (compressed)
//	...     variable     ids: N length-prefixed (uint32) UTF-8 strings, only if flagHasIDs
//	...     variable     metadata: one length-prefixed (uint32) UTF-8 JSON blob, only if flagHasMetadata
package sigfile

import "errors"

// Magic identifies a .gs signature file.
var Magic = [8]byte{'G', 'A', 'M', 'B', 'I', 'T', 'S', 'G'}

// Version is the format version this package reads and writes.
const Version uint32 = 1

const (
	flagHasIDs      uint32 = 1 << 0
	flagHasMetadata uint32 = 1 << 1
	flagCompressed  uint32 = 1 << 2
)

// ErrCorruptSignatureFile is returned for any structural inconsistency
// detected at open time or on first validated access: bad magic,
// unknown version, non-monotone bounds, or an out-of-range index.
var ErrCorruptSignatureFile = errors.New("sigfile: corrupt signature file")
