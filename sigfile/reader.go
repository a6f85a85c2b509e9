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

package sigfile

import (
	"bytes"
	"encoding/json"
	"os"

	"github.com/edsrzf/mmap-go"
	"github.com/klauspost/compress/zstd"
	"github.com/pkg/errors"

	"github.com/jlumpe/gambit/kmers"
	"github.com/jlumpe/gambit/signature"
)

// Store is a random-access, read-only view of a .gs signature file.
// Implementations must be safe for concurrent use by multiple
// goroutines, since jaccard.DistanceAll and signature.BuildMany hand
// indices out to a worker pool.
type Store interface {
	// Len returns the number of signatures, N.
	Len() int

	// Spec returns the KmerSpec shared by every signature in the store.
	Spec() kmers.KmerSpec

	// IDs returns the per-signature ID strings, or nil if the file
	// carries none.
	IDs() []string

	// Metadata returns the raw JSON metadata blob, or nil if the file
	// carries none.
	Metadata() json.RawMessage

	// Get returns the i'th signature, decoded into a freshly allocated
	// slice the caller owns. It remains valid after Close.
	Get(i int) (signature.Signature, error)

	// IterChunks calls fn with consecutive runs of at most batch
	// indices, [start, end), until every signature has been visited or
	// fn returns an error.
	IterChunks(batch int, fn func(start, end int) error) error

	// Close releases any underlying resources (e.g. unmaps the file).
	Close() error
}

// mmapStore is the on-disk-backed Store implementation: the file is
// memory-mapped once at Open and each Get decodes one signature from
// that mapping into a newly allocated slice; no view into the mapping
// is ever returned.
type mmapStore struct {
	f    *os.File
	m    mmap.MMap
	spec kmers.KmerSpec

	n            int
	bounds       []uint64 // length n+1, element offsets into the logical value stream
	blockOffsets []uint64 // length n+1 if compressed, else nil
	compressed   bool

	valuesOff int // byte offset of the values section within m
	ids       []string
	meta      json.RawMessage

	dec *zstd.Decoder
}

// Open memory-maps path and validates its header, returning a Store.
// The returned Store holds the mapping open until Close is called.
func Open(path string) (Store, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "sigfile: open")
	}

	m, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		f.Close()
		return nil, errors.Wrap(err, "sigfile: mmap")
	}

	s, err := parseStore(f, m)
	if err != nil {
		m.Unmap()
		f.Close()
		return nil, err
	}
	return s, nil
}

func parseStore(f *os.File, m mmap.MMap) (*mmapStore, error) {
	if len(m) < 17 {
		return nil, ErrCorruptSignatureFile
	}
	if !bytes.Equal(m[0:8], Magic[:]) {
		return nil, errors.Wrap(ErrCorruptSignatureFile, "bad magic")
	}
	off := 8

	version := be.Uint32(m[off:])
	off += 4
	if version != Version {
		return nil, errors.Wrapf(ErrCorruptSignatureFile, "unsupported version %d", version)
	}

	flags := be.Uint32(m[off:])
	off += 4

	if off >= len(m) {
		return nil, ErrCorruptSignatureFile
	}
	plen := int(m[off])
	off++
	if off+plen > len(m) {
		return nil, ErrCorruptSignatureFile
	}
	prefix := make([]byte, plen)
	copy(prefix, m[off:off+plen])
	off += plen

	if off >= len(m) {
		return nil, ErrCorruptSignatureFile
	}
	k := int(m[off])
	off++

	spec, err := kmers.NewKmerSpec(prefix, k)
	if err != nil {
		return nil, errors.Wrap(ErrCorruptSignatureFile, "invalid KmerSpec in header")
	}

	if off+8 > len(m) {
		return nil, ErrCorruptSignatureFile
	}
	n := int(be.Uint64(m[off:]))
	off += 8

	boundsLen := (n + 1) * 8
	if off+boundsLen > len(m) {
		return nil, ErrCorruptSignatureFile
	}
	bounds := make([]uint64, n+1)
	for i := range bounds {
		bounds[i] = be.Uint64(m[off+i*8:])
	}
	off += boundsLen
	for i := 1; i <= n; i++ {
		if bounds[i] < bounds[i-1] {
			return nil, errors.Wrap(ErrCorruptSignatureFile, "bounds not monotone")
		}
	}

	compressed := flags&flagCompressed != 0
	var blockOffsets []uint64
	if compressed {
		if off+boundsLen > len(m) {
			return nil, ErrCorruptSignatureFile
		}
		blockOffsets = make([]uint64, n+1)
		for i := range blockOffsets {
			blockOffsets[i] = be.Uint64(m[off+i*8:])
		}
		off += boundsLen
		for i := 1; i <= n; i++ {
			if blockOffsets[i] < blockOffsets[i-1] {
				return nil, errors.Wrap(ErrCorruptSignatureFile, "block offsets not monotone")
			}
		}
	}

	valuesOff := off
	var valuesLen int
	if compressed {
		valuesLen = int(blockOffsets[n])
	} else {
		valuesLen = int(bounds[n]) * bytesPerValue(spec.IndexWidth())
	}
	if valuesOff+valuesLen > len(m) {
		return nil, errors.Wrap(ErrCorruptSignatureFile, "truncated values section")
	}
	off += valuesLen

	var ids []string
	if flags&flagHasIDs != 0 {
		ids = make([]string, n)
		for i := 0; i < n; i++ {
			s, next, err := readLenPrefixed(m, off)
			if err != nil {
				return nil, err
			}
			ids[i] = string(s)
			off = next
		}
	}

	var meta json.RawMessage
	if flags&flagHasMetadata != 0 {
		b, next, err := readLenPrefixed(m, off)
		if err != nil {
			return nil, err
		}
		meta = json.RawMessage(b)
		off = next
	}

	var dec *zstd.Decoder
	if compressed {
		dec, err = zstd.NewReader(nil)
		if err != nil {
			return nil, errors.Wrap(err, "sigfile: create zstd decoder")
		}
	}

	return &mmapStore{
		f:            f,
		m:            m,
		spec:         spec,
		n:            n,
		bounds:       bounds,
		blockOffsets: blockOffsets,
		compressed:   compressed,
		valuesOff:    valuesOff,
		ids:          ids,
		meta:         meta,
		dec:          dec,
	}, nil
}

func readLenPrefixed(m mmap.MMap, off int) (data []byte, next int, err error) {
	if off+4 > len(m) {
		return nil, 0, ErrCorruptSignatureFile
	}
	l := int(be.Uint32(m[off:]))
	off += 4
	if off+l > len(m) {
		return nil, 0, ErrCorruptSignatureFile
	}
	return m[off : off+l], off + l, nil
}

func (s *mmapStore) Len() int                  { return s.n }
func (s *mmapStore) Spec() kmers.KmerSpec      { return s.spec }
func (s *mmapStore) IDs() []string             { return s.ids }
func (s *mmapStore) Metadata() json.RawMessage { return s.meta }

func (s *mmapStore) Get(i int) (signature.Signature, error) {
	if i < 0 || i >= s.n {
		return nil, errors.Wrapf(ErrCorruptSignatureFile, "index %d out of range [0,%d)", i, s.n)
	}
	count := int(s.bounds[i+1] - s.bounds[i])
	width := s.spec.IndexWidth()

	var sig signature.Signature
	if !s.compressed {
		bw := bytesPerValue(width)
		start := s.valuesOff + int(s.bounds[i])*bw
		raw := s.m[start : start+count*bw]
		sig = unpackValues(width, raw)
	} else {
		start := s.valuesOff + int(s.blockOffsets[i])
		end := s.valuesOff + int(s.blockOffsets[i+1])
		raw, err := s.dec.DecodeAll(s.m[start:end], nil)
		if err != nil {
			return nil, errors.Wrap(err, "sigfile: decompress block")
		}
		sig = unpackValues(width, raw)
	}

	if !signature.Valid(s.spec, sig) {
		return nil, errors.Wrapf(ErrCorruptSignatureFile, "signature %d is not strictly sorted or has an out-of-range value", i)
	}
	return sig, nil
}

func (s *mmapStore) IterChunks(batch int, fn func(start, end int) error) error {
	if batch <= 0 {
		batch = s.n
	}
	for start := 0; start < s.n; start += batch {
		end := start + batch
		if end > s.n {
			end = s.n
		}
		if err := fn(start, end); err != nil {
			return err
		}
	}
	return nil
}

func (s *mmapStore) Close() error {
	if err := s.m.Unmap(); err != nil {
		s.f.Close()
		return errors.Wrap(err, "sigfile: unmap")
	}
	return errors.Wrap(s.f.Close(), "sigfile: close")
}
