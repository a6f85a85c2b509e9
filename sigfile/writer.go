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
	"bufio"
	"encoding/json"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
	"github.com/pkg/errors"

	"github.com/jlumpe/gambit/kmers"
	"github.com/jlumpe/gambit/signature"
)

// SignatureSource supplies the signatures a new file is built from, in
// the order they'll receive their 0-based index. Like
// signature.SequenceSource, it lets the writer stream its input instead
// of requiring every signature to be materialized in a slice up front.
type SignatureSource interface {
	Next() (sig signature.Signature, ok bool, err error)
}

// FromSlice adapts a []signature.Signature to a SignatureSource.
func FromSlice(sigs []signature.Signature) SignatureSource {
	return &sliceSigSource{sigs: sigs}
}

type sliceSigSource struct {
	sigs []signature.Signature
	i    int
}

func (s *sliceSigSource) Next() (signature.Signature, bool, error) {
	if s.i >= len(s.sigs) {
		return nil, false, nil
	}
	sig := s.sigs[s.i]
	s.i++
	return sig, true, nil
}

// Metadata bundles the optional parts of a signature file: per-signature
// IDs (must be unique and equal in length to N, when given), a
// free-form JSON blob, and whether to zstd-compress each signature's
// value block.
type Metadata struct {
	IDs      []string
	JSON     json.RawMessage
	Compress bool
}

// Create writes a new .gs file at path from spec and sigs, atomically:
// it streams to a temporary file in the same directory, fsyncs, then
// renames over path. If any step fails the temporary file is removed
// and path is left untouched.
func Create(path string, spec kmers.KmerSpec, sigs SignatureSource, meta Metadata) (err error) {
	dir := filepath.Dir(path)

	valuesTmp, err := os.CreateTemp(dir, ".gambit-values-*")
	if err != nil {
		return errors.Wrap(err, "sigfile: create values scratch file")
	}
	valuesTmpPath := valuesTmp.Name()
	defer os.Remove(valuesTmpPath)

	bw := bufio.NewWriterSize(valuesTmp, 1<<20)
	width := spec.IndexWidth()

	bounds := make([]uint64, 1, 1024)
	var blockOffsets []uint64
	if meta.Compress {
		blockOffsets = make([]uint64, 1, 1024)
	}

	var enc *zstd.Encoder
	if meta.Compress {
		enc, err = zstd.NewWriter(nil)
		if err != nil {
			valuesTmp.Close()
			return errors.Wrap(err, "sigfile: create zstd encoder")
		}
		defer enc.Close()
	}

	var total, blockBytes uint64
	scratch := make([]byte, 0, 4096)
	for {
		sig, ok, nerr := sigs.Next()
		if nerr != nil {
			valuesTmp.Close()
			return errors.Wrap(nerr, "sigfile: reading signature source")
		}
		if !ok {
			break
		}
		for i, v := range sig {
			if !spec.IndexInRange(v) {
				valuesTmp.Close()
				return errors.Errorf("sigfile: value %d out of range for k=%d at signature index %d", v, spec.K, i)
			}
			if i > 0 && sig[i-1] >= v {
				valuesTmp.Close()
				return errors.New("sigfile: signature is not strictly sorted")
			}
		}

		bw2 := bytesPerValue(width)
		if cap(scratch) < len(sig)*bw2 {
			scratch = make([]byte, len(sig)*bw2)
		}
		raw := scratch[:len(sig)*bw2]
		packValues(width, sig, raw)

		if meta.Compress {
			block := enc.EncodeAll(raw, nil)
			if _, werr := bw.Write(block); werr != nil {
				valuesTmp.Close()
				return errors.Wrap(werr, "sigfile: writing compressed block")
			}
			blockBytes += uint64(len(block))
			blockOffsets = append(blockOffsets, blockBytes)
		} else {
			if _, werr := bw.Write(raw); werr != nil {
				valuesTmp.Close()
				return errors.Wrap(werr, "sigfile: writing values")
			}
		}

		total += uint64(len(sig))
		bounds = append(bounds, total)
	}
	if ferr := bw.Flush(); ferr != nil {
		valuesTmp.Close()
		return errors.Wrap(ferr, "sigfile: flushing values scratch file")
	}
	if _, serr := valuesTmp.Seek(0, io.SeekStart); serr != nil {
		valuesTmp.Close()
		return errors.Wrap(serr, "sigfile: rewinding values scratch file")
	}

	n := uint64(len(bounds) - 1)

	finalTmp, err := os.CreateTemp(dir, ".gambit-gs-*")
	if err != nil {
		valuesTmp.Close()
		return errors.Wrap(err, "sigfile: create output scratch file")
	}
	finalTmpPath := finalTmp.Name()
	success := false
	defer func() {
		finalTmp.Close()
		if !success {
			os.Remove(finalTmpPath)
		}
	}()

	out := bufio.NewWriterSize(finalTmp, 1<<20)

	var flags uint32
	if len(meta.IDs) > 0 {
		flags |= flagHasIDs
	}
	if meta.JSON != nil {
		flags |= flagHasMetadata
	}
	if meta.Compress {
		flags |= flagCompressed
	}

	if err = writeHeader(out, spec, flags, n); err != nil {
		valuesTmp.Close()
		return err
	}
	if err = writeU64Slice(out, bounds); err != nil {
		valuesTmp.Close()
		return err
	}
	if meta.Compress {
		if err = writeU64Slice(out, blockOffsets); err != nil {
			valuesTmp.Close()
			return err
		}
	}

	if _, err = io.Copy(out, valuesTmp); err != nil {
		valuesTmp.Close()
		return errors.Wrap(err, "sigfile: copying values into output")
	}
	valuesTmp.Close()

	if flags&flagHasIDs != 0 {
		if uint64(len(meta.IDs)) != n {
			return errors.Errorf("sigfile: %d ids for %d signatures", len(meta.IDs), n)
		}
		if err = writeIDs(out, meta.IDs); err != nil {
			return err
		}
	}
	if flags&flagHasMetadata != 0 {
		if err = writeLenPrefixed(out, meta.JSON); err != nil {
			return err
		}
	}

	if err = out.Flush(); err != nil {
		return errors.Wrap(err, "sigfile: flushing output")
	}
	if err = finalTmp.Sync(); err != nil {
		return errors.Wrap(err, "sigfile: fsync output")
	}
	if err = finalTmp.Close(); err != nil {
		return errors.Wrap(err, "sigfile: closing output")
	}
	if err = os.Rename(finalTmpPath, path); err != nil {
		return errors.Wrap(err, "sigfile: renaming into place")
	}
	success = true
	return nil
}

func writeHeader(w io.Writer, spec kmers.KmerSpec, flags uint32, n uint64) error {
	if _, err := w.Write(Magic[:]); err != nil {
		return errors.Wrap(err, "sigfile: write magic")
	}
	if err := writeU32(w, Version); err != nil {
		return err
	}
	if err := writeU32(w, flags); err != nil {
		return err
	}
	if len(spec.Prefix) > 255 {
		return errors.New("sigfile: prefix too long")
	}
	if _, err := w.Write([]byte{byte(len(spec.Prefix))}); err != nil {
		return errors.Wrap(err, "sigfile: write prefix length")
	}
	if _, err := w.Write(spec.Prefix); err != nil {
		return errors.Wrap(err, "sigfile: write prefix")
	}
	if _, err := w.Write([]byte{byte(spec.K)}); err != nil {
		return errors.Wrap(err, "sigfile: write k")
	}
	return writeU64(w, n)
}

func writeU32(w io.Writer, v uint32) error {
	var buf [4]byte
	be.PutUint32(buf[:], v)
	_, err := w.Write(buf[:])
	return errors.Wrap(err, "sigfile: write u32")
}

func writeU64(w io.Writer, v uint64) error {
	var buf [8]byte
	be.PutUint64(buf[:], v)
	_, err := w.Write(buf[:])
	return errors.Wrap(err, "sigfile: write u64")
}

func writeU64Slice(w io.Writer, vals []uint64) error {
	buf := make([]byte, len(vals)*8)
	for i, v := range vals {
		be.PutUint64(buf[i*8:], v)
	}
	_, err := w.Write(buf)
	return errors.Wrap(err, "sigfile: write u64 slice")
}

func writeLenPrefixed(w io.Writer, data []byte) error {
	if err := writeU32(w, uint32(len(data))); err != nil {
		return err
	}
	_, err := w.Write(data)
	return errors.Wrap(err, "sigfile: write length-prefixed blob")
}

func writeIDs(w io.Writer, ids []string) error {
	for _, id := range ids {
		if err := writeLenPrefixed(w, []byte(id)); err != nil {
			return err
		}
	}
	return nil
}
