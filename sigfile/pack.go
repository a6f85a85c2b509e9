package sigfile

import (
	"encoding/binary"

	"github.com/jlumpe/gambit/kmers"
)

var be = binary.BigEndian

// bytesPerValue returns the on-disk width, in bytes, for a KmerSpec's
// index dtype.
func bytesPerValue(w kmers.IndexWidth) int {
	switch w {
	case kmers.Width16:
		return 2
	case kmers.Width32:
		return 4
	default:
		return 8
	}
}

// packValues encodes vals into dst (which must be len(vals)*bytesPerValue(w)
// bytes) using the width appropriate for w.
func packValues(w kmers.IndexWidth, vals []uint64, dst []byte) {
	switch w {
	case kmers.Width16:
		for i, v := range vals {
			be.PutUint16(dst[i*2:], uint16(v))
		}
	case kmers.Width32:
		for i, v := range vals {
			be.PutUint32(dst[i*4:], uint32(v))
		}
	default:
		for i, v := range vals {
			be.PutUint64(dst[i*8:], v)
		}
	}
}

// unpackValues decodes src (len(src) must be a multiple of
// bytesPerValue(w)) into a []uint64.
func unpackValues(w kmers.IndexWidth, src []byte) []uint64 {
	bw := bytesPerValue(w)
	n := len(src) / bw
	out := make([]uint64, n)
	switch w {
	case kmers.Width16:
		for i := 0; i < n; i++ {
			out[i] = uint64(be.Uint16(src[i*2:]))
		}
	case kmers.Width32:
		for i := 0; i < n; i++ {
			out[i] = uint64(be.Uint32(src[i*4:]))
		}
	default:
		for i := 0; i < n; i++ {
			out[i] = be.Uint64(src[i*8:])
		}
	}
	return out
}
