package kmers

import "errors"

// ErrInvalidKmerSpec is returned by NewKmerSpec when k is out of range,
// the prefix is empty, or the prefix contains a non-ACGT byte.
var ErrInvalidKmerSpec = errors.New("kmers: invalid KmerSpec")

// KmerSpec pairs a fixed upstream anchor (Prefix) with a k-mer body
// length (K). The total anchored k-mer length is len(Prefix) + K.
type KmerSpec struct {
	Prefix []byte
	K      int
}

// NewKmerSpec validates and constructs a KmerSpec. The prefix is
// upper-cased; k must be in [1, 32].
func NewKmerSpec(prefix []byte, k int) (KmerSpec, error) {
	if len(prefix) == 0 {
		return KmerSpec{}, ErrInvalidKmerSpec
	}
	if k < 1 || k > 32 {
		return KmerSpec{}, ErrInvalidKmerSpec
	}
	up := make([]byte, len(prefix))
	for i, b := range prefix {
		c := base2code[b]
		if c == 0xff {
			return KmerSpec{}, ErrInvalidKmerSpec
		}
		up[i] = code2base[c]
	}
	return KmerSpec{Prefix: up, K: k}, nil
}

// NKmers returns 4^K, the cardinality of the k-mer index space for this spec.
func (s KmerSpec) NKmers() uint64 { return NKmers(s.K) }

// IndexInRange reports whether v is a valid k-mer index under this
// spec: v < 4^K. K==32 is special-cased to "always true" since 4^32
// is 2^64, one past the largest representable uint64, so every
// uint64 value is in range at that K.
func (s KmerSpec) IndexInRange(v uint64) bool {
	if s.K == 32 {
		return true
	}
	return v < s.NKmers()
}

// IndexWidth returns the narrowest integer width that holds every index
// produced under this spec.
func (s KmerSpec) IndexWidth() IndexWidth { return WidthForK(s.K) }

// TotalLen is the length of the full anchored k-mer: len(Prefix) + K.
func (s KmerSpec) TotalLen() int { return len(s.Prefix) + s.K }

// Equal reports whether two KmerSpecs describe the same index space.
func (s KmerSpec) Equal(o KmerSpec) bool {
	return s.K == o.K && string(s.Prefix) == string(o.Prefix)
}

// DefaultKmerSpec is the spec used when no other is configured: prefix
// "ATGAC", k=11.
func DefaultKmerSpec() KmerSpec {
	spec, err := NewKmerSpec([]byte("ATGAC"), 11)
	if err != nil {
		panic(err) // the default spec is always valid
	}
	return spec
}
