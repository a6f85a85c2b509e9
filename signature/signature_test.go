package signature

import (
	"context"
	"testing"

	"github.com/jlumpe/gambit/kmers"
)

func mustSpec(t *testing.T, prefix string, k int) kmers.KmerSpec {
	t.Helper()
	spec, err := kmers.NewKmerSpec([]byte(prefix), k)
	if err != nil {
		t.Fatalf("NewKmerSpec: %v", err)
	}
	return spec
}

func TestBuildSliceSingleForwardHit(t *testing.T) {
	spec := mustSpec(t, "ATGAC", 3)
	sig, err := BuildSlice(spec, []byte("ATGACAAA"))
	if err != nil {
		t.Fatal(err)
	}
	if len(sig) != 1 || sig[0] != 0 {
		t.Fatalf("got %v, want [0]", sig)
	}
}

// Confirms strand symmetry: a reverse-complement occurrence of the
// anchor yields the same k-mer index as a forward occurrence would.
func TestBuildSliceReverseComplementHit(t *testing.T) {
	spec := mustSpec(t, "ATGAC", 3)
	sig, err := BuildSlice(spec, []byte("TTTGTCAT"))
	if err != nil {
		t.Fatal(err)
	}
	if len(sig) != 1 || sig[0] != 0 {
		t.Fatalf("got %v, want [0]", sig)
	}
}

func TestBuildSliceTwoHitsSorted(t *testing.T) {
	spec := mustSpec(t, "ATGAC", 3)
	sig, err := BuildSlice(spec, []byte("ATGACAAAATGACCCC"))
	if err != nil {
		t.Fatal(err)
	}
	want := Signature{0, 21}
	if !Equal(sig, want) {
		t.Fatalf("got %v, want %v", sig, want)
	}
}

func TestEmptySequenceYieldsEmptySignature(t *testing.T) {
	spec := mustSpec(t, "ATGAC", 3)
	sig, err := BuildSlice(spec)
	if err != nil {
		t.Fatal(err)
	}
	if len(sig) != 0 {
		t.Fatalf("expected empty signature, got %v", sig)
	}
}

func TestNoMatchesYieldsEmptySignature(t *testing.T) {
	spec := mustSpec(t, "ATGAC", 3)
	sig, err := BuildSlice(spec, []byte("CCCCCCCCCCCCCCCC"))
	if err != nil {
		t.Fatal(err)
	}
	if len(sig) != 0 {
		t.Fatalf("expected empty signature, got %v", sig)
	}
}

func TestOverlappingHitsIndependent(t *testing.T) {
	spec := mustSpec(t, "AA", 2)
	// "AA" at positions 0,1,2,3 overlap.
	sig, err := BuildSlice(spec, []byte("AAAAAGG"))
	if err != nil {
		t.Fatal(err)
	}
	if len(sig) == 0 {
		t.Fatal("expected at least one k-mer from overlapping prefix hits")
	}
}

func TestCaseInsensitivePrefix(t *testing.T) {
	spec := mustSpec(t, "ATGAC", 3)
	upper, err := BuildSlice(spec, []byte("ATGACAAA"))
	if err != nil {
		t.Fatal(err)
	}
	lower, err := BuildSlice(spec, []byte("atgacaaa"))
	if err != nil {
		t.Fatal(err)
	}
	if !Equal(upper, lower) {
		t.Fatalf("case should not matter: %v != %v", upper, lower)
	}
}

func TestAmbiguousBodyDiscarded(t *testing.T) {
	spec := mustSpec(t, "ATGAC", 3)
	sig, err := BuildSlice(spec, []byte("ATGACNAA"))
	if err != nil {
		t.Fatal(err)
	}
	if len(sig) != 0 {
		t.Fatalf("an N in the k-mer body should be silently discarded, got %v", sig)
	}
}

// Property 3: idempotence under self-concatenation, given a big enough
// overlap that no new prefix hits appear at the join.
func TestIdempotentUnderSelfConcatenation(t *testing.T) {
	spec := mustSpec(t, "ATGAC", 3)
	s := []byte("ATGACAAAGGGGGGGGGGGGGGGGGGGGGGGGGGGGGGGG")

	once, err := BuildSlice(spec, s)
	if err != nil {
		t.Fatal(err)
	}
	twice, err := BuildSlice(spec, append(append([]byte{}, s...), s...))
	if err != nil {
		t.Fatal(err)
	}
	if !Equal(once, twice) {
		t.Fatalf("self-concatenation changed the signature: %v != %v", once, twice)
	}
}

// Property 4 analogue at the signature level: every value is < 4^k and
// strictly sorted.
func TestSignatureValid(t *testing.T) {
	spec := mustSpec(t, "ATGAC", 5)
	sig, err := BuildSlice(spec, []byte("ATGACGGTTCATGACAAATTATGACCCCGG"))
	if err != nil {
		t.Fatal(err)
	}
	if !Valid(spec, sig) {
		t.Fatalf("signature failed validity check: %v", sig)
	}
}

func TestBuildManyIndependentScratch(t *testing.T) {
	spec := mustSpec(t, "ATGAC", 3)
	sources := []SequenceSource{
		NewSliceSource([]byte("ATGACAAA")),
		NewSliceSource([]byte("ATGACCCC")),
		NewSliceSource([]byte("ATGACGGG")),
	}
	results, errs := BuildMany(context.Background(), spec, sources, 2)
	for i, err := range errs {
		if err != nil {
			t.Fatalf("genome %d: %v", i, err)
		}
	}
	if len(results[0]) != 1 || len(results[1]) != 1 || len(results[2]) != 1 {
		t.Fatalf("unexpected results: %v", results)
	}
}
