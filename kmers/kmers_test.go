package kmers

import (
	"bytes"
	"math/rand"
	"testing"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	bases := []byte("ACGT")
	for trial := 0; trial < 1000; trial++ {
		k := rng.Intn(32) + 1
		mer := make([]byte, k)
		for i := range mer {
			mer[i] = bases[rng.Intn(4)]
		}
		code, err := Encode(mer)
		if err != nil {
			t.Fatalf("Encode(%s): %v", mer, err)
		}
		back, err := Decode(code, k)
		if err != nil {
			t.Fatalf("Decode: %v", err)
		}
		if !bytes.Equal(back, mer) {
			t.Fatalf("round trip mismatch: %s != %s", back, mer)
		}
	}
}

func TestEncodeLowerCase(t *testing.T) {
	code1, err := Encode([]byte("acgt"))
	if err != nil {
		t.Fatal(err)
	}
	code2, err := Encode([]byte("ACGT"))
	if err != nil {
		t.Fatal(err)
	}
	if code1 != code2 {
		t.Fatalf("case should not affect encoding: %d != %d", code1, code2)
	}
}

func TestEncodeInvalidNucleotide(t *testing.T) {
	if _, err := Encode([]byte("ACGN")); err != ErrInvalidNucleotide {
		t.Fatalf("expected ErrInvalidNucleotide, got %v", err)
	}
	if _, err := Encode([]byte("ACGR")); err != ErrInvalidNucleotide {
		t.Fatalf("expected ErrInvalidNucleotide for IUPAC ambiguity code, got %v", err)
	}
}

func TestEncodeKOverflow(t *testing.T) {
	if _, err := Encode(nil); err != ErrKOverflow {
		t.Fatalf("expected ErrKOverflow for empty input, got %v", err)
	}
	big := bytes.Repeat([]byte("A"), 33)
	if _, err := Encode(big); err != ErrKOverflow {
		t.Fatalf("expected ErrKOverflow for k=33, got %v", err)
	}
}

func TestOrderPreserving(t *testing.T) {
	a, _ := Encode([]byte("AAA"))
	b, _ := Encode([]byte("AAC"))
	c, _ := Encode([]byte("ACA"))
	if !(a < b && b < c) {
		t.Fatalf("lexicographic order not preserved: a=%d b=%d c=%d", a, b, c)
	}
}

func TestEncodeRevComp(t *testing.T) {
	seq := []byte("ATGACAAA")
	direct, err := Encode(RevComp(seq))
	if err != nil {
		t.Fatal(err)
	}
	fast, err := EncodeRevComp(seq)
	if err != nil {
		t.Fatal(err)
	}
	if direct != fast {
		t.Fatalf("EncodeRevComp mismatch: %d != %d", fast, direct)
	}
}

func TestRevCompInvolution(t *testing.T) {
	seq := []byte("ATGACCCGTNNacgtN")
	if !bytes.Equal(RevComp(RevComp(seq)), seq) {
		t.Fatalf("RevComp is not an involution for %s", seq)
	}
}

func TestRevCompPassesThroughUnknown(t *testing.T) {
	out := RevComp([]byte("ACGN"))
	if out[0] != 'N' {
		t.Fatalf("N should pass through unchanged at its reversed position, got %q", out)
	}
}

func TestWidthForK(t *testing.T) {
	cases := []struct {
		k int
		w IndexWidth
	}{
		{1, Width16}, {8, Width16}, {9, Width32}, {16, Width32}, {17, Width64}, {32, Width64},
	}
	for _, c := range cases {
		if got := WidthForK(c.k); got != c.w {
			t.Errorf("WidthForK(%d) = %v, want %v", c.k, got, c.w)
		}
	}
}

func BenchmarkEncode(b *testing.B) {
	mer := []byte("ACGTACGTACGTACGTACGTACGTACGTACGT")
	for i := 0; i < b.N; i++ {
		_, _ = Encode(mer)
	}
}
