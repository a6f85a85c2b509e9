package sigfile

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/jlumpe/gambit/kmers"
	"github.com/jlumpe/gambit/signature"
)

func testSpec(t *testing.T) kmers.KmerSpec {
	t.Helper()
	spec, err := kmers.NewKmerSpec([]byte("ATGAC"), 11)
	if err != nil {
		t.Fatalf("NewKmerSpec: %v", err)
	}
	return spec
}

func roundTrip(t *testing.T, meta Metadata, sigs []signature.Signature) Store {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "test.gs")
	spec := testSpec(t)

	if err := Create(path, spec, FromSlice(sigs), meta); err != nil {
		t.Fatalf("Create: %v", err)
	}
	st, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func sampleSigs() []signature.Signature {
	return []signature.Signature{
		{1, 5, 100},
		{},
		{2, 2000, 2001, 4000000},
	}
}

func TestRoundTripUncompressed(t *testing.T) {
	sigs := sampleSigs()
	st := roundTrip(t, Metadata{}, sigs)

	if st.Len() != len(sigs) {
		t.Fatalf("Len() = %d, want %d", st.Len(), len(sigs))
	}
	if !st.Spec().Equal(testSpec(t)) {
		t.Fatalf("Spec() = %+v, want %+v", st.Spec(), testSpec(t))
	}
	for i, want := range sigs {
		got, err := st.Get(i)
		if err != nil {
			t.Fatalf("Get(%d): %v", i, err)
		}
		if !signature.Equal(got, want) {
			t.Fatalf("Get(%d) = %v, want %v", i, got, want)
		}
	}
}

func TestRoundTripCompressed(t *testing.T) {
	sigs := sampleSigs()
	st := roundTrip(t, Metadata{Compress: true}, sigs)

	for i, want := range sigs {
		got, err := st.Get(i)
		if err != nil {
			t.Fatalf("Get(%d): %v", i, err)
		}
		if !signature.Equal(got, want) {
			t.Fatalf("Get(%d) = %v, want %v", i, got, want)
		}
	}
}

func TestRoundTripWithIDsAndMetadata(t *testing.T) {
	sigs := sampleSigs()
	blob, _ := json.Marshal(map[string]string{"source": "test"})
	meta := Metadata{
		IDs:  []string{"genome-a", "genome-b", "genome-c"},
		JSON: blob,
	}
	st := roundTrip(t, meta, sigs)

	ids := st.IDs()
	if len(ids) != 3 || ids[0] != "genome-a" || ids[2] != "genome-c" {
		t.Fatalf("IDs() = %v, want [genome-a genome-b genome-c]", ids)
	}
	if string(st.Metadata()) != string(blob) {
		t.Fatalf("Metadata() = %s, want %s", st.Metadata(), blob)
	}
}

func TestIterChunksCoversEveryIndexOnce(t *testing.T) {
	sigs := sampleSigs()
	st := roundTrip(t, Metadata{}, sigs)

	seen := make([]bool, st.Len())
	err := st.IterChunks(2, func(start, end int) error {
		for i := start; i < end; i++ {
			if seen[i] {
				t.Fatalf("index %d visited twice", i)
			}
			seen[i] = true
		}
		return nil
	})
	if err != nil {
		t.Fatalf("IterChunks: %v", err)
	}
	for i, ok := range seen {
		if !ok {
			t.Fatalf("index %d never visited", i)
		}
	}
}

func TestEmptyStore(t *testing.T) {
	st := roundTrip(t, Metadata{}, nil)
	if st.Len() != 0 {
		t.Fatalf("Len() = %d, want 0", st.Len())
	}
}

func TestOpenRejectsBadMagic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.gs")
	if err := os.WriteFile(path, []byte("NOTAGAMBITFILE"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, err := Open(path); err == nil {
		t.Fatal("Open with bad magic should fail")
	}
}

func TestOpenRejectsTruncatedFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "good.gs")
	if err := Create(path, testSpec(t), FromSlice(sampleSigs()), Metadata{}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	full, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	truncPath := filepath.Join(dir, "truncated.gs")
	if err := os.WriteFile(truncPath, full[:len(full)-4], 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, err := Open(truncPath); err == nil {
		t.Fatal("Open with truncated values section should fail")
	}
}

func TestCreateRejectsUnsortedSignature(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "unsorted.gs")
	bad := []signature.Signature{{5, 3, 1}}
	if err := Create(path, testSpec(t), FromSlice(bad), Metadata{}); err == nil {
		t.Fatal("Create should reject a non-sorted signature")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatal("Create must not leave a partial file behind on failure")
	}
}

func TestCreateRejectsMismatchedIDCount(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "badids.gs")
	meta := Metadata{IDs: []string{"only-one"}}
	if err := Create(path, testSpec(t), FromSlice(sampleSigs()), meta); err == nil {
		t.Fatal("Create should reject a mismatched id count")
	}
}
