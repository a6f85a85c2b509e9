package refdb

import (
	"database/sql"
	"encoding/json"
	"testing"

	_ "github.com/mattn/go-sqlite3"

	"github.com/jlumpe/gambit/kmers"
	"github.com/jlumpe/gambit/sigfile"
	"github.com/jlumpe/gambit/signature"
)

// fakeStore is a minimal in-memory sigfile.Store stand-in, so refdb's
// loading/integrity logic can be tested without touching disk.
type fakeStore struct {
	ids  []string
	sigs [][]uint64
}

func (f *fakeStore) Len() int                 { return len(f.sigs) }
func (f *fakeStore) Spec() kmers.KmerSpec     { return kmers.DefaultKmerSpec() }
func (f *fakeStore) IDs() []string            { return f.ids }
func (f *fakeStore) Metadata() json.RawMessage { return nil }
func (f *fakeStore) Close() error             { return nil }

func (f *fakeStore) Get(i int) (signature.Signature, error) {
	return signature.Signature(f.sigs[i]), nil
}

func (f *fakeStore) IterChunks(batch int, fn func(start, end int) error) error {
	return fn(0, len(f.sigs))
}

var _ sigfile.Store = (*fakeStore)(nil)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	conn, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("sql.Open: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	schema := `
	CREATE TABLE taxon (
		id INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		rank TEXT NOT NULL,
		ncbi_id INTEGER,
		parent_id INTEGER,
		threshold REAL,
		report INTEGER NOT NULL
	);
	CREATE TABLE genome (
		id INTEGER PRIMARY KEY,
		key TEXT NOT NULL,
		description TEXT NOT NULL,
		signature_index INTEGER NOT NULL,
		taxon_id INTEGER
	);
	CREATE TABLE parameters (
		classification_version TEXT,
		extra TEXT
	);
	`
	if _, err := conn.Exec(schema); err != nil {
		t.Fatalf("create schema: %v", err)
	}
	return conn
}

func seedTaxonomy(t *testing.T, conn *sql.DB) {
	t.Helper()
	stmts := []string{
		`INSERT INTO taxon (id, name, rank, ncbi_id, parent_id, threshold, report) VALUES (1, 'root', 'root', NULL, NULL, NULL, 0)`,
		`INSERT INTO taxon (id, name, rank, ncbi_id, parent_id, threshold, report) VALUES (2, 'genus1', 'genus', 100, 1, 0.3, 1)`,
		`INSERT INTO taxon (id, name, rank, ncbi_id, parent_id, threshold, report) VALUES (3, 'species1', 'species', 101, 2, 0.1, 1)`,
	}
	for _, s := range stmts {
		if _, err := conn.Exec(s); err != nil {
			t.Fatalf("seed taxon: %v", err)
		}
	}
}

func TestLoadTaxonomyBuildsForest(t *testing.T) {
	conn := openTestDB(t)
	seedTaxonomy(t, conn)

	forest, byID, err := loadTaxonomy(conn)
	if err != nil {
		t.Fatalf("loadTaxonomy: %v", err)
	}
	if forest.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", forest.Len())
	}
	species := byID[3]
	genus := byID[2]
	root := byID[1]
	if forest.Parent(species) != genus {
		t.Fatal("species1's parent should be genus1")
	}
	if forest.Parent(genus) != root {
		t.Fatal("genus1's parent should be root")
	}
	if *forest.Node(species).Threshold != 0.1 {
		t.Fatalf("species1 threshold = %v, want 0.1", *forest.Node(species).Threshold)
	}
	if !forest.Node(genus).Report {
		t.Fatal("genus1 should be reportable")
	}
}

func TestLoadGenomesOrdersBySignatureIndex(t *testing.T) {
	conn := openTestDB(t)
	seedTaxonomy(t, conn)
	_, byID, err := loadTaxonomy(conn)
	if err != nil {
		t.Fatalf("loadTaxonomy: %v", err)
	}

	if _, err := conn.Exec(
		`INSERT INTO genome (key, description, signature_index, taxon_id) VALUES
		 ('acc-b', 'genome B', 1, 3),
		 ('acc-a', 'genome A', 0, 2)`,
	); err != nil {
		t.Fatalf("seed genome: %v", err)
	}

	genomes, err := loadGenomes(conn, byID)
	if err != nil {
		t.Fatalf("loadGenomes: %v", err)
	}
	if len(genomes) != 2 {
		t.Fatalf("len(genomes) = %d, want 2", len(genomes))
	}
	if genomes[0].Key != "acc-a" || genomes[1].Key != "acc-b" {
		t.Fatalf("genomes not ordered by signature_index: %+v", genomes)
	}
}

func TestCheckReferenceSetDetectsMismatch(t *testing.T) {
	genomes := []Genome{
		{Key: "acc-a", SignatureIdx: 0},
		{Key: "acc-b", SignatureIdx: 1},
	}
	good := &fakeStore{ids: []string{"acc-a", "acc-b"}, sigs: [][]uint64{{1}, {2}}}
	if err := checkReferenceSet(good, genomes); err != nil {
		t.Fatalf("checkReferenceSet on matching set: %v", err)
	}

	bad := &fakeStore{ids: []string{"acc-a", "acc-x"}, sigs: [][]uint64{{1}, {2}}}
	if err := checkReferenceSet(bad, genomes); err == nil {
		t.Fatal("checkReferenceSet should reject a mismatched reference set")
	}

	short := &fakeStore{ids: []string{"acc-a"}, sigs: [][]uint64{{1}}}
	if err := checkReferenceSet(short, genomes); err == nil {
		t.Fatal("checkReferenceSet should reject a count mismatch")
	}
}

func TestLoadParametersDefaultsWhenEmpty(t *testing.T) {
	conn := openTestDB(t)
	p, err := loadParameters(conn)
	if err != nil {
		t.Fatalf("loadParameters: %v", err)
	}
	if p.ClassificationVersion != "" {
		t.Fatalf("ClassificationVersion = %q, want empty", p.ClassificationVersion)
	}
}

func TestLoadParametersReadsRow(t *testing.T) {
	conn := openTestDB(t)
	if _, err := conn.Exec(`INSERT INTO parameters (classification_version, extra) VALUES ('2024.1', '{"k":11}')`); err != nil {
		t.Fatalf("seed parameters: %v", err)
	}
	p, err := loadParameters(conn)
	if err != nil {
		t.Fatalf("loadParameters: %v", err)
	}
	if p.ClassificationVersion != "2024.1" {
		t.Fatalf("ClassificationVersion = %q, want 2024.1", p.ClassificationVersion)
	}
	if string(p.Extra) != `{"k":11}` {
		t.Fatalf("Extra = %s, want {\"k\":11}", p.Extra)
	}
}
