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

// Package refdb binds a sigfile.Store to its relational metadata: a
// .gdb SQLite file holding a genome table (accession, description,
// signature index, taxon) and a taxon table that loads into a
// taxonomy.Forest. It is a read-only facade; nothing in this package
// ever writes to the database.
package refdb

import (
	"database/sql"
	"encoding/json"
	"sort"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"

	"github.com/jlumpe/gambit/kmers"
	"github.com/jlumpe/gambit/sigfile"
	"github.com/jlumpe/gambit/taxonomy"
)

// ErrReferenceMismatch is returned by Open when the signature store's
// IDs and the genome table's accessions are not the same set.
var ErrReferenceMismatch = errors.New("refdb: signature store and genome table disagree on reference set")

// Genome is one reference entry: a stable accession key, a display
// description, the index of its signature in the paired sigfile.Store,
// and the taxon it belongs to (NoNode if unassigned).
type Genome struct {
	Key          string
	Description  string
	SignatureIdx int
	Taxon        taxonomy.NodeID
}

// Parameters is the opaque classification-parameter bundle stored
// alongside the reference set and passed through to results untouched.
type Parameters struct {
	ClassificationVersion string
	Extra                 json.RawMessage
}

// DB is a read-only view binding a signature store to genome records
// and a taxonomy forest.
type DB struct {
	sigs    sigfile.Store
	genomes []Genome
	forest  *taxonomy.Forest
	params  Parameters

	conn *sql.DB
}

// Open loads the .gdb SQLite database at dbPath, pairs it with the
// signature store at sigPath, validates that the two agree on the
// reference set, and returns a read-only DB. The returned DB owns both
// the signature store's mapping and the SQLite connection; Close
// releases both.
func Open(dbPath, sigPath string) (*DB, error) {
	sigs, err := sigfile.Open(sigPath)
	if err != nil {
		return nil, errors.Wrap(err, "refdb: open signature store")
	}

	conn, err := sql.Open("sqlite3", "file:"+dbPath+"?mode=ro&immutable=1")
	if err != nil {
		sigs.Close()
		return nil, errors.Wrap(err, "refdb: open database")
	}

	db, err := load(conn, sigs)
	if err != nil {
		conn.Close()
		sigs.Close()
		return nil, err
	}
	return db, nil
}

// NewForTest builds a DB directly from an already-open SQLite
// connection and signature store, skipping Open's file-path handling.
// Exported for other packages' tests (classify's fixtures) that need
// a DB without writing a .gdb/.gs pair to disk.
func NewForTest(conn *sql.DB, sigs sigfile.Store) (*DB, error) {
	return load(conn, sigs)
}

func load(conn *sql.DB, sigs sigfile.Store) (*DB, error) {
	forest, nodeByTaxonID, err := loadTaxonomy(conn)
	if err != nil {
		return nil, err
	}

	genomes, err := loadGenomes(conn, nodeByTaxonID)
	if err != nil {
		return nil, err
	}

	if err := checkReferenceSet(sigs, genomes); err != nil {
		return nil, err
	}

	params, err := loadParameters(conn)
	if err != nil {
		return nil, err
	}

	return &DB{sigs: sigs, genomes: genomes, forest: forest, params: params, conn: conn}, nil
}

// checkReferenceSet enforces the integrity check binding a signature
// store to its metadata: the signature store's ID set must equal the
// genome table's accession
// set, by index (genome i's key corresponds to signature i).
func checkReferenceSet(sigs sigfile.Store, genomes []Genome) error {
	if sigs.Len() != len(genomes) {
		return errors.Wrapf(ErrReferenceMismatch, "%d signatures but %d genomes", sigs.Len(), len(genomes))
	}
	ids := sigs.IDs()
	if ids == nil {
		return nil // store carries no IDs of its own; index-alignment is all we can check
	}
	if len(ids) != len(genomes) {
		return errors.Wrap(ErrReferenceMismatch, "signature id count does not match genome count")
	}
	for i, g := range genomes {
		if g.SignatureIdx < 0 || g.SignatureIdx >= len(ids) {
			return errors.Wrapf(ErrReferenceMismatch, "genome %q has out-of-range signature_index %d", g.Key, g.SignatureIdx)
		}
		if ids[g.SignatureIdx] != g.Key {
			return errors.Wrapf(ErrReferenceMismatch, "genome %q bound to signature %q", g.Key, ids[g.SignatureIdx])
		}
	}
	return nil
}

// loadParameters reads the first row of the optional parameters table.
// A database without that table, or with an empty one, yields zero
// Parameters.
func loadParameters(conn *sql.DB) (Parameters, error) {
	var nTables int
	if err := conn.QueryRow(`SELECT count(*) FROM sqlite_master WHERE type = 'table' AND name = 'parameters'`).Scan(&nTables); err != nil {
		return Parameters{}, errors.Wrap(err, "refdb: load parameters")
	}
	if nTables == 0 {
		return Parameters{}, nil
	}
	row := conn.QueryRow(`SELECT classification_version, extra FROM parameters LIMIT 1`)
	var p Parameters
	var extra sql.NullString
	if err := row.Scan(&p.ClassificationVersion, &extra); err != nil {
		if err == sql.ErrNoRows {
			return Parameters{}, nil
		}
		return Parameters{}, errors.Wrap(err, "refdb: load parameters")
	}
	if extra.Valid {
		p.Extra = json.RawMessage(extra.String)
	}
	return p, nil
}

// NumRefs returns the number of reference genomes, N.
func (db *DB) NumRefs() int { return len(db.genomes) }

// Signature returns the i'th reference signature.
func (db *DB) Signature(i int) ([]uint64, error) {
	sig, err := db.sigs.Get(i)
	if err != nil {
		return nil, err
	}
	return sig, nil
}

// Genome returns the i'th genome record.
func (db *DB) Genome(i int) Genome { return db.genomes[i] }

// KmerSpec returns the KmerSpec the reference signatures were built
// under. A query signature built under a different spec is not
// comparable to these references; callers (cmd/gambit) reject the
// mismatch before computing any distances.
func (db *DB) KmerSpec() kmers.KmerSpec { return db.sigs.Spec() }

// TaxonOf returns the taxon node the i'th genome is assigned to, or
// taxonomy.NoNode if unassigned.
func (db *DB) TaxonOf(i int) taxonomy.NodeID { return db.genomes[i].Taxon }

// Taxonomy returns the loaded taxonomy forest.
func (db *DB) Taxonomy() *taxonomy.Forest { return db.forest }

// Parameters returns the opaque classification-parameter bundle.
func (db *DB) Parameters() Parameters { return db.params }

// AllSignatures returns every reference signature in index order, as a
// jaccard.RefSet-compatible slice.
func (db *DB) AllSignatures() ([][]uint64, error) {
	out := make([][]uint64, db.NumRefs())
	for i := range out {
		sig, err := db.Signature(i)
		if err != nil {
			return nil, err
		}
		out[i] = sig
	}
	return out, nil
}

// Close releases the signature store's mapping and the SQLite connection.
func (db *DB) Close() error {
	var errs []error
	if err := db.sigs.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := db.conn.Close(); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return errors.Wrap(errs[0], "refdb: close")
	}
	return nil
}

func loadTaxonomy(conn *sql.DB) (*taxonomy.Forest, map[int64]taxonomy.NodeID, error) {
	rows, err := conn.Query(`SELECT id, name, rank, ncbi_id, parent_id, threshold, report FROM taxon`)
	if err != nil {
		return nil, nil, errors.Wrap(err, "refdb: query taxon table")
	}
	defer rows.Close()

	type row struct {
		id       int64
		name     string
		rank     string
		ncbiID   sql.NullInt64
		parentID sql.NullInt64
		thresh   sql.NullFloat64
		report   bool
	}
	var byID = map[int64]row{}
	var order []int64
	for rows.Next() {
		var r row
		if err := rows.Scan(&r.id, &r.name, &r.rank, &r.ncbiID, &r.parentID, &r.thresh, &r.report); err != nil {
			return nil, nil, errors.Wrap(err, "refdb: scan taxon row")
		}
		byID[r.id] = r
		order = append(order, r.id)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, errors.Wrap(err, "refdb: iterate taxon rows")
	}

	// Deterministic load order: taxa are visited by increasing id and
	// each one's parent is placed (recursively) before it, so parents
	// precede children regardless of table row order.
	sort.Slice(order, func(i, j int) bool { return order[i] < order[j] })

	forest := taxonomy.NewForest()
	nodeByID := make(map[int64]taxonomy.NodeID, len(order))

	var place func(id int64, visiting map[int64]bool) (taxonomy.NodeID, error)
	place = func(id int64, visiting map[int64]bool) (taxonomy.NodeID, error) {
		if n, ok := nodeByID[id]; ok {
			return n, nil
		}
		if visiting[id] {
			return taxonomy.NoNode, taxonomy.ErrCycle
		}
		r, ok := byID[id]
		if !ok {
			return taxonomy.NoNode, errors.Errorf("refdb: taxon %d references unknown id", id)
		}
		visiting[id] = true

		taxon := taxonomy.Taxon{
			Name:   r.name,
			Rank:   r.rank,
			Report: r.report,
		}
		if r.ncbiID.Valid {
			v := r.ncbiID.Int64
			taxon.NCBIID = &v
		}
		if r.thresh.Valid {
			v := r.thresh.Float64
			taxon.Threshold = &v
		}

		var nodeID taxonomy.NodeID
		if r.parentID.Valid {
			parentNode, err := place(r.parentID.Int64, visiting)
			if err != nil {
				return taxonomy.NoNode, err
			}
			nodeID = forest.AddChild(parentNode, taxon)
		} else {
			nodeID = forest.AddRoot(taxon)
		}
		delete(visiting, id)
		nodeByID[id] = nodeID
		return nodeID, nil
	}

	for _, id := range order {
		if _, err := place(id, map[int64]bool{}); err != nil {
			return nil, nil, errors.Wrap(err, "refdb: load taxonomy")
		}
	}

	return forest, nodeByID, nil
}

func loadGenomes(conn *sql.DB, nodeByTaxonID map[int64]taxonomy.NodeID) ([]Genome, error) {
	rows, err := conn.Query(`SELECT key, description, signature_index, taxon_id FROM genome ORDER BY signature_index`)
	if err != nil {
		return nil, errors.Wrap(err, "refdb: query genome table")
	}
	defer rows.Close()

	var genomes []Genome
	for rows.Next() {
		var key, desc string
		var sigIdx int
		var taxonID sql.NullInt64
		if err := rows.Scan(&key, &desc, &sigIdx, &taxonID); err != nil {
			return nil, errors.Wrap(err, "refdb: scan genome row")
		}
		g := Genome{Key: key, Description: desc, SignatureIdx: sigIdx, Taxon: taxonomy.NoNode}
		if taxonID.Valid {
			node, ok := nodeByTaxonID[taxonID.Int64]
			if !ok {
				return nil, errors.Errorf("refdb: genome %q references unknown taxon %d", key, taxonID.Int64)
			}
			g.Taxon = node
		}
		genomes = append(genomes, g)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "refdb: iterate genome rows")
	}
	return genomes, nil
}
