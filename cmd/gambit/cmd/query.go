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

package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/klauspost/pgzip"
	"github.com/pkg/errors"
	"github.com/shenwei356/bio/seq"
	"github.com/shenwei356/bio/seqio/fastx"
	"github.com/spf13/cobra"

	"github.com/jlumpe/gambit/classify"
	"github.com/jlumpe/gambit/jaccard"
	"github.com/jlumpe/gambit/kmers"
	"github.com/jlumpe/gambit/refdb"
	"github.com/jlumpe/gambit/resultio"
	"github.com/jlumpe/gambit/signature"
	"github.com/jlumpe/gambit/sigfile"
)

// ErrDimensionMismatch is returned when a query signature was built
// under a different KmerSpec than the reference set, making it
// incomparable to it.
var ErrDimensionMismatch = errors.New("gambit: query KmerSpec does not match reference KmerSpec")

var queryCmd = &cobra.Command{
	Use:   "query <fasta|gs|list> [...]",
	Short: "classify one or more query genomes against a reference database",
	Long: `query classifies one or more genome assemblies against a GAMBIT
reference database.

Each positional argument is one of:

  - a FASTA file (optionally gzip-compressed), treated as one query genome
  - a .gs signature file, whose signatures are each treated as a query
  - a file given via -i/--infile-list, one path per line, of either kind

Results are written to stdout (or -o/--out-file) as CSV or JSON, one
row per query, in the order queries were given.
`,
	Run: func(cmd *cobra.Command, args []string) {
		opt := getOptions(cmd)
		requireDBPath(opt)
		runtime.GOMAXPROCS(opt.NumCPUs)
		seq.ValidateSeq = false

		format := getFlagString(cmd, "format")
		if format != "csv" && format != "json" {
			checkError(fmt.Errorf("invalid --format %q: must be csv or json", format))
		}

		db, err := refdb.Open(opt.DBPath, sigPathFor(opt.DBPath))
		checkError(errors.Wrap(err, "opening reference database"))
		defer db.Close()

		refs, err := db.AllSignatures()
		checkError(errors.Wrap(err, "loading reference signatures"))
		refSet := jaccard.SliceRefSet(refs)

		var out io.Writer = os.Stdout
		if outFile := getFlagString(cmd, "out-file"); outFile != "" && outFile != "-" {
			f, err := os.Create(outFile)
			checkError(err)
			defer f.Close()
			out = f
		}
		if getFlagBool(cmd, "gzip") {
			gw := pgzip.NewWriter(out)
			defer gw.Close()
			out = gw
		}

		var csvw *resultio.CSVWriter
		var jsonw *resultio.JSONWriter
		if format == "csv" {
			csvw = resultio.NewCSVWriter(out)
		} else {
			jsonw = resultio.NewJSONWriter(out)
		}

		ctx := context.Background()
		for _, q := range resolveQueries(cmd, args, db) {
			dists, err := jaccard.DistanceAll(ctx, q.sig, refSet, opt.NumCPUs)
			checkError(errors.Wrapf(err, "computing distances for %s", q.label))

			res, err := classify.Classify(dists, db, opt.Strict)
			checkError(errors.Wrapf(err, "classifying %s", q.label))

			row := resultio.FromResult(q.label, dists[res.Closest], res, db)
			if csvw != nil {
				checkError(csvw.Write(row))
			} else {
				checkError(jsonw.Write(row))
			}
		}

		if csvw != nil {
			checkError(csvw.Flush())
		} else {
			checkError(jsonw.Close())
		}
	},
}

func init() {
	RootCmd.AddCommand(queryCmd)

	queryCmd.Flags().StringP("format", "f", "csv", "output format: csv or json")
	queryCmd.Flags().StringP("out-file", "o", "-", "output file, \"-\" for stdout")
	queryCmd.Flags().BoolP("gzip", "z", false, "gzip-compress the output stream (parallel gzip)")
}

// resolvedQuery is one query ready for classification: its display
// label and built signature.
type resolvedQuery struct {
	label string
	sig   signature.Signature
}

// resolveQueries expands the command's positional arguments (and
// -i/--infile-list) into a flat sequence of queries: a .gs file
// contributes one query per stored signature, every other file is
// read as FASTA/FASTQ and built into a fresh signature.
func resolveQueries(cmd *cobra.Command, args []string, db *refdb.DB) []resolvedQuery {
	spec := db.KmerSpec()
	files := getFileList(cmd, args)

	var queries []resolvedQuery
	for _, file := range files {
		if strings.HasSuffix(file, ".gs") {
			queries = append(queries, resolveSigFileQueries(file, spec)...)
			continue
		}

		sig, err := buildQuerySignature(file, spec)
		checkError(errors.Wrapf(err, "building signature for %s", file))
		queries = append(queries, resolvedQuery{label: file, sig: sig})
	}
	return queries
}

func resolveSigFileQueries(file string, refSpec kmers.KmerSpec) []resolvedQuery {
	store, err := sigfile.Open(file)
	checkError(errors.Wrapf(err, "opening query signature file %s", file))
	defer func() { checkError(store.Close()) }()

	if !store.Spec().Equal(refSpec) {
		checkError(errors.Wrapf(ErrDimensionMismatch, "%s", file))
	}

	ids := store.IDs()
	queries := make([]resolvedQuery, 0, store.Len())
	for i := 0; i < store.Len(); i++ {
		sig, err := store.Get(i)
		checkError(errors.Wrapf(err, "reading signature %d from %s", i, file))
		label := fmt.Sprintf("%s#%d", file, i)
		if ids != nil {
			label = ids[i]
		}
		queries = append(queries, resolvedQuery{label: label, sig: sig})
	}
	return queries
}

// buildQuerySignature reads every record of a (possibly gzip-
// compressed) FASTA/FASTQ file and builds its signature under spec.
func buildQuerySignature(path string, spec kmers.KmerSpec) (signature.Signature, error) {
	reader, err := fastx.NewDefaultReader(path)
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	return signature.Build(context.Background(), spec, &fastxSource{reader: reader})
}

// fastxSource adapts a fastx.Reader to signature.SequenceSource.
type fastxSource struct {
	reader *fastx.Reader
}

func (s *fastxSource) Next() ([]byte, bool, error) {
	record, err := s.reader.Read()
	if err != nil {
		if err == io.EOF {
			return nil, false, nil
		}
		return nil, false, err
	}
	return record.Seq.Seq, true, nil
}

// sigPathFor derives the paired .gs signature file path for a .gdb
// database path: same directory and basename, .gs extension.
func sigPathFor(dbPath string) string {
	ext := filepath.Ext(dbPath)
	return strings.TrimSuffix(dbPath, ext) + ".gs"
}
