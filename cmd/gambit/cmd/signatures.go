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
	"io"
	"path/filepath"
	"runtime"
	"strings"

	humanize "github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"github.com/shenwei356/bio/seq"
	"github.com/shenwei356/bio/seqio/fastx"
	"github.com/spf13/cobra"

	"github.com/jlumpe/gambit/kmers"
	"github.com/jlumpe/gambit/signature"
	"github.com/jlumpe/gambit/sigfile"
)

var signaturesCmd = &cobra.Command{
	Use:   "signatures",
	Short: "build .gs signature files",
}

var signaturesCreateCmd = &cobra.Command{
	Use:   "create <fasta> [...]",
	Short: "build a .gs signature file from one genome per FASTA input",
	Long: `signatures create builds one signature per input FASTA/FASTQ file
(gzip-compressed inputs are detected automatically) and writes them,
in input order, to a single .gs signature file.

Each input's ID in the resulting file is its base filename with any
FASTA/FASTQ/.gz extensions stripped, unless -I/--no-ids is given.
`,
	Run: func(cmd *cobra.Command, args []string) {
		opt := getOptions(cmd)
		runtime.GOMAXPROCS(opt.NumCPUs)
		seq.ValidateSeq = false

		files := getFileList(cmd, args)

		prefix := getFlagString(cmd, "prefix")
		k := getFlagPositiveInt(cmd, "kmer-len")
		spec, err := kmers.NewKmerSpec([]byte(prefix), k)
		checkError(errors.Wrap(err, "invalid k-mer spec"))

		noIDs := getFlagBool(cmd, "no-ids")
		compress := getFlagBool(cmd, "compress")
		outFile := getFlagString(cmd, "out-file")

		sources := make([]signature.SequenceSource, len(files))
		for i, file := range files {
			sources[i] = &fastxFileSource{path: file}
		}

		sigs, errs := signature.BuildMany(context.Background(), spec, sources, opt.NumCPUs)
		for i, err := range errs {
			checkError(errors.Wrapf(err, "building signature for %s", files[i]))
		}

		var ids []string
		if !noIDs {
			ids = make([]string, len(files))
			for i, file := range files {
				ids[i] = idFromPath(file)
			}
		}

		meta := sigfile.Metadata{IDs: ids, Compress: compress}
		checkError(sigfile.Create(outFile, spec, sigfile.FromSlice(sigs), meta))

		var total uint64
		for _, sig := range sigs {
			total += uint64(len(sig))
		}
		log.Infof("wrote %d signatures (%s k-mer indices total) to %s", len(sigs), humanize.Comma(int64(total)), outFile)
	},
}

func init() {
	RootCmd.AddCommand(signaturesCmd)
	signaturesCmd.AddCommand(signaturesCreateCmd)

	signaturesCreateCmd.Flags().StringP("out-file", "o", "out.gs", "output .gs file")
	signaturesCreateCmd.Flags().StringP("prefix", "p", "ATGAC", "k-mer anchor prefix")
	signaturesCreateCmd.Flags().IntP("kmer-len", "k", 11, "k-mer body length")
	signaturesCreateCmd.Flags().BoolP("no-ids", "I", false, "do not store per-signature IDs in the output file")
	signaturesCreateCmd.Flags().BoolP("compress", "c", false, "zstd-compress each signature's value block independently")
}

// idFromPath strips directory components and any of the common
// FASTA/FASTQ/gzip extensions from a path, leaving a stable signature
// ID in the style of unikmer's own file-stem conventions.
func idFromPath(path string) string {
	base := filepath.Base(path)
	for _, ext := range []string{".gz", ".fasta", ".fa", ".fna", ".fastq", ".fq"} {
		base = strings.TrimSuffix(base, ext)
	}
	return base
}

// fastxFileSource adapts one FASTA/FASTQ file to signature.SequenceSource,
// opening it lazily on the first Next() call so BuildMany's worker pool
// controls how many files are open concurrently, not the caller.
type fastxFileSource struct {
	path   string
	reader *fastx.Reader
}

func (s *fastxFileSource) Next() ([]byte, bool, error) {
	if s.reader == nil {
		r, err := fastx.NewDefaultReader(s.path)
		if err != nil {
			return nil, false, err
		}
		s.reader = r
	}
	record, err := s.reader.Read()
	if err != nil {
		s.reader.Close()
		if err == io.EOF {
			return nil, false, nil
		}
		return nil, false, err
	}
	return record.Seq.Seq, true, nil
}
