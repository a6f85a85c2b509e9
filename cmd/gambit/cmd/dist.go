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
	"runtime"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/jlumpe/gambit/jaccard"
	"github.com/jlumpe/gambit/sigfile"
)

var distCmd = &cobra.Command{
	Use:   "dist <query.gs> <refs.gs>",
	Short: "report the Jaccard distance from one query signature to every signature in a .gs file",
	Long: `dist computes the one-vs-many Jaccard distance from a single
query signature to every signature stored in a reference .gs file,
printing "id\tdistance" pairs to stdout.

This is not a distance-matrix dump: it always takes exactly one query
against one reference set, never builds an N×N matrix, and is not a
substitute for "gambit query"'s taxonomy-aware classification.
`,
	Args: cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		opt := getOptions(cmd)
		runtime.GOMAXPROCS(opt.NumCPUs)

		queryIdx := getFlagInt(cmd, "query-index")

		qStore, err := sigfile.Open(args[0])
		checkError(errors.Wrapf(err, "opening %s", args[0]))
		defer qStore.Close()

		rStore, err := sigfile.Open(args[1])
		checkError(errors.Wrapf(err, "opening %s", args[1]))
		defer rStore.Close()

		if !qStore.Spec().Equal(rStore.Spec()) {
			checkError(errors.Wrapf(ErrDimensionMismatch, "%s vs %s", args[0], args[1]))
		}
		if queryIdx < 0 || queryIdx >= qStore.Len() {
			checkError(fmt.Errorf("--query-index %d out of range [0, %d)", queryIdx, qStore.Len()))
		}

		query, err := qStore.Get(queryIdx)
		checkError(errors.Wrapf(err, "reading query signature %d from %s", queryIdx, args[0]))

		refs := make([][]uint64, rStore.Len())
		for i := range refs {
			sig, err := rStore.Get(i)
			checkError(errors.Wrapf(err, "reading reference signature %d from %s", i, args[1]))
			refs[i] = sig
		}

		dists, err := jaccard.DistanceAll(context.Background(), query, jaccard.SliceRefSet(refs), opt.NumCPUs)
		checkError(errors.Wrap(err, "computing distances"))

		ids := rStore.IDs()
		for i, d := range dists {
			id := fmt.Sprintf("%d", i)
			if ids != nil {
				id = ids[i]
			}
			fmt.Printf("%s\t%.6f\n", id, d)
		}
	},
}

func init() {
	RootCmd.AddCommand(distCmd)

	distCmd.Flags().IntP("query-index", "q", 0, "index of the query signature within the first .gs file")
}
