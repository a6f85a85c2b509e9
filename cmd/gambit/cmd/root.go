// Copyright © 2018 Wei Shen <shenwei356@gmail.com>
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
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"
)

// VERSION is the gambit build version, set at release time.
const VERSION = "0.1.0"

// RootCmd represents the base command when called without any subcommands.
var RootCmd = &cobra.Command{
	Use:   "gambit",
	Short: "Genomic Approximation Method for Bacterial Identification of Taxonomy",
	Long: fmt.Sprintf(`gambit - genomic approximation method for bacterial identification of taxonomy

Identifies a bacterial genome assembly by comparing a compact k-mer
signature of the query against a curated reference set under the
Jaccard distance, then walks a taxonomy tree to find the most specific
prediction whose distance threshold is satisfied.

Version: %s

`, VERSION),
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		loadProfile(cmd)
	},
}

// Execute adds all child commands to the root command and runs it.
// Called once from main.main.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	defaultThreads := runtime.NumCPU()
	if defaultThreads > 2 {
		defaultThreads = 2
	}

	RootCmd.PersistentFlags().IntP("threads", "j", defaultThreads, "number of worker goroutines to use for signature building and distance computation")
	RootCmd.PersistentFlags().BoolP("verbose", "v", false, "print verbose logging information")
	RootCmd.PersistentFlags().StringP("db", "d", "", fmt.Sprintf("path to the reference .gdb database (default: $%s)", dbPathEnvVar))
	RootCmd.PersistentFlags().BoolP("strict", "", false, "use strict-mode classification: require mutual consistency among all passing taxa")
	RootCmd.PersistentFlags().StringP("infile-list", "i", "", "file of input files list (one file per line); if given, files from cli arguments are ignored")
}
