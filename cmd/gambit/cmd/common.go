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
	"bufio"
	"fmt"
	"os"

	"github.com/shenwei356/go-logging"
	"github.com/shenwei356/util/pathutil"
	"github.com/spf13/cobra"
)

// dbPathEnvVar is the environment fallback for --db.
const dbPathEnvVar = "GAMBIT_DB_PATH"

// Options holds the persistent flags every subcommand reads.
type Options struct {
	NumCPUs int
	Verbose bool
	Strict  bool
	DBPath  string
}

// getOptions reads the persistent flags shared by every subcommand.
// DBPath is left empty if neither -d/--db nor $GAMBIT_DB_PATH is set;
// only commands that actually need a reference database call
// requireDBPath to turn that into a fatal error.
func getOptions(cmd *cobra.Command) *Options {
	dbPath := getFlagString(cmd, "db")
	if dbPath == "" {
		dbPath = os.Getenv(dbPathEnvVar)
	}

	return &Options{
		NumCPUs: getFlagPositiveInt(cmd, "threads"),
		Verbose: getFlagBool(cmd, "verbose"),
		Strict:  getFlagBool(cmd, "strict"),
		DBPath:  dbPath,
	}
}

// requireDBPath fails the command if no reference database was given,
// the way commands that cannot proceed without one (query) need to.
func requireDBPath(opt *Options) {
	if opt.DBPath == "" {
		checkError(fmt.Errorf("no reference database given: use -d/--db or set %s", dbPathEnvVar))
	}
}

// checkError logs and exits the process with a non-zero status when
// err is non-nil. Every subcommand funnels its terminal errors through
// this single choke point, so invalid input, a missing DB, or a
// corrupt signature file all exit non-zero regardless of which command
// or code path produced the failure.
func checkError(err error) {
	if err == nil {
		return
	}
	log.Error(err)
	os.Exit(1)
}

func getFlagString(cmd *cobra.Command, flag string) string {
	v, err := cmd.Flags().GetString(flag)
	checkError(err)
	return v
}

func getFlagBool(cmd *cobra.Command, flag string) bool {
	v, err := cmd.Flags().GetBool(flag)
	checkError(err)
	return v
}

func getFlagInt(cmd *cobra.Command, flag string) int {
	v, err := cmd.Flags().GetInt(flag)
	checkError(err)
	return v
}

func getFlagPositiveInt(cmd *cobra.Command, flag string) int {
	v := getFlagInt(cmd, flag)
	if v <= 0 {
		checkError(fmt.Errorf("value of flag --%s should be a positive integer", flag))
	}
	return v
}

// getFileList expands args into a file list, honoring -i/--infile-list
// the way unikmer/cmd/util.go does: when given, it replaces the
// positional arguments outright rather than merging with them.
func getFileList(cmd *cobra.Command, args []string) []string {
	listFile := getFlagString(cmd, "infile-list")
	if listFile == "" {
		if len(args) == 0 {
			checkError(fmt.Errorf("no input files given"))
		}
		return args
	}

	ok, err := pathutil.Exists(listFile)
	checkError(err)
	if !ok {
		checkError(fmt.Errorf("file of input file list does not exist: %s", listFile))
	}

	fh, err := os.Open(listFile)
	checkError(err)
	defer fh.Close()

	var files []string
	scanner := bufio.NewScanner(fh)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		files = append(files, line)
	}
	checkError(scanner.Err())

	if len(files) == 0 {
		checkError(fmt.Errorf("no input files found in list: %s", listFile))
	}
	return files
}

var log = logging.MustGetLogger("gambit")
