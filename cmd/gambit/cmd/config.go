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
	"os"
	"strconv"

	"github.com/pkg/errors"
	"github.com/shenwei356/util/pathutil"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v2"
)

// configFileName is the profile file gambit reads defaults from when
// present in the working directory, the way a lab might pin one
// reference database and thread count for a whole pipeline run without
// repeating flags on every invocation.
const configFileName = "gambit.yaml"

// profile is the on-disk shape of gambit.yaml. Every field is optional;
// an explicit flag or $GAMBIT_DB_PATH always overrides it.
type profile struct {
	DBPath  string `yaml:"db_path"`
	Threads int    `yaml:"threads"`
	Strict  bool   `yaml:"strict"`
}

// loadProfile reads gambit.yaml from the working directory if present,
// applying its values as defaults for flags the user did not set
// explicitly. It is a no-op, not an error, when the file is absent.
func loadProfile(cmd *cobra.Command) {
	ok, err := pathutil.Exists(configFileName)
	checkError(err)
	if !ok {
		return
	}

	data, err := os.ReadFile(configFileName)
	checkError(errors.Wrap(err, "reading "+configFileName))

	var p profile
	checkError(errors.Wrap(yaml.Unmarshal(data, &p), "parsing "+configFileName))

	flags := cmd.Flags()
	if p.DBPath != "" && !flags.Changed("db") && os.Getenv(dbPathEnvVar) == "" {
		checkError(flags.Set("db", p.DBPath))
	}
	if p.Threads > 0 && !flags.Changed("threads") {
		checkError(flags.Set("threads", strconv.Itoa(p.Threads)))
	}
	if p.Strict && !flags.Changed("strict") {
		checkError(flags.Set("strict", "true"))
	}
}
