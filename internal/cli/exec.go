// Copyright 2020-2021 Dolthub, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	xwquery "github.com/exonware/go-xwquery"
	"github.com/exonware/go-xwquery/internal/loader"
)

type execOptions struct {
	input       string
	inputFormat string
	output      string
	outputFile  string
	dialect     string
	vars        map[string]string
}

// NewExecCommand creates the exec command.
func NewExecCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &execOptions{}

	cmd := &cobra.Command{
		Use:   "exec <query>",
		Short: "Run a query against a data file",
		Long: `Run a query against the data read from a file or from standard input.

The input format is taken from the file extension unless --input-format is
given. Standard input is read when the input is "-".`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExec(rootOpts, opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.input, "input", "i", "", "data file, or - for standard input")
	cmd.Flags().StringVar(&opts.inputFormat, "input-format", "", fmt.Sprintf("input format %v", loader.Formats()))
	cmd.Flags().StringVarP(&opts.output, "output", "o", loader.JSON, "output format (json|jsonl|yaml|csv)")
	cmd.Flags().StringVarP(&opts.outputFile, "output-file", "O", "", "write the result to a file instead of standard output")
	cmd.Flags().StringVarP(&opts.dialect, "dialect", "d", "", "query dialect, detected when empty")
	cmd.Flags().StringToStringVar(&opts.vars, "var", nil, "query variables as name=value")

	return cmd
}

func runExec(rootOpts *RootOptions, opts *execOptions, query string, cmd *cobra.Command) error {
	input, err := readInput(opts.input, opts.inputFormat, cmd.InOrStdin())
	if err != nil {
		return err
	}

	var qopts []xwquery.QueryOption
	if opts.dialect != "" {
		qopts = append(qopts, xwquery.WithDialect(opts.dialect))
	}
	if len(opts.vars) > 0 {
		vars := make(map[string]interface{}, len(opts.vars))
		for k, v := range opts.vars {
			vars[k] = v
		}
		qopts = append(qopts, xwquery.WithVariables(vars))
	}

	e := rootOpts.Engine()
	res, err := e.Execute(cmd.Context(), query, input, qopts...)
	if err != nil {
		return fmt.Errorf("%s failed: %s", res.Operation, err)
	}

	if opts.outputFile != "" {
		format := ""
		if cmd.Flags().Changed("output") {
			format = opts.output
		}
		return loader.Save(opts.outputFile, res.Data, format, e.Config.PrettyPrint)
	}
	return loader.Encode(cmd.OutOrStdout(), res.Data, opts.output, e.Config.PrettyPrint)
}

func readInput(path, format string, stdin io.Reader) (interface{}, error) {
	switch path {
	case "":
		return nil, nil
	case "-":
		if format == "" {
			format = loader.JSON
		}
		return loader.Decode(stdin, format)
	}
	return loader.Load(path, format)
}
