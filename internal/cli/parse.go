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

	"github.com/spf13/cobra"

	xwquery "github.com/exonware/go-xwquery"
	"github.com/exonware/go-xwquery/sql/codec"
)

// ValidTreeFormats are the output formats of the parse command.
var ValidTreeFormats = []string{"text", string(codec.JSON), string(codec.Msgpack)}

// NewParseCommand creates the parse command.
func NewParseCommand(rootOpts *RootOptions) *cobra.Command {
	var dialect, format string

	cmd := &cobra.Command{
		Use:   "parse <query>",
		Short: "Print the action tree of a query",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !isValidTreeFormat(format) {
				return fmt.Errorf("invalid format %q: must be one of %v", format, ValidTreeFormats)
			}

			tree, err := rootOpts.Engine().Parse(cmd.Context(), args[0], dialectOption(dialect)...)
			if err != nil {
				return err
			}

			if format == "text" {
				_, err = fmt.Fprint(cmd.OutOrStdout(), tree.String())
				return err
			}

			data, err := codec.Marshal(tree, codec.Format(format))
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}

	cmd.Flags().StringVarP(&dialect, "dialect", "d", "", "query dialect, detected when empty")
	cmd.Flags().StringVar(&format, "format", "text", fmt.Sprintf("output format %v", ValidTreeFormats))

	return cmd
}

// NewExplainCommand creates the explain command.
func NewExplainCommand(rootOpts *RootOptions) *cobra.Command {
	var dialect string

	cmd := &cobra.Command{
		Use:   "explain <query>",
		Short: "Print the analyzed plan of a query",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := rootOpts.Engine().Explain(cmd.Context(), args[0], dialectOption(dialect)...)
			if err != nil {
				return err
			}
			_, err = fmt.Fprint(cmd.OutOrStdout(), out)
			return err
		},
	}

	cmd.Flags().StringVarP(&dialect, "dialect", "d", "", "query dialect, detected when empty")

	return cmd
}

func dialectOption(dialect string) []xwquery.QueryOption {
	if dialect == "" {
		return nil
	}
	return []xwquery.QueryOption{xwquery.WithDialect(dialect)}
}

func isValidTreeFormat(format string) bool {
	for _, f := range ValidTreeFormats {
		if f == format {
			return true
		}
	}
	return false
}
