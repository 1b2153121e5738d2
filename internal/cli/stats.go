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
	errors "gopkg.in/src-d/go-errors.v1"

	"github.com/exonware/go-xwquery/internal/loader"
	"github.com/exonware/go-xwquery/sql"
	"github.com/exonware/go-xwquery/sql/stats"
)

// ErrNoStatsDir is returned by the stats commands when no statistics
// directory is configured.
var ErrNoStatsDir = errors.NewKind("no statistics directory: set --stats-dir or stats_dir")

// NewStatsCommand creates the stats command and its subcommands.
func NewStatsCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Manage the table statistics used by the optimizer",
	}

	cmd.AddCommand(newStatsIndexCommand(rootOpts))
	cmd.AddCommand(newStatsAnalyzeCommand(rootOpts))
	cmd.AddCommand(newStatsShowCommand(rootOpts))

	return cmd
}

func store(rootOpts *RootOptions) (*stats.BoltProvider, error) {
	s := rootOpts.Engine().StatsStore()
	if s == nil {
		return nil, ErrNoStatsDir.New()
	}
	return s, nil
}

func newStatsIndexCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "index <table> <column>...",
		Short: "Declare columns of a table as indexed",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := store(rootOpts)
			if err != nil {
				return err
			}
			return s.DeclareIndex(args[0], args[1:]...)
		},
	}
}

func newStatsAnalyzeCommand(rootOpts *RootOptions) *cobra.Command {
	var input, format string

	cmd := &cobra.Command{
		Use:   "analyze <table>",
		Short: "Compute the row count and distinct values of a table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := store(rootOpts)
			if err != nil {
				return err
			}

			data, err := readInput(input, format, cmd.InOrStdin())
			if err != nil {
				return err
			}
			return s.Analyze(args[0], sql.ExtractItems(data))
		},
	}

	cmd.Flags().StringVarP(&input, "input", "i", "-", "data file, or - for standard input")
	cmd.Flags().StringVar(&format, "input-format", "", fmt.Sprintf("input format %v", loader.Formats()))

	return cmd
}

func newStatsShowCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show [table]",
		Short: "Print the statistics of a table, or the tables with statistics",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := store(rootOpts)
			if err != nil {
				return err
			}

			if len(args) == 0 {
				tables, err := s.Tables()
				if err != nil {
					return err
				}
				for _, t := range tables {
					if _, err := fmt.Fprintln(cmd.OutOrStdout(), t); err != nil {
						return err
					}
				}
				return nil
			}

			t, err := s.Table(args[0])
			if err != nil {
				return err
			}
			return loader.Encode(cmd.OutOrStdout(), t, loader.YAML, false)
		},
	}
}
