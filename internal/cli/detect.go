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
	"strings"

	"github.com/spf13/cobra"
)

// NewDetectCommand creates the detect command.
func NewDetectCommand(rootOpts *RootOptions) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "detect <query>",
		Short: "Guess the dialect of a query",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e := rootOpts.Engine()
			w := cmd.OutOrStdout()

			if all {
				for _, c := range e.Detector.Candidates(args[0]) {
					if _, err := fmt.Fprintf(w, "%s\t%.2f\n", c.Dialect, c.Confidence); err != nil {
						return err
					}
				}
				return nil
			}

			dialect, confidence := e.Detect(args[0])
			_, err := fmt.Fprintf(w, "%s\t%.2f\n", dialect, confidence)
			return err
		},
	}

	cmd.Flags().BoolVarP(&all, "all", "a", false, "list every candidate dialect")

	return cmd
}

// NewDialectsCommand creates the dialects command.
func NewDialectsCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "dialects",
		Short: "List the dialects that can be parsed and generated",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e := rootOpts.Engine()
			w := cmd.OutOrStdout()
			if _, err := fmt.Fprintf(w, "parse:    %s\n", strings.Join(e.Parsers.Dialects(), ", ")); err != nil {
				return err
			}
			_, err := fmt.Fprintf(w, "generate: %s\n", strings.Join(e.Generators.Dialects(), ", "))
			return err
		},
	}
}
