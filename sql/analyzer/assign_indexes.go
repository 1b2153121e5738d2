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

package analyzer

import (
	"strings"

	"github.com/exonware/go-xwquery/sql"
	"github.com/exonware/go-xwquery/sql/expression"
	"github.com/exonware/go-xwquery/sql/parse"
	"github.com/exonware/go-xwquery/sql/plan"
)

// assignIndexes replaces sequential scans with index scans when the
// filter of the scan compares a declared index column for equality with
// constants. When several columns qualify, the most selective one is
// chosen.
func assignIndexes(ctx *sql.Context, a *Analyzer, n *sql.Action) (*sql.Action, error) {
	if a.Stats == nil {
		return n, nil
	}

	span, _ := ctx.Span("assign_indexes")
	defer span.Finish()

	return n.TransformUp(func(n *sql.Action) (*sql.Action, error) {
		if n.Type != sql.OpSequentialScan || !n.Params.Has("filter") {
			return n, nil
		}

		cond, err := parse.ParseCondition(n.Params["filter"])
		if err != nil || cond == nil {
			return n, err
		}

		var (
			from     = n.Params.GetString("from")
			alias    = n.Params.GetString("alias")
			best     string
			bestCost float64
		)

		for _, c := range indexCandidates(cond, alias, from) {
			if !a.Stats.HasIndex(from, c) {
				continue
			}
			values, ok := plan.IndexLookupValues(cond, c, alias, from)
			if !ok {
				continue
			}

			cost := a.Stats.Selectivity(from, expression.NewIn(expression.NewIdentifier(c), literals(values)...))
			if best == "" || cost < bestCost {
				best, bestCost = c, cost
			}
		}

		if best == "" {
			return n, nil
		}

		a.Log("using index %s.%s for the scan", from, best)
		scan := withParams(n)
		scan.Type = sql.OpIndexScan
		scan.Params["index"] = best
		return scan, nil
	})
}

// indexCandidates returns the unqualified columns of the scanned table
// the condition reads, in order of appearance.
func indexCandidates(cond sql.Expression, alias, from string) []string {
	var (
		result []string
		seen   = make(map[string]bool)
	)

	for _, name := range expression.Identifiers(cond) {
		column := name
		if idx := strings.Index(name, "."); idx >= 0 {
			q := name[:idx]
			if !strings.EqualFold(q, alias) && !strings.EqualFold(q, from) {
				continue
			}
			column = name[idx+1:]
		}

		if !seen[column] {
			seen[column] = true
			result = append(result, column)
		}
	}

	return result
}

func literals(values []interface{}) []sql.Expression {
	result := make([]sql.Expression, len(values))
	for i, v := range values {
		result[i] = expression.NewLiteral(v)
	}
	return result
}
