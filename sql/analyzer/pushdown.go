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
	"github.com/exonware/go-xwquery/sql"
	"github.com/exonware/go-xwquery/sql/expression"
	"github.com/exonware/go-xwquery/sql/parse"
)

// pushdownFilters merges filters into the scan producing their input: a
// WHERE or FILTER that directly follows a scan in a pipeline, or whose
// only child is a scan. The merged predicate is stored in the filter
// param of the scan.
func pushdownFilters(ctx *sql.Context, a *Analyzer, n *sql.Action) (*sql.Action, error) {
	span, _ := ctx.Span("pushdown_filters")
	defer span.Finish()

	n, err := n.TransformUp(func(n *sql.Action) (*sql.Action, error) {
		if !isPushableFilter(n) || len(n.Children) != 1 {
			return n, nil
		}

		child := n.Children[0]
		if !sql.IsScan(child.Type) || len(child.Children) > 0 {
			return n, nil
		}

		a.Log("pushing down filter of %s into %s", n.Type, child.Type)
		return mergeFilter(child, n)
	})
	if err != nil {
		return nil, err
	}

	return transformPipelines(n, func(actions []*sql.Action) ([]*sql.Action, error) {
		var result []*sql.Action
		for i := 0; i < len(actions); i++ {
			act := actions[i]
			if !sql.IsScan(act.Type) || len(act.Children) > 0 {
				result = append(result, act)
				continue
			}

			for i+1 < len(actions) && isPushableFilter(actions[i+1]) && len(actions[i+1].Children) == 0 {
				a.Log("pushing down %s into %s", actions[i+1].Type, act.Type)
				merged, err := mergeFilter(act, actions[i+1])
				if err != nil {
					return nil, err
				}
				act = merged
				i++
			}
			result = append(result, act)
		}
		return result, nil
	})
}

// isPushableFilter reports whether the action is a filter whose only
// param is a condition.
func isPushableFilter(n *sql.Action) bool {
	if n.Type != sql.OpWhere && n.Type != sql.OpFilter {
		return false
	}
	for k := range n.Params {
		if k != "condition" {
			return false
		}
	}
	return true
}

// mergeFilter returns a copy of the scan whose filter also requires the
// condition of the given filter action.
func mergeFilter(scan, filter *sql.Action) (*sql.Action, error) {
	cond, err := parse.ParseCondition(filter.Params["condition"])
	if err != nil {
		return nil, err
	}

	if cond == nil {
		return scan, nil
	}

	existing, err := parse.ParseCondition(scan.Params["filter"])
	if err != nil {
		return nil, err
	}

	merged := withParams(scan)
	merged.Params["filter"] = expression.JoinAnd(existing, cond)
	return merged, nil
}
