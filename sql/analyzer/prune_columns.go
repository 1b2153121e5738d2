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
	"sort"
	"strings"

	"github.com/exonware/go-xwquery/sql"
	"github.com/exonware/go-xwquery/sql/expression"
	"github.com/exonware/go-xwquery/sql/plan"
)

// passThrough are the actions between a scan and its PROJECT that keep the
// fields of the records, so the fields they read are all that must be
// materialized.
var passThrough = map[string]bool{
	sql.OpWhere:    true,
	sql.OpFilter:   true,
	sql.OpOrderBy:  true,
	sql.OpOrder:    true,
	sql.OpLimit:    true,
	sql.OpOffset:   true,
	sql.OpSlicing:  true,
	sql.OpIndexing: true,
}

// pushdownProjections records in the scan of a pipeline the top level
// fields the rest of the pipeline reads, when it ends up projecting
// plain columns. The scan then only materializes those.
func pushdownProjections(ctx *sql.Context, a *Analyzer, n *sql.Action) (*sql.Action, error) {
	span, _ := ctx.Span("pushdown_projections")
	defer span.Finish()

	return transformPipelines(n, func(actions []*sql.Action) ([]*sql.Action, error) {
		for i, act := range actions {
			if act.Type != sql.OpSequentialScan && act.Type != sql.OpIndexScan {
				continue
			}

			required, ok := requiredFields(act, actions[i+1:])
			if !ok {
				return actions, nil
			}

			if current := act.Params.GetStrings("required"); equalStrings(current, required) {
				return actions, nil
			}

			a.Log("pruning columns of %s to %v", act.Params.GetString("from"), required)
			scan := withParams(act)
			scan.Params["required"] = required

			result := append([]*sql.Action(nil), actions...)
			result[i] = scan
			return result, nil
		}
		return actions, nil
	})
}

// requiredFields returns the sorted top level fields read by the actions
// following the scan up to the first PROJECT, and by that PROJECT.
func requiredFields(scan *sql.Action, actions []*sql.Action) ([]string, bool) {
	var (
		alias = scan.Params.GetString("alias")
		from  = scan.Params.GetString("from")
		seen  = make(map[string]bool)
	)

	add := func(e sql.Expression) bool {
		for _, name := range expression.Identifiers(e) {
			names, ok := topLevelFields(name, alias, from)
			if !ok {
				return false
			}
			for _, n := range names {
				seen[n] = true
			}
		}
		return true
	}

	for _, act := range actions {
		if len(act.Children) > 0 {
			return nil, false
		}

		switch {
		case act.Type == sql.OpProject:
			fields, err := selectColumns(act.Params["fields"])
			if err != nil || len(fields) == 0 {
				return nil, false
			}
			for _, f := range fields {
				if !isColumnRef(f) || !add(f) {
					return nil, false
				}
			}

			required := make([]string, 0, len(seen))
			for n := range seen {
				required = append(required, n)
			}
			sort.Strings(required)
			return required, true
		case !passThrough[act.Type]:
			return nil, false
		case act.Type == sql.OpWhere || act.Type == sql.OpFilter:
			if !isPushableFilter(act) {
				return nil, false
			}
			cond, ok := act.Params["condition"].(sql.Expression)
			if !ok || !add(cond) {
				return nil, false
			}
		case act.Type == sql.OpOrderBy || act.Type == sql.OpOrder:
			keys, err := plan.SortKeys(act.Params)
			if err != nil {
				return nil, false
			}
			for _, k := range keys {
				e := k.Expression
				if e == nil {
					e = expression.NewIdentifier(k.Column)
				}
				if !add(e) {
					return nil, false
				}
			}
		}
	}

	return nil, false
}

// isColumnRef reports whether e reads a field, aliased or not.
func isColumnRef(e sql.Expression) bool {
	_, ok := expression.Unalias(e).(*expression.Identifier)
	return ok
}

// topLevelFields returns the keys of a scanned record an identifier may
// read. A qualifier naming the scanned table is dropped.
func topLevelFields(name, alias, from string) ([]string, bool) {
	if name == "" || name == "*" {
		return nil, false
	}

	idx := strings.Index(name, ".")
	if idx < 0 {
		return []string{name}, true
	}

	qualifier, rest := name[:idx], name[idx+1:]
	if (alias != "" && qualifier == alias) || (from != "" && qualifier == from) {
		return topLevelFields(rest, "", "")
	}

	names := []string{qualifier}
	if last := name[strings.LastIndex(name, ".")+1:]; last != qualifier {
		names = append(names, last)
	}
	return names, true
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
