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
	"fmt"
	"strings"

	"github.com/exonware/go-xwquery/internal/similartext"
	"github.com/exonware/go-xwquery/sql"
	"github.com/exonware/go-xwquery/sql/expression"
	"github.com/exonware/go-xwquery/sql/plan"
)

// validateOperations checks that every action of the tree names a known
// operation.
func validateOperations(a *Analyzer, n *sql.Action) error {
	var err error
	n.Inspect(func(n *sql.Action) bool {
		if err != nil {
			return false
		}
		if n.IsContainer() || sql.IsKnownOperation(n.Type) {
			return true
		}
		err = sql.ErrUnknownOperation.New(n.Type, similartext.FindFold(sql.Operations(), n.Type))
		return false
	})
	return err
}

// validateJoins checks that every join but a cross join has a condition.
func validateJoins(a *Analyzer, n *sql.Action) error {
	var err error
	n.Inspect(func(n *sql.Action) bool {
		if err != nil {
			return false
		}
		if n.Type != sql.OpJoin {
			return true
		}

		typ := strings.ToUpper(n.Params.GetString("type"))
		if typ == "" {
			typ = plan.InnerJoin
		}
		if typ == plan.CrossJoin {
			return true
		}

		if n.Params["on"] == nil && len(n.Params.GetStrings("using")) == 0 {
			err = ErrValidationFailed.New(fmt.Sprintf("%s JOIN of %s has no join condition", typ, n.Params.GetString("right")))
		}
		return true
	})
	return err
}

// validateOrderBy checks that a sort by an aggregate happens on grouped
// or aggregated records.
func validateOrderBy(a *Analyzer, n *sql.Action) error {
	var err error
	n.Inspect(func(n *sql.Action) bool {
		if err != nil || !n.IsContainer() {
			return err == nil
		}

		grouped := false
		for _, act := range n.Children {
			switch act.Type {
			case sql.OpGroupBy, sql.OpGroup, sql.OpAggregate, sql.OpSummarize:
				grouped = true
			case sql.OpOrderBy, sql.OpOrder:
				if grouped {
					continue
				}
				keys, kerr := plan.SortKeys(act.Params)
				if kerr != nil {
					err = kerr
					return false
				}
				for _, k := range keys {
					if k.Expression != nil && expression.HasAggregate(k.Expression) {
						err = ErrValidationFailed.New(fmt.Sprintf("ORDER BY %s needs GROUP BY", k.Expression))
						return false
					}
				}
			}
		}
		return true
	})
	return err
}
