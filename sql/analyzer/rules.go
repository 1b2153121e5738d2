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
)

// OnceBeforeDefault contains the rules to be applied just once before the
// DefaultRules.
var OnceBeforeDefault = []Rule{
	{"resolve_statements", resolveStatements},
}

// DefaultRules to apply when analyzing actions.
var DefaultRules = []Rule{
	{"pushdown_filters", pushdownFilters},
	{"pushdown_projections", pushdownProjections},
	{"assign_indexes", assignIndexes},
	{"optimize_joins", optimizeJoins},
}

// DefaultValidationRules to apply while analyzing actions.
var DefaultValidationRules = []ValidationRule{
	{"validate_operations", validateOperations},
	{"validate_joins", validateJoins},
	{"validate_order_by", validateOrderBy},
}

// transformPipelines applies f to the statements of every container of
// the tree, innermost containers first. f must not modify the actions it
// receives.
func transformPipelines(n *sql.Action, f func([]*sql.Action) ([]*sql.Action, error)) (*sql.Action, error) {
	return n.TransformUp(func(n *sql.Action) (*sql.Action, error) {
		if !n.IsContainer() || len(n.Children) == 0 {
			return n, nil
		}

		children, err := f(n.Children)
		if err != nil {
			return nil, err
		}
		n.Children = children
		return n, nil
	})
}

// withParams returns a shallow copy of the action with its own params.
func withParams(a *sql.Action) *sql.Action {
	n := *a
	n.Params = a.Params.Clone()
	return &n
}
