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

// optimizeJoins is the place for join reordering. Joins currently run in
// the order they are written; the rule only reports how many it saw.
func optimizeJoins(ctx *sql.Context, a *Analyzer, n *sql.Action) (*sql.Action, error) {
	span, _ := ctx.Span("optimize_joins")
	defer span.Finish()

	var joins int
	n.Inspect(func(n *sql.Action) bool {
		if n.Type == sql.OpJoin {
			joins++
		}
		return true
	})

	if joins > 1 {
		a.Log("%d joins kept in written order", joins)
	}
	return n, nil
}
