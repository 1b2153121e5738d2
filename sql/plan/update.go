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

package plan

import (
	"fmt"
	"sort"

	"github.com/exonware/go-xwquery/sql"
	"github.com/exonware/go-xwquery/sql/expression"
)

// Update sets fields of the records of the target collection matching
// the where condition. Mapping records are modified in place; other
// records are replaced by an updated mapping.
type Update struct {
	descriptor
}

// NewUpdate returns the UPDATE executor.
func NewUpdate() *Update {
	return &Update{descriptor{name: sql.OpUpdate}}
}

type assignment struct {
	column string
	value  sql.Expression
}

func assignments(raw interface{}) ([]assignment, error) {
	set, ok := raw.(map[string]interface{})
	if !ok || len(set) == 0 {
		return nil, sql.ErrValue.New(fmt.Sprintf("UPDATE needs a set mapping, got %T", raw))
	}

	columns := make([]string, 0, len(set))
	for c := range set {
		columns = append(columns, c)
	}
	sort.Strings(columns)

	result := make([]assignment, len(columns))
	for i, c := range columns {
		e, ok := set[c].(sql.Expression)
		if !ok {
			e = expression.NewLiteral(set[c])
		}
		result[i] = assignment{c, e}
	}
	return result, nil
}

// Execute implements the Executor interface.
func (u *Update) Execute(ctx *sql.Context, a *sql.Action) (*sql.ExecutionResult, error) {
	set, err := assignments(a.Params["set"])
	if err != nil {
		return nil, err
	}

	cond, err := condition(a, "where")
	if err != nil {
		return nil, err
	}

	limit, _, err := intParam(a, "limit")
	if err != nil {
		return nil, err
	}

	t := resolveTarget(ctx, a.Params.GetString("target"))
	items := make([]interface{}, len(t.items))
	copy(items, t.items)

	updated := 0
	for i, item := range items {
		if limit > 0 && int64(updated) >= limit {
			break
		}

		ok, err := expression.IsTrue(ctx, cond, item)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}

		record, ok := recordFor(item)
		if !ok {
			return nil, sql.ErrValue.New(fmt.Sprintf("UPDATE: cannot set fields of %T", item))
		}

		// Values are computed from the record before the update.
		values := make([]interface{}, len(set))
		for j, s := range set {
			if values[j], err = s.value.Eval(ctx, item); err != nil {
				return nil, err
			}
		}

		for j, s := range set {
			record[s.column] = values[j]
		}
		items[i] = record
		updated++
	}

	return sql.NewResult(a.Type, t.store(items), map[string]interface{}{
		"updated_count": updated,
		"target":        a.Params.GetString("target"),
	}), nil
}
