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

// Sort directions.
const (
	Ascending  = "ASC"
	Descending = "DESC"
)

// SortKey is a single key of ORDER BY.
type SortKey struct {
	Column     string
	Expression sql.Expression
	Descending bool
	// NullsFirst places nulls before any value. By default nulls are last
	// for ascending keys and first for descending ones.
	NullsFirst bool
}

// SortKeys reads the keys of an ORDER BY action. A keys param holds one
// mapping per key; otherwise the action is a single key given by column,
// direction, nulls and expression.
func SortKeys(p sql.Params) ([]SortKey, error) {
	if raw, ok := p["keys"]; ok {
		var keys []SortKey
		for _, item := range sql.ExtractItems(raw) {
			m, ok := item.(map[string]interface{})
			if !ok {
				return nil, sql.ErrValue.New(fmt.Sprintf("invalid sort key %v", item))
			}

			k, err := sortKey(sql.Params(m))
			if err != nil {
				return nil, err
			}
			keys = append(keys, k)
		}
		return keys, nil
	}

	k, err := sortKey(p)
	if err != nil {
		return nil, err
	}
	return []SortKey{k}, nil
}

func sortKey(p sql.Params) (SortKey, error) {
	k := SortKey{Column: p.GetString("column")}
	if e, ok := p["expression"].(sql.Expression); ok {
		k.Expression = e
	}

	if k.Column == "" && k.Expression == nil {
		return k, sql.ErrValue.New("ORDER BY needs a column")
	}

	switch dir := upper(p.GetString("direction")); dir {
	case "", Ascending:
	case Descending:
		k.Descending = true
	default:
		return k, sql.ErrValue.New(fmt.Sprintf("invalid sort direction %q", dir))
	}

	switch nulls := upper(p.GetString("nulls")); nulls {
	case "FIRST":
		k.NullsFirst = true
	case "LAST":
	case "":
		k.NullsFirst = k.Descending
	default:
		return k, sql.ErrValue.New(fmt.Sprintf("invalid nulls order %q", nulls))
	}

	return k, nil
}

// Params returns the mapping describing the key in a keys param.
func (k SortKey) Params() map[string]interface{} {
	dir := Ascending
	if k.Descending {
		dir = Descending
	}

	m := map[string]interface{}{"column": k.Column, "direction": dir}
	if k.Expression != nil {
		m["expression"] = k.Expression
	}
	if k.NullsFirst != k.Descending {
		if k.NullsFirst {
			m["nulls"] = "FIRST"
		} else {
			m["nulls"] = "LAST"
		}
	}
	return m
}

func (k SortKey) value(ctx *sql.Context, item interface{}) (interface{}, error) {
	if k.Expression != nil {
		return k.Expression.Eval(ctx, item)
	}
	return expression.NewIdentifier(k.Column).Eval(ctx, item)
}

// OrderBy sorts the records. The sort is stable and the first key is the
// primary one.
type OrderBy struct {
	descriptor
}

// NewOrderBy returns the executor of ORDER_BY or ORDER.
func NewOrderBy(op string) *OrderBy {
	return &OrderBy{descriptor{name: op}}
}

// Execute implements the Executor interface.
func (o *OrderBy) Execute(ctx *sql.Context, a *sql.Action) (*sql.ExecutionResult, error) {
	keys, err := SortKeys(a.Params)
	if err != nil {
		return nil, err
	}

	items := sql.ExtractItems(ctx.Input)
	sorted, err := sortItems(ctx, items, keys)
	if err != nil {
		return nil, err
	}

	columns := make([]string, len(keys))
	for i, k := range keys {
		columns[i] = k.Column
	}

	return sql.NewResult(a.Type, sorted, map[string]interface{}{
		"keys":        columns,
		"total_items": len(items),
	}), nil
}

type sortRow struct {
	item   interface{}
	values []interface{}
}

func sortItems(ctx *sql.Context, items []interface{}, keys []SortKey) ([]interface{}, error) {
	rows := make([]sortRow, len(items))
	for i, item := range items {
		values := make([]interface{}, len(keys))
		for j, k := range keys {
			v, err := k.value(ctx, item)
			if err != nil {
				return nil, err
			}
			values[j] = v
		}
		rows[i] = sortRow{item, values}
	}

	sort.SliceStable(rows, func(i, j int) bool {
		for k, key := range keys {
			if c := compareKey(key, rows[i].values[k], rows[j].values[k]); c != 0 {
				return c < 0
			}
		}
		return false
	})

	result := make([]interface{}, len(rows))
	for i, r := range rows {
		result[i] = r.item
	}
	return result, nil
}

// compareKey compares two values of a key in the order of the key.
func compareKey(k SortKey, a, b interface{}) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		if k.NullsFirst {
			return -1
		}
		return 1
	case b == nil:
		if k.NullsFirst {
			return 1
		}
		return -1
	}

	c := sql.Compare(a, b)
	if k.Descending {
		return -c
	}
	return c
}
