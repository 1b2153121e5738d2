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
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/exonware/go-xwquery/sql"
	"github.com/exonware/go-xwquery/sql/expression"
)

func TestSequentialScan(t *testing.T) {
	require := require.New(t)

	res := run(t, NewSequentialScan(), users(), sql.NewAction(sql.OpSequentialScan, sql.Params{
		"from": "users",
	}))
	require.Equal(users(), res.Data)
	require.Equal("input", res.Metadata["source"])

	catalog := map[string]interface{}{"users": users(), "orders": []interface{}{}}
	res = run(t, NewSequentialScan(), catalog, sql.NewAction(sql.OpSequentialScan, sql.Params{
		"from":     "users",
		"filter":   expression.NewGreaterThan(id("age"), lit(30)),
		"required": []interface{}{"name"},
	}))
	require.Equal([]interface{}{
		map[string]interface{}{"name": "B"},
		map[string]interface{}{"name": "C"},
	}, res.Data)
	require.Equal("input_field", res.Metadata["source"])
	require.Equal(3, res.Metadata["total_items"])

	res = run(t, NewSequentialScan(), catalog, sql.NewAction(sql.OpSequentialScan, sql.Params{"from": "nope"}))
	require.Equal([]interface{}{}, res.Data)
	require.Equal("missing", res.Metadata["source"])
}

func TestSequentialScanVariable(t *testing.T) {
	require := require.New(t)

	ctx := newContext(nil)
	ctx.SetVariable("adults", users()[1:])

	res, err := NewSequentialScan().Execute(ctx, sql.NewAction(sql.OpSequentialScan, sql.Params{"from": "adults"}))
	require.NoError(err)
	require.Len(res.Data, 2)
	require.Equal("variable", res.Metadata["source"])
}

func TestIndexScan(t *testing.T) {
	require := require.New(t)

	input := append(users(), map[string]interface{}{"name": "D", "age": 40})
	res := run(t, NewIndexScan(), input, sql.NewAction(sql.OpIndexScan, sql.Params{
		"from":  "users",
		"index": "age",
		"filter": expression.NewAnd(
			expression.NewEquals(id("users.age"), lit(int64(40))),
			expression.NewNotEquals(id("name"), lit("D")),
		),
	}))

	require.Equal([]interface{}{users()[1]}, res.Data)
	require.Equal(2, res.Metadata["candidates"])
	require.Equal("age", res.Metadata["index"])

	res = run(t, NewIndexScan(), input, sql.NewAction(sql.OpIndexScan, sql.Params{
		"index":  "age",
		"filter": expression.NewIn(id("age"), lit(35), lit(25)),
	}))
	require.Equal([]interface{}{"A", "C"}, names(res.Items(), "name"))
}

func TestIndexLookupValues(t *testing.T) {
	require := require.New(t)

	values, ok := IndexLookupValues(expression.NewEquals(lit(1), id("u.id")), "id", "u", "users")
	require.True(ok)
	require.Equal([]interface{}{1}, values)

	_, ok = IndexLookupValues(expression.NewEquals(id("o.id"), lit(1)), "id", "u", "users")
	require.False(ok)

	_, ok = IndexLookupValues(expression.NewGreaterThan(id("id"), lit(1)), "id", "", "")
	require.False(ok)

	_, ok = IndexLookupValues(expression.NewIn(id("id"), lit(1), id("other")), "id", "", "")
	require.False(ok)
}

func TestSelect(t *testing.T) {
	require := require.New(t)

	res := run(t, NewSelect(), users(), sql.NewAction(sql.OpSelect, sql.Params{
		"from":    "users",
		"columns": []sql.Expression{id("name"), id("age")},
		"filter":  expression.NewGreaterThan(id("age"), lit(30)),
	}))
	require.Equal([]interface{}{
		map[string]interface{}{"name": "B", "age": 40},
		map[string]interface{}{"name": "C", "age": 35},
	}, res.Data)

	res = run(t, NewSelect(), users(), sql.NewAction(sql.OpSelect, sql.Params{
		"columns": []sql.Expression{expression.NewAlias(expression.NewCountStar(), "n")},
	}))
	require.Equal([]interface{}{map[string]interface{}{"n": int64(3)}}, res.Data)

	input := []interface{}{
		map[string]interface{}{"a": 1, "b": 1},
		map[string]interface{}{"a": 1, "b": 2},
	}
	res = run(t, NewSelect(), input, sql.NewAction(sql.OpSelect, sql.Params{
		"columns":  []sql.Expression{id("a")},
		"distinct": true,
	}))
	require.Equal([]interface{}{map[string]interface{}{"a": 1}}, res.Data)
}
