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
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/exonware/go-xwquery/sql"
	"github.com/exonware/go-xwquery/sql/expression"
)

func newContext(input interface{}) *sql.Context {
	return sql.NewContext(context.Background(), sql.WithInput(input))
}

func id(name string) *expression.Identifier { return expression.NewIdentifier(name) }

func lit(v interface{}) *expression.Literal { return expression.NewLiteral(v) }

func users() []interface{} {
	return []interface{}{
		map[string]interface{}{"name": "A", "age": 25},
		map[string]interface{}{"name": "B", "age": 40},
		map[string]interface{}{"name": "C", "age": 35},
	}
}

func run(t *testing.T, e Executor, input interface{}, a *sql.Action) *sql.ExecutionResult {
	t.Helper()
	res, err := e.Execute(newContext(input), a)
	require.NoError(t, err)
	require.True(t, res.Success)
	return res
}

func TestWhere(t *testing.T) {
	require := require.New(t)

	res := run(t, NewWhere(sql.OpWhere), users(), sql.NewAction(sql.OpWhere, sql.Params{
		"condition": expression.NewGreaterThan(id("age"), lit(30)),
	}))

	require.Equal([]interface{}{
		map[string]interface{}{"name": "B", "age": 40},
		map[string]interface{}{"name": "C", "age": 35},
	}, res.Data)
	require.Equal(2, res.Metadata["filtered_count"])
	require.Equal(3, res.Metadata["total_items"])
	require.Equal("age > 30", res.Metadata["condition"])
}

func TestWhereDictCondition(t *testing.T) {
	require := require.New(t)

	res := run(t, NewWhere(sql.OpFilter), users(), sql.NewAction(sql.OpFilter, sql.Params{
		"condition": map[string]interface{}{"name": "C"},
	}))
	require.Equal([]interface{}{users()[2]}, res.Data)
}

func TestWhereNoCondition(t *testing.T) {
	require := require.New(t)

	res := run(t, NewWhere(sql.OpWhere), users(), sql.NewAction(sql.OpWhere, nil))
	require.Len(res.Data, 3)
}

func TestFilterPath(t *testing.T) {
	require := require.New(t)

	input := map[string]interface{}{"users": users()}
	res := run(t, NewWhere(sql.OpFilter), input, sql.NewAction(sql.OpFilter, sql.Params{
		"path":      "users",
		"condition": expression.NewEquals(id("name"), lit("A")),
	}))
	require.Equal([]interface{}{users()[0]}, res.Data)

	_, err := NewWhere(sql.OpFilter).Execute(newContext(input), sql.NewAction(sql.OpFilter, sql.Params{
		"path": "nope",
	}))
	require.Error(err)
	require.True(sql.ErrValue.Is(err))
}

func TestHaving(t *testing.T) {
	require := require.New(t)

	groups := groupItems([]interface{}{
		map[string]interface{}{"dept": "X"},
		map[string]interface{}{"dept": "Y"},
		map[string]interface{}{"dept": "X"},
	}, []string{"dept"})

	input := make([]interface{}, len(groups))
	for i, g := range groups {
		input[i] = g
	}

	res := run(t, NewHaving(), input, sql.NewAction(sql.OpHaving, sql.Params{
		"condition": expression.NewGreaterThan(expression.NewCountStar(), lit(1)),
	}))
	require.Len(res.Data, 1)
	require.Equal(1, res.Metadata["groups_kept"])

	group := res.Items()[0].(map[string]interface{})
	require.Equal(map[string]interface{}{"dept": "X"}, group[sql.GroupKeyField])
}

func TestFieldFilters(t *testing.T) {
	testCases := []struct {
		name     string
		executor Executor
		params   sql.Params
		expected []string
	}{
		{"like", NewLike(), sql.Params{"field": "name", "pattern": "B%"}, []string{"B"}},
		{"not like", NewLike(), sql.Params{"field": "name", "pattern": "B%", "negate": true}, []string{"A", "C"}},
		{"in", NewIn(), sql.Params{"field": "age", "values": []interface{}{25, 35}}, []string{"A", "C"}},
		{"not in", NewIn(), sql.Params{"field": "age", "values": []interface{}{25}, "negate": true}, []string{"B", "C"}},
		{"between", NewBetween(), sql.Params{"field": "age", "lower": 30, "upper": 40}, []string{"B", "C"}},
		{"range", NewRange(), sql.Params{"field": "age", "min": 35}, []string{"B", "C"}},
		{"exclusive range", NewRange(), sql.Params{"field": "age", "min": 25, "max": 40, "inclusive": false}, []string{"C"}},
	}

	for _, tt := range testCases {
		t.Run(tt.name, func(t *testing.T) {
			require := require.New(t)
			a := sql.NewAction(tt.executor.Operation(), tt.params)
			res := run(t, tt.executor, users(), a)

			var names []string
			for _, item := range res.Items() {
				names = append(names, item.(map[string]interface{})["name"].(string))
			}
			require.Equal(tt.expected, names)
		})
	}
}

func TestFieldFilterErrors(t *testing.T) {
	require := require.New(t)
	ctx := newContext(users())

	_, err := NewLike().Execute(ctx, sql.NewAction(sql.OpLike, sql.Params{"pattern": "x"}))
	require.True(sql.ErrValue.Is(err))

	_, err = NewRange().Execute(ctx, sql.NewAction(sql.OpRange, sql.Params{"field": "age"}))
	require.True(sql.ErrValue.Is(err))
}

func TestHas(t *testing.T) {
	require := require.New(t)

	input := []interface{}{
		map[string]interface{}{"tags": []interface{}{"a", "b"}},
		map[string]interface{}{"tags": []interface{}{"c"}},
		map[string]interface{}{"name": "x"},
	}

	res := run(t, NewHas(), input, sql.NewAction(sql.OpHas, sql.Params{"field": "tags"}))
	require.Len(res.Data, 2)

	res = run(t, NewHas(), input, sql.NewAction(sql.OpHas, sql.Params{"field": "tags", "value": "c"}))
	require.Equal([]interface{}{input[1]}, res.Data)
}
