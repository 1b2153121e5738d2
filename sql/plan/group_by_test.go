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

func employees() []interface{} {
	return []interface{}{
		map[string]interface{}{"dept": "X", "salary": 10},
		map[string]interface{}{"dept": "Y", "salary": 20},
		map[string]interface{}{"dept": "X", "salary": 30},
		map[string]interface{}{"dept": "X", "salary": 50},
		map[string]interface{}{"dept": "Y", "salary": 40},
	}
}

func TestGroupByCount(t *testing.T) {
	require := require.New(t)

	res := run(t, NewGroupBy(sql.OpGroupBy), employees(), sql.NewAction(sql.OpGroupBy, sql.Params{
		"fields":     []interface{}{"dept"},
		"aggregates": []sql.Expression{expression.NewCountStar()},
	}))

	groups := res.Items()
	require.Len(groups, 2)

	x := groups[0].(map[string]interface{})
	require.Equal(map[string]interface{}{"dept": "X"}, x[sql.GroupKeyField])
	require.Equal(int64(3), x[sql.GroupCountField])
	require.Len(x[sql.GroupItemsField], 3)
	require.Equal(int64(3), x["COUNT(*)"])

	y := groups[1].(map[string]interface{})
	require.Equal(map[string]interface{}{"dept": "Y"}, y[sql.GroupKeyField])
	require.Equal(int64(2), y[sql.GroupCountField])

	require.Equal(2, res.Metadata["group_count"])
	require.Equal(5, res.Metadata["total_items"])
}

func TestGroupByAliasedAggregates(t *testing.T) {
	require := require.New(t)

	res := run(t, NewGroupBy(sql.OpGroup), employees(), sql.NewAction(sql.OpGroup, sql.Params{
		"fields": "dept",
		"aggregates": []sql.Expression{
			expression.NewAlias(expression.NewAggregate(expression.Sum, id("salary"), false), "total"),
			expression.NewAlias(expression.NewAggregate(expression.Max, id("salary"), false), "top"),
		},
	}))

	x := res.Items()[0].(map[string]interface{})
	require.Equal(int64(90), x["total"])
	require.Equal(50, x["top"])
}

func TestGroupByEdgeCases(t *testing.T) {
	require := require.New(t)

	require.Empty(groupItems(nil, []string{"dept"}))
	require.Empty(groupItems(nil, nil))

	groups := groupItems(employees(), nil)
	require.Len(groups, 1)
	require.Equal(int64(5), groups[0][sql.GroupCountField])

	// Unhashable keys are still grouped by equality.
	items := []interface{}{
		map[string]interface{}{"tags": []interface{}{"a"}},
		map[string]interface{}{"tags": []interface{}{"a"}},
		map[string]interface{}{"tags": []interface{}{"b"}},
	}
	require.Len(groupItems(items, []string{"tags"}), 2)

	// Missing fields group under null.
	items = []interface{}{
		map[string]interface{}{"dept": "X"},
		map[string]interface{}{"other": 1},
	}
	groups = groupItems(items, []string{"dept"})
	require.Len(groups, 2)
	require.Equal(map[string]interface{}{"dept": nil}, groups[1][sql.GroupKeyField])
}

func TestDistinct(t *testing.T) {
	require := require.New(t)

	input := []interface{}{
		map[string]interface{}{"a": 1, "b": 1},
		map[string]interface{}{"a": 1, "b": 1},
		map[string]interface{}{"a": 1, "b": 2},
	}

	res := run(t, NewDistinct(), input, sql.NewAction(sql.OpDistinct, nil))
	require.Equal([]interface{}{input[0], input[2]}, res.Data)
	require.Equal(1, res.Metadata["duplicates_removed"])

	res = run(t, NewDistinct(), input, sql.NewAction(sql.OpDistinct, sql.Params{"fields": []interface{}{"a"}}))
	require.Equal([]interface{}{input[0]}, res.Data)
}

func TestAggregateFunctions(t *testing.T) {
	testCases := []struct {
		op       string
		params   sql.Params
		expected interface{}
	}{
		{sql.OpCount, sql.Params{"field": "salary"}, int64(5)},
		{sql.OpSum, sql.Params{"field": "salary"}, int64(150)},
		{sql.OpAvg, sql.Params{"field": "salary"}, float64(30)},
		{sql.OpMin, sql.Params{"field": "salary"}, 10},
		{sql.OpMax, sql.Params{"field": "salary"}, 50},
		{sql.OpCount, sql.Params{"field": "dept", "distinct": true}, int64(2)},
	}

	for _, tt := range testCases {
		t.Run(tt.op, func(t *testing.T) {
			res := run(t, NewAggregateFunc(tt.op), employees(), sql.NewAction(tt.op, tt.params))
			require.Equal(t, tt.expected, res.Data)
		})
	}
}

func TestAggregateFunctionsEmpty(t *testing.T) {
	require := require.New(t)

	res := run(t, NewAggregateFunc(sql.OpAvg), []interface{}{}, sql.NewAction(sql.OpAvg, sql.Params{"field": "x"}))
	require.Nil(res.Data)

	res = run(t, NewAggregateFunc(sql.OpCount), []interface{}{}, sql.NewAction(sql.OpCount, nil))
	require.Equal(int64(0), res.Data)
}

func TestSummarize(t *testing.T) {
	require := require.New(t)

	res := run(t, NewSummarize(), employees(), sql.NewAction(sql.OpSummarize, sql.Params{"field": "salary"}))
	summary := res.Data.(map[string]interface{})
	require.Equal(int64(5), summary[sql.AggCount])
	require.Equal(int64(150), summary[sql.AggSum])
	require.Equal(10, summary[sql.AggMin])
	require.Equal(int64(5), summary[sql.AggTotalItems])
}

func TestAggregate(t *testing.T) {
	require := require.New(t)

	a := sql.NewAction(sql.OpAggregate, sql.Params{
		"aggregates": []sql.Expression{
			expression.NewAlias(expression.NewCountStar(), "n"),
			expression.NewAlias(expression.NewAggregate(expression.Avg, id("salary"), false), "avg"),
		},
	})

	res := run(t, NewAggregate(), employees(), a)
	require.Equal([]interface{}{
		map[string]interface{}{"n": int64(5), "avg": float64(30)},
	}, res.Data)

	groups := run(t, NewGroupBy(sql.OpGroupBy), employees(), sql.NewAction(sql.OpGroupBy, sql.Params{
		"fields": "dept",
	}))
	res = run(t, NewAggregate(), groups.Data, a)
	require.Len(res.Data, 2)
	require.Equal(int64(3), res.Items()[0].(map[string]interface{})["n"])
	require.Equal(int64(2), res.Items()[1].(map[string]interface{})["n"])

	_, err := NewAggregate().Execute(newContext(employees()), sql.NewAction(sql.OpAggregate, sql.Params{
		"aggregates": []sql.Expression{id("dept")},
	}))
	require.True(sql.ErrValue.Is(err))
}
