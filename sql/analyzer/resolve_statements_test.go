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
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/exonware/go-xwquery/sql"
	"github.com/exonware/go-xwquery/sql/expression"
)

func TestResolveStatements(t *testing.T) {
	testCases := []struct {
		query    string
		expected []string
	}{
		{
			`SELECT name, age FROM users WHERE age > 30`,
			[]string{sql.OpSequentialScan, sql.OpProject},
		},
		{
			`SELECT * FROM users`,
			[]string{sql.OpSequentialScan},
		},
		{
			`SELECT dept, COUNT(*) FROM emp GROUP BY dept`,
			[]string{sql.OpSequentialScan, sql.OpGroupBy},
		},
		{
			`SELECT COUNT(*) AS total FROM users WHERE age > 1`,
			[]string{sql.OpSequentialScan, sql.OpAggregate},
		},
		{
			`SELECT DISTINCT city FROM users ORDER BY city LIMIT 2 OFFSET 1`,
			[]string{sql.OpSequentialScan, sql.OpProject, sql.OpDistinct, sql.OpOrderBy, sql.OpOffset, sql.OpLimit},
		},
		{
			`SELECT DISTINCT * FROM users ORDER BY city`,
			[]string{sql.OpSequentialScan, sql.OpDistinct, sql.OpOrderBy},
		},
		{
			`SELECT name FROM users ORDER BY name DESC, age LIMIT 10 OFFSET 5`,
			[]string{sql.OpSequentialScan, sql.OpOrderBy, sql.OpOffset, sql.OpLimit, sql.OpProject},
		},
		{
			`SELECT u.name, o.total FROM users u JOIN orders o ON u.id = o.uid WHERE o.total > 10`,
			[]string{sql.OpSequentialScan, sql.OpJoin, sql.OpWhere, sql.OpProject},
		},
	}

	for _, tt := range testCases {
		t.Run(tt.query, func(t *testing.T) {
			require := require.New(t)
			n := analyze(t, NewDefault(nil), tt.query)
			require.Equal(sql.Root, n.Type)
			require.Equal(tt.expected, types(n.Children))
		})
	}
}

func TestResolveScanParams(t *testing.T) {
	require := require.New(t)

	n := analyze(t, NewDefault(nil), `SELECT name, age FROM users WHERE age > 30`)
	scan := n.Children[0]
	require.Equal("users", scan.Params.GetString("from"))
	require.Equal("age > 30", exprString(scan.Params["filter"]))
	require.Equal([]string{"age", "name"}, scan.Params.GetStrings("required"))

	project := n.Children[1]
	fields, ok := project.Params["fields"].([]sql.Expression)
	require.True(ok)
	require.Len(fields, 2)
	require.Equal("name", fields[0].String())
	require.Equal("age", fields[1].String())
}

func TestResolveGroupByAggregates(t *testing.T) {
	require := require.New(t)

	n := analyze(t, NewDefault(nil), `SELECT dept, COUNT(*) FROM emp GROUP BY dept`)
	group := n.Children[1]
	require.Equal([]string{"dept"}, group.Params.GetStrings("fields"))

	aggs, ok := group.Params["aggregates"].([]sql.Expression)
	require.True(ok)
	require.Len(aggs, 2)
	require.Equal("COUNT(*)", aggs[1].String())
}

func TestResolveJoinPrefixes(t *testing.T) {
	require := require.New(t)

	n := analyze(t, NewDefault(nil),
		`SELECT u.name, o.total, p.sku FROM users u JOIN orders o ON u.id = o.uid JOIN products p ON o.pid = p.id`)
	require.Equal([]string{sql.OpSequentialScan, sql.OpJoin, sql.OpJoin, sql.OpProject}, types(n.Children))

	first, second := n.Children[1], n.Children[2]
	require.Equal("u.", first.Params.GetString("left_prefix"))
	require.Equal("o.", first.Params.GetString("right_prefix"))
	require.True(second.Params.Has("left_prefix"))
	require.Equal("", second.Params.GetString("left_prefix"))
	require.Equal("p.", second.Params.GetString("right_prefix"))
}

func TestResolveOrderByAlias(t *testing.T) {
	require := require.New(t)

	n := analyze(t, NewDefault(nil), `SELECT name, age * 2 AS twice FROM users ORDER BY twice DESC`)
	order := n.Children[1]
	require.Equal(sql.OpOrderBy, order.Type)

	keys := sql.ExtractItems(order.Params["keys"])
	require.Len(keys, 1)
	key := sql.Params(keys[0].(map[string]interface{}))
	require.Equal("twice", key.GetString("column"))
	require.Equal("DESC", key.GetString("direction"))
	require.Equal("age * 2", exprString(key["expression"]))
}

func TestResolveLimitOffset(t *testing.T) {
	require := require.New(t)

	root := sql.NewRoot(
		sql.NewAction(sql.OpSelect, sql.Params{"columns": []sql.Expression{expression.NewStar()}, "from": "t"}),
		sql.NewAction(sql.OpLimit, sql.Params{"count": int64(1)}),
		sql.NewAction(sql.OpOffset, sql.Params{"count": int64(2)}),
	)

	n, err := NewDefault(nil).Analyze(sql.NewEmptyContext(), root)
	require.NoError(err)
	require.Equal([]string{sql.OpSequentialScan, sql.OpOffset, sql.OpLimit}, types(n.Children))

	// the tree given is not modified
	require.Equal([]string{sql.OpSelect, sql.OpLimit, sql.OpOffset}, types(root.Children))
}

func TestResolveCTE(t *testing.T) {
	require := require.New(t)

	n := analyze(t, NewDefault(nil),
		`WITH adults AS (SELECT name FROM users WHERE age >= 18) SELECT * FROM adults`)
	require.Equal([]string{sql.OpLet, sql.OpSequentialScan}, types(n.Children))

	let := n.Children[0]
	require.Equal("adults", let.Params.GetString("name"))
	require.Len(let.Children, 1)

	body := let.Children[0]
	require.Equal(sql.Program, body.Type)
	require.Equal([]string{sql.OpSequentialScan, sql.OpProject}, types(body.Children))
	require.Equal("age >= 18", exprString(body.Children[0].Params["filter"]))

	require.Equal("adults", n.Children[1].Params.GetString("from"))
}

func TestResolveCTEColumns(t *testing.T) {
	require := require.New(t)

	n := analyze(t, NewDefault(nil),
		`WITH people (who) AS (SELECT name FROM users) SELECT who FROM people`)
	body := n.Children[0].Children[0]
	require.Equal([]string{sql.OpSequentialScan, sql.OpProject, sql.OpProject}, types(body.Children))

	rename := body.Children[2].Params["fields"].([]sql.Expression)
	require.Len(rename, 1)
	require.Equal("who", expression.ColumnName(rename[0]))
}

func TestResolveCTEErrors(t *testing.T) {
	require := require.New(t)
	ctx := sql.NewEmptyContext()

	recursive := sql.NewRoot(sql.NewAction(sql.OpSelect, sql.Params{
		"columns":   []sql.Expression{expression.NewStar()},
		"from":      "r",
		"ctes":      []interface{}{map[string]interface{}{"name": "r", "query": "SELECT 1"}},
		"recursive": true,
	}))
	_, err := NewDefault(nil).Analyze(ctx, recursive)
	require.Error(err)
	require.True(sql.ErrUnsupportedOperation.Is(err))

	mismatch := sql.NewRoot(sql.NewAction(sql.OpSelect, sql.Params{
		"columns": []sql.Expression{expression.NewStar()},
		"from":    "c",
		"ctes": []interface{}{map[string]interface{}{
			"name":    "c",
			"query":   "SELECT a, b FROM t",
			"columns": []interface{}{"x"},
		}},
	}))
	_, err = NewDefault(nil).Analyze(ctx, mismatch)
	require.Error(err)
	require.True(ErrInvalidCTE.Is(err))
}

func TestResolveMultipleStatements(t *testing.T) {
	require := require.New(t)

	root := sql.NewRoot(
		sql.NewAction(sql.OpSelect, sql.Params{"columns": []sql.Expression{expression.NewStar()}, "from": "a"}),
		sql.NewAction(sql.OpWhere, sql.Params{"condition": expression.NewEquals(expression.NewIdentifier("x"), expression.NewLiteral(int64(1)))}),
		sql.NewAction(sql.OpInsert, sql.Params{"target": "b", "values": map[string]interface{}{"x": int64(1)}}),
	)

	n, err := NewDefault(nil).Analyze(sql.NewEmptyContext(), root)
	require.NoError(err)
	require.Equal([]string{sql.Program, sql.Program}, types(n.Children))
	require.Equal([]string{sql.OpSequentialScan}, types(n.Children[0].Children))
	require.Equal([]string{sql.OpInsert}, types(n.Children[1].Children))
}

func TestSplitStatements(t *testing.T) {
	require := require.New(t)

	let := sql.NewAction(sql.OpLet, sql.Params{"name": "x", "value": int64(1)})
	sel := sql.NewAction(sql.OpSelect, nil)
	where := sql.NewAction(sql.OpWhere, nil)
	prog := sql.NewAction(sql.Program, nil, sql.NewAction(sql.OpLimit, nil))
	del := sql.NewAction(sql.OpDelete, nil)

	statements := splitStatements([]*sql.Action{let, sel, where, prog, del})
	require.Len(statements, 3)
	require.Equal([]string{sql.OpLet, sql.OpSelect, sql.OpWhere}, types(statements[0]))
	require.Equal([]string{sql.Program}, types(statements[1]))
	require.Equal([]string{sql.OpDelete}, types(statements[2]))
}
