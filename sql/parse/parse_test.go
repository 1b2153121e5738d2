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

package parse

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/exonware/go-xwquery/sql"
	"github.com/exonware/go-xwquery/sql/expression"
)

var (
	id  = func(name string) sql.Expression { return expression.NewIdentifier(name) }
	lit = func(v interface{}) sql.Expression { return expression.NewLiteral(v) }
	col = func(names ...string) []sql.Expression {
		var cols []sql.Expression
		for _, n := range names {
			cols = append(cols, expression.NewIdentifier(n))
		}
		return cols
	}
	star = []sql.Expression{expression.NewStar()}
)

func requireActions(t *testing.T, expected, actual []*sql.Action) {
	t.Helper()
	require.Len(t, actual, len(expected), "actions: %v", actual)
	for i := range expected {
		require.Truef(t, expected[i].Equal(actual[i]),
			"action %d:\nexpected %s\nactual   %s", i, expected[i], actual[i])
	}
}

var fixtures = map[string][]*sql.Action{
	`SELECT name, age FROM users WHERE age > 30`: {
		sql.NewAction(sql.OpSelect, sql.Params{"columns": col("name", "age"), "distinct": false, "from": "users"}),
		sql.NewAction(sql.OpWhere, sql.Params{"condition": expression.NewGreaterThan(id("age"), lit(30))}),
	},
	`select distinct city from users;`: {
		sql.NewAction(sql.OpSelect, sql.Params{"columns": col("city"), "distinct": true, "from": "users"}),
	},
	`SELECT * FROM users ORDER BY name DESC, age LIMIT 10 OFFSET 5`: {
		sql.NewAction(sql.OpSelect, sql.Params{"columns": star, "distinct": false, "from": "users"}),
		sql.NewAction(sql.OpOrderBy, sql.Params{"column": "name", "direction": Descending}),
		sql.NewAction(sql.OpOrderBy, sql.Params{"column": "age", "direction": Ascending}),
		sql.NewAction(sql.OpLimit, sql.Params{"count": int64(10)}),
		sql.NewAction(sql.OpOffset, sql.Params{"count": int64(5)}),
	},
	`SELECT a FROM t LIMIT 5, 10`: {
		sql.NewAction(sql.OpSelect, sql.Params{"columns": col("a"), "distinct": false, "from": "t"}),
		sql.NewAction(sql.OpLimit, sql.Params{"count": int64(10)}),
		sql.NewAction(sql.OpOffset, sql.Params{"count": int64(5)}),
	},
	`SELECT a FROM t OFFSET 2 ROWS FETCH FIRST 3 ROWS ONLY`: {
		sql.NewAction(sql.OpSelect, sql.Params{"columns": col("a"), "distinct": false, "from": "t"}),
		sql.NewAction(sql.OpLimit, sql.Params{"count": int64(3)}),
		sql.NewAction(sql.OpOffset, sql.Params{"count": int64(2)}),
	},
	`SELECT TOP 5 name FROM users`: {
		sql.NewAction(sql.OpSelect, sql.Params{"columns": col("name"), "distinct": false, "from": "users"}),
		sql.NewAction(sql.OpLimit, sql.Params{"count": int64(5)}),
	},
	`SELECT u.name, o.total AS amount FROM users u JOIN orders AS o ON u.id = o.user_id`: {
		sql.NewAction(sql.OpSelect, sql.Params{
			"columns":  []sql.Expression{id("u.name"), expression.NewAlias(id("o.total"), "amount")},
			"distinct": false,
			"from":     "users",
			"alias":    "u",
		}),
		sql.NewAction(sql.OpJoin, sql.Params{
			"right": "orders",
			"type":  InnerJoin,
			"alias": "o",
			"on":    expression.NewEquals(id("u.id"), id("o.user_id")),
		}),
	},
	`SELECT * FROM a LEFT OUTER JOIN b USING (k), c`: {
		sql.NewAction(sql.OpSelect, sql.Params{"columns": star, "distinct": false, "from": "a"}),
		sql.NewAction(sql.OpJoin, sql.Params{"right": "b", "type": LeftJoin, "using": []interface{}{"k"}}),
		sql.NewAction(sql.OpJoin, sql.Params{"right": "c", "type": CrossJoin}),
	},
	`SELECT dept, COUNT(*) AS n FROM emp GROUP BY dept HAVING COUNT(*) > 1`: {
		sql.NewAction(sql.OpSelect, sql.Params{
			"columns":  []sql.Expression{id("dept"), expression.NewAlias(expression.NewCountStar(), "n")},
			"distinct": false,
			"from":     "emp",
		}),
		sql.NewAction(sql.OpGroupBy, sql.Params{"fields": []interface{}{"dept"}}),
		sql.NewAction(sql.OpHaving, sql.Params{
			"condition": expression.NewGreaterThan(expression.NewCountStar(), lit(1)),
		}),
	},
	`SELECT AVG(DISTINCT price) FROM items`: {
		sql.NewAction(sql.OpSelect, sql.Params{
			"columns":  []sql.Expression{expression.NewAggregate("AVG", id("price"), true)},
			"distinct": false,
			"from":     "items",
		}),
	},
	`SELECT * FROM t WHERE a IN (1, 2) AND b BETWEEN 1 AND 5 OR c NOT LIKE 'x%' AND d IS NOT NULL`: {
		sql.NewAction(sql.OpSelect, sql.Params{"columns": star, "distinct": false, "from": "t"}),
		sql.NewAction(sql.OpWhere, sql.Params{"condition": expression.NewOr(
			expression.NewAnd(
				expression.NewIn(id("a"), lit(1), lit(2)),
				expression.NewBetween(id("b"), lit(1), lit(5)),
			),
			expression.NewAnd(
				expression.NewNot(expression.NewLike(id("c"), lit("x%"))),
				expression.NewIsNotNull(id("d")),
			),
		)}),
	},
	`SELECT price * -2 + 1, UPPER(name) FROM t WHERE NOT (a = 1)`: {
		sql.NewAction(sql.OpSelect, sql.Params{
			"columns": []sql.Expression{
				expression.NewBinary("+", expression.NewBinary("*", id("price"), lit(-2)), lit(1)),
				expression.NewFunction("UPPER", id("name")),
			},
			"distinct": false,
			"from":     "t",
		}),
		sql.NewAction(sql.OpWhere, sql.Params{"condition": expression.NewNot(expression.NewEquals(id("a"), lit(1)))}),
	},
	`WITH adults AS (SELECT * FROM users WHERE age >= 18) SELECT name FROM adults`: {
		sql.NewAction(sql.OpSelect, sql.Params{
			"columns":  col("name"),
			"distinct": false,
			"ctes": []interface{}{
				map[string]interface{}{"name": "adults", "query": "SELECT * FROM users WHERE age >= 18"},
			},
			"recursive": false,
			"from":      "adults",
		}),
	},
	`SELECT x FROM (SELECT a AS x FROM t) sub`: {
		sql.NewAction(sql.OpSelect, sql.Params{
			"columns":  col("x"),
			"distinct": false,
			"ctes": []interface{}{
				map[string]interface{}{"name": "sub", "query": "SELECT a AS x FROM t"},
			},
			"recursive": false,
			"from":      "sub",
		}),
	},
	`INSERT INTO users (name, age) VALUES ('bob', 30), ('ann', -1)`: {
		sql.NewAction(sql.OpInsert, sql.Params{
			"target":  "users",
			"columns": []interface{}{"name", "age"},
			"values": []interface{}{
				map[string]interface{}{"name": "bob", "age": int64(30)},
				map[string]interface{}{"name": "ann", "age": int64(-1)},
			},
		}),
	},
	`INSERT INTO t VALUES (1, 'a')`: {
		sql.NewAction(sql.OpInsert, sql.Params{
			"target": "t",
			"values": []interface{}{[]interface{}{int64(1), "a"}},
		}),
	},
	`UPDATE users SET age = age + 1, name = 'x' WHERE name = 'bob'`: {
		sql.NewAction(sql.OpUpdate, sql.Params{
			"target": "users",
			"set": map[string]interface{}{
				"age":  expression.NewBinary("+", id("age"), lit(1)),
				"name": lit("x"),
			},
			"where": expression.NewEquals(id("name"), lit("bob")),
		}),
	},
	`DELETE FROM users WHERE age < 18`: {
		sql.NewAction(sql.OpDelete, sql.Params{
			"target": "users",
			"where":  expression.NewLessThan(id("age"), lit(18)),
		}),
	},
	`SELECT 1; SELECT 'a'`: {
		sql.NewAction(sql.OpSelect, sql.Params{"columns": []sql.Expression{lit(1)}, "distinct": false}),
		sql.NewAction(sql.OpSelect, sql.Params{"columns": []sql.Expression{lit("a")}, "distinct": false}),
	},
}

func TestParse(t *testing.T) {
	for query, expected := range fixtures {
		t.Run(query, func(t *testing.T) {
			require := require.New(t)

			actions, err := Parse(sql.NewEmptyContext(), "SQL", query, DefaultOptions())
			require.NoError(err)
			requireActions(t, expected, actions)
		})
	}
}

func TestParseSourcePositions(t *testing.T) {
	require := require.New(t)

	actions, err := Parse(sql.NewEmptyContext(), "SQL", "SELECT a\nFROM t\n  WHERE a = 1", DefaultOptions())
	require.NoError(err)
	require.Len(actions, 2)
	require.Equal(1, actions[0].Line)
	require.Equal(3, actions[1].Line)
	require.Equal(3, actions[1].Column)
}

func TestParseErrors(t *testing.T) {
	testCases := []struct {
		query    string
		expected string
		actual   string
		line     int
	}{
		{"SELECT name FROM users WHERE", "expression", "end of input", 1},
		{"SELECT a\nFROM t\nWHERE a >", "expression", "end of input", 3},
		{"SELECT a FROM", "table name", "end of input", 1},
		{"SELECT a FROM t LIMIT x", "non-negative integer", "x", 1},
		{"SELECT a FROM t JOIN u", "ON or USING", "end of input", 1},
		{"FOO bar", "SELECT, INSERT, UPDATE, DELETE or WITH", "FOO", 1},
		{"SELECT a b c FROM t", "end of statement", "c", 1},
		{"SELECT * FROM t WHERE a = 1 AND (b = 2 OR c = 3", "')'", "end of input", 1},
	}

	for _, tt := range testCases {
		t.Run(tt.query, func(t *testing.T) {
			require := require.New(t)

			_, err := Parse(sql.NewEmptyContext(), "SQL", tt.query, DefaultOptions())
			require.Error(err)
			require.True(sql.ErrParse.Is(err), "unexpected error %v", err)

			pe, ok := sql.AsParseError(err)
			require.True(ok)
			require.Equal("SQL", pe.Dialect)
			require.Equal(tt.expected, pe.Expected)
			require.Equal(tt.actual, pe.Actual)
			require.Equal(tt.line, pe.Line)
			require.Equal(pe.Error(), err.Error())
			require.Equal(1, strings.Count(err.Error(), "parse error"))
		})
	}
}

func TestUnsupportedFeatures(t *testing.T) {
	testCases := []struct {
		query   string
		lenient int
	}{
		{"SELECT a FROM t UNION SELECT b FROM u", 1},
		{"CREATE TABLE t (a INT)", 0},
		{"INSERT INTO t SELECT * FROM u", 0},
		{"SELECT a FROM t WHERE a IN (SELECT b FROM u)", 2},
		{"SELECT a FROM t GROUP BY a + 1", 2},
	}

	for _, tt := range testCases {
		t.Run(tt.query, func(t *testing.T) {
			require := require.New(t)
			ctx := sql.NewEmptyContext()

			for _, mode := range []sql.ConversionMode{sql.Strict, sql.Flexible} {
				_, err := Parse(ctx, "SQL", tt.query, Options{Mode: mode})
				require.Error(err)
				require.True(sql.ErrParse.Is(err))
				require.Contains(err.Error(), "feature not supported")
			}

			actions, err := Parse(ctx, "SQL", tt.query, Options{Mode: sql.Lenient})
			require.NoError(err)
			require.Len(actions, tt.lenient)
		})
	}
}

func TestAlwaysUnsupported(t *testing.T) {
	for _, query := range []string{
		"SELECT CASE WHEN a THEN 1 END FROM t",
		"SELECT a FROM t WHERE EXISTS (SELECT 1)",
		"SELECT a FROM t NATURAL JOIN u",
	} {
		t.Run(query, func(t *testing.T) {
			require := require.New(t)
			_, err := Parse(sql.NewEmptyContext(), "SQL", query, Options{Mode: sql.Lenient})
			require.Error(err)
			require.Contains(err.Error(), "feature not supported")
		})
	}
}

func TestTopIsStrict(t *testing.T) {
	require := require.New(t)

	_, err := Parse(sql.NewEmptyContext(), "SQL", "SELECT TOP 1 a FROM t", Options{Mode: sql.Strict})
	require.Error(err)
	require.Contains(err.Error(), "TOP")
}

func TestNesting(t *testing.T) {
	require := require.New(t)
	ctx := sql.NewEmptyContext()

	deep := "SELECT " + strings.Repeat("(", 150) + "1" + strings.Repeat(")", 150)
	_, err := Parse(ctx, "SQL", deep, DefaultOptions())
	require.Error(err)
	require.True(sql.ErrSecurity.Is(err))

	shallow := "SELECT " + strings.Repeat("(", 3) + "1" + strings.Repeat(")", 3)
	_, err = Parse(ctx, "SQL", shallow, Options{MaxNesting: 5})
	require.NoError(err)

	_, err = Parse(ctx, "SQL", shallow, Options{MaxNesting: 2})
	require.Error(err)
	require.True(sql.ErrSecurity.Is(err))
}

func TestAssignIDs(t *testing.T) {
	require := require.New(t)

	actions, err := Parse(sql.NewEmptyContext(), "SQL", "SELECT a FROM t WHERE a = 1", Options{AssignIDs: true})
	require.NoError(err)
	require.NotEmpty(actions[0].ID)
	require.NotEqual(actions[0].ID, actions[1].ID)
}

func TestParseExpression(t *testing.T) {
	require := require.New(t)

	e, err := ParseExpression("age >= 18 AND name LIKE 'a%'")
	require.NoError(err)
	require.True(sql.ExpressionsEqual(
		expression.NewAnd(
			expression.NewGreaterThanOrEqual(id("age"), lit(18)),
			expression.NewLike(id("name"), lit("a%")),
		),
		e,
	))

	_, err = ParseExpression("age >= 18 )")
	require.Error(err)

	e, err = ParseCondition(map[string]interface{}{"age": map[string]interface{}{"$gt": 30}})
	require.NoError(err)
	require.Equal("age > 30", e.String())

	e, err = ParseCondition(nil)
	require.NoError(err)
	require.Nil(e)
}

func TestRegistry(t *testing.T) {
	require := require.New(t)
	ctx := sql.NewEmptyContext()

	require.Contains(Dialects(), "SQL")
	require.Contains(Dialects(), "XPath")
	require.Contains(DefaultRegistry.Known(), "Cypher")

	name, err := DefaultRegistry.Canonical("kusto")
	require.NoError(err)
	require.Equal("KQL", name)

	_, err = Parse(ctx, "Cypher", "MATCH (n) RETURN n", DefaultOptions())
	require.Error(err)
	require.True(sql.ErrUnsupportedOperation.Is(err))

	_, err = Parse(ctx, "SQLL", "SELECT 1", DefaultOptions())
	require.Error(err)
	require.True(sql.ErrValue.Is(err))
	require.Contains(err.Error(), "maybe you mean SQL?")

	actions, err := Parse(ctx, "sql", "   ", DefaultOptions())
	require.NoError(err)
	require.Empty(actions)

	r := NewRegistry()
	require.NoError(r.Register(NewSQLParser()))
	require.True(ErrDialectAlreadyRegistered.Is(r.Register(NewSQLParser())))
}

func TestValidatedStats(t *testing.T) {
	require := require.New(t)
	ctx := sql.NewEmptyContext()

	p := NewValidated(NewSQLParser(), nil)
	_, err := p.Parse(ctx, "SELECT 1", DefaultOptions())
	require.NoError(err)
	_, err = p.Parse(ctx, "SELECT", DefaultOptions())
	require.Error(err)

	stats := p.Stats()
	require.Equal(uint64(2), stats.Count)
	require.Equal(uint64(1), stats.Errors)
}

type panicParser struct{}

func (panicParser) Dialect() string { return "Panic" }

func (panicParser) Parse(*sql.Context, string, Options) ([]*sql.Action, error) {
	panic("boom")
}

func TestValidatedRecoversPanics(t *testing.T) {
	require := require.New(t)

	_, err := NewValidated(panicParser{}, nil).Parse(sql.NewEmptyContext(), "x", DefaultOptions())
	require.Error(err)
	require.True(sql.ErrParse.Is(err))
	require.Contains(err.Error(), "boom")
}
