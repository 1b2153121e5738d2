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

package codec

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/exonware/go-xwquery/sql"
	"github.com/exonware/go-xwquery/sql/expression"
	"github.com/exonware/go-xwquery/sql/parse"
)

func parseSQL(t *testing.T, query string) *sql.Action {
	t.Helper()
	actions, err := parse.Parse(sql.NewEmptyContext(), "SQL", query, parse.DefaultOptions())
	require.NoError(t, err)
	return sql.NewRoot(actions...)
}

func TestRoundTrip(t *testing.T) {
	queries := []string{
		"SELECT name, age FROM users WHERE age > 30 AND city = 'NYC'",
		"SELECT DISTINCT city FROM users ORDER BY city DESC LIMIT 10 OFFSET 5",
		"SELECT city, COUNT(*) AS n FROM users GROUP BY city HAVING COUNT(*) > 1",
		"SELECT u.name, o.total FROM users u JOIN orders o ON u.id = o.user_id",
		"SELECT * FROM users WHERE id IN (1, 2, 3) OR age BETWEEN 18 AND 21",
		"SELECT UPPER(name) FROM users WHERE NOT active",
		"INSERT INTO users (name, age) VALUES ('Ann', 31), ('Bob', 2.5)",
		"UPDATE users SET age = age + 1 WHERE name = 'Ann'",
		"DELETE FROM users WHERE age < 18",
	}

	for _, format := range []Format{JSON, Msgpack} {
		for _, q := range queries {
			t.Run(string(format)+"/"+q, func(t *testing.T) {
				require := require.New(t)
				tree := parseSQL(t, q)

				data, err := Marshal(tree, format)
				require.NoError(err)

				decoded, err := Unmarshal(data, format)
				require.NoError(err)
				require.True(tree.Equal(decoded), "%s\n!=\n%s", tree, decoded)
				require.Equal(tree.ID, decoded.ID)
			})
		}
	}
}

func TestRoundTripPosition(t *testing.T) {
	require := require.New(t)

	a := sql.NewAction(sql.OpLimit, sql.Params{"count": 10}).At(3, 7)
	a.Metadata = map[string]interface{}{"dialect": "SQL"}

	data, err := Marshal(a, Msgpack)
	require.NoError(err)

	decoded, err := Unmarshal(data, Msgpack)
	require.NoError(err)
	require.Equal(3, decoded.Line)
	require.Equal(7, decoded.Column)
	require.Equal("SQL", decoded.Metadata["dialect"])
	require.Equal(int64(10), decoded.Params["count"])
}

func TestValues(t *testing.T) {
	testCases := []struct {
		name  string
		value interface{}
	}{
		{"int", int64(42)},
		{"integral float", float64(2)},
		{"float", 2.5},
		{"string list", []string{"a", "b"}},
		{"nested", map[string]interface{}{"a": []interface{}{int64(1), "x", nil}}},
		{"expression", expression.NewEquals(expression.NewIdentifier("a"), expression.NewLiteral(int64(1)))},
		{"expressions", []sql.Expression{expression.NewIdentifier("a"), expression.NewStar()}},
		{"action", sql.NewAction(sql.OpWhere, sql.Params{"condition": "a > 1"})},
		{"actions", []*sql.Action{sql.NewAction(sql.OpLimit, sql.Params{"count": int64(1)})}},
	}

	for _, tt := range testCases {
		for _, format := range []Format{JSON, Msgpack} {
			t.Run(tt.name+"/"+string(format), func(t *testing.T) {
				require := require.New(t)
				a := sql.NewAction(sql.OpSelect, sql.Params{"v": tt.value})

				data, err := Marshal(a, format)
				require.NoError(err)

				decoded, err := Unmarshal(data, format)
				require.NoError(err)
				require.True(a.Equal(decoded), "%s != %s", a, decoded)
				require.IsType(tt.value, decoded.Params["v"])
			})
		}
	}
}

func TestExpressions(t *testing.T) {
	exprs := []sql.Expression{
		expression.NewIdentifier("users.name"),
		expression.NewStar(),
		expression.NewAlias(expression.NewIdentifier("a"), "b"),
		expression.NewLiteral("x"),
		expression.NewLiteral(nil),
		expression.NewIsNull(expression.NewIdentifier("a")),
		expression.NewNot(expression.NewIdentifier("active")),
		expression.NewIn(expression.NewIdentifier("id"), expression.NewLiteral(int64(1)), expression.NewLiteral(int64(2))),
		expression.NewBetween(expression.NewIdentifier("age"), expression.NewLiteral(int64(1)), expression.NewLiteral(int64(9))),
		expression.NewAggregate("sum", expression.NewIdentifier("total"), true),
		expression.NewCountStar(),
		expression.NewFunction("COALESCE", expression.NewIdentifier("a"), expression.NewLiteral(int64(0))),
	}

	for _, e := range exprs {
		t.Run(e.String(), func(t *testing.T) {
			require := require.New(t)
			m, err := EncodeExpression(e)
			require.NoError(err)

			decoded, err := DecodeExpression(m)
			require.NoError(err)
			require.True(sql.ExpressionsEqual(e, decoded), "%s != %s", e, decoded)
		})
	}
}

func TestErrors(t *testing.T) {
	require := require.New(t)

	_, err := Marshal(sql.NewAction(sql.OpSelect, sql.Params{"ch": make(chan int)}), JSON)
	require.True(ErrUnsupportedValue.Is(err))

	_, err = Marshal(sql.NewAction(sql.OpSelect, nil), Format("xml"))
	require.True(ErrUnsupportedFormat.Is(err))

	_, err = Unmarshal([]byte("{"), JSON)
	require.True(ErrInvalidEncoding.Is(err))

	_, err = Unmarshal([]byte(`{"params":{}}`), JSON)
	require.True(ErrInvalidEncoding.Is(err))

	_, err = Unmarshal([]byte(`{"type":"WHERE","params":{"condition":{"@expr":{"kind":"nope"}}}}`), JSON)
	require.True(ErrInvalidEncoding.Is(err))
}
