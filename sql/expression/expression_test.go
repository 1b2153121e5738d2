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

package expression

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/exonware/go-xwquery/sql"
)

var record = map[string]interface{}{
	"name": "Alice",
	"age":  30,
	"dept": "eng",
	"tags": []interface{}{"a", "b"},
	"address": map[string]interface{}{
		"city": "Paris",
	},
	"score": 7.5,
	"none":  nil,
}

func eval(t *testing.T, e sql.Expression, rec interface{}) interface{} {
	t.Helper()
	v, err := e.Eval(sql.NewEmptyContext(), rec)
	require.NoError(t, err)
	return v
}

func TestComparisons(t *testing.T) {
	age := NewIdentifier("age")
	testCases := []struct {
		name     string
		expr     sql.Expression
		expected interface{}
	}{
		{"eq", NewEquals(age, NewLiteral(30)), true},
		{"eq float", NewEquals(age, NewLiteral(30.0)), true},
		{"eq numeric string", NewEquals(age, NewLiteral("30")), true},
		{"neq", NewNotEquals(age, NewLiteral(31)), true},
		{"lt", NewLessThan(age, NewLiteral(31)), true},
		{"lte", NewLessThanOrEqual(age, NewLiteral(30)), true},
		{"gt", NewGreaterThan(age, NewLiteral(30)), false},
		{"gte", NewGreaterThanOrEqual(age, NewLiteral(30)), true},
		{"string", NewLessThan(NewIdentifier("name"), NewLiteral("Bob")), true},
		{"missing field", NewGreaterThan(NewIdentifier("salary"), NewLiteral(0)), false},
		{"null neq", NewNotEquals(NewIdentifier("none"), NewLiteral(1)), false},
		{"null eq null", NewEquals(NewLiteral(nil), NewLiteral(nil)), false},
		{"is null", NewIsNull(NewIdentifier("none")), true},
		{"is null missing", NewIsNull(NewIdentifier("missing")), true},
		{"is not null", NewIsNotNull(NewIdentifier("name")), true},
		{"nested", NewEquals(NewIdentifier("address.city"), NewLiteral("Paris")), true},
		{"like", NewLike(NewIdentifier("name"), NewLiteral("al%")), true},
		{"like single", NewLike(NewIdentifier("name"), NewLiteral("Al_ce")), true},
		{"not like", NewLike(NewIdentifier("name"), NewLiteral("b%")), false},
		{"like null", NewLike(NewIdentifier("none"), NewLiteral("%")), false},
	}

	for _, tt := range testCases {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.expected, eval(t, tt.expr, record))
		})
	}
}

func TestLogic(t *testing.T) {
	require := require.New(t)

	tr := NewLiteral(true)
	fa := NewLiteral(false)

	require.Equal(true, eval(t, NewAnd(tr, tr), record))
	require.Equal(false, eval(t, NewAnd(tr, fa), record))
	require.Equal(true, eval(t, NewOr(fa, tr), record))
	require.Equal(false, eval(t, NewOr(fa, fa), record))
	require.Equal(false, eval(t, NewNot(tr), record))
	require.Equal(true, eval(t, NewNot(NewGreaterThan(NewIdentifier("missing"), NewLiteral(1))), record))

	// the right side is not evaluated when the left decides
	boom := NewBinary(Minus, NewLiteral("a"), NewLiteral(true))
	require.Equal(false, eval(t, NewAnd(fa, boom), record))
	require.Equal(true, eval(t, NewOr(tr, boom), record))
}

func TestArithmetic(t *testing.T) {
	testCases := []struct {
		op       string
		left     interface{}
		right    interface{}
		expected interface{}
	}{
		{Plus, 1, 2, int64(3)},
		{Plus, 1.5, 2, 3.5},
		{Minus, 10, 4, int64(6)},
		{Mult, 3, 4, int64(12)},
		{Div, 10, 4, 2.5},
		{Div, 10, 2, int64(5)},
		{Div, 1, 0, nil},
		{Mod, 10, 3, int64(1)},
		{Mod, 10, 0, nil},
		{Plus, "a", "b", "ab"},
		{Plus, "a", 1, "a1"},
		{Plus, nil, 1, nil},
	}

	for _, tt := range testCases {
		t.Run(tt.op, func(t *testing.T) {
			e := NewBinary(tt.op, NewLiteral(tt.left), NewLiteral(tt.right))
			require.Equal(t, tt.expected, eval(t, e, nil))
		})
	}

	_, err := NewBinary(Minus, NewLiteral("a"), NewLiteral(1)).Eval(sql.NewEmptyContext(), nil)
	require.True(t, sql.ErrValue.Is(err))

	require.Equal(t, int64(-30), eval(t, NewNegate(NewIdentifier("age")), record))
}

func TestIn(t *testing.T) {
	require := require.New(t)

	small := NewIn(NewIdentifier("dept"), NewLiteral("eng"), NewLiteral("ops"))
	require.Equal(true, eval(t, small, record))

	var values []sql.Expression
	for i := 0; i < 20; i++ {
		values = append(values, NewLiteral(i))
	}
	large := NewIn(NewIdentifier("age"), values...)
	require.Equal(false, eval(t, large, record))
	require.Equal(true, eval(t, large, map[string]interface{}{"age": 19}))
	require.Equal(true, eval(t, large, map[string]interface{}{"age": 19.0}))
	require.Equal(true, eval(t, large, map[string]interface{}{"age": "19"}))
	require.Equal(false, eval(t, large, map[string]interface{}{}))

	// the same answer without the set
	ctx := sql.NewContext(sql.NewEmptyContext(), sql.WithOptions(sql.Options{InSetThreshold: 100}))
	v, err := large.Eval(ctx, map[string]interface{}{"age": "19"})
	require.NoError(err)
	require.Equal(true, v)

	dynamic := NewIn(NewLiteral("b"), NewIdentifier("tags"))
	require.Equal(true, eval(t, dynamic, record))
}

func TestBetween(t *testing.T) {
	require := require.New(t)

	b := NewBetween(NewIdentifier("age"), NewLiteral(30), NewLiteral(40))
	require.Equal(true, eval(t, b, record))
	require.Equal(false, eval(t, b, map[string]interface{}{"age": 41}))
	require.Equal(false, eval(t, b, map[string]interface{}{}))
	require.Equal("age BETWEEN 30 AND 40", b.String())
}

func TestFunction(t *testing.T) {
	require := require.New(t)

	f := NewFunction("upper", NewIdentifier("name"))
	require.Equal("ALICE", eval(t, f, record))
	require.Equal("UPPER(name)", f.String())

	_, err := NewFunction("nope").Eval(sql.NewEmptyContext(), record)
	require.Error(err)
}

func TestAggregate(t *testing.T) {
	require := require.New(t)

	group := map[string]interface{}{
		sql.GroupKeyField: map[string]interface{}{"dept": "eng"},
		sql.GroupItemsField: []interface{}{
			map[string]interface{}{"dept": "eng", "salary": 10},
			map[string]interface{}{"dept": "eng", "salary": 20},
			map[string]interface{}{"dept": "eng", "salary": 20},
			map[string]interface{}{"dept": "eng"},
		},
		sql.GroupCountField: 4,
	}

	require.Equal(int64(4), eval(t, NewCountStar(), group))
	require.Equal(int64(3), eval(t, NewAggregate(Count, NewIdentifier("salary"), false), group))
	require.Equal(int64(2), eval(t, NewAggregate(Count, NewIdentifier("salary"), true), group))
	require.Equal(int64(50), eval(t, NewAggregate(Sum, NewIdentifier("salary"), false), group))
	require.Equal(int64(30), eval(t, NewAggregate(Sum, NewIdentifier("salary"), true), group))
	require.InDelta(16.666, eval(t, NewAggregate(Avg, NewIdentifier("salary"), false), group), 0.001)
	require.Equal(10, eval(t, NewAggregate(Min, NewIdentifier("salary"), false), group))
	require.Equal(20, eval(t, NewAggregate(Max, NewIdentifier("salary"), false), group))

	// group key fallback
	require.Equal("eng", eval(t, NewIdentifier("dept"), group))

	having := NewGreaterThan(NewCountStar(), NewLiteral(3))
	require.Equal(true, eval(t, having, group))

	require.Equal("COUNT(*)", NewCountStar().String())
	require.Equal("SUM(DISTINCT salary)", NewAggregate("sum", NewIdentifier("salary"), true).String())
}

func TestFromCondition(t *testing.T) {
	testCases := []struct {
		name     string
		cond     interface{}
		expected string
		match    bool
	}{
		{"equality", map[string]interface{}{"dept": "eng"}, "dept = 'eng'", true},
		{"operators", map[string]interface{}{"age": map[string]interface{}{"$gt": 18, "$lt": 65}}, "(age > 18) AND (age < 65)", true},
		{"in", map[string]interface{}{"dept": map[string]interface{}{"$in": []interface{}{"ops", "eng"}}}, "dept IN ('ops', 'eng')", true},
		{"nin", map[string]interface{}{"dept": map[string]interface{}{"$nin": []interface{}{"eng"}}}, "NOT dept IN ('eng')", false},
		{"conjunction", map[string]interface{}{"dept": "eng", "name": "Bob"}, "(dept = 'eng') AND (name = 'Bob')", false},
		{"or", map[string]interface{}{"$or": []interface{}{
			map[string]interface{}{"name": "Bob"},
			map[string]interface{}{"age": map[interface{}]interface{}{"$gte": 30}},
		}}, "(name = 'Bob') OR (age >= 30)", true},
		{"null", map[string]interface{}{"none": nil}, "none IS NULL", true},
		{"regex", map[string]interface{}{"name": map[string]interface{}{"$regex": "^a", "$options": "i"}}, "REGEXP_LIKE(name, '(?i)^a')", true},
		{"regex case sensitive", map[string]interface{}{"name": map[string]interface{}{"$regex": "^a"}}, "REGEXP_LIKE(name, '^a')", false},
		{"nested mapping value", map[string]interface{}{"address": map[string]interface{}{"city": "Paris"}}, "", true},
	}

	for _, tt := range testCases {
		t.Run(tt.name, func(t *testing.T) {
			require := require.New(t)
			e, err := FromCondition(tt.cond)
			require.NoError(err)
			if tt.expected != "" {
				require.Equal(tt.expected, e.String())
			}
			ok, err := IsTrue(sql.NewEmptyContext(), e, record)
			require.NoError(err)
			require.Equal(tt.match, ok)
		})
	}

	_, err := FromCondition(map[string]interface{}{"age": map[string]interface{}{"$where": "x"}})
	require.True(t, sql.ErrValue.Is(err))

	_, err = FromCondition(42)
	require.True(t, sql.ErrValue.Is(err))

	e, err := FromCondition(nil)
	require.NoError(t, err)
	require.Nil(t, e)
}

func TestHelpers(t *testing.T) {
	require := require.New(t)

	e := NewAnd(
		NewGreaterThan(NewIdentifier("age"), NewLiteral(18)),
		NewAnd(
			NewEquals(NewIdentifier("dept"), NewLiteral("eng")),
			NewLike(NewIdentifier("name"), NewLiteral("A%")),
		),
	)

	require.Equal([]string{"age", "dept", "name"}, Identifiers(e))
	require.Len(SplitConjunction(e), 3)
	require.False(sql.ExpressionsEqual(e, JoinAnd(SplitConjunction(e)...)))
	require.False(HasAggregate(e))
	require.True(HasAggregate(NewGreaterThan(NewCountStar(), NewLiteral(1))))

	require.Equal("x", ColumnName(NewAlias(NewIdentifier("a.b"), "x")))
	require.Equal("b", ColumnName(NewIdentifier("a.b")))
	require.Equal("COUNT(*)", ColumnName(NewCountStar()))

	require.True(sql.ExpressionsEqual(
		NewEquals(NewIdentifier("a"), NewLiteral(1)),
		NewEquals(NewIdentifier("a"), NewLiteral(int64(1))),
	))
	require.False(sql.ExpressionsEqual(
		NewEquals(NewIdentifier("a"), NewLiteral(1)),
		NewEquals(NewIdentifier("a"), NewLiteral("1")),
	))
}
