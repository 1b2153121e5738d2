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

var (
	joinLeft = []interface{}{
		map[string]interface{}{"id": 1, "n": "A"},
		map[string]interface{}{"id": 2, "n": "B"},
	}
	joinRight = []interface{}{
		map[string]interface{}{"uid": 1, "c": 10},
		map[string]interface{}{"uid": 2, "c": 20},
		map[string]interface{}{"uid": 3, "c": 30},
	}
)

func TestInnerJoin(t *testing.T) {
	require := require.New(t)

	res := run(t, NewJoin(), joinLeft, sql.NewAction(sql.OpJoin, sql.Params{
		"right": joinRight,
		"on":    map[string]interface{}{"id": "uid"},
	}))

	require.Equal([]interface{}{
		map[string]interface{}{"left_id": 1, "left_n": "A", "right_uid": 1, "right_c": 10},
		map[string]interface{}{"left_id": 2, "left_n": "B", "right_uid": 2, "right_c": 20},
	}, res.Data)
	require.Equal("hash", res.Metadata["strategy"])
	require.Equal(InnerJoin, res.Metadata["join_type"])
}

func TestLeftJoinUnmatched(t *testing.T) {
	require := require.New(t)

	right := []interface{}{joinRight[0], joinRight[2]}
	res := run(t, NewJoin(), joinLeft, sql.NewAction(sql.OpJoin, sql.Params{
		"right": right,
		"type":  "left",
		"on":    map[string]interface{}{"id": "uid"},
	}))

	require.Equal([]interface{}{
		map[string]interface{}{"left_id": 1, "left_n": "A", "right_uid": 1, "right_c": 10},
		map[string]interface{}{"left_id": 2, "left_n": "B", MatchedField: false},
	}, res.Data)
}

func TestRightAndFullJoin(t *testing.T) {
	require := require.New(t)

	right := []interface{}{joinRight[0], joinRight[2]}
	res := run(t, NewJoin(), joinLeft, sql.NewAction(sql.OpJoin, sql.Params{
		"right": right,
		"type":  RightJoin,
		"on":    map[string]interface{}{"id": "uid"},
	}))
	require.Equal([]interface{}{
		map[string]interface{}{"left_id": 1, "left_n": "A", "right_uid": 1, "right_c": 10},
		map[string]interface{}{"right_uid": 3, "right_c": 30, MatchedField: false},
	}, res.Data)

	res = run(t, NewJoin(), joinLeft, sql.NewAction(sql.OpJoin, sql.Params{
		"right": right,
		"type":  FullJoin,
		"on":    map[string]interface{}{"id": "uid"},
	}))
	require.Len(res.Data, 3)
}

func TestJoinConditions(t *testing.T) {
	testCases := []struct {
		name     string
		params   sql.Params
		strategy string
		count    int
	}{
		{
			"expression equi join",
			sql.Params{
				"on":           expression.NewEquals(id("u.id"), id("o.uid")),
				"left_prefix":  "u.",
				"right_prefix": "o.",
			},
			"hash",
			2,
		},
		{
			"pair",
			sql.Params{"on": []interface{}{"id", "uid"}},
			"hash",
			2,
		},
		{
			"theta join",
			sql.Params{"on": expression.NewLessThan(id("left_id"), id("right_uid"))},
			"nested_loop",
			3,
		},
		{
			"cross join",
			sql.Params{"type": CrossJoin},
			"cross",
			6,
		},
	}

	for _, tt := range testCases {
		t.Run(tt.name, func(t *testing.T) {
			require := require.New(t)
			params := tt.params.Clone()
			params["right"] = joinRight

			res := run(t, NewJoin(), joinLeft, sql.NewAction(sql.OpJoin, params))
			require.Equal(tt.strategy, res.Metadata["strategy"])
			require.Len(res.Data, tt.count)
		})
	}
}

func TestJoinQualifiedPrefixes(t *testing.T) {
	require := require.New(t)

	res := run(t, NewJoin(), joinLeft, sql.NewAction(sql.OpJoin, sql.Params{
		"right":        joinRight,
		"on":           expression.NewEquals(id("o.uid"), id("u.id")),
		"left_prefix":  "u.",
		"right_prefix": "o.",
	}))

	require.Equal(map[string]interface{}{
		"u.id": 1, "u.n": "A", "o.uid": 1, "o.c": 10,
	}, res.Items()[0])
}

func TestJoinNullAndUnhashableKeys(t *testing.T) {
	require := require.New(t)

	left := []interface{}{
		map[string]interface{}{"k": nil},
		map[string]interface{}{"k": []interface{}{1, 2}},
	}
	right := []interface{}{
		map[string]interface{}{"k": nil},
		map[string]interface{}{"k": []interface{}{1, 2}},
	}

	res := run(t, NewJoin(), left, sql.NewAction(sql.OpJoin, sql.Params{
		"right": right,
		"using": []interface{}{"k"},
	}))
	require.Len(res.Data, 1)
}

func TestJoinRightFromChild(t *testing.T) {
	require := require.New(t)

	ctx := newContext(joinLeft)
	ctx.SetChildResults([]*sql.ExecutionResult{sql.NewResult(sql.OpSelect, joinRight[:1], nil)})

	res, err := NewJoin().Execute(ctx, sql.NewAction(sql.OpJoin, sql.Params{"on": []interface{}{"id", "uid"}}))
	require.NoError(err)
	require.Len(res.Data, 1)
}

func TestJoinErrors(t *testing.T) {
	require := require.New(t)
	ctx := newContext(joinLeft)

	_, err := NewJoin().Execute(ctx, sql.NewAction(sql.OpJoin, sql.Params{"right": joinRight}))
	require.True(sql.ErrValue.Is(err))

	_, err = NewJoin().Execute(ctx, sql.NewAction(sql.OpJoin, sql.Params{
		"right": joinRight,
		"type":  "sideways",
		"on":    "id",
	}))
	require.True(sql.ErrValue.Is(err))

	_, err = NewJoin().Execute(ctx, sql.NewAction(sql.OpJoin, sql.Params{"right": "orders", "on": "id"}))
	require.True(sql.ErrValue.Is(err))
}
