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

func TestLet(t *testing.T) {
	require := require.New(t)

	ctx := newContext(users())
	res, err := NewLet(sql.OpLet).Execute(ctx, sql.NewAction(sql.OpLet, sql.Params{
		"name":  "limit",
		"value": expression.NewBinary(expression.Mult, lit(2), lit(3)),
	}))
	require.NoError(err)
	require.Equal(users(), res.Data)

	v, ok := ctx.Variable("limit")
	require.True(ok)
	require.Equal(int64(6), v)

	ctx.SetChildResults([]*sql.ExecutionResult{sql.NewResult(sql.OpSelect, users()[:1], nil)})
	_, err = NewLet(sql.OpWith).Execute(ctx, sql.NewAction(sql.OpWith, sql.Params{"name": "young"}))
	require.NoError(err)

	v, ok = ctx.Variable("young")
	require.True(ok)
	require.Equal(users()[:1], v)

	_, err = NewLet(sql.OpLet).Execute(newContext(nil), sql.NewAction(sql.OpLet, sql.Params{"name": "x"}))
	require.True(sql.ErrValue.Is(err))

	_, err = NewLet(sql.OpLet).Execute(newContext(nil), sql.NewAction(sql.OpLet, sql.Params{"value": 1}))
	require.True(sql.ErrValue.Is(err))
}

func TestValues(t *testing.T) {
	require := require.New(t)

	res := run(t, NewValues(), nil, sql.NewAction(sql.OpValues, sql.Params{
		"columns": []interface{}{"a", "b"},
		"values":  []interface{}{[]interface{}{1, 2}, []interface{}{3, 4}},
	}))
	require.Equal([]interface{}{
		map[string]interface{}{"a": 1, "b": 2},
		map[string]interface{}{"a": 3, "b": 4},
	}, res.Data)
}

func TestUnion(t *testing.T) {
	require := require.New(t)

	res := run(t, NewUnion(), numbers(3), sql.NewAction(sql.OpUnion, sql.Params{
		"right": []interface{}{2, 3},
	}))
	require.Equal([]interface{}{0, 1, 2, 2, 3}, res.Data)

	res = run(t, NewUnion(), numbers(3), sql.NewAction(sql.OpUnion, sql.Params{
		"right":    []interface{}{2, 3},
		"distinct": true,
	}))
	require.Equal([]interface{}{0, 1, 2, 3}, res.Data)
	require.Equal(4, res.Metadata["result_count"])
}
