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
)

func TestWindow(t *testing.T) {
	input := []interface{}{
		map[string]interface{}{"dept": "X", "salary": 30},
		map[string]interface{}{"dept": "Y", "salary": 20},
		map[string]interface{}{"dept": "X", "salary": 10},
		map[string]interface{}{"dept": "X", "salary": 30},
	}

	testCases := []struct {
		name     string
		params   sql.Params
		field    string
		expected []interface{}
	}{
		{
			"row number",
			sql.Params{"partition_by": "dept", "order_by": "salary"},
			"row_number",
			[]interface{}{int64(2), int64(1), int64(1), int64(3)},
		},
		{
			"rank",
			sql.Params{"function": "rank", "partition_by": "dept", "order_by": "salary"},
			"rank",
			[]interface{}{int64(2), int64(1), int64(1), int64(2)},
		},
		{
			"dense rank",
			sql.Params{
				"function": "DENSE_RANK",
				"keys":     []interface{}{map[string]interface{}{"column": "salary", "direction": "DESC"}},
				"as":       "pos",
			},
			"pos",
			[]interface{}{int64(1), int64(2), int64(3), int64(1)},
		},
		{
			"running sum",
			sql.Params{"function": "SUM", "field": "salary", "order_by": "salary"},
			"sum_salary",
			[]interface{}{int64(60), int64(30), int64(10), int64(90)},
		},
		{
			"partition sum",
			sql.Params{"function": "SUM", "field": "salary", "partition_by": "dept"},
			"sum_salary",
			[]interface{}{int64(70), int64(20), int64(70), int64(70)},
		},
		{
			"lag",
			sql.Params{"function": "LAG", "field": "salary", "partition_by": "dept", "default": 0},
			"lag_salary",
			[]interface{}{0, 0, 30, 10},
		},
		{
			"lead",
			sql.Params{"function": "LEAD", "field": "salary", "offset": 2},
			"lead_salary",
			[]interface{}{10, 30, nil, nil},
		},
	}

	for _, tt := range testCases {
		t.Run(tt.name, func(t *testing.T) {
			res := run(t, NewWindow(), input, sql.NewAction(sql.OpWindow, tt.params))
			require.Equal(t, tt.expected, names(res.Items(), tt.field))
			require.Equal(t, 30, res.Items()[0].(map[string]interface{})["salary"])
		})
	}
}

func TestWindowErrors(t *testing.T) {
	require := require.New(t)
	ctx := newContext([]interface{}{})

	_, err := NewWindow().Execute(ctx, sql.NewAction(sql.OpWindow, sql.Params{"function": "NTILE"}))
	require.True(sql.ErrValue.Is(err))

	_, err = NewWindow().Execute(ctx, sql.NewAction(sql.OpWindow, sql.Params{"function": "LAG"}))
	require.True(sql.ErrValue.Is(err))
}
