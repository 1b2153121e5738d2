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

func names(items []interface{}, field string) []interface{} {
	result := make([]interface{}, len(items))
	for i, item := range items {
		result[i], _ = sql.FieldValue(item, field)
	}
	return result
}

func TestOrderBy(t *testing.T) {
	input := []interface{}{
		map[string]interface{}{"name": "A", "age": 25, "dept": "X"},
		map[string]interface{}{"name": "B", "age": nil, "dept": "Y"},
		map[string]interface{}{"name": "C", "age": 35, "dept": "X"},
		map[string]interface{}{"name": "D", "age": 25, "dept": "Y"},
	}

	testCases := []struct {
		name     string
		params   sql.Params
		expected []interface{}
	}{
		{
			"ascending nulls last",
			sql.Params{"column": "age"},
			[]interface{}{"A", "D", "C", "B"},
		},
		{
			"descending nulls first",
			sql.Params{"column": "age", "direction": "desc"},
			[]interface{}{"B", "C", "A", "D"},
		},
		{
			"ascending nulls first",
			sql.Params{"column": "age", "nulls": "first"},
			[]interface{}{"B", "A", "D", "C"},
		},
		{
			"several keys",
			sql.Params{"keys": []interface{}{
				map[string]interface{}{"column": "dept", "direction": Descending},
				map[string]interface{}{"column": "name"},
			}},
			[]interface{}{"B", "D", "A", "C"},
		},
		{
			"expression",
			sql.Params{
				"column":     "neg",
				"expression": expression.NewNegate(id("age")),
				"nulls":      "last",
			},
			[]interface{}{"C", "A", "D", "B"},
		},
	}

	for _, tt := range testCases {
		t.Run(tt.name, func(t *testing.T) {
			res := run(t, NewOrderBy(sql.OpOrderBy), input, sql.NewAction(sql.OpOrderBy, tt.params))
			require.Equal(t, tt.expected, names(res.Items(), "name"))
		})
	}
}

func TestSortKeys(t *testing.T) {
	require := require.New(t)

	keys, err := SortKeys(sql.Params{"column": "a", "direction": "DESC"})
	require.NoError(err)
	require.Equal([]SortKey{{Column: "a", Descending: true, NullsFirst: true}}, keys)
	require.Equal(map[string]interface{}{"column": "a", "direction": Descending}, keys[0].Params())

	k := SortKey{Column: "b", NullsFirst: true}
	require.Equal(map[string]interface{}{"column": "b", "direction": Ascending, "nulls": "FIRST"}, k.Params())

	_, err = SortKeys(sql.Params{"column": "a", "direction": "up"})
	require.True(sql.ErrValue.Is(err))

	_, err = SortKeys(sql.Params{})
	require.True(sql.ErrValue.Is(err))
}
