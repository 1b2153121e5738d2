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

func TestProject(t *testing.T) {
	testCases := []struct {
		name     string
		fields   interface{}
		expected []interface{}
	}{
		{
			"expressions",
			[]sql.Expression{id("name"), expression.NewAlias(id("age"), "years")},
			[]interface{}{
				map[string]interface{}{"name": "A", "years": 25},
				map[string]interface{}{"name": "B", "years": 40},
				map[string]interface{}{"name": "C", "years": 35},
			},
		},
		{
			"strings",
			[]interface{}{"name AS n", "age:a"},
			[]interface{}{
				map[string]interface{}{"n": "A", "a": 25},
				map[string]interface{}{"n": "B", "a": 40},
				map[string]interface{}{"n": "C", "a": 35},
			},
		},
		{
			"mapping",
			map[string]interface{}{"who": "$name"},
			[]interface{}{
				map[string]interface{}{"who": "A"},
				map[string]interface{}{"who": "B"},
				map[string]interface{}{"who": "C"},
			},
		},
		{
			"star",
			[]interface{}{"*"},
			users(),
		},
		{
			"missing field",
			[]interface{}{"name", "email"},
			[]interface{}{
				map[string]interface{}{"name": "A"},
				map[string]interface{}{"name": "B"},
				map[string]interface{}{"name": "C"},
			},
		},
	}

	for _, tt := range testCases {
		t.Run(tt.name, func(t *testing.T) {
			res := run(t, NewProject(), users(), sql.NewAction(sql.OpProject, sql.Params{"fields": tt.fields}))
			require.Equal(t, tt.expected, res.Data)
		})
	}
}

func TestProjectComputed(t *testing.T) {
	require := require.New(t)

	res := run(t, NewProject(), users()[:1], sql.NewAction(sql.OpProject, sql.Params{
		"columns": []sql.Expression{
			expression.NewAlias(expression.NewBinary(expression.Plus, id("age"), lit(1)), "next"),
		},
	}))
	require.Equal([]interface{}{map[string]interface{}{"next": int64(26)}}, res.Data)
	require.Equal([]string{"next"}, res.Metadata["fields"])
}

func TestExtend(t *testing.T) {
	require := require.New(t)

	input := users()[:2]
	res := run(t, NewExtend(), input, sql.NewAction(sql.OpExtend, sql.Params{
		"fields": []sql.Expression{
			expression.NewAlias(expression.NewGreaterThan(id("age"), lit(30)), "senior"),
		},
	}))

	require.Equal([]interface{}{
		map[string]interface{}{"name": "A", "age": 25, "senior": false},
		map[string]interface{}{"name": "B", "age": 40, "senior": true},
	}, res.Data)

	// The input records are left untouched.
	require.NotContains(input[0], "senior")
}

func TestProjectQualifiedCollision(t *testing.T) {
	require := require.New(t)

	pairs := []interface{}{
		map[string]interface{}{"u.name": "A", "u.age": 40, "v.name": "C", "v.age": 30},
	}

	res := run(t, NewProject(), pairs, sql.NewAction(sql.OpProject, sql.Params{
		"fields": []sql.Expression{id("u.name"), id("v.name"), id("u.age")},
	}))
	require.Equal([]interface{}{
		map[string]interface{}{"u.name": "A", "v.name": "C", "age": 40},
	}, res.Data)

	res = run(t, NewProject(), pairs, sql.NewAction(sql.OpProject, sql.Params{
		"fields": []sql.Expression{id("u.name"), expression.NewAlias(id("v.name"), "other")},
	}))
	require.Equal([]interface{}{
		map[string]interface{}{"name": "A", "other": "C"},
	}, res.Data)
}
