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

package xwquery

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/exonware/go-xwquery/sql"
	"github.com/exonware/go-xwquery/sql/parse"
)

func TestBuildSelect(t *testing.T) {
	testCases := []struct {
		name     string
		query    SelectQuery
		expected string
	}{
		{
			"star",
			SelectQuery{Table: "users"},
			`SELECT * FROM users`,
		},
		{
			"full",
			SelectQuery{
				Table:   "users",
				Fields:  []string{"name", "age"},
				Where:   "age > 18",
				OrderBy: "age DESC, name",
				Limit:   10,
			},
			`SELECT name, age FROM users WHERE age > 18 ORDER BY age DESC, name LIMIT 10`,
		},
	}

	for _, tt := range testCases {
		t.Run(tt.name, func(t *testing.T) {
			require := require.New(t)
			out, err := BuildSelect(tt.query)
			require.NoError(err)
			require.Equal(tt.expected, out)
		})
	}
}

func TestBuildWrites(t *testing.T) {
	require := require.New(t)

	insert, err := BuildInsert("users", map[string]interface{}{"name": "Ann", "age": int64(30)})
	require.NoError(err)
	require.Equal(`INSERT INTO users (age, name) VALUES (30, 'Ann')`, insert)

	update, err := BuildUpdate("users", map[string]interface{}{"age": int64(31)}, "name = 'Ann'")
	require.NoError(err)
	require.Equal(`UPDATE users SET age = 31 WHERE name = 'Ann'`, update)

	del, err := BuildDelete("users", "age < 18")
	require.NoError(err)
	require.Equal(`DELETE FROM users WHERE age < 18`, del)

	for _, q := range []string{insert, update, del} {
		_, err := parse.Parse(sql.NewEmptyContext(), "SQL", q, parse.DefaultOptions())
		require.NoError(err)
	}
}

func TestQuickSelect(t *testing.T) {
	require := require.New(t)
	e := New(nil)

	res, err := e.QuickSelect(context.Background(), people(), "age > 30", "name")
	require.NoError(err)
	require.Equal([]interface{}{record("name", "B"), record("name", "C")}, res.Data)

	res, err = e.QuickSelect(context.Background(), people(), "")
	require.NoError(err)
	require.Len(res.Items(), 3)
}

func TestQuickAggregate(t *testing.T) {
	require := require.New(t)
	e := New(nil)

	res, err := e.QuickAggregate(context.Background(), people(), "max", "age", "")
	require.NoError(err)
	require.True(res.Success)
	require.Len(res.Items(), 1)
}
