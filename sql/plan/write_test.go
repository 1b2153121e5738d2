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

func TestInsert(t *testing.T) {
	require := require.New(t)

	catalog := map[string]interface{}{"users": users()}
	res := run(t, NewInsert(), catalog, sql.NewAction(sql.OpInsert, sql.Params{
		"target":  "users",
		"columns": []interface{}{"name", "age"},
		"values":  []interface{}{[]interface{}{"D", 50}},
	}))

	require.Equal(1, res.Metadata["inserted_count"])
	out := res.Data.(map[string]interface{})
	require.Len(out["users"], 4)
	require.Equal(map[string]interface{}{"name": "D", "age": 50}, out["users"].([]interface{})[3])

	res = run(t, NewInsert(), users(), sql.NewAction(sql.OpInsert, sql.Params{
		"target": "users",
		"values": map[string]interface{}{"name": "E"},
	}))
	require.Len(res.Data, 4)

	// A new collection is created in a catalog.
	res = run(t, NewInsert(), map[string]interface{}{"users": users()}, sql.NewAction(sql.OpInsert, sql.Params{
		"target": "orders",
		"values": []interface{}{map[string]interface{}{"id": 1}},
	}))
	require.Len(res.Data.(map[string]interface{})["orders"], 1)

	_, err := NewInsert().Execute(newContext(users()), sql.NewAction(sql.OpInsert, sql.Params{
		"columns": []interface{}{"name", "age"},
		"values":  []interface{}{[]interface{}{"D"}},
	}))
	require.True(sql.ErrValue.Is(err))
}

func TestUpdate(t *testing.T) {
	require := require.New(t)

	res := run(t, NewUpdate(), users(), sql.NewAction(sql.OpUpdate, sql.Params{
		"target": "users",
		"set": map[string]interface{}{
			"age":  expression.NewBinary(expression.Plus, id("age"), lit(1)),
			"name": lit("X"),
		},
		"where": expression.NewGreaterThan(id("age"), lit(30)),
	}))

	require.Equal(2, res.Metadata["updated_count"])
	require.Equal([]interface{}{
		map[string]interface{}{"name": "A", "age": 25},
		map[string]interface{}{"name": "X", "age": int64(41)},
		map[string]interface{}{"name": "X", "age": int64(36)},
	}, res.Data)

	res = run(t, NewUpdate(), users(), sql.NewAction(sql.OpUpdate, sql.Params{
		"set":   map[string]interface{}{"flag": true},
		"limit": 1,
	}))
	require.Equal(1, res.Metadata["updated_count"])

	_, err := NewUpdate().Execute(newContext(users()), sql.NewAction(sql.OpUpdate, sql.Params{}))
	require.True(sql.ErrValue.Is(err))
}

func TestDelete(t *testing.T) {
	require := require.New(t)

	catalog := map[string]interface{}{"users": users()}
	res := run(t, NewDelete(), catalog, sql.NewAction(sql.OpDelete, sql.Params{
		"target": "users",
		"where":  map[string]interface{}{"name": "B"},
	}))

	require.Equal(1, res.Metadata["deleted_count"])
	require.Equal([]interface{}{"A", "C"}, names(res.Data.(map[string]interface{})["users"].([]interface{}), "name"))

	res = run(t, NewDelete(), users(), sql.NewAction(sql.OpDelete, nil))
	require.Equal([]interface{}{}, res.Data)
	require.Equal(3, res.Metadata["deleted_count"])
}
