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

package stats

import (
	"io/ioutil"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/exonware/go-xwquery/sql"
	"github.com/exonware/go-xwquery/sql/expression"
)

var testItems = []interface{}{
	map[string]interface{}{"id": 1, "city": "Paris"},
	map[string]interface{}{"id": 2, "city": "Rome"},
	map[string]interface{}{"id": 3, "city": "Paris"},
	map[string]interface{}{"id": 4, "city": "Oslo"},
}

func TestMemoryProvider(t *testing.T) {
	require := require.New(t)
	p := NewMemoryProvider()

	_, err := p.RowCount("users")
	require.True(ErrTableNotFound.Is(err))

	p.Analyze("users", testItems)
	p.DeclareIndex("users", "id")

	n, err := p.RowCount("USERS")
	require.NoError(err)
	require.Equal(uint64(4), n)

	require.True(p.HasIndex("users", "id"))
	require.True(p.HasIndex("users", "ID"))
	require.False(p.HasIndex("users", "city"))
	require.False(p.HasIndex("orders", "id"))
}

func TestSelectivity(t *testing.T) {
	ts := NewTableStats("users")
	ts.Analyze(testItems)

	city := expression.NewIdentifier("city")
	id := expression.NewIdentifier("id")

	testCases := []struct {
		name      string
		predicate sql.Expression
		expected  float64
	}{
		{"no predicate", nil, 1},
		{"equality", expression.NewEquals(city, expression.NewLiteral("Paris")), 1.0 / 3.0},
		{"flipped equality", expression.NewEquals(expression.NewLiteral(1), id), 0.25},
		{"not equal", expression.NewNotEquals(id, expression.NewLiteral(1)), 0.75},
		{"range", expression.NewGreaterThan(id, expression.NewLiteral(1)), DefaultRangeSelectivity},
		{
			"conjunction",
			expression.NewAnd(
				expression.NewEquals(id, expression.NewLiteral(1)),
				expression.NewEquals(city, expression.NewLiteral("Paris")),
			),
			0.25 / 3.0,
		},
		{"in", expression.NewIn(id, expression.NewLiteral(1), expression.NewLiteral(2)), 0.5},
		{"function", expression.NewFunction("UPPER", city), DefaultSelectivity},
	}

	for _, tt := range testCases {
		t.Run(tt.name, func(t *testing.T) {
			require.InDelta(t, tt.expected, ts.Selectivity(tt.predicate), 1e-9)
		})
	}
}

func TestBoltProvider(t *testing.T) {
	require := require.New(t)

	dir, err := ioutil.TempDir("", "xwquery-stats")
	require.NoError(err)
	defer os.RemoveAll(dir)

	p := NewBoltProvider(dir)
	require.NoError(p.Analyze("users", testItems))
	require.NoError(p.DeclareIndex("users", "city"))
	require.NoError(p.Close())

	p = NewBoltProvider(dir)
	defer p.Close()

	n, err := p.RowCount("users")
	require.NoError(err)
	require.Equal(uint64(4), n)
	require.True(p.HasIndex("users", "city"))
	require.False(p.HasIndex("users", "id"))

	// analyzing again keeps the declared indexes
	require.NoError(p.Analyze("users", testItems[:2]))
	n, err = p.RowCount("users")
	require.NoError(err)
	require.Equal(uint64(2), n)
	require.True(p.HasIndex("users", "city"))

	tables, err := p.Tables()
	require.NoError(err)
	require.Equal([]string{"users"}, tables)

	_, err = p.RowCount("orders")
	require.True(ErrTableNotFound.Is(err))
	require.False(p.HasIndex("orders", "id"))
}
