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

package similartext

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFind(t *testing.T) {
	ops := []string{"SELECT", "DELETE", "INSERT", "WHERE", "ORDER", "ORDER_BY", "SUM", "SUB"}

	testCases := []struct {
		name     string
		names    []string
		src      string
		expected string
	}{
		{"no names", nil, "SELECT", ""},
		{"empty source", ops, "", ""},
		{"typo", ops, "SELEC", ", maybe you mean SELECT?"},
		{"exact", ops, "WHERE", ", maybe you mean WHERE?"},
		{"closest wins", ops, "ORDER", ", maybe you mean ORDER?"},
		{"ties", ops, "SUX", ", maybe you mean SUM or SUB?"},
		{"too different", ops, "MATERIALIZE", ""},
		{"case matters", ops, "select", ""},
	}

	for _, tt := range testCases {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.expected, Find(tt.names, tt.src))
		})
	}
}

func TestFindFold(t *testing.T) {
	require := require.New(t)

	names := []string{"XPath", "SQL", "KQL"}
	require.Equal(", maybe you mean XPath?", FindFold(names, "xpth"))
	require.Equal(", maybe you mean SQL?", FindFold(names, "sql"))
	require.Empty(FindFold(names, "completely-different"))
}

func TestFindFromMap(t *testing.T) {
	require := require.New(t)

	var executors map[string]int
	require.Empty(FindFromMap(executors, "JOIN"))

	executors = map[string]int{"JOIN": 1, "UNION": 2}
	require.Equal(", maybe you mean JOIN?", FindFromMap(executors, "JION"))
	require.Empty(FindFromMap(executors, ""))
	require.Empty(FindFromMap([]string{"JOIN"}, "JOIN"))
}

func TestDistanceForStrings(t *testing.T) {
	require := require.New(t)

	require.Equal(0, DistanceForStrings([]rune("LIMIT"), []rune("LIMIT")))
	require.Equal(1, DistanceForStrings([]rune("LIMIT"), []rune("LIMITS")))
	require.Equal(2, DistanceForStrings([]rune("LIKE"), []rune("LIKT")))
	require.Equal(5, DistanceForStrings([]rune(""), []rune("COUNT")))
}
