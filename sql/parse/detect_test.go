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

package parse

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDetectFormat(t *testing.T) {
	testCases := []struct {
		query   string
		dialect string
		minimum float64
		maximum float64
	}{
		{"", "SQL", 0.5, 0.5},
		{"SELECT name FROM users WHERE age > 30", "SQL", 0.95, 0.95},
		{"insert into t values (1)", "SQL", 0.95, 0.95},
		{"MATCH (n:Person) RETURN n.name", "Cypher", 0.95, 0.95},
		{"query Users { users { name } }", "GraphQL", 0.95, 0.95},
		{"PREFIX foaf: <http://xmlns.com/foaf/0.1/> SELECT ?name WHERE { ?p foaf:name ?name }", "SPARQL", 0.95, 0.95},
		{"g.V().has('name', 'marko')", "Gremlin", 0.95, 0.95},
		{`db.users.find({age: {$gt: 30}})`, "MongoDB", 0.95, 0.95},
		{"$.store.book[0]", "JSONPath", 0.90, 0.90},
		{"users | where age > 30 | take 5", "KQL", 0.9, 1},
		{"//users/user[age > 18]/name", "XPath", 0.5, 0.6},
	}

	for _, tt := range testCases {
		t.Run(tt.query, func(t *testing.T) {
			require := require.New(t)
			dialect, confidence := DetectFormat(tt.query)
			require.Equal(tt.dialect, dialect)
			require.True(confidence >= tt.minimum-1e-9 && confidence <= tt.maximum+1e-9,
				"confidence %f not in [%f, %f]", confidence, tt.minimum, tt.maximum)
		})
	}
}

func TestDetectorCandidates(t *testing.T) {
	require := require.New(t)
	d := NewDetector(DefaultConfidenceThreshold)

	candidates := d.Candidates("users | summarize count() by dept")
	require.NotEmpty(candidates)
	require.Equal("KQL", candidates[0].Dialect)
	for i := 1; i < len(candidates); i++ {
		require.True(candidates[i-1].Confidence >= candidates[i].Confidence)
	}

	require.True(d.IsConfident("SELECT a FROM t"))
	require.False(d.IsConfident("//users/user"))
	require.False(NewDetector(0.99).IsConfident("SELECT a FROM t"))
}
