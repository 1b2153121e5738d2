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

package analyzer

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/exonware/go-xwquery/sql"
	"github.com/exonware/go-xwquery/sql/parse"
)

func parseSQL(t *testing.T, query string) *sql.Action {
	t.Helper()
	actions, err := parse.Parse(sql.NewEmptyContext(), "SQL", query, parse.DefaultOptions())
	require.NoError(t, err)
	return sql.NewRoot(actions...)
}

func analyze(t *testing.T, a *Analyzer, query string) *sql.Action {
	t.Helper()
	n, err := a.Analyze(sql.NewEmptyContext(), parseSQL(t, query))
	require.NoError(t, err)
	return n
}

func types(actions []*sql.Action) []string {
	result := make([]string, len(actions))
	for i, a := range actions {
		result[i] = a.Type
	}
	return result
}

func exprString(v interface{}) string {
	if e, ok := v.(sql.Expression); ok {
		return e.String()
	}
	return ""
}
