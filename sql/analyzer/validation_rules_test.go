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
	"github.com/exonware/go-xwquery/sql/expression"
)

func TestValidateOperations(t *testing.T) {
	require := require.New(t)

	err := validateOperations(nil, sql.NewRoot(
		sql.NewAction(sql.OpSequentialScan, nil),
		sql.NewAction("WHERRE", nil),
	))
	require.Error(err)
	require.True(sql.ErrUnknownOperation.Is(err))
	require.Contains(err.Error(), "maybe you mean WHERE")

	require.NoError(validateOperations(nil, sql.NewRoot(
		sql.NewAction(sql.Program, nil, sql.NewAction(sql.OpLimit, nil)),
	)))
}

func TestValidateJoins(t *testing.T) {
	testCases := []struct {
		name   string
		params sql.Params
		ok     bool
	}{
		{"inner with on", sql.Params{"right": "b", "on": "id"}, true},
		{"left with using", sql.Params{"right": "b", "type": "LEFT", "using": []interface{}{"id"}}, true},
		{"cross", sql.Params{"right": "b", "type": "cross"}, true},
		{"inner without condition", sql.Params{"right": "b"}, false},
		{"right without condition", sql.Params{"right": "b", "type": "RIGHT"}, false},
	}

	for _, tt := range testCases {
		t.Run(tt.name, func(t *testing.T) {
			require := require.New(t)
			err := validateJoins(nil, sql.NewRoot(sql.NewAction(sql.OpJoin, tt.params)))
			if tt.ok {
				require.NoError(err)
			} else {
				require.Error(err)
				require.True(ErrValidationFailed.Is(err))
			}
		})
	}
}

func TestValidateOrderBy(t *testing.T) {
	require := require.New(t)

	order := sql.NewAction(sql.OpOrderBy, sql.Params{"column": "COUNT(*)", "expression": expression.NewCountStar()})

	err := validateOrderBy(nil, sql.NewRoot(sql.NewAction(sql.OpSequentialScan, nil), order))
	require.Error(err)
	require.True(ErrValidationFailed.Is(err))

	require.NoError(validateOrderBy(nil, sql.NewRoot(
		sql.NewAction(sql.OpSequentialScan, nil),
		sql.NewAction(sql.OpGroupBy, sql.Params{"fields": []interface{}{"dept"}}),
		order,
	)))

	n := analyze(t, NewDefault(nil), `SELECT COUNT(*) FROM users ORDER BY COUNT(*)`)
	require.Equal([]string{sql.OpSequentialScan, sql.OpAggregate, sql.OpOrderBy}, types(n.Children))
}
