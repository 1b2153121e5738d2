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
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/exonware/go-xwquery/sql"
)

func TestValidatorLength(t *testing.T) {
	require := require.New(t)
	v := NewValidator()

	require.NoError(v.Validate(strings.Repeat("a", DefaultMaxTextLength)))

	err := v.Validate(strings.Repeat("a", DefaultMaxTextLength+1))
	require.Error(err)
	require.True(sql.ErrSecurity.Is(err))
	require.Contains(err.Error(), "too long")

	small := &Validator{MaxTextLength: 10}
	require.NoError(small.Validate("SELECT 1"))
	require.True(sql.ErrSecurity.Is(small.Validate("SELECT 1234")))
}

func TestValidatorPatterns(t *testing.T) {
	testCases := []struct {
		text      string
		dangerous bool
	}{
		{"SELECT * FROM t; DROP TABLE users", true},
		{"select * from t;drop   table users", true},
		{"SELECT 1; DELETE FROM users", true},
		{"SELECT 1; TRUNCATE TABLE users", true},
		{"SELECT 1; ALTER TABLE users ADD x INT", true},
		{"SELECT 1; EXEC('x')", true},
		{"SELECT 1; EXECUTE (x)", true},
		{"exec master..xp_cmdshell 'dir'", true},
		{"EXEC sp_executesql @q", true},
		{"SELECT * FROM drop_table", false},
		{"DELETE FROM users WHERE id = 1", false},
		{"SELECT 'a; b' FROM t", false},
	}

	v := NewValidator()
	for _, tt := range testCases {
		t.Run(tt.text, func(t *testing.T) {
			require := require.New(t)
			err := v.Validate(tt.text)
			if !tt.dangerous {
				require.NoError(err)
				return
			}

			require.Error(err)
			require.True(sql.ErrSecurity.Is(err))
			require.Contains(err.Error(), "dangerous pattern")
		})
	}
}

func TestParseRejectsInjection(t *testing.T) {
	require := require.New(t)

	for _, dialect := range Dialects() {
		_, err := Parse(sql.NewEmptyContext(), dialect, "SELECT * FROM t; DROP TABLE users", DefaultOptions())
		require.Error(err, dialect)
		require.True(sql.ErrSecurity.Is(err), dialect)
	}
}
