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

package sql

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseError(t *testing.T) {
	require := require.New(t)

	pe := &ParseError{
		Dialect:    "SQL",
		Message:    "unexpected token",
		Line:       2,
		Column:     7,
		Expected:   "FROM",
		Actual:     "FORM",
		ActualKind: "IDENTIFIER",
	}

	err := NewParseError(pe)
	require.True(ErrParse.Is(err))
	require.Equal(`SQL parse error at line 2, column 7: unexpected token: expected FROM but got IDENTIFIER "FORM"`, err.Error())

	got, ok := AsParseError(err)
	require.True(ok)
	require.Equal(pe, got)

	_, ok = AsParseError(fmt.Errorf("plain"))
	require.False(ok)

	_, ok = AsParseError(nil)
	require.False(ok)

	err = NewParseError(&ParseError{Dialect: "KQL"})
	require.Equal("KQL parse error: invalid syntax", err.Error())

	err = NewParseError(&ParseError{Dialect: "SQL", Line: 1, Column: 48, Expected: "')'", Actual: "end of input", ActualKind: "EOF"})
	require.Equal(`SQL parse error at line 1, column 48: expected ')' but got EOF "end of input"`, err.Error())
}

func TestErrorKindName(t *testing.T) {
	testCases := []struct {
		err  error
		kind string
	}{
		{ErrSecurity.New("too long"), "SecurityError"},
		{NewParseError(&ParseError{Dialect: "SQL"}), "ParseError"},
		{ErrValue.New("result too large"), "ValueError"},
		{ErrExecution.New("JOIN", "boom"), "ExecutionError"},
		{ErrUnsupportedOperation.New("WINDOW", "scalar input"), "UnsupportedOperation"},
		{ErrUnknownOperation.New("FOO", ""), "UnknownOperation"},
		{fmt.Errorf("other"), "ExecutionError"},
	}

	for _, tt := range testCases {
		t.Run(tt.kind, func(t *testing.T) {
			require.Equal(t, tt.kind, ErrorKindName(tt.err))
		})
	}
}

func TestExecutionResult(t *testing.T) {
	require := require.New(t)

	r := NewResult(OpWhere, []interface{}{1, 2}, nil)
	require.True(r.Success)
	require.NoError(r.Err())
	require.Len(r.Items(), 2)
	require.NotNil(r.Metadata)

	err := ErrValue.New("bad")
	f := NewFailure(OpLimit, err)
	require.False(f.Success)
	require.Equal(err, f.Err())
	require.Equal("ValueError", f.Metadata["error_kind"])
	require.Equal(err.Error(), f.Error)

	bare := &ExecutionResult{Operation: OpJoin, Error: "x"}
	require.True(ErrExecution.Is(bare.Err()))
}
